// Package registry is the process-wide directory of ground stations, the
// satellites registered under each station, and the comm bindings between
// them. It enforces the setup/lookup preconditions of the wire protocol and
// serializes all mutation and prediction work behind a single mutex.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nstitov/orbitrak/internal/comm"
	"github.com/nstitov/orbitrak/internal/satellite"
	"github.com/nstitov/orbitrak/internal/sgp4provider"
	"github.com/nstitov/orbitrak/internal/station"
	"github.com/nstitov/orbitrak/internal/tlecache"
	"github.com/nstitov/orbitrak/internal/tlesource"
)

// Ошибки Registry, см. SPEC_FULL.md §7.
var (
	// ErrSetupMissing возвращается, когда запрошенная станция/спутник не
	// зарегистрированы.
	ErrSetupMissing = errors.New("registry: referenced station or satellite not set up")

	// ErrNoPrediction возвращается, когда comm_data пуст при запросе,
	// которому он нужен.
	ErrNoPrediction = errors.New("registry: no prediction data available")
)

const (
	// DefaultHorizonSec — горизонт прогноза по умолчанию, с (1 сутки).
	DefaultHorizonSec = 86400.0

	// DefaultStepSec — шаг прогноза по умолчанию, с.
	DefaultStepSec = 1.0
)

// SatelliteInfo отражает итог get_station_satellites_info для одного
// спутника станции (см. SPEC_FULL.md §4.6 supplement).
type SatelliteInfo struct {
	NoradID    int
	UplinkHz   *float64
	DownlinkHz *float64
	TLEEpoch   *time.Time
}

// Registry owns every Station, Satellite and Comm for the process lifetime.
// All three maps are keyed by station name; satellites/comms are keyed a
// second level by NORAD ID, matching spec.md §4.6's nested ownership.
type Registry struct {
	mu sync.Mutex

	stations   map[string]*station.Station
	satellites map[string]map[int]*satellite.Satellite
	comms      map[string]map[int]*comm.Comm

	provider sgp4provider.Provider
	source   tlesource.Source
	cache    *tlecache.Cache

	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the structured logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithTleSource wires a TleSource adapter used by setup_new_tle_by_spacetrack
// and update_tles_by_spacetrack.
func WithTleSource(s tlesource.Source) Option {
	return func(r *Registry) { r.source = s }
}

// WithTleCache wires the on-disk TLE cache.
func WithTleCache(c *tlecache.Cache) Option {
	return func(r *Registry) { r.cache = c }
}

// New creates an empty Registry bound to the given Sgp4Provider (never nil).
func New(provider sgp4provider.Provider, opts ...Option) *Registry {
	r := &Registry{
		stations:   make(map[string]*station.Station),
		satellites: make(map[string]map[int]*satellite.Satellite),
		comms:      make(map[string]map[int]*comm.Comm),
		provider:   provider,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetupGroundStation registers (or replaces) a station by name.
func (r *Registry) SetupGroundStation(name string, lonRad, latRad, altM, minElevRad float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := station.New(name, lonRad, latRad, altM, minElevRad)
	if err != nil {
		return err
	}

	r.stations[name] = st
	if r.satellites[name] == nil {
		r.satellites[name] = make(map[int]*satellite.Satellite)
	}
	if r.comms[name] == nil {
		r.comms[name] = make(map[int]*comm.Comm)
	}

	return nil
}

// SetupSatellite registers a satellite under an existing station.
func (r *Registry) SetupSatellite(stationName string, noradID int, uplinkHz, downlinkHz *float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.stations[stationName]; !ok {
		return fmt.Errorf("%w: station %q", ErrSetupMissing, stationName)
	}

	sat, err := satellite.New(noradID, r.provider, r.source, r.cache)
	if err != nil {
		return err
	}
	sat.UplinkHz = uplinkHz
	sat.DownlinkHz = downlinkHz

	r.satellites[stationName][noradID] = sat
	return nil
}

// SetupComm binds the station's satellite into a Comm ready for prediction.
func (r *Registry) SetupComm(stationName string, noradID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, sat, err := r.lookupLocked(stationName, noradID)
	if err != nil {
		return err
	}

	c := comm.New(stationName, sat, st, comm.WithLogger(r.logger))
	r.comms[stationName][noradID] = c
	return nil
}

// SetupNewFrequencies updates a satellite's link frequencies and replays
// Doppler for every sample from "now" forward, per spec.md §4.4
// recalculate_links_from. Earlier samples are left untouched.
func (r *Registry) SetupNewFrequencies(stationName string, noradID int, uplinkHz, downlinkHz float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, sat, err := r.lookupLocked(stationName, noradID)
	if err != nil {
		return err
	}

	sat.UplinkHz = &uplinkHz
	sat.DownlinkHz = &downlinkHz

	if c := r.comms[stationName][noradID]; c != nil && len(c.Data) > 0 {
		c.RecalculateLinksFrom(time.Now().UTC())
	}

	return nil
}

// SetupNewTLEByString installs a TLE parsed from a raw text blob (2- or
// 3-line format) onto the satellite.
func (r *Registry) SetupNewTLEByString(stationName string, noradID int, tleStr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, sat, err := r.lookupLocked(stationName, noradID)
	if err != nil {
		return err
	}

	return sat.SetupTLEFromString(tleStr)
}

// SetupNewTLEByLines installs a TLE from an explicit two-line pair, e.g. as
// loaded by the server from a named cache file (tle_file_name/default_folder
// in the wire request), see §6.1.
func (r *Registry) SetupNewTLEByLines(stationName string, noradID int, line1, line2 string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, sat, err := r.lookupLocked(stationName, noradID)
	if err != nil {
		return err
	}

	return sat.SetupTLEFromLines(line1, line2)
}

// SetupNewTLEBySpacetrack fetches the latest TLE from the configured
// TleSource (spacetrack/Celestrak adapter) for one satellite.
func (r *Registry) SetupNewTLEBySpacetrack(ctx context.Context, stationName string, noradID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, sat, err := r.lookupLocked(stationName, noradID)
	if err != nil {
		return err
	}

	return sat.SetupTLEFromExternalSource(ctx)
}

// UpdateTLEsBySpacetrack refetches and atomically replaces the cached TLE
// for every NORAD ID listed, under the same station. Per-satellite failures
// are collected but do not abort siblings, matching the source's batch
// helper (see SPEC_FULL.md §9, _update_all_tles__ discussion).
func (r *Registry) UpdateTLEsBySpacetrack(ctx context.Context, stationName string, noradIDs []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, id := range noradIDs {
		_, sat, err := r.lookupLocked(stationName, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := sat.UpdateTLEFromExternalSource(ctx); err != nil {
			errs = append(errs, fmt.Errorf("norad %d: %w", id, err))
		}
	}

	return errors.Join(errs...)
}

// UpdateAllTLEs refetches and atomically replaces the cached TLE for every
// satellite registered under every station, across the whole Registry. This
// is the tooling-only analogue of the source's unreachable
// _update_all_tles__ batch helper (SPEC_FULL.md §9 open question): it has
// no wire request, and exists purely for an operator to invoke from
// cmd/orbitrakd (e.g. before a long outage window) rather than per-satellite
// from a client.
func (r *Registry) UpdateAllTLEs(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for stationName, sats := range r.satellites {
		for noradID, sat := range sats {
			if sat.TLE == nil {
				continue
			}
			if err := sat.UpdateTLEFromExternalSource(ctx); err != nil {
				errs = append(errs, fmt.Errorf("station %q norad %d: %w", stationName, noradID, err))
			}
		}
	}

	return errors.Join(errs...)
}

// PredictComm runs the full propagation + comm computation pipeline for one
// (station, satellite) pair: predict_cm, compute_comm_over_prediction,
// define_sessions. This is the long-running CPU-bound call that spec.md §5
// says must still serialize under the registry lock ("Predict-ACK is sent
// only after full computation").
func (r *Registry) PredictComm(ctx context.Context, stationName string, noradID int, start time.Time, horizonSec, stepSec float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, sat, err := r.lookupLocked(stationName, noradID)
	if err != nil {
		return err
	}

	c := r.comms[stationName][noradID]
	if c == nil {
		return fmt.Errorf("%w: comm station=%q norad=%d", ErrSetupMissing, stationName, noradID)
	}

	if horizonSec <= 0 {
		horizonSec = DefaultHorizonSec
	}
	if stepSec <= 0 {
		stepSec = DefaultStepSec
	}

	if err := sat.PredictCM(ctx, start, horizonSec, stepSec); err != nil {
		return err
	}

	c.ComputeOverPrediction(ctx)
	c.DefineSessions()

	return nil
}

// GetSetupedStations lists every registered station name, sorted.
func (r *Registry) GetSetupedStations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.stations))
	for name := range r.stations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetStationSatellitesInfo lists the satellites registered under a station,
// per SPEC_FULL.md §4.6 supplement.
func (r *Registry) GetStationSatellitesInfo(stationName string) ([]SatelliteInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.stations[stationName]; !ok {
		return nil, fmt.Errorf("%w: station %q", ErrSetupMissing, stationName)
	}

	sats := r.satellites[stationName]
	infos := make([]SatelliteInfo, 0, len(sats))
	for id, sat := range sats {
		info := SatelliteInfo{NoradID: id, UplinkHz: sat.UplinkHz, DownlinkHz: sat.DownlinkHz}
		if sat.TLE != nil {
			epoch := sat.TLE.Epoch
			info.TLEEpoch = &epoch
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].NoradID < infos[j].NoradID })

	return infos, nil
}

// GetAzimuthElevation returns the sample whose instant equals instant
// truncated to whole seconds; no nearest-sample search is made. If
// comm_data is empty, it runs compute_comm_over_prediction
// with defaults (logging a warning, per spec.md §4.4/§7) rather than
// failing; if instant still can't be found, it returns ok=false so the
// caller can echo back null fields with the requested instant, per §7.
func (r *Registry) GetAzimuthElevation(ctx context.Context, stationName string, noradID int, instant time.Time) (comm.Sample, bool, error) {
	return r.sampleAt(ctx, stationName, noradID, instant)
}

// GetFrequencies is the same lookup as GetAzimuthElevation, projected onto
// the link-frequency fields only; kept as a distinct method because the
// wire protocol exposes it as a separate request (get_frequencies).
func (r *Registry) GetFrequencies(ctx context.Context, stationName string, noradID int, instant time.Time) (comm.Sample, bool, error) {
	return r.sampleAt(ctx, stationName, noradID, instant)
}

// GetData returns the full single sample at instant; it serves the wire
// protocol's get_data when the request carries a dt (without one, the
// server answers from GetAllData).
func (r *Registry) GetData(ctx context.Context, stationName string, noradID int, instant time.Time) (comm.Sample, bool, error) {
	return r.sampleAt(ctx, stationName, noradID, instant)
}

// GetAllData returns the entire sorted comm_data series for a (station,
// satellite) pair (SPEC_FULL.md §4.6 supplement, bulk GetData response).
func (r *Registry) GetAllData(stationName string, noradID int) ([]comm.Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _, err := r.lookupLocked(stationName, noradID)
	if err != nil {
		return nil, err
	}

	c := r.comms[stationName][noradID]
	if c == nil {
		return nil, fmt.Errorf("%w: comm station=%q norad=%d", ErrSetupMissing, stationName, noradID)
	}
	if len(c.Data) == 0 {
		return nil, fmt.Errorf("%w: station=%q norad=%d", ErrNoPrediction, stationName, noradID)
	}

	return c.Data, nil
}

// GetCommSessionsParams returns every detected pass (Session) for a (station,
// satellite) pair.
func (r *Registry) GetCommSessionsParams(stationName string, noradID int) ([]comm.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _, err := r.lookupLocked(stationName, noradID)
	if err != nil {
		return nil, err
	}

	c := r.comms[stationName][noradID]
	if c == nil {
		return nil, fmt.Errorf("%w: comm station=%q norad=%d", ErrSetupMissing, stationName, noradID)
	}
	if len(c.Data) == 0 {
		return nil, fmt.Errorf("%w: station=%q norad=%d", ErrNoPrediction, stationName, noradID)
	}

	return c.Sessions, nil
}

// ClearGroundStationData tears down a station and everything under it:
// its satellites and comm bindings. Per spec.md §3, a Comm becomes invalid
// once its referents vanish; Registry enforces that by removing all three
// together so no dangling Comm can survive a station teardown.
func (r *Registry) ClearGroundStationData(stationName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.stations[stationName]; !ok {
		return fmt.Errorf("%w: station %q", ErrSetupMissing, stationName)
	}

	delete(r.stations, stationName)
	delete(r.satellites, stationName)
	delete(r.comms, stationName)

	return nil
}

// sampleAt implements the shared query-with-auto-predict semantics used by
// GetAzimuthElevation/GetFrequencies/GetData.
func (r *Registry) sampleAt(ctx context.Context, stationName string, noradID int, instant time.Time) (comm.Sample, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _, err := r.lookupLocked(stationName, noradID)
	if err != nil {
		return comm.Sample{}, false, err
	}

	c := r.comms[stationName][noradID]
	if c == nil {
		return comm.Sample{}, false, fmt.Errorf("%w: comm station=%q norad=%d", ErrSetupMissing, stationName, noradID)
	}

	if len(c.Data) == 0 {
		r.logger.Warn("no prediction data; computing with defaults",
			"station", stationName, "norad_id", noradID)
		c.ComputeOverPrediction(ctx)
		c.DefineSessions()
	}

	instant = instant.Truncate(time.Second)
	idx := sort.Search(len(c.Data), func(i int) bool { return !c.Data[i].Instant.Before(instant) })
	if idx < len(c.Data) && c.Data[idx].Instant.Equal(instant) {
		return c.Data[idx], true, nil
	}

	return comm.Sample{}, false, nil
}

// lookupLocked resolves a (station, satellite) pair while r.mu is already
// held, returning ErrSetupMissing if either leg is absent.
func (r *Registry) lookupLocked(stationName string, noradID int) (*station.Station, *satellite.Satellite, error) {
	st, ok := r.stations[stationName]
	if !ok {
		return nil, nil, fmt.Errorf("%w: station %q", ErrSetupMissing, stationName)
	}

	sat, ok := r.satellites[stationName][noradID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: satellite %d under station %q", ErrSetupMissing, noradID, stationName)
	}

	return st, sat, nil
}
