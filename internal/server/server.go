// Package server implements the stateful TCP request server: it accepts
// concurrent client connections, decodes the JSON requests of
// internal/wire, dispatches them onto an internal/registry.Registry, and
// encodes replies. See spec.md §4.7 and §5 for the concurrency contract.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nstitov/orbitrak/internal/registry"
	"github.com/nstitov/orbitrak/internal/tlecache"
	"github.com/nstitov/orbitrak/internal/wire"
)

// dtLayout is the ISO 8601 layout used for the wire protocol's
// timezone-less datetime strings, interpreted as UTC (spec.md §6.1).
const dtLayout = "2006-01-02T15:04:05"

// Server multiplexes many client connections onto one Registry. Every
// dispatch call is serialized by the Registry's own mutex; the Server
// itself holds no lock over socket I/O (spec.md §4.7/§5).
type Server struct {
	reg    *registry.Registry
	cache  *tlecache.Cache
	logger *slog.Logger

	lengthPrefixed bool

	listener      net.Listener
	activeConns   atomic.Int64
	totalAccepted atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithTleCache wires the on-disk cache used by setup_new_tle_by_file to
// resolve tle_file_name/default_folder into TLE text.
func WithTleCache(c *tlecache.Cache) Option {
	return func(s *Server) { s.cache = c }
}

// WithLengthPrefixedFraming opts into the alternative 4-byte length-prefix
// framing of internal/wire instead of the byte-compatible trailing-digit
// default (spec.md §9 redesign note).
func WithLengthPrefixedFraming() Option {
	return func(s *Server) { s.lengthPrefixed = true }
}

// New creates a Server bound to reg.
func New(reg *registry.Registry, opts ...Option) *Server {
	s := &Server{reg: reg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ActiveConnections returns the current handler thread count, for
// observability (spec.md §5: "a thread counter is maintained").
func (s *Server) ActiveConnections() int64 { return s.activeConns.Load() }

// Serve binds addr and accepts connections until ctx is cancelled or
// Listen fails. Each accepted connection gets its own handler goroutine.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	s.listener = ln

	s.logger.Info("server listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}

		s.totalAccepted.Add(1)
		go s.handleConn(ctx, conn)
	}
}

// handleConn serves one client connection until it sends CLOSE, closes the
// socket, or the handler hits an unrecoverable read error. Socket
// acquisition is scoped so the connection is always released on exit,
// including panics recovered as status-7 replies (spec.md §5, §7).
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	s.activeConns.Add(1)
	defer s.activeConns.Add(-1)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.logger.Info("client connected", "remote", remote, "active", s.activeConns.Load())
	defer s.logger.Info("client disconnected", "remote", remote)

	r := bufio.NewReaderSize(conn, wire.MaxFrameBytes)

	for {
		frame, err := wire.ReadFrame(r)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Debug("read frame ended", "remote", remote, "error", err)
			}
			return
		}

		trimmed := strings.TrimSpace(frame)
		if trimmed == wire.CloseSentinel {
			return
		}
		if trimmed == "" {
			continue
		}

		reply := s.handleFrame(ctx, trimmed)
		if _, err := conn.Write(reply); err != nil {
			s.logger.Debug("write reply failed", "remote", remote, "error", err)
			return
		}
	}
}

// handleFrame decodes, dispatches and encodes the reply for one request
// frame, recovering from any panic inside dispatch as a status-7 error
// reply (spec.md §7: "unexpected exceptions are caught, logged with stack,
// and reported as status 7; the server never terminates a client
// connection due to a request error").
func (s *Server) handleFrame(ctx context.Context, frame string) (reply []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic handling request", "panic", rec)
			reply = s.encode(nil, wire.RespError)
		}
	}()

	var req wire.Request
	if err := json.Unmarshal([]byte(frame), &req); err != nil {
		s.logger.Warn("malformed request frame", "error", err)
		return s.encode(nil, wire.RespError)
	}
	if req.Body == nil {
		s.logger.Warn("request missing body", "request", req.Name)
		return s.encode(nil, wire.RespError)
	}

	data, rt, err := s.dispatch(ctx, req)
	if err != nil {
		s.logger.Warn("request failed", "request", req.Name, "error", err)
		return s.encode(nil, wire.RespError)
	}

	return s.encode(data, rt)
}

// encode applies the configured framing mode to a (data, ResponseType)
// pair. data == nil means a non-data (status-only) reply.
func (s *Server) encode(data any, rt wire.ResponseType) []byte {
	var payload []byte
	if data != nil {
		p, err := wire.EncodeDataReply(data, rt)
		if err != nil {
			s.logger.Error("encoding reply failed", "error", err)
			payload = wire.EncodeStatusReply(wire.RespError)
		} else {
			payload = p
		}
	} else {
		payload = wire.EncodeStatusReply(rt)
	}

	if s.lengthPrefixed {
		return wire.LengthPrefixedFrame(payload)
	}
	return payload
}

// dispatch decodes req.Body into the request-specific struct and invokes
// the matching Registry operation, returning the reply payload (nil for
// status-only replies) and its ResponseType, per the catalog in
// SPEC_FULL.md §6.1.
func (s *Server) dispatch(ctx context.Context, req wire.Request) (any, wire.ResponseType, error) {
	switch req.Name {
	case wire.ReqSetupGroundStation:
		return s.doSetupGroundStation(req.Body)
	case wire.ReqSetupSatellite:
		return s.doSetupSatellite(req.Body)
	case wire.ReqSetupComm:
		return s.doSetupComm(req.Body)
	case wire.ReqSetupNewFrequencies:
		return s.doSetupNewFrequencies(req.Body)
	case wire.ReqSetupNewTleByStr:
		return s.doSetupNewTleByStr(req.Body)
	case wire.ReqSetupNewTleByFile:
		return s.doSetupNewTleByFile(req.Body)
	case wire.ReqSetupNewTleBySpacetrack:
		return s.doSetupNewTleBySpacetrack(ctx, req.Body)
	case wire.ReqUpdateTlesBySpacetrack:
		return s.doUpdateTlesBySpacetrack(ctx, req.Body)
	case wire.ReqPredictComm:
		return s.doPredictComm(ctx, req.Body)
	case wire.ReqGetSetupedStations:
		return s.doGetSetupedStations()
	case wire.ReqGetStationSatellitesInfo:
		return s.doGetStationSatellitesInfo(req.Body)
	case wire.ReqGetAzimuthElevation:
		return s.doGetAzimuthElevation(ctx, req.Body)
	case wire.ReqGetFrequencies:
		return s.doGetFrequencies(ctx, req.Body)
	case wire.ReqGetData:
		return s.doGetData(ctx, req.Body)
	case wire.ReqGetCommSessionsParams:
		return s.doGetCommSessionsParams(req.Body)
	case wire.ReqClearGroundStationData:
		return s.doClearGroundStationData(req.Body)
	default:
		// UnexpectedRequest: status 0 (None), per spec.md §7.
		s.logger.Warn("unexpected request name", "request", req.Name)
		return nil, wire.RespNone, nil
	}
}

func decodeBody[T any](raw json.RawMessage) (T, error) {
	var body T
	if err := json.Unmarshal(raw, &body); err != nil {
		var zero T
		return zero, fmt.Errorf("wire: decoding body: %w", err)
	}
	return body, nil
}

func parseDt(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dtLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

const deg2rad = 3.141592653589793 / 180.0

func (s *Server) doSetupGroundStation(raw json.RawMessage) (any, wire.ResponseType, error) {
	body, err := decodeBody[wire.SetupGroundStationBody](raw)
	if err != nil {
		return nil, wire.RespError, err
	}

	err = s.reg.SetupGroundStation(
		body.StationName,
		body.Longitude*deg2rad,
		body.Latitude*deg2rad,
		body.Altitude,
		body.Elevation*deg2rad,
	)
	if err != nil {
		return nil, wire.RespError, err
	}
	return nil, wire.RespConfigure, nil
}

func (s *Server) doSetupSatellite(raw json.RawMessage) (any, wire.ResponseType, error) {
	body, err := decodeBody[wire.SetupSatelliteBody](raw)
	if err != nil {
		return nil, wire.RespError, err
	}

	if err := s.reg.SetupSatellite(body.StationName, body.NoradID, body.Uplink, body.Downlink); err != nil {
		return nil, wire.RespError, err
	}
	return nil, wire.RespConfigure, nil
}

func (s *Server) doSetupComm(raw json.RawMessage) (any, wire.ResponseType, error) {
	body, err := decodeBody[wire.SetupCommBody](raw)
	if err != nil {
		return nil, wire.RespError, err
	}

	if err := s.reg.SetupComm(body.StationName, body.NoradID); err != nil {
		return nil, wire.RespError, err
	}
	return nil, wire.RespConfigure, nil
}

func (s *Server) doSetupNewFrequencies(raw json.RawMessage) (any, wire.ResponseType, error) {
	body, err := decodeBody[wire.SetupNewFrequenciesBody](raw)
	if err != nil {
		return nil, wire.RespError, err
	}

	if err := s.reg.SetupNewFrequencies(body.StationName, body.NoradID, body.Uplink, body.Downlink); err != nil {
		return nil, wire.RespError, err
	}
	return nil, wire.RespConfigure, nil
}

func (s *Server) doSetupNewTleByStr(raw json.RawMessage) (any, wire.ResponseType, error) {
	body, err := decodeBody[wire.SetupNewTleByStrBody](raw)
	if err != nil {
		return nil, wire.RespError, err
	}

	if err := s.reg.SetupNewTLEByString(body.StationName, body.NoradID, body.TleStr); err != nil {
		return nil, wire.RespError, err
	}
	return nil, wire.RespTleUpdate, nil
}

func (s *Server) doSetupNewTleByFile(raw json.RawMessage) (any, wire.ResponseType, error) {
	body, err := decodeBody[wire.SetupNewTleByFileBody](raw)
	if err != nil {
		return nil, wire.RespError, err
	}

	if s.cache == nil {
		return nil, wire.RespError, fmt.Errorf("server: no TLE cache configured")
	}

	dir := body.DefaultFolder
	if dir == "" {
		dir = s.cache.Dir()
	}
	fileCache := tlecache.New(dir)
	t, err := fileCache.LoadNamed(body.TleFileName)
	if err != nil {
		return nil, wire.RespError, err
	}

	if err := s.reg.SetupNewTLEByLines(body.StationName, body.NoradID, t.Line1, t.Line2); err != nil {
		return nil, wire.RespError, err
	}
	return nil, wire.RespTleUpdate, nil
}

func (s *Server) doSetupNewTleBySpacetrack(ctx context.Context, raw json.RawMessage) (any, wire.ResponseType, error) {
	body, err := decodeBody[wire.SetupNewTleBySpacetrackBody](raw)
	if err != nil {
		return nil, wire.RespError, err
	}

	if err := s.reg.SetupNewTLEBySpacetrack(ctx, body.StationName, body.NoradID); err != nil {
		return nil, wire.RespError, err
	}
	return nil, wire.RespTleUpdate, nil
}

func (s *Server) doUpdateTlesBySpacetrack(ctx context.Context, raw json.RawMessage) (any, wire.ResponseType, error) {
	body, err := decodeBody[wire.UpdateTlesBySpacetrackBody](raw)
	if err != nil {
		return nil, wire.RespError, err
	}

	if err := s.reg.UpdateTLEsBySpacetrack(ctx, body.StationName, body.NoradIDs); err != nil {
		return nil, wire.RespError, err
	}
	return nil, wire.RespTleUpdate, nil
}

func (s *Server) doPredictComm(ctx context.Context, raw json.RawMessage) (any, wire.ResponseType, error) {
	body, err := decodeBody[wire.PredictCommBody](raw)
	if err != nil {
		return nil, wire.RespError, err
	}

	start := time.Now().UTC()
	if t, ok := parseDt(body.StartPrediction); ok {
		start = t
	}

	horizon := body.TimePrediction
	if horizon <= 0 {
		horizon = registry.DefaultHorizonSec
	}
	step := body.StepPrediction
	if step <= 0 {
		step = registry.DefaultStepSec
	}

	if err := s.reg.PredictComm(ctx, body.StationName, body.NoradID, start, horizon, step); err != nil {
		return nil, wire.RespError, err
	}
	return nil, wire.RespPredict, nil
}

func (s *Server) doGetSetupedStations() (any, wire.ResponseType, error) {
	return map[string]any{"stations": s.reg.GetSetupedStations()}, wire.RespGetData, nil
}

func (s *Server) doGetStationSatellitesInfo(raw json.RawMessage) (any, wire.ResponseType, error) {
	body, err := decodeBody[wire.GetStationSatellitesInfoBody](raw)
	if err != nil {
		return nil, wire.RespError, err
	}

	infos, err := s.reg.GetStationSatellitesInfo(body.StationName)
	if err != nil {
		return nil, wire.RespError, err
	}

	type satelliteInfoWire struct {
		NoradID    int      `json:"norad_id"`
		UplinkHz   *float64 `json:"uplink_hz,omitempty"`
		DownlinkHz *float64 `json:"downlink_hz,omitempty"`
		TleEpoch   *string  `json:"tle_epoch,omitempty"`
	}

	out := make([]satelliteInfoWire, len(infos))
	for i, info := range infos {
		w := satelliteInfoWire{NoradID: info.NoradID, UplinkHz: info.UplinkHz, DownlinkHz: info.DownlinkHz}
		if info.TLEEpoch != nil {
			epochStr := info.TLEEpoch.Format("2006-01-02")
			w.TleEpoch = &epochStr
		}
		out[i] = w
	}

	return map[string]any{"satellites": out}, wire.RespGetData, nil
}

func (s *Server) doGetAzimuthElevation(ctx context.Context, raw json.RawMessage) (any, wire.ResponseType, error) {
	body, err := decodeBody[wire.PointQueryBody](raw)
	if err != nil {
		return nil, wire.RespError, err
	}

	instant, ok := parseDt(body.Dt)
	if !ok {
		instant = time.Now().UTC()
	}

	sample, found, err := s.reg.GetAzimuthElevation(ctx, body.StationName, body.NoradID, instant)
	if err != nil {
		return nil, wire.RespError, err
	}

	resp := struct {
		Instant   string   `json:"instant"`
		Azimuth   *float64 `json:"azimuth"`
		Elevation *float64 `json:"elevation"`
		Visible   *bool    `json:"visible"`
	}{Instant: instant.Format(dtLayout)}

	if found {
		az, el, vis := sample.AzimuthDeg, sample.ElevDeg, sample.Visible
		resp.Azimuth, resp.Elevation, resp.Visible = &az, &el, &vis
	}

	return resp, wire.RespGetData, nil
}

func (s *Server) doGetFrequencies(ctx context.Context, raw json.RawMessage) (any, wire.ResponseType, error) {
	body, err := decodeBody[wire.PointQueryBody](raw)
	if err != nil {
		return nil, wire.RespError, err
	}

	instant, ok := parseDt(body.Dt)
	if !ok {
		instant = time.Now().UTC()
	}

	sample, found, err := s.reg.GetFrequencies(ctx, body.StationName, body.NoradID, instant)
	if err != nil {
		return nil, wire.RespError, err
	}

	resp := struct {
		Instant    string   `json:"instant"`
		UplinkHz   *float64 `json:"uplink_hz"`
		DownlinkHz *float64 `json:"downlink_hz"`
	}{Instant: instant.Format(dtLayout)}

	if found {
		resp.UplinkHz = sample.UplinkHz
		resp.DownlinkHz = sample.DownlinkHz
	}

	return resp, wire.RespGetData, nil
}

func (s *Server) doGetData(ctx context.Context, raw json.RawMessage) (any, wire.ResponseType, error) {
	body, err := decodeBody[wire.PointQueryBody](raw)
	if err != nil {
		return nil, wire.RespError, err
	}

	if body.Dt == "" {
		data, err := s.reg.GetAllData(body.StationName, body.NoradID)
		if err != nil {
			return nil, wire.RespError, err
		}
		return map[string]any{"samples": data}, wire.RespGetData, nil
	}

	instant, ok := parseDt(body.Dt)
	if !ok {
		instant = time.Now().UTC()
	}

	sample, found, err := s.reg.GetData(ctx, body.StationName, body.NoradID, instant)
	if err != nil {
		return nil, wire.RespError, err
	}
	if !found {
		return map[string]any{"instant": instant.Format(dtLayout)}, wire.RespGetData, nil
	}

	return sample, wire.RespGetData, nil
}

func (s *Server) doGetCommSessionsParams(raw json.RawMessage) (any, wire.ResponseType, error) {
	body, err := decodeBody[wire.GetCommSessionsParamsBody](raw)
	if err != nil {
		return nil, wire.RespError, err
	}

	sessions, err := s.reg.GetCommSessionsParams(body.StationName, body.NoradID)
	if err != nil {
		return nil, wire.RespError, err
	}

	return map[string]any{"sessions": sessions}, wire.RespGetData, nil
}

func (s *Server) doClearGroundStationData(raw json.RawMessage) (any, wire.ResponseType, error) {
	body, err := decodeBody[wire.ClearGroundStationDataBody](raw)
	if err != nil {
		return nil, wire.RespError, err
	}

	if err := s.reg.ClearGroundStationData(body.StationName); err != nil {
		return nil, wire.RespError, err
	}
	return nil, wire.RespConfigure, nil
}
