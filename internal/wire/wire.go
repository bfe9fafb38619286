// Package wire implements the TCP text protocol described in
// SPEC_FULL.md §6.1: a single JSON object per request, decoded into a
// ResponseType-tagged reply. Replies for data-bearing requests are the JSON
// payload followed by one trailing status digit; replies for non-data
// requests are just the digit, itself valid JSON. This keeps the framing
// adapter entirely out of internal/registry, per spec.md §9's
// re-architecture guidance.
package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
)

// MaxFrameBytes bounds a single incoming request frame (§6.1: clients
// size their recv up to this).
const MaxFrameBytes = 2048

// CloseSentinel is the literal (non-JSON) byte sequence a client sends to
// request handler exit.
const CloseSentinel = "CLOSE"

// ResponseType enumerates the status digit appended (data requests) or
// returned alone (non-data requests) on every reply.
type ResponseType int

// ResponseType values, per SPEC_FULL.md §6.1.
const (
	RespNone ResponseType = iota
	RespConfigure
	RespPredict
	RespTleUpdate
	RespSync
	RespRadar
	RespGetData
	RespError
)

// Request is the decoded form of every inbound frame: {"request": name,
// "body": {...}}.
type Request struct {
	Name string          `json:"request"`
	Body json.RawMessage `json:"body"`
}

// Names of every request in the catalog (SPEC_FULL.md §6.1).
const (
	ReqSetupGroundStation       = "setup_ground_station"
	ReqSetupSatellite           = "setup_satellite"
	ReqSetupComm                = "setup_comm"
	ReqSetupNewFrequencies      = "setup_new_frequencies"
	ReqSetupNewTleByStr         = "setup_new_tle_by_str"
	ReqSetupNewTleByFile        = "setup_new_tle_by_file"
	ReqSetupNewTleBySpacetrack  = "setup_new_tle_by_spacetrack"
	ReqUpdateTlesBySpacetrack   = "update_tles_by_spacetrack"
	ReqPredictComm              = "predict_comm"
	ReqGetSetupedStations       = "get_setuped_stations"
	ReqGetStationSatellitesInfo = "get_station_satellites_info"
	ReqGetAzimuthElevation      = "get_azimuth_elevation"
	ReqGetFrequencies           = "get_frequencies"
	ReqGetData                  = "get_data"
	ReqGetCommSessionsParams    = "get_comm_sessions_params"
	ReqClearGroundStationData   = "clear_ground_station_data"
)

// Body payloads, one struct per request kind. Datetimes are ISO 8601
// strings without timezone, interpreted as UTC (spec.md §6.1).

// SetupGroundStationBody is the body of setup_ground_station.
type SetupGroundStationBody struct {
	Longitude   float64 `json:"longitude"`
	Latitude    float64 `json:"latitude"`
	Altitude    float64 `json:"altitude"`
	Elevation   float64 `json:"elevation"`
	StationName string  `json:"station_name"`
}

// SetupSatelliteBody is the body of setup_satellite.
type SetupSatelliteBody struct {
	StationName string   `json:"station_name"`
	NoradID     int      `json:"norad_id"`
	Uplink      *float64 `json:"uplink,omitempty"`
	Downlink    *float64 `json:"downlink,omitempty"`
}

// SetupCommBody is the body of setup_comm.
type SetupCommBody struct {
	StationName string `json:"station_name"`
	NoradID     int    `json:"norad_id"`
}

// SetupNewFrequenciesBody is the body of setup_new_frequencies.
type SetupNewFrequenciesBody struct {
	StationName string  `json:"station_name"`
	NoradID     int     `json:"norad_id"`
	Uplink      float64 `json:"uplink"`
	Downlink    float64 `json:"downlink"`
}

// SetupNewTleByStrBody is the body of setup_new_tle_by_str.
type SetupNewTleByStrBody struct {
	StationName string `json:"station_name"`
	NoradID     int    `json:"norad_id"`
	TleStr      string `json:"tle_str"`
}

// SetupNewTleByFileBody is the body of setup_new_tle_by_file.
type SetupNewTleByFileBody struct {
	StationName   string `json:"station_name"`
	NoradID       int    `json:"norad_id"`
	TleFileName   string `json:"tle_file_name"`
	DefaultFolder string `json:"default_folder"`
}

// SetupNewTleBySpacetrackBody is the body of setup_new_tle_by_spacetrack.
type SetupNewTleBySpacetrackBody struct {
	StationName string `json:"station_name"`
	NoradID     int    `json:"norad_id"`
}

// UpdateTlesBySpacetrackBody is the body of update_tles_by_spacetrack.
type UpdateTlesBySpacetrackBody struct {
	StationName string `json:"station_name"`
	NoradIDs    []int  `json:"norad_ids"`
}

// PredictCommBody is the body of predict_comm. StartPrediction defaults to
// "now" if empty; TimePrediction defaults to 86400s; StepPrediction to 1s.
type PredictCommBody struct {
	StationName     string  `json:"station_name"`
	NoradID         int     `json:"norad_id"`
	StartPrediction string  `json:"start_prediction,omitempty"`
	TimePrediction  float64 `json:"time_prediction,omitempty"`
	StepPrediction  float64 `json:"step_prediction,omitempty"`
}

// GetStationSatellitesInfoBody is the body of get_station_satellites_info.
type GetStationSatellitesInfoBody struct {
	StationName string `json:"station_name"`
}

// PointQueryBody is the shared body shape of get_azimuth_elevation,
// get_frequencies and get_data: station + satellite + optional instant.
type PointQueryBody struct {
	StationName string `json:"station_name"`
	NoradID     int    `json:"norad_id"`
	Dt          string `json:"dt,omitempty"`
}

// GetCommSessionsParamsBody is the body of get_comm_sessions_params.
type GetCommSessionsParamsBody struct {
	StationName string `json:"station_name"`
	NoradID     int    `json:"norad_id"`
}

// ClearGroundStationDataBody is the body of clear_ground_station_data.
type ClearGroundStationDataBody struct {
	StationName string `json:"station_name"`
}

// ReadFrame reads one JSON frame (or the literal CLOSE sentinel) up to
// MaxFrameBytes from r, matching the source's up-to-2048-byte text frame.
// A frame is delimited by a trailing newline, matching how clients
// terminate a single JSON object over a stream socket.
func ReadFrame(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	if len(line) > MaxFrameBytes {
		return "", fmt.Errorf("wire: frame exceeds %d bytes", MaxFrameBytes)
	}
	return line, nil
}

// EncodeDataReply marshals data and appends the single ResponseType digit,
// preserving the source's byte-compatible "data JSON + trailing digit"
// framing (spec.md §6.1, §9 redesign note).
func EncodeDataReply(data any, rt ResponseType) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding data reply: %w", err)
	}
	return append(payload, byte('0'+rt)), nil
}

// EncodeStatusReply encodes a non-data reply: just the status digit as a
// JSON integer.
func EncodeStatusReply(rt ResponseType) []byte {
	return []byte(fmt.Sprintf("%d", int(rt)))
}

// LengthPrefixedFrame is the opt-in alternative framing named in spec.md §9
// ("a clean implementation should... offer an opt-in length-prefixed
// alternative"): a 4-byte big-endian length prefix followed by the payload
// produced by EncodeDataReply/EncodeStatusReply. It is never used unless a
// server is explicitly constructed with WithLengthPrefixedFraming.
func LengthPrefixedFrame(payload []byte) []byte {
	n := len(payload)
	return append([]byte{
		byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n),
	}, payload...)
}
