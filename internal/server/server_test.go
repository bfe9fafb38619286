package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/nstitov/orbitrak/internal/propagator"
	"github.com/nstitov/orbitrak/internal/registry"
	"github.com/nstitov/orbitrak/internal/tle"
)

type fakeProvider struct{}

func (fakeProvider) StateAt(*tle.TLE, time.Time) (propagator.State, error) {
	return propagator.State{X: 7000e3, Y: 0, Z: 0, Vx: 0, Vy: 7500, Vz: 0}, nil
}

func startTestServer(t *testing.T) (net.Conn, func()) {
	t.Helper()

	reg := registry.New(fakeProvider{})
	srv := New(reg)

	ctx, cancel := context.WithCancel(context.Background())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv.listener = ln

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.handleConn(ctx, conn)
		}
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	cleanup := func() {
		conn.Close()
		cancel()
		ln.Close()
	}

	return conn, cleanup
}

func sendRequest(t *testing.T, conn net.Conn, name string, body any) string {
	t.Helper()

	req := map[string]any{"request": name, "body": body}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	if _, err := conn.Write(append(data, '\n')); err != nil {
		t.Fatalf("write request: %v", err)
	}

	// Replies carry no trailing newline (the wire protocol is a bare JSON
	// payload plus a status digit, see internal/wire), so read whatever the
	// peer has written rather than scanning for a delimiter that never
	// arrives.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 8192)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	return string(buf[:n])
}

func TestSetupGroundStationReply(t *testing.T) {
	conn, cleanup := startTestServer(t)
	defer cleanup()

	reply := sendRequest(t, conn, "setup_ground_station", map[string]any{
		"longitude": 50.17763, "latitude": 53.21204, "altitude": 137.0,
		"elevation": 0.0, "station_name": "Samara",
	})

	if reply != "1" {
		t.Errorf("reply = %q, want %q (Configure)", reply, "1")
	}
}

func TestUnknownRequestReturnsNone(t *testing.T) {
	conn, cleanup := startTestServer(t)
	defer cleanup()

	reply := sendRequest(t, conn, "frobnicate", map[string]any{})
	if reply != "0" {
		t.Errorf("reply = %q, want %q (None)", reply, "0")
	}
}

func TestSetupSatelliteMissingStationReturnsError(t *testing.T) {
	conn, cleanup := startTestServer(t)
	defer cleanup()

	reply := sendRequest(t, conn, "setup_satellite", map[string]any{
		"station_name": "Nowhere", "norad_id": 1,
	})
	if reply != "7" {
		t.Errorf("reply = %q, want %q (Error)", reply, "7")
	}
}

// S1: setup then query without prediction returns GetData with null fields.
func TestGetAzimuthElevationWithoutPredictionReturnsNullFields(t *testing.T) {
	conn, cleanup := startTestServer(t)
	defer cleanup()

	sendRequest(t, conn, "setup_ground_station", map[string]any{
		"longitude": 50.17763, "latitude": 53.21204, "altitude": 137.0,
		"elevation": 0.0, "station_name": "Samara",
	})
	sendRequest(t, conn, "setup_satellite", map[string]any{
		"station_name": "Samara", "norad_id": 57173,
		"uplink": 437398600.0, "downlink": 437398600.0,
	})
	sendRequest(t, conn, "setup_comm", map[string]any{
		"station_name": "Samara", "norad_id": 57173,
	})

	reply := sendRequest(t, conn, "get_azimuth_elevation", map[string]any{
		"station_name": "Samara", "norad_id": 57173,
	})

	if len(reply) == 0 || reply[len(reply)-1] != '6' {
		t.Fatalf("reply = %q, expected trailing GetData digit '6'", reply)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(reply[:len(reply)-1]), &decoded); err != nil {
		t.Fatalf("decoding GetData payload: %v", err)
	}
	if decoded["instant"] == nil {
		t.Error("expected instant to be echoed back")
	}
}

func TestCloseSentinelEndsConnection(t *testing.T) {
	conn, cleanup := startTestServer(t)
	defer cleanup()

	if _, err := fmt.Fprintf(conn, "CLOSE\n"); err != nil {
		t.Fatalf("write CLOSE: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	if n != 0 || err == nil {
		t.Errorf("expected EOF after CLOSE, got n=%d err=%v", n, err)
	}
}
