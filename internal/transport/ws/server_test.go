package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"minefield.gg/internal/protocol"
	"minefield.gg/internal/sim/tuning"
	"minefield.gg/internal/sim/world"
)

func startServer(t *testing.T, limits tuning.RateLimits) string {
	t.Helper()
	w, err := world.New(world.WorldConfig{TickRateHz: 100, BoundaryR: 20, MinesPerChunk: 0}, nil)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()

	s := NewServer(w, nil)
	s.SetRateLimits(limits)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil reads messages until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		base, _ := protocol.DecodeBase(b)
		if base.Type == typ {
			return b
		}
	}
}

func hello(t *testing.T, conn *websocket.Conn, token string) protocol.WelcomeMsg {
	t.Helper()
	send(t, conn, protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Name:            "tester",
		ResumeToken:     token,
		Capabilities:    protocol.HelloCapabilities{Encodings: []string{"ZSTD", "RLE"}},
	})
	var wel protocol.WelcomeMsg
	if err := json.Unmarshal(readUntil(t, conn, protocol.TypeWelcome), &wel); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	return wel
}

func TestHandshakeAndClick(t *testing.T) {
	url := startServer(t, tuning.Defaults().RateLimits)
	conn := dial(t, url)
	wel := hello(t, conn, "")
	if wel.PlayerID == "" || wel.Encoding != "ZSTD" {
		t.Fatalf("welcome: %+v", wel)
	}

	send(t, conn, protocol.QueryMsg{Type: protocol.TypeQuery, X: -20, Y: -20, W: 41, H: 41})
	send(t, conn, protocol.ActionMsg{Type: protocol.TypeClick, X: 0, Y: 0})

	var rm protocol.RectMsg
	if err := json.Unmarshal(readUntil(t, conn, protocol.TypeRect), &rm); err != nil {
		t.Fatalf("rect: %v", err)
	}
	if rm.PlayerID != wel.PlayerID || rm.W != 41 || rm.Encoding != "ZSTD" {
		t.Fatalf("rect: %+v", rm)
	}
}

func TestRejectsMalformedMessages(t *testing.T) {
	url := startServer(t, tuning.Defaults().RateLimits)
	conn := dial(t, url)
	hello(t, conn, "")

	send(t, conn, map[string]any{"type": "CLICK", "x": "left", "y": 0})
	var em protocol.ErrorMsg
	_ = json.Unmarshal(readUntil(t, conn, protocol.TypeError), &em)
	if em.Code != protocol.ErrBadRequest {
		t.Fatalf("code=%s", em.Code)
	}

	send(t, conn, map[string]any{"type": "QUERY", "x": 0, "y": 0, "w": 0, "h": 10})
	_ = json.Unmarshal(readUntil(t, conn, protocol.TypeError), &em)
	if em.Code != protocol.ErrBadRequest {
		t.Fatalf("code=%s", em.Code)
	}
}

func TestRateLimit(t *testing.T) {
	url := startServer(t, tuning.RateLimits{ActionsPerSec: 0.01, ActionBurst: 1})
	conn := dial(t, url)
	hello(t, conn, "")

	// Flags on absent chunks are silent no-ops, so the only ERROR is the limiter's.
	send(t, conn, protocol.ActionMsg{Type: protocol.TypeFlag, X: 1, Y: 1})
	send(t, conn, protocol.ActionMsg{Type: protocol.TypeFlag, X: 1, Y: 1})
	var em protocol.ErrorMsg
	_ = json.Unmarshal(readUntil(t, conn, protocol.TypeError), &em)
	if em.Code != protocol.ErrRateLimit {
		t.Fatalf("code=%s", em.Code)
	}
}

func TestBadVersionAndResume(t *testing.T) {
	url := startServer(t, tuning.Defaults().RateLimits)

	bad := dial(t, url)
	send(t, bad, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.0", Name: "x"})
	var em protocol.ErrorMsg
	_ = json.Unmarshal(readUntil(t, bad, protocol.TypeError), &em)
	if em.Code != protocol.ErrProtoVersion {
		t.Fatalf("code=%s", em.Code)
	}

	first := dial(t, url)
	wel := hello(t, first, "")
	_ = first.Close()

	second := dial(t, url)
	again := hello(t, second, wel.ResumeToken)
	if again.PlayerID != wel.PlayerID {
		t.Fatalf("resume: got %s want %s", again.PlayerID, wel.PlayerID)
	}
}
