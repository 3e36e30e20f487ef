package protocol_test

import (
	"encoding/json"
	"errors"
	"testing"

	"minefield.gg/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	samples := []string{
		`{"type":"HELLO","protocol_version":"1.0","name":"bot1","capabilities":{"encodings":["ZSTD","RLE"]}}`,
		`{"type":"HELLO","protocol_version":"1.0","name":"","resume_token":"abc"}`,
		`{"type":"CLICK","x":-17,"y":4}`,
		`{"type":"DOUBLE_CLICK","x":0,"y":0}`,
		`{"type":"FLAG","x":2147483647,"y":-2147483648}`,
		`{"type":"UNFLAG","x":1,"y":1}`,
		`{"type":"QUERY","x":-64,"y":-64,"w":128,"h":128}`,
		`{"type":"SUBSCRIBE","protocol_version":"0.2","x":0,"y":0,"w":64,"h":64,"encoding":"RLE"}`,
	}
	for _, s := range samples {
		if _, err := protocol.ValidateClient([]byte(s)); err != nil {
			t.Fatalf("validate %s: %v", s, err)
		}
	}
}

func TestSchemas_ServerMessages(t *testing.T) {
	msgs := []any{
		protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			PlayerID:        "p1",
			ResumeToken:     "r1",
			Encoding:        "RLE",
			WorldParams:     protocol.WorldParams{TickRateHz: 20, ChunkSize: 16, MinesPerChunk: 40},
		},
		protocol.ChunkMsg{Type: protocol.TypeChunk, X: -16, Y: 32, Rev: 3, Encoding: "RLE", Data: "AAE="},
		protocol.RectMsg{Type: protocol.TypeRect, X: 1, Y: 2, W: 1, H: 1, Encoding: "RAW", Data: "QA==", Changed: "AQ=="},
		protocol.FlagMsg{Type: protocol.TypeFlagged, PlayerID: "p1", X: 3, Y: 4},
		protocol.FlagMsg{Type: protocol.TypeUnflagged, PlayerID: "p1", X: 3, Y: 4},
		protocol.PlayerMsg{Type: protocol.TypePlayer, PlayerID: "p1", Name: "a", Points: 17, Connected: true},
		protocol.DisconnectedMsg{Type: protocol.TypeDisconnected, PlayerID: "p1"},
		protocol.NewError(protocol.ErrRateLimit, "slow down"),
	}
	for _, m := range msgs {
		raw, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if _, err := protocol.Validate(raw); err != nil {
			t.Fatalf("validate %s: %v", raw, err)
		}
	}
}

func TestSchemas_RejectMalformed(t *testing.T) {
	bad := []string{
		`{"type":"CLICK","x":1}`,
		`{"type":"CLICK","x":1.5,"y":2}`,
		`{"type":"CLICK","x":"1","y":2}`,
		`{"type":"CLICK","x":1,"y":2,"extra":true}`,
		`{"type":"FLAG","x":4294967296,"y":0}`,
		`{"type":"QUERY","x":0,"y":0,"w":0,"h":10}`,
		`{"type":"QUERY","x":0,"y":0,"w":100000,"h":10}`,
		`{"type":"HELLO","name":"x"}`,
		`{"type":"SUBSCRIBE","protocol_version":"0.2","x":0,"y":0,"w":1,"h":1,"encoding":"GZIP"}`,
		`not json`,
	}
	for _, s := range bad {
		if _, err := protocol.ValidateClient([]byte(s)); err == nil {
			t.Fatalf("expected rejection: %s", s)
		}
	}
}

func TestValidateClient_RejectsServerTypes(t *testing.T) {
	raw := []byte(`{"type":"DISCONNECTED","player_id":"p1"}`)
	if _, err := protocol.Validate(raw); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, err := protocol.ValidateClient(raw); !errors.Is(err, protocol.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if _, err := protocol.ValidateClient([]byte(`{"type":"NOPE"}`)); !errors.Is(err, protocol.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}
