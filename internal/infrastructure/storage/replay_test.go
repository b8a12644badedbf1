package storage

import (
	"bytes"
	"encoding/json"
	"testing"

	"boardgame-server/internal/engine"
)

func sampleSession() *ReplaySession {
	return &ReplaySession{
		GameID:    "dicebattle",
		Seed:      123456789,
		Timestamp: 1700000000,
		Players:   []engine.PlayerID{"p1", "p2"},
		Commands: []engine.Command{
			{Type: "ROLL_DICE", PlayerID: "p1", Payload: json.RawMessage(`{"count":5}`), Timestamp: 1},
			{Type: "ADVANCE_PHASE", PlayerID: "p1", Timestamp: 2},
			{Type: "ATTACK", PlayerID: "p1", Payload: json.RawMessage(`{"targetId":"p2"}`), Timestamp: 3},
		},
	}
}

func TestReplayRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	src := sampleSession()

	if err := writeBinary(&buf, src); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := readBinary(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if got.GameID != src.GameID || got.Seed != src.Seed || got.Timestamp != src.Timestamp {
		t.Errorf("header mismatch: %+v", got)
	}
	if len(got.Players) != 2 || got.Players[0] != "p1" || got.Players[1] != "p2" {
		t.Errorf("players = %v", got.Players)
	}
	if len(got.Commands) != len(src.Commands) {
		t.Fatalf("command count = %d", len(got.Commands))
	}
	for i, cmd := range got.Commands {
		want := src.Commands[i]
		if cmd.Type != want.Type || cmd.PlayerID != want.PlayerID || cmd.Timestamp != want.Timestamp {
			t.Errorf("command %d = %+v, want %+v", i, cmd, want)
		}
		if string(cmd.Payload) != string(want.Payload) {
			t.Errorf("command %d payload = %s", i, cmd.Payload)
		}
	}
}

func TestReplayRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	if err := writeBinary(&buf, sampleSession()); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw := buf.Bytes()
	raw[0] = 'X'

	if _, err := readBinary(bytes.NewReader(raw)); err == nil {
		t.Error("expected invalid magic error")
	}
}

func TestReplaySaveLoadFile(t *testing.T) {
	svc := NewReplayService(t.TempDir())

	path, err := svc.Save(sampleSession())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := svc.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.GameID != "dicebattle" || len(got.Commands) != 3 {
		t.Errorf("loaded = %+v", got)
	}
}
