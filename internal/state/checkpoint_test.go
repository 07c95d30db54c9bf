package state

import (
	"path/filepath"
	"testing"
	"time"
)

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy", "checkpoint.json")

	want := Checkpoint{
		RoundID:   42,
		Outcome:   "landed",
		Signature: "5Qf",
		UpdatedAt: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}
	if err := SaveCheckpoint(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("expected checkpoint to exist")
	}
	if got != want {
		t.Fatalf("got=%+v want=%+v", got, want)
	}
}

func TestLoadCheckpoint_Missing(t *testing.T) {
	_, ok, err := LoadCheckpoint(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for missing file")
	}
}

func TestLoadCheckpoint_EmptyPathIsNoop(t *testing.T) {
	_, ok, err := LoadCheckpoint("")
	if err != nil || ok {
		t.Fatalf("got ok=%v err=%v, want false nil", ok, err)
	}
	if err := SaveCheckpoint("", Checkpoint{RoundID: 1}); err != nil {
		t.Fatalf("save noop: %v", err)
	}
}
