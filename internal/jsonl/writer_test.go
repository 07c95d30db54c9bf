package jsonl

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriterAppendsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	w := New(path)
	if w == nil {
		t.Fatalf("New returned nil for non-empty path")
	}
	defer w.Close()

	type rec struct {
		Round uint64 `json:"round"`
		Event string `json:"event"`
	}
	if err := w.Write(rec{Round: 1, Event: "commit"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(rec{Round: 2, Event: "skip"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var got []rec
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r rec
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("line decode: %v", err)
		}
		got = append(got, r)
	}
	if len(got) != 2 || got[0].Round != 1 || got[1].Event != "skip" {
		t.Fatalf("records mismatch: %+v", got)
	}
}

func TestNilWriterIsNoop(t *testing.T) {
	var w *Writer
	if err := w.Write(struct{}{}); err != nil {
		t.Fatalf("nil write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
	if New("  ") != nil {
		t.Fatalf("blank path should return nil writer")
	}
}
