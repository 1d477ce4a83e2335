package tag

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func testMirror(t *testing.T) *Mirror {
	t.Helper()
	return NewMirror(filepath.Join(t.TempDir(), "known_tags.json"))
}

func TestMirror_MissingFileReadsEmpty(t *testing.T) {
	m := testMirror(t)

	entries, err := m.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Read() on missing file = %v, want empty", entries)
	}
}

func TestMirror_RoundTrip(t *testing.T) {
	m := testMirror(t)

	first := map[string]MirrorEntry{
		"E1AABBCCDD": {Alias: "Dab", AliasGroup: "male_tree", Status: "active"},
	}
	if err := m.Write(first); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	second := map[string]MirrorEntry{
		"E1AABBCCDD": {Alias: "Jesion", AliasGroup: "male_tree", Status: "active"},
		"E2AABBCCDD": {Alias: "Jagoda", AliasGroup: "female_fruit", RoomNumber: "12", Status: "inactive"},
	}
	if err := m.Write(second); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Read() returned %d entries, want 2", len(got))
	}
	if got["E1AABBCCDD"].Alias != "Jesion" {
		t.Errorf("entry overwritten incorrectly: %+v", got["E1AABBCCDD"])
	}
	if got["E2AABBCCDD"].RoomNumber != "12" || got["E2AABBCCDD"].Status != "inactive" {
		t.Errorf("second entry = %+v", got["E2AABBCCDD"])
	}
}

func TestMirror_MalformedFileReadsEmpty(t *testing.T) {
	m := testMirror(t)

	if err := os.WriteFile(m.Path(), []byte("{ this is not json"), 0o640); err != nil {
		t.Fatalf("writing malformed file: %v", err)
	}

	entries, err := m.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("malformed mirror should read as empty, got %v", entries)
	}
}

func TestMirror_WriteCreatesLockSidecar(t *testing.T) {
	m := testMirror(t)

	if err := m.Write(map[string]MirrorEntry{}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if _, err := os.Stat(m.Path() + ".lock"); err != nil {
		t.Errorf("sidecar lock file should exist: %v", err)
	}
}

func TestMirror_FileIsValidJSONObject(t *testing.T) {
	m := testMirror(t)

	want := map[string]MirrorEntry{
		"E2000017221101441890F1AB": {Alias: "Dab", AliasGroup: "male_tree", Notes: "gate reader", Status: "active"},
	}
	if err := m.Write(want); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// The on-disk format is a plain top-level object keyed by EPC; the
	// bridge parses it with no knowledge of this package.
	raw, err := os.ReadFile(m.Path())
	if err != nil {
		t.Fatalf("reading mirror file: %v", err)
	}
	var generic map[string]map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("mirror file is not a JSON object: %v", err)
	}
	entry := generic["E2000017221101441890F1AB"]
	for _, field := range []string{"alias", "alias_group", "room_number", "notes", "status"} {
		if _, ok := entry[field]; !ok {
			t.Errorf("mirror entry missing field %q: %v", field, entry)
		}
	}
}

func TestMirror_ConcurrentWritersNeverInterleave(t *testing.T) {
	m := testMirror(t)

	payloads := []map[string]MirrorEntry{
		{"E1": {Alias: "A", Status: "active"}},
		{"E1": {Alias: "B", Status: "active"}, "E2": {Alias: "C", Status: "active"}},
	}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(p map[string]MirrorEntry) {
			defer wg.Done()
			if err := m.Write(p); err != nil {
				t.Errorf("Write() error = %v", err)
			}
		}(payloads[i%2])
	}
	wg.Wait()

	// The survivor must be exactly one of the payloads, never a blend.
	got, err := m.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	switch len(got) {
	case 1:
		if got["E1"].Alias != "A" {
			t.Errorf("one-entry document should be the first payload, got %v", got)
		}
	case 2:
		if got["E1"].Alias != "B" || got["E2"].Alias != "C" {
			t.Errorf("two-entry document should be the second payload, got %v", got)
		}
	default:
		t.Errorf("mirror holds %d entries, want exactly one payload", len(got))
	}
}
