package diaglog

import (
	"fmt"
	"path/filepath"
	"testing"
)

func TestMemoryRecorderNewestFirst(t *testing.T) {
	r := NewMemoryRecorder(8)
	for i := 0; i < 3; i++ {
		r.Record(Diagnostic{ConversationID: "c1", Stage: "marker", Message: fmt.Sprintf("m%d", i)})
	}

	diags, err := r.List("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(diags) != 3 {
		t.Fatalf("expected 3 diagnostics, got %d", len(diags))
	}
	if diags[0].Message != "m2" || diags[2].Message != "m0" {
		t.Errorf("order %v", diags)
	}
	for _, d := range diags {
		if d.ID == "" || d.Timestamp.IsZero() {
			t.Errorf("missing defaults: %+v", d)
		}
	}
}

func TestMemoryRecorderRingOverwrite(t *testing.T) {
	r := NewMemoryRecorder(2)
	for i := 0; i < 5; i++ {
		r.Record(Diagnostic{Stage: "envelope", Message: fmt.Sprintf("m%d", i)})
	}

	diags, _ := r.List("", 0)
	if len(diags) != 2 {
		t.Fatalf("expected ring capacity 2, got %d", len(diags))
	}
	if diags[0].Message != "m4" || diags[1].Message != "m3" {
		t.Errorf("ring kept %v", diags)
	}
}

func TestMemoryRecorderConversationFilter(t *testing.T) {
	r := NewMemoryRecorder(8)
	r.Record(Diagnostic{ConversationID: "a", Stage: "marker", Message: "one"})
	r.Record(Diagnostic{ConversationID: "b", Stage: "marker", Message: "two"})

	diags, _ := r.List("a", 0)
	if len(diags) != 1 || diags[0].Message != "one" {
		t.Errorf("filtered %v", diags)
	}
}

func TestSinkAdapterTagsConversation(t *testing.T) {
	r := NewMemoryRecorder(8)
	a := SinkAdapter{ConversationID: "c9", Recorder: r}
	a.RecordDiagnostic("marker", "dropped", "raw line")

	diags, _ := r.List("c9", 0)
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(diags))
	}
	if diags[0].Stage != "marker" || diags[0].Line != "raw line" {
		t.Errorf("diagnostic %+v", diags[0])
	}
}

func TestSinkAdapterNilRecorder(t *testing.T) {
	var a SinkAdapter
	// Must not panic.
	a.RecordDiagnostic("marker", "dropped", "")
}

func TestSQLiteJournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diags.db")
	j, err := OpenSQLiteJournal(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	j.Record(Diagnostic{ConversationID: "c1", Stage: "envelope", Message: "skipped", Line: "junk"})
	j.Record(Diagnostic{ConversationID: "c2", Stage: "marker", Message: "dropped"})

	all, err := j.List("", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(all))
	}

	filtered, err := j.List("c1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].Line != "junk" {
		t.Errorf("filtered %+v", filtered)
	}
}
