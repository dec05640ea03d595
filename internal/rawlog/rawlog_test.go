package rawlog

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "im_tcp")
	if err != nil {
		t.Fatalf("NewWriter error: %v", err)
	}
	if !strings.HasSuffix(w.Path(), "_im_tcp.bin") || filepath.Dir(w.Path()) != dir {
		t.Fatalf("unexpected path %q", w.Path())
	}

	payloads := [][]byte{[]byte("first"), {}, []byte("\x02IMStatus\x1fReady\x03")}
	for _, p := range payloads {
		if err := w.Record(p); err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := w.Record([]byte("late")); err == nil {
		t.Fatalf("Record after Close returned nil error")
	}

	f, err := os.Open(w.Path())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	r := NewReader(f)
	for i, want := range payloads {
		entry, err := r.Next()
		if err != nil {
			t.Fatalf("Next %d error: %v", i, err)
		}
		if !bytes.Equal(entry.Payload, want) {
			t.Fatalf("entry %d payload = %q, want %q", i, entry.Payload, want)
		}
		if entry.At.IsZero() {
			t.Fatalf("entry %d has no timestamp", i)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("Next after last record = %v, want io.EOF", err)
	}
}

func TestReaderRejectsForeignFile(t *testing.T) {
	r := NewReader(strings.NewReader("IMGLOG01...."))
	if _, err := r.Next(); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("Next error = %v, want ErrBadMagic", err)
	}
}
