package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"acquifer-go/internal/imtcp"
	"acquifer-go/internal/ingest"
	"acquifer-go/internal/metadata"
	"acquifer-go/internal/rawlog"
)

const im04Name = "-A001--PO01--LO001--CO6--SL001--PX32500--PW0080--IN0020--TM244--X014580--Y011262--Z209501--T1374031802--WE00001.tif"

func TestDumpClassifiesRecords(t *testing.T) {
	w, err := rawlog.NewWriter(t.TempDir(), "im")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	exchange, err := cbor.Marshal(imtcp.Exchange{
		Command:  "IMStatus",
		Request:  []byte("\x00\x00\x00\x17\x02Get\x1fIMStatus\x1f19487256\x03"),
		Response: []byte("\x02IMStatus\x1fReady\x03"),
	})
	if err != nil {
		t.Fatalf("marshal exchange: %v", err)
	}
	msg, err := ingest.Encode(im04Name, metadata.IM04)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	other, err := cbor.Marshal(map[int]string{7: "x"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, p := range [][]byte{exchange, msg, other, {}} {
		if err := w.Record(p); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(w.Path())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := dump(&buf, rawlog.NewReader(f), 0); err != nil {
		t.Fatalf("dump: %v", err)
	}

	var kinds []string
	var values []map[string]any
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var d struct {
			Kind  string         `json:"kind"`
			Value map[string]any `json:"value"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &d); err != nil {
			t.Fatalf("unmarshal %q: %v", scanner.Text(), err)
		}
		kinds = append(kinds, d.Kind)
		values = append(values, d.Value)
	}
	want := []string{"im_exchange", "ingest_message", "cbor", "empty"}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", kinds, want)
		}
	}
	if values[0]["command"] != "IMStatus" {
		t.Fatalf("unexpected exchange: %v", values[0])
	}
	if values[1]["well_id"] != "A001" {
		t.Fatalf("unexpected ingest record: %v", values[1])
	}
	if values[2]["7"] != "x" {
		t.Fatalf("unexpected generic value: %v", values[2])
	}
}

func TestDumpHonorsLimit(t *testing.T) {
	w, err := rawlog.NewWriter(t.TempDir(), "im")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := w.Record([]byte{0xf6}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	_ = w.Close()
	f, err := os.Open(w.Path())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := dump(&buf, rawlog.NewReader(f), 2); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if n := bytes.Count(buf.Bytes(), []byte("\n")); n != 2 {
		t.Fatalf("dumped %d records, want 2", n)
	}
}
