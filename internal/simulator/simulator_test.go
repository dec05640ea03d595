package simulator

import (
	"context"
	"strconv"
	"testing"
	"time"

	"acquifer-go/internal/imtcp"
	"acquifer-go/internal/ingest"
	"acquifer-go/internal/metadata"
)

func TestFilenamesDecode(t *testing.T) {
	for _, v := range []metadata.Variant{metadata.IM03, metadata.IM04} {
		ctx, cancel := context.WithCancel(context.Background())
		names := Filenames(ctx, v, 1000)

		var recs []metadata.Record
		for len(recs) < 4 {
			name := <-names
			d, err := metadata.NewDecoder(v)
			if err != nil {
				t.Fatalf("NewDecoder: %v", err)
			}
			rec, err := d.Decode(name)
			if err != nil {
				t.Fatalf("%s: decode %q: %v", v, name, err)
			}
			detected, err := metadata.DetectVariant(name)
			if err != nil || detected != v {
				t.Fatalf("DetectVariant(%q) = %v, %v", name, detected, err)
			}
			recs = append(recs, rec)
		}
		cancel()
		for range names {
		}

		wantChannels := []int{1, 3, 5, 1}
		for i, rec := range recs {
			if rec.ChannelIndex != wantChannels[i] {
				t.Fatalf("%s: image %d channel = %d, want %d", v, i, rec.ChannelIndex, wantChannels[i])
			}
			if rec.Magnification != 4 || rec.NumericalAperture != 0.13 {
				t.Fatalf("%s: unexpected objective %+v", v, rec.Objective())
			}
		}
		if recs[0].WellID != "A001" || recs[3].WellID != "A002" || recs[3].WellIndex != 2 {
			t.Fatalf("%s: unexpected wells %q %q", v, recs[0].WellID, recs[3].WellID)
		}
	}
}

func TestRecordWalksPlateInSnakeOrder(t *testing.T) {
	at := time.Unix(1375404533, 0)
	// Image 12*3 is the first of well 13, the last column of row B.
	rec := Record(12*3, 1, at)
	if rec.WellRow != 2 || rec.WellColumn != 12 || rec.WellIndex != 13 {
		t.Fatalf("unexpected well: row %d col %d index %d", rec.WellRow, rec.WellColumn, rec.WellIndex)
	}
	name, err := metadata.Format(metadata.IM03, rec)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	got, err := metadata.Decode(name)
	if err != nil {
		t.Fatalf("Decode(%q): %v", name, err)
	}
	if got.WellID != "B012" || got.Time != at.Unix() {
		t.Fatalf("unexpected round trip: %+v", got)
	}
	if got.Stage.X != 113.38 || got.Stage.Y != 20.24 {
		t.Fatalf("unexpected stage position: %+v", got.Stage)
	}
}

func TestIMServerAnswersClient(t *testing.T) {
	srv, err := NewIMServer("127.0.0.1:0", "2.1.0.4")
	if err != nil {
		t.Fatalf("NewIMServer: %v", err)
	}
	defer srv.Close()
	host, port := srv.Addr()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := imtcp.Dial(ctx, host, port)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	desc, err := client.Describe(ctx)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	want := "IM v2.1.0.4 at IP:127.0.0.1, Port:" + strconv.Itoa(port) + ", status:Ready"
	if desc != want {
		t.Fatalf("Describe = %q, want %q", desc, want)
	}

	srv.SetStatus("Busy")
	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Busy() {
		t.Fatalf("Status = %q, want Busy", status)
	}
}

func TestPublishFeedsIngest(t *testing.T) {
	const endpoint = "inproc://simulator-publish-test"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	names := make(chan string)
	published := make(chan error, 1)
	go func() { published <- Publish(ctx, endpoint, metadata.IM04, names) }()
	time.Sleep(50 * time.Millisecond)

	events, err := ingest.Stream(ctx, endpoint, ingest.Options{})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	name, err := metadata.Format(metadata.IM04, Record(0, 1, time.Unix(1374031802, 0)))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case ev := <-events:
			if ev.Filename != name || ev.Record.Variant != "IM04" {
				t.Fatalf("unexpected event %+v", ev)
			}
			close(names)
			if err := <-published; err != nil {
				t.Fatalf("Publish: %v", err)
			}
			return
		case <-ticker.C:
			select {
			case names <- name:
			default:
			}
		case <-ctx.Done():
			t.Fatalf("no event received")
		}
	}
}
