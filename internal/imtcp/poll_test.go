package imtcp

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedQuerier struct {
	versionErrs int
	versions    int
	statuses    []Status
}

func (q *scriptedQuerier) Version(context.Context) (string, error) {
	q.versions++
	if q.versionErrs > 0 {
		q.versionErrs--
		return "", errors.New("no reply")
	}
	return "2.1.0.4", nil
}

func (q *scriptedQuerier) Status(context.Context) (Status, error) {
	if len(q.statuses) == 0 {
		return "", errors.New("exhausted")
	}
	s := q.statuses[0]
	q.statuses = q.statuses[1:]
	return s, nil
}

func TestPollRetriesVersionAndReportsStatus(t *testing.T) {
	q := &scriptedQuerier{versionErrs: 1, statuses: []Status{StatusBusy, StatusReady}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var snaps []Snapshot
	done := make(chan struct{})
	go func() {
		defer close(done)
		Poll(ctx, q, time.Millisecond, func(s Snapshot) {
			snaps = append(snaps, s)
			if len(snaps) == 3 {
				cancel()
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Poll did not stop after cancel")
	}

	if len(snaps) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(snaps))
	}
	if snaps[0].Error == "" || snaps[0].Version != "" {
		t.Fatalf("first snapshot should carry the version error: %+v", snaps[0])
	}
	if snaps[1].Version != "2.1.0.4" || snaps[1].Status != StatusBusy {
		t.Fatalf("second snapshot = %+v", snaps[1])
	}
	if snaps[2].Status != StatusReady || snaps[2].Error != "" {
		t.Fatalf("third snapshot = %+v", snaps[2])
	}
	if q.versions != 2 {
		t.Fatalf("Version called %d times, want 2", q.versions)
	}
}

func TestPollIgnoresNilArguments(t *testing.T) {
	Poll(context.Background(), nil, time.Millisecond, func(Snapshot) {
		t.Fatalf("update called without a querier")
	})
	Poll(context.Background(), &scriptedQuerier{}, time.Millisecond, nil)
}
