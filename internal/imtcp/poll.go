package imtcp

import (
	"context"
	"time"
)

// Querier is the part of *Client used by Poll.
type Querier interface {
	Version(ctx context.Context) (string, error)
	Status(ctx context.Context) (Status, error)
}

var _ Querier = (*Client)(nil)

// Snapshot is the result of one poll.
type Snapshot struct {
	Version string    `json:"version"`
	Status  Status    `json:"status"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Poll queries the IM status every interval until ctx is done and passes
// each result to update. The version is queried until it succeeds once.
func Poll(ctx context.Context, q Querier, interval time.Duration, update func(Snapshot)) {
	if q == nil || update == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var version string
	for {
		snap := Snapshot{At: time.Now()}
		if version == "" {
			v, err := q.Version(ctx)
			if err != nil {
				snap.Error = err.Error()
			}
			version = v
		}
		snap.Version = version
		if snap.Error == "" {
			status, err := q.Status(ctx)
			if err != nil {
				snap.Error = err.Error()
			}
			snap.Status = status
		}
		if ctx.Err() != nil {
			return
		}
		update(snap)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
