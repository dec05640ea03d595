package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/pebbe/zmq4"

	"acquifer-go/internal/ingest"
	"acquifer-go/internal/metadata"
)

// Publish binds a PUSH socket to endpoint and sends every name as an ingest
// message until names is closed or ctx is done.
func Publish(ctx context.Context, endpoint string, v metadata.Variant, names <-chan string) error {
	socket, err := zmq4.NewSocket(zmq4.PUSH)
	if err != nil {
		return err
	}
	defer socket.Close()
	if err := socket.SetLinger(0); err != nil {
		return err
	}
	if err := socket.SetSndtimeo(time.Second); err != nil {
		return err
	}
	if err := socket.Bind(endpoint); err != nil {
		return fmt.Errorf("bind %s: %w", endpoint, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case name, ok := <-names:
			if !ok {
				return nil
			}
			msg, err := ingest.Encode(name, v)
			if err != nil {
				return err
			}
			// Messages are dropped while no consumer is connected.
			_, _ = socket.SendBytes(msg, 0)
		}
	}
}
