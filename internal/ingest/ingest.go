package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"acquifer-go/internal/metadata"
	"acquifer-go/internal/types"
)

// Message is the CBOR notification sent for every image the IM writes:
// { "type": "image", "filename": <string>, "variant": "IM03"|"IM04" }.
// Variant is optional; it is detected from the filename when absent.
type Message struct {
	Type     string `cbor:"type"`
	Filename string `cbor:"filename"`
	Variant  string `cbor:"variant,omitempty"`
}

var ErrNotImage = errors.New("not an image message")

// RawRecorder receives every message as it came off the socket.
type RawRecorder interface {
	Record(payload []byte) error
}

type Options struct {
	// Variant forces a filename layout; zero detects it per message.
	Variant  metadata.Variant
	LogEvery int
	Recorder RawRecorder
}

var (
	received       atomic.Uint64
	decodeFailures atomic.Uint64
)

// Received returns the number of messages read from any stream.
func Received() uint64 { return received.Load() }

// DecodeFailures returns the number of messages that were skipped.
func DecodeFailures() uint64 { return decodeFailures.Load() }

// Stream connects a PULL socket to endpoint and emits one Event per image
// message. The channel is closed when ctx is done.
func Stream(ctx context.Context, endpoint string, opts Options) (<-chan types.Event, error) {
	if opts.LogEvery < 1 {
		opts.LogEvery = 1
	}
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, err
	}
	// Bounded receive so cancellation is noticed without a message.
	if err := socket.SetRcvtimeo(250 * time.Millisecond); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("connect %s: %w", endpoint, err)
	}

	out := make(chan types.Event, 128)
	go func() {
		defer close(out)
		defer socket.Close()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := socket.RecvBytes(0)
			if err != nil {
				if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
					continue
				}
				logEveryN(opts.LogEvery, "ingest recv error: %v", err)
				continue
			}
			received.Add(1)
			if opts.Recorder != nil {
				if err := opts.Recorder.Record(msg); err != nil {
					logEveryN(opts.LogEvery, "ingest raw log error: %v", err)
				}
			}

			ev, err := Decode(msg, opts.Variant)
			if err != nil {
				decodeFailures.Add(1)
				logEveryN(opts.LogEvery, "ingest skipped message: %v", err)
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- ev:
			}
		}
	}()

	return out, nil
}

// Decode turns one CBOR message into an Event. A non-zero v overrides the
// variant named in the message.
func Decode(msg []byte, v metadata.Variant) (types.Event, error) {
	var m Message
	if err := cbor.Unmarshal(msg, &m); err != nil {
		return types.Event{}, fmt.Errorf("CBOR decode: %w", err)
	}
	if m.Type != "image" {
		return types.Event{}, fmt.Errorf("%w: type %q", ErrNotImage, m.Type)
	}
	if v == 0 && strings.TrimSpace(m.Variant) != "" {
		parsed, err := metadata.ParseVariant(m.Variant)
		if err != nil {
			return types.Event{}, err
		}
		v = parsed
	}
	return FromFilename(m.Filename, v)
}

// FromFilename decodes name into an Event, detecting the variant when v is
// zero.
func FromFilename(name string, v metadata.Variant) (types.Event, error) {
	var (
		rec metadata.Record
		err error
	)
	if v == 0 {
		rec, err = metadata.Decode(name)
	} else {
		var d *metadata.Decoder
		d, err = metadata.NewDecoder(v)
		if err == nil {
			rec, err = d.Decode(name)
		}
	}
	if err != nil {
		return types.Event{}, err
	}
	return types.Event{Filename: name, Record: rec, ReceivedAt: time.Now()}, nil
}

// Encode builds the message Decode expects.
func Encode(name string, v metadata.Variant) ([]byte, error) {
	m := Message{Type: "image", Filename: name}
	if v != 0 {
		m.Variant = v.String()
	}
	return cbor.Marshal(m)
}

var logCounter atomic.Uint64

func logEveryN(n int, format string, args ...any) {
	if logCounter.Add(1)%uint64(n) == 0 {
		log.Printf(format, args...)
	}
}
