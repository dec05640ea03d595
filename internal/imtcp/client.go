// Package imtcp talks to the IM command port: one TCP connection, fixed
// framed requests and replies terminated by ETX.
package imtcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 6261

	etx = 0x03
	us  = 0x1f

	maxReplySize = 64 * 1024
)

// command is one fixed request. The 4-byte header is sent verbatim as the
// device expects it and is never computed from the payload.
type command struct {
	name    string
	header  [4]byte
	payload []byte
}

var (
	cmdVersion = command{
		name:    "IMVersion",
		header:  [4]byte{0x00, 0x00, 0x00, 0x18},
		payload: []byte("\x02Get\x1fIMVersion\x1f10982031\x03"),
	}
	cmdStatus = command{
		name:    "IMStatus",
		header:  [4]byte{0x00, 0x00, 0x00, 0x17},
		payload: []byte("\x02Get\x1fIMStatus\x1f19487256\x03"),
	}
)

// Status is the state token reported by the IM.
type Status string

const (
	StatusReady Status = "Ready"
	StatusBusy  Status = "Busy"
)

func (s Status) Ready() bool { return s == StatusReady }

// Busy reports whether a script is running on the IM.
func (s Status) Busy() bool { return s == StatusBusy }

// Recorder receives every request/reply exchange as a CBOR encoded Exchange.
type Recorder interface {
	Record(payload []byte) error
}

// Exchange is one request and the raw reply read for it.
type Exchange struct {
	Command  string `cbor:"command" json:"command"`
	Request  []byte `cbor:"request" json:"request"`
	Response []byte `cbor:"response" json:"response"`
	Error    string `cbor:"error,omitempty" json:"error,omitempty"`
	AtNanos  int64  `cbor:"at_ns" json:"at_ns"`
}

// Client holds one TCP connection to the IM command port. Calls are
// blocking request/reply exchanges on that connection; a Client must not be
// used by several goroutines at once. A failed or cancelled call closes the
// connection and later calls return ErrClosed; Dial again to recover.
type Client struct {
	conn net.Conn
	host string
	port int
	rec  Recorder

	recErrs    uint64
	lastRecErr error
}

type Option func(*Client)

func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.rec = r
	}
}

// Dial connects to the IM at host:port. Empty host and zero port select
// 127.0.0.1:6261. There is a single connection attempt.
func Dial(ctx context.Context, host string, port int, opts ...Option) (*Client, error) {
	if host == "" {
		host = DefaultHost
	}
	if port == 0 {
		port = DefaultPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}

	c := &Client{conn: conn, host: host, port: port}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Version returns the IM software version.
func (c *Client) Version(ctx context.Context) (string, error) {
	payload, err := c.query(ctx, cmdVersion)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// Status returns the IM state, "Ready" or "Busy" while a script runs.
func (c *Client) Status(ctx context.Context) (Status, error) {
	payload, err := c.query(ctx, cmdStatus)
	if err != nil {
		return "", err
	}
	return Status(payload), nil
}

// Describe summarizes the instrument in one line.
func (c *Client) Describe(ctx context.Context) (string, error) {
	version, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	status, err := c.Status(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("IM v%s at IP:%s, Port:%d, status:%s", version, c.host, c.port, status), nil
}

func (c *Client) query(ctx context.Context, cmd command) ([]byte, error) {
	if c == nil || c.conn == nil {
		return nil, ErrClosed
	}
	conn := c.conn
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})

	reply, err := c.exchange(cmd)
	interrupted := !stop()
	c.record(cmd, reply, err)

	// After a failed or interrupted exchange the reply may still arrive and
	// would be read by the next call, so the connection is dropped.
	if err != nil || interrupted {
		_ = c.Close()
	} else {
		_ = conn.SetDeadline(time.Time{})
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", cmd.name, ctxErr)
		}
		return nil, err
	}
	return parseReply(cmd.name, reply)
}

func (c *Client) exchange(cmd command) ([]byte, error) {
	if _, err := c.conn.Write(cmd.header[:]); err != nil {
		return nil, fmt.Errorf("%s: send header: %w", cmd.name, err)
	}
	if _, err := c.conn.Write(cmd.payload); err != nil {
		return nil, fmt.Errorf("%s: send payload: %w", cmd.name, err)
	}
	reply, err := readReply(c.conn)
	if err != nil {
		return reply, fmt.Errorf("%s: read reply: %w", cmd.name, err)
	}
	return reply, nil
}

// readReply reads until the reply ends with ETX, the peer closes the
// connection or maxReplySize bytes have arrived.
func readReply(r io.Reader) ([]byte, error) {
	reply := make([]byte, 0, 256)
	chunk := make([]byte, 1024)
	for {
		n, err := r.Read(chunk)
		reply = append(reply, chunk[:n]...)
		if n > 0 && reply[len(reply)-1] == etx {
			return reply, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(reply) > 0 {
				return reply, nil
			}
			return reply, err
		}
		if len(reply) >= maxReplySize {
			return reply, nil
		}
	}
}

// parseReply returns what follows the first unit separator, minus the
// trailing control byte.
func parseReply(name string, reply []byte) ([]byte, error) {
	idx := bytes.IndexByte(reply, us)
	if idx < 0 {
		return nil, &ProtocolError{Command: name, Response: reply, Reason: "missing unit separator"}
	}
	body := reply[idx+1:]
	if len(body) == 0 {
		return nil, &ProtocolError{Command: name, Response: reply, Reason: "missing terminator"}
	}
	body = body[:len(body)-1]
	if !utf8.Valid(body) {
		return nil, &ProtocolError{Command: name, Response: reply, Reason: "payload is not UTF-8"}
	}
	return body, nil
}

func (c *Client) record(cmd command, reply []byte, err error) {
	if c.rec == nil {
		return
	}
	ex := Exchange{
		Command:  cmd.name,
		Request:  append(append([]byte(nil), cmd.header[:]...), cmd.payload...),
		Response: reply,
		AtNanos:  time.Now().UnixNano(),
	}
	if err != nil {
		ex.Error = err.Error()
	}
	payload, mErr := cbor.Marshal(ex)
	if mErr == nil {
		mErr = c.rec.Record(payload)
	}
	if mErr != nil {
		c.recErrs++
		c.lastRecErr = mErr
	}
}

// RecordErrors returns how many exchanges could not be recorded and the last
// such error.
func (c *Client) RecordErrors() (uint64, error) {
	return c.recErrs, c.lastRecErr
}

// DecodeExchange decodes a payload written by a Recorder.
func DecodeExchange(payload []byte) (Exchange, error) {
	var ex Exchange
	if err := cbor.Unmarshal(payload, &ex); err != nil {
		return Exchange{}, fmt.Errorf("decode exchange: %w", err)
	}
	return ex, nil
}
