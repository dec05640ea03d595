package rawlog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Magic opens every raw log file. Records follow as an 8 byte little endian
// unix-nano timestamp, a 4 byte little endian length and the payload.
const Magic = "IMRAWLG1"

const headerSize = 12

var ErrBadMagic = errors.New("rawlog: unexpected magic")

type Writer struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string
}

// NewWriter creates <dir>/<timestamp>_<prefix>.bin.
func NewWriter(dir string, prefix string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	timestamp := time.Now().Format("20060102_150405")
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.bin", timestamp, prefix))
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 64*1024)
	if _, err := w.WriteString(Magic); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: w, path: path}, nil
}

func (r *Writer) Path() string {
	return r.path
}

// Record appends one payload and flushes it. It is safe for concurrent use.
func (r *Writer) Record(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return fmt.Errorf("raw log writer is closed")
	}
	var header [headerSize]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := r.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := r.w.Write(payload); err != nil {
		return err
	}
	return r.w.Flush()
}

func (r *Writer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	if err := r.w.Flush(); err != nil {
		_ = r.f.Close()
		r.w = nil
		return err
	}
	err := r.f.Close()
	r.w = nil
	return err
}

// Entry is one record read back from a raw log.
type Entry struct {
	At      time.Time
	Payload []byte
}

type Reader struct {
	r      io.Reader
	header bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next returns the next record, or io.EOF after the last complete one.
func (r *Reader) Next() (Entry, error) {
	if !r.header {
		magic := make([]byte, len(Magic))
		if _, err := io.ReadFull(r.r, magic); err != nil {
			return Entry{}, fmt.Errorf("read magic: %w", err)
		}
		if string(magic) != Magic {
			return Entry{}, fmt.Errorf("%w %q", ErrBadMagic, magic)
		}
		r.header = true
	}

	var meta [headerSize]byte
	if _, err := io.ReadFull(r.r, meta[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, err
	}
	ts := int64(binary.LittleEndian.Uint64(meta[:8]))
	size := binary.LittleEndian.Uint32(meta[8:12])
	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return Entry{}, fmt.Errorf("read payload: %w", err)
	}
	return Entry{At: time.Unix(0, ts), Payload: payload}, nil
}
