package simulator

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"log"
	"net"
	"sync"
)

// IMServer answers IMVersion and IMStatus on a TCP port the way the IM
// command port does.
type IMServer struct {
	ln      net.Listener
	version string

	mu     sync.Mutex
	status string
	closed bool
	conns  map[net.Conn]struct{}
	wg     sync.WaitGroup
}

// NewIMServer listens on addr, e.g. "127.0.0.1:0".
func NewIMServer(addr, version string) (*IMServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &IMServer{
		ln:      ln,
		version: version,
		status:  "Ready",
		conns:   make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// Addr returns the host and port the server listens on.
func (s *IMServer) Addr() (string, int) {
	tcp := s.ln.Addr().(*net.TCPAddr)
	return tcp.IP.String(), tcp.Port
}

func (s *IMServer) SetStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *IMServer) Close() error {
	err := s.ln.Close()
	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

func (s *IMServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *IMServer) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	var header [4]byte
	for {
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Printf("im simulator: read header: %v", err)
			}
			return
		}
		payload := make([]byte, binary.BigEndian.Uint32(header[:]))
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}
		reply := s.reply(payload)
		if reply == nil {
			log.Printf("im simulator: unknown command %q", payload)
			return
		}
		if _, err := conn.Write(reply); err != nil {
			return
		}
	}
}

func (s *IMServer) reply(payload []byte) []byte {
	fields := bytes.Split(bytes.Trim(payload, "\x02\x03"), []byte{0x1f})
	if len(fields) < 2 || string(fields[0]) != "Get" {
		return nil
	}
	var value string
	switch string(fields[1]) {
	case "IMVersion":
		value = s.version
	case "IMStatus":
		s.mu.Lock()
		value = s.status
		s.mu.Unlock()
	default:
		return nil
	}
	return []byte("\x02" + string(fields[1]) + "\x1f" + value + "\x03")
}
