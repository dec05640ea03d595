package main

import (
	"context"
	"flag"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"acquifer-go/internal/config"
	"acquifer-go/internal/imtcp"
	"acquifer-go/internal/simulator"
)

func TestBindEndpoint(t *testing.T) {
	cases := map[string]string{
		"tcp://localhost:31002": "tcp://*:31002",
		"tcp://10.0.0.7:5555":   "tcp://*:5555",
		"inproc://names":        "inproc://names",
		"tcp://localhost":       "tcp://localhost",
	}
	for in, want := range cases {
		if got := bindEndpoint(in); got != want {
			t.Fatalf("bindEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "im.toml")
	if err := os.WriteFile(path, []byte(`
im_host = "10.0.0.7"
im_port = 7000
http_port = 9090
poll_interval = "5s"
variant = "IM03"
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fs := flag.NewFlagSet("im-monitor", flag.ContinueOnError)
	flags := newCLIFlags(fs)
	if err := fs.Parse([]string{"-config", path, "-im-port", "7100", "-variant", "IM04", "-debug"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg, err := config.Load(*flags.configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg = flags.apply(cfg)

	// Set flags win, file values survive unset flags.
	if cfg.IMPort != 7100 || cfg.Variant != "IM04" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.IMHost != "10.0.0.7" || cfg.Port != 9090 || cfg.PollInterval != 5*time.Second {
		t.Fatalf("config file values lost: %+v", cfg)
	}
	if !cfg.Debug || cfg.IngestLogEvery != config.Default().IngestLogEvery {
		t.Fatalf("unexpected flag-only values: %+v", cfg)
	}
}

func TestPollIMRedialsAfterFailures(t *testing.T) {
	first, err := simulator.NewIMServer("127.0.0.1:0", "1.0")
	if err != nil {
		t.Fatalf("NewIMServer: %v", err)
	}
	host, port := first.Addr()

	cfg := config.Default()
	cfg.IMHost = host
	cfg.IMPort = port
	cfg.PollInterval = 20 * time.Millisecond

	connected := make(chan string, 16)
	versions := make(chan string, 256)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		pollIM(ctx, cfg, nil, func(snap imtcp.Snapshot) {
			select {
			case versions <- snap.Version:
			default:
			}
		}, func(addr string) {
			connected <- addr
		})
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitFor := func(what string, ch <-chan string, want string) {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for {
			select {
			case got := <-ch:
				if got == want {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %s %q", what, want)
			}
		}
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	waitFor("connection to", connected, addr)
	waitFor("version", versions, "1.0")

	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	var second *simulator.IMServer
	for i := 0; i < 50; i++ {
		if second, err = simulator.NewIMServer(addr, "2.0"); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("restart IM on %s: %v", addr, err)
	}
	defer second.Close()

	waitFor("reconnection to", connected, addr)
	waitFor("version", versions, "2.0")
}
