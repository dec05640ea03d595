package main

import (
	"context"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"acquifer-go/internal/config"
	"acquifer-go/internal/imtcp"
	"acquifer-go/internal/ingest"
	"acquifer-go/internal/metadata"
	"acquifer-go/internal/rawlog"
	"acquifer-go/internal/server"
	"acquifer-go/internal/simulator"
	"acquifer-go/internal/types"
)

// Consecutive poll failures before the IM connection is dropped and redialed.
const maxPollFailures = 3

// cliFlags are the command line flags. Flags given explicitly override the
// config file; debug-rate and ingest-log-every only exist as flags.
type cliFlags struct {
	fs             *flag.FlagSet
	configPath     *string
	port           *int
	imHost         *string
	imPort         *int
	endpoint       *string
	pollInterval   *time.Duration
	variant        *string
	debug          *bool
	debugRate      *float64
	rawLogEnabled  *bool
	rawLogDir      *string
	ingestLogEvery *int
}

func newCLIFlags(fs *flag.FlagSet) *cliFlags {
	def := config.Default()
	return &cliFlags{
		fs:             fs,
		configPath:     fs.String("config", "~/.config/acquifer/im.toml", "Path to the TOML config file"),
		port:           fs.Int("port", def.Port, "HTTP port for the status UI"),
		imHost:         fs.String("im-host", def.IMHost, "IM command port host"),
		imPort:         fs.Int("im-port", def.IMPort, "IM command port"),
		endpoint:       fs.String("endpoint", def.Endpoint, "ZMQ endpoint publishing image filenames"),
		pollInterval:   fs.Duration("poll-interval", def.PollInterval, "IM status polling interval"),
		variant:        fs.String("variant", def.Variant, "Filename layout: auto, IM03 or IM04"),
		debug:          fs.Bool("debug", false, "Run against a simulated IM"),
		debugRate:      fs.Float64("debug-rate", def.DebugRate, "Simulated images per second"),
		rawLogEnabled:  fs.Bool("raw-log", false, "Record IM exchanges and ingest messages to disk"),
		rawLogDir:      fs.String("raw-log-dir", def.RawLogDir, "Directory for raw logs"),
		ingestLogEvery: fs.Int("ingest-log-every", def.IngestLogEvery, "Log every Nth ingest error"),
	}
}

// apply overlays the explicitly set flags on cfg.
func (f *cliFlags) apply(cfg config.AppConfig) config.AppConfig {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "port":
			cfg.Port = *f.port
		case "im-host":
			cfg.IMHost = *f.imHost
		case "im-port":
			cfg.IMPort = *f.imPort
		case "endpoint":
			cfg.Endpoint = *f.endpoint
		case "poll-interval":
			cfg.PollInterval = *f.pollInterval
		case "variant":
			cfg.Variant = *f.variant
		case "raw-log":
			cfg.RawLogEnabled = *f.rawLogEnabled
		case "raw-log-dir":
			cfg.RawLogDir = *f.rawLogDir
		}
	})
	cfg.Debug = *f.debug
	cfg.DebugRate = *f.debugRate
	cfg.IngestLogEvery = *f.ingestLogEvery
	return cfg
}

func main() {
	flags := newCLIFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := config.Load(*flags.configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg = flags.apply(cfg)

	var forced metadata.Variant
	if !strings.EqualFold(cfg.Variant, "auto") {
		if forced, err = metadata.ParseVariant(cfg.Variant); err != nil {
			log.Fatalf("invalid variant: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Debug {
		startSimulator(ctx, &cfg, forced)
	}

	var recorder *rawlog.Writer
	if cfg.RawLogEnabled {
		recorder, err = rawlog.NewWriter(cfg.RawLogDir, "im")
		if err != nil {
			log.Fatalf("failed to start raw log: %v", err)
		}
		log.Printf("raw log: %s", recorder.Path())
		defer func() {
			if err := recorder.Close(); err != nil {
				log.Printf("raw log close failed: %v", err)
			}
		}()
	}

	var statusMu sync.Mutex
	status := map[string]any{
		"im_address":  "",
		"im_version":  "",
		"im_status":   "unknown",
		"im_error":    "",
		"last_image":  "",
		"last_poll":   "",
		"images":      0,
		"debug":       cfg.Debug,
		"endpoint":    cfg.Endpoint,
		"variant":     cfg.Variant,
		"poll_period": cfg.PollInterval.String(),
	}
	statusFn := func() map[string]any {
		statusMu.Lock()
		defer statusMu.Unlock()
		out := make(map[string]any, len(status)+2)
		for k, v := range status {
			out[k] = v
		}
		out["ingest_received"] = ingest.Received()
		out["ingest_decode_failures"] = ingest.DecodeFailures()
		return out
	}

	uiMessages := make(chan any, 64)
	send := func(msg any) {
		select {
		case uiMessages <- msg:
		default:
		}
	}

	go pollIM(ctx, cfg, recorder, func(snap imtcp.Snapshot) {
		statusMu.Lock()
		status["im_version"] = snap.Version
		if snap.Status != "" {
			status["im_status"] = string(snap.Status)
		}
		status["im_error"] = snap.Error
		status["last_poll"] = snap.At.Format(time.RFC3339)
		statusMu.Unlock()
		send(types.StatusMessage(snap))
	}, func(addr string) {
		statusMu.Lock()
		status["im_address"] = addr
		statusMu.Unlock()
	})

	opts := ingest.Options{Variant: forced, LogEvery: cfg.IngestLogEvery}
	if recorder != nil {
		opts.Recorder = recorder
	}
	events, err := ingest.Stream(ctx, cfg.Endpoint, opts)
	if err != nil {
		log.Fatalf("failed to start ingest: %v", err)
	}
	go func() {
		for ev := range events {
			statusMu.Lock()
			status["last_image"] = ev.Filename
			status["images"] = status["images"].(int) + 1
			statusMu.Unlock()
			send(types.EventMessage(ev))
		}
	}()

	log.Printf("Starting status UI at http://localhost:%d\n", cfg.Port)
	if err := server.Run(ctx, cfg, uiMessages, statusFn); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// pollIM keeps a connection to the IM and polls it until ctx is done.
func pollIM(ctx context.Context, cfg config.AppConfig, recorder *rawlog.Writer, update func(imtcp.Snapshot), connected func(string)) {
	var opts []imtcp.Option
	if recorder != nil {
		opts = append(opts, imtcp.WithRecorder(recorder))
	}
	for {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := imtcp.Dial(dialCtx, cfg.IMHost, cfg.IMPort, opts...)
		cancel()
		if err != nil {
			update(imtcp.Snapshot{Error: err.Error(), At: time.Now()})
		} else {
			connected(client.Addr())
			descCtx, cancelDesc := context.WithTimeout(ctx, 2*cfg.PollInterval)
			if desc, err := client.Describe(descCtx); err == nil {
				log.Print(desc)
			}
			cancelDesc()
			pollCtx, stopPoll := context.WithCancel(ctx)
			failures := 0
			imtcp.Poll(pollCtx, timeoutQuerier{client, 2 * cfg.PollInterval}, cfg.PollInterval, func(snap imtcp.Snapshot) {
				update(snap)
				if snap.Error == "" {
					failures = 0
					return
				}
				failures++
				if failures >= maxPollFailures {
					log.Printf("IM at %s not answering: %s", client.Addr(), snap.Error)
					stopPoll()
				}
			})
			stopPoll()
			if n, err := client.RecordErrors(); n > 0 {
				log.Printf("raw log: %d IM exchanges not recorded, last error: %v", n, err)
			}
			_ = client.Close()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.PollInterval):
		}
	}
}

// timeoutQuerier bounds every query so a silent IM cannot stall polling.
type timeoutQuerier struct {
	c       *imtcp.Client
	timeout time.Duration
}

func (q timeoutQuerier) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	return q.c.Version(ctx)
}

func (q timeoutQuerier) Status(ctx context.Context) (imtcp.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	return q.c.Status(ctx)
}

// startSimulator points cfg at a local fake IM and publishes synthetic
// filenames on cfg.Endpoint.
func startSimulator(ctx context.Context, cfg *config.AppConfig, v metadata.Variant) {
	im, err := simulator.NewIMServer("127.0.0.1:0", "simulator")
	if err != nil {
		log.Fatalf("failed to start IM simulator: %v", err)
	}
	im.SetStatus(string(imtcp.StatusBusy))
	go func() {
		<-ctx.Done()
		_ = im.Close()
	}()
	cfg.IMHost, cfg.IMPort = im.Addr()

	if v == 0 {
		v = metadata.IM04
	}
	names := simulator.Filenames(ctx, v, cfg.DebugRate)
	go func() {
		if err := simulator.Publish(ctx, bindEndpoint(cfg.Endpoint), v, names); err != nil {
			log.Printf("simulator publish failed: %v", err)
		}
	}()
	log.Printf("debug mode: simulated IM at %s:%d, filenames on %s", cfg.IMHost, cfg.IMPort, cfg.Endpoint)
}

// bindEndpoint turns a tcp connect endpoint into one that binds all
// interfaces on the same port.
func bindEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "tcp" || u.Port() == "" {
		return endpoint
	}
	return "tcp://*:" + u.Port()
}
