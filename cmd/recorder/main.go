// Package main provides the recorder CLI entrypoint.
//
// Usage:
//
//	recorder run --config recorder.yaml
//	recorder status <device-id> <recording-id>
//
// Exit codes (§6.4):
//   - 0: clean shutdown
//   - 1: fatal config error
//   - 2: backend initialization failure
//   - 3: bus session failure
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/coscene-io/topicrecorder/bus"
	"github.com/coscene-io/topicrecorder/buffer"
	"github.com/coscene-io/topicrecorder/config"
	"github.com/coscene-io/topicrecorder/control"
	"github.com/coscene-io/topicrecorder/flush"
	"github.com/coscene-io/topicrecorder/metrics"
	"github.com/coscene-io/topicrecorder/rlog"
	"github.com/coscene-io/topicrecorder/serializer"
	"github.com/coscene-io/topicrecorder/session"
	"github.com/coscene-io/topicrecorder/storage"
)

// Exit codes per §6.4.
const (
	exitSuccess      = 0
	exitConfigError  = 1
	exitBackendError = 2
	exitBusError     = 3
)

func main() {
	app := &cli.App{
		Name:    "recorder",
		Usage:   "Multi-topic pub/sub data recorder",
		Version: "0.1.0",
		Commands: []*cli.Command{
			runCommand(),
			statusCommand(),
		},
		ExitErrHandler: exitErrHandler,
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(exitBusError)
	}
}

// exitErrHandler respects cli.ExitCoder so individual actions can choose
// their own exit code instead of always failing generically.
func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitBusError)
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start the recorder process: registry, bus, backend, control interface",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Usage:    "Path to recorder.yaml",
				Required: true,
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("config load failed: %v", err), exitConfigError)
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), exitConfigError)
	}

	logger := rlog.New(cfg.Logging.RlogLevel(), cfg.Logging.RlogFormat())
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("signal received, shutting down", nil)
		cancel()
	}()

	backend, err := buildBackend(ctx, cfg.Storage)
	if err != nil {
		return cli.Exit(fmt.Sprintf("backend init failed: %v", err), exitBackendError)
	}
	if err := backend.Initialize(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("backend init failed: %v", err), exitBackendError)
	}

	collector := metrics.NewCollector(backend.BackendType(), cfg.Bus.Mode)
	instrumented := storage.NewInstrumentedBackend(backend, collector)

	schemaMatcher, err := serializer.NewSchemaMatcher(cfg.Schema.PerTopic)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid schema config: %v", err), exitConfigError)
	}
	ser := serializer.New(schemaMatcher)

	queue := flush.NewQueue(cfg.Workers.QueueCapacity)

	busClient, err := bus.NewRedisBus(bus.Config{URL: cfg.Bus.URL, Timeout: cfg.Bus.Timeout.Duration})
	if err != nil {
		return cli.Exit(fmt.Sprintf("bus connect failed: %v", err), exitBusError)
	}
	defer func() { _ = busClient.Close() }()

	registry := session.NewRegistry(busClient, queue, instrumented, collector, logger)

	pool := flush.NewWorkerPool(
		flush.WorkerPoolConfig{Workers: cfg.Workers.FlushWorkers, MaxRetries: storage.DefaultMaxRetries},
		queue, instrumented, ser, statsRouter{registry: registry}, collector, logger,
	)
	pool.Start(ctx)

	policy := buffer.Policy{
		MaxBytes:    cfg.FlushPolicy.MaxBufferSizeBytes,
		MaxDuration: cfg.FlushPolicy.MaxBufferDurationSecond.Duration,
		MinSamples:  cfg.FlushPolicy.MinSamplesPerFlush,
	}

	keyPrefix := cfg.Control.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "recorder/control"
	}
	statusKey := cfg.Control.StatusKey
	if statusKey == "" {
		statusKey = "recorder/status"
	}

	ctrl := control.New(registry, policy, cfg.Control.BucketName, cfg.Control.TimeoutSeconds.Duration)

	controlQ, err := busClient.RegisterQueryable(ctx, keyPrefix+"/*", func(qctx context.Context, key string, request []byte) ([]byte, error) {
		deviceID := trailingSegment(key)
		return ctrl.HandleControl(qctx, deviceID, request), nil
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("control queryable registration failed: %v", err), exitBusError)
	}
	defer func() { _ = controlQ.Close() }()

	statusQ, err := busClient.RegisterQueryable(ctx, statusKey+"/*", func(_ context.Context, key string, _ []byte) ([]byte, error) {
		recordingID := trailingSegment(key)
		return ctrl.HandleStatus(recordingID), nil
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("status queryable registration failed: %v", err), exitBusError)
	}
	defer func() { _ = statusQ.Close() }()

	logger.Info("recorder started", map[string]any{"storage_backend": cfg.Storage.Backend})

	<-ctx.Done()
	pool.Wait()
	return cli.Exit("", exitSuccess)
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Query a recording's status over the control bus",
		ArgsUsage: "<device-id> <recording-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Usage:    "Path to recorder.yaml",
				Required: true,
			},
		},
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return cli.Exit("usage: recorder status <device-id> <recording-id>", exitConfigError)
	}
	recordingID := c.Args().Get(1)

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("config load failed: %v", err), exitConfigError)
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), exitConfigError)
	}

	busClient, err := bus.NewRedisBus(bus.Config{URL: cfg.Bus.URL, Timeout: cfg.Bus.Timeout.Duration})
	if err != nil {
		return cli.Exit(fmt.Sprintf("bus connect failed: %v", err), exitBusError)
	}
	defer func() { _ = busClient.Close() }()

	statusKey := cfg.Control.StatusKey
	if statusKey == "" {
		statusKey = "recorder/status"
	}

	timeout := cfg.Control.TimeoutSeconds.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx := context.Background()
	reply, err := busClient.Query(ctx, path.Join(statusKey, recordingID), nil, timeout)
	if err != nil {
		return cli.Exit(fmt.Sprintf("status query failed: %v", err), exitBusError)
	}

	var pretty map[string]any
	if err := json.Unmarshal(reply, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return cli.Exit("", exitSuccess)
	}
	fmt.Println(string(reply))
	return cli.Exit("", exitSuccess)
}

func buildBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "object-store":
		return storage.NewObjectStoreBackend(ctx, storage.ObjectStoreConfig{
			Bucket:       cfg.Bucket,
			Prefix:       cfg.Prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
	case "filesystem":
		return storage.NewFileBackend(storage.FileConfig{BaseDir: cfg.Path})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// trailingSegment returns the last "/"-separated segment of a key, e.g.
// "recorder/control/dev-42" -> "dev-42".
func trailingSegment(key string) string {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return key
	}
	return key[idx+1:]
}

// statsRouter implements flush.StatsSink by looking up the owning session
// in the registry, since the shared WorkerPool has no per-session handle.
type statsRouter struct {
	registry *session.Registry
}

func (r statsRouter) OnFlushSuccess(sessionID, topic string, sampleCount int, byteCount int64) {
	if s, ok := r.registry.Get(sessionID); ok {
		s.OnFlushSuccess(sessionID, topic, sampleCount, byteCount)
	}
}

func (r statsRouter) OnFlushFailure(sessionID, topic string, err error) {
	if s, ok := r.registry.Get(sessionID); ok {
		s.OnFlushFailure(sessionID, topic, err)
	}
}
