// Command elwinator administers experiment namespaces: it imports and edits the
// namespace store, reports segment allocation and rule violations, and publishes
// namespace documents for the experiment server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"elwinator/internal/blob"
	"elwinator/internal/config"
	"elwinator/internal/core"
)

func main() {
	if err := execute(context.Background(), newApp(os.Stdout, os.Stderr), os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// execute runs one command line and releases the store and metrics afterwards, also
// when the command failed.
func execute(ctx context.Context, a *app, args []string) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if terr := a.teardown(); err == nil {
		err = terr
	}
	return err
}

// app carries what every command needs once the root pre-run has loaded config.
type app struct {
	stdout io.Writer
	stderr io.Writer

	openStore func(context.Context, core.StorageOptions) (core.PersistentStore, error)
	openBlob  func(context.Context, blob.Options) (blob.Store, error)

	configPath string
	storage    string
	logLevel   string

	cfg      config.Config
	logger   core.Logger
	metrics  core.MetricsRecorder
	tracer   core.Tracer
	registry *prometheus.Registry
	expvar   *core.ExpvarMetricsRecorder
	store    core.PersistentStore
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:    stdout,
		stderr:    stderr,
		openStore: core.OpenPersistentStore,
		openBlob:  blob.Open,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "elwinator",
		Short: "Administer experiment namespaces, segments and published documents",
		Long: `elwinator edits the experiment namespace store and publishes namespace
documents for the experiment server.

Configuration comes from an optional YAML file (--config) overridden by
ELWINATOR_* environment variables and finally by flags.`,
		SilenceUsage:      true,
		PersistentPreRunE: func(*cobra.Command, []string) error { return a.setup() },
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&a.storage, "storage", "", "Storage driver override (memory, sqlite, postgres)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		createImportCmd(a),
		createShowCmd(a),
		createApplyCmd(a),
		createSegmentsCmd(a),
		createValidateCmd(a),
		createPublishCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.storage != "" {
		cfg.Storage.Driver = a.storage
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := core.NewSlogLoggerFor(a.stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.logger = logger
	if cfg.Log.Trace {
		a.tracer = core.NewJSONTracer(a.stderr)
	}
	switch strings.ToLower(cfg.Metrics.Backend) {
	case config.MetricsPrometheus:
		a.registry = prometheus.NewRegistry()
		a.metrics = core.NewPrometheusMetricsRecorder(a.registry, "")
	case config.MetricsExpvar:
		a.expvar = core.NewExpvarMetricsRecorder("")
		a.metrics = a.expvar
	}
	return nil
}

func (a *app) teardown() error {
	if closer, ok := a.store.(io.Closer); ok {
		if err := closer.Close(); err != nil && a.logger != nil {
			a.logger.Warn("close store", "error", err)
		}
	}
	a.store = nil
	path := a.cfg.Metrics.Textfile
	if path == "" {
		return nil
	}
	switch {
	case a.registry != nil:
		if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
			return fmt.Errorf("write metrics textfile: %w", err)
		}
	case a.expvar != nil:
		data, err := json.MarshalIndent(a.expvar.Snapshot(), "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write metrics textfile: %w", err)
		}
	}
	return nil
}

// service opens the configured store and returns a service loaded from it.
func (a *app) service(ctx context.Context) (*core.Service, error) {
	store, err := a.openStore(ctx, a.cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.store = store
	svc := core.NewService(
		core.WithPersistentStore(store),
		core.WithLogger(a.logger),
		core.WithMetricsRecorder(a.metrics),
		core.WithTracer(a.tracer),
		core.WithAuditRecorder(logAudit{logger: a.logger}),
	)
	if _, err := svc.Load(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

// logAudit writes audit entries to the structured log.
type logAudit struct {
	logger core.Logger
}

func (l logAudit) Record(_ context.Context, e core.AuditEntry) {
	kv := []any{
		"operation", e.Operation,
		"status", e.Status,
		"duration", e.Duration,
	}
	if e.Kind != "" {
		kv = append(kv, "kind", e.Kind)
	}
	if e.Namespace != "" {
		kv = append(kv, "namespace", e.Namespace, "entity", e.Entity, "id", e.EntityID)
	}
	if e.Error != "" {
		kv = append(kv, "error", e.Error)
	}
	l.logger.Debug("audit", kv...)
}
