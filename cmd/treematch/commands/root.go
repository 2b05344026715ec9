// Package commands implements CLI command handlers for treematch.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/treematch/pkg/config"
	"github.com/Sumatoshi-tech/treematch/pkg/hast"
	"github.com/Sumatoshi-tech/treematch/pkg/hast/sitterload"
	"github.com/Sumatoshi-tech/treematch/pkg/observability"
	"github.com/Sumatoshi-tech/treematch/pkg/treematch"
	"github.com/Sumatoshi-tech/treematch/pkg/version"
)

const cacheMetricsName = "mappings"

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath  string
	metricsAddr string
	verbose     bool
	logJSON     bool
}

// NewRootCommand builds the treematch command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "treematch",
		Short: "Structural matching of syntax trees",
		Long: `treematch maps the nodes of one syntax tree onto another by finding
identical subtrees, largest first, and resolving duplicates by context.

Commands:
  match     Match two trees and print the mapping
  batch     Match many tree pairs concurrently
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default .treematch.yaml in . or $HOME)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	flags.BoolVar(&opts.logJSON, "log-json", false, "JSON log output")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(newMatchCommand(opts))
	rootCmd.AddCommand(newBatchCommand(opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// session is the per-command runtime: configuration, telemetry and the
// matching engine over one shared store.
type session struct {
	cfg       *config.Config
	logger    *slog.Logger
	providers observability.Providers
	store     *hast.Store
	loader    *sitterload.Loader
	cache     *treematch.MappingCache
	engine    *treematch.Engine
	server    *metricsServer
	cacheReg  metric.Registration
	stage     treematch.Stage
}

type sessionOverrides struct {
	minHeight int
	workers   int
}

func newSession(cmd *cobra.Command, opts *globalOptions, mode observability.AppMode, ov sessionOverrides) (*session, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	applyOverrides(cmd, cfg, opts, ov)

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	stage, err := treematch.ParseStage(cfg.Matcher.Stage)
	if err != nil {
		return nil, err
	}

	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.Prometheus = cfg.Observability.PrometheusAddr != ""
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.Format == config.LogFormatJSON

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	s := &session{
		cfg:       cfg,
		logger:    observability.NewLogger(cmd.ErrOrStderr(), obsCfg),
		providers: providers,
		store:     hast.NewStore(),
		stage:     stage,
	}
	s.loader = sitterload.NewLoader(s.store)

	err = s.buildEngine()
	if err != nil {
		return nil, errors.Join(err, s.Close(context.Background()))
	}

	if providers.MetricsHandler != nil {
		s.server, err = startMetricsServer(cfg.Observability.PrometheusAddr, providers.MetricsHandler)
		if err != nil {
			return nil, errors.Join(err, s.Close(context.Background()))
		}

		s.logger.Info("serving metrics", slog.String("addr", s.server.Addr()))
	}

	return s, nil
}

func applyOverrides(cmd *cobra.Command, cfg *config.Config, opts *globalOptions, ov sessionOverrides) {
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}

	if opts.logJSON {
		cfg.Logging.Format = config.LogFormatJSON
	}

	if cmd.Flags().Changed("metrics-addr") {
		cfg.Observability.PrometheusAddr = opts.metricsAddr
	}

	if cmd.Flags().Changed(flagMinHeight) {
		cfg.Matcher.MinHeight = ov.minHeight
	}

	if cmd.Flags().Changed(flagWorkers) {
		cfg.Batch.Workers = ov.workers
	}
}

func (s *session) buildEngine() error {
	metrics, err := observability.NewMatchMetrics(s.providers.Meter)
	if err != nil {
		return fmt.Errorf("create match metrics: %w", err)
	}

	engineOpts := []treematch.EngineOption{
		treematch.WithLogger(s.logger),
		treematch.WithTracer(s.providers.Tracer),
		treematch.WithMetrics(metrics),
		treematch.WithStage(s.stage),
		treematch.WithMinHeight(s.cfg.Matcher.MinHeight),
	}

	if s.cfg.Cache.Enabled {
		s.cache = treematch.NewMappingCache(s.cfg.Cache.MaxEntries)

		s.cacheReg, err = observability.RegisterCacheMetrics(s.providers.Meter, cacheMetricsName, s.cache)
		if err != nil {
			return fmt.Errorf("register cache metrics: %w", err)
		}

		engineOpts = append(engineOpts, treematch.WithCache(s.cache))
	}

	s.engine = treematch.NewEngine(s.store, engineOpts...)

	return nil
}

// Close stops the metrics server and flushes telemetry.
func (s *session) Close(ctx context.Context) error {
	var errs []error

	if s.server != nil {
		errs = append(errs, s.server.Shutdown(ctx))
	}

	if s.cacheReg != nil {
		errs = append(errs, s.cacheReg.Unregister())
	}

	if s.providers.Shutdown != nil {
		errs = append(errs, s.providers.Shutdown(ctx))
	}

	return errors.Join(errs...)
}
