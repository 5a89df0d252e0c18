package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/anpbroker/internal/logger"
	"github.com/marmos91/anpbroker/internal/telemetry"
	"github.com/marmos91/anpbroker/pkg/adminapi"
	"github.com/marmos91/anpbroker/pkg/anp/broker"
	anpmetrics "github.com/marmos91/anpbroker/pkg/anp/metrics"
	"github.com/marmos91/anpbroker/pkg/config"
	"github.com/spf13/cobra"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the anpd daemon",
	Long: `Start anpd, the ANP broker daemon.

By default, the daemon runs in the background. Use --foreground to run in
the foreground for debugging or when managed by a process supervisor.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/anp/config.yaml.

Examples:
  # Start in background (default)
  anpd start

  # Start in foreground
  anpd start --foreground

  # Start with custom config file
  anpd start --config /etc/anp/config.yaml

  # Start with environment variable overrides
  ANP_LOGGING_LEVEL=DEBUG anpd start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/anp/anpd.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/anp/anpd.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := loadStartConfig()
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "anpd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "anpd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("anpd - ANP broker daemon")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	var metrics anpmetrics.BrokerMetrics
	if cfg.Metrics.Enabled {
		anpmetrics.InitRegistry()
		metrics = anpmetrics.NewBrokerMetrics()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	b, err := newConfiguredBroker(cfg, metrics)
	if err != nil {
		return err
	}
	if err := b.Start(); err != nil {
		return fmt.Errorf("failed to start broker: %w", err)
	}
	logger.Info("Broker started", "role", cfg.Broker.Role, "rendezvous_path", cfg.Broker.RendezvousPath)

	var adminSrv *adminapi.Server
	if cfg.AdminAPI.Enabled {
		adminSrv, err = newConfiguredAdminServer(cfg, b)
		if err != nil {
			return fmt.Errorf("failed to create admin API server: %w", err)
		}
		logger.Info("Admin API token minted; present as a bearer token", "port", cfg.AdminAPI.Port)
		fmt.Printf("\nAdmin API token: %s\n\n", adminSrv.Token())

		adminDone := make(chan error, 1)
		go func() { adminDone <- adminSrv.Start(ctx) }()
		defer func() {
			if err := <-adminDone; err != nil {
				logger.Error("admin API shutdown error", "error", err)
			}
		}()
	} else {
		logger.Info("Admin API disabled")
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("anpd is running. Press Ctrl+C to stop.")
	<-sigChan
	signal.Stop(sigChan)
	logger.Info("Shutdown signal received, initiating graceful shutdown")

	cancel()
	b.TryStop()
	logger.Info("anpd stopped gracefully")

	return nil
}

// loadStartConfig loads the config file, or falls back to
// config.GetDefaultConfig() when none is present. That fallback applies no
// environment variables and leaves broker.role empty, so newConfiguredBroker
// rejects it with an unknown-role error.
func loadStartConfig() (*config.Config, error) {
	if GetConfigFile() == "" && !config.DefaultConfigExists() {
		return config.GetDefaultConfig(), nil
	}
	return config.MustLoad(GetConfigFile())
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// newConfiguredBroker constructs either a server-role or client-role broker
// from cfg, wired to metrics (a nil metrics value disables instrumentation).
func newConfiguredBroker(cfg *config.Config, metrics anpmetrics.BrokerMetrics) (*broker.Broker, error) {
	slogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	switch cfg.Broker.Role {
	case "server":
		return broker.NewServerBroker(broker.ServerConfig{
			RendezvousPath:   cfg.Broker.RendezvousPath,
			HandshakeTimeout: cfg.Broker.HandshakeTimeout,
			Major:            cfg.Broker.Major,
			Minor:            cfg.Broker.Minor,
			Logger:           slogger,
			Metrics:          metrics,
		}, broker.Events{}), nil

	case "client":
		return broker.NewClientBroker(broker.ClientConfig{
			RendezvousPath: cfg.Broker.RendezvousPath,
			Major:          cfg.Broker.Major,
			Minor:          cfg.Broker.Minor,
			Logger:         slogger,
			Metrics:        metrics,
		}, broker.Events{}), nil

	default:
		return nil, fmt.Errorf("unknown broker role %q: must be server or client", cfg.Broker.Role)
	}
}

// newConfiguredAdminServer builds the admin API server from cfg, bound to b.
func newConfiguredAdminServer(cfg *config.Config, b *broker.Broker) (*adminapi.Server, error) {
	return adminapi.NewServer(adminapi.ServerConfig{
		Port:         cfg.AdminAPI.Port,
		ReadTimeout:  cfg.AdminAPI.ReadTimeout,
		WriteTimeout: cfg.AdminAPI.WriteTimeout,
		IdleTimeout:  cfg.AdminAPI.IdleTimeout,
		TokenTTL:     cfg.AdminAPI.TokenTTL,
	}, b)
}
