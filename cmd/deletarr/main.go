package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/deletarr-go/internal/api"
	"github.com/s0up4200/deletarr-go/internal/client"
	"github.com/s0up4200/deletarr-go/internal/config"
	"github.com/s0up4200/deletarr-go/internal/logger"
	"github.com/s0up4200/deletarr-go/internal/metrics"
	"github.com/s0up4200/deletarr-go/internal/pruner"
	"github.com/s0up4200/deletarr-go/pkg/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "deletarr",
		Short: "deletarr removes seeded torrents that are no longer hardlinked into your media library",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize a new config file",
		RunE:  runInit,
	}

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Check connectivity to the download client and every service",
		RunE:  runCheck,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Process every enabled service once",
		RunE:  runOnce,
		Example: `  # Use dryRun from the config file
  deletarr run

  # Actually delete, whatever the config says
  deletarr run --no-dry-run`,
	}

	dryRunCmd = &cobra.Command{
		Use:   "dry-run",
		Short: "Report what would be deleted without deleting anything",
		RunE:  runDry,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the API and run on a schedule",
		RunE:  runServe,
		Example: `  # Serve the API only
  deletarr serve

  # Serve the API and run every 6 hours
  deletarr serve --interval 360`,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Show version information and check for updates",
		RunE:  runVersion,
	}

	forceDryRun bool
	noDryRun    bool
	interval    int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	setupGroup := &cobra.Group{
		ID:    "setup",
		Title: "Configuration Commands:",
	}

	operationGroup := &cobra.Group{
		ID:    "operation",
		Title: "Cleanup Commands:",
	}

	rootCmd.AddGroup(setupGroup, operationGroup)

	initCmd.GroupID = "setup"
	checkCmd.GroupID = "setup"
	runCmd.GroupID = "operation"
	dryRunCmd.GroupID = "operation"
	serveCmd.GroupID = "operation"

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dryRunCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	runCmd.Flags().BoolVar(&forceDryRun, "dry-run", false, "force dry run")
	runCmd.Flags().BoolVar(&noDryRun, "no-dry-run", false, "force deletion, ignoring dryRun in the config")
	runCmd.MarkFlagsMutuallyExclusive("dry-run", "no-dry-run")

	serveCmd.Flags().IntVar(&interval, "interval", 0, "run interval in minutes, 0 to only serve the API")
}

func loadConfig() (string, *config.Config, error) {
	path, err := config.Find(cfgFile)
	if err != nil {
		return "", nil, err
	}

	log.Debug().Str("path", path).Msg("loading config file")
	cfg, err := config.Load(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to load config")
		return "", nil, err
	}

	return path, cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// webDir picks the dashboard build: config first, then FRONTEND_DIST, then
// frontend/dist under the working directory.
func webDir(cfg *config.Config) string {
	if cfg.Server.WebDir != "" {
		return cfg.Server.WebDir
	}
	if dir := os.Getenv("FRONTEND_DIST"); dir != "" {
		return dir
	}
	return "frontend/dist"
}

func runOnce(cmd *cobra.Command, args []string) error {
	var override *bool
	switch {
	case forceDryRun:
		override = &forceDryRun
	case noDryRun:
		dry := false
		override = &dry
	}
	return execute(override)
}

func runDry(cmd *cobra.Command, args []string) error {
	dry := true
	return execute(&dry)
}

func execute(dryRunOverride *bool) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Setup(cfg.Logging, nil, debug)

	ctx, cancel := signalContext()
	defer cancel()

	coordinator := pruner.NewCoordinator(cfg, client.New, nil)
	result := coordinator.Run(ctx, dryRunOverride)
	pruner.PrintSummary(os.Stdout, result)

	if !result.Success {
		return fmt.Errorf("run failed: %s", result.Error)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	path, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ring := logger.NewRingBuffer(logger.DefaultCapacity)
	logger.Setup(cfg.Logging, ring, debug)

	if !cmd.Flags().Changed("interval") {
		interval = cfg.Interval
	}

	ctx, cancel := signalContext()
	defer cancel()

	recorder := metrics.NewRecorder()
	coordinator := pruner.NewCoordinator(cfg, client.New, recorder)

	server := api.NewServer(api.Dependencies{
		Coordinator: coordinator,
		ConfigPath:  path,
		Logs:        ring,
		Metrics:     recorder,
		Connect:     client.New,
		Version:     version.Version,
		Env:         os.Getenv("DELETARR_ENV"),
		WebDir:      webDir(cfg),
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port)
	})

	if interval > 0 {
		g.Go(func() error {
			schedule(ctx, coordinator, time.Duration(interval)*time.Minute)
			return nil
		})
	} else {
		log.Info().Msg("no interval configured, runs are only triggered through the API")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info().Msg("shutdown complete")
	return nil
}

// schedule runs immediately and then every interval until ctx is done.
func schedule(ctx context.Context, coordinator *pruner.Coordinator, every time.Duration) {
	log.Info().
		Dur("interval", every).
		Str("schedule", "every "+formatDuration(every)).
		Msg("starting scheduler")

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		result := coordinator.Run(ctx, nil)
		if !result.Success {
			log.Error().Str("error", result.Error).Msg("scheduled run failed")
		} else {
			log.Info().
				Bool("dryRun", result.DryRun).
				Int("selected", result.Total).
				Int("deleted", result.Deleted).
				Msg("scheduled run finished")
		}

		nextRun := time.Now().Add(every)
		log.Info().
			Time("nextRun", nextRun).
			Msgf("scheduling next run in %s", formatDuration(time.Until(nextRun)))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Info().Msg("performing scheduled run")
		}
	}
}

// formatDuration converts a duration to a human-readable string
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%d hours %d minutes", hours, minutes)
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d minutes", minutes)
}

func runCheck(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Setup(cfg.Logging, nil, debug)

	ctx, cancel := signalContext()
	defer cancel()

	dc, connectErr := client.New(ctx, cfg)
	if connectErr == nil {
		defer dc.Close()
	}
	report := client.CheckServices(ctx, cfg, dc, connectErr)

	logHealth("download client", report.DownloadClient.Name, report.DownloadClient)
	for name, h := range report.Services {
		logHealth("service", name, h)
	}

	if failed := report.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(report.Services)+1)
	}
	return nil
}

func logHealth(kind, name string, h client.Health) {
	evt := log.Info()
	if h.Status == client.StatusError {
		evt = log.Error()
	}
	evt.Str("kind", kind).
		Str("name", name).
		Str("status", h.Status).
		Str("version", h.Version).
		Str("message", h.Message).
		Msg("connectivity check")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := cfgFile
	if configPath == "" {
		path, err := config.DefaultPath()
		if err != nil {
			log.Error().Err(err).Msg("could not determine config directory")
			return err
		}
		configPath = path
	}

	if _, err := os.Stat(configPath); err == nil {
		log.Error().Str("path", configPath).Msg("config file already exists")
		return fmt.Errorf("config file already exists at %s", configPath)
	}

	if err := config.Save(configPath, config.Example(), config.ExampleHeader); err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("failed to write config file")
		return err
	}

	log.Info().Str("path", configPath).Msg("created new config file")
	log.Info().Msg("remember to edit the services and download client before disabling dryRun")
	return nil
}

func runVersion(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	version.CheckForUpdates(ctx, "s0up4200", "deletarr-go")
	return nil
}
