package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/bitrise-io/go-assetpipe/config"
	"github.com/bitrise-io/go-assetpipe/gc"
	"github.com/bitrise-io/go-assetpipe/metrics"
	"github.com/bitrise-io/go-assetpipe/pipeline"
	"github.com/bitrise-io/go-assetpipe/vault"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	vaultPath   string
	configFile  string
	envFile     string
	verbose     bool
	dryRun      bool
	metricsFile string
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg     config.Config
	vault   *vault.FS
	tracker metrics.Tracker
	logger  log.Logger

	prometheus *metrics.PrometheusTracker
}

func newRootCommand(out io.Writer) *cobra.Command {
	flags := &globalFlags{}
	logger := log.NewLogger()

	root := &cobra.Command{
		Use:           "assetpipe",
		Short:         "Move vault images to an object store as deduplicated WebP files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.vaultPath, "vault", ".", "vault root directory")
	pf.StringVar(&flags.configFile, "config", "", "YAML, TOML or JSON config file")
	pf.StringVar(&flags.envFile, "env-file", "", "dotenv file with ASSETPIPE_* variables")
	pf.BoolVar(&flags.verbose, "verbose", false, "enable debug logging")
	pf.BoolVar(&flags.dryRun, "dry-run", false, "report what would change without uploading or writing")
	pf.StringVar(&flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this file when done")

	root.AddCommand(
		newProcessCommand(flags, logger),
		newProcessFileCommand(flags, logger),
		newSweepCommand(flags, logger),
		newConfigCommand(flags, logger),
	)
	return root
}

func newProcessCommand(flags *globalFlags, logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Upload every image referenced by the vault's markdown documents and rewrite the links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, flags, logger)
			if err != nil {
				return err
			}

			processor, err := pipeline.Build(cmd.Context(), a.cfg, a.vault, a.logger, pipeline.WithTracker(a.tracker))
			if err != nil {
				return err
			}

			files, err := a.vault.Match(a.cfg.Include...)
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(files))
			for _, f := range files {
				ids = append(ids, f.ID)
			}

			processor.ProcessAll(cmd.Context(), ids)
			return a.finish()
		},
	}
}

func newProcessFileCommand(flags *globalFlags, logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "process-file <path>",
		Short: "Process a single document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, flags, logger)
			if err != nil {
				return err
			}

			id, err := a.documentID(args[0])
			if err != nil {
				return err
			}

			processor, err := pipeline.Build(cmd.Context(), a.cfg, a.vault, a.logger, pipeline.WithTracker(a.tracker))
			if err != nil {
				return err
			}

			result, err := processor.ProcessDocument(cmd.Context(), id)
			if err != nil {
				return err
			}
			for _, e := range result.Errors {
				a.logger.Errorf("%s: %s", e.ImagePath, e.Message)
			}
			if result.Modified {
				a.logger.Donef("Processed %d images in %s", result.ImagesProcessed, id)
			} else {
				a.logger.Infof("No images to process in %s", id)
			}
			return a.finish()
		},
	}
}

func newSweepCommand(flags *globalFlags, logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Move attachments no document references to the vault trash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, flags, logger)
			if err != nil {
				return err
			}

			files, err := a.vault.ListAllFiles()
			if err != nil {
				return err
			}
			if _, err := gc.New(a.cfg, a.vault, a.logger, gc.WithTracker(a.tracker)).Sweep(cmd.Context(), files); err != nil {
				return err
			}
			return a.finish()
		},
	}
}

func newConfigCommand(flags *globalFlags, logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags, logger)
			if err != nil {
				return err
			}
			config.Print(cfg, logger)
			return nil
		},
	}
}

func loadConfig(cmd *cobra.Command, flags *globalFlags, logger log.Logger) (config.Config, error) {
	logger.EnableDebugLog(flags.verbose)

	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: flags.configFile,
		EnvFile:    flags.envFile,
	})
	if err != nil {
		return config.Config{}, err
	}

	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = flags.dryRun
	}
	if cmd.Flags().Changed("metrics-file") {
		cfg.MetricsFile = flags.metricsFile
	}
	return cfg, nil
}

func setup(cmd *cobra.Command, flags *globalFlags, logger log.Logger) (*app, error) {
	cfg, err := loadConfig(cmd, flags, logger)
	if err != nil {
		return nil, err
	}

	v, err := vault.New(flags.vaultPath, vault.Options{
		Exclude:     cfg.Exclude,
		TrashFolder: cfg.TrashFolder,
	}, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		vault:   v,
		tracker: metrics.NewNoop(),
		logger:  logger,
	}
	if cfg.MetricsFile != "" {
		tracker, err := metrics.NewPrometheusTracker("")
		if err != nil {
			return nil, err
		}
		a.tracker = tracker
		a.prometheus = tracker
	}
	return a, nil
}

// documentID turns a path given on the command line, relative to the working directory or
// absolute, into a vault file id.
func (a *app) documentID(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(a.vault.Root(), abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || len(rel) > 2 && rel[:3] == "../" {
		return "", fmt.Errorf("%s is outside the vault %s", path, a.vault.Root())
	}
	return rel, nil
}

func (a *app) finish() error {
	if a.prometheus == nil {
		return nil
	}
	if err := a.prometheus.WriteTextfile(a.cfg.MetricsFile); err != nil {
		return err
	}
	a.logger.Debugf("Metrics written to %s", a.cfg.MetricsFile)
	return nil
}
