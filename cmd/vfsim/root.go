package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vfsim/vfsim/config"
	"github.com/vfsim/vfsim/identity"
	"github.com/vfsim/vfsim/internal/util"
	"github.com/vfsim/vfsim/persist"
	"github.com/vfsim/vfsim/vfs"
)

// Global configuration flags
var (
	configPath string
	statePath  string
	verbose    int
	noColor    bool
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vfsim",
		Short: "Interactive in-memory Unix-like filesystem simulator",
		Long: `vfsim simulates a Unix-like hierarchical filesystem entirely in memory:
directories, files and symbolic links with per-node ownership and
permissions, addressed by slash-separated paths.

It starts an interactive shell with familiar commands (ls, cd, mkdir,
touch, cat, write, rm, find, grep, ln -s, su, useradd, ...) acting as the
root user. State can be saved to and restored from an encrypted snapshot
file. Nothing ever touches a real disk except the snapshot.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runShell,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML or JSON)")
	cmd.Flags().StringVarP(&statePath, "state", "s", "", "Path for encrypted state snapshots (overrides config)")
	cmd.Flags().IntVarP(&verbose, "verbose", "v", 2, "Log verbosity level between 1 (error) and 5 (trace). Default is 2 (warn).")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(NewVersionCmd())
	return cmd
}

func runShell(cmd *cobra.Command, args []string) error {
	if verbose < 1 {
		verbose = 1
	}
	if verbose > 5 {
		verbose = 5
	}
	logLvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	util.InitializeLogger(logLvls[verbose-1])
	logger := util.GetLogger("main")

	color.NoColor = color.NoColor || noColor

	cfg := config.NewDefaultConfig()
	if configPath != "" {
		loaded, err := config.NewConfigFromFile(configPath)
		if err != nil {
			logger.Error().Err(err).Str("config", configPath).Msg("Failed to load config file")
			return err
		}
		cfg = loaded
	}
	if statePath != "" {
		cfg.StatePath = statePath
	}

	users := identity.NewManager()
	history := vfs.NewMemoryRecorder(1000)
	fs := vfs.New(cfg, users, vfs.WithRecorder(vfs.MultiRecorder(vfs.NewLogRecorder(), history)))
	store := persist.NewStore(cfg.StatePath, cfg.KeyPath)

	logger.Info().Str("state", store.Path()).Msg("Filesystem initialized")

	sh := newShell(fs, users, store, history, cmd.OutOrStdout())
	return sh.Run(cmd.InOrStdin())
}
