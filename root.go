package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"phototagger/config"
	"phototagger/logging"
	"phototagger/types"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// rootFlags are the options every command accepts
type rootFlags struct {
	config   string
	library  string
	database string
	logFile  string
	debug    bool
}

type commandContext struct {
	flags *rootFlags
	runID string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *rootFlags) *commandContext {
	return &commandContext{flags: flags, runID: uuid.NewString()}
}

// ensureConfig loads the config file once and applies command line overrides
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = types.NewError(types.CategoryArgument, "load config", c.flags.config, err)
			return
		}
		if c.flags.library != "" {
			cfg.LibraryDir = c.flags.library
		}
		if c.flags.database != "" {
			cfg.DatabasePath = c.flags.database
		}
		if c.flags.logFile != "" {
			cfg.LogFile = c.flags.logFile
		}
		if c.flags.debug {
			cfg.Debug = true
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// setupLogging starts the process logger for cmd
func (c *commandContext) setupLogging(cmd *cobra.Command) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	debug := cfg.Debug
	if f := cmd.Flags().Lookup("verbose"); f != nil && f.Value.String() == "true" {
		debug = true
	}
	if err := logging.Setup(logging.Options{Path: cfg.LogFile, Debug: debug, RunID: c.runID}); err != nil {
		return err
	}
	logging.DebugLog("Command %s started, config: library=%q database=%q decoder=%s",
		cmd.CommandPath(), cfg.LibraryDir, cfg.DatabasePath, cfg.Decoder)
	return nil
}

// requireLibrary returns the configured library root or an argument error
func (c *commandContext) requireLibrary() (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	lib := strings.TrimSpace(cfg.LibraryDir)
	if lib == "" {
		return "", types.Errorf(types.CategoryArgument, "library", "",
			"library path is required (use --library, library_dir in the config file, or %s)", config.LibraryEnv)
	}
	info, err := os.Stat(lib)
	if err != nil {
		return "", types.NewError(types.CategoryArgument, "library", lib, err)
	}
	if !info.IsDir() {
		return "", types.Errorf(types.CategoryArgument, "library", lib, "not a directory")
	}
	return lib, nil
}

// requireIndex returns the catalogue path, which must already exist
func (c *commandContext) requireIndex() (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(cfg.DatabasePath); err != nil {
		return "", types.Errorf(types.CategoryArgument, "index", cfg.DatabasePath,
			"catalogue not found, build it with the index command")
	}
	return cfg.DatabasePath, nil
}

var errNoCommand = errors.New("a command is required")

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:   "phototagger",
		Short: "Find library copies of photos and tag them",
		Long: `phototagger finds photos that already exist in a reference library,
verifies them pixel for pixel, and adds a keyword to the library copies.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd == cmd.Root() {
				return nil
			}
			return ctx.setupLogging(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.ErrOrStderr(), cmd.UsageString())
			return errNoCommand
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.config, "config", "", "Configuration file path")
	pf.StringVar(&flags.library, "library", "", "Photo library root")
	pf.StringVar(&flags.database, "database", "", "Catalogue database path")
	pf.StringVar(&flags.logFile, "logfile", "", "Write the log to this file")
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newAllTagsCommand(ctx))
	rootCmd.AddCommand(newMatchCommand(ctx))
	rootCmd.AddCommand(newDumpCommand(ctx))
	rootCmd.AddCommand(newIndexCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
