package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowview/pkg/buildinfo"
	ferrors "github.com/matzehuels/flowview/pkg/errors"
	"github.com/matzehuels/flowview/pkg/hierarchy"
	pkgio "github.com/matzehuels/flowview/pkg/io"
	"github.com/matzehuels/flowview/pkg/observability"
	"github.com/matzehuels/flowview/pkg/session"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "flowview"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config Config

	configPath string
}

// New creates a new CLI instance with a default logger and configuration.
func New(w io.Writer, level log.Level) *CLI {
	cfg := defaultConfig()
	cfg.Validate()
	return &CLI{
		Logger: newLogger(w, level),
		Config: cfg,
	}
}

// SetLogLevel updates the logger's level. At debug level, visibility and
// store events are logged too.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	if level <= log.DebugLevel {
		hooks := &logHooks{logger: c.Logger}
		observability.SetVisibilityHooks(hooks)
		observability.SetStoreHooks(hooks)
	}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Flowview explores hierarchical flow diagrams one level at a time",
		Long: `Flowview loads a Sankey-style dataset whose nodes form a hierarchy and
shows only what is currently expanded: top-level nodes first, children once
their parent is expanded, and aggregate links standing in for collapsed detail.`,
		Version:      buildinfo.Resolved(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(c.configPath)
			if err != nil {
				return err
			}
			c.Config = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/flowview/config.toml)")

	root.AddCommand(c.showCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.exploreCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.convertCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Dataset Loading
// =============================================================================

// loadDataset reads the dataset at path and validates it. Validation
// problems are logged as warnings, or returned when strict is set.
func (c *CLI) loadDataset(path string, strict bool) (pkgio.Dataset, error) {
	prog := newProgress(c.Logger)
	ds, err := pkgio.ReadFile(path)
	if err != nil {
		return pkgio.Dataset{}, err
	}
	if err := ds.Validate(); err != nil {
		if strict || c.Config.Strict {
			return pkgio.Dataset{}, err
		}
		for _, problem := range ferrors.All(err) {
			c.Logger.Warn(ferrors.UserMessage(problem), "code", ferrors.GetCode(problem))
		}
	}
	prog.done(fmt.Sprintf("Loaded %s: %d nodes, %d links", filepath.Base(path), len(ds.Nodes), len(ds.Links)))
	return ds, nil
}

// newManager builds a manager that reports ignored mutations at debug level.
func (c *CLI) newManager(ds pkgio.Dataset) *hierarchy.Manager {
	return ds.Manager(hierarchy.WithLogger(c.Logger))
}

// openStore opens the configured session backend. Network backends show
// a spinner on w while connecting.
func (c *CLI) openStore(ctx context.Context, w io.Writer) (session.Store, error) {
	switch c.Config.Store {
	case session.BackendRedis, session.BackendMongo:
		s := startSpinner(ctx, w, fmt.Sprintf("Connecting to %s", c.Config.Store))
		defer s.stop()
	}
	return session.Open(ctx, c.Config.sessionConfig())
}

// =============================================================================
// Paths
// =============================================================================

// configDir returns the config directory using XDG standard (~/.config/flowview/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}
