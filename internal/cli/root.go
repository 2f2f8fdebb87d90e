// Package cli implements the toolify command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolify/app"
	"github.com/jonwraymond/toolify/config"
)

// VersionInfo is set by main from build flags.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

type rootOptions struct {
	configFile string
	verbose    bool
	version    VersionInfo
	// logWriter overrides where the app logs; tests set it.
	logWriter io.Writer
}

// NewRootCommand builds the command tree.
func NewRootCommand(version VersionInfo) *cobra.Command {
	return newRootCommand(&rootOptions{version: version})
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	version := opts.version
	root := &cobra.Command{
		Use:   "toolify",
		Short: "Tool recognition and chat backed by a rotating pool of Gemini API keys",
		Long: `toolify talks to Gemini through a pool of API keys. When a key is rate
limited it is cooled down and the next key is tried.

Keys come from GEMINI_API_KEYS (comma separated) or GOOGLE_API_KEY.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(fmt.Sprintf("toolify %s (commit %s, built %s)\n", version.Version, version.Commit, version.BuildDate))

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (YAML)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newServeCommand(opts),
		newKeysCommand(opts),
		newIdentifyCommand(opts),
		newTranscribeCommand(opts),
		newChatCommand(opts),
		newManualCommand(opts),
	)
	return root
}

// Execute runs the root command.
func Execute(ctx context.Context, version VersionInfo) error {
	return NewRootCommand(version).ExecuteContext(ctx)
}

// loadApp loads configuration and wires the app. One-shot commands log at
// warn unless --verbose is set; serve keeps the configured level.
func (o *rootOptions) loadApp(ctx context.Context, quiet bool, extra ...config.Option) (*app.App, error) {
	var opts []config.Option
	if o.configFile != "" {
		opts = append(opts, config.WithFile(o.configFile))
	}
	switch {
	case o.verbose:
		opts = append(opts, config.WithOverride("observe.logging.level", "debug"))
	case quiet:
		opts = append(opts, config.WithOverride("observe.logging.level", "warn"))
	}
	opts = append(opts, extra...)

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}

	var appOpts []app.Option
	if o.logWriter != nil {
		appOpts = append(appOpts, app.WithLogWriter(o.logWriter))
	}
	return app.New(ctx, cfg, appOpts...)
}
