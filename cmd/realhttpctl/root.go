package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	realhttp "github.com/immobiliare/realhttp-go"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd.
var (
	flagConfigPath string
	flagBaseURL    string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "realhttpctl",
		Short:         "Drive ad hoc HTTP requests through the realhttp client",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", defaultConfigPath(), "config file path")
	cmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "base URL, overriding the config file")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output raw JSON instead of a summary")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newPostCmd())
	cmd.AddCommand(newStubCmd())

	return cmd
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	return dir + "/realhttpctl/config.toml"
}

// buildLogger returns an slog.Logger whose level follows --verbose/--quiet.
func buildLogger() *slog.Logger {
	level := slog.LevelWarn

	switch {
	case flagVerbose:
		level = slog.LevelDebug
	case flagQuiet:
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newClientFromFlags assembles a *realhttp.Client from the config file and
// the --base-url override, installing a bearer security policy when the
// config names an environment variable carrying a token.
func newClientFromFlags() (*realhttp.Client, error) {
	cfg, err := loadFileConfig(flagConfigPath)
	if err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if flagBaseURL != "" {
		baseURL = flagBaseURL
	}

	if baseURL == "" {
		return nil, fmt.Errorf("no base URL: pass --base-url or set base_url in %s", flagConfigPath)
	}

	headers := realhttp.NewHeaders()
	for name, value := range cfg.Headers {
		headers.Set(name, value)
	}

	opts := []realhttp.Option{
		realhttp.WithDefaultHeaders(headers),
		realhttp.WithDefaultTimeout(cfg.defaultTimeout()),
		realhttp.WithLogger(buildLogger()),
	}

	if cfg.MaxConcurrentOps > 0 {
		opts = append(opts, realhttp.WithMaxConcurrentOperations(cfg.MaxConcurrentOps))
	}

	if token := cfg.bearerToken(); token != "" {
		opts = append(opts, realhttp.WithSecurity(realhttp.SecurityFunc(
			func(_ context.Context, req *http.Request) error {
				req.Header.Set("Authorization", "Bearer "+token)

				return nil
			},
		)))
	}

	return realhttp.NewClient(baseURL, opts...)
}

// isInteractive reports whether stdout is a terminal, via go-isatty —
// progress output (the progress line runGet prints) is only worth rendering
// on a real TTY.
func isInteractive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}
