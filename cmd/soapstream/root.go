package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/soapstream/internal/browser"
	"github.com/dgnsrekt/soapstream/internal/cdp"
	"github.com/dgnsrekt/soapstream/internal/config"
	"github.com/dgnsrekt/soapstream/internal/controller"
	"github.com/dgnsrekt/soapstream/internal/relay"
	"github.com/dgnsrekt/soapstream/internal/resolver"
)

type rootOptions struct {
	logLevel string
	profile  string
	headful  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "soapstream",
		Short:         "Resolve streaming pages to playable manifest URLs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides SOAP_LOG_LEVEL)")
	root.PersistentFlags().StringVar(&opts.profile, "profile", "", "site profile YAML (overrides SOAP_PROFILE_FILE)")
	root.PersistentFlags().BoolVar(&opts.headful, "headful", false, "show the browser window")

	root.AddCommand(
		newWatchCmd(opts),
		newResolveCmd(opts),
		newSearchCmd(opts),
		newEpisodesCmd(opts),
		newHistoryCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// app holds what every subcommand needs. close releases the browser and
// flushes capture files.
type app struct {
	cfg      *config.Config
	profile  *config.Profile
	launcher *browser.Launcher
	svc      *controller.Service
}

type appOptions struct {
	logFile string
	broker  *relay.Broker
	relay   *relay.RelayConfig
}

func newApp(ctx context.Context, opts *rootOptions, ao appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = strings.ToLower(opts.logLevel)
	}
	if opts.profile != "" {
		cfg.ProfileFile = opts.profile
	}
	if opts.headful {
		cfg.Headless = false
	}
	logFile := cfg.LogFile
	if ao.logFile != "" {
		logFile = ao.logFile
	}
	if err := setupLogger(os.Stderr, cfg.LogLevel, logFile); err != nil {
		return nil, fmt.Errorf("logger setup failed: %w", err)
	}

	profile, err := config.LoadProfile(cfg.ProfileFile)
	if err != nil {
		return nil, err
	}

	slog.Info("config loaded",
		"headless", cfg.Headless,
		"cdp_remote", cfg.CDPRemote,
		"request_timeout_ms", cfg.RequestTimeoutMS,
		"max_gesture_attempts", cfg.MaxGestureAttempts,
		"profile_file", cfg.ProfileFile,
		"base_url", profile.BaseURL,
		"log_level", cfg.LogLevel,
	)

	launcher := browser.NewLauncher(browser.ConfigFrom(cfg))
	if err := launcher.Launch(ctx); err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	open := func(ctx context.Context) (resolver.Driver, error) {
		return cdp.Open(ctx, launcher.Allocator, launcher.OwnsBrowser())
	}
	svc, err := controller.New(controller.Options{
		Config:  cfg,
		Profile: profile,
		Open:    open,
		Broker:  ao.broker,
		Relay:   ao.relay,
	})
	if err != nil {
		launcher.Stop()
		return nil, err
	}
	return &app{cfg: cfg, profile: profile, launcher: launcher, svc: svc}, nil
}

func (a *app) close() {
	if err := a.svc.Close(); err != nil {
		slog.Warn("capture flush failed", "error", err)
	}
	a.launcher.Stop()
}
