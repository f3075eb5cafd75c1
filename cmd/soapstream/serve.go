package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/soapstream/internal/api"
	"github.com/dgnsrekt/soapstream/internal/config"
	"github.com/dgnsrekt/soapstream/internal/netutil"
	"github.com/dgnsrekt/soapstream/internal/relay"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			srvCfg, err := config.LoadServer()
			if err != nil {
				return fmt.Errorf("load server config: %w", err)
			}
			if addr != "" {
				srvCfg.BindAddr = addr
			}
			relayCfg, err := relay.LoadConfig(srvCfg.RelayConfigFile)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, opts, appOptions{
				logFile: srvCfg.LogFile,
				broker:  relay.NewBroker(),
				relay:   relayCfg,
			})
			if err != nil {
				return err
			}
			defer a.close()

			ln, err := netutil.Listen(srvCfg.BindAddr, srvCfg.PortCandidates, srvCfg.PortAutoFallback)
			if err != nil {
				return fmt.Errorf("bind api %s: %w", srvCfg.BindAddr, err)
			}
			bindAddr := ln.Addr().String()

			srv := &http.Server{Handler: api.NewServer(a.svc)}
			errCh := make(chan error, 1)
			go func() {
				slog.Info("api listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("api server failed: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("api shutdown failed", "error", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "bind address (overrides SOAP_BIND_ADDR)")
	return cmd
}
