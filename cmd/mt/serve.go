package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/modeltree/pkg/config"
	"github.com/vanderheijden86/modeltree/pkg/debug"
	"github.com/vanderheijden86/modeltree/pkg/remote"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(g *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Relay document edits between connected mt instances",
		Long: `Run a websocket hub. Every batch of edits one mt view --remote client
sends is forwarded to all other clients. The hub keeps no document of its
own, so clients should open the same file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mt hub listening on ws://%s/\n", ln.Addr())
			return runServe(ctx, g.cfg, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7070", "Address to listen on")
	return cmd
}

// runServe serves the hub on ln until ctx is done.
func runServe(ctx context.Context, cfg config.Config, ln net.Listener) error {
	timeout := cfg.Remote.WriteTimeout
	if timeout <= 0 {
		timeout = remote.DefaultSettings().WriteTimeout
	}
	hub := remote.NewHub(timeout)
	server := &http.Server{
		Handler:           hub,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		debug.Log("serve: shutting down with %d peers", hub.Peers())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		hub.Disconnect()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})
	return group.Wait()
}
