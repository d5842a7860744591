package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/adverant/nexus/textscan/cmd/textscan/ui"
	"github.com/adverant/nexus/textscan/internal/clipboard"
	"github.com/adverant/nexus/textscan/internal/logging"
	"github.com/adverant/nexus/textscan/internal/webui"
)

var (
	serveAddr      string
	serveClipboard string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the TextScan page",
	Long: `Serve the browser UI. Each browser session gets its own upload workflow.

Copy writes to the clipboard of the host running the server, not the
browser's. On a host without a display the system clipboard is
unreachable, so serve falls back to an in-process memory clipboard and
Copy only marks the result as copied. Pass --clipboard to choose
explicitly.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (overrides TEXTSCAN_ADDR)")
	serveCmd.Flags().StringVar(&serveClipboard, "clipboard", "", "clipboard for Copy: system or memory (overrides TEXTSCAN_CLIPBOARD)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger("serve")

	addr := cfg.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	clipKind, fellBack := serveClipboardKind(serveClipboard, cfg.ClipboardKey, clipboard.SystemUsable())
	if fellBack {
		logger.Warn("System clipboard unreachable on this host; using memory clipboard", "configured", cfg.ClipboardKey)
		ui.Hint("No display found: Copy uses an in-memory clipboard. Pass --clipboard system to override.")
	}
	clip, err := clipboard.New(clipKind)
	if err != nil {
		return err
	}

	srv, err := webui.NewServer(&webui.Config{
		Extractor:      newExtractor(cfg),
		Clipboard:      clip,
		Clock:          clock.New(),
		CopiedReset:    cfg.CopiedReset,
		RequestTimeout: cfg.RequestTimeout,
		MaxUploadBytes: cfg.MaxUploadBytes,
		SessionIdleTTL: cfg.SessionIdleTTL,
	})
	if err != nil {
		return fmt.Errorf("build web ui: %w", err)
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepEvery := cfg.SessionIdleTTL / 4
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	sessionsDone := make(chan struct{})
	go func() {
		srv.Sessions().Run(ctx, sweepEvery)
		close(sessionsDone)
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("TextScan listening",
			"addr", addr,
			"extractUrl", cfg.ExtractURL,
			"clipboard", clipKind)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	ui.Success("Serving on http://%s", addr)

	var serveErr error
	select {
	case serveErr = <-errCh:
		stop()
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
	<-sessionsDone

	_, revoked := srv.Previews().Stats()
	logger.Info("Shutdown complete", "previewsReleased", revoked, "previewsLive", srv.Previews().Live())
	return serveErr
}
