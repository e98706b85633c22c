package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"Retrievo/internal/api"
	"Retrievo/internal/archive"
	"Retrievo/internal/cache"
	"Retrievo/internal/chat"
	"Retrievo/internal/config"
	"Retrievo/internal/console"
	"Retrievo/internal/notify"
	"Retrievo/internal/session"
	"Retrievo/internal/telemetry"
	"Retrievo/internal/upload"
	"Retrievo/internal/watch"
	"Retrievo/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing .env is fine; the environment and flags still apply.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	flag.StringVar(&cfg.APIBaseURL, "api-url", cfg.APIBaseURL, "Backend base URL")
	flag.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for rotated log, trace and metric files")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	flag.BoolVar(&cfg.Serve, "serve", cfg.Serve, "Serve the browser front-end instead of the terminal")
	flag.StringVar(&cfg.ServeAddr, "addr", cfg.ServeAddr, "Listen address for -serve")
	flag.StringVar(&cfg.WatchDir, "watch", cfg.WatchDir, "Upload documents dropped into this directory")
	flag.StringVar(&cfg.ArchivePath, "archive", cfg.ArchivePath, "SQLite file to archive the transcript to on exit")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()
	if envErr != nil {
		logger.Debug("no .env file loaded", "error", envErr)
	}

	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	client, err := api.New(cfg.APIBaseURL,
		api.WithLogger(logger),
		api.WithTracer(tracer),
		api.WithMeter(meter),
	)
	if err != nil {
		return fmt.Errorf("failed to create api client: %w", err)
	}

	printer := notify.NewPrinter(os.Stdout)
	var hub *web.Hub
	var notifier notify.Notifier = printer
	if cfg.Serve {
		hub = web.NewHub(logger)
		defer hub.Close()
		notifier = notify.Multi{printer, hub}
	}

	log := session.NewLog()
	chatWidget, err := chat.NewWidget(client, log, notifier, logger)
	if err != nil {
		return err
	}
	uploadWidget, err := upload.NewWidget(client, notifier, upload.DefaultLimits(), logger)
	if err != nil {
		return err
	}

	var store *archive.Store
	if cfg.ArchivePath != "" {
		store, err = archive.Open(cfg.ArchivePath, logger)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer store.Close()
	}

	var watched *cache.Seen
	if cfg.WatchDir != "" {
		watched = cache.NewSeen()
		watcher, err := watch.New(uploadWidget, watched, notifier, logger, nil)
		if err != nil {
			return err
		}
		defer watcher.Stop()
		go func() {
			if err := watcher.Run(ctx, cfg.WatchDir); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("watcher stopped", "dir", cfg.WatchDir, "error", err)
				printer.Notify(notify.New(notify.LevelError, notify.SourceWatch, "Folder watcher stopped: "+err.Error()))
			}
		}()
	}

	if cfg.Serve {
		chatWidget.OnAppend(hub.PublishMessage)
		return serve(ctx, cfg, chatWidget, uploadWidget, client, hub, store, log, logger)
	}

	var archiver console.Archiver
	if store != nil {
		archiver = store
	}
	repl, err := console.New(console.Options{
		Chat:    chatWidget,
		Upload:  uploadWidget,
		Checker: client,
		Archive: archiver,
		Printer: printer,
		In:      os.Stdin,
		Backend: client.BaseURL(),
		Logger:  logger,
		Watched: watched,
	})
	if err != nil {
		return err
	}
	return repl.Run(ctx)
}

func serve(ctx context.Context, cfg config.Config, chatWidget *chat.Widget, uploadWidget *upload.Widget, client *api.Client, hub *web.Hub, store *archive.Store, log *session.Log, logger *slog.Logger) error {
	server, err := web.New(ctx, chatWidget, uploadWidget, client, hub, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ServeAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	start := time.Now().UTC()
	logger.Info("serving browser front-end", "addr", cfg.ServeAddr, "backend", client.BaseURL())
	fmt.Printf("Retrievo listening on %s (backend %s)\n", cfg.ServeAddr, client.BaseURL())

	err = runServer(ctx, srv)

	if store != nil {
		sessionID := fmt.Sprintf("session_%d", start.Unix())
		if saveErr := store.Save(context.Background(), log.Snapshot(sessionID, client.BaseURL(), start)); saveErr != nil {
			logger.Error("failed to archive session on exit", "error", saveErr)
		}
	}
	return err
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
