package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/thereceipt/receipt-raster/internal/api"
	"github.com/thereceipt/receipt-raster/internal/config"
	"github.com/thereceipt/receipt-raster/internal/logging"
	"github.com/thereceipt/receipt-raster/internal/printer"
	"github.com/thereceipt/receipt-raster/internal/renderer"
	"github.com/thereceipt/receipt-raster/internal/service"
)

// Version is set during build via ldflags
var Version = "dev"

// Application holds the long lived components of the server
type Application struct {
	config  *config.Config
	logger  *zap.Logger
	spooler *printer.Spooler
	api     *api.Server
	server  *http.Server
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./config.yaml if present)")
	flag.Parse()

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication loads configuration and wires the print pipeline
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Receipt service starting",
		zap.String("version", Version),
		zap.String("printer", cfg.Printer.DefaultEndpoint()),
		zap.String("mode", cfg.Printer.Mode),
		zap.Int("paper_width", cfg.Layout.PaperWidth),
	)

	app := &Application{config: cfg, logger: logger}
	if err := app.initializeServices(); err != nil {
		return nil, err
	}
	return app, nil
}

func (app *Application) initializeServices() error {
	cfg := app.config

	fonts, err := renderer.LoadFonts(cfg.Font.Path)
	if err != nil {
		return fmt.Errorf("failed to load font: %w", err)
	}
	if !fonts.HasGlyph('ﺑ') {
		app.logger.Warn("Font has no Arabic presentation forms, Arabic text will print as boxes",
			zap.String("font", fonts.Name()),
		)
	}

	opener := printer.NewDeviceOpener(printer.TransportOptions{
		DialTimeout:  cfg.Printer.DialTimeout,
		WriteTimeout: cfg.Printer.WriteTimeout,
	}, app.logger)

	session := printer.NewSession(opener, printer.SessionConfig{
		FeedLines:      cfg.Printer.FeedLines,
		PartialCut:     cfg.Printer.PartialCut,
		CodePage:       byte(cfg.Printer.CodePage),
		ContextualMode: byte(cfg.Printer.ContextualMode),
	}, app.logger)

	app.spooler = printer.NewSpooler(cfg.Printer.MaxRetries, cfg.Printer.RetryDelay, app.logger)

	svc, err := service.New(fonts, session, app.spooler, service.Options{
		Layout:          cfg.Layout,
		Mode:            cfg.Printer.Mode,
		DefaultEndpoint: cfg.Printer.DefaultEndpoint(),
		TextColumns:     cfg.Printer.TextColumns,
		PrintTimeout:    cfg.Printer.PrintTimeout,
	}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	app.api = api.NewServer(svc, cfg.Server.AllowedOrigins, app.logger)
	app.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      app.api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	app.logger.Info("Services initialized", zap.String("font", fonts.Name()))
	return nil
}

// Start serves HTTP until a shutdown signal arrives
func (app *Application) Start() error {
	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	app.shutdown()
	return nil
}

func (app *Application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app.api.Close()
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	// Jobs already writing to a printer finish before the spooler returns
	app.spooler.Stop()
	app.logger.Info("Receipt service stopped")
	_ = app.logger.Sync()
}
