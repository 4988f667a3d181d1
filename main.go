package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eolymp/direct-printing/pkg/api"
	"github.com/eolymp/direct-printing/pkg/config"
	"github.com/eolymp/direct-printing/pkg/ipp"
	"github.com/eolymp/direct-printing/pkg/logger"
	"github.com/eolymp/direct-printing/pkg/printing"
	"github.com/eolymp/direct-printing/pkg/relay"
	"github.com/eolymp/direct-printing/pkg/settings"
)

var version = "0.0.0"
var commit = "HEAD"

func main() {
	pflag.Usage = func() {
		f := os.Stderr
		_, _ = fmt.Fprintf(f, "Usage: %s [options]\n", os.Args[0])
		_, _ = fmt.Fprintf(f, "Version: %s (%s)\n", version, commit)
		_, _ = fmt.Fprintln(f, "Options:")
		pflag.PrintDefaults()
	}

	config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := config.Load(pflag.CommandLine)
	if err != nil {
		fail("Invalid configuration: %v", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fail("Failed to create logger: %v", err)
	}

	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Discover {
		discover(ctx, cfg)
		return
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Service stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.Settings.Path == "" {
		path, err := settings.DefaultPath()
		if err != nil {
			return err
		}

		cfg.Settings.Path = path
	}

	log.Info("Starting",
		zap.String("version", version),
		zap.String("config", cfg.File),
		zap.String("cups", cfg.CUPS.Server),
		zap.String("settings", cfg.Settings.Path),
	)

	names, err := printing.NewSanitizer(cfg.Names.Replacements...)
	if err != nil {
		return err
	}

	driver := printing.NewCUPS(cfg.CUPS.Server,
		ipp.WithUsername(cfg.CUPS.Username),
		ipp.WithHTTPClient(&http.Client{Timeout: cfg.CUPS.Timeout}),
	)

	printingLog := log.Named("printing")
	catalog := printing.NewCatalog(driver, names, printingLog)
	fetcher := printing.NewFetcher(driver, names, printingLog)
	negotiator := printing.NewNegotiator(catalog, fetcher, driver, names, printingLog)
	dispatcher := printing.NewDispatcher(negotiator, driver, cfg.Print.TempDir, printingLog)
	store := settings.NewStore(cfg.Settings.Path, log.Named("settings"))

	apiCfg := api.Config{
		Address:         cfg.HTTP.Address(),
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		MaxBodySize:     cfg.HTTP.MaxBodySize,
		CORS:            api.DefaultCORSConfig(),
	}
	apiCfg.CORS.AllowOrigins = cfg.HTTP.CORSAllowOrigins

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.NewRouter(apiCfg, api.NewHandler(catalog, negotiator, dispatcher, store), log.Named("http"))
	server := api.NewServer(apiCfg, router, log.Named("http"))

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return server.Run(ctx)
	})

	if cfg.Relay.Enabled {
		cli, err := relay.Connect(cfg.Relay.ServerURL)
		if err != nil {
			return err
		}

		r := relay.New(relay.Config{
			Space:      cfg.Relay.Space,
			Token:      cfg.Relay.Token,
			Printer:    cfg.Relay.Printer,
			JobTTL:     cfg.Relay.JobTTL,
			JobTimeout: cfg.Relay.JobTimeout,
		}, relay.Dial(cli), dispatcher, store, driver, log.Named("relay"))

		eg.Go(func() error {
			return r.Run(ctx)
		})
	}

	return eg.Wait()
}

// discover lists IPP printers announced on the local network until the discovery timeout.
func discover(ctx context.Context, cfg *config.Config) {
	f := os.Stdout

	_, _ = fmt.Fprintln(f, "Looking for available printers...")

	ctx, cancel := context.WithTimeout(ctx, cfg.Discovery.Timeout)
	defer cancel()

	printers, err := ipp.Find(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(f, "Failed to find printers: %v\n", err)
		return
	}

	count := 0
	for printer := range printers {
		_, _ = fmt.Fprintf(f, "- %s: %s (%s)\n", printer.Name, printer.URI, printer.State)
		count++
	}

	if count == 0 {
		_, _ = fmt.Fprintln(f, "No printers found.")
	}
}

func fail(msg string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "ERROR: "+msg+"\n", args...)
	pflag.Usage()
	os.Exit(2)
}
