package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/unklstewy/ads-btrack/internal/api"
	"github.com/unklstewy/ads-btrack/internal/db"
	"github.com/unklstewy/ads-btrack/internal/logging"
	"github.com/unklstewy/ads-btrack/internal/metrics"
	"github.com/unklstewy/ads-btrack/pkg/adsb"
	"github.com/unklstewy/ads-btrack/pkg/config"
	"github.com/unklstewy/ads-btrack/pkg/coordinates"
	"github.com/unklstewy/ads-btrack/pkg/modes"
	"github.com/unklstewy/ads-btrack/pkg/receiver"
	"github.com/unklstewy/ads-btrack/pkg/tracker"
)

type options struct {
	debug            bool
	disableAirplanes bool
	strict           bool
	quiet            bool
}

// adsb1090 dumps the frames of a raw Mode S feed and tracks the aircraft
// heard on it.
func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	host := flag.String("host", "", "Host of the raw feed (default from config: localhost)")
	port := flag.Int("port", 0, "Port of the raw feed (default from config: 30002)")
	debug := flag.Bool("debug", false, "Print the full decoded record of each frame")
	disableAirplanes := flag.Bool("disable-airplanes", false, "Disable the table of tracked airplanes")
	strict := flag.Bool("strict", false, "Stop on the first frame that fails to decode")
	quiet := flag.Bool("quiet", false, "Suppress the per-frame echo")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *host != "" {
		cfg.Receiver.Host = *host
	}
	if *port != 0 {
		cfg.Receiver.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log, nil)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	log.Println("===========================================")
	log.Println("  ADS-B 1090 MHz Tracker")
	log.Println("===========================================")
	log.Printf("Feed: %s:%d", cfg.Receiver.Host, cfg.Receiver.Port)
	log.Printf("Pairing window: %v, evict after: %v", cfg.Tracker.MaxPairAge(), cfg.Tracker.StaleAfter())
	if cfg.Site.Enabled {
		log.Printf("Site: %s at %.4f°, %.4f°", cfg.Site.Name, cfg.Site.Latitude, cfg.Site.Longitude)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{
		debug:            *debug,
		disableAirplanes: *disableAirplanes,
		strict:           *strict,
		quiet:            *quiet,
	}
	if err := run(ctx, cfg, opts, logger.Slog()); err != nil {
		log.Fatalf("Tracker stopped: %v", err)
	}
	log.Println("✓ Tracker stopped")
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger) error {
	store := tracker.New(tracker.Options{
		MaxPairAge: cfg.Tracker.MaxPairAge(),
		StaleAfter: cfg.Tracker.StaleAfter(),
	})
	trk := tracker.NewTracker(store)
	m := metrics.New(store.Len)

	var recorder *db.Recorder
	var database *db.DB
	if cfg.Database.Enabled {
		log.Printf("Connecting to %s database...", cfg.Database.Driver)
		var err error
		database, err = db.ReconnectWithRetry(ctx, cfg.Database, receiver.RetryConfig{
			MaxRetries:   5,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2,
		}, logger)
		if err != nil {
			return err
		}
		defer database.Close()
		log.Println("✓ Database connected")

		if err := database.InitSchema(ctx); err != nil {
			return err
		}
		log.Println("✓ Database schema initialized")

		recorder = db.NewRecorder(database, store.Aircraft, cfg.Database, logger)
		recorder.OnRecord = m.Recorded
	}

	onEvict := func(ids []adsb.Identity) {
		m.Evicted(len(ids))
		if recorder != nil {
			recorder.Repository().Forget(ids)
		}
	}
	sweeper := tracker.NewSweeper(store, cfg.Tracker.SweepInterval(), cfg.Tracker.StaleAfter(),
		tracker.WithLogger(logger),
		tracker.WithEvictHook(onEvict),
	)

	client := receiver.NewClient(cfg.Receiver.Host, cfg.Receiver.Port)
	client.Logger = logger
	client.Retry = receiver.DefaultRetryConfig()
	client.Retry.MaxRetries = cfg.Receiver.MaxRetries
	if d := cfg.Receiver.RetryDelay(); d > 0 {
		client.Retry.InitialDelay = d
	}

	var site *coordinates.Geographic
	if cfg.Site.Enabled {
		site = &coordinates.Geographic{
			Latitude:  cfg.Site.Latitude,
			Longitude: cfg.Site.Longitude,
			Altitude:  cfg.Site.Elevation,
		}
	}

	h := &frameHandler{
		out:       os.Stdout,
		decoder:   modes.NewDecoder(modes.DecoderOptions{}),
		tracker:   trk,
		metrics:   m,
		site:      site,
		logger:    logger,
		now:       time.Now,
		onEvict:   onEvict,
		debug:     opts.debug,
		airplanes: cfg.Display.Enabled && !opts.disableAirplanes,
		strict:    opts.strict,
		quiet:     opts.quiet,
		refresh:   rate.NewLimiter(rate.Limit(cfg.Display.RefreshPerSecond), 1),
		warn:      rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return client.Run(ctx, h.handle)
	})
	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	if cfg.Server.Enabled {
		var history api.HistorySource
		if recorder != nil {
			history = recorder.Repository()
		}
		srv := api.New(store, api.Options{
			History:        history,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			PushInterval:   cfg.Server.PushInterval(),
			Metrics:        m.Handler(),
			Logger:         logger,
			Stats: func() map[string]any {
				stats := map[string]any{
					"positions":   trk.Positions(),
					"feed_lines":  client.Lines(),
					"connections": client.Connections(),
				}
				if database != nil {
					stats["database_ok"] = db.HealthCheck(ctx, database)
				}
				return stats
			},
		})
		log.Printf("✓ HTTP API on %s", cfg.Server.Addr())
		g.Go(func() error {
			return srv.Run(ctx, cfg.Server.Addr())
		})
	}

	if recorder != nil {
		log.Printf("✓ Recording positions every %v", cfg.Database.RecordInterval())
		g.Go(func() error {
			return recorder.Run(ctx)
		})
	}

	log.Println("  Press Ctrl+C to stop")
	return g.Wait()
}
