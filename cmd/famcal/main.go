package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"famcal/internal/backup"
	"famcal/internal/capture"
	"famcal/internal/config"
	appLog "famcal/internal/log"
	"famcal/internal/metrics"
	"famcal/internal/recurring"
	"famcal/internal/store"
	"famcal/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	listen     string
	snapshot   string
	year       int
	month      int
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("famcal starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if !flags.debug {
		appLog.SetLevel(appLog.Level(conf.LogLevel))
	}

	// CLI --listen overrides config file and environment.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	loc := conf.Location()

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"data_dir", conf.DataDir,
		"start_month", conf.StartMonth,
		"backup_cron", conf.Backup.Cron,
		"snapshot", flags.snapshot,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	coll := metrics.NewCollector(reg)

	catalog := recurring.Default()
	events := store.New(
		store.WithPersister(store.NewFilePersister(conf.DataDir)),
		store.WithCatalog(catalog),
		store.WithRecorder(coll),
	)
	events.Load()

	srv := web.NewServer(web.Deps{
		Config:   conf,
		Store:    events,
		Catalog:  catalog,
		Metrics:  coll,
		Gatherer: reg,
		Debug:    flags.debug,
	})

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.snapshot != "" {
		if err := runSnapshot(ctx, srv, conf, flags, loc); err != nil {
			appLog.Error("snapshot failed", err, "path", flags.snapshot)
			os.Exit(1)
		}
		return
	}

	backups := backup.New(events, conf.BackupDir(), conf.Backup.Keep, loc)
	if err := backups.Start(conf.Backup.Cron); err != nil {
		appLog.Error("backup schedule rejected", err, "cron", conf.Backup.Cron)
	}

	serveErr := srv.Serve(ctx)
	if serveErr != nil {
		appLog.Error("HTTP server failed", serveErr, "listen", conf.Listen)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	backups.Stop(stopCtx)
	cancel()
	appLog.Info("famcal exiting")
	if serveErr != nil {
		os.Exit(1)
	}
}

// runSnapshot serves the UI on a loopback port just long enough for
// headless Chromium to capture one month.
func runSnapshot(ctx context.Context, srv *web.Server, conf *config.Config, flags flagConfig, loc *time.Location) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	hs := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("snapshot server failed", err)
		}
	}()
	defer hs.Close()

	year, month := conf.StartMonthOr(time.Now().In(loc))
	if flags.year > 0 {
		year = flags.year
	}
	if flags.month > 0 {
		month = time.Month(flags.month)
	}

	return capture.CaptureMonthPNG(ctx, capture.MonthOptions{
		BaseURL:    "http://" + ln.Addr().String(),
		Year:       year,
		Month:      month,
		OutputPath: flags.snapshot,
		Width:      conf.Snapshot.Width,
		Height:     conf.Snapshot.Height,
	})
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./famcal.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Write a PNG of one month to this path and exit")
	flag.IntVar(&cfg.year, "year", 0, "Year for -snapshot (default: configured start month)")
	flag.IntVar(&cfg.month, "month", 0, "Month for -snapshot (1-12)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
