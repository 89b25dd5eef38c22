// Command scanprofile runs the live scan pipeline against a synthetic frame
// source and serves its HTTP interface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/scanprofile/internal/config"
	"github.com/banshee-data/scanprofile/internal/db"
	"github.com/banshee-data/scanprofile/internal/monitoring"
	"github.com/banshee-data/scanprofile/internal/scan/engine"
	"github.com/banshee-data/scanprofile/internal/scan/frames"
	"github.com/banshee-data/scanprofile/internal/scan/governor"
	"github.com/banshee-data/scanprofile/internal/scan/indexcache"
	"github.com/banshee-data/scanprofile/internal/scan/monitor"
	"github.com/banshee-data/scanprofile/internal/scan/pipeline"
	"github.com/banshee-data/scanprofile/internal/scan/storage/sqlite"
	"github.com/banshee-data/scanprofile/internal/timeutil"
	"github.com/banshee-data/scanprofile/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to a .json or .yaml scan config (default "+config.DefaultConfigPath+" when present)")
	listen     = flag.String("listen", "", "Listen address (overrides config)")
	dbPath     = flag.String("db", "", "SQLite database path (overrides config)")
	noStore    = flag.Bool("no-store", false, "Do not persist captures")
	pattern    = flag.String("pattern", "", "Synthetic source pattern: rings or uniform (overrides config)")
	width      = flag.Int("width", 0, "Synthetic frame width (overrides config)")
	height     = flag.Int("height", 0, "Synthetic frame height (overrides config)")
	debug      = flag.Bool("debug", false, "Enable diagnostic logging")
	trace      = flag.Bool("trace", false, "Enable per-frame trace logging")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVer {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlags(cfg)

	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "migrate":
			if err := db.RunMigrateCommand(flag.Args()[1:], cfg.GetDBPath(), os.Stdout); err != nil {
				log.Fatalf("migrate: %v", err)
			}
			return
		default:
			log.Fatalf("unknown command %q", flag.Arg(0))
		}
	}

	var diagW, traceW io.Writer
	if *debug || *trace {
		diagW = os.Stderr
	}
	if *trace {
		traceW = os.Stderr
	}
	setLogWriters(os.Stderr, diagW, traceW)
	monitoring.Logf("starting %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
	monitoring.Logf("scanprofile stopped")
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: scanprofile [flags]\n       scanprofile [flags] migrate <action>\n\nFlags:\n")
	flag.PrintDefaults()
	fmt.Fprintln(out)
	db.PrintMigrateHelp(out)
}

// loadConfig reads path, or the default config file when path is empty and
// the file exists. With neither, built-in defaults apply.
func loadConfig(path string) (*config.ScanConfig, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			return config.EmptyScanConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	return config.LoadScanConfig(path)
}

func applyFlags(cfg *config.ScanConfig) {
	if *listen != "" {
		cfg.Listen = listen
	}
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}
	if *pattern != "" {
		cfg.Pattern = pattern
	}
	if *width > 0 {
		cfg.SourceWidth = width
	}
	if *height > 0 {
		cfg.SourceHeight = height
	}
}

func setLogWriters(ops, diag, trace io.Writer) {
	db.SetLogWriters(ops, diag, trace)
	engine.SetLogWriters(ops, diag, trace)
	governor.SetLogWriters(ops, diag, trace)
	indexcache.SetLogWriters(ops, diag, trace)
	pipeline.SetLogWriters(ops, diag, trace)
	monitor.SetLogWriters(ops, diag, trace)
}

// pipelineConfig maps the file config onto the pipeline.
func pipelineConfig(cfg *config.ScanConfig) (pipeline.Config, error) {
	reduction, err := engine.ParseReduction(cfg.GetReduction())
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		TargetFPS:  cfg.GetTargetFPS(),
		Downsample: cfg.GetDownsample(),
		Normalize:  cfg.GetNormalize(),
		Reduction:  reduction,
		HistoryMax: cfg.GetHistoryMax(),
	}, nil
}

func sourceConfig(cfg *config.ScanConfig) frames.SyntheticConfig {
	return frames.SyntheticConfig{
		Width:             cfg.GetSourceWidth(),
		Height:            cfg.GetSourceHeight(),
		FPS:               cfg.GetSourceFPS(),
		Pattern:           cfg.GetPattern(),
		Level:             100,
		OscillationPeriod: 120,
	}
}

// run wires the source, pipeline and web server and blocks until ctx is
// cancelled or one of them fails.
func run(ctx context.Context, cfg *config.ScanConfig) error {
	pcfg, err := pipelineConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	p, err := pipeline.New(pcfg)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := frames.NewSyntheticSource(sourceConfig(cfg), timeutil.RealClock{})
	if err != nil {
		return fmt.Errorf("failed to create frame source: %w", err)
	}
	defer src.Close()

	wsCfg := monitor.WebServerConfig{
		Address:  cfg.GetListen(),
		Pipeline: p,
		Plotter:  monitor.NewProfilePlotter(cfg.GetPlotDir()),
	}
	if !*noStore {
		database, err := db.NewDB(cfg.GetDBPath())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()
		wsCfg.Store = sqlite.NewResultStore(database.DB)
	}
	ws := monitor.NewWebServer(wsCfg)

	if err := p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return feed(gctx, src, p)
	})
	g.Go(func() error {
		return ws.Start(gctx)
	})
	return g.Wait()
}

// feed pushes source frames into the pipeline until ctx is done.
func feed(ctx context.Context, src frames.Source, p *pipeline.Pipeline) error {
	for {
		frame, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, frames.ErrSourceClosed) {
				return nil
			}
			return fmt.Errorf("frame source: %w", err)
		}
		if err := p.Submit(frame); err != nil {
			return fmt.Errorf("submit frame %d: %w", frame.Seq, err)
		}
	}
}
