package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/sync/semaphore"

	"go-pixel-worker/internal/config"
	"go-pixel-worker/internal/models"
	"go-pixel-worker/internal/ops"
	"go-pixel-worker/internal/pipeline"
	"go-pixel-worker/internal/processor"
	"go-pixel-worker/internal/sender"
	"go-pixel-worker/internal/source"
)

type App struct {
	ctx       context.Context
	cfg       *config.Config
	processor *processor.Processor
	sender    sender.SenderService
	overlay   *models.Image
	window    int64
}

func SetupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	w := os.Stderr
	logger := slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.TimeOnly,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if err, ok := a.Value.Any().(error); ok {
					aErr := tint.Err(err)
					aErr.Key = a.Key
					return aErr
				}
				return a
			},
		}),
	)
	slog.SetDefault(logger)
}

func main() {
	configPath := flag.String("config", "", "Path to the pipeline YAML file")
	listOps := flag.Bool("list-ops", false, "Print the available operations and exit")
	flags := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if *listOps {
		fmt.Println("pixel:", strings.Join(ops.Names(pipeline.Pixel), ", "))
		fmt.Println("image:", strings.Join(ops.Names(pipeline.Image), ", "))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		SetupLogger("info")
		slog.Error("Failed to load config", "error", err)
		os.Exit(78)
	}
	cfg.ApplyFlags(flags)
	cfg.Inputs = append(cfg.Inputs, flag.Args()...)
	SetupLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid config", "error", err)
		os.Exit(78)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-signalCh:
			slog.Info("Received termination signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	granularity, err := pipeline.ParseGranularity(cfg.Granularity)
	if err != nil {
		return err
	}
	p, err := ops.Build(granularity, cfg.Operations)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	opts := []processor.Option{
		processor.WithThreads(cfg.ThreadCount()),
		processor.WithLogger(slog.Default()),
	}
	if cfg.QueueLimit > 0 {
		opts = append(opts, processor.WithQueueLimit(cfg.QueueLimit))
	}
	proc, err := processor.New(p, opts...)
	if err != nil {
		return fmt.Errorf("failed to create processor: %w", err)
	}
	defer proc.Destroy()

	images, err := loadInputs(ctx, cfg)
	if err != nil {
		return err
	}
	var overlay *models.Image
	if cfg.Overlay != "" {
		loaded, err := source.NewLoader(1).Load(ctx, []string{cfg.Overlay})
		if err != nil {
			return err
		}
		overlay = loaded[0].Image
	}

	out, err := sender.NewFileSender(cfg.OutputDir, cfg.Format)
	if err != nil {
		return err
	}

	// One job running plus a full queue; submitting past that would drop jobs.
	window := int64(len(images))
	if cfg.QueueLimit > 0 {
		window = int64(cfg.QueueLimit) + 1
	}

	app := App{
		ctx:       ctx,
		cfg:       cfg,
		processor: proc,
		sender:    out,
		overlay:   overlay,
		window:    max(window, 1),
	}
	start := time.Now()
	app.submit(images)

	stats := proc.Stats()
	slog.Info("Finished",
		"images", len(images),
		"processed", stats.Processed,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
		"workers", proc.Workers(),
		"elapsed", time.Since(start))
	return nil
}

func loadInputs(ctx context.Context, cfg *config.Config) ([]source.Named, error) {
	if cfg.Synthetic.Count > 0 {
		slog.Info("Generating synthetic images",
			"count", cfg.Synthetic.Count, "width", cfg.Synthetic.Width, "height", cfg.Synthetic.Height)
		return source.Synthetic(cfg.Synthetic.Count, cfg.Synthetic.Width, cfg.Synthetic.Height, cfg.Synthetic.Seed), nil
	}
	if len(cfg.Inputs) == 0 {
		return nil, fmt.Errorf("no inputs: pass files or set synthetic.count")
	}
	return source.NewLoader(4).Load(ctx, cfg.Inputs)
}

// submit feeds every image to the processor, keeping at most app.window jobs
// outstanding, and returns once all callbacks fired or the context ended.
func (app App) submit(images []source.Named) {
	sem := semaphore.NewWeighted(app.window)
	var wg sync.WaitGroup

	for _, img := range images {
		if err := sem.Acquire(app.ctx, 1); err != nil {
			slog.Info("Context cancelled, stopping submission")
			break
		}
		inputs := []*models.Image{img.Image}
		if app.overlay != nil {
			inputs = append(inputs, app.overlay)
		}
		meta := jobMeta(img.Name, app.cfg.Meta)

		wg.Add(1)
		name := img.Name
		err := app.processor.Process(inputs, meta, func(err error, output *models.Image, meta any) {
			// Saving happens off the processor's goroutine so dispatch is not held up.
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				app.handleResult(name, err, output, meta)
			}()
		})
		if err != nil {
			slog.Error("Failed to submit image", "name", name, "error", err)
			wg.Done()
			sem.Release(1)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-app.ctx.Done():
		slog.Warn("Context cancelled, abandoning outstanding jobs")
	}
}

// jobMeta copies the configured meta and sets "name", which always wins.
func jobMeta(name string, base map[string]any) pipeline.Meta {
	meta := make(pipeline.Meta, len(base)+1)
	maps.Copy(meta, base)
	meta["name"] = name
	return meta
}

func (app App) handleResult(name string, err error, output *models.Image, meta any) {
	switch {
	case err != nil:
		slog.Error("Pipeline failed", "name", name, "error", err)
	case output == nil:
		slog.Warn("Job dropped from queue", "name", name)
	default:
		path, err := app.sender.Send(app.ctx, name, output)
		if err != nil {
			slog.Error("Failed to save output", "name", name, "error", err)
			return
		}
		attrs := []any{"name", name, "path", path}
		if n, ok := countedPixels(meta); ok {
			attrs = append(attrs, "pixels", n)
		}
		slog.Info("Processed image", attrs...)
	}
}

// countedPixels sums the "pixels" counters left by the count_pixels stage. With
// several workers meta is one value per worker.
func countedPixels(meta any) (int, bool) {
	metas, ok := meta.([]any)
	if !ok {
		metas = []any{meta}
	}
	total, found := 0, false
	for _, m := range metas {
		pm, ok := m.(pipeline.Meta)
		if !ok {
			continue
		}
		if n, ok := pm["pixels"].(int); ok {
			total += n
			found = true
		}
	}
	return total, found
}
