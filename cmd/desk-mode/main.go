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

	"github.com/ironsheep/desk-mode-mcp/internal/config"
	"github.com/ironsheep/desk-mode-mcp/internal/events"
	"github.com/ironsheep/desk-mode-mcp/internal/mode"
	"github.com/ironsheep/desk-mode-mcp/internal/pipeline"
	"github.com/ironsheep/desk-mode-mcp/internal/runner"
	"github.com/ironsheep/desk-mode-mcp/internal/sensors"
	"github.com/ironsheep/desk-mode-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "desk-mode: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("desk-mode - desk object detector and Study/Relax/Normal mode switcher")
	fmt.Println()
	fmt.Println("Usage: desk-mode [serve|run] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve            MCP server over stdin/stdout (default)")
	fmt.Println("  run              Replay a frame directory through the detector")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config PATH    JSON configuration file")
	fmt.Println("  --frames DIR     Frame directory (run)")
	fmt.Println("  --loop           Restart from the first frame after the last (run)")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	for _, env := range []string{
		config.EnvConfig, config.EnvLogLevel, config.EnvFramesDir, config.EnvFrameInterval,
		config.EnvSensorPath, config.EnvWSAddr, config.EnvMMPerPixel, config.EnvROIScale, config.EnvMinArea,
	} {
		fmt.Printf("  %s\n", env)
	}
	fmt.Println()
	fmt.Println("Variables may also be set in a .env file in the working directory.")
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 {
		switch args[0] {
		case "--version", "-v", "version":
			fmt.Printf("desk-mode %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return nil
		case "--help", "-h", "help":
			printUsage()
			return nil
		case "serve", "run":
			cmd, args = args[0], args[1:]
		}
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.Usage = printUsage
	configPath := fs.String("config", "", "JSON configuration file")
	framesDir := fs.String("frames", "", "frame directory")
	loop := fs.Bool("loop", false, "loop over the frame directory")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.FromEnvironment(*configPath)
	if err != nil {
		return err
	}
	if *framesDir != "" {
		cfg.FramesDir = *framesDir
	}
	if *loop {
		cfg.Loop = true
	}

	// stdout is reserved for MCP
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)
	logger.Debug("starting", "command", cmd, "version", Version, "built", BuildTime, "commit", GitCommit)

	p, err := pipeline.New(cfg.Pipeline, logger.With("component", "pipeline"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor, err := startSensors(ctx, cfg.SensorPath, logger.With("component", "sensors"))
	if err != nil {
		return err
	}

	if cmd == "run" {
		return runLoop(ctx, cfg, p, monitor, logger)
	}
	return serve(p, monitor, logger)
}

// startSensors follows the [TEMP] stream at path in the background. It
// returns nil when no path is configured.
func startSensors(ctx context.Context, path string, logger *slog.Logger) (*sensors.Monitor, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sensor stream: %w", err)
	}

	m := sensors.NewMonitor()
	go func() {
		<-ctx.Done()
		f.Close()
	}()
	go func() {
		if err := m.Run(ctx, f); err != nil && ctx.Err() == nil {
			logger.Warn("sensor stream stopped", "path", path, "error", err)
		}
	}()
	logger.Info("reading sensors", "path", path)
	return m, nil
}

func serve(p *pipeline.Pipeline, monitor *sensors.Monitor, logger *slog.Logger) error {
	server.Version = Version

	opts := []server.Option{server.WithLogger(logger.With("component", "mcp"))}
	if monitor != nil {
		opts = append(opts, server.WithSensors(monitor))
	}
	return server.New(p, opts...).Run()
}

func runLoop(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, monitor *sensors.Monitor, logger *slog.Logger) error {
	if cfg.FramesDir == "" {
		return fmt.Errorf("no frame directory: use --frames or %s", config.EnvFramesDir)
	}
	src, err := runner.NewDirSource(cfg.FramesDir, cfg.Loop)
	if err != nil {
		return err
	}
	logger.Info("replaying frames", "dir", cfg.FramesDir, "frames", src.Len(), "loop", cfg.Loop, "interval", cfg.Interval())

	consumers := []runner.ActionConsumer{events.LogConsumer{Logger: logger}}

	var hub *events.Hub
	if cfg.WSAddr != "" {
		hub = events.NewHub(logger.With("component", "events"))
		consumers = append(consumers, hub)
	}

	opts := []runner.Option{
		runner.WithInterval(cfg.Interval()),
		runner.WithLogger(logger.With("component", "runner")),
		runner.WithConsumers(consumers...),
	}
	if monitor != nil {
		opts = append(opts, runner.WithSensors(monitor))
	}
	r := runner.New(p, src, opts...)

	if hub != nil {
		hub.State = func() mode.State { return r.Status().Pipeline.State }

		mux := http.NewServeMux()
		mux.Handle("/events", hub)
		httpServer := &http.Server{Addr: cfg.WSAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		go func() {
			logger.Info("event feed listening", "addr", cfg.WSAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("event feed failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			hub.Close()
			httpServer.Shutdown(shutdownCtx)
		}()
	}

	err = r.Run(ctx)
	st := r.Status()
	logger.Info("runner stopped",
		"frames", st.Pipeline.Frames,
		"detections", st.Pipeline.Detections,
		"transitions", st.Pipeline.Transitions,
		"mode", st.Pipeline.State.String(),
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
