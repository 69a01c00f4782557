// Command grabsend watches grabbable objects in a scene and relays every
// grab and release to a serial-attached haptic device as
// "<hand>,<action>,<mass>\n" lines.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/grabsend/internal/config"
	"github.com/banshee-data/grabsend/internal/encoder"
	"github.com/banshee-data/grabsend/internal/monitoring"
	"github.com/banshee-data/grabsend/internal/scene"
	"github.com/banshee-data/grabsend/internal/serialbridge"
	"github.com/banshee-data/grabsend/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to JSON configuration file (defaults to "+config.DefaultConfigPath+" when present)")
	port        = flag.String("port", "", "Serial port to use (overrides config)")
	baud        = flag.Int("baud", 0, "Serial baud rate (overrides config)")
	scenePath   = flag.String("scene", "config/demo-scene.yaml", "Path to the YAML scene script to replay")
	dryRun      = flag.Bool("dry-run", false, "Log lines instead of opening the serial port")
	listen      = flag.String("listen", "", "Debug HTTP listen address (overrides config; empty keeps the config value)")
	listPorts   = flag.Bool("list-ports", false, "List serial ports and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// sink is where encoders deliver lines: the serial channel or a dry run.
type sink interface {
	serialbridge.Sink
	Close() error
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if *listPorts {
		ports, err := serialbridge.ListPorts()
		if err != nil {
			log.Fatalf("failed to list serial ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	log.Printf("starting %s", version.String())

	cfg, err := loadConfig(*configFile, *port, *baud, *listen)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	script, err := scene.LoadScript(*scenePath)
	if err != nil {
		log.Fatalf("failed to load scene: %v", err)
	}
	sc := scene.New(script)

	out, err := openSink(cfg, *dryRun, serialbridge.RealFactory{})
	if err != nil {
		log.Fatalf("failed to create serial channel: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = serve(ctx, cfg, sc, out)
	stop()
	if err != nil {
		log.Fatalf("grabsend: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

// serve runs the bridge and closes the sink however the run ends, so the
// port is released before a fatal exit.
func serve(ctx context.Context, cfg *config.Config, sc *scene.Scene, out sink) error {
	defer func() {
		if err := out.Close(); err != nil {
			log.Printf("failed to close serial channel: %v", err)
		}
	}()
	return run(ctx, cfg, sc, out)
}

// loadConfig reads the config file, then applies GRABSEND_* environment
// variables, then command-line overrides. An empty path uses the defaults
// file if it exists and built-in defaults otherwise.
func loadConfig(path, portOverride string, baudOverride int, listenOverride string) (*config.Config, error) {
	cfg := config.Empty()
	switch {
	case path != "":
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	default:
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			loaded, err := config.Load(config.DefaultConfigPath)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if portOverride != "" {
		cfg.SerialPort = &portOverride
	}
	if baudOverride != 0 {
		cfg.BaudRate = &baudOverride
	}
	if listenOverride != "" {
		cfg.DebugListen = &listenOverride
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openSink creates the output. A port that fails to open is logged and the
// bridge keeps running: grab detection and logging continue, lines are
// counted as skipped.
func openSink(cfg *config.Config, dry bool, factory serialbridge.SerialPortFactory) (sink, error) {
	if dry {
		log.Printf("dry run: serial output disabled")
		return serialbridge.NewDryRun(), nil
	}

	ch, err := serialbridge.NewChannel(cfg.GetSerialPort(), cfg.PortOptions(), factory)
	if err != nil {
		return nil, err
	}
	if err := ch.Open(); err != nil {
		var openErr *serialbridge.PortOpenError
		if !errors.As(err, &openErr) {
			ch.Close()
			return nil, err
		}
		monitoring.Warnf("continuing without serial output: %v", openErr)
	}
	return ch, nil
}

// buildDriver registers one encoder per scene object and advances the scene
// at the start of every frame. When a finite script ends, done is called.
func buildDriver(cfg *config.Config, sc *scene.Scene, out encoder.Sender, done func()) *encoder.Driver {
	d := encoder.NewDriver(nil, cfg.GetTickInterval())
	opts := encoder.Options{
		AnchorLookup:    sc,
		LeftAnchorName:  cfg.GetLeftAnchorName(),
		RightAnchorName: cfg.GetRightAnchorName(),
	}
	for _, o := range sc.Objects() {
		d.Add(encoder.New(o.Monitored(cfg.GetMassOverride(o.Name())), out, opts))
	}
	d.BeforeFrame(func(frame uint64) {
		sc.Advance(frame)
		if sc.Done() && done != nil {
			done()
		}
	})
	return d
}

// run drives the encoders until ctx is cancelled or the scene ends, serving
// the debug endpoints alongside when configured.
func run(ctx context.Context, cfg *config.Config, sc *scene.Scene, out sink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d := buildDriver(cfg, sc, out, cancel)
	log.Printf("monitoring %d objects at %s per frame", len(d.Encoders()), cfg.GetTickInterval())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := d.Run(ctx)
		log.Printf("driver stopped after %d frames", d.Frames())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if addr := cfg.GetDebugListen(); addr != "" {
		mux := http.NewServeMux()
		serialbridge.AttachAdminRoutes(mux, out)
		d.AttachAdminRoutes(mux)

		server := &http.Server{
			Addr:    addr,
			Handler: mux,
		}

		g.Go(func() error {
			log.Printf("debug server listening on %s", addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("debug server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
				if err := server.Close(); err != nil {
					log.Printf("HTTP server force close error: %v", err)
				}
			}
			return nil
		})
	}

	return g.Wait()
}
