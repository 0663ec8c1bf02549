package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dpup/greenwalk/internal/clients/location"
	"github.com/dpup/greenwalk/internal/config"
	"github.com/dpup/greenwalk/internal/lib/geo"
	"github.com/dpup/greenwalk/internal/lib/units"
	"github.com/dpup/greenwalk/internal/server"
	"github.com/dpup/greenwalk/internal/services"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "serve":
		handleServe()
	case "replay":
		handleReplay()
	case "distance":
		handleDistance()
	case "config":
		handleConfig()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to greenwalk.yaml (optional)")
	port := fs.Int("port", 0, "Listen port (overrides server.port)")
	feed := fs.String("feed", "", `Location feed for --feed-player: "-" for NDJSON on stdin or a ws:// URL`)
	feedPlayer := fs.String("feed-player", "me", "Player that receives --feed fixes")

	fs.Parse(os.Args[2:])

	overrides := map[string]interface{}{}
	if *port != 0 {
		overrides["server.port"] = *port
	}
	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	registry := services.NewRegistry(cfg.Engine, services.NewCollectors(reg), logger)

	app := server.New(registry, server.Options{
		Units:       units.System(cfg.Display.Units),
		MaxAccuracy: cfg.Location.MaxHorizontalAccuracy,
		Gatherer:    reg,
		Logger:      logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.PlayerIdleTimeout > 0 {
		sweeper := services.NewIdleSweeper(registry, cfg.Server.PlayerIdleTimeout, logger)
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	if *feed != "" {
		source := newFeed(*feed,
			location.WithTimeout(cfg.Location.SampleTimeout),
			location.WithMaxAccuracy(cfg.Location.MaxHorizontalAccuracy),
			location.WithLogger(logger.With("feed", *feed)),
		)
		go func() {
			if err := source.Run(ctx, registry.Sink(*feedPlayer)); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorw("Location feed stopped", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		logger.Infow("Shutting down")
		if err := app.Shutdown(); err != nil {
			logger.Errorw("Shutdown failed", "error", err)
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Infow("Greenwalk server starting", "addr", addr, "units", cfg.Display.Units)
	if err := app.Listen(addr); err != nil {
		logger.Fatalw("Server failed", "error", err)
	}
}

func handleReplay() {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to greenwalk.yaml (optional)")
	in := fs.String("in", "", "NDJSON file of recorded fixes")
	mode := fs.String("mode", "track", "Session to replay: track or green")
	pivots := fs.String("pivots", "", "Comma separated fix numbers (1-based) at which to add a pivot")
	kmlOut := fs.String("kml", "", "Write the result as KML to this file")
	geojsonOut := fs.String("geojson", "", "Write the result as GeoJSON to this file")

	fs.Parse(os.Args[2:])

	if *in == "" {
		fmt.Println("Example usage:")
		fmt.Println("  greenwalk replay --in round.ndjson --mode track --pivots 12,30 --kml hole7.kml")
		fmt.Println("  greenwalk replay --in green.ndjson --mode green --geojson green7.geojson")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath, nil)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	at, err := parsePivots(*pivots)
	if err != nil {
		log.Fatalf("Invalid --pivots: %v", err)
	}

	f, err := os.Open(*in)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *in, err)
	}
	defer f.Close()

	opts := replayOptions{
		Mode:        *mode,
		Pivots:      at,
		MaxAccuracy: cfg.Location.MaxHorizontalAccuracy,
		Units:       units.System(cfg.Display.Units),
	}
	result, err := replay(context.Background(), f, cfg.Engine, opts, logger)
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
	printReplay(os.Stdout, result, opts.Units)

	if *kmlOut != "" {
		if err := writeFile(*kmlOut, result.KML); err != nil {
			log.Fatalf("Failed to write KML: %v", err)
		}
		fmt.Printf("KML written to %s\n", *kmlOut)
	}
	if *geojsonOut != "" {
		if err := writeFile(*geojsonOut, result.GeoJSON); err != nil {
			log.Fatalf("Failed to write GeoJSON: %v", err)
		}
		fmt.Printf("GeoJSON written to %s\n", *geojsonOut)
	}
}

func handleConfig() {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to greenwalk.yaml (optional)")

	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath, nil)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	data, err := cfg.YAML()
	if err != nil {
		log.Fatalf("Failed to render configuration: %v", err)
	}
	os.Stdout.Write(data)
}

func handleDistance() {
	fs := flag.NewFlagSet("distance", flag.ExitOnError)
	lat1 := fs.Float64("lat1", 0, "Latitude of first point")
	lng1 := fs.Float64("lng1", 0, "Longitude of first point")
	lat2 := fs.Float64("lat2", 0, "Latitude of second point")
	lng2 := fs.Float64("lng2", 0, "Longitude of second point")
	unitName := fs.String("units", string(units.Imperial), "Display units: imperial or metric")

	fs.Parse(os.Args[2:])

	if *lat1 == 0 && *lng1 == 0 && *lat2 == 0 && *lng2 == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  greenwalk distance --lat1 36.5680 --lng1 -121.9500 --lat2 36.5690 --lng2 -121.9490")
		os.Exit(1)
	}

	sys, err := units.ParseSystem(*unitName)
	if err != nil {
		log.Fatalf("Invalid --units: %v", err)
	}
	p1, err := geo.NewPoint(*lat1, *lng1)
	if err != nil {
		log.Fatalf("Invalid first point: %v", err)
	}
	p2, err := geo.NewPoint(*lat2, *lng2)
	if err != nil {
		log.Fatalf("Invalid second point: %v", err)
	}

	d := geo.Distance(p1, p2)
	fmt.Printf("Distance between points:\n")
	fmt.Printf("  Point 1: (%.6f, %.6f)\n", p1.Latitude, p1.Longitude)
	fmt.Printf("  Point 2: (%.6f, %.6f)\n", p2.Latitude, p2.Longitude)
	fmt.Printf("  Distance: %s (%.2f meters)\n", sys.Distance(d), d)
}

func newFeed(feed string, opts ...location.Option) location.Source {
	if feed == "-" {
		return location.NewStreamSource(os.Stdin, opts...)
	}
	return location.NewWebSocketSource(feed, opts...)
}

func parsePivots(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if n < 1 {
			return nil, fmt.Errorf("fix numbers start at 1, got %d", n)
		}
		out = append(out, n)
	}
	return out, nil
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func printUsage() {
	fmt.Println("greenwalk - live golf yardage and green mapping")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  greenwalk <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve      Run the HTTP API (players, sessions, exports, /metrics)")
	fmt.Println("  replay     Replay a recorded NDJSON fix file through a track or green session")
	fmt.Println("  distance   Great-circle distance between two coordinates")
	fmt.Println("  config     Print the effective configuration as YAML")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Configuration is read from --config and GREENWALK__ environment variables,")
	fmt.Println("e.g. GREENWALK__ENGINE__CLOSURE_RADIUS_M=0.75")
}
