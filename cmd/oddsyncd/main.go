// oddsyncd is the live feed correlation daemon. It starts the configured
// feed adapters, resolves their updates onto canonical events, and exposes
// the unified view over HTTP plus a WebSocket change stream.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oddsync/oddsync/pkg/adapters/polymarket"
	"github.com/oddsync/oddsync/pkg/adapters/sportapi"
	"github.com/oddsync/oddsync/pkg/engine"
	"github.com/oddsync/oddsync/pkg/state"
	"github.com/oddsync/oddsync/pkg/streamobs"
)

var (
	httpAddr    = flag.String("http", ":8080", "HTTP server address")
	mappings    = flag.String("mappings", envOr("ODDSYNC_TEAM_MAPPINGS", "team_mappings.json"), "Path to curated team mappings file")
	fuzzy       = flag.Float64("fuzzy", 0.75, "Block-scoped fuzzy match threshold")
	cross       = flag.Float64("cross", 0.88, "Cross-source fallback threshold")
	cleanup     = flag.Duration("cleanup", time.Minute, "Sweep interval for finished events")
	grace       = flag.Duration("grace", state.DefaultGracePeriod, "Retention after an event ends")
	sport       = flag.String("sport", "soccer", "Sport to track")
	leagueTags  = flag.String("leagues", "epl,la-liga", "Comma-separated anchor league tags")
	sportURL    = flag.String("sport-url", envOr("ODDSYNC_SPORTAPI_URL", ""), "Secondary scores/odds API base URL")
	sportKey    = flag.String("sport-key", envOr("ODDSYNC_SPORTAPI_KEY", ""), "Secondary API key")
	sportSource = flag.String("sport-source", "sportapi", "Secondary adapter source id")
	verbose     = flag.Bool("verbose", false, "Log every change signal")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("Starting oddsync feed correlation daemon")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	cfg := engine.DefaultConfig()
	cfg.FuzzyThreshold = *fuzzy
	cfg.CrossSourceThreshold = *cross
	cfg.TeamMappingsPath = *mappings
	cfg.CleanupInterval = *cleanup
	cfg.GracePeriod = *grace
	cfg.AnchorSource = polymarket.SourceID

	eng := engine.New(cfg)

	anchorCfg := polymarket.DefaultConfig()
	anchorCfg.Sport = *sport
	anchorCfg.LeagueTags = splitCSV(*leagueTags)
	if err := eng.RegisterAdapter(polymarket.New(anchorCfg)); err != nil {
		log.Fatalf("Failed to register anchor adapter: %v", err)
	}

	if *sportURL != "" {
		secondary := sportapi.DefaultConfig(*sportSource, *sportURL)
		secondary.Sport = *sport
		secondary.APIKey = *sportKey
		if err := eng.RegisterAdapter(sportapi.New(secondary)); err != nil {
			log.Fatalf("Failed to register %s: %v", *sportSource, err)
		}
	}

	hub := streamobs.NewHub()
	eng.RegisterObserver(hub.Observer())

	if *verbose {
		eng.RegisterObserver(func(ev *state.UnifiedEvent, changed []string, source string) {
			log.Printf("[SIGNAL] %s vs %s (%s): %v from %s",
				ev.Home.Name, ev.Away.Name, ev.Status, changed, source)
		})
	}

	go serveHTTP(eng, hub)

	if err := eng.Start(ctx); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}

	log.Printf("Daemon running (http=%s, anchor=%s)", *httpAddr, polymarket.SourceID)
	log.Printf("Change stream available at ws://%s/ws", *httpAddr)

	<-sigCh
	log.Println("Shutting down...")

	eng.Stop()
	cancel()

	log.Printf("Final: %d events tracked, %d stream clients", len(eng.Events()), hub.ClientCount())
}

func serveHTTP(eng *engine.Engine, hub *streamobs.Hub) {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(eng.Metrics().Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", hub.ServeWS)

	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(eng.Events())
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if err := http.ListenAndServe(*httpAddr, mux); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
