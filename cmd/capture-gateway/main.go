package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/banshee-data/capture.gateway/internal/api"
	"github.com/banshee-data/capture.gateway/internal/config"
	"github.com/banshee-data/capture.gateway/internal/db"
	"github.com/banshee-data/capture.gateway/internal/fsutil"
	"github.com/banshee-data/capture.gateway/internal/gateway"
	"github.com/banshee-data/capture.gateway/internal/httputil"
	"github.com/banshee-data/capture.gateway/internal/spectrogram"
	"github.com/banshee-data/capture.gateway/internal/timeutil"
	"github.com/banshee-data/capture.gateway/internal/version"
	"github.com/banshee-data/capture.gateway/internal/viewer"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Path to the JSON config file")
	listen      = flag.String("listen", "", "HTTP listen address (overrides config)")
	grpcListen  = flag.String("grpc-listen", "", "gRPC health listen address (overrides config, empty disables)")
	gatewayURL  = flag.String("gateway", "", "Upstream gateway base URL (overrides config)")
	dbPath      = flag.String("db-path", "", "Path to the export ledger database (overrides config)")
	exportDir   = flag.String("export-dir", "", "Directory for saved frames (overrides config)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("capture-gateway %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg, err := loadConfig(*configPath, isFlagSet("config"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlagOverrides(cfg, overrides{
		Listen:     *listen,
		GRPCListen: *grpcListen,
		GatewayURL: *gatewayURL,
		DBPath:     *dbPath,
		ExportDir:  *exportDir,
	})

	args := flag.Args()
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "serve":
		runServe(cfg)
	case "render":
		if err := runRender(cfg, args[1:]); err != nil {
			log.Fatalf("render failed: %v", err)
		}
	case "migrate":
		db.RunMigrateCommand(args[1:], cfg.GetDBPath())
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want serve, render or migrate)\n", cmd)
		os.Exit(2)
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func newGatewayClient(cfg *config.ViewerConfig) *gateway.Client {
	httpClient := httputil.NewStandardClient(&http.Client{Timeout: cfg.GetRequestTimeout()})
	return gateway.NewClient(httpClient, cfg.GetGatewayURL(), cfg.GetCapturePath(), cfg.GetAPIKey())
}

func runServe(cfg *config.ViewerConfig) {
	if cfg.GetListen() == "" {
		log.Fatal("Listen address is required")
	}

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := os.MkdirAll(cfg.GetExportDir(), 0o755); err != nil {
		log.Fatalf("Failed to create export directory: %v", err)
	}

	client := newGatewayClient(cfg)
	clock := timeutil.RealClock{}
	manager := viewer.NewManager(client, viewer.OptionsFromConfig(cfg))
	defer manager.CloseAll()
	runner := spectrogram.NewRunner(client, clock, cfg.GetSpectrogramPollInterval())
	defer runner.Close()

	server := api.NewServer(api.Config{
		Address:      cfg.GetListen(),
		Sessions:     manager,
		Exporter:     viewer.NewExporter(fsutil.OSFileSystem{}, cfg.GetExportDir(), database, clock),
		Exports:      database,
		Spectrograms: runner,
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("capture-gateway %s using gateway %s", version.Version, cfg.GetGatewayURL())

	if addr := cfg.GetGRPCListen(); addr != "" {
		health := api.NewHealthServer(addr)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := health.Start(ctx); err != nil {
				log.Printf("gRPC health server error: %v", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx); err != nil {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	wg.Wait()
	log.Printf("graceful shutdown complete")
}
