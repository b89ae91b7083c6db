package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custodia/config"
	"custodia/core/auth"
	"custodia/core/events"
	"custodia/core/state"
	"custodia/native/escrow"
	"custodia/native/program"
	"custodia/observability/audit"
	"custodia/observability/logging"
	"custodia/observability/metrics"
	"custodia/settlement"
	"custodia/storage"
)

const envVar = "CUSTODIA_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	dataDir := flag.String("datadir", "./custodia-data", "Directory holding the custody database")
	listenAddr := flag.String("listen", ":9464", "Address serving the metrics and health endpoints")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envVar))
	logger := logging.Setup("custodiad", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(*dataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	ledger := settlement.NewLedger(manager)
	ledger.SetLogger(logger)

	metricsSink, err := metrics.NewSink(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("Failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}
	emitter := events.NewMultiEmitter(metricsSink, audit.NewSink(logger))

	admin, err := cfg.AdminAddress()
	if err != nil {
		logger.Error("Failed to decode admin address", slog.Any("error", err))
		os.Exit(1)
	}
	authorizer := auth.NewStatic(admin)

	escrowEngine := escrow.NewEngine()
	escrowEngine.SetState(manager)
	escrowEngine.SetGateway(ledger)
	escrowEngine.SetAuthorizer(authorizer)
	escrowEngine.SetEmitter(emitter)
	escrowEngine.SetVault(vaultAddress("escrow"))

	if err := escrowEngine.Initialize(admin, cfg.Custody.Token); err != nil {
		if !errors.Is(err, escrow.ErrAlreadyInitialized) {
			logger.Error("Failed to initialize escrow ledger", slog.Any("error", err))
			os.Exit(1)
		}
	} else if cfg.Custody.Fees != nil {
		// First boot: replace the disabled default with the configured rates.
		if err := manager.EscrowFeeConfigPut(*cfg.Custody.Fees); err != nil {
			logger.Error("Failed to apply fee defaults", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if cfg.Program != nil {
		payoutKey, err := cfg.PayoutKeyAddress()
		if err != nil {
			logger.Error("Failed to decode payout key", slog.Any("error", err))
			os.Exit(1)
		}
		authorizer.Approve(payoutKey)

		programEngine := program.NewEngine()
		programEngine.SetState(manager)
		programEngine.SetGateway(ledger)
		programEngine.SetAuthorizer(authorizer)
		programEngine.SetEmitter(emitter)
		programEngine.SetVault(vaultAddress("program"))

		if _, err := programEngine.InitProgram(cfg.Program.ID, payoutKey, cfg.Program.Token); err != nil {
			if !errors.Is(err, program.ErrAlreadyInitialized) {
				logger.Error("Failed to initialize program ledger", slog.Any("error", err))
				os.Exit(1)
			}
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{Addr: *listenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	logger.Info("custodiad started",
		slog.String("token", cfg.Custody.Token),
		slog.String("listen", *listenAddr),
		slog.String("datadir", *dataDir),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown failed", slog.Any("error", err))
	}
}

// vaultAddress derives a deterministic custody account per ledger, the same
// way platform-owned contract accounts are derived from a seed.
func vaultAddress(ledger string) [20]byte {
	digest := ethcrypto.Keccak256([]byte("custodia/vault/" + ledger))
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}
