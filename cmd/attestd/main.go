package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"attestledger/config"
	"attestledger/core/state"
	"attestledger/native/attest"
	"attestledger/observability/logging"
	"attestledger/rpc"
	"attestledger/storage"
)

// gatewayAuthorizer trusts every actor that reaches the engine. Call
// authentication happens at the RPC layer via the bearer token; the daemon
// has no per-account signature scheme of its own.
type gatewayAuthorizer struct{}

func (gatewayAuthorizer) Authorize([20]byte) error { return nil }

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ATTEST_ENV"))
	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.Environment
	}
	logger := logging.Setup("attestd", env)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)
	engine := attest.NewEngine(manager)
	engine.SetAuthorizer(gatewayAuthorizer{})

	if admin, ok, err := cfg.Admin(); err != nil {
		logger.Error("Invalid admin address", slog.Any("error", err))
		os.Exit(1)
	} else if ok {
		switch err := engine.Initialize(admin); {
		case err == nil:
			logger.Info("Ledger initialised", slog.String("admin", cfg.AdminAddress))
		case errors.Is(err, attest.ErrAlreadyInitialized):
			logger.Info("Ledger already initialised")
		default:
			logger.Error("Failed to initialise ledger", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Warn("No admin address configured; ledger stays uninitialised until one is set")
	}

	server := rpc.NewServer(engine)
	logger.Info("Starting attestation ledger",
		slog.String("network", cfg.NetworkName),
		slog.String("rpc", cfg.RPCAddress),
		slog.String("datadir", cfg.DataDir),
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
