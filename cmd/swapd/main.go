package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sambitsargam/AeroSwap/adapters/evm"
	lnddriver "github.com/sambitsargam/AeroSwap/adapters/lnd"
	"github.com/sambitsargam/AeroSwap/adapters/mock"
	"github.com/sambitsargam/AeroSwap/api"
	"github.com/sambitsargam/AeroSwap/clients/lnd"
	"github.com/sambitsargam/AeroSwap/config"
	"github.com/sambitsargam/AeroSwap/domain"
	"github.com/sambitsargam/AeroSwap/events"
	"github.com/sambitsargam/AeroSwap/htlc"
	"github.com/sambitsargam/AeroSwap/mevshield"
	"github.com/sambitsargam/AeroSwap/oracle"
	"github.com/sambitsargam/AeroSwap/registry"
	"github.com/sambitsargam/AeroSwap/settlement"
	"github.com/sambitsargam/AeroSwap/splitter"
)

var rootCmd = &cobra.Command{
	Use:   "swapd",
	Short: "cross-chain swap coordinator with MEV-protected batching and order splitting",
	RunE:  run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithField("error", err).Fatal("swapd exited")
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	bus := events.NewBus()
	clock := domain.SystemClock{}
	swapRegistry := registry.NewRegistry(bus)

	drivers, err := buildDrivers(cfg)
	if err != nil {
		return err
	}

	coordinator := htlc.NewCoordinator(swapRegistry, drivers, clock, htlc.Config{
		DriverTimeout: cfg.DriverTimeout,
	})

	// No aggregator client is wired yet; quotes come from the fixed
	// in-memory oracle until the 1inch adapter lands.
	quotes, err := oracle.NewCached(mock.NewQuoteOracle(), clock, cfg.QuoteCacheSize, cfg.QuoteCacheTTL)
	if err != nil {
		return err
	}
	log.Warn("running with in-memory quote oracle")

	shield := mevshield.NewShield(quotes, clock, bus, mevshield.Config{
		RevealWindow:  cfg.RevealWindow,
		BatchInterval: cfg.BatchInterval,
	})
	go shield.Run(ctx)

	providers := splitter.NewProviderTable()
	split := splitter.NewSplitter(quotes, providers, clock, bus, splitter.Config{
		MinFillFloor:  cfg.MinFillFloor,
		RetryInterval: cfg.RetryInterval,
	})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		cancel()
		split.Wait()
		os.Exit(0)
	}()

	server := api.NewServer(coordinator, shield, split, bus, cfg.APIPort, !cfg.Debug)
	log.WithField("port", cfg.APIPort).Info("swapd started")
	return server.Run()
}

// buildDrivers wires a driver per configured chain family, falling
// back to the in-memory driver for families with no endpoint so the
// daemon stays usable in development.
func buildDrivers(cfg *config.Config) ([]settlement.ChainDriver, error) {
	var drivers []settlement.ChainDriver

	if cfg.EVMRPCEndpoint != "" {
		driver, err := evm.NewDriver(evm.Config{
			RPCEndpoint: cfg.EVMRPCEndpoint,
			ChainID:     cfg.EVMChainID,
			Escrow:      cfg.EVMEscrow,
			PrivKeyHex:  cfg.EVMPrivKey,
			MinConfs:    cfg.EVMMinConfs,
		})
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, driver)
	} else {
		drivers = append(drivers, mock.NewChainDriver(domain.FamilyEVM))
	}

	if cfg.LNDHost != "" {
		node, err := lnd.NewClient(lnd.Config{
			Host:         cfg.LNDHost,
			TLSCertPath:  cfg.LNDTLSCertPath,
			MacaroonPath: cfg.LNDMacaroonPath,
		})
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, lnddriver.NewDriver(node))
	} else {
		drivers = append(drivers, mock.NewChainDriver(domain.FamilyLightning))
	}

	drivers = append(drivers, mock.NewChainDriver(domain.FamilyEdDSA))
	return drivers, nil
}
