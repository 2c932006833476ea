// Command relay-server runs the LyncZ-style escrow relay: the Chain
// Reconciler keeps the local order/trade projection current, the
// Settlement Coordinator turns uploaded receipts into on-chain
// settlements through the Relayer Gateway, and a small HTTP surface
// exposes read-only order/trade queries plus the validate/settle
// endpoints a buyer's client calls.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lyncz-relay/relay/internal/activity"
	"github.com/lyncz-relay/relay/internal/config"
	"github.com/lyncz-relay/relay/internal/prover"
	"github.com/lyncz-relay/relay/internal/reconciler"
	"github.com/lyncz-relay/relay/internal/relayer"
	"github.com/lyncz-relay/relay/internal/settlement"
	"github.com/lyncz-relay/relay/internal/store"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	help := flag.Bool("help", false, "print usage and exit")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Printf("starting relay-server: %s", cfg.Summary())

	defaultsPath := os.Getenv("RELAY_DEFAULTS_FILE")
	if defaultsPath == "" {
		defaultsPath = "config/defaults.yaml"
	}
	staticDefaults, err := config.LoadStaticDefaults(defaultsPath)
	if err != nil {
		log.Fatalf("load static defaults: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbClient, err := store.NewClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer dbClient.Close()
	if err := dbClient.MigrateUp(ctx); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	repos := store.NewRepositories(dbClient)
	log.Println("database ready")

	dispatcher := logDispatcher{logger: log.New(os.Stdout, "[notify] ", log.LstdFlags)}

	escrowAddr := common.HexToAddress(cfg.EscrowAddress)

	var gateway *relayer.Gateway
	var coordinator *settlement.Coordinator
	if cfg.RelayerPrivKey != "" {
		gateway, err = relayer.New(cfg.RPCURL, cfg.ChainID, escrowAddr, cfg.RelayerPrivKey)
		if err != nil {
			log.Fatalf("init relayer gateway: %v", err)
		}
		defer gateway.Close()
		log.Printf("relayer gateway ready, address=%s", gateway.Address().Hex())

		contractCache := config.NewContractCacheWithSeed(gateway, 2*time.Minute, staticDefaults.ContractParams())
		if params, err := contractCache.Get(ctx); err != nil {
			log.Printf("warm contract cache: %v", err)
		} else {
			log.Printf("contract params: min=%s max=%s window=%s", params.MinTradeValue, params.MaxTradeValue, params.PaymentWindow)
		}

		proverClient := prover.NewClient(cfg.ProverBaseURL, cfg.ProverAPIKey, cfg.ProverProgramID)
		coordinator = settlement.New(repos.Trades, repos.Orders, gateway, proverClient, dispatcher, log.New(os.Stdout, "[settlement] ", log.LstdFlags))
	} else {
		log.Println("RELAYER_PRIVATE_KEY not set: running read-only, validate/settle endpoints will fail")
	}

	recCfg := reconciler.Config{
		EthereumURL:     cfg.RPCURL,
		ContractAddress: escrowAddr,
	}
	rec, err := reconciler.New(recCfg, repos, dispatcher, log.New(os.Stdout, "[reconciler] ", log.LstdFlags))
	if err != nil {
		log.Fatalf("init chain reconciler: %v", err)
	}
	defer rec.Close()

	go func() {
		if err := rec.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("chain reconciler stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	handlers := &apiHandlers{repos: repos, coord: coordinator, gateway: gateway, logger: log.New(os.Stdout, "[api] ", log.LstdFlags), started: time.Now()}
	handlers.registerRoutes(mux)

	addr := cfg.APIHost + ":" + strconv.Itoa(cfg.APIPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("http server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("shutdown signal received")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
	log.Println("relay-server stopped")
}

// logDispatcher is the default activity.Dispatcher: email rendering and
// delivery are an external collaborator (§1 non-goals), so this relay's
// own job ends at logging what it would have dispatched.
type logDispatcher struct {
	logger *log.Logger
}

func (d logDispatcher) Dispatch(e activity.Event) {
	d.logger.Printf("%#v", e)
}
