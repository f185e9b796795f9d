package main

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vellichain/commitpool/pkg/bftoracle"
	"github.com/vellichain/commitpool/pkg/chainreader"
	"github.com/vellichain/commitpool/pkg/commitpool"
	"github.com/vellichain/commitpool/pkg/config"
	"github.com/vellichain/commitpool/pkg/metrics"
	"github.com/vellichain/commitpool/pkg/store"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	dbm "github.com/cometbft/cometbft-db"
)

type healthStatus struct {
	Status        string `json:"status"`
	CometBFT      string `json:"cometbft"`
	Database      string `json:"database"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	startTime     time.Time
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("🚀 Starting commit pool node")

	var (
		configPath = flag.String("config", "config.yaml", "path to the pool configuration file")
		showHelp   = flag.Bool("help", false, "show help message")
	)
	flag.Parse()

	if *showHelp {
		flag.Usage()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}
	log.Printf("📋 validator id: %s, network: %s", cfg.Validator.ID, cfg.Network.Identifier)

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout)).With("module", "commitpool")

	health := &healthStatus{Status: "starting", CometBFT: "unknown", Database: "unknown", startTime: time.Now()}

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)

	var oracle commitpool.BFTOracle
	cometClient, err := bftoracle.NewCometBFT(cfg.CometBFT.RPCEndpoint)
	if err != nil {
		log.Printf("⚠️ failed to connect to CometBFT RPC at %s, running with a fake oracle: %v", cfg.CometBFT.RPCEndpoint, err)
		oracle = bftoracle.NewFake()
		health.CometBFT = "disconnected"
	} else {
		oracle = cometClient
		health.CometBFT = "connected"
	}

	chain := chainreader.NewFake()

	var st *store.Store
	if cfg.Database.Enabled {
		levelDB, err := dbm.NewGoLevelDB("commitpool-"+cfg.Validator.ID, "./data")
		if err != nil {
			log.Printf("⚠️ failed to open local key-value store: %v", err)
		}
		kv := store.NewKVAdapter(levelDB)
		st, err = store.Open(kv, cfg.Database.DSN)
		if err != nil {
			if cfg.Database.Required {
				log.Fatalf("❌ database connection required but failed: %v", err)
			}
			log.Printf("⚠️ database connection failed, running without persistence: %v", err)
			health.Database = "disconnected"
		} else {
			health.Database = "connected"
		}
	}

	var network commitpool.NetworkSink
	if c, ok := oracle.(*bftoracle.CometBFT); ok {
		network = cometBFTGossipSink{client: c}
	}

	poolCfg := commitpool.Config{
		BFTOracle:         oracle,
		BlockTime:         cfg.Pool.BlockTime.Duration(),
		Chain:             chain,
		Network:           network,
		NetworkIdentifier: networkIdentifierHash(cfg.Network.Identifier),
		CommitRangeStored: uint64(cfg.Pool.CommitRangeStored),
		Logger:            logger,
		Metrics:           collector,
	}
	if st != nil {
		poolCfg.Store = st
	}
	pool := commitpool.New(poolCfg)

	ctx, cancel := context.WithCancel(context.Background())
	go pool.RunPeriodically(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health.Status = "ok"
		health.UptimeSeconds = int64(time.Since(health.startTime).Seconds())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(health)
	})

	httpServer := &http.Server{Addr: cfg.Monitoring.Metrics.Addr, Handler: mux}
	go func() {
		log.Printf("🌐 commit pool node listening on %s", cfg.Monitoring.Metrics.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start HTTP server:", err)
		}
	}()

	log.Printf("✅ commit pool node ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("🛑 shutting down commit pool node")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if st != nil {
		if err := st.Close(); err != nil {
			log.Printf("store close error: %v", err)
		}
	}
	log.Printf("✅ commit pool node stopped")
}

// cometBFTGossipSink adapts the CometBFT RPC client to the pool's outbound
// gossip sink. CometBFT's RPC surface has no "broadcast arbitrary payload to
// peers" call, so this currently logs what would be broadcast; a production
// deployment wires this through the ABCI application's p2p reactor instead.
type cometBFTGossipSink struct {
	client *bftoracle.CometBFT
}

func (s cometBFTGossipSink) Send(ctx context.Context, event string, packet commitpool.SingleCommitsNetworkPacket) error {
	log.Printf("📡 broadcast %s: %d commits", event, len(packet.Commits))
	return nil
}

func networkIdentifierHash(identifier string) common.Hash {
	return common.Hash(sha256.Sum256([]byte(identifier)))
}
