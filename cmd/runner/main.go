package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"ladder-trader-go/config"
	"ladder-trader-go/gateway"
	"ladder-trader-go/infrastructure/alert"
	"ladder-trader-go/infrastructure/logger"
	"ladder-trader-go/internal/engine"
	"ladder-trader-go/metrics"
	"ladder-trader-go/order"
	"ladder-trader-go/position"
	"ladder-trader-go/store"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	storeDir := flag.String("storeDir", "data", "redis 不可用时候选名单的本地目录")
	dryRun := flag.Bool("dryRun", false, "仅日志输出，不真正下单")
	flag.Parse()

	// .env 可选，便于本地起动
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logg.Close()

	alertMgr := alert.NewManager([]alert.Channel{
		alert.NewLogChannel("log", logg),
	}, time.Minute)

	// redis 可选：拿不到就退化为本地文件候选名单
	var redisStore *store.RedisStore
	var fileStore *store.FileStore
	if cfg.Redis.Addr != "" {
		redisStore, err = store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logg)
		if err != nil {
			logg.Warn("redis unavailable, falling back to file store", zap.Error(err))
			redisStore = nil
		}
	}
	if redisStore == nil {
		fileStore, err = store.NewFileStore(*storeDir)
		if err != nil {
			logg.Fatal("init file store", zap.Error(err))
		}
	} else {
		defer redisStore.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 配置里没给凭据时从 redis 取
	if cfg.Gateway.ClientID == "" || cfg.Gateway.AccessToken == "" {
		if redisStore == nil {
			logg.Fatal("broker credentials missing and redis unavailable")
		}
		creds, err := redisStore.LoadCredentials(ctx)
		if err != nil {
			logg.Fatal("load credentials", zap.Error(err))
		}
		cfg.Gateway.ClientID = creds.ClientID
		cfg.Gateway.AccessToken = creds.AccessToken
	}

	limiter := gateway.NewRateLimiter(cfg.Gateway.RequestsPerSec, cfg.Gateway.MaxConnections)
	client := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.ClientID, cfg.Gateway.AccessToken, limiter, logg)
	if err := client.Connect(cfg.Gateway.ScripMasterURL); err != nil {
		logg.Fatal("broker connect", zap.Error(err))
	}

	var broker engine.Broker = client
	if *dryRun {
		broker = dryRunBroker{log: logg}
		logg.Info("dry-run mode, orders will not reach the broker")
	}

	ledger := order.NewLedger(logg)
	publisher := position.NewPublisher()
	eng, err := engine.New(cfg.Strategy, engine.Components{
		Broker:       broker,
		Ledger:       ledger,
		AlertManager: alertMgr,
		Publisher:    publisher,
		Logger:       logg,
	})
	if err != nil {
		logg.Fatal("init engine", zap.Error(err))
	}

	candidates, err := loadCandidates(ctx, redisStore, fileStore)
	if err != nil {
		logg.Fatal("load premarket candidates", zap.Error(err))
	}
	symbols, err := eng.StartStrategy(candidates)
	if err != nil {
		logg.Fatal("start strategy", zap.Error(err))
	}
	if len(symbols) == 0 {
		logg.Fatal("no tradable candidates registered")
	}
	logg.Info("universe registered", zap.Int("count", len(symbols)))

	feed := gateway.NewMarketFeed(cfg.Gateway.FeedURL, cfg.Gateway.ClientID, cfg.Gateway.AccessToken, client.Scrip(), logg)
	feed.MaxReconnects = cfg.Gateway.MaxReconnects
	feed.BaseDelay = cfg.Gateway.ReconnectBaseDelay()
	feed.OnDown(func(reason string) {
		alertMgr.Critical("market feed abandoned", map[string]interface{}{"reason": reason})
	})
	if err := feed.Subscribe(symbols, eng.ProcessTick); err != nil {
		logg.Fatal("subscribe feed", zap.Error(err))
	}
	defer feed.Stop()

	if cfg.Metrics.Addr != "" {
		metrics.StartMetricsServer(cfg.Metrics.Addr)
		logg.Info("metrics server listening", zap.String("addr", cfg.Metrics.Addr))
	}

	// 配置热更新只回灌策略参数
	watcher, err := config.NewWatcher(*cfgPath, 0)
	if err != nil {
		logg.Warn("config watcher disabled", zap.Error(err))
	} else {
		if err := watcher.Start(ctx, func(updated config.AppConfig) {
			eng.ApplySettings(updated.Strategy)
		}); err != nil {
			logg.Warn("config watcher failed to start", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	if err := eng.Start(ctx); err != nil {
		logg.Fatal("start engine", zap.Error(err))
	}

	go statusLoop(ctx, publisher, logg)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	for sig := range sigCh {
		if sig == syscall.SIGUSR1 {
			logg.Info("square-off signal received")
			eng.SquareOffAll(position.StatusClosedEmergency, "operator signal")
			continue
		}
		logg.Info("shutdown signal received", zap.String("signal", sig.String()))
		break
	}

	eng.Stop()
	cancel()
}

// loadCandidates 优先 redis，退化到本地文件。
func loadCandidates(ctx context.Context, rs *store.RedisStore, fs *store.FileStore) ([]store.Candidate, error) {
	if rs != nil {
		return rs.LoadCandidates(ctx)
	}
	if fs != nil {
		return fs.LoadCandidates()
	}
	return nil, fmt.Errorf("no candidate store available")
}

// statusLoop 定期打印最近一次的持仓快照摘要。
func statusLoop(ctx context.Context, pub *position.Publisher, logg *logger.Logger) {
	snapshots := pub.Subscribe()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var latest []position.Snapshot
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-snapshots:
			latest = s
		case <-ticker.C:
			var active int
			var pnl float64
			for _, s := range latest {
				if s.Status == position.StatusActive {
					active++
				}
				pnl += s.RealizedPnL + s.UnrealizedPnL
			}
			logg.Info("ladder status",
				zap.Int("ladders", len(latest)),
				zap.Int("active", active),
				zap.Float64("total_pnl", pnl))
		}
	}
}

// dryRunBroker 干跑模式：下单只记日志，回一个假 ID。
type dryRunBroker struct {
	log *logger.Logger
}

func (b dryRunBroker) PlaceOrder(symbol, side string, qty int, orderType string) (gateway.OrderResult, error) {
	b.log.Info("dry-run order",
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.Int("qty", qty),
		zap.String("type", orderType))
	return gateway.OrderResult{Status: "success", OrderID: fmt.Sprintf("DRY_%d", time.Now().UnixNano())}, nil
}

func (b dryRunBroker) IsConnected() bool { return true }
