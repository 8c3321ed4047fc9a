package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/stockbot/gostock/internal/broker"
	"github.com/stockbot/gostock/internal/broker/ibgw"
	"github.com/stockbot/gostock/internal/broker/paper"
	"github.com/stockbot/gostock/internal/engine"
	"github.com/stockbot/gostock/internal/journal"
	"github.com/stockbot/gostock/internal/metrics"
	"github.com/stockbot/gostock/internal/opsapi"
	"github.com/stockbot/gostock/internal/strategies"
	"github.com/stockbot/gostock/internal/strategies/meanrev"
	"github.com/stockbot/gostock/internal/strategies/momentum"
	"github.com/stockbot/gostock/pkg/config"
	"github.com/stockbot/gostock/pkg/logger"
	"github.com/stockbot/gostock/pkg/persistence"
	"github.com/stockbot/gostock/pkg/shutdown"
)

func main() {
	// .env 可选（本地开发用），不存在不报错
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yml", "配置文件路径（YAML/JSON）")
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		// 配置非法是致命错误：fail fast，绝不带着错误阈值运行
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "日志初始化失败: %v\n", err)
		os.Exit(1)
	}

	logger.Infof("🚀 gostock 启动: config=%s mode=%s dryRun=%v", *configPath, cfg.Broker.Mode, cfg.DryRun)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	shutdownManager := shutdown.NewManager()

	// ---- 券商 ----
	var brk broker.Broker
	switch cfg.Broker.Mode {
	case "ibgw":
		client := ibgw.NewClient(cfg.Broker.GatewayURL, cfg.Broker.AccountID)
		// 网关会话几分钟没心跳就会过期
		go tickleLoop(rootCtx, client)
		brk = client
	default: // paper
		paperBroker := paper.New(decimal.NewFromFloat(cfg.Broker.PaperStartingBalance))
		brk = paperBroker
		// 配了网关地址就用真实行情喂纸交易报价（真行情、假成交）
		if cfg.Broker.GatewayURL != "" {
			client := ibgw.NewClient(cfg.Broker.GatewayURL, cfg.Broker.AccountID)
			go tickleLoop(rootCtx, client)
			stream := ibgw.NewStream(client, cfg.Broker.GatewayURL, cfg.Symbols,
				func(symbol string, price decimal.Decimal, at time.Time) {
					paperBroker.SetQuote(symbol, price)
				})
			stream.Start(rootCtx)
			shutdownManager.OnShutdown(func(ctx context.Context, wg *sync.WaitGroup) {
				stream.Stop()
			})
		}
	}

	// ---- 策略 ----
	registry := strategies.NewRegistry()
	if mc := cfg.Strategies.Momentum; mc != nil && mc.Enabled {
		s := momentum.New(momentum.Config{
			ThresholdBps: mc.ThresholdBps,
			WindowSecs:   mc.WindowSecs,
			Weight:       mc.Weight,
		})
		if err := registry.Register(s); err != nil {
			logger.Errorf("策略注册失败: %v", err)
			os.Exit(1)
		}
	}
	if mc := cfg.Strategies.MeanRev; mc != nil && mc.Enabled {
		s := meanrev.New(meanrev.Config{
			Lookback: mc.Lookback,
			BandPct:  mc.BandPct,
			Weight:   mc.Weight,
		})
		if err := registry.Register(s); err != nil {
			logger.Errorf("策略注册失败: %v", err)
			os.Exit(1)
		}
	}
	if len(registry.List()) == 0 {
		logger.Error("没有启用任何策略，无法运行")
		os.Exit(1)
	}

	// ---- 持久化 ----
	var svc persistence.Service
	if cfg.State.BadgerDir != "" {
		badgerSvc, err := persistence.OpenBadger(cfg.State.BadgerDir)
		if err != nil {
			logger.Errorf("打开 badger 失败: %v", err)
			os.Exit(1)
		}
		shutdownManager.OnShutdown(func(ctx context.Context, wg *sync.WaitGroup) {
			_ = badgerSvc.Close()
		})
		svc = badgerSvc
	} else {
		svc = persistence.NewJSONFileService(cfg.State.Dir)
	}
	storeID := cfg.Broker.AccountID
	if storeID == "" {
		storeID = "paper"
	}
	store := svc.NewStore("risk", storeID, "state")

	// ---- 决策日志 ----
	var jrnl *journal.Journal
	if cfg.JournalDB != "" {
		jrnl, err = journal.Open(cfg.JournalDB)
		if err != nil {
			logger.Errorf("打开决策日志失败: %v", err)
			os.Exit(1)
		}
		shutdownManager.OnShutdown(func(ctx context.Context, wg *sync.WaitGroup) {
			_ = jrnl.Close()
		})
	}

	// ---- 引擎 ----
	eng, err := engine.New(engine.Options{
		Config:   cfg,
		Broker:   brk,
		Registry: registry,
		Store:    store,
		Journal:  jrnl,
	})
	if err != nil {
		logger.Errorf("引擎初始化失败: %v", err)
		os.Exit(1)
	}
	shutdownManager.OnShutdown(eng.Shutdown)

	// ---- 运维 API / 调试端口 ----
	if cfg.OpsListen != "" {
		if err := opsapi.NewServer(eng).StartAsync(rootCtx, cfg.OpsListen); err != nil {
			logger.Errorf("运维 API 启动失败: %v", err)
			os.Exit(1)
		}
	}
	if cfg.DebugAddr != "" {
		if _, err := metrics.StartAsync(rootCtx, cfg.DebugAddr); err != nil {
			logger.Errorf("调试端口启动失败: %v", err)
			os.Exit(1)
		}
		logger.Infof("📊 调试端口已启动: %s (expvar/pprof)", cfg.DebugAddr)
	}

	// ---- 信号处理 ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("🛑 收到退出信号: %v", sig)
		rootCancel()
	}()

	// 引擎循环阻塞到 rootCtx 结束
	eng.Run(rootCtx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shutdownManager.Shutdown(shutdownCtx)
	logger.Info("✅ 已退出")
}

// tickleLoop 周期性保活网关会话
func tickleLoop(ctx context.Context, client *ibgw.Client) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Tickle(ctx); err != nil {
				logger.Warnf("网关保活失败: %v", err)
			}
		}
	}
}
