package engine

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/broker"
	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/internal/journal"
	"github.com/stockbot/gostock/internal/metrics"
	"github.com/stockbot/gostock/internal/risk"
	"github.com/stockbot/gostock/internal/signals"
	"github.com/stockbot/gostock/internal/sizing"
	"github.com/stockbot/gostock/internal/strategies"
	"github.com/stockbot/gostock/pkg/config"
	"github.com/stockbot/gostock/pkg/persistence"
)

var log = logrus.WithField("component", "engine")

// ContextFunc 为聚合提供市场上下文。默认实现只给出交易时段信息；
// 接入真实行情统计后可以替换。
type ContextFunc func(symbol string, now time.Time) domain.MarketContext

// Engine 控制循环：轮询余额 -> 更新风控 -> 评估熔断 -> 聚合信号 ->
// 计算仓位 -> 下单 -> 写日志 -> 持久化快照。
//
// RiskState 和 HaltManager 由本循环独占持有；外部读取方只拿 Snapshot()
// 的不可变副本，外部变更（恢复交易、重置峰值）通过命令通道进入循环执行。
type Engine struct {
	cfg      *config.Config
	broker   broker.Broker
	state    *risk.State
	halt     *risk.HaltManager
	sizer    *sizing.Sizer
	agg      *signals.Aggregator
	registry *strategies.Registry
	store    persistence.Store
	jrnl     *journal.Journal
	ctxFn    ContextFunc

	staleness time.Duration
	interval  time.Duration
	loc       *time.Location

	// 命令通道：外部请求以闭包形式进入循环，由循环线程执行
	cmds chan func()

	snapMu   sync.RWMutex
	lastSnap risk.Snapshot

	loopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// Options 引擎依赖
type Options struct {
	Config   *config.Config
	Broker   broker.Broker
	Registry *strategies.Registry
	Store    persistence.Store
	Journal  *journal.Journal // 可为 nil
	Context  ContextFunc      // 可为 nil，使用默认时段上下文
}

// New 创建引擎并从持久化快照恢复风控状态
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	loc := cfg.ExchangeLocation()

	state := risk.NewState(loc)
	halt := risk.NewHaltManager(risk.HaltConfig{
		MaxDrawdown:  decimal.NewFromFloat(cfg.Risk.MaxDrawdownPercent / 100),
		MaxDailyLoss: decimal.NewFromFloat(cfg.Risk.MaxDailyLossPercent / 100),
		Cooldown:     time.Duration(cfg.Risk.HaltCooldownMinutes) * time.Minute,
		AuthCode:     cfg.Risk.ResumeAuthCode,
	})

	e := &Engine{
		cfg:       cfg,
		broker:    opts.Broker,
		state:     state,
		halt:      halt,
		sizer:     sizing.NewSizer(cfg.Sizing),
		agg:       signals.NewAggregator(cfg.Signals),
		registry:  opts.Registry,
		store:     opts.Store,
		jrnl:      opts.Journal,
		ctxFn:     opts.Context,
		staleness: time.Duration(cfg.Broker.StalenessWindowSecs) * time.Second,
		interval:  time.Duration(cfg.Broker.PollIntervalSecs) * time.Second,
		loc:       loc,
		cmds:      make(chan func(), 16),
		done:      make(chan struct{}),
	}
	if e.ctxFn == nil {
		e.ctxFn = e.defaultContext
	}

	// 进程重启：从快照恢复（包括 HALTED 状态——熔断必须跨重启保持）
	var snap risk.Snapshot
	if err := e.store.Load(&snap); err != nil {
		if err != persistence.ErrNotExists {
			return nil, errors.Wrap(err, "加载风控快照失败")
		}
		log.Info("无历史风控快照，全新启动")
	} else {
		risk.Restore(snap, e.state, e.halt)
		log.Infof("已恢复风控快照: peak=%s halt=%s savedAt=%s",
			snap.PeakBalance.StringFixed(2), snap.HaltState, snap.SavedAt.Format(time.RFC3339))
	}
	e.lastSnap = risk.TakeSnapshot(e.state, e.halt)

	return e, nil
}

// Run 启动控制循环（只会启动一次），阻塞到 ctx 结束
func (e *Engine) Run(ctx context.Context) {
	e.loopOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(ctx)
		e.cancel = cancel
		defer close(e.done)

		log.Infof("🚀 引擎启动: symbols=%v interval=%v dryRun=%v strategies=%v",
			e.cfg.Symbols, e.interval, e.cfg.DryRun, e.registry.List())

		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		// 启动先跑一轮，不等第一个 tick
		e.tick(loopCtx)

		for {
			select {
			case <-loopCtx.Done():
				log.Info("引擎退出")
				return
			case cmd := <-e.cmds:
				cmd()
			case <-ticker.C:
				e.tick(loopCtx)
			}
		}
	})
}

// Shutdown 停止循环并等待退出
func (e *Engine) Shutdown(ctx context.Context, wg *sync.WaitGroup) {
	_ = wg
	if e.cancel != nil {
		e.cancel()
	}
	select {
	case <-e.done:
	case <-ctx.Done():
	}
}

// tick 执行一轮完整的决策流程
func (e *Engine) tick(ctx context.Context) {
	now := time.Now()

	// 1. 账户快照（过期数据直接跳过本轮，不进入风控计算）
	snap, err := e.broker.GetAccountBalance(ctx)
	if err != nil {
		log.Warnf("获取余额失败，跳过本轮: %v", err)
		return
	}
	if snap.IsStale(now, e.staleness) {
		log.Warnf("余额快照过期（age=%v window=%v），跳过本轮: %v",
			snap.Age(now), e.staleness, broker.ErrStaleData)
		return
	}

	// 2. 更新风控状态并评估熔断
	e.state.RecordBalance(snap.Balance)
	drawdown := e.state.CurrentDrawdown()
	dailyLoss := e.state.DailyLossFraction()
	if e.halt.Evaluate(drawdown, dailyLoss) {
		metrics.HaltCount.Add(1)
		metrics.HaltedGauge.Set(1)
		if e.jrnl != nil {
			e.jrnl.RecordHaltEvent(now, "halt", e.halt.HaltReason(), "")
		}
	}
	e.persistSnapshot()

	// 3. 刷新价格并喂给策略
	prices := e.observePrices(ctx, now)

	// 4. 熔断中不做任何决策
	if e.halt.IsHalted() {
		log.Debugf("熔断中，跳过决策: reason=%q", e.halt.HaltReason())
		return
	}

	// 5. 逐标的：聚合投票 -> 计算仓位 -> 下单
	positions, err := e.broker.GetOpenPositions(ctx)
	if err != nil {
		log.Warnf("获取持仓失败，跳过决策: %v", err)
		return
	}
	log.Debugf("组合敞口: %s%%（%d 个持仓）",
		domain.PortfolioHeat(positions, snap.Balance).Mul(decimal.NewFromInt(100)).StringFixed(2),
		len(positions))
	for _, symbol := range e.cfg.Symbols {
		entryPrice, ok := prices[symbol]
		if !ok {
			continue
		}
		e.decide(ctx, now, symbol, entryPrice, snap.Balance, positions)
	}
}

// observePrices 获取各标的最新价并喂给所有策略
func (e *Engine) observePrices(ctx context.Context, now time.Time) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(e.cfg.Symbols))
	for _, symbol := range e.cfg.Symbols {
		price, err := e.broker.GetLastPrice(ctx, symbol)
		if err != nil {
			log.Debugf("获取价格失败: symbol=%s err=%v", symbol, err)
			continue
		}
		prices[symbol] = price
		for _, s := range e.registry.GetAll() {
			s.Observe(symbol, price, now)
		}
	}
	return prices
}

// decide 对单个标的执行聚合 -> 仓位 -> 下单
func (e *Engine) decide(ctx context.Context, now time.Time, symbol string,
	entryPrice, balance decimal.Decimal, positions map[string]domain.Position) {

	votes := make([]domain.StrategyVote, 0)
	for _, s := range e.registry.GetAll() {
		if vote, ok := s.Vote(symbol, now); ok {
			votes = append(votes, vote)
		}
	}
	if len(votes) == 0 {
		return
	}

	sig := e.agg.Aggregate(symbol, votes, e.ctxFn(symbol, now))
	if sig.Direction == domain.DirectionHold {
		return
	}

	result := e.sizer.Calculate(sizing.Request{
		Symbol:               symbol,
		AggregatedConfidence: sig.Confidence,
		EntryPrice:           entryPrice,
		CurrentBalance:       balance,
		OpenPositions:        positions,
	})
	metrics.DecisionCount.Add(1)
	if e.jrnl != nil {
		e.jrnl.RecordDecision(now, sig, result.Size, result.Approved, result.Reason)
	}
	if !result.Approved {
		metrics.RejectionCount.Add(1)
		return
	}

	order := domain.Order{
		Symbol:     symbol,
		Side:       domain.Side(sig.Direction),
		Notional:   result.Size,
		LimitPrice: entryPrice,
		Quantity:   result.Size.Div(entryPrice).Round(0),
	}
	if order.Quantity.Sign() <= 0 {
		log.Debugf("仓位金额不足一股，跳过: symbol=%s size=%s price=%s",
			symbol, result.Size.StringFixed(2), entryPrice)
		return
	}

	if e.cfg.DryRun {
		log.Infof("📝 [dry-run] %s %s notional=%s confidence=%.3f（不真实下单）",
			order.Side, symbol, result.Size.StringFixed(2), sig.Confidence)
		return
	}

	placed, err := e.broker.PlaceOrder(ctx, order)
	if e.jrnl != nil {
		e.jrnl.RecordOrder(placed)
	}
	if err != nil {
		log.Errorf("下单失败: symbol=%s err=%v", symbol, err)
		return
	}
	metrics.OrderCount.Add(1)
	e.state.RecordTrade()
	e.persistSnapshot()
	log.Infof("✅ 下单成功: %s %s notional=%s qty=%s",
		placed.Side, symbol, result.Size.StringFixed(2), placed.Quantity)
}

// persistSnapshot 写风控快照（每次状态变更后调用）并更新只读副本
func (e *Engine) persistSnapshot() {
	snap := risk.TakeSnapshot(e.state, e.halt)
	if err := e.store.Save(snap); err != nil {
		log.Errorf("持久化风控快照失败: %v", err)
	}

	e.snapMu.Lock()
	e.lastSnap = snap
	e.snapMu.Unlock()

	if snap.HaltState == risk.StateHalted {
		metrics.HaltedGauge.Set(1)
	} else {
		metrics.HaltedGauge.Set(0)
	}
}

// Snapshot 返回最近一次风控快照的副本（任意 goroutine 可读）
func (e *Engine) Snapshot() risk.Snapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.lastSnap
}

// IsHalted 只读查询熔断状态（基于快照副本）
func (e *Engine) IsHalted() bool {
	return e.Snapshot().HaltState == risk.StateHalted
}

// defaultContext 默认市场上下文：只提供交易时段信息（9:30–16:00 交易所时区），
// 成交量/支撑位等在没有行情统计时保持中性。
func (e *Engine) defaultContext(symbol string, now time.Time) domain.MarketContext {
	_ = symbol
	local := now.In(e.loc)
	open := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, e.loc)
	close_ := time.Date(local.Year(), local.Month(), local.Day(), 16, 0, 0, 0, e.loc)

	mctx := domain.MarketContext{
		VolumeRatio:     1.0,
		MinutesFromOpen: -1,
		MinutesToClose:  -1,
	}
	if !local.Before(open) && local.Before(close_) {
		mctx.MinutesFromOpen = int(local.Sub(open).Minutes())
		mctx.MinutesToClose = int(close_.Sub(local).Minutes())
	}
	return mctx
}
