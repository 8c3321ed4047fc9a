package momentum

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/domain"
)

var log = logrus.WithField("strategy", ID)

// sample 单次价格观测
type sample struct {
	price float64
	at    time.Time
}

// Strategy 动量策略：回看窗口内价格变化超过阈值（基点）时投票。
// 投票是价格历史的确定性函数。
type Strategy struct {
	Config Config

	mu      sync.Mutex
	history map[string][]sample
}

// New 创建动量策略
func New(cfg Config) *Strategy {
	return &Strategy{
		Config:  cfg,
		history: make(map[string][]sample),
	}
}

// ID 实现 strategies.Strategy
func (s *Strategy) ID() string { return ID }

// Defaults 实现 strategies.StrategyDefaulter
func (s *Strategy) Defaults() error { return s.Config.Defaults() }

// Validate 实现 strategies.StrategyValidator
func (s *Strategy) Validate() error { return s.Config.Validate() }

// Observe 喂入价格观测，同时裁剪窗口外的旧样本
func (s *Strategy) Observe(symbol string, price decimal.Decimal, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := time.Duration(s.Config.WindowSecs) * time.Second
	cutoff := at.Add(-window)

	hist := append(s.history[symbol], sample{price: price.InexactFloat64(), at: at})
	trimmed := hist[:0]
	for _, smp := range hist {
		if smp.at.After(cutoff) || smp.at.Equal(cutoff) {
			trimmed = append(trimmed, smp)
		}
	}
	s.history[symbol] = trimmed
}

// Vote 计算窗口内的价格变化（基点）：
// >= +threshold 投 BUY，<= -threshold 投 SELL，其余 HOLD。
// 置信度随动量幅度单调上升，在 3 倍阈值处封顶为 1。
func (s *Strategy) Vote(symbol string, now time.Time) (domain.StrategyVote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.history[symbol]
	if len(hist) < 2 {
		return domain.StrategyVote{}, false
	}

	first, last := hist[0], hist[len(hist)-1]
	if first.price <= 0 {
		return domain.StrategyVote{}, false
	}

	changeBps := (last.price - first.price) / first.price * 10000
	threshold := float64(s.Config.ThresholdBps)

	vote := domain.StrategyVote{
		Strategy:  ID,
		Symbol:    symbol,
		Direction: domain.DirectionHold,
		Weight:    s.Config.Weight,
		At:        now,
	}

	switch {
	case changeBps >= threshold:
		vote.Direction = domain.DirectionBuy
	case changeBps <= -threshold:
		vote.Direction = domain.DirectionSell
	default:
		return vote, true
	}

	// 置信度：阈值处 1/3，3 倍阈值处封顶 1
	magnitude := changeBps
	if magnitude < 0 {
		magnitude = -magnitude
	}
	vote.Confidence = magnitude / (threshold * 3)
	if vote.Confidence > 1 {
		vote.Confidence = 1
	}

	log.Debugf("投票: symbol=%s change=%.1fbps dir=%s confidence=%.3f",
		symbol, changeBps, vote.Direction, vote.Confidence)
	return vote, true
}
