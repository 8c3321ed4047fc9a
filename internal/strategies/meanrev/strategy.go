package meanrev

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/domain"
)

var log = logrus.WithField("strategy", ID)

// Strategy 均值回归策略：价格偏离滚动均值超过带宽时反向投票。
type Strategy struct {
	Config Config

	mu      sync.Mutex
	history map[string][]float64 // 最近 Lookback 个价格
}

// New 创建均值回归策略
func New(cfg Config) *Strategy {
	return &Strategy{
		Config:  cfg,
		history: make(map[string][]float64),
	}
}

// ID 实现 strategies.Strategy
func (s *Strategy) ID() string { return ID }

// Defaults 实现 strategies.StrategyDefaulter
func (s *Strategy) Defaults() error { return s.Config.Defaults() }

// Validate 实现 strategies.StrategyValidator
func (s *Strategy) Validate() error { return s.Config.Validate() }

// Observe 喂入价格观测，只保留最近 Lookback 个样本
func (s *Strategy) Observe(symbol string, price decimal.Decimal, at time.Time) {
	_ = at
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := append(s.history[symbol], price.InexactFloat64())
	if len(hist) > s.Config.Lookback {
		hist = hist[len(hist)-s.Config.Lookback:]
	}
	s.history[symbol] = hist
}

// Vote 价格低于均值 band 以上投 BUY（回归预期），高于均值 band 以上投 SELL。
// 置信度随偏离幅度单调上升，在 3 倍带宽处封顶为 1。
func (s *Strategy) Vote(symbol string, now time.Time) (domain.StrategyVote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.history[symbol]
	if len(hist) < s.Config.Lookback {
		return domain.StrategyVote{}, false
	}

	var sum float64
	for _, p := range hist {
		sum += p
	}
	mean := sum / float64(len(hist))
	if mean <= 0 {
		return domain.StrategyVote{}, false
	}

	last := hist[len(hist)-1]
	deviationPct := (last - mean) / mean * 100

	vote := domain.StrategyVote{
		Strategy:  ID,
		Symbol:    symbol,
		Direction: domain.DirectionHold,
		Weight:    s.Config.Weight,
		At:        now,
	}

	switch {
	case deviationPct <= -s.Config.BandPct:
		vote.Direction = domain.DirectionBuy
	case deviationPct >= s.Config.BandPct:
		vote.Direction = domain.DirectionSell
	default:
		return vote, true
	}

	magnitude := deviationPct
	if magnitude < 0 {
		magnitude = -magnitude
	}
	vote.Confidence = magnitude / (s.Config.BandPct * 3)
	if vote.Confidence > 1 {
		vote.Confidence = 1
	}

	log.Debugf("投票: symbol=%s deviation=%.2f%% dir=%s confidence=%.3f",
		symbol, deviationPct, vote.Direction, vote.Confidence)
	return vote, true
}
