package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Symbols: []string{"AAPL", "MSFT"},
		Risk: RiskConfig{
			MaxDrawdownPercent:  10,
			MaxDailyLossPercent: 5,
			HaltCooldownMinutes: 30,
			ResumeAuthCode:      "RESUME-2026",
			ExchangeTimezone:    "America/New_York",
		},
		Sizing: SizingConfig{
			BasePositionSize:        1000,
			MinPositionSize:         100,
			MaxPositionSize:         2000,
			MaxPortfolioHeatPercent: 20,
			ConfidenceBands:         DefaultConfidenceBands(),
			TopMultiplier:           1.5,
		},
		Signals: SignalConfig{MinAgreeCount: 1},
		Broker:  BrokerConfig{Mode: "paper", PollIntervalSecs: 5, StalenessWindowSecs: 30},
	}
}

func TestValidateOK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

// 阈值缺失或非法是致命错误
func TestValidateFatalThresholds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"回撤阈值缺失", func(c *Config) { c.Risk.MaxDrawdownPercent = 0 }},
		{"回撤阈值为负", func(c *Config) { c.Risk.MaxDrawdownPercent = -5 }},
		{"回撤阈值超过 100", func(c *Config) { c.Risk.MaxDrawdownPercent = 150 }},
		{"日亏阈值缺失", func(c *Config) { c.Risk.MaxDailyLossPercent = 0 }},
		{"授权码缺失", func(c *Config) { c.Risk.ResumeAuthCode = "  " }},
		{"时区非法", func(c *Config) { c.Risk.ExchangeTimezone = "Mars/Olympus" }},
		{"冷却为负", func(c *Config) { c.Risk.HaltCooldownMinutes = -1 }},
		{"基础仓位缺失", func(c *Config) { c.Sizing.BasePositionSize = 0 }},
		{"max 小于 min", func(c *Config) { c.Sizing.MaxPositionSize = 50 }},
		{"敞口上限缺失", func(c *Config) { c.Sizing.MaxPortfolioHeatPercent = 0 }},
		{"同向数小于 1", func(c *Config) { c.Signals.MinAgreeCount = 0 }},
		{"标的为空", func(c *Config) { c.Symbols = nil }},
		{"券商模式非法", func(c *Config) { c.Broker.Mode = "crypto" }},
		{"ibgw 缺网关地址", func(c *Config) { c.Broker.Mode = "ibgw"; c.Broker.AccountID = "U123" }},
		{"ibgw 缺账户", func(c *Config) { c.Broker.Mode = "ibgw"; c.Broker.GatewayURL = "https://localhost:5000" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidateBands(t *testing.T) {
	cfg := validConfig()
	cfg.Sizing.ConfidenceBands = []ConfidenceBand{
		{Below: 0.8, Multiplier: 1.0},
		{Below: 0.6, Multiplier: 0.5}, // 乱序
	}
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Sizing.ConfidenceBands = []ConfidenceBand{
		{Below: 0.6, Multiplier: 1.0},
		{Below: 0.8, Multiplier: 0.5}, // 乘数不单调
	}
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Sizing.TopMultiplier = 0.1 // 低于最高档位
	require.Error(t, cfg.Validate())
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, "America/New_York", cfg.Risk.ExchangeTimezone)
	assert.Equal(t, 30, cfg.Risk.HaltCooldownMinutes)
	assert.Equal(t, DefaultConfidenceBands(), cfg.Sizing.ConfidenceBands)
	assert.Equal(t, 1.5, cfg.Sizing.TopMultiplier)
	assert.Equal(t, 1, cfg.Signals.MinAgreeCount)
	assert.Equal(t, "paper", cfg.Broker.Mode)
	assert.Equal(t, 5, cfg.Broker.PollIntervalSecs)
	assert.Equal(t, 30, cfg.Broker.StalenessWindowSecs)
	assert.Equal(t, "state", cfg.State.Dir)
}

func TestLoadFromFileYAML(t *testing.T) {
	content := `
symbols: [AAPL]
risk:
  max_drawdown_percent: 10
  max_daily_loss_percent: 5
  resume_auth_code: RESUME-2026
sizing:
  base_position_size: 1000
  min_position_size: 100
  max_position_size: 2000
  max_portfolio_heat_percent: 20
broker:
  mode: paper
dry_run: true
`
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, cfg.Symbols)
	assert.True(t, cfg.DryRun)
	// 默认值已填充
	assert.Equal(t, "America/New_York", cfg.Risk.ExchangeTimezone)
	assert.Equal(t, 1.5, cfg.Sizing.TopMultiplier)
}

func TestLoadFromFileInvalid(t *testing.T) {
	// 文件不存在
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)

	// 校验不通过（缺授权码）
	content := `
symbols: [AAPL]
risk:
  max_drawdown_percent: 10
  max_daily_loss_percent: 5
sizing:
  base_position_size: 1000
  max_position_size: 2000
  max_portfolio_heat_percent: 20
`
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	_, err = LoadFromFile(path)
	require.Error(t, err)
}

func TestExchangeLocation(t *testing.T) {
	cfg := validConfig()
	loc := cfg.ExchangeLocation()
	require.NotNil(t, loc)
	assert.Equal(t, "America/New_York", loc.String())
}
