package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RiskConfig 风控配置（回撤/日亏熔断 + 恢复冷却）
type RiskConfig struct {
	MaxDrawdownPercent  float64 `yaml:"max_drawdown_percent" json:"max_drawdown_percent"`     // 最大回撤百分比，例如 10 表示 10%
	MaxDailyLossPercent float64 `yaml:"max_daily_loss_percent" json:"max_daily_loss_percent"` // 当日最大亏损百分比
	HaltCooldownMinutes int     `yaml:"halt_cooldown_minutes" json:"halt_cooldown_minutes"`   // 熔断后恢复冷却时间（分钟）
	ResumeAuthCode      string  `yaml:"resume_auth_code" json:"resume_auth_code"`             // 恢复交易授权码
	ExchangeTimezone    string  `yaml:"exchange_timezone" json:"exchange_timezone"`           // 交易所时区（用于按日重置），默认 America/New_York
}

// ConfidenceBand 置信度档位：confidence < Below 时使用 Multiplier
// 档位按 Below 升序排列；最后一档之上使用 TopMultiplier。
type ConfidenceBand struct {
	Below      float64 `yaml:"below" json:"below"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// SizingConfig 仓位计算配置
type SizingConfig struct {
	BasePositionSize        float64          `yaml:"base_position_size" json:"base_position_size"`                 // 基础仓位（USD）
	MinPositionSize         float64          `yaml:"min_position_size" json:"min_position_size"`                   // 最小仓位（USD）
	MaxPositionSize         float64          `yaml:"max_position_size" json:"max_position_size"`                   // 最大仓位（USD）
	MaxPortfolioHeatPercent float64          `yaml:"max_portfolio_heat_percent" json:"max_portfolio_heat_percent"` // 最大组合风险敞口百分比
	ConfidenceBands         []ConfidenceBand `yaml:"confidence_bands" json:"confidence_bands"`                     // 置信度档位（可选，空则用默认档位）
	TopMultiplier           float64          `yaml:"top_multiplier" json:"top_multiplier"`                         // 最高档位乘数（confidence 超过所有档位时）
}

// SignalConfig 信号聚合配置
type SignalConfig struct {
	MinAgreeCount        int     `yaml:"min_agree_count" json:"min_agree_count"`               // 最少同向策略数
	MaxVolumeBoost       float64 `yaml:"max_volume_boost" json:"max_volume_boost"`             // 成交量确认最大加成
	MaxTimingPenalty     float64 `yaml:"max_timing_penalty" json:"max_timing_penalty"`         // 时段惩罚最大值（开盘/收盘附近降低置信度）
	MaxLevelBoost        float64 `yaml:"max_level_boost" json:"max_level_boost"`               // 支撑/阻力位接近度最大加成
	MaxCorrelationAdjust float64 `yaml:"max_correlation_adjust" json:"max_correlation_adjust"` // 与基准相关性最大调整
}

// BrokerConfig 券商会话配置
type BrokerConfig struct {
	Mode                 string  `yaml:"mode" json:"mode"`                                     // paper 或 ibgw
	GatewayURL           string  `yaml:"gateway_url" json:"gateway_url"`                       // IB 网关地址，例如 https://localhost:5000
	AccountID            string  `yaml:"account_id" json:"account_id"`                         // 账户 ID
	PollIntervalSecs     int     `yaml:"poll_interval_secs" json:"poll_interval_secs"`         // 账户轮询间隔（秒），默认 5
	StalenessWindowSecs  int     `yaml:"staleness_window_secs" json:"staleness_window_secs"`   // 快照过期窗口（秒），默认 30
	PaperStartingBalance float64 `yaml:"paper_starting_balance" json:"paper_starting_balance"` // paper 模式初始资金
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// StateConfig 风控状态持久化配置
type StateConfig struct {
	Dir       string `yaml:"dir" json:"dir"`               // JSON 快照目录，默认 state
	BadgerDir string `yaml:"badger_dir" json:"badger_dir"` // 非空则改用 Badger 存储
}

// MomentumConfig 动量策略配置
type MomentumConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	ThresholdBps int     `yaml:"threshold_bps" json:"threshold_bps"` // 触发阈值（基点）
	WindowSecs   int     `yaml:"window_secs" json:"window_secs"`     // 回看窗口（秒）
	Weight       float64 `yaml:"weight" json:"weight"`               // 聚合权重
}

// MeanRevConfig 均值回归策略配置
type MeanRevConfig struct {
	Enabled  bool    `yaml:"enabled" json:"enabled"`
	Lookback int     `yaml:"lookback" json:"lookback"` // 滚动均值样本数
	BandPct  float64 `yaml:"band_pct" json:"band_pct"` // 偏离带宽（百分比）
	Weight   float64 `yaml:"weight" json:"weight"`     // 聚合权重
}

// StrategiesConfig 策略配置
type StrategiesConfig struct {
	Momentum *MomentumConfig `yaml:"momentum" json:"momentum"`
	MeanRev  *MeanRevConfig  `yaml:"meanrev" json:"meanrev"`
}

// Config 应用配置（由 YAML 加载为显式类型，构造时按引用传入各组件）
type Config struct {
	Symbols    []string         `yaml:"symbols" json:"symbols"` // 交易标的列表
	Risk       RiskConfig       `yaml:"risk" json:"risk"`
	Sizing     SizingConfig     `yaml:"sizing" json:"sizing"`
	Signals    SignalConfig     `yaml:"signals" json:"signals"`
	Broker     BrokerConfig     `yaml:"broker" json:"broker"`
	Strategies StrategiesConfig `yaml:"strategies" json:"strategies"`
	Log        LogConfig        `yaml:"log" json:"log"`
	State      StateConfig      `yaml:"state" json:"state"`
	JournalDB  string           `yaml:"journal_db" json:"journal_db"`   // SQLite 决策日志路径（空则关闭）
	OpsListen  string           `yaml:"ops_listen" json:"ops_listen"`   // 运维 API 监听地址（空则关闭）
	DebugAddr  string           `yaml:"debug_addr" json:"debug_addr"`   // expvar/pprof 监听地址（空则关闭）
	DryRun     bool             `yaml:"dry_run" json:"dry_run"`         // 纸交易模式：不真实下单，只记录决策
}

// DefaultConfidenceBands 默认置信度档位：<0.6 → 0.5x，0.6–0.8 → 1.0x，>0.8 → 1.5x
func DefaultConfidenceBands() []ConfidenceBand {
	return []ConfidenceBand{
		{Below: 0.6, Multiplier: 0.5},
		{Below: 0.8, Multiplier: 1.0},
	}
}

// applyDefaults 填充未设置的默认值
func (c *Config) applyDefaults() {
	if c.Risk.ExchangeTimezone == "" {
		c.Risk.ExchangeTimezone = "America/New_York"
	}
	if c.Risk.HaltCooldownMinutes == 0 {
		c.Risk.HaltCooldownMinutes = 30
	}
	if len(c.Sizing.ConfidenceBands) == 0 {
		c.Sizing.ConfidenceBands = DefaultConfidenceBands()
	}
	if c.Sizing.TopMultiplier == 0 {
		c.Sizing.TopMultiplier = 1.5
	}
	if c.Signals.MinAgreeCount == 0 {
		c.Signals.MinAgreeCount = 1
	}
	if c.Broker.Mode == "" {
		c.Broker.Mode = "paper"
	}
	if c.Broker.PollIntervalSecs == 0 {
		c.Broker.PollIntervalSecs = 5
	}
	if c.Broker.StalenessWindowSecs == 0 {
		c.Broker.StalenessWindowSecs = 30
	}
	if c.Broker.PaperStartingBalance == 0 {
		c.Broker.PaperStartingBalance = 100000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.State.Dir == "" {
		c.State.Dir = "state"
	}
}

// Validate 校验配置。阈值缺失或非法视为致命错误（启动时 fail fast）。
func (c *Config) Validate() error {
	if c.Risk.MaxDrawdownPercent <= 0 || c.Risk.MaxDrawdownPercent > 100 {
		return fmt.Errorf("risk.max_drawdown_percent 必须在 (0, 100] 区间: %v", c.Risk.MaxDrawdownPercent)
	}
	if c.Risk.MaxDailyLossPercent <= 0 || c.Risk.MaxDailyLossPercent > 100 {
		return fmt.Errorf("risk.max_daily_loss_percent 必须在 (0, 100] 区间: %v", c.Risk.MaxDailyLossPercent)
	}
	if c.Risk.HaltCooldownMinutes < 0 {
		return fmt.Errorf("risk.halt_cooldown_minutes 不能为负数: %d", c.Risk.HaltCooldownMinutes)
	}
	if strings.TrimSpace(c.Risk.ResumeAuthCode) == "" {
		return fmt.Errorf("risk.resume_auth_code 不能为空")
	}
	if _, err := time.LoadLocation(c.Risk.ExchangeTimezone); err != nil {
		return fmt.Errorf("risk.exchange_timezone 非法: %w", err)
	}

	if c.Sizing.BasePositionSize <= 0 {
		return fmt.Errorf("sizing.base_position_size 必须大于 0: %v", c.Sizing.BasePositionSize)
	}
	if c.Sizing.MinPositionSize < 0 {
		return fmt.Errorf("sizing.min_position_size 不能为负数: %v", c.Sizing.MinPositionSize)
	}
	if c.Sizing.MaxPositionSize < c.Sizing.MinPositionSize {
		return fmt.Errorf("sizing.max_position_size (%v) 不能小于 min_position_size (%v)",
			c.Sizing.MaxPositionSize, c.Sizing.MinPositionSize)
	}
	if c.Sizing.MaxPortfolioHeatPercent <= 0 || c.Sizing.MaxPortfolioHeatPercent > 100 {
		return fmt.Errorf("sizing.max_portfolio_heat_percent 必须在 (0, 100] 区间: %v", c.Sizing.MaxPortfolioHeatPercent)
	}
	if err := validateBands(c.Sizing.ConfidenceBands, c.Sizing.TopMultiplier); err != nil {
		return err
	}

	if c.Signals.MinAgreeCount < 1 {
		return fmt.Errorf("signals.min_agree_count 必须大于等于 1: %d", c.Signals.MinAgreeCount)
	}

	switch c.Broker.Mode {
	case "paper":
	case "ibgw":
		if strings.TrimSpace(c.Broker.GatewayURL) == "" {
			return fmt.Errorf("broker.gateway_url 不能为空（mode=ibgw）")
		}
		if strings.TrimSpace(c.Broker.AccountID) == "" {
			return fmt.Errorf("broker.account_id 不能为空（mode=ibgw）")
		}
	default:
		return fmt.Errorf("broker.mode 非法: %q（支持 paper, ibgw）", c.Broker.Mode)
	}

	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols 不能为空")
	}
	return nil
}

// validateBands 校验置信度档位：Below 升序、乘数单调不减
func validateBands(bands []ConfidenceBand, top float64) error {
	if !sort.SliceIsSorted(bands, func(i, j int) bool { return bands[i].Below < bands[j].Below }) {
		return fmt.Errorf("sizing.confidence_bands 必须按 below 升序排列")
	}
	prev := 0.0
	for i, b := range bands {
		if b.Below <= 0 || b.Below > 1 {
			return fmt.Errorf("sizing.confidence_bands[%d].below 必须在 (0, 1] 区间: %v", i, b.Below)
		}
		if b.Multiplier <= 0 {
			return fmt.Errorf("sizing.confidence_bands[%d].multiplier 必须大于 0: %v", i, b.Multiplier)
		}
		if b.Multiplier < prev {
			return fmt.Errorf("sizing.confidence_bands 乘数必须单调不减")
		}
		prev = b.Multiplier
	}
	if top < prev {
		return fmt.Errorf("sizing.top_multiplier (%v) 不能小于最高档位乘数 (%v)", top, prev)
	}
	return nil
}

// ExchangeLocation 返回交易所时区（Validate 通过后不会失败）
func (c *Config) ExchangeLocation() *time.Location {
	loc, err := time.LoadLocation(c.Risk.ExchangeTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadFromFile 从 YAML/JSON 文件加载配置并校验
func LoadFromFile(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("配置文件路径为空")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	// yaml.v3 同样能解析 JSON，后缀仅用于提示
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		ext := filepath.Ext(path)
		return nil, fmt.Errorf("解析配置文件失败（%s）: %w", ext, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}
	return &cfg, nil
}
