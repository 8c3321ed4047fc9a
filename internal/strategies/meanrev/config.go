package meanrev

import "fmt"

// ID 策略标识
const ID = "meanrev"

// Config 均值回归策略配置
type Config struct {
	Lookback int     // 滚动均值样本数
	BandPct  float64 // 偏离带宽（百分比），偏离超过该值才投票
	Weight   float64 // 聚合权重
}

// Defaults 填充默认值
func (c *Config) Defaults() error {
	if c.Lookback == 0 {
		c.Lookback = 20
	}
	if c.BandPct == 0 {
		c.BandPct = 1.0
	}
	if c.Weight == 0 {
		c.Weight = 1.0
	}
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Lookback < 2 {
		return fmt.Errorf("lookback 必须大于等于 2")
	}
	if c.BandPct <= 0 {
		return fmt.Errorf("band_pct 必须大于 0")
	}
	if c.Weight <= 0 {
		return fmt.Errorf("weight 必须大于 0")
	}
	return nil
}
