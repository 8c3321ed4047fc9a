package momentum

import "fmt"

// ID 策略标识
const ID = "momentum"

// Config 动量策略配置
type Config struct {
	ThresholdBps int     // 触发阈值（基点），窗口内涨跌超过该值才投票
	WindowSecs   int     // 回看窗口（秒）
	Weight       float64 // 聚合权重
}

// Defaults 填充默认值
func (c *Config) Defaults() error {
	if c.ThresholdBps == 0 {
		c.ThresholdBps = 30
	}
	if c.WindowSecs == 0 {
		c.WindowSecs = 300
	}
	if c.Weight == 0 {
		c.Weight = 1.0
	}
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.ThresholdBps <= 0 {
		return fmt.Errorf("threshold_bps 必须大于 0")
	}
	if c.WindowSecs <= 0 {
		return fmt.Errorf("window_secs 必须大于 0")
	}
	if c.Weight <= 0 {
		return fmt.Errorf("weight 必须大于 0")
	}
	return nil
}
