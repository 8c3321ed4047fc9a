package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// 外部请求（ops API、CLI）通过命令通道进入控制循环执行，
// 保证 RiskState / HaltState 只被循环线程变更。

const commandTimeout = 5 * time.Second

// submit 把闭包交给循环线程执行并等待完成
func (e *Engine) submit(fn func()) bool {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case e.cmds <- wrapped:
	case <-time.After(commandTimeout):
		return false
	}
	select {
	case <-done:
		return true
	case <-time.After(commandTimeout):
		return false
	}
}

// ResumeTrading 请求恢复交易。拒绝（授权码错误、冷却未结束）返回 (false, 原因)，
// 不会改变状态。可从任意 goroutine 调用。
func (e *Engine) ResumeTrading(code string, force bool) (bool, string) {
	var ok bool
	var msg string
	delivered := e.submit(func() {
		ok, msg = e.halt.ResumeTrading(code, force)
		if ok {
			if e.jrnl != nil {
				e.jrnl.RecordHaltEvent(time.Now(), "resume", msg, code)
			}
			e.persistSnapshot()
		}
	})
	if !delivered {
		return false, "引擎未响应，请稍后重试"
	}
	return ok, msg
}

// ResetPeak 请求重置峰值余额（操作员动作，清除失真的高水位）。
// 可从任意 goroutine 调用。
func (e *Engine) ResetPeak(balance decimal.Decimal) (bool, string) {
	if balance.Sign() <= 0 {
		return false, "余额必须大于 0"
	}
	delivered := e.submit(func() {
		e.state.ResetPeak(balance)
		e.persistSnapshot()
	})
	if !delivered {
		return false, "引擎未响应，请稍后重试"
	}
	return true, "峰值已重置"
}
