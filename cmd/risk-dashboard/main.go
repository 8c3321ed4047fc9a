package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stockbot/gostock/internal/risk"
	"github.com/stockbot/gostock/pkg/persistence"
)

var (
	// 样式定义
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	okStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("2")) // 绿色

	haltStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("1")) // 红色

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")) // 黄色

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// tickMsg 定时刷新
type tickMsg time.Time

// model 只读展示风控快照文件，不持有任何风控状态
type model struct {
	path     string
	snap     risk.Snapshot
	loaded   bool
	err      error
	lastRead time.Time
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		m.readSnapshot()
		return m, tick()
	}
	return m, nil
}

// readSnapshot 重新读取快照文件（引擎每次状态变更都会原子覆盖该文件）
func (m *model) readSnapshot() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		m.err = err
		return
	}
	var snap risk.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		m.err = err
		return
	}
	m.snap = snap
	m.loaded = true
	m.err = nil
	m.lastRead = time.Now()
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("📊 gostock 风控面板"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(warnStyle.Render(fmt.Sprintf("读取快照失败: %v", m.err)))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("路径: " + m.path))
		b.WriteString("\n\n" + dimStyle.Render("按 q 退出"))
		return b.String()
	}
	if !m.loaded {
		b.WriteString(dimStyle.Render("等待快照..."))
		b.WriteString("\n\n" + dimStyle.Render("按 q 退出"))
		return b.String()
	}

	s := m.snap

	status := okStyle.Render("✅ ACTIVE")
	if s.HaltState == risk.StateHalted {
		status = haltStyle.Render("🛑 HALTED")
	}

	rows := []string{
		row("状态", status),
		row("最新余额", valueStyle.Render("$"+s.LastBalance.StringFixed(2))),
		row("峰值余额", valueStyle.Render("$"+s.PeakBalance.StringFixed(2))),
		row("当日起始", valueStyle.Render("$"+s.DailyStartBalance.StringFixed(2))),
		row("当前回撤", pctCell(s.Drawdown.InexactFloat64())),
		row("当日亏损", pctCell(s.DailyLoss.InexactFloat64())),
		row("今日交易数", valueStyle.Render(fmt.Sprintf("%d", s.TradeCountToday))),
		row("交易日", valueStyle.Render(s.LastResetDate)),
	}
	if s.HaltState == risk.StateHalted {
		rows = append(rows, row("熔断原因", haltStyle.Render(s.HaltReason)))
		if s.HaltedAt != nil {
			rows = append(rows, row("熔断时间", valueStyle.Render(s.HaltedAt.Format("01-02 15:04:05"))))
		}
	}
	b.WriteString(borderStyle.Render(strings.Join(rows, "\n")))

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("快照时间: %s（每秒刷新） 按 q 退出",
		s.SavedAt.Format("15:04:05"))))
	return b.String()
}

func row(label, value string) string {
	return fmt.Sprintf("%s %s", labelStyle.Width(12).Render(label), value)
}

// pctCell 按严重程度着色的百分比
func pctCell(frac float64) string {
	text := fmt.Sprintf("%.2f%%", frac*100)
	switch {
	case frac >= 0.05:
		return haltStyle.Render(text)
	case frac >= 0.02:
		return warnStyle.Render(text)
	default:
		return okStyle.Render(text)
	}
}

func main() {
	stateDir := flag.String("state-dir", "state", "风控快照目录（与 bot 的 state.dir 一致）")
	account := flag.String("account", "paper", "账户 ID（paper 模式为 paper）")
	flag.Parse()

	path := persistence.SnapshotPath(*stateDir, "risk", *account, "state")

	m := model{path: path}
	m.readSnapshot()

	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "dashboard 退出: %v\n", err)
		os.Exit(1)
	}
}
