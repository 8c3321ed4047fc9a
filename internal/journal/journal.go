package journal

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/stockbot/gostock/internal/domain"
)

var log = logrus.WithField("component", "journal")

// Journal 决策日志：每次仓位决策、下单、熔断事件写一行 SQLite，
// 供事后复盘。写入失败只记日志不影响交易路径。
type Journal struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	at         TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	direction  TEXT NOT NULL,
	confidence REAL NOT NULL,
	agree      INTEGER NOT NULL,
	total      INTEGER NOT NULL,
	size       TEXT NOT NULL,
	approved   INTEGER NOT NULL,
	reason     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS orders (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	at              TEXT NOT NULL,
	client_order_id TEXT NOT NULL,
	symbol          TEXT NOT NULL,
	side            TEXT NOT NULL,
	quantity        TEXT NOT NULL,
	notional        TEXT NOT NULL,
	status          TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS halt_events (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	at     TEXT NOT NULL,
	event  TEXT NOT NULL,
	reason TEXT NOT NULL,
	code   TEXT NOT NULL DEFAULT ''
);
`

// Open 打开（必要时创建）决策日志数据库
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close 关闭数据库
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// RecordDecision 记录一次仓位决策（批准或拒绝）
func (j *Journal) RecordDecision(at time.Time, sig domain.AggregatedSignal, size decimal.Decimal, approved bool, reason string) {
	if j == nil {
		return
	}
	_, err := j.db.Exec(
		`INSERT INTO decisions (at, symbol, direction, confidence, agree, total, size, approved, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		at.Format(time.RFC3339), sig.Symbol, string(sig.Direction), sig.Confidence,
		sig.AgreeCount, sig.TotalVotes, size.String(), boolToInt(approved), reason,
	)
	if err != nil {
		log.Warnf("决策记录写入失败: %v", err)
	}
}

// RecordOrder 记录一次订单提交结果
func (j *Journal) RecordOrder(order domain.Order) {
	if j == nil {
		return
	}
	_, err := j.db.Exec(
		`INSERT INTO orders (at, client_order_id, symbol, side, quantity, notional, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.CreatedAt.Format(time.RFC3339), order.ClientOrderID, order.Symbol,
		string(order.Side), order.Quantity.String(), order.Notional.String(), string(order.Status),
	)
	if err != nil {
		log.Warnf("订单记录写入失败: %v", err)
	}
}

// RecordHaltEvent 记录熔断/恢复事件。code 仅在恢复时填写（审计要求）。
func (j *Journal) RecordHaltEvent(at time.Time, event, reason, code string) {
	if j == nil {
		return
	}
	_, err := j.db.Exec(
		`INSERT INTO halt_events (at, event, reason, code) VALUES (?, ?, ?, ?)`,
		at.Format(time.RFC3339), event, reason, code,
	)
	if err != nil {
		log.Warnf("熔断事件写入失败: %v", err)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
