package broker

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/stockbot/gostock/internal/domain"
)

// ErrStaleData 表示账户/持仓快照超过允许的过期窗口。
// 过期快照不能用于风控计算，调用方应跳过本轮决策。
var ErrStaleData = errors.New("broker: snapshot data is stale")

// Broker 券商协作方接口。真实的 I/O（下单、行情）全部在实现层，
// 风控子系统只消费这几个边界契约。
type Broker interface {
	// GetAccountBalance 获取账户余额快照
	GetAccountBalance(ctx context.Context) (domain.AccountSnapshot, error)

	// GetOpenPositions 获取全部未平仓位
	GetOpenPositions(ctx context.Context) (map[string]domain.Position, error)

	// GetLastPrice 获取标的最新价格
	GetLastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// PlaceOrder 提交订单，返回带状态的订单
	PlaceOrder(ctx context.Context, order domain.Order) (domain.Order, error)
}
