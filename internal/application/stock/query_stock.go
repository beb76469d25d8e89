package stock

import (
	"context"

	"github.com/xiebiao/retailcore/internal/domain/stock"
)

// Ledger 库存用例所需的台账能力(stockledger.Ledger满足)
type Ledger interface {
	CheckAvailability(ctx context.Context, storeID, productID uint, qty int) (*stock.Availability, error)
	GetStock(ctx context.Context, storeID, productID uint) (*stock.Stock, error)
	Decrement(ctx context.Context, storeID, productID uint, qty int, changeType stock.ChangeType, referenceID string) (int, error)
	Restore(ctx context.Context, storeID, productID uint, qty int, changeType stock.ChangeType, referenceID string) error
	Transfer(ctx context.Context, fromStoreID, toStoreID, productID uint, qty int, referenceID string) error
	BulkUpdate(ctx context.Context, items []stock.BulkItem) ([]stock.BulkResult, error)
}

// QueryStockUseCase 库存查询用例
// 两条读路径刻意不同:
// - 可用性检查服务于下单决策,要求准确,直连台账
// - 快照查询服务于展示,可以容忍短TTL的陈旧,走Cache-Aside
type QueryStockUseCase struct {
	ledger Ledger
}

// NewQueryStockUseCase 创建库存查询用例
func NewQueryStockUseCase(ledger Ledger) *QueryStockUseCase {
	return &QueryStockUseCase{ledger: ledger}
}

// CheckAvailability 检查(门店,商品)的库存能否满足请求数量
func (uc *QueryStockUseCase) CheckAvailability(ctx context.Context, storeID, productID uint, qty int) (*stock.Availability, error) {
	if qty <= 0 {
		return nil, stock.ErrInvalidQuantity
	}
	return uc.ledger.CheckAvailability(ctx, storeID, productID, qty)
}

// GetStock 查询(门店,商品)的库存快照
func (uc *QueryStockUseCase) GetStock(ctx context.Context, storeID, productID uint) (*stock.Stock, error) {
	return uc.ledger.GetStock(ctx, storeID, productID)
}
