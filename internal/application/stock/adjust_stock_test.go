package stock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/retailcore/internal/domain/catalog"
	"github.com/xiebiao/retailcore/internal/domain/stock"
	apperrors "github.com/xiebiao/retailcore/pkg/errors"
)

// ==================== 测试替身 ====================

// fakeLedger 内存台账:条件扣减/幂等恢复/同事务调拨
type fakeLedger struct {
	stocks   map[string]int
	restored map[string]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{stocks: make(map[string]int), restored: make(map[string]bool)}
}

func (f *fakeLedger) key(storeID, productID uint) string {
	return fmt.Sprintf("%d-%d", storeID, productID)
}

func (f *fakeLedger) CheckAvailability(ctx context.Context, storeID, productID uint, qty int) (*stock.Availability, error) {
	s := &stock.Stock{StoreID: storeID, ProductID: productID, Quantity: f.stocks[f.key(storeID, productID)]}
	return s.CheckAgainst(qty), nil
}

func (f *fakeLedger) GetStock(ctx context.Context, storeID, productID uint) (*stock.Stock, error) {
	k := f.key(storeID, productID)
	if _, ok := f.stocks[k]; !ok {
		return nil, stock.ErrStockNotFound
	}
	return &stock.Stock{StoreID: storeID, ProductID: productID, Quantity: f.stocks[k]}, nil
}

func (f *fakeLedger) Decrement(ctx context.Context, storeID, productID uint, qty int, changeType stock.ChangeType, referenceID string) (int, error) {
	k := f.key(storeID, productID)
	if f.stocks[k] < qty {
		return 0, stock.NewInsufficientError(productID, f.stocks[k], qty)
	}
	f.stocks[k] -= qty
	return f.stocks[k], nil
}

func (f *fakeLedger) Restore(ctx context.Context, storeID, productID uint, qty int, changeType stock.ChangeType, referenceID string) error {
	if f.restored[referenceID] {
		return nil
	}
	f.restored[referenceID] = true
	f.stocks[f.key(storeID, productID)] += qty
	return nil
}

func (f *fakeLedger) Transfer(ctx context.Context, fromStoreID, toStoreID, productID uint, qty int, referenceID string) error {
	from := f.key(fromStoreID, productID)
	if f.stocks[from] < qty {
		return stock.NewInsufficientError(productID, f.stocks[from], qty)
	}
	f.stocks[from] -= qty
	f.stocks[f.key(toStoreID, productID)] += qty
	return nil
}

func (f *fakeLedger) BulkUpdate(ctx context.Context, items []stock.BulkItem) ([]stock.BulkResult, error) {
	results := make([]stock.BulkResult, 0, len(items))
	for i, item := range items {
		res := stock.BulkResult{StoreID: item.StoreID, ProductID: item.ProductID}
		refID := item.ReferenceID
		if refID == "" {
			// 与真实台账一致:自动引用号带纳秒时间戳,跨批次不会重复
			refID = fmt.Sprintf("bulk-%d-%d-%d-%d", item.StoreID, item.ProductID, i, time.Now().UnixNano())
		}
		switch item.Op {
		case stock.BulkOpDecrement:
			newQty, err := f.Decrement(ctx, item.StoreID, item.ProductID, item.Quantity, stock.ChangeTypeAdjust, refID)
			if err != nil {
				res.Message = apperrors.GetAppError(err).Message
			} else {
				res.Success = true
				res.NewQty = newQty
			}
		case stock.BulkOpRestore:
			if err := f.Restore(ctx, item.StoreID, item.ProductID, item.Quantity, stock.ChangeTypeAdjust, refID); err != nil {
				res.Message = apperrors.GetAppError(err).Message
			} else {
				res.Success = true
				res.NewQty = f.stocks[f.key(item.StoreID, item.ProductID)]
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// fakeCatalogRepo 内存主数据
type fakeCatalogRepo struct {
	stores   map[uint]bool
	products map[uint]bool
	lookups  int // 主数据查询次数(验证批量接口的去重)
}

func newFakeCatalog() *fakeCatalogRepo {
	return &fakeCatalogRepo{stores: map[uint]bool{1: true, 2: true}, products: map[uint]bool{100: true, 200: true}}
}

func (f *fakeCatalogRepo) FindProductByID(ctx context.Context, id uint) (*catalog.Product, error) {
	f.lookups++
	if !f.products[id] {
		return nil, apperrors.ErrProductNotFound
	}
	return &catalog.Product{ID: id, Status: 1}, nil
}

func (f *fakeCatalogRepo) FindStoreByID(ctx context.Context, id uint) (*catalog.Store, error) {
	f.lookups++
	if !f.stores[id] {
		return nil, apperrors.ErrStoreNotFound
	}
	return &catalog.Store{ID: id, Status: 1}, nil
}

// ==================== 盘点调整 ====================

func TestAdjustStock_Gain(t *testing.T) {
	ledger := newFakeLedger()
	uc := NewAdjustStockUseCase(ledger, newFakeCatalog())

	resp, err := uc.Execute(context.Background(), AdjustStockRequest{
		StoreID: 1, ProductID: 100, Delta: 15, ReferenceID: "inv-001",
	})
	require.NoError(t, err)

	assert.Equal(t, 15, ledger.stocks["1-100"], "盘盈应该加库存(行自动创建)")
	assert.Equal(t, "inv-001", resp.ReferenceID)
	assert.Nil(t, resp.NewQty, "恢复路径拿不到新数量")
}

func TestAdjustStock_Loss(t *testing.T) {
	ledger := newFakeLedger()
	ledger.stocks["1-100"] = 10
	uc := NewAdjustStockUseCase(ledger, newFakeCatalog())

	resp, err := uc.Execute(context.Background(), AdjustStockRequest{
		StoreID: 1, ProductID: 100, Delta: -3,
	})
	require.NoError(t, err)

	assert.Equal(t, 7, ledger.stocks["1-100"])
	require.NotNil(t, resp.NewQty)
	assert.Equal(t, 7, *resp.NewQty)
	assert.NotEmpty(t, resp.ReferenceID, "未传凭证号时应该自动生成")
}

func TestAdjustStock_Validation(t *testing.T) {
	ledger := newFakeLedger()
	ledger.stocks["1-100"] = 5
	uc := NewAdjustStockUseCase(ledger, newFakeCatalog())

	t.Run("调整量为0", func(t *testing.T) {
		_, err := uc.Execute(context.Background(), AdjustStockRequest{StoreID: 1, ProductID: 100, Delta: 0})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidParams, apperrors.GetAppError(err).Code)
	})

	t.Run("门店不存在", func(t *testing.T) {
		_, err := uc.Execute(context.Background(), AdjustStockRequest{StoreID: 99, ProductID: 100, Delta: 1})
		assert.ErrorIs(t, err, apperrors.ErrStoreNotFound)
	})

	t.Run("商品不存在", func(t *testing.T) {
		_, err := uc.Execute(context.Background(), AdjustStockRequest{StoreID: 1, ProductID: 999, Delta: 1})
		assert.ErrorIs(t, err, apperrors.ErrProductNotFound)
	})

	t.Run("盘亏超过库存", func(t *testing.T) {
		_, err := uc.Execute(context.Background(), AdjustStockRequest{StoreID: 1, ProductID: 100, Delta: -8})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInsufficientStock, apperrors.GetAppError(err).Code)
		assert.Equal(t, 5, ledger.stocks["1-100"], "失败的盘亏不应该动库存")
	})
}

// ==================== 门店调拨 ====================

func TestTransferStock(t *testing.T) {
	ledger := newFakeLedger()
	ledger.stocks["1-100"] = 10
	uc := NewTransferStockUseCase(ledger, newFakeCatalog())

	resp, err := uc.Execute(context.Background(), TransferStockRequest{
		FromStoreID: 1, ToStoreID: 2, ProductID: 100, Quantity: 4,
	})
	require.NoError(t, err)

	assert.Equal(t, 6, ledger.stocks["1-100"], "源门店应该扣减")
	assert.Equal(t, 4, ledger.stocks["2-100"], "目标门店应该增加")
	assert.NotEmpty(t, resp.ReferenceID)
}

func TestTransferStock_Validation(t *testing.T) {
	ledger := newFakeLedger()
	ledger.stocks["1-100"] = 2
	uc := NewTransferStockUseCase(ledger, newFakeCatalog())

	t.Run("数量非法", func(t *testing.T) {
		_, err := uc.Execute(context.Background(), TransferStockRequest{
			FromStoreID: 1, ToStoreID: 2, ProductID: 100, Quantity: 0,
		})
		assert.ErrorIs(t, err, stock.ErrInvalidQuantity)
	})

	t.Run("同店调拨", func(t *testing.T) {
		_, err := uc.Execute(context.Background(), TransferStockRequest{
			FromStoreID: 1, ToStoreID: 1, ProductID: 100, Quantity: 1,
		})
		assert.ErrorIs(t, err, stock.ErrSameStoreTransfer)
	})

	t.Run("源店库存不足两边都不动", func(t *testing.T) {
		_, err := uc.Execute(context.Background(), TransferStockRequest{
			FromStoreID: 1, ToStoreID: 2, ProductID: 100, Quantity: 5,
		})
		require.Error(t, err)
		assert.Equal(t, 2, ledger.stocks["1-100"])
		assert.Equal(t, 0, ledger.stocks["2-100"])
	})
}

// ==================== 批量变动 ====================

func TestBulkUpdate(t *testing.T) {
	ledger := newFakeLedger()
	ledger.stocks["1-200"] = 3
	uc := NewBulkUpdateUseCase(ledger, newFakeCatalog())

	resp, err := uc.Execute(context.Background(), []stock.BulkItem{
		{Op: stock.BulkOpRestore, StoreID: 1, ProductID: 100, Quantity: 50},
		{Op: stock.BulkOpDecrement, StoreID: 1, ProductID: 200, Quantity: 10}, // 库存不足,这项失败
		{Op: stock.BulkOpDecrement, StoreID: 1, ProductID: 200, Quantity: 2},
	})
	require.NoError(t, err, "批量请求本身应该成功")

	// 单项失败不中止整批
	assert.Equal(t, 2, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 3)
	assert.True(t, resp.Results[0].Success)
	assert.False(t, resp.Results[1].Success)
	assert.Contains(t, resp.Results[1].Message, "库存不足")
	assert.True(t, resp.Results[2].Success)
	assert.Equal(t, 1, resp.Results[2].NewQty)

	assert.Equal(t, 50, ledger.stocks["1-100"])
	assert.Equal(t, 1, ledger.stocks["1-200"])
}

func TestBulkUpdate_WholeBatchValidation(t *testing.T) {
	ledger := newFakeLedger()
	ledger.stocks["1-100"] = 10
	cat := newFakeCatalog()
	uc := NewBulkUpdateUseCase(ledger, cat)

	t.Run("空批次", func(t *testing.T) {
		_, err := uc.Execute(context.Background(), nil)
		require.Error(t, err)
	})

	t.Run("超过单批上限", func(t *testing.T) {
		items := make([]stock.BulkItem, maxBulkItems+1)
		for i := range items {
			items[i] = stock.BulkItem{Op: stock.BulkOpRestore, StoreID: 1, ProductID: 100, Quantity: 1}
		}
		_, err := uc.Execute(context.Background(), items)
		require.Error(t, err)
	})

	t.Run("任一项非法整批拒绝", func(t *testing.T) {
		before := ledger.stocks["1-100"]
		_, err := uc.Execute(context.Background(), []stock.BulkItem{
			{Op: stock.BulkOpRestore, StoreID: 1, ProductID: 100, Quantity: 5},
			{Op: "explode", StoreID: 1, ProductID: 100, Quantity: 1},
		})
		require.Error(t, err)
		assert.Equal(t, before, ledger.stocks["1-100"], "整批拒绝时合法项也不执行")
	})

	t.Run("任一项主数据缺失整批拒绝", func(t *testing.T) {
		_, err := uc.Execute(context.Background(), []stock.BulkItem{
			{Op: stock.BulkOpRestore, StoreID: 1, ProductID: 100, Quantity: 5},
			{Op: stock.BulkOpRestore, StoreID: 1, ProductID: 999, Quantity: 1},
		})
		assert.ErrorIs(t, err, apperrors.ErrProductNotFound)
	})

	t.Run("重复的门店商品只查一次主数据", func(t *testing.T) {
		cat.lookups = 0
		_, err := uc.Execute(context.Background(), []stock.BulkItem{
			{Op: stock.BulkOpRestore, StoreID: 1, ProductID: 100, Quantity: 1},
			{Op: stock.BulkOpRestore, StoreID: 1, ProductID: 100, Quantity: 1},
			{Op: stock.BulkOpRestore, StoreID: 1, ProductID: 100, Quantity: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, cat.lookups, "1门店+1商品应该只查2次")
	})
}

// ==================== 库存查询 ====================

func TestQueryStock(t *testing.T) {
	ledger := newFakeLedger()
	ledger.stocks["1-100"] = 5
	uc := NewQueryStockUseCase(ledger)

	t.Run("可用性检查", func(t *testing.T) {
		avail, err := uc.CheckAvailability(context.Background(), 1, 100, 3)
		require.NoError(t, err)
		assert.True(t, avail.Available)
		assert.Equal(t, 5, avail.CurrentQty)
		assert.Equal(t, 0, avail.Shortage)

		avail, err = uc.CheckAvailability(context.Background(), 1, 100, 8)
		require.NoError(t, err)
		assert.False(t, avail.Available)
		assert.Equal(t, 3, avail.Shortage)
	})

	t.Run("数量非法", func(t *testing.T) {
		_, err := uc.CheckAvailability(context.Background(), 1, 100, 0)
		assert.ErrorIs(t, err, stock.ErrInvalidQuantity)
	})

	t.Run("快照查询", func(t *testing.T) {
		s, err := uc.GetStock(context.Background(), 1, 100)
		require.NoError(t, err)
		assert.Equal(t, 5, s.Quantity)

		_, err = uc.GetStock(context.Background(), 9, 9)
		assert.ErrorIs(t, err, stock.ErrStockNotFound)
	})
}
