package sale

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/retailcore/internal/domain/catalog"
	"github.com/xiebiao/retailcore/internal/domain/sale"
	"github.com/xiebiao/retailcore/internal/domain/stock"
	apperrors "github.com/xiebiao/retailcore/pkg/errors"
	"github.com/xiebiao/retailcore/pkg/saga"
)

// ==================== 测试替身 ====================
// 应用层测试不碰数据库:用内存fake还原台账的关键语义
// (条件扣减、按引用号幂等恢复),验证Saga编排的正确性

// fakeLedger 内存库存台账
type fakeLedger struct {
	stocks      map[string]int  // "storeID-productID" → 数量
	restored    map[string]bool // 已应用的恢复引用号(幂等)
	failRestore bool            // 模拟台账恢复持续失败
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		stocks:   make(map[string]int),
		restored: make(map[string]bool),
	}
}

func (f *fakeLedger) key(storeID, productID uint) string {
	return fmt.Sprintf("%d-%d", storeID, productID)
}

func (f *fakeLedger) set(storeID, productID uint, qty int) {
	f.stocks[f.key(storeID, productID)] = qty
}

func (f *fakeLedger) get(storeID, productID uint) int {
	return f.stocks[f.key(storeID, productID)]
}

// Decrement 条件扣减:不足时返回携带缺口的业务错误,与真实台账一致
func (f *fakeLedger) Decrement(ctx context.Context, storeID, productID uint, qty int, changeType stock.ChangeType, referenceID string) (int, error) {
	k := f.key(storeID, productID)
	if f.stocks[k] < qty {
		return 0, stock.NewInsufficientError(productID, f.stocks[k], qty)
	}
	f.stocks[k] -= qty
	return f.stocks[k], nil
}

// Restore 按引用号幂等恢复
func (f *fakeLedger) Restore(ctx context.Context, storeID, productID uint, qty int, changeType stock.ChangeType, referenceID string) error {
	if f.failRestore {
		return errors.New("台账不可用")
	}
	if f.restored[referenceID] {
		return nil // 重放,不二次加库存
	}
	f.restored[referenceID] = true
	f.stocks[f.key(storeID, productID)] += qty
	return nil
}

// fakeSaleRepo 内存销售单仓储(只实现创建路径用到的方法)
type fakeSaleRepo struct {
	sales      []*sale.Sale
	createErr  error
	lastSaleNo string
}

func (f *fakeSaleRepo) Create(ctx context.Context, s *sale.Sale) error {
	if f.createErr != nil {
		return f.createErr
	}
	s.ID = uint(len(f.sales) + 1)
	f.sales = append(f.sales, s)
	f.lastSaleNo = s.SaleNo
	return nil
}

func (f *fakeSaleRepo) FindByID(ctx context.Context, id uint) (*sale.Sale, error) {
	for _, s := range f.sales {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, sale.ErrSaleNotFound
}

func (f *fakeSaleRepo) FindByIDForUpdate(ctx context.Context, id uint) (*sale.Sale, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeSaleRepo) UpdateStatus(ctx context.Context, id uint, status sale.Status) error {
	s, err := f.FindByID(ctx, id)
	if err != nil {
		return err
	}
	s.Status = status
	return nil
}

func (f *fakeSaleRepo) ListByStoreID(ctx context.Context, storeID uint, page, pageSize int) ([]*sale.Sale, int64, error) {
	return f.sales, int64(len(f.sales)), nil
}

func (f *fakeSaleRepo) ListByUserID(ctx context.Context, userID uint, page, pageSize int) ([]*sale.Sale, int64, error) {
	return f.sales, int64(len(f.sales)), nil
}

// fakeCatalogRepo 内存主数据
type fakeCatalogRepo struct {
	stores   map[uint]bool
	products map[uint]bool
}

func newFakeCatalog() *fakeCatalogRepo {
	return &fakeCatalogRepo{stores: make(map[uint]bool), products: make(map[uint]bool)}
}

func (f *fakeCatalogRepo) addStore(id uint)   { f.stores[id] = true }
func (f *fakeCatalogRepo) addProduct(id uint) { f.products[id] = true }

func (f *fakeCatalogRepo) FindProductByID(ctx context.Context, id uint) (*catalog.Product, error) {
	if !f.products[id] {
		return nil, apperrors.ErrProductNotFound
	}
	return &catalog.Product{ID: id, Status: 1}, nil
}

func (f *fakeCatalogRepo) FindStoreByID(ctx context.Context, id uint) (*catalog.Store, error) {
	if !f.stores[id] {
		return nil, apperrors.ErrStoreNotFound
	}
	return &catalog.Store{ID: id, Status: 1}, nil
}

// fakeInvalidator 记录缓存失效调用
type fakeInvalidator struct {
	storeInvalidated []uint
	userInvalidated  []uint
}

func (f *fakeInvalidator) InvalidateStoreSales(ctx context.Context, storeID uint) {
	f.storeInvalidated = append(f.storeInvalidated, storeID)
}

func (f *fakeInvalidator) InvalidateUserSales(ctx context.Context, userID uint) {
	f.userInvalidated = append(f.userInvalidated, userID)
}

// newCreateSaleFixture 组装用例与默认主数据
func newCreateSaleFixture() (*CreateSaleUseCase, *fakeLedger, *fakeSaleRepo, *fakeInvalidator) {
	ledger := newFakeLedger()
	repo := &fakeSaleRepo{}
	cat := newFakeCatalog()
	cat.addStore(1)
	cat.addStore(2)
	cat.addProduct(100)
	cat.addProduct(200)
	cache := &fakeInvalidator{}
	uc := NewCreateSaleUseCase(repo, cat, ledger, cache, 5*time.Second)
	return uc, ledger, repo, cache
}

// ==================== 用例测试 ====================

func TestCreateSale_Success(t *testing.T) {
	uc, ledger, repo, cache := newCreateSaleFixture()
	ledger.set(1, 100, 10)
	ledger.set(1, 200, 5)

	resp, err := uc.Execute(context.Background(), CreateSaleRequest{
		UserID:  7,
		StoreID: 1,
		Items: []CreateSaleItem{
			{ProductID: 100, Quantity: 3, UnitPrice: 2000},
			{ProductID: 200, Quantity: 1, UnitPrice: 5000},
		},
	})
	require.NoError(t, err)

	// 响应:总额由明细计算
	assert.Equal(t, int64(11000), resp.Total)
	assert.Equal(t, "110.00", resp.TotalYuan)
	assert.Equal(t, "active", resp.Status)
	assert.NotEmpty(t, resp.SaleNo)
	assert.Len(t, resp.Lines, 2)

	// 库存已扣减
	assert.Equal(t, 7, ledger.get(1, 100))
	assert.Equal(t, 4, ledger.get(1, 200))

	// 销售单已落库
	require.Len(t, repo.sales, 1)
	assert.Equal(t, resp.SaleNo, repo.lastSaleNo)

	// 列表缓存已失效
	assert.Equal(t, []uint{1}, cache.storeInvalidated)
	assert.Equal(t, []uint{7}, cache.userInvalidated)
}

func TestCreateSale_InvalidParams(t *testing.T) {
	uc, _, repo, _ := newCreateSaleFixture()

	tests := []struct {
		name  string
		req   CreateSaleRequest
		want  error
	}{
		{
			"明细为空",
			CreateSaleRequest{UserID: 1, StoreID: 1},
			sale.ErrInvalidSaleLines,
		},
		{
			"数量为0",
			CreateSaleRequest{UserID: 1, StoreID: 1,
				Items: []CreateSaleItem{{ProductID: 100, Quantity: 0, UnitPrice: 100}}},
			sale.ErrInvalidQuantity,
		},
		{
			"单价为负",
			CreateSaleRequest{UserID: 1, StoreID: 1,
				Items: []CreateSaleItem{{ProductID: 100, Quantity: 1, UnitPrice: -1}}},
			sale.ErrInvalidUnitPrice,
		},
		{
			"同一商品重复行",
			CreateSaleRequest{UserID: 1, StoreID: 1,
				Items: []CreateSaleItem{
					{ProductID: 100, Quantity: 1, UnitPrice: 1000},
					{ProductID: 200, Quantity: 1, UnitPrice: 2000},
					{ProductID: 100, Quantity: 2, UnitPrice: 1000},
				}},
			sale.ErrDuplicateSaleLine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Execute(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Empty(t, repo.sales, "参数校验失败不应该有任何写入")
}

func TestCreateSale_UnknownStoreOrProduct(t *testing.T) {
	uc, ledger, repo, _ := newCreateSaleFixture()
	ledger.set(1, 100, 10)

	_, err := uc.Execute(context.Background(), CreateSaleRequest{
		UserID: 1, StoreID: 99,
		Items: []CreateSaleItem{{ProductID: 100, Quantity: 1, UnitPrice: 100}},
	})
	assert.ErrorIs(t, err, apperrors.ErrStoreNotFound)

	_, err = uc.Execute(context.Background(), CreateSaleRequest{
		UserID: 1, StoreID: 1,
		Items: []CreateSaleItem{{ProductID: 999, Quantity: 1, UnitPrice: 100}},
	})
	assert.ErrorIs(t, err, apperrors.ErrProductNotFound)

	assert.Equal(t, 10, ledger.get(1, 100), "主数据校验失败不应该动库存")
	assert.Empty(t, repo.sales)
}

// TestCreateSale_InsufficientStock 部分商品缺货:整单失败且已扣库存被补偿恢复
func TestCreateSale_InsufficientStock(t *testing.T) {
	uc, ledger, repo, cache := newCreateSaleFixture()
	ledger.set(1, 100, 10) // 充足
	ledger.set(1, 200, 2)  // 不足

	_, err := uc.Execute(context.Background(), CreateSaleRequest{
		UserID: 1, StoreID: 1,
		Items: []CreateSaleItem{
			{ProductID: 100, Quantity: 3, UnitPrice: 1000},
			{ProductID: 200, Quantity: 5, UnitPrice: 2000},
		},
	})
	require.Error(t, err)

	// 库存不足原样透传(携带缺口信息)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeInsufficientStock, appErr.Code)
	assert.Contains(t, appErr.Message, "商品200")

	// 补偿验证:商品100已扣的3件被恢复
	assert.Equal(t, 10, ledger.get(1, 100))
	assert.Equal(t, 2, ledger.get(1, 200))

	// 销售单未落库,缓存未失效
	assert.Empty(t, repo.sales)
	assert.Empty(t, cache.storeInvalidated)
}

// TestCreateSale_PersistFailed 落库失败:全部已扣库存被补偿恢复
func TestCreateSale_PersistFailed(t *testing.T) {
	uc, ledger, repo, _ := newCreateSaleFixture()
	ledger.set(1, 100, 10)
	ledger.set(1, 200, 5)
	repo.createErr = errors.New("销售库不可用")

	_, err := uc.Execute(context.Background(), CreateSaleRequest{
		UserID: 1, StoreID: 1,
		Items: []CreateSaleItem{
			{ProductID: 100, Quantity: 2, UnitPrice: 1000},
			{ProductID: 200, Quantity: 1, UnitPrice: 2000},
		},
	})
	require.Error(t, err)

	// 两件商品的扣减都被逆序补偿
	assert.Equal(t, 10, ledger.get(1, 100))
	assert.Equal(t, 5, ledger.get(1, 200))
	assert.Empty(t, repo.sales)
}

// TestCreateSale_CompensationIncomplete 补偿重试用尽仍失败
// 此时库存已不一致,错误必须能被识别为补偿未完成(对外表现为内部错误)
func TestCreateSale_CompensationIncomplete(t *testing.T) {
	uc, ledger, repo, _ := newCreateSaleFixture()
	ledger.set(1, 100, 10)
	repo.createErr = errors.New("销售库不可用")
	ledger.failRestore = true // 台账恢复也持续失败

	_, err := uc.Execute(context.Background(), CreateSaleRequest{
		UserID: 1, StoreID: 1,
		Items: []CreateSaleItem{{ProductID: 100, Quantity: 2, UnitPrice: 1000}},
	})
	require.Error(t, err)

	assert.True(t, errors.Is(err, saga.ErrCompensationIncomplete),
		"错误链里应该能识别出补偿未完成")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeInternal, appErr.Code, "补偿未完成对外应该是内部错误")

	// 库存停留在已扣状态(这正是需要人工对账的场景)
	assert.Equal(t, 8, ledger.get(1, 100))
}

// TestCreateSale_CompensationIdempotent 补偿引用号固定,重放不会二次加库存
func TestCreateSale_CompensationIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	ledger.set(1, 100, 10)

	// 直接验证fake还原的台账语义与真实台账一致
	err := ledger.Restore(context.Background(), 1, 100, 3, stock.ChangeTypeCompensate, "sale-SAL1-p100-comp")
	require.NoError(t, err)
	assert.Equal(t, 13, ledger.get(1, 100))

	err = ledger.Restore(context.Background(), 1, 100, 3, stock.ChangeTypeCompensate, "sale-SAL1-p100-comp")
	require.NoError(t, err)
	assert.Equal(t, 13, ledger.get(1, 100), "同一引用号重放不应该二次加库存")
}
