package sale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xiebiao/retailcore/internal/domain/catalog"
	"github.com/xiebiao/retailcore/internal/domain/sale"
	"github.com/xiebiao/retailcore/internal/domain/stock"
	apperrors "github.com/xiebiao/retailcore/pkg/errors"
	"github.com/xiebiao/retailcore/pkg/metrics"
	"github.com/xiebiao/retailcore/pkg/saga"
)

// Ledger 创建销售所需的台账能力(stockledger.Ledger满足)
type Ledger interface {
	Decrement(ctx context.Context, storeID, productID uint, qty int, changeType stock.ChangeType, referenceID string) (int, error)
	Restore(ctx context.Context, storeID, productID uint, qty int, changeType stock.ChangeType, referenceID string) error
}

// CacheInvalidator 销售成功后需要失效的缓存(redis.CacheStore满足)
// 库存快照的失效由台账层在每次成功变动后自动完成,这里只管列表类
type CacheInvalidator interface {
	InvalidateStoreSales(ctx context.Context, storeID uint)
	InvalidateUserSales(ctx context.Context, userID uint)
}

// CreateSaleUseCase 创建销售单用例
// 教学要点:这是整个交易核心最关键的用例
// 库存和销售单在两个独立的库里,没有跨库事务,
// 一致性靠Saga:逐件扣库存(各自带恢复补偿)→落库销售单,
// 任何一步失败则逆序执行补偿,把已扣的库存全部恢复
type CreateSaleUseCase struct {
	saleRepo    sale.Repository
	catalogRepo catalog.Repository
	ledger      Ledger
	cache       CacheInvalidator
	sagaTimeout time.Duration
}

// NewCreateSaleUseCase 创建销售用例
func NewCreateSaleUseCase(
	saleRepo sale.Repository,
	catalogRepo catalog.Repository,
	ledger Ledger,
	cache CacheInvalidator,
	sagaTimeout time.Duration,
) *CreateSaleUseCase {
	if sagaTimeout <= 0 {
		sagaTimeout = 30 * time.Second
	}
	return &CreateSaleUseCase{
		saleRepo:    saleRepo,
		catalogRepo: catalogRepo,
		ledger:      ledger,
		cache:       cache,
		sagaTimeout: sagaTimeout,
	}
}

// CreateSaleRequest 创建销售请求DTO
type CreateSaleRequest struct {
	UserID  uint             // 收银员/买家用户ID(从JWT中提取)
	StoreID uint             // 门店ID
	Items   []CreateSaleItem // 销售明细
}

// CreateSaleItem 销售明细项
// UnitPrice由POS端传入(门店允许改价),以分为单位
type CreateSaleItem struct {
	ProductID uint
	Quantity  int
	UnitPrice int64
}

// SaleLineView 明细行视图
type SaleLineView struct {
	ProductID uint  `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
	Subtotal  int64 `json:"subtotal"`
}

// CreateSaleResponse 创建销售响应DTO
type CreateSaleResponse struct {
	SaleID    uint           `json:"sale_id"`
	SaleNo    string         `json:"sale_no"`
	StoreID   uint           `json:"store_id"`
	Total     int64          `json:"total"`
	TotalYuan string         `json:"total_yuan"`
	Status    string         `json:"status"`
	Lines     []SaleLineView `json:"lines"`
	CreatedAt string         `json:"created_at"`
}

// Execute 执行创建销售用例
// 教学重点:跨库防超卖的完整流程
//
// 核心问题:库存和销售单不在一个库,如何保证"卖出即扣减、失败即归还"?
//
// 流程(Saga):
//  1. 校验门店/商品存在(只读,不动任何状态)
//  2. 每件商品一个Saga步骤:Action=原子条件扣减,Compensate=按引用号幂等恢复
//  3. 最后一个步骤:销售单+明细单库原子落库(无需补偿,它失败时前面全部回滚)
//  4. 任何一步失败:逆序执行补偿,已扣库存全部恢复,调用方拿到首个失败原因
//
// 保证:成功返回时库存已扣+销售单已落库;失败返回时库存恢复原值
// (补偿最终失败的场景由saga包记录并告警,升级为人工对账)
func (uc *CreateSaleUseCase) Execute(ctx context.Context, req CreateSaleRequest) (*CreateSaleResponse, error) {
	start := time.Now()

	// 1. 参数校验(fail fast,任何写入之前)
	if len(req.Items) == 0 {
		return nil, sale.ErrInvalidSaleLines
	}
	seen := make(map[uint]bool, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, sale.ErrInvalidQuantity
		}
		if item.UnitPrice < 0 {
			return nil, sale.ErrInvalidUnitPrice
		}
		// 扣减/补偿引用号按(单号,商品)生成,同一商品出现两行会撞引用号
		if seen[item.ProductID] {
			return nil, sale.ErrDuplicateSaleLine
		}
		seen[item.ProductID] = true
	}

	// 2. 门店/商品存在性校验(主数据只读)
	if _, err := uc.catalogRepo.FindStoreByID(ctx, req.StoreID); err != nil {
		return nil, err
	}
	for _, item := range req.Items {
		if _, err := uc.catalogRepo.FindProductByID(ctx, item.ProductID); err != nil {
			return nil, err
		}
	}

	// 3. 先生成单号:扣减/补偿的幂等引用号都挂在单号上
	saleNo := sale.GenerateSaleNo()
	lines := make([]sale.Line, len(req.Items))
	for i, item := range req.Items {
		lines[i] = sale.Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	newSale := sale.NewSale(saleNo, req.StoreID, req.UserID, lines)

	// 4. 组装Saga:逐件扣库存 + 落库销售单
	sg := saga.NewSaga(uc.sagaTimeout)
	for _, item := range req.Items {
		item := item // 闭包捕获
		decRef := fmt.Sprintf("sale-%s-p%d", saleNo, item.ProductID)
		compRef := decRef + "-comp"

		sg.AddStep(
			fmt.Sprintf("扣减库存(商品%d)", item.ProductID),
			func(ctx context.Context) error {
				_, err := uc.ledger.Decrement(ctx, req.StoreID, item.ProductID,
					item.Quantity, stock.ChangeTypeSale, decRef)
				return err
			},
			func(ctx context.Context) error {
				// 补偿引用号固定,saga重试补偿时幂等
				return uc.ledger.Restore(ctx, req.StoreID, item.ProductID,
					item.Quantity, stock.ChangeTypeCompensate, compRef)
			},
		)
	}
	sg.AddStep(
		"落库销售单",
		func(ctx context.Context) error {
			// 销售单+明细在销售库单事务写入
			return uc.saleRepo.Create(ctx, newSale)
		},
		nil, // 最后一步失败时只需回滚前面的扣减
	)

	// 5. 执行
	if err := sg.Execute(ctx); err != nil {
		return nil, uc.mapFailure(err)
	}

	// 6. 成功:失效门店销售列表和用户历史
	// (每个商品的库存快照已由台账在扣减成功时失效)
	uc.cache.InvalidateStoreSales(ctx, req.StoreID)
	uc.cache.InvalidateUserSales(ctx, req.UserID)

	if metrics.SalesCreatedTotal != nil {
		metrics.SalesCreatedTotal.Inc()
	}
	if metrics.SaleCreationDuration != nil {
		metrics.SaleCreationDuration.Observe(time.Since(start).Seconds())
	}

	return toCreateSaleResponse(newSale), nil
}

// mapFailure 把Saga失败翻译成对外错误
// 补偿未完成时库存一致性已无法保证,无论起因是什么都升级为内部错误;
// 补偿完成的前提下库存不足原样透传(带商品和缺口信息);其余一律内部错误
func (uc *CreateSaleUseCase) mapFailure(err error) error {
	if errors.Is(err, saga.ErrCompensationIncomplete) {
		if metrics.SalesFailedTotal != nil {
			metrics.SalesFailedTotal.WithLabelValues("internal").Inc()
		}
		return apperrors.Wrap(err, "创建销售单失败,库存回滚未完成")
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code == apperrors.ErrCodeInsufficientStock {
		if metrics.SalesFailedTotal != nil {
			metrics.SalesFailedTotal.WithLabelValues("insufficient_stock").Inc()
		}
		return appErr
	}

	if metrics.SalesFailedTotal != nil {
		metrics.SalesFailedTotal.WithLabelValues("internal").Inc()
	}
	return apperrors.Wrap(err, "创建销售单失败")
}

// toCreateSaleResponse 构建响应DTO
func toCreateSaleResponse(s *sale.Sale) *CreateSaleResponse {
	lines := make([]SaleLineView, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = SaleLineView{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal(),
		}
	}
	return &CreateSaleResponse{
		SaleID:    s.ID,
		SaleNo:    s.SaleNo,
		StoreID:   s.StoreID,
		Total:     s.Total,
		TotalYuan: formatPrice(s.Total),
		Status:    s.Status.String(),
		Lines:     lines,
		CreatedAt: s.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// formatPrice 格式化价格(分→元)
func formatPrice(priceFen int64) string {
	yuan := float64(priceFen) / 100.0
	return fmt.Sprintf("%.2f", yuan)
}
