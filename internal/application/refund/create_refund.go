package refund

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/xiebiao/retailcore/internal/domain/refund"
	"github.com/xiebiao/retailcore/internal/domain/sale"
	"github.com/xiebiao/retailcore/internal/domain/stock"
	"github.com/xiebiao/retailcore/internal/infrastructure/events"
	apperrors "github.com/xiebiao/retailcore/pkg/errors"
	"github.com/xiebiao/retailcore/pkg/metrics"
)

// Ledger 退款所需的台账能力(stockledger.Ledger满足)
type Ledger interface {
	Restore(ctx context.Context, storeID, productID uint, qty int, changeType stock.ChangeType, referenceID string) error
}

// TxManager 销售库事务能力(mysql.TxManager满足)
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CacheInvalidator 退款成功后需要失效的缓存(redis.CacheStore满足)
type CacheInvalidator interface {
	InvalidateSale(ctx context.Context, saleID uint)
	InvalidateStoreSales(ctx context.Context, storeID uint)
	InvalidateUserSales(ctx context.Context, userID uint)
}

// Policy 退款策略(从配置注入)
type Policy struct {
	Window          time.Duration // 退款时限
	AmountTolerance int64         // 金额容差(分)
}

// CreateRefundUseCase 创建退款用例
// 教学要点:
// 1. 资格校验(fail fast)→ 锁内复核+落库退款单 → best-effort恢复库存 → 重算状态
// 2. 防并发超退:事务内SELECT FOR UPDATE锁销售单行,锁内重查累计退款额再复核上限,
//    两个并发退款在锁上排队,后到的会看到前一笔已提交的金额
// 3. 库存恢复失败不回滚退款单(退款单的持久性优先于库存即时准确),
//    失败发布对账事件,由消费者按引用号幂等重放
type CreateRefundUseCase struct {
	saleRepo   sale.Repository
	refundRepo refund.Repository
	txManager  TxManager
	ledger     Ledger
	cache      CacheInvalidator
	publisher  events.Publisher
	policy     Policy
}

// NewCreateRefundUseCase 创建退款用例
func NewCreateRefundUseCase(
	saleRepo sale.Repository,
	refundRepo refund.Repository,
	txManager TxManager,
	ledger Ledger,
	cache CacheInvalidator,
	publisher events.Publisher,
	policy Policy,
) *CreateRefundUseCase {
	if policy.Window <= 0 {
		policy.Window = 30 * 24 * time.Hour
	}
	if policy.AmountTolerance <= 0 {
		policy.AmountTolerance = 1
	}
	return &CreateRefundUseCase{
		saleRepo:   saleRepo,
		refundRepo: refundRepo,
		txManager:  txManager,
		ledger:     ledger,
		cache:      cache,
		publisher:  publisher,
		policy:     policy,
	}
}

// CreateRefundRequest 创建退款请求DTO
type CreateRefundRequest struct {
	SaleID uint   // 销售单ID
	UserID uint   // 发起人(从JWT提取),只能退自己的单
	Reason string // 退款原因

	// Items 指定退哪些商品;为空表示全额退剩余部分
	Items []CreateRefundItem

	// ExpectedTotal 客户端预期的退款总额(分),0表示不校验
	// 与服务端按价格快照计算的结果相差超过容差时拒绝(AmountMismatch)
	ExpectedTotal int64
}

// CreateRefundItem 退款明细项
type CreateRefundItem struct {
	ProductID uint
	Quantity  int
}

// CreateRefundResponse 创建退款响应DTO
type CreateRefundResponse struct {
	RefundID   uint   `json:"refund_id"`
	RefundNo   string `json:"refund_no"`
	SaleID     uint   `json:"sale_id"`
	Total      int64  `json:"total"`
	TotalYuan  string `json:"total_yuan"`
	SaleStatus string `json:"sale_status"`
	CreatedAt  string `json:"created_at"`
}

// Execute 执行退款用例
//
// 流程:
//  1. 读销售单(SaleNotFound)+ 归属校验(只能退自己的单)
//  2. 资格校验:终态已退满(AlreadyRefunded)、超时限(RefundWindowExpired)
//  3. 计算退款明细与金额:缺省=全额退剩余;给定items逐项校验数量与归属,
//     单价一律取销售明细的价格快照,不信任客户端报价
//  4. 金额校验:与ExpectedTotal差超容差(AmountMismatch)、
//     累计超销售总额(RefundAmountExceeded)——都在任何写入前拒绝
//  5. 事务:锁销售单行→锁内重查累计退款并复核上限→写退款单→
//     重算状态(纯函数,仅向前)并落库
//  6. 提交后逐行best-effort恢复库存:失败记日志+发对账事件,不影响退款结果
//  7. 失效销售单/门店列表/用户历史缓存
func (uc *CreateRefundUseCase) Execute(ctx context.Context, req CreateRefundRequest) (*CreateRefundResponse, error) {
	// 1. 读销售单
	s, err := uc.saleRepo.FindByID(ctx, req.SaleID)
	if err != nil {
		uc.countFailure(err)
		return nil, err
	}
	if !s.IsOwnedBy(req.UserID) {
		return nil, apperrors.ErrForbidden
	}

	// 2. 资格预检(锁外,先把明显不合格的请求挡掉)
	if s.IsRefunded() {
		uc.countFailure(refund.ErrAlreadyRefunded)
		return nil, refund.ErrAlreadyRefunded
	}
	if time.Since(s.SaleDate) > uc.policy.Window {
		uc.countFailure(refund.ErrWindowExpired)
		return nil, refund.ErrWindowExpired
	}

	priorRefunds, err := uc.refundRepo.ListBySaleID(ctx, req.SaleID)
	if err != nil {
		return nil, err
	}
	priorTotal := sumRefunds(priorRefunds)
	if priorTotal >= s.Total {
		uc.countFailure(refund.ErrAlreadyRefunded)
		return nil, refund.ErrAlreadyRefunded
	}

	// 3. 计算退款明细(单价取销售时的价格快照)
	lines, err := uc.buildLines(s, priorRefunds, req.Items)
	if err != nil {
		uc.countFailure(err)
		return nil, err
	}

	newRefund := refund.NewRefund(refund.GenerateRefundNo(), s.ID, s.StoreID, req.UserID, req.Reason, lines)

	// 4. 金额校验(容差内允许舍入误差)
	if req.ExpectedTotal > 0 && absDiff(req.ExpectedTotal, newRefund.Total) > uc.policy.AmountTolerance {
		uc.countFailure(refund.ErrAmountMismatch)
		return nil, refund.ErrAmountMismatch
	}
	if priorTotal+newRefund.Total > s.Total+uc.policy.AmountTolerance {
		uc.countFailure(refund.ErrAmountExceeded)
		return nil, refund.ErrAmountExceeded
	}

	// 5. 落库:锁内复核+写退款单+重算状态,单事务提交
	var newStatus sale.Status
	err = uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		// 锁销售单行,并发退款在这里排队
		locked, err := uc.saleRepo.FindByIDForUpdate(txCtx, req.SaleID)
		if err != nil {
			return err
		}
		if locked.IsRefunded() {
			return refund.ErrAlreadyRefunded
		}

		// 锁内重查累计退款:并发对手已提交的金额此刻可见
		lockedPrior, err := uc.refundRepo.SumBySaleID(txCtx, req.SaleID)
		if err != nil {
			return err
		}
		if lockedPrior+newRefund.Total > locked.Total+uc.policy.AmountTolerance {
			return refund.ErrAmountExceeded
		}

		if err := uc.refundRepo.Create(txCtx, newRefund); err != nil {
			return err
		}

		// 重算状态:纯函数,只依赖总额和累计退款,绝不信任外部传入的状态
		newStatus = sale.StatusOf(locked.Total, lockedPrior+newRefund.Total)
		if err := locked.ApplyStatus(newStatus); err != nil {
			return err
		}
		return uc.saleRepo.UpdateStatus(txCtx, locked.ID, newStatus)
	})
	if err != nil {
		uc.countFailure(err)
		return nil, err
	}

	// 6. best-effort恢复库存(退款单已提交,恢复失败不回滚)
	uc.restoreStock(ctx, s, newRefund)

	// 7. 缓存失效
	uc.cache.InvalidateSale(ctx, s.ID)
	uc.cache.InvalidateStoreSales(ctx, s.StoreID)
	uc.cache.InvalidateUserSales(ctx, s.UserID)

	if metrics.RefundsCreatedTotal != nil {
		metrics.RefundsCreatedTotal.Inc()
	}

	return &CreateRefundResponse{
		RefundID:   newRefund.ID,
		RefundNo:   newRefund.RefundNo,
		SaleID:     newRefund.SaleID,
		Total:      newRefund.Total,
		TotalYuan:  fmt.Sprintf("%.2f", float64(newRefund.Total)/100.0),
		SaleStatus: newStatus.String(),
		CreatedAt:  newRefund.CreatedAt.Format("2006-01-02 15:04:05"),
	}, nil
}

// buildLines 计算退款明细
// items为空:全额退每条明细的剩余数量
// items给定:逐项校验商品在销售单内、数量不超过剩余可退数量
func (uc *CreateRefundUseCase) buildLines(s *sale.Sale, prior []*refund.Refund, items []CreateRefundItem) ([]refund.Line, error) {
	// 已退数量按商品累计
	refundedQty := make(map[uint]int)
	for _, r := range prior {
		for _, l := range r.Lines {
			refundedQty[l.ProductID] += l.Quantity
		}
	}

	if len(items) == 0 {
		// 全额退剩余
		var lines []refund.Line
		for _, sl := range s.Lines {
			remaining := sl.Quantity - refundedQty[sl.ProductID]
			if remaining <= 0 {
				continue
			}
			lines = append(lines, refund.Line{
				ProductID: sl.ProductID,
				Quantity:  remaining,
				UnitPrice: sl.UnitPrice,
			})
		}
		if len(lines) == 0 {
			return nil, refund.ErrAlreadyRefunded
		}
		return lines, nil
	}

	lines := make([]refund.Line, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, refund.ErrInvalidRefundLines
		}
		sl, ok := s.LineOf(item.ProductID)
		if !ok {
			return nil, refund.ErrLineNotInSale
		}
		if item.Quantity > sl.Quantity-refundedQty[item.ProductID] {
			return nil, refund.ErrLineQuantityExceeded
		}
		lines = append(lines, refund.Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: sl.UnitPrice, // 价格快照,不信任客户端报价
		})
	}
	return lines, nil
}

// restoreStock 逐行best-effort恢复库存
// 引用号refund-{id}-p{productId}:台账流水唯一索引保证重放幂等
// 失败不中断其他行,也不影响已提交的退款单——
// 记日志+计数+发对账事件,由对账消费者补齐
func (uc *CreateRefundUseCase) restoreStock(ctx context.Context, s *sale.Sale, r *refund.Refund) {
	for _, line := range r.Lines {
		refID := fmt.Sprintf("refund-%d-p%d", r.ID, line.ProductID)
		err := uc.ledger.Restore(ctx, s.StoreID, line.ProductID, line.Quantity,
			stock.ChangeTypeRefund, refID)
		if err == nil {
			continue
		}

		log.Printf("[refund] ⚠️ 库存恢复失败 refund=%d product=%d qty=%d: %v",
			r.ID, line.ProductID, line.Quantity, err)
		if metrics.StockRestoreFailedTotal != nil {
			metrics.StockRestoreFailedTotal.Inc()
		}

		event := events.RestoreFailedEvent{
			RefundID:    r.ID,
			SaleID:      s.ID,
			StoreID:     s.StoreID,
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			ReferenceID: refID,
			Reason:      err.Error(),
			OccurredAt:  time.Now(),
		}
		if pubErr := uc.publisher.Publish(events.RoutingKeyStockRestoreFailed, event); pubErr != nil {
			// 事件也发不出去:只剩日志这一条线索,必须醒目
			log.Printf("[refund] ⚠️ 对账事件发布失败 refund=%d product=%d: %v",
				r.ID, line.ProductID, pubErr)
		}
	}
}

// countFailure 失败原因计数
func (uc *CreateRefundUseCase) countFailure(err error) {
	if metrics.RefundsFailedTotal == nil {
		return
	}
	reason := "internal"
	if apperrors.IsAppError(err) {
		switch apperrors.GetAppError(err).Code {
		case apperrors.ErrCodeRefundWindowExpired:
			reason = "window_expired"
		case apperrors.ErrCodeAlreadyRefunded:
			reason = "already_refunded"
		case apperrors.ErrCodeRefundAmountExceed:
			reason = "amount_exceeded"
		case apperrors.ErrCodeAmountMismatch:
			reason = "amount_mismatch"
		case apperrors.ErrCodeSaleNotFound:
			reason = "sale_not_found"
		case apperrors.ErrCodeInvalidParams:
			reason = "invalid_params"
		}
	}
	metrics.RefundsFailedTotal.WithLabelValues(reason).Inc()
}

// sumRefunds 累计退款金额
func sumRefunds(refunds []*refund.Refund) int64 {
	var total int64
	for _, r := range refunds {
		total += r.Total
	}
	return total
}

// absDiff 绝对差值
func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
