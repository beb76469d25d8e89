package sale

import (
	"context"

	"github.com/xiebiao/retailcore/internal/domain/refund"
	"github.com/xiebiao/retailcore/internal/domain/sale"
)

// TxManager 销售库事务能力(mysql.TxManager满足)
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// DetailInvalidator 状态变更后需要失效的详情缓存
type DetailInvalidator interface {
	InvalidateSale(ctx context.Context, saleID uint)
}

// RecomputeStatusUseCase 重算销售单状态用例(内部接口)
// 教学要点:状态永远是退款历史的投影,不是可以外部指定的字段
// 1. 不接受客户端传入的目标状态:锁内重查累计退款额,纯函数重算
// 2. 只向前推进(active→partially_refunded→refunded),
//    已是目标状态时幂等返回,不产生写入
// 3. 用途:对账作业发现状态漂移时触发修复
type RecomputeStatusUseCase struct {
	saleRepo   sale.Repository
	refundRepo refund.Repository
	txManager  TxManager
	cache      DetailInvalidator
}

// NewRecomputeStatusUseCase 创建状态重算用例
func NewRecomputeStatusUseCase(
	saleRepo sale.Repository,
	refundRepo refund.Repository,
	txManager TxManager,
	cache DetailInvalidator,
) *RecomputeStatusUseCase {
	return &RecomputeStatusUseCase{
		saleRepo:   saleRepo,
		refundRepo: refundRepo,
		txManager:  txManager,
		cache:      cache,
	}
}

// RecomputeStatusResponse 状态重算响应
type RecomputeStatusResponse struct {
	SaleID  uint   `json:"sale_id"`
	Status  string `json:"status"`
	Changed bool   `json:"changed"`
}

// Execute 执行状态重算
func (uc *RecomputeStatusUseCase) Execute(ctx context.Context, saleID uint) (*RecomputeStatusResponse, error) {
	var (
		status  sale.Status
		changed bool
	)
	err := uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		s, err := uc.saleRepo.FindByIDForUpdate(txCtx, saleID)
		if err != nil {
			return err
		}
		refunded, err := uc.refundRepo.SumBySaleID(txCtx, saleID)
		if err != nil {
			return err
		}

		status = sale.StatusOf(s.Total, refunded)
		if status == s.Status {
			return nil // 已一致,幂等返回
		}

		if err := s.ApplyStatus(status); err != nil {
			return err
		}
		changed = true
		return uc.saleRepo.UpdateStatus(txCtx, saleID, status)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		uc.cache.InvalidateSale(ctx, saleID)
	}
	return &RecomputeStatusResponse{SaleID: saleID, Status: status.String(), Changed: changed}, nil
}
