package refund

import (
	"context"
)

// Repository 退款单仓储接口(依赖倒置原则)
type Repository interface {
	// Create 创建退款单(含明细,同一事务)
	Create(ctx context.Context, r *Refund) error

	// FindByID 根据ID查找退款单(含明细)
	FindByID(ctx context.Context, id uint) (*Refund, error)

	// ListBySaleID 查询某销售单的全部退款记录
	ListBySaleID(ctx context.Context, saleID uint) ([]*Refund, error)

	// SumBySaleID 某销售单的累计退款金额(分)
	// 教学要点:退款资格校验和状态重算都以这条SUM为准,而不是信任内存里的状态
	SumBySaleID(ctx context.Context, saleID uint) (int64, error)

	// ListByUserID 查询用户的退款历史(分页)
	ListByUserID(ctx context.Context, userID uint, page, pageSize int) ([]*Refund, int64, error)
}
