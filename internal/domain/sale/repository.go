package sale

import (
	"context"
)

// Repository 销售单仓储接口(依赖倒置原则)
// 教学要点:
// 1. 由domain层定义接口,infrastructure层实现
// 2. 支持事务操作(通过context传递事务)
type Repository interface {
	// Create 创建销售单(含明细,同一事务)
	Create(ctx context.Context, s *Sale) error

	// FindByID 根据ID查找销售单(含明细)
	FindByID(ctx context.Context, id uint) (*Sale, error)

	// FindByIDForUpdate 加行锁查找销售单(含明细)
	// 必须在TxManager事务内调用,用于退款时锁定销售单防止并发超退
	FindByIDForUpdate(ctx context.Context, id uint) (*Sale, error)

	// UpdateStatus 更新销售单状态(状态是唯一可变字段)
	UpdateStatus(ctx context.Context, id uint, status Status) error

	// ListByStoreID 查询门店的销售单列表(分页)
	ListByStoreID(ctx context.Context, storeID uint, page, pageSize int) ([]*Sale, int64, error)

	// ListByUserID 查询用户的销售历史(分页)
	ListByUserID(ctx context.Context, userID uint, page, pageSize int) ([]*Sale, int64, error)
}
