package stock

import (
	"context"
)

// BulkOp 批量操作类型
type BulkOp string

const (
	BulkOpDecrement BulkOp = "decrement"
	BulkOpRestore   BulkOp = "restore"
)

// BulkItem 批量变动请求中的一项
type BulkItem struct {
	Op          BulkOp `json:"op"`
	StoreID     uint   `json:"storeId"`
	ProductID   uint   `json:"productId"`
	Quantity    int    `json:"quantity"`
	ReferenceID string `json:"referenceId"`
}

// BulkResult 批量变动中单项的结果
// 教学要点:批量操作逐项独立执行,单项失败不中止整批,结果逐项返回
type BulkResult struct {
	StoreID   uint   `json:"storeId"`
	ProductID uint   `json:"productId"`
	Success   bool   `json:"success"`
	NewQty    int    `json:"newQty,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Repository 库存台账仓储接口(依赖倒置原则)
// 教学要点:
// 1. 由domain层定义接口,infrastructure层实现
// 2. Decrement必须是单条原子条件更新(UPDATE ... WHERE quantity >= ?),
//    两个并发销售抢最后一件时只有一个能成功
// 3. Restore以ReferenceID做幂等保护,同一键重放不会二次加库存
type Repository interface {
	// CheckAvailability 检查库存是否满足请求数量(只读,无副作用)
	CheckAvailability(ctx context.Context, storeID, productID uint, qty int) (*Availability, error)

	// Decrement 原子条件扣减,返回扣减后的数量
	// 库存不足时返回InsufficientStock错误(携带剩余量和请求量)
	Decrement(ctx context.Context, storeID, productID uint, qty int, changeType ChangeType, referenceID string) (int, error)

	// Restore 原子恢复(加库存),对referenceID幂等
	Restore(ctx context.Context, storeID, productID uint, qty int, changeType ChangeType, referenceID string) error

	// Transfer 门店间调拨:扣源店+加目标店,同一本地事务,不允许只动一边
	Transfer(ctx context.Context, fromStoreID, toStoreID, productID uint, qty int, referenceID string) error

	// BulkUpdate 批量变动,逐项返回结果,不因单项失败中止
	BulkUpdate(ctx context.Context, items []BulkItem) ([]BulkResult, error)

	// Find 查询单条库存记录
	Find(ctx context.Context, storeID, productID uint) (*Stock, error)
}
