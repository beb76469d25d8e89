package mysql

import (
	"context"

	"gorm.io/gorm"
)

// TxManager 销售库事务管理器
// 教学要点:
// 1. 封装GORM的Transaction方法,通过context传递事务DB(避免全局变量)
// 2. 只管销售库:库存库是独立池子,库存仓储在内部管理自己的事务,
//    两个库之间没有(也不允许有)共享事务
// 3. 支持嵌套事务(GORM自动使用Savepoint)
type TxManager struct {
	db *gorm.DB
}

// NewTxManager 创建事务管理器
func NewTxManager(db *SalesDB) *TxManager {
	return &TxManager{db: db.DB}
}

// Transaction 执行事务
// 教学要点:
// 1. fn函数内的所有销售库Repository操作都会在同一事务中执行
// 2. fn返回error时自动ROLLBACK,返回nil时自动COMMIT
//
// 使用示例(退款防并发超退):
//
//	err := txManager.Transaction(ctx, func(ctx context.Context) error {
//	    // 1. 加行锁读取销售单
//	    s, err := saleRepo.FindByIDForUpdate(ctx, saleID)
//	    if err != nil {
//	        return err
//	    }
//	    // 2. 锁内重查累计退款额并校验上限
//	    refunded, err := refundRepo.SumBySaleID(ctx, saleID)
//	    if err != nil {
//	        return err
//	    }
//	    // 3. 创建退款单
//	    return refundRepo.Create(ctx, r) // nil则提交,非nil则回滚
//	})
func (m *TxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 将事务DB注入到Context中
		// Repository的getDB方法会从context提取事务DB
		txCtx := context.WithValue(ctx, "tx", tx)
		return fn(txCtx)
	})
}
