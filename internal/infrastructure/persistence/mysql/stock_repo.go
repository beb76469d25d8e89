package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/xiebiao/retailcore/internal/domain/stock"
	apperrors "github.com/xiebiao/retailcore/pkg/errors"
)

// errReferenceReplayed 恢复操作的引用号已存在(幂等重放),内部哨兵错误
// 用于让事务回滚但对调用方表现为成功
var errReferenceReplayed = errors.New("stock: reference already applied")

// stockRepository 库存台账仓储实现(MySQL)
// 教学要点:
// 1. 扣减必须是单条原子条件更新(UPDATE ... WHERE quantity >= ?),
//    靠数据库保证"检查+扣减"的原子性,绝不在应用层read-then-write
// 2. 每次变动与流水写入在同一本地事务;流水的reference_id唯一索引
//    给恢复类操作提供幂等保护
// 3. 库存库是独立连接池,事务在仓储内部管理,不读context里的销售库事务
type stockRepository struct {
	db *gorm.DB
}

// NewStockRepository 创建库存仓储
func NewStockRepository(db *StockDB) stock.Repository {
	return &stockRepository{db: db.DB}
}

// CheckAvailability 检查库存可用性(只读,无副作用)
// 库存记录不存在按数量0处理,不报错
func (r *stockRepository) CheckAvailability(ctx context.Context, storeID, productID uint, qty int) (*stock.Availability, error) {
	if qty <= 0 {
		return nil, stock.ErrInvalidQuantity
	}

	var model StockModel
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND product_id = ?", storeID, productID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &stock.Availability{Available: false, CurrentQty: 0, Shortage: qty}, nil
		}
		return nil, apperrors.Wrap(err, "查询库存失败")
	}

	entity := toStockEntity(&model)
	return entity.CheckAgainst(qty), nil
}

// Decrement 原子条件扣减
// 教学要点:
// 1. UPDATE ... SET quantity = quantity - ? WHERE ... AND quantity >= ?
//    两个并发请求抢最后一件时,只有一个UPDATE能命中行,另一个RowsAffected=0
// 2. RowsAffected=0时再查一次区分"库存不足"和"记录不存在",
//    两种情况都返回库存不足(携带剩余量),调用方无需关心行是否存在
func (r *stockRepository) Decrement(ctx context.Context, storeID, productID uint, qty int, changeType stock.ChangeType, referenceID string) (int, error) {
	if qty <= 0 {
		return 0, stock.ErrInvalidQuantity
	}

	var newQty int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&StockModel{}).
			Where("store_id = ? AND product_id = ? AND quantity >= ?", storeID, productID, qty).
			UpdateColumn("quantity", gorm.Expr("quantity - ?", qty))
		if result.Error != nil {
			return apperrors.Wrap(result.Error, "扣减库存失败")
		}

		if result.RowsAffected == 0 {
			// 条件更新没命中:库存不足或记录不存在
			var m StockModel
			err := tx.Where("store_id = ? AND product_id = ?", storeID, productID).First(&m).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return stock.NewInsufficientError(productID, 0, qty)
				}
				return apperrors.Wrap(err, "查询库存失败")
			}
			return stock.NewInsufficientError(productID, m.Quantity, qty)
		}

		// 读取扣减后数量并写流水
		var m StockModel
		if err := tx.Where("store_id = ? AND product_id = ?", storeID, productID).First(&m).Error; err != nil {
			return apperrors.Wrap(err, "查询库存失败")
		}
		newQty = m.Quantity

		return r.appendLog(tx, storeID, productID, changeType, -qty, newQty+qty, newQty, referenceID)
	})
	if err != nil {
		return 0, err
	}
	return newQty, nil
}

// Restore 原子恢复(加库存),对referenceID幂等
// 教学要点:幂等实现
// 1. 先加库存(行不存在则创建),再插流水
// 2. 流水reference_id唯一索引冲突说明这笔恢复已应用过:
//    返回哨兵错误让整个事务回滚(撤销本次加库存),对外表现为成功
func (r *stockRepository) Restore(ctx context.Context, storeID, productID uint, qty int, changeType stock.ChangeType, referenceID string) error {
	if qty <= 0 {
		return stock.ErrInvalidQuantity
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, after, err := r.increment(tx, storeID, productID, qty)
		if err != nil {
			return err
		}

		if err := r.appendLog(tx, storeID, productID, changeType, qty, before, after, referenceID); err != nil {
			if isDuplicateError(err) {
				return errReferenceReplayed
			}
			return err
		}
		return nil
	})

	if errors.Is(err, errReferenceReplayed) {
		// 重放:首次执行已生效,不再次加库存
		return nil
	}
	return err
}

// Transfer 门店间调拨
// 扣源店+加目标店在同一本地事务,不允许只动一边;
// 调拨单号撞流水唯一索引视为重放,回滚后按成功返回
func (r *stockRepository) Transfer(ctx context.Context, fromStoreID, toStoreID, productID uint, qty int, referenceID string) error {
	if qty <= 0 {
		return stock.ErrInvalidQuantity
	}
	if fromStoreID == toStoreID {
		return stock.ErrSameStoreTransfer
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 条件扣减源门店
		result := tx.Model(&StockModel{}).
			Where("store_id = ? AND product_id = ? AND quantity >= ?", fromStoreID, productID, qty).
			UpdateColumn("quantity", gorm.Expr("quantity - ?", qty))
		if result.Error != nil {
			return apperrors.Wrap(result.Error, "调拨扣减失败")
		}
		if result.RowsAffected == 0 {
			var m StockModel
			err := tx.Where("store_id = ? AND product_id = ?", fromStoreID, productID).First(&m).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return stock.NewInsufficientError(productID, 0, qty)
				}
				return apperrors.Wrap(err, "查询库存失败")
			}
			return stock.NewInsufficientError(productID, m.Quantity, qty)
		}

		var src StockModel
		if err := tx.Where("store_id = ? AND product_id = ?", fromStoreID, productID).First(&src).Error; err != nil {
			return apperrors.Wrap(err, "查询库存失败")
		}
		if err := r.appendLog(tx, fromStoreID, productID, stock.ChangeTypeTransferOut,
			-qty, src.Quantity+qty, src.Quantity, referenceID+"-out"); err != nil {
			if isDuplicateError(err) {
				// 同一调拨单号重放:首次执行已生效,回滚本次扣减
				return errReferenceReplayed
			}
			return err
		}

		// 2. 目标门店加库存(行不存在则创建)
		before, after, err := r.increment(tx, toStoreID, productID, qty)
		if err != nil {
			return err
		}
		if err := r.appendLog(tx, toStoreID, productID, stock.ChangeTypeTransferIn,
			qty, before, after, referenceID+"-in"); err != nil {
			if isDuplicateError(err) {
				return errReferenceReplayed
			}
			return err
		}
		return nil
	})

	if errors.Is(err, errReferenceReplayed) {
		return nil
	}
	return err
}

// BulkUpdate 批量变动
// 教学要点:逐项独立执行,单项失败记入结果不中止整批
func (r *stockRepository) BulkUpdate(ctx context.Context, items []stock.BulkItem) ([]stock.BulkResult, error) {
	results := make([]stock.BulkResult, 0, len(items))

	for i, item := range items {
		res := stock.BulkResult{StoreID: item.StoreID, ProductID: item.ProductID}
		refID := item.ReferenceID
		if refID == "" {
			// 自动生成的引用号必须跨请求唯一,否则第二批同形状的恢复
			// 会撞流水唯一索引被当成重放吞掉
			refID = fmt.Sprintf("bulk-%d-%d-%d-%d", item.StoreID, item.ProductID, i, time.Now().UnixNano())
		}

		switch item.Op {
		case stock.BulkOpDecrement:
			newQty, err := r.Decrement(ctx, item.StoreID, item.ProductID, item.Quantity, stock.ChangeTypeAdjust, refID)
			if err != nil {
				res.Message = apperrors.GetAppError(err).Message
			} else {
				res.Success = true
				res.NewQty = newQty
			}
		case stock.BulkOpRestore:
			err := r.Restore(ctx, item.StoreID, item.ProductID, item.Quantity, stock.ChangeTypeAdjust, refID)
			if err != nil {
				res.Message = apperrors.GetAppError(err).Message
			} else {
				res.Success = true
				if m, ferr := r.Find(ctx, item.StoreID, item.ProductID); ferr == nil {
					res.NewQty = m.Quantity
				}
			}
		default:
			res.Message = "不支持的操作类型"
		}

		results = append(results, res)
	}

	return results, nil
}

// Find 查询单条库存记录
func (r *stockRepository) Find(ctx context.Context, storeID, productID uint) (*stock.Stock, error) {
	var model StockModel
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND product_id = ?", storeID, productID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, stock.ErrStockNotFound
		}
		return nil, apperrors.Wrap(err, "查询库存失败")
	}
	return toStockEntity(&model), nil
}

// increment 原子加库存,行不存在则创建
// 返回变动前后数量,必须在事务内调用
func (r *stockRepository) increment(tx *gorm.DB, storeID, productID uint, qty int) (before, after int, err error) {
	result := tx.Model(&StockModel{}).
		Where("store_id = ? AND product_id = ?", storeID, productID).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", qty))
	if result.Error != nil {
		return 0, 0, apperrors.Wrap(result.Error, "恢复库存失败")
	}

	if result.RowsAffected == 0 {
		// 目标行不存在,创建新行
		m := StockModel{StoreID: storeID, ProductID: productID, Quantity: qty}
		if err := tx.Create(&m).Error; err != nil {
			return 0, 0, apperrors.Wrap(err, "创建库存记录失败")
		}
		return 0, qty, nil
	}

	var m StockModel
	if err := tx.Where("store_id = ? AND product_id = ?", storeID, productID).First(&m).Error; err != nil {
		return 0, 0, apperrors.Wrap(err, "查询库存失败")
	}
	return m.Quantity - qty, m.Quantity, nil
}

// appendLog 写库存流水(与变动同一事务)
func (r *stockRepository) appendLog(tx *gorm.DB, storeID, productID uint, changeType stock.ChangeType, qty, before, after int, referenceID string) error {
	logRow := StockLogModel{
		StoreID:     storeID,
		ProductID:   productID,
		ChangeType:  string(changeType),
		Quantity:    qty,
		BeforeQty:   before,
		AfterQty:    after,
		ReferenceID: referenceID,
	}
	if err := tx.Create(&logRow).Error; err != nil {
		if isDuplicateError(err) {
			return err // 交给调用方判断是否为幂等重放
		}
		return apperrors.Wrap(err, "写入库存流水失败")
	}
	return nil
}

// toStockEntity GORM模型 → 领域实体
func toStockEntity(m *StockModel) *stock.Stock {
	return &stock.Stock{
		ID:        m.ID,
		StoreID:   m.StoreID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
