package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/retailcore/internal/domain/sale"
	apperrors "github.com/xiebiao/retailcore/pkg/errors"
)

// saleRepository 销售单仓储实现(MySQL)
// 教学要点:
// 1. Sale和SaleLine是聚合关系,必须一起保存
// 2. 查询时使用Preload预加载明细,避免N+1问题
// 3. 事务通过context传递(TxManager注入)
type saleRepository struct {
	db *gorm.DB
}

// NewSaleRepository 创建销售单仓储
func NewSaleRepository(db *SalesDB) sale.Repository {
	return &saleRepository{db: db.DB}
}

// Create 创建销售单(含明细)
// GORM通过foreignKey自动保存关联的Lines,单次Create本身是一个事务
func (r *saleRepository) Create(ctx context.Context, s *sale.Sale) error {
	model := toSaleModel(s)

	db := r.getDB(ctx)
	if err := db.Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建销售单失败")
	}

	// 回填自增ID
	s.ID = model.ID
	for i := range s.Lines {
		s.Lines[i].ID = model.Lines[i].ID
		s.Lines[i].SaleID = model.ID
	}

	return nil
}

// FindByID 根据ID查找销售单(含明细)
func (r *saleRepository) FindByID(ctx context.Context, id uint) (*sale.Sale, error) {
	var model SaleModel
	db := r.getDB(ctx)

	err := db.Preload("Lines").First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sale.ErrSaleNotFound
		}
		return nil, apperrors.Wrap(err, "查询销售单失败")
	}

	return toSaleEntity(&model), nil
}

// FindByIDForUpdate 加行锁查找销售单(含明细)
// 教学要点:
// 1. SELECT ... FOR UPDATE锁住销售单行,并发退款在这里排队
// 2. 必须在TxManager事务内调用,否则锁随语句立即释放,起不到防超退作用
func (r *saleRepository) FindByIDForUpdate(ctx context.Context, id uint) (*sale.Sale, error) {
	var model SaleModel
	db := r.getDB(ctx)

	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Lines").
		First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sale.ErrSaleNotFound
		}
		return nil, apperrors.Wrap(err, "查询销售单失败")
	}

	return toSaleEntity(&model), nil
}

// UpdateStatus 更新销售单状态
// 状态是唯一可变字段,明细和金额创建后不动
func (r *saleRepository) UpdateStatus(ctx context.Context, id uint, status sale.Status) error {
	db := r.getDB(ctx)

	result := db.Model(&SaleModel{}).Where("id = ?", id).
		UpdateColumn("status", int(status))
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新销售单状态失败")
	}
	if result.RowsAffected == 0 {
		return sale.ErrSaleNotFound
	}

	return nil
}

// ListByStoreID 查询门店的销售单列表
func (r *saleRepository) ListByStoreID(ctx context.Context, storeID uint, page, pageSize int) ([]*sale.Sale, int64, error) {
	return r.list(ctx, "store_id = ?", storeID, page, pageSize)
}

// ListByUserID 查询用户的销售历史
func (r *saleRepository) ListByUserID(ctx context.Context, userID uint, page, pageSize int) ([]*sale.Sale, int64, error) {
	return r.list(ctx, "user_id = ?", userID, page, pageSize)
}

func (r *saleRepository) list(ctx context.Context, cond string, arg uint, page, pageSize int) ([]*sale.Sale, int64, error) {
	var models []SaleModel
	var total int64

	db := r.getDB(ctx)
	query := db.Model(&SaleModel{}).Where(cond, arg)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询销售单总数失败")
	}

	offset := (page - 1) * pageSize
	err := query.Preload("Lines").
		Order("sale_date DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, 0, apperrors.Wrap(err, "查询销售单列表失败")
	}

	sales := make([]*sale.Sale, len(models))
	for i, model := range models {
		sales[i] = toSaleEntity(&model)
	}

	return sales, total, nil
}

// =========================================
// 辅助函数:模型转换
// =========================================

// toSaleModel 领域实体 → GORM模型
func toSaleModel(s *sale.Sale) *SaleModel {
	lines := make([]SaleLineModel, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = SaleLineModel{
			ID:        l.ID,
			SaleID:    l.SaleID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}

	return &SaleModel{
		ID:        s.ID,
		SaleNo:    s.SaleNo,
		StoreID:   s.StoreID,
		UserID:    s.UserID,
		Total:     s.Total,
		Status:    int(s.Status),
		Lines:     lines,
		SaleDate:  s.SaleDate,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// toSaleEntity GORM模型 → 领域实体
func toSaleEntity(model *SaleModel) *sale.Sale {
	lines := make([]sale.Line, len(model.Lines))
	for i, l := range model.Lines {
		lines[i] = sale.Line{
			ID:        l.ID,
			SaleID:    l.SaleID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}

	return &sale.Sale{
		ID:        model.ID,
		SaleNo:    model.SaleNo,
		StoreID:   model.StoreID,
		UserID:    model.UserID,
		Total:     model.Total,
		Status:    sale.Status(model.Status),
		Lines:     lines,
		SaleDate:  model.SaleDate,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// getDB 从context获取事务DB,如果没有则使用默认DB
func (r *saleRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value("tx").(*gorm.DB); ok {
		return tx
	}
	return r.db
}
