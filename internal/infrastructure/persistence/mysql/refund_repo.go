package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/xiebiao/retailcore/internal/domain/refund"
	apperrors "github.com/xiebiao/retailcore/pkg/errors"
)

// refundRepository 退款单仓储实现(MySQL)
// 退款单创建后不可变,这里只有写入和查询,没有Update
type refundRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建退款单仓储
func NewRefundRepository(db *SalesDB) refund.Repository {
	return &refundRepository{db: db.DB}
}

// Create 创建退款单(含明细)
// 必须在TxManager事务内调用:与销售单行锁+金额复核同一事务提交
func (r *refundRepository) Create(ctx context.Context, rf *refund.Refund) error {
	model := toRefundModel(rf)

	db := r.getDB(ctx)
	if err := db.Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建退款单失败")
	}

	rf.ID = model.ID
	for i := range rf.Lines {
		rf.Lines[i].ID = model.Lines[i].ID
		rf.Lines[i].RefundID = model.ID
	}

	return nil
}

// FindByID 根据ID查找退款单(含明细)
func (r *refundRepository) FindByID(ctx context.Context, id uint) (*refund.Refund, error) {
	var model RefundModel
	db := r.getDB(ctx)

	err := db.Preload("Lines").First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, refund.ErrRefundNotFound
		}
		return nil, apperrors.Wrap(err, "查询退款单失败")
	}

	return toRefundEntity(&model), nil
}

// ListBySaleID 查询某销售单的全部退款记录
func (r *refundRepository) ListBySaleID(ctx context.Context, saleID uint) ([]*refund.Refund, error) {
	var models []RefundModel
	db := r.getDB(ctx)

	err := db.Preload("Lines").
		Where("sale_id = ?", saleID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询退款记录失败")
	}

	refunds := make([]*refund.Refund, len(models))
	for i, model := range models {
		refunds[i] = toRefundEntity(&model)
	}
	return refunds, nil
}

// SumBySaleID 某销售单的累计退款金额(分)
// 教学要点:COALESCE处理无退款记录时SUM为NULL的情况
func (r *refundRepository) SumBySaleID(ctx context.Context, saleID uint) (int64, error) {
	var sum int64
	db := r.getDB(ctx)

	err := db.Model(&RefundModel{}).
		Where("sale_id = ?", saleID).
		Select("COALESCE(SUM(total), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, apperrors.Wrap(err, "统计退款金额失败")
	}
	return sum, nil
}

// ListByUserID 查询用户的退款历史
func (r *refundRepository) ListByUserID(ctx context.Context, userID uint, page, pageSize int) ([]*refund.Refund, int64, error) {
	var models []RefundModel
	var total int64

	db := r.getDB(ctx)
	query := db.Model(&RefundModel{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询退款总数失败")
	}

	offset := (page - 1) * pageSize
	err := query.Preload("Lines").
		Order("created_at DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, 0, apperrors.Wrap(err, "查询退款列表失败")
	}

	refunds := make([]*refund.Refund, len(models))
	for i, model := range models {
		refunds[i] = toRefundEntity(&model)
	}
	return refunds, total, nil
}

// =========================================
// 辅助函数:模型转换
// =========================================

// toRefundModel 领域实体 → GORM模型
func toRefundModel(rf *refund.Refund) *RefundModel {
	lines := make([]RefundLineModel, len(rf.Lines))
	for i, l := range rf.Lines {
		lines[i] = RefundLineModel{
			ID:        l.ID,
			RefundID:  l.RefundID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}

	return &RefundModel{
		ID:        rf.ID,
		RefundNo:  rf.RefundNo,
		SaleID:    rf.SaleID,
		StoreID:   rf.StoreID,
		UserID:    rf.UserID,
		Total:     rf.Total,
		Reason:    rf.Reason,
		Lines:     lines,
		CreatedAt: rf.CreatedAt,
	}
}

// toRefundEntity GORM模型 → 领域实体
func toRefundEntity(model *RefundModel) *refund.Refund {
	lines := make([]refund.Line, len(model.Lines))
	for i, l := range model.Lines {
		lines[i] = refund.Line{
			ID:        l.ID,
			RefundID:  l.RefundID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}

	return &refund.Refund{
		ID:        model.ID,
		RefundNo:  model.RefundNo,
		SaleID:    model.SaleID,
		StoreID:   model.StoreID,
		UserID:    model.UserID,
		Total:     model.Total,
		Reason:    model.Reason,
		Lines:     lines,
		CreatedAt: model.CreatedAt,
	}
}

// getDB 从context获取事务DB,如果没有则使用默认DB
func (r *refundRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value("tx").(*gorm.DB); ok {
		return tx
	}
	return r.db
}
