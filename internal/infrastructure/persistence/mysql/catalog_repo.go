package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/xiebiao/retailcore/internal/domain/catalog"
	apperrors "github.com/xiebiao/retailcore/pkg/errors"
)

// catalogRepository 商品/门店只读仓储实现(MySQL)
// 主数据由商品/门店服务维护,这里只做存在性校验用的读取
type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository 创建商品/门店仓储
func NewCatalogRepository(db *StockDB) catalog.Repository {
	return &catalogRepository{db: db.DB}
}

// FindProductByID 根据ID查找商品
func (r *catalogRepository) FindProductByID(ctx context.Context, id uint) (*catalog.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProductNotFound
		}
		return nil, apperrors.Wrap(err, "查询商品失败")
	}

	return &catalog.Product{
		ID:        model.ID,
		Name:      model.Name,
		Price:     model.Price,
		Status:    model.Status,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}

// FindStoreByID 根据ID查找门店
func (r *catalogRepository) FindStoreByID(ctx context.Context, id uint) (*catalog.Store, error) {
	var model StoreModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrStoreNotFound
		}
		return nil, apperrors.Wrap(err, "查询门店失败")
	}

	return &catalog.Store{
		ID:        model.ID,
		Name:      model.Name,
		Status:    model.Status,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}
