package catalog

import (
	"context"
)

// Repository 商品/门店只读仓储接口
// 用于在变动库存前校验productId/storeId存在
type Repository interface {
	// FindProductByID 根据ID查找商品
	FindProductByID(ctx context.Context, id uint) (*Product, error)

	// FindStoreByID 根据ID查找门店
	FindStoreByID(ctx context.Context, id uint) (*Store, error)
}
