package stock

import (
	"fmt"

	apperrors "github.com/xiebiao/retailcore/pkg/errors"
)

// 库存领域错误定义
var (
	// ErrStockNotFound 库存记录不存在
	ErrStockNotFound = apperrors.New(apperrors.ErrCodeStockNotFound, "库存记录不存在")

	// ErrInvalidQuantity 变动数量不合法
	ErrInvalidQuantity = apperrors.New(apperrors.ErrCodeInvalidParams, "变动数量必须大于0")

	// ErrSameStoreTransfer 调拨的来源和目标门店相同
	ErrSameStoreTransfer = apperrors.New(apperrors.ErrCodeInvalidParams, "来源门店和目标门店不能相同")
)

// NewInsufficientError 库存不足错误(携带商品和缺口信息)
// 教学要点:错误信息要能定位到具体商品,调用方据此提示用户哪件商品缺货
func NewInsufficientError(productID uint, available, requested int) *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeInsufficientStock,
		fmt.Sprintf("商品%d库存不足:剩余%d,需要%d", productID, available, requested))
}
