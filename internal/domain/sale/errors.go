package sale

import (
	apperrors "github.com/xiebiao/retailcore/pkg/errors"
)

// 销售领域错误定义
var (
	// ErrSaleNotFound 销售单不存在
	ErrSaleNotFound = apperrors.New(apperrors.ErrCodeSaleNotFound, "销售单不存在")

	// ErrStatusBackward 状态禁止从终态回退
	ErrStatusBackward = apperrors.New(apperrors.ErrCodeBusinessError, "销售单状态不允许回退")

	// ErrInvalidSaleLines 销售明细不合法
	ErrInvalidSaleLines = apperrors.New(apperrors.ErrCodeInvalidParams, "销售明细不能为空")

	// ErrInvalidQuantity 购买数量不合法
	ErrInvalidQuantity = apperrors.New(apperrors.ErrCodeInvalidParams, "购买数量必须大于0")

	// ErrInvalidUnitPrice 单价不合法
	ErrInvalidUnitPrice = apperrors.New(apperrors.ErrCodeInvalidParams, "商品单价不能为负数")

	// ErrDuplicateSaleLine 同一商品重复出现在明细中
	ErrDuplicateSaleLine = apperrors.New(apperrors.ErrCodeInvalidParams, "同一商品不能重复出现在明细中,请合并数量")
)
