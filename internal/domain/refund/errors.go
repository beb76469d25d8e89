package refund

import (
	apperrors "github.com/xiebiao/retailcore/pkg/errors"
)

// 退款领域错误定义
// 资格校验类错误全部在任何写入发生之前返回(fail fast)
var (
	// ErrRefundNotFound 退款单不存在
	ErrRefundNotFound = apperrors.New(apperrors.ErrCodeRefundNotFound, "退款单不存在")

	// ErrWindowExpired 超出退款时限
	ErrWindowExpired = apperrors.New(apperrors.ErrCodeRefundWindowExpired, "超出退款时限")

	// ErrAlreadyRefunded 销售单已全额退款(终态,拒绝任何后续退款)
	ErrAlreadyRefunded = apperrors.New(apperrors.ErrCodeAlreadyRefunded, "该销售单已全额退款")

	// ErrAmountExceeded 累计退款超出销售总额
	ErrAmountExceeded = apperrors.New(apperrors.ErrCodeRefundAmountExceed, "退款金额超出可退余额")

	// ErrAmountMismatch 客户端报的金额与服务端计算不一致(超出容差)
	ErrAmountMismatch = apperrors.New(apperrors.ErrCodeAmountMismatch, "退款金额校验不一致")

	// ErrInvalidRefundLines 退款明细不合法
	ErrInvalidRefundLines = apperrors.New(apperrors.ErrCodeInvalidParams, "退款明细不合法")

	// ErrLineNotInSale 退款明细中的商品不在销售单内
	ErrLineNotInSale = apperrors.New(apperrors.ErrCodeInvalidParams, "退款商品不在销售单内")

	// ErrLineQuantityExceeded 退款数量超过购买数量
	ErrLineQuantityExceeded = apperrors.New(apperrors.ErrCodeInvalidParams, "退款数量超过购买数量")
)
