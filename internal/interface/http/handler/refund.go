package handler

import (
	"github.com/gin-gonic/gin"

	apprefund "github.com/xiebiao/retailcore/internal/application/refund"
	"github.com/xiebiao/retailcore/internal/interface/http/dto"
	"github.com/xiebiao/retailcore/internal/interface/http/middleware"
	"github.com/xiebiao/retailcore/pkg/response"
)

// RefundHandler 退款HTTP处理器
type RefundHandler struct {
	createRefundUseCase *apprefund.CreateRefundUseCase
}

// NewRefundHandler 创建退款处理器
func NewRefundHandler(createRefundUseCase *apprefund.CreateRefundUseCase) *RefundHandler {
	return &RefundHandler{createRefundUseCase: createRefundUseCase}
}

// CreateRefund 创建退款
// @Summary      创建退款
// @Description  对销售单发起退款（需要登录,只能退自己的单）,行锁防并发超退,库存恢复best-effort
// @Tags         退款模块
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "销售单ID"
// @Param        request body dto.CreateRefundRequest true "退款信息(items为空表示全额退剩余)"
// @Success      200 {object} response.Response{data=dto.CreateRefundResponse} "退款成功"
// @Failure      400 {object} response.Response "参数错误"
// @Failure      404 {object} response.Response "销售单不存在"
// @Failure      40010 {object} response.Response "超出退款时限"
// @Failure      40011 {object} response.Response "已全额退款"
// @Failure      40012 {object} response.Response "退款金额超出销售总额"
// @Router       /sales/{id}/refunds [post]
//
// 教学说明：防并发超退
// 两个并发退款同时通过锁外的资格校验并不罕见,真正的防线在事务里:
// SELECT FOR UPDATE锁销售单行,锁内重查累计退款额再复核上限,
// 后到的请求会看到前一笔已提交的金额,超限即拒绝。
// 退款单提交后的库存恢复是best-effort:失败只发对账事件,绝不回滚退款。
func (h *RefundHandler) CreateRefund(c *gin.Context) {
	saleID, err := parseIDParam(c, "id")
	if err != nil {
		response.ErrorWithCode(c, 40900, "销售单ID格式错误")
		return
	}

	var req dto.CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: "+err.Error())
		return
	}

	items := make([]apprefund.CreateRefundItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = apprefund.CreateRefundItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	result, err := h.createRefundUseCase.Execute(c.Request.Context(), apprefund.CreateRefundRequest{
		SaleID:        saleID,
		UserID:        middleware.MustGetUserID(c),
		Reason:        req.Reason,
		Items:         items,
		ExpectedTotal: req.ExpectedTotal,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &dto.CreateRefundResponse{
		RefundID:   result.RefundID,
		RefundNo:   result.RefundNo,
		SaleID:     result.SaleID,
		Total:      result.Total,
		TotalYuan:  result.TotalYuan,
		SaleStatus: result.SaleStatus,
		CreatedAt:  result.CreatedAt,
	})
}
