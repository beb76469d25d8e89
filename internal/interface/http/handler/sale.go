package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	appsale "github.com/xiebiao/retailcore/internal/application/sale"
	"github.com/xiebiao/retailcore/internal/interface/http/dto"
	"github.com/xiebiao/retailcore/internal/interface/http/middleware"
	"github.com/xiebiao/retailcore/pkg/response"
)

// SaleHandler 销售HTTP处理器
type SaleHandler struct {
	createSaleUseCase      *appsale.CreateSaleUseCase
	getSaleUseCase         *appsale.GetSaleUseCase
	listSalesUseCase       *appsale.ListSalesUseCase
	recomputeStatusUseCase *appsale.RecomputeStatusUseCase
}

// NewSaleHandler 创建销售处理器
func NewSaleHandler(
	createSaleUseCase *appsale.CreateSaleUseCase,
	getSaleUseCase *appsale.GetSaleUseCase,
	listSalesUseCase *appsale.ListSalesUseCase,
	recomputeStatusUseCase *appsale.RecomputeStatusUseCase,
) *SaleHandler {
	return &SaleHandler{
		createSaleUseCase:      createSaleUseCase,
		getSaleUseCase:         getSaleUseCase,
		listSalesUseCase:       listSalesUseCase,
		recomputeStatusUseCase: recomputeStatusUseCase,
	}
}

// CreateSale 创建销售单
// @Summary      创建销售单
// @Description  收银结账（需要登录），跨库Saga保证库存扣减与销售单落库的最终一致
// @Tags         销售模块
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.CreateSaleRequest true "销售单信息"
// @Success      200 {object} response.Response{data=dto.CreateSaleResponse} "结账成功"
// @Failure      400 {object} response.Response "参数错误"
// @Failure      401 {object} response.Response "未登录"
// @Failure      404 {object} response.Response "门店或商品不存在"
// @Failure      40001 {object} response.Response "库存不足"
// @Router       /sales [post]
//
// 教学说明：跨库防超卖的核心接口
// 库存台账和销售单在两个独立的MySQL库里,没有跨库事务可用。
//
// 实现方案：Saga + 原子条件扣减
// 1. 每件商品一个Saga步骤:单条UPDATE ... WHERE quantity >= ?原子扣减
// 2. 最后一步在销售库落销售单(单库事务)
// 3. 任何一步失败:按引用号逆序幂等恢复已扣的库存
//
// 测试方法：
// 1. 给(门店,商品)设置库存10
// 2. 启动10个并发请求,每单买5件
// 3. 预期:2个成功,8个返回库存不足,库存最终为0且不为负
func (h *SaleHandler) CreateSale(c *gin.Context) {
	var req dto.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: "+err.Error())
		return
	}

	userID := middleware.MustGetUserID(c)

	items := make([]appsale.CreateSaleItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = appsale.CreateSaleItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	result, err := h.createSaleUseCase.Execute(c.Request.Context(), appsale.CreateSaleRequest{
		UserID:  userID,
		StoreID: req.StoreID,
		Items:   items,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &dto.CreateSaleResponse{
		SaleID:    result.SaleID,
		SaleNo:    result.SaleNo,
		StoreID:   result.StoreID,
		Total:     result.Total,
		TotalYuan: result.TotalYuan,
		Status:    result.Status,
		Lines:     toLineResponses(result.Lines),
		CreatedAt: result.CreatedAt,
	})
}

// GetSale 查询销售单详情
// @Summary      查询销售单详情
// @Description  返回销售单、明细和退款汇总（Cache-Aside,详情缓存5分钟）
// @Tags         销售模块
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "销售单ID"
// @Success      200 {object} response.Response{data=dto.SaleDetailResponse} "查询成功"
// @Failure      404 {object} response.Response "销售单不存在"
// @Router       /sales/{id} [get]
func (h *SaleHandler) GetSale(c *gin.Context) {
	saleID, err := parseIDParam(c, "id")
	if err != nil {
		response.ErrorWithCode(c, 40900, "销售单ID格式错误")
		return
	}

	view, err := h.getSaleUseCase.Execute(c.Request.Context(), saleID)
	if err != nil {
		response.Error(c, err)
		return
	}

	// 归属校验:普通收银员只能看自己的单,店长和总部账号不受限
	role := middleware.GetRole(c)
	if role != "manager" && role != "admin" && view.UserID != middleware.MustGetUserID(c) {
		response.ErrorWithCode(c, 40103, "无权查看该销售单")
		return
	}

	response.Success(c, toSaleDetailResponse(view))
}

// ListSales 查询销售单列表
// @Summary      查询销售单列表
// @Description  按门店或按用户分页查询（列表缓存10分钟,新销售/退款精确失效）
// @Tags         销售模块
// @Produce      json
// @Security     BearerAuth
// @Param        store_id query int false "门店ID(与user_id二选一)"
// @Param        user_id query int false "用户ID(与store_id二选一)"
// @Param        page query int false "页码" default(1)
// @Param        page_size query int false "每页大小" default(20)
// @Success      200 {object} response.Response{data=response.PageData} "查询成功"
// @Router       /sales [get]
func (h *SaleHandler) ListSales(c *gin.Context) {
	var req dto.ListSalesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: "+err.Error())
		return
	}

	var (
		view *appsale.SaleListView
		err  error
	)
	switch {
	case req.StoreID > 0:
		view, err = h.listSalesUseCase.ByStore(c.Request.Context(), req.StoreID, req.Page, req.PageSize)
	case req.UserID > 0:
		view, err = h.listSalesUseCase.ByUser(c.Request.Context(), req.UserID, req.Page, req.PageSize)
	default:
		// 缺省查当前登录用户自己的销售历史
		view, err = h.listSalesUseCase.ByUser(c.Request.Context(), middleware.MustGetUserID(c), req.Page, req.PageSize)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	list := make([]dto.SaleSummaryResponse, len(view.Sales))
	for i, s := range view.Sales {
		list[i] = dto.SaleSummaryResponse{
			SaleID:    s.SaleID,
			SaleNo:    s.SaleNo,
			StoreID:   s.StoreID,
			UserID:    s.UserID,
			Total:     s.Total,
			TotalYuan: s.TotalYuan,
			Status:    s.Status,
			SaleDate:  s.SaleDate,
		}
	}
	response.SuccessWithPage(c, list, view.Total, view.Page, view.PageSize)
}

// RecomputeStatus 重算销售单状态
// @Summary      重算销售单状态
// @Description  内部接口（仅店长/总部）：从退款历史重算状态,不接受客户端指定状态,只向前推进
// @Tags         销售模块
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "销售单ID"
// @Success      200 {object} response.Response{data=dto.RecomputeStatusResponse} "重算完成"
// @Failure      404 {object} response.Response "销售单不存在"
// @Router       /sales/{id}/status [patch]
func (h *SaleHandler) RecomputeStatus(c *gin.Context) {
	saleID, err := parseIDParam(c, "id")
	if err != nil {
		response.ErrorWithCode(c, 40900, "销售单ID格式错误")
		return
	}

	result, err := h.recomputeStatusUseCase.Execute(c.Request.Context(), saleID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &dto.RecomputeStatusResponse{
		SaleID:  result.SaleID,
		Status:  result.Status,
		Changed: result.Changed,
	})
}

// toLineResponses 明细行视图转HTTP响应
func toLineResponses(lines []appsale.SaleLineView) []dto.SaleLineResponse {
	out := make([]dto.SaleLineResponse, len(lines))
	for i, l := range lines {
		out[i] = dto.SaleLineResponse{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
		}
	}
	return out
}

// toSaleDetailResponse 详情视图转HTTP响应
func toSaleDetailResponse(view *appsale.SaleDetailView) *dto.SaleDetailResponse {
	refunds := make([]dto.RefundSummaryResponse, len(view.Refunds))
	for i, r := range view.Refunds {
		refunds[i] = dto.RefundSummaryResponse{
			RefundID:  r.RefundID,
			RefundNo:  r.RefundNo,
			Total:     r.Total,
			Reason:    r.Reason,
			CreatedAt: r.CreatedAt,
		}
	}
	return &dto.SaleDetailResponse{
		SaleID:        view.SaleID,
		SaleNo:        view.SaleNo,
		StoreID:       view.StoreID,
		UserID:        view.UserID,
		Total:         view.Total,
		TotalYuan:     view.TotalYuan,
		RefundedTotal: view.RefundedTotal,
		Status:        view.Status,
		Lines:         toLineResponses(view.Lines),
		Refunds:       refunds,
		SaleDate:      view.SaleDate,
	}
}

// parseIDParam 解析路径上的数字ID
func parseIDParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, strconv.ErrSyntax
	}
	return uint(id), nil
}
