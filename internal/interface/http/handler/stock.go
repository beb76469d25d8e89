package handler

import (
	"github.com/gin-gonic/gin"

	appstock "github.com/xiebiao/retailcore/internal/application/stock"
	"github.com/xiebiao/retailcore/internal/domain/stock"
	"github.com/xiebiao/retailcore/internal/interface/http/dto"
	"github.com/xiebiao/retailcore/pkg/response"
)

// StockHandler 库存HTTP处理器
type StockHandler struct {
	queryStockUseCase    *appstock.QueryStockUseCase
	adjustStockUseCase   *appstock.AdjustStockUseCase
	transferStockUseCase *appstock.TransferStockUseCase
	bulkUpdateUseCase    *appstock.BulkUpdateUseCase
}

// NewStockHandler 创建库存处理器
func NewStockHandler(
	queryStockUseCase *appstock.QueryStockUseCase,
	adjustStockUseCase *appstock.AdjustStockUseCase,
	transferStockUseCase *appstock.TransferStockUseCase,
	bulkUpdateUseCase *appstock.BulkUpdateUseCase,
) *StockHandler {
	return &StockHandler{
		queryStockUseCase:    queryStockUseCase,
		adjustStockUseCase:   adjustStockUseCase,
		transferStockUseCase: transferStockUseCase,
		bulkUpdateUseCase:    bulkUpdateUseCase,
	}
}

// CheckStock 检查库存可用性
// @Summary      检查库存可用性
// @Description  检查(门店,商品)的库存能否满足请求数量（直连台账,不走缓存）
// @Tags         库存模块
// @Produce      json
// @Security     BearerAuth
// @Param        store_id query int true "门店ID"
// @Param        product_id query int true "商品ID"
// @Param        quantity query int true "请求数量"
// @Success      200 {object} response.Response{data=dto.AvailabilityResponse} "检查完成"
// @Failure      404 {object} response.Response "库存记录不存在"
// @Router       /stocks/check [get]
func (h *StockHandler) CheckStock(c *gin.Context) {
	var req dto.CheckStockRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: "+err.Error())
		return
	}

	avail, err := h.queryStockUseCase.CheckAvailability(c.Request.Context(),
		req.StoreID, req.ProductID, req.Quantity)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &dto.AvailabilityResponse{
		Available:  avail.Available,
		CurrentQty: avail.CurrentQty,
		Shortage:   avail.Shortage,
	})
}

// GetStock 查询库存快照
// @Summary      查询库存快照
// @Description  查询(门店,商品)的当前库存（Cache-Aside,缓存60秒,展示用途可容忍短暂陈旧）
// @Tags         库存模块
// @Produce      json
// @Security     BearerAuth
// @Param        store_id query int true "门店ID"
// @Param        product_id query int true "商品ID"
// @Success      200 {object} response.Response{data=dto.StockResponse} "查询成功"
// @Failure      404 {object} response.Response "库存记录不存在"
// @Router       /stocks [get]
func (h *StockHandler) GetStock(c *gin.Context) {
	var req struct {
		StoreID   uint `form:"store_id" binding:"required,min=1"`
		ProductID uint `form:"product_id" binding:"required,min=1"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: "+err.Error())
		return
	}

	s, err := h.queryStockUseCase.GetStock(c.Request.Context(), req.StoreID, req.ProductID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &dto.StockResponse{
		StoreID:   s.StoreID,
		ProductID: s.ProductID,
		Quantity:  s.Quantity,
		UpdatedAt: s.UpdatedAt.Format("2006-01-02 15:04:05"),
	})
}

// AdjustStock 盘点调整
// @Summary      盘点调整
// @Description  盘盈/盘亏调整库存（仅店长/总部）,盘亏同样走原子条件扣减,不允许调成负数
// @Tags         库存模块
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.AdjustStockRequest true "调整信息"
// @Success      200 {object} response.Response{data=dto.AdjustStockResponse} "调整成功"
// @Failure      40001 {object} response.Response "库存不足(盘亏量超过当前库存)"
// @Router       /stocks/adjust [post]
func (h *StockHandler) AdjustStock(c *gin.Context) {
	var req dto.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: "+err.Error())
		return
	}

	result, err := h.adjustStockUseCase.Execute(c.Request.Context(), appstock.AdjustStockRequest{
		StoreID:     req.StoreID,
		ProductID:   req.ProductID,
		Delta:       req.Delta,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &dto.AdjustStockResponse{
		StoreID:     result.StoreID,
		ProductID:   result.ProductID,
		Delta:       result.Delta,
		ReferenceID: result.ReferenceID,
		NewQty:      result.NewQty,
	})
}

// TransferStock 门店间调拨
// @Summary      门店间调拨
// @Description  把商品从一家门店调到另一家（仅店长/总部）,扣源店加目标店在同一事务
// @Tags         库存模块
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.TransferStockRequest true "调拨信息"
// @Success      200 {object} response.Response{data=dto.TransferStockResponse} "调拨成功"
// @Failure      40001 {object} response.Response "源门店库存不足"
// @Router       /stocks/transfer [post]
func (h *StockHandler) TransferStock(c *gin.Context) {
	var req dto.TransferStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: "+err.Error())
		return
	}

	result, err := h.transferStockUseCase.Execute(c.Request.Context(), appstock.TransferStockRequest{
		FromStoreID: req.FromStoreID,
		ToStoreID:   req.ToStoreID,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &dto.TransferStockResponse{
		FromStoreID: result.FromStoreID,
		ToStoreID:   result.ToStoreID,
		ProductID:   result.ProductID,
		Quantity:    result.Quantity,
		ReferenceID: result.ReferenceID,
	})
}

// BulkUpdate 批量库存变动
// @Summary      批量库存变动
// @Description  进货入库/批量冲正（仅店长/总部）,整批预校验后逐项独立执行,结果逐项返回
// @Tags         库存模块
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.BulkUpdateRequest true "批量变动信息"
// @Success      200 {object} response.Response{data=dto.BulkUpdateResponse} "执行完成(单项成败见results)"
// @Failure      400 {object} response.Response "参数错误或门店/商品不存在(整批拒绝)"
// @Router       /stocks/bulk [post]
func (h *StockHandler) BulkUpdate(c *gin.Context) {
	var req dto.BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: "+err.Error())
		return
	}

	items := make([]stock.BulkItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = stock.BulkItem{
			Op:          stock.BulkOp(item.Op),
			StoreID:     item.StoreID,
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			ReferenceID: item.ReferenceID,
		}
	}

	result, err := h.bulkUpdateUseCase.Execute(c.Request.Context(), items)
	if err != nil {
		response.Error(c, err)
		return
	}

	results := make([]dto.BulkItemResult, len(result.Results))
	for i, r := range result.Results {
		results[i] = dto.BulkItemResult{
			StoreID:   r.StoreID,
			ProductID: r.ProductID,
			Success:   r.Success,
			NewQty:    r.NewQty,
			Message:   r.Message,
		}
	}
	response.Success(c, &dto.BulkUpdateResponse{
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Results:   results,
	})
}
