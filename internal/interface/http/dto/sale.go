package dto

// CreateSaleItemRequest 销售明细项
type CreateSaleItemRequest struct {
	ProductID uint  `json:"product_id" binding:"required,min=1" example:"1"`
	Quantity  int   `json:"quantity" binding:"required,min=1,max=999" example:"2"`
	UnitPrice int64 `json:"unit_price" binding:"min=0" example:"5900"` // 成交单价(分),POS端允许改价
}

// CreateSaleRequest HTTP创建销售单请求
type CreateSaleRequest struct {
	StoreID uint                    `json:"store_id" binding:"required,min=1" example:"1"`
	Items   []CreateSaleItemRequest `json:"items" binding:"required,min=1,max=100,dive"`
}

// SaleLineResponse 销售明细行
type SaleLineResponse struct {
	ProductID uint  `json:"product_id" example:"1"`
	Quantity  int   `json:"quantity" example:"2"`
	UnitPrice int64 `json:"unit_price" example:"5900"`
	Subtotal  int64 `json:"subtotal" example:"11800"`
}

// CreateSaleResponse HTTP创建销售单响应
type CreateSaleResponse struct {
	SaleID    uint               `json:"sale_id" example:"1"`
	SaleNo    string             `json:"sale_no" example:"SAL1705297800123456"`
	StoreID   uint               `json:"store_id" example:"1"`
	Total     int64              `json:"total" example:"11800"`
	TotalYuan string             `json:"total_yuan" example:"118.00"`
	Status    string             `json:"status" example:"active"`
	Lines     []SaleLineResponse `json:"lines"`
	CreatedAt string             `json:"created_at" example:"2024-01-15 14:30:00"`
}

// RefundSummaryResponse 详情里的退款记录摘要
type RefundSummaryResponse struct {
	RefundID  uint   `json:"refund_id" example:"1"`
	RefundNo  string `json:"refund_no" example:"RFD1705297900654321"`
	Total     int64  `json:"total" example:"5900"`
	Reason    string `json:"reason" example:"商品质量问题"`
	CreatedAt string `json:"created_at" example:"2024-01-16 09:00:00"`
}

// SaleDetailResponse HTTP销售单详情响应(含明细和退款汇总)
type SaleDetailResponse struct {
	SaleID        uint                    `json:"sale_id" example:"1"`
	SaleNo        string                  `json:"sale_no" example:"SAL1705297800123456"`
	StoreID       uint                    `json:"store_id" example:"1"`
	UserID        uint                    `json:"user_id" example:"1"`
	Total         int64                   `json:"total" example:"11800"`
	TotalYuan     string                  `json:"total_yuan" example:"118.00"`
	RefundedTotal int64                   `json:"refunded_total" example:"5900"`
	Status        string                  `json:"status" example:"partially_refunded"`
	Lines         []SaleLineResponse      `json:"lines"`
	Refunds       []RefundSummaryResponse `json:"refunds"`
	SaleDate      string                  `json:"sale_date" example:"2024-01-15 14:30:00"`
}

// ListSalesRequest HTTP销售单列表请求
// store_id和user_id二选一:按门店查或按用户查
type ListSalesRequest struct {
	StoreID  uint `form:"store_id" binding:"omitempty,min=1" example:"1"`
	UserID   uint `form:"user_id" binding:"omitempty,min=1" example:"1"`
	Page     int  `form:"page" binding:"omitempty,min=1" example:"1"`
	PageSize int  `form:"page_size" binding:"omitempty,min=1,max=100" example:"20"`
}

// SaleSummaryResponse 列表里的销售单摘要
type SaleSummaryResponse struct {
	SaleID    uint   `json:"sale_id" example:"1"`
	SaleNo    string `json:"sale_no" example:"SAL1705297800123456"`
	StoreID   uint   `json:"store_id" example:"1"`
	UserID    uint   `json:"user_id" example:"1"`
	Total     int64  `json:"total" example:"11800"`
	TotalYuan string `json:"total_yuan" example:"118.00"`
	Status    string `json:"status" example:"active"`
	SaleDate  string `json:"sale_date" example:"2024-01-15 14:30:00"`
}

// RecomputeStatusResponse HTTP状态重算响应
type RecomputeStatusResponse struct {
	SaleID  uint   `json:"sale_id" example:"1"`
	Status  string `json:"status" example:"partially_refunded"`
	Changed bool   `json:"changed" example:"true"`
}
