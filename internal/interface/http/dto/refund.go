package dto

// CreateRefundItemRequest 退款明细项
type CreateRefundItemRequest struct {
	ProductID uint `json:"product_id" binding:"required,min=1" example:"1"`
	Quantity  int  `json:"quantity" binding:"required,min=1,max=999" example:"1"`
}

// CreateRefundRequest HTTP创建退款请求
// items为空表示全额退剩余部分
type CreateRefundRequest struct {
	Reason        string                    `json:"reason" binding:"required,max=500" example:"商品质量问题"`
	Items         []CreateRefundItemRequest `json:"items" binding:"omitempty,max=100,dive"`
	ExpectedTotal int64                     `json:"expected_total" binding:"omitempty,min=1" example:"5900"` // 客户端预期退款额(分),可选
}

// CreateRefundResponse HTTP创建退款响应
type CreateRefundResponse struct {
	RefundID   uint   `json:"refund_id" example:"1"`
	RefundNo   string `json:"refund_no" example:"RFD1705297900654321"`
	SaleID     uint   `json:"sale_id" example:"1"`
	Total      int64  `json:"total" example:"5900"`
	TotalYuan  string `json:"total_yuan" example:"59.00"`
	SaleStatus string `json:"sale_status" example:"partially_refunded"`
	CreatedAt  string `json:"created_at" example:"2024-01-16 09:00:00"`
}
