package dto

// CheckStockRequest HTTP库存可用性检查请求
type CheckStockRequest struct {
	StoreID   uint `form:"store_id" binding:"required,min=1" example:"1"`
	ProductID uint `form:"product_id" binding:"required,min=1" example:"1"`
	Quantity  int  `form:"quantity" binding:"required,min=1" example:"2"`
}

// AvailabilityResponse HTTP库存可用性响应
type AvailabilityResponse struct {
	Available  bool `json:"available" example:"true"`
	CurrentQty int  `json:"current_qty" example:"10"`
	Shortage   int  `json:"shortage" example:"0"` // 缺口数量,可用时为0
}

// StockResponse HTTP库存快照响应
type StockResponse struct {
	StoreID   uint   `json:"store_id" example:"1"`
	ProductID uint   `json:"product_id" example:"1"`
	Quantity  int    `json:"quantity" example:"10"`
	UpdatedAt string `json:"updated_at" example:"2024-01-15 14:30:00"`
}

// AdjustStockRequest HTTP盘点调整请求
// delta正数盘盈加库存,负数盘亏减库存
type AdjustStockRequest struct {
	StoreID     uint   `json:"store_id" binding:"required,min=1" example:"1"`
	ProductID   uint   `json:"product_id" binding:"required,min=1" example:"1"`
	Delta       int    `json:"delta" binding:"required" example:"-3"`
	ReferenceID string `json:"reference_id" binding:"omitempty,max=64" example:"inv-20240115-001"`
}

// AdjustStockResponse HTTP盘点调整响应
type AdjustStockResponse struct {
	StoreID     uint   `json:"store_id" example:"1"`
	ProductID   uint   `json:"product_id" example:"1"`
	Delta       int    `json:"delta" example:"-3"`
	ReferenceID string `json:"reference_id" example:"inv-20240115-001"`
	NewQty      *int   `json:"new_qty,omitempty" example:"7"`
}

// TransferStockRequest HTTP门店调拨请求
type TransferStockRequest struct {
	FromStoreID uint   `json:"from_store_id" binding:"required,min=1" example:"1"`
	ToStoreID   uint   `json:"to_store_id" binding:"required,min=1" example:"2"`
	ProductID   uint   `json:"product_id" binding:"required,min=1" example:"1"`
	Quantity    int    `json:"quantity" binding:"required,min=1" example:"5"`
	ReferenceID string `json:"reference_id" binding:"omitempty,max=64" example:"tf-20240115-001"`
}

// TransferStockResponse HTTP门店调拨响应
type TransferStockResponse struct {
	FromStoreID uint   `json:"from_store_id" example:"1"`
	ToStoreID   uint   `json:"to_store_id" example:"2"`
	ProductID   uint   `json:"product_id" example:"1"`
	Quantity    int    `json:"quantity" example:"5"`
	ReferenceID string `json:"reference_id" example:"tf-20240115-001"`
}

// BulkItemRequest 批量变动项
type BulkItemRequest struct {
	Op          string `json:"op" binding:"required,oneof=decrement restore" example:"restore"`
	StoreID     uint   `json:"store_id" binding:"required,min=1" example:"1"`
	ProductID   uint   `json:"product_id" binding:"required,min=1" example:"1"`
	Quantity    int    `json:"quantity" binding:"required,min=1" example:"50"`
	ReferenceID string `json:"reference_id" binding:"omitempty,max=64" example:"po-20240115-001-1"`
}

// BulkUpdateRequest HTTP批量变动请求(进货入库/批量冲正)
type BulkUpdateRequest struct {
	Items []BulkItemRequest `json:"items" binding:"required,min=1,max=100,dive"`
}

// BulkItemResult 批量变动单项结果
type BulkItemResult struct {
	StoreID   uint   `json:"store_id" example:"1"`
	ProductID uint   `json:"product_id" example:"1"`
	Success   bool   `json:"success" example:"true"`
	NewQty    int    `json:"new_qty,omitempty" example:"60"`
	Message   string `json:"message,omitempty" example:""`
}

// BulkUpdateResponse HTTP批量变动响应
type BulkUpdateResponse struct {
	Succeeded int              `json:"succeeded" example:"9"`
	Failed    int              `json:"failed" example:"1"`
	Results   []BulkItemResult `json:"results"`
}
