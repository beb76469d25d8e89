package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/xiebiao/retailcore/internal/domain/catalog"
	"github.com/xiebiao/retailcore/internal/domain/stock"
)

// TransferStockUseCase 门店间调拨用例
// 库存都在同一个库存库里,调拨是单库本地事务:
// 扣源店+加目标店要么同时成功要么同时失败,不会出现货"在路上消失"
type TransferStockUseCase struct {
	ledger      Ledger
	catalogRepo catalog.Repository
}

// NewTransferStockUseCase 创建调拨用例
func NewTransferStockUseCase(ledger Ledger, catalogRepo catalog.Repository) *TransferStockUseCase {
	return &TransferStockUseCase{ledger: ledger, catalogRepo: catalogRepo}
}

// TransferStockRequest 调拨请求DTO
type TransferStockRequest struct {
	FromStoreID uint
	ToStoreID   uint
	ProductID   uint
	Quantity    int
	// ReferenceID 调拨单号;为空则自动生成
	ReferenceID string
}

// TransferStockResponse 调拨响应DTO
type TransferStockResponse struct {
	FromStoreID uint   `json:"from_store_id"`
	ToStoreID   uint   `json:"to_store_id"`
	ProductID   uint   `json:"product_id"`
	Quantity    int    `json:"quantity"`
	ReferenceID string `json:"reference_id"`
}

// Execute 执行调拨
func (uc *TransferStockUseCase) Execute(ctx context.Context, req TransferStockRequest) (*TransferStockResponse, error) {
	if req.Quantity <= 0 {
		return nil, stock.ErrInvalidQuantity
	}
	if req.FromStoreID == req.ToStoreID {
		return nil, stock.ErrSameStoreTransfer
	}
	if _, err := uc.catalogRepo.FindStoreByID(ctx, req.FromStoreID); err != nil {
		return nil, err
	}
	if _, err := uc.catalogRepo.FindStoreByID(ctx, req.ToStoreID); err != nil {
		return nil, err
	}
	if _, err := uc.catalogRepo.FindProductByID(ctx, req.ProductID); err != nil {
		return nil, err
	}

	refID := req.ReferenceID
	if refID == "" {
		refID = fmt.Sprintf("transfer-%d-%d-%d-%d",
			req.FromStoreID, req.ToStoreID, req.ProductID, time.Now().UnixNano())
	}

	err := uc.ledger.Transfer(ctx, req.FromStoreID, req.ToStoreID, req.ProductID, req.Quantity, refID)
	if err != nil {
		return nil, err
	}

	return &TransferStockResponse{
		FromStoreID: req.FromStoreID,
		ToStoreID:   req.ToStoreID,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		ReferenceID: refID,
	}, nil
}
