package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/xiebiao/retailcore/internal/domain/catalog"
	"github.com/xiebiao/retailcore/internal/domain/stock"
	apperrors "github.com/xiebiao/retailcore/pkg/errors"
)

// AdjustStockUseCase 库存盘点调整用例
// 教学要点:盘点调整复用销售/退款同一条台账路径
// 1. 正数走恢复(加库存),负数走原子条件扣减——盘亏也不允许把库存调成负数
// 2. 每次调整带引用号,流水可追溯;引用号冲突即重复提交,被幂等挡掉
type AdjustStockUseCase struct {
	ledger      Ledger
	catalogRepo catalog.Repository
}

// NewAdjustStockUseCase 创建盘点调整用例
func NewAdjustStockUseCase(ledger Ledger, catalogRepo catalog.Repository) *AdjustStockUseCase {
	return &AdjustStockUseCase{ledger: ledger, catalogRepo: catalogRepo}
}

// AdjustStockRequest 盘点调整请求DTO
type AdjustStockRequest struct {
	StoreID   uint
	ProductID uint
	// Delta 调整量:正数盘盈加库存,负数盘亏减库存,不允许为0
	Delta int
	// ReferenceID 调整凭证号;为空则自动生成(自动生成的凭证不具备幂等保护)
	ReferenceID string
}

// AdjustStockResponse 盘点调整响应DTO
type AdjustStockResponse struct {
	StoreID     uint   `json:"store_id"`
	ProductID   uint   `json:"product_id"`
	Delta       int    `json:"delta"`
	ReferenceID string `json:"reference_id"`
	NewQty      *int   `json:"new_qty,omitempty"` // 仅扣减路径能拿到新数量
}

// Execute 执行盘点调整
func (uc *AdjustStockUseCase) Execute(ctx context.Context, req AdjustStockRequest) (*AdjustStockResponse, error) {
	if req.Delta == 0 {
		return nil, apperrors.New(apperrors.ErrCodeInvalidParams, "调整量不能为0")
	}
	if _, err := uc.catalogRepo.FindStoreByID(ctx, req.StoreID); err != nil {
		return nil, err
	}
	if _, err := uc.catalogRepo.FindProductByID(ctx, req.ProductID); err != nil {
		return nil, err
	}

	refID := req.ReferenceID
	if refID == "" {
		refID = fmt.Sprintf("adjust-%d-%d-%d", req.StoreID, req.ProductID, time.Now().UnixNano())
	}

	resp := &AdjustStockResponse{
		StoreID:     req.StoreID,
		ProductID:   req.ProductID,
		Delta:       req.Delta,
		ReferenceID: refID,
	}

	if req.Delta > 0 {
		err := uc.ledger.Restore(ctx, req.StoreID, req.ProductID, req.Delta,
			stock.ChangeTypeAdjust, refID)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}

	newQty, err := uc.ledger.Decrement(ctx, req.StoreID, req.ProductID, -req.Delta,
		stock.ChangeTypeAdjust, refID)
	if err != nil {
		return nil, err
	}
	resp.NewQty = &newQty
	return resp, nil
}
