package stock

import (
	"context"

	"github.com/xiebiao/retailcore/internal/domain/catalog"
	"github.com/xiebiao/retailcore/internal/domain/stock"
	apperrors "github.com/xiebiao/retailcore/pkg/errors"
)

// 单批上限:批量接口不是导入接口,过大的批次应该走离线任务
const maxBulkItems = 100

// BulkUpdateUseCase 批量库存变动用例(进货入库/批量冲正)
// 教学要点:
// 1. 参数和主数据在任何写入前整批校验,校验失败整批拒绝
// 2. 校验通过后逐项独立执行:单项库存不足不中止其余项,结果逐项返回
//    (调用方是批处理脚本,要的是"哪些成了哪些没成",不是第一个错误)
type BulkUpdateUseCase struct {
	ledger      Ledger
	catalogRepo catalog.Repository
}

// NewBulkUpdateUseCase 创建批量变动用例
func NewBulkUpdateUseCase(ledger Ledger, catalogRepo catalog.Repository) *BulkUpdateUseCase {
	return &BulkUpdateUseCase{ledger: ledger, catalogRepo: catalogRepo}
}

// BulkUpdateResponse 批量变动响应DTO
type BulkUpdateResponse struct {
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Results   []stock.BulkResult `json:"results"`
}

// Execute 执行批量变动
func (uc *BulkUpdateUseCase) Execute(ctx context.Context, items []stock.BulkItem) (*BulkUpdateResponse, error) {
	if len(items) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeInvalidParams, "批量变动项不能为空")
	}
	if len(items) > maxBulkItems {
		return nil, apperrors.New(apperrors.ErrCodeInvalidParams, "批量变动项过多")
	}

	// 整批预校验:参数合法性 + 门店/商品存在性(重复的只查一次)
	checkedStores := make(map[uint]bool)
	checkedProducts := make(map[uint]bool)
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, stock.ErrInvalidQuantity
		}
		if item.Op != stock.BulkOpDecrement && item.Op != stock.BulkOpRestore {
			return nil, apperrors.New(apperrors.ErrCodeInvalidParams, "不支持的批量操作类型")
		}
		if !checkedStores[item.StoreID] {
			if _, err := uc.catalogRepo.FindStoreByID(ctx, item.StoreID); err != nil {
				return nil, err
			}
			checkedStores[item.StoreID] = true
		}
		if !checkedProducts[item.ProductID] {
			if _, err := uc.catalogRepo.FindProductByID(ctx, item.ProductID); err != nil {
				return nil, err
			}
			checkedProducts[item.ProductID] = true
		}
	}

	results, err := uc.ledger.BulkUpdate(ctx, items)
	if err != nil {
		return nil, err
	}

	resp := &BulkUpdateResponse{Results: results}
	for _, r := range results {
		if r.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	return resp, nil
}
