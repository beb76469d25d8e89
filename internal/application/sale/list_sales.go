package sale

import (
	"context"

	"github.com/xiebiao/retailcore/internal/domain/sale"
	rediscache "github.com/xiebiao/retailcore/internal/infrastructure/persistence/redis"
)

// SaleSummaryView 列表里的销售单摘要
type SaleSummaryView struct {
	SaleID    uint   `json:"sale_id"`
	SaleNo    string `json:"sale_no"`
	StoreID   uint   `json:"store_id"`
	UserID    uint   `json:"user_id"`
	Total     int64  `json:"total"`
	TotalYuan string `json:"total_yuan"`
	Status    string `json:"status"`
	SaleDate  string `json:"sale_date"`
}

// SaleListView 分页列表视图
type SaleListView struct {
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Sales    []SaleSummaryView `json:"sales"`
}

// ListSalesUseCase 销售单列表用例(门店维度/用户维度)
// 教学要点:分页列表的缓存与失效
// 1. 每个(维度,页码,页大小)组合一个缓存Key
// 2. 回填时把Key登记到该实体的Key索引集合,
//    新销售/退款时按索引精确失效所有已缓存的分页,不用SCAN
type ListSalesUseCase struct {
	saleRepo sale.Repository
	cache    Cache
}

// NewListSalesUseCase 创建列表用例
func NewListSalesUseCase(saleRepo sale.Repository, cache Cache) *ListSalesUseCase {
	return &ListSalesUseCase{saleRepo: saleRepo, cache: cache}
}

// ByStore 查询门店的销售单列表(分页,按销售时间倒序)
func (uc *ListSalesUseCase) ByStore(ctx context.Context, storeID uint, page, pageSize int) (*SaleListView, error) {
	page, pageSize = normalizePage(page, pageSize)
	key := rediscache.StoreSalesKey(storeID, page, pageSize)
	indexKey := rediscache.StoreSalesIndexKey(storeID)

	return uc.list(ctx, key, indexKey, page, pageSize, func() ([]*sale.Sale, int64, error) {
		return uc.saleRepo.ListByStoreID(ctx, storeID, page, pageSize)
	})
}

// ByUser 查询用户的销售历史(分页,按销售时间倒序)
func (uc *ListSalesUseCase) ByUser(ctx context.Context, userID uint, page, pageSize int) (*SaleListView, error) {
	page, pageSize = normalizePage(page, pageSize)
	key := rediscache.UserSalesKey(userID, page, pageSize)
	indexKey := rediscache.UserSalesIndexKey(userID)

	return uc.list(ctx, key, indexKey, page, pageSize, func() ([]*sale.Sale, int64, error) {
		return uc.saleRepo.ListByUserID(ctx, userID, page, pageSize)
	})
}

// list Cache-Aside通用流程:查缓存→回源→回填并登记Key索引
func (uc *ListSalesUseCase) list(
	ctx context.Context,
	key, indexKey string,
	page, pageSize int,
	load func() ([]*sale.Sale, int64, error),
) (*SaleListView, error) {
	var view SaleListView
	if hit, _ := uc.cache.GetJSON(ctx, key, &view); hit {
		return &view, nil
	}

	sales, total, err := load()
	if err != nil {
		return nil, err
	}

	built := &SaleListView{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Sales:    toSummaryViews(sales),
	}

	uc.cache.SetJSON(ctx, key, built, uc.cache.ListTTL())
	uc.cache.TrackListKey(ctx, indexKey, key)
	return built, nil
}

// toSummaryViews 构建摘要视图列表
func toSummaryViews(sales []*sale.Sale) []SaleSummaryView {
	views := make([]SaleSummaryView, len(sales))
	for i, s := range sales {
		views[i] = SaleSummaryView{
			SaleID:    s.ID,
			SaleNo:    s.SaleNo,
			StoreID:   s.StoreID,
			UserID:    s.UserID,
			Total:     s.Total,
			TotalYuan: formatPrice(s.Total),
			Status:    s.Status.String(),
			SaleDate:  s.SaleDate.Format("2006-01-02 15:04:05"),
		}
	}
	return views
}

// normalizePage 分页参数兜底
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
