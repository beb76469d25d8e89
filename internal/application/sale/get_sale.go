package sale

import (
	"context"
	"time"

	"github.com/xiebiao/retailcore/internal/domain/refund"
	"github.com/xiebiao/retailcore/internal/domain/sale"
	rediscache "github.com/xiebiao/retailcore/internal/infrastructure/persistence/redis"
)

// Cache 查询路径的读缓存能力(redis.CacheStore满足)
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration)
	TrackListKey(ctx context.Context, indexKey, listKey string)
	SaleDetailTTL() time.Duration
	ListTTL() time.Duration
}

// RefundView 退款记录视图(嵌在销售单详情里)
type RefundView struct {
	RefundID  uint   `json:"refund_id"`
	RefundNo  string `json:"refund_no"`
	Total     int64  `json:"total"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}

// SaleDetailView 销售单详情视图(含明细和退款汇总)
// 整个视图作为一个缓存条目,退款发生时由退款用例失效
type SaleDetailView struct {
	SaleID        uint           `json:"sale_id"`
	SaleNo        string         `json:"sale_no"`
	StoreID       uint           `json:"store_id"`
	UserID        uint           `json:"user_id"`
	Total         int64          `json:"total"`
	TotalYuan     string         `json:"total_yuan"`
	RefundedTotal int64          `json:"refunded_total"`
	Status        string         `json:"status"`
	Lines         []SaleLineView `json:"lines"`
	Refunds       []RefundView   `json:"refunds"`
	SaleDate      string         `json:"sale_date"`
}

// GetSaleUseCase 查询销售单详情用例
// 教学要点:Cache-Aside读路径
// 1. 先查缓存,命中直接返回
// 2. 未命中回源MySQL(销售单+退款记录两次查询),组装视图后回填
// 3. 缓存故障当未命中处理,读永远有MySQL兜底
type GetSaleUseCase struct {
	saleRepo   sale.Repository
	refundRepo refund.Repository
	cache      Cache
}

// NewGetSaleUseCase 创建查询详情用例
func NewGetSaleUseCase(saleRepo sale.Repository, refundRepo refund.Repository, cache Cache) *GetSaleUseCase {
	return &GetSaleUseCase{saleRepo: saleRepo, refundRepo: refundRepo, cache: cache}
}

// Execute 执行查询
// 归属校验由调用方(Handler)基于返回视图里的UserID完成,
// 视图本身是全局共享的缓存条目,不能按请求人裁剪
func (uc *GetSaleUseCase) Execute(ctx context.Context, saleID uint) (*SaleDetailView, error) {
	key := rediscache.SaleKey(saleID)

	var view SaleDetailView
	if hit, _ := uc.cache.GetJSON(ctx, key, &view); hit {
		return &view, nil
	}

	s, err := uc.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	refunds, err := uc.refundRepo.ListBySaleID(ctx, saleID)
	if err != nil {
		return nil, err
	}

	built := buildDetailView(s, refunds)
	uc.cache.SetJSON(ctx, key, built, uc.cache.SaleDetailTTL())
	return built, nil
}

// buildDetailView 组装详情视图
func buildDetailView(s *sale.Sale, refunds []*refund.Refund) *SaleDetailView {
	lines := make([]SaleLineView, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = SaleLineView{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal(),
		}
	}

	var refundedTotal int64
	refundViews := make([]RefundView, len(refunds))
	for i, r := range refunds {
		refundedTotal += r.Total
		refundViews[i] = RefundView{
			RefundID:  r.ID,
			RefundNo:  r.RefundNo,
			Total:     r.Total,
			Reason:    r.Reason,
			CreatedAt: r.CreatedAt.Format("2006-01-02 15:04:05"),
		}
	}

	return &SaleDetailView{
		SaleID:        s.ID,
		SaleNo:        s.SaleNo,
		StoreID:       s.StoreID,
		UserID:        s.UserID,
		Total:         s.Total,
		TotalYuan:     formatPrice(s.Total),
		RefundedTotal: refundedTotal,
		Status:        s.Status.String(),
		Lines:         lines,
		Refunds:       refundViews,
		SaleDate:      s.SaleDate.Format("2006-01-02 15:04:05"),
	}
}
