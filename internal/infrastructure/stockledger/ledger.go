// Package stockledger 是编排器访问库存台账的统一入口
//
// 职责:
// 1. 每次调用套上有界超时(配置项,几秒级)
// 2. 变更类调用包一层熔断器,台账持续故障时快速失败
// 3. 成功变更后对受影响的(门店,商品)做fire-and-forget缓存失效
// 4. 变更类调用绝不自动重试:超时意味着结果未知,
//    盲目重试可能二次扣减/二次恢复,调用方要把超时当"结果未知"处理
package stockledger

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xiebiao/retailcore/internal/domain/stock"
	"github.com/xiebiao/retailcore/internal/infrastructure/config"
	"github.com/xiebiao/retailcore/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/retailcore/pkg/circuitbreaker"
	apperrors "github.com/xiebiao/retailcore/pkg/errors"
	"github.com/xiebiao/retailcore/pkg/metrics"
)

// Ledger 库存台账访问层
type Ledger struct {
	repo        stock.Repository
	cache       *redis.CacheStore
	cb          *circuitbreaker.CircuitBreaker
	callTimeout time.Duration
	tracer      trace.Tracer
}

// NewLedger 创建台账访问层
func NewLedger(repo stock.Repository, cache *redis.CacheStore, cfg *config.Config) *Ledger {
	cb := circuitbreaker.NewCircuitBreaker("stock-ledger", circuitbreaker.Config{
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	cb.SetStateChangeCallback(func(name string, from, to circuitbreaker.State) {
		if metrics.CircuitBreakerState != nil {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	})

	return &Ledger{
		repo:        repo,
		cache:       cache,
		cb:          cb,
		callTimeout: cfg.Ledger.CallTimeout,
		tracer:      otel.Tracer("stockledger"),
	}
}

// CheckAvailability 检查库存可用性
// 只读且要求准确,直接打台账不走缓存
func (l *Ledger) CheckAvailability(ctx context.Context, storeID, productID uint, qty int) (*stock.Availability, error) {
	ctx, cancel := context.WithTimeout(ctx, l.callTimeout)
	defer cancel()

	return l.repo.CheckAvailability(ctx, storeID, productID, qty)
}

// GetStock 读取库存快照(Cache-Aside)
// 命中直接返回;未命中回源台账并回填,TTL短(库存变得快)
func (l *Ledger) GetStock(ctx context.Context, storeID, productID uint) (*stock.Stock, error) {
	key := redis.StockKey(storeID, productID)

	var cached stock.Stock
	if hit, _ := l.cache.GetJSON(ctx, key, &cached); hit {
		return &cached, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, l.callTimeout)
	defer cancel()
	s, err := l.repo.Find(ctx2, storeID, productID)
	if err != nil {
		return nil, err
	}

	l.cache.SetJSON(ctx, key, s, l.cache.StockTTL())
	return s, nil
}

// Decrement 扣减库存
func (l *Ledger) Decrement(ctx context.Context, storeID, productID uint, qty int, changeType stock.ChangeType, referenceID string) (int, error) {
	ctx, span := l.tracer.Start(ctx, "stock.decrement", trace.WithAttributes(
		attribute.Int64("store_id", int64(storeID)),
		attribute.Int64("product_id", int64(productID)),
		attribute.Int("quantity", qty),
	))
	defer span.End()

	var newQty int
	err := l.mutate(ctx, "decrement", func(ctx context.Context) error {
		var err error
		newQty, err = l.repo.Decrement(ctx, storeID, productID, qty, changeType, referenceID)
		return err
	})
	if err != nil {
		return 0, err
	}

	l.cache.InvalidateStock(ctx, storeID, productID)
	return newQty, nil
}

// Restore 恢复库存(对referenceID幂等)
func (l *Ledger) Restore(ctx context.Context, storeID, productID uint, qty int, changeType stock.ChangeType, referenceID string) error {
	ctx, span := l.tracer.Start(ctx, "stock.restore", trace.WithAttributes(
		attribute.Int64("store_id", int64(storeID)),
		attribute.Int64("product_id", int64(productID)),
		attribute.Int("quantity", qty),
	))
	defer span.End()

	err := l.mutate(ctx, "restore", func(ctx context.Context) error {
		return l.repo.Restore(ctx, storeID, productID, qty, changeType, referenceID)
	})
	if err != nil {
		return err
	}

	l.cache.InvalidateStock(ctx, storeID, productID)
	return nil
}

// Transfer 门店间调拨
func (l *Ledger) Transfer(ctx context.Context, fromStoreID, toStoreID, productID uint, qty int, referenceID string) error {
	ctx, span := l.tracer.Start(ctx, "stock.transfer")
	defer span.End()

	err := l.mutate(ctx, "transfer", func(ctx context.Context) error {
		return l.repo.Transfer(ctx, fromStoreID, toStoreID, productID, qty, referenceID)
	})
	if err != nil {
		return err
	}

	// 两边门店的库存快照都失效
	l.cache.InvalidateStock(ctx, fromStoreID, productID)
	l.cache.InvalidateStock(ctx, toStoreID, productID)
	return nil
}

// BulkUpdate 批量变动
// 逐项结果由台账返回;成功项逐个失效缓存
func (l *Ledger) BulkUpdate(ctx context.Context, items []stock.BulkItem) ([]stock.BulkResult, error) {
	ctx, span := l.tracer.Start(ctx, "stock.bulk_update", trace.WithAttributes(
		attribute.Int("items", len(items)),
	))
	defer span.End()

	var results []stock.BulkResult
	err := l.mutate(ctx, "bulk", func(ctx context.Context) error {
		var err error
		results, err = l.repo.BulkUpdate(ctx, items)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, res := range results {
		if res.Success {
			l.cache.InvalidateStock(ctx, res.StoreID, res.ProductID)
		}
	}
	return results, nil
}

// mutate 变更类调用的公共壳:超时+熔断+指标
// 教学要点:
// 1. 熔断器只统计系统性失败,业务拒绝(库存不足等)不算失败,
//    否则一波正常的缺货会把熔断器打开
// 2. 超时错误转成ErrLedgerTimeout明确告诉调用方"结果未知,勿重试"
func (l *Ledger) mutate(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, l.callTimeout)
	defer cancel()

	var bizErr error
	err := l.cb.Execute(func() error {
		err := fn(ctx)
		if err != nil && isBusinessReject(err) {
			// 业务拒绝对熔断器上报成功,错误另行透传
			bizErr = err
			return nil
		}
		return err
	})

	switch {
	case err == nil:
		err = bizErr
	case errors.Is(err, circuitbreaker.ErrOpenState):
		err = apperrors.New(apperrors.ErrCodeInternal, "库存服务暂时不可用,请稍后重试")
	case errors.Is(err, context.DeadlineExceeded):
		err = &apperrors.AppError{
			Code:    apperrors.ErrCodeLedgerTimeout,
			Message: "库存服务响应超时",
			Err:     err,
		}
	}

	l.observe(op, start, err)
	return err
}

// isBusinessReject 判断是否为业务规则拒绝(4xxxx错误码)
func isBusinessReject(err error) bool {
	if apperrors.IsAppError(err) {
		return apperrors.GetAppError(err).Code < 50000
	}
	return false
}

// observe 记录台账调用指标
func (l *Ledger) observe(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	if metrics.StockMutationsTotal != nil {
		metrics.StockMutationsTotal.WithLabelValues(op, result).Inc()
	}
	if metrics.StockMutationDuration != nil {
		metrics.StockMutationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
