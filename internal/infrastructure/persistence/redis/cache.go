package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiebiao/retailcore/internal/infrastructure/config"
	"github.com/xiebiao/retailcore/pkg/metrics"
)

// CacheStore 读缓存(Cache-Aside)
// 设计说明:
// 1. 读路径get-or-compute:命中直接返回,未命中回源MySQL再回填
// 2. 缓存后端故障绝不影响主流程:读当作未命中处理,写/失效吞错误只记日志
// 3. 失效走精确Key,不用通配符SCAN(扫描开销随缓存规模增长)
//
// Key设计:
//   stock:{storeId}:{productId}   库存快照
//   sale:{saleId}                 销售单详情
//   sales:store:{storeId}:{page}  门店销售列表
//   sales:user:{userId}:{page}    用户销售历史
type CacheStore struct {
	client *redis.Client
	cfg    *config.CacheConfig
}

// NewCacheStore 创建读缓存
func NewCacheStore(client *redis.Client, cfg *config.Config) *CacheStore {
	return &CacheStore{client: client, cfg: &cfg.Cache}
}

// invalidateTimeout 失效操作的独立超时
// 失效是fire-and-forget,不允许拖慢主流程
const invalidateTimeout = 500 * time.Millisecond

// =========================================
// 读路径
// =========================================

// GetJSON 读取并反序列化缓存值
// 返回(false, nil)表示未命中;后端错误同样按未命中处理(回源兜底)
func (c *CacheStore) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			countError("get")
			log.Printf("[cache] 读取失败 key=%s: %v", key, err)
		}
		countRequest("miss")
		return false, nil
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		// 缓存内容损坏,删掉当未命中
		c.client.Del(ctx, key)
		countRequest("miss")
		return false, nil
	}

	countRequest("hit")
	return true, nil
}

// SetJSON 序列化并写入缓存(带TTL)
// 写失败只记日志,不影响调用方
func (c *CacheStore) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		countError("set")
		log.Printf("[cache] 写入失败 key=%s: %v", key, err)
	}
}

// StockTTL 库存快照TTL
func (c *CacheStore) StockTTL() time.Duration { return c.cfg.StockTTL }

// SaleDetailTTL 销售单详情TTL
func (c *CacheStore) SaleDetailTTL() time.Duration { return c.cfg.SaleDetailTTL }

// ListTTL 列表TTL
func (c *CacheStore) ListTTL() time.Duration { return c.cfg.ListTTL }

// =========================================
// Key构造
// =========================================

// StockKey 库存快照Key
func StockKey(storeID, productID uint) string {
	return fmt.Sprintf("stock:%d:%d", storeID, productID)
}

// SaleKey 销售单详情Key
func SaleKey(saleID uint) string {
	return fmt.Sprintf("sale:%d", saleID)
}

// StoreSalesKey 门店销售列表Key(按页)
func StoreSalesKey(storeID uint, page, pageSize int) string {
	return fmt.Sprintf("sales:store:%d:%d:%d", storeID, page, pageSize)
}

// UserSalesKey 用户销售历史Key(按页)
func UserSalesKey(userID uint, page, pageSize int) string {
	return fmt.Sprintf("sales:user:%d:%d:%d", userID, page, pageSize)
}

// =========================================
// 失效路径(精确Key,fire-and-forget)
// =========================================
// 教学要点:
// 1. 列表类Key带分页参数,逐页精确删除不现实,
//    改为维护每个实体的Key索引集合(SADD记录,失效时SMEMBERS+DEL)
// 2. 失效失败只记日志+计数,绝不向变更调用方报错

// TrackListKey 把列表Key登记到实体的Key索引
// 读路径回填列表缓存时调用,使后续失效能精确找到所有分页Key
func (c *CacheStore) TrackListKey(ctx context.Context, indexKey, listKey string) {
	pipe := c.client.Pipeline()
	pipe.SAdd(ctx, indexKey, listKey)
	pipe.Expire(ctx, indexKey, c.cfg.ListTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[cache] 登记列表Key失败 index=%s: %v", indexKey, err)
	}
}

// StoreSalesIndexKey 门店销售列表的Key索引
func StoreSalesIndexKey(storeID uint) string {
	return fmt.Sprintf("idx:sales:store:%d", storeID)
}

// UserSalesIndexKey 用户销售历史的Key索引
func UserSalesIndexKey(userID uint) string {
	return fmt.Sprintf("idx:sales:user:%d", userID)
}

// InvalidateStock 失效单个(门店,商品)的库存快照
func (c *CacheStore) InvalidateStock(ctx context.Context, storeID, productID uint) {
	c.del(ctx, StockKey(storeID, productID))
}

// InvalidateSale 失效销售单详情
func (c *CacheStore) InvalidateSale(ctx context.Context, saleID uint) {
	c.del(ctx, SaleKey(saleID))
}

// InvalidateStoreSales 失效门店销售列表(经Key索引精确删除所有分页)
func (c *CacheStore) InvalidateStoreSales(ctx context.Context, storeID uint) {
	c.delIndexed(ctx, StoreSalesIndexKey(storeID))
}

// InvalidateUserSales 失效用户销售历史
func (c *CacheStore) InvalidateUserSales(ctx context.Context, userID uint) {
	c.delIndexed(ctx, UserSalesIndexKey(userID))
}

// del 删除精确Key,失败只记日志
func (c *CacheStore) del(ctx context.Context, keys ...string) {
	ctx, cancel := context.WithTimeout(withoutCancel(ctx), invalidateTimeout)
	defer cancel()

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		countError("invalidate")
		log.Printf("[cache] 失效失败 keys=%v: %v", keys, err)
	}
}

// delIndexed 删除索引集合记录的全部Key以及索引本身
func (c *CacheStore) delIndexed(ctx context.Context, indexKey string) {
	ctx, cancel := context.WithTimeout(withoutCancel(ctx), invalidateTimeout)
	defer cancel()

	keys, err := c.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		countError("invalidate")
		log.Printf("[cache] 读取Key索引失败 index=%s: %v", indexKey, err)
		return
	}

	keys = append(keys, indexKey)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		countError("invalidate")
		log.Printf("[cache] 失效失败 index=%s: %v", indexKey, err)
	}
}

// withoutCancel 剥离上游取消信号
// 失效发生在主写入成功之后,请求被取消也应继续完成失效
func withoutCancel(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// countRequest 缓存命中/未命中计数(未初始化指标时跳过)
func countRequest(result string) {
	if metrics.CacheRequestsTotal != nil {
		metrics.CacheRequestsTotal.WithLabelValues(result).Inc()
	}
}

// countError 缓存错误计数
func countError(op string) {
	if metrics.CacheErrorsTotal != nil {
		metrics.CacheErrorsTotal.WithLabelValues(op).Inc()
	}
}
