// Package events 定义交易核心发布的领域事件
//
// 退款的库存恢复是best-effort:恢复失败不回滚退款单,
// 改为发布对账事件,由对账消费者按引用号幂等重放,
// 把"静默丢失"变成"显式排队重试"
package events

import (
	"time"

	"github.com/xiebiao/retailcore/pkg/mq"
)

// 路由键
const (
	// RoutingKeyStockRestoreFailed 退款后库存恢复失败
	RoutingKeyStockRestoreFailed = "stock.restore.failed"
)

// RestoreFailedEvent 库存恢复失败事件
// 携带重放恢复所需的全部参数;ReferenceID保证重放幂等
type RestoreFailedEvent struct {
	RefundID    uint      `json:"refundId"`
	SaleID      uint      `json:"saleId"`
	StoreID     uint      `json:"storeId"`
	ProductID   uint      `json:"productId"`
	Quantity    int       `json:"quantity"`
	ReferenceID string    `json:"referenceId"`
	Reason      string    `json:"reason"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Publisher 事件发布接口
// 应用层依赖接口而非具体实现,测试时可注入fake
type Publisher interface {
	Publish(routingKey string, message interface{}) error
}

// 编译期断言:pkg/mq的Publisher满足接口
var _ Publisher = (*mq.Publisher)(nil)

// NopPublisher 空实现(MQ未配置时使用,事件只丢日志)
type NopPublisher struct{}

// Publish 丢弃事件
func (NopPublisher) Publish(routingKey string, message interface{}) error {
	return nil
}
