package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/xiebiao/retailcore/internal/domain/stock"
)

// restorer 对账消费者需要的台账能力
type restorer interface {
	Restore(ctx context.Context, storeID, productID uint, qty int, changeType stock.ChangeType, referenceID string) error
}

// consumer 消息消费能力(pkg/mq的Consumer满足)
type consumer interface {
	Consume(ctx context.Context, handler func([]byte) error) error
}

// Reconciler 库存对账消费者
// 订阅stock.restore.failed事件,按原引用号重放恢复:
// 引用号在台账流水上有唯一索引,重放天然幂等,重复投递不会多加库存
type Reconciler struct {
	consumer consumer
	ledger   restorer
}

// NewReconciler 创建对账消费者
func NewReconciler(c consumer, ledger restorer) *Reconciler {
	return &Reconciler{consumer: c, ledger: ledger}
}

// Run 开始消费,阻塞直到ctx取消
// 处理失败返回error触发Nack重新入队,下一轮继续重试
func (r *Reconciler) Run(ctx context.Context) error {
	return r.consumer.Consume(ctx, func(body []byte) error {
		var event RestoreFailedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			// 消息格式损坏,重试无意义,记日志后按成功确认丢弃
			log.Printf("[reconcile] 事件解析失败,丢弃: %v", err)
			return nil
		}

		err := r.ledger.Restore(ctx, event.StoreID, event.ProductID, event.Quantity,
			stock.ChangeTypeRefund, event.ReferenceID)
		if err != nil {
			log.Printf("[reconcile] 重放库存恢复失败 refund=%d product=%d: %v",
				event.RefundID, event.ProductID, err)
			return err
		}

		log.Printf("[reconcile] 库存恢复已补齐 refund=%d product=%d qty=%d",
			event.RefundID, event.ProductID, event.Quantity)
		return nil
	})
}
