package stock

import (
	"time"
)

// ChangeType 库存变动类型
type ChangeType string

const (
	ChangeTypeSale        ChangeType = "sale"         // 销售扣减
	ChangeTypeRefund      ChangeType = "refund"       // 退款恢复
	ChangeTypeCompensate  ChangeType = "compensate"   // 销售失败的补偿恢复
	ChangeTypeAdjust      ChangeType = "adjust"       // 人工调整(盘点等)
	ChangeTypeTransferIn  ChangeType = "transfer_in"  // 调拨入库
	ChangeTypeTransferOut ChangeType = "transfer_out" // 调拨出库
)

// ChangeLog 库存变动流水(仅追加)
// 教学要点:
// 1. 每次成功变动在同一事务内写一条流水,留存before/after便于审计和对账
// 2. ReferenceID是调用方提供的幂等键(如refund-123-p5):
//    恢复类操作在流水表上有唯一索引,重放同一ReferenceID不会二次加库存
type ChangeLog struct {
	ID          uint
	StoreID     uint
	ProductID   uint
	ChangeType  ChangeType
	Quantity    int    // 变动量(正数加,负数减)
	BeforeQty   int    // 变动前数量
	AfterQty    int    // 变动后数量
	ReferenceID string // 幂等键,全局唯一
	CreatedAt   time.Time
}
