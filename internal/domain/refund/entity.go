package refund

import (
	"fmt"
	"math/rand"
	"time"
)

// Refund 退款单实体(聚合根)
// 教学要点:
// 1. 退款单创建后不可变,金额账目全靠流水累加,没有可修改的状态字段
// 2. Total是本次退款的金额(分),所有退款累计不得超过销售单总额
// 3. 只保存SaleID引用,不内嵌Sale对象(避免跨聚合引用)
type Refund struct {
	ID        uint
	RefundNo  string // 退款单号(业务主键,全局唯一)
	SaleID    uint   // 关联的销售单ID
	StoreID   uint   // 冗余门店ID(便于按门店查询)
	UserID    uint   // 发起退款的用户ID
	Total     int64  // 退款金额(分)
	Reason    string // 退款原因
	Lines     []Line // 退款明细
	CreatedAt time.Time
}

// Line 退款明细行
// UnitPrice取自销售明细的价格快照,不允许客户端另报价格
type Line struct {
	ID        uint
	RefundID  uint
	ProductID uint
	Quantity  int
	UnitPrice int64
}

// Subtotal 行小计(分)
func (l Line) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// NewRefund 创建退款单(工厂方法)
// Total由明细实时计算
func NewRefund(refundNo string, saleID, storeID, userID uint, reason string, lines []Line) *Refund {
	r := &Refund{
		RefundNo:  refundNo,
		SaleID:    saleID,
		StoreID:   storeID,
		UserID:    userID,
		Reason:    reason,
		Lines:     lines,
		CreatedAt: time.Now(),
	}
	r.Total = r.CalculateTotal()
	return r
}

// CalculateTotal 根据明细计算退款总额
func (r *Refund) CalculateTotal() int64 {
	var total int64
	for _, l := range r.Lines {
		total += l.Subtotal()
	}
	return total
}

// GenerateRefundNo 生成退款单号
// 格式:RFD + 时间戳(秒) + 6位随机数,与销售单号同一套路
func GenerateRefundNo() string {
	timestamp := time.Now().Unix()
	random := rand.Intn(1000000)
	return fmt.Sprintf("RFD%d%06d", timestamp, random)
}
