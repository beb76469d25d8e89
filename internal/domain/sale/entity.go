package sale

import (
	"time"
)

// Status 销售单状态
// 教学要点:
// 1. 状态是退款历史的派生值,由纯函数StatusOf计算,永远不由客户端直接设置
// 2. 流转方向单向:active → partially_refunded → refunded,refunded为终态
type Status int

const (
	StatusActive            Status = 1 // 正常(无退款)
	StatusPartiallyRefunded Status = 2 // 部分退款
	StatusRefunded          Status = 3 // 已全额退款(终态)
)

// String 实现Stringer接口(日志和API输出)
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPartiallyRefunded:
		return "partially_refunded"
	case StatusRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// StatusOf 由销售总额和累计退款额计算状态(纯函数)
// 状态只存在三种:0退款→active,部分退款→partially_refunded,退满→refunded
// 派生而非独立存储,避免状态字段与退款流水漂移
func StatusOf(total, refunded int64) Status {
	switch {
	case refunded <= 0:
		return StatusActive
	case refunded < total:
		return StatusPartiallyRefunded
	default:
		return StatusRefunded
	}
}

// Sale 销售单实体(聚合根)
// 教学要点:
// 1. Sale是聚合根,Line是子实体,二者必须在同一事务中创建
// 2. Total冗余存储但必须恒等于Σ(行数量×行单价),创建时由明细计算
// 3. 创建后除Status外全部不可变
type Sale struct {
	ID        uint
	SaleNo    string // 销售单号(业务主键,全局唯一)
	StoreID   uint   // 门店ID
	UserID    uint   // 收银员/买家用户ID
	Total     int64  // 总金额(分)
	Status    Status
	Lines     []Line // 销售明细
	SaleDate  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Line 销售明细行
// UnitPrice是成交时的价格快照(分),商品后续改价不影响历史单据
type Line struct {
	ID        uint
	SaleID    uint
	ProductID uint
	Quantity  int
	UnitPrice int64
}

// Subtotal 行小计(分)
func (l Line) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// NewSale 创建销售单(工厂方法)
// Total由明细实时计算,不信任外部传入的总额
func NewSale(saleNo string, storeID, userID uint, lines []Line) *Sale {
	now := time.Now()
	s := &Sale{
		SaleNo:    saleNo,
		StoreID:   storeID,
		UserID:    userID,
		Status:    StatusActive,
		Lines:     lines,
		SaleDate:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Total = s.CalculateTotal()
	return s
}

// CalculateTotal 根据明细计算总金额
func (s *Sale) CalculateTotal() int64 {
	var total int64
	for _, l := range s.Lines {
		total += l.Subtotal()
	}
	return total
}

// ApplyStatus 应用重算后的状态,禁止从终态refunded回退
func (s *Sale) ApplyStatus(target Status) error {
	if s.Status == StatusRefunded && target != StatusRefunded {
		return ErrStatusBackward
	}
	s.Status = target
	s.UpdatedAt = time.Now()
	return nil
}

// IsRefunded 是否已全额退款(终态)
func (s *Sale) IsRefunded() bool {
	return s.Status == StatusRefunded
}

// IsOwnedBy 检查销售单是否属于指定用户(退款权限校验)
func (s *Sale) IsOwnedBy(userID uint) bool {
	return s.UserID == userID
}

// LineOf 按商品查找明细行
func (s *Sale) LineOf(productID uint) (Line, bool) {
	for _, l := range s.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}
