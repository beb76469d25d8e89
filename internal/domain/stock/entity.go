package stock

import (
	"time"
)

// Stock 门店库存(聚合根)
// 教学要点:
// 1. (StoreID, ProductID)联合唯一键,每个门店每个商品一行
// 2. Quantity永远≥0,由存储层的条件更新保证(不在应用层read-then-write)
// 3. 台账是库存数量的唯一事实来源,其他服务只能通过台账接口读写
type Stock struct {
	ID        uint
	StoreID   uint // 门店ID
	ProductID uint // 商品ID
	Quantity  int  // 当前库存数量(≥0)
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Availability 库存可用性检查结果
// Shortage为缺口数量:请求量-当前量,库存充足时为0
type Availability struct {
	Available  bool `json:"available"`
	CurrentQty int  `json:"currentQty"`
	Shortage   int  `json:"shortage"`
}

// CheckAgainst 根据请求数量计算可用性(纯函数,便于测试)
func (s *Stock) CheckAgainst(qty int) *Availability {
	a := &Availability{CurrentQty: s.Quantity}
	if s.Quantity >= qty {
		a.Available = true
	} else {
		a.Shortage = qty - s.Quantity
	}
	return a
}
