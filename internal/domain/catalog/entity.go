package catalog

import (
	"time"
)

// 商品/门店主数据的只读视图
// 教学要点:交易核心只做存在性校验,不负责主数据的增删改(归商品/门店服务管)

// Product 商品
type Product struct {
	ID        uint
	Name      string
	Price     int64 // 标价(分),销售时允许门店改价,明细里存成交价快照
	Status    int   // 1-在售 2-下架
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OnSale 商品是否在售
func (p *Product) OnSale() bool {
	return p.Status == 1
}

// Store 门店
type Store struct {
	ID        uint
	Name      string
	Status    int // 1-营业 2-停业
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Open 门店是否营业
func (s *Store) Open() bool {
	return s.Status == 1
}
