package sale

import (
	"testing"
)

// TestStatusOf 状态派生纯函数
// 状态只由(总额,累计退款)决定,三段式:0退款/部分/退满
func TestStatusOf(t *testing.T) {
	tests := []struct {
		name     string
		total    int64
		refunded int64
		want     Status
	}{
		{"无退款", 10000, 0, StatusActive},
		{"负数退款按无退款处理", 10000, -1, StatusActive},
		{"部分退款", 10000, 3000, StatusPartiallyRefunded},
		{"差1分仍是部分退款", 10000, 9999, StatusPartiallyRefunded},
		{"恰好退满", 10000, 10000, StatusRefunded},
		{"超额也算退满", 10000, 10001, StatusRefunded},
		{"零元单退零元", 0, 0, StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StatusOf(tt.total, tt.refunded)
			if got != tt.want {
				t.Errorf("StatusOf(%d, %d) = %s, 期望 %s", tt.total, tt.refunded, got, tt.want)
			}
		})
	}
}

// TestApplyStatus_ForwardOnly 终态不允许回退
func TestApplyStatus_ForwardOnly(t *testing.T) {
	s := NewSale("SAL001", 1, 1, []Line{{ProductID: 1, Quantity: 2, UnitPrice: 5000}})

	// active → partially_refunded
	if err := s.ApplyStatus(StatusPartiallyRefunded); err != nil {
		t.Fatalf("向前流转应该成功: %v", err)
	}

	// partially_refunded → refunded
	if err := s.ApplyStatus(StatusRefunded); err != nil {
		t.Fatalf("进入终态应该成功: %v", err)
	}

	// refunded → active 禁止回退
	if err := s.ApplyStatus(StatusActive); err == nil {
		t.Error("从终态回退应该返回错误")
	}
	if s.Status != StatusRefunded {
		t.Errorf("回退失败后状态应该保持refunded,实际%s", s.Status)
	}

	// refunded → refunded 幂等允许
	if err := s.ApplyStatus(StatusRefunded); err != nil {
		t.Errorf("终态重复应用相同状态应该成功: %v", err)
	}
}

// TestNewSale_Total 总额必须由明细计算,不信任外部传入
func TestNewSale_Total(t *testing.T) {
	lines := []Line{
		{ProductID: 1, Quantity: 2, UnitPrice: 5900}, // 118.00
		{ProductID: 2, Quantity: 3, UnitPrice: 1000}, // 30.00
	}

	s := NewSale("SAL002", 1, 10, lines)

	if s.Total != 14800 {
		t.Errorf("总额应该是14800分,实际%d", s.Total)
	}
	if s.Status != StatusActive {
		t.Errorf("新销售单状态应该是active,实际%s", s.Status)
	}
	if s.SaleNo != "SAL002" || s.StoreID != 1 || s.UserID != 10 {
		t.Error("销售单基础字段不正确")
	}
}

// TestLineOf 按商品查找明细行
func TestLineOf(t *testing.T) {
	s := NewSale("SAL003", 1, 1, []Line{
		{ProductID: 100, Quantity: 1, UnitPrice: 2000},
		{ProductID: 200, Quantity: 2, UnitPrice: 3000},
	})

	line, ok := s.LineOf(200)
	if !ok {
		t.Fatal("商品200在销售单内,应该找到")
	}
	if line.Quantity != 2 || line.UnitPrice != 3000 {
		t.Errorf("找到的明细行不正确: %+v", line)
	}

	if _, ok := s.LineOf(999); ok {
		t.Error("商品999不在销售单内,不应该找到")
	}
}

// TestIsOwnedBy 归属校验
func TestIsOwnedBy(t *testing.T) {
	s := NewSale("SAL004", 1, 42, []Line{{ProductID: 1, Quantity: 1, UnitPrice: 100}})

	if !s.IsOwnedBy(42) {
		t.Error("本人应该通过归属校验")
	}
	if s.IsOwnedBy(43) {
		t.Error("他人不应该通过归属校验")
	}
}

// TestLineSubtotal 行小计
func TestLineSubtotal(t *testing.T) {
	l := Line{ProductID: 1, Quantity: 3, UnitPrice: 1234}
	if got := l.Subtotal(); got != 3702 {
		t.Errorf("小计应该是3702,实际%d", got)
	}
}
