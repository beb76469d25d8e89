package integration

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 教学说明：退款模块集成测试
//
// 退款是销售的逆过程，关键技术点：
// 1. 防超退（行锁 + 事务内复核累计退款额）
// 2. 状态派生（active → partially_refunded → refunded）
// 3. 库存best-effort恢复
// 4. 金额核对（expected_total容差校验）

// postRefund 对指定销售单发起退款
func postRefund(t *testing.T, token string, saleID uint, body map[string]interface{}) *Response {
	return PostJSON(t, fmt.Sprintf("%s/sales/%d/refunds", BaseURL, saleID), body, token)
}

// TestRefundCreate 测试退款创建功能
func TestRefundCreate(t *testing.T) {
	storeID := SeedTestStore(t, "refund_store")
	manager := ManagerToken(t, 1, storeID)
	cashier := CashierToken(t, 11, storeID)

	t.Run("全额退款", func(t *testing.T) {
		productID := SeedTestProduct(t, "退货商品", 3000)
		StockUp(t, manager, storeID, productID, 10)

		sale := CreateTestSale(t, cashier, storeID, productID, 2, 3000)

		// items为空 = 全额退剩余部分
		resp := postRefund(t, cashier, sale.SaleID, map[string]interface{}{
			"reason": "商品质量问题",
		})
		require.Equal(t, 0, resp.Code, "全额退款失败: %s", resp.Message)

		var refund RefundData
		err := json.Unmarshal(resp.Data, &refund)
		require.NoError(t, err, "解析退款响应失败")

		assert.NotEmpty(t, refund.RefundNo, "退款单号不应该为空")
		assert.Equal(t, int64(6000), refund.Total, "全额退款金额应该等于销售金额")
		assert.Equal(t, "refunded", refund.SaleStatus, "全额退款后销售单应该进入refunded终态")

		// 库存恢复
		qty := GetStockQty(t, cashier, storeID, productID)
		assert.Equal(t, 10, qty, "退款后库存应该恢复原值")

		t.Logf("✓ 全额退款成功: %s, 金额%s元", refund.RefundNo, refund.TotalYuan)
	})

	t.Run("部分退款后状态为partially_refunded", func(t *testing.T) {
		productID := SeedTestProduct(t, "部分退货商品", 2000)
		StockUp(t, manager, storeID, productID, 10)

		sale := CreateTestSale(t, cashier, storeID, productID, 3, 2000)

		resp := postRefund(t, cashier, sale.SaleID, map[string]interface{}{
			"reason": "买多了退1件",
			"items": []map[string]interface{}{
				{"product_id": productID, "quantity": 1},
			},
		})
		require.Equal(t, 0, resp.Code, "部分退款失败: %s", resp.Message)

		var refund RefundData
		err := json.Unmarshal(resp.Data, &refund)
		require.NoError(t, err)

		assert.Equal(t, int64(2000), refund.Total, "退1件应该退2000分")
		assert.Equal(t, "partially_refunded", refund.SaleStatus, "部分退款后状态应该是partially_refunded")

		t.Logf("✓ 部分退款成功，销售单状态: %s", refund.SaleStatus)
	})

	t.Run("分次退款直至退满", func(t *testing.T) {
		productID := SeedTestProduct(t, "分次退货商品", 1000)
		StockUp(t, manager, storeID, productID, 10)

		sale := CreateTestSale(t, cashier, storeID, productID, 3, 1000)

		// 第一次退1件
		resp1 := postRefund(t, cashier, sale.SaleID, map[string]interface{}{
			"reason": "第一次退款",
			"items": []map[string]interface{}{
				{"product_id": productID, "quantity": 1},
			},
		})
		require.Equal(t, 0, resp1.Code, "第一次退款失败: %s", resp1.Message)

		// 第二次退剩余2件(items为空退剩余全部)
		resp2 := postRefund(t, cashier, sale.SaleID, map[string]interface{}{
			"reason": "第二次退款",
		})
		require.Equal(t, 0, resp2.Code, "第二次退款失败: %s", resp2.Message)

		var refund2 RefundData
		err := json.Unmarshal(resp2.Data, &refund2)
		require.NoError(t, err)
		assert.Equal(t, int64(2000), refund2.Total, "第二次应该退剩余2件")
		assert.Equal(t, "refunded", refund2.SaleStatus, "退满后应该进入refunded终态")

		// 第三次退款应该被拒绝（已全额退款）
		resp3 := postRefund(t, cashier, sale.SaleID, map[string]interface{}{
			"reason": "第三次退款",
		})
		assert.NotEqual(t, 0, resp3.Code, "已全额退款后再退应该失败")

		// 库存最终恢复原值
		qty := GetStockQty(t, cashier, storeID, productID)
		assert.Equal(t, 10, qty, "全部退完后库存应该恢复原值")

		t.Logf("✓ 分次退款验证通过，终态后再退被拒: %s", resp3.Message)
	})

	t.Run("退款数量超过销售数量应失败", func(t *testing.T) {
		productID := SeedTestProduct(t, "超量退货商品", 5000)
		StockUp(t, manager, storeID, productID, 10)

		sale := CreateTestSale(t, cashier, storeID, productID, 2, 5000)

		resp := postRefund(t, cashier, sale.SaleID, map[string]interface{}{
			"reason": "恶意超退",
			"items": []map[string]interface{}{
				{"product_id": productID, "quantity": 5},
			},
		})
		assert.NotEqual(t, 0, resp.Code, "退款数量超过销售数量应该失败")

		t.Logf("✓ 超量退款正确被拒绝: %s", resp.Message)
	})

	t.Run("退不在销售单里的商品应失败", func(t *testing.T) {
		productID := SeedTestProduct(t, "在单商品", 3000)
		otherProductID := SeedTestProduct(t, "不在单商品", 4000)
		StockUp(t, manager, storeID, productID, 10)

		sale := CreateTestSale(t, cashier, storeID, productID, 1, 3000)

		resp := postRefund(t, cashier, sale.SaleID, map[string]interface{}{
			"reason": "退错商品",
			"items": []map[string]interface{}{
				{"product_id": otherProductID, "quantity": 1},
			},
		})
		assert.NotEqual(t, 0, resp.Code, "退不在单商品应该失败")

		t.Logf("✓ 不在单商品正确被拒绝: %s", resp.Message)
	})

	t.Run("非本人销售单不能退款", func(t *testing.T) {
		productID := SeedTestProduct(t, "他人商品", 2000)
		StockUp(t, manager, storeID, productID, 10)

		sale := CreateTestSale(t, cashier, storeID, productID, 1, 2000)

		otherCashier := CashierToken(t, 12, storeID)
		resp := postRefund(t, otherCashier, sale.SaleID, map[string]interface{}{
			"reason": "越权退款",
		})
		assert.NotEqual(t, 0, resp.Code, "非本人销售单退款应该被拒绝")

		t.Logf("✓ 越权退款正确被拒绝: %s", resp.Message)
	})

	t.Run("预期金额不符应失败", func(t *testing.T) {
		productID := SeedTestProduct(t, "对账商品", 3000)
		StockUp(t, manager, storeID, productID, 10)

		sale := CreateTestSale(t, cashier, storeID, productID, 2, 3000)

		// 客户端以为退5000,服务端按明细算出6000,超出容差拒绝
		resp := postRefund(t, cashier, sale.SaleID, map[string]interface{}{
			"reason":         "金额对不上",
			"expected_total": 5000,
		})
		assert.NotEqual(t, 0, resp.Code, "预期金额不符应该失败")

		t.Logf("✓ 金额不符正确被拒绝: %s", resp.Message)
	})
}

// TestRefundConcurrency 测试并发退款（防超退核心场景）
//
// 教学说明：
// 两个并发请求同时对一张销售单发起全额退款。
// 事务内SELECT FOR UPDATE锁定销售单行,后到的事务在复核
// 累计退款额时发现已退满,只有一个请求能成功。
func TestRefundConcurrency(t *testing.T) {
	storeID := SeedTestStore(t, "refund_race_store")
	manager := ManagerToken(t, 1, storeID)
	cashier := CashierToken(t, 13, storeID)

	productID := SeedTestProduct(t, "并发退款商品", 10000)
	StockUp(t, manager, storeID, productID, 10)

	sale := CreateTestSale(t, cashier, storeID, productID, 1, 10000)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successCount int
	)

	concurrency := 5
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			resp := postRefund(t, cashier, sale.SaleID, map[string]interface{}{
				"reason": "并发全额退款",
			})

			mu.Lock()
			if resp.Code == 0 {
				successCount++
				t.Logf("  [请求%d] ✓ 退款成功", idx+1)
			} else {
				t.Logf("  [请求%d] ✗ 退款失败: %s", idx+1, resp.Message)
			}
			mu.Unlock()
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 1, successCount, "并发全额退款应该恰好成功1笔")

	// 库存只能恢复一次
	time.Sleep(500 * time.Millisecond) // 恢复是best-effort,给一点余量
	qty := GetStockQty(t, cashier, storeID, productID)
	assert.Equal(t, 10, qty, "库存应该恰好恢复到原值，不能多恢复")

	t.Logf("✓ 防超退验证通过：%d个并发请求只成功1笔", concurrency)
}

// TestRefundStatusRecompute 测试状态重算接口
func TestRefundStatusRecompute(t *testing.T) {
	storeID := SeedTestStore(t, "recompute_store")
	manager := ManagerToken(t, 1, storeID)
	cashier := CashierToken(t, 14, storeID)

	productID := SeedTestProduct(t, "重算商品", 4000)
	StockUp(t, manager, storeID, productID, 10)

	sale := CreateTestSale(t, cashier, storeID, productID, 2, 4000)

	t.Run("收银员无权重算", func(t *testing.T) {
		resp := PatchJSON(t, fmt.Sprintf("%s/sales/%d/status", BaseURL, sale.SaleID), nil, cashier)
		assert.NotEqual(t, 0, resp.Code, "cashier角色应该被拒绝")

		t.Logf("✓ 无权限正确被拒绝: %s", resp.Message)
	})

	t.Run("店长重算且结果幂等", func(t *testing.T) {
		// 先退一半
		refundResp := postRefund(t, cashier, sale.SaleID, map[string]interface{}{
			"reason": "退1件",
			"items": []map[string]interface{}{
				{"product_id": productID, "quantity": 1},
			},
		})
		require.Equal(t, 0, refundResp.Code, "退款失败: %s", refundResp.Message)

		// 重算:状态已经是partially_refunded,应该报告未变化
		url := fmt.Sprintf("%s/sales/%d/status", BaseURL, sale.SaleID)
		resp := PatchJSON(t, url, nil, manager)
		require.Equal(t, 0, resp.Code, "重算失败: %s", resp.Message)

		var data struct {
			Status  string `json:"status"`
			Changed bool   `json:"changed"`
		}
		err := json.Unmarshal(resp.Data, &data)
		require.NoError(t, err)

		assert.Equal(t, "partially_refunded", data.Status, "重算结果应该与退款流水一致")
		assert.False(t, data.Changed, "退款路径已写入正确状态,重算不应该有变化")

		// 再算一次,结果一致
		resp2 := PatchJSON(t, url, nil, manager)
		assert.Equal(t, 0, resp2.Code, "重复重算应该成功（幂等）")

		t.Logf("✓ 状态重算验证通过: status=%s changed=%v", data.Status, data.Changed)
	})
}
