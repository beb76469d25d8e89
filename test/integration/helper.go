package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xiebiao/retailcore/pkg/jwt"
)

// 教学说明：集成测试辅助工具
//
// 集成测试需要一个跑起来的API服务(默认localhost:8080)和docker-compose环境。
// 系统没有注册/登录接口(账号由门店管理系统下发)，所以测试直接用与
// config/config.yaml相同的密钥本地签发JWT——这也顺便验证了服务端的解析逻辑。
//
// 商品/门店主数据归上游服务管,交易核心只做存在性校验,
// 所以测试直连库存库种入门店/商品行,库存本身通过盘点调整接口写入。

const (
	// BaseURL API基础URL
	BaseURL = "http://localhost:8080/api/v1"
	// Timeout HTTP请求超时时间
	Timeout = 10 * time.Second

	// JWTSecret 与config/config.yaml保持一致
	JWTSecret = "your-secret-key-change-in-production"

	// StockDSN 库存库连接(用于种入主数据),与config/config.yaml保持一致
	StockDSN = "root:root123@tcp(127.0.0.1:3306)/retail_stock?charset=utf8mb4&parseTime=True&loc=Asia%2FShanghai"
)

// Response 统一响应结构
type Response struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// SaleData 创建销售单响应数据
type SaleData struct {
	SaleID    uint   `json:"sale_id"`
	SaleNo    string `json:"sale_no"`
	StoreID   uint   `json:"store_id"`
	Total     int64  `json:"total"`
	TotalYuan string `json:"total_yuan"`
	Status    string `json:"status"`
}

// SaleDetailData 销售单详情响应数据
type SaleDetailData struct {
	SaleID        uint   `json:"sale_id"`
	SaleNo        string `json:"sale_no"`
	UserID        uint   `json:"user_id"`
	Total         int64  `json:"total"`
	RefundedTotal int64  `json:"refunded_total"`
	Status        string `json:"status"`
}

// RefundData 创建退款响应数据
type RefundData struct {
	RefundID   uint   `json:"refund_id"`
	RefundNo   string `json:"refund_no"`
	SaleID     uint   `json:"sale_id"`
	Total      int64  `json:"total"`
	TotalYuan  string `json:"total_yuan"`
	SaleStatus string `json:"sale_status"`
}

// StockData 库存快照响应数据
type StockData struct {
	StoreID   uint `json:"store_id"`
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// AvailabilityData 库存可用性响应数据
type AvailabilityData struct {
	Available  bool `json:"available"`
	CurrentQty int  `json:"current_qty"`
	Shortage   int  `json:"shortage"`
}

// doJSON 发送HTTP请求并解析统一响应
func doJSON(t *testing.T, method, url string, data interface{}, token string) *Response {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		require.NoError(t, err, "JSON序列化失败")
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err, "创建HTTP请求失败")

	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: Timeout}
	resp, err := client.Do(req)
	require.NoError(t, err, "发送HTTP请求失败")
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "读取响应体失败")

	var result Response
	err = json.Unmarshal(respBody, &result)
	require.NoError(t, err, "解析JSON响应失败: %s", string(respBody))

	return &result
}

// PostJSON 发送POST请求并解析JSON响应
func PostJSON(t *testing.T, url string, data interface{}, token string) *Response {
	return doJSON(t, "POST", url, data, token)
}

// GetJSON 发送GET请求并解析JSON响应
func GetJSON(t *testing.T, url string, token string) *Response {
	return doJSON(t, "GET", url, nil, token)
}

// PatchJSON 发送PATCH请求并解析JSON响应
func PatchJSON(t *testing.T, url string, data interface{}, token string) *Response {
	return doJSON(t, "PATCH", url, data, token)
}

// TestToken 签发测试用JWT
//
// 教学说明：
// 密钥与服务端配置一致即可通过验证,role决定能访问哪些接口:
// cashier只能收银/退款,manager/admin才能盘点调整/调拨/状态重算
func TestToken(t *testing.T, userID, storeID uint, role string) string {
	manager := jwt.NewManager(JWTSecret, 2*time.Hour, 168*time.Hour)
	pair, err := manager.GenerateToken(userID, storeID, role)
	require.NoError(t, err, "签发测试Token失败")
	return pair.AccessToken
}

// CashierToken 收银员Token(普通角色)
func CashierToken(t *testing.T, userID, storeID uint) string {
	return TestToken(t, userID, storeID, "cashier")
}

// ManagerToken 店长Token(可执行后台操作)
func ManagerToken(t *testing.T, userID, storeID uint) string {
	return TestToken(t, userID, storeID, "manager")
}

var (
	stockDBOnce sync.Once
	stockDBConn *gorm.DB
	stockDBErr  error
)

// stockDB 库存库连接(仅用于种入门店/商品主数据)
func stockDB(t *testing.T) *gorm.DB {
	stockDBOnce.Do(func() {
		stockDBConn, stockDBErr = gorm.Open(mysql.Open(StockDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
	})
	require.NoError(t, stockDBErr, "连接库存库失败(需要docker-compose环境)")
	return stockDBConn
}

// SeedTestStore 种入测试门店,返回门店ID
func SeedTestStore(t *testing.T, name string) uint {
	db := stockDB(t)
	row := map[string]interface{}{
		"name":       fmt.Sprintf("%s_%d", name, time.Now().UnixNano()),
		"status":     1,
		"created_at": time.Now(),
		"updated_at": time.Now(),
	}
	result := db.Table("stores").Create(row)
	require.NoError(t, result.Error, "种入测试门店失败")

	var id uint
	err := db.Table("stores").Where("name = ?", row["name"]).Select("id").Scan(&id).Error
	require.NoError(t, err, "查询测试门店ID失败")
	require.NotZero(t, id, "门店ID应该大于0")
	return id
}

// SeedTestProduct 种入测试商品,返回商品ID
func SeedTestProduct(t *testing.T, name string, priceFen int64) uint {
	db := stockDB(t)
	row := map[string]interface{}{
		"name":       fmt.Sprintf("%s_%d", name, time.Now().UnixNano()),
		"price":      priceFen,
		"status":     1,
		"created_at": time.Now(),
		"updated_at": time.Now(),
	}
	result := db.Table("products").Create(row)
	require.NoError(t, result.Error, "种入测试商品失败")

	var id uint
	err := db.Table("products").Where("name = ?", row["name"]).Select("id").Scan(&id).Error
	require.NoError(t, err, "查询测试商品ID失败")
	require.NotZero(t, id, "商品ID应该大于0")
	return id
}

// StockUp 通过盘点调整接口把(门店,商品)库存加到指定数量
//
// 教学说明：
// 走真实的/stocks/adjust接口而不是直接写库,顺便覆盖了
// "恢复路径自动创建库存行"的行为,测试前置本身也是被测功能
func StockUp(t *testing.T, managerToken string, storeID, productID uint, qty int) {
	adjustReq := map[string]interface{}{
		"store_id":   storeID,
		"product_id": productID,
		"delta":      qty,
	}
	resp := PostJSON(t, BaseURL+"/stocks/adjust", adjustReq, managerToken)
	require.Equal(t, 0, resp.Code, "库存初始化失败: %s", resp.Message)
}

// GetStockQty 查询当前库存数量(记录不存在按0)
func GetStockQty(t *testing.T, token string, storeID, productID uint) int {
	url := fmt.Sprintf("%s/stocks?store_id=%d&product_id=%d", BaseURL, storeID, productID)
	resp := GetJSON(t, url, token)
	if resp.Code != 0 {
		return 0
	}

	var data StockData
	err := json.Unmarshal(resp.Data, &data)
	require.NoError(t, err, "解析库存响应失败")
	return data.Quantity
}

// CreateTestSale 创建销售单并返回响应数据
//
// 封装了最常用的单商品收银流程,price是成交单价(分)
func CreateTestSale(t *testing.T, token string, storeID, productID uint, quantity int, priceFen int64) *SaleData {
	saleReq := map[string]interface{}{
		"store_id": storeID,
		"items": []map[string]interface{}{
			{
				"product_id": productID,
				"quantity":   quantity,
				"unit_price": priceFen,
			},
		},
	}

	resp := PostJSON(t, BaseURL+"/sales", saleReq, token)
	require.Equal(t, 0, resp.Code, "创建销售单失败: %s", resp.Message)

	var data SaleData
	err := json.Unmarshal(resp.Data, &data)
	require.NoError(t, err, "解析销售单响应失败")
	return &data
}
