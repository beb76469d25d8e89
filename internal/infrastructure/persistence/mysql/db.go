package mysql

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xiebiao/retailcore/internal/infrastructure/config"
)

// 两个独立连接池
// 教学要点:
// 1. 库存台账和销售/退款分别拥有自己的库和连接池,没有跨库事务
// 2. 跨资源一致性靠Saga补偿,不靠两阶段提交
// 3. 用不同的类型包装*gorm.DB,依赖注入时不会拿错池子

// StockDB 库存库连接(库存台账独占)
type StockDB struct {
	*gorm.DB
}

// SalesDB 销售库连接(销售单/退款单独占)
type SalesDB struct {
	*gorm.DB
}

// NewStockDB 创建库存库连接
func NewStockDB(cfg *config.Config) (*StockDB, error) {
	db, err := open(&cfg.StockDB, cfg.Server.Mode)
	if err != nil {
		return nil, fmt.Errorf("连接库存库失败: %w", err)
	}

	// 库存台账自己的表 + 商品/门店主数据(只读视图)
	if err := db.AutoMigrate(&StockModel{}, &StockLogModel{}, &ProductModel{}, &StoreModel{}); err != nil {
		return nil, fmt.Errorf("库存库迁移失败: %w", err)
	}

	log.Println("✓ 库存库连接成功")
	return &StockDB{DB: db}, nil
}

// NewSalesDB 创建销售库连接
func NewSalesDB(cfg *config.Config) (*SalesDB, error) {
	db, err := open(&cfg.SalesDB, cfg.Server.Mode)
	if err != nil {
		return nil, fmt.Errorf("连接销售库失败: %w", err)
	}

	if err := db.AutoMigrate(&SaleModel{}, &SaleLineModel{}, &RefundModel{}, &RefundLineModel{}); err != nil {
		return nil, fmt.Errorf("销售库迁移失败: %w", err)
	}

	log.Println("✓ 销售库连接成功")
	return &SalesDB{DB: db}, nil
}

// open 建立GORM连接并配置连接池
// 设计说明:
// 1. 开发环境开启SQL日志,生产环境关闭
// 2. 连接池参数(MaxOpenConns、MaxIdleConns、ConnMaxLifetime)从配置读取
// 3. AutoMigrate只在各自的New函数里做(生产环境应使用版本化迁移脚本)
func open(dbCfg *config.DatabaseConfig, mode string) (*gorm.DB, error) {
	logLevel := logger.Silent
	if mode == "debug" {
		logLevel = logger.Info // 开发环境打印SQL
	}

	db, err := gorm.Open(mysql.Open(dbCfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

// =========================================
// GORM数据模型(infrastructure层,带tag)
// domain层实体不依赖GORM,Repository负责两者转换
// =========================================

// StockModel GORM库存模型
// (store_id, product_id)联合唯一索引,每店每商品一行
type StockModel struct {
	ID        uint      `gorm:"primaryKey"`
	StoreID   uint      `gorm:"uniqueIndex:uk_store_product;not null;comment:门店ID"`
	ProductID uint      `gorm:"uniqueIndex:uk_store_product;not null;comment:商品ID"`
	Quantity  int       `gorm:"not null;default:0;comment:库存数量"`
	CreatedAt time.Time `gorm:"comment:创建时间"`
	UpdatedAt time.Time `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (StockModel) TableName() string {
	return "stocks"
}

// StockLogModel GORM库存流水模型(仅追加)
// 教学要点:
// 1. ReferenceID唯一索引是恢复操作幂等的关键:
//    重放同一引用号时流水插入冲突,整个事务回滚,库存不会二次变动
// 2. 与库存变动同一事务写入,before/after留痕便于对账
type StockLogModel struct {
	ID          uint      `gorm:"primaryKey"`
	StoreID     uint      `gorm:"index:idx_store_product;not null;comment:门店ID"`
	ProductID   uint      `gorm:"index:idx_store_product;not null;comment:商品ID"`
	ChangeType  string    `gorm:"size:20;not null;comment:变动类型"`
	Quantity    int       `gorm:"not null;comment:变动量(正加负减)"`
	BeforeQty   int       `gorm:"not null;comment:变动前数量"`
	AfterQty    int       `gorm:"not null;comment:变动后数量"`
	ReferenceID string    `gorm:"uniqueIndex;size:64;not null;comment:幂等引用号"`
	CreatedAt   time.Time `gorm:"index;comment:创建时间"`
}

// TableName 指定表名
func (StockLogModel) TableName() string {
	return "stock_logs"
}

// ProductModel GORM商品模型(主数据只读视图)
type ProductModel struct {
	ID        uint           `gorm:"primaryKey"`
	Name      string         `gorm:"size:200;not null;comment:商品名称"`
	Price     int64          `gorm:"not null;comment:标价(分)"`
	Status    int            `gorm:"type:tinyint;default:1;comment:状态(1在售2下架)"`
	CreatedAt time.Time      `gorm:"comment:创建时间"`
	UpdatedAt time.Time      `gorm:"comment:更新时间"`
	DeletedAt gorm.DeletedAt `gorm:"index;comment:删除时间(软删除)"`
}

// TableName 指定表名
func (ProductModel) TableName() string {
	return "products"
}

// StoreModel GORM门店模型(主数据只读视图)
type StoreModel struct {
	ID        uint           `gorm:"primaryKey"`
	Name      string         `gorm:"size:100;not null;comment:门店名称"`
	Status    int            `gorm:"type:tinyint;default:1;comment:状态(1营业2停业)"`
	CreatedAt time.Time      `gorm:"comment:创建时间"`
	UpdatedAt time.Time      `gorm:"comment:更新时间"`
	DeletedAt gorm.DeletedAt `gorm:"index;comment:删除时间(软删除)"`
}

// TableName 指定表名
func (StoreModel) TableName() string {
	return "stores"
}

// SaleModel GORM销售单模型
// 教学要点:
// 1. 与SaleLineModel一对多,SaleNo唯一索引(业务主键)
// 2. Status是退款历史的派生值(1正常2部分退款3已退款),不接受客户端直接设置
type SaleModel struct {
	ID        uint            `gorm:"primaryKey"`
	SaleNo    string          `gorm:"uniqueIndex;size:32;not null;comment:销售单号"`
	StoreID   uint            `gorm:"index;not null;comment:门店ID"`
	UserID    uint            `gorm:"index;not null;comment:用户ID"`
	Total     int64           `gorm:"not null;comment:总金额(分)"`
	Status    int             `gorm:"index;type:tinyint;default:1;comment:状态(1正常2部分退款3已退款)"`
	Lines     []SaleLineModel `gorm:"foreignKey:SaleID"` // 一对多关联
	SaleDate  time.Time       `gorm:"index;comment:销售时间"`
	CreatedAt time.Time       `gorm:"comment:创建时间"`
	UpdatedAt time.Time       `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (SaleModel) TableName() string {
	return "sales"
}

// SaleLineModel GORM销售明细模型
// UnitPrice是成交时的价格快照,创建后不可变
type SaleLineModel struct {
	ID        uint  `gorm:"primaryKey"`
	SaleID    uint  `gorm:"index;not null;comment:销售单ID"`
	ProductID uint  `gorm:"index;not null;comment:商品ID"`
	Quantity  int   `gorm:"not null;comment:数量"`
	UnitPrice int64 `gorm:"not null;comment:成交单价(分)"`
}

// TableName 指定表名
func (SaleLineModel) TableName() string {
	return "sale_lines"
}

// RefundModel GORM退款单模型
// 创建后不可变,金额账目靠SUM(total)累加
type RefundModel struct {
	ID        uint              `gorm:"primaryKey"`
	RefundNo  string            `gorm:"uniqueIndex;size:32;not null;comment:退款单号"`
	SaleID    uint              `gorm:"index;not null;comment:销售单ID"`
	StoreID   uint              `gorm:"index;not null;comment:门店ID"`
	UserID    uint              `gorm:"index;not null;comment:用户ID"`
	Total     int64             `gorm:"not null;comment:退款金额(分)"`
	Reason    string            `gorm:"size:255;comment:退款原因"`
	Lines     []RefundLineModel `gorm:"foreignKey:RefundID"`
	CreatedAt time.Time         `gorm:"index;comment:创建时间"`
}

// TableName 指定表名
func (RefundModel) TableName() string {
	return "refunds"
}

// RefundLineModel GORM退款明细模型
type RefundLineModel struct {
	ID        uint  `gorm:"primaryKey"`
	RefundID  uint  `gorm:"index;not null;comment:退款单ID"`
	ProductID uint  `gorm:"index;not null;comment:商品ID"`
	Quantity  int   `gorm:"not null;comment:数量"`
	UnitPrice int64 `gorm:"not null;comment:单价(分)"`
}

// TableName 指定表名
func (RefundLineModel) TableName() string {
	return "refund_lines"
}
