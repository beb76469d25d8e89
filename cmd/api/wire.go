//go:build wireinject
// +build wireinject

// Wire依赖注入配置文件
//
// 教学说明：
// 1. Wire是Google开发的编译期依赖注入工具
// 2. 与运行时反射注入（如Spring的@Autowired）不同，Wire在编译期生成代码
// 3. 优势：零运行时开销、类型安全、编译期检测循环依赖
//
// Wire工作流程：
// Step 1: 编写wire.go（本文件），定义Providers和Injector
// Step 2: 运行 `wire gen ./cmd/api`
// Step 3: Wire生成wire_gen.go，包含完整的依赖创建代码
// Step 4: main.go调用wire_gen.go中的InitializeApp()

package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	apprefund "github.com/xiebiao/retailcore/internal/application/refund"
	appsale "github.com/xiebiao/retailcore/internal/application/sale"
	appstock "github.com/xiebiao/retailcore/internal/application/stock"
	"github.com/xiebiao/retailcore/internal/infrastructure/config"
	"github.com/xiebiao/retailcore/internal/infrastructure/events"
	"github.com/xiebiao/retailcore/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/retailcore/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/retailcore/internal/infrastructure/stockledger"
	"github.com/xiebiao/retailcore/internal/interface/http/handler"
	"github.com/xiebiao/retailcore/internal/interface/http/middleware"
	"github.com/xiebiao/retailcore/pkg/jwt"
)

// ========================================
// Wire Provider Sets (依赖分组)
// ========================================

// infrastructureSet 基础设施层依赖
// 包含：配置加载、两个数据库连接、Redis连接
var infrastructureSet = wire.NewSet(
	config.Load,         // 加载配置文件
	mysql.NewStockDB,    // 库存库连接
	mysql.NewSalesDB,    // 销售库连接
	redis.NewClient,     // Redis连接
	redis.NewCacheStore, // 读缓存
)

// repositorySet 仓储层依赖
var repositorySet = wire.NewSet(
	mysql.NewStockRepository,   // 库存台账仓储
	mysql.NewSaleRepository,    // 销售单仓储
	mysql.NewRefundRepository,  // 退款单仓储
	mysql.NewCatalogRepository, // 主数据仓储
	mysql.NewTxManager,         // 销售库事务管理器
)

// ledgerSet 库存台账访问层
// 教学要点:用例依赖的是各自包里的小接口,
// wire.Bind把*stockledger.Ledger绑定到这些接口上
var ledgerSet = wire.NewSet(
	stockledger.NewLedger,
	wire.Bind(new(appsale.Ledger), new(*stockledger.Ledger)),
	wire.Bind(new(apprefund.Ledger), new(*stockledger.Ledger)),
	wire.Bind(new(appstock.Ledger), new(*stockledger.Ledger)),
)

// bindingSet 其余接口绑定
var bindingSet = wire.NewSet(
	wire.Bind(new(appsale.Cache), new(*redis.CacheStore)),
	wire.Bind(new(appsale.CacheInvalidator), new(*redis.CacheStore)),
	wire.Bind(new(appsale.DetailInvalidator), new(*redis.CacheStore)),
	wire.Bind(new(apprefund.CacheInvalidator), new(*redis.CacheStore)),
	wire.Bind(new(appsale.TxManager), new(*mysql.TxManager)),
	wire.Bind(new(apprefund.TxManager), new(*mysql.TxManager)),
)

// applicationSet 应用层依赖
var applicationSet = wire.NewSet(
	appsale.NewCreateSaleUseCase,      // 创建销售用例
	appsale.NewGetSaleUseCase,         // 销售单详情用例
	appsale.NewListSalesUseCase,       // 销售单列表用例
	appsale.NewRecomputeStatusUseCase, // 状态重算用例
	apprefund.NewCreateRefundUseCase,  // 创建退款用例
	appstock.NewQueryStockUseCase,     // 库存查询用例
	appstock.NewAdjustStockUseCase,    // 盘点调整用例
	appstock.NewTransferStockUseCase,  // 门店调拨用例
	appstock.NewBulkUpdateUseCase,     // 批量变动用例
)

// middlewareSet 中间件依赖
var middlewareSet = wire.NewSet(
	provideJWTManager,            // JWT管理器（需要从config提取参数）
	provideSessionStore,          // Session存储（需要从Redis创建）
	middleware.NewAuthMiddleware, // 认证中间件
)

// handlerSet HTTP处理器依赖
var handlerSet = wire.NewSet(
	handler.NewSaleHandler,   // 销售处理器
	handler.NewRefundHandler, // 退款处理器
	handler.NewStockHandler,  // 库存处理器
)

// ========================================
// Custom Providers (自定义Provider)
// ========================================
// 有些依赖的构造函数参数不是直接的类型，需要从Config中提取

// provideJWTManager 从配置创建JWT管理器
func provideJWTManager(cfg *config.Config) *jwt.Manager {
	return jwt.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpire,
		cfg.JWT.RefreshTokenExpire,
	)
}

// provideSessionStore 从Redis客户端创建Session存储
func provideSessionStore(client *goredis.Client) *redis.SessionStore {
	return redis.NewSessionStore(client)
}

// provideSagaTimeout Saga整体超时
func provideSagaTimeout() time.Duration {
	return 30 * time.Second
}

// provideRefundPolicy 从配置提取退款策略
func provideRefundPolicy(cfg *config.Config) apprefund.Policy {
	return apprefund.Policy{
		Window:          cfg.Refund.Window,
		AmountTolerance: cfg.Refund.AmountTolerance,
	}
}

// providePublisher 事件发布器
// Wire版本统一使用Nop(对账消费者由main单独启动);
// 实际的MQ发布器装配见main.go,需要生命周期管理(Close)
func providePublisher() events.Publisher {
	return events.NopPublisher{}
}

// provideGinEngine 创建并配置Gin引擎
func provideGinEngine(
	cfg *config.Config,
	saleHandler *handler.SaleHandler,
	refundHandler *handler.RefundHandler,
	stockHandler *handler.StockHandler,
	authMiddleware *middleware.AuthMiddleware,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
			"status":  "healthy",
		})
	})

	// Prometheus指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger文档路由
	// 访问 http://localhost:8080/swagger/index.html 查看API文档
	// 生产环境建议禁用Swagger或添加访问控制
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware.RequireAuth())
	{
		sales := v1.Group("/sales")
		{
			sales.POST("", saleHandler.CreateSale)
			sales.GET("", saleHandler.ListSales)
			sales.GET("/:id", saleHandler.GetSale)
			sales.POST("/:id/refunds", refundHandler.CreateRefund)
			sales.PATCH("/:id/status",
				authMiddleware.RequireRole("manager", "admin"),
				saleHandler.RecomputeStatus)
		}

		stocks := v1.Group("/stocks")
		{
			stocks.GET("", stockHandler.GetStock)
			stocks.GET("/check", stockHandler.CheckStock)

			backoffice := stocks.Group("")
			backoffice.Use(authMiddleware.RequireRole("manager", "admin"))
			{
				backoffice.POST("/adjust", stockHandler.AdjustStock)
				backoffice.POST("/transfer", stockHandler.TransferStock)
				backoffice.POST("/bulk", stockHandler.BulkUpdate)
			}
		}
	}

	return r
}

// ========================================
// Wire Injector (依赖注入器)
// ========================================

// InitializeApp 初始化整个应用
// 返回：配置好的Gin引擎
func InitializeApp() (*gin.Engine, error) {
	wire.Build(
		infrastructureSet,
		repositorySet,
		ledgerSet,
		bindingSet,
		applicationSet,
		middlewareSet,
		handlerSet,
		provideSagaTimeout,
		provideRefundPolicy,
		providePublisher,
		provideGinEngine,
	)

	// 返回值是占位符,实际运行时会被wire_gen.go替代
	return nil, nil
}
