package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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
	"github.com/xiebiao/retailcore/pkg/metrics"
	"github.com/xiebiao/retailcore/pkg/mq"
	"github.com/xiebiao/retailcore/pkg/response"
	"github.com/xiebiao/retailcore/pkg/tracing"
)

// main 主程序入口
// 说明：手动依赖注入(wire.go提供等价的Wire写法,wire gen可生成wire_gen.go)
func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	fmt.Printf("✓ 配置加载成功\n")
	fmt.Printf("  - 服务端口: %d\n", cfg.Server.Port)
	fmt.Printf("  - 运行模式: %s\n", cfg.Server.Mode)
	fmt.Printf("  - 库存库: %s:%d/%s\n", cfg.StockDB.Host, cfg.StockDB.Port, cfg.StockDB.DBName)
	fmt.Printf("  - 销售库: %s:%d/%s\n", cfg.SalesDB.Host, cfg.SalesDB.Port, cfg.SalesDB.DBName)
	fmt.Printf("  - Redis: %s\n", cfg.Redis.Addr())

	// 2. 初始化指标
	metrics.InitMetrics()

	// 3. 初始化链路追踪(可选)
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer("retailcore", cfg.Tracing.CollectorURL)
		if err != nil {
			log.Fatalf("初始化链路追踪失败: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				log.Printf("关闭链路追踪失败: %v", err)
			}
		}()
	}

	// 4. 初始化两个独立的数据库连接
	// 库存库和销售库物理隔离,跨库一致性由Saga保证
	stockDB, err := mysql.NewStockDB(cfg)
	if err != nil {
		log.Fatalf("初始化库存库失败: %v", err)
	}
	salesDB, err := mysql.NewSalesDB(cfg)
	if err != nil {
		log.Fatalf("初始化销售库失败: %v", err)
	}

	// 5. 初始化Redis
	redisClient, err := redis.NewClient(cfg)
	if err != nil {
		log.Fatalf("初始化Redis失败: %v", err)
	}

	// 6. 初始化MQ(对账事件);未配置时降级为Nop,恢复失败只留日志
	var publisher events.Publisher = events.NopPublisher{}
	var mqPublisher *mq.Publisher
	if cfg.MQ.URL != "" {
		mqPublisher, err = mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange, "topic")
		if err != nil {
			log.Fatalf("初始化MQ失败: %v", err)
		}
		defer mqPublisher.Close()
		publisher = mqPublisher
	}

	// 7. 依赖注入（手动组装）
	// Repository ← Ledger/TxManager ← UseCase ← Handler

	// 基础设施层
	stockRepo := mysql.NewStockRepository(stockDB)
	saleRepo := mysql.NewSaleRepository(salesDB)
	refundRepo := mysql.NewRefundRepository(salesDB)
	catalogRepo := mysql.NewCatalogRepository(stockDB)
	txManager := mysql.NewTxManager(salesDB)
	cacheStore := redis.NewCacheStore(redisClient, cfg)
	sessionStore := redis.NewSessionStore(redisClient)
	jwtManager := jwt.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpire,
		cfg.JWT.RefreshTokenExpire,
	)

	// 库存台账访问层(超时+熔断+缓存失效)
	ledger := stockledger.NewLedger(stockRepo, cacheStore, cfg)

	// 应用层
	createSaleUseCase := appsale.NewCreateSaleUseCase(saleRepo, catalogRepo, ledger, cacheStore, 30*time.Second)
	getSaleUseCase := appsale.NewGetSaleUseCase(saleRepo, refundRepo, cacheStore)
	listSalesUseCase := appsale.NewListSalesUseCase(saleRepo, cacheStore)
	recomputeStatusUseCase := appsale.NewRecomputeStatusUseCase(saleRepo, refundRepo, txManager, cacheStore)
	createRefundUseCase := apprefund.NewCreateRefundUseCase(
		saleRepo, refundRepo, txManager, ledger, cacheStore, publisher,
		apprefund.Policy{Window: cfg.Refund.Window, AmountTolerance: cfg.Refund.AmountTolerance},
	)
	queryStockUseCase := appstock.NewQueryStockUseCase(ledger)
	adjustStockUseCase := appstock.NewAdjustStockUseCase(ledger, catalogRepo)
	transferStockUseCase := appstock.NewTransferStockUseCase(ledger, catalogRepo)
	bulkUpdateUseCase := appstock.NewBulkUpdateUseCase(ledger, catalogRepo)

	// 接口层
	saleHandler := handler.NewSaleHandler(createSaleUseCase, getSaleUseCase, listSalesUseCase, recomputeStatusUseCase)
	refundHandler := handler.NewRefundHandler(createRefundUseCase)
	stockHandler := handler.NewStockHandler(queryStockUseCase, adjustStockUseCase, transferStockUseCase, bulkUpdateUseCase)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, sessionStore)

	// 8. 启动对账消费者(MQ已配置时):重放失败的库存恢复
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	if cfg.MQ.URL != "" {
		consumer, err := mq.NewConsumer(cfg.MQ.URL, cfg.MQ.Exchange, "topic",
			"retailcore.stock.reconcile", []string{events.RoutingKeyStockRestoreFailed})
		if err != nil {
			log.Fatalf("初始化对账消费者失败: %v", err)
		}
		defer consumer.Close()

		reconciler := events.NewReconciler(consumer, ledger)
		go func() {
			if err := reconciler.Run(rootCtx); err != nil && rootCtx.Err() == nil {
				log.Printf("⚠️ 对账消费者退出: %v", err)
			}
		}()
		fmt.Printf("✓ 对账消费者已启动 (routing key: %s)\n", events.RoutingKeyStockRestoreFailed)
	}

	// 9. 初始化Gin引擎并注册路由
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	registerRoutes(r, saleHandler, refundHandler, stockHandler, authMiddleware)

	// 10. 启动服务(支持优雅停机)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		fmt.Printf("\n🚀 服务启动成功！\n")
		fmt.Printf("   访问地址: http://localhost%s\n", addr)
		fmt.Printf("   健康检查: http://localhost%s/ping\n", addr)
		fmt.Printf("   指标采集: http://localhost%s/metrics\n", addr)
		fmt.Printf("   API文档: http://localhost%s/swagger/index.html\n", addr)
		fmt.Printf("\n按Ctrl+C停止服务\n\n")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("启动服务失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\n正在停机...")
	rootCancel() // 先停对账消费者

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("停机失败: %v", err)
	}
	fmt.Println("✓ 服务已停止")
}

// registerRoutes 注册路由
func registerRoutes(
	r *gin.Engine,
	saleHandler *handler.SaleHandler,
	refundHandler *handler.RefundHandler,
	stockHandler *handler.StockHandler,
	authMiddleware *middleware.AuthMiddleware,
) {
	// 健康检查
	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "pong",
			"status":  "healthy",
		})
	})

	// Prometheus指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API路由组(交易核心的接口都需要登录)
	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware.RequireAuth())
	{
		// 销售模块
		sales := v1.Group("/sales")
		{
			sales.POST("", saleHandler.CreateSale)
			sales.GET("", saleHandler.ListSales)
			sales.GET("/:id", saleHandler.GetSale)

			// 退款挂在销售单下:退款永远针对一张销售单
			sales.POST("/:id/refunds", refundHandler.CreateRefund)

			// 状态重算:内部接口,仅店长/总部
			sales.PATCH("/:id/status",
				authMiddleware.RequireRole("manager", "admin"),
				saleHandler.RecomputeStatus)
		}

		// 库存模块
		stocks := v1.Group("/stocks")
		{
			stocks.GET("", stockHandler.GetStock)
			stocks.GET("/check", stockHandler.CheckStock)

			// 变更类接口仅店长/总部
			backoffice := stocks.Group("")
			backoffice.Use(authMiddleware.RequireRole("manager", "admin"))
			{
				backoffice.POST("/adjust", stockHandler.AdjustStock)
				backoffice.POST("/transfer", stockHandler.TransferStock)
				backoffice.POST("/bulk", stockHandler.BulkUpdate)
			}
		}
	}
}
