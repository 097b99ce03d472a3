package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/batgauge/internal/api/handlers"
	"github.com/langchou/batgauge/internal/battery"
	"github.com/langchou/batgauge/internal/config"
	"github.com/langchou/batgauge/internal/events"
	"github.com/langchou/batgauge/internal/metrics"
	"github.com/langchou/batgauge/internal/repository"
	"github.com/langchou/batgauge/internal/service"
	"github.com/langchou/batgauge/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting batgauge",
		zap.String("port", cfg.ServerPort),
		zap.Duration("lookback", cfg.AnalysisLookback),
		zap.String("timezone", cfg.AnalysisTimezone.String()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migrated successfully")

	carRepo := repository.NewCarRepository(db)
	chargeRepo := repository.NewChargeRepository(db)
	reportRepo := repository.NewReportRepository(db)

	m := metrics.New()

	publisher, err := events.NewPublisher(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create event publisher", zap.Error(err))
	}
	defer publisher.Close()

	var reportPublisher service.ReportPublisher
	if publisher.Enabled() {
		reportPublisher = publisher
	}

	wsHub := ws.NewHub(logger)
	go wsHub.Run(ctx)

	analyzer := battery.NewAnalyzer(battery.Options{
		Lookback:        cfg.AnalysisLookback,
		MinimumSessions: cfg.AnalysisMinSessions,
		Location:        cfg.AnalysisTimezone,
	})

	batteryService := service.NewBatteryService(
		logger,
		analyzer,
		service.BatteryDeps{
			Cars:        carRepo,
			Records:     chargeRepo,
			Reports:     reportRepo,
			Publisher:   reportPublisher,
			Broadcaster: wsHub,
			Observer:    m,
		},
		cfg.ReportCacheTTL,
		cfg.RecomputeTimeout,
	)
	chargingService := service.NewChargingService(logger, carRepo, chargeRepo, batteryService)

	// 新连接收到已知车辆的充电会话状态
	wsHub.SetInitDataProvider(func() *ws.InitData {
		return &ws.InitData{States: chargingService.States()}
	})

	handler := handlers.NewHandler(
		logger,
		db,
		carRepo,
		chargeRepo,
		batteryService,
		chargingService,
		wsHub,
		m.Handler(),
	)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr), zap.Bool("kafka", publisher.Enabled()))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// 等待后台重算结束，再关闭发布者和数据库
	batteryService.Wait()
	cancel()

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
