package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/batgauge/internal/battery"
	"github.com/langchou/batgauge/internal/models"
	"github.com/langchou/batgauge/internal/state"
	"github.com/langchou/batgauge/pkg/ws"
)

// Pinger 数据库连通性检查
type Pinger interface {
	Ping(ctx context.Context) error
}

// CarStore 车辆数据
type CarStore interface {
	List(ctx context.Context) ([]*models.Car, error)
	GetByID(ctx context.Context, id int64) (*models.Car, error)
	Upsert(ctx context.Context, car *models.Car) error
}

// ChargeStore 充电记录查询
type ChargeStore interface {
	ListProcessesByCarID(ctx context.Context, carID int64, limit, offset int) ([]*models.ChargingProcess, error)
	CountProcessesByCarID(ctx context.Context, carID int64) (int64, error)
	GetProcessByID(ctx context.Context, id int64) (*models.ChargingProcess, error)
}

// BatteryService 电池健康报告
type BatteryService interface {
	GetReport(ctx context.Context, carID int64, refresh bool) (*battery.Report, error)
	History(ctx context.Context, carID int64, limit int) ([]*models.BatteryHealthSnapshot, error)
	Fleet(ctx context.Context) ([]models.FleetHealth, error)
}

// ChargingService 充电会话
type ChargingService interface {
	StartSession(ctx context.Context, carID int64, startLevel *int, startTime time.Time) (*models.ChargingProcess, error)
	CompleteSession(ctx context.Context, carID int64, endLevel *int, energyKwh *float64, endTime time.Time) (*models.ChargingProcess, error)
	ImportSessions(ctx context.Context, carID int64, cps []*models.ChargingProcess) (int, error)
	State(ctx context.Context, carID int64) (*state.SessionState, error)
}

// Handler HTTP 处理器
type Handler struct {
	logger          *zap.Logger
	db              Pinger
	carRepo         CarStore
	chargeRepo      ChargeStore
	batteryService  BatteryService
	chargingService ChargingService
	wsHub           *ws.Hub
	metrics         http.Handler
	upgrader        websocket.Upgrader
}

// NewHandler 创建处理器，db、wsHub 和 metrics 可以为 nil
func NewHandler(
	logger *zap.Logger,
	db Pinger,
	carRepo CarStore,
	chargeRepo ChargeStore,
	batteryService BatteryService,
	chargingService ChargingService,
	wsHub *ws.Hub,
	metrics http.Handler,
) *Handler {
	return &Handler{
		logger:          logger,
		db:              db,
		carRepo:         carRepo,
		chargeRepo:      chargeRepo,
		batteryService:  batteryService,
		chargingService: chargingService,
		wsHub:           wsHub,
		metrics:         metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		// 车辆
		api.GET("/cars", h.ListCars)
		api.POST("/cars", h.CreateCar)
		api.GET("/cars/:id", h.GetCar)

		// 充电
		api.GET("/cars/:id/charges", h.ListCharges)
		api.POST("/cars/:id/charges", h.ImportCharges)
		api.POST("/cars/:id/charges/start", h.StartCharge)
		api.POST("/cars/:id/charges/complete", h.CompleteCharge)
		api.GET("/cars/:id/charging-state", h.GetChargingState)
		api.GET("/charges/:id", h.GetCharge)

		// 电池健康
		api.GET("/cars/:id/battery-health", h.GetBatteryHealth)
		api.GET("/cars/:id/battery-health/history", h.GetBatteryHealthHistory)

		// 管理
		api.GET("/admin/battery-health", h.GetFleetHealth)
	}

	if h.wsHub != nil {
		r.GET("/ws", h.HandleWebSocket)
	}
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}

	r.GET("/health", h.HealthCheck)
}

// HandleWebSocket WebSocket 处理
// 客户端发送 {"action":"subscribe","car_id":1} 订阅车辆的报告更新
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	clients := 0
	if h.wsHub != nil {
		clients = h.wsHub.ClientCount()
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("Database ping failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "degraded",
				"ws_clients": clients,
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"ws_clients": clients,
	})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid car ID"})
		return 0, false
	}
	return id, true
}
