package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/langchou/batgauge/internal/battery"
	"github.com/langchou/batgauge/internal/cache"
	"github.com/langchou/batgauge/internal/models"
)

// MsgTypeBatteryHealth WebSocket 报告更新消息类型
const MsgTypeBatteryHealth = "battery_health"

// CarStore 车辆查询
type CarStore interface {
	GetByID(ctx context.Context, id int64) (*models.Car, error)
}

// RecordLoader 充电记录加载
type RecordLoader interface {
	ListRecordsSince(ctx context.Context, carID int64, since time.Time) ([]battery.ChargingRecord, error)
}

// ReportStore 报告快照存储
type ReportStore interface {
	Save(ctx context.Context, carID int64, report *battery.Report) error
	ListByCarID(ctx context.Context, carID int64, limit int) ([]*models.BatteryHealthSnapshot, error)
	FleetSummary(ctx context.Context) ([]models.FleetHealth, error)
}

// ReportPublisher 报告事件发布
type ReportPublisher interface {
	PublishReport(ctx context.Context, carID int64, report *battery.Report) error
}

// Broadcaster 推送给订阅了该车辆的 WebSocket 客户端
type Broadcaster interface {
	BroadcastToCar(carID int64, msgType string, data interface{})
}

// Observer 计算过程指标
type Observer interface {
	cache.Observer
	ObserveReport(health string, d time.Duration)
	ObserveError()
	ObserveCoalesced()
	ObservePublish(err error)
}

type nopObserver struct{}

func (nopObserver) CacheHit()                           {}
func (nopObserver) CacheMiss()                          {}
func (nopObserver) ObserveReport(string, time.Duration) {}
func (nopObserver) ObserveError()                       {}
func (nopObserver) ObserveCoalesced()                   {}
func (nopObserver) ObservePublish(error)                {}

// BatteryDeps BatteryService 的依赖，Publisher/Broadcaster/Observer 可以为 nil
type BatteryDeps struct {
	Cars        CarStore
	Records     RecordLoader
	Reports     ReportStore
	Publisher   ReportPublisher
	Broadcaster Broadcaster
	Observer    Observer
}

// BatteryService 电池健康报告服务
// 报告带 TTL 缓存，同一辆车的并发计算通过 singleflight 合并
type BatteryService struct {
	logger   *zap.Logger
	analyzer *battery.Analyzer
	deps     BatteryDeps
	cache    *cache.Cache[*battery.Report]
	group    singleflight.Group
	timeout  time.Duration

	mu       sync.Mutex
	versions map[int64]uint64 // 每次失效递增，防止过期计算写回缓存

	wg sync.WaitGroup
}

// NewBatteryService 创建电池健康报告服务
func NewBatteryService(
	logger *zap.Logger,
	analyzer *battery.Analyzer,
	deps BatteryDeps,
	cacheTTL time.Duration,
	timeout time.Duration,
) *BatteryService {
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	return &BatteryService{
		logger:   logger.With(zap.String("component", "battery_service")),
		analyzer: analyzer,
		deps:     deps,
		cache:    cache.New[*battery.Report](cacheTTL, deps.Observer),
		timeout:  timeout,
		versions: make(map[int64]uint64),
	}
}

// GetReport 获取电池健康报告，refresh 为 true 时跳过缓存
func (s *BatteryService) GetReport(ctx context.Context, carID int64, refresh bool) (*battery.Report, error) {
	key := cache.ReportKey(carID)
	if !refresh {
		if report, ok := s.cache.Get(key); ok {
			return report, nil
		}
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		// 计算结果由多个请求共享，不跟随单个请求取消
		computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.compute(computeCtx, carID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.deps.Observer.ObserveCoalesced()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*battery.Report), nil
	}
}

// compute 加载数据、计算报告、写缓存，然后持久化、发布并推送
func (s *BatteryService) compute(ctx context.Context, carID int64) (*battery.Report, error) {
	start := time.Now()
	version := s.version(carID)

	car, err := s.deps.Cars.GetByID(ctx, carID)
	if err != nil {
		s.deps.Observer.ObserveError()
		return nil, fmt.Errorf("load car %d: %w", carID, err)
	}

	since := time.Now().Add(-s.analyzer.Lookback())
	records, err := s.deps.Records.ListRecordsSince(ctx, carID, since)
	if err != nil {
		s.deps.Observer.ObserveError()
		return nil, fmt.Errorf("load charging records for car %d: %w", carID, err)
	}

	report, err := s.analyzer.Compute(records, car.Profile())
	if err != nil {
		s.deps.Observer.ObserveError()
		return nil, fmt.Errorf("compute battery health for car %d: %w", carID, err)
	}
	s.deps.Observer.ObserveReport(report.Health, time.Since(start))

	s.mu.Lock()
	if s.versions[carID] == version {
		s.cache.Set(cache.ReportKey(carID), report)
	}
	s.mu.Unlock()

	s.logger.Info("Computed battery health",
		zap.Int64("car_id", carID),
		zap.String("health", report.Health),
		zap.String("confidence", report.Confidence),
		zap.Int("data_points", report.DataPoints),
		zap.Duration("took", time.Since(start)),
	)

	s.distribute(ctx, carID, report)
	return report, nil
}

// distribute 保存快照、发布事件、推送 WebSocket，失败只记录日志
func (s *BatteryService) distribute(ctx context.Context, carID int64, report *battery.Report) {
	if s.deps.Reports != nil {
		if err := s.deps.Reports.Save(ctx, carID, report); err != nil {
			s.logger.Warn("Failed to save battery health snapshot", zap.Int64("car_id", carID), zap.Error(err))
		}
	}

	if s.deps.Publisher != nil {
		err := s.deps.Publisher.PublishReport(ctx, carID, report)
		s.deps.Observer.ObservePublish(err)
		if err != nil {
			s.logger.Warn("Failed to publish battery health event", zap.Int64("car_id", carID), zap.Error(err))
		}
	}

	if s.deps.Broadcaster != nil {
		s.deps.Broadcaster.BroadcastToCar(carID, MsgTypeBatteryHealth, report)
	}
}

func (s *BatteryService) version(carID int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[carID]
}

// Invalidate 使缓存的报告失效
func (s *BatteryService) Invalidate(carID int64) {
	key := cache.ReportKey(carID)
	s.mu.Lock()
	s.versions[carID]++
	s.cache.Delete(key)
	s.mu.Unlock()
	s.group.Forget(key)
}

// Recompute 失效并在后台重新计算
func (s *BatteryService) Recompute(carID int64) {
	s.Invalidate(carID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if _, err := s.GetReport(ctx, carID, true); err != nil {
			s.logger.Warn("Background battery health recompute failed", zap.Int64("car_id", carID), zap.Error(err))
		}
	}()
}

// Wait 等待后台计算结束
func (s *BatteryService) Wait() {
	s.wg.Wait()
}

// History 历史报告
func (s *BatteryService) History(ctx context.Context, carID int64, limit int) ([]*models.BatteryHealthSnapshot, error) {
	snapshots, err := s.deps.Reports.ListByCarID(ctx, carID, limit)
	if err != nil {
		return nil, fmt.Errorf("list battery health history: %w", err)
	}
	return snapshots, nil
}

// Fleet 车队健康等级分布
func (s *BatteryService) Fleet(ctx context.Context) ([]models.FleetHealth, error) {
	summary, err := s.deps.Reports.FleetSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("fleet battery health: %w", err)
	}
	return summary, nil
}
