package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/batgauge/internal/models"
	"github.com/langchou/batgauge/internal/repository"
	"github.com/langchou/batgauge/internal/state"
)

var (
	// ErrSessionActive 已有进行中的充电
	ErrSessionActive = errors.New("charging session already active")
	// ErrNoActiveSession 没有进行中的充电
	ErrNoActiveSession = errors.New("no active charging session")
	// ErrInvalidSession 充电数据不合法
	ErrInvalidSession = errors.New("invalid charging session")
)

// ChargeStore 充电记录存储
type ChargeStore interface {
	CreateProcess(ctx context.Context, cp *models.ChargingProcess) error
	CreateProcesses(ctx context.Context, cps []*models.ChargingProcess) error
	CompleteProcess(ctx context.Context, cp *models.ChargingProcess) error
	GetActiveProcess(ctx context.Context, carID int64) (*models.ChargingProcess, error)
}

// ReportRefresher 充电数据变化后刷新报告
type ReportRefresher interface {
	Invalidate(carID int64)
	Recompute(carID int64)
}

// ChargingService 充电会话服务
type ChargingService struct {
	logger  *zap.Logger
	cars    CarStore
	charges ChargeStore
	reports ReportRefresher
	states  *state.Manager
}

// NewChargingService 创建充电会话服务
func NewChargingService(logger *zap.Logger, cars CarStore, charges ChargeStore, reports ReportRefresher) *ChargingService {
	s := &ChargingService{
		logger:  logger.With(zap.String("component", "charging_service")),
		cars:    cars,
		charges: charges,
		reports: reports,
	}
	s.states = state.NewManager(s.onStateChange)
	return s
}

// onStateChange 在状态机锁内执行，只做调度
func (s *ChargingService) onStateChange(carID int64, from, to string) {
	s.logger.Info("Charging state changed",
		zap.Int64("car_id", carID),
		zap.String("from", from),
		zap.String("to", to),
	)
	if from == state.StateCharging && to == state.StateIdle {
		s.reports.Recompute(carID)
	}
}

// machine 获取状态机，首次访问时根据数据库中未结束的充电恢复状态
func (s *ChargingService) machine(ctx context.Context, carID int64) (*state.Machine, error) {
	if m, ok := s.states.Get(carID); ok {
		return m, nil
	}

	if _, err := s.cars.GetByID(ctx, carID); err != nil {
		return nil, err
	}

	initial := state.StateIdle
	active, err := s.charges.GetActiveProcess(ctx, carID)
	switch {
	case err == nil:
		initial = state.StateCharging
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	m := s.states.GetOrCreate(carID, initial)
	if active != nil {
		m.UpdateState(func(st *state.SessionState) {
			if st.ProcessID == nil {
				id := active.ID
				st.ProcessID = &id
				st.Since = active.StartTime
				st.BatteryLevel = active.StartBatteryLevel
			}
		})
	}
	return m, nil
}

// StartSession 开始充电
func (s *ChargingService) StartSession(ctx context.Context, carID int64, startLevel *int, startTime time.Time) (*models.ChargingProcess, error) {
	if !validLevel(startLevel) {
		return nil, fmt.Errorf("%w: start battery level out of range", ErrInvalidSession)
	}
	if startTime.IsZero() {
		startTime = time.Now()
	}

	m, err := s.machine(ctx, carID)
	if err != nil {
		return nil, err
	}
	cp := &models.ChargingProcess{
		CarID:             carID,
		StartTime:         startTime,
		StartBatteryLevel: startLevel,
		Source:            models.SourceLive,
	}
	// 检查状态、写库和触发事件在同一把锁内完成，同一辆车的并发开始只有一个成功
	err = m.TryTrigger(state.EventStartCharging, func(st *state.SessionState) error {
		if err := s.charges.CreateProcess(ctx, cp); err != nil {
			return err
		}
		id := cp.ID
		st.ProcessID = &id
		st.BatteryLevel = startLevel
		return nil
	})
	switch {
	case errors.Is(err, state.ErrTransitionNotAllowed), errors.Is(err, repository.ErrConflict):
		return nil, ErrSessionActive
	case err != nil:
		return nil, err
	}

	s.logger.Info("Charging session started", zap.Int64("car_id", carID), zap.Int64("charging_process_id", cp.ID))
	return cp, nil
}

// CompleteSession 结束充电，状态回到 idle 后触发报告重算
func (s *ChargingService) CompleteSession(ctx context.Context, carID int64, endLevel *int, energyKwh *float64, endTime time.Time) (*models.ChargingProcess, error) {
	if !validLevel(endLevel) {
		return nil, fmt.Errorf("%w: end battery level out of range", ErrInvalidSession)
	}
	if !validEnergy(energyKwh) {
		return nil, fmt.Errorf("%w: energy must be a non-negative number", ErrInvalidSession)
	}
	if endTime.IsZero() {
		endTime = time.Now()
	}

	m, err := s.machine(ctx, carID)
	if err != nil {
		return nil, err
	}
	var cp *models.ChargingProcess
	err = m.TryTrigger(state.EventStopCharging, func(st *state.SessionState) error {
		active, err := s.charges.GetActiveProcess(ctx, carID)
		if err != nil {
			return err
		}
		if endTime.Before(active.StartTime) {
			return fmt.Errorf("%w: end time before start time", ErrInvalidSession)
		}

		active.EndTime = &endTime
		active.EndBatteryLevel = endLevel
		active.ChargeEnergyAdded = energyKwh
		active.DurationMin = endTime.Sub(active.StartTime).Minutes()
		if err := s.charges.CompleteProcess(ctx, active); err != nil {
			return err
		}
		cp = active
		st.ProcessID = nil
		st.BatteryLevel = endLevel
		return nil
	})
	switch {
	case errors.Is(err, state.ErrTransitionNotAllowed), errors.Is(err, repository.ErrNotFound):
		return nil, ErrNoActiveSession
	case err != nil:
		return nil, err
	}

	s.logger.Info("Charging session completed",
		zap.Int64("car_id", carID),
		zap.Int64("charging_process_id", cp.ID),
		zap.Float64("duration_min", cp.DurationMin),
	)
	return cp, nil
}

// ImportSessions 导入一批已完成的历史充电记录
// 先校验整批，任一条不合法则不写入；写入在一个事务中完成，成功后只失效一次报告缓存
func (s *ChargingService) ImportSessions(ctx context.Context, carID int64, cps []*models.ChargingProcess) (int, error) {
	for i, cp := range cps {
		if err := validateImport(cp); err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
	}
	if _, err := s.cars.GetByID(ctx, carID); err != nil {
		return 0, err
	}
	if len(cps) == 0 {
		return 0, nil
	}

	for _, cp := range cps {
		cp.ID = 0
		cp.CarID = carID
		cp.Source = models.SourceImport
		if cp.EndTime != nil {
			cp.DurationMin = cp.EndTime.Sub(cp.StartTime).Minutes()
		}
	}
	if err := s.charges.CreateProcesses(ctx, cps); err != nil {
		return 0, err
	}

	s.reports.Invalidate(carID)
	return len(cps), nil
}

// State 当前充电会话状态
func (s *ChargingService) State(ctx context.Context, carID int64) (*state.SessionState, error) {
	m, err := s.machine(ctx, carID)
	if err != nil {
		return nil, err
	}
	return m.GetState(), nil
}

// States 所有已加载车辆的会话状态
func (s *ChargingService) States() map[int64]*state.SessionState {
	return s.states.GetAllStates()
}

func validateImport(cp *models.ChargingProcess) error {
	switch {
	case cp == nil:
		return fmt.Errorf("%w: empty record", ErrInvalidSession)
	case cp.StartTime.IsZero():
		return fmt.Errorf("%w: start time is required", ErrInvalidSession)
	case cp.EndTime != nil && cp.EndTime.Before(cp.StartTime):
		return fmt.Errorf("%w: end time before start time", ErrInvalidSession)
	case !validLevel(cp.StartBatteryLevel), !validLevel(cp.EndBatteryLevel):
		return fmt.Errorf("%w: battery level out of range", ErrInvalidSession)
	case !validEnergy(cp.ChargeEnergyAdded):
		return fmt.Errorf("%w: energy must be a non-negative number", ErrInvalidSession)
	}
	return nil
}

func validLevel(v *int) bool {
	return v == nil || (*v >= 0 && *v <= 100)
}

func validEnergy(v *float64) bool {
	return v == nil || (!math.IsNaN(*v) && !math.IsInf(*v, 0) && *v >= 0)
}
