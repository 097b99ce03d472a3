package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// 充电会话状态
const (
	StateIdle     = "idle"
	StateCharging = "charging"
)

// 事件常量
const (
	EventStartCharging = "start_charging"
	EventStopCharging  = "stop_charging"
)

// ErrTransitionNotAllowed 当前状态不允许该事件
var ErrTransitionNotAllowed = errors.New("transition not allowed")

// SessionState 车辆充电会话状态
type SessionState struct {
	CarID        int64     `json:"car_id"`
	CurrentState string    `json:"state"`
	Since        time.Time `json:"since"`
	ProcessID    *int64    `json:"charging_process_id,omitempty"` // 进行中的充电记录
	BatteryLevel *int      `json:"battery_level,omitempty"`       // 最近一次上报的电量
}

// Machine 单车充电会话状态机
type Machine struct {
	mu            sync.RWMutex
	carID         int64
	fsm           *fsm.FSM
	state         *SessionState
	onStateChange func(carID int64, from, to string)
}

// NewMachine 创建状态机
func NewMachine(carID int64, initialState string, onStateChange func(carID int64, from, to string)) *Machine {
	if initialState == "" {
		initialState = StateIdle
	}

	m := &Machine{
		carID:         carID,
		onStateChange: onStateChange,
		state: &SessionState{
			CarID:        carID,
			CurrentState: initialState,
			Since:        time.Now(),
		},
	}

	m.fsm = fsm.NewFSM(
		initialState,
		fsm.Events{
			{Name: EventStartCharging, Src: []string{StateIdle}, Dst: StateCharging},
			{Name: EventStopCharging, Src: []string{StateCharging}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(m.carID, e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// CurrentState 获取当前状态
func (m *Machine) CurrentState() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// GetState 获取完整状态（副本）
func (m *Machine) GetState() *SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stateCopy := *m.state
	stateCopy.CurrentState = m.fsm.Current()
	return &stateCopy
}

// UpdateState 更新状态数据
func (m *Machine) UpdateState(update func(s *SessionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	update(m.state)
}

// Trigger 触发事件
// onStateChange 在持有锁时被调用，回调内不能再访问该状态机
func (m *Machine) Trigger(event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fire(event)
}

// TryTrigger 在同一把锁内检查、执行 action 并触发事件
// action 返回错误时状态不变；action 内只能通过参数修改状态，不能调用该状态机的其他方法。
// 同一进程内的并发请求由这把锁串行化，跨进程仍依赖数据库唯一索引。
func (m *Machine) TryTrigger(event string, action func(s *SessionState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.fsm.Can(event) {
		return fmt.Errorf("trigger event %s from %s: %w", event, m.fsm.Current(), ErrTransitionNotAllowed)
	}
	if action != nil {
		if err := action(m.state); err != nil {
			return err
		}
	}
	return m.fire(event)
}

func (m *Machine) fire(event string) error {
	if err := m.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}

	m.state.CurrentState = m.fsm.Current()
	m.state.Since = time.Now()
	return nil
}

// Manager 状态机管理器
type Manager struct {
	mu       sync.RWMutex
	machines map[int64]*Machine
	onChange func(carID int64, from, to string)
}

// NewManager 创建管理器
func NewManager(onChange func(carID int64, from, to string)) *Manager {
	return &Manager{
		machines: make(map[int64]*Machine),
		onChange: onChange,
	}
}

// GetOrCreate 获取或创建状态机
func (m *Manager) GetOrCreate(carID int64, initialState string) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if machine, ok := m.machines[carID]; ok {
		return machine
	}

	machine := NewMachine(carID, initialState, m.onChange)
	m.machines[carID] = machine
	return machine
}

// Get 获取状态机
func (m *Manager) Get(carID int64) (*Machine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	machine, ok := m.machines[carID]
	return machine, ok
}

// GetAllStates 获取所有车辆状态
func (m *Manager) GetAllStates() map[int64]*SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[int64]*SessionState)
	for carID, machine := range m.machines {
		states[carID] = machine.GetState()
	}
	return states
}
