package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/langchou/batgauge/internal/battery"
	"github.com/langchou/batgauge/internal/models"
	"github.com/langchou/batgauge/internal/repository"
)

type fakeCars struct {
	cars map[int64]*models.Car
}

func newFakeCars(cars ...*models.Car) *fakeCars {
	f := &fakeCars{cars: make(map[int64]*models.Car)}
	for _, c := range cars {
		f.cars[c.ID] = c
	}
	return f
}

func (f *fakeCars) GetByID(_ context.Context, id int64) (*models.Car, error) {
	c, ok := f.cars[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

type fakeRecords struct {
	records []battery.ChargingRecord
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *fakeRecords) ListRecordsSince(ctx context.Context, _ int64, since time.Time) ([]battery.ChargingRecord, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	var out []battery.ChargingRecord
	for _, r := range f.records {
		if !r.StartTime.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeReports struct {
	mu    sync.Mutex
	saved []*battery.Report
	fleet []models.FleetHealth
}

func (f *fakeReports) Save(_ context.Context, _ int64, report *battery.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, report)
	return nil
}

func (f *fakeReports) ListByCarID(_ context.Context, carID int64, limit int) ([]*models.BatteryHealthSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.BatteryHealthSnapshot
	for i := len(f.saved) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, &models.BatteryHealthSnapshot{CarID: carID, Health: f.saved[i].Health, Report: f.saved[i]})
	}
	return out, nil
}

func (f *fakeReports) FleetSummary(context.Context) ([]models.FleetHealth, error) {
	return f.fleet, nil
}

func (f *fakeReports) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakePublisher struct {
	mu   sync.Mutex
	cars []int64
	err  error
}

func (f *fakePublisher) PublishReport(_ context.Context, carID int64, _ *battery.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cars = append(f.cars, carID)
	return f.err
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeBroadcaster) BroadcastToCar(_ int64, msgType string, _ interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msgType)
}

type fakeCharges struct {
	mu        sync.Mutex
	nextID    int64
	processes map[int64]*models.ChargingProcess
	batches   int
	batchErr  error
}

func newFakeCharges() *fakeCharges {
	return &fakeCharges{processes: make(map[int64]*models.ChargingProcess)}
}

func (f *fakeCharges) CreateProcess(_ context.Context, cp *models.ChargingProcess) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cp.ID = f.nextID
	stored := *cp
	f.processes[cp.ID] = &stored
	return nil
}

func (f *fakeCharges) CreateProcesses(_ context.Context, cps []*models.ChargingProcess) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	if f.batchErr != nil {
		return f.batchErr
	}
	for _, cp := range cps {
		f.nextID++
		cp.ID = f.nextID
		stored := *cp
		f.processes[cp.ID] = &stored
	}
	return nil
}

func (f *fakeCharges) CompleteProcess(_ context.Context, cp *models.ChargingProcess) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.processes[cp.ID]
	if !ok || stored.EndTime != nil {
		return repository.ErrNotFound
	}
	*stored = *cp
	return nil
}

func (f *fakeCharges) GetActiveProcess(_ context.Context, carID int64) (*models.ChargingProcess, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cp := range f.processes {
		if cp.CarID == carID && cp.EndTime == nil && cp.Source == models.SourceLive {
			found := *cp
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeRefresher struct {
	mu          sync.Mutex
	invalidated []int64
	recomputed  []int64
	done        chan int64
}

func (f *fakeRefresher) Invalidate(carID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, carID)
}

func (f *fakeRefresher) Recompute(carID int64) {
	f.mu.Lock()
	f.recomputed = append(f.recomputed, carID)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- carID
	}
}

var errBoom = errors.New("boom")
