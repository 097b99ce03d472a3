package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/batgauge/internal/battery"
	"github.com/langchou/batgauge/internal/models"
	"github.com/langchou/batgauge/internal/repository"
	"github.com/langchou/batgauge/internal/service"
	"github.com/langchou/batgauge/internal/state"
)

type fakeCarStore struct {
	cars map[int64]*models.Car
}

func (f *fakeCarStore) List(context.Context) ([]*models.Car, error) {
	var out []*models.Car
	for _, c := range f.cars {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCarStore) GetByID(_ context.Context, id int64) (*models.Car, error) {
	if c, ok := f.cars[id]; ok {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCarStore) Upsert(_ context.Context, car *models.Car) error {
	car.ID = int64(len(f.cars) + 1)
	f.cars[car.ID] = car
	return nil
}

type fakeChargeStore struct {
	processes []*models.ChargingProcess
}

func (f *fakeChargeStore) ListProcessesByCarID(_ context.Context, _ int64, limit, offset int) ([]*models.ChargingProcess, error) {
	if offset >= len(f.processes) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.processes) {
		end = len(f.processes)
	}
	return f.processes[offset:end], nil
}

func (f *fakeChargeStore) CountProcessesByCarID(context.Context, int64) (int64, error) {
	return int64(len(f.processes)), nil
}

func (f *fakeChargeStore) GetProcessByID(_ context.Context, id int64) (*models.ChargingProcess, error) {
	for _, cp := range f.processes {
		if cp.ID == id {
			return cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeBatteryService struct {
	report  *battery.Report
	err     error
	refresh bool
}

func (f *fakeBatteryService) GetReport(_ context.Context, _ int64, refresh bool) (*battery.Report, error) {
	f.refresh = refresh
	return f.report, f.err
}

func (f *fakeBatteryService) History(_ context.Context, carID int64, limit int) ([]*models.BatteryHealthSnapshot, error) {
	return []*models.BatteryHealthSnapshot{{CarID: carID, Health: battery.HealthGood}}, nil
}

func (f *fakeBatteryService) Fleet(context.Context) ([]models.FleetHealth, error) {
	return []models.FleetHealth{{Health: battery.HealthGood, Cars: 2}}, nil
}

type fakeChargingService struct {
	startErr    error
	completeErr error
	importCalls int
	imported    []*models.ChargingProcess
}

func (f *fakeChargingService) StartSession(_ context.Context, carID int64, level *int, start time.Time) (*models.ChargingProcess, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &models.ChargingProcess{ID: 1, CarID: carID, StartTime: start, StartBatteryLevel: level}, nil
}

func (f *fakeChargingService) CompleteSession(_ context.Context, carID int64, level *int, energy *float64, end time.Time) (*models.ChargingProcess, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &models.ChargingProcess{ID: 1, CarID: carID, EndTime: &end, EndBatteryLevel: level, ChargeEnergyAdded: energy}, nil
}

func (f *fakeChargingService) ImportSessions(_ context.Context, _ int64, cps []*models.ChargingProcess) (int, error) {
	f.importCalls++
	for i, cp := range cps {
		if cp.StartTime.IsZero() || (cp.EndBatteryLevel != nil && *cp.EndBatteryLevel > 100) {
			return 0, fmt.Errorf("record %d: %w", i, service.ErrInvalidSession)
		}
	}
	f.imported = append(f.imported, cps...)
	return len(cps), nil
}

func (f *fakeChargingService) State(_ context.Context, carID int64) (*state.SessionState, error) {
	return &state.SessionState{CarID: carID, CurrentState: state.StateIdle}, nil
}

type testServer struct {
	router   *gin.Engine
	charges  *fakeChargeStore
	cars     *fakeCarStore
	battery  *fakeBatteryService
	charging *fakeChargingService
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)
	ts := &testServer{
		cars: &fakeCarStore{cars: map[int64]*models.Car{
			1: {ID: 1, VIN: "5YJ3E1EA7KF000001", BatteryCapacityKwh: 60},
		}},
		battery:  &fakeBatteryService{report: &battery.Report{Health: battery.HealthGood, Confidence: battery.ConfidenceMedium, DataPoints: 12}},
		charging: &fakeChargingService{},
		charges: &fakeChargeStore{processes: []*models.ChargingProcess{
			{ID: 7, CarID: 1, StartTime: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), Source: models.SourceLive},
		}},
	}
	ts.router = gin.New()
	h := NewHandler(zap.NewNop(), nil, ts.cars, ts.charges, ts.battery, ts.charging, nil, nil)
	h.RegisterRoutes(ts.router)
	return ts
}

func (ts *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestGetBatteryHealth(t *testing.T) {
	ts := newTestServer()

	w := ts.do(http.MethodGet, "/api/cars/1/battery-health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, battery.HealthGood, data["health"])
	assert.False(t, ts.battery.refresh)

	w = ts.do(http.MethodGet, "/api/cars/1/battery-health?refresh=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ts.battery.refresh)
}

func TestGetBatteryHealthErrors(t *testing.T) {
	cases := []struct {
		name string
		path string
		err  error
		code int
	}{
		{"bad id", "/api/cars/abc/battery-health", nil, http.StatusBadRequest},
		{"bad refresh", "/api/cars/1/battery-health?refresh=maybe", nil, http.StatusBadRequest},
		{"unknown car", "/api/cars/9/battery-health", repository.ErrNotFound, http.StatusNotFound},
		{"invalid capacity", "/api/cars/1/battery-health", &battery.InvalidInputError{Field: "batteryCapacityKwh", Reason: "must be a positive number"}, http.StatusUnprocessableEntity},
		{"internal", "/api/cars/1/battery-health", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer()
			ts.battery.err = tc.err
			w := ts.do(http.MethodGet, tc.path, nil)
			assert.Equal(t, tc.code, w.Code)
			assert.Contains(t, decode(t, w), "error")
		})
	}
}

func TestCreateCar(t *testing.T) {
	ts := newTestServer()

	w := ts.do(http.MethodPost, "/api/cars", CreateCarRequest{VIN: " 5yj3e1ea7kf000002 ", BatteryCapacityKwh: 75})
	require.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "5YJ3E1EA7KF000002", data["vin"])

	w = ts.do(http.MethodPost, "/api/cars", CreateCarRequest{VIN: "X", BatteryCapacityKwh: 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCar(t *testing.T) {
	ts := newTestServer()

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/cars/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/cars/2", nil).Code)
}

func TestChargingEndpoints(t *testing.T) {
	ts := newTestServer()

	w := ts.do(http.MethodPost, "/api/cars/1/charges/start", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	level := 80
	w = ts.do(http.MethodPost, "/api/cars/1/charges/complete", CompleteChargeRequest{BatteryLevel: &level})
	assert.Equal(t, http.StatusOK, w.Code)

	ts.charging.startErr = service.ErrSessionActive
	w = ts.do(http.MethodPost, "/api/cars/1/charges/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	ts.charging.completeErr = service.ErrInvalidSession
	w = ts.do(http.MethodPost, "/api/cars/1/charges/complete", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(http.MethodGet, "/api/cars/1/charging-state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, state.StateIdle, data["state"])
}

func TestImportCharges(t *testing.T) {
	ts := newTestServer()
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	w := ts.do(http.MethodPost, "/api/cars/1/charges", []models.ChargingProcess{
		{StartTime: start, EndTime: &end},
		{StartTime: start.Add(24 * time.Hour)},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, ts.charging.imported, 2)
	assert.Equal(t, 1, ts.charging.importCalls)
	assert.Equal(t, float64(2), decode(t, w)["data"].(map[string]interface{})["imported"])

	w = ts.do(http.MethodPost, "/api/cars/1/charges", []map[string]interface{}{{}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestImportChargesBadRecordStoresNothing(t *testing.T) {
	ts := newTestServer()
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	over := 150

	w := ts.do(http.MethodPost, "/api/cars/1/charges", []models.ChargingProcess{
		{StartTime: start},
		{StartTime: start.Add(24 * time.Hour)},
		{StartTime: start.Add(48 * time.Hour), EndBatteryLevel: &over},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode(t, w)["error"], "record 2")
	// 整批只提交一次，前两条也没有写入
	assert.Equal(t, 1, ts.charging.importCalls)
	assert.Empty(t, ts.charging.imported)
}

func TestHistoryAndFleet(t *testing.T) {
	ts := newTestServer()

	w := ts.do(http.MethodGet, "/api/cars/1/battery-health/history?limit=500", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = ts.do(http.MethodGet, "/api/admin/battery-health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	fleet := decode(t, w)["data"].([]interface{})
	assert.Equal(t, float64(2), fleet[0].(map[string]interface{})["cars"])
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer()

	w := ts.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestListAndGetCharges(t *testing.T) {
	ts := newTestServer()

	w := ts.do(http.MethodGet, "/api/cars/1/charges?page=1&per_page=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, float64(1), body["pagination"].(map[string]interface{})["total"])

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/charges/7", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/charges/8", nil).Code)
}

func TestHealthCheckDatabaseDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(zap.NewNop(), fakePinger{err: errors.New("refused")}, &fakeCarStore{}, &fakeChargeStore{}, &fakeBatteryService{}, &fakeChargingService{}, nil, nil).RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
