package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/batgauge/internal/battery"
	"github.com/langchou/batgauge/internal/models"
)

// ChargeRepository 充电数据仓库
type ChargeRepository struct {
	db *DB
}

// NewChargeRepository 创建充电仓库
func NewChargeRepository(db *DB) *ChargeRepository {
	return &ChargeRepository{db: db}
}

const processColumns = `id, car_id, start_time, end_time, start_battery_level, end_battery_level,
			charge_energy_added, charger_power_max, duration_min, outside_temp_avg, cost, source`

// rowQuerier 连接池和事务共有的查询接口
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const insertProcessQuery = `
		INSERT INTO charging_processes (car_id, start_time, end_time, start_battery_level, end_battery_level,
			charge_energy_added, charger_power_max, duration_min, outside_temp_avg, cost, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

func insertProcess(ctx context.Context, q rowQuerier, cp *models.ChargingProcess) error {
	if cp.Source == "" {
		cp.Source = models.SourceLive
	}
	err := q.QueryRow(ctx, insertProcessQuery,
		cp.CarID,
		cp.StartTime,
		cp.EndTime,
		cp.StartBatteryLevel,
		cp.EndBatteryLevel,
		cp.ChargeEnergyAdded,
		cp.ChargerPowerMax,
		cp.DurationMin,
		cp.OutsideTempAvg,
		cp.Cost,
		cp.Source,
	).Scan(&cp.ID)

	if err != nil {
		return fmt.Errorf("insert charging process: %w", mapConstraintError(err))
	}
	return nil
}

// CreateProcess 创建充电过程
func (r *ChargeRepository) CreateProcess(ctx context.Context, cp *models.ChargingProcess) error {
	return insertProcess(ctx, r.db.Pool, cp)
}

// CreateProcesses 在同一个事务中写入一批充电过程，任一失败则全部回滚
func (r *ChargeRepository) CreateProcesses(ctx context.Context, cps []*models.ChargingProcess) error {
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		for i, cp := range cps {
			if err := insertProcess(ctx, tx, cp); err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		// 回滚后 ID 不再有效
		for _, cp := range cps {
			cp.ID = 0
		}
		return fmt.Errorf("import charging processes: %w", err)
	}
	return nil
}

// CompleteProcess 完成充电过程
func (r *ChargeRepository) CompleteProcess(ctx context.Context, cp *models.ChargingProcess) error {
	query := `
		UPDATE charging_processes SET
			end_time = $1,
			end_battery_level = $2,
			charge_energy_added = $3,
			charger_power_max = $4,
			duration_min = $5,
			outside_temp_avg = $6,
			cost = $7
		WHERE id = $8 AND end_time IS NULL
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		cp.EndTime,
		cp.EndBatteryLevel,
		cp.ChargeEnergyAdded,
		cp.ChargerPowerMax,
		cp.DurationMin,
		cp.OutsideTempAvg,
		cp.Cost,
		cp.ID,
	)
	if err != nil {
		return fmt.Errorf("complete charging process: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete charging process %d: %w", cp.ID, ErrNotFound)
	}
	return nil
}

// GetProcessByID 获取充电过程
func (r *ChargeRepository) GetProcessByID(ctx context.Context, id int64) (*models.ChargingProcess, error) {
	query := `SELECT ` + processColumns + ` FROM charging_processes WHERE id = $1`
	cp, err := scanProcess(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get charging process: %w", err)
	}
	return cp, nil
}

// ListProcessesByCarID 获取车辆充电记录列表
func (r *ChargeRepository) ListProcessesByCarID(ctx context.Context, carID int64, limit, offset int) ([]*models.ChargingProcess, error) {
	query := `SELECT ` + processColumns + `
		FROM charging_processes WHERE car_id = $1 ORDER BY start_time DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Pool.Query(ctx, query, carID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list charging processes: %w", err)
	}
	defer rows.Close()

	var processes []*models.ChargingProcess
	for rows.Next() {
		cp, err := scanProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan charging process: %w", err)
		}
		processes = append(processes, cp)
	}

	return processes, rows.Err()
}

// GetActiveProcess 获取进行中的充电
func (r *ChargeRepository) GetActiveProcess(ctx context.Context, carID int64) (*models.ChargingProcess, error) {
	query := `SELECT ` + processColumns + `
		FROM charging_processes WHERE car_id = $1 AND end_time IS NULL AND source = 'live'
		ORDER BY start_time DESC LIMIT 1`
	cp, err := scanProcess(r.db.Pool.QueryRow(ctx, query, carID))
	if err != nil {
		return nil, fmt.Errorf("get active charging process: %w", err)
	}
	return cp, nil
}

// ListRecordsSince 加载分析所需的充电记录（开始时间不早于 since，按开始时间升序）
func (r *ChargeRepository) ListRecordsSince(ctx context.Context, carID int64, since time.Time) ([]battery.ChargingRecord, error) {
	query := `SELECT ` + processColumns + `
		FROM charging_processes WHERE car_id = $1 AND start_time >= $2 ORDER BY start_time`
	rows, err := r.db.Pool.Query(ctx, query, carID, since)
	if err != nil {
		return nil, fmt.Errorf("list charging records: %w", err)
	}
	defer rows.Close()

	var records []battery.ChargingRecord
	for rows.Next() {
		cp, err := scanProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan charging record: %w", err)
		}
		records = append(records, cp.Record())
	}

	return records, rows.Err()
}

// CountProcessesByCarID 统计车辆充电次数
func (r *ChargeRepository) CountProcessesByCarID(ctx context.Context, carID int64) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM charging_processes WHERE car_id = $1`, carID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count charging processes: %w", err)
	}
	return count, nil
}

func scanProcess(row pgx.Row) (*models.ChargingProcess, error) {
	cp := &models.ChargingProcess{}
	err := row.Scan(
		&cp.ID,
		&cp.CarID,
		&cp.StartTime,
		&cp.EndTime,
		&cp.StartBatteryLevel,
		&cp.EndBatteryLevel,
		&cp.ChargeEnergyAdded,
		&cp.ChargerPowerMax,
		&cp.DurationMin,
		&cp.OutsideTempAvg,
		&cp.Cost,
		&cp.Source,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return cp, nil
}
