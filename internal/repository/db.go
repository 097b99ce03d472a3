package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("not found")
	// ErrConflict 违反唯一约束
	ErrConflict = errors.New("conflict")
)

const uniqueViolation = "23505"

// mapConstraintError 唯一约束冲突映射为 ErrConflict
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrConflict)
	}
	return err
}

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Ping 检查数据库连接
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateCars,
		migrationCreateChargingProcesses,
		migrationCreateBatteryHealthReports,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// 数据库迁移 SQL
const migrationCreateCars = `
CREATE TABLE IF NOT EXISTS cars (
    id BIGSERIAL PRIMARY KEY,
    vin VARCHAR(17) NOT NULL UNIQUE,
    name VARCHAR(255) NOT NULL DEFAULT '',
    model VARCHAR(50) NOT NULL DEFAULT '',
    battery_capacity_kwh DOUBLE PRECISION NOT NULL CHECK (battery_capacity_kwh > 0),
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`

const migrationCreateChargingProcesses = `
CREATE TABLE IF NOT EXISTS charging_processes (
    id BIGSERIAL PRIMARY KEY,
    car_id BIGINT NOT NULL REFERENCES cars(id),
    start_time TIMESTAMP WITH TIME ZONE NOT NULL,
    end_time TIMESTAMP WITH TIME ZONE,
    start_battery_level INT,
    end_battery_level INT,
    charge_energy_added DOUBLE PRECISION,
    charger_power_max INT,
    duration_min DOUBLE PRECISION NOT NULL DEFAULT 0,
    outside_temp_avg DOUBLE PRECISION,
    cost DOUBLE PRECISION,
    source VARCHAR(20) NOT NULL DEFAULT 'live'
);
CREATE INDEX IF NOT EXISTS idx_charging_processes_car_id ON charging_processes(car_id);
CREATE INDEX IF NOT EXISTS idx_charging_processes_start_time ON charging_processes(start_time);
-- 每辆车最多一个进行中的实时充电，导入的历史记录不受限制
CREATE UNIQUE INDEX IF NOT EXISTS idx_charging_processes_active ON charging_processes(car_id) WHERE end_time IS NULL AND source = 'live';
`

// 电池健康报告快照，report 保存完整报告 JSON
const migrationCreateBatteryHealthReports = `
CREATE TABLE IF NOT EXISTS battery_health_reports (
    id BIGSERIAL PRIMARY KEY,
    car_id BIGINT NOT NULL REFERENCES cars(id),
    health VARCHAR(20) NOT NULL,
    confidence VARCHAR(20) NOT NULL,
    data_points INT NOT NULL DEFAULT 0,
    degradation_rate DOUBLE PRECISION,
    report JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_battery_health_reports_car_id ON battery_health_reports(car_id, created_at DESC);
`
