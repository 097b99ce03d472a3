package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/batgauge/internal/models"
)

// CarRepository 车辆数据仓库
type CarRepository struct {
	db *DB
}

// NewCarRepository 创建车辆仓库
func NewCarRepository(db *DB) *CarRepository {
	return &CarRepository{db: db}
}

const carColumns = `id, vin, name, model, battery_capacity_kwh, created_at, updated_at`

// GetByID 通过 ID 获取车辆
func (r *CarRepository) GetByID(ctx context.Context, id int64) (*models.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars WHERE id = $1`
	car, err := scanCar(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get car by id: %w", err)
	}
	return car, nil
}

// List 获取所有车辆
func (r *CarRepository) List(ctx context.Context) ([]*models.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}
	defer rows.Close()

	var cars []*models.Car
	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			return nil, fmt.Errorf("scan car: %w", err)
		}
		cars = append(cars, car)
	}

	return cars, rows.Err()
}

// Upsert 创建或更新车辆（以 VIN 为准）
func (r *CarRepository) Upsert(ctx context.Context, car *models.Car) error {
	query := `
		INSERT INTO cars (vin, name, model, battery_capacity_kwh, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (vin) DO UPDATE SET
			name = EXCLUDED.name,
			model = EXCLUDED.model,
			battery_capacity_kwh = EXCLUDED.battery_capacity_kwh,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	now := time.Now()
	err := r.db.Pool.QueryRow(ctx, query,
		car.VIN,
		car.Name,
		car.Model,
		car.BatteryCapacityKwh,
		now,
		now,
	).Scan(&car.ID, &car.CreatedAt)

	if err != nil {
		return fmt.Errorf("upsert car: %w", err)
	}

	car.UpdatedAt = now
	return nil
}

func scanCar(row pgx.Row) (*models.Car, error) {
	car := &models.Car{}
	err := row.Scan(
		&car.ID,
		&car.VIN,
		&car.Name,
		&car.Model,
		&car.BatteryCapacityKwh,
		&car.CreatedAt,
		&car.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return car, nil
}
