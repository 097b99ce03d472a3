package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/langchou/batgauge/internal/battery"
	"github.com/langchou/batgauge/internal/models"
)

// ReportRepository 电池健康报告仓库
type ReportRepository struct {
	db *DB
}

// NewReportRepository 创建报告仓库
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Save 保存报告快照
func (r *ReportRepository) Save(ctx context.Context, carID int64, report *battery.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	var rate *float64
	if report.Degradation != nil {
		rate = &report.Degradation.Rate
	}

	query := `
		INSERT INTO battery_health_reports (car_id, health, confidence, data_points, degradation_rate, report, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.Pool.Exec(ctx, query,
		carID,
		report.Health,
		report.Confidence,
		report.DataPoints,
		rate,
		data,
		report.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("insert battery health report: %w", err)
	}
	return nil
}

// ListByCarID 获取车辆历史报告（最新在前）
func (r *ReportRepository) ListByCarID(ctx context.Context, carID int64, limit int) ([]*models.BatteryHealthSnapshot, error) {
	query := `
		SELECT id, car_id, health, confidence, data_points, degradation_rate, report, created_at
		FROM battery_health_reports WHERE car_id = $1 ORDER BY created_at DESC LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, carID, limit)
	if err != nil {
		return nil, fmt.Errorf("list battery health reports: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.BatteryHealthSnapshot
	for rows.Next() {
		s := &models.BatteryHealthSnapshot{}
		var data []byte
		err := rows.Scan(
			&s.ID,
			&s.CarID,
			&s.Health,
			&s.Confidence,
			&s.DataPoints,
			&s.DegradationRate,
			&data,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan battery health report: %w", err)
		}
		s.Report = &battery.Report{}
		if err := json.Unmarshal(data, s.Report); err != nil {
			return nil, fmt.Errorf("decode battery health report %d: %w", s.ID, err)
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

// FleetSummary 按每辆车最新报告的健康等级统计车辆数
func (r *ReportRepository) FleetSummary(ctx context.Context) ([]models.FleetHealth, error) {
	query := `
		SELECT health, COUNT(*) FROM (
			SELECT DISTINCT ON (car_id) car_id, health
			FROM battery_health_reports
			ORDER BY car_id, created_at DESC
		) latest
		GROUP BY health ORDER BY health
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fleet battery health summary: %w", err)
	}
	defer rows.Close()

	var summary []models.FleetHealth
	for rows.Next() {
		var fh models.FleetHealth
		if err := rows.Scan(&fh.Health, &fh.Cars); err != nil {
			return nil, fmt.Errorf("scan fleet health: %w", err)
		}
		summary = append(summary, fh)
	}

	return summary, rows.Err()
}
