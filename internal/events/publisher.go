package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/langchou/batgauge/internal/battery"
	"github.com/langchou/batgauge/internal/config"
)

// 事件类型
const (
	TypeBatteryHealthUpdated = "battery_health.updated"
)

// Envelope 消息总线上的事件结构
type Envelope struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	CarID      int64           `json:"car_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       *battery.Report `json:"data"`
}

// messageWriter kafka.Writer 中用到的部分
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher 把电池健康报告发布到 Kafka，未启用时为空操作
type Publisher struct {
	logger *zap.Logger
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NewPublisher 根据配置创建发布者
func NewPublisher(cfg *config.Config, logger *zap.Logger) (*Publisher, error) {
	p := &Publisher{
		logger: logger.With(zap.String("component", "event_publisher")),
		topic:  cfg.KafkaTopic,
		now:    time.Now,
	}
	if !cfg.KafkaEnabled {
		p.logger.Info("Event publishing disabled")
		return p, nil
	}
	if cfg.KafkaTopic == "" {
		return nil, errors.New("kafka topic must not be empty")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}

	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
	}
	p.logger.Info("Event publishing enabled",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
	)
	return p, nil
}

// Enabled 是否启用
func (p *Publisher) Enabled() bool {
	return p != nil && p.writer != nil
}

// PublishReport 发布报告更新事件，消息键为车辆 ID，保证同一辆车的事件有序
func (p *Publisher) PublishReport(ctx context.Context, carID int64, report *battery.Report) error {
	if !p.Enabled() {
		return nil
	}

	env := Envelope{
		EventID:    uuid.NewString(),
		Type:       TypeBatteryHealthUpdated,
		CarID:      carID,
		OccurredAt: p.now().UTC(),
		Data:       report,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(carID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(TypeBatteryHealthUpdated)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	p.logger.Debug("Published battery health event",
		zap.Int64("car_id", carID),
		zap.String("event_id", env.EventID),
		zap.String("health", report.Health),
	)
	return nil
}

// Close 关闭底层 writer
func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}
