package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trade-engine/internal/store"
	"trade-engine/internal/strategy"
)

// Service 负责持久化策略执行历史，供 /events 查询。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化监控服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS engine_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	symbol TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_engine_events_type ON engine_events(event_type);
CREATE INDEX IF NOT EXISTS idx_engine_events_symbol ON engine_events(symbol);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("monitor: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, symbol string, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO engine_events (event_type, symbol, payload, created_at) VALUES (?, ?, ?, ?)`,
		string(event.Type), symbol, string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

// RecordOutcome 记录一次策略执行结果，落盘失败只告警不阻断主流程。
func (s *Service) RecordOutcome(ctx context.Context, out strategy.Outcome) {
	if err := s.Record(ctx, out.Symbol, Event{
		Type:      EventStrategyOutcome,
		Timestamp: time.Now().UTC(),
		Payload:   NewOutcomeRecord(out),
	}); err != nil {
		s.logger.Warn("记录策略执行事件失败", zap.Error(err))
	}
}

// RecordError 记录系统级错误。
func (s *Service) RecordError(ctx context.Context, stage string, err error) {
	if recErr := s.Record(ctx, "", Event{
		Type:      EventError,
		Timestamp: time.Now().UTC(),
		Payload:   ErrorPayload{Stage: stage, Message: err.Error()},
	}); recErr != nil {
		s.logger.Warn("记录异常事件失败", zap.Error(recErr))
	}
}

// ListEvents 按类型检索最近事件，返回顺序为由新到旧。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, event_type, payload, created_at FROM engine_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			id      int64
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&id, &typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("monitor: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339, created)
		if parseErr != nil {
			ts = time.Now().UTC()
		}

		events = append(events, Event{
			ID:        id,
			Type:      EventType(typ),
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 遍历事件失败: %w", err)
	}

	return events, nil
}
