package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"smartai_gateway/internal/models"
)

const insertUsageLogQuery = `
	INSERT INTO usage_logs (id, request_id, provider, model, intent, input_length,
	                        response_time_ms, success, error_message, created_at)
	VALUES (:id, :request_id, :provider, :model, :intent, :input_length,
	        :response_time_ms, :success, :error_message, :created_at)
`

// UsageLogRepository handles usage log database operations
type UsageLogRepository struct {
	db *DB
}

func NewUsageLogRepository(db *DB) *UsageLogRepository {
	return &UsageLogRepository{db: db}
}

func prepareUsageLog(l *models.UsageLog) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
}

func (r *UsageLogRepository) Create(ctx context.Context, l *models.UsageLog) error {
	prepareUsageLog(l)
	if _, err := r.db.conn.NamedExecContext(ctx, insertUsageLogQuery, l); err != nil {
		return fmt.Errorf("failed to create usage log: %w", err)
	}
	return nil
}

// CreateBatch inserts all logs in one transaction; either every row lands or none does
func (r *UsageLogRepository) CreateBatch(ctx context.Context, logs []*models.UsageLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, insertUsageLogQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range logs {
		prepareUsageLog(l)
		if _, err := stmt.ExecContext(ctx, l); err != nil {
			return fmt.Errorf("failed to insert usage log %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// StatsByProvider aggregates usage logs created at or after since
func (r *UsageLogRepository) StatsByProvider(ctx context.Context, since time.Time) ([]models.UsageStats, error) {
	query := `
		SELECT provider,
		       COUNT(*) AS requests,
		       COUNT(*) FILTER (WHERE success) AS successes,
		       COALESCE(AVG(response_time_ms), 0) AS avg_response_time_ms
		FROM usage_logs
		WHERE created_at >= $1
		GROUP BY provider
		ORDER BY requests DESC, provider
	`

	stats := []models.UsageStats{}
	if err := r.db.conn.SelectContext(ctx, &stats, query, since); err != nil {
		return nil, fmt.Errorf("failed to aggregate usage logs: %w", err)
	}

	return stats, nil
}
