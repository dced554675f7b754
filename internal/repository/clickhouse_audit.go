package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"PulseScan/internal/domain/models"
	domrepo "PulseScan/internal/domain/repository"
	pkgch "PulseScan/pkg/clickhouse"
	"PulseScan/pkg/logger"
)

// AuditSchema returns the idempotent DDL for the audit tables.
func AuditSchema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.circuit_breaker_log (
            symbol         LowCardinality(String),
            activated_at   DateTime64(3, 'UTC'),
            expires_at     DateTime64(3, 'UTC'),
            reason         String,
            change_percent Float64
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMM(activated_at)
        ORDER BY (symbol, activated_at)`, database),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.system_log (
            created_at DateTime64(3, 'UTC'),
            level      LowCardinality(String),
            source     LowCardinality(String),
            message    String,
            metadata   String
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMM(created_at)
        ORDER BY (source, created_at)
        TTL toDateTime(created_at) + INTERVAL 90 DAY`, database),
	}
}

// ClickHouseAuditLog implements repository.AuditLog on append-only ClickHouse tables.
type ClickHouseAuditLog struct {
	db       *sql.DB
	breakers string
	logs     string
	l        *logger.Logger
}

func NewClickHouseAuditLog(ch *pkgch.Client, l *logger.Logger) *ClickHouseAuditLog {
	return &ClickHouseAuditLog{
		db:       ch.DB(),
		breakers: ch.Database() + ".circuit_breaker_log",
		logs:     ch.Database() + ".system_log",
		l:        l,
	}
}

func (a *ClickHouseAuditLog) InsertCircuitBreakerLog(ctx context.Context, st models.CircuitBreakerState) error {
	q := fmt.Sprintf("INSERT INTO %s (symbol, activated_at, expires_at, reason, change_percent) VALUES (?, ?, ?, ?, ?)", a.breakers)
	if _, err := a.db.ExecContext(ctx, q, st.Symbol, st.ActivatedAt.UTC(), st.ExpiresAt.UTC(), st.Reason, st.ChangePercent); err != nil {
		return fmt.Errorf("insert circuit breaker log: %w", err)
	}
	return nil
}

func (a *ClickHouseAuditLog) InsertSystemLog(ctx context.Context, e models.SystemLog) error {
	meta, err := encodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	q := fmt.Sprintf("INSERT INTO %s (created_at, level, source, message, metadata) VALUES (?, ?, ?, ?, ?)", a.logs)
	if _, err := a.db.ExecContext(ctx, q, created.UTC(), string(e.Level), e.Source, e.Message, meta); err != nil {
		return fmt.Errorf("insert system log: %w", err)
	}
	return nil
}

func (a *ClickHouseAuditLog) ListCircuitBreakers(ctx context.Context, symbol string, limit int) ([]models.CircuitBreakerState, error) {
	start := time.Now()
	q := fmt.Sprintf("SELECT symbol, activated_at, expires_at, reason, change_percent FROM %s", a.breakers)
	var args []interface{}
	if symbol != "" {
		q += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	q += " ORDER BY activated_at DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list circuit breakers: %w", err)
	}
	defer rows.Close()

	out := make([]models.CircuitBreakerState, 0, max(limit, 0))
	for rows.Next() {
		var st models.CircuitBreakerState
		if err := rows.Scan(&st.Symbol, &st.ActivatedAt, &st.ExpiresAt, &st.Reason, &st.ChangePercent); err != nil {
			return nil, fmt.Errorf("scan circuit breaker: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	a.l.Debug("clickhouse list_breakers ok",
		logger.String("symbol", symbol),
		logger.Int("rows", len(out)),
		logger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := sonic.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

var _ domrepo.AuditLog = (*ClickHouseAuditLog)(nil)
