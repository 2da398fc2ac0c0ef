package audit

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PGStore persists audit logs in Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

const insertAuditLog = `INSERT INTO audit_logs (
	actor_kind, actor_user_id, store_id, action, resource_type, resource_id,
	method, path, route, status, ip, user_agent, request_id, metadata
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

const listAuditLogs = `SELECT id, actor_kind, actor_user_id, store_id, action, resource_type, resource_id,
	method, path, route, status, ip, user_agent, request_id, metadata, created_at
FROM audit_logs
WHERE ($1::text IS NULL OR store_id = $1)
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`

// InsertAuditLog implements Store.
func (s PGStore) InsertAuditLog(ctx context.Context, e Entry) error {
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = e.Metadata
	}
	_, err := s.Pool.Exec(ctx, insertAuditLog,
		string(e.Actor.Kind), e.Actor.UserID, e.StoreID, e.Action, e.ResourceType, e.ResourceID,
		e.Method, e.Path, e.Route, int32(e.Status), e.IP, e.UserAgent, e.RequestID, metadata,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs implements Store.
func (s PGStore) ListAuditLogs(ctx context.Context, f ListFilter) ([]Log, error) {
	rows, err := s.Pool.Query(ctx, listAuditLogs, f.StoreID, int32(f.Limit), int32(f.Offset))
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Log, error) {
		var l Log
		var status int32
		err := row.Scan(&l.ID, &l.ActorKind, &l.ActorUserID, &l.StoreID, &l.Action, &l.ResourceType, &l.ResourceID,
			&l.Method, &l.Path, &l.Route, &status, &l.IP, &l.UserAgent, &l.RequestID, &l.Metadata, &l.CreatedAt)
		l.Status = int(status)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit logs: %w", err)
	}
	return logs, nil
}

// Migrate applies the embedded audit schema to databaseURL.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open audit migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(databaseURL))
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// migrateURL rewrites postgres URLs onto the pgx/v5 migrate driver scheme.
func migrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}
