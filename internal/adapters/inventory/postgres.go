package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
	"github.com/melih/lighthouse-dockerhost/internal/core/ports"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS resources (
    name        TEXT PRIMARY KEY,
    address     TEXT NOT NULL DEFAULT '',
    live_status TEXT NOT NULL DEFAULT '',
    attributes  JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE TABLE IF NOT EXISTS reservation_messages (
    id             BIGSERIAL PRIMARY KEY,
    reservation_id TEXT NOT NULL,
    message        TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Postgres is an inventory backed by PostgreSQL. Each session holds one
// pooled connection until it is closed.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ ports.SessionProvider = (*Postgres)(nil)

// NewPostgres connects to dsn and makes sure the tables exist.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pg pool: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create inventory schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Open(ctx context.Context) (ports.Session, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire inventory connection: %w", err)
	}
	return &pgSession{conn: conn}, nil
}

type pgSession struct {
	conn *pgxpool.Conn
}

func (s *pgSession) WriteMessage(ctx context.Context, reservationID, message string) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO reservation_messages (reservation_id, message) VALUES ($1, $2)`,
		reservationID, message)
	if err != nil {
		return fmt.Errorf("failed to write reservation message: %w", err)
	}
	return nil
}

func (s *pgSession) FindResources(ctx context.Context, attribute, value string) ([]domain.Resource, error) {
	rows, err := s.conn.Query(ctx, `
        SELECT name, address, live_status, attributes
        FROM resources
        WHERE attributes ->> $1 = $2
        ORDER BY name
    `, attribute, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	var out []domain.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read resources: %w", err)
	}
	return out, nil
}

func (s *pgSession) GetResource(ctx context.Context, name string) (domain.Resource, error) {
	row := s.conn.QueryRow(ctx, `
        SELECT name, address, live_status, attributes
        FROM resources
        WHERE name = $1
    `, name)
	r, err := scanResource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Resource{}, &domain.NotFoundError{ID: name}
	}
	return r, err
}

func scanResource(row pgx.Row) (domain.Resource, error) {
	var (
		r     domain.Resource
		attrs []byte
	)
	if err := row.Scan(&r.Name, &r.Address, &r.LiveStatus, &attrs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Resource{}, err
		}
		return domain.Resource{}, fmt.Errorf("failed to scan resource: %w", err)
	}
	if err := json.Unmarshal(attrs, &r.Attributes); err != nil {
		return domain.Resource{}, fmt.Errorf("failed to decode attributes of %s: %w", r.Name, err)
	}
	return r, nil
}

func (s *pgSession) exec(ctx context.Context, name, sql string, args ...any) error {
	tag, err := s.conn.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{ID: name}
	}
	return nil
}

func (s *pgSession) SetAttributes(ctx context.Context, name string, updates []domain.AttributeUpdate) error {
	patch := make(map[string]string, len(updates))
	for _, u := range updates {
		patch[u.Name] = u.Value
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	if err := s.exec(ctx, name,
		`UPDATE resources SET attributes = attributes || $2::jsonb WHERE name = $1`,
		name, string(data)); err != nil {
		return fmt.Errorf("failed to set attributes of %s: %w", name, err)
	}
	return nil
}

func (s *pgSession) UpdateAddress(ctx context.Context, name, address string) error {
	if err := s.exec(ctx, name, `UPDATE resources SET address = $2 WHERE name = $1`, name, address); err != nil {
		return fmt.Errorf("failed to update address of %s: %w", name, err)
	}
	return nil
}

func (s *pgSession) SetLiveStatus(ctx context.Context, name, status string) error {
	if err := s.exec(ctx, name, `UPDATE resources SET live_status = $2 WHERE name = $1`, name, status); err != nil {
		return fmt.Errorf("failed to set live status of %s: %w", name, err)
	}
	return nil
}

func (s *pgSession) DeleteResource(ctx context.Context, name string) error {
	if err := s.exec(ctx, name, `DELETE FROM resources WHERE name = $1`, name); err != nil {
		return fmt.Errorf("failed to delete resource %s: %w", name, err)
	}
	return nil
}

func (s *pgSession) Close() error {
	if s.conn != nil {
		s.conn.Release()
		s.conn = nil
	}
	return nil
}
