// Package postgres is a reference implementation of the booking backend for
// self-hosted deployments, storing reservations in a single table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/charter-desk/internal/backend"
	"github.com/example/charter-desk/internal/domain/booking"
)

type Repo struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, databaseURL string) (*Repo, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Close() {
	r.pool.Close()
}

func (r *Repo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.pool.Ping(ctx)
}

// Migrate creates the reservations table if missing.
func (r *Repo) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reservations (
  id             TEXT PRIMARY KEY,
  yacht_id       TEXT NOT NULL,
  customer_name  TEXT NOT NULL DEFAULT '',
  customer_email TEXT NOT NULL DEFAULT '',
  guests         INT  NOT NULL DEFAULT 0,
  start_at       TIMESTAMPTZ NOT NULL,
  end_at         TIMESTAMPTZ NOT NULL,
  status         TEXT NOT NULL,
  type           TEXT NOT NULL,
  change_history JSONB NOT NULL DEFAULT '[]',
  created_at     TIMESTAMPTZ NOT NULL,
  updated_at     TIMESTAMPTZ NOT NULL,
  CHECK (end_at > start_at)
)`)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (r *Repo) Create(ctx context.Context, res booking.Reservation) (booking.Reservation, error) {
	history, err := json.Marshal(res.ChangeHistory)
	if err != nil {
		return booking.Reservation{}, backend.Errf(backend.KindValidation, "encode change history: %v", err)
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO reservations(id,yacht_id,customer_name,customer_email,guests,start_at,end_at,status,type,change_history,created_at,updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		res.ID, res.YachtID, res.CustomerName, res.CustomerEmail, res.Guests,
		res.Start, res.End, res.Status, res.Type, history, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return booking.Reservation{}, wrapErr(err)
	}
	return r.get(ctx, res.ID)
}

func (r *Repo) Update(ctx context.Context, id string, patch booking.Patch) (booking.Reservation, error) {
	cur, err := r.get(ctx, id)
	if err != nil {
		return booking.Reservation{}, err
	}
	changed := patch.Apply(&cur)
	if len(changed) > 0 {
		cur.UpdatedAt = time.Now()
		cur.RecordChange(cur.UpdatedAt, "backend", changed...)
	}
	history, err := json.Marshal(cur.ChangeHistory)
	if err != nil {
		return booking.Reservation{}, backend.Errf(backend.KindValidation, "encode change history: %v", err)
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE reservations
SET yacht_id=$2, customer_name=$3, customer_email=$4, guests=$5, start_at=$6,
    end_at=$7, status=$8, type=$9, change_history=$10, updated_at=$11
WHERE id=$1`,
		id, cur.YachtID, cur.CustomerName, cur.CustomerEmail, cur.Guests,
		cur.Start, cur.End, cur.Status, cur.Type, history, cur.UpdatedAt,
	)
	if err != nil {
		return booking.Reservation{}, wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return booking.Reservation{}, backend.Errf(backend.KindValidation, "reservation %s not found", id)
	}
	return cur, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reservations WHERE id=$1`, id)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return backend.Errf(backend.KindValidation, "reservation %s not found", id)
	}
	return nil
}

// List returns every stored reservation, oldest start first; used to seed
// the state manager at startup.
func (r *Repo) List(ctx context.Context) ([]booking.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id,yacht_id,customer_name,customer_email,guests,start_at,end_at,status,type,change_history,created_at,updated_at
FROM reservations
ORDER BY start_at, id`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var out []booking.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *Repo) get(ctx context.Context, id string) (booking.Reservation, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id,yacht_id,customer_name,customer_email,guests,start_at,end_at,status,type,change_history,created_at,updated_at
FROM reservations WHERE id=$1`, id)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return booking.Reservation{}, backend.Errf(backend.KindValidation, "reservation %s not found", id)
	}
	return res, err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanReservation(row scannable) (booking.Reservation, error) {
	var (
		res     booking.Reservation
		history []byte
	)
	err := row.Scan(
		&res.ID, &res.YachtID, &res.CustomerName, &res.CustomerEmail, &res.Guests,
		&res.Start, &res.End, &res.Status, &res.Type, &history, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return booking.Reservation{}, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &res.ChangeHistory); err != nil {
			return booking.Reservation{}, fmt.Errorf("postgres: decode change history for %s: %w", res.ID, err)
		}
	}
	return res, nil
}

// wrapErr maps pgx failures onto the backend taxonomy: constraint breaches
// are conflicts, everything else is treated as a network-class failure so
// the queue will retry it.
func wrapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return backend.Errf(backend.KindConflict, "%s", pgErr.Message)
		case "23514": // check_violation
			return backend.Errf(backend.KindValidation, "%s", pgErr.Message)
		}
	}
	return &backend.Error{Kind: backend.KindNetwork, Err: err}
}
