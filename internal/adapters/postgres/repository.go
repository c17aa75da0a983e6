// Package postgres implements the order and gateway settings stores on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/fitstack/coinpay/internal/core/domain"
)

// Schema creates the tables used by Repository.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
    id                VARCHAR(64) PRIMARY KEY,
    status            VARCHAR(32) NOT NULL,
    total_cents       BIGINT NOT NULL,
    currency          VARCHAR(8) NOT NULL,
    payment_reference VARCHAR(128) NOT NULL DEFAULT '',
    return_url        TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS order_notes (
    id         BIGSERIAL PRIMARY KEY,
    order_id   VARCHAR(64) NOT NULL REFERENCES orders(id),
    note       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS gateway_settings (
    gateway_id      VARCHAR(32) PRIMARY KEY,
    enabled         BOOLEAN NOT NULL,
    title           TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    api_key         TEXT NOT NULL DEFAULT '',
    api_secret      TEXT NOT NULL DEFAULT '',
    callback_secret VARCHAR(64) NOT NULL DEFAULT '',
    account_email   TEXT NOT NULL DEFAULT '',
    account_error   TEXT NOT NULL DEFAULT '',
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// Repository is a thin wrapper around *sql.DB implementing ports.OrderStore
// and ports.GatewaySettingsStore.
type Repository struct {
	DB *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

// Open opens and pings a connection pool.
func Open(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Printf("[DB] Successfully connected to PostgreSQL")
	return db, nil
}

// EnsureSchema creates missing tables.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// InsertOrder inserts a new order.
func (r *Repository) InsertOrder(ctx context.Context, o domain.Order) error {
	query := `
        INSERT INTO orders (id, status, total_cents, currency, payment_reference, return_url)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	if _, err := r.DB.ExecContext(ctx, query, o.ID, string(o.Status), o.TotalCents, o.Currency, o.PaymentReference, o.ReturnURL); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	log.Printf("[DB] Inserted order: %s", o.ID)
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `
        SELECT id, status, total_cents, currency, payment_reference, return_url
        FROM orders
        WHERE id = $1
    `
	var o domain.Order
	var status string
	err := r.DB.QueryRowContext(ctx, query, orderID).
		Scan(&o.ID, &status, &o.TotalCents, &o.Currency, &o.PaymentReference, &o.ReturnURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

func (r *Repository) GetStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	var status string
	err := r.DB.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get order status: %w", err)
	}
	return domain.OrderStatus(status), nil
}

// TransitionStatus runs the conditional UPDATE and the note INSERT in one transaction.
func (r *Repository) TransitionStatus(ctx context.Context, t domain.StatusTransition) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        UPDATE orders
        SET status = $3,
            payment_reference = CASE WHEN payment_reference = '' THEN $4 ELSE payment_reference END,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1 AND status = $2
    `
	res, err := tx.ExecContext(ctx, query, t.OrderID, string(t.From), string(t.To), t.PaymentReference)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, t.OrderID).Scan(&exists); err != nil {
			return false, fmt.Errorf("failed to check order: %w", err)
		}
		if !exists {
			return false, domain.ErrOrderNotFound
		}
		return false, nil
	}

	if t.Note != "" {
		if _, err := tx.ExecContext(ctx, `INSERT INTO order_notes (order_id, note) VALUES ($1, $2)`, t.OrderID, t.Note); err != nil {
			return false, fmt.Errorf("failed to insert order note: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transition: %w", err)
	}
	log.Printf("[DB] Updated order status: %s %s -> %s", t.OrderID, t.From, t.To)
	return true, nil
}

func (r *Repository) AddNote(ctx context.Context, orderID, note string) error {
	query := `
        INSERT INTO order_notes (order_id, note)
        SELECT id, $2 FROM orders WHERE id = $1
    `
	res, err := r.DB.ExecContext(ctx, query, orderID, note)
	if err != nil {
		return fmt.Errorf("failed to insert order note: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
