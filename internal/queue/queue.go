// Package queue provides a Postgres-backed message queue: one table per
// queue, claim via SKIP LOCKED, and LISTEN/NOTIFY wakeups so workers need
// not rely on polling alone. Delivery is at-least-once; consumers own dedup
// if they need it (the relay does not).
package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Message is one queued payload. Attempts counts claims, including the one
// that returned the message.
type Message struct {
	ID       int64
	Payload  string
	Attempts int
}

// DB wraps a pgxpool.Pool for queue operations and a dedicated pgx.Conn for
// LISTEN/NOTIFY (notifications are per-connection in Postgres).
type DB struct {
	pool       *pgxpool.Pool
	notifyConn *pgx.Conn
	logger     *slog.Logger
}

// New creates a DB with a connection pool. notifyDSN may be empty when the
// caller only publishes; Listen and WaitForNotification then return errors.
func New(ctx context.Context, poolDSN, notifyDSN string, logger *slog.Logger) (*DB, error) {
	pool, err := pgxpool.New(ctx, poolDSN)
	if err != nil {
		return nil, fmt.Errorf("queue: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("queue: ping pool: %w", err)
	}

	var notifyConn *pgx.Conn
	if notifyDSN != "" {
		notifyConn, err = pgx.Connect(ctx, notifyDSN)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("queue: connect notify: %w", err)
		}
	}

	return &DB{
		pool:       pool,
		notifyConn: notifyConn,
		logger:     logger,
	}, nil
}

// Close releases the pool and the notify connection.
func (db *DB) Close(ctx context.Context) {
	if db.notifyConn != nil {
		if err := db.notifyConn.Close(ctx); err != nil {
			db.logger.Warn("queue: close notify connection", "error", err)
		}
	}
	db.pool.Close()
}

// validateName restricts queue names to identifier-safe characters so they
// can be embedded as table and channel names.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("queue: name is required")
	}
	if len(name) > 48 {
		return fmt.Errorf("queue: name must be at most 48 characters")
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' {
			return fmt.Errorf("queue: name contains invalid character at position %d: %q", i, c)
		}
	}
	return nil
}

func tableName(queue string) string {
	return pgx.Identifier{"queue_" + queue}.Sanitize()
}

// Ensure creates the table backing the named queue if it does not exist.
func (db *DB) Ensure(ctx context.Context, queue string) error {
	if err := validateName(queue); err != nil {
		return err
	}
	_, err := db.pool.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			payload    TEXT NOT NULL,
			attempts   INT NOT NULL DEFAULT 0,
			claimed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, tableName(queue)))
	if err != nil {
		return fmt.Errorf("queue: ensure %s: %w", queue, err)
	}
	return nil
}

// Publish appends a payload to the named queue and notifies listeners.
func (db *DB) Publish(ctx context.Context, queue, payload string) error {
	if err := validateName(queue); err != nil {
		return err
	}
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("queue: begin publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (payload) VALUES ($1)`, tableName(queue)), payload); err != nil {
		return fmt.Errorf("queue: publish to %s: %w", queue, err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, '')`, queue); err != nil {
		return fmt.Errorf("queue: notify %s: %w", queue, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("queue: commit publish tx: %w", err)
	}
	return nil
}

// Claim marks up to limit unclaimed messages as claimed and returns them.
// Claims are not leased: a crashed consumer leaves its messages claimed, and
// Nack is the only way to return them. This matches the at-least-once,
// no-coordination contract of the managed queue this mirrors.
func (db *DB) Claim(ctx context.Context, queue string, limit int) ([]Message, error) {
	if err := validateName(queue); err != nil {
		return nil, err
	}
	tbl := tableName(queue)
	rows, err := db.pool.Query(ctx, fmt.Sprintf(
		`WITH next AS (
			SELECT id FROM %s
			WHERE claimed_at IS NULL
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE %s t
		SET claimed_at = now(), attempts = attempts + 1
		FROM next
		WHERE t.id = next.id
		RETURNING t.id, t.payload, t.attempts`, tbl, tbl), limit)
	if err != nil {
		return nil, fmt.Errorf("queue: claim from %s: %w", queue, err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Payload, &m.Attempts); err != nil {
			return nil, fmt.Errorf("queue: scan claim: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queue: claim from %s: %w", queue, err)
	}
	return out, nil
}

// Ack removes a claimed message permanently.
func (db *DB) Ack(ctx context.Context, queue string, id int64) error {
	if err := validateName(queue); err != nil {
		return err
	}
	_, err := db.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, tableName(queue)), id)
	if err != nil {
		return fmt.Errorf("queue: ack %s/%d: %w", queue, id, err)
	}
	return nil
}

// Nack returns a claimed message to the queue for redelivery.
func (db *DB) Nack(ctx context.Context, queue string, id int64) error {
	if err := validateName(queue); err != nil {
		return err
	}
	_, err := db.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET claimed_at = NULL WHERE id = $1`, tableName(queue)), id)
	if err != nil {
		return fmt.Errorf("queue: nack %s/%d: %w", queue, id, err)
	}
	return nil
}

// Listen starts listening for publishes on the named queue using the
// dedicated notify connection.
func (db *DB) Listen(ctx context.Context, queue string) error {
	if db.notifyConn == nil {
		return fmt.Errorf("queue: notify connection not configured")
	}
	if err := validateName(queue); err != nil {
		return err
	}
	if _, err := db.notifyConn.Exec(ctx, "LISTEN "+pgx.Identifier{queue}.Sanitize()); err != nil {
		return fmt.Errorf("queue: listen %s: %w", queue, err)
	}
	return nil
}

// WaitForNotification blocks until a publish notification arrives on any
// listened queue, returning the queue name.
func (db *DB) WaitForNotification(ctx context.Context) (string, error) {
	if db.notifyConn == nil {
		return "", fmt.Errorf("queue: notify connection not configured")
	}
	notification, err := db.notifyConn.WaitForNotification(ctx)
	if err != nil {
		return "", fmt.Errorf("queue: wait for notification: %w", err)
	}
	return notification.Channel, nil
}
