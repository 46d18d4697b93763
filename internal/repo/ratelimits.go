package repo

import (
	"context"
	"database/sql"
)

// RateLimitExpiry returns the stored cooldown expiry for (actor, action), or
// "" when none is recorded.
func (r Repo) RateLimitExpiry(ctx context.Context, tx *sql.Tx, actorID, action string) (string, error) {
	row := r.q(tx).QueryRowContext(ctx,
		`SELECT expires_at FROM rate_limits WHERE actor_id=? AND action=?`, actorID, action)
	var expires string
	err := row.Scan(&expires)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return expires, err
}

// UpsertRateLimit records a new cooldown expiry for (actor, action).
func (r Repo) UpsertRateLimit(ctx context.Context, tx *sql.Tx, actorID, action, expiresAt string) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO rate_limits(actor_id,action,expires_at) VALUES (?,?,?)
ON CONFLICT(actor_id,action) DO UPDATE SET expires_at=excluded.expires_at`, actorID, action, expiresAt)
	return err
}
