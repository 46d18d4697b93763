package repo

import (
	"context"
	"database/sql"

	"hireline/internal/domain"
)

func (r Repo) EnsureActor(ctx context.Context, tx *sql.Tx, actorID, createdAt string) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO actors(id, created_at) VALUES (?,?)`, actorID, createdAt)
	return err
}

func (r Repo) GetActor(ctx context.Context, tx *sql.Tx, id string) (domain.Actor, error) {
	row := r.q(tx).QueryRowContext(ctx,
		`SELECT id,COALESCE(display_name,''),profile_published,rating_avg,rating_count,created_at FROM actors WHERE id=?`, id)
	var a domain.Actor
	err := row.Scan(&a.ID, &a.DisplayName, &a.ProfilePublished, &a.RatingAvg, &a.RatingCount, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) PublishProfile(ctx context.Context, tx *sql.Tx, actorID string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE actors SET profile_published=1 WHERE id=?`, actorID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetDisplayName(ctx context.Context, tx *sql.Tx, actorID, name string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE actors SET display_name=? WHERE id=?`, nullable(name), actorID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateActorRating overwrites the freelancer's aggregate rating.
func (r Repo) UpdateActorRating(ctx context.Context, tx *sql.Tx, actorID string, avg float64, count int) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE actors SET rating_avg=?, rating_count=? WHERE id=?`, avg, count, actorID)
	return err
}
