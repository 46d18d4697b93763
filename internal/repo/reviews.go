package repo

import (
	"context"
	"database/sql"

	"hireline/internal/domain"
)

func (r Repo) InsertReview(ctx context.Context, tx *sql.Tx, rv domain.Review) error {
	_, err := r.q(tx).ExecContext(ctx,
		`INSERT INTO reviews(id,order_id,freelancer_id,rating,comment,created_at) VALUES (?,?,?,?,?,?)`,
		rv.ID, rv.OrderID, rv.FreelancerID, rv.Rating, nullable(rv.Comment), rv.CreatedAt)
	return err
}

func (r Repo) GetReviewByOrder(ctx context.Context, tx *sql.Tx, orderID string) (domain.Review, error) {
	row := r.q(tx).QueryRowContext(ctx,
		`SELECT id,order_id,freelancer_id,rating,COALESCE(comment,''),created_at FROM reviews WHERE order_id=?`, orderID)
	var rv domain.Review
	err := row.Scan(&rv.ID, &rv.OrderID, &rv.FreelancerID, &rv.Rating, &rv.Comment, &rv.CreatedAt)
	if err == sql.ErrNoRows {
		return rv, ErrNotFound
	}
	return rv, err
}

func (r Repo) ListReviewsForFreelancer(ctx context.Context, freelancerID string) ([]domain.Review, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,order_id,freelancer_id,rating,COALESCE(comment,''),created_at FROM reviews WHERE freelancer_id=? ORDER BY created_at DESC, id DESC`,
		freelancerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Review
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ID, &rv.OrderID, &rv.FreelancerID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rv)
	}
	return res, rows.Err()
}

// RatingAggregate computes the running mean over all of a freelancer's reviews.
func (r Repo) RatingAggregate(ctx context.Context, tx *sql.Tx, freelancerID string) (avg float64, count int, err error) {
	row := r.q(tx).QueryRowContext(ctx,
		`SELECT COALESCE(AVG(rating),0), COUNT(*) FROM reviews WHERE freelancer_id=?`, freelancerID)
	err = row.Scan(&avg, &count)
	return avg, count, err
}
