package repo

import (
	"context"
	"database/sql"

	"hireline/internal/domain"
)

const orderCols = `id,engagement_id,client_id,freelancer_id,price,COALESCE(package,''),COALESCE(requirements,''),status,is_paid,escrow_released,has_review,version,created_at,updated_at`

func scanOrder(row interface{ Scan(...any) error }) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.EngagementID, &o.ClientID, &o.FreelancerID, &o.Price, &o.Package, &o.Requirements,
		&o.Status, &o.IsPaid, &o.EscrowReleased, &o.HasReview, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	return o, err
}

func (r Repo) InsertOrder(ctx context.Context, tx *sql.Tx, o domain.Order) error {
	_, err := r.q(tx).ExecContext(ctx,
		`INSERT INTO orders(id,engagement_id,client_id,freelancer_id,price,package,requirements,status,is_paid,escrow_released,has_review,version,created_at,updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.EngagementID, o.ClientID, o.FreelancerID, o.Price, nullable(o.Package), nullable(o.Requirements),
		o.Status, o.IsPaid, o.EscrowReleased, o.HasReview, o.Version, o.CreatedAt, o.UpdatedAt)
	return err
}

func (r Repo) GetOrder(ctx context.Context, tx *sql.Tx, id string) (domain.Order, error) {
	return scanOrder(r.q(tx).QueryRowContext(ctx, `SELECT `+orderCols+` FROM orders WHERE id=?`, id))
}

// ListOrdersForActor returns orders where the actor is client or freelancer.
func (r Repo) ListOrdersForActor(ctx context.Context, actorID string) ([]domain.Order, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+orderCols+` FROM orders WHERE client_id=? OR freelancer_id=? ORDER BY created_at DESC, id DESC`,
		actorID, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// ActiveOrderExists reports whether the engagement has a non-terminal order.
func (r Repo) ActiveOrderExists(ctx context.Context, tx *sql.Tx, engagementID string) (bool, error) {
	row := r.q(tx).QueryRowContext(ctx,
		`SELECT 1 FROM orders WHERE engagement_id=? AND status<>'completed' LIMIT 1`, engagementID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// SetOrderStatusWhere flips status only from the expected current status.
func (r Repo) SetOrderStatusWhere(ctx context.Context, tx *sql.Tx, id, fromStatus, toStatus, updatedAt string) (bool, error) {
	res, err := r.q(tx).ExecContext(ctx,
		`UPDATE orders SET status=?, version=version+1, updated_at=? WHERE id=? AND status=?`,
		toStatus, updatedAt, id, fromStatus)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkOrderPaid sets the paid flag exactly once.
func (r Repo) MarkOrderPaid(ctx context.Context, tx *sql.Tx, id, updatedAt string) (bool, error) {
	res, err := r.q(tx).ExecContext(ctx,
		`UPDATE orders SET is_paid=1, version=version+1, updated_at=? WHERE id=? AND is_paid=0`,
		updatedAt, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ReleaseOrderEscrow completes the order with an optimistic version check:
// the write lands only if nobody else has touched the row since it was read.
func (r Repo) ReleaseOrderEscrow(ctx context.Context, tx *sql.Tx, id string, version int64, updatedAt string) (bool, error) {
	res, err := r.q(tx).ExecContext(ctx,
		`UPDATE orders SET escrow_released=1, status='completed', version=version+1, updated_at=?
		 WHERE id=? AND version=? AND escrow_released=0`,
		updatedAt, id, version)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkOrderReviewed sets the review flag exactly once.
func (r Repo) MarkOrderReviewed(ctx context.Context, tx *sql.Tx, id, updatedAt string) (bool, error) {
	res, err := r.q(tx).ExecContext(ctx,
		`UPDATE orders SET has_review=1, version=version+1, updated_at=? WHERE id=? AND has_review=0`,
		updatedAt, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ProjectFreelancers returns the distinct freelancers holding an order in
// status accepted or later on any task engagement of the project.
func (r Repo) ProjectFreelancers(ctx context.Context, tx *sql.Tx, projectID string) ([]string, error) {
	rows, err := r.q(tx).QueryContext(ctx, `
SELECT DISTINCT o.freelancer_id
FROM orders o
JOIN engagements e ON e.id=o.engagement_id
WHERE e.project_id=? AND o.status IN ('accepted','in_progress','delivered','completed')
ORDER BY o.freelancer_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}
