package repo

import (
	"context"
	"database/sql"

	"hireline/internal/domain"
)

const proposalCols = `id,engagement_id,freelancer_id,price,delivery_days,COALESCE(pitch,''),status,created_at`

func scanProposal(row interface{ Scan(...any) error }) (domain.Proposal, error) {
	var p domain.Proposal
	err := row.Scan(&p.ID, &p.EngagementID, &p.FreelancerID, &p.Price, &p.DeliveryDays, &p.Pitch, &p.Status, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) InsertProposal(ctx context.Context, tx *sql.Tx, p domain.Proposal) error {
	_, err := r.q(tx).ExecContext(ctx,
		`INSERT INTO proposals(id,engagement_id,freelancer_id,price,delivery_days,pitch,status,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.EngagementID, p.FreelancerID, p.Price, p.DeliveryDays, nullable(p.Pitch), p.Status, p.CreatedAt)
	return err
}

func (r Repo) GetProposal(ctx context.Context, tx *sql.Tx, id string) (domain.Proposal, error) {
	return scanProposal(r.q(tx).QueryRowContext(ctx, `SELECT `+proposalCols+` FROM proposals WHERE id=?`, id))
}

func (r Repo) ListProposals(ctx context.Context, engagementID string) ([]domain.Proposal, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+proposalCols+` FROM proposals WHERE engagement_id=? ORDER BY created_at ASC, id ASC`, engagementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// ActiveProposalExists reports whether the bidder already has a pending or
// accepted proposal on the engagement.
func (r Repo) ActiveProposalExists(ctx context.Context, tx *sql.Tx, engagementID, freelancerID string) (bool, error) {
	row := r.q(tx).QueryRowContext(ctx,
		`SELECT 1 FROM proposals WHERE engagement_id=? AND freelancer_id=? AND status IN ('pending','accepted') LIMIT 1`,
		engagementID, freelancerID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// AcceptedProposalExists reports whether the engagement already has an
// accepted proposal.
func (r Repo) AcceptedProposalExists(ctx context.Context, tx *sql.Tx, engagementID string) (bool, error) {
	row := r.q(tx).QueryRowContext(ctx,
		`SELECT 1 FROM proposals WHERE engagement_id=? AND status='accepted' LIMIT 1`, engagementID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// SetProposalStatusWhere flips a proposal's status only from the expected one.
func (r Repo) SetProposalStatusWhere(ctx context.Context, tx *sql.Tx, id, fromStatus, toStatus string) (bool, error) {
	res, err := r.q(tx).ExecContext(ctx,
		`UPDATE proposals SET status=? WHERE id=? AND status=?`, toStatus, id, fromStatus)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RejectSiblingProposals flips every other pending proposal on the engagement
// to rejected. Used only when proposals.auto_reject_on_accept is enabled.
func (r Repo) RejectSiblingProposals(ctx context.Context, tx *sql.Tx, engagementID, acceptedID string) (int64, error) {
	res, err := r.q(tx).ExecContext(ctx,
		`UPDATE proposals SET status='rejected' WHERE engagement_id=? AND id<>? AND status='pending'`,
		engagementID, acceptedID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
