package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"hireline/internal/domain"
)

const engagementCols = `id,project_id,kind,title,COALESCE(description,''),budget_min,budget_max,skills_json,COALESCE(category,''),owner_id,status,deadline,created_at,updated_at`

func scanEngagement(row interface{ Scan(...any) error }) (domain.Engagement, error) {
	var e domain.Engagement
	var projectID, deadline, skills sql.NullString
	err := row.Scan(&e.ID, &projectID, &e.Kind, &e.Title, &e.Description, &e.BudgetMin, &e.BudgetMax,
		&skills, &e.Category, &e.OwnerID, &e.Status, &deadline, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	e.ProjectID = optionalString(projectID)
	e.Deadline = optionalString(deadline)
	if skills.Valid && skills.String != "" {
		_ = json.Unmarshal([]byte(skills.String), &e.Skills)
	}
	return e, nil
}

func (r Repo) InsertEngagement(ctx context.Context, tx *sql.Tx, e domain.Engagement) error {
	var skills any
	if len(e.Skills) > 0 {
		b, err := json.Marshal(e.Skills)
		if err != nil {
			return err
		}
		skills = string(b)
	}
	_, err := r.q(tx).ExecContext(ctx,
		`INSERT INTO engagements(id,project_id,kind,title,description,budget_min,budget_max,skills_json,category,owner_id,status,deadline,created_at,updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, nullablePtr(e.ProjectID), e.Kind, e.Title, nullable(e.Description), e.BudgetMin, e.BudgetMax,
		skills, nullable(e.Category), e.OwnerID, e.Status, nullablePtr(e.Deadline), e.CreatedAt, e.UpdatedAt)
	return err
}

func (r Repo) GetEngagement(ctx context.Context, tx *sql.Tx, id string) (domain.Engagement, error) {
	return scanEngagement(r.q(tx).QueryRowContext(ctx, `SELECT `+engagementCols+` FROM engagements WHERE id=?`, id))
}

type EngagementFilter struct {
	OwnerID   string
	ProjectID string
	Status    string
	Kind      string
}

func (r Repo) ListEngagements(ctx context.Context, f EngagementFilter) ([]domain.Engagement, error) {
	var clauses []string
	var args []any
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, f.Kind)
	}
	query := `SELECT ` + engagementCols + ` FROM engagements`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Engagement
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// SetEngagementStatusWhere flips status only when the current status still
// matches fromStatus. Returns false when another writer got there first.
func (r Repo) SetEngagementStatusWhere(ctx context.Context, tx *sql.Tx, id, fromStatus, toStatus, updatedAt string) (bool, error) {
	res, err := r.q(tx).ExecContext(ctx,
		`UPDATE engagements SET status=?, updated_at=? WHERE id=? AND status=?`,
		toStatus, updatedAt, id, fromStatus)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
