package repo

import (
	"context"
	"database/sql"

	"hireline/internal/domain"
)

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := r.q(tx).ExecContext(ctx,
		`INSERT INTO projects(id,client_id,title,conversation_id,created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.ClientID, p.Title, nullablePtr(p.ConversationID), p.CreatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	row := r.q(tx).QueryRowContext(ctx,
		`SELECT id,client_id,title,conversation_id,created_at FROM projects WHERE id=?`, id)
	var p domain.Project
	var conv sql.NullString
	err := row.Scan(&p.ID, &p.ClientID, &p.Title, &conv, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	p.ConversationID = optionalString(conv)
	return p, err
}

func (r Repo) ListProjects(ctx context.Context, clientID string) ([]domain.Project, error) {
	query := `SELECT id,client_id,title,conversation_id,created_at FROM projects`
	var args []any
	if clientID != "" {
		query += ` WHERE client_id=?`
		args = append(args, clientID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		var conv sql.NullString
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Title, &conv, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.ConversationID = optionalString(conv)
		res = append(res, p)
	}
	return res, rows.Err()
}

// SetProjectConversation sets the pointer only while it is unset, so the
// channel is provisioned at most once per project lifetime.
func (r Repo) SetProjectConversation(ctx context.Context, tx *sql.Tx, projectID, conversationID string) (bool, error) {
	res, err := r.q(tx).ExecContext(ctx,
		`UPDATE projects SET conversation_id=? WHERE id=? AND conversation_id IS NULL`,
		conversationID, projectID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r Repo) ClearProjectConversation(ctx context.Context, tx *sql.Tx, projectID string) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE projects SET conversation_id=NULL WHERE id=?`, projectID)
	return err
}

func (r Repo) InsertConversation(ctx context.Context, tx *sql.Tx, c domain.Conversation) error {
	if _, err := r.q(tx).ExecContext(ctx,
		`INSERT INTO conversations(id,project_id,created_at) VALUES (?,?,?)`,
		c.ID, c.ProjectID, c.CreatedAt); err != nil {
		return err
	}
	for _, member := range c.Members {
		if _, err := r.q(tx).ExecContext(ctx,
			`INSERT INTO conversation_members(conversation_id,actor_id) VALUES (?,?)`, c.ID, member); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) GetConversation(ctx context.Context, tx *sql.Tx, id string) (domain.Conversation, error) {
	row := r.q(tx).QueryRowContext(ctx, `SELECT id,project_id,created_at FROM conversations WHERE id=?`, id)
	var c domain.Conversation
	err := row.Scan(&c.ID, &c.ProjectID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Members, err = r.ConversationMembers(ctx, tx, id)
	return c, err
}

func (r Repo) ConversationMembers(ctx context.Context, tx *sql.Tx, conversationID string) ([]string, error) {
	rows, err := r.q(tx).QueryContext(ctx,
		`SELECT actor_id FROM conversation_members WHERE conversation_id=? ORDER BY actor_id`, conversationID)
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

// RemoveConversationMember deletes a membership row. Returns false when the
// actor was not a member.
func (r Repo) RemoveConversationMember(ctx context.Context, tx *sql.Tx, conversationID, actorID string) (bool, error) {
	res, err := r.q(tx).ExecContext(ctx,
		`DELETE FROM conversation_members WHERE conversation_id=? AND actor_id=?`, conversationID, actorID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r Repo) CountConversationMembers(ctx context.Context, tx *sql.Tx, conversationID string) (int, error) {
	row := r.q(tx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_members WHERE conversation_id=?`, conversationID)
	var n int
	err := row.Scan(&n)
	return n, err
}
