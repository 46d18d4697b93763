package engine

import (
	"context"

	"hireline/internal/domain"
	"hireline/internal/engine/fault"
	"hireline/internal/events"
)

// CreateProject opens a container for task engagements owned by a client.
func (e Engine) CreateProject(ctx context.Context, clientID, title string) (domain.Project, error) {
	if clientID == "" {
		return domain.Project{}, fault.ValidationError{Field: "client_id", Reason: "required"}
	}
	if title == "" {
		return domain.Project{}, fault.ValidationError{Field: "title", Reason: "required"}
	}
	now := e.timestamp()
	p := domain.Project{
		ID:        newID(),
		ClientID:  clientID,
		Title:     title,
		CreatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureActor(ctx, tx, clientID, now); err != nil {
		return domain.Project{}, err
	}
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, "project.created", e.platformID(), "project", p.ID, clientID, events.EventPayload{
		"title": title,
	}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// DeriveRoster computes the project team: the client plus every distinct
// freelancer with an order in status accepted or later on the project's tasks.
func (e Engine) DeriveRoster(ctx context.Context, projectID string) (domain.Team, error) {
	p, err := e.Repo.GetProject(ctx, nil, projectID)
	if err != nil {
		return domain.Team{}, notFound(err, "project", projectID)
	}
	freelancers, err := e.Repo.ProjectFreelancers(ctx, nil, projectID)
	if err != nil {
		return domain.Team{}, err
	}
	return domain.Team{
		ProjectID:      projectID,
		ClientID:       p.ClientID,
		Freelancers:    freelancers,
		ConversationID: p.ConversationID,
	}, nil
}

// EnsureChannel returns the project's shared conversation, creating it from
// the derived roster on first use. The pointer is set with a CAS on NULL so
// it is provisioned at most once per project lifetime.
func (e Engine) EnsureChannel(ctx context.Context, projectID, actorID string) (domain.Conversation, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Conversation{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProject(ctx, tx, projectID)
	if err != nil {
		return domain.Conversation{}, notFound(err, "project", projectID)
	}
	if p.ConversationID != nil {
		c, err := e.Repo.GetConversation(ctx, tx, *p.ConversationID)
		if err != nil {
			return domain.Conversation{}, notFound(err, "conversation", *p.ConversationID)
		}
		return c, nil
	}

	freelancers, err := e.Repo.ProjectFreelancers(ctx, tx, projectID)
	if err != nil {
		return domain.Conversation{}, err
	}
	roster := append([]string{p.ClientID}, freelancers...)
	minRoster := 2
	if e.Config != nil && e.Config.Team.MinRoster > minRoster {
		minRoster = e.Config.Team.MinRoster
	}
	if len(roster) < minRoster {
		return domain.Conversation{}, fault.ValidationError{Field: "roster", Reason: "no team members found"}
	}

	now := e.timestamp()
	c := domain.Conversation{
		ID:        newID(),
		ProjectID: projectID,
		Members:   roster,
		CreatedAt: now,
	}
	if err := e.Repo.InsertConversation(ctx, tx, c); err != nil {
		return domain.Conversation{}, err
	}
	ok, err := e.Repo.SetProjectConversation(ctx, tx, projectID, c.ID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !ok {
		return domain.Conversation{}, fault.StateConflictError{Entity: "project", Reason: "channel provisioned concurrently"}
	}
	if err := e.Events.Append(ctx, tx, "team.channel_created", e.platformID(), "conversation", c.ID, actorID, events.EventPayload{
		"project_id": projectID,
		"members":    roster,
	}); err != nil {
		return domain.Conversation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Conversation{}, err
	}
	return c, nil
}

// LeaveChannel removes the actor from the project's conversation. The project
// pointer is cleared only when the membership set becomes empty, not on every
// departure.
func (e Engine) LeaveChannel(ctx context.Context, projectID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProject(ctx, tx, projectID)
	if err != nil {
		return notFound(err, "project", projectID)
	}
	if p.ConversationID == nil {
		return fault.NotFoundError{Entity: "conversation", ID: "for project " + projectID}
	}
	removed, err := e.Repo.RemoveConversationMember(ctx, tx, *p.ConversationID, actorID)
	if err != nil {
		return err
	}
	if !removed {
		return fault.NotFoundError{Entity: "membership", ID: actorID}
	}
	remaining, err := e.Repo.CountConversationMembers(ctx, tx, *p.ConversationID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		if err := e.Repo.ClearProjectConversation(ctx, tx, projectID); err != nil {
			return err
		}
	}
	if err := e.Events.Append(ctx, tx, "team.member_left", e.platformID(), "conversation", *p.ConversationID, actorID, events.EventPayload{
		"project_id": projectID,
		"remaining":  remaining,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// GetProject is a pure read.
func (e Engine) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, nil, projectID)
	if err != nil {
		return domain.Project{}, notFound(err, "project", projectID)
	}
	return p, nil
}
