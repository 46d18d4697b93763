package engine

import (
	"context"
	"time"

	"hireline/internal/domain"
	"hireline/internal/engine/fault"
	"hireline/internal/events"
	"hireline/internal/repo"
)

// EngagementSpec carries the client's posting.
type EngagementSpec struct {
	ID          string
	ProjectID   string
	Kind        string
	Title       string
	Description string
	BudgetMin   int64
	BudgetMax   int64
	Skills      []string
	Category    string
	Deadline    string
}

// CreateEngagement posts a new job or task in status open.
func (e Engine) CreateEngagement(ctx context.Context, ownerID string, spec EngagementSpec) (domain.Engagement, error) {
	if ownerID == "" {
		return domain.Engagement{}, fault.ValidationError{Field: "owner_id", Reason: "required"}
	}
	if spec.Title == "" {
		return domain.Engagement{}, fault.ValidationError{Field: "title", Reason: "required"}
	}
	if spec.BudgetMax <= 0 {
		return domain.Engagement{}, fault.ValidationError{Field: "budget", Reason: "required and must be positive"}
	}
	if spec.BudgetMin < 0 || spec.BudgetMin > spec.BudgetMax {
		return domain.Engagement{}, fault.ValidationError{Field: "budget", Reason: "min must be between 0 and max"}
	}
	if spec.Kind == "" {
		spec.Kind = domain.KindJob
	}
	if spec.Kind != domain.KindJob && spec.Kind != domain.KindTask {
		return domain.Engagement{}, fault.ValidationError{Field: "kind", Reason: "must be job or task"}
	}
	if spec.Kind == domain.KindTask && spec.ProjectID == "" {
		return domain.Engagement{}, fault.ValidationError{Field: "project_id", Reason: "required for task engagements"}
	}
	if e.Config != nil && !e.Config.KnownCategory(spec.Category) {
		return domain.Engagement{}, fault.ValidationError{Field: "category", Reason: "unknown category " + spec.Category}
	}

	now := e.timestamp()
	eng := domain.Engagement{
		ID:          spec.ID,
		Kind:        spec.Kind,
		Title:       spec.Title,
		Description: spec.Description,
		BudgetMin:   spec.BudgetMin,
		BudgetMax:   spec.BudgetMax,
		Skills:      spec.Skills,
		Category:    spec.Category,
		OwnerID:     ownerID,
		Status:      domain.EngagementOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if eng.ID == "" {
		eng.ID = newID()
	}
	if spec.ProjectID != "" {
		eng.ProjectID = &spec.ProjectID
	}
	if spec.Deadline != "" {
		if _, err := time.Parse(time.RFC3339, spec.Deadline); err != nil {
			return domain.Engagement{}, fault.ValidationError{Field: "deadline", Reason: "must be RFC3339"}
		}
		eng.Deadline = &spec.Deadline
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Engagement{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureActor(ctx, tx, ownerID, now); err != nil {
		return domain.Engagement{}, err
	}
	var cooldown time.Duration
	if e.Config != nil {
		cooldown = time.Duration(e.Config.Limits.EngagementCooldownHours) * time.Hour
	}
	if err := e.checkRateLimit(ctx, tx, ownerID, "engagement.create", cooldown); err != nil {
		return domain.Engagement{}, err
	}
	if spec.ProjectID != "" {
		p, err := e.Repo.GetProject(ctx, tx, spec.ProjectID)
		if err != nil {
			return domain.Engagement{}, notFound(err, "project", spec.ProjectID)
		}
		if p.ClientID != ownerID {
			return domain.Engagement{}, fault.AuthorizationError{ActorID: ownerID, Action: "add tasks to project " + spec.ProjectID}
		}
	}
	if err := e.Repo.InsertEngagement(ctx, tx, eng); err != nil {
		return domain.Engagement{}, err
	}
	if err := e.Events.Append(ctx, tx, "engagement.created", e.platformID(), "engagement", eng.ID, ownerID, events.EventPayload{
		"kind":   eng.Kind,
		"title":  eng.Title,
		"status": eng.Status,
	}); err != nil {
		return domain.Engagement{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Engagement{}, err
	}
	return eng, nil
}

// engagementTransitionAllowed encodes the registry's status machine: forward
// only, except open -> cancelled and the explicit owner re-open.
func engagementTransitionAllowed(from, to string) bool {
	if to == domain.EngagementOpen {
		// re-open is allowed from anywhere; guarded separately
		return from != domain.EngagementOpen
	}
	switch from {
	case domain.EngagementOpen:
		return to == domain.EngagementAssigned || to == domain.EngagementCancelled
	case domain.EngagementAssigned:
		return to == domain.EngagementInProgress
	case domain.EngagementInProgress:
		return to == domain.EngagementDelivered
	case domain.EngagementDelivered:
		return to == domain.EngagementCompleted
	}
	return false
}

// SetEngagementStatus applies an owner-issued status command.
func (e Engine) SetEngagementStatus(ctx context.Context, engagementID, actorID, newStatus string) (domain.Engagement, error) {
	switch newStatus {
	case domain.EngagementOpen, domain.EngagementAssigned, domain.EngagementInProgress,
		domain.EngagementDelivered, domain.EngagementCompleted, domain.EngagementCancelled:
	default:
		return domain.Engagement{}, fault.ValidationError{Field: "status", Reason: "unknown status " + newStatus}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Engagement{}, err
	}
	defer tx.Rollback()

	eng, err := e.Repo.GetEngagement(ctx, tx, engagementID)
	if err != nil {
		return domain.Engagement{}, notFound(err, "engagement", engagementID)
	}
	if eng.OwnerID != actorID {
		return eng, fault.AuthorizationError{ActorID: actorID, Action: "change engagement " + engagementID}
	}
	if !engagementTransitionAllowed(eng.Status, newStatus) {
		return eng, fault.StateConflictError{Entity: "engagement", From: eng.Status, To: newStatus}
	}
	if newStatus == domain.EngagementOpen {
		actor, err := e.Repo.GetActor(ctx, tx, actorID)
		if err != nil {
			return eng, notFound(err, "actor", actorID)
		}
		if !actor.ProfilePublished {
			return eng, fault.ProfileIncompleteError{ActorID: actorID, Missing: "published client profile"}
		}
		active, err := e.Repo.ActiveOrderExists(ctx, tx, engagementID)
		if err != nil {
			return eng, err
		}
		if active {
			return eng, fault.StateConflictError{Entity: "engagement", Reason: "cannot re-open while an order is active"}
		}
	}
	ok, err := e.Repo.SetEngagementStatusWhere(ctx, tx, engagementID, eng.Status, newStatus, e.timestamp())
	if err != nil {
		return eng, err
	}
	if !ok {
		return eng, fault.StateConflictError{Entity: "engagement", From: eng.Status, To: newStatus, Reason: "status changed concurrently"}
	}
	if err := e.Events.Append(ctx, tx, "engagement.status_changed", e.platformID(), "engagement", engagementID, actorID, events.EventPayload{
		"from_status": eng.Status,
		"to_status":   newStatus,
	}); err != nil {
		return eng, err
	}
	if err := tx.Commit(); err != nil {
		return eng, err
	}
	eng.Status = newStatus
	return eng, nil
}

// GetEngagement is a pure read.
func (e Engine) GetEngagement(ctx context.Context, id string) (domain.Engagement, error) {
	eng, err := e.Repo.GetEngagement(ctx, nil, id)
	if err != nil {
		return domain.Engagement{}, notFound(err, "engagement", id)
	}
	return eng, nil
}

// ListEngagements is a pure read; filter by owner for listMine.
func (e Engine) ListEngagements(ctx context.Context, f repo.EngagementFilter) ([]domain.Engagement, error) {
	return e.Repo.ListEngagements(ctx, f)
}
