// Package engine implements the engagement and escrow lifecycle: registry,
// proposal intake, order/escrow ledger, team formation and the review gate.
// Every command runs as a single transaction; guarded transitions use
// conditional updates so racing writers lose with a state conflict instead of
// double-applying an effect.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"hireline/internal/config"
	"hireline/internal/domain"
	"hireline/internal/engine/fault"
	"hireline/internal/events"
	"hireline/internal/gateway"
	"hireline/internal/repo"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Gateway gateway.Gateway
	Config  *config.Config
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config, gw gateway.Gateway) Engine {
	return Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		Events:  events.Writer{DB: db},
		Gateway: gw,
		Config:  cfg,
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) platformID() string {
	if e.Config == nil {
		return ""
	}
	return e.Config.Platform.ID
}

func newID() string {
	return uuid.NewString()
}

// notFound converts repo.ErrNotFound into the typed taxonomy, leaving other
// errors untouched.
func notFound(err error, entity, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return fault.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

// RegisterActor ensures an actor row exists and optionally sets a display name.
func (e Engine) RegisterActor(ctx context.Context, actorID, displayName string) (domain.Actor, error) {
	if actorID == "" {
		return domain.Actor{}, fault.ValidationError{Field: "actor_id", Reason: "required"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Actor{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureActor(ctx, tx, actorID, e.timestamp()); err != nil {
		return domain.Actor{}, err
	}
	if displayName != "" {
		if err := e.Repo.SetDisplayName(ctx, tx, actorID, displayName); err != nil {
			return domain.Actor{}, err
		}
	}
	a, err := e.Repo.GetActor(ctx, tx, actorID)
	if err != nil {
		return domain.Actor{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Actor{}, err
	}
	return a, nil
}

// PublishProfile marks the actor's client profile as published, which
// unlocks re-opening engagements.
func (e Engine) PublishProfile(ctx context.Context, actorID string) (domain.Actor, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Actor{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureActor(ctx, tx, actorID, e.timestamp()); err != nil {
		return domain.Actor{}, err
	}
	if err := e.Repo.PublishProfile(ctx, tx, actorID); err != nil {
		return domain.Actor{}, notFound(err, "actor", actorID)
	}
	if err := e.Events.Append(ctx, tx, "actor.profile_published", e.platformID(), "actor", actorID, actorID, nil); err != nil {
		return domain.Actor{}, err
	}
	a, err := e.Repo.GetActor(ctx, tx, actorID)
	if err != nil {
		return domain.Actor{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Actor{}, err
	}
	return a, nil
}

// GetActor is a pure read; it exposes the freelancer rating aggregate.
func (e Engine) GetActor(ctx context.Context, actorID string) (domain.Actor, error) {
	a, err := e.Repo.GetActor(ctx, nil, actorID)
	if err != nil {
		return domain.Actor{}, notFound(err, "actor", actorID)
	}
	return a, nil
}

// checkRateLimit enforces the server-side (actor, action) cooldown. It must
// run inside the command's transaction so the new expiry commits atomically
// with the guarded action.
func (e Engine) checkRateLimit(ctx context.Context, tx *sql.Tx, actorID, action string, cooldown time.Duration) error {
	if cooldown <= 0 {
		return nil
	}
	expiry, err := e.Repo.RateLimitExpiry(ctx, tx, actorID, action)
	if err != nil {
		return err
	}
	now := e.now().UTC()
	if expiry != "" {
		until, err := time.Parse(time.RFC3339, expiry)
		if err == nil && now.Before(until) {
			return fault.RateLimitedError{Action: action, RetryAfter: expiry}
		}
	}
	return e.Repo.UpsertRateLimit(ctx, tx, actorID, action, now.Add(cooldown).Format(time.RFC3339))
}
