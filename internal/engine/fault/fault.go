// Package fault defines the engine's error taxonomy. Every rejection from the
// engine is one of these types so callers can tell safe-to-retry failures apart
// from permanent ones without parsing messages.
package fault

import "fmt"

// ValidationError indicates malformed or missing input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// AuthorizationError indicates the actor lacks rights over the target entity.
type AuthorizationError struct {
	ActorID string
	Action  string
}

func (e AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s may not %s", e.ActorID, e.Action)
}

// StateConflictError indicates the requested transition is invalid from the
// current status, including double-invocation of a one-shot action.
type StateConflictError struct {
	Entity string
	From   string
	To     string
	Reason string
}

func (e StateConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("invalid %s transition %s -> %s", e.Entity, e.From, e.To)
}

// AlreadyExistsError indicates a duplicate proposal or review.
type AlreadyExistsError struct {
	Entity string
	Key    string
}

func (e AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists for %s", e.Entity, e.Key)
}

// NotFoundError indicates an unknown identifier.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ProfileIncompleteError indicates an actor-side prerequisite is unmet,
// e.g. reopening a job without a published client profile.
type ProfileIncompleteError struct {
	ActorID string
	Missing string
}

func (e ProfileIncompleteError) Error() string {
	return fmt.Sprintf("actor %s profile incomplete: %s", e.ActorID, e.Missing)
}

// GatewayError indicates the payment processor rejected a capture or release.
// The ledger is never mutated when this is returned.
type GatewayError struct {
	Op  string
	Err error
}

func (e GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e GatewayError) Unwrap() error { return e.Err }

// RateLimitedError indicates the (actor, action) cooldown has not expired yet.
type RateLimitedError struct {
	Action     string
	RetryAfter string
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("action %s rate limited until %s", e.Action, e.RetryAfter)
}
