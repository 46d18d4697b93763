package server

import (
	"hireline/internal/config"
	"hireline/internal/domain"
)

// Request payloads

type CreateEngagementRequest struct {
	ID          *string  `json:"id,omitempty"`
	ProjectID   *string  `json:"project_id,omitempty"`
	Kind        string   `json:"kind,omitempty" enum:"job,task"`
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	BudgetMin   int64    `json:"budget_min,omitempty"`
	BudgetMax   int64    `json:"budget_max"`
	Skills      []string `json:"skills,omitempty"`
	Category    string   `json:"category,omitempty"`
	Deadline    *string  `json:"deadline,omitempty" format:"date-time"`
}

type SetEngagementStatusRequest struct {
	Status string `json:"status" enum:"open,assigned,in_progress,delivered,completed,cancelled"`
}

type SubmitProposalRequest struct {
	Price        int64  `json:"price"`
	DeliveryDays int    `json:"delivery_days"`
	Pitch        string `json:"pitch,omitempty"`
}

type SubmitReviewRequest struct {
	Rating  int    `json:"rating" minimum:"1" maximum:"5"`
	Comment string `json:"comment,omitempty"`
}

type CreateProjectRequest struct {
	Title string `json:"title"`
}

type RegisterActorRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Response payloads

type EngagementResponse struct {
	ID          string   `json:"id"`
	ProjectID   *string  `json:"project_id,omitempty"`
	Kind        string   `json:"kind" enum:"job,task"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	BudgetMin   int64    `json:"budget_min"`
	BudgetMax   int64    `json:"budget_max"`
	Skills      []string `json:"skills,omitempty"`
	Category    string   `json:"category,omitempty"`
	OwnerID     string   `json:"owner_id"`
	Status      string   `json:"status" enum:"open,assigned,in_progress,delivered,completed,cancelled"`
	Deadline    *string  `json:"deadline,omitempty" format:"date-time"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

type ProposalResponse struct {
	ID           string `json:"id"`
	EngagementID string `json:"engagement_id"`
	FreelancerID string `json:"freelancer_id"`
	Price        int64  `json:"price"`
	DeliveryDays int    `json:"delivery_days"`
	Pitch        string `json:"pitch,omitempty"`
	Status       string `json:"status" enum:"pending,accepted,rejected"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type OrderResponse struct {
	ID             string `json:"id"`
	EngagementID   string `json:"engagement_id"`
	ClientID       string `json:"client_id"`
	FreelancerID   string `json:"freelancer_id"`
	Price          int64  `json:"price"`
	Package        string `json:"package,omitempty"`
	Status         string `json:"status" enum:"pending,accepted,in_progress,delivered,completed"`
	IsPaid         bool   `json:"is_paid"`
	EscrowReleased bool   `json:"escrow_released"`
	HasReview      bool   `json:"has_review"`
	CreatedAt      string `json:"created_at" format:"date-time"`
	UpdatedAt      string `json:"updated_at" format:"date-time"`
}

type AcceptProposalResponse struct {
	Proposal ProposalResponse `json:"proposal"`
	Order    OrderResponse    `json:"order"`
}

type ReviewResponse struct {
	ID           string `json:"id"`
	OrderID      string `json:"order_id"`
	FreelancerID string `json:"freelancer_id"`
	Rating       int    `json:"rating"`
	Comment      string `json:"comment,omitempty"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type ProjectResponse struct {
	ID             string  `json:"id"`
	ClientID       string  `json:"client_id"`
	Title          string  `json:"title"`
	ConversationID *string `json:"conversation_id,omitempty"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

type TeamResponse struct {
	ProjectID      string   `json:"project_id"`
	ClientID       string   `json:"client_id"`
	Freelancers    []string `json:"freelancers"`
	ConversationID *string  `json:"conversation_id,omitempty"`
}

type ConversationResponse struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	Members   []string `json:"members"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

type ActorResponse struct {
	ID               string  `json:"id"`
	DisplayName      string  `json:"display_name,omitempty"`
	ProfilePublished bool    `json:"profile_published"`
	RatingAvg        float64 `json:"rating_avg"`
	RatingCount      int     `json:"rating_count"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload,omitempty"`
}

type PlatformConfigResponse struct {
	Platform struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"platform"`
	Currency   string              `json:"currency"`
	Categories map[string]struct { // name -> description
		Description string `json:"description"`
	} `json:"categories"`
}

type MeResponse struct {
	ActorID string `json:"actor_id"`
	Source  string `json:"source"`
}

// Conversion helpers

func engagementResponse(e domain.Engagement) EngagementResponse {
	return EngagementResponse(e)
}

func proposalResponse(p domain.Proposal) ProposalResponse {
	return ProposalResponse(p)
}

func orderResponse(o domain.Order) OrderResponse {
	return OrderResponse{
		ID:             o.ID,
		EngagementID:   o.EngagementID,
		ClientID:       o.ClientID,
		FreelancerID:   o.FreelancerID,
		Price:          o.Price,
		Package:        o.Package,
		Status:         o.Status,
		IsPaid:         o.IsPaid,
		EscrowReleased: o.EscrowReleased,
		HasReview:      o.HasReview,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func reviewResponse(rv domain.Review) ReviewResponse {
	return ReviewResponse(rv)
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse(p)
}

func teamResponse(tm domain.Team) TeamResponse {
	return TeamResponse{
		ProjectID:      tm.ProjectID,
		ClientID:       tm.ClientID,
		Freelancers:    nonNilSlice(tm.Freelancers),
		ConversationID: tm.ConversationID,
	}
}

func conversationResponse(c domain.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:        c.ID,
		ProjectID: c.ProjectID,
		Members:   nonNilSlice(c.Members),
		CreatedAt: c.CreatedAt,
	}
}

func actorResponse(a domain.Actor) ActorResponse {
	return ActorResponse(a)
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    e.Payload,
	}
}

func configResponse(cfg *config.Config) PlatformConfigResponse {
	var res PlatformConfigResponse
	res.Platform.ID = cfg.Platform.ID
	res.Platform.Name = cfg.Platform.Name
	res.Currency = cfg.Escrow.Currency
	res.Categories = map[string]struct {
		Description string `json:"description"`
	}{}
	for name, cat := range cfg.Categories {
		res.Categories[name] = struct {
			Description string `json:"description"`
		}{Description: cat.Description}
	}
	return res
}

func mapEngagements(items []domain.Engagement) []EngagementResponse {
	res := make([]EngagementResponse, 0, len(items))
	for _, e := range items {
		res = append(res, engagementResponse(e))
	}
	return res
}

func mapProposals(items []domain.Proposal) []ProposalResponse {
	res := make([]ProposalResponse, 0, len(items))
	for _, p := range items {
		res = append(res, proposalResponse(p))
	}
	return res
}

func mapOrders(items []domain.Order) []OrderResponse {
	res := make([]OrderResponse, 0, len(items))
	for _, o := range items {
		res = append(res, orderResponse(o))
	}
	return res
}

func mapProjects(items []domain.Project) []ProjectResponse {
	res := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		res = append(res, projectResponse(p))
	}
	return res
}

func mapEvents(items []domain.Event) []EventResponse {
	res := make([]EventResponse, 0, len(items))
	for _, evt := range items {
		res = append(res, eventResponse(evt))
	}
	return res
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
