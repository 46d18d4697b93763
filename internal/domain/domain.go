package domain

// Engagement statuses.
const (
	EngagementOpen       = "open"
	EngagementAssigned   = "assigned"
	EngagementInProgress = "in_progress"
	EngagementDelivered  = "delivered"
	EngagementCompleted  = "completed"
	EngagementCancelled  = "cancelled"
)

// Engagement kinds.
const (
	KindJob  = "job"
	KindTask = "task"
)

// Proposal statuses.
const (
	ProposalPending  = "pending"
	ProposalAccepted = "accepted"
	ProposalRejected = "rejected"
)

// Order statuses. The payment axis lives in IsPaid/EscrowReleased.
const (
	OrderPending    = "pending"
	OrderAccepted   = "accepted"
	OrderInProgress = "in_progress"
	OrderDelivered  = "delivered"
	OrderCompleted  = "completed"
)

type Actor struct {
	ID               string  `json:"id"`
	DisplayName      string  `json:"display_name,omitempty"`
	ProfilePublished bool    `json:"profile_published"`
	RatingAvg        float64 `json:"rating_avg"`
	RatingCount      int     `json:"rating_count"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
}

type Project struct {
	ID             string  `json:"id"`
	ClientID       string  `json:"client_id"`
	Title          string  `json:"title"`
	ConversationID *string `json:"conversation_id,omitempty"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

type Engagement struct {
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

// FixedBudget reports whether the budget is a single price rather than a range.
func (e Engagement) FixedBudget() bool { return e.BudgetMin == e.BudgetMax }

type Proposal struct {
	ID           string `json:"id"`
	EngagementID string `json:"engagement_id"`
	FreelancerID string `json:"freelancer_id"`
	Price        int64  `json:"price"`
	DeliveryDays int    `json:"delivery_days"`
	Pitch        string `json:"pitch,omitempty"`
	Status       string `json:"status" enum:"pending,accepted,rejected"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

// Order is the paid, assigned instance of an engagement. Price and Package are
// snapshotted at acceptance time and never change afterwards. Version backs the
// optimistic-concurrency check on release.
type Order struct {
	ID             string `json:"id"`
	EngagementID   string `json:"engagement_id"`
	ClientID       string `json:"client_id"`
	FreelancerID   string `json:"freelancer_id"`
	Price          int64  `json:"price"`
	Package        string `json:"package,omitempty"`
	Requirements   string `json:"requirements,omitempty"`
	Status         string `json:"status" enum:"pending,accepted,in_progress,delivered,completed"`
	IsPaid         bool   `json:"is_paid"`
	EscrowReleased bool   `json:"escrow_released"`
	HasReview      bool   `json:"has_review"`
	Version        int64  `json:"-"`
	CreatedAt      string `json:"created_at" format:"date-time"`
	UpdatedAt      string `json:"updated_at" format:"date-time"`
}

// Terminal reports whether the order can no longer change.
func (o Order) Terminal() bool { return o.Status == OrderCompleted }

type Review struct {
	ID           string `json:"id"`
	OrderID      string `json:"order_id"`
	FreelancerID string `json:"freelancer_id"`
	Rating       int    `json:"rating" minimum:"1" maximum:"5"`
	Comment      string `json:"comment,omitempty"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Conversation struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	Members   []string `json:"members"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

// Team is the derived roster of a project: the client plus every distinct
// freelancer holding an order in status accepted or later on any of its tasks.
type Team struct {
	ProjectID      string   `json:"project_id"`
	ClientID       string   `json:"client_id"`
	Freelancers    []string `json:"freelancers"`
	ConversationID *string  `json:"conversation_id,omitempty"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	PlatformID string `json:"platform_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
