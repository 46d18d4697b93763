package hirelinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Hireline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Engagement represents the API engagement model.
type Engagement struct {
	ID          string   `json:"id"`
	ProjectID   *string  `json:"project_id,omitempty"`
	Kind        string   `json:"kind"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	BudgetMin   int64    `json:"budget_min"`
	BudgetMax   int64    `json:"budget_max"`
	Skills      []string `json:"skills"`
	Category    string   `json:"category"`
	OwnerID     string   `json:"owner_id"`
	Status      string   `json:"status"`
	Deadline    *string  `json:"deadline,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// Proposal represents a freelancer bid.
type Proposal struct {
	ID           string `json:"id"`
	EngagementID string `json:"engagement_id"`
	FreelancerID string `json:"freelancer_id"`
	Price        int64  `json:"price"`
	DeliveryDays int    `json:"delivery_days"`
	Pitch        string `json:"pitch"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

// Order represents the escrow ledger entry for an assignment.
type Order struct {
	ID             string `json:"id"`
	EngagementID   string `json:"engagement_id"`
	ClientID       string `json:"client_id"`
	FreelancerID   string `json:"freelancer_id"`
	Price          int64  `json:"price"`
	Package        string `json:"package,omitempty"`
	Status         string `json:"status"`
	IsPaid         bool   `json:"is_paid"`
	EscrowReleased bool   `json:"escrow_released"`
	HasReview      bool   `json:"has_review"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// Review is the post-completion rating of an order.
type Review struct {
	ID           string `json:"id"`
	OrderID      string `json:"order_id"`
	FreelancerID string `json:"freelancer_id"`
	Rating       int    `json:"rating"`
	Comment      string `json:"comment"`
	CreatedAt    string `json:"created_at"`
}

// Actor represents a marketplace participant.
type Actor struct {
	ID               string  `json:"id"`
	DisplayName      string  `json:"display_name"`
	ProfilePublished bool    `json:"profile_published"`
	RatingAvg        float64 `json:"rating_avg"`
	RatingCount      int     `json:"rating_count"`
	CreatedAt        string  `json:"created_at"`
}

// Project groups task engagements under one client.
type Project struct {
	ID             string  `json:"id"`
	ClientID       string  `json:"client_id"`
	Title          string  `json:"title"`
	ConversationID *string `json:"conversation_id,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// Team is the roster derived from accepted orders.
type Team struct {
	ProjectID      string   `json:"project_id"`
	ClientID       string   `json:"client_id"`
	Freelancers    []string `json:"freelancers"`
	ConversationID *string  `json:"conversation_id,omitempty"`
}

// Conversation is the shared team channel.
type Conversation struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	Members   []string `json:"members"`
	CreatedAt string   `json:"created_at"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	PlatformID string         `json:"platform_id"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// EngagementSpec is the create-engagement request body.
type EngagementSpec struct {
	ID          string   `json:"id,omitempty"`
	ProjectID   string   `json:"project_id,omitempty"`
	Kind        string   `json:"kind,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	BudgetMin   int64    `json:"budget_min,omitempty"`
	BudgetMax   int64    `json:"budget_max"`
	Skills      []string `json:"skills,omitempty"`
	Category    string   `json:"category,omitempty"`
	Deadline    string   `json:"deadline,omitempty"`
}

// CreateEngagement posts a job or task.
func (c *Client) CreateEngagement(ctx context.Context, spec EngagementSpec) (Engagement, error) {
	var resp Engagement
	err := c.do(ctx, http.MethodPost, "v0/engagements", spec, &resp)
	return resp, err
}

// GetEngagement fetches an engagement by id.
func (c *Client) GetEngagement(ctx context.Context, id string) (Engagement, error) {
	var resp Engagement
	err := c.do(ctx, http.MethodGet, "v0/engagements/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListEngagements returns engagements, optionally filtered by status.
func (c *Client) ListEngagements(ctx context.Context, status string) ([]Engagement, error) {
	endpoint := "v0/engagements"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Engagement
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SetEngagementStatus moves an engagement through its lifecycle.
func (c *Client) SetEngagementStatus(ctx context.Context, id, status string) (Engagement, error) {
	var resp Engagement
	endpoint := fmt.Sprintf("v0/engagements/%s/status", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// SubmitProposal bids on an open engagement.
func (c *Client) SubmitProposal(ctx context.Context, engagementID string, price int64, deliveryDays int, pitch string) (Proposal, error) {
	body := map[string]any{
		"price":         price,
		"delivery_days": deliveryDays,
		"pitch":         pitch,
	}
	var resp Proposal
	endpoint := fmt.Sprintf("v0/engagements/%s/proposals", url.PathEscape(engagementID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// ListProposals returns the bids on an engagement.
func (c *Client) ListProposals(ctx context.Context, engagementID string) ([]Proposal, error) {
	var resp []Proposal
	endpoint := fmt.Sprintf("v0/engagements/%s/proposals", url.PathEscape(engagementID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AcceptProposal accepts a bid and returns the opened order.
func (c *Client) AcceptProposal(ctx context.Context, proposalID string) (Proposal, Order, error) {
	var resp struct {
		Proposal Proposal `json:"proposal"`
		Order    Order    `json:"order"`
	}
	endpoint := fmt.Sprintf("v0/proposals/%s/accept", url.PathEscape(proposalID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp.Proposal, resp.Order, err
}

// RejectProposal rejects a bid.
func (c *Client) RejectProposal(ctx context.Context, proposalID string) (Proposal, error) {
	var resp Proposal
	endpoint := fmt.Sprintf("v0/proposals/%s/reject", url.PathEscape(proposalID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// OrderAction advances an order. Verb is one of accept, start, fund,
// deliver, release-request, release.
func (c *Client) OrderAction(ctx context.Context, orderID, verb string) (Order, error) {
	var resp Order
	endpoint := fmt.Sprintf("v0/orders/%s/%s", url.PathEscape(orderID), verb)
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// GetOrder fetches an order by id.
func (c *Client) GetOrder(ctx context.Context, id string) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodGet, "v0/orders/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListOrders returns the caller's orders in either role.
func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var resp []Order
	err := c.do(ctx, http.MethodGet, "v0/orders", nil, &resp)
	return resp, err
}

// SubmitReview reviews a completed order.
func (c *Client) SubmitReview(ctx context.Context, orderID string, rating int, comment string) (Review, error) {
	body := map[string]any{
		"rating":  rating,
		"comment": comment,
	}
	var resp Review
	endpoint := fmt.Sprintf("v0/orders/%s/review", url.PathEscape(orderID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// GetReview fetches the review of an order.
func (c *Client) GetReview(ctx context.Context, orderID string) (Review, error) {
	var resp Review
	endpoint := fmt.Sprintf("v0/orders/%s/review", url.PathEscape(orderID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetActor fetches an actor with its rating aggregate.
func (c *Client) GetActor(ctx context.Context, actorID string) (Actor, error) {
	var resp Actor
	err := c.do(ctx, http.MethodGet, "v0/actors/"+url.PathEscape(actorID), nil, &resp)
	return resp, err
}

// CreateProject creates a project for grouping tasks.
func (c *Client) CreateProject(ctx context.Context, title string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPost, "v0/projects", map[string]any{"title": title}, &resp)
	return resp, err
}

// Team returns the roster derived from accepted orders.
func (c *Client) Team(ctx context.Context, projectID string) (Team, error) {
	var resp Team
	endpoint := fmt.Sprintf("v0/projects/%s/team", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// EnsureChannel creates or fetches the shared team channel.
func (c *Client) EnsureChannel(ctx context.Context, projectID string) (Conversation, error) {
	var resp Conversation
	endpoint := fmt.Sprintf("v0/projects/%s/channel", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// LeaveChannel removes the caller from the team channel.
func (c *Client) LeaveChannel(ctx context.Context, projectID string) error {
	endpoint := fmt.Sprintf("v0/projects/%s/channel/membership", url.PathEscape(projectID))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// Events returns recent events, optionally scoped to one entity.
func (c *Client) Events(ctx context.Context, limit int, entityID string) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if entityID != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%sentity_id=%s", endpoint, sep, url.QueryEscape(entityID))
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// DevLogin mints a bearer token from the dev endpoint and stores it on the
// client.
func (c *Client) DevLogin(ctx context.Context, actorID string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "v0/auth/dev/login", map[string]any{"actor_id": actorID}, &resp)
	if err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
