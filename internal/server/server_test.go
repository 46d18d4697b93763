package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"hireline/internal/config"
	"hireline/internal/db"
	"hireline/internal/engine"
	"hireline/internal/gateway"
	"hireline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("hireline-test")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg, &gateway.Dev{})
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              "test-secret",
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asActor(actor string) map[string]string {
	return map[string]string{"X-Actor-Id": actor}
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return envelope.Error.Code
}

func TestEngagementLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/engagements", map[string]any{
		"title":      "Build landing page",
		"budget_min": 400,
		"budget_max": 600,
		"category":   "development",
	}, asActor("client-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create engagement: %d %s", res.StatusCode, string(data))
	}
	var eng struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &eng); err != nil {
		t.Fatalf("unmarshal engagement: %v", err)
	}
	if eng.Status != "open" {
		t.Fatalf("expected open engagement, got %s", eng.Status)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/engagements/"+eng.ID+"/proposals", map[string]any{
		"price":         500,
		"delivery_days": 7,
		"pitch":         "I can do it",
	}, asActor("free-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit proposal: %d %s", res.StatusCode, string(data))
	}
	var proposal struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(data, &proposal)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/proposals/"+proposal.ID+"/accept", nil, asActor("client-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept proposal: %d %s", res.StatusCode, string(data))
	}
	var accepted struct {
		Order struct {
			ID    string `json:"id"`
			Price int64  `json:"price"`
		} `json:"order"`
	}
	if err := json.Unmarshal(data, &accepted); err != nil {
		t.Fatalf("unmarshal accept: %v", err)
	}
	if accepted.Order.Price != 500 {
		t.Fatalf("expected price snapshot 500, got %d", accepted.Order.Price)
	}
	orderID := accepted.Order.ID

	steps := []struct {
		verb  string
		actor string
	}{
		{"accept", "free-1"},
		{"fund", "client-1"},
		{"start", "free-1"},
		{"deliver", "free-1"},
		{"release-request", "free-1"},
		{"release", "client-1"},
	}
	for _, step := range steps {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders/"+orderID+"/"+step.verb, nil, asActor(step.actor))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%s: %d %s", step.verb, res.StatusCode, string(data))
		}
	}
	var order struct {
		Status         string `json:"status"`
		IsPaid         bool   `json:"is_paid"`
		EscrowReleased bool   `json:"escrow_released"`
	}
	if err := json.Unmarshal(data, &order); err != nil {
		t.Fatalf("unmarshal order: %v", err)
	}
	if order.Status != "completed" || !order.IsPaid || !order.EscrowReleased {
		t.Fatalf("expected completed paid released order, got %+v", order)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders/"+orderID+"/review", map[string]any{
		"rating":  5,
		"comment": "great work",
	}, asActor("client-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("review: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/actors/free-1", nil, asActor("client-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get actor: %d %s", res.StatusCode, string(data))
	}
	var freelancer struct {
		RatingAvg   float64 `json:"rating_avg"`
		RatingCount int     `json:"rating_count"`
	}
	_ = json.Unmarshal(data, &freelancer)
	if freelancer.RatingAvg != 5 || freelancer.RatingCount != 1 {
		t.Fatalf("expected rating 5 x1, got %+v", freelancer)
	}
}

func TestErrorEnvelopeCodes(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	// missing budget: invalid_input
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/engagements", map[string]any{
		"title": "No budget",
	}, asActor("client-1"))
	if res.StatusCode != http.StatusBadRequest || errorCode(t, data) != "invalid_input" {
		t.Fatalf("expected 400 invalid_input, got %d %s", res.StatusCode, string(data))
	}

	// unknown engagement: not_found
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/engagements/nope", nil, asActor("client-1"))
	if res.StatusCode != http.StatusNotFound || errorCode(t, data) != "not_found" {
		t.Fatalf("expected 404 not_found, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/engagements", map[string]any{
		"title":      "Real one",
		"budget_max": 100,
	}, asActor("client-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create engagement: %d %s", res.StatusCode, string(data))
	}
	var eng struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(data, &eng)

	// owner bidding on own engagement: not_allowed
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/engagements/"+eng.ID+"/proposals", map[string]any{
		"price": 100,
	}, asActor("client-1"))
	if res.StatusCode != http.StatusForbidden || errorCode(t, data) != "not_allowed" {
		t.Fatalf("expected 403 not_allowed, got %d %s", res.StatusCode, string(data))
	}

	// duplicate proposal: already_exists
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/engagements/"+eng.ID+"/proposals", map[string]any{
		"price": 100,
	}, asActor("free-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("first proposal: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/engagements/"+eng.ID+"/proposals", map[string]any{
		"price": 120,
	}, asActor("free-1"))
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "already_exists" {
		t.Fatalf("expected 409 already_exists, got %d %s", res.StatusCode, string(data))
	}

	// cancel then reopen without a published profile: profile_incomplete
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/engagements/"+eng.ID+"/status", map[string]any{
		"status": "cancelled",
	}, asActor("client-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("cancel: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/engagements/"+eng.ID+"/status", map[string]any{
		"status": "open",
	}, asActor("client-1"))
	if res.StatusCode != http.StatusUnprocessableEntity || errorCode(t, data) != "profile_incomplete" {
		t.Fatalf("expected 422 profile_incomplete, got %d %s", res.StatusCode, string(data))
	}

	// bidding on a cancelled engagement: state_conflict
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/engagements/"+eng.ID+"/proposals", map[string]any{
		"price": 90,
	}, asActor("free-2"))
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "state_conflict" {
		t.Fatalf("expected 409 state_conflict, got %d %s", res.StatusCode, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/orders", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d %s", res.StatusCode, string(data))
	}

	// health stays open
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should not require auth, got %d", res.StatusCode)
	}

	// dev login mints a usable JWT
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "client-1",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(data))
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("no token in response: %s", string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me with JWT: %d %s", res.StatusCode, string(data))
	}
	var me struct {
		ActorID string `json:"actor_id"`
		Source  string `json:"source"`
	}
	_ = json.Unmarshal(data, &me)
	if me.ActorID != "client-1" || me.Source != "jwt" {
		t.Fatalf("unexpected principal: %+v", me)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "invalid_credentials" {
		t.Fatalf("expected 401 invalid_credentials, got %d %s", res.StatusCode, string(data))
	}
}

func TestTeamChannelOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"title": "Website revamp",
	}, asActor("client-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	var project struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(data, &project)

	// channel before any orders: invalid_input
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/channel", nil, asActor("client-1"))
	if res.StatusCode != http.StatusBadRequest || errorCode(t, data) != "invalid_input" {
		t.Fatalf("expected 400 invalid_input, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/engagements", map[string]any{
		"title":      "Task A",
		"budget_max": 100,
		"kind":       "task",
		"project_id": project.ID,
	}, asActor("client-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task: %d %s", res.StatusCode, string(data))
	}
	var task struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(data, &task)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/engagements/"+task.ID+"/proposals", map[string]any{
		"price": 100,
	}, asActor("free-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("proposal: %d %s", res.StatusCode, string(data))
	}
	var proposal struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(data, &proposal)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/proposals/"+proposal.ID+"/accept", nil, asActor("client-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept: %d %s", res.StatusCode, string(data))
	}
	var accepted struct {
		Order struct {
			ID string `json:"id"`
		} `json:"order"`
	}
	_ = json.Unmarshal(data, &accepted)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders/"+accepted.Order.ID+"/accept", nil, asActor("free-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("order accept: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+project.ID+"/team", nil, asActor("client-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("team: %d %s", res.StatusCode, string(data))
	}
	var team struct {
		Freelancers []string `json:"freelancers"`
	}
	_ = json.Unmarshal(data, &team)
	if len(team.Freelancers) != 1 || team.Freelancers[0] != "free-1" {
		t.Fatalf("unexpected roster: %+v", team)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/channel", nil, asActor("client-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("ensure channel: %d %s", res.StatusCode, string(data))
	}
	var channel struct {
		ID      string   `json:"id"`
		Members []string `json:"members"`
	}
	_ = json.Unmarshal(data, &channel)
	if len(channel.Members) != 2 {
		t.Fatalf("expected 2 members, got %+v", channel.Members)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/projects/"+project.ID+"/channel/membership", nil, asActor("free-1"))
	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		t.Fatalf("leave channel: %d %s", res.StatusCode, string(data))
	}
}
