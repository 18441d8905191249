package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"studentcenter/internal/adapters/email"
	"studentcenter/internal/adapters/http/perf"
	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/config"
)

const testPassword = "correct horse battery"

func testConfig() config.Config {
	return config.Config{
		Env:            "test",
		CSRFKey:        "0123456789abcdef0123456789abcdef",
		SessionTTL:     time.Hour,
		LoginRateLimit: 100,
		OperatorEmails: []string{"op@example.com"},
	}
}

func newTestServer(t *testing.T, cfg config.Config) http.Handler {
	t.Helper()
	RateLimitPerSecond = 10000
	mem := tree.NewMemory()
	t.Cleanup(mem.Close)
	return NewMux(&Stores{Tree: mem, Sender: email.NewNoopSender()}, cfg, perf.NewCollector(100))
}

// client keeps one user's session cookie across requests.
type client struct {
	t      *testing.T
	h      http.Handler
	cookie *http.Cookie
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "studentcenter_session" {
			if ck.MaxAge < 0 {
				c.cookie = nil
			} else {
				c.cookie = ck
			}
		}
	}
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func register(t *testing.T, h http.Handler, username, addr string) *client {
	t.Helper()
	c := &client{t: t, h: h}
	rec := c.do(http.MethodPost, "/api/register", map[string]string{
		"name": "Ana", "surname": "Paz", "username": username, "email": addr, "password": testPassword,
	})
	expectStatus(t, rec, http.StatusCreated)
	if c.cookie == nil {
		t.Fatal("register did not set a session cookie")
	}
	return c
}

// setupCenter returns an owner and a joined student of a fresh center.
func setupCenter(t *testing.T, h http.Handler) (owner, student *client, org string) {
	t.Helper()
	owner = register(t, h, "owner", "owner@example.com")
	rec := owner.do(http.MethodPost, "/api/centers", map[string]any{
		"name": "Centro Norte", "courses": []string{"1A", "2B"}, "accessCode": "secret-code",
	})
	expectStatus(t, rec, http.StatusCreated)
	org = decodeBody[struct {
		ID string `json:"id"`
	}](t, rec).ID

	student = register(t, h, "student", "student@example.com")
	rec = student.do(http.MethodPost, "/api/orgs/"+org+"/join", map[string]string{"accessCode": "secret-code", "course": "1A"})
	expectStatus(t, rec, http.StatusCreated)
	return owner, student, org
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, testConfig())
	c := &client{t: t, h: h}
	expectStatus(t, c.do(http.MethodGet, "/api/health", nil), http.StatusOK)
}

func TestSessionFlow(t *testing.T) {
	h := newTestServer(t, testConfig())
	c := register(t, h, "ana_paz", "ana@example.com")

	me := decodeBody[meResponse](t, c.do(http.MethodGet, "/api/me", nil))
	if me.User.Email != "ana@example.com" || me.User.PasswordHash != "" || me.IsOperator {
		t.Errorf("me = %+v", me)
	}

	expectStatus(t, c.do(http.MethodPost, "/api/logout", nil), http.StatusNoContent)
	expectStatus(t, c.do(http.MethodGet, "/api/me", nil), http.StatusUnauthorized)

	bad := c.do(http.MethodPost, "/api/login", map[string]string{"email": "ana@example.com", "password": "wrong password!"})
	expectStatus(t, bad, http.StatusUnauthorized)

	expectStatus(t, c.do(http.MethodPost, "/api/login", map[string]string{"email": "ANA@example.com", "password": testPassword}), http.StatusOK)
	expectStatus(t, c.do(http.MethodGet, "/api/me", nil), http.StatusOK)
}

func TestRegisterValidation(t *testing.T) {
	h := newTestServer(t, testConfig())
	c := &client{t: t, h: h}
	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"short password", map[string]string{"name": "A", "surname": "B", "username": "abc", "email": "a@example.com", "password": "short"}, http.StatusBadRequest},
		{"bad email", map[string]string{"name": "A", "surname": "B", "username": "abc", "email": "nope", "password": testPassword}, http.StatusBadRequest},
		{"bad username", map[string]string{"name": "A", "surname": "B", "username": "A B", "email": "a@example.com", "password": testPassword}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, c.do(http.MethodPost, "/api/register", tt.body), tt.want)
		})
	}

	register(t, h, "first", "dup@example.com")
	dup := c.do(http.MethodPost, "/api/register", map[string]string{
		"name": "A", "surname": "B", "username": "second", "email": "dup@example.com", "password": testPassword,
	})
	expectStatus(t, dup, http.StatusConflict)
}

func TestLoginThrottle(t *testing.T) {
	cfg := testConfig()
	cfg.LoginRateLimit = 2
	h := newTestServer(t, cfg)
	c := &client{t: t, h: h}
	body := map[string]string{"email": "nobody@example.com", "password": "whatever-it-is"}
	for range 2 {
		expectStatus(t, c.do(http.MethodPost, "/api/login", body), http.StatusUnauthorized)
	}
	expectStatus(t, c.do(http.MethodPost, "/api/login", body), http.StatusTooManyRequests)
}

func TestMembershipAndAccess(t *testing.T) {
	h := newTestServer(t, testConfig())
	owner, student, org := setupCenter(t, h)
	outsider := register(t, h, "outsider", "out@example.com")

	wrong := outsider.do(http.MethodPost, "/api/orgs/"+org+"/join", map[string]string{"accessCode": "not-the-code", "course": "1A"})
	expectStatus(t, wrong, http.StatusForbidden)

	expectStatus(t, outsider.do(http.MethodGet, "/api/orgs/"+org+"/forum", nil), http.StatusForbidden)
	expectStatus(t, student.do(http.MethodGet, "/api/orgs/"+org+"/forum", nil), http.StatusOK)
	expectStatus(t, owner.do(http.MethodGet, "/api/orgs/missing-org/forum", nil), http.StatusNotFound)

	centers := decodeBody[struct {
		Centers []struct {
			Center struct {
				ID string `json:"id"`
			} `json:"center"`
			Tier string `json:"tier"`
		} `json:"centers"`
	}](t, student.do(http.MethodGet, "/api/centers", nil))
	if len(centers.Centers) != 1 || centers.Centers[0].Center.ID != org || centers.Centers[0].Tier != "student" {
		t.Errorf("student centers = %+v", centers)
	}

	// Finances stay hidden from students until published.
	expectStatus(t, student.do(http.MethodGet, "/api/orgs/"+org+"/finances", nil), http.StatusForbidden)
	expectStatus(t, owner.do(http.MethodPut, "/api/orgs/"+org+"/finances/visibility", map[string]bool{"public": true}), http.StatusOK)
	expectStatus(t, student.do(http.MethodGet, "/api/orgs/"+org+"/finances", nil), http.StatusOK)

	expectStatus(t, owner.do(http.MethodGet, "/api/orgs/"+org+"/features/nope", nil), http.StatusBadRequest)
}

func TestWorkshopFlow(t *testing.T) {
	h := newTestServer(t, testConfig())
	owner, student, org := setupCenter(t, h)
	body := map[string]any{
		"title":    "Oratoria",
		"date":     time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"capacity": 1,
	}

	expectStatus(t, student.do(http.MethodPost, "/api/orgs/"+org+"/workshops", body), http.StatusForbidden)

	rec := owner.do(http.MethodPost, "/api/orgs/"+org+"/workshops", body)
	expectStatus(t, rec, http.StatusCreated)
	id := decodeBody[struct {
		Workshop struct {
			ID string `json:"id"`
		} `json:"workshop"`
	}](t, rec).Workshop.ID
	if id == "" {
		t.Fatalf("no workshop id in %s", rec.Body.String())
	}

	enroll := "/api/orgs/" + org + "/workshops/" + id + "/enrollment"
	expectStatus(t, student.do(http.MethodPost, enroll, nil), http.StatusOK)
	expectStatus(t, owner.do(http.MethodPost, enroll, nil), http.StatusConflict)

	inbox := decodeBody[struct {
		Unread int `json:"unread"`
	}](t, student.do(http.MethodGet, "/api/notifications", nil))
	if inbox.Unread == 0 {
		t.Error("student was not notified of the new workshop")
	}
}

func TestDistrictsFallback(t *testing.T) {
	h := newTestServer(t, testConfig())
	c := register(t, h, "ana_paz", "ana@example.com")

	expectStatus(t, c.do(http.MethodGet, "/api/districts", nil), http.StatusBadRequest)
	expectStatus(t, c.do(http.MethodGet, "/api/districts?region=%20%20", nil), http.StatusBadRequest)

	rec := c.do(http.MethodGet, "/api/districts?region=Lima", nil)
	expectStatus(t, rec, http.StatusOK)
	got := decodeBody[map[string][]string](t, rec)
	if d, ok := got["districts"]; !ok || len(d) != 0 {
		t.Errorf("districts = %v, want empty list", got)
	}
}

func TestOperatorEndpoints(t *testing.T) {
	h := newTestServer(t, testConfig())
	user := register(t, h, "regular", "user@example.com")
	op := register(t, h, "operator", "op@example.com")

	expectStatus(t, user.do(http.MethodGet, "/api/admin/perf", nil), http.StatusForbidden)
	expectStatus(t, op.do(http.MethodGet, "/api/admin/perf", nil), http.StatusOK)
	// No outbox configured in this server.
	expectStatus(t, op.do(http.MethodGet, "/api/admin/outbox", nil), http.StatusServiceUnavailable)
}

func TestLiveForum(t *testing.T) {
	h := newTestServer(t, testConfig())
	owner, student, org := setupCenter(t, h)
	// Initialize the forum before subscribing.
	expectStatus(t, owner.do(http.MethodGet, "/api/orgs/"+org+"/forum", nil), http.StatusOK)

	srv := httptest.NewServer(h)
	defer srv.Close()

	header := http.Header{}
	header.Add("Cookie", student.cookie.String())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/live?org=" + org + "&feature=forums"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var first liveFrame
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if first.Stream != "forums" || first.Error != "" {
		t.Fatalf("first frame = %+v", first)
	}

	expectStatus(t, owner.do(http.MethodPost, "/api/orgs/"+org+"/forum", map[string]string{"text": "Hola a todos"}), http.StatusCreated)

	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("no frame with the new message: %v", err)
		}
		if strings.Contains(string(msg), "Hola a todos") {
			return
		}
	}
}

func TestLiveRejectsOutsiders(t *testing.T) {
	h := newTestServer(t, testConfig())
	_, _, org := setupCenter(t, h)
	outsider := register(t, h, "outsider", "out@example.com")

	rec := outsider.do(http.MethodGet, "/api/live?org="+org+"&feature=anonymousChat", nil)
	expectStatus(t, rec, http.StatusForbidden)
}
