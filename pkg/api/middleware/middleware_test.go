package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/time/rate"
)

func serve(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_PropagatesOrGenerates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	w := serve(r, http.MethodGet, "/", map[string]string{requestIDHeader: "abc"})
	if w.Header().Get(requestIDHeader) != "abc" || w.Body.String() != "abc" {
		t.Errorf("propagated id = %q / %q", w.Header().Get(requestIDHeader), w.Body.String())
	}

	w = serve(r, http.MethodGet, "/", nil)
	if len(w.Header().Get(requestIDHeader)) != 36 {
		t.Errorf("generated id = %q", w.Header().Get(requestIDHeader))
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })

	if w := serve(r, http.MethodGet, "/boom", nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("GET /boom -> %d", w.Code)
	}
}

func TestAdminToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"disabled", "", "", http.StatusOK},
		{"missing header", "t", "", http.StatusUnauthorized},
		{"wrong token", "t", "Bearer x", http.StatusUnauthorized},
		{"wrong scheme", "t", "Basic t", http.StatusUnauthorized},
		{"valid", "t", "Bearer t", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/admin", AdminToken(tt.token), func(c *gin.Context) { c.Status(http.StatusOK) })

			w := serve(r, http.MethodPost, "/admin", map[string]string{"Authorization": tt.header})
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRateLimiter_RefillsOverWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(200, 15*time.Second)
	rl.now = func() time.Time { return now }

	lim := rl.getVisitor("203.0.113.9")
	for i := 0; i < 200; i++ {
		if !lim.AllowN(now, 1) {
			t.Fatalf("request %d refused inside the burst", i)
		}
	}
	if lim.AllowN(now, 1) {
		t.Fatal("201st request allowed")
	}
	if !lim.AllowN(now.Add(75*time.Millisecond), 1) {
		t.Fatal("token not refilled after window/limit")
	}
}

func TestRateLimiter_EvictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)

	rl.mu.Lock()
	rl.visitors["old"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	rl.cleanupN = cleanupEveryN - 1
	rl.mu.Unlock()

	_ = rl.getVisitor("new")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["old"]; ok {
		t.Error("idle visitor not evicted")
	}
	if _, ok := rl.visitors["new"]; !ok {
		t.Error("new visitor missing")
	}
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := serve(r, http.MethodGet, "/", nil)
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Referrer-Policy", "Content-Security-Policy"} {
		if w.Header().Get(h) == "" {
			t.Errorf("missing %s", h)
		}
	}
}

func TestMetrics_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "hello") })

	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/ok", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/missing", "404"))

	serve(r, http.MethodGet, "/ok", nil)
	serve(r, http.MethodGet, "/missing", nil)

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/ok", "200")); got != baseOK+1 {
		t.Errorf("counter /ok = %v; want %v", got, baseOK+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/missing", "404")); got != base404+1 {
		t.Errorf("counter 404 = %v; want %v", got, base404+1)
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Errorf("inflight = %v; want 0", got)
	}
}
