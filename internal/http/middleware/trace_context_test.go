package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/yieldvault-backend/internal/observability"
	"github.com/yungbote/yieldvault-backend/internal/platform/ctxutil"
)

func TestAttachTraceContextKeepsInboundIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen *ctxutil.TraceData
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	req.Header.Set(HeaderTraceID, "trace-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen == nil || seen.RequestID != "req-42" || seen.TraceID != "trace-42" {
		t.Fatalf("trace data: %+v", seen)
	}
	if rec.Header().Get(HeaderRequestID) != "req-42" {
		t.Fatalf("request id not echoed: %q", rec.Header().Get(HeaderRequestID))
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Header().Get(HeaderRequestID) == "" || rec.Header().Get(HeaderTraceID) == "" {
		t.Fatalf("ids not generated: %v", rec.Header())
	}
}

func TestMetricsLabelsByRouteAndSkipsHealthChecks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := observability.New(0)
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/vaults/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthcheck", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/vaults/a", "/api/vaults/b", "/healthcheck", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `yv_api_requests_total{method="GET",route="/api/vaults/:id",status="200"} 2.000000`) {
		t.Fatalf("missing route series:\n%s", out)
	}
	if !strings.Contains(out, `route="unmatched",status="404"`) {
		t.Fatalf("missing unmatched series:\n%s", out)
	}
	if strings.Contains(out, `route="/healthcheck"`) {
		t.Fatalf("health check was recorded:\n%s", out)
	}
}
