package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/treechat-backend/internal/requestdata"
)

func identityRouter(capture **requestdata.RequestData) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireIdentity())
	r.GET("/probe", func(c *gin.Context) {
		*capture = requestdata.GetRequestData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireIdentityRejectsMissingHeader(t *testing.T) {
	var rd *requestdata.RequestData
	r := identityRouter(&rd)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/probe", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if rd != nil {
		t.Fatalf("handler must not run without identity")
	}
}

func TestRequireIdentityRejectsMalformedID(t *testing.T) {
	var rd *requestdata.RequestData
	r := identityRouter(&rd)

	for _, bad := range []string{"ab", "has spaces", "semi;colon", "<script>"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/probe", nil)
		req.Header.Set("X-User-ID", bad)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("id %q: expected 401, got %d", bad, w.Code)
		}
	}
}

func TestRequireIdentityAcceptsWellFormedID(t *testing.T) {
	var rd *requestdata.RequestData
	r := identityRouter(&rd)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("X-User-ID", "user_abc-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if rd == nil || rd.UserID != "user_abc-123" {
		t.Fatalf("request data not populated: %+v", rd)
	}
	if rd.APIKey != "" {
		t.Fatalf("no key header should leave APIKey empty")
	}
}

func TestRequireIdentityExtractsProviderKey(t *testing.T) {
	var rd *requestdata.RequestData
	r := identityRouter(&rd)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("X-User-ID", "user_abc")
	req.Header.Set("X-OpenAI-Key", "sk-dedicated")
	r.ServeHTTP(w, req)
	if rd == nil || rd.APIKey != "sk-dedicated" {
		t.Fatalf("expected dedicated header key, got %+v", rd)
	}

	rd = nil
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("X-User-ID", "user_abc")
	req.Header.Set("Authorization", "Bearer sk-bearer")
	r.ServeHTTP(w, req)
	if rd == nil || rd.APIKey != "sk-bearer" {
		t.Fatalf("expected bearer key, got %+v", rd)
	}

	// The dedicated header wins over a bearer token.
	rd = nil
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("X-User-ID", "user_abc")
	req.Header.Set("X-OpenAI-Key", "sk-dedicated")
	req.Header.Set("Authorization", "Bearer sk-bearer")
	r.ServeHTTP(w, req)
	if rd == nil || rd.APIKey != "sk-dedicated" {
		t.Fatalf("dedicated header should win, got %+v", rd)
	}
}
