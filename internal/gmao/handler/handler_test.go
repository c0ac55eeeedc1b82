package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"github.com/JBDLC/GMAO/internal/gmao/service"
	"github.com/JBDLC/GMAO/internal/gmao/testutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func setupGMAOTest(t *testing.T) (*gin.Engine, *testutil.TestEnv) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	svc := service.NewServices(service.Deps{
		DB:     db,
		Repos:  repository.NewRepositories(db),
		Logger: zap.NewNop(),
	})
	h := NewHandlers(svc, nil, nil)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")
	h.Register(api)

	return router, &testutil.TestEnv{DB: db, Router: router, T: t}
}

func expectStatus(t *testing.T, got, want int, body string) {
	t.Helper()
	if got != want {
		t.Fatalf("Expected %d, got %d: %s", want, got, body)
	}
}

// dataOf 断言状态码并取出 data 对象
func dataOf(t *testing.T, w *httptest.ResponseRecorder, want int) map[string]interface{} {
	t.Helper()
	expectStatus(t, w.Code, want, w.Body.String())
	resp := testutil.ParseResponse(w)
	data, ok := resp["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected data object, got %v", resp["data"])
	}
	return data
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	router, _ := setupGMAOTest(t)

	w := testutil.DoRequest(router, "GET", "/api/v1/machines", nil, "")
	expectStatus(t, w.Code, http.StatusUnauthorized, w.Body.String())

	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 40100 {
		t.Errorf("Expected code 40100, got %v", resp["code"])
	}
}

func TestUnknownResourceReturnsNotFound(t *testing.T) {
	router, _ := setupGMAOTest(t)
	token := testutil.DefaultTestToken()

	paths := []string{
		"/api/v1/machines/does-not-exist",
		"/api/v1/plans/does-not-exist",
		"/api/v1/stocks/does-not-exist",
		"/api/v1/movements/does-not-exist",
	}
	for _, p := range paths {
		w := testutil.DoRequest(router, "GET", p, nil, token)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d: %s", p, w.Code, w.Body.String())
			continue
		}
		resp := testutil.ParseResponse(w)
		if resp["code"].(float64) != 40400 {
			t.Errorf("%s: expected code 40400, got %v", p, resp["code"])
		}
	}
}
