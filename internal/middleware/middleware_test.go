package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "middleware-test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(uid string, roles ...string) *Claims {
	return &Claims{
		UserID: uid,
		Name:   "Technicien",
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(ContextUserID)})
	})
	r.GET("/ping", chain...)
	return r
}

func get(r *gin.Engine, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := newRouter(JWTAuth(testSecret))

	good := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("u-1"))
	w := get(r, "/ping", good)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"u-1"`)

	w = get(r, "/ping?token="+good, "")
	assert.Equal(t, http.StatusOK, w.Code, "query token fallback")

	w = get(r, "/ping", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "40100")

	wrongKey := signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims("u-1"))
	w = get(r, "/ping", wrongKey)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "40102")

	expired := validClaims("u-1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	w = get(r, "/ping", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	hs512 := signToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims("u-1"))
	w = get(r, "/ping", hs512)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "only HS256 is accepted")

	anonymous := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(""))
	w = get(r, "/ping", anonymous)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "40103")

	subjectOnly := validClaims("")
	subjectOnly.Subject = "u-sub"
	w = get(r, "/ping", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), subjectOnly))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"u-sub"`)
}

func TestRequireRole(t *testing.T) {
	r := newRouter(JWTAuth(testSecret), RequireRole("gmao_manager"))

	tech := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("u-1", "gmao_technician"))
	assert.Equal(t, http.StatusForbidden, get(r, "/ping", tech).Code)

	manager := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("u-2", "gmao_manager"))
	assert.Equal(t, http.StatusOK, get(r, "/ping", manager).Code)

	admin := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("u-3", AdminRole))
	assert.Equal(t, http.StatusOK, get(r, "/ping", admin).Code)
}

func TestRateLimit(t *testing.T) {
	limit, err := RateLimit("2-M", zap.NewNop())
	require.NoError(t, err)
	r := newRouter(limit)

	assert.Equal(t, http.StatusOK, get(r, "/ping", "").Code)
	w := get(r, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))

	w = get(r, "/ping", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "42900")

	_, err = RateLimit("lots", zap.NewNop())
	assert.Error(t, err)

	open, err := RateLimit("", zap.NewNop())
	require.NoError(t, err)
	r = newRouter(open)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(r, "/ping", "").Code)
	}
}

func TestRequestIDAndCORS(t *testing.T) {
	r := newRouter(RequestID(), CORS())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = get(r, "/ping", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
