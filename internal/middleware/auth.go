package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// 上下文键
const (
	ContextUserID    = "user_id"
	ContextUserName  = "user_name"
	ContextRoles     = "roles"
	ContextRequestID = "request_id"
)

// AdminRole 拥有全部角色权限
const AdminRole = "gmao_admin"

// Claims 访问令牌声明，令牌由外部认证服务签发
type Claims struct {
	UserID string   `json:"uid"`
	Name   string   `json:"name"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

func abortAuth(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "message": message})
}

// bearerToken 先取 Authorization 头，SSE 等无法设置请求头的场景回退到 ?token=
func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return c.Query("token")
}

// JWTAuth 校验 HS256 令牌，并将用户信息写入上下文
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			abortAuth(c, http.StatusUnauthorized, 40100, "Authorization is required")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			abortAuth(c, http.StatusUnauthorized, 40102, "Invalid or expired token")
			return
		}
		if claims.UserID == "" {
			claims.UserID = claims.Subject
		}
		if claims.UserID == "" {
			abortAuth(c, http.StatusUnauthorized, 40103, "Invalid token claims")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserName, claims.Name)
		c.Set(ContextRoles, claims.Roles)
		c.Next()
	}
}

// RequireRole 要求用户具备指定角色，AdminRole 总是放行
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, _ := c.Get(ContextRoles)
		userRoles, _ := roles.([]string)
		for _, r := range userRoles {
			if r == role || r == AdminRole {
				c.Next()
				return
			}
		}
		abortAuth(c, http.StatusForbidden, 40312, "Role required: "+role)
	}
}
