package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("expired token")
)

// Method 认证方法类型
type Method string

const (
	MethodAPIKey Method = "apikey"
	MethodJWT    Method = "jwt"
)

// Principal 通过认证的调用方
type Principal struct {
	Subject string
	Method  Method
}

// Config 鉴权配置, 两种方式都未配置时 Enabled 为 false
type Config struct {
	APIKeys   []string
	JWTSecret string
	JWTIssuer string
}

// Enabled 是否需要鉴权
func (c Config) Enabled() bool {
	return len(c.APIKeys) > 0 || c.JWTSecret != ""
}

// Claims JWT 声明
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator 校验 X-API-Key 或 Bearer JWT
type Authenticator struct {
	apiKeys [][]byte
	secret  []byte
	issuer  string
}

// NewAuthenticator 创建认证器
func NewAuthenticator(cfg Config) *Authenticator {
	a := &Authenticator{issuer: cfg.JWTIssuer}
	if a.issuer == "" {
		a.issuer = "careerpilot"
	}
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			a.apiKeys = append(a.apiKeys, []byte(k))
		}
	}
	if cfg.JWTSecret != "" {
		a.secret = []byte(cfg.JWTSecret)
	}
	return a
}

// ValidateAPIKey 逐个常量时间比较
func (a *Authenticator) ValidateAPIKey(key string) (*Principal, error) {
	if key == "" {
		return nil, ErrMissingCredentials
	}
	for i, k := range a.apiKeys {
		if subtle.ConstantTimeCompare(k, []byte(key)) == 1 {
			return &Principal{Subject: "apikey-" + strconv.Itoa(i), Method: MethodAPIKey}, nil
		}
	}
	return nil, ErrInvalidCredentials
}

// ValidateToken 校验 HS256 令牌的签名、有效期与签发方
func (a *Authenticator) ValidateToken(tokenString string) (*Principal, error) {
	if a.secret == nil {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return &Principal{Subject: claims.Subject, Method: MethodJWT}, nil
}

// GenerateToken 签发令牌, 供运维脚本与测试使用
func (a *Authenticator) GenerateToken(subject string, ttl time.Duration) (string, time.Time, error) {
	if a.secret == nil {
		return "", time.Time{}, errors.New("jwt secret not configured")
	}
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    a.issuer,
			Subject:   subject,
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, expiresAt, nil
}

// Authenticate 从请求头取凭证: 先 X-API-Key, 再 Authorization: Bearer
func (a *Authenticator) Authenticate(r interface{ Header(string) string }) (*Principal, error) {
	if key := r.Header("X-API-Key"); key != "" {
		return a.ValidateAPIKey(key)
	}
	h := r.Header("Authorization")
	if h == "" {
		return nil, ErrMissingCredentials
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, ErrInvalidCredentials
	}
	token = strings.TrimSpace(token)
	if a.secret == nil {
		// 未配置 JWT 时 Bearer 值按 API Key 处理
		return a.ValidateAPIKey(token)
	}
	return a.ValidateToken(token)
}

type principalKey struct{}

// ContextWithPrincipal 把调用方写入 ctx
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom 取出调用方, 未鉴权时为 nil
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

type ginHeaders struct{ c *gin.Context }

func (g ginHeaders) Header(k string) string { return g.c.GetHeader(k) }

// Middleware 拒绝未认证请求, 响应 401 纯文本
func Middleware(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := a.Authenticate(ginHeaders{c})
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer realm="careerpilot"`)
			c.String(http.StatusUnauthorized, "Unauthorized: %s", err.Error())
			c.Abort()
			return
		}
		c.Set("principal", p.Subject)
		c.Request = c.Request.WithContext(ContextWithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}
