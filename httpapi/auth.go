package httpapi

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const callerKey = "httpapi:caller"

// Claims bearer token claims; Subject is the caller identity
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 tokens
type Authenticator struct {
	cfg    AuthConfig
	key    []byte
	parser *jwt.Parser
	now    func() time.Time
}

// NewAuthenticator creates the authenticator; now defaults to time.Now
func NewAuthenticator(cfg AuthConfig, now func() time.Time) *Authenticator {
	if now == nil {
		now = time.Now
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithTimeFunc(now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Authenticator{
		cfg:    cfg,
		key:    []byte(cfg.Secret),
		parser: jwt.NewParser(opts...),
		now:    now,
	}
}

// Issue signs a token for subject valid for ttl
func (a *Authenticator) Issue(subject string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    a.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}}
	if a.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{a.cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
}

// Verify parses token and returns its claims
func (a *Authenticator) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.key, nil
	})
	if err != nil {
		return nil, ErrUnauthorized.Wrap(err)
	}
	if claims.Subject == "" {
		return nil, ErrUnauthorized.WithMsgf("token has no subject")
	}
	return claims, nil
}

// Middleware rejects requests without a valid "Authorization: Bearer <token>"
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			HandleError(c, ErrUnauthorized.WithMsgf("missing bearer token"))
			return
		}

		claims, err := a.Verify(token)
		if err != nil {
			HandleError(c, err)
			return
		}

		c.Set(callerKey, claims.Subject)
		c.Next()
	}
}

// CallerFrom returns the authenticated caller identity
func CallerFrom(c *gin.Context) string {
	return c.GetString(callerKey)
}
