package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

type AuthConfig struct {
	Enabled    bool
	HMACSecret string
	Issuer     string
	Audience   string
	TokenTTL   time.Duration
	ClockSkew  time.Duration
}

type contextKey string

const (
	ContextKeyToken   contextKey = "gateway.token"
	ContextKeySubject contextKey = "gateway.subject"
)

var (
	ErrMissingToken    = errors.New("auth: missing bearer token")
	ErrInvalidToken    = errors.New("auth: invalid token")
	ErrSecretNotSet    = errors.New("auth: secret not configured")
	ErrSubjectMismatch = errors.New("auth: token subject does not match caller")
)

// Authenticator verifies HMAC signed JWTs. The token subject identifies the
// account allowed to act in the request.
type Authenticator struct {
	cfg    AuthConfig
	logger *slog.Logger
	secret []byte
	nowFn  func() time.Time
}

func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	return &Authenticator{
		cfg:    cfg,
		logger: logger,
		secret: []byte(strings.TrimSpace(cfg.HMACSecret)),
		nowFn:  time.Now,
	}
}

// Enabled reports whether tokens are enforced.
func (a *Authenticator) Enabled() bool {
	return a != nil && a.cfg.Enabled
}

// Middleware attaches the verified subject to the request context. Requests
// without a token pass through unauthenticated; requests carrying a bad token
// are rejected.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		tokenString := extractBearer(r.Header.Get("Authorization"))
		if tokenString == "" {
			next.ServeHTTP(w, r)
			return
		}
		subject, err := a.Verify(tokenString)
		if err != nil {
			a.logger.Warn("auth: token validation failed", "error", err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ContextKeyToken, tokenString)
		ctx = context.WithValue(ctx, ContextKeySubject, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authorize checks that the authenticated subject matches the acting account.
func (a *Authenticator) Authorize(ctx context.Context, account string) error {
	if !a.Enabled() {
		return nil
	}
	subject := Subject(ctx)
	if subject == "" {
		return ErrMissingToken
	}
	if !strings.EqualFold(subject, strings.TrimSpace(account)) {
		return ErrSubjectMismatch
	}
	return nil
}

// Subject returns the verified token subject stored on the context.
func Subject(ctx context.Context) string {
	subject, _ := ctx.Value(ContextKeySubject).(string)
	return subject
}

// Verify parses the token and returns its subject.
func (a *Authenticator) Verify(tokenString string) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrSecretNotSet
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.nowFn),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("%w: subject required", ErrInvalidToken)
	}
	return subject, nil
}

// Issue signs a token for subject using the configured secret and TTL.
func (a *Authenticator) Issue(subject string) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrSecretNotSet
	}
	now := a.nowFn()
	claims := jwt.RegisteredClaims{
		Subject:   strings.TrimSpace(subject),
		Issuer:    a.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.TokenTTL)),
	}
	if a.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{a.cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
