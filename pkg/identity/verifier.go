// Package identity verifies access tokens issued by the external identity
// provider. Tokens are HS256 JWTs signed with the project's shared secret.
package identity

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Alijeyrad/rookie_backend/config"
)

type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Claims mirrors the provider's access token payload.
type Claims struct {
	Email        string         `json:"email"`
	Phone        string         `json:"phone,omitempty"`
	ProviderRole string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified, provider-neutral view of a token.
type Identity struct {
	Subject   string
	Email     string
	Name      string
	Metadata  map[string]any
	ExpiresAt time.Time
}

type Verifier struct {
	cfg    Config
	parser *jwt.Parser
}

func NewFromCentral(cfg config.IdentityConfig) (*Verifier, error) {
	return New(Config{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Leeway:   time.Duration(cfg.LeewaySeconds) * time.Second,
	})
}

func New(cfg Config) (*Verifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrConfig{Msg: "secret is required"}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{cfg: cfg, parser: jwt.NewParser(opts...)}, nil
}

func (v *Verifier) Verify(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrMissingToken
	}

	var claims Claims
	_, err := v.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.cfg.Secret, nil
	})
	if err != nil {
		return Identity{}, ErrInvalidToken{Err: err}
	}
	if claims.Subject == "" {
		return Identity{}, ErrMissingSubject
	}

	id := Identity{
		Subject:  claims.Subject,
		Email:    strings.ToLower(strings.TrimSpace(claims.Email)),
		Name:     displayName(claims.UserMetadata),
		Metadata: claims.UserMetadata,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Sign issues a token the verifier accepts. Used by tooling and tests that
// stand in for the provider.
func (v *Verifier) Sign(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:        id.Email,
		UserMetadata: id.Metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    v.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{v.cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.cfg.Secret)
}

func displayName(meta map[string]any) string {
	for _, key := range []string{"name", "full_name"} {
		if s, ok := meta[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
