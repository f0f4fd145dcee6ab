package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Alijeyrad/rookie_backend/config"
)

var ErrProviderUnavailable = errors.New("identity provider unavailable")

// ErrRejected is a 4xx answer from the provider, such as an existing email
// on sign-up or bad credentials on sign-in.
type ErrRejected struct {
	Status int
	Msg    string
}

func (e ErrRejected) Error() string {
	return fmt.Sprintf("identity provider rejected request (status=%d): %s", e.Status, e.Msg)
}

// Account is the provider's view of a user.
type Account struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// Session is the token pair issued on sign-in.
type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	User         *Account `json:"user,omitempty"`
}

// Provider talks to a GoTrue compatible auth REST API (Supabase Auth) for
// the password flows. Tokens it issues are checked by Verifier.
type Provider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewProviderFromCentral returns nil when no provider URL is configured.
func NewProviderFromCentral(cfg config.IdentityConfig) (*Provider, error) {
	if cfg.ProviderURL == "" {
		return nil, nil
	}
	return NewProvider(cfg.ProviderURL, cfg.APIKey, time.Duration(cfg.TimeoutSeconds)*time.Second)
}

func NewProvider(baseURL, apiKey string, timeout time.Duration) (*Provider, error) {
	if baseURL == "" || apiKey == "" {
		return nil, ErrConfig{Msg: "provider_url and api_key are required"}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// SignUp registers a password account. metadata lands in the account's
// user_metadata.
func (p *Provider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Account, error) {
	body := map[string]any{"email": email, "password": password, "data": metadata}

	// With email confirmation on the answer is the bare user, otherwise a
	// session wrapping it.
	var out struct {
		Account
		User *Account `json:"user"`
	}
	if err := p.do(ctx, "/signup", "", body, &out); err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	acc := &out.Account
	if out.User != nil {
		acc = out.User
	}
	if acc.ID == "" {
		return nil, fmt.Errorf("sign up: %w: no user id", ErrProviderUnavailable)
	}
	return acc, nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}

	var s Session
	if err := p.do(ctx, "/token?grant_type=password", "", body, &s); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if s.AccessToken == "" || s.User == nil {
		return nil, fmt.Errorf("sign in: %w: no session", ErrProviderUnavailable)
	}
	return &s, nil
}

// SignOut revokes the refresh tokens of the session behind accessToken.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	if err := p.do(ctx, "/logout", accessToken, nil, nil); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func (p *Provider) do(ctx context.Context, path, bearer string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 500 {
		return fmt.Errorf("%w (status=%d)", ErrProviderUnavailable, res.StatusCode)
	}
	if res.StatusCode >= 400 {
		return ErrRejected{Status: res.StatusCode, Msg: rejectionMessage(res.Body)}
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// rejectionMessage picks the human readable field out of the error shapes
// GoTrue has used across versions.
func rejectionMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var e struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil {
		for _, m := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
			if m != "" {
				return m
			}
		}
	}
	return strings.TrimSpace(string(raw))
}
