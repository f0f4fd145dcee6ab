package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	p, err := NewProvider(srv.URL+"/auth/v1/", "anon-key", time.Second)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	return p
}

func TestNewProvider_RequiresURLAndKey(t *testing.T) {
	var cfgErr ErrConfig
	if _, err := NewProvider("", "key", 0); !errors.As(err, &cfgErr) {
		t.Errorf("Expected ErrConfig, got %v", err)
	}
	if _, err := NewProvider("https://auth.example.com", "", 0); !errors.As(err, &cfgErr) {
		t.Errorf("Expected ErrConfig, got %v", err)
	}
}

func TestSignUp(t *testing.T) {
	tests := []struct {
		name string
		resp string
	}{
		{"confirmation pending", `{"id":"u-1","email":"ada@example.com"}`},
		{"auto confirmed", `{"access_token":"at","user":{"id":"u-1","email":"ada@example.com"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/auth/v1/signup" {
					t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
				}
				if r.Header.Get("apikey") != "anon-key" {
					t.Errorf("Expected apikey header, got %q", r.Header.Get("apikey"))
				}
				var body struct {
					Email    string         `json:"email"`
					Password string         `json:"password"`
					Data     map[string]any `json:"data"`
				}
				_ = json.NewDecoder(r.Body).Decode(&body)
				if body.Email != "ada@example.com" || body.Password != "s3cret-pass" || body.Data["full_name"] != "Ada" {
					t.Errorf("Unexpected body %+v", body)
				}
				_, _ = w.Write([]byte(tt.resp))
			})

			acc, err := p.SignUp(context.Background(), "ada@example.com", "s3cret-pass", map[string]any{"full_name": "Ada"})
			if err != nil {
				t.Fatalf("SignUp failed: %v", err)
			}
			if acc.ID != "u-1" || acc.Email != "ada@example.com" {
				t.Errorf("Expected account u-1, got %+v", acc)
			}
		})
	}
}

func TestSignIn_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		rejected bool
		msg      string
	}{
		{"bad credentials", http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`, true, "Invalid login credentials"},
		{"newer error shape", http.StatusBadRequest, `{"code":400,"msg":"Email not confirmed"}`, true, "Email not confirmed"},
		{"provider down", http.StatusServiceUnavailable, `oops`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
					t.Errorf("Unexpected request %s", r.URL.String())
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := p.SignIn(context.Background(), "ada@example.com", "wrong")
			var rej ErrRejected
			if tt.rejected {
				if !errors.As(err, &rej) {
					t.Fatalf("Expected ErrRejected, got %v", err)
				}
				if rej.Msg != tt.msg {
					t.Errorf("Expected message %q, got %q", tt.msg, rej.Msg)
				}
				return
			}
			if !errors.Is(err, ErrProviderUnavailable) {
				t.Errorf("Expected ErrProviderUnavailable, got %v", err)
			}
		})
	}
}

func TestSignInAndOut(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","token_type":"bearer","expires_in":3600,"user":{"id":"u-1","email":"ada@example.com"}}`))
		case "/auth/v1/logout":
			if r.Header.Get("Authorization") != "Bearer at-1" {
				t.Errorf("Expected bearer token, got %q", r.Header.Get("Authorization"))
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
	})

	s, err := p.SignIn(context.Background(), "ada@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if s.AccessToken != "at-1" || s.User.ID != "u-1" || s.ExpiresIn != 3600 {
		t.Errorf("Unexpected session %+v", s)
	}
	if err := p.SignOut(context.Background(), s.AccessToken); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
}
