package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Alijeyrad/rookie_backend/internal/schema"
	idp "github.com/Alijeyrad/rookie_backend/pkg/identity"
)

// Accounts is the identity provider's password API.
type Accounts interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*idp.Account, error)
	SignIn(ctx context.Context, email, password string) (*idp.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

type SignUpRequest struct {
	Email    string
	Password string
	Name     string
}

type SignInResult struct {
	Session *idp.Session
	User    *schema.User
}

func (s *identityService) SignUp(ctx context.Context, req SignUpRequest) (*schema.User, error) {
	if s.accounts == nil {
		return nil, ErrPasswordAuthDisabled
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	acc, err := s.accounts.SignUp(ctx, req.Email, req.Password, map[string]any{"full_name": req.Name})
	if err != nil {
		return nil, providerError(err, ErrSignUpRejected)
	}

	email := acc.Email
	if email == "" {
		email = req.Email
	}
	u, _, err := s.CreateUser(ctx, CreateUserRequest{
		ExternalAuthID: acc.ID,
		Email:          email,
		Name:           req.Name,
		Role:           schema.RoleLearner,
	})
	if err != nil {
		// The provider's user.created hook retries the profile later.
		slog.ErrorContext(ctx, "sign-up profile creation failed", "external_auth_id", acc.ID, "error", err)
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return u, nil
}

func (s *identityService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	if s.accounts == nil {
		return nil, ErrPasswordAuthDisabled
	}
	sess, err := s.accounts.SignIn(ctx, strings.ToLower(strings.TrimSpace(email)), password)
	if err != nil {
		return nil, providerError(err, ErrInvalidCredentials)
	}

	name, _ := sess.User.UserMetadata["full_name"].(string)
	u, err := s.Resolve(ctx, idp.Identity{Subject: sess.User.ID, Email: sess.User.Email, Name: name})
	if err != nil {
		return nil, err
	}
	return &SignInResult{Session: sess, User: u}, nil
}

// SignOut revokes the session behind accessToken. A token the provider no
// longer accepts is already signed out.
func (s *identityService) SignOut(ctx context.Context, accessToken string) error {
	if s.accounts == nil {
		return ErrPasswordAuthDisabled
	}
	err := s.accounts.SignOut(ctx, accessToken)
	var rej idp.ErrRejected
	if err == nil || errors.As(err, &rej) {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

func providerError(err, rejected error) error {
	var rej idp.ErrRejected
	if errors.As(err, &rej) {
		if errors.Is(rejected, ErrInvalidCredentials) {
			return rejected
		}
		return fmt.Errorf("%w: %s", rejected, rej.Msg)
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
