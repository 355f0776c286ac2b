package service

import (
	"context"
	"errors"
	"strings"

	"github.com/okian/tabroom/internal/adapters/repository"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/uptrace/bun"
)

// IssueToken signs a session token for username, creating the user on first use.
func (s *Service) IssueToken(ctx context.Context, username string) (string, *model.User, error) {
	var (
		token string
		user  *model.User
	)
	err := s.withTelemetry(ctx, "issue_token", "", func(ctx context.Context) error {
		username = strings.TrimSpace(username)
		if username == "" {
			return badRequest("username is required")
		}
		if s.tokens == nil {
			return errors.New("session tokens are not configured")
		}
		err := s.store.RunInTx(ctx, "issue token", func(ctx context.Context, tx bun.Tx) error {
			u, err := repository.UserByName(ctx, tx, username)
			if errors.Is(err, repository.ErrNotFound) {
				u = &model.User{ID: model.NewID(), Username: username, CreatedAt: s.store.Now()}
				err = repository.CreateUser(ctx, tx, u)
			}
			user = u
			return err
		})
		if err != nil {
			return err
		}
		token, err = s.tokens.Issue(user.ID, user.Username)
		return err
	})
	return token, user, err
}

// Authenticate resolves a session token to its user.
func (s *Service) Authenticate(ctx context.Context, raw string) (*model.User, error) {
	var user *model.User
	err := s.withTelemetry(ctx, "authenticate", "", func(ctx context.Context) error {
		if s.tokens == nil {
			return ErrUnauthorized
		}
		claims, err := s.tokens.Parse(raw)
		if err != nil {
			return err
		}
		user, err = repository.UserByID(ctx, s.store.DB(), claims.Subject)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnauthorized
		}
		return err
	})
	return user, err
}
