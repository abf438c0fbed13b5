package service

import (
	"context"
	"net/http"
	"strings"

	"brainsync-client/internal/api"
	"brainsync-client/internal/apperr"
	"brainsync-client/internal/cache"
	"brainsync-client/internal/dto"
	"brainsync-client/internal/pkg/logger"
	"brainsync-client/internal/pkg/validation"
	"brainsync-client/internal/session"
)

type IAuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*session.Identity, error)
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*cache.Subscription[session.Identity], error)
}

type authService struct {
	engine *cache.Engine
	guard  *session.Guard
	logger logger.ILogger

	login      cache.MutationDef[*dto.LoginRequest, *session.Identity]
	register   cache.MutationDef[*dto.RegisterRequest, *dto.RegisterResponse]
	logout     cache.MutationDef[struct{}, struct{}]
	getProfile cache.QueryDef[struct{}, session.Identity]
}

func NewAuthService(engine *cache.Engine, client *api.Client, guard *session.Guard, log logger.ILogger) IAuthService {
	s := &authService{
		engine: engine,
		guard:  guard,
		logger: log,
	}

	// The session is installed inside Run so that the User refetch already sees it.
	s.login = cache.MutationDef[*dto.LoginRequest, *session.Identity]{
		Name:        "login",
		Invalidates: []cache.Tag{cache.TagUser},
		Run: func(ctx context.Context, req *dto.LoginRequest) (*session.Identity, error) {
			var res dto.LoginResponse
			if err := client.Do(ctx, api.Request{Method: http.MethodPost, Path: "/users/login", Body: req}, &res); err != nil {
				return nil, err
			}
			if res.AccessToken == "" {
				return nil, apperr.NewServer(http.StatusOK, "login response carried no access token")
			}
			if err := guard.SetSession(ctx, res.AccessToken); err != nil {
				return nil, err
			}
			id, _ := guard.Identity()
			return id, nil
		},
	}

	s.register = cache.MutationDef[*dto.RegisterRequest, *dto.RegisterResponse]{
		Name: "register",
		Run: func(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
			var res dto.RegisterResponse
			if err := client.Do(ctx, api.Request{Method: http.MethodPost, Path: "/users/register", Body: req}, &res); err != nil {
				return nil, err
			}
			return &res, nil
		},
	}

	// Logout never reaches the network: the token is simply forgotten.
	s.logout = cache.MutationDef[struct{}, struct{}]{
		Name:        "logoutServer",
		Invalidates: []cache.Tag{cache.TagUser},
		Run: func(ctx context.Context, _ struct{}) (struct{}, error) {
			guard.ClearSession(ctx)
			return struct{}{}, nil
		},
	}

	s.getProfile = cache.QueryDef[struct{}, session.Identity]{
		Name:     "getProfile",
		Provides: []cache.Tag{cache.TagUser},
		Fetch: func(ctx context.Context, _ struct{}) (session.Identity, error) {
			id, ok := guard.Identity()
			if !ok {
				return session.Identity{}, apperr.NewAuth("login required")
			}
			return *id, nil
		},
	}

	return s
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*session.Identity, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.ValidateRequest(req); err != nil {
		return nil, err
	}

	id, err := cache.Mutate(ctx, s.engine, s.login, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("AuthService", "Logged in", map[string]interface{}{
		"user_id": id.UserId,
	})
	return id, nil
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.ValidateRequest(req); err != nil {
		return nil, err
	}
	return cache.Mutate(ctx, s.engine, s.register, req)
}

// Logout always leaves the session cleared, even when the engine refuses the call.
func (s *authService) Logout(ctx context.Context) error {
	_, err := cache.Mutate(ctx, s.engine, s.logout, struct{}{})
	if err != nil {
		s.guard.ClearSession(ctx)
	}
	return err
}

func (s *authService) Profile(ctx context.Context) (*cache.Subscription[session.Identity], error) {
	if err := s.guard.RequireAuth(); err != nil {
		return nil, err
	}
	return cache.Query(s.engine, s.getProfile, struct{}{}), nil
}
