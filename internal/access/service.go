package access

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/gescom/gescom/internal/shared"
)

// RepositoryPort abstracts persistence for the gate.
type RepositoryPort interface {
	Insert(ctx context.Context, p Permission) (Permission, error)
	Toggle(ctx context.Context, id int64) (Permission, error)
	ListForUser(ctx context.Context, userID int64) ([]Permission, error)
	ActiveModules(ctx context.Context, userID int64) ([]string, error)
}

// Service answers per-user, per-module grant checks. Lookups are cached in
// redis for a short TTL; concurrent misses for the same user collapse into
// one database read.
type Service struct {
	repo  RepositoryPort
	cache *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

// NewService constructs the gate. The cache client may be nil, in which
// case every check hits the database.
func NewService(repo RepositoryPort, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

// IsAllowed reports whether the user holds an active grant for the module.
// An absent or inactive permission means false, never an error.
func (s *Service) IsAllowed(ctx context.Context, userID int64, module Module) (bool, error) {
	if userID == 0 || !KnownModule(module) {
		return false, nil
	}
	modules, err := s.activeModules(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, m := range modules {
		if strings.EqualFold(m, string(module)) {
			return true, nil
		}
	}
	return false, nil
}

// Grant creates (or reactivates) a permission and invalidates the cache.
func (s *Service) Grant(ctx context.Context, userID int64, module Module, description string) (Permission, error) {
	if userID == 0 {
		return Permission{}, fmt.Errorf("%w: user id required", shared.ErrValidation)
	}
	if !KnownModule(module) {
		return Permission{}, fmt.Errorf("%w: unknown module %q", shared.ErrValidation, module)
	}
	p, err := s.repo.Insert(ctx, Permission{UserID: userID, Module: module, Description: description, Active: true})
	if err != nil {
		return Permission{}, err
	}
	s.invalidate(ctx, userID)
	return p, nil
}

// Toggle flips a permission's active flag and invalidates the cache.
func (s *Service) Toggle(ctx context.Context, id int64) (Permission, error) {
	p, err := s.repo.Toggle(ctx, id)
	if err != nil {
		return Permission{}, err
	}
	s.invalidate(ctx, p.UserID)
	return p, nil
}

// ListForUser returns every permission row for a user.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]Permission, error) {
	return s.repo.ListForUser(ctx, userID)
}

func (s *Service) activeModules(ctx context.Context, userID int64) ([]string, error) {
	key := cacheKey(userID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Result(); err == nil {
			var modules []string
			if err := json.Unmarshal([]byte(raw), &modules); err == nil {
				return modules, nil
			}
		}
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		modules, err := s.repo.ActiveModules(ctx, userID)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if raw, err := json.Marshal(modules); err == nil {
				_ = s.cache.Set(ctx, key, raw, s.ttl).Err()
			}
		}
		return modules, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, cacheKey(userID)).Err()
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("access:user:%d:modules", userID)
}
