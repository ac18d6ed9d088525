package access

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/gescom/gescom/internal/shared"
)

type memoryRepo struct {
	nextID      int64
	permissions map[int64]*Permission
	reads       int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, permissions: map[int64]*Permission{}}
}

func (m *memoryRepo) Insert(_ context.Context, p Permission) (Permission, error) {
	for _, existing := range m.permissions {
		if existing.UserID == p.UserID && existing.Module == p.Module {
			existing.Description = p.Description
			existing.Active = true
			return *existing, nil
		}
	}
	p.ID = m.nextID
	m.nextID++
	stored := p
	m.permissions[p.ID] = &stored
	return p, nil
}

func (m *memoryRepo) Toggle(_ context.Context, id int64) (Permission, error) {
	p, ok := m.permissions[id]
	if !ok {
		return Permission{}, shared.ErrNotFound
	}
	p.Active = !p.Active
	return *p, nil
}

func (m *memoryRepo) ListForUser(_ context.Context, userID int64) ([]Permission, error) {
	var out []Permission
	for _, p := range m.permissions {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memoryRepo) ActiveModules(_ context.Context, userID int64) ([]string, error) {
	m.reads++
	var out []string
	for _, p := range m.permissions {
		if p.UserID == userID && p.Active {
			out = append(out, string(p.Module))
		}
	}
	return out, nil
}

func testCache(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func TestIsAllowedAbsentPermission(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, time.Minute)

	allowed, err := svc.IsAllowed(context.Background(), 1, ModuleStock)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestIsAllowedActiveGrant(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testCache(t), time.Minute)

	_, err := svc.Grant(context.Background(), 1, ModuleStock, "stock clerk")
	require.NoError(t, err)

	allowed, err := svc.IsAllowed(context.Background(), 1, ModuleStock)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = svc.IsAllowed(context.Background(), 1, ModuleSales)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestIsAllowedCachesLookups(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testCache(t), time.Minute)

	_, err := svc.Grant(context.Background(), 1, ModuleStock, "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.IsAllowed(context.Background(), 1, ModuleStock)
		require.NoError(t, err)
	}
	require.Equal(t, 1, repo.reads)
}

func TestToggleInvalidatesCache(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testCache(t), time.Minute)

	p, err := svc.Grant(context.Background(), 1, ModuleStock, "")
	require.NoError(t, err)

	allowed, err := svc.IsAllowed(context.Background(), 1, ModuleStock)
	require.NoError(t, err)
	require.True(t, allowed)

	_, err = svc.Toggle(context.Background(), p.ID)
	require.NoError(t, err)

	allowed, err = svc.IsAllowed(context.Background(), 1, ModuleStock)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestGrantRejectsUnknownModule(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, time.Minute)

	_, err := svc.Grant(context.Background(), 1, Module("billing"), "")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestIsAllowedUnknownModuleOrAnonymous(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, time.Minute)

	allowed, err := svc.IsAllowed(context.Background(), 0, ModuleStock)
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, err = svc.IsAllowed(context.Background(), 1, Module("billing"))
	require.NoError(t, err)
	require.False(t, allowed)
}
