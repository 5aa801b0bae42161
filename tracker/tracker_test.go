package tracker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/calmops/taskhive/cache"
	"github.com/calmops/taskhive/password"
	"github.com/calmops/taskhive/session"
	"github.com/calmops/taskhive/storage"
	"github.com/calmops/taskhive/token"
)

type fixture struct {
	svc      *Service
	codec    *token.Codec
	users    *memUsers
	projects *memProjects
	tasks    *memTasks
	redis    *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	codec, err := token.NewCodec(token.Config{
		SigningMethod: token.MethodHS256,
		PrivateKey:    []byte("test-signing-secret-0123456789ab"),
		Issuer:        "taskhive-test",
	})
	require.NoError(t, err)

	hasher, err := password.NewHasher(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	require.NoError(t, err)

	users := newMemUsers()
	projects := newMemProjects()
	tasks := newMemTasks(projects)

	svc := New(
		users, projects, tasks,
		session.NewRegistry(rdb, "th", time.Hour),
		codec, hasher,
		cache.New(rdb, zerolog.Nop(), 2),
		Config{
			AccessTTL: time.Minute,
			ResetTTL:  15 * time.Minute,
			CacheTTL:  5 * time.Minute,
		},
		zerolog.Nop(),
	)

	return &fixture{svc: svc, codec: codec, users: users, projects: projects, tasks: tasks, redis: mr}
}

func (f *fixture) register(t *testing.T, email string) *storage.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), email, "Test User", "hunter2hunter2")
	require.NoError(t, err)
	return u
}

func (f *fixture) login(t *testing.T, email string) *Credentials {
	t.Helper()
	creds, err := f.svc.Login(context.Background(), email, "hunter2hunter2")
	require.NoError(t, err)
	return creds
}

// In-memory relational store doubles. Reads hand out deep copies so the
// service's pre/post relation snapshots stay independent, and list
// queries count their invocations so tests can observe cache hits.

type memUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*storage.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[uuid.UUID]*storage.User{}}
}

func (m *memUsers) Create(_ context.Context, u *storage.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return fmt.Errorf("create user: %w", storage.ErrConflict)
		}
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memUsers) UpdatePasswordDigest(_ context.Context, id uuid.UUID, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.PasswordDigest = digest
	return nil
}

type memProjects struct {
	mu               sync.Mutex
	byID             map[uuid.UUID]*storage.Project
	listForUserCalls int
	listOwnedCalls   int
	getCalls         int
}

func newMemProjects() *memProjects {
	return &memProjects{byID: map[uuid.UUID]*storage.Project{}}
}

func cloneProject(p *storage.Project) *storage.Project {
	cp := *p
	cp.Owners = append([]uuid.UUID{}, p.Owners...)
	cp.Members = append([]uuid.UUID{}, p.Members...)
	return &cp
}

func (m *memProjects) Create(_ context.Context, p *storage.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.ID] = cloneProject(p)
	return nil
}

func (m *memProjects) Get(_ context.Context, id uuid.UUID) (*storage.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	p, ok := m.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneProject(p), nil
}

func (m *memProjects) ListForUser(_ context.Context, userID uuid.UUID) ([]*storage.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listForUserCalls++
	out := []*storage.Project{}
	for _, p := range m.byID {
		if hasID(p.Owners, userID) || hasID(p.Members, userID) {
			out = append(out, cloneProject(p))
		}
	}
	return out, nil
}

func (m *memProjects) ListOwned(_ context.Context, userID uuid.UUID) ([]*storage.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listOwnedCalls++
	out := []*storage.Project{}
	for _, p := range m.byID {
		if hasID(p.Owners, userID) {
			out = append(out, cloneProject(p))
		}
	}
	return out, nil
}

func (m *memProjects) Update(_ context.Context, p *storage.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[p.ID]
	if !ok {
		return storage.ErrNotFound
	}
	stored.Name, stored.Description, stored.UpdatedAt = p.Name, p.Description, p.UpdatedAt
	return nil
}

func (m *memProjects) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memProjects) AddMember(_ context.Context, projectID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[projectID]
	if !ok {
		return storage.ErrNotFound
	}
	if hasID(p.Members, userID) {
		return storage.ErrConflict
	}
	p.Members = append(p.Members, userID)
	return nil
}

func (m *memProjects) RemoveMember(_ context.Context, projectID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[projectID]
	if !ok {
		return storage.ErrNotFound
	}
	for i, id := range p.Members {
		if id == userID {
			p.Members = append(p.Members[:i], p.Members[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

type memTasks struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*storage.Task
	projects *memProjects

	listByProjectCalls int
}

func newMemTasks(projects *memProjects) *memTasks {
	return &memTasks{byID: map[uuid.UUID]*storage.Task{}, projects: projects}
}

func cloneTask(t *storage.Task) *storage.Task {
	cp := *t
	cp.Owners = append([]uuid.UUID{}, t.Owners...)
	cp.Assignees = append([]uuid.UUID{}, t.Assignees...)
	return &cp
}

func (m *memTasks) Create(_ context.Context, t *storage.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[t.ID] = cloneTask(t)
	return nil
}

func (m *memTasks) Get(_ context.Context, id uuid.UUID) (*storage.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneTask(t), nil
}

func (m *memTasks) ListByProject(_ context.Context, projectID uuid.UUID) ([]*storage.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listByProjectCalls++
	out := []*storage.Task{}
	for _, t := range m.byID {
		if t.ProjectID == projectID {
			out = append(out, cloneTask(t))
		}
	}
	return out, nil
}

func (m *memTasks) Update(_ context.Context, t *storage.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[t.ID]
	if !ok {
		return storage.ErrNotFound
	}
	stored.Title, stored.Status, stored.UpdatedAt = t.Title, t.Status, t.UpdatedAt
	return nil
}

func (m *memTasks) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memTasks) AddAssignee(_ context.Context, taskID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[taskID]
	if !ok {
		return storage.ErrNotFound
	}
	if hasID(t.Assignees, userID) {
		return storage.ErrConflict
	}
	t.Assignees = append(t.Assignees, userID)
	return nil
}

func (m *memTasks) RemoveAssignee(_ context.Context, taskID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[taskID]
	if !ok {
		return storage.ErrNotFound
	}
	for i, id := range t.Assignees {
		if id == userID {
			t.Assignees = append(t.Assignees[:i], t.Assignees[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func hasID(set []uuid.UUID, id uuid.UUID) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}
