package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/calmops/taskhive/cache"
	"github.com/calmops/taskhive/password"
	"github.com/calmops/taskhive/session"
	"github.com/calmops/taskhive/storage"
	"github.com/calmops/taskhive/token"
)

// UserStore is the slice of the relational store the service needs for
// accounts. Declared here so tests can substitute in-memory doubles.
type UserStore interface {
	Create(ctx context.Context, u *storage.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*storage.User, error)
	GetByEmail(ctx context.Context, email string) (*storage.User, error)
	UpdatePasswordDigest(ctx context.Context, id uuid.UUID, digest string) error
}

// ProjectStore is the relational contract for projects and their
// owner/member relation sets.
type ProjectStore interface {
	Create(ctx context.Context, p *storage.Project) error
	Get(ctx context.Context, id uuid.UUID) (*storage.Project, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*storage.Project, error)
	ListOwned(ctx context.Context, userID uuid.UUID) ([]*storage.Project, error)
	Update(ctx context.Context, p *storage.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddMember(ctx context.Context, projectID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error
}

// TaskStore is the relational contract for tasks and their
// owner/assignee relation sets.
type TaskStore interface {
	Create(ctx context.Context, t *storage.Task) error
	Get(ctx context.Context, id uuid.UUID) (*storage.Task, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*storage.Task, error)
	Update(ctx context.Context, t *storage.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddAssignee(ctx context.Context, taskID, userID uuid.UUID) error
	RemoveAssignee(ctx context.Context, taskID, userID uuid.UUID) error
}

// Config carries the service-level lifetimes.
type Config struct {
	AccessTTL time.Duration
	ResetTTL  time.Duration
	CacheTTL  time.Duration
}

// Service is the application core: it owns the credential lifecycle and
// keeps derived caches consistent with the relational store. All
// collaborators are injected; the service holds no ambient state.
type Service struct {
	users    UserStore
	projects ProjectStore
	tasks    TaskStore
	sessions *session.Registry
	codec    *token.Codec
	hasher   *password.Hasher
	cache    *cache.Cache
	fanout   *cache.Fanout
	cfg      Config
	log      zerolog.Logger
}

func New(
	users UserStore,
	projects ProjectStore,
	tasks TaskStore,
	sessions *session.Registry,
	codec *token.Codec,
	hasher *password.Hasher,
	c *cache.Cache,
	cfg Config,
	log zerolog.Logger,
) *Service {
	return &Service{
		users:    users,
		projects: projects,
		tasks:    tasks,
		sessions: sessions,
		codec:    codec,
		hasher:   hasher,
		cache:    c,
		fanout:   cache.NewFanout(c),
		cfg:      cfg,
		log:      log,
	}
}

// unionIDs merges owner/member id sets into one deduplicated string
// slice for fan-out invalidation.
func unionIDs(sets ...[]uuid.UUID) []string {
	seen := make(map[uuid.UUID]struct{})
	var out []string
	for _, set := range sets {
		for _, id := range set {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id.String())
		}
	}
	return out
}

func containsID(set []uuid.UUID, id uuid.UUID) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}
