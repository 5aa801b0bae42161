package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/calmops/taskhive/cache"
	"github.com/calmops/taskhive/storage"
)

// CreateProject inserts a project owned by creatorID and invalidates the
// creator's listing keys.
func (s *Service) CreateProject(ctx context.Context, creatorID uuid.UUID, name, description string) (*storage.Project, error) {
	now := time.Now()
	p := &storage.Project{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Owners:      []uuid.UUID{creatorID},
		Members:     []uuid.UUID{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, err
	}
	if err := s.fanout.OnCreate(ctx, cache.KindProject, creatorID.String(), ""); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProject serves the project through the cache; access requires the
// caller to be an owner or member.
func (s *Service) GetProject(ctx context.Context, callerID, projectID uuid.UUID) (*storage.Project, error) {
	p, err := cache.GetOrSet(ctx, s.cache, cache.NamespaceProject, projectID.String(), s.cfg.CacheTTL,
		func(ctx context.Context) (*storage.Project, error) {
			return s.projects.Get(ctx, projectID)
		})
	if err != nil {
		return nil, err
	}
	if !containsID(p.Owners, callerID) && !containsID(p.Members, callerID) {
		return nil, ErrForbidden
	}
	return p, nil
}

// ListProjects returns every project the user owns or belongs to,
// cache-aside under projects:<userID>.
func (s *Service) ListProjects(ctx context.Context, userID uuid.UUID) ([]*storage.Project, error) {
	return cache.GetOrSet(ctx, s.cache, cache.NamespaceProjects, userID.String(), s.cfg.CacheTTL,
		func(ctx context.Context) ([]*storage.Project, error) {
			return s.projects.ListForUser(ctx, userID)
		})
}

// ListOwnedProjects is the owner-only variant, cached under
// projects:owned:<userID>.
func (s *Service) ListOwnedProjects(ctx context.Context, userID uuid.UUID) ([]*storage.Project, error) {
	return cache.GetOrSet(ctx, s.cache, cache.NamespaceProjects, "owned:"+userID.String(), s.cfg.CacheTTL,
		func(ctx context.Context) ([]*storage.Project, error) {
			return s.projects.ListOwned(ctx, userID)
		})
}

// UpdateProject renames or re-describes a project. Owners only. The
// fan-out uses the union of pre- and post-mutation relation sets, and
// the refreshed entity is written back so the next read hits.
func (s *Service) UpdateProject(ctx context.Context, actorID, projectID uuid.UUID, name, description string) (*storage.Project, error) {
	pre, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !containsID(pre.Owners, actorID) {
		return nil, ErrForbidden
	}

	pre.Name, pre.Description, pre.UpdatedAt = name, description, time.Now()
	if err := s.projects.Update(ctx, pre); err != nil {
		return nil, err
	}

	post, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.invalidateProject(ctx, projectID, pre, post); err != nil {
		return nil, err
	}
	cache.Set(ctx, s.cache, cache.NamespaceProject, projectID.String(), post, s.cfg.CacheTTL)
	return post, nil
}

// AddProjectMember adds userID to the member set. Owners only.
func (s *Service) AddProjectMember(ctx context.Context, actorID, projectID, userID uuid.UUID) (*storage.Project, error) {
	return s.mutateMembers(ctx, actorID, projectID, func(ctx context.Context) error {
		return s.projects.AddMember(ctx, projectID, userID)
	})
}

// RemoveProjectMember removes userID from the member set. Owners only.
// The removed user's listing keys are still invalidated because the
// fan-out unions the pre-mutation member set.
func (s *Service) RemoveProjectMember(ctx context.Context, actorID, projectID, userID uuid.UUID) (*storage.Project, error) {
	return s.mutateMembers(ctx, actorID, projectID, func(ctx context.Context) error {
		return s.projects.RemoveMember(ctx, projectID, userID)
	})
}

// DeleteProject removes the project. The fan-out runs over the
// pre-delete relation sets, the only ones left; cached task listings
// under the project are dropped with it.
func (s *Service) DeleteProject(ctx context.Context, actorID, projectID uuid.UUID) error {
	pre, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if !containsID(pre.Owners, actorID) {
		return ErrForbidden
	}

	if err := s.projects.Delete(ctx, projectID); err != nil {
		return err
	}
	if err := s.fanout.OnDelete(ctx, cache.KindProject, projectID.String(), "", unionIDs(pre.Owners, pre.Members)); err != nil {
		return err
	}
	// Task rows cascade away with the project; their cached listing must
	// not outlive them. Individual task entries age out via TTL.
	return s.cache.Invalidate(ctx, cache.NamespaceTasks, "project:"+projectID.String())
}

func (s *Service) mutateMembers(ctx context.Context, actorID, projectID uuid.UUID, mutate func(context.Context) error) (*storage.Project, error) {
	pre, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !containsID(pre.Owners, actorID) {
		return nil, ErrForbidden
	}

	if err := mutate(ctx); err != nil {
		return nil, err
	}

	post, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.invalidateProject(ctx, projectID, pre, post); err != nil {
		return nil, err
	}
	cache.Set(ctx, s.cache, cache.NamespaceProject, projectID.String(), post, s.cfg.CacheTTL)
	return post, nil
}

func (s *Service) invalidateProject(ctx context.Context, projectID uuid.UUID, pre, post *storage.Project) error {
	union := unionIDs(pre.Owners, pre.Members, post.Owners, post.Members)
	return s.fanout.OnUpdate(ctx, cache.KindProject, projectID.String(), "", union)
}
