package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/calmops/taskhive/cache"
	"github.com/calmops/taskhive/storage"
)

func taskParentKey(projectID uuid.UUID) string {
	return "project:" + projectID.String()
}

// CreateTask inserts a task under the project with the creator as its
// first owner. Any project owner or member may create tasks.
func (s *Service) CreateTask(ctx context.Context, creatorID, projectID uuid.UUID, title string) (*storage.Task, error) {
	proj, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !containsID(proj.Owners, creatorID) && !containsID(proj.Members, creatorID) {
		return nil, ErrForbidden
	}

	now := time.Now()
	t := &storage.Task{
		ID:        uuid.New(),
		ProjectID: projectID,
		Title:     title,
		Status:    storage.TaskOpen,
		Owners:    []uuid.UUID{creatorID},
		Assignees: []uuid.UUID{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, err
	}
	if err := s.fanout.OnCreate(ctx, cache.KindTask, creatorID.String(), taskParentKey(projectID)); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTask serves the task through the cache; the caller must have
// access to the enclosing project.
func (s *Service) GetTask(ctx context.Context, callerID, taskID uuid.UUID) (*storage.Task, error) {
	t, err := cache.GetOrSet(ctx, s.cache, cache.NamespaceTask, taskID.String(), s.cfg.CacheTTL,
		func(ctx context.Context) (*storage.Task, error) {
			return s.tasks.Get(ctx, taskID)
		})
	if err != nil {
		return nil, err
	}
	if err := s.requireProjectAccess(ctx, callerID, t.ProjectID); err != nil {
		return nil, err
	}
	return t, nil
}

// ListProjectTasks lists a project's tasks cache-aside under
// tasks:project:<projectID>.
func (s *Service) ListProjectTasks(ctx context.Context, callerID, projectID uuid.UUID) ([]*storage.Task, error) {
	if err := s.requireProjectAccess(ctx, callerID, projectID); err != nil {
		return nil, err
	}
	return cache.GetOrSet(ctx, s.cache, cache.NamespaceTasks, taskParentKey(projectID), s.cfg.CacheTTL,
		func(ctx context.Context) ([]*storage.Task, error) {
			return s.tasks.ListByProject(ctx, projectID)
		})
}

// UpdateTask changes title and status. Task owners and project owners
// may update.
func (s *Service) UpdateTask(ctx context.Context, actorID, taskID uuid.UUID, title string, status storage.TaskStatus) (*storage.Task, error) {
	pre, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.requireTaskWrite(ctx, actorID, pre); err != nil {
		return nil, err
	}

	pre.Title, pre.Status, pre.UpdatedAt = title, status, time.Now()
	if err := s.tasks.Update(ctx, pre); err != nil {
		return nil, err
	}

	post, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.invalidateTask(ctx, pre, post); err != nil {
		return nil, err
	}
	cache.Set(ctx, s.cache, cache.NamespaceTask, taskID.String(), post, s.cfg.CacheTTL)
	return post, nil
}

// AddTaskAssignee assigns userID to the task.
func (s *Service) AddTaskAssignee(ctx context.Context, actorID, taskID, userID uuid.UUID) (*storage.Task, error) {
	return s.mutateAssignees(ctx, actorID, taskID, func(ctx context.Context) error {
		return s.tasks.AddAssignee(ctx, taskID, userID)
	})
}

// RemoveTaskAssignee unassigns userID. The removed user's listing keys
// are invalidated via the pre-mutation assignee set.
func (s *Service) RemoveTaskAssignee(ctx context.Context, actorID, taskID, userID uuid.UUID) (*storage.Task, error) {
	return s.mutateAssignees(ctx, actorID, taskID, func(ctx context.Context) error {
		return s.tasks.RemoveAssignee(ctx, taskID, userID)
	})
}

// DeleteTask removes the task; the fan-out runs over the pre-delete
// relation sets.
func (s *Service) DeleteTask(ctx context.Context, actorID, taskID uuid.UUID) error {
	pre, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.requireTaskWrite(ctx, actorID, pre); err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return err
	}
	return s.fanout.OnDelete(ctx, cache.KindTask, pre.ID.String(), taskParentKey(pre.ProjectID),
		unionIDs(pre.Owners, pre.Assignees))
}

func (s *Service) mutateAssignees(ctx context.Context, actorID, taskID uuid.UUID, mutate func(context.Context) error) (*storage.Task, error) {
	pre, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.requireTaskWrite(ctx, actorID, pre); err != nil {
		return nil, err
	}

	if err := mutate(ctx); err != nil {
		return nil, err
	}

	post, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.invalidateTask(ctx, pre, post); err != nil {
		return nil, err
	}
	cache.Set(ctx, s.cache, cache.NamespaceTask, taskID.String(), post, s.cfg.CacheTTL)
	return post, nil
}

func (s *Service) invalidateTask(ctx context.Context, pre, post *storage.Task) error {
	union := unionIDs(pre.Owners, pre.Assignees, post.Owners, post.Assignees)
	return s.fanout.OnUpdate(ctx, cache.KindTask, pre.ID.String(), taskParentKey(pre.ProjectID), union)
}

// requireProjectAccess checks owner-or-member against the authoritative
// store, not the cache, so a just-removed member cannot read through a
// stale entry.
func (s *Service) requireProjectAccess(ctx context.Context, callerID, projectID uuid.UUID) error {
	proj, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if !containsID(proj.Owners, callerID) && !containsID(proj.Members, callerID) {
		return ErrForbidden
	}
	return nil
}

func (s *Service) requireTaskWrite(ctx context.Context, actorID uuid.UUID, t *storage.Task) error {
	if containsID(t.Owners, actorID) {
		return nil
	}
	proj, err := s.projects.Get(ctx, t.ProjectID)
	if err != nil {
		return err
	}
	if !containsID(proj.Owners, actorID) {
		return ErrForbidden
	}
	return nil
}
