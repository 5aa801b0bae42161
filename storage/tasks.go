package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskStore persists tasks and their owner/assignee relation rows.
type TaskStore struct {
	db *pgxpool.Pool
}

func NewTaskStore(db *pgxpool.Pool) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) Create(ctx context.Context, t *Task) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO tasks (id, project_id, title, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			t.ID, t.ProjectID, t.Title, t.Status, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return err
		}
		for _, uid := range t.Owners {
			if _, err := tx.Exec(ctx, `
				INSERT INTO task_owners (task_id, user_id) VALUES ($1, $2)`,
				t.ID, uid); err != nil {
				return err
			}
		}
		for _, uid := range t.Assignees {
			if _, err := tx.Exec(ctx, `
				INSERT INTO task_assignees (task_id, user_id) VALUES ($1, $2)`,
				t.ID, uid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create task: %w", mapError(err))
	}
	return nil
}

func (s *TaskStore) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	t := &Task{}
	err := s.db.QueryRow(ctx, `
		SELECT id, project_id, title, status, created_at, updated_at
		FROM tasks WHERE id = $1`, id).
		Scan(&t.ID, &t.ProjectID, &t.Title, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", mapError(err))
	}
	if err := s.loadRelations(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TaskStore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*Task, error) {
	ids, err := idSet(ctx, s.db, `
		SELECT id FROM tasks WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by project: %w", err)
	}
	tasks := make([]*Task, 0, len(ids))
	for _, id := range ids {
		t, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (s *TaskStore) Update(ctx context.Context, t *Task) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE tasks SET title = $2, status = $3, updated_at = $4
		WHERE id = $1`,
		t.ID, t.Title, t.Status, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update task: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update task: %w", ErrNotFound)
	}
	return nil
}

func (s *TaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete task: %w", ErrNotFound)
	}
	return nil
}

func (s *TaskStore) AddAssignee(ctx context.Context, taskID, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO task_assignees (task_id, user_id) VALUES ($1, $2)`,
		taskID, userID)
	if err != nil {
		return fmt.Errorf("add task assignee: %w", mapError(err))
	}
	return nil
}

func (s *TaskStore) RemoveAssignee(ctx context.Context, taskID, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM task_assignees WHERE task_id = $1 AND user_id = $2`,
		taskID, userID)
	if err != nil {
		return fmt.Errorf("remove task assignee: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("remove task assignee: %w", ErrNotFound)
	}
	return nil
}

func (s *TaskStore) loadRelations(ctx context.Context, t *Task) error {
	owners, err := idSet(ctx, s.db, `
		SELECT user_id FROM task_owners WHERE task_id = $1`, t.ID)
	if err != nil {
		return fmt.Errorf("load task owners: %w", err)
	}
	assignees, err := idSet(ctx, s.db, `
		SELECT user_id FROM task_assignees WHERE task_id = $1`, t.ID)
	if err != nil {
		return fmt.Errorf("load task assignees: %w", err)
	}
	t.Owners, t.Assignees = owners, assignees
	return nil
}
