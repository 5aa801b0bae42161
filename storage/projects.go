package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProjectStore persists projects and their owner/member relation rows.
// Every read returns the project with both id sets populated; the
// invalidation fan-out depends on seeing the complete relation state.
type ProjectStore struct {
	db *pgxpool.Pool
}

func NewProjectStore(db *pgxpool.Pool) *ProjectStore {
	return &ProjectStore{db: db}
}

// Create inserts the project and its initial owner rows in one
// transaction.
func (s *ProjectStore) Create(ctx context.Context, p *Project) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO projects (id, name, description, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)`,
			p.ID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return err
		}
		for _, uid := range p.Owners {
			if _, err := tx.Exec(ctx, `
				INSERT INTO project_owners (project_id, user_id) VALUES ($1, $2)`,
				p.ID, uid); err != nil {
				return err
			}
		}
		for _, uid := range p.Members {
			if _, err := tx.Exec(ctx, `
				INSERT INTO project_members (project_id, user_id) VALUES ($1, $2)`,
				p.ID, uid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create project: %w", mapError(err))
	}
	return nil
}

func (s *ProjectStore) Get(ctx context.Context, id uuid.UUID) (*Project, error) {
	p := &Project{}
	err := s.db.QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", mapError(err))
	}
	if err := s.loadRelations(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListForUser returns every project the user owns or is a member of.
func (s *ProjectStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Project, error) {
	ids, err := idSet(ctx, s.db, `
		SELECT project_id FROM project_owners WHERE user_id = $1
		UNION
		SELECT project_id FROM project_members WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects for user: %w", err)
	}
	return s.getAll(ctx, ids)
}

// ListOwned returns the projects where the user is an owner.
func (s *ProjectStore) ListOwned(ctx context.Context, userID uuid.UUID) ([]*Project, error) {
	ids, err := idSet(ctx, s.db, `
		SELECT project_id FROM project_owners WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list owned projects: %w", err)
	}
	return s.getAll(ctx, ids)
}

func (s *ProjectStore) Update(ctx context.Context, p *Project) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE projects SET name = $2, description = $3, updated_at = $4
		WHERE id = $1`,
		p.ID, p.Name, p.Description, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update project: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update project: %w", ErrNotFound)
	}
	return nil
}

// Delete removes the project; relation and task rows go with it via
// cascading foreign keys.
func (s *ProjectStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete project: %w", ErrNotFound)
	}
	return nil
}

func (s *ProjectStore) AddMember(ctx context.Context, projectID, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO project_members (project_id, user_id) VALUES ($1, $2)`,
		projectID, userID)
	if err != nil {
		return fmt.Errorf("add project member: %w", mapError(err))
	}
	return nil
}

func (s *ProjectStore) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`,
		projectID, userID)
	if err != nil {
		return fmt.Errorf("remove project member: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("remove project member: %w", ErrNotFound)
	}
	return nil
}

func (s *ProjectStore) loadRelations(ctx context.Context, p *Project) error {
	owners, err := idSet(ctx, s.db, `
		SELECT user_id FROM project_owners WHERE project_id = $1`, p.ID)
	if err != nil {
		return fmt.Errorf("load project owners: %w", err)
	}
	members, err := idSet(ctx, s.db, `
		SELECT user_id FROM project_members WHERE project_id = $1`, p.ID)
	if err != nil {
		return fmt.Errorf("load project members: %w", err)
	}
	p.Owners, p.Members = owners, members
	return nil
}

func (s *ProjectStore) getAll(ctx context.Context, ids []uuid.UUID) ([]*Project, error) {
	projects := make([]*Project, 0, len(ids))
	for _, id := range ids {
		p, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}
