package storage

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus enumerates the states a task moves through.
type TaskStatus string

const (
	TaskOpen   TaskStatus = "open"
	TaskActive TaskStatus = "active"
	TaskDone   TaskStatus = "done"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	PasswordDigest string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Project carries its full owner and member id sets on every read; the
// invalidation fan-out needs both, so partial loads are not offered.
type Project struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Owners      []uuid.UUID `json:"owners"`
	Members     []uuid.UUID `json:"members"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Task mirrors Project's shape: an owners set plus an assignees set,
// both feeding the same fan-out policy.
type Task struct {
	ID        uuid.UUID   `json:"id"`
	ProjectID uuid.UUID   `json:"project_id"`
	Title     string      `json:"title"`
	Status    TaskStatus  `json:"status"`
	Owners    []uuid.UUID `json:"owners"`
	Assignees []uuid.UUID `json:"assignees"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
