package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmops/taskhive/storage"
)

func TestTaskListingTracksCreatesAndDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u1 := f.register(t, "u1@example.com")
	p, err := f.svc.CreateProject(ctx, u1.ID, "Roadmap", "")
	require.NoError(t, err)

	t1, err := f.svc.CreateTask(ctx, u1.ID, p.ID, "write spec")
	require.NoError(t, err)

	// Warm the per-project listing.
	listing, err := f.svc.ListProjectTasks(ctx, u1.ID, p.ID)
	require.NoError(t, err)
	require.Len(t, listing, 1)
	callsAfterMiss := f.tasks.listByProjectCalls

	listing, err = f.svc.ListProjectTasks(ctx, u1.ID, p.ID)
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, callsAfterMiss, f.tasks.listByProjectCalls, "second read must be a cache hit")

	// A second create invalidates the warm parent listing.
	t2, err := f.svc.CreateTask(ctx, u1.ID, p.ID, "review spec")
	require.NoError(t, err)
	listing, err = f.svc.ListProjectTasks(ctx, u1.ID, p.ID)
	require.NoError(t, err)
	assert.Len(t, listing, 2)

	// And a delete drops the task from the warm listing again.
	require.NoError(t, f.svc.DeleteTask(ctx, u1.ID, t2.ID))
	listing, err = f.svc.ListProjectTasks(ctx, u1.ID, p.ID)
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, t1.ID, listing[0].ID)

	_, err = f.svc.GetTask(ctx, u1.ID, t2.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateTaskInvalidatesWarmEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u1 := f.register(t, "u1@example.com")
	p, err := f.svc.CreateProject(ctx, u1.ID, "Roadmap", "")
	require.NoError(t, err)
	task, err := f.svc.CreateTask(ctx, u1.ID, p.ID, "write spec")
	require.NoError(t, err)

	// Warm both the entity and the parent listing.
	_, err = f.svc.GetTask(ctx, u1.ID, task.ID)
	require.NoError(t, err)
	_, err = f.svc.ListProjectTasks(ctx, u1.ID, p.ID)
	require.NoError(t, err)

	updated, err := f.svc.UpdateTask(ctx, u1.ID, task.ID, "write spec", storage.TaskDone)
	require.NoError(t, err)
	assert.Equal(t, storage.TaskDone, updated.Status)

	got, err := f.svc.GetTask(ctx, u1.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.TaskDone, got.Status)

	listing, err := f.svc.ListProjectTasks(ctx, u1.ID, p.ID)
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, storage.TaskDone, listing[0].Status)
}

func TestTaskAssigneeLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u1 := f.register(t, "u1@example.com")
	u2 := f.register(t, "u2@example.com")

	p, err := f.svc.CreateProject(ctx, u1.ID, "Roadmap", "")
	require.NoError(t, err)
	_, err = f.svc.AddProjectMember(ctx, u1.ID, p.ID, u2.ID)
	require.NoError(t, err)

	task, err := f.svc.CreateTask(ctx, u1.ID, p.ID, "write spec")
	require.NoError(t, err)

	// Warm the entity entry before the relation change.
	cached, err := f.svc.GetTask(ctx, u2.ID, task.ID)
	require.NoError(t, err)
	assert.Empty(t, cached.Assignees)

	withAssignee, err := f.svc.AddTaskAssignee(ctx, u1.ID, task.ID, u2.ID)
	require.NoError(t, err)
	assert.Len(t, withAssignee.Assignees, 1)

	got, err := f.svc.GetTask(ctx, u2.ID, task.ID)
	require.NoError(t, err)
	require.Len(t, got.Assignees, 1)
	assert.Equal(t, u2.ID, got.Assignees[0])

	without, err := f.svc.RemoveTaskAssignee(ctx, u1.ID, task.ID, u2.ID)
	require.NoError(t, err)
	assert.Empty(t, without.Assignees)

	got, err = f.svc.GetTask(ctx, u2.ID, task.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Assignees)
}

func TestTaskAccessControl(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.register(t, "owner@example.com")
	member := f.register(t, "member@example.com")
	stranger := f.register(t, "stranger@example.com")

	p, err := f.svc.CreateProject(ctx, owner.ID, "Roadmap", "")
	require.NoError(t, err)
	_, err = f.svc.AddProjectMember(ctx, owner.ID, p.ID, member.ID)
	require.NoError(t, err)

	// Members may create tasks, strangers may not.
	task, err := f.svc.CreateTask(ctx, member.ID, p.ID, "write spec")
	require.NoError(t, err)
	_, err = f.svc.CreateTask(ctx, stranger.ID, p.ID, "sneak in")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.GetTask(ctx, stranger.ID, task.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.ListProjectTasks(ctx, stranger.ID, p.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// The task's creator owns it; a plain project member does not get
	// write access to someone else's task, but the project owner does.
	other, err := f.svc.CreateTask(ctx, owner.ID, p.ID, "owner task")
	require.NoError(t, err)
	_, err = f.svc.UpdateTask(ctx, member.ID, other.ID, "hijack", storage.TaskDone)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.UpdateTask(ctx, owner.ID, task.ID, "reword", storage.TaskActive)
	assert.NoError(t, err)
}
