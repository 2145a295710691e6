package sharing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLinkRepository runs the behaviour every LinkRepository must have
// against an empty repository.
func TestLinkRepository(t *testing.T, repo LinkRepository) {
	ctx := context.Background()

	link, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, LinkedFile{}, link, "missing link should be empty")

	files, err := repo.Files(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	require.NoError(t, repo.Put(ctx, LinkedFile{ModuleID: 1, FileID: "f1", CourseID: 10}))
	require.NoError(t, repo.Put(ctx, LinkedFile{ModuleID: 3, FileID: "f1", CourseID: 11}))
	require.NoError(t, repo.Put(ctx, LinkedFile{ModuleID: 2, FileID: "f2"}))

	link, err = repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, LinkedFile{ModuleID: 1, FileID: "f1", CourseID: 10}, link)

	link, err = repo.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, LinkedFile{ModuleID: 2, FileID: "f2"}, link, "course is optional")

	modules, err := repo.ModulesForFile(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, modules)

	files, err = repo.Files(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2"}, files)

	// Relinking a module moves it from one file to the other
	require.NoError(t, repo.Put(ctx, LinkedFile{ModuleID: 3, FileID: "f2", CourseID: 11}))

	link, err = repo.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, LinkedFile{ModuleID: 3, FileID: "f2", CourseID: 11}, link)

	modules, err = repo.ModulesForFile(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, modules)

	modules, err = repo.ModulesForFile(ctx, "f2")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, modules)

	// Deleting is idempotent
	require.NoError(t, repo.Delete(ctx, 1))
	require.NoError(t, repo.Delete(ctx, 1))

	link, err = repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, LinkedFile{}, link)

	modules, err = repo.ModulesForFile(ctx, "f1")
	require.NoError(t, err)
	assert.Empty(t, modules)

	files, err = repo.Files(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"f2"}, files)
}
