package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/isaacphi/mcpchat/internal/domain"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Initialize(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { Close(db) })
	return db
}

func TestServerCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewServerRepository(openTestDB(t))

	server := &domain.MCPServer{
		Name:        "fs",
		Description: "Filesystem",
		Command:     []string{"npx", "-y", "@modelcontextprotocol/server-filesystem"},
		Args:        []string{"/tmp"},
		Env:         map[string]string{"DEBUG": "1"},
		Enabled:     true,
	}
	require.NoError(t, repo.Create(ctx, server))
	assert.NotEqual(t, uuid.Nil, server.ID)
	assert.Equal(t, domain.DefaultCategory, server.Category)

	got, err := repo.GetByID(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, server.Command, got.Command)
	assert.Equal(t, server.Args, got.Args)
	assert.Equal(t, server.Env, got.Env)
	assert.True(t, got.Enabled)

	got.Description = "Local files"
	got.Enabled = false
	require.NoError(t, repo.Update(ctx, got))

	byName, err := repo.GetByName(ctx, "fs")
	require.NoError(t, err)
	assert.Equal(t, "Local files", byName.Description)
	assert.False(t, byName.Enabled)

	partial, err := repo.FindByPartialID(ctx, server.ID.String()[:8])
	require.NoError(t, err)
	assert.Equal(t, server.ID, partial.ID)

	require.NoError(t, repo.Delete(ctx, server.ID))
	_, err = repo.GetByID(ctx, server.ID)
	assert.True(t, domain.IsNotFoundError(err))
	assert.True(t, domain.IsNotFoundError(repo.Delete(ctx, server.ID)))
}

func TestServerValidation(t *testing.T) {
	ctx := context.Background()
	repo := NewServerRepository(openTestDB(t))

	err := repo.Create(ctx, &domain.MCPServer{Name: "", Command: []string{"x"}})
	assert.True(t, domain.IsValidationError(err))

	err = repo.Create(ctx, &domain.MCPServer{Name: "a__b", Command: []string{"x"}})
	assert.True(t, domain.IsValidationError(err))

	err = repo.Create(ctx, &domain.MCPServer{Name: "nocmd"})
	assert.True(t, domain.IsValidationError(err))

	require.NoError(t, repo.Create(ctx, &domain.MCPServer{Name: "dup", Command: []string{"x"}}))
	err = repo.Create(ctx, &domain.MCPServer{Name: "dup", Command: []string{"y"}})
	assert.True(t, domain.IsValidationError(err))

	other := &domain.MCPServer{Name: "other", Command: []string{"x"}}
	require.NoError(t, repo.Create(ctx, other))
	other.Name = "dup"
	assert.True(t, domain.IsValidationError(repo.Update(ctx, other)))

	missing := &domain.MCPServer{ID: uuid.New(), Name: "ghost", Command: []string{"x"}}
	assert.True(t, domain.IsNotFoundError(repo.Update(ctx, missing)))
}

func TestServerListAndSeed(t *testing.T) {
	ctx := context.Background()
	repo := NewServerRepository(openTestDB(t))

	require.NoError(t, repo.Create(ctx, &domain.MCPServer{Name: "zeta", Command: []string{"z"}}))

	n, err := repo.Seed(ctx, []domain.MCPServer{
		{Name: "alpha", Command: []string{"a"}, Enabled: true},
		{Name: "zeta", Command: []string{"different"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.Seed(ctx, []domain.MCPServer{{Name: "alpha", Command: []string{"a"}}})
	require.NoError(t, err)
	assert.Equal(t, 0, n, "seeding is idempotent")

	servers, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "alpha", servers[0].Name)
	assert.Equal(t, "zeta", servers[1].Name)
	assert.Equal(t, []string{"z"}, servers[1].Command, "seed never overwrites")

	_, err = repo.Seed(ctx, []domain.MCPServer{{Name: "bad"}})
	assert.Error(t, err)
}

func TestFindByPartialIDByName(t *testing.T) {
	ctx := context.Background()
	repo := NewServerRepository(openTestDB(t))
	require.NoError(t, repo.Create(ctx, &domain.MCPServer{Name: "git", Command: []string{"uvx"}}))

	s, err := repo.FindByPartialID(ctx, "git")
	require.NoError(t, err)
	assert.Equal(t, "git", s.Name)

	_, err = repo.FindByPartialID(ctx, "zzzzzzzz")
	assert.True(t, domain.IsNotFoundError(err))
}

func TestFindByPartialIDRejectsEmptyAndAmbiguous(t *testing.T) {
	ctx := context.Background()
	repo := NewServerRepository(openTestDB(t))
	require.NoError(t, repo.Create(ctx, &domain.MCPServer{
		ID:      uuid.MustParse("abcdef00-0000-0000-0000-000000000001"),
		Name:    "one",
		Command: []string{"a"},
	}))

	for _, id := range []string{"", "   "} {
		_, err := repo.FindByPartialID(ctx, id)
		assert.True(t, domain.IsValidationError(err), "id %q", id)
	}

	require.NoError(t, repo.Create(ctx, &domain.MCPServer{
		ID:      uuid.MustParse("abcdef00-0000-0000-0000-000000000002"),
		Name:    "two",
		Command: []string{"b"},
	}))
	_, err := repo.FindByPartialID(ctx, "abcdef")
	assert.True(t, domain.IsValidationError(err))

	s, err := repo.FindByPartialID(ctx, "abcdef00-0000-0000-0000-000000000002")
	require.NoError(t, err)
	assert.Equal(t, "two", s.Name)
}

func TestToolCallHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewToolCallRepository(openTestDB(t))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Record(ctx, &domain.ToolCall{
			ServerName: "fs",
			ToolName:   fmt.Sprintf("tool%d", i),
			Arguments:  `{}`,
			Result:     "ok",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	calls, total, err := repo.Recent(ctx, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, calls, 3)
	assert.Equal(t, "tool4", calls[0].ToolName)
	assert.Equal(t, "tool2", calls[2].ToolName)
}
