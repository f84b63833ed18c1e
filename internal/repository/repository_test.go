package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spa-parameshwar003/bookstore-api/internal/domain"
)

func tempRepo(t *testing.T) *SQLRepo {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	repo, err := NewSQLRepo("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func TestNewSQLRepoUnknownDialect(t *testing.T) {
	_, err := NewSQLRepo("oracle", "whatever")
	assert.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	repo := tempRepo(t)
	ctx := context.Background()

	_, err := repo.CreateBook(ctx, &domain.Book{Title: "Go", Author: "Pike", Price: 10, Semester: 1})
	require.NoError(t, err)

	require.NoError(t, repo.Migrate(ctx))
	books, err := repo.ListBooks(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestCreateUserOnce(t *testing.T) {
	repo := tempRepo(t)
	ctx := context.Background()

	created, err := repo.CreateUser(ctx, "a@example.com", "Alice")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateUser(ctx, "a@example.com", "Someone Else")
	require.NoError(t, err)
	assert.False(t, created)

	u, err := repo.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Alice", u.Name)
	assert.False(t, u.IsAdmin)
}

func TestCreateUserWithoutName(t *testing.T) {
	repo := tempRepo(t)
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, "anon@example.com", "")
	require.NoError(t, err)

	u, err := repo.GetUserByEmail(ctx, "anon@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Empty(t, u.Name)
}

func TestGetUserByEmailMissing(t *testing.T) {
	repo := tempRepo(t)
	u, err := repo.GetUserByEmail(context.Background(), "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestSetUserAdmin(t *testing.T) {
	repo := tempRepo(t)
	ctx := context.Background()

	found, err := repo.SetUserAdmin(ctx, "ghost@example.com", true)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = repo.CreateUser(ctx, "admin@example.com", "Admin")
	require.NoError(t, err)

	found, err = repo.SetUserAdmin(ctx, "admin@example.com", true)
	require.NoError(t, err)
	assert.True(t, found)

	u, err := repo.GetUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)

	_, err = repo.SetUserAdmin(ctx, "admin@example.com", false)
	require.NoError(t, err)
	u, err = repo.GetUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.False(t, u.IsAdmin)
}

func TestListBooksBySemester(t *testing.T) {
	repo := tempRepo(t)
	ctx := context.Background()

	for _, b := range []domain.Book{
		{Title: "Calculus", Author: "Stewart", Price: 50, Semester: 1, AvailableStock: 3},
		{Title: "Algorithms", Author: "CLRS", Price: 80, Semester: 2, Description: "the big one"},
		{Title: "Linear Algebra", Author: "Strang", Price: 45, Semester: 1},
		{Title: "Orientation", Author: "Dean", Price: 0, Semester: 0},
	} {
		b := b
		_, err := repo.CreateBook(ctx, &b)
		require.NoError(t, err)
	}

	all, err := repo.ListBooks(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	one := 1
	first, err := repo.ListBooks(ctx, &one)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "Calculus", first[0].Title)
	assert.Equal(t, "Linear Algebra", first[1].Title)

	zero := 0
	orientation, err := repo.ListBooks(ctx, &zero)
	require.NoError(t, err)
	require.Len(t, orientation, 1)
	assert.Equal(t, "Orientation", orientation[0].Title)

	nine := 9
	none, err := repo.ListBooks(ctx, &nine)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestCreateGetDeleteBook(t *testing.T) {
	repo := tempRepo(t)
	ctx := context.Background()

	id, err := repo.CreateBook(ctx, &domain.Book{
		Title: "SICP", Author: "Abelson", Price: 39.5, Semester: 3, Description: "wizard book", AvailableStock: 7,
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	b, err := repo.GetBookByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "SICP", b.Title)
	assert.Equal(t, 39.5, b.Price)
	assert.Equal(t, "wizard book", b.Description)
	assert.Equal(t, 7, b.AvailableStock)

	deleted, err := repo.DeleteBook(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteBook(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)

	b, err = repo.GetBookByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestDecrementStock(t *testing.T) {
	repo := tempRepo(t)
	ctx := context.Background()

	id, err := repo.CreateBook(ctx, &domain.Book{Title: "Dune", Author: "Herbert", Price: 12, Semester: 1, AvailableStock: 5})
	require.NoError(t, err)

	p, err := repo.DecrementStock(ctx, id, 3)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Dune", p.Title)
	assert.Equal(t, 3, p.Quantity)
	assert.Equal(t, 2, p.RemainingStock)

	p, err = repo.DecrementStock(ctx, id, 3)
	require.NoError(t, err)
	assert.Nil(t, p)

	b, err := repo.GetBookByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, b.AvailableStock)

	p, err = repo.DecrementStock(ctx, id+100, 1)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestDecrementStockConcurrent(t *testing.T) {
	repo := tempRepo(t)
	ctx := context.Background()

	id, err := repo.CreateBook(ctx, &domain.Book{Title: "Hot", Author: "Seller", Price: 1, Semester: 1, AvailableStock: 10})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sold int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := repo.DecrementStock(ctx, id, 1)
			if err == nil && p != nil {
				mu.Lock()
				sold++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	b, err := repo.GetBookByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, sold)
	assert.Equal(t, 0, b.AvailableStock)
}
