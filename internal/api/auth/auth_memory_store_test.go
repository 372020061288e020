package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/go-docanalysis-auth/internal/types"
)

// fakeClock advances by one second on every call so timestamp changes are observable.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store, err := NewMemoryStore(NewBcryptHasher(bcrypt.MinCost), slog.Default(), WithClock(clock.Now))
	require.NoError(t, err)
	return store
}

func strPtr(s string) *string { return &s }

func TestMemoryStore_CreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("EmailCollisionIsCaseInsensitive", func(t *testing.T) {
		store := newTestMemoryStore(t)

		user, err := store.CreateUser(ctx, types.CreateUserParams{Email: "A@B.com", Username: "alice", Password: "secret1"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
		assert.Equal(t, types.RoleUser, user.Role)
		assert.True(t, user.IsActive)
		assert.False(t, user.EmailVerified)
		assert.Nil(t, user.LastLogin)
		assert.Equal(t, user.CreatedAt, user.UpdatedAt)

		_, err = store.CreateUser(ctx, types.CreateUserParams{Email: "a@b.com", Username: "alice2", Password: "secret2"})
		assert.ErrorIs(t, err, types.ErrConflict)
	})

	t.Run("EmailIsTrimmed", func(t *testing.T) {
		store := newTestMemoryStore(t)

		_, err := store.CreateUser(ctx, types.CreateUserParams{Email: " A@B.com ", Username: "alice", Password: "secret1"})
		require.NoError(t, err)

		_, err = store.CreateUser(ctx, types.CreateUserParams{Email: "a@b.com", Username: "alice2", Password: "secret2"})
		assert.ErrorIs(t, err, types.ErrConflict)

		found, err := store.GetUserByEmail(ctx, "a@b.com ")
		require.NoError(t, err)
		assert.Equal(t, "alice", found.Username)
	})

	t.Run("UsernameCollision", func(t *testing.T) {
		store := newTestMemoryStore(t)

		_, err := store.CreateUser(ctx, types.CreateUserParams{Email: "a@b.com", Username: "alice", Password: "secret1"})
		require.NoError(t, err)

		_, err = store.CreateUser(ctx, types.CreateUserParams{Email: "c@d.com", Username: "alice", Password: "secret1"})
		assert.ErrorIs(t, err, types.ErrConflict)

		// Username matching is exact.
		_, err = store.CreateUser(ctx, types.CreateUserParams{Email: "e@f.com", Username: "Alice", Password: "secret1"})
		assert.NoError(t, err)
	})

	t.Run("Validation", func(t *testing.T) {
		store := newTestMemoryStore(t)

		cases := []struct {
			name   string
			params types.CreateUserParams
		}{
			{"MissingEmail", types.CreateUserParams{Username: "bob", Password: "secret1"}},
			{"BlankEmail", types.CreateUserParams{Email: "   ", Username: "bob", Password: "secret1"}},
			{"MissingUsername", types.CreateUserParams{Email: "x@y.com", Password: "secret1"}},
			{"MissingPassword", types.CreateUserParams{Email: "x@y.com", Username: "bob"}},
			{"PasswordTooShort", types.CreateUserParams{Email: "x@y.com", Username: "bob", Password: "12345"}},
			{"PasswordTooLong", types.CreateUserParams{Email: "x@y.com", Username: "bob", Password: string(make([]byte, 73))}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := store.CreateUser(ctx, tc.params)
				assert.ErrorIs(t, err, types.ErrValidation)
			})
		}

		users, err := store.ListUsers(ctx)
		require.NoError(t, err)
		assert.Empty(t, users, "failed creations must not leave records behind")
	})

	t.Run("IDsAreStrictlyIncreasing", func(t *testing.T) {
		store := newTestMemoryStore(t)

		var last int64
		for i := 0; i < 5; i++ {
			user, err := store.CreateUser(ctx, types.CreateUserParams{
				Email:    fmt.Sprintf("user%d@example.com", i),
				Username: fmt.Sprintf("user%d", i),
				Password: "secret1",
			})
			require.NoError(t, err)
			assert.Greater(t, user.ID, last)
			last = user.ID

			// A failed attempt in between must not disturb the sequence.
			_, err = store.CreateUser(ctx, types.CreateUserParams{Email: user.Email, Username: "dup", Password: "secret1"})
			require.ErrorIs(t, err, types.ErrConflict)
		}
	})

	t.Run("ConcurrentSameEmail", func(t *testing.T) {
		store := newTestMemoryStore(t)

		const workers = 16
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = store.CreateUser(ctx, types.CreateUserParams{
					Email:    "Race@Example.com",
					Username: fmt.Sprintf("racer%d", i),
					Password: "secret1",
				})
			}(i)
		}
		wg.Wait()

		successes := 0
		for _, err := range errs {
			if err == nil {
				successes++
				continue
			}
			assert.ErrorIs(t, err, types.ErrConflict)
		}
		assert.Equal(t, 1, successes)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TotalUsers)
	})
}

func TestMemoryStore_Authenticate(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(t)

	created, err := store.CreateUser(ctx, types.CreateUserParams{Email: "A@B.com", Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := store.Authenticate(ctx, "a@b.com", "wrong")
		assert.ErrorIs(t, err, types.ErrInvalidCredentials)
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("UnknownEmailLooksLikeWrongPassword", func(t *testing.T) {
		_, unknownErr := store.Authenticate(ctx, "nobody@b.com", "secret1")
		_, wrongErr := store.Authenticate(ctx, "a@b.com", "wrong")
		require.Error(t, unknownErr)
		assert.Equal(t, wrongErr.Error(), unknownErr.Error())
	})

	t.Run("Success", func(t *testing.T) {
		user, err := store.Authenticate(ctx, "a@b.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, created.ID, user.ID)
		require.NotNil(t, user.LastLogin)

		again, err := store.GetUserByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, user.LastLogin, again.LastLogin)
	})

	t.Run("Inactive", func(t *testing.T) {
		_, err := store.SetActive(ctx, created.ID, false)
		require.NoError(t, err)
		t.Cleanup(func() { _, _ = store.SetActive(ctx, created.ID, true) })

		_, err = store.Authenticate(ctx, "a@b.com", "secret1")
		assert.ErrorIs(t, err, types.ErrAccountInactive)
		assert.ErrorIs(t, err, types.ErrUnauthenticated)

		// A wrong password on an inactive account reveals nothing extra.
		_, err = store.Authenticate(ctx, "a@b.com", "wrong")
		assert.ErrorIs(t, err, types.ErrInvalidCredentials)
	})
}

func TestMemoryStore_Lookups(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(t)

	created, err := store.CreateUser(ctx, types.CreateUserParams{
		Email:     "Carol@Example.com",
		Username:  "carol",
		Password:  "secret1",
		FirstName: strPtr("Carol"),
	})
	require.NoError(t, err)

	t.Run("GetUserByIDIsStable", func(t *testing.T) {
		first, err := store.GetUserByID(ctx, created.ID)
		require.NoError(t, err)
		second, err := store.GetUserByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("GetUserByIDUnknown", func(t *testing.T) {
		_, err := store.GetUserByID(ctx, 999)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("GetUserByEmailCaseInsensitive", func(t *testing.T) {
		user, err := store.GetUserByEmail(ctx, "CAROL@example.COM")
		require.NoError(t, err)
		assert.Equal(t, created.ID, user.ID)

		_, err = store.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("ReturnedCopiesAreDetached", func(t *testing.T) {
		user, err := store.GetUserByID(ctx, created.ID)
		require.NoError(t, err)
		*user.FirstName = "Mallory"
		user.Role = types.RoleAdmin

		fresh, err := store.GetUserByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Carol", *fresh.FirstName)
		assert.Equal(t, types.RoleUser, fresh.Role)
	})

	t.Run("NoPasswordMaterialInOutput", func(t *testing.T) {
		user, err := store.GetUserByEmail(ctx, "carol@example.com")
		require.NoError(t, err)
		raw, err := json.Marshal(user)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "secret1")
		assert.NotContains(t, string(raw), "$2a$")
		assert.NotContains(t, string(raw), "password")
	})
}

func TestMemoryStore_UpdateUser(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(t)

	created, err := store.CreateUser(ctx, types.CreateUserParams{
		Email:     "a@b.com",
		Username:  "alice",
		Password:  "secret1",
		FirstName: strPtr("Alice"),
		LastName:  strPtr("Liddell"),
	})
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, types.CreateUserParams{Email: "b@b.com", Username: "bob", Password: "secret1"})
	require.NoError(t, err)

	t.Run("OnlyRoleChanges", func(t *testing.T) {
		admin := types.RoleAdmin
		updated, err := store.UpdateUser(ctx, created.ID, types.UpdateUserParams{Role: &admin})
		require.NoError(t, err)

		assert.Equal(t, types.RoleAdmin, updated.Role)
		assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
		assert.Equal(t, "Alice", *updated.FirstName)
		assert.Equal(t, "Liddell", *updated.LastName)
		assert.Equal(t, "alice", updated.Username)
		assert.Equal(t, created.Email, updated.Email)
		assert.Equal(t, created.CreatedAt, updated.CreatedAt)
		assert.False(t, updated.EmailVerified)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := store.UpdateUser(ctx, 42, types.UpdateUserParams{FirstName: strPtr("x")})
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("UsernameConflict", func(t *testing.T) {
		_, err := store.UpdateUser(ctx, created.ID, types.UpdateUserParams{Username: strPtr("bob")})
		assert.ErrorIs(t, err, types.ErrConflict)

		user, err := store.GetUserByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("UsernameRenameFreesOldName", func(t *testing.T) {
		_, err := store.UpdateUser(ctx, created.ID, types.UpdateUserParams{Username: strPtr("alice-renamed")})
		require.NoError(t, err)

		_, err = store.CreateUser(ctx, types.CreateUserParams{Email: "new@b.com", Username: "alice", Password: "secret1"})
		assert.NoError(t, err)
	})

	t.Run("InvalidRole", func(t *testing.T) {
		bad := types.Role("root")
		_, err := store.UpdateUser(ctx, created.ID, types.UpdateUserParams{Role: &bad})
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("EmailVerified", func(t *testing.T) {
		verified := true
		updated, err := store.UpdateUser(ctx, created.ID, types.UpdateUserParams{EmailVerified: &verified})
		require.NoError(t, err)
		assert.True(t, updated.EmailVerified)
	})
}

func TestMemoryStore_Deactivation(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(t)

	created, err := store.CreateUser(ctx, types.CreateUserParams{Email: "a@b.com", Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	_, err = store.SetActive(ctx, created.ID, false)
	require.NoError(t, err)

	_, err = store.GetUserByID(ctx, created.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = store.Authenticate(ctx, "a@b.com", "secret1")
	assert.ErrorIs(t, err, types.ErrUnauthenticated)

	byEmail, err := store.GetUserByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.False(t, byEmail.IsActive)

	_, err = store.SetActive(ctx, 99, false)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = store.SetActive(ctx, created.ID, true)
	require.NoError(t, err)
	_, err = store.Authenticate(ctx, "a@b.com", "secret1")
	assert.NoError(t, err)
}

func TestMemoryStore_ListAndStats(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(t)

	for i, name := range []string{"zed", "amy", "kim"} {
		_, err := store.CreateUser(ctx, types.CreateUserParams{
			Email:    name + "@example.com",
			Username: name,
			Password: "secret1",
		})
		require.NoError(t, err, "user %d", i)
	}
	_, err := store.SetActive(ctx, 2, false)
	require.NoError(t, err)
	verified := true
	_, err = store.UpdateUser(ctx, 3, types.UpdateUserParams{EmailVerified: &verified})
	require.NoError(t, err)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, []string{"zed", "amy", "kim"}, []string{users[0].Username, users[1].Username, users[2].Username})
	assert.False(t, users[1].IsActive)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.UserStats{TotalUsers: 3, ActiveUsers: 2, VerifiedUsers: 1}, stats)
	assert.Equal(t, "memory", store.Backend())
}
