package services

import (
	"cloudnest/models"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssue_IdempotentPerTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newUser(t, 1000)
	docs := env.mkdir(t, owner, "Docs", nil)

	first, err := env.shares.Issue(ctx, owner, models.TargetFolder, docs.ID, ShareOptions{})
	require.NoError(t, err)
	assert.Len(t, first.Token, 64)
	assert.Equal(t, strings.ToLower(first.Token), first.Token)
	assert.Nil(t, first.ExpiresAt)
	assert.Nil(t, first.MaxAccess)

	second, err := env.shares.Issue(ctx, owner, models.TargetFolder, docs.ID, ShareOptions{MaxAccess: ptr(int64(5))})
	require.NoError(t, err)
	assert.Equal(t, first.Token, second.Token)
	assert.Nil(t, second.MaxAccess)

	token, err := env.shares.TokenFor(ctx, models.TargetFolder, docs.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Token, token)
}

func TestIssue_TargetValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, 1000)
	bob := env.newUser(t, 1000)
	docs := env.mkdir(t, alice, "Docs", nil)

	_, err := env.shares.Issue(ctx, bob, models.TargetFolder, docs.ID, ShareOptions{})
	assert.True(t, IsKind(err, KindNotFound))

	_, err = env.shares.Issue(ctx, alice, models.TargetFile, docs.ID, ShareOptions{})
	assert.True(t, IsKind(err, KindNotFound))

	_, err = env.shares.Issue(ctx, alice, models.TargetType("album"), docs.ID, ShareOptions{})
	assert.True(t, IsKind(err, KindBadRequest))

	_, err = env.shares.Issue(ctx, alice, models.TargetFolder, docs.ID, ShareOptions{MaxAccess: ptr(int64(0))})
	assert.True(t, IsKind(err, KindBadRequest))

	_, err = env.shares.Issue(ctx, alice, models.TargetFolder, docs.ID, ShareOptions{ExpiresIn: ptr(-time.Minute)})
	assert.True(t, IsKind(err, KindBadRequest))
}

func TestResolve_File(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newUser(t, 1000)
	file := env.upload(t, owner, nil, "a.txt", "hello")

	link, err := env.shares.Issue(ctx, owner, models.TargetFile, file.ID, ShareOptions{})
	require.NoError(t, err)

	resolved, err := env.shares.Resolve(ctx, strings.ToUpper(link.Token))
	require.NoError(t, err)
	require.NotNil(t, resolved.File)
	assert.Nil(t, resolved.Folder)
	assert.Equal(t, file.ID, resolved.File.ID)
	assert.Equal(t, "Test User", resolved.Owner.Name)
	assert.EqualValues(t, 1, resolved.Link.AccessCount)
}

func TestResolve_UnknownToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, token := range []string{"", "abc", strings.Repeat("a", 64), strings.Repeat("a", 65)} {
		_, err := env.shares.Resolve(ctx, token)
		assert.True(t, IsKind(err, KindNotFound), "token %q", token)
	}
}

func TestResolve_ExpiredIsGone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newUser(t, 1000)
	docs := env.mkdir(t, owner, "Docs", nil)

	now := time.Now()
	env.shares.now = func() time.Time { return now }

	link, err := env.shares.Issue(ctx, owner, models.TargetFolder, docs.ID, ShareOptions{ExpiresIn: ptr(time.Hour)})
	require.NoError(t, err)

	_, err = env.shares.Resolve(ctx, link.Token)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = env.shares.Resolve(ctx, link.Token)
	assert.True(t, IsKind(err, KindGone))

	stored, err := env.store.Shares.FindByToken(ctx, link.Token)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.AccessCount)
}

func TestResolve_MaxAccessBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newUser(t, 1000)
	docs := env.mkdir(t, owner, "Docs", nil)

	link, err := env.shares.Issue(ctx, owner, models.TargetFolder, docs.ID, ShareOptions{MaxAccess: ptr(int64(2))})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		resolved, err := env.shares.Resolve(ctx, link.Token)
		require.NoError(t, err)
		require.NotNil(t, resolved.Folder)
		assert.Equal(t, docs.ID, resolved.Folder.ID)
	}

	_, err = env.shares.Resolve(ctx, link.Token)
	assert.True(t, IsKind(err, KindLimitReached))

	stored, err := env.store.Shares.FindByToken(ctx, link.Token)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stored.AccessCount)
}

func TestResolve_ConcurrentAccessNeverExceedsLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newUser(t, 1000)
	file := env.upload(t, owner, nil, "a.txt", "hello")

	link, err := env.shares.Issue(ctx, owner, models.TargetFile, file.ID, ShareOptions{MaxAccess: ptr(int64(1))})
	require.NoError(t, err)

	const visitors = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		limited   int
	)
	for i := 0; i < visitors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.shares.Resolve(ctx, link.Token)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if IsKind(err, KindLimitReached) {
				limited++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, visitors-1, limited)
}

func TestIssue_ReplacesStaleLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newUser(t, 1000)
	docs := env.mkdir(t, owner, "Docs", nil)

	old, err := env.shares.Issue(ctx, owner, models.TargetFolder, docs.ID, ShareOptions{MaxAccess: ptr(int64(1))})
	require.NoError(t, err)
	_, err = env.shares.Resolve(ctx, old.Token)
	require.NoError(t, err)

	fresh, err := env.shares.Issue(ctx, owner, models.TargetFolder, docs.ID, ShareOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, old.Token, fresh.Token)
	assert.Nil(t, fresh.MaxAccess)

	_, err = env.shares.Resolve(ctx, old.Token)
	assert.True(t, IsKind(err, KindNotFound))
	_, err = env.shares.Resolve(ctx, fresh.Token)
	assert.NoError(t, err)
}

func TestRevoke(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, 1000)
	bob := env.newUser(t, 1000)
	docs := env.mkdir(t, alice, "Docs", nil)

	link, err := env.shares.Issue(ctx, alice, models.TargetFolder, docs.ID, ShareOptions{})
	require.NoError(t, err)

	err = env.shares.Revoke(ctx, bob, models.TargetFolder, docs.ID)
	assert.True(t, IsKind(err, KindNotFound))

	require.NoError(t, env.shares.Revoke(ctx, alice, models.TargetFolder, docs.ID))
	_, err = env.shares.Resolve(ctx, link.Token)
	assert.True(t, IsKind(err, KindNotFound))

	err = env.shares.Revoke(ctx, alice, models.TargetFolder, docs.ID)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestResolve_DeletedTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newUser(t, 1000)
	docs := env.mkdir(t, owner, "Docs", nil)

	link, err := env.shares.Issue(ctx, owner, models.TargetFolder, docs.ID, ShareOptions{})
	require.NoError(t, err)

	// bypass the tree so the link is left dangling
	require.NoError(t, env.store.Folders.DeleteIfEmpty(ctx, owner, docs.ID))

	_, err = env.shares.Resolve(ctx, link.Token)
	assert.True(t, IsKind(err, KindNotFound))

	stored, err := env.store.Shares.FindByToken(ctx, link.Token)
	require.NoError(t, err)
	assert.Zero(t, stored.AccessCount, "a dangling link must not spend accesses")
}

func TestResolve_DeletedTargetKeepsLastAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newUser(t, 1000)
	file := env.upload(t, owner, nil, "a.txt", "hi")

	link, err := env.shares.Issue(ctx, owner, models.TargetFile, file.ID, ShareOptions{MaxAccess: ptr(int64(1))})
	require.NoError(t, err)

	require.NoError(t, env.store.Files.Delete(ctx, owner, file.ID))
	_, err = env.shares.Resolve(ctx, link.Token)
	assert.True(t, IsKind(err, KindNotFound))

	// the file comes back under the same id; its single access is still there
	restored := models.File{ID: file.ID, OriginalName: "a.txt", OwnerID: owner, FileSize: 2, MimeType: "text/plain"}
	require.NoError(t, env.store.Files.Create(ctx, &restored))

	resolved, err := env.shares.Resolve(ctx, link.Token)
	require.NoError(t, err)
	assert.EqualValues(t, 1, resolved.Link.AccessCount)
	require.NotNil(t, resolved.File)
	assert.Equal(t, file.ID, resolved.File.ID)
}

func TestListOwned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, 1000)
	bob := env.newUser(t, 1000)

	now := time.Now()
	env.shares.now = func() time.Time { return now }

	docs := env.mkdir(t, alice, "Docs", nil)
	file := env.upload(t, alice, nil, "a.txt", "hi")
	gone := env.mkdir(t, alice, "Gone", nil)
	bobs := env.mkdir(t, bob, "Bobs", nil)

	_, err := env.shares.Issue(ctx, alice, models.TargetFolder, docs.ID, ShareOptions{ExpiresIn: ptr(time.Minute)})
	require.NoError(t, err)
	now = now.Add(time.Second)
	_, err = env.shares.Issue(ctx, alice, models.TargetFile, file.ID, ShareOptions{})
	require.NoError(t, err)
	_, err = env.shares.Issue(ctx, alice, models.TargetFolder, gone.ID, ShareOptions{})
	require.NoError(t, err)
	_, err = env.shares.Issue(ctx, bob, models.TargetFolder, bobs.ID, ShareOptions{})
	require.NoError(t, err)

	require.NoError(t, env.store.Folders.DeleteIfEmpty(ctx, alice, gone.ID))
	now = now.Add(2 * time.Minute)

	items, err := env.shares.ListOwned(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a.txt", items[0].TargetName)
	assert.True(t, items[0].Usable)
	assert.Equal(t, "Docs", items[1].TargetName)
	assert.False(t, items[1].Usable, "expired links are listed but not usable")

	items, err = env.shares.ListOwned(ctx, alice, models.TargetFolder)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, docs.ID, items[0].TargetID)

	_, err = env.shares.ListOwned(ctx, alice, "disk")
	assert.True(t, IsKind(err, KindBadRequest))
}

func TestSweepExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newUser(t, 1000)
	a := env.mkdir(t, owner, "A", nil)
	b := env.mkdir(t, owner, "B", nil)
	c := env.mkdir(t, owner, "C", nil)

	now := time.Now()
	env.shares.now = func() time.Time { return now }

	_, err := env.shares.Issue(ctx, owner, models.TargetFolder, a.ID, ShareOptions{ExpiresIn: ptr(time.Minute)})
	require.NoError(t, err)
	_, err = env.shares.Issue(ctx, owner, models.TargetFolder, b.ID, ShareOptions{ExpiresIn: ptr(time.Hour)})
	require.NoError(t, err)
	_, err = env.shares.Issue(ctx, owner, models.TargetFolder, c.ID, ShareOptions{})
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	n, err := env.shares.SweepExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	tokens, err := env.shares.TokensFor(ctx, models.TargetFolder, []string{a.ID, b.ID, c.ID})
	require.NoError(t, err)
	assert.NotContains(t, tokens, a.ID)
	assert.Contains(t, tokens, b.ID)
	assert.Contains(t, tokens, c.ID)
}
