package story

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/bossmsg/internal/bus"
	"github.com/matheus3301/bossmsg/internal/store"
	"github.com/matheus3301/bossmsg/internal/types"
)

type fixedAuthor struct{ p types.Profile }

func (a fixedAuthor) Profile() types.Profile { return a.p }

type viewCount struct{ n int }

func (v *viewCount) StoryViewed() { v.n++ }

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, _, err := store.OpenMigrated(filepath.Join(t.TempDir(), "boss.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seeded() []types.Story {
	now := time.Now()
	return []types.Story{
		{ID: "s1", UserID: "1", UserName: "Boss Anik", MediaURL: "https://picsum.photos/1", MediaKind: types.MediaImage, Timestamp: now.Add(-time.Hour)},
		{ID: "s2", UserID: "2", UserName: "Tanvir", MediaURL: "https://picsum.photos/2", MediaKind: types.MediaImage, Timestamp: now.Add(-2 * time.Hour)},
		{ID: "s3", UserID: "1", UserName: "Boss Anik", MediaURL: "https://picsum.photos/3", MediaKind: types.MediaImage, Timestamp: now.Add(-3 * time.Hour)},
	}
}

func newCatalogue(t *testing.T, db Store) (*Catalogue, *bus.Bus, *viewCount) {
	t.Helper()
	b := bus.New()
	vc := &viewCount{}
	c := NewCatalogue(db, seeded(), fixedAuthor{types.DefaultProfile()}, b, vc, nil)
	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return c, b, vc
}

func TestCataloguePostPrependsAndPersists(t *testing.T) {
	db := testDB(t)
	c, b, _ := newCatalogue(t, db)
	events, unsub := b.Subscribe("story.", 4)
	defer unsub()

	first, err := c.Post("file:///a.jpg", types.MediaImage, " morning ", 0)
	require.NoError(t, err)
	second, err := c.Post("file:///b.mp4", types.MediaVideo, "", 3*time.Second)
	require.NoError(t, err)

	assert.Equal(t, "morning", first.Caption)
	assert.Equal(t, types.MyUserID, first.UserID)
	assert.Equal(t, "The Boss", first.UserName)

	mine := c.Mine()
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, 3*time.Second, mine[0].MediaDuration)

	evt := <-events
	assert.Equal(t, bus.KindStoryPosted, evt.Kind)

	// A fresh catalogue over the same store sees my stories again.
	again := NewCatalogue(db, seeded(), fixedAuthor{types.DefaultProfile()}, nil, nil, nil)
	require.Len(t, again.Mine(), 2)
	assert.Equal(t, second.ID, again.Mine()[0].ID)
}

func TestCataloguePostValidates(t *testing.T) {
	c, _, _ := newCatalogue(t, nil)
	_, err := c.Post("", types.MediaImage, "", 0)
	assert.Error(t, err)
	_, err = c.Post("file:///x", types.MediaKind("gif"), "", 0)
	assert.Error(t, err)
}

func TestCatalogueGroups(t *testing.T) {
	c, _, _ := newCatalogue(t, nil)

	groups := c.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "1", groups[0].UserID)
	assert.Len(t, groups[0].Stories, 2)
	assert.Equal(t, "2", groups[1].UserID)

	_, err := c.Post("file:///a.jpg", types.MediaImage, "", 0)
	require.NoError(t, err)
	groups = c.Groups()
	require.Len(t, groups, 3)
	assert.Equal(t, types.MyUserID, groups[0].UserID)
}

func TestCatalogueViewsAndRepliesOnlyGrow(t *testing.T) {
	db := testDB(t)
	c, _, vc := newCatalogue(t, db)
	s, err := c.Post("file:///a.jpg", types.MediaImage, "", 0)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		n, err := c.RecordView(s.ID)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	assert.Equal(t, 3, vc.n)

	_, err = c.Reply(s.ID, "  ")
	assert.ErrorIs(t, err, ErrEmptyReply)
	r, err := c.Reply(s.ID, "nice")
	require.NoError(t, err)
	assert.Equal(t, "The Boss", r.UserName)

	got, ok := c.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, 3, got.ViewCount)
	require.Len(t, got.Replies, 1)

	// Returned copies do not alias catalogue state.
	got.Replies[0].Text = "changed"
	again, _ := c.Get(s.ID)
	assert.Equal(t, "nice", again.Replies[0].Text)

	stored, err := db.ListStories()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 3, stored[0].ViewCount)
	assert.Len(t, stored[0].Replies, 1)

	_, err = c.RecordView("missing")
	assert.ErrorIs(t, err, ErrUnknownStory)
}

func TestCatalogueSeededStoryReply(t *testing.T) {
	c, _, _ := newCatalogue(t, testDB(t))
	_, err := c.Reply("s2", "love it")
	require.NoError(t, err)
	s, _ := c.Get("s2")
	assert.Len(t, s.Replies, 1)
}

func TestCatalogueDelete(t *testing.T) {
	db := testDB(t)
	c, _, _ := newCatalogue(t, db)
	s, err := c.Post("file:///a.jpg", types.MediaImage, "", 0)
	require.NoError(t, err)

	assert.ErrorIs(t, c.Delete("s1"), ErrNotMine)
	assert.ErrorIs(t, c.Delete("nope"), ErrUnknownStory)
	require.NoError(t, c.Delete(s.ID))
	assert.Empty(t, c.Mine())

	stored, err := db.ListStories()
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestMediaKindOf(t *testing.T) {
	k, ok := MediaKindOf("/x/Photo.JPG")
	assert.True(t, ok)
	assert.Equal(t, types.MediaImage, k)
	k, ok = MediaKindOf("clip.webm")
	assert.True(t, ok)
	assert.Equal(t, types.MediaVideo, k)
	_, ok = MediaKindOf("notes.txt")
	assert.False(t, ok)
}

func TestInboxPostsDroppedMedia(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.jpg"), []byte("x"), 0o600))

	c, _, _ := newCatalogue(t, nil)
	in := NewInbox(dir, c, 20*time.Millisecond, nil)
	require.NoError(t, in.Start(t.Context()))
	defer func() { _ = in.Stop() }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "beach.txt"), []byte("sunny day\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beach.png"), []byte("png"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("no"), 0o600))

	require.Eventually(t, func() bool { return len(c.Mine()) == 1 }, 2*time.Second, 10*time.Millisecond)
	s := c.Mine()[0]
	assert.Equal(t, "file://"+filepath.Join(dir, "beach.png"), s.MediaURL)
	assert.Equal(t, "sunny day", s.Caption)
	assert.Equal(t, types.MediaImage, s.MediaKind)

	// Rewriting the same file does not post it twice.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beach.png"), []byte("png2"), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, c.Mine(), 1)
}
