package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/bossmsg/internal/types"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (snapshots + stories)", result.Version)
	}
}

func TestOpenMigrated(t *testing.T) {
	db, res, err := OpenMigrated(filepath.Join(t.TempDir(), "boss.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	if !res.Changed || res.Dirty {
		t.Errorf("result = %+v, want changed and clean", res)
	}
}

func TestMigrateRecoversDirtyVersion(t *testing.T) {
	db := testDB(t)
	if _, err := db.Exec(`UPDATE schema_migrations SET dirty = 1`); err != nil {
		t.Fatal(err)
	}

	res, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if !res.Recovered || res.From != 1 || res.Version != 2 || res.Dirty {
		t.Errorf("result = %+v, want recovered 1 -> 2 and clean", res)
	}
}

func TestSnapshotPutGet(t *testing.T) {
	db := testDB(t)

	if _, ok, err := db.GetSnapshot("missing"); err != nil || ok {
		t.Fatalf("GetSnapshot(missing) = ok %v, err %v; want not found", ok, err)
	}

	if err := db.PutSnapshot("k", []byte(`{"a":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := db.PutSnapshot("k", []byte(`{"a":2}`)); err != nil {
		t.Fatal(err)
	}
	v, ok, err := db.GetSnapshot("k")
	if err != nil || !ok {
		t.Fatalf("GetSnapshot(k) = ok %v, err %v", ok, err)
	}
	if string(v) != `{"a":2}` {
		t.Errorf("value = %s, want overwritten value", v)
	}

	if err := db.DeleteSnapshot("k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := db.GetSnapshot("k"); ok {
		t.Error("key still present after delete")
	}
}

func TestPutSnapshotsAndKeys(t *testing.T) {
	db := testDB(t)

	err := db.PutSnapshots(map[string][]byte{
		"app_b": []byte("2"),
		"app_a": []byte("1"),
		"other": []byte("3"),
	})
	if err != nil {
		t.Fatal(err)
	}
	keys, err := db.SnapshotKeys("app_")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "app_a" || keys[1] != "app_b" {
		t.Errorf("keys = %v, want [app_a app_b]", keys)
	}
}

func TestStoriesRoundTrip(t *testing.T) {
	db := testDB(t)

	older := &types.Story{ID: "a", UserID: types.MyUserID, MediaURL: "file:///a.png", MediaKind: types.MediaImage, Timestamp: time.UnixMilli(1000)}
	newer := &types.Story{ID: "b", UserID: types.MyUserID, MediaURL: "file:///b.mp4", MediaKind: types.MediaVideo, Caption: "hi", Timestamp: time.UnixMilli(2000)}
	for _, s := range []*types.Story{older, newer} {
		if err := db.InsertStory(s); err != nil {
			t.Fatal(err)
		}
	}
	// Duplicate insert is ignored.
	if err := db.InsertStory(older); err != nil {
		t.Fatal(err)
	}

	reply := &types.StoryReply{ID: "r1", UserName: "Boss Anik", Text: "nice", Timestamp: time.UnixMilli(3000)}
	if err := db.AddStoryReply("b", reply); err != nil {
		t.Fatal(err)
	}
	if err := db.SetStoryViews("b", 3); err != nil {
		t.Fatal(err)
	}
	if err := db.SetStoryViews("b", 1); err != nil {
		t.Fatal(err)
	}

	stories, err := db.ListStories()
	if err != nil {
		t.Fatal(err)
	}
	if len(stories) != 2 {
		t.Fatalf("got %d stories, want 2", len(stories))
	}
	if stories[0].ID != "b" {
		t.Errorf("first story = %s, want newest (b)", stories[0].ID)
	}
	if stories[0].ViewCount != 3 {
		t.Errorf("view count = %d, want 3 (never decreases)", stories[0].ViewCount)
	}
	if len(stories[0].Replies) != 1 || stories[0].Replies[0].Text != "nice" {
		t.Errorf("replies = %+v", stories[0].Replies)
	}
	if stories[1].MediaKind != types.MediaImage || len(stories[1].Replies) != 0 {
		t.Errorf("older story = %+v", stories[1])
	}
}

func TestStoryReplyRequiresStory(t *testing.T) {
	db := testDB(t)
	err := db.AddStoryReply("nope", &types.StoryReply{ID: "r", UserName: "x", Text: "y", Timestamp: time.Now()})
	if err == nil {
		t.Error("reply to a missing story should violate the foreign key")
	}
}

func TestStoryMediaDuration(t *testing.T) {
	db := testDB(t)
	s := &types.Story{ID: "v", UserID: types.MyUserID, MediaURL: "file:///v.mp4", MediaKind: types.MediaVideo, MediaDuration: 12500 * time.Millisecond, Timestamp: time.Now()}
	if err := db.InsertStory(s); err != nil {
		t.Fatal(err)
	}
	stories, err := db.ListStories()
	if err != nil {
		t.Fatal(err)
	}
	if len(stories) != 1 || stories[0].MediaDuration != 12500*time.Millisecond {
		t.Errorf("stories = %+v, want one with 12.5s duration", stories)
	}
}
