package store

import (
	"fmt"
	"time"

	"github.com/matheus3301/bossmsg/internal/types"
)

// InsertStory stores a story authored in this session. Re-inserting an
// existing id leaves the stored row untouched.
func (db *DB) InsertStory(s *types.Story) error {
	_, err := db.Exec(`
		INSERT INTO stories (id, user_id, user_name, user_avatar, media_url, media_kind, duration_ms, caption, view_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		s.ID, s.UserID, s.UserName, s.UserAvatar, s.MediaURL, string(s.MediaKind), s.MediaDuration.Milliseconds(), s.Caption, s.ViewCount, s.Timestamp.UnixMilli())
	return err
}

// ListStories returns stored stories, newest first, with their replies.
func (db *DB) ListStories() ([]types.Story, error) {
	rows, err := db.Query(`
		SELECT id, user_id, user_name, user_avatar, media_url, media_kind, duration_ms, caption, view_count, created_at
		FROM stories
		ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var stories []types.Story
	index := make(map[string]int)
	for rows.Next() {
		var s types.Story
		var kind string
		var created, durationMS int64
		if err := rows.Scan(&s.ID, &s.UserID, &s.UserName, &s.UserAvatar, &s.MediaURL, &kind, &durationMS, &s.Caption, &s.ViewCount, &created); err != nil {
			return nil, err
		}
		s.MediaKind = types.MediaKind(kind)
		s.MediaDuration = time.Duration(durationMS) * time.Millisecond
		s.Timestamp = time.UnixMilli(created)
		s.Replies = []types.StoryReply{}
		index[s.ID] = len(stories)
		stories = append(stories, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(stories) == 0 {
		return stories, nil
	}

	rrows, err := db.Query(`
		SELECT id, story_id, user_name, user_avatar, body, created_at
		FROM story_replies
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	defer func() { _ = rrows.Close() }()
	for rrows.Next() {
		var r types.StoryReply
		var storyID string
		var created int64
		if err := rrows.Scan(&r.ID, &storyID, &r.UserName, &r.UserAvatar, &r.Text, &created); err != nil {
			return nil, err
		}
		r.Timestamp = time.UnixMilli(created)
		if i, ok := index[storyID]; ok {
			stories[i].Replies = append(stories[i].Replies, r)
		}
	}
	return stories, rrows.Err()
}

// AddStoryReply appends a reply to a stored story.
func (db *DB) AddStoryReply(storyID string, r *types.StoryReply) error {
	_, err := db.Exec(`
		INSERT INTO story_replies (id, story_id, user_name, user_avatar, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		r.ID, storyID, r.UserName, r.UserAvatar, r.Text, r.Timestamp.UnixMilli())
	return err
}

// SetStoryViews raises the stored view count to n. Lower values are ignored
// so the count never decreases.
func (db *DB) SetStoryViews(storyID string, n int) error {
	_, err := db.Exec(`UPDATE stories SET view_count = MAX(view_count, ?) WHERE id = ?`, n, storyID)
	return err
}

// DeleteStory removes a story and its replies.
func (db *DB) DeleteStory(storyID string) error {
	_, err := db.Exec(`DELETE FROM stories WHERE id = ?`, storyID)
	return err
}
