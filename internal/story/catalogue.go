package story

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/bossmsg/internal/bus"
	"github.com/matheus3301/bossmsg/internal/types"
)

var (
	ErrUnknownStory = errors.New("unknown story")
	ErrNotMine      = errors.New("story belongs to another user")
	ErrEmptyReply   = errors.New("empty reply")
)

// Store persists the stories posted in this session.
type Store interface {
	InsertStory(s *types.Story) error
	ListStories() ([]types.Story, error)
	AddStoryReply(storyID string, r *types.StoryReply) error
	SetStoryViews(storyID string, n int) error
	DeleteStory(storyID string) error
}

// Author supplies the name and avatar stamped on my stories and replies.
type Author interface {
	Profile() types.Profile
}

// ViewCounter receives story views. The metrics package implements it.
type ViewCounter interface {
	StoryViewed()
}

// Catalogue holds my stories (newest first) followed by the seeded stories
// of contacts. View and reply counts only grow.
type Catalogue struct {
	mu     sync.RWMutex
	mine   []types.Story
	others []types.Story

	store   Store
	author  Author
	bus     *bus.Bus
	counter ViewCounter
	logger  *zap.Logger
	now     func() time.Time
}

// NewCatalogue loads my stories from store and appends the seeded ones.
// A store read failure is logged and leaves my list empty.
func NewCatalogue(store Store, seeded []types.Story, author Author, b *bus.Bus, counter ViewCounter, logger *zap.Logger) *Catalogue {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalogue{
		others:  slices.Clone(seeded),
		store:   store,
		author:  author,
		bus:     b,
		counter: counter,
		logger:  logger.Named("story"),
		now:     time.Now,
	}
	if store != nil {
		stored, err := store.ListStories()
		if err != nil {
			c.logger.Error("load stories", zap.Error(err))
		}
		for _, s := range stored {
			if s.UserID == types.MyUserID {
				c.mine = append(c.mine, s)
			}
		}
	}
	return c
}

// Post publishes a new story of mine and returns it.
func (c *Catalogue) Post(mediaURL string, kind types.MediaKind, caption string, duration time.Duration) (types.Story, error) {
	if strings.TrimSpace(mediaURL) == "" {
		return types.Story{}, errors.New("media url is required")
	}
	if kind != types.MediaImage && kind != types.MediaVideo {
		return types.Story{}, fmt.Errorf("unsupported media kind %q", kind)
	}
	p := c.author.Profile()
	s := types.Story{
		ID:         uuid.NewString(),
		UserID:     types.MyUserID,
		UserName:   p.Name,
		UserAvatar: p.Avatar,
		MediaURL:   mediaURL,
		MediaKind:  kind,
		Caption:    strings.TrimSpace(caption),
		Timestamp:  c.now(),
		Replies:    []types.StoryReply{},
	}
	if kind == types.MediaVideo {
		if duration <= 0 {
			duration = c.probeDuration(mediaURL)
		}
		s.MediaDuration = duration
	}

	c.mu.Lock()
	c.mine = append([]types.Story{s}, c.mine...)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.InsertStory(&s); err != nil {
			c.logger.Error("persist story", zap.String("story_id", s.ID), zap.Error(err))
		}
	}
	c.bus.Emit(bus.KindStoryPosted, s)
	return s, nil
}

// All returns my stories followed by the seeded ones.
func (c *Catalogue) All() []types.Story {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Story, 0, len(c.mine)+len(c.others))
	out = append(out, cloneStories(c.mine)...)
	return append(out, cloneStories(c.others)...)
}

// Mine returns my stories, newest first.
func (c *Catalogue) Mine() []types.Story {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneStories(c.mine)
}

// Groups returns the stories grouped by author: mine first, then each
// other author in the order they first appear.
func (c *Catalogue) Groups() []types.StoryGroup {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var groups []types.StoryGroup
	if len(c.mine) > 0 {
		p := c.author.Profile()
		groups = append(groups, types.StoryGroup{
			UserID:     types.MyUserID,
			UserName:   p.Name,
			UserAvatar: p.Avatar,
			Stories:    cloneStories(c.mine),
		})
	}
	index := map[string]int{}
	for _, s := range c.others {
		i, ok := index[s.UserID]
		if !ok {
			i = len(groups)
			index[s.UserID] = i
			groups = append(groups, types.StoryGroup{UserID: s.UserID, UserName: s.UserName, UserAvatar: s.UserAvatar})
		}
		groups[i].Stories = append(groups[i].Stories, cloneStory(s))
	}
	return groups
}

// Get returns one story.
func (c *Catalogue) Get(id string) (types.Story, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s := c.find(id); s != nil {
		return cloneStory(*s), true
	}
	return types.Story{}, false
}

func (c *Catalogue) find(id string) *types.Story {
	for i := range c.mine {
		if c.mine[i].ID == id {
			return &c.mine[i]
		}
	}
	for i := range c.others {
		if c.others[i].ID == id {
			return &c.others[i]
		}
	}
	return nil
}

// Reply appends a reply by the local user to a story.
func (c *Catalogue) Reply(storyID, text string) (types.StoryReply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.StoryReply{}, ErrEmptyReply
	}
	p := c.author.Profile()
	r := types.StoryReply{
		ID:         uuid.NewString(),
		UserName:   p.Name,
		UserAvatar: p.Avatar,
		Text:       text,
		Timestamp:  c.now(),
	}

	c.mu.Lock()
	s := c.find(storyID)
	if s == nil {
		c.mu.Unlock()
		return types.StoryReply{}, fmt.Errorf("%w: %s", ErrUnknownStory, storyID)
	}
	s.Replies = append(s.Replies, r)
	updated := cloneStory(*s)
	c.mu.Unlock()

	if c.store != nil && updated.UserID == types.MyUserID {
		if err := c.store.AddStoryReply(storyID, &r); err != nil {
			c.logger.Error("persist story reply", zap.String("story_id", storyID), zap.Error(err))
		}
	}
	c.bus.Emit(bus.KindStoryUpdated, updated)
	return r, nil
}

// RecordView increments the view counter of a story and returns the new
// count.
func (c *Catalogue) RecordView(storyID string) (int, error) {
	c.mu.Lock()
	s := c.find(storyID)
	if s == nil {
		c.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrUnknownStory, storyID)
	}
	s.ViewCount++
	updated := cloneStory(*s)
	c.mu.Unlock()

	if c.counter != nil {
		c.counter.StoryViewed()
	}
	if c.store != nil && updated.UserID == types.MyUserID {
		if err := c.store.SetStoryViews(storyID, updated.ViewCount); err != nil {
			c.logger.Error("persist story views", zap.String("story_id", storyID), zap.Error(err))
		}
	}
	c.bus.Emit(bus.KindStoryUpdated, updated)
	return updated.ViewCount, nil
}

// Delete removes one of my stories.
func (c *Catalogue) Delete(storyID string) error {
	c.mu.Lock()
	i := slices.IndexFunc(c.mine, func(s types.Story) bool { return s.ID == storyID })
	if i < 0 {
		_, other := c.findOther(storyID)
		c.mu.Unlock()
		if other {
			return ErrNotMine
		}
		return fmt.Errorf("%w: %s", ErrUnknownStory, storyID)
	}
	c.mine = slices.Delete(c.mine, i, i+1)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.DeleteStory(storyID); err != nil {
			c.logger.Error("delete story", zap.String("story_id", storyID), zap.Error(err))
		}
	}
	c.bus.Emit(bus.KindStoryUpdated, storyID)
	return nil
}

func (c *Catalogue) findOther(id string) (int, bool) {
	i := slices.IndexFunc(c.others, func(s types.Story) bool { return s.ID == id })
	return i, i >= 0
}

func cloneStory(s types.Story) types.Story {
	s.Replies = slices.Clone(s.Replies)
	if s.Replies == nil {
		s.Replies = []types.StoryReply{}
	}
	return s
}

func cloneStories(in []types.Story) []types.Story {
	out := make([]types.Story, len(in))
	for i, s := range in {
		out[i] = cloneStory(s)
	}
	return out
}

// probeDuration reads the length of a local video. Zero leaves the viewer
// on its image duration.
func (c *Catalogue) probeDuration(mediaURL string) time.Duration {
	path, ok := strings.CutPrefix(mediaURL, "file://")
	if !ok {
		return 0
	}
	d, err := VideoDuration(path)
	if err != nil {
		c.logger.Debug("video duration unknown", zap.String("path", path), zap.Error(err))
		return 0
	}
	return d
}
