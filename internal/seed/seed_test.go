package seed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/bossmsg/internal/types"
)

func TestLoad(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	d, err := Load(now)
	require.NoError(t, err)

	require.Len(t, d.Contacts, 5)
	assert.Equal(t, "Boss Anik", d.Contacts[0].Name)
	assert.Equal(t, 2, d.Contacts[0].UnreadCount)
	assert.True(t, d.Contacts[0].Online)
	assert.Equal(t, "Waiting at the gate.", d.Contacts[4].LastMessage)

	require.Len(t, d.Stories, 2)
	assert.Equal(t, "Zerin Sultana", d.Stories[1].UserName)
	assert.Equal(t, now.Add(-2*time.Hour), d.Stories[1].Timestamp)
	assert.Equal(t, types.MediaImage, d.Stories[0].MediaKind)

	assert.Equal(t, types.DefaultProfile(), d.Profile)
}

func TestParseRejectsOrphanStory(t *testing.T) {
	_, err := parse([]byte("stories:\n  - id: x\n    user_id: nobody\n"), time.Now())
	assert.Error(t, err)
}
