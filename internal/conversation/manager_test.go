package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/bossmsg/internal/bus"
	"github.com/matheus3301/bossmsg/internal/persist"
	"github.com/matheus3301/bossmsg/internal/seed"
	"github.com/matheus3301/bossmsg/internal/types"
)

type replierFunc func(ctx context.Context, message, contactName string) <-chan string

func (f replierFunc) StreamReply(ctx context.Context, message, contactName string) <-chan string {
	return f(ctx, message, contactName)
}

// scripted replies with the given fragments, honouring cancellation.
func scripted(fragments ...string) replierFunc {
	return func(ctx context.Context, _, _ string) <-chan string {
		ch := make(chan string)
		go func() {
			defer close(ch)
			for _, f := range fragments {
				select {
				case ch <- f:
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch
	}
}

type translatorFunc func(ctx context.Context, text, lang string) string

func (f translatorFunc) Translate(ctx context.Context, text, lang string) string {
	return f(ctx, text, lang)
}

var noTranslate = translatorFunc(func(context.Context, string, string) string { return "" })

func newManager(t *testing.T, r Replier, delay time.Duration) (*Manager, *bus.Bus) {
	t.Helper()
	b := bus.New()
	var n atomic.Int64
	m := New(Options{
		DeliveryDelay: delay,
		NewID:         func() string { return fmt.Sprintf("id-%d", n.Add(1)) },
	}, seed.MustLoad(time.Now()), persist.Snapshot{}, r, noTranslate, b, nil)
	t.Cleanup(m.Close)
	return m, b
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestSendEmptyReplyStream(t *testing.T) {
	m, _ := newManager(t, scripted(), 200*time.Millisecond)
	require.NoError(t, m.Select("1"))

	sent, err := m.Send(t.Context(), "Hello", nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSent, sent.Status)

	waitFor(t, func() bool { return !m.Typing("1") })
	msgs := m.Messages("1")
	require.Len(t, msgs, 1, "no reply must be created")
	assert.Equal(t, types.StatusSent, msgs[0].Status)

	waitFor(t, func() bool { return m.Messages("1")[0].Status == types.StatusDelivered })
	assert.Len(t, m.Messages("1"), 1)
}

func TestSendAssemblesReply(t *testing.T) {
	fragments := []string{"Ji ", "Boss", ", on it 🚀"}
	m, _ := newManager(t, scripted(fragments...), time.Hour)
	require.NoError(t, m.Select("3"))

	_, err := m.Send(t.Context(), "status?", nil)
	require.NoError(t, err)

	waitFor(t, func() bool {
		msgs := m.Messages("3")
		return len(msgs) == 2 && msgs[1].Text == "Ji Boss, on it 🚀"
	})
	msgs := m.Messages("3")
	assert.Equal(t, types.StatusRead, msgs[0].Status, "user message is read once the reply starts")
	assert.Equal(t, types.SenderAI, msgs[1].Sender)
	assert.Equal(t, types.StatusRead, msgs[1].Status)
	assert.False(t, m.Typing("3"))

	c, ok := m.Contact("3")
	require.True(t, ok)
	assert.Equal(t, "Ji Boss, on it 🚀", c.LastMessage)
	assert.Equal(t, 0, c.UnreadCount)
}

func TestStatusNeverRegresses(t *testing.T) {
	m, b := newManager(t, scripted("fast"), 40*time.Millisecond)
	events, unsub := b.Subscribe("message.", 256)
	defer unsub()
	require.NoError(t, m.Select("1"))

	sent, err := m.Send(t.Context(), "hi", nil)
	require.NoError(t, err)

	// Let the delivery timer fire after the reply marked the message read.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, types.StatusRead, m.Messages("1")[0].Status)

	var seen []types.Status
	for {
		select {
		case evt := <-events:
			if me, ok := evt.Payload.(MessageEvent); ok && me.Message.ID == sent.ID {
				seen = append(seen, me.Message.Status)
			}
			continue
		default:
		}
		break
	}
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i].Rank(), seen[i-1].Rank(), "status regressed: %v", seen)
	}
	assert.Equal(t, types.StatusRead, seen[len(seen)-1])
}

func TestSendRequiresActiveUnblockedContact(t *testing.T) {
	var calls atomic.Int32
	r := replierFunc(func(ctx context.Context, _, _ string) <-chan string {
		calls.Add(1)
		return scripted()(ctx, "", "")
	})
	m, _ := newManager(t, r, time.Hour)

	_, err := m.Send(t.Context(), "hi", nil)
	assert.ErrorIs(t, err, ErrNoActiveContact)

	require.NoError(t, m.Block("2"))
	require.NoError(t, m.Select("2"))
	_, err = m.Send(t.Context(), "hi", nil)
	assert.ErrorIs(t, err, ErrBlocked)

	_, err = m.Send(t.Context(), "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	assert.Empty(t, m.Messages("2"))
	assert.Zero(t, calls.Load())
}

func TestSendAttachmentOnly(t *testing.T) {
	var prompt string
	var mu sync.Mutex
	r := replierFunc(func(ctx context.Context, msg, _ string) <-chan string {
		mu.Lock()
		prompt = msg
		mu.Unlock()
		return scripted()(ctx, "", "")
	})
	m, _ := newManager(t, r, time.Hour)
	require.NoError(t, m.Select("1"))

	file := &types.Attachment{Name: "q3.pdf", Kind: types.AttachmentDocument, Size: 2048}
	msg, err := m.Send(t.Context(), "", file)
	require.NoError(t, err)
	assert.Equal(t, "q3.pdf", msg.File.Name)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "[document] q3.pdf", prompt)
}

func TestSendToConcurrentContacts(t *testing.T) {
	m, _ := newManager(t, scripted(), time.Hour)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		for _, id := range []string{"1", "2"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := m.SendTo(t.Context(), id, fmt.Sprintf("for-%s-%d", id, i), nil)
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	for _, id := range []string{"1", "2"} {
		var mine int
		for _, msg := range m.Messages(id) {
			if msg.Sender != types.SenderUser {
				continue
			}
			assert.True(t, strings.HasPrefix(msg.Text, "for-"+id+"-"), "message %q stored under contact %s", msg.Text, id)
			mine++
		}
		assert.Equal(t, n, mine, "contact %s", id)
	}
}

func TestSendToSelectsContact(t *testing.T) {
	m, _ := newManager(t, scripted(), time.Hour)
	require.NoError(t, m.Select("1"))

	_, err := m.SendTo(t.Context(), "3", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "3", m.Active())
	require.Len(t, m.Messages("3"), 1)

	_, err = m.SendTo(t.Context(), "nope", "hi", nil)
	assert.ErrorIs(t, err, ErrUnknownContact)
	assert.Equal(t, "3", m.Active())
}

func TestSelectClearsUnread(t *testing.T) {
	m, _ := newManager(t, scripted(), time.Hour)
	c, _ := m.Contact("1")
	require.Equal(t, 2, c.UnreadCount)

	require.NoError(t, m.Select("1"))
	c, _ = m.Contact("1")
	assert.Equal(t, 0, c.UnreadCount)
	assert.Equal(t, "1", m.Active())

	assert.ErrorIs(t, m.Select("nope"), ErrUnknownContact)
	require.NoError(t, m.Select(""))
	assert.Empty(t, m.Active())
}

func TestReplyToInactiveContactCountsUnread(t *testing.T) {
	release := make(chan struct{})
	r := replierFunc(func(ctx context.Context, _, _ string) <-chan string {
		ch := make(chan string)
		go func() {
			defer close(ch)
			<-release
			for _, f := range []string{"a", "b"} {
				select {
				case ch <- f:
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch
	})
	m, _ := newManager(t, r, time.Hour)
	require.NoError(t, m.Select("4"))
	_, err := m.Send(t.Context(), "hi", nil)
	require.NoError(t, err)

	require.NoError(t, m.Select("5"))
	close(release)

	waitFor(t, func() bool {
		msgs := m.Messages("4")
		return len(msgs) == 2 && msgs[1].Text == "ab"
	})
	c, _ := m.Contact("4")
	assert.Equal(t, 1, c.UnreadCount, "one unread per reply, not per fragment")
}

func TestTranslate(t *testing.T) {
	var gotLang string
	tr := translatorFunc(func(_ context.Context, text, lang string) string {
		gotLang = lang
		return "[" + text + "]"
	})
	b := bus.New()
	m := New(Options{DeliveryDelay: time.Hour}, seed.MustLoad(time.Now()), persist.Snapshot{}, scripted(), tr, b, nil)
	defer m.Close()
	require.NoError(t, m.Select("1"))
	sent, err := m.Send(t.Context(), "hello", nil)
	require.NoError(t, err)

	out, err := m.Translate(t.Context(), "1", sent.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "[hello]", out)
	assert.Equal(t, "Bengali", gotLang)

	msg := m.Messages("1")[0]
	assert.Equal(t, "[hello]", msg.TranslatedText)
	assert.False(t, msg.Translating)

	_, err = m.Translate(t.Context(), "1", "missing", "French")
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestCloseStopsReplyConsumer(t *testing.T) {
	fragments := make(chan string)
	r := replierFunc(func(ctx context.Context, _, _ string) <-chan string {
		out := make(chan string)
		go func() {
			defer close(out)
			for f := range fragments {
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out
	})
	m, _ := newManager(t, r, 30*time.Millisecond)
	require.NoError(t, m.Select("1"))
	_, err := m.Send(t.Context(), "hi", nil)
	require.NoError(t, err)

	fragments <- "first"
	waitFor(t, func() bool { return len(m.Messages("1")) == 2 })

	m.Close()
	close(fragments)
	time.Sleep(60 * time.Millisecond)

	msgs := m.Messages("1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[1].Text)
	assert.Equal(t, types.StatusRead, msgs[0].Status)

	_, err = m.Send(t.Context(), "again", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSnapshotWinsOverSeed(t *testing.T) {
	ts := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	snap := persist.Snapshot{
		Contacts: []types.Contact{{ID: "9", Name: "Saved"}},
		Messages: map[string][]types.Message{"9": {{ID: "m", Text: "x", Timestamp: ts, Status: types.StatusRead, Translating: true}}},
		Blocked:  []string{"9", "ghost"},
	}
	m := New(Options{}, seed.MustLoad(time.Now()), snap, scripted(), noTranslate, nil, nil)
	defer m.Close()

	assert.Equal(t, []types.Contact{{ID: "9", Name: "Saved"}}, m.Contacts(""))
	assert.False(t, m.Messages("9")[0].Translating)
	assert.Equal(t, []string{"9"}, m.Snapshot().Blocked, "blocked ids must reference known contacts")
	assert.Equal(t, "The Boss", m.Profile().Name, "absent profile falls back to seed")
}

func TestBlockUnblock(t *testing.T) {
	m, b := newManager(t, scripted(), time.Hour)
	events, unsub := b.Subscribe("state.", 10)
	defer unsub()

	require.NoError(t, m.Block("2"))
	require.NoError(t, m.Block("2"))
	assert.ErrorIs(t, m.Block("nope"), ErrUnknownContact)

	blocked := m.Blocked()
	require.Len(t, blocked, 1)
	assert.Equal(t, "Zerin Sultana", blocked[0].Name)
	assert.True(t, m.IsBlocked("2"))

	require.NoError(t, m.Unblock("2"))
	assert.Empty(t, m.Blocked())

	assert.Equal(t, bus.KindBlockedChanged, (<-events).Kind)
	assert.Equal(t, bus.KindBlockedChanged, (<-events).Kind)
}

func TestUpdateProfile(t *testing.T) {
	m, _ := newManager(t, scripted(), time.Hour)

	name, about := "  Chief  ", "Busy"
	p, err := m.UpdateProfile(ProfileUpdate{Name: &name, About: &about})
	require.NoError(t, err)
	assert.Equal(t, "Chief", p.Name)
	assert.Equal(t, "Busy", p.About)
	assert.Equal(t, types.DefaultProfile().Avatar, p.Avatar)

	empty := " "
	_, err = m.UpdateProfile(ProfileUpdate{Name: &empty})
	assert.Error(t, err)
	assert.Equal(t, "Chief", m.Profile().Name)
}

func TestContactsFilterAndAdd(t *testing.T) {
	m, _ := newManager(t, scripted(), time.Hour)

	got := m.Contacts("  RAK ")
	require.Len(t, got, 1)
	assert.Equal(t, "Rakib Hossain", got[0].Name)
	assert.Len(t, m.Contacts(""), 5)

	c, err := m.AddContact("New Vendor", "")
	require.NoError(t, err)
	assert.Len(t, m.Contacts(""), 6)
	_, ok := m.Contact(c.ID)
	assert.True(t, ok)

	_, err = m.AddContact(" ", "")
	assert.Error(t, err)
}
