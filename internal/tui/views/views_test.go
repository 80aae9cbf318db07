package views

import (
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/matheus3301/bossmsg/internal/rpc"
	"github.com/matheus3301/bossmsg/internal/tui/ui"
	"github.com/matheus3301/bossmsg/internal/types"
)

func TestProgressBar(t *testing.T) {
	got := ProgressBar(1, 3, 50, 4)
	want := "━━━━ ━━── ────"
	if got != want {
		t.Fatalf("ProgressBar = %q, want %q", got, want)
	}
	if got := ProgressBar(0, 1, 140, 4); got != "━━━━" {
		t.Errorf("overfull = %q", got)
	}
	if got := ProgressBar(0, 0, 10, 4); got != "" {
		t.Errorf("empty group = %q", got)
	}
}

func TestFormatClock(t *testing.T) {
	tests := map[time.Duration]string{
		0:                           "00:00",
		59 * time.Second:            "00:59",
		61*time.Second + 900*time.Millisecond: "01:01",
		time.Hour + 2*time.Minute + 3*time.Second: "1:02:03",
		-time.Second:                "00:00",
	}
	for d, want := range tests {
		if got := formatClock(d); got != want {
			t.Errorf("formatClock(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.Local)
	if got := formatTimestamp(now.Add(-time.Hour), now); got != "17:00" {
		t.Errorf("today = %q", got)
	}
	if got := formatTimestamp(now.AddDate(0, 0, -1), now); got != "Yesterday" {
		t.Errorf("yesterday = %q", got)
	}
	if got := formatTimestamp(now.AddDate(0, 0, -5), now); got != "03/05" {
		t.Errorf("older = %q", got)
	}
	if got := formatTimestamp(time.Time{}, now); got != "" {
		t.Errorf("zero = %q", got)
	}
}

func TestCallStatusLine(t *testing.T) {
	now := time.Now()
	tests := []struct {
		st   types.CallState
		want string
	}{
		{types.CallState{Status: types.CallIdle}, "No call"},
		{types.CallState{Status: types.CallCalling}, "Calling…"},
		{types.CallState{Status: types.CallConnected, StartedAt: now.Add(-75 * time.Second)}, "01:15"},
		{types.CallState{Status: types.CallEnded, Elapsed: 3 * time.Second}, "Call ended 00:03"},
	}
	for _, tt := range tests {
		if got := CallStatusLine(tt.st, now); got != tt.want {
			t.Errorf("CallStatusLine(%s) = %q, want %q", tt.st.Status, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	got := truncate("a very\nlong   preview line", 10)
	if runewidth.StringWidth(got) > 10 {
		t.Fatalf("width of %q = %d", got, runewidth.StringWidth(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("missing ellipsis: %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("short = %q", got)
	}
}

func TestChatListFilter(t *testing.T) {
	cl := NewChatList(ui.DefaultTheme())
	cl.Update([]types.Contact{
		{ID: "1", Name: "Elon Musk", LastMessage: "Mars soon"},
		{ID: "2", Name: "Sundar", LastMessage: "Ship it"},
		{ID: "3", Name: "Satya", LastMessage: "mars? no"},
	})

	cl.SetFilter("MARS")
	if got := len(cl.Visible()); got != 2 {
		t.Fatalf("visible = %d, want 2", got)
	}
	if id := cl.ContactByIndex(2); id != "3" {
		t.Errorf("ContactByIndex(2) = %q, want 3", id)
	}
	if id := cl.ContactByIndex(3); id != "" {
		t.Errorf("ContactByIndex(3) = %q, want empty", id)
	}

	cl.ClearFilter()
	if got := len(cl.Visible()); got != 3 {
		t.Errorf("visible after clear = %d", got)
	}
}

func TestStatusListPlaceholderRow(t *testing.T) {
	sl := NewStatusList(ui.DefaultTheme())
	sl.Update([]types.StoryGroup{{UserID: "c1", UserName: "Elon", Stories: []types.Story{{ID: "s1"}}}})

	sl.Select(1, 0)
	if _, ok := sl.SelectedGroup(); ok {
		t.Fatal("the placeholder row for my status must not resolve to a group")
	}
	sl.Select(2, 0)
	g, ok := sl.SelectedGroup()
	if !ok || g.UserID != "c1" {
		t.Fatalf("SelectedGroup = %+v, %v", g, ok)
	}
}

func TestMessageThreadRendersTicksAndTranslation(t *testing.T) {
	mt := NewMessageThread(ui.DefaultTheme())
	now := time.Now()
	mt.Update(&rpc.ListMessagesResponse{
		Contact: types.Contact{ID: "c1", Name: "Elon"},
		Typing:  true,
		Messages: []types.Message{
			{ID: "m1", Text: "hi", Sender: types.SenderUser, Timestamp: now, Status: types.StatusRead},
			{ID: "m2", Text: "hola", Sender: types.SenderAI, Timestamp: now, TranslatedText: "hello"},
		},
	})

	text := mt.Messages().GetText(true)
	for _, want := range []string{"You", "✓✓", "Elon", "hola", "↳ hello"} {
		if !strings.Contains(text, want) {
			t.Errorf("thread text missing %q:\n%s", want, text)
		}
	}
	if !strings.Contains(mt.Messages().GetTitle(), "typing") {
		t.Errorf("title = %q", mt.Messages().GetTitle())
	}
}

func TestDescribeAttachment(t *testing.T) {
	tests := []struct {
		f    types.Attachment
		want string
	}{
		{types.Attachment{Name: "deck.pdf", Kind: types.AttachmentDocument, Size: 2_500_000}, "📎 deck.pdf (2.5 MB)"},
		{types.Attachment{Kind: types.AttachmentAudio, Duration: 7 * time.Second}, "🎤 voice message 00:07"},
		{types.Attachment{Kind: types.AttachmentLocation, Location: &types.LatLng{Lat: 1.5, Lng: -2}}, "📍 1.50000, -2.00000"},
	}
	for _, tt := range tests {
		if got := describeAttachment(&tt.f); got != tt.want {
			t.Errorf("describeAttachment = %q, want %q", got, tt.want)
		}
	}
}

func TestShareLinkRendersQR(t *testing.T) {
	link := ShareLink(types.Profile{Name: "The Boss", About: "busy"})
	if link != "boss://contact?about=busy&name=The+Boss" {
		t.Fatalf("ShareLink = %q", link)
	}
	qr := renderQR(link)
	if !strings.ContainsAny(qr, "█▀▄") {
		t.Fatal("QR has no blocks")
	}
}

func TestSanitizeForTerminal(t *testing.T) {
	tests := map[string]string{
		"👍\U0001F3FB ok\u200D\uFE0F":   "👍 ok",
		"red\x1b[31m alert\a":          "red[31m alert",
		"line\n\tindent":               "line\n\tindent",
		"\u202Eevil\u202C name":        "evil name",
	}
	for in, want := range tests {
		if got := sanitizeForTerminal(in); got != want {
			t.Errorf("sanitizeForTerminal(%q) = %q, want %q", in, got, want)
		}
	}
}
