package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/bossmsg/internal/ai"
	"github.com/matheus3301/bossmsg/internal/api"
	"github.com/matheus3301/bossmsg/internal/bus"
	"github.com/matheus3301/bossmsg/internal/call"
	"github.com/matheus3301/bossmsg/internal/config"
	"github.com/matheus3301/bossmsg/internal/conversation"
	"github.com/matheus3301/bossmsg/internal/lock"
	"github.com/matheus3301/bossmsg/internal/persist"
	"github.com/matheus3301/bossmsg/internal/rpc"
	"github.com/matheus3301/bossmsg/internal/seed"
	"github.com/matheus3301/bossmsg/internal/session"
	"github.com/matheus3301/bossmsg/internal/store"
	"github.com/matheus3301/bossmsg/internal/story"
	"github.com/matheus3301/bossmsg/internal/types"
)

type cannedAI struct{}

func (cannedAI) StreamReply(_ context.Context, _, _ string) <-chan string {
	ch := make(chan string, 2)
	ch <- "Noted, "
	ch <- "Boss."
	close(ch)
	return ch
}

func (cannedAI) Translate(_ context.Context, text, lang string) string {
	return lang + ":" + text
}

func TestDaemonLifecycle(t *testing.T) {
	// Use a short path to avoid macOS 104-char Unix socket limit.
	tmpDir, err := os.MkdirTemp("/tmp", "boss-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	sessionName := "test"
	sessionDir := filepath.Join(tmpDir, sessionName)
	socketPath := filepath.Join(sessionDir, "d.sock")

	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		t.Fatal(err)
	}

	// Acquire lock.
	lk, err := lock.Acquire(sessionDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	// Open store.
	db, _, err := store.OpenMigrated(filepath.Join(sessionDir, "boss.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	// Setup components.
	logger := zap.NewNop()
	b := bus.New()
	data := seed.MustLoad(time.Now())
	adapter := persist.NewAdapter(db, logger)
	conv := conversation.New(conversation.Options{DeliveryDelay: 20 * time.Millisecond}, data, adapter.Load(), cannedAI{}, cannedAI{}, b, logger)
	defer conv.Close()
	syncer := persist.NewSyncer(adapter, conv, b, logger)
	syncer.Start(context.Background())
	stories := story.NewCatalogue(db, data.Stories, conv, b, nil, logger)
	calls := call.New(ai.NewWSDialer("ws://127.0.0.1:1", "", logger), call.NewDevices(call.DeviceConfig{}), b, call.Options{}, logger)
	defer calls.Close()

	grpcSrv := grpc.NewServer()
	Register(grpcSrv,
		api.NewSessionService(api.SessionInfo{Name: sessionName, Model: "m"}, conv, stories, calls),
		api.NewChatService(conv, b, sessionName, logger),
		api.NewStoryService(stories),
		api.NewCallService(calls, conv),
	)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}

	go func() { _ = grpcSrv.Serve(listener) }()
	defer grpcSrv.Stop()

	// Connect as client.
	conn, err := rpc.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()
	client := rpc.NewClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Test GetStatus.
	st, err := client.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus error = %v", err)
	}
	if st.Session != sessionName {
		t.Errorf("session = %q, want %q", st.Session, sessionName)
	}
	if st.ContactCount != 5 {
		t.Errorf("contact count = %d, want 5", st.ContactCount)
	}
	if st.CallStatus != types.CallIdle {
		t.Errorf("call status = %q, want idle", st.CallStatus)
	}

	// Test ListContacts.
	contacts, err := client.ListContacts(ctx, "")
	if err != nil {
		t.Fatalf("ListContacts error = %v", err)
	}
	if len(contacts.Contacts) != 5 {
		t.Fatalf("expected 5 contacts, got %d", len(contacts.Contacts))
	}
	target := contacts.Contacts[0].ID

	// Watch message events, then send.
	events, err := client.WatchEvents(ctx, "message.")
	if err != nil {
		t.Fatalf("WatchEvents error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	sent, err := client.SendText(ctx, &rpc.SendTextRequest{ContactID: target, Text: "Status report?"})
	if err != nil {
		t.Fatalf("SendText error = %v", err)
	}
	if sent.Message.Status != types.StatusSent {
		t.Errorf("status = %q, want sent", sent.Message.Status)
	}

	evt, err := events.Recv()
	if err != nil {
		t.Fatalf("Recv error = %v", err)
	}
	if evt.Kind != bus.KindMessageAdded || evt.Session != sessionName {
		t.Errorf("first event = %q/%q", evt.Kind, evt.Session)
	}

	var msgs *rpc.ListMessagesResponse
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msgs, err = client.ListMessages(ctx, target)
		if err != nil {
			t.Fatalf("ListMessages error = %v", err)
		}
		if len(msgs.Messages) == 2 && !msgs.Typing {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(msgs.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs.Messages))
	}
	if got := msgs.Messages[1].Text; got != "Noted, Boss." {
		t.Errorf("reply = %q, want %q", got, "Noted, Boss.")
	}
	if msgs.Messages[0].Status != types.StatusRead {
		t.Errorf("user message status = %q, want read", msgs.Messages[0].Status)
	}

	// Test Translate.
	tr, err := client.Translate(ctx, &rpc.TranslateRequest{ContactID: target, MessageID: msgs.Messages[1].ID, Language: "French"})
	if err != nil {
		t.Fatalf("Translate error = %v", err)
	}
	if tr.Text != "French:Noted, Boss." {
		t.Errorf("translation = %q", tr.Text)
	}

	// Blocked contacts cannot be messaged.
	if err := client.Block(ctx, target); err != nil {
		t.Fatalf("Block error = %v", err)
	}
	_, err = client.SendText(ctx, &rpc.SendTextRequest{ContactID: target, Text: "again"})
	if code := grpcstatus.Code(err); code != codes.FailedPrecondition {
		t.Errorf("send to blocked code = %v, want FailedPrecondition", code)
	}

	// Test stories.
	posted, err := client.PostStory(ctx, &rpc.PostStoryRequest{MediaURL: "file:///tmp/a.jpg", Caption: "hi"})
	if err != nil {
		t.Fatalf("PostStory error = %v", err)
	}
	if posted.Story.MediaKind != types.MediaImage {
		t.Errorf("media kind = %q, want image", posted.Story.MediaKind)
	}
	groups, err := client.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups error = %v", err)
	}
	if len(groups.Groups) == 0 || groups.Groups[0].UserID != types.MyUserID {
		t.Errorf("my group must come first, got %+v", groups.Groups)
	}
	views, err := client.ViewStory(ctx, posted.Story.ID)
	if err != nil || views.ViewCount != 1 {
		t.Errorf("ViewStory = %v, %v", views, err)
	}

	// Test calls without a session.
	callResp, err := client.GetCall(ctx)
	if err != nil {
		t.Fatalf("GetCall error = %v", err)
	}
	if callResp.Call.Active {
		t.Error("expected no active call")
	}
	_, err = client.EndCall(ctx)
	if code := grpcstatus.Code(err); code != codes.FailedPrecondition {
		t.Errorf("EndCall code = %v, want FailedPrecondition", code)
	}
	_, err = client.StartCall(ctx, "missing", types.CallAudio)
	if code := grpcstatus.Code(err); code != codes.NotFound {
		t.Errorf("StartCall code = %v, want NotFound", code)
	}

	// The syncer persists the conversation on stop.
	conv.Close()
	syncer.Stop()
	snap := persist.NewAdapter(db, logger).Load()
	if len(snap.Messages[target]) != 2 {
		t.Errorf("persisted %d messages, want 2", len(snap.Messages[target]))
	}
	if len(snap.Blocked) != 1 || snap.Blocked[0] != target {
		t.Errorf("persisted blocked = %v", snap.Blocked)
	}
}

// TestFxModuleWiring starts the whole fx graph against a temporary home and
// probes it over the socket.
func TestFxModuleWiring(t *testing.T) {
	// Use /tmp for short socket paths (macOS 104-char limit).
	tmpDir, err := os.MkdirTemp("/tmp", "boss-fx-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	t.Setenv("BOSS_HOME", tmpDir)

	cfg := config.Default()
	cfg.LogLevel = "error"
	app := fx.New(Module(Params{SessionName: "fxtest", Config: cfg}), fx.NopLogger)
	if err := app.Err(); err != nil {
		t.Fatalf("fx graph error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	socketPath := session.SocketPath("fxtest")
	if _, statErr := os.Stat(socketPath); statErr != nil {
		t.Fatalf("socket not created at %s: %v", socketPath, statErr)
	}

	conn, err := rpc.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	client := rpc.NewClient(conn)

	var serving grpc_health_v1.HealthCheckResponse_ServingStatus
	for range 50 {
		serving, err = client.Health(ctx)
		if err == nil && serving == grpc_health_v1.HealthCheckResponse_SERVING {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if serving != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("health = %v, %v", serving, err)
	}

	st, err := client.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus error = %v", err)
	}
	if st.Session != "fxtest" || st.AIConfigured {
		t.Errorf("status = %+v", st)
	}
	_ = conn.Close()

	if err := app.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket should be removed on stop, stat err = %v", err)
	}
	if _, err := os.Stat(session.AppDBPath("fxtest")); err != nil {
		t.Errorf("database missing: %v", err)
	}
}
