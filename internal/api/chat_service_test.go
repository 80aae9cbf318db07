package api

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/bossmsg/internal/bus"
	"github.com/matheus3301/bossmsg/internal/conversation"
	"github.com/matheus3301/bossmsg/internal/persist"
	"github.com/matheus3301/bossmsg/internal/rpc"
	"github.com/matheus3301/bossmsg/internal/seed"
	"github.com/matheus3301/bossmsg/internal/types"
)

type silentReplier struct{}

func (silentReplier) StreamReply(context.Context, string, string) <-chan string {
	ch := make(chan string)
	close(ch)
	return ch
}

type noopTranslator struct{}

func (noopTranslator) Translate(context.Context, string, string) string { return "" }

func newChatService(t *testing.T) (*ChatService, *conversation.Manager) {
	t.Helper()
	b := bus.New()
	m := conversation.New(conversation.Options{DeliveryDelay: time.Hour},
		seed.MustLoad(time.Now()), persist.Snapshot{}, silentReplier{}, noopTranslator{}, b, nil)
	t.Cleanup(m.Close)
	return NewChatService(m, b, "test", nil), m
}

func TestSendTextRoutesByContact(t *testing.T) {
	svc, m := newChatService(t)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		for _, id := range []string{"1", "2"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.SendText(t.Context(), &rpc.SendTextRequest{ContactID: id, Text: fmt.Sprintf("for-%s-%d", id, i)})
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	for _, id := range []string{"1", "2"} {
		var count int
		for _, msg := range m.Messages(id) {
			if msg.Sender != types.SenderUser {
				continue
			}
			count++
			assert.True(t, strings.HasPrefix(msg.Text, "for-"+id+"-"), "%q stored under contact %s", msg.Text, id)
		}
		assert.Equal(t, n, count, "contact %s", id)
	}
}

func TestSendTextErrors(t *testing.T) {
	svc, m := newChatService(t)
	require.NoError(t, m.Block("2"))

	_, err := svc.SendText(t.Context(), &rpc.SendTextRequest{ContactID: "2", Text: "hi"})
	assert.Equal(t, codes.FailedPrecondition, grpcstatus.Code(err))

	_, err = svc.SendText(t.Context(), &rpc.SendTextRequest{ContactID: "missing", Text: "hi"})
	assert.Equal(t, codes.NotFound, grpcstatus.Code(err))

	_, err = svc.SendText(t.Context(), &rpc.SendTextRequest{ContactID: "1"})
	assert.Equal(t, codes.InvalidArgument, grpcstatus.Code(err))
}
