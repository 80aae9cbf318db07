package api

import (
	"context"
	"os"
	"time"

	"github.com/matheus3301/bossmsg/internal/call"
	"github.com/matheus3301/bossmsg/internal/conversation"
	"github.com/matheus3301/bossmsg/internal/rpc"
	"github.com/matheus3301/bossmsg/internal/story"
)

// SessionInfo describes the running daemon.
type SessionInfo struct {
	Name         string
	Model        string
	AIConfigured bool
}

// SessionService implements boss.v1.SessionService.
type SessionService struct {
	info      SessionInfo
	startedAt time.Time
	conv      *conversation.Manager
	stories   *story.Catalogue
	calls     *call.Orchestrator
}

// NewSessionService creates a new session service.
func NewSessionService(info SessionInfo, conv *conversation.Manager, stories *story.Catalogue, calls *call.Orchestrator) *SessionService {
	return &SessionService{
		info:      info,
		startedAt: time.Now(),
		conv:      conv,
		stories:   stories,
		calls:     calls,
	}
}

func (s *SessionService) GetStatus(context.Context, *rpc.GetStatusRequest) (*rpc.GetStatusResponse, error) {
	resp := &rpc.GetStatusResponse{
		Session:      s.info.Name,
		PID:          os.Getpid(),
		StartedAtMs:  s.startedAt.UnixMilli(),
		UptimeMs:     time.Since(s.startedAt).Milliseconds(),
		Model:        s.info.Model,
		AIConfigured: s.info.AIConfigured,
	}
	if s.conv != nil {
		st := s.conv.State()
		resp.ContactCount = len(st.Contacts)
		for _, msgs := range st.Messages {
			resp.MessageCount += len(msgs)
		}
	}
	if s.stories != nil {
		resp.StoryCount = len(s.stories.All())
	}
	if s.calls != nil {
		resp.CallStatus = s.calls.State().Status
	}
	return resp, nil
}
