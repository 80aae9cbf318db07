package api

import (
	"context"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/bossmsg/internal/call"
	"github.com/matheus3301/bossmsg/internal/conversation"
	"github.com/matheus3301/bossmsg/internal/rpc"
	"github.com/matheus3301/bossmsg/internal/types"
)

// CallService implements boss.v1.CallService over the call orchestrator.
type CallService struct {
	calls *call.Orchestrator
	conv  *conversation.Manager
}

// NewCallService creates a new call service.
func NewCallService(calls *call.Orchestrator, conv *conversation.Manager) *CallService {
	return &CallService{calls: calls, conv: conv}
}

func (s *CallService) contact(id string) (types.Contact, error) {
	c, ok := s.conv.Contact(id)
	if !ok {
		return types.Contact{}, grpcstatus.Errorf(codes.NotFound, "contact %q not found", id)
	}
	return c, nil
}

func (s *CallService) StartCall(_ context.Context, req *rpc.StartCallRequest) (*rpc.CallResponse, error) {
	c, err := s.contact(req.ContactID)
	if err != nil {
		return nil, err
	}
	if s.conv.IsBlocked(c.ID) {
		return nil, toStatus("start call", conversation.ErrBlocked)
	}
	kind := req.Kind
	if kind == "" {
		kind = types.CallAudio
	}
	st, err := s.calls.Start(c, kind)
	if err != nil {
		return nil, toStatus("start call", err)
	}
	return &rpc.CallResponse{Call: st}, nil
}

func (s *CallService) EndCall(context.Context, *rpc.Empty) (*rpc.CallResponse, error) {
	if err := s.calls.End(); err != nil {
		return nil, toStatus("end call", err)
	}
	return &rpc.CallResponse{Call: s.calls.State()}, nil
}

func (s *CallService) GetCall(context.Context, *rpc.Empty) (*rpc.CallResponse, error) {
	return &rpc.CallResponse{Call: s.calls.State()}, nil
}

func (s *CallService) SetMuted(_ context.Context, req *rpc.SetMutedRequest) (*rpc.CallResponse, error) {
	st, err := s.calls.Mute(req.Muted)
	if err != nil {
		return nil, toStatus("mute", err)
	}
	return &rpc.CallResponse{Call: st}, nil
}

func (s *CallService) SetVideoOff(_ context.Context, req *rpc.SetVideoOffRequest) (*rpc.CallResponse, error) {
	st, err := s.calls.SetVideoOff(req.Off)
	if err != nil {
		return nil, toStatus("video", err)
	}
	return &rpc.CallResponse{Call: st}, nil
}

func (s *CallService) Invite(_ context.Context, req *rpc.ContactRequest) (*rpc.CallResponse, error) {
	c, err := s.contact(req.ContactID)
	if err != nil {
		return nil, err
	}
	st, err := s.calls.Invite(c)
	if err != nil {
		return nil, toStatus("invite", err)
	}
	return &rpc.CallResponse{Call: st}, nil
}
