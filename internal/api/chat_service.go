package api

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/bossmsg/internal/bus"
	"github.com/matheus3301/bossmsg/internal/conversation"
	"github.com/matheus3301/bossmsg/internal/rpc"
)

// ChatService implements boss.v1.ChatService over the conversation manager.
type ChatService struct {
	conv        *conversation.Manager
	bus         *bus.Bus
	sessionName string
	logger      *zap.Logger
}

// NewChatService creates a new chat service.
func NewChatService(conv *conversation.Manager, b *bus.Bus, sessionName string, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{conv: conv, bus: b, sessionName: sessionName, logger: logger}
}

func (s *ChatService) ListContacts(_ context.Context, req *rpc.ListContactsRequest) (*rpc.ListContactsResponse, error) {
	return &rpc.ListContactsResponse{Contacts: s.conv.Contacts(req.Query), ActiveID: s.conv.Active()}, nil
}

func (s *ChatService) AddContact(_ context.Context, req *rpc.AddContactRequest) (*rpc.ContactResponse, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "name is required")
	}
	c, err := s.conv.AddContact(req.Name, req.Avatar)
	if err != nil {
		return nil, toStatus("add contact", err)
	}
	return &rpc.ContactResponse{Contact: c}, nil
}

func (s *ChatService) SelectContact(_ context.Context, req *rpc.ContactRequest) (*rpc.ContactResponse, error) {
	if err := s.conv.Select(req.ContactID); err != nil {
		return nil, toStatus("select contact", err)
	}
	c, _ := s.conv.Contact(req.ContactID)
	return &rpc.ContactResponse{Contact: c}, nil
}

func (s *ChatService) ListMessages(_ context.Context, req *rpc.ContactRequest) (*rpc.ListMessagesResponse, error) {
	c, ok := s.conv.Contact(req.ContactID)
	if !ok {
		return nil, grpcstatus.Errorf(codes.NotFound, "contact %q not found", req.ContactID)
	}
	return &rpc.ListMessagesResponse{
		Contact:  c,
		Messages: s.conv.Messages(req.ContactID),
		Typing:   s.conv.Typing(req.ContactID),
		Blocked:  s.conv.IsBlocked(req.ContactID),
	}, nil
}

func (s *ChatService) SendText(ctx context.Context, req *rpc.SendTextRequest) (*rpc.SendTextResponse, error) {
	msg, err := s.conv.SendTo(ctx, req.ContactID, req.Text, req.File)
	if err != nil {
		return nil, toStatus("send", err)
	}
	return &rpc.SendTextResponse{Message: msg}, nil
}

func (s *ChatService) Translate(ctx context.Context, req *rpc.TranslateRequest) (*rpc.TranslateResponse, error) {
	text, err := s.conv.Translate(ctx, req.ContactID, req.MessageID, req.Language)
	if err != nil {
		return nil, toStatus("translate", err)
	}
	return &rpc.TranslateResponse{Text: text}, nil
}

func (s *ChatService) Block(_ context.Context, req *rpc.ContactRequest) (*rpc.Empty, error) {
	if err := s.conv.Block(req.ContactID); err != nil {
		return nil, toStatus("block", err)
	}
	return &rpc.Empty{}, nil
}

func (s *ChatService) Unblock(_ context.Context, req *rpc.ContactRequest) (*rpc.Empty, error) {
	if err := s.conv.Unblock(req.ContactID); err != nil {
		return nil, toStatus("unblock", err)
	}
	return &rpc.Empty{}, nil
}

func (s *ChatService) ListBlocked(context.Context, *rpc.Empty) (*rpc.ListBlockedResponse, error) {
	return &rpc.ListBlockedResponse{Contacts: s.conv.Blocked()}, nil
}

func (s *ChatService) GetProfile(context.Context, *rpc.Empty) (*rpc.ProfileResponse, error) {
	return &rpc.ProfileResponse{Profile: s.conv.Profile()}, nil
}

func (s *ChatService) UpdateProfile(_ context.Context, req *rpc.UpdateProfileRequest) (*rpc.ProfileResponse, error) {
	p, err := s.conv.UpdateProfile(conversation.ProfileUpdate{Name: req.Name, About: req.About, Avatar: req.Avatar})
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "update profile: %v", err)
	}
	return &rpc.ProfileResponse{Profile: p}, nil
}

// WatchEvents forwards bus events to the client until it disconnects.
func (s *ChatService) WatchEvents(req *rpc.WatchEventsRequest, stream rpc.EventStream) error {
	ch, unsub := s.bus.Subscribe("", 256)
	defer unsub()

	// Headers tell the client the subscription is live.
	if err := stream.SendHeader(metadata.MD{}); err != nil {
		return err
	}

	for {
		select {
		case evt := <-ch:
			if !matches(req.Namespaces, evt.Kind) {
				continue
			}
			payload, err := json.Marshal(evt.Payload)
			if err != nil {
				s.logger.Warn("marshal event payload", zap.String("kind", evt.Kind), zap.Error(err))
				payload = nil
			}
			if err := stream.Send(&rpc.Event{
				ID:           uuid.New().String(),
				Session:      s.sessionName,
				Kind:         evt.Kind,
				OccurredAtMs: evt.Timestamp.UnixMilli(),
				Payload:      payload,
			}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func matches(namespaces []string, kind string) bool {
	if len(namespaces) == 0 {
		return true
	}
	for _, ns := range namespaces {
		if strings.HasPrefix(kind, ns) {
			return true
		}
	}
	return false
}
