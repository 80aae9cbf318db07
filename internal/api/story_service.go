package api

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/bossmsg/internal/rpc"
	"github.com/matheus3301/bossmsg/internal/story"
)

// StoryService implements boss.v1.StoryService over the story catalogue.
type StoryService struct {
	stories *story.Catalogue
}

// NewStoryService creates a new story service.
func NewStoryService(stories *story.Catalogue) *StoryService {
	return &StoryService{stories: stories}
}

func (s *StoryService) ListGroups(context.Context, *rpc.Empty) (*rpc.ListGroupsResponse, error) {
	return &rpc.ListGroupsResponse{Groups: s.stories.Groups()}, nil
}

func (s *StoryService) PostStory(_ context.Context, req *rpc.PostStoryRequest) (*rpc.StoryResponse, error) {
	kind := req.Kind
	if kind == "" {
		k, ok := story.MediaKindOf(req.MediaURL)
		if !ok {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "cannot tell media type of %q", req.MediaURL)
		}
		kind = k
	}
	st, err := s.stories.Post(req.MediaURL, kind, req.Caption, time.Duration(req.DurationMs)*time.Millisecond)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "post story: %v", err)
	}
	return &rpc.StoryResponse{Story: st}, nil
}

func (s *StoryService) ReplyStory(_ context.Context, req *rpc.ReplyStoryRequest) (*rpc.ReplyStoryResponse, error) {
	r, err := s.stories.Reply(req.StoryID, req.Text)
	if err != nil {
		return nil, toStatus("reply story", err)
	}
	return &rpc.ReplyStoryResponse{Reply: r}, nil
}

func (s *StoryService) ViewStory(_ context.Context, req *rpc.StoryRequest) (*rpc.ViewStoryResponse, error) {
	n, err := s.stories.RecordView(req.StoryID)
	if err != nil {
		return nil, toStatus("view story", err)
	}
	return &rpc.ViewStoryResponse{ViewCount: n}, nil
}

func (s *StoryService) DeleteStory(_ context.Context, req *rpc.StoryRequest) (*rpc.Empty, error) {
	if err := s.stories.Delete(req.StoryID); err != nil {
		return nil, toStatus("delete story", err)
	}
	return &rpc.Empty{}, nil
}
