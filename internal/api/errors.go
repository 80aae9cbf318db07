package api

import (
	"errors"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/bossmsg/internal/call"
	"github.com/matheus3301/bossmsg/internal/conversation"
	"github.com/matheus3301/bossmsg/internal/story"
)

// toStatus maps domain errors onto gRPC codes.
func toStatus(op string, err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, conversation.ErrUnknownContact),
		errors.Is(err, conversation.ErrUnknownMessage),
		errors.Is(err, story.ErrUnknownStory):
		code = codes.NotFound
	case errors.Is(err, conversation.ErrNoActiveContact),
		errors.Is(err, conversation.ErrBlocked),
		errors.Is(err, call.ErrNoCall),
		errors.Is(err, call.ErrCallActive),
		errors.Is(err, story.ErrNotMine):
		code = codes.FailedPrecondition
	case errors.Is(err, conversation.ErrEmptyMessage),
		errors.Is(err, story.ErrEmptyReply),
		errors.Is(err, call.ErrUnsupportedKind):
		code = codes.InvalidArgument
	case errors.Is(err, call.ErrAlreadyInCall):
		code = codes.AlreadyExists
	case errors.Is(err, conversation.ErrClosed):
		code = codes.Unavailable
	}
	return grpcstatus.Errorf(code, "%s: %v", op, err)
}
