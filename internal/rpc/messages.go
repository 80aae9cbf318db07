package rpc

import (
	"encoding/json"

	"github.com/matheus3301/bossmsg/internal/types"
)

type Empty struct{}

// Session

type GetStatusRequest struct{}

type GetStatusResponse struct {
	Session      string           `json:"session"`
	PID          int              `json:"pid"`
	StartedAtMs  int64            `json:"startedAtMs"`
	UptimeMs     int64            `json:"uptimeMs"`
	Model        string           `json:"model"`
	AIConfigured bool             `json:"aiConfigured"`
	ContactCount int              `json:"contactCount"`
	MessageCount int              `json:"messageCount"`
	StoryCount   int              `json:"storyCount"`
	CallStatus   types.CallStatus `json:"callStatus"`
}

// Chat

type ListContactsRequest struct {
	Query string `json:"query,omitempty"`
}

type ListContactsResponse struct {
	Contacts []types.Contact `json:"contacts"`
	ActiveID string          `json:"activeId,omitempty"`
}

type AddContactRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type ContactResponse struct {
	Contact types.Contact `json:"contact"`
}

type ContactRequest struct {
	ContactID string `json:"contactId"`
}

type ListMessagesResponse struct {
	Contact  types.Contact   `json:"contact"`
	Messages []types.Message `json:"messages"`
	Typing   bool            `json:"typing"`
	Blocked  bool            `json:"blocked"`
}

type SendTextRequest struct {
	// ContactID addresses the message and makes it active when set;
	// otherwise the active contact receives it.
	ContactID string            `json:"contactId,omitempty"`
	Text      string            `json:"text"`
	File      *types.Attachment `json:"file,omitempty"`
}

type SendTextResponse struct {
	Message types.Message `json:"message"`
}

type TranslateRequest struct {
	ContactID string `json:"contactId"`
	MessageID string `json:"messageId"`
	Language  string `json:"language,omitempty"`
}

type TranslateResponse struct {
	Text string `json:"text"`
}

type ListBlockedResponse struct {
	Contacts []types.Contact `json:"contacts"`
}

type ProfileResponse struct {
	Profile types.Profile `json:"profile"`
}

type UpdateProfileRequest struct {
	Name   *string `json:"name,omitempty"`
	About  *string `json:"about,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

type WatchEventsRequest struct {
	// Namespaces filters events by kind prefix. Empty means all.
	Namespaces []string `json:"namespaces,omitempty"`
}

// Event is one bus event forwarded to a client.
type Event struct {
	ID           string          `json:"id"`
	Session      string          `json:"session"`
	Kind         string          `json:"kind"`
	OccurredAtMs int64           `json:"occurredAtMs"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// Story

type ListGroupsResponse struct {
	Groups []types.StoryGroup `json:"groups"`
}

type PostStoryRequest struct {
	MediaURL   string          `json:"mediaUrl"`
	Kind       types.MediaKind `json:"mediaType"`
	Caption    string          `json:"caption,omitempty"`
	DurationMs int64           `json:"durationMs,omitempty"`
}

type StoryResponse struct {
	Story types.Story `json:"story"`
}

type StoryRequest struct {
	StoryID string `json:"storyId"`
}

type ReplyStoryRequest struct {
	StoryID string `json:"storyId"`
	Text    string `json:"text"`
}

type ReplyStoryResponse struct {
	Reply types.StoryReply `json:"reply"`
}

type ViewStoryResponse struct {
	ViewCount int `json:"viewCount"`
}

// Call

type StartCallRequest struct {
	ContactID string         `json:"contactId"`
	Kind      types.CallKind `json:"kind"`
}

type CallResponse struct {
	Call types.CallState `json:"call"`
}

type SetMutedRequest struct {
	Muted bool `json:"muted"`
}

type SetVideoOffRequest struct {
	Off bool `json:"off"`
}
