package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/matheus3301/bossmsg/internal/types"
)

// Dial connects to a daemon socket with the JSON codec selected on every
// call.
func Dial(socketPath string) (*grpc.ClientConn, error) {
	return grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(ContentSubtype)),
	)
}

// Client bundles the daemon services over one connection.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func invoke[Resp any](ctx context.Context, c *Client, service, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, "/"+service+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Health reports the daemon's serving status.
func (c *Client) Health(ctx context.Context) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	resp, err := grpc_health_v1.NewHealthClient(c.conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

func (c *Client) GetStatus(ctx context.Context) (*GetStatusResponse, error) {
	return invoke[GetStatusResponse](ctx, c, SessionServiceName, "GetStatus", &GetStatusRequest{})
}

func (c *Client) ListContacts(ctx context.Context, query string) (*ListContactsResponse, error) {
	return invoke[ListContactsResponse](ctx, c, ChatServiceName, "ListContacts", &ListContactsRequest{Query: query})
}

func (c *Client) AddContact(ctx context.Context, name, avatar string) (*ContactResponse, error) {
	return invoke[ContactResponse](ctx, c, ChatServiceName, "AddContact", &AddContactRequest{Name: name, Avatar: avatar})
}

func (c *Client) SelectContact(ctx context.Context, id string) (*ContactResponse, error) {
	return invoke[ContactResponse](ctx, c, ChatServiceName, "SelectContact", &ContactRequest{ContactID: id})
}

func (c *Client) ListMessages(ctx context.Context, id string) (*ListMessagesResponse, error) {
	return invoke[ListMessagesResponse](ctx, c, ChatServiceName, "ListMessages", &ContactRequest{ContactID: id})
}

func (c *Client) SendText(ctx context.Context, req *SendTextRequest) (*SendTextResponse, error) {
	return invoke[SendTextResponse](ctx, c, ChatServiceName, "SendText", req)
}

func (c *Client) Translate(ctx context.Context, req *TranslateRequest) (*TranslateResponse, error) {
	return invoke[TranslateResponse](ctx, c, ChatServiceName, "Translate", req)
}

func (c *Client) Block(ctx context.Context, id string) error {
	_, err := invoke[Empty](ctx, c, ChatServiceName, "Block", &ContactRequest{ContactID: id})
	return err
}

func (c *Client) Unblock(ctx context.Context, id string) error {
	_, err := invoke[Empty](ctx, c, ChatServiceName, "Unblock", &ContactRequest{ContactID: id})
	return err
}

func (c *Client) ListBlocked(ctx context.Context) (*ListBlockedResponse, error) {
	return invoke[ListBlockedResponse](ctx, c, ChatServiceName, "ListBlocked", &Empty{})
}

func (c *Client) GetProfile(ctx context.Context) (*ProfileResponse, error) {
	return invoke[ProfileResponse](ctx, c, ChatServiceName, "GetProfile", &Empty{})
}

func (c *Client) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*ProfileResponse, error) {
	return invoke[ProfileResponse](ctx, c, ChatServiceName, "UpdateProfile", req)
}

// WatchEvents streams bus events until ctx is cancelled.
func (c *Client) WatchEvents(ctx context.Context, namespaces ...string) (grpc.ServerStreamingClient[Event], error) {
	desc := &chatServiceDesc.Streams[0]
	stream, err := c.conn.NewStream(ctx, desc, "/"+ChatServiceName+"/WatchEvents")
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchEventsRequest, Event]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(&WatchEventsRequest{Namespaces: namespaces}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *Client) ListGroups(ctx context.Context) (*ListGroupsResponse, error) {
	return invoke[ListGroupsResponse](ctx, c, StoryServiceName, "ListGroups", &Empty{})
}

func (c *Client) PostStory(ctx context.Context, req *PostStoryRequest) (*StoryResponse, error) {
	return invoke[StoryResponse](ctx, c, StoryServiceName, "PostStory", req)
}

func (c *Client) ReplyStory(ctx context.Context, storyID, text string) (*ReplyStoryResponse, error) {
	return invoke[ReplyStoryResponse](ctx, c, StoryServiceName, "ReplyStory", &ReplyStoryRequest{StoryID: storyID, Text: text})
}

func (c *Client) ViewStory(ctx context.Context, storyID string) (*ViewStoryResponse, error) {
	return invoke[ViewStoryResponse](ctx, c, StoryServiceName, "ViewStory", &StoryRequest{StoryID: storyID})
}

func (c *Client) DeleteStory(ctx context.Context, storyID string) error {
	_, err := invoke[Empty](ctx, c, StoryServiceName, "DeleteStory", &StoryRequest{StoryID: storyID})
	return err
}

func (c *Client) StartCall(ctx context.Context, contactID string, kind types.CallKind) (*CallResponse, error) {
	return invoke[CallResponse](ctx, c, CallServiceName, "StartCall", &StartCallRequest{ContactID: contactID, Kind: kind})
}

func (c *Client) EndCall(ctx context.Context) (*CallResponse, error) {
	return invoke[CallResponse](ctx, c, CallServiceName, "EndCall", &Empty{})
}

func (c *Client) GetCall(ctx context.Context) (*CallResponse, error) {
	return invoke[CallResponse](ctx, c, CallServiceName, "GetCall", &Empty{})
}

func (c *Client) SetMuted(ctx context.Context, muted bool) (*CallResponse, error) {
	return invoke[CallResponse](ctx, c, CallServiceName, "SetMuted", &SetMutedRequest{Muted: muted})
}

func (c *Client) SetVideoOff(ctx context.Context, off bool) (*CallResponse, error) {
	return invoke[CallResponse](ctx, c, CallServiceName, "SetVideoOff", &SetVideoOffRequest{Off: off})
}

func (c *Client) Invite(ctx context.Context, contactID string) (*CallResponse, error) {
	return invoke[CallResponse](ctx, c, CallServiceName, "Invite", &ContactRequest{ContactID: contactID})
}
