package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	SessionServiceName = "boss.v1.SessionService"
	ChatServiceName    = "boss.v1.ChatService"
	StoryServiceName   = "boss.v1.StoryService"
	CallServiceName    = "boss.v1.CallService"
)

// EventStream is the server side of ChatService.WatchEvents.
type EventStream = grpc.ServerStreamingServer[Event]

type SessionServer interface {
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
}

type ChatServer interface {
	ListContacts(context.Context, *ListContactsRequest) (*ListContactsResponse, error)
	AddContact(context.Context, *AddContactRequest) (*ContactResponse, error)
	SelectContact(context.Context, *ContactRequest) (*ContactResponse, error)
	ListMessages(context.Context, *ContactRequest) (*ListMessagesResponse, error)
	SendText(context.Context, *SendTextRequest) (*SendTextResponse, error)
	Translate(context.Context, *TranslateRequest) (*TranslateResponse, error)
	Block(context.Context, *ContactRequest) (*Empty, error)
	Unblock(context.Context, *ContactRequest) (*Empty, error)
	ListBlocked(context.Context, *Empty) (*ListBlockedResponse, error)
	GetProfile(context.Context, *Empty) (*ProfileResponse, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*ProfileResponse, error)
	WatchEvents(*WatchEventsRequest, EventStream) error
}

type StoryServer interface {
	ListGroups(context.Context, *Empty) (*ListGroupsResponse, error)
	PostStory(context.Context, *PostStoryRequest) (*StoryResponse, error)
	ReplyStory(context.Context, *ReplyStoryRequest) (*ReplyStoryResponse, error)
	ViewStory(context.Context, *StoryRequest) (*ViewStoryResponse, error)
	DeleteStory(context.Context, *StoryRequest) (*Empty, error)
}

type CallServer interface {
	StartCall(context.Context, *StartCallRequest) (*CallResponse, error)
	EndCall(context.Context, *Empty) (*CallResponse, error)
	GetCall(context.Context, *Empty) (*CallResponse, error)
	SetMuted(context.Context, *SetMutedRequest) (*CallResponse, error)
	SetVideoOff(context.Context, *SetVideoOffRequest) (*CallResponse, error)
	Invite(context.Context, *ContactRequest) (*CallResponse, error)
}

// unary builds a method descriptor around a typed handler.
func unary[S, Req, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + service + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			})
		},
	}
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(SessionServiceName, "GetStatus", SessionServer.GetStatus),
	},
}

var chatServiceDesc = grpc.ServiceDesc{
	ServiceName: ChatServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ChatServiceName, "ListContacts", ChatServer.ListContacts),
		unary(ChatServiceName, "AddContact", ChatServer.AddContact),
		unary(ChatServiceName, "SelectContact", ChatServer.SelectContact),
		unary(ChatServiceName, "ListMessages", ChatServer.ListMessages),
		unary(ChatServiceName, "SendText", ChatServer.SendText),
		unary(ChatServiceName, "Translate", ChatServer.Translate),
		unary(ChatServiceName, "Block", ChatServer.Block),
		unary(ChatServiceName, "Unblock", ChatServer.Unblock),
		unary(ChatServiceName, "ListBlocked", ChatServer.ListBlocked),
		unary(ChatServiceName, "GetProfile", ChatServer.GetProfile),
		unary(ChatServiceName, "UpdateProfile", ChatServer.UpdateProfile),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(WatchEventsRequest)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(ChatServer).WatchEvents(in, &grpc.GenericServerStream[WatchEventsRequest, Event]{ServerStream: stream})
			},
		},
	},
}

var storyServiceDesc = grpc.ServiceDesc{
	ServiceName: StoryServiceName,
	HandlerType: (*StoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(StoryServiceName, "ListGroups", StoryServer.ListGroups),
		unary(StoryServiceName, "PostStory", StoryServer.PostStory),
		unary(StoryServiceName, "ReplyStory", StoryServer.ReplyStory),
		unary(StoryServiceName, "ViewStory", StoryServer.ViewStory),
		unary(StoryServiceName, "DeleteStory", StoryServer.DeleteStory),
	},
}

var callServiceDesc = grpc.ServiceDesc{
	ServiceName: CallServiceName,
	HandlerType: (*CallServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(CallServiceName, "StartCall", CallServer.StartCall),
		unary(CallServiceName, "EndCall", CallServer.EndCall),
		unary(CallServiceName, "GetCall", CallServer.GetCall),
		unary(CallServiceName, "SetMuted", CallServer.SetMuted),
		unary(CallServiceName, "SetVideoOff", CallServer.SetVideoOff),
		unary(CallServiceName, "Invite", CallServer.Invite),
	},
}

func RegisterSessionServer(s grpc.ServiceRegistrar, srv SessionServer) {
	s.RegisterService(&sessionServiceDesc, srv)
}

func RegisterChatServer(s grpc.ServiceRegistrar, srv ChatServer) {
	s.RegisterService(&chatServiceDesc, srv)
}

func RegisterStoryServer(s grpc.ServiceRegistrar, srv StoryServer) {
	s.RegisterService(&storyServiceDesc, srv)
}

func RegisterCallServer(s grpc.ServiceRegistrar, srv CallServer) {
	s.RegisterService(&callServiceDesc, srv)
}
