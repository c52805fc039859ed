package http

import (
	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
	"github.com/vovakirdan/pairchat-server/internal/store"
)

func outboundFromEvent(ev *core.Event) proto.Outbound {
	switch ev.Kind {
	case core.EventOnlineUsers:
		users := ev.OnlineUsers
		if users == nil {
			users = []string{}
		}
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventOnlineUsers, Data: users}
	case core.EventNewMessage:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventNewMessage, Data: toProtoMessage(ev.Message)}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: ev.Kind.String()}
	}
}

func toProtoMessage(m core.Message) proto.Message {
	return proto.Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Image:      m.Image,
		Seen:       m.Seen,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func toProtoMessages(msgs []core.Message) []proto.Message {
	out := make([]proto.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toProtoMessage(m))
	}
	return out
}

func toProtoUser(u *store.User) proto.User {
	return proto.User{
		ID:         u.ID,
		Username:   u.Username,
		FullName:   u.FullName,
		ProfilePic: u.ProfilePic,
		Bio:        u.Bio,
	}
}

func toProtoUsers(users []*store.User) []proto.User {
	out := make([]proto.User, 0, len(users))
	for _, u := range users {
		out = append(out, toProtoUser(u))
	}
	return out
}
