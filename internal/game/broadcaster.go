package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"geoplayer/internal/model"
)

// broadcast fans a message out to every member of a room. Caller holds the
// room lock; sends only enqueue, they never block on the network.
func broadcast(r *model.Room, msg model.Message) {
	for _, p := range r.Players {
		if p.Conn != nil {
			p.Conn.Send(msg)
		}
	}
}

func broadcastRoomUpdate(r *model.Room) {
	broadcast(r, model.Message{Type: "room_updated", Payload: model.RoomUpdate{
		Players:  r.Players,
		HostID:   r.HostID,
		Settings: r.Settings,
	}})
}

// SendChat relays a chat line to the whole room with a server-generated id and
// timestamp. Nothing is stored.
func (m *Manager) SendChat(playerID string, p model.ChatPayload) {
	room, ok := m.FindRoom(p.RoomID)
	if !ok {
		log.Debug().Str("room", p.RoomID).Msg("send_chat for unknown room")
		return
	}

	room.Mutex.Lock()
	broadcast(room, model.Message{Type: "new_chat", Payload: model.ChatMessage{
		ID:           uuid.NewString(),
		SenderID:     playerID,
		SenderName:   p.SenderName,
		SenderColor:  p.SenderColor,
		SenderAvatar: p.SenderAvatar,
		Message:      p.Message,
		Timestamp:    time.Now().UnixMilli(),
	}})
	room.Mutex.Unlock()
}

// SendReaction relays an emoji reaction to the whole room.
func (m *Manager) SendReaction(playerID string, p model.ReactionPayload) {
	room, ok := m.FindRoom(p.RoomID)
	if !ok {
		log.Debug().Str("room", p.RoomID).Msg("send_reaction for unknown room")
		return
	}

	room.Mutex.Lock()
	broadcast(room, model.Message{Type: "new_reaction", Payload: model.Reaction{
		ID:         uuid.NewString(),
		SenderID:   playerID,
		SenderName: p.Sender,
		Emoji:      p.Emoji,
	}})
	room.Mutex.Unlock()
}
