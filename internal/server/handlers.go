package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"geoplayer/internal/database"
	"geoplayer/internal/game"
	"geoplayer/internal/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type Handler struct {
	Manager *game.Manager
	Store   *database.Store
}

func NewHandler(m *game.Manager, s *database.Store) *Handler {
	return &Handler{Manager: m, Store: s}
}

// HealthHandler answers the hosting platform's probe.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("GeoPlayer server is running"))
}

// CheckRoomHandler reports whether a room id currently exists, for pre-join
// validation in the client.
func (h *Handler) CheckRoomHandler(w http.ResponseWriter, r *http.Request) {
	_, exists := h.Manager.FindRoom(r.URL.Query().Get("id"))
	json.NewEncoder(w).Encode(map[string]bool{"exists": exists})
}

// StatsHandler returns aggregated per-player totals for a room's finished
// games.
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	roomID := strings.ToUpper(r.URL.Query().Get("room"))
	json.NewEncoder(w).Encode(h.Store.GetRoomStats(roomID))
}

// HandleGameWS upgrades the connection and runs its read loop. Each connection
// gets a fresh opaque id for the lifetime of the socket; a drop implies
// leave_room.
func (h *Handler) HandleGameWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(uuid.NewString(), ws)
	log.Info().Str("player", client.id).Msg("client connected")

	go client.writePump()

	defer func() {
		h.Manager.Leave(client.id)
		close(client.send)
		log.Info().Str("player", client.id).Msg("client disconnected")
	}()

	client.readPump(h)
}

// dispatch routes one inbound action. Payloads that fail to decode are logged
// and dropped; precondition failures inside the game package are silent on the
// wire by design.
func (h *Handler) dispatch(c *Client, action model.Action) {
	switch action.Type {
	case "create_room":
		var p model.CreateRoomPayload
		if !decode(c, action, &p) {
			return
		}
		room := h.Manager.CreateRoom(c.id, c, p)
		room.Mutex.Lock()
		c.Send(model.Message{Type: "room_created", Payload: model.CreateRoomAck{
			Success: true,
			RoomID:  room.ID,
			HostID:  room.HostID,
			Players: room.Players,
		}})
		room.Mutex.Unlock()

	case "join_room":
		var p model.JoinRoomPayload
		if !decode(c, action, &p) {
			return
		}
		room, err := h.Manager.Join(p.RoomID, c.id, c, p)
		if err != nil {
			c.Send(model.Message{Type: "join_result", Payload: model.JoinRoomAck{
				Success: false,
				Message: joinFailureMessage(err),
			}})
			return
		}
		room.Mutex.Lock()
		settings := room.Settings
		c.Send(model.Message{Type: "join_result", Payload: model.JoinRoomAck{
			Success:  true,
			RoomID:   room.ID,
			HostID:   room.HostID,
			Players:  room.Players,
			Settings: &settings,
		}})
		room.Mutex.Unlock()

	case "start_game":
		var p model.StartGamePayload
		if decode(c, action, &p) {
			h.Manager.StartGame(c.id, p)
		}

	case "update_settings":
		var p model.UpdateSettingsPayload
		if decode(c, action, &p) {
			h.Manager.UpdateSettings(c.id, p)
		}

	case "submit_guess":
		var p model.SubmitGuessPayload
		if decode(c, action, &p) {
			h.Manager.SubmitGuess(c.id, p)
		}

	case "times_up":
		var p model.RoomRefPayload
		if decode(c, action, &p) {
			h.Manager.TimesUp(c.id, p)
		}

	case "next_round":
		var p model.RoomRefPayload
		if decode(c, action, &p) {
			h.Manager.NextRound(c.id, p)
		}

	case "play_again":
		var p model.RoomRefPayload
		if decode(c, action, &p) {
			h.Manager.PlayAgain(c.id, p)
		}

	case "leave_room":
		h.Manager.Leave(c.id)

	case "send_chat":
		var p model.ChatPayload
		if decode(c, action, &p) {
			h.Manager.SendChat(c.id, p)
		}

	case "send_reaction":
		var p model.ReactionPayload
		if decode(c, action, &p) {
			h.Manager.SendReaction(c.id, p)
		}

	case "change_color":
		var p model.ChangeColorPayload
		if decode(c, action, &p) {
			h.Manager.ChangeColor(c.id, p)
		}

	case "change_avatar":
		var p model.ChangeAvatarPayload
		if decode(c, action, &p) {
			h.Manager.ChangeAvatar(c.id, p)
		}

	default:
		log.Debug().Str("player", c.id).Str("event", action.Type).Msg("unknown action")
	}
}

func decode(c *Client, action model.Action, v interface{}) bool {
	if err := json.Unmarshal(action.Payload, v); err != nil {
		log.Warn().Str("player", c.id).Str("event", action.Type).Err(err).Msg("malformed payload")
		return false
	}
	return true
}

func joinFailureMessage(err error) string {
	switch err {
	case game.ErrGameAlreadyStarted:
		return "Game already started"
	case game.ErrRoomFull:
		return "Room is full (max 8 players)"
	default:
		return "Room not found"
	}
}
