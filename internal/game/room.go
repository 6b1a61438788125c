package game

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"geoplayer/internal/model"
)

// playerColors is the fixed palette. Join order indexes into it for defaults,
// which keeps color assignment deterministic for a given join sequence.
var playerColors = []string{
	"#ef4444", // red
	"#3b82f6", // blue
	"#22c55e", // green
	"#eab308", // yellow
	"#a855f7", // purple
	"#f97316", // orange
	"#ec4899", // pink
	"#14b8a6", // teal
}

const defaultAvatar = "👽"

func newPlayer(id string, conn model.Sender, name, fallbackName, color, fallbackColor, avatar string) *model.Player {
	if name == "" {
		name = fallbackName
	}
	if color == "" {
		color = fallbackColor
	}
	if avatar == "" {
		avatar = defaultAvatar
	}
	return &model.Player{
		ID:     id,
		Name:   name,
		Color:  color,
		Avatar: avatar,
		Conn:   conn,
	}
}

// Join adds a connection to a room and broadcasts the new roster. The returned
// error is one of ErrRoomNotFound, ErrGameAlreadyStarted, ErrRoomFull.
func (m *Manager) Join(roomID, playerID string, conn model.Sender, p model.JoinRoomPayload) (*model.Room, error) {
	room, ok := m.FindRoom(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, m.joinRoom(room, playerID, conn, p)
}

func (m *Manager) joinRoom(room *model.Room, playerID string, conn model.Sender, p model.JoinRoomPayload) error {
	// membership is exclusive; joining implies leaving any previous room
	m.Leave(playerID)

	room.Mutex.Lock()
	// the last member may have left between lookup and lock; a closed room
	// must not be resurrected with a ghost roster
	if room.Closed {
		room.Mutex.Unlock()
		return ErrRoomNotFound
	}
	if room.State != model.StateWaiting {
		room.Mutex.Unlock()
		return ErrGameAlreadyStarted
	}
	if len(room.Players) >= MaxPlayers {
		room.Mutex.Unlock()
		return ErrRoomFull
	}

	n := len(room.Players)
	player := newPlayer(playerID, conn,
		p.PlayerName, fmt.Sprintf("Player %d", n+1),
		p.PlayerColor, playerColors[n%len(playerColors)],
		p.PlayerAvatar)
	room.Players = append(room.Players, player)
	m.bind(playerID, room)

	broadcastRoomUpdate(room)
	room.Mutex.Unlock()

	log.Info().Str("room", room.ID).Str("player", playerID).Msg("player joined")
	return nil
}

// Leave removes a connection from whatever room it is in. The last player out
// deletes the room; a departing host hands authority to the player now first
// in the roster. Also the disconnect path.
func (m *Manager) Leave(playerID string) {
	room, ok := m.RoomOf(playerID)
	if !ok {
		return
	}
	m.unbind(playerID)

	room.Mutex.Lock()
	idx := -1
	for i, p := range room.Players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		room.Mutex.Unlock()
		return
	}
	room.Players = append(room.Players[:idx], room.Players[idx+1:]...)

	if len(room.Players) == 0 {
		room.Closed = true
		room.Mutex.Unlock()
		m.DeleteRoom(room.ID)
		log.Info().Str("room", room.ID).Msg("room deleted, last player left")
		return
	}

	if room.HostID == playerID {
		room.HostID = room.Players[0].ID
		log.Info().Str("room", room.ID).Str("host", room.HostID).Msg("host reassigned")
	}
	broadcastRoomUpdate(room)
	room.Mutex.Unlock()
}

// UpdateSettings lets the host replace the room settings in the lobby.
func (m *Manager) UpdateSettings(playerID string, p model.UpdateSettingsPayload) {
	room, ok := m.FindRoom(p.RoomID)
	if !ok {
		log.Debug().Str("room", p.RoomID).Msg("update_settings for unknown room")
		return
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	if room.HostID != playerID || room.State != model.StateWaiting {
		log.Debug().Str("room", room.ID).Str("player", playerID).Msg("update_settings ignored")
		return
	}
	room.Settings = normalizeSettings(p.Settings)
	if p.RoundLocations != nil {
		room.RoundLocations = p.RoundLocations
	}
	broadcastRoomUpdate(room)
}

// ChangeColor adopts the requested palette color, or cycles to the next
// palette entry when the request is absent or not a palette color. Lobby only.
func (m *Manager) ChangeColor(playerID string, p model.ChangeColorPayload) {
	room, ok := m.FindRoom(p.RoomID)
	if !ok {
		return
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	if room.State != model.StateWaiting {
		return
	}
	player := room.Player(playerID)
	if player == nil {
		return
	}

	if idx := paletteIndex(p.Color); p.Color != "" && idx != -1 {
		player.Color = p.Color
	} else {
		cur := paletteIndex(player.Color)
		player.Color = playerColors[(cur+1+len(playerColors))%len(playerColors)]
	}
	broadcastRoomUpdate(room)
}

// ChangeAvatar sets the player's avatar. Lobby only, empty avatars ignored.
func (m *Manager) ChangeAvatar(playerID string, p model.ChangeAvatarPayload) {
	room, ok := m.FindRoom(p.RoomID)
	if !ok {
		return
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	if room.State != model.StateWaiting || p.Avatar == "" {
		return
	}
	player := room.Player(playerID)
	if player == nil {
		return
	}
	player.Avatar = p.Avatar
	broadcastRoomUpdate(room)
}

func paletteIndex(color string) int {
	for i, c := range playerColors {
		if c == color {
			return i
		}
	}
	return -1
}
