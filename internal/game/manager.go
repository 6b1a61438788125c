package game

import (
	"errors"
	"math/rand"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"geoplayer/internal/model"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrRoomFull           = errors.New("room full")
)

const (
	MaxPlayers     = 8
	roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomIDLength   = 4
)

// GameRecorder receives the final roster of a finished game. Calls happen off
// the room lock on a snapshot copy, so implementations may hit disk.
type GameRecorder interface {
	RecordGameResult(roomID string, settings model.Settings, players []model.Player)
}

// Manager owns every live room and the connection-to-room membership map. It
// is the single shared structure; individual rooms carry their own lock so
// unrelated games never serialize on each other.
type Manager struct {
	Rooms     map[string]*model.Room
	RoomsLock sync.Mutex

	// membership maps a connection's player id to its room. A player belongs
	// to at most one room at a time.
	membership     map[string]*model.Room
	membershipLock sync.Mutex

	Store GameRecorder
}

func NewManager(store GameRecorder) *Manager {
	return &Manager{
		Rooms:      make(map[string]*model.Room),
		membership: make(map[string]*model.Room),
		Store:      store,
	}
}

func generateRoomID() string {
	b := make([]byte, roomIDLength)
	for i := range b {
		b[i] = roomIDAlphabet[rand.Intn(len(roomIDAlphabet))]
	}
	return string(b)
}

// CreateRoom allocates a fresh room with the creator as sole player and host.
// A creator still in another room leaves it first; membership is exclusive.
func (m *Manager) CreateRoom(playerID string, conn model.Sender, p model.CreateRoomPayload) *model.Room {
	m.Leave(playerID)

	host := newPlayer(playerID, conn, p.PlayerName, "Host", p.PlayerColor, playerColors[0], p.PlayerAvatar)

	room := &model.Room{
		HostID:         playerID,
		Players:        []*model.Player{host},
		Settings:       normalizeSettings(p.Settings),
		State:          model.StateWaiting,
		RoundLocations: []model.LatLng{},
	}

	m.RoomsLock.Lock()
	id := generateRoomID()
	for {
		if _, taken := m.Rooms[id]; !taken {
			break
		}
		id = generateRoomID()
	}
	room.ID = id
	m.Rooms[id] = room
	m.RoomsLock.Unlock()

	m.bind(playerID, room)

	log.Info().Str("room", id).Str("host", playerID).Msg("room created")
	return room
}

// FindRoom looks a room up by id. Identifiers are normalized to uppercase so
// lookups are effectively case-insensitive.
func (m *Manager) FindRoom(id string) (*model.Room, bool) {
	m.RoomsLock.Lock()
	room, ok := m.Rooms[strings.ToUpper(id)]
	m.RoomsLock.Unlock()
	return room, ok
}

// DeleteRoom removes a room from the registry. Idempotent.
func (m *Manager) DeleteRoom(id string) {
	m.RoomsLock.Lock()
	delete(m.Rooms, strings.ToUpper(id))
	m.RoomsLock.Unlock()
}

// RoomOf resolves the room a connection is currently joined to.
func (m *Manager) RoomOf(playerID string) (*model.Room, bool) {
	m.membershipLock.Lock()
	room, ok := m.membership[playerID]
	m.membershipLock.Unlock()
	return room, ok
}

func (m *Manager) bind(playerID string, room *model.Room) {
	m.membershipLock.Lock()
	m.membership[playerID] = room
	m.membershipLock.Unlock()
}

func (m *Manager) unbind(playerID string) {
	m.membershipLock.Lock()
	delete(m.membership, playerID)
	m.membershipLock.Unlock()
}

func normalizeSettings(s model.Settings) model.Settings {
	switch s.Mode {
	case model.ModeClassic, model.ModeHardcore, model.ModeBattleRoyale:
	default:
		s.Mode = model.ModeClassic
	}
	if s.RoundCount <= 0 {
		s.RoundCount = 5
	}
	if s.TimerDuration < 0 {
		s.TimerDuration = 0
	}
	if s.Country == "" {
		s.Country = "worldwide"
	}
	return s
}
