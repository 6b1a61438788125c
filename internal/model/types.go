package model

import (
	"encoding/json"
	"sync"
)

type GameMode string

const (
	ModeClassic      GameMode = "classic"
	ModeHardcore     GameMode = "hardcore"
	ModeBattleRoyale GameMode = "battleroyale"
)

type RoomState string

const (
	StateWaiting  RoomState = "waiting"
	StatePlaying  RoomState = "playing"
	StateFinished RoomState = "finished"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Settings struct {
	Mode          GameMode `json:"mode"`
	RoundCount    int      `json:"roundCount"`
	TimerDuration int      `json:"timerDuration"`
	Country       string   `json:"country"`
}

// Sender delivers an outbound message to one connection. Implementations must
// not block; a slow consumer is the transport layer's problem, never a room's.
type Sender interface {
	Send(msg Message)
}

type Player struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Color         string  `json:"color"`
	Avatar        string  `json:"avatar"`
	Score         int     `json:"score"`
	Guess         *LatLng `json:"guess"`
	HasGuessed    bool    `json:"hasGuessed"`
	LastScore     int     `json:"lastScore"`
	LastDistance  float64 `json:"lastDistance"`
	LastTimeSpent int     `json:"lastTimeSpent"`
	IsEliminated  bool    `json:"isEliminated"`
	Conn          Sender  `json:"-"`
}

type Room struct {
	ID             string
	HostID         string
	Players        []*Player // join order
	Settings       Settings
	State          RoomState
	CurrentRound   int
	RoundLocations []LatLng
	// RoundResolved blocks a second resolution of the same round: once the
	// results broadcast fired (all-guessed or forced), late submissions and a
	// stale timer must not re-trigger it.
	RoundResolved bool
	// Closed is set under the room lock when the last member leaves, just
	// before the room is dropped from the registry. An operation that resolved
	// the room earlier and only then won the lock must treat a closed room as
	// not found instead of resurrecting it.
	Closed bool
	// TimerSeq identifies the current round's server timer. Bumped whenever a
	// new round starts so an expired timer from a previous round is a no-op.
	TimerSeq int
	Mutex    sync.Mutex `json:"-"`
}

// Player returns the roster entry with the given id, or nil.
func (r *Room) Player(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// ActivePlayers returns the non-eliminated players in join order.
func (r *Room) ActivePlayers() []*Player {
	active := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if !p.IsEliminated {
			active = append(active, p)
		}
	}
	return active
}

// Message is the outbound envelope.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Action is the inbound envelope. The payload stays raw until the dispatcher
// knows which typed struct the event name calls for.
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound payloads.

type CreateRoomPayload struct {
	Settings     Settings `json:"settings"`
	PlayerName   string   `json:"playerName"`
	PlayerColor  string   `json:"playerColor"`
	PlayerAvatar string   `json:"playerAvatar"`
}

type JoinRoomPayload struct {
	RoomID       string `json:"roomId"`
	PlayerName   string `json:"playerName"`
	PlayerColor  string `json:"playerColor"`
	PlayerAvatar string `json:"playerAvatar"`
}

type StartGamePayload struct {
	RoomID         string   `json:"roomId"`
	RoundLocations []LatLng `json:"roundLocations"`
}

type UpdateSettingsPayload struct {
	RoomID         string   `json:"roomId"`
	Settings       Settings `json:"settings"`
	RoundLocations []LatLng `json:"roundLocations"`
}

type SubmitGuessPayload struct {
	RoomID    string  `json:"roomId"`
	Guess     *LatLng `json:"guess"`
	Score     int     `json:"score"`
	Distance  float64 `json:"distance"`
	TimeSpent int     `json:"timeSpent"`
}

// RoomRefPayload covers the actions that carry nothing but the room id
// (times_up, next_round, play_again).
type RoomRefPayload struct {
	RoomID string `json:"roomId"`
}

type ChatPayload struct {
	RoomID       string `json:"roomId"`
	Message      string `json:"message"`
	SenderName   string `json:"senderName"`
	SenderColor  string `json:"senderColor"`
	SenderAvatar string `json:"senderAvatar"`
}

type ReactionPayload struct {
	RoomID string `json:"roomId"`
	Emoji  string `json:"emoji"`
	Sender string `json:"senderName"`
}

type ChangeColorPayload struct {
	RoomID string `json:"roomId"`
	Color  string `json:"color"`
}

type ChangeAvatarPayload struct {
	RoomID string `json:"roomId"`
	Avatar string `json:"avatar"`
}

// Outbound payloads.

type CreateRoomAck struct {
	Success bool      `json:"success"`
	RoomID  string    `json:"roomId"`
	HostID  string    `json:"hostId"`
	Players []*Player `json:"players"`
}

type JoinRoomAck struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message,omitempty"`
	RoomID   string    `json:"roomId,omitempty"`
	HostID   string    `json:"hostId,omitempty"`
	Players  []*Player `json:"players,omitempty"`
	Settings *Settings `json:"settings,omitempty"`
}

type RoomUpdate struct {
	Players  []*Player `json:"players"`
	HostID   string    `json:"hostId"`
	Settings Settings  `json:"settings"`
}

type GameStart struct {
	Settings       Settings  `json:"settings"`
	RoundLocations []LatLng  `json:"roundLocations"`
	Players        []*Player `json:"players"`
}

type PlayerGuessed struct {
	PlayerID   string `json:"playerId"`
	AllGuessed bool   `json:"allGuessed"`
}

type RoundResults struct {
	Players []*Player `json:"players"`
}

type NextRoundStarted struct {
	RoundNumber int `json:"roundNumber"`
}

type Roster struct {
	Players []*Player `json:"players"`
}

type ChatMessage struct {
	ID           string `json:"id"`
	SenderID     string `json:"senderId"`
	SenderName   string `json:"senderName"`
	SenderColor  string `json:"senderColor"`
	SenderAvatar string `json:"senderAvatar"`
	Message      string `json:"message"`
	Timestamp    int64  `json:"timestamp"`
}

type Reaction struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Emoji      string `json:"emoji"`
}
