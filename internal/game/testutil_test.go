package game

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"geoplayer/internal/model"
)

// fakeConn records everything sent to it.
type fakeConn struct {
	mu   sync.Mutex
	msgs []model.Message
}

func (f *fakeConn) Send(msg model.Message) {
	f.mu.Lock()
	f.msgs = append(f.msgs, msg)
	f.mu.Unlock()
}

func (f *fakeConn) count(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.msgs {
		if m.Type == eventType {
			n++
		}
	}
	return n
}

func (f *fakeConn) last(eventType string) (model.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.msgs) - 1; i >= 0; i-- {
		if f.msgs[i].Type == eventType {
			return f.msgs[i], true
		}
	}
	return model.Message{}, false
}

// newTestRoom creates a room with n players ("p0" is host) and returns the
// room plus each player's recording connection.
func newTestRoom(t *testing.T, m *Manager, settings model.Settings, n int) (*model.Room, []*fakeConn) {
	t.Helper()
	require.GreaterOrEqual(t, n, 1)

	conns := make([]*fakeConn, n)
	conns[0] = &fakeConn{}
	room := m.CreateRoom("p0", conns[0], model.CreateRoomPayload{
		Settings:   settings,
		PlayerName: "Alice",
	})
	for i := 1; i < n; i++ {
		conns[i] = &fakeConn{}
		_, err := m.Join(room.ID, fmt.Sprintf("p%d", i), conns[i], model.JoinRoomPayload{
			PlayerName: fmt.Sprintf("Player %d", i+1),
		})
		require.NoError(t, err)
	}
	return room, conns
}

// startGame runs start_game as the host with one target per round, all at the
// same coordinate.
func startGame(t *testing.T, m *Manager, room *model.Room, target model.LatLng) {
	t.Helper()
	locations := make([]model.LatLng, room.Settings.RoundCount)
	for i := range locations {
		locations[i] = target
	}
	m.StartGame("p0", model.StartGamePayload{RoomID: room.ID, RoundLocations: locations})
	require.Equal(t, model.StatePlaying, room.State)
}
