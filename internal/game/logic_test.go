package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoplayer/internal/model"
)

// nearParis is within the 1km full-score radius of paris.
var nearParis = model.LatLng{Lat: paris.Lat + 0.008, Lng: paris.Lng}

// offParis is about 111km north of paris.
var offParis = model.LatLng{Lat: paris.Lat + 1, Lng: paris.Lng}

func submit(m *Manager, room *model.Room, playerID string, guess *model.LatLng) {
	m.SubmitGuess(playerID, model.SubmitGuessPayload{RoomID: room.ID, Guess: guess})
}

func TestStartGameHostOnly(t *testing.T) {
	m := NewManager(nil)
	room, _ := newTestRoom(t, m, model.Settings{}, 2)

	m.StartGame("p1", model.StartGamePayload{RoomID: room.ID, RoundLocations: []model.LatLng{paris}})
	assert.Equal(t, model.StateWaiting, room.State)

	m.StartGame("p0", model.StartGamePayload{RoomID: room.ID, RoundLocations: []model.LatLng{paris}})
	assert.Equal(t, model.StatePlaying, room.State)
	assert.Equal(t, 1, room.CurrentRound)
}

func TestStartGameResetsPlayersAndBroadcasts(t *testing.T) {
	m := NewManager(nil)
	room, conns := newTestRoom(t, m, model.Settings{RoundCount: 2}, 2)

	room.Players[0].Score = 999
	room.Players[1].IsEliminated = true
	startGame(t, m, room, paris)

	for _, p := range room.Players {
		assert.Zero(t, p.Score)
		assert.Nil(t, p.Guess)
		assert.False(t, p.HasGuessed)
		assert.False(t, p.IsEliminated)
	}
	for _, c := range conns {
		msg, ok := c.last("game_started")
		require.True(t, ok)
		start := msg.Payload.(model.GameStart)
		assert.Len(t, start.RoundLocations, 2)
		assert.Len(t, start.Players, 2)
	}
}

func TestSubmitGuessScoresServerSide(t *testing.T) {
	m := NewManager(nil)
	room, _ := newTestRoom(t, m, model.Settings{}, 2)
	startGame(t, m, room, paris)

	// client-supplied score and distance must be ignored
	m.SubmitGuess("p0", model.SubmitGuessPayload{
		RoomID: room.ID, Guess: &paris, Score: 123, Distance: 4567, TimeSpent: 12,
	})

	p := room.Player("p0")
	assert.Equal(t, 5000, p.LastScore)
	assert.Equal(t, 5000, p.Score)
	assert.Zero(t, p.LastDistance)
	assert.Equal(t, 12, p.LastTimeSpent)
	assert.True(t, p.HasGuessed)
}

func TestSubmitNilGuessCountsAsTimeout(t *testing.T) {
	m := NewManager(nil)
	room, _ := newTestRoom(t, m, model.Settings{}, 2)
	startGame(t, m, room, paris)

	submit(m, room, "p0", nil)

	p := room.Player("p0")
	assert.True(t, p.HasGuessed)
	assert.Zero(t, p.LastScore)
	assert.Equal(t, timedOutDistance, p.LastDistance)
	assert.Zero(t, p.Score)
}

func TestDoubleSubmitIgnored(t *testing.T) {
	m := NewManager(nil)
	room, _ := newTestRoom(t, m, model.Settings{}, 2)
	startGame(t, m, room, paris)

	submit(m, room, "p0", &paris)
	submit(m, room, "p0", &paris)

	assert.Equal(t, 5000, room.Player("p0").Score)
}

func TestPartialSubmissionNotifiesWithoutResults(t *testing.T) {
	m := NewManager(nil)
	room, conns := newTestRoom(t, m, model.Settings{}, 3)
	startGame(t, m, room, paris)

	submit(m, room, "p0", &paris)

	for _, c := range conns {
		msg, ok := c.last("player_guessed")
		require.True(t, ok)
		guessed := msg.Payload.(model.PlayerGuessed)
		assert.Equal(t, "p0", guessed.PlayerID)
		assert.False(t, guessed.AllGuessed)
		assert.Zero(t, c.count("round_results"))
	}
}

func TestRoundResolvesWhenAllSubmitted(t *testing.T) {
	m := NewManager(nil)
	room, conns := newTestRoom(t, m, model.Settings{}, 2)
	startGame(t, m, room, paris)

	submit(m, room, "p0", &paris)
	submit(m, room, "p1", nil)

	for _, c := range conns {
		assert.Equal(t, 1, c.count("round_results"))
	}
	assert.True(t, room.RoundResolved)
	assert.Equal(t, 5000, room.Player("p0").Score)
	assert.Zero(t, room.Player("p1").Score)
}

func TestClassicNeverEliminates(t *testing.T) {
	m := NewManager(nil)
	room, _ := newTestRoom(t, m, model.Settings{Mode: model.ModeClassic}, 3)
	startGame(t, m, room, paris)

	submit(m, room, "p0", &paris)
	submit(m, room, "p1", &tokyo)
	submit(m, room, "p2", nil)

	for _, p := range room.Players {
		assert.False(t, p.IsEliminated)
	}
}

func TestBattleRoyaleEliminatesWorstScore(t *testing.T) {
	m := NewManager(nil)
	room, _ := newTestRoom(t, m, model.Settings{Mode: model.ModeBattleRoyale}, 3)
	startGame(t, m, room, paris)

	submit(m, room, "p0", &paris)
	submit(m, room, "p1", &offParis)
	submit(m, room, "p2", &tokyo)

	assert.False(t, room.Player("p0").IsEliminated)
	assert.False(t, room.Player("p1").IsEliminated)
	assert.True(t, room.Player("p2").IsEliminated)
}

func TestBattleRoyaleTieBrokenByDistance(t *testing.T) {
	m := NewManager(nil)
	room, _ := newTestRoom(t, m, model.Settings{Mode: model.ModeBattleRoyale}, 2)
	startGame(t, m, room, paris)

	// both inside the full-score radius: equal scores, farther guess loses
	submit(m, room, "p0", &paris)
	submit(m, room, "p1", &nearParis)

	assert.Equal(t, room.Player("p0").LastScore, room.Player("p1").LastScore)
	assert.False(t, room.Player("p0").IsEliminated)
	assert.True(t, room.Player("p1").IsEliminated)
}

func TestBattleRoyaleExactlyOneEliminationPerRound(t *testing.T) {
	m := NewManager(nil)
	room, _ := newTestRoom(t, m, model.Settings{Mode: model.ModeBattleRoyale, RoundCount: 5}, 4)
	startGame(t, m, room, paris)

	submit(m, room, "p0", nil)
	submit(m, room, "p1", nil)
	submit(m, room, "p2", nil)
	submit(m, room, "p3", nil)

	eliminated := 0
	for _, p := range room.Players {
		if p.IsEliminated {
			eliminated++
		}
	}
	assert.Equal(t, 1, eliminated)
}

func TestTimesUpEliminatesNonSubmitterFirst(t *testing.T) {
	m := NewManager(nil)
	room, conns := newTestRoom(t, m, model.Settings{Mode: model.ModeBattleRoyale}, 3)
	startGame(t, m, room, paris)

	submit(m, room, "p0", &paris)
	submit(m, room, "p1", &tokyo) // worst submitted score
	// p2 never submits

	m.TimesUp("p0", model.RoomRefPayload{RoomID: room.ID})

	assert.False(t, room.Player("p1").IsEliminated)
	assert.True(t, room.Player("p2").IsEliminated)
	assert.Equal(t, 1, conns[0].count("round_results"))

	// a late submission must not re-resolve or change the round
	submit(m, room, "p2", &paris)
	assert.Equal(t, 1, conns[0].count("round_results"))
	assert.Zero(t, room.Player("p2").Score)
}

func TestTimesUpHostOnly(t *testing.T) {
	m := NewManager(nil)
	room, conns := newTestRoom(t, m, model.Settings{}, 2)
	startGame(t, m, room, paris)

	m.TimesUp("p1", model.RoomRefPayload{RoomID: room.ID})
	assert.False(t, room.RoundResolved)
	assert.Zero(t, conns[0].count("round_results"))
}

func TestNextRoundClearsSubmissions(t *testing.T) {
	m := NewManager(nil)
	room, conns := newTestRoom(t, m, model.Settings{RoundCount: 3}, 2)
	startGame(t, m, room, paris)

	submit(m, room, "p0", &paris)
	submit(m, room, "p1", &offParis)
	m.NextRound("p0", model.RoomRefPayload{RoomID: room.ID})

	assert.Equal(t, 2, room.CurrentRound)
	assert.False(t, room.RoundResolved)
	for _, p := range room.Players {
		assert.Nil(t, p.Guess)
		assert.False(t, p.HasGuessed)
	}
	msg, ok := conns[1].last("next_round_started")
	require.True(t, ok)
	assert.Equal(t, 2, msg.Payload.(model.NextRoundStarted).RoundNumber)
}

func TestNextRoundHostOnly(t *testing.T) {
	m := NewManager(nil)
	room, _ := newTestRoom(t, m, model.Settings{}, 2)
	startGame(t, m, room, paris)

	m.NextRound("p1", model.RoomRefPayload{RoomID: room.ID})
	assert.Equal(t, 1, room.CurrentRound)
}

func TestFullClassicGame(t *testing.T) {
	m := NewManager(nil)
	room, conns := newTestRoom(t, m, model.Settings{RoundCount: 3}, 2)
	startGame(t, m, room, paris)

	for round := 1; round <= 3; round++ {
		require.Equal(t, round, room.CurrentRound)
		submit(m, room, "p0", &paris)
		submit(m, room, "p1", nil)
		m.NextRound("p0", model.RoomRefPayload{RoomID: room.ID})
	}

	assert.Equal(t, model.StateFinished, room.State)
	assert.Equal(t, 4, room.CurrentRound)
	assert.Equal(t, 15000, room.Player("p0").Score)
	assert.Zero(t, room.Player("p1").Score)
	for _, c := range conns {
		assert.Equal(t, 3, c.count("round_results"))
		assert.Equal(t, 1, c.count("game_finished"))
		assert.Equal(t, 2, c.count("next_round_started"))
	}
}

func TestBattleRoyaleEndsWithLastSurvivor(t *testing.T) {
	m := NewManager(nil)
	room, conns := newTestRoom(t, m, model.Settings{Mode: model.ModeBattleRoyale, RoundCount: 10}, 3)
	startGame(t, m, room, paris)

	// round 1: p2 out
	submit(m, room, "p0", &paris)
	submit(m, room, "p1", &offParis)
	submit(m, room, "p2", &tokyo)
	m.NextRound("p0", model.RoomRefPayload{RoomID: room.ID})
	require.Equal(t, model.StatePlaying, room.State)

	// round 2: only the two survivors need to submit
	submit(m, room, "p0", &paris)
	submit(m, room, "p1", &offParis)
	assert.Equal(t, 2, conns[0].count("round_results"))
	assert.True(t, room.Player("p1").IsEliminated)

	m.NextRound("p0", model.RoomRefPayload{RoomID: room.ID})
	assert.Equal(t, model.StateFinished, room.State)
	assert.Equal(t, 1, conns[0].count("game_finished"))
}

type fakeRecorder struct {
	ch chan []model.Player
}

func (f *fakeRecorder) RecordGameResult(roomID string, settings model.Settings, players []model.Player) {
	f.ch <- players
}

func TestFinishedGameIsRecorded(t *testing.T) {
	rec := &fakeRecorder{ch: make(chan []model.Player, 1)}
	m := NewManager(rec)
	room, _ := newTestRoom(t, m, model.Settings{RoundCount: 1}, 2)
	startGame(t, m, room, paris)

	submit(m, room, "p0", &paris)
	submit(m, room, "p1", nil)
	m.NextRound("p0", model.RoomRefPayload{RoomID: room.ID})

	select {
	case players := <-rec.ch:
		require.Len(t, players, 2)
		assert.Equal(t, 5000, players[0].Score)
		assert.Zero(t, players[1].Score)
	case <-time.After(time.Second):
		t.Fatal("game result never recorded")
	}
}

func TestPlayAgainResetsToLobby(t *testing.T) {
	m := NewManager(nil)
	room, conns := newTestRoom(t, m, model.Settings{Mode: model.ModeBattleRoyale, RoundCount: 1}, 2)
	startGame(t, m, room, paris)

	submit(m, room, "p0", &paris)
	submit(m, room, "p1", &tokyo)
	m.NextRound("p0", model.RoomRefPayload{RoomID: room.ID})
	require.Equal(t, model.StateFinished, room.State)

	m.PlayAgain("p0", model.RoomRefPayload{RoomID: room.ID})

	assert.Equal(t, model.StateWaiting, room.State)
	assert.Equal(t, 0, room.CurrentRound)
	require.Len(t, room.Players, 2)
	for _, p := range room.Players {
		assert.Zero(t, p.Score)
		assert.Nil(t, p.Guess)
		assert.False(t, p.HasGuessed)
		assert.False(t, p.IsEliminated)
	}
	assert.Equal(t, 1, conns[1].count("back_to_lobby"))
}

func TestPlayAgainOnlyWhenFinished(t *testing.T) {
	m := NewManager(nil)
	room, _ := newTestRoom(t, m, model.Settings{}, 2)
	startGame(t, m, room, paris)

	m.PlayAgain("p0", model.RoomRefPayload{RoomID: room.ID})
	assert.Equal(t, model.StatePlaying, room.State)
}

func TestRoundTimerForcesResolution(t *testing.T) {
	m := NewManager(nil)
	room, conns := newTestRoom(t, m, model.Settings{TimerDuration: 60}, 2)
	startGame(t, m, room, paris)
	require.Equal(t, 1, room.TimerSeq)

	submit(m, room, "p0", &paris)
	m.roundTimerExpired(room, 1)

	assert.True(t, room.RoundResolved)
	assert.Equal(t, 1, conns[1].count("round_results"))
	assert.False(t, room.Player("p1").HasGuessed)
}

func TestArmedRoundTimerFires(t *testing.T) {
	oldGrace := timerGrace
	timerGrace = 0
	t.Cleanup(func() { timerGrace = oldGrace })

	m := NewManager(nil)
	room, conns := newTestRoom(t, m, model.Settings{TimerDuration: 1}, 2)
	startGame(t, m, room, paris)
	submit(m, room, "p0", &paris)

	require.Eventually(t, func() bool {
		room.Mutex.Lock()
		defer room.Mutex.Unlock()
		return room.RoundResolved
	}, 3*time.Second, 10*time.Millisecond, "deadline passed without the round resolving")

	assert.Equal(t, 1, conns[1].count("round_results"))
	assert.False(t, room.Player("p1").HasGuessed)
}

func TestStaleRoundTimerIsNoop(t *testing.T) {
	m := NewManager(nil)
	room, conns := newTestRoom(t, m, model.Settings{TimerDuration: 60, RoundCount: 3}, 2)
	startGame(t, m, room, paris)

	submit(m, room, "p0", &paris)
	submit(m, room, "p1", &paris)
	m.NextRound("p0", model.RoomRefPayload{RoomID: room.ID})
	require.Equal(t, 2, room.TimerSeq)

	// round 1's timer firing late must not touch round 2
	m.roundTimerExpired(room, 1)
	assert.False(t, room.RoundResolved)
	assert.Equal(t, 1, conns[0].count("round_results"))
}
