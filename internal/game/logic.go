package game

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"geoplayer/internal/model"
)

// timerGrace pads the server-side round deadline so a host's own times_up
// signal, sent at the exact deadline, normally wins the race. Variable so
// tests can run a round against a real timer without the padding.
var timerGrace = 2 * time.Second

// timedOutDistance is the distance recorded for a guess that never happened,
// mirroring what clients report on timeout.
const timedOutDistance = 20000.0

// StartGame moves a waiting room into round 1. Host only; the host's client
// supplies the target location for every round up front.
func (m *Manager) StartGame(playerID string, p model.StartGamePayload) {
	room, ok := m.FindRoom(p.RoomID)
	if !ok {
		log.Debug().Str("room", p.RoomID).Msg("start_game for unknown room")
		return
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	if room.HostID != playerID || room.State != model.StateWaiting {
		log.Debug().Str("room", room.ID).Str("player", playerID).Msg("start_game ignored")
		return
	}

	room.State = model.StatePlaying
	room.CurrentRound = 1
	room.RoundLocations = p.RoundLocations
	room.RoundResolved = false
	for _, pl := range room.Players {
		pl.Score = 0
		pl.Guess = nil
		pl.HasGuessed = false
		pl.IsEliminated = false
		pl.LastScore = 0
		pl.LastDistance = 0
		pl.LastTimeSpent = 0
	}

	broadcast(room, model.Message{Type: "game_started", Payload: model.GameStart{
		Settings:       room.Settings,
		RoundLocations: room.RoundLocations,
		Players:        room.Players,
	}})
	m.scheduleRoundTimer(room)

	log.Info().Str("room", room.ID).Int("rounds", room.Settings.RoundCount).
		Str("mode", string(room.Settings.Mode)).Msg("game started")
}

// SubmitGuess records one player's submission for the current round. Distance
// and score are recomputed from the round's stored target; the client-supplied
// values are only trusted when no guess coordinate exists (timeout submit) or
// no target is known for the round.
func (m *Manager) SubmitGuess(playerID string, p model.SubmitGuessPayload) {
	room, ok := m.FindRoom(p.RoomID)
	if !ok {
		log.Debug().Str("room", p.RoomID).Msg("submit_guess for unknown room")
		return
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	if room.State != model.StatePlaying || room.RoundResolved {
		log.Debug().Str("room", room.ID).Str("player", playerID).Msg("submit_guess ignored")
		return
	}
	player := room.Player(playerID)
	if player == nil || player.HasGuessed {
		return
	}

	score, distance := p.Score, p.Distance
	if p.Guess == nil {
		score, distance = 0, timedOutDistance
	} else if target, ok := roundTarget(room); ok {
		distance = Haversine(*p.Guess, target)
		score = Score(distance)
	} else {
		log.Warn().Str("room", room.ID).Int("round", room.CurrentRound).
			Msg("no stored target for round, trusting client score")
	}

	player.Guess = p.Guess
	player.HasGuessed = true
	player.LastScore = score
	player.LastDistance = distance
	player.LastTimeSpent = p.TimeSpent
	player.Score += score

	for _, pl := range room.ActivePlayers() {
		if !pl.HasGuessed {
			broadcast(room, model.Message{Type: "player_guessed", Payload: model.PlayerGuessed{
				PlayerID:   playerID,
				AllGuessed: false,
			}})
			return
		}
	}
	m.resolveRound(room)
}

// TimesUp force-resolves the current round on the host's signal, regardless of
// who has submitted.
func (m *Manager) TimesUp(playerID string, p model.RoomRefPayload) {
	room, ok := m.FindRoom(p.RoomID)
	if !ok {
		return
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	if room.HostID != playerID || room.State != model.StatePlaying || room.RoundResolved {
		log.Debug().Str("room", room.ID).Str("player", playerID).Msg("times_up ignored")
		return
	}
	m.resolveRound(room)
}

// scheduleRoundTimer arms the server-owned deadline for the current round.
// Caller holds the room lock. A zero timerDuration means untimed rounds and
// the host's times_up remains the only forced-resolution path.
func (m *Manager) scheduleRoundTimer(room *model.Room) {
	if room.Settings.TimerDuration <= 0 {
		return
	}
	room.TimerSeq++
	seq := room.TimerSeq
	d := time.Duration(room.Settings.TimerDuration)*time.Second + timerGrace
	time.AfterFunc(d, func() { m.roundTimerExpired(room, seq) })
}

func (m *Manager) roundTimerExpired(room *model.Room, seq int) {
	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	if room.State != model.StatePlaying || room.TimerSeq != seq || room.RoundResolved || len(room.Players) == 0 {
		return
	}
	log.Info().Str("room", room.ID).Int("round", room.CurrentRound).Msg("round deadline reached")
	m.resolveRound(room)
}

// resolveRound applies elimination (battle royale only) and broadcasts the
// round results. Caller holds the room lock; fires at most once per round.
//
// Elimination ranks active players worst-first: ascending effective score,
// ties broken by descending effective distance. A player who never submitted
// ranks below every submitted score (-1 / infinite distance), so on a forced
// resolution non-submitters go first.
func (m *Manager) resolveRound(room *model.Room) {
	room.RoundResolved = true

	active := room.ActivePlayers()
	if room.Settings.Mode == model.ModeBattleRoyale && len(active) > 1 {
		sort.SliceStable(active, func(i, j int) bool {
			si, di := effectiveResult(active[i])
			sj, dj := effectiveResult(active[j])
			if si != sj {
				return si < sj
			}
			return di > dj
		})
		active[0].IsEliminated = true
		log.Info().Str("room", room.ID).Str("player", active[0].ID).
			Int("round", room.CurrentRound).Msg("player eliminated")
	}

	broadcast(room, model.Message{Type: "round_results", Payload: model.RoundResults{
		Players: room.Players,
	}})
}

func effectiveResult(p *model.Player) (int, float64) {
	if !p.HasGuessed {
		return -1, math.Inf(1)
	}
	return p.LastScore, p.LastDistance
}

// NextRound advances to the next round or finishes the game. Host only.
func (m *Manager) NextRound(playerID string, p model.RoomRefPayload) {
	room, ok := m.FindRoom(p.RoomID)
	if !ok {
		return
	}

	room.Mutex.Lock()

	if room.HostID != playerID || room.State != model.StatePlaying {
		log.Debug().Str("room", room.ID).Str("player", playerID).Msg("next_round ignored")
		room.Mutex.Unlock()
		return
	}

	room.CurrentRound++
	room.RoundResolved = false
	for _, pl := range room.Players {
		pl.Guess = nil
		pl.HasGuessed = false
	}

	activeCount := len(room.Players)
	if room.Settings.Mode == model.ModeBattleRoyale {
		activeCount = len(room.ActivePlayers())
	}

	if room.CurrentRound > room.Settings.RoundCount ||
		(room.Settings.Mode == model.ModeBattleRoyale && activeCount <= 1) {
		room.State = model.StateFinished
		room.TimerSeq++ // disarm any pending round timer
		broadcast(room, model.Message{Type: "game_finished", Payload: model.Roster{
			Players: room.Players,
		}})
		snapshot := rosterSnapshot(room)
		id, settings := room.ID, room.Settings
		room.Mutex.Unlock()

		log.Info().Str("room", id).Msg("game finished")
		if m.Store != nil {
			go m.Store.RecordGameResult(id, settings, snapshot)
		}
		return
	}

	broadcast(room, model.Message{Type: "next_round_started", Payload: model.NextRoundStarted{
		RoundNumber: room.CurrentRound,
	}})
	m.scheduleRoundTimer(room)
	room.Mutex.Unlock()
}

// PlayAgain returns a finished room to the lobby with the same roster and
// settings, all scores and eliminations cleared. Host only.
func (m *Manager) PlayAgain(playerID string, p model.RoomRefPayload) {
	room, ok := m.FindRoom(p.RoomID)
	if !ok {
		return
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	if room.HostID != playerID || room.State != model.StateFinished {
		log.Debug().Str("room", room.ID).Str("player", playerID).Msg("play_again ignored")
		return
	}

	room.State = model.StateWaiting
	room.CurrentRound = 0
	room.RoundResolved = false
	room.TimerSeq++
	for _, pl := range room.Players {
		pl.Score = 0
		pl.Guess = nil
		pl.HasGuessed = false
		pl.IsEliminated = false
	}

	broadcast(room, model.Message{Type: "back_to_lobby", Payload: model.Roster{
		Players: room.Players,
	}})
}

func roundTarget(room *model.Room) (model.LatLng, bool) {
	idx := room.CurrentRound - 1
	if idx < 0 || idx >= len(room.RoundLocations) {
		return model.LatLng{}, false
	}
	return room.RoundLocations[idx], true
}

func rosterSnapshot(room *model.Room) []model.Player {
	snapshot := make([]model.Player, 0, len(room.Players))
	for _, pl := range room.Players {
		cp := *pl
		cp.Conn = nil
		snapshot = append(snapshot, cp)
	}
	return snapshot
}
