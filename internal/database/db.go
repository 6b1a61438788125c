package database

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"geoplayer/internal/game"
	"geoplayer/internal/model"
)

// Store keeps a history of finished games. Live room state is never persisted;
// rooms die with the process.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	sqlStmt := `CREATE TABLE IF NOT EXISTS game_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT,
		player_name TEXT,
		score INTEGER,
		mode TEXT,
		rating TEXT,
		played_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err = db.Exec(sqlStmt); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// RecordGameResult writes one row per player for a finished game.
func (s *Store) RecordGameResult(roomID string, settings model.Settings, players []model.Player) {
	tx, err := s.db.Begin()
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("record game result")
		return
	}
	stmt, err := tx.Prepare("INSERT INTO game_history(room_id, player_name, score, mode, rating) VALUES(?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		log.Error().Err(err).Str("room", roomID).Msg("record game result")
		return
	}
	defer stmt.Close()

	for _, p := range players {
		rating := game.ScoreRating(p.Score, settings.RoundCount)
		if _, err := stmt.Exec(roomID, p.Name, p.Score, string(settings.Mode), rating.Label); err != nil {
			tx.Rollback()
			log.Error().Err(err).Str("room", roomID).Msg("record game result")
			return
		}
	}
	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("record game result")
	}
}

type PlayerStat struct {
	Name       string `json:"name"`
	TotalGames int    `json:"totalGames"`
	TotalScore int    `json:"totalScore"`
	BestScore  int    `json:"bestScore"`
}

// GetRoomStats aggregates per-player totals across every game finished in a
// room id. Room ids are recycled, so this spans unrelated sessions that drew
// the same id.
func (s *Store) GetRoomStats(roomID string) []PlayerStat {
	stats := make([]PlayerStat, 0)

	rows, err := s.db.Query(`SELECT player_name, COUNT(*), SUM(score), MAX(score)
		FROM game_history WHERE room_id = ?
		GROUP BY player_name ORDER BY SUM(score) DESC`, roomID)
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("load room stats")
		return stats
	}
	defer rows.Close()

	for rows.Next() {
		var st PlayerStat
		if err := rows.Scan(&st.Name, &st.TotalGames, &st.TotalScore, &st.BestScore); err != nil {
			continue
		}
		stats = append(stats, st)
	}
	return stats
}
