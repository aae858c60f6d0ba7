// Package store persists the client's local state: the current session
// and a log of processed videos.
package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pindapp/pind/internal/domain"
)

//go:embed schema.sql
var schema string

// Store handles database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession persists the session, replacing any previous one. At most
// one session exists at a time.
func (s *Store) SaveSession(sess domain.Session) error {
	userJSON, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO session (id, token, token_type, user_json) VALUES (1, ?, ?, ?)",
		sess.Token, sess.TokenType, string(userJSON),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSession returns the persisted session, or nil when there is none.
// A malformed row is cleared and treated as no session.
func (s *Store) LoadSession() (*domain.Session, error) {
	var sess domain.Session
	var userJSON string
	err := s.db.QueryRow(
		"SELECT token, token_type, user_json FROM session WHERE id = 1",
	).Scan(&sess.Token, &sess.TokenType, &userJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if sess.Token == "" || json.Unmarshal([]byte(userJSON), &sess.User) != nil || sess.User.Email == "" {
		_ = s.ClearSession()
		return nil, nil
	}
	return &sess, nil
}

// ClearSession removes the persisted session. Clearing an empty store
// is not an error.
func (s *Store) ClearSession() error {
	if _, err := s.db.Exec("DELETE FROM session WHERE id = 1"); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// LogVideo records a processed URL and its places in the local log.
func (s *Store) LogVideo(url, title string, places []domain.Place) (*domain.ProcessedVideo, error) {
	placesJSON, err := json.Marshal(places)
	if err != nil {
		return nil, fmt.Errorf("marshal places: %w", err)
	}

	video := domain.ProcessedVideo{
		ID:        uuid.New().String(),
		URL:       url,
		Title:     title,
		Places:    places,
		CreatedAt: time.Now(),
	}

	_, err = s.db.Exec(
		"INSERT INTO videos (id, url, title, places_json, created_at) VALUES (?, ?, ?, ?, ?)",
		video.ID, video.URL, video.Title, string(placesJSON), video.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert video: %w", err)
	}
	return &video, nil
}

// ListVideos returns recent entries of the local log, newest first.
func (s *Store) ListVideos(limit int) ([]domain.ProcessedVideo, error) {
	rows, err := s.db.Query(
		"SELECT id, url, title, places_json, created_at FROM videos ORDER BY created_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []domain.ProcessedVideo
	for rows.Next() {
		var v domain.ProcessedVideo
		var placesJSON string
		if err := rows.Scan(&v.ID, &v.URL, &v.Title, &placesJSON, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		if err := json.Unmarshal([]byte(placesJSON), &v.Places); err != nil {
			return nil, fmt.Errorf("decode places: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}
