package domain

import "time"

// Place is a validated, coordinate-complete map entry.
type Place struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// RawPlace is an unvalidated place candidate from a backend response.
// A nil coordinate means the backend could not resolve it.
type RawPlace struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

// User is the minimal identity record the backend hands out.
type User struct {
	Email string `json:"email"`
}

// Session pairs a bearer token with the user it belongs to.
type Session struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	User      User   `json:"user"`
}

// HistoryEntry is one previously processed video and its places.
// Checked is local UI state; it never round-trips to the backend and
// resets to false on every re-fetch.
type HistoryEntry struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Date      string  `json:"date"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	URL       string  `json:"url"`
	Checked   bool    `json:"checked"`
	Places    []Place `json:"places"`
}

// ProcessedVideo is a row in the local log of submitted URLs.
type ProcessedVideo struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Places    []Place   `json:"places"`
	CreatedAt time.Time `json:"created_at"`
}
