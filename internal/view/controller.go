// Package view holds the client-side presentation state: the current
// place list, the history list with its checkboxes, and the focused
// place. It is the single writer of that state; fetch results flow
// through it.
package view

import (
	"context"
	"sync"

	"github.com/pindapp/pind/internal/client"
	"github.com/pindapp/pind/internal/domain"
	"github.com/pindapp/pind/internal/logging"
	"github.com/pindapp/pind/internal/places"
	"github.com/pindapp/pind/internal/session"
)

// MsgNoPlaces is the informational message shown when a video yields no
// coordinate-complete places. The (empty) result still stands.
const MsgNoPlaces = "no locations with coordinates found in this video; try another one"

// TitleFunc resolves a display title for a video URL. May be nil.
type TitleFunc func(ctx context.Context, url string) string

// VideoLogger records a processed URL in the local video log. May be nil.
type VideoLogger interface {
	LogVideo(url, title string, places []domain.Place) (*domain.ProcessedVideo, error)
}

// Controller composes fetch results into what the map shows.
type Controller struct {
	api      *client.Client
	sessions *session.Store
	log      VideoLogger
	title    TitleFunc
	devMode  bool

	mu        sync.Mutex
	seq       uint64
	locations []domain.Place
	history   []domain.HistoryEntry
	selected  *domain.Place
	errMsg    string
}

// New creates a controller. log and title are optional.
func New(api *client.Client, sessions *session.Store, log VideoLogger, title TitleFunc, devMode bool) *Controller {
	return &Controller{api: api, sessions: sessions, log: log, title: title, devMode: devMode}
}

// ProcessURL submits a URL and replaces the current place list with the
// result. Each submission supersedes the previous one: if a second call
// starts before the first completes, the first call's result is
// discarded when it arrives. Fetch errors are kept as the display
// message and also returned.
func (c *Controller) ProcessURL(ctx context.Context, url string) error {
	c.mu.Lock()
	c.seq++
	id := c.seq
	c.errMsg = ""
	c.mu.Unlock()

	result, err := c.api.ProcessURL(ctx, url, c.sessions.Token())

	c.mu.Lock()
	if id != c.seq {
		c.mu.Unlock()
		logging.Debug().Str("url", url).Msg("discarding superseded process result")
		return nil
	}
	if err != nil {
		c.errMsg = err.Error()
		c.mu.Unlock()
		return err
	}
	c.locations = result.Places
	if len(result.Places) == 0 {
		c.errMsg = MsgNoPlaces
	}
	c.mu.Unlock()

	logging.Info().Str("mode", result.Mode).Int("places", len(result.Places)).Msg("processed url")

	if c.log != nil && len(result.Places) > 0 {
		title := ""
		if c.title != nil {
			title = c.title(ctx, url)
		}
		if _, err := c.log.LogVideo(url, title, result.Places); err != nil {
			logging.Warn().Err(err).Msg("could not record video in local log")
		}
	}

	// The new submission should show up in history right away.
	if err := c.RefreshHistory(ctx); err != nil {
		logging.Warn().Err(err).Msg("history refresh after process failed")
	}
	return nil
}

// RefreshHistory re-fetches the processed-video history. Without a
// session the history is simply cleared. On failure the error becomes
// the display message; in dev mode a fixed sample set is substituted so
// the UI stays exercisable, otherwise the history is left empty.
func (c *Controller) RefreshHistory(ctx context.Context) error {
	if !c.sessions.IsAuthenticated() {
		c.mu.Lock()
		c.history = nil
		c.mu.Unlock()
		return nil
	}

	entries, err := c.api.History(ctx, c.sessions.Token())

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.errMsg = err.Error()
		if c.devMode {
			c.history = sampleHistory()
		} else {
			c.history = nil
		}
		return err
	}
	c.history = entries
	return nil
}

// InjectLocations installs an externally supplied raw place list as the
// current result, running the same coordinate validation as a fetch.
func (c *Controller) InjectLocations(raws []domain.RawPlace) {
	valid := places.FilterValid(raws)
	c.mu.Lock()
	c.locations = valid
	c.mu.Unlock()
}

// Toggle flips the checked flag of exactly the entry with the given id.
// Unknown ids are a no-op.
func (c *Controller) Toggle(id string, checked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.history {
		if c.history[i].ID == id {
			c.history[i].Checked = checked
			return
		}
	}
}

// VisibleLocations computes the place list to render: the last
// submission's result when non-empty, otherwise the places of every
// checked history entry in history order. The two sources are never
// merged. Recomputed on every call.
func (c *Controller) VisibleLocations() []domain.Place {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.locations) > 0 {
		return append([]domain.Place(nil), c.locations...)
	}
	var visible []domain.Place
	for _, entry := range c.history {
		if entry.Checked {
			visible = append(visible, entry.Places...)
		}
	}
	return visible
}

// Select sets the focused place for detail display; nil clears it.
// Selection never alters VisibleLocations.
func (c *Controller) Select(p *domain.Place) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p == nil {
		c.selected = nil
		return
	}
	sel := *p
	c.selected = &sel
}

// Selected returns the focused place, or nil.
func (c *Controller) Selected() *domain.Place {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return nil
	}
	sel := *c.selected
	return &sel
}

// Locations returns the last submission's place list.
func (c *Controller) Locations() []domain.Place {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Place(nil), c.locations...)
}

// History returns a copy of the history list.
func (c *Controller) History() []domain.HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.HistoryEntry(nil), c.history...)
}

// Err returns the current display message, "" when there is none.
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// ClearError dismisses the current display message.
func (c *Controller) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = ""
}

// sampleHistory is the development fallback shown when the history
// fetch fails in dev mode.
func sampleHistory() []domain.HistoryEntry {
	return []domain.HistoryEntry{
		{
			ID:      "1",
			Title:   "Amazing Seoul Food Tour - Best Korean...",
			Date:    "2024-01-15",
			URL:     "https://youtube.com/watch?v=example1",
			Checked: true,
			Places: []domain.Place{
				{Name: "Myeongdong Kyoja", Lat: 37.5633, Lng: 126.9982},
				{Name: "Gwangjang Market", Lat: 37.5701, Lng: 126.9996},
			},
		},
		{
			ID:      "2",
			Title:   "Hidden Gems in Busan - Local's Guide",
			Date:    "2024-01-10",
			URL:     "https://youtube.com/watch?v=example2",
			Checked: false,
			Places: []domain.Place{
				{Name: "Gamcheon Culture Village", Lat: 35.0975, Lng: 129.0105},
				{Name: "Jagalchi Fish Market", Lat: 35.0966, Lng: 129.0306},
			},
		},
	}
}
