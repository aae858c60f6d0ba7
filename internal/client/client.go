// Package client talks to the Pind backend: video processing, history,
// and the auth endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/pindapp/pind/internal/domain"
	"github.com/pindapp/pind/internal/places"
)

const (
	processPath      = "/api/v1/youtube/process"
	guestProcessPath = "/api/v1/youtube/without-login/process"
	historyPath      = "/api/v1/youtube/history"
	videoPlacesPath  = "/api/v1/youtube/places/"

	loginPath         = "/auth/login"
	registerPath      = "/auth/register"
	passwordResetPath = "/auth/request-password-reset"
	resetPath         = "/auth/reset-password"
)

var youtubeURLPattern = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com/watch\?v=|youtu\.be/)[\w-]+`)

// IsYouTubeURL reports whether url looks like a YouTube watch URL.
func IsYouTubeURL(url string) bool {
	return youtubeURLPattern.MatchString(strings.TrimSpace(url))
}

// Client is a Pind backend client. The zero value is not usable; use New.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the backend at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ProcessResult is what a successful process call yields: the backend's
// processing mode ("db" or "new") and the coordinate-complete places.
type ProcessResult struct {
	Mode   string
	Places []domain.Place
}

type processResponse struct {
	Mode   string             `json:"mode"`
	Places *[]domain.RawPlace `json:"places"`
}

// ProcessURL submits a video URL for place extraction. With a token it
// uses the authenticated endpoint and a bearer header; without one it
// uses the guest endpoint. Places with a missing coordinate are dropped.
func (c *Client) ProcessURL(ctx context.Context, videoURL, token string) (*ProcessResult, error) {
	path := guestProcessPath
	if token != "" {
		path = processPath
	}

	body, err := c.postJSON(ctx, path, map[string]string{"url": videoURL}, token)
	if err != nil {
		return nil, err
	}

	var resp processResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Places == nil {
		return nil, &FormatError{}
	}

	return &ProcessResult{
		Mode:   resp.Mode,
		Places: places.FilterValid(*resp.Places),
	}, nil
}

type historyItem struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	CreatedAt    string            `json:"created_at"`
	ThumbnailURL string            `json:"thumbnail_url"`
	YoutubeURL   string            `json:"youtube_url"`
	Places       []domain.RawPlace `json:"places"`
}

// History fetches the processed-video history for the given token. Each
// entry comes back unchecked, with its places validated and its date
// truncated to a calendar day.
func (c *Client) History(ctx context.Context, token string) ([]domain.HistoryEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+historyPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Detail:     fmt.Sprintf("failed to fetch history: %d", resp.StatusCode),
		}
	}

	var items []historyItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &FormatError{}
	}

	entries := make([]domain.HistoryEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, domain.HistoryEntry{
			ID:        item.ID,
			Title:     item.Title,
			Date:      calendarDate(item.CreatedAt),
			Thumbnail: item.ThumbnailURL,
			URL:       item.YoutubeURL,
			Checked:   false,
			Places:    places.FilterValid(item.Places),
		})
	}
	return entries, nil
}

// PlacesForVideo fetches the places of a single processed video by id.
func (c *Client) PlacesForVideo(ctx context.Context, videoID, token string) ([]domain.Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+videoPlacesPath+url.PathEscape(videoID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, body)
	}

	var raws []domain.RawPlace
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, &FormatError{}
	}
	return places.FilterValid(raws), nil
}

// calendarDate truncates a backend timestamp to its calendar date.
func calendarDate(ts string) string {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.UTC().Format("2006-01-02")
	}
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges credentials for a session. The backend speaks the
// OAuth2 password form, so the email travels in the username field.
func (c *Client) Login(ctx context.Context, email, password string) (domain.Session, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Session{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Session{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Session{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Session{}, &AuthError{Op: "login", Detail: bodyDetail(body)}
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil || auth.AccessToken == "" {
		return domain.Session{}, &FormatError{}
	}

	// The backend does not echo a profile; the user record is built
	// from the credentials that just worked.
	return domain.Session{
		Token:     auth.AccessToken,
		TokenType: auth.TokenType,
		User:      domain.User{Email: email},
	}, nil
}

// Register creates an account. It does not yield a token; follow with
// Login to obtain a session.
func (c *Client) Register(ctx context.Context, email, password string) error {
	_, err := c.postJSON(ctx, registerPath, map[string]string{
		"email":    email,
		"password": password,
	}, "")
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return &AuthError{Op: "register", Detail: statusErr.Detail}
	}
	return err
}

// RequestPasswordReset asks the backend to mail a reset token.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := c.postJSON(ctx, passwordResetPath, map[string]string{"email": email}, "")
	return err
}

// ResetPassword redeems a reset token for a new password.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	_, err := c.postJSON(ctx, resetPath, map[string]string{
		"token":        token,
		"new_password": newPassword,
	}, "")
	return err
}

// postJSON submits a JSON body and returns the raw response body on a
// 2xx status. Non-2xx becomes a StatusError, a network failure a
// TransportError.
func (c *Client) postJSON(ctx context.Context, path string, payload any, token string) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, body)
	}
	return body, nil
}

func statusError(status int, body []byte) *StatusError {
	return &StatusError{StatusCode: status, Detail: bodyDetail(body)}
}

// bodyDetail pulls a human-readable message out of an error body, when
// the body is JSON with a detail or error field.
func bodyDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Detail != "" {
		return payload.Detail
	}
	return payload.Error
}
