package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pindapp/pind/internal/client"
	"github.com/pindapp/pind/internal/domain"
	"github.com/pindapp/pind/internal/session"
	"github.com/pindapp/pind/internal/store"
	"github.com/pindapp/pind/internal/view"
)

func f(v float64) *float64 { return &v }

// newTestServer wires a bridge server against a fake backend and
// returns the bridge's base URL plus a redirect-preserving client.
func newTestServer(t *testing.T, backend http.Handler) (string, *http.Client) {
	t.Helper()
	backendSrv := httptest.NewServer(backend)
	t.Cleanup(backendSrv.Close)

	storage, err := store.New(filepath.Join(t.TempDir(), "pind.db"))
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	apiClient := client.New(backendSrv.URL, 5*time.Second)
	sessions := session.New(apiClient, storage)
	ctrl := view.New(apiClient, sessions, storage, nil, false)

	bridge := httptest.NewServer(New(ctrl, sessions, "").Routes())
	t.Cleanup(bridge.Close)

	httpClient := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return bridge.URL, httpClient
}

func fakeBackend() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/youtube/without-login/process", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"mode": "new",
			"places": []domain.RawPlace{
				{Name: "A", Lat: f(1), Lng: f(2)},
				{Name: "B", Lat: nil, Lng: f(3)},
			},
		})
	})
	mux.HandleFunc("POST /api/v1/youtube/process", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"mode": "db", "places": []domain.RawPlace{}})
	})
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("password") != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Incorrect email or password"}`))
			return
		}
		w.Write([]byte(`{"access_token":"tok","token_type":"Bearer"}`))
	})
	mux.HandleFunc("GET /api/v1/youtube/history", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	return mux
}

func getJSON(t *testing.T, c *http.Client, url string, out any) {
	t.Helper()
	resp, err := c.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func postJSON(t *testing.T, c *http.Client, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := c.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	base, c := newTestServer(t, fakeBackend())
	var out map[string]string
	getJSON(t, c, base+"/health", &out)
	assert.Equal(t, "ok", out["status"])
}

func TestIndexWithoutParams(t *testing.T) {
	base, c := newTestServer(t, fakeBackend())
	var out map[string]string
	getJSON(t, c, base+"/", &out)
	assert.Equal(t, "pind", out["service"])
}

func TestSessionHandoffIsConsumedAndStripped(t *testing.T) {
	base, c := newTestServer(t, fakeBackend())

	params := url.Values{}
	params.Set("token", "handoff-tok")
	params.Set("user_info", `{"email":"ext@y.com"}`)

	resp, err := c.Get(base + "/?" + params.Encode())
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"), "parameters stripped")

	var sess SessionResponse
	getJSON(t, c, base+"/api/session", &sess)
	assert.True(t, sess.Authenticated)
	require.NotNil(t, sess.User)
	assert.Equal(t, "ext@y.com", sess.User.Email)
}

func TestMalformedHandoffIsDroppedSilently(t *testing.T) {
	base, c := newTestServer(t, fakeBackend())

	resp, err := c.Get(base + "/?token=x&user_info=notjson")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode, "still stripped")

	var sess SessionResponse
	getJSON(t, c, base+"/api/session", &sess)
	assert.False(t, sess.Authenticated)
}

func TestLocationsHandoff(t *testing.T) {
	base, c := newTestServer(t, fakeBackend())

	params := url.Values{}
	params.Set("locations", `{"places":[{"name":"A","lat":1,"lng":2},{"name":"B","lat":null,"lng":3}]}`)

	resp, err := c.Get(base + "/?" + params.Encode())
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	var visible VisibleResponse
	getJSON(t, c, base+"/api/visible", &visible)
	require.Len(t, visible.Markers, 1)
	assert.Equal(t, "A-0", visible.Markers[0].Key)
	require.NotNil(t, visible.Viewport)
}

func TestProcessEndpoint(t *testing.T) {
	base, c := newTestServer(t, fakeBackend())

	resp := postJSON(t, c, base+"/api/process", map[string]string{"url": "https://youtu.be/x"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ProcessResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Places, 1)
	assert.Equal(t, "A", out.Places[0].Name)
	assert.Empty(t, out.Error)
}

func TestProcessEndpointRequiresURL(t *testing.T) {
	base, c := newTestServer(t, fakeBackend())
	resp := postJSON(t, c, base+"/api/process", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVisibleEmptyState(t *testing.T) {
	base, c := newTestServer(t, fakeBackend())

	var visible VisibleResponse
	getJSON(t, c, base+"/api/visible", &visible)
	assert.Empty(t, visible.Markers)
	assert.Nil(t, visible.Viewport)
	assert.Equal(t, "No places to display.", visible.Empty)
	assert.Equal(t, "FeatureCollection", visible.GeoJSON.Type)
}

func TestLoginLogoutFlow(t *testing.T) {
	base, c := newTestServer(t, fakeBackend())

	resp := postJSON(t, c, base+"/api/login", map[string]string{"email": "x@y.com", "password": "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sess SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	assert.True(t, sess.Authenticated)

	resp = postJSON(t, c, base+"/api/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	assert.False(t, sess.Authenticated)
}

func TestLoginFailurePropagatesDetail(t *testing.T) {
	base, c := newTestServer(t, fakeBackend())

	resp := postJSON(t, c, base+"/api/login", map[string]string{"email": "x@y.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Incorrect email or password", out["error"])
}

func TestSelectionEndpoints(t *testing.T) {
	base, c := newTestServer(t, fakeBackend())

	resp := postJSON(t, c, base+"/api/select", domain.Place{Name: "A", Lat: 1, Lng: 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Selected *domain.Place `json:"selected"`
	}
	getJSON(t, c, base+"/api/select", &out)
	require.NotNil(t, out.Selected)
	assert.Equal(t, "A", out.Selected.Name)

	req, err := http.NewRequest(http.MethodDelete, base+"/api/select", nil)
	require.NoError(t, err)
	delResp, err := c.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()

	getJSON(t, c, base+"/api/select", &out)
	assert.Nil(t, out.Selected)
}
