/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/riddhimajain08/Codechef/rajamantri"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	cfg     *Config
	engine  *rajamantri.Engine
	hub     *Broadcaster
	limiter *ipLimiter
	handler http.Handler
}

func newTestServer(t *testing.T, limiter *ipLimiter) *testServer {
	t.Helper()

	cfg := &Config{rounds: 2, logger: zerolog.Nop()}
	hub := newBroadcaster(cfg)
	engine := rajamantri.NewEngine(
		rajamantri.NewRegistry(cfg.rounds, cfg.logger),
		rajamantri.WithSeed(7),
		rajamantri.WithNotifier(hub),
	)

	errs := make(chan error, 16)
	t.Cleanup(hub.closeAll)

	return &testServer{
		cfg:     cfg,
		engine:  engine,
		hub:     hub,
		limiter: limiter,
		handler: newRouter(cfg, engine, hub, limiter, errs),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// fill opens a room and seats three more players. The host is ids[0].
func (s *testServer) fill(t *testing.T) (string, []string) {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/room/create", createRequest{PlayerName: "Asha"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[createResponse](t, rec)

	ids := []string{created.PlayerID}
	for _, name := range []string{"Bilal", "Chetan", "Divya"} {
		rec := s.do(t, http.MethodPost, "/room/join", joinRequest{RoomID: created.RoomID, PlayerName: name})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		ids = append(ids, decode[joinResponse](t, rec).PlayerID)
	}

	return created.RoomID, ids
}

func (s *testServer) roles(t *testing.T, roomID string, ids []string) map[rajamantri.Role]string {
	t.Helper()

	out := make(map[rajamantri.Role]string)
	for _, id := range ids {
		rec := s.do(t, http.MethodGet, "/role/me/"+roomID+"/"+id, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		out[decode[roleResponse](t, rec).Role] = id
	}
	require.Len(t, out, rajamantri.RoomSize)
	return out
}

func TestCreateRoom(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/room/create", createRequest{PlayerName: "  Asha  "})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	created := decode[createResponse](t, rec)
	assert.NotEmpty(t, created.RoomID)
	assert.NotEmpty(t, created.PlayerID)
	assert.Equal(t, "Asha", created.PlayerName)
	assert.Equal(t, 2, created.TotalRounds)

	rec = s.do(t, http.MethodPost, "/room/create", createRequest{PlayerName: "Asha", TotalRounds: 5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decode[createResponse](t, rec).TotalRounds)
}

func TestFullRound(t *testing.T) {
	s := newTestServer(t, nil)
	roomID, ids := s.fill(t)

	rec := s.do(t, http.MethodPost, "/room/assign/"+roomID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, statusResponse{Success: true, Status: rajamantri.StatusPlaying}, decode[statusResponse](t, rec))

	roles := s.roles(t, roomID, ids)

	rec = s.do(t, http.MethodGet, "/game/candidates/"+roomID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cands := decode[candidatesResponse](t, rec)
	assert.True(t, cands.Success)
	assert.NotEmpty(t, cands.RajaName)
	assert.NotEmpty(t, cands.MantriName)
	require.Len(t, cands.Candidates, 2)

	rec = s.do(t, http.MethodPost, "/guess/"+roomID, guessRequest{
		PlayerID:        roles[rajamantri.RoleMantri],
		GuessedPlayerID: roles[rajamantri.RoleChor],
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	guessed := decode[resultsResponse](t, rec)
	assert.True(t, guessed.Results.IsGuessCorrect)
	assert.Equal(t, 1, guessed.Results.Round)

	total := 0
	for _, ps := range guessed.Results.Scores {
		total += ps.Score
	}
	assert.Equal(t, 2300, total)

	rec = s.do(t, http.MethodGet, "/result/"+roomID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, guessed, decode[resultsResponse](t, rec))

	rec = s.do(t, http.MethodPost, "/room/reset/"+roomID, resetRequest{PlayerID: ids[0]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, rajamantri.StatusWaiting, decode[statusResponse](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/room/state/"+roomID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[roomResponse](t, rec).Room
	assert.Equal(t, 2, state.CurrentRound)
	assert.Equal(t, rajamantri.StatusWaiting, state.Status)
	assert.Equal(t, []string{"Asha", "Bilal", "Chetan", "Divya"}, state.PlayerNames)
	assert.Nil(t, state.Results)

	rec = s.do(t, http.MethodGet, "/leaderboard/"+roomID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[leaderboardResponse](t, rec).Leaderboard
	require.Len(t, board, rajamantri.RoomSize)
	assert.Equal(t, 1000, board[0].Score)
	for i := 1; i < len(board); i++ {
		assert.GreaterOrEqual(t, board[i-1].Score, board[i].Score)
	}
}

// Player ids are the only proof of identity for guessing and resetting, so
// no public read may reveal them.
func TestPublicViewsHideCredentials(t *testing.T) {
	s := newTestServer(t, nil)
	roomID, ids := s.fill(t)

	assertNoIDs := func(t *testing.T, path string, except ...string) {
		t.Helper()

		rec := s.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		for _, id := range ids {
			if slices.Contains(except, id) {
				continue
			}
			assert.NotContains(t, rec.Body.String(), id, path)
		}
	}

	assertNoIDs(t, "/room/state/"+roomID)
	assertNoIDs(t, "/leaderboard/"+roomID)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/room/assign/"+roomID, nil).Code)
	roles := s.roles(t, roomID, ids)

	assertNoIDs(t, "/room/state/"+roomID)
	// The Mantri needs the Chor and Sipahi ids to accuse one of them.
	assertNoIDs(t, "/game/candidates/"+roomID, roles[rajamantri.RoleChor], roles[rajamantri.RoleSipahi])

	rec := s.do(t, http.MethodPost, "/guess/"+roomID, guessRequest{
		PlayerID:        roles[rajamantri.RoleMantri],
		GuessedPlayerID: roles[rajamantri.RoleChor],
	})
	require.Equal(t, http.StatusOK, rec.Code)
	for _, id := range ids {
		assert.NotContains(t, rec.Body.String(), id)
	}

	assertNoIDs(t, "/room/state/"+roomID)
	assertNoIDs(t, "/result/"+roomID)

	rec = s.do(t, http.MethodGet, "/room/state/"+roomID, nil)
	state := decode[roomResponse](t, rec).Room
	assert.Empty(t, state.PlayerIDs)
	assert.Empty(t, state.MantriID)
	assert.Empty(t, state.MantriGuess)
	require.NotNil(t, state.Results)
	assert.True(t, state.Results.IsGuessCorrect)
}

func TestLastRoundFinishes(t *testing.T) {
	s := newTestServer(t, nil)
	roomID, ids := s.fill(t)

	for round := 1; round <= 2; round++ {
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/room/assign/"+roomID, nil).Code)
		roles := s.roles(t, roomID, ids)

		rec := s.do(t, http.MethodPost, "/guess/"+roomID, guessRequest{
			PlayerID:        roles[rajamantri.RoleMantri],
			GuessedPlayerID: roles[rajamantri.RoleSipahi],
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.False(t, decode[resultsResponse](t, rec).Results.IsGuessCorrect)

		rec = s.do(t, http.MethodPost, "/room/reset/"+roomID, resetRequest{PlayerID: ids[0]})
		require.Equal(t, http.StatusOK, rec.Code)
		if round == 2 {
			assert.Equal(t, rajamantri.StatusFinished, decode[statusResponse](t, rec).Status)
		}
	}

	rec := s.do(t, http.MethodPost, "/room/assign/"+roomID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestErrorStatusCodes(t *testing.T) {
	s := newTestServer(t, nil)
	roomID, ids := s.fill(t)

	pending := s.do(t, http.MethodPost, "/room/create", createRequest{PlayerName: "Esha"})
	require.Equal(t, http.StatusOK, pending.Code)
	halfRoom := decode[createResponse](t, pending).RoomID

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"blank host name", http.MethodPost, "/room/create", createRequest{PlayerName: "   "}, http.StatusBadRequest, "validation"},
		{"negative rounds", http.MethodPost, "/room/create", createRequest{PlayerName: "Asha", TotalRounds: -1}, http.StatusBadRequest, "validation"},
		{"unknown room on join", http.MethodPost, "/room/join", joinRequest{RoomID: "nope", PlayerName: "Esha"}, http.StatusNotFound, "not_found"},
		{"full room", http.MethodPost, "/room/join", joinRequest{RoomID: roomID, PlayerName: "Esha"}, http.StatusForbidden, "capacity"},
		{"assign short room", http.MethodPost, "/room/assign/" + halfRoom, nil, http.StatusForbidden, "capacity"},
		{"role before deal", http.MethodGet, "/role/me/" + roomID + "/" + ids[1], nil, http.StatusConflict, "state"},
		{"role of stranger", http.MethodGet, "/role/me/" + roomID + "/nobody", nil, http.StatusNotFound, "not_found"},
		{"candidates before deal", http.MethodGet, "/game/candidates/" + roomID, nil, http.StatusConflict, "state"},
		{"results before guess", http.MethodGet, "/result/" + roomID, nil, http.StatusConflict, "state"},
		{"guess before deal", http.MethodPost, "/guess/" + roomID, guessRequest{PlayerID: ids[0], GuessedPlayerID: ids[1]}, http.StatusConflict, "state"},
		{"reset by guest", http.MethodPost, "/room/reset/" + roomID, resetRequest{PlayerID: ids[1]}, http.StatusForbidden, "authorization"},
		{"reset without player", http.MethodPost, "/room/reset/" + roomID, nil, http.StatusForbidden, "authorization"},
		{"leaderboard of unknown room", http.MethodGet, "/leaderboard/nope", nil, http.StatusNotFound, "not_found"},
		{"state of unknown room", http.MethodGet, "/room/state/nope", nil, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			resp := decode[errorResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.kind, resp.Kind)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestGuessRejections(t *testing.T) {
	s := newTestServer(t, nil)
	roomID, ids := s.fill(t)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/room/assign/"+roomID, nil).Code)
	roles := s.roles(t, roomID, ids)

	rec := s.do(t, http.MethodPost, "/guess/"+roomID, guessRequest{
		PlayerID:        roles[rajamantri.RoleRaja],
		GuessedPlayerID: roles[rajamantri.RoleChor],
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "authorization", decode[errorResponse](t, rec).Kind)

	rec = s.do(t, http.MethodPost, "/guess/"+roomID, guessRequest{
		PlayerID:        roles[rajamantri.RoleMantri],
		GuessedPlayerID: "nobody",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decode[errorResponse](t, rec).Kind)

	rec = s.do(t, http.MethodGet, "/room/state/"+roomID, nil)
	assert.Equal(t, rajamantri.StatusPlaying, decode[roomResponse](t, rec).Room.Status)
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/room/create", strings.NewReader(`{"playerName":`))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decode[errorResponse](t, rec).Kind)
}

func TestOversizedBody(t *testing.T) {
	s := newTestServer(t, nil)

	body := `{"playerName":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/room/create", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitedActions(t *testing.T) {
	limiter := newIPLimiter(1, 2)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	s := newTestServer(t, limiter)

	for iter := 0; iter < 2; iter++ {
		rec := s.do(t, http.MethodPost, "/room/create", createRequest{PlayerName: "Asha"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := s.do(t, http.MethodPost, "/room/create", createRequest{PlayerName: "Asha"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decode[errorResponse](t, rec).Kind)

	// Rotating forwarding headers does not buy a fresh bucket.
	for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodPost, "/room/create", strings.NewReader(`{"playerName":"Asha"}`))
		req.Header.Set("X-Real-IP", ip)
		req.Header.Set("CF-Connecting-IP", ip)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code, ip)
	}

	// Reads are never limited.
	rec = s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPrefixedRoutes(t *testing.T) {
	cfg := &Config{prefix: "/game", rounds: 3, logger: zerolog.Nop()}
	hub := newBroadcaster(cfg)
	engine := rajamantri.NewEngine(rajamantri.NewRegistry(cfg.rounds, cfg.logger), rajamantri.WithNotifier(hub))
	handler := newRouter(cfg, engine, hub, nil, make(chan error, 1))

	req := httptest.NewRequest(http.MethodPost, "/game/room/create", strings.NewReader(`{"playerName":"Asha"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/room/create", strings.NewReader(`{"playerName":"Asha"}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
