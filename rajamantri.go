/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/riddhimajain08/Codechef/rajamantri"
)

const maxBodyBytes = 4 << 10

type createRequest struct {
	PlayerName  string `json:"playerName"`
	TotalRounds int    `json:"totalRounds"`
}

type createResponse struct {
	RoomID      string `json:"roomId"`
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	TotalRounds int    `json:"totalRounds"`
}

type joinRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

type joinResponse struct {
	RoomID     string `json:"roomId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type guessRequest struct {
	PlayerID        string `json:"playerId"`
	GuessedPlayerID string `json:"guessedPlayerId"`
}

type resetRequest struct {
	PlayerID string `json:"playerId"`
}

type statusResponse struct {
	Success bool              `json:"success"`
	Status  rajamantri.Status `json:"status"`
}

type roleResponse struct {
	Role rajamantri.Role `json:"role"`
}

type candidatesResponse struct {
	Success bool `json:"success"`
	rajamantri.Candidates
}

type resultsResponse struct {
	Success bool                   `json:"success"`
	Results rajamantri.RoundResult `json:"results"`
}

type leaderboardResponse struct {
	Success     bool                          `json:"success"`
	Leaderboard []rajamantri.LeaderboardEntry `json:"leaderboard"`
}

type roomResponse struct {
	Success bool                 `json:"success"`
	Room    rajamantri.RoomState `json:"room"`
}

// decodeBody reads a small JSON body into v. An empty body leaves v zeroed.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	err := dec.Decode(v)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	default:
		return rajamantri.NewError(rajamantri.ErrValidation, "malformed request body: %v", err)
	}
}

func served(cfg *Config, r *http.Request, what string, startTime time.Time) {
	logf(cfg, "SERVE: %s for %s in %s",
		what,
		realIP(r),
		time.Since(startTime).Round(time.Microsecond),
	)
}

func serveCreateRoom(cfg *Config, engine *rajamantri.Engine) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		var req createRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(cfg, w, r, err)
			return
		}

		roomID, playerID, err := engine.CreateRoom(req.PlayerName, req.TotalRounds)
		if err != nil {
			writeError(cfg, w, r, err)
			return
		}

		state, err := engine.Registry().GetRoom(roomID)
		if err != nil {
			writeError(cfg, w, r, err)
			return
		}

		host, err := engine.Registry().GetPlayer(playerID)
		if err != nil {
			writeError(cfg, w, r, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, createResponse{
			RoomID:      roomID,
			PlayerID:    playerID,
			PlayerName:  host.Name,
			TotalRounds: state.TotalRounds,
		})

		served(cfg, r, "Created room "+roomID, startTime)
	}
}

func serveJoinRoom(cfg *Config, engine *rajamantri.Engine) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		var req joinRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(cfg, w, r, err)
			return
		}

		playerID, err := engine.JoinRoom(req.RoomID, req.PlayerName)
		if err != nil {
			writeError(cfg, w, r, err)
			return
		}

		p, err := engine.Registry().GetPlayer(playerID)
		if err != nil {
			writeError(cfg, w, r, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, joinResponse{
			RoomID:     req.RoomID,
			PlayerID:   playerID,
			PlayerName: p.Name,
		})

		served(cfg, r, "Joined room "+req.RoomID, startTime)
	}
}

func serveAssignRoles(cfg *Config, engine *rajamantri.Engine) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		roomID := ps.ByName("roomId")

		if err := engine.AssignRoles(roomID); err != nil {
			writeError(cfg, w, r, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, statusResponse{Success: true, Status: rajamantri.StatusPlaying})

		served(cfg, r, "Assigned roles in "+roomID, startTime)
	}
}

func serveMyRole(cfg *Config, engine *rajamantri.Engine) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		role, err := engine.PrivateRole(ps.ByName("roomId"), ps.ByName("playerId"))
		if err != nil {
			writeError(cfg, w, r, err)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		writeJSON(cfg, w, http.StatusOK, roleResponse{Role: role})
	}
}

func serveCandidates(cfg *Config, engine *rajamantri.Engine) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		c, err := engine.Candidates(ps.ByName("roomId"))
		if err != nil {
			writeError(cfg, w, r, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, candidatesResponse{Success: true, Candidates: c})
	}
}

func serveGuess(cfg *Config, engine *rajamantri.Engine) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		roomID := ps.ByName("roomId")

		var req guessRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(cfg, w, r, err)
			return
		}

		res, err := engine.SubmitGuess(roomID, req.PlayerID, req.GuessedPlayerID)
		if err != nil {
			writeError(cfg, w, r, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, resultsResponse{Success: true, Results: res})

		served(cfg, r, "Scored round in "+roomID, startTime)
	}
}

func serveResults(cfg *Config, engine *rajamantri.Engine) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		res, err := engine.Results(ps.ByName("roomId"))
		if err != nil {
			writeError(cfg, w, r, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, resultsResponse{Success: true, Results: res})
	}
}

func serveReset(cfg *Config, engine *rajamantri.Engine) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		roomID := ps.ByName("roomId")

		var req resetRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(cfg, w, r, err)
			return
		}

		if err := engine.RequireHost(roomID, req.PlayerID); err != nil {
			writeError(cfg, w, r, err)
			return
		}

		status, err := engine.AdvanceRound(roomID)
		if err != nil {
			writeError(cfg, w, r, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, statusResponse{Success: true, Status: status})

		served(cfg, r, "Advanced "+roomID+" to "+string(status), startTime)
	}
}

func serveLeaderboard(cfg *Config, engine *rajamantri.Engine) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		entries, err := engine.Leaderboard(ps.ByName("roomId"))
		if err != nil {
			writeError(cfg, w, r, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, leaderboardResponse{Success: true, Leaderboard: entries})
	}
}

func serveRoomState(cfg *Config, engine *rajamantri.Engine) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		state, err := engine.Registry().GetRoom(ps.ByName("roomId"))
		if err != nil {
			writeError(cfg, w, r, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, roomResponse{Success: true, Room: state})
	}
}

// registerRajaMantriGame sets up the game routes:
//   - POST /room/create, /room/join         → open or enter a room
//   - POST /room/assign/:roomId             → deal roles
//   - GET  /role/me/:roomId/:playerId       → a player's own role
//   - GET  /game/candidates/:roomId         → who the Mantri may accuse
//   - POST /guess/:roomId                   → the Mantri's accusation
//   - GET  /result/:roomId                  → scored round
//   - POST /room/reset/:roomId              → next round, host only
//   - GET  /leaderboard/:roomId             → cumulative standings
//   - GET  /room/state/:roomId, /room/qr/.., /room/ws/..
func registerRajaMantriGame(cfg *Config, mux *httprouter.Router, engine *rajamantri.Engine, hub *Broadcaster, limiter *ipLimiter, errs chan<- error) {
	p := cfg.prefix

	mux.POST(p+"/room/create", limit(cfg, limiter, serveCreateRoom(cfg, engine)))
	mux.POST(p+"/room/join", limit(cfg, limiter, serveJoinRoom(cfg, engine)))
	mux.POST(p+"/room/assign/:roomId", limit(cfg, limiter, serveAssignRoles(cfg, engine)))
	mux.POST(p+"/room/reset/:roomId", limit(cfg, limiter, serveReset(cfg, engine)))
	mux.POST(p+"/guess/:roomId", limit(cfg, limiter, serveGuess(cfg, engine)))

	mux.GET(p+"/role/me/:roomId/:playerId", serveMyRole(cfg, engine))
	mux.GET(p+"/game/candidates/:roomId", serveCandidates(cfg, engine))
	mux.GET(p+"/result/:roomId", serveResults(cfg, engine))
	mux.GET(p+"/leaderboard/:roomId", serveLeaderboard(cfg, engine))

	mux.GET(p+"/room/state/:roomId", serveRoomState(cfg, engine))
	mux.GET(p+"/room/qr/:roomId", serveRoomQR(cfg, engine, errs))
	mux.GET(p+"/room/ws/:roomId", serveRoomSocket(cfg, engine, hub))
}
