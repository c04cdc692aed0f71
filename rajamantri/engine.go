/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package rajamantri

import (
	"cmp"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Engine drives the round lifecycle of rooms held in a Registry:
// WAITING -> PLAYING -> RESULTS -> WAITING, or FINISHED after the last round.
type Engine struct {
	reg      *Registry
	notifier Notifier
	log      zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Engine)

// WithRand sets the source used to deal roles.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithSeed deals roles from a deterministic source. Zero keeps the default.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		if seed != 0 {
			e.rng = rand.New(rand.NewSource(seed))
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

func NewEngine(reg *Registry, opts ...Option) *Engine {
	e := &Engine{
		reg:      reg,
		notifier: discard{},
		log:      zerolog.Nop(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Registry() *Registry {
	return e.reg
}

func (e *Engine) CreateRoom(hostName string, totalRounds int) (string, string, error) {
	return e.reg.CreateRoom(hostName, totalRounds)
}

// JoinRoom adds a player and tells the room about its new roster.
func (e *Engine) JoinRoom(roomID, name string) (string, error) {
	var playerID string
	err := e.reg.withRoom(roomID, func(rm *room) error {
		p, err := e.reg.joinLocked(rm, name)
		if err != nil {
			return err
		}
		playerID = p.ID

		e.notifier.Notify(rm.id, Event{Kind: EventPlayerJoined, Payload: rm.membershipLocked()})
		return nil
	})
	return playerID, err
}

// shuffleRoles returns a uniformly random permutation of Roles.
func (e *Engine) shuffleRoles() [RoomSize]Role {
	roles := Roles

	e.rngMu.Lock()
	defer e.rngMu.Unlock()

	for i := len(roles) - 1; i > 0; i-- {
		j := e.rng.Intn(i + 1)
		roles[i], roles[j] = roles[j], roles[i]
	}

	return roles
}

// AssignRoles deals one of each role to a full, waiting room.
func (e *Engine) AssignRoles(roomID string) error {
	return e.reg.withRoom(roomID, func(rm *room) error {
		if len(rm.players) != RoomSize {
			return errorf(ErrCapacity, "waiting for %d more players", RoomSize-len(rm.players))
		}
		if rm.status != StatusWaiting {
			return errorf(ErrState, "roles already assigned or game in progress")
		}

		roles := e.shuffleRoles()
		for i, p := range rm.players {
			p.Role = roles[i]
			if p.Role == RoleMantri {
				rm.mantriID = p.ID
			}
		}

		rm.status = StatusPlaying
		rm.lastActive = e.reg.now()

		e.log.Info().Str("room", rm.id).Int("round", rm.currentRound).Str("mantri", rm.mantriID).Msg("roles assigned")

		e.notifier.Notify(rm.id, Event{Kind: EventRolesAssigned, Payload: GameUpdate{
			Status:  rm.status,
			Round:   rm.currentRound,
			Message: "Roles have been assigned. Check your secret role!",
		}})
		return nil
	})
}

// PrivateRole returns the caller's own role and nothing else.
func (e *Engine) PrivateRole(roomID, playerID string) (Role, error) {
	var role Role
	err := e.reg.withRoom(roomID, func(rm *room) error {
		p := rm.member(playerID)
		if p == nil {
			return errorf(ErrNotFound, "player not found in this room")
		}
		if rm.status != StatusPlaying {
			return errorf(ErrState, "roles not yet assigned")
		}
		role = p.Role
		return nil
	})
	return role, err
}

// Candidates reveals the Raja and Mantri and lists the players the Mantri
// may accuse.
func (e *Engine) Candidates(roomID string) (Candidates, error) {
	var out Candidates
	err := e.reg.withRoom(roomID, func(rm *room) error {
		if rm.status != StatusPlaying {
			return errorf(ErrState, "roles not yet assigned")
		}

		out.Candidates = make([]Candidate, 0, RoomSize-2)
		for _, p := range rm.players {
			switch p.Role {
			case RoleRaja:
				out.RajaName = p.Name
			case RoleMantri:
				out.MantriName = p.Name
			default:
				out.Candidates = append(out.Candidates, Candidate{ID: p.ID, Name: p.Name})
			}
		}
		return nil
	})
	return out, err
}

// SubmitGuess scores the round on the Mantri's accusation and moves the room
// to RESULTS.
func (e *Engine) SubmitGuess(roomID, playerID, guessedID string) (RoundResult, error) {
	var out RoundResult
	err := e.reg.withRoom(roomID, func(rm *room) error {
		if rm.status != StatusPlaying {
			return errorf(ErrState, "no round is waiting for a guess")
		}
		if rm.mantriID == "" || playerID != rm.mantriID {
			return errorf(ErrAuthorization, "only the Mantri may submit a guess")
		}
		if rm.member(guessedID) == nil {
			return errorf(ErrValidation, "guessed player is not in this room")
		}

		res := scoreRound(rm.currentRound, rm.players, guessedID)
		for i, p := range rm.players {
			p.Score += res.Scores[i].Score
		}

		rm.mantriGuess = guessedID
		rm.results = &res
		rm.status = StatusResults
		rm.lastActive = e.reg.now()

		e.log.Info().Str("room", rm.id).Int("round", rm.currentRound).Bool("correct", res.IsGuessCorrect).Msg("guess submitted")

		out = res.clone()
		e.notifier.Notify(rm.id, Event{Kind: EventRoundResults, Payload: res.clone()})
		return nil
	})
	return out, err
}

// RequireHost fails unless playerID is the host of roomID.
func (e *Engine) RequireHost(roomID, playerID string) error {
	return e.reg.withRoom(roomID, func(rm *room) error {
		if p := rm.member(playerID); p == nil || !p.Host {
			return errorf(ErrAuthorization, "only the host can manage the game flow")
		}
		return nil
	})
}

// Results returns the scored outcome of the current round.
func (e *Engine) Results(roomID string) (RoundResult, error) {
	var out RoundResult
	err := e.reg.withRoom(roomID, func(rm *room) error {
		if rm.status != StatusResults || rm.results == nil {
			return errorf(ErrState, "results are not ready, the Mantri must submit a guess")
		}
		out = rm.results.clone()
		return nil
	})
	return out, err
}

// AdvanceRound ends the current round. After the last round the room is
// FINISHED for good; otherwise it returns to WAITING for the next deal.
func (e *Engine) AdvanceRound(roomID string) (Status, error) {
	var status Status
	err := e.reg.withRoom(roomID, func(rm *room) error {
		if rm.status == StatusFinished {
			status = rm.status
			return nil
		}

		rm.lastActive = e.reg.now()

		if rm.currentRound >= rm.totalRounds {
			rm.status = StatusFinished
			status = rm.status

			e.log.Info().Str("room", rm.id).Int("rounds", rm.totalRounds).Msg("game finished")

			e.notifier.Notify(rm.id, Event{Kind: EventGameOver, Payload: GameOver{
				Status:      rm.status,
				Leaderboard: leaderboardLocked(rm),
			}})
			return nil
		}

		rm.currentRound++
		for _, p := range rm.players {
			p.Role = RoleNone
		}
		rm.mantriID = ""
		rm.mantriGuess = ""
		rm.results = nil
		rm.status = StatusWaiting
		status = rm.status

		e.log.Info().Str("room", rm.id).Int("round", rm.currentRound).Msg("round reset")

		e.notifier.Notify(rm.id, Event{Kind: EventRoundReset, Payload: rm.membershipLocked()})
		return nil
	})
	return status, err
}

// Leaderboard ranks members by cumulative score, highest first. Ties keep
// join order.
func (e *Engine) Leaderboard(roomID string) ([]LeaderboardEntry, error) {
	var out []LeaderboardEntry
	err := e.reg.withRoom(roomID, func(rm *room) error {
		out = leaderboardLocked(rm)
		return nil
	})
	return out, err
}

func leaderboardLocked(rm *room) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(rm.players))
	for _, p := range rm.players {
		entries = append(entries, LeaderboardEntry{
			Name:   p.Name,
			Score:  p.Score,
			IsHost: p.Host,
		})
	}

	slices.SortStableFunc(entries, func(a, b LeaderboardEntry) int {
		return cmp.Compare(b.Score, a.Score)
	})

	return entries
}
