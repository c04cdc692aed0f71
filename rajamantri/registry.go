/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package rajamantri

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type room struct {
	mu sync.Mutex

	id           string
	players      []*Player
	status       Status
	currentRound int
	totalRounds  int
	mantriID     string
	mantriGuess  string
	results      *RoundResult

	lastActive time.Time
	closed     bool
}

func (rm *room) member(playerID string) *Player {
	for _, p := range rm.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (rm *room) snapshotLocked() RoomState {
	ids := make([]string, 0, len(rm.players))
	names := make([]string, 0, len(rm.players))
	for _, p := range rm.players {
		ids = append(ids, p.ID)
		names = append(names, p.Name)
	}

	state := RoomState{
		ID:           rm.id,
		PlayerIDs:    ids,
		PlayerNames:  names,
		Status:       rm.status,
		CurrentRound: rm.currentRound,
		TotalRounds:  rm.totalRounds,
		MantriID:     rm.mantriID,
		MantriGuess:  rm.mantriGuess,
	}
	if rm.results != nil {
		res := rm.results.clone()
		state.Results = &res
	}
	return state
}

func (rm *room) membershipLocked() Membership {
	names := make([]string, 0, len(rm.players))
	for _, p := range rm.players {
		names = append(names, p.Name)
	}
	return Membership{
		RoomID:       rm.id,
		Players:      names,
		Count:        len(rm.players),
		Status:       rm.status,
		CurrentRound: rm.currentRound,
		TotalRounds:  rm.totalRounds,
	}
}

// Registry owns every room and player. Room fields are guarded by the room's
// own mutex; the maps by the registry's. Always take the room lock first.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*room
	players map[string]*Player

	defaultRounds int
	now           func() time.Time
	log           zerolog.Logger
}

func NewRegistry(defaultRounds int, log zerolog.Logger) *Registry {
	if defaultRounds < 1 {
		defaultRounds = DefaultRounds
	}
	return &Registry{
		rooms:         make(map[string]*room),
		players:       make(map[string]*Player),
		defaultRounds: defaultRounds,
		now:           time.Now,
		log:           log,
	}
}

func playerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errorf(ErrValidation, "player name is required")
	}
	return name, nil
}

// CreateRoom opens a WAITING room with the caller as its host. A zero
// totalRounds selects the registry default.
func (r *Registry) CreateRoom(hostName string, totalRounds int) (string, string, error) {
	name, err := playerName(hostName)
	if err != nil {
		return "", "", err
	}

	switch {
	case totalRounds == 0:
		totalRounds = r.defaultRounds
	case totalRounds < 1:
		return "", "", errorf(ErrValidation, "number of rounds must be at least 1, got %d", totalRounds)
	}

	now := r.now()
	host := &Player{
		ID:   uuid.NewString(),
		Name: name,
		Host: true,
	}
	rm := &room{
		id:           uuid.NewString(),
		players:      []*Player{host},
		status:       StatusWaiting,
		currentRound: 1,
		totalRounds:  totalRounds,
		lastActive:   now,
	}
	host.RoomID = rm.id

	r.mu.Lock()
	r.rooms[rm.id] = rm
	r.players[host.ID] = host
	r.mu.Unlock()

	r.log.Info().Str("room", rm.id).Str("host", name).Int("rounds", totalRounds).Msg("room created")

	return rm.id, host.ID, nil
}

// JoinRoom appends a non-host player to the room.
func (r *Registry) JoinRoom(roomID, name string) (string, error) {
	var playerID string
	err := r.withRoom(roomID, func(rm *room) error {
		p, err := r.joinLocked(rm, name)
		if err != nil {
			return err
		}
		playerID = p.ID
		return nil
	})
	return playerID, err
}

func (r *Registry) joinLocked(rm *room, name string) (*Player, error) {
	name, err := playerName(name)
	if err != nil {
		return nil, err
	}
	if len(rm.players) >= RoomSize {
		return nil, errorf(ErrCapacity, "room is full (max %d players)", RoomSize)
	}

	p := &Player{
		ID:     uuid.NewString(),
		Name:   name,
		RoomID: rm.id,
	}

	r.mu.Lock()
	r.players[p.ID] = p
	r.mu.Unlock()

	rm.players = append(rm.players, p)
	rm.lastActive = r.now()

	r.log.Info().Str("room", rm.id).Str("player", name).Int("count", len(rm.players)).Msg("player joined")

	return p, nil
}

func (r *Registry) lookup(roomID string) (*room, error) {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil, errorf(ErrNotFound, "room %q", roomID)
	}
	return rm, nil
}

// withRoom runs fn holding the room's lock, so no two mutations of one room
// interleave.
func (r *Registry) withRoom(roomID string, fn func(rm *room) error) error {
	rm, err := r.lookup(roomID)
	if err != nil {
		return err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.closed {
		return errorf(ErrNotFound, "room %q", roomID)
	}
	return fn(rm)
}

func (r *Registry) GetRoom(roomID string) (RoomState, error) {
	var state RoomState
	err := r.withRoom(roomID, func(rm *room) error {
		state = rm.snapshotLocked()
		return nil
	})
	return state, err
}

func (r *Registry) GetPlayer(playerID string) (Player, error) {
	r.mu.RLock()
	p, ok := r.players[playerID]
	var roomID string
	if ok {
		roomID = p.RoomID
	}
	r.mu.RUnlock()
	if !ok {
		return Player{}, errorf(ErrNotFound, "player %q", playerID)
	}

	var out Player
	err := r.withRoom(roomID, func(*room) error {
		out = *p
		return nil
	})
	if err != nil {
		return Player{}, errorf(ErrNotFound, "player %q", playerID)
	}
	return out, nil
}

func (r *Registry) Membership(roomID string) (Membership, error) {
	var m Membership
	err := r.withRoom(roomID, func(rm *room) error {
		m = rm.membershipLocked()
		return nil
	})
	return m, err
}

// Reap removes every room idle since before cutoff, along with its players,
// and returns the removed room ids.
func (r *Registry) Reap(cutoff time.Time) []string {
	r.mu.RLock()
	rooms := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	var removed []string
	for _, rm := range rooms {
		rm.mu.Lock()
		if rm.closed || !rm.lastActive.Before(cutoff) {
			rm.mu.Unlock()
			continue
		}
		rm.closed = true

		r.mu.Lock()
		delete(r.rooms, rm.id)
		for _, p := range rm.players {
			delete(r.players, p.ID)
		}
		r.mu.Unlock()
		rm.mu.Unlock()

		removed = append(removed, rm.id)
		r.log.Info().Str("room", rm.id).Msg("room expired")
	}

	return removed
}

// Len reports the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
