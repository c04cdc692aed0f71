/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package rajamantri

type EventKind string

const (
	EventPlayerJoined  EventKind = "player_joined"
	EventRolesAssigned EventKind = "roles_assigned"
	EventRoundResults  EventKind = "round_results"
	EventRoundReset    EventKind = "round_reset"
	EventGameOver      EventKind = "game_over"
)

// Event is delivered to every client of a room. Payloads never carry a
// player's private role while a round is being played.
type Event struct {
	Kind    EventKind
	Payload any
}

// Notifier receives events after each successful mutation, in order, while
// the room is still locked. Implementations must not block and must not call
// back into the engine.
type Notifier interface {
	Notify(roomID string, ev Event)
}

type NotifierFunc func(roomID string, ev Event)

func (f NotifierFunc) Notify(roomID string, ev Event) {
	f(roomID, ev)
}

type discard struct{}

func (discard) Notify(string, Event) {}

// GameUpdate accompanies roles_assigned.
type GameUpdate struct {
	Status  Status `json:"status"`
	Round   int    `json:"round"`
	Message string `json:"message"`
}

// GameOver accompanies game_over with the final standings.
type GameOver struct {
	Status      Status             `json:"status"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}
