/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package rajamantri

const (
	// RoomSize is the fixed number of players a room holds.
	RoomSize = 4

	// DefaultRounds is used when a room is created without a round count.
	DefaultRounds = 3
)

type Role string

const (
	RoleNone   Role = ""
	RoleRaja   Role = "Raja"
	RoleMantri Role = "Mantri"
	RoleChor   Role = "Chor"
	RoleSipahi Role = "Sipahi"
)

// Roles is the full role set dealt each round, in canonical order.
var Roles = [RoomSize]Role{RoleRaja, RoleMantri, RoleChor, RoleSipahi}

type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusPlaying  Status = "PLAYING"
	StatusResults  Status = "RESULTS"
	StatusFinished Status = "FINISHED"
)

// Player is a member of exactly one room. Values returned by the registry
// and engine are copies; mutating them has no effect on the game.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	RoomID string `json:"roomId"`
	Role   Role   `json:"role,omitempty"`
	Score  int    `json:"score"`
	Host   bool   `json:"isHost"`
}

// RoomState is a point-in-time copy of a room. It carries no roles. Player
// ids act as credentials, so they never leave the process.
type RoomState struct {
	ID           string       `json:"roomId"`
	PlayerIDs    []string     `json:"-"`
	PlayerNames  []string     `json:"players"`
	Status       Status       `json:"status"`
	CurrentRound int          `json:"currentRound"`
	TotalRounds  int          `json:"totalRounds"`
	MantriID     string       `json:"-"`
	MantriGuess  string       `json:"-"`
	Results      *RoundResult `json:"results,omitempty"`
}

type PlayerScore struct {
	PlayerID string `json:"-"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	Score    int    `json:"score"`
}

// RoundResult is the scored outcome of one round, listed in join order.
type RoundResult struct {
	Round           int           `json:"round"`
	Scores          []PlayerScore `json:"roundScores"`
	IsGuessCorrect  bool          `json:"isGuessCorrect"`
	MantriGuessName string        `json:"mantriGuessName"`
	ActualChorName  string        `json:"actualChorName"`
}

func (r RoundResult) clone() RoundResult {
	r.Scores = append([]PlayerScore(nil), r.Scores...)
	return r
}

// Membership is the public roster of a room.
type Membership struct {
	RoomID       string   `json:"roomId"`
	Players      []string `json:"players"`
	Count        int      `json:"count"`
	Status       Status   `json:"status"`
	CurrentRound int      `json:"currentRound"`
	TotalRounds  int      `json:"totalRounds"`
}

type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Candidates lists who the Mantri may accuse. Raja and Mantri are public.
type Candidates struct {
	RajaName   string      `json:"rajaName"`
	MantriName string      `json:"mantriName"`
	Candidates []Candidate `json:"candidates"`
}

type LeaderboardEntry struct {
	Name   string `json:"name"`
	Score  int    `json:"score"`
	IsHost bool   `json:"isHost"`
}
