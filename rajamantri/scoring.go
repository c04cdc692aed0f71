/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package rajamantri

// Points are the base values of each role.
var Points = map[Role]int{
	RoleRaja:   1000,
	RoleMantri: 800,
	RoleSipahi: 500,
	RoleChor:   0,
}

// RoundScore is what a role earns for one round. The Mantri only scores for
// catching the Chor; an escaped Chor takes the Mantri's points instead. Raja
// and Sipahi are paid the same either way.
func RoundScore(role Role, guessCorrect bool) int {
	switch role {
	case RoleMantri:
		if guessCorrect {
			return Points[RoleMantri]
		}
		return 0
	case RoleChor:
		if guessCorrect {
			return Points[RoleChor]
		}
		return Points[RoleMantri]
	default:
		return Points[role]
	}
}

// scoreRound computes the result of the Mantri accusing guessedID. It does
// not touch cumulative scores.
func scoreRound(round int, players []*Player, guessedID string) RoundResult {
	res := RoundResult{
		Round:  round,
		Scores: make([]PlayerScore, 0, len(players)),
	}

	var chorID string
	for _, p := range players {
		if p.Role == RoleChor {
			chorID = p.ID
			res.ActualChorName = p.Name
		}
		if p.ID == guessedID {
			res.MantriGuessName = p.Name
		}
	}
	res.IsGuessCorrect = chorID != "" && guessedID == chorID

	for _, p := range players {
		res.Scores = append(res.Scores, PlayerScore{
			PlayerID: p.ID,
			Name:     p.Name,
			Role:     p.Role,
			Score:    RoundScore(p.Role, res.IsGuessCorrect),
		})
	}

	return res
}
