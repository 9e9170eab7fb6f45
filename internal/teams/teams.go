// Package teams implements the two-team shuffle behind the /tu command.
package teams

import (
	"errors"
	"math/rand"
	"strings"
)

// ErrTooFewPlayers is returned when fewer than two mentions are provided.
var ErrTooFewPlayers = errors.New("teams: need at least two participants")

// ExtractMentions pulls user mention tokens (<@id> or <@!id>) out of free
// text, in order of appearance.
func ExtractMentions(text string) []string {
	var out []string
	for _, w := range strings.Fields(text) {
		if strings.HasPrefix(w, "<@") && strings.HasSuffix(w, ">") {
			out = append(out, w)
		}
	}
	return out
}

// Split shuffles the players and deals them into two teams. Team A receives
// the floor half, Team B the rest.
func Split(players []string, shuffle func(n int, swap func(i, j int))) ([]string, []string, error) {
	if len(players) < 2 {
		return nil, nil, ErrTooFewPlayers
	}
	shuffled := append([]string(nil), players...)
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	mid := len(shuffled) / 2
	return shuffled[:mid], shuffled[mid:], nil
}

// Format renders the team assignment for the channel reply.
func Format(teamA, teamB []string) string {
	var b strings.Builder
	b.WriteString("🎮 **Teams**:\n\n")
	b.WriteString("🔴 **Team A**\n")
	b.WriteString(strings.Join(teamA, "\n"))
	b.WriteString("\n\n🔵 **Team B**\n")
	b.WriteString(strings.Join(teamB, "\n"))
	return b.String()
}
