// Package status ranks channel membership status strings and derives
// the moderation actions a client should offer from them.
package status

// Membership markers as they appear in NAMES replies and prefix modes.
const (
	Owner  = '~'
	Admin  = '&'
	Op     = '@'
	HalfOp = '%'
	Voice  = '+'
)

// Ranks, highest first. Anything unrecognized ranks as RankNone.
const (
	RankOwner  = 6
	RankAdmin  = 5
	RankOp     = 4
	RankHalfOp = 3
	RankVoice  = 2
	RankNone   = 1
)

var markerRanks = map[rune]int{
	Owner:  RankOwner,
	Admin:  RankAdmin,
	Op:     RankOp,
	HalfOp: RankHalfOp,
	Voice:  RankVoice,
}

// modeMarkers maps channel prefix mode letters (MODE #chan +o nick) to markers.
var modeMarkers = map[rune]rune{
	'q': Owner,
	'a': Admin,
	'o': Op,
	'h': HalfOp,
	'v': Voice,
}

// Rank returns the highest priority among the markers in s.
// Each character is an independent marker; order does not matter.
// The empty string and unknown characters rank as RankNone.
func Rank(s string) int {
	best := RankNone
	for _, r := range s {
		if rank, ok := markerRanks[r]; ok && rank > best {
			best = rank
		}
	}
	return best
}

// FromModeLetter returns the marker for a prefix mode letter.
func FromModeLetter(mode rune) (rune, bool) {
	marker, ok := modeMarkers[mode]
	return marker, ok
}

// Highest returns the single highest marker in s, or "" when none is recognized.
func Highest(s string) string {
	var best rune
	bestRank := RankNone
	for _, r := range s {
		if rank, ok := markerRanks[r]; ok && rank > bestRank {
			best, bestRank = r, rank
		}
	}
	if best == 0 {
		return ""
	}
	return string(best)
}
