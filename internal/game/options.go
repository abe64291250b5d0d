package game

import "time"

// Options are the tunable rules of a match.
type Options struct {
	OpeningHand       int
	MulliganLimit     int
	MainDeckMin       int
	MainDeckMax       int
	CopyLimit         int
	RuneDeckSize      int
	BattlefieldCount  int
	SideDeckMax       int
	ChannelPerTurn    int
	SecondPlayerBonus int
	VictoryScore      int
	PriorityWindow    time.Duration
	SetupWindow       time.Duration
	HistoryLimit      int
}

// DefaultOptions returns the standard constructed-format rules.
func DefaultOptions() Options {
	return Options{
		OpeningHand:       4,
		MulliganLimit:     2,
		MainDeckMin:       40,
		MainDeckMax:       60,
		CopyLimit:         3,
		RuneDeckSize:      12,
		BattlefieldCount:  3,
		SideDeckMax:       8,
		ChannelPerTurn:    2,
		SecondPlayerBonus: 1,
		VictoryScore:      8,
		PriorityWindow:    30 * time.Second,
		SetupWindow:       60 * time.Second,
		HistoryLimit:      200,
	}
}
