package models

type RoundStatus string

const (
	RoundStatusBetting   RoundStatus = "BETTING"
	RoundStatusSpinning  RoundStatus = "SPINNING"
	RoundStatusCompleted RoundStatus = "COMPLETED"
)

type Category string

const (
	CategoryGray Category = "GRAY"
	CategoryRed  Category = "RED"
	CategoryBlue Category = "BLUE"
	CategoryGold Category = "GOLD"
)

// Round is one timed betting cycle. Rounds are created and mutated only
// by the round driver and are never deleted; every round before the
// current one is COMPLETED.
type Round struct {
	RoundNumber     int64       `json:"round_number"`
	Status          RoundStatus `json:"status"`
	WinningCategory Category    `json:"winning_category,omitempty"`
	WinningSlot     *int        `json:"winning_slot,omitempty"`
	CreatedAt       int64       `json:"created_at"` // unix seconds, start of BETTING
	SpinAt          int64       `json:"spin_at,omitempty"`
}

func (r *Round) Open() bool {
	return r.Status == RoundStatusBetting || r.Status == RoundStatusSpinning
}
