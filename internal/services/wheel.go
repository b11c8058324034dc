package services

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"roulette-miniapp-backend/internal/models"
)

// WheelSize is the total number of slots on the wheel.
const WheelSize = 54

type WheelCategory struct {
	Slots      int     `json:"slots"`
	Multiplier float64 `json:"multiplier"`
}

// WheelConfig maps each category to its slot count and payout
// multiplier. Slot counts sum to WheelSize.
var WheelConfig = map[models.Category]WheelCategory{
	models.CategoryGray: {Slots: 26, Multiplier: 2.0},
	models.CategoryRed:  {Slots: 17, Multiplier: 3.0},
	models.CategoryBlue: {Slots: 10, Multiplier: 5.0},
	models.CategoryGold: {Slots: 1, Multiplier: 50.0},
}

// Wheel is the fixed slot layout clients use to render the spin
// animation. Index i is the category occupying slot i.
var Wheel = [WheelSize]models.Category{
	"GOLD", "BLUE", "GRAY", "RED", "GRAY", "RED", "GRAY", "RED", "GRAY",
	"BLUE", "GRAY", "BLUE", "GRAY", "RED", "GRAY", "RED", "GRAY", "RED", "GRAY",
	"BLUE", "GRAY", "BLUE", "GRAY", "RED", "GRAY", "RED", "GRAY", "RED", "GRAY", "RED", "GRAY", "RED", "GRAY",
	"BLUE", "GRAY", "BLUE", "GRAY", "RED", "GRAY", "RED", "GRAY", "RED", "GRAY",
	"BLUE", "GRAY", "BLUE", "GRAY", "RED", "GRAY", "RED", "GRAY", "RED", "GRAY",
	"BLUE",
}

// SpinWheel draws a uniformly random slot with a cryptographically
// secure source and returns the winning category and its slot index.
func SpinWheel() (models.Category, int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(WheelSize))
	if err != nil {
		return "", 0, fmt.Errorf("failed to draw winning slot: %v", err)
	}
	slot := int(n.Int64())
	return WheelAt(slot), slot, nil
}

// WheelAt is the deterministic core of a spin: the category occupying
// a given slot index.
func WheelAt(slot int) models.Category {
	return Wheel[slot]
}

// CalculatePayout returns amount * multiplier when the wagered category
// won, 0 otherwise. Payouts round toward zero.
func CalculatePayout(amount int64, wagered, winning models.Category) int64 {
	if wagered != winning {
		return 0
	}
	return int64(float64(amount) * WheelConfig[wagered].Multiplier)
}

// CategoryProbabilities returns the win chance of each category as a
// percentage, for display to players.
func CategoryProbabilities() map[models.Category]float64 {
	probs := make(map[models.Category]float64, len(WheelConfig))
	for category, cfg := range WheelConfig {
		probs[category] = float64(cfg.Slots) / WheelSize * 100
	}
	return probs
}

// ValidCategories is the configured category set bets are validated
// against.
func ValidCategories() map[models.Category]bool {
	valid := make(map[models.Category]bool, len(WheelConfig))
	for category := range WheelConfig {
		valid[category] = true
	}
	return valid
}

// ValidateWheelConfig checks the wheel invariants: slot counts sum to
// WheelSize, every multiplier is positive, and the layout agrees with
// the per-category slot counts.
func ValidateWheelConfig() error {
	total := 0
	for category, cfg := range WheelConfig {
		if cfg.Multiplier <= 0 {
			return fmt.Errorf("category %s has non-positive multiplier %f", category, cfg.Multiplier)
		}
		total += cfg.Slots
	}
	if total != WheelSize {
		return fmt.Errorf("slot counts sum to %d, want %d", total, WheelSize)
	}

	counts := make(map[models.Category]int)
	for _, category := range Wheel {
		counts[category]++
	}
	for category, cfg := range WheelConfig {
		if counts[category] != cfg.Slots {
			return fmt.Errorf("layout has %d %s slots, config says %d", counts[category], category, cfg.Slots)
		}
	}

	return nil
}
