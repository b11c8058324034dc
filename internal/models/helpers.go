package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func GenerateSessionID() string {
	return fmt.Sprintf("sess_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

type PlaceBetRequest struct {
	Category Category `json:"category"`
	Amount   int64    `json:"amount"`
}

func (r *PlaceBetRequest) Validate(validCategories map[Category]bool) error {
	if r.Amount <= 0 {
		return fmt.Errorf("bet amount must be positive")
	}
	if !validCategories[r.Category] {
		return fmt.Errorf("invalid category: %s", r.Category)
	}
	return nil
}

func FormatCurrency(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}
