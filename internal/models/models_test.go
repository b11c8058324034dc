package models_test

import (
	"encoding/json"
	"strings"
	"testing"

	"roulette-miniapp-backend/internal/models"
)

var testCategories = map[models.Category]bool{
	models.CategoryGray: true,
	models.CategoryRed:  true,
	models.CategoryBlue: true,
	models.CategoryGold: true,
}

func TestPlaceBetRequestValidate(t *testing.T) {
	valid := &models.PlaceBetRequest{Category: models.CategoryRed, Amount: 100}
	if err := valid.Validate(testCategories); err != nil {
		t.Errorf("Valid bet should pass validation: %v", err)
	}

	zero := &models.PlaceBetRequest{Category: models.CategoryRed, Amount: 0}
	if err := zero.Validate(testCategories); err == nil {
		t.Error("Zero amount should fail validation")
	}

	negative := &models.PlaceBetRequest{Category: models.CategoryRed, Amount: -50}
	if err := negative.Validate(testCategories); err == nil {
		t.Error("Negative amount should fail validation")
	}

	badCategory := &models.PlaceBetRequest{Category: "PURPLE", Amount: 100}
	if err := badCategory.Validate(testCategories); err == nil {
		t.Error("Unknown category should fail validation")
	}
}

func TestWagerField(t *testing.T) {
	field := models.WagerField(42, models.CategoryGold)
	if field != "42:GOLD" {
		t.Errorf("Unexpected wager field: %s", field)
	}
}

func TestRoundOpen(t *testing.T) {
	round := &models.Round{Status: models.RoundStatusBetting}
	if !round.Open() {
		t.Error("BETTING round should be open")
	}

	round.Status = models.RoundStatusSpinning
	if !round.Open() {
		t.Error("SPINNING round should be open")
	}

	round.Status = models.RoundStatusCompleted
	if round.Open() {
		t.Error("COMPLETED round should not be open")
	}
}

func TestRoundResultPersonalFields(t *testing.T) {
	msg := models.RoundResultMessage{
		Type:            "round_result",
		RoundNumber:     7,
		WinningCategory: models.CategoryRed,
		WinningSlot:     3,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if strings.Contains(string(data), "your_payout") || strings.Contains(string(data), "your_balance") {
		t.Errorf("Unpersonalized result must omit personal fields: %s", data)
	}

	var payout, balance int64 = 0, 1200
	msg.YourPayout = &payout
	msg.YourBalance = &balance

	data, err = json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	// A losing payout of zero is explicit, not absent.
	if !strings.Contains(string(data), `"your_payout":0`) {
		t.Errorf("Personalized zero payout should be explicit: %s", data)
	}
	if !strings.Contains(string(data), `"your_balance":1200`) {
		t.Errorf("Personalized balance missing: %s", data)
	}
}

func TestFormatCurrency(t *testing.T) {
	if got := models.FormatCurrency(12345); got != "$123.45" {
		t.Errorf("Expected $123.45, got %s", got)
	}
}

func TestGenerateSessionID(t *testing.T) {
	if models.GenerateSessionID() == "" {
		t.Error("Session ID should not be empty")
	}
}
