package domain

import (
	"encoding/json"
	"testing"
)

func TestEnumValidity(t *testing.T) {
	if !TrendBullish.Valid() || Trend("Sideways").Valid() {
		t.Error("unexpected trend validity")
	}
	if !TradeWait.Valid() || TradeIdea("Hold").Valid() {
		t.Error("unexpected trade idea validity")
	}
	if !ConfidenceMedium.Valid() || Confidence("medium").Valid() {
		t.Error("unexpected confidence validity")
	}
	if !FactorPending.Valid() || FactorStatus("").Valid() {
		t.Error("unexpected factor status validity")
	}
	if !RoleModel.Valid() || ChatRole("assistant").Valid() {
		t.Error("unexpected chat role validity")
	}
}

func TestAuthEventKindsAreDistinct(t *testing.T) {
	kinds := map[AuthEventKind]struct{}{
		AuthSignedIn:       {},
		AuthSignedOut:      {},
		AuthTokenRefreshed: {},
		AuthUserUpdated:    {},
	}
	if len(kinds) != 4 {
		t.Fatalf("expected 4 distinct auth event kinds, got %d", len(kinds))
	}
}

func TestConfluenceFactorStrengthDecoding(t *testing.T) {
	cases := map[string]int{
		`{"factor":"BOS","strength":88,"status":"Verified"}`:   88,
		`{"factor":"BOS","strength":88.0,"status":"Verified"}`: 88,
		`{"factor":"BOS","status":"Pending"}`:                  0,
	}
	for in, want := range cases {
		var f ConfluenceFactor
		if err := json.Unmarshal([]byte(in), &f); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if f.Strength != want || f.Factor != "BOS" {
			t.Fatalf("%s: got %+v", in, f)
		}
	}

	var f ConfluenceFactor
	if err := json.Unmarshal([]byte(`{"factor":"BOS","strength":88.5,"status":"Verified"}`), &f); err == nil {
		t.Fatal("fractional strength must be rejected")
	}
}
