package codec

import (
	"testing"

	"github.com/shopspring/decimal"

	"infinity_stones/internal/model"
)

func TestRoundTripSpinRecord(t *testing.T) {
	rec := model.SpinRecord{
		Result: model.CascadeSpinResult{
			RequestID:   "req-1",
			Wager:       decimal.RequireFromString("1.25"),
			InitialGrid: model.Grid{{1, 2}, {3, 4}},
			TotalWin:    decimal.RequireFromString("10.5"),
			BonusPath:   []string{"inactive"},
			Checksum:    "abc",
		},
		Before: model.NewSessionState("s-1"),
	}
	data, err := Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var got model.SpinRecord
	if err := Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Result.RequestID != "req-1" || !got.Result.TotalWin.Equal(rec.Result.TotalWin) {
		t.Fatalf("round trip lost data: %+v", got.Result)
	}
	if !got.Result.InitialGrid.Equal(rec.Result.InitialGrid) || got.Before.SessionID != "s-1" {
		t.Fatalf("round trip lost data: %+v", got)
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	var v map[string]any
	if err := Unmarshal([]byte("not zstd"), &v); err == nil {
		t.Fatal("garbage decoded")
	}
}
