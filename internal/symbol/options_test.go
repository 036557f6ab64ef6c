package symbol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mahekanna/gann-algomojo/internal/types"
)

func TestDefaultStrikeInterval(t *testing.T) {
	assert.Equal(t, 50.0, DefaultStrikeInterval("NIFTY", 24500))
	assert.Equal(t, 100.0, DefaultStrikeInterval("BANKNIFTY", 52000))
	assert.Equal(t, 50.0, DefaultStrikeInterval("FINNIFTY", 23000))

	// stock ladder scales with price
	assert.Equal(t, 5.0, DefaultStrikeInterval("IDEA", 300))
	assert.Equal(t, 10.0, DefaultStrikeInterval("ITC", 800))
	assert.Equal(t, 25.0, DefaultStrikeInterval("RELIANCE", 2400))
	assert.Equal(t, 50.0, DefaultStrikeInterval("MARUTI", 4800))
	assert.Equal(t, 100.0, DefaultStrikeInterval("MRF", 6000))
}

func TestATMStrike(t *testing.T) {
	assert.Equal(t, 24500.0, ATMStrike(24537, 50, false))
	assert.Equal(t, 24550.0, ATMStrike(24537, 50, true))
	assert.Equal(t, 24500.0, ATMStrike(24500, 50, false))
	assert.Equal(t, 24500.0, ATMStrike(24500, 50, true))
	assert.Equal(t, 1234.5, ATMStrike(1234.5, 0, false))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ITM, Classify(24600, 24500, OptionCall))
	assert.Equal(t, OTM, Classify(24400, 24500, OptionCall))
	assert.Equal(t, ITM, Classify(24400, 24500, OptionPut))
	assert.Equal(t, OTM, Classify(24600, 24500, OptionPut))
	assert.Equal(t, ATM, Classify(24500, 24500, OptionCall))
	assert.Equal(t, ATM, Classify(24500, 24500, OptionPut))
}

func TestExpiryDate_IndexWeekly(t *testing.T) {
	// Tuesday -> coming Thursday
	tue := time.Date(2026, 8, 25, 10, 0, 0, 0, time.Local)
	exp := ExpiryDate(types.ClassIndex, tue)
	assert.Equal(t, time.Date(2026, 8, 27, 10, 0, 0, 0, time.Local).Format("02Jan2006"), exp.Format("02Jan2006"))

	// Thursday before the cutoff -> same day
	thuAM := time.Date(2026, 8, 27, 10, 0, 0, 0, time.Local)
	assert.Equal(t, "27Aug2026", ExpiryDate(types.ClassIndex, thuAM).Format("02Jan2006"))

	// Thursday after the cutoff -> next week
	thuPM := time.Date(2026, 8, 27, 16, 0, 0, 0, time.Local)
	assert.Equal(t, "03Sep2026", ExpiryDate(types.ClassIndex, thuPM).Format("02Jan2006"))
}

func TestExpiryDate_EquityMonthly(t *testing.T) {
	// mid-month -> last Thursday of the same month
	mid := time.Date(2026, 8, 10, 10, 0, 0, 0, time.Local)
	assert.Equal(t, "27Aug2026", ExpiryDate(types.ClassEquity, mid).Format("02Jan2006"))

	// past the last Thursday -> next month's
	late := time.Date(2026, 8, 28, 10, 0, 0, 0, time.Local)
	assert.Equal(t, "24Sep2026", ExpiryDate(types.ClassEquity, late).Format("02Jan2006"))

	// year rollover
	dec := time.Date(2025, 12, 26, 10, 0, 0, 0, time.Local)
	assert.Equal(t, "29Jan2026", ExpiryDate(types.ClassEquity, dec).Format("02Jan2006"))
}

func TestCommodityExpiry(t *testing.T) {
	now := time.Date(2026, 8, 12, 10, 0, 0, 0, time.Local)
	assert.Equal(t, "31Aug2026", CommodityExpiry(now).Format("02Jan2006"))

	feb := time.Date(2027, 2, 3, 10, 0, 0, 0, time.Local)
	assert.Equal(t, "28Feb2027", CommodityExpiry(feb).Format("02Jan2006"))
}

func TestContractSymbol(t *testing.T) {
	expiry := time.Date(2026, 8, 27, 0, 0, 0, 0, time.Local)
	assert.Equal(t, "NIFTY-27AUG2026-24500-CE",
		ContractSymbol("NIFTY", expiry, 24500, OptionCall))
	assert.Equal(t, "RELIANCE-27AUG2026-2400-PE",
		ContractSymbol("RELIANCE", expiry, 2400, OptionPut))
}
