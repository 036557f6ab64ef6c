package symbol

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mahekanna/gann-algomojo/internal/types"
)

// OptionType is the NSE option leg kind.
type OptionType string

const (
	OptionCall OptionType = "CE"
	OptionPut  OptionType = "PE"
)

// Moneyness of an option relative to the underlying price.
type Moneyness string

const (
	ITM Moneyness = "ITM"
	ATM Moneyness = "ATM"
	OTM Moneyness = "OTM"
)

// Classify returns the moneyness of a strike for the given option type.
func Classify(price, strike float64, typ OptionType) Moneyness {
	switch {
	case price == strike:
		return ATM
	case typ == OptionCall && price > strike,
		typ == OptionPut && price < strike:
		return ITM
	}
	return OTM
}

// DefaultStrikeInterval picks a strike interval when the watchlist does not
// pin one: fixed values for the major indices, a price-scaled ladder for
// stocks.
func DefaultStrikeInterval(symbol string, price float64) float64 {
	switch strings.ToUpper(symbol) {
	case "NIFTY", "NIFTY50", "FINNIFTY":
		return 50
	case "BANKNIFTY", "NIFTYBANK":
		return 100
	}
	pct := price * 0.01
	switch {
	case pct < 5:
		return 5
	case pct < 10:
		return 10
	case pct < 25:
		return 25
	case pct < 50:
		return 50
	}
	return 100
}

// ATMStrike rounds the price to the nearest strike on the interval grid,
// down by default, up when roundUp is set.
func ATMStrike(price, interval float64, roundUp bool) float64 {
	if interval <= 0 {
		return price
	}
	if roundUp {
		return math.Ceil(price/interval) * interval
	}
	return math.Floor(price/interval) * interval
}

// ExpiryDate returns the nearest option expiry for an instrument class:
// weekly Thursday for indices (rolling to next week after the 15:00 cutoff
// on expiry day), last Thursday of the month for equities.
func ExpiryDate(class types.InstrumentClass, now time.Time) time.Time {
	if class == types.ClassIndex {
		days := (int(time.Thursday) - int(now.Weekday()) + 7) % 7
		if days == 0 && now.Hour() >= 15 {
			days = 7
		}
		return now.AddDate(0, 0, days)
	}
	expiry := lastThursday(now.Year(), now.Month())
	if now.After(expiry) {
		next := now.AddDate(0, 1, 0)
		expiry = lastThursday(next.Year(), next.Month())
	}
	return expiry
}

// CommodityExpiry returns the last calendar day of the current month, the
// placeholder MCX futures expiry until contract data is wired in.
func CommodityExpiry(now time.Time) time.Time {
	firstOfNext := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1)
}

func lastThursday(year int, month time.Month) time.Time {
	d := time.Date(year, month, 1, 15, 0, 0, 0, time.Local).AddDate(0, 1, -1)
	for d.Weekday() != time.Thursday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// FormatExpiry renders an expiry as DDMMMYYYY, the AlgoMojo wire format.
func FormatExpiry(t time.Time) string {
	return strings.ToUpper(t.Format("02Jan2006"))
}

// ContractSymbol builds the broker-side option identifier,
// e.g. NIFTY-27AUG2026-24500-CE.
func ContractSymbol(underlying string, expiry time.Time, strike float64, typ OptionType) string {
	return fmt.Sprintf("%s-%s-%d-%s", underlying, FormatExpiry(expiry), int(strike), typ)
}
