package gann

import "sort"

// Direction of a level crossing on the 0° angle.
type Direction string

const (
	BuyAbove  Direction = "buy_above"
	SellBelow Direction = "sell_below"
)

// Crossing reports the trade levels around a price and, when the price has
// moved past one of them, which side fired. Detection is side-effect free and
// instrument-agnostic; per-instrument trading rules belong to the caller.
type Crossing struct {
	Direction Direction
	Level     float64 // the level that was crossed
	BuyAbove  float64
	SellBelow float64
}

// TradeLevels scans the 0° angle only: buyAbove is the minimum level strictly
// greater than price, sellBelow the maximum strictly below. ok is false when
// the price sits outside the generated grid on either side.
func TradeLevels(ls *LevelSet, price float64) (buyAbove, sellBelow float64, ok bool) {
	if ls == nil {
		return 0, 0, false
	}
	seq, exists := ls.Levels["0°"]
	if !exists {
		return 0, 0, false
	}
	foundAbove, foundBelow := false, false
	for _, v := range seq {
		if v > price && (!foundAbove || v < buyAbove) {
			buyAbove = v
			foundAbove = true
		}
		if v < price && (!foundBelow || v > sellBelow) {
			sellBelow = v
			foundBelow = true
		}
	}
	return buyAbove, sellBelow, foundAbove && foundBelow
}

// Detect compares the current price against the trade levels computed at the
// level set's anchor. A price above the anchor's buyAbove level yields a
// BuyAbove crossing, below sellBelow a SellBelow crossing, otherwise nil.
func Detect(ls *LevelSet, price float64) *Crossing {
	if ls == nil || price <= 0 {
		return nil
	}
	buyAbove, sellBelow, ok := TradeLevels(ls, ls.Anchor)
	if !ok {
		return nil
	}
	switch {
	case price > buyAbove:
		return &Crossing{Direction: BuyAbove, Level: buyAbove, BuyAbove: buyAbove, SellBelow: sellBelow}
	case price < sellBelow:
		return &Crossing{Direction: SellBelow, Level: sellBelow, BuyAbove: buyAbove, SellBelow: sellBelow}
	}
	return nil
}

// Target is a candidate exit level contributed by one angle.
type Target struct {
	Angle Angle
	Price float64
}

// Targets collects per-angle exit levels: for buys, the closest unused level
// above entry on each angle; for sells, the closest unused level below
// sellBelow, seeded with the central value when it sits below sellBelow.
// The central seed is deliberately one-sided; there is no symmetric check for
// a central value above the entry.
// Buy targets sort ascending, sell targets descending, both truncated to n.
func Targets(ls *LevelSet, entry, sellBelow, price float64, n int) (buys, sells []Target) {
	if ls == nil || n <= 0 {
		return nil, nil
	}

	usedBuy := make(map[float64]struct{})
	for _, angle := range Angles {
		closest, found := 0.0, false
		for _, v := range ls.Levels[angle] {
			if v <= entry {
				continue
			}
			if _, used := usedBuy[v]; used {
				continue
			}
			if !found || v < closest {
				closest = v
				found = true
			}
		}
		if found {
			buys = append(buys, Target{Angle: angle, Price: closest})
			usedBuy[closest] = struct{}{}
		}
	}

	usedSell := make(map[float64]struct{})
	if central := CentralValue(price); central < sellBelow {
		sells = append(sells, Target{Angle: "0°", Price: central})
		usedSell[central] = struct{}{}
	}
	for _, angle := range Angles {
		highest, found := 0.0, false
		for _, v := range ls.Levels[angle] {
			if v >= sellBelow {
				continue
			}
			if _, used := usedSell[v]; used {
				continue
			}
			if !found || v > highest {
				highest = v
				found = true
			}
		}
		if found {
			sells = append(sells, Target{Angle: angle, Price: highest})
			usedSell[highest] = struct{}{}
		}
	}

	sort.Slice(buys, func(i, j int) bool { return buys[i].Price < buys[j].Price })
	sort.Slice(sells, func(i, j int) bool { return sells[i].Price > sells[j].Price })
	if len(buys) > n {
		buys = buys[:n]
	}
	if len(sells) > n {
		sells = sells[:n]
	}
	return buys, sells
}

// StopLosses derives protective stops from the trade levels: the long stop a
// buffer below sellBelow, the short stop a buffer above buyAbove.
func StopLosses(buyAbove, sellBelow, buffer float64) (long, short float64) {
	long = round2(sellBelow * (1 - buffer))
	short = round2(buyAbove * (1 + buffer))
	return long, short
}
