package auction

import (
	"testing"

	"github.com/coldbell/jitter/internal/driftmodel"
)

func limitOrder(direction driftmodel.Direction, startPrice, endPrice int64, duration uint8) driftmodel.Order {
	return driftmodel.Order{
		Status:            driftmodel.OrderStatusOpen,
		Direction:         direction,
		OrderType:         driftmodel.OrderTypeLimit,
		Slot:              1000,
		AuctionDuration:   duration,
		AuctionStartPrice: startPrice,
		AuctionEndPrice:   endPrice,
	}
}

func TestHasAuctionPrice(t *testing.T) {
	o := limitOrder(driftmodel.DirectionLong, 100, 90, 10)
	if !HasAuctionPrice(o, 1000) {
		t.Fatal("expected in-window at start slot")
	}
	if !HasAuctionPrice(o, 1009) {
		t.Fatal("expected in-window at last slot")
	}
	if HasAuctionPrice(o, 1010) {
		t.Fatal("expected out-of-window one past the end")
	}
	zeroDuration := limitOrder(driftmodel.DirectionLong, 100, 90, 0)
	if HasAuctionPrice(zeroDuration, 1000) {
		t.Fatal("zero duration order never has an auction price")
	}
}

func TestGetAuctionPriceLinearSweep(t *testing.T) {
	// A long taker's order sweeps its sell price down from 100 to 90 over
	// 11 slots (10 steps of -1).
	o := limitOrder(driftmodel.DirectionLong, 100_000_000, 90_000_000, 11)
	if got := GetAuctionPrice(o, 1000, 0); got != 100_000_000 {
		t.Fatalf("slot 0: got %d want 100_000_000", got)
	}
	if got := GetAuctionPrice(o, 1010, 0); got != 90_000_000 {
		t.Fatalf("last slot: got %d want 90_000_000", got)
	}
	mid := GetAuctionPrice(o, 1005, 0)
	if mid >= 100_000_000 || mid <= 90_000_000 {
		t.Fatalf("mid-auction price %d should be strictly between start and end", mid)
	}
}

func TestGetAuctionPriceOutsideWindowFallsBackToLimitPrice(t *testing.T) {
	o := limitOrder(driftmodel.DirectionLong, 100, 90, 10)
	o.Price = 95
	if got := GetAuctionPrice(o, 2000, 0); got != 95 {
		t.Fatalf("got %d want order.Price 95", got)
	}
}

func TestComputeBuyerCrossesWhenPriceSweepsBelowBid(t *testing.T) {
	// Taker is selling (Short); maker buys. Auction sweeps price down from
	// 105 to 95 over 11 slots (10 steps of -1). Maker bid is 98, which the
	// sweep reaches at step 7.
	o := limitOrder(driftmodel.DirectionShort, 105_000_000, 95_000_000, 11)
	params := driftmodel.JitParams{Bid: 98_000_000, Ask: 102_000_000, PriceType: driftmodel.PriceTypeLimit}

	details := Compute(o, 0, params)
	if !details.WillCross {
		t.Fatal("expected auction to cross")
	}
	if details.MakerDirection != makerDirectionBuy {
		t.Fatalf("taker selling should make the maker buy, got %v", details.MakerDirection)
	}
	want := GetAuctionPrice(o, o.Slot+uint64(details.SlotsUntilCross), 0)
	if want > details.MakerBid {
		t.Fatalf("auction price %d at predicted cross slot should be <= bid %d", want, details.MakerBid)
	}
	if details.SlotsUntilCross == 0 {
		t.Fatalf("expected some slots to elapse before cross given the spread")
	}
}

func TestComputeNeverCrossesWhenQuoteIsOutOfRange(t *testing.T) {
	o := limitOrder(driftmodel.DirectionShort, 105_000_000, 95_000_000, 11)
	params := driftmodel.JitParams{Bid: 50_000_000, Ask: 200_000_000, PriceType: driftmodel.PriceTypeLimit}

	details := Compute(o, 0, params)
	if details.WillCross {
		t.Fatal("bid far below the whole sweep should never cross")
	}
	if details.SlotsUntilCross != o.AuctionDuration {
		t.Fatalf("SlotsUntilCross should default to auction duration, got %d", details.SlotsUntilCross)
	}
}

func TestComputeOracleOffsetOrder(t *testing.T) {
	o := driftmodel.Order{
		Status:            driftmodel.OrderStatusOpen,
		Direction:         driftmodel.DirectionLong,
		OrderType:         driftmodel.OrderTypeOracle,
		Slot:              500,
		AuctionDuration:   6,
		AuctionStartPrice: 1_000_000,  // +1.0 offset from oracle
		AuctionEndPrice:   -1_000_000, // -1.0 offset from oracle
	}
	oraclePrice := int64(100_000_000)
	params := driftmodel.JitParams{Bid: 99_500_000, Ask: 100_500_000, PriceType: driftmodel.PriceTypeLimit}

	details := Compute(o, oraclePrice, params)
	if details.AuctionStartPrice != oraclePrice+1_000_000 {
		t.Fatalf("start price = %d, want oracle+offset = %d", details.AuctionStartPrice, oraclePrice+1_000_000)
	}
	if details.AuctionEndPrice != oraclePrice-1_000_000 {
		t.Fatalf("end price = %d, want oracle-offset = %d", details.AuctionEndPrice, oraclePrice-1_000_000)
	}
}

func TestSlotsUntilCrossMonotoneInMakerBid(t *testing.T) {
	o := limitOrder(driftmodel.DirectionShort, 105_000_000, 95_000_000, 11)

	lowBid := Compute(o, 0, driftmodel.JitParams{Bid: 96_000_000, Ask: 200_000_000, PriceType: driftmodel.PriceTypeLimit})
	highBid := Compute(o, 0, driftmodel.JitParams{Bid: 102_000_000, Ask: 200_000_000, PriceType: driftmodel.PriceTypeLimit})

	if !lowBid.WillCross || !highBid.WillCross {
		t.Fatal("both bids should eventually cross a sweep from 105 to 95")
	}
	if highBid.SlotsUntilCross > lowBid.SlotsUntilCross {
		t.Fatalf("a higher bid should cross no later than a lower one: high=%d low=%d", highBid.SlotsUntilCross, lowBid.SlotsUntilCross)
	}
}
