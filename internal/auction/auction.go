// Package auction computes, from a taker's auctioning order and the
// current oracle price, the details an operator's maker quote needs to
// decide whether and when it crosses: the auction's start/end price, its
// per-slot step, the maker's own effective bid/ask, and the earliest slot
// at which the two cross. Every comparison here happens at the chain's
// fixed-point price precision; shopspring/decimal is used only where a
// caller wants a human-readable number for a log line.
package auction

import (
	"github.com/coldbell/jitter/internal/driftmodel"
)

// Direction the maker must trade to cross a taker's order.
type makerDirection uint8

const (
	makerDirectionBuy makerDirection = iota
	makerDirectionSell
)

// Details is the full output of the auction calculator (C3).
type Details struct {
	MakerDirection    makerDirection
	AuctionStartPrice int64
	AuctionEndPrice   int64
	StepSize          int64
	MakerBid          int64
	MakerAsk          int64
	WillCross         bool
	SlotsUntilCross   uint8
	OraclePrice       int64
}

// HasAuctionPrice reports whether an order is inside its auction window at
// the given slot. A zero auction_duration means the order never auctions.
func HasAuctionPrice(o driftmodel.Order, slot uint64) bool {
	if o.AuctionDuration == 0 {
		return false
	}
	return slot < o.Slot+uint64(o.AuctionDuration)
}

// GetAuctionPrice returns the order's execution price at slot, given the
// current oracle price. Outside the auction window it falls back to the
// order's literal limit price.
func GetAuctionPrice(o driftmodel.Order, slot uint64, oraclePrice int64) int64 {
	if !HasAuctionPrice(o, slot) {
		return int64(o.Price)
	}
	if o.OrderType == driftmodel.OrderTypeOracle {
		return GetAuctionPriceForOracleOffsetAuction(o, slot, oraclePrice)
	}
	return interpolate(o.AuctionStartPrice, o.AuctionEndPrice, o.Slot, o.AuctionDuration, slot)
}

// GetAuctionPriceForOracleOffsetAuction returns oracle_price plus the
// linearly-interpolated offset an Oracle-type order's auction_start_price
// and auction_end_price encode.
func GetAuctionPriceForOracleOffsetAuction(o driftmodel.Order, slot uint64, oraclePrice int64) int64 {
	offset := interpolate(o.AuctionStartPrice, o.AuctionEndPrice, o.Slot, o.AuctionDuration, slot)
	return oraclePrice + offset
}

func interpolate(start, end int64, orderSlot uint64, duration uint8, slot uint64) int64 {
	if duration <= 1 {
		return end
	}
	elapsed := int64(slot) - int64(orderSlot)
	steps := int64(duration) - 1
	if elapsed <= 0 {
		return start
	}
	if elapsed >= steps {
		return end
	}
	step := (end - start) / steps
	return start + step*elapsed
}

// Compute derives Details for an order against the operator's params and
// the current oracle price, per spec §4.3. oraclePrice must already be
// scaled to driftmodel.PricePrecision.
func Compute(o driftmodel.Order, oraclePrice int64, params driftmodel.JitParams) Details {
	dir := makerDirectionBuy
	if o.Direction == driftmodel.DirectionLong {
		dir = makerDirectionSell
	}

	var startPrice, endPrice int64
	if o.OrderType == driftmodel.OrderTypeOracle {
		startPrice = GetAuctionPriceForOracleOffsetAuction(o, o.Slot, oraclePrice)
		endSlot := o.Slot
		if o.AuctionDuration > 0 {
			endSlot = o.Slot + uint64(o.AuctionDuration) - 1
		}
		endPrice = GetAuctionPriceForOracleOffsetAuction(o, endSlot, oraclePrice)
	} else {
		startPrice = o.AuctionStartPrice
		endPrice = o.AuctionEndPrice
	}

	var stepSize int64
	if o.AuctionDuration > 1 {
		stepSize = (endPrice - startPrice) / (int64(o.AuctionDuration) - 1)
	}

	bid, ask := makerQuote(oraclePrice, params)

	details := Details{
		MakerDirection:    dir,
		AuctionStartPrice: startPrice,
		AuctionEndPrice:   endPrice,
		StepSize:          stepSize,
		MakerBid:          bid,
		MakerAsk:          ask,
		SlotsUntilCross:   o.AuctionDuration,
		OraclePrice:       oraclePrice,
	}

	for k := uint8(0); k < o.AuctionDuration; k++ {
		price := GetAuctionPrice(o, o.Slot+uint64(k), oraclePrice)
		crossed := false
		if dir == makerDirectionBuy {
			crossed = price <= bid
		} else {
			crossed = price >= ask
		}
		if crossed {
			details.WillCross = true
			details.SlotsUntilCross = k
			break
		}
	}

	return details
}

func makerQuote(oraclePrice int64, params driftmodel.JitParams) (bid, ask int64) {
	if params.PriceType == driftmodel.PriceTypeOracle {
		return oraclePrice + params.Bid, oraclePrice + params.Ask
	}
	return params.Bid, params.Ask
}
