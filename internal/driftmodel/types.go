// Package driftmodel holds the read-only data model the Jitter core reacts
// to: taker orders, auction prices, and the operator's per-market JIT
// parameters. Decoding of the underlying on-chain account bytes into these
// types is a Drift-client concern (see internal/driftclient); this package
// only defines the shapes.
package driftmodel

import (
	"strconv"

	"github.com/gagliardetto/solana-go"
)

// PricePrecision is the fixed-point scale of every price field in this
// package: a price of 1_000_000 means 1.0 in human terms.
const PricePrecision = 1_000_000

// QuoteSpotMarketIndex is the spot market index reserved for the quote
// currency (USDC) on every Drift-shaped venue.
const QuoteSpotMarketIndex uint16 = 0

// MarketKind distinguishes perpetual futures markets from spot markets.
type MarketKind uint8

const (
	MarketKindPerp MarketKind = iota
	MarketKindSpot
)

func (k MarketKind) String() string {
	if k == MarketKindSpot {
		return "Spot"
	}
	return "Perp"
}

// Direction is the taker's side on the order being auctioned.
type Direction uint8

const (
	DirectionLong Direction = iota
	DirectionShort
)

func (d Direction) String() string {
	if d == DirectionShort {
		return "Short"
	}
	return "Long"
}

// OrderStatus mirrors the on-chain order lifecycle far enough for the
// dispatcher to gate on "still fillable".
type OrderStatus uint8

const (
	OrderStatusInit OrderStatus = iota
	OrderStatusOpen
	OrderStatusFilled
	OrderStatusCanceled
)

// OrderType distinguishes the handful of order types the auction
// calculator cares about; anything beyond Limit/Oracle is treated like
// Limit for auction-price purposes.
type OrderType uint8

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
	OrderTypeTriggerMarket
	OrderTypeTriggerLimit
	OrderTypeOracle
)

// PriceType selects whether JitParams.Bid/Ask are absolute prices or
// signed offsets from the oracle price.
type PriceType uint8

const (
	PriceTypeLimit PriceType = iota
	PriceTypeOracle
)

func (p PriceType) String() string {
	if p == PriceTypeOracle {
		return "Oracle"
	}
	return "Limit"
}

// PostOnlyParam is transported verbatim to the on-chain program; its
// meaning is entirely the program's to enforce.
type PostOnlyParam uint8

const (
	PostOnlyNone PostOnlyParam = iota
	PostOnlyMustPostOnly
	PostOnlyTryPostOnly
	PostOnlySlide
)

// Order is the read-only view of a taker's auctioning order that the
// subscription fan-in delivers inside a UserAccountSnapshot.
type Order struct {
	OrderID               uint32
	Status                OrderStatus
	MarketKind            MarketKind
	MarketIndex           uint16
	Direction             Direction
	OrderType             OrderType
	Slot                  uint64
	AuctionDuration       uint8
	AuctionStartPrice     int64
	AuctionEndPrice       int64
	Price                 uint64
	BaseAssetAmount       uint64
	BaseAssetAmountFilled uint64
}

// RemainingSize is the unfilled portion of the order.
func (o Order) RemainingSize() uint64 {
	if o.BaseAssetAmountFilled >= o.BaseAssetAmount {
		return 0
	}
	return o.BaseAssetAmount - o.BaseAssetAmountFilled
}

// UserAccountSnapshot is the taker's user account as delivered by the
// AuctionSubscriber — a point-in-time copy, not a live handle.
type UserAccountSnapshot struct {
	Authority solana.PublicKey
	Orders    []Order
}

// UserStatsSnapshot carries the fields the Jitter needs off a taker's
// user-stats account.
type UserStatsSnapshot struct {
	Referrer solana.PublicKey
}

// HasReferrer reports whether the taker's stats account names a referrer.
func (s UserStatsSnapshot) HasReferrer() bool {
	return !s.Referrer.IsZero()
}

// ReferrerInfo is the pair of accounts the on-chain program needs to credit
// a referral, present only when the taker has one.
type ReferrerInfo struct {
	Referrer      solana.PublicKey
	ReferrerStats solana.PublicKey
}

// PerpPosition is the maker's own current position in a perp market, used
// by the Sniper's inventory short-circuit.
type PerpPosition struct {
	MarketIndex     uint16
	BaseAssetAmount int64
}

// JitParams are the operator-configured quote and inventory bounds for one
// market, held in the params registry (C7) and re-read on every dispatch
// and every retry.
type JitParams struct {
	Bid           int64
	Ask           int64
	MinPosition   int64
	MaxPosition   int64
	PriceType     PriceType
	SubAccountID  *uint16
}

// Disabled reports the operator-disabled sentinel: both inventory bounds
// pinned to zero means "don't take on any position here".
func (p JitParams) Disabled() bool {
	return p.MaxPosition == 0 && p.MinPosition == 0
}

// JitIxParams is the fully-resolved input to the JIT instruction builder
// for one fill attempt.
type JitIxParams struct {
	TakerKey      solana.PublicKey
	TakerStatsKey solana.PublicKey
	Taker         UserAccountSnapshot
	TakerOrderID  uint32
	MinPosition   int64
	MaxPosition   int64
	Bid           int64
	Ask           int64
	PostOnly      PostOnlyParam
	PriceType     PriceType
	ReferrerInfo  *ReferrerInfo
	SubAccountID  *uint16
}

// OrderConstraint is one entry of the CheckOrderConstraints payload.
type OrderConstraint struct {
	MaxPosition int64
	MinPosition int64
	MarketIndex uint16
	MarketKind  MarketKind
}

// MakerInfo is one maker leg of an ArbPerp instruction.
type MakerInfo struct {
	Maker            solana.PublicKey
	MakerStats       solana.PublicKey
	MakerUserAccount UserAccountSnapshot
}

// OrderSignature is the stable identifier of an in-progress fill attempt.
func OrderSignature(takerKey solana.PublicKey, orderID uint32) string {
	return takerKey.String() + "-" + strconv.FormatUint(uint64(orderID), 10)
}
