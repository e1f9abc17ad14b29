package strategy

import (
	"context"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/coldbell/jitter/internal/auction"
	"github.com/coldbell/jitter/internal/dispatch"
	"github.com/coldbell/jitter/internal/driftclient"
	"github.com/coldbell/jitter/internal/driftmodel"
)

// Sniper is C6: instead of blasting the whole auction window, it predicts
// the slot the operator's quote will cross the auction's interpolated
// price, waits for it, and fires a short TryPostOnly retry tail right at
// that slot. A perp order is additionally abandoned up front if filling it
// would push the maker's own position past its configured bound, since
// there is no point racing a fill the operator's risk limits would reject.
type Sniper struct {
	base
	slots           driftclient.SlotSubscriber
	retries         int
	retryGap        time.Duration
	pollInterval    time.Duration
	successCooldown time.Duration
}

// NewSniper binds a Sniper to its collaborators and timing knobs.
func NewSniper(registry *dispatch.Registry, drift driftclient.DriftClient, jit JitSender, dispatcher *dispatch.Dispatcher, slots driftclient.SlotSubscriber, logger *slog.Logger, retries int, retryGap, pollInterval, successCooldown time.Duration) *Sniper {
	return &Sniper{
		base:            newBase(registry, drift, jit, dispatcher, logger),
		slots:           slots,
		retries:         retries,
		retryGap:        retryGap,
		pollInterval:    pollInterval,
		successCooldown: successCooldown,
	}
}

// SetDispatcher binds the Dispatcher built around s.FillTask; call this
// before the dispatcher starts processing events.
func (s *Sniper) SetDispatcher(d *dispatch.Dispatcher) { s.setDispatcher(d) }

// FillTask satisfies dispatch.FillTask; pass s.FillTask to
// dispatch.NewDispatcher when the operator selects the sniper strategy.
func (s *Sniper) FillTask(ctx context.Context, taker driftmodel.UserAccountSnapshot, takerKey solana.PublicKey, order driftmodel.Order, orderSig string) {
	defer s.release.Release(orderSig)
	log := s.logger.With("strategy", "sniper", "order_sig", orderSig, "taker", takerKey.String(), "order_id", order.OrderID)

	params, ok := s.registry.ParamsFor(order.MarketKind, order.MarketIndex)
	if !ok || params.Disabled() {
		log.Info("no live params for market, abandoning")
		return
	}

	if order.MarketKind == driftmodel.MarketKindPerp {
		if position, found := s.drift.GetPerpPosition(order.MarketIndex); found {
			if order.Direction == driftmodel.DirectionShort && position.BaseAssetAmount >= params.MaxPosition {
				log.Info("inventory already at max, abandoning", "position", position.BaseAssetAmount, "max_position", params.MaxPosition)
				return
			}
			if order.Direction == driftmodel.DirectionLong && position.BaseAssetAmount <= params.MinPosition {
				log.Info("inventory already at min, abandoning", "position", position.BaseAssetAmount, "min_position", params.MinPosition)
				return
			}
		}
	}

	referrerInfo, err := s.resolveReferrer(ctx, taker)
	if err != nil {
		log.Warn("could not resolve referrer, proceeding without one", "err", err)
	}
	takerStatsKey := s.takerStatsKey(taker)

	oraclePrice, err := s.oraclePriceFor(ctx, order)
	if err != nil {
		log.Warn("could not read oracle price, abandoning", "err", err)
		return
	}
	details := auction.Compute(order, oraclePrice, params)

	crossSlot, details := s.waitForSlotOrCrossOrExpiry(ctx, order, params, details)
	if crossSlot < 0 {
		log.Info("auction expired before crossing, abandoning")
		return
	}
	log.Debug("predicted crossing", "slot", crossSlot, "maker_bid", details.MakerBid, "maker_ask", details.MakerAsk)

	for i := 0; i < s.retries; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		params, ok = s.registry.ParamsFor(order.MarketKind, order.MarketIndex)
		if !ok || params.Disabled() {
			log.Info("params removed mid-auction, abandoning")
			return
		}

		ixParams := driftmodel.JitIxParams{
			TakerKey:      takerKey,
			TakerStatsKey: takerStatsKey,
			Taker:         taker,
			TakerOrderID:  order.OrderID,
			MinPosition:   params.MinPosition,
			MaxPosition:   params.MaxPosition,
			Bid:           params.Bid,
			Ask:           params.Ask,
			PostOnly:      driftmodel.PostOnlyTryPostOnly,
			PriceType:     params.PriceType,
			ReferrerInfo:  referrerInfo,
			SubAccountID:  params.SubAccountID,
		}

		outcome := s.attempt(ctx, ixParams)
		switch {
		case outcome.filled:
			log.Info("filled", "attempt", i, "tx_sig", outcome.result.TxSig.String(), "bid", auction.HumanPrice(params.Bid), "ask", auction.HumanPrice(params.Ask))
			sleepOrDone(ctx, s.successCooldown)
			return
		case outcome.classified:
			if driftmodel.IsTerminal(outcome.kind) {
				log.Info("terminal program error, abandoning", "attempt", i, "code", outcome.progErr.Code, "err", outcome.progErr)
				return
			}
			log.Debug("transient program error, retrying", "attempt", i, "code", outcome.progErr.Code)
			sleepOrDone(ctx, s.retryGap)
		default:
			log.Warn("unclassified send failure, abandoning", "attempt", i, "err", outcome.infraErr)
			sleepOrDone(ctx, s.successCooldown)
			return
		}
	}
	log.Info("exhausted retry tail without a fill")
}

// waitForSlotOrCrossOrExpiry polls the slot stream until the auction
// crosses the operator's quote or the order's auction window ends,
// recomputing Details on each observed slot against the registry's current
// params, since the oracle price (and therefore an Oracle-type order's
// auction prices) and the operator's quote can move between polls. It
// returns -1 once the order has expired without crossing.
func (s *Sniper) waitForSlotOrCrossOrExpiry(ctx context.Context, order driftmodel.Order, params driftmodel.JitParams, details auction.Details) (int64, auction.Details) {
	auctionEndSlot := order.Slot + uint64(order.AuctionDuration)
	if details.WillCross && order.Slot+uint64(details.SlotsUntilCross) <= s.slots.CurrentSlot() {
		return int64(s.slots.CurrentSlot()), details
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return -1, details
		case <-ticker.C:
			current := s.slots.CurrentSlot()
			if current > auctionEndSlot {
				return -1, details
			}
			oraclePrice, err := s.oraclePriceFor(ctx, order)
			if err != nil {
				s.logger.Warn("could not refresh oracle price while waiting for crossing", "err", err)
				continue
			}
			if latest, ok := s.registry.ParamsFor(order.MarketKind, order.MarketIndex); ok {
				params = latest
			}
			details = auction.Compute(order, oraclePrice, params)
			if details.WillCross && order.Slot+uint64(details.SlotsUntilCross) <= current {
				return int64(current), details
			}
		}
	}
}
