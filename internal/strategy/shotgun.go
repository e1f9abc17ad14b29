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

// Shotgun is C5: it fires a MustPostOnly jit at the operator's current
// quote once per attempt, as fast as the RPC round trip allows, for up to
// the order's auction window, and gives up the moment any attempt lands,
// is rejected for a terminal reason, or fails for a reason it can't
// classify. Params are re-read every attempt, so an operator narrowing or
// disabling a market mid-auction takes effect on the very next shot.
type Shotgun struct {
	base
	attempts       int
	successCooldown time.Duration
	failCooldown    time.Duration
}

// NewShotgun binds a Shotgun to its collaborators and timing knobs. attempts
// caps how many shots one order gets; successCooldown/failCooldown are how
// long the strategy waits before the dispatcher can hand it another order
// at the same signature (in practice: how long until it releases, since
// release happens at the end of the cooldown, not the start).
func NewShotgun(registry *dispatch.Registry, drift driftclient.DriftClient, jit JitSender, dispatcher *dispatch.Dispatcher, logger *slog.Logger, attempts int, successCooldown, failCooldown time.Duration) *Shotgun {
	return &Shotgun{
		base:            newBase(registry, drift, jit, dispatcher, logger),
		attempts:        attempts,
		successCooldown: successCooldown,
		failCooldown:    failCooldown,
	}
}

// SetDispatcher binds the Dispatcher built around s.FillTask; call this
// before the dispatcher starts processing events.
func (s *Shotgun) SetDispatcher(d *dispatch.Dispatcher) { s.setDispatcher(d) }

// FillTask satisfies dispatch.FillTask; pass s.FillTask to
// dispatch.NewDispatcher when the operator selects the shotgun strategy.
func (s *Shotgun) FillTask(ctx context.Context, taker driftmodel.UserAccountSnapshot, takerKey solana.PublicKey, order driftmodel.Order, orderSig string) {
	defer s.release.Release(orderSig)
	log := s.logger.With("strategy", "shotgun", "order_sig", orderSig, "taker", takerKey.String(), "order_id", order.OrderID)

	referrerInfo, err := s.resolveReferrer(ctx, taker)
	if err != nil {
		log.Warn("could not resolve referrer, proceeding without one", "err", err)
	}
	takerStatsKey := s.takerStatsKey(taker)

	attempts := s.attempts
	if int(order.AuctionDuration) < attempts {
		attempts = int(order.AuctionDuration)
	}

	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		params, ok := s.registry.ParamsFor(order.MarketKind, order.MarketIndex)
		if !ok {
			log.Info("params removed mid-auction, abandoning")
			return
		}
		if params.Disabled() {
			log.Info("market disabled mid-auction, abandoning")
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
			PostOnly:      driftmodel.PostOnlyMustPostOnly,
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
		default:
			log.Warn("unclassified send failure, abandoning", "attempt", i, "err", outcome.infraErr)
			sleepOrDone(ctx, s.failCooldown)
			return
		}
	}
	log.Info("exhausted attempts without a fill")
}
