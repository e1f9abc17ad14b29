// Package strategy implements the two fill strategies a Dispatcher (C4)
// launches once per still-auctioning order: Shotgun (C5), which fires
// repeatedly across the whole auction window, and Sniper (C6), which
// predicts the crossing slot and waits for it. Both embed base, which
// resolves a taker's referrer once per fill task and classifies a jit
// send's outcome the same way.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/coldbell/jitter/internal/dex"
	"github.com/coldbell/jitter/internal/dispatch"
	"github.com/coldbell/jitter/internal/driftclient"
	"github.com/coldbell/jitter/internal/driftmodel"
)

// sleepOrDone waits out d, returning early if ctx is canceled first — every
// cooldown in this package goes through this instead of a bare time.Sleep
// so shutdown isn't blocked behind a strategy's post-attempt pause.
func sleepOrDone(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// JitSender is the sending half of internal/jitproxy this package depends
// on through an interface, mirroring how internal/dispatch only depends on
// driftclient.DriftClient rather than a concrete type.
type JitSender interface {
	Jit(ctx context.Context, params driftmodel.JitIxParams) (driftclient.TxResult, error)
}

// releaser is the one piece of *dispatch.Dispatcher a fill task needs:
// releasing its order signature on every exit path.
type releaser interface {
	Release(orderSig string)
}

// base is the shared state and helpers both strategies embed. One Shotgun
// or Sniper serves every fill task the dispatcher launches: FillTask runs
// concurrently, one goroutine per order signature, against the same base,
// whose fields are only read once SetDispatcher has been called.
type base struct {
	registry *dispatch.Registry
	drift    driftclient.DriftClient
	jit      JitSender
	release  releaser
	logger   *slog.Logger
}

// newBase is shared construction logic for NewShotgun/NewSniper.
func newBase(registry *dispatch.Registry, drift driftclient.DriftClient, jit JitSender, release releaser, logger *slog.Logger) base {
	return base{registry: registry, drift: drift, jit: jit, release: release, logger: logger}
}

// setDispatcher binds the dispatcher a strategy releases order signatures
// on. Wiring is circular — the dispatcher needs the strategy's FillTask
// method before it exists, and the strategy needs the dispatcher it was
// just built with — so cmd/jitter constructs the strategy first, passing
// this in once the dispatcher is built around its FillTask method value.
func (b *base) setDispatcher(d *dispatch.Dispatcher) {
	b.release = d
}

// resolveReferrer fetches the taker's user-stats account and, if it names
// one, derives the referrer's own accounts: the referrer's user PDA at
// sub-account 0 and its user-stats PDA, the pair the on-chain program
// credits — not the referrer's raw authority key.
func (b *base) resolveReferrer(ctx context.Context, taker driftmodel.UserAccountSnapshot) (*driftmodel.ReferrerInfo, error) {
	stats, err := b.drift.GetUserStatsAccount(ctx, taker.Authority)
	if err != nil {
		return nil, fmt.Errorf("get user stats account: %w", err)
	}
	if !stats.HasReferrer() {
		return nil, nil
	}
	driftProgramID := b.drift.DriftProgramID()
	referrerUser, _, err := dex.DeriveUserPDA(driftProgramID, stats.Referrer, 0)
	if err != nil {
		return nil, fmt.Errorf("derive referrer user pda: %w", err)
	}
	referrerStats, _, err := dex.DeriveUserStatsPDA(driftProgramID, stats.Referrer)
	if err != nil {
		return nil, fmt.Errorf("derive referrer user-stats pda: %w", err)
	}
	return &driftmodel.ReferrerInfo{Referrer: referrerUser, ReferrerStats: referrerStats}, nil
}

// takerStatsKey derives the taker's own user-stats PDA — the dispatcher
// only hands a fill task the taker's snapshot and key, not this derived
// account, so every strategy derives it once per fill task.
func (b *base) takerStatsKey(taker driftmodel.UserAccountSnapshot) solana.PublicKey {
	return dex.MustDeriveUserStatsPDA(b.drift.DriftProgramID(), taker.Authority)
}

// oraclePriceFor reads the current oracle price for an order's market,
// scaled to driftmodel.PricePrecision.
func (b *base) oraclePriceFor(ctx context.Context, order driftmodel.Order) (int64, error) {
	if order.MarketKind == driftmodel.MarketKindSpot {
		return b.drift.GetOraclePriceForSpotMarket(ctx, order.MarketIndex)
	}
	return b.drift.GetOraclePriceForPerpMarket(ctx, order.MarketIndex)
}

// attemptOutcome classifies what sending one jit instruction returned.
type attemptOutcome struct {
	result      driftclient.TxResult
	filled      bool
	progErr     *driftmodel.ProgramError
	kind        driftmodel.Kind
	classified  bool
	infraErr    error
}

// attempt sends one jit instruction and classifies the result per spec
// §4.5/§4.6/§7: a nil infraErr and filled=true means the order was taken;
// classified=true means a recognized program error was parsed out (the
// caller branches on kind/IsTerminal); classified=false alongside a
// non-nil infraErr means an unrecognized, non-program failure — RPC
// timeout, serialization, signature error — which every strategy treats
// as its own terminal-for-this-attempt case per spec §7 kind 4.
func (b *base) attempt(ctx context.Context, params driftmodel.JitIxParams) attemptOutcome {
	res, err := b.jit.Jit(ctx, params)
	if err == nil {
		return attemptOutcome{result: res, filled: true}
	}
	if progErr, ok := driftmodel.ParseProgramError(err); ok {
		return attemptOutcome{progErr: progErr, kind: driftmodel.Classify(progErr.Code), classified: true, infraErr: err}
	}
	return attemptOutcome{infraErr: err}
}
