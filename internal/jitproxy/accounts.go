package jitproxy

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/coldbell/jitter/internal/driftclient"
	"github.com/coldbell/jitter/internal/driftmodel"
)

func meta(pk solana.PublicKey, writable, signer bool) *solana.AccountMeta {
	return &solana.AccountMeta{PublicKey: pk, IsWritable: writable, IsSigner: signer}
}

func findOrder(taker driftmodel.UserAccountSnapshot, orderID uint32) (driftmodel.Order, bool) {
	for _, o := range taker.Orders {
		if o.OrderID == orderID {
			return o, true
		}
	}
	return driftmodel.Order{}, false
}

// ResolveJitAccounts composes the account list for a jit instruction per
// spec §4.1/§4.2: the fixed prefix (state, maker user/user_stats, taker
// user/user_stats, authority signer, drift_program), then the
// Drift-client-expanded oracle/market accounts for the taker's order, then
// — in this exact trailing order — the referrer pair (if the taker has
// one) and, for a spot order, the order's and the quote market's vaults.
func ResolveJitAccounts(ctx context.Context, drift driftclient.DriftClient, params driftmodel.JitIxParams) ([]*solana.AccountMeta, error) {
	subAccountID := drift.ActiveSubAccountID()
	if params.SubAccountID != nil {
		subAccountID = *params.SubAccountID
	}

	makerUser := drift.GetUserAccountPublicKey(subAccountID)
	makerStats := drift.GetUserStatsPublicKey()
	makerUserAccount, err := drift.GetUserAccount(ctx, subAccountID)
	if err != nil {
		return nil, err
	}

	accounts := []*solana.AccountMeta{
		meta(drift.GetStatePublicKey(), false, false),
		meta(makerUser, true, false),
		meta(makerStats, true, false),
		meta(params.TakerKey, true, false),
		meta(params.TakerStatsKey, true, false),
		meta(drift.WalletPublicKey(), false, true),
		meta(drift.DriftProgramID(), false, false),
	}

	req := driftclient.RemainingAccountsRequest{
		UserAccounts: []driftmodel.UserAccountSnapshot{params.Taker, makerUserAccount},
	}
	order, found := findOrder(params.Taker, params.TakerOrderID)
	if found {
		switch order.MarketKind {
		case driftmodel.MarketKindSpot:
			req.WritableSpotMarketIndexes = []uint16{order.MarketIndex, driftmodel.QuoteSpotMarketIndex}
		case driftmodel.MarketKindPerp:
			req.WritablePerpMarketIndexes = []uint16{order.MarketIndex}
		}
	}
	remaining, err := drift.GetRemainingAccounts(ctx, req)
	if err != nil {
		return nil, err
	}
	accounts = append(accounts, remaining...)

	if params.ReferrerInfo != nil {
		accounts = append(accounts,
			meta(params.ReferrerInfo.Referrer, true, false),
			meta(params.ReferrerInfo.ReferrerStats, true, false),
		)
	}

	if found && order.MarketKind == driftmodel.MarketKindSpot {
		spotMarket, err := drift.GetSpotMarketAccount(ctx, order.MarketIndex)
		if err != nil {
			return nil, err
		}
		quoteMarket, err := drift.GetQuoteSpotMarketAccount(ctx)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, meta(spotMarket.Vault, false, false), meta(quoteMarket.Vault, false, false))
	}

	return accounts, nil
}

// ResolveArbPerpAccounts composes the account list for an arb_perp
// instruction per spec §4.1/§4.2: state, the crossing wallet's own user
// and user_stats, the wallet as signer, drift_program, then the
// Drift-client-expanded perp market/oracle accounts, then each maker's
// {maker, maker_stats} pair, then the referrer pair if supplied and not
// already one of the two makers.
func ResolveArbPerpAccounts(ctx context.Context, drift driftclient.DriftClient, marketIndex uint16, makers [2]driftmodel.MakerInfo, referrer *driftmodel.ReferrerInfo) ([]*solana.AccountMeta, error) {
	subAccountID := drift.ActiveSubAccountID()
	selfUser := drift.GetUserAccountPublicKey(subAccountID)
	selfStats := drift.GetUserStatsPublicKey()
	selfUserAccount, err := drift.GetUserAccount(ctx, subAccountID)
	if err != nil {
		return nil, err
	}

	accounts := []*solana.AccountMeta{
		meta(drift.GetStatePublicKey(), false, false),
		meta(selfUser, true, false),
		meta(selfStats, true, false),
		meta(drift.WalletPublicKey(), false, true),
		meta(drift.DriftProgramID(), false, false),
	}

	remaining, err := drift.GetRemainingAccounts(ctx, driftclient.RemainingAccountsRequest{
		UserAccounts:              []driftmodel.UserAccountSnapshot{selfUserAccount, makers[0].MakerUserAccount, makers[1].MakerUserAccount},
		WritablePerpMarketIndexes: []uint16{marketIndex},
	})
	if err != nil {
		return nil, err
	}
	accounts = append(accounts, remaining...)

	isMaker := make(map[solana.PublicKey]struct{}, len(makers))
	for _, m := range makers {
		accounts = append(accounts, meta(m.Maker, true, false), meta(m.MakerStats, true, false))
		isMaker[m.Maker] = struct{}{}
	}

	if referrer != nil {
		if _, already := isMaker[referrer.Referrer]; !already {
			accounts = append(accounts, meta(referrer.Referrer, true, false), meta(referrer.ReferrerStats, true, false))
		}
	}

	return accounts, nil
}

// ResolveCheckOrderConstraintsAccounts composes the account list for the
// read-only check_order_constraints guard: the signer's own user account,
// followed by the Drift-client-expanded readable perp/spot market
// accounts named by the constraint batch's market indexes, per spec
// §4.1/§4.2.
func ResolveCheckOrderConstraintsAccounts(ctx context.Context, drift driftclient.DriftClient, constraints []driftmodel.OrderConstraint, subAccountID *uint16) ([]*solana.AccountMeta, error) {
	resolved := drift.ActiveSubAccountID()
	if subAccountID != nil {
		resolved = *subAccountID
	}
	userAccount, err := drift.GetUserAccount(ctx, resolved)
	if err != nil {
		return nil, err
	}

	var readablePerp, readableSpot []uint16
	for _, c := range constraints {
		switch c.MarketKind {
		case driftmodel.MarketKindPerp:
			readablePerp = append(readablePerp, c.MarketIndex)
		case driftmodel.MarketKindSpot:
			readableSpot = append(readableSpot, c.MarketIndex)
		}
	}

	remaining, err := drift.GetRemainingAccounts(ctx, driftclient.RemainingAccountsRequest{
		UserAccounts:              []driftmodel.UserAccountSnapshot{userAccount},
		ReadablePerpMarketIndexes: readablePerp,
		ReadableSpotMarketIndexes: readableSpot,
	})
	if err != nil {
		return nil, err
	}

	accounts := []*solana.AccountMeta{meta(drift.GetUserAccountPublicKey(resolved), false, false)}
	return append(accounts, remaining...), nil
}
