package jitproxy

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/coldbell/jitter/internal/driftclient"
	"github.com/coldbell/jitter/internal/driftmodel"
)

func TestBuildJitDataLayout(t *testing.T) {
	taker := solana.NewWallet().PublicKey()
	maker := solana.NewWallet().PublicKey()
	program := solana.NewWallet().PublicKey()

	accounts := []*solana.AccountMeta{
		meta(program, false, false),
		meta(maker, true, false),
	}

	params := driftmodel.JitIxParams{
		TakerKey:     taker,
		TakerOrderID: 42,
		MinPosition:  -1_000,
		MaxPosition:  1_000,
		Bid:          99_500_000,
		Ask:          100_500_000,
		PostOnly:     driftmodel.PostOnlyMustPostOnly,
		PriceType:    driftmodel.PriceTypeLimit,
	}

	ix, err := BuildJit(program, accounts, params)
	if err != nil {
		t.Fatalf("BuildJit: %v", err)
	}

	data, err := ix.Data()
	if err != nil {
		t.Fatalf("ix.Data: %v", err)
	}
	if len(data) < 8 {
		t.Fatalf("instruction data too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:8], jitDiscriminator[:]) {
		t.Fatalf("discriminator mismatch: got %x want %x", data[:8], jitDiscriminator)
	}

	if ix.ProgramID() != program {
		t.Fatalf("program id mismatch: got %s want %s", ix.ProgramID(), program)
	}
	accountsGot := ix.Accounts()
	if len(accountsGot) != len(accounts) {
		t.Fatalf("account count mismatch: got %d want %d", len(accountsGot), len(accounts))
	}
}

func TestBuildArbPerpDiscriminator(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	ix, err := BuildArbPerp(program, []*solana.AccountMeta{meta(program, false, false)}, 3)
	if err != nil {
		t.Fatalf("BuildArbPerp: %v", err)
	}
	data, err := ix.Data()
	if err != nil {
		t.Fatalf("ix.Data: %v", err)
	}
	if !bytes.Equal(data[:8], arbPerpDiscriminator[:]) {
		t.Fatalf("discriminator mismatch: got %x want %x", data[:8], arbPerpDiscriminator)
	}
}

func TestBuildCheckOrderConstraintsEncodesEachEntry(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	constraints := []driftmodel.OrderConstraint{
		{MaxPosition: 10, MinPosition: -10, MarketIndex: 0, MarketKind: driftmodel.MarketKindPerp},
		{MaxPosition: 20, MinPosition: -20, MarketIndex: 1, MarketKind: driftmodel.MarketKindSpot},
	}
	ix, err := BuildCheckOrderConstraints(program, []*solana.AccountMeta{meta(program, false, false)}, constraints)
	if err != nil {
		t.Fatalf("BuildCheckOrderConstraints: %v", err)
	}
	data, err := ix.Data()
	if err != nil {
		t.Fatalf("ix.Data: %v", err)
	}
	if !bytes.Equal(data[:8], checkOrderConstraintsDiscriminator[:]) {
		t.Fatalf("discriminator mismatch: got %x want %x", data[:8], checkOrderConstraintsDiscriminator)
	}
	// discriminator + u32 vec length prefix + 2 entries worth of fields.
	if len(data) <= 8+4 {
		t.Fatalf("payload too short to hold %d constraints: %d bytes", len(constraints), len(data))
	}
}

// fakeDriftClient is a hand-written stand-in for DriftClient; it exercises
// only the methods ResolveJitAccounts, ResolveArbPerpAccounts, and
// ResolveCheckOrderConstraintsAccounts call.
type fakeDriftClient struct {
	driftclient.DriftClient
	state          solana.PublicKey
	wallet         solana.PublicKey
	userStats      solana.PublicKey
	driftProgramID solana.PublicKey
	subAccounts    map[uint16]solana.PublicKey
	remaining      []*solana.AccountMeta
	spotVaults     map[uint16]solana.PublicKey
}

func (f *fakeDriftClient) GetStatePublicKey() solana.PublicKey     { return f.state }
func (f *fakeDriftClient) WalletPublicKey() solana.PublicKey       { return f.wallet }
func (f *fakeDriftClient) GetUserStatsPublicKey() solana.PublicKey { return f.userStats }
func (f *fakeDriftClient) DriftProgramID() solana.PublicKey        { return f.driftProgramID }
func (f *fakeDriftClient) ActiveSubAccountID() uint16              { return 0 }
func (f *fakeDriftClient) GetUserAccountPublicKey(subAccountID uint16) solana.PublicKey {
	return f.subAccounts[subAccountID]
}
func (f *fakeDriftClient) GetUserAccount(ctx context.Context, subAccountID uint16) (driftmodel.UserAccountSnapshot, error) {
	return driftmodel.UserAccountSnapshot{}, nil
}
func (f *fakeDriftClient) GetRemainingAccounts(ctx context.Context, req driftclient.RemainingAccountsRequest) ([]*solana.AccountMeta, error) {
	return f.remaining, nil
}
func (f *fakeDriftClient) GetSpotMarketAccount(ctx context.Context, marketIndex uint16) (*driftclient.SpotMarketAccount, error) {
	return &driftclient.SpotMarketAccount{MarketIndex: marketIndex, Vault: f.spotVaults[marketIndex]}, nil
}
func (f *fakeDriftClient) GetQuoteSpotMarketAccount(ctx context.Context) (*driftclient.SpotMarketAccount, error) {
	return &driftclient.SpotMarketAccount{MarketIndex: driftmodel.QuoteSpotMarketIndex, Vault: f.spotVaults[driftmodel.QuoteSpotMarketIndex]}, nil
}

func TestResolveJitAccountsOrderingAndReferrer(t *testing.T) {
	f := &fakeDriftClient{
		state:          solana.NewWallet().PublicKey(),
		wallet:         solana.NewWallet().PublicKey(),
		userStats:      solana.NewWallet().PublicKey(),
		driftProgramID: solana.NewWallet().PublicKey(),
		subAccounts:    map[uint16]solana.PublicKey{0: solana.NewWallet().PublicKey()},
		remaining:      []*solana.AccountMeta{meta(solana.NewWallet().PublicKey(), false, false)},
	}

	taker := solana.NewWallet().PublicKey()
	takerStats := solana.NewWallet().PublicKey()
	referrer := solana.NewWallet().PublicKey()
	referrerStats := solana.NewWallet().PublicKey()

	params := driftmodel.JitIxParams{
		TakerKey:      taker,
		TakerStatsKey: takerStats,
		ReferrerInfo:  &driftmodel.ReferrerInfo{Referrer: referrer, ReferrerStats: referrerStats},
	}

	accounts, err := ResolveJitAccounts(context.Background(), f, params)
	if err != nil {
		t.Fatalf("ResolveJitAccounts: %v", err)
	}

	want := []solana.PublicKey{
		f.state,
		f.subAccounts[0],
		f.userStats,
		taker,
		takerStats,
		f.wallet,
		f.driftProgramID,
	}
	// ...remaining... then referrer pair trailing, per spec §4.2.
	wantTail := []solana.PublicKey{referrer, referrerStats}

	if len(accounts) != len(want)+len(f.remaining)+len(wantTail) {
		t.Fatalf("account count mismatch: got %d want %d", len(accounts), len(want)+len(f.remaining)+len(wantTail))
	}
	for i, pk := range want {
		if accounts[i].PublicKey != pk {
			t.Fatalf("account[%d] = %s, want %s", i, accounts[i].PublicKey, pk)
		}
	}
	if accounts[5].IsSigner != true {
		t.Fatalf("wallet account must be marked signer")
	}
	tailStart := len(want) + len(f.remaining)
	for i, pk := range wantTail {
		if accounts[tailStart+i].PublicKey != pk {
			t.Fatalf("tail account[%d] = %s, want %s", i, accounts[tailStart+i].PublicKey, pk)
		}
	}
}

func TestResolveJitAccountsWithoutReferrerOmitsReferrerAccounts(t *testing.T) {
	f := &fakeDriftClient{
		state:          solana.NewWallet().PublicKey(),
		wallet:         solana.NewWallet().PublicKey(),
		userStats:      solana.NewWallet().PublicKey(),
		driftProgramID: solana.NewWallet().PublicKey(),
		subAccounts:    map[uint16]solana.PublicKey{0: solana.NewWallet().PublicKey()},
	}
	params := driftmodel.JitIxParams{
		TakerKey:      solana.NewWallet().PublicKey(),
		TakerStatsKey: solana.NewWallet().PublicKey(),
	}
	accounts, err := ResolveJitAccounts(context.Background(), f, params)
	if err != nil {
		t.Fatalf("ResolveJitAccounts: %v", err)
	}
	if len(accounts) != 7 {
		t.Fatalf("expected 7 accounts with no referrer and no remaining, got %d", len(accounts))
	}
}

// TestResolveJitAccountsSpotOrderAppendsVaults is spec §8 scenario S6: a
// spot order's remaining accounts must end with the order market's vault
// then the quote market's vault, read-only, in that exact order.
func TestResolveJitAccountsSpotOrderAppendsVaults(t *testing.T) {
	orderMarketVault := solana.NewWallet().PublicKey()
	quoteVault := solana.NewWallet().PublicKey()
	f := &fakeDriftClient{
		state:          solana.NewWallet().PublicKey(),
		wallet:         solana.NewWallet().PublicKey(),
		userStats:      solana.NewWallet().PublicKey(),
		driftProgramID: solana.NewWallet().PublicKey(),
		subAccounts:    map[uint16]solana.PublicKey{0: solana.NewWallet().PublicKey()},
		spotVaults: map[uint16]solana.PublicKey{
			5: orderMarketVault,
			driftmodel.QuoteSpotMarketIndex: quoteVault,
		},
	}

	taker := solana.NewWallet().PublicKey()
	params := driftmodel.JitIxParams{
		TakerKey:     taker,
		TakerOrderID: 7,
		Taker: driftmodel.UserAccountSnapshot{
			Orders: []driftmodel.Order{{OrderID: 7, MarketKind: driftmodel.MarketKindSpot, MarketIndex: 5}},
		},
	}

	accounts, err := ResolveJitAccounts(context.Background(), f, params)
	if err != nil {
		t.Fatalf("ResolveJitAccounts: %v", err)
	}
	if len(accounts) < 2 {
		t.Fatalf("expected at least 2 trailing vault accounts, got %d total", len(accounts))
	}
	lastTwo := accounts[len(accounts)-2:]
	if lastTwo[0].PublicKey != orderMarketVault || lastTwo[0].IsWritable {
		t.Fatalf("expected order market vault read-only last-but-one, got %+v", lastTwo[0])
	}
	if lastTwo[1].PublicKey != quoteVault || lastTwo[1].IsWritable {
		t.Fatalf("expected quote market vault read-only last, got %+v", lastTwo[1])
	}
}

var errBoom = errors.New("boom")

type erroringDriftClient struct {
	fakeDriftClient
}

func (e *erroringDriftClient) GetUserAccount(ctx context.Context, subAccountID uint16) (driftmodel.UserAccountSnapshot, error) {
	return driftmodel.UserAccountSnapshot{}, errBoom
}

func TestResolveJitAccountsPropagatesUserAccountError(t *testing.T) {
	f := &erroringDriftClient{}
	_, err := ResolveJitAccounts(context.Background(), f, driftmodel.JitIxParams{})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
}
