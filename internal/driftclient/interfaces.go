// Package driftclient defines the collaborator interfaces the Jitter core
// consumes (spec §6.5) — generic chain primitives, subscription feeds, and
// transaction send/sign — plus a concrete solana-go-backed implementation
// of each (RPCDriftClient, WSAuctionSubscriber, WSSlotSubscriber) so the
// repository is runnable end to end. internal/dispatch and
// internal/strategy depend only on the interfaces in this file.
package driftclient

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/coldbell/jitter/internal/driftmodel"
)

// TxResult is what a successful transaction send returns: the signature
// and the slot the RPC node observed it land in.
type TxResult struct {
	TxSig solana.Signature
	Slot  uint64
}

// PerpMarketAccount carries the fields the core needs off a perp market
// account.
type PerpMarketAccount struct {
	MarketIndex  uint16
	MinOrderSize uint64
}

// SpotMarketAccount carries the fields the core needs off a spot market
// account.
type SpotMarketAccount struct {
	MarketIndex  uint16
	MinOrderSize uint64
	Vault        solana.PublicKey
}

// RemainingAccountsRequest asks the Drift client to expand a set of user
// accounts into the oracle/market accounts the on-chain program needs to
// read or write, per spec §4.2. Writable lists must be disjoint from
// readable; a market index appearing in both a writable and readable list
// is the caller's bug, not this interface's to resolve.
type RemainingAccountsRequest struct {
	UserAccounts              []driftmodel.UserAccountSnapshot
	WritableSpotMarketIndexes []uint16
	WritablePerpMarketIndexes []uint16
	ReadableSpotMarketIndexes []uint16
	ReadablePerpMarketIndexes []uint16
}

// DriftClient is the generic chain-primitive collaborator of spec §6.5:
// account decoding, oracle price lookup, transaction signing and send.
// The Jitter core treats it as an external dependency; RPCDriftClient is
// this repository's own implementation of it.
type DriftClient interface {
	Subscribe(ctx context.Context) error
	SendIxs(ctx context.Context, ixs ...solana.Instruction) (TxResult, error)

	GetRemainingAccounts(ctx context.Context, req RemainingAccountsRequest) ([]*solana.AccountMeta, error)

	GetPerpMarketAccount(ctx context.Context, marketIndex uint16) (*PerpMarketAccount, error)
	GetSpotMarketAccount(ctx context.Context, marketIndex uint16) (*SpotMarketAccount, error)
	GetQuoteSpotMarketAccount(ctx context.Context) (*SpotMarketAccount, error)

	GetUserAccount(ctx context.Context, subAccountID uint16) (driftmodel.UserAccountSnapshot, error)
	GetUserAccountPublicKey(subAccountID uint16) solana.PublicKey
	GetUserStatsPublicKey() solana.PublicKey
	GetStatePublicKey() solana.PublicKey

	// DriftProgramID is the venue program jit-proxy CPIs into — distinct
	// from ProgramID(), which is jit-proxy's own program id and the
	// instruction's program field. The jit account list carries both.
	DriftProgramID() solana.PublicKey

	GetOraclePriceForPerpMarket(ctx context.Context, marketIndex uint16) (int64, error)
	GetOraclePriceForSpotMarket(ctx context.Context, marketIndex uint16) (int64, error)

	GetUserStatsAccount(ctx context.Context, authority solana.PublicKey) (driftmodel.UserStatsSnapshot, error)
	GetPerpPosition(marketIndex uint16) (driftmodel.PerpPosition, bool)

	ProgramID() solana.PublicKey
	WalletPublicKey() solana.PublicKey
	ActiveSubAccountID() uint16
}

// AuctionEvent is one (taker_snapshot, taker_key, slot) delivery from the
// AuctionSubscriber, per spec §4.4/§6.5.
type AuctionEvent struct {
	Taker    driftmodel.UserAccountSnapshot
	TakerKey solana.PublicKey
	Slot     uint64
}

// AuctionSubscriber is the subscription fan-in feed of spec §2/§6.5.
type AuctionSubscriber interface {
	Subscribe(ctx context.Context) (<-chan AuctionEvent, error)
}

// SlotSubscriber feeds the Sniper strategy (C6) monotonically increasing
// slots, per spec §4.6/§6.5.
type SlotSubscriber interface {
	Subscribe(ctx context.Context) (<-chan uint64, error)
	CurrentSlot() uint64
}
