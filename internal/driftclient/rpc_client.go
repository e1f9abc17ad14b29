package driftclient

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/coldbell/jitter/internal/driftmodel"
)

// RPCConfig is the static, operator-supplied configuration an RPCDriftClient
// needs beyond a raw *rpc.Client and the signing key (passed separately to
// NewRPCDriftClient): program IDs, send options, and the per-market data this repository does not decode from raw account bytes
// because no generated account layout for this venue ships in this module
// (see DESIGN.md). Those values come from the operator instead, the same
// way the teacher's keeper falls back to an operator-supplied oracle map
// when it cannot or should not decode a feed itself.
type RPCConfig struct {
	JitProxyProgramID solana.PublicKey
	DriftProgramID    solana.PublicKey
	Commitment        rpc.CommitmentType
	SkipPreflight     bool

	ActiveSubAccountID uint16

	ComputeUnitLimit              uint32
	ComputeUnitPriceMicroLamports uint64

	PerpMinOrderSize  map[uint16]uint64
	SpotMinOrderSize  map[uint16]uint64
	SpotVaultByMarket map[uint16]solana.PublicKey
	QuoteSpotVault    solana.PublicKey

	PerpOracleAccountByMarket map[uint16]solana.PublicKey
	SpotOracleAccountByMarket map[uint16]solana.PublicKey
}

// RPCDriftClient is this repository's DriftClient implementation: it signs
// and sends transactions over a plain *rpc.Client, grounded on the
// teacher's sendTransaction/waitForConfirmation pattern, and derives the
// venue's PDAs via internal/dex.
type RPCDriftClient struct {
	cfg    RPCConfig
	rpc    *rpc.Client
	signer solana.PrivateKey

	statePDA solana.PublicKey
}

// NewRPCDriftClient binds a transport client and signer to RPCConfig,
// pre-deriving the venue's single state account.
func NewRPCDriftClient(rpcClient *rpc.Client, signer solana.PrivateKey, cfg RPCConfig) (*RPCDriftClient, error) {
	statePDA, _, err := statePDAFor(cfg.DriftProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive state PDA: %w", err)
	}
	return &RPCDriftClient{cfg: cfg, rpc: rpcClient, signer: signer, statePDA: statePDA}, nil
}

func (c *RPCDriftClient) Subscribe(ctx context.Context) error {
	_, err := c.rpc.GetHealth(ctx)
	return err
}

// SendIxs prepends a compute-budget limit/price pair when configured,
// signs with the wallet, and sends — the same shape as the teacher's
// sendTransaction, with confirmation awaited inline rather than left to the
// caller.
func (c *RPCDriftClient) SendIxs(ctx context.Context, ixs ...solana.Instruction) (TxResult, error) {
	instructions := make([]solana.Instruction, 0, len(ixs)+2)
	if c.cfg.ComputeUnitLimit > 0 {
		ix, err := computebudget.NewSetComputeUnitLimitInstruction(c.cfg.ComputeUnitLimit).ValidateAndBuild()
		if err != nil {
			return TxResult{}, fmt.Errorf("build compute unit limit instruction: %w", err)
		}
		instructions = append(instructions, ix)
	}
	if c.cfg.ComputeUnitPriceMicroLamports > 0 {
		ix, err := computebudget.NewSetComputeUnitPriceInstruction(c.cfg.ComputeUnitPriceMicroLamports).ValidateAndBuild()
		if err != nil {
			return TxResult{}, fmt.Errorf("build compute unit price instruction: %w", err)
		}
		instructions = append(instructions, ix)
	}
	instructions = append(instructions, ixs...)

	recent, err := c.rpc.GetLatestBlockhash(ctx, c.cfg.Commitment)
	if err != nil {
		return TxResult{}, fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, recent.Value.Blockhash, solana.TransactionPayer(c.signer.PublicKey()))
	if err != nil {
		return TxResult{}, fmt.Errorf("build transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if c.signer.PublicKey().Equals(key) {
			return &c.signer
		}
		return nil
	}); err != nil {
		return TxResult{}, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       c.cfg.SkipPreflight,
		PreflightCommitment: c.cfg.Commitment,
	})
	if err != nil {
		return TxResult{}, err
	}

	slot, err := c.waitForConfirmation(ctx, sig)
	if err != nil {
		return TxResult{}, fmt.Errorf("confirm %s: %w", sig, err)
	}
	return TxResult{TxSig: sig, Slot: slot}, nil
}

func (c *RPCDriftClient) waitForConfirmation(ctx context.Context, sig solana.Signature) (uint64, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
			result, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				continue
			}
			if len(result.Value) == 0 || result.Value[0] == nil {
				continue
			}
			status := result.Value[0]
			if status.Err != nil {
				return 0, fmt.Errorf("transaction failed: %v", status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed || status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return status.Slot, nil
			}
		}
	}
}

// GetRemainingAccounts expands every market index named in the request,
// plus every market index appearing in the supplied user accounts' open
// orders, into its market account, preceded by its oracle account when one
// is configured for that market. Writable lists mark the market account
// writable; oracle accounts and every other market account are appended
// read-only. This is this
// repository's own simplified stand-in for the full chain-wide account
// resolution a generated Drift client performs — see DESIGN.md.
func (c *RPCDriftClient) GetRemainingAccounts(ctx context.Context, req RemainingAccountsRequest) ([]*solana.AccountMeta, error) {
	writablePerp := toSet(req.WritablePerpMarketIndexes)
	writableSpot := toSet(req.WritableSpotMarketIndexes)
	perpSeen := toSet(req.WritablePerpMarketIndexes, req.ReadablePerpMarketIndexes)
	spotSeen := toSet(req.WritableSpotMarketIndexes, req.ReadableSpotMarketIndexes)

	for _, u := range req.UserAccounts {
		for _, o := range u.Orders {
			switch o.MarketKind {
			case driftmodel.MarketKindPerp:
				perpSeen[o.MarketIndex] = struct{}{}
			case driftmodel.MarketKindSpot:
				spotSeen[o.MarketIndex] = struct{}{}
			}
		}
	}

	var metas []*solana.AccountMeta
	for marketIndex := range perpSeen {
		_, writable := writablePerp[marketIndex]
		if oracle, ok := c.cfg.PerpOracleAccountByMarket[marketIndex]; ok {
			metas = append(metas, meta(oracle, false, false))
		}
		marketPDA, _, err := perpMarketPDAFor(c.cfg.DriftProgramID, marketIndex)
		if err != nil {
			return nil, fmt.Errorf("derive perp market %d PDA: %w", marketIndex, err)
		}
		metas = append(metas, meta(marketPDA, writable, false))
	}
	for marketIndex := range spotSeen {
		_, writable := writableSpot[marketIndex]
		if oracle, ok := c.cfg.SpotOracleAccountByMarket[marketIndex]; ok {
			metas = append(metas, meta(oracle, false, false))
		}
		marketPDA, _, err := spotMarketPDAFor(c.cfg.DriftProgramID, marketIndex)
		if err != nil {
			return nil, fmt.Errorf("derive spot market %d PDA: %w", marketIndex, err)
		}
		metas = append(metas, meta(marketPDA, writable, false))
	}

	return metas, nil
}

func (c *RPCDriftClient) GetPerpMarketAccount(ctx context.Context, marketIndex uint16) (*PerpMarketAccount, error) {
	return &PerpMarketAccount{MarketIndex: marketIndex, MinOrderSize: c.cfg.PerpMinOrderSize[marketIndex]}, nil
}

func (c *RPCDriftClient) GetSpotMarketAccount(ctx context.Context, marketIndex uint16) (*SpotMarketAccount, error) {
	return &SpotMarketAccount{
		MarketIndex:  marketIndex,
		MinOrderSize: c.cfg.SpotMinOrderSize[marketIndex],
		Vault:        c.cfg.SpotVaultByMarket[marketIndex],
	}, nil
}

func (c *RPCDriftClient) GetQuoteSpotMarketAccount(ctx context.Context) (*SpotMarketAccount, error) {
	return &SpotMarketAccount{
		MarketIndex:  driftmodel.QuoteSpotMarketIndex,
		MinOrderSize: c.cfg.SpotMinOrderSize[driftmodel.QuoteSpotMarketIndex],
		Vault:        c.cfg.QuoteSpotVault,
	}, nil
}

// GetUserAccount returns a minimal snapshot of the maker's own user
// account carrying only its authority, whatever the sub-account. Fetching
// and decoding the
// maker's live open orders isn't required for any jit-proxy instruction
// this client builds — only the taker's orders matter — so this never
// round-trips to the chain.
func (c *RPCDriftClient) GetUserAccount(ctx context.Context, subAccountID uint16) (driftmodel.UserAccountSnapshot, error) {
	return driftmodel.UserAccountSnapshot{Authority: c.signer.PublicKey()}, nil
}

func (c *RPCDriftClient) GetUserAccountPublicKey(subAccountID uint16) solana.PublicKey {
	return mustUserPDA(c.cfg.DriftProgramID, c.signer.PublicKey(), subAccountID)
}

func (c *RPCDriftClient) GetUserStatsPublicKey() solana.PublicKey {
	return mustUserStatsPDA(c.cfg.DriftProgramID, c.signer.PublicKey())
}

func (c *RPCDriftClient) GetStatePublicKey() solana.PublicKey {
	return c.statePDA
}

func (c *RPCDriftClient) GetOraclePriceForPerpMarket(ctx context.Context, marketIndex uint16) (int64, error) {
	return c.fetchOraclePrice(ctx, c.cfg.PerpOracleAccountByMarket[marketIndex])
}

func (c *RPCDriftClient) GetOraclePriceForSpotMarket(ctx context.Context, marketIndex uint16) (int64, error) {
	return c.fetchOraclePrice(ctx, c.cfg.SpotOracleAccountByMarket[marketIndex])
}

func (c *RPCDriftClient) fetchOraclePrice(ctx context.Context, oracleAccount solana.PublicKey) (int64, error) {
	if oracleAccount.IsZero() {
		return 0, fmt.Errorf("no oracle account configured")
	}
	result, err := c.rpc.GetAccountInfo(ctx, oracleAccount)
	if err != nil {
		return 0, fmt.Errorf("get oracle account %s: %w", oracleAccount, err)
	}
	if result == nil || result.Value == nil {
		return 0, fmt.Errorf("oracle account %s not found", oracleAccount)
	}
	return decodePythPriceUpdateV2(result.Value, time.Now())
}

// GetUserStatsAccount decodes only the referrer field off a taker's
// user_stats account; every other field of that account is irrelevant to
// the Jitter core's referral-crediting decision.
func (c *RPCDriftClient) GetUserStatsAccount(ctx context.Context, authority solana.PublicKey) (driftmodel.UserStatsSnapshot, error) {
	statsPDA := mustUserStatsPDA(c.cfg.DriftProgramID, authority)
	result, err := c.rpc.GetAccountInfo(ctx, statsPDA)
	if err != nil {
		return driftmodel.UserStatsSnapshot{}, fmt.Errorf("get user stats account %s: %w", statsPDA, err)
	}
	if result == nil || result.Value == nil {
		return driftmodel.UserStatsSnapshot{}, nil
	}
	data := result.Value.Data.GetBinary()
	const referrerOffset = 8 + 32 // discriminator + authority
	if len(data) < referrerOffset+32 {
		return driftmodel.UserStatsSnapshot{}, nil
	}
	var referrer solana.PublicKey
	copy(referrer[:], data[referrerOffset:referrerOffset+32])
	return driftmodel.UserStatsSnapshot{Referrer: referrer}, nil
}

// GetPerpPosition is a stub: this process does not maintain a live decode
// of the maker's own positions, so it always reports no position
// (found=false) and the Sniper's inventory short-circuit never triggers.
func (c *RPCDriftClient) GetPerpPosition(marketIndex uint16) (driftmodel.PerpPosition, bool) {
	return driftmodel.PerpPosition{MarketIndex: marketIndex}, false
}

func (c *RPCDriftClient) ProgramID() solana.PublicKey       { return c.cfg.JitProxyProgramID }
func (c *RPCDriftClient) DriftProgramID() solana.PublicKey  { return c.cfg.DriftProgramID }
func (c *RPCDriftClient) WalletPublicKey() solana.PublicKey { return c.signer.PublicKey() }
func (c *RPCDriftClient) ActiveSubAccountID() uint16        { return c.cfg.ActiveSubAccountID }

func toSet(lists ...[]uint16) map[uint16]struct{} {
	out := make(map[uint16]struct{})
	for _, list := range lists {
		for _, v := range list {
			out[v] = struct{}{}
		}
	}
	return out
}

func meta(pk solana.PublicKey, writable, signer bool) *solana.AccountMeta {
	return &solana.AccountMeta{PublicKey: pk, IsWritable: writable, IsSigner: signer}
}
