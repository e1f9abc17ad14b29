// Package jitproxy builds and sends the three instructions the on-chain
// jit-proxy program exposes: jit (C1, fill a taker's auctioning order),
// arb_perp (cross two makers' resting orders against each other), and
// check_order_constraints (a read-only simulation guard). Discriminators,
// account ordering, and payload layout are the Go-native stand-in for what
// an Anchor IDL code generator would otherwise produce for this program;
// none of that generated code exists in this repository, so the layout is
// written out by hand against the documented instruction ABI.
package jitproxy

import (
	"bytes"
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/coldbell/jitter/internal/driftclient"
	"github.com/coldbell/jitter/internal/driftmodel"
)

// jit, arb_perp and check_order_constraints discriminators are
// sha256("global:<ix_name>")[:8], Anchor's standard instruction tag.
var (
	jitDiscriminator                    = [8]byte{0x63, 0x2a, 0x61, 0x8c, 0x98, 0x3e, 0xa7, 0xea}
	arbPerpDiscriminator                = [8]byte{0x74, 0x69, 0x8a, 0x63, 0x1c, 0xab, 0x27, 0xe1}
	checkOrderConstraintsDiscriminator  = [8]byte{0xb7, 0xae, 0x8e, 0xf5, 0x05, 0x1d, 0xcf, 0x02}
)

// Client is the sending half of this package: it composes the remaining
// accounts, builds the instruction, and submits it through a DriftClient.
// Strategies (internal/strategy) talk to a Client, not to the bare builder
// functions, mirroring the original SDK's JitProxyClient.jit().
type Client struct {
	programID solana.PublicKey
	drift     driftclient.DriftClient
}

// NewClient binds a jit-proxy program ID to a DriftClient for sending.
func NewClient(programID solana.PublicKey, drift driftclient.DriftClient) *Client {
	return &Client{programID: programID, drift: drift}
}

// Jit resolves accounts, builds, and sends a jit instruction for one taker
// order (spec §4.1/§4.2 combined).
func (c *Client) Jit(ctx context.Context, params driftmodel.JitIxParams) (driftclient.TxResult, error) {
	accounts, err := ResolveJitAccounts(ctx, c.drift, params)
	if err != nil {
		return driftclient.TxResult{}, fmt.Errorf("resolve jit accounts: %w", err)
	}
	ix, err := BuildJit(c.programID, accounts, params)
	if err != nil {
		return driftclient.TxResult{}, fmt.Errorf("build jit instruction: %w", err)
	}
	return c.drift.SendIxs(ctx, ix)
}

// ArbPerp resolves accounts, builds, and sends an arb_perp instruction
// crossing two makers' resting orders in one perp market.
func (c *Client) ArbPerp(ctx context.Context, marketIndex uint16, makers [2]driftmodel.MakerInfo, referrer *driftmodel.ReferrerInfo) (driftclient.TxResult, error) {
	accounts, err := ResolveArbPerpAccounts(ctx, c.drift, marketIndex, makers, referrer)
	if err != nil {
		return driftclient.TxResult{}, fmt.Errorf("resolve arb_perp accounts: %w", err)
	}
	ix, err := BuildArbPerp(c.programID, accounts, marketIndex)
	if err != nil {
		return driftclient.TxResult{}, fmt.Errorf("build arb_perp instruction: %w", err)
	}
	return c.drift.SendIxs(ctx, ix)
}

// CheckOrderConstraints resolves accounts, builds, and sends a simulation
// guard covering a batch of per-market inventory bounds.
func (c *Client) CheckOrderConstraints(ctx context.Context, constraints []driftmodel.OrderConstraint, subAccountID *uint16) (driftclient.TxResult, error) {
	accounts, err := ResolveCheckOrderConstraintsAccounts(ctx, c.drift, constraints, subAccountID)
	if err != nil {
		return driftclient.TxResult{}, fmt.Errorf("resolve check_order_constraints accounts: %w", err)
	}
	ix, err := BuildCheckOrderConstraints(c.programID, accounts, constraints)
	if err != nil {
		return driftclient.TxResult{}, fmt.Errorf("build check_order_constraints instruction: %w", err)
	}
	return c.drift.SendIxs(ctx, ix)
}

// jitPayload is the Borsh body following the jit discriminator. Option<T>
// fields are Go pointers: nil encodes as the 0x00 Borsh "None" tag,
// non-nil as 0x01 followed by the value.
type jitPayload struct {
	TakerOrderID uint32
	MaxPosition  int64
	MinPosition  int64
	Bid          int64
	Ask          int64
	PriceType    driftmodel.PriceType
	PostOnly     *driftmodel.PostOnlyParam `bin:"optional"`
}

// BuildJit encodes a jit instruction against an already-resolved account
// list. accounts must be in the exact order ResolveJitAccounts produces:
// [state, user, user_stats, taker, taker_stats, authority(signer),
// drift_program, ...remaining, referrer?, referrer_stats?, spot vaults?].
func BuildJit(programID solana.PublicKey, accounts []*solana.AccountMeta, params driftmodel.JitIxParams) (solana.Instruction, error) {
	postOnly := params.PostOnly
	payload := jitPayload{
		TakerOrderID: params.TakerOrderID,
		MaxPosition:  params.MaxPosition,
		MinPosition:  params.MinPosition,
		Bid:          params.Bid,
		Ask:          params.Ask,
		PriceType:    params.PriceType,
		PostOnly:     &postOnly,
	}
	data, err := encodeInstruction(jitDiscriminator, payload)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

type arbPerpPayload struct {
	MarketIndex uint16
}

// BuildArbPerp encodes an arb_perp instruction. accounts must be in the
// order ResolveArbPerpAccounts produces.
func BuildArbPerp(programID solana.PublicKey, accounts []*solana.AccountMeta, marketIndex uint16) (solana.Instruction, error) {
	data, err := encodeInstruction(arbPerpDiscriminator, arbPerpPayload{MarketIndex: marketIndex})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

type orderConstraintWire struct {
	MaxPosition int64
	MinPosition int64
	MarketIndex uint16
	MarketKind  driftmodel.MarketKind
}

type checkOrderConstraintsPayload struct {
	Constraints []orderConstraintWire
}

// BuildCheckOrderConstraints encodes a check_order_constraints instruction
// over a batch of per-market bounds. accounts must be in the order
// ResolveCheckOrderConstraintsAccounts produces.
func BuildCheckOrderConstraints(programID solana.PublicKey, accounts []*solana.AccountMeta, constraints []driftmodel.OrderConstraint) (solana.Instruction, error) {
	wire := make([]orderConstraintWire, len(constraints))
	for i, c := range constraints {
		wire[i] = orderConstraintWire{
			MaxPosition: c.MaxPosition,
			MinPosition: c.MinPosition,
			MarketIndex: c.MarketIndex,
			MarketKind:  c.MarketKind,
		}
	}
	data, err := encodeInstruction(checkOrderConstraintsDiscriminator, checkOrderConstraintsPayload{Constraints: wire})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

func encodeInstruction(discriminator [8]byte, payload any) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(discriminator[:])
	if err := bin.NewBorshEncoder(buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("borsh encode: %w", err)
	}
	return buf.Bytes(), nil
}
