// Package dex derives the program-derived addresses the Drift-shaped venue
// expects: the global state account, a wallet's per-sub-account user and
// user-stats accounts, and the spot/perp market and vault accounts. Every
// helper is a thin wrapper over solana.FindProgramAddress with the seed
// layout the on-chain program defines.
package dex

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

func u16LE(value uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, value)
	return buf
}

// DeriveStatePDA finds the venue's single global state account.
func DeriveStatePDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("drift_state")}, programID)
}

// DeriveSignerPDA finds the PDA the program signs vault transfers with.
func DeriveSignerPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("drift_signer")}, programID)
}

// DeriveUserPDA finds a wallet's user account for one sub-account.
func DeriveUserPDA(programID solana.PublicKey, authority solana.PublicKey, subAccountID uint16) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		[]byte("user"),
		authority.Bytes(),
		u16LE(subAccountID),
	}, programID)
}

// DeriveUserStatsPDA finds a wallet's single user-stats account, shared
// across all of its sub-accounts.
func DeriveUserStatsPDA(programID solana.PublicKey, authority solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		[]byte("user_stats"),
		authority.Bytes(),
	}, programID)
}

// DerivePerpMarketPDA finds a perp market's account.
func DerivePerpMarketPDA(programID solana.PublicKey, marketIndex uint16) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		[]byte("perp_market"),
		u16LE(marketIndex),
	}, programID)
}

// DeriveSpotMarketPDA finds a spot market's account.
func DeriveSpotMarketPDA(programID solana.PublicKey, marketIndex uint16) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		[]byte("spot_market"),
		u16LE(marketIndex),
	}, programID)
}

// DeriveSpotMarketVaultPDA finds the token vault backing a spot market.
func DeriveSpotMarketVaultPDA(programID solana.PublicKey, marketIndex uint16) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		[]byte("spot_market_vault"),
		u16LE(marketIndex),
	}, programID)
}

// MustDeriveUserPDA panics on derivation failure; only worth calling where
// the program ID is a compile-time constant and failure would mean a
// programmer error, not an operator-facing one.
func MustDeriveUserPDA(programID solana.PublicKey, authority solana.PublicKey, subAccountID uint16) solana.PublicKey {
	pk, _, err := DeriveUserPDA(programID, authority, subAccountID)
	if err != nil {
		panic(fmt.Errorf("derive user PDA: %w", err))
	}
	return pk
}

// MustDeriveUserStatsPDA panics on derivation failure; see MustDeriveUserPDA.
func MustDeriveUserStatsPDA(programID solana.PublicKey, authority solana.PublicKey) solana.PublicKey {
	pk, _, err := DeriveUserStatsPDA(programID, authority)
	if err != nil {
		panic(fmt.Errorf("derive user stats PDA: %w", err))
	}
	return pk
}
