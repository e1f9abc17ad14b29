package driftclient

import (
	"github.com/gagliardetto/solana-go"

	"github.com/coldbell/jitter/internal/dex"
)

func statePDAFor(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return dex.DeriveStatePDA(programID)
}

func perpMarketPDAFor(programID solana.PublicKey, marketIndex uint16) (solana.PublicKey, uint8, error) {
	return dex.DerivePerpMarketPDA(programID, marketIndex)
}

func spotMarketPDAFor(programID solana.PublicKey, marketIndex uint16) (solana.PublicKey, uint8, error) {
	return dex.DeriveSpotMarketPDA(programID, marketIndex)
}

func mustUserPDA(programID solana.PublicKey, authority solana.PublicKey, subAccountID uint16) solana.PublicKey {
	return dex.MustDeriveUserPDA(programID, authority, subAccountID)
}

func mustUserStatsPDA(programID solana.PublicKey, authority solana.PublicKey) solana.PublicKey {
	return dex.MustDeriveUserStatsPDA(programID, authority)
}
