package driftclient

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/coldbell/jitter/internal/driftmodel"
)

var (
	pythPushOracleProgramID   = solana.MustPublicKeyFromBase58("pythWSnswVUd12oZpeFP8e9CVaEqJg25g1Vtc2biRsT")
	priceUpdateV2Discriminator = [8]byte{34, 241, 35, 99, 157, 126, 244, 205}

	errInvalidOracle            = errors.New("invalid oracle price update account")
	errUnexpectedOracleEncoding = errors.New("unexpected oracle payload encoding")
)

// decodePythPriceUpdateV2 parses a Pyth receiver program's PriceUpdateV2
// account into a price scaled to driftmodel.PricePrecision. now bounds the
// publish timestamp against clock skew (at most 5s in the future); an old
// publish timestamp is not rejected.
func decodePythPriceUpdateV2(account *rpc.Account, now time.Time) (int64, error) {
	if account == nil {
		return 0, errInvalidOracle
	}
	if !account.Owner.Equals(pythPushOracleProgramID) {
		return 0, fmt.Errorf("%w: owner mismatch (%s)", errInvalidOracle, account.Owner)
	}

	data := account.Data.GetBinary()
	if len(data) < len(priceUpdateV2Discriminator) {
		return 0, fmt.Errorf("%w: payload too short", errInvalidOracle)
	}
	if !bytes.Equal(data[:8], priceUpdateV2Discriminator[:]) {
		return 0, fmt.Errorf("%w: discriminator mismatch", errInvalidOracle)
	}

	offset := 8 + 32 // write_authority
	if len(data) < offset+1 {
		return 0, fmt.Errorf("%w: missing verification level", errInvalidOracle)
	}
	verificationVariant := data[offset]
	offset++
	if verificationVariant != 1 {
		return 0, fmt.Errorf("%w: verification level is not Full", errInvalidOracle)
	}

	offset += 32 // feed_id
	price, offset, err := readI64(data, offset)
	if err != nil {
		return 0, err
	}
	_, offset, err = readU64(data, offset) // conf
	if err != nil {
		return 0, err
	}
	exponent, offset, err := readI32(data, offset)
	if err != nil {
		return 0, err
	}
	publishTime, offset, err := readI64(data, offset)
	if err != nil {
		return 0, err
	}
	if offset > len(data) {
		return 0, fmt.Errorf("%w: truncated payload", errUnexpectedOracleEncoding)
	}

	if publishTime < 0 || publishTime > now.Unix()+5 {
		return 0, fmt.Errorf("%w: invalid publish time %d", errInvalidOracle, publishTime)
	}

	return scaleSignedPriceToPrecision(price, exponent)
}

func readU64(data []byte, offset int) (uint64, int, error) {
	if len(data) < offset+8 {
		return 0, offset, fmt.Errorf("%w: truncated u64 field", errInvalidOracle)
	}
	return binary.LittleEndian.Uint64(data[offset : offset+8]), offset + 8, nil
}

func readI64(data []byte, offset int) (int64, int, error) {
	u, next, err := readU64(data, offset)
	if err != nil {
		return 0, offset, err
	}
	return int64(u), next, nil
}

func readI32(data []byte, offset int) (int32, int, error) {
	if len(data) < offset+4 {
		return 0, offset, fmt.Errorf("%w: truncated i32 field", errInvalidOracle)
	}
	return int32(binary.LittleEndian.Uint32(data[offset : offset+4])), offset + 4, nil
}

// scaleSignedPriceToPrecision rescales a Pyth (price, exponent) pair to
// driftmodel.PricePrecision, mirroring the fixed-point rescale the teacher
// keeper applies when it converts a Pyth update into its own engine scale.
func scaleSignedPriceToPrecision(price int64, exponent int32) (int64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("%w: non-positive oracle price", errInvalidOracle)
	}
	if exponent > 38 || exponent < -38 {
		return 0, fmt.Errorf("%w: unsupported oracle exponent %d", errInvalidOracle, exponent)
	}

	base := new(big.Int).SetInt64(price)
	precision := new(big.Int).SetInt64(driftmodel.PricePrecision)
	absExp := exponent
	if absExp < 0 {
		absExp = -absExp
	}
	tenPow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(absExp)), nil)

	var out *big.Int
	if exponent >= 0 {
		out = new(big.Int).Mul(base, tenPow)
		out.Mul(out, precision)
	} else {
		out = new(big.Int).Mul(base, precision)
		out.Div(out, tenPow)
	}

	if !out.IsInt64() {
		return 0, fmt.Errorf("%w: scaled oracle price overflow", errInvalidOracle)
	}
	return out.Int64(), nil
}
