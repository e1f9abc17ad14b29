package driftclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/ws"

	"github.com/coldbell/jitter/internal/driftmodel"
)

// userAccountDiscriminator is the Anchor account discriminator
// (sha256("account:User")[:8]) the program tags every user account with;
// it doubles as the memcmp filter that scopes the program subscription to
// user accounts only.
var userAccountDiscriminator = [8]byte{159, 117, 95, 227, 239, 151, 58, 236}

// WSAuctionSubscriber watches every user account the Drift program owns
// and emits one AuctionEvent per account update, reconnecting on drop the
// same way the teacher's SSE price stream does: an outer retry loop around
// an inner consume call, logging and backing off between attempts.
type WSAuctionSubscriber struct {
	wsURL           string
	driftProgramID  solana.PublicKey
	commitment      rpc.CommitmentType
	reconnectDelay  time.Duration
	logger          *slog.Logger
}

// NewWSAuctionSubscriber builds a subscriber against the venue's program
// account feed. reconnectDelay defaults to 3s, matching the teacher's own
// default Pyth stream reconnect interval.
func NewWSAuctionSubscriber(wsURL string, driftProgramID solana.PublicKey, commitment rpc.CommitmentType, reconnectDelay time.Duration, logger *slog.Logger) *WSAuctionSubscriber {
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}
	return &WSAuctionSubscriber{
		wsURL:          wsURL,
		driftProgramID: driftProgramID,
		commitment:     commitment,
		reconnectDelay: reconnectDelay,
		logger:         logger,
	}
}

func (s *WSAuctionSubscriber) Subscribe(ctx context.Context) (<-chan AuctionEvent, error) {
	out := make(chan AuctionEvent, 64)
	go s.run(ctx, out)
	return out, nil
}

func (s *WSAuctionSubscriber) run(ctx context.Context, out chan<- AuctionEvent) {
	defer close(out)
	for {
		if ctx.Err() != nil {
			return
		}
		err := s.consume(ctx, out)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("auction subscription disconnected", "err", err, "retry_in", s.reconnectDelay.String())
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *WSAuctionSubscriber) consume(ctx context.Context, out chan<- AuctionEvent) error {
	client, err := ws.Connect(ctx, s.wsURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	sub, err := client.ProgramSubscribeWithOpts(
		s.driftProgramID,
		s.commitment,
		solana.EncodingBase64,
		[]rpc.RPCFilter{{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: userAccountDiscriminator[:]}}},
	)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		got, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		if got == nil {
			continue
		}

		authority := got.Value.Pubkey

		snapshot, err := decodeUserAccountSnapshot(got.Value.Account.Data.GetBinary())
		if err != nil {
			s.logger.Debug("skipping undecodable user account update", "account", authority, "err", err)
			continue
		}

		select {
		case out <- AuctionEvent{Taker: snapshot, TakerKey: authority, Slot: got.Context.Slot}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// decodeUserAccountSnapshot decodes only the authority field off a user
// account. This venue's on-chain User account layout (and in particular
// its fixed-size order slots) has no generated definition in this
// repository — see DESIGN.md — so orders always come back empty here; a
// production deployment would source them from a generated Drift client
// instead of this simplified stand-in.
func decodeUserAccountSnapshot(data []byte) (driftmodel.UserAccountSnapshot, error) {
	const authorityOffset = 8
	if len(data) < authorityOffset+32 {
		return driftmodel.UserAccountSnapshot{}, fmt.Errorf("user account payload too short: %d bytes", len(data))
	}
	var authority solana.PublicKey
	copy(authority[:], data[authorityOffset:authorityOffset+32])
	return driftmodel.UserAccountSnapshot{Authority: authority}, nil
}

// WSSlotSubscriber feeds the Sniper strategy monotonically increasing
// slots off the validator's own slot-notification feed.
type WSSlotSubscriber struct {
	wsURL          string
	reconnectDelay time.Duration
	logger         *slog.Logger

	current atomic.Uint64
}

// NewWSSlotSubscriber builds a slot subscriber with the teacher's default
// 3s reconnect cadence unless overridden.
func NewWSSlotSubscriber(wsURL string, reconnectDelay time.Duration, logger *slog.Logger) *WSSlotSubscriber {
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}
	return &WSSlotSubscriber{wsURL: wsURL, reconnectDelay: reconnectDelay, logger: logger}
}

func (s *WSSlotSubscriber) CurrentSlot() uint64 {
	return s.current.Load()
}

func (s *WSSlotSubscriber) Subscribe(ctx context.Context) (<-chan uint64, error) {
	out := make(chan uint64, 64)
	go s.run(ctx, out)
	return out, nil
}

func (s *WSSlotSubscriber) run(ctx context.Context, out chan<- uint64) {
	defer close(out)
	for {
		if ctx.Err() != nil {
			return
		}
		err := s.consume(ctx, out)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("slot subscription disconnected", "err", err, "retry_in", s.reconnectDelay.String())
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *WSSlotSubscriber) consume(ctx context.Context, out chan<- uint64) error {
	client, err := ws.Connect(ctx, s.wsURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	sub, err := client.SlotSubscribe()
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		got, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		if got == nil {
			continue
		}
		s.current.Store(got.Slot)
		select {
		case out <- got.Slot:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
