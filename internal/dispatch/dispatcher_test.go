package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/coldbell/jitter/internal/driftclient"
	"github.com/coldbell/jitter/internal/driftmodel"
)

type fakeMarketClient struct {
	driftclient.DriftClient
	perpMinOrderSize uint64
	spotMinOrderSize uint64
}

func (f *fakeMarketClient) GetPerpMarketAccount(ctx context.Context, marketIndex uint16) (*driftclient.PerpMarketAccount, error) {
	return &driftclient.PerpMarketAccount{MarketIndex: marketIndex, MinOrderSize: f.perpMinOrderSize}, nil
}

func (f *fakeMarketClient) GetSpotMarketAccount(ctx context.Context, marketIndex uint16) (*driftclient.SpotMarketAccount, error) {
	return &driftclient.SpotMarketAccount{MarketIndex: marketIndex, MinOrderSize: f.spotMinOrderSize}, nil
}

func openOrder(orderID uint32, marketIndex uint16, slot uint64) driftmodel.Order {
	return driftmodel.Order{
		OrderID:               orderID,
		Status:                driftmodel.OrderStatusOpen,
		MarketKind:            driftmodel.MarketKindPerp,
		MarketIndex:           marketIndex,
		OrderType:             driftmodel.OrderTypeLimit,
		Direction:             driftmodel.DirectionLong,
		Slot:                  slot,
		AuctionDuration:       10,
		AuctionStartPrice:     1_005_000,
		AuctionEndPrice:       1_020_000,
		BaseAssetAmount:       1_000,
		BaseAssetAmountFilled: 0,
	}
}

func newTestDispatcher(t *testing.T, launch FillTask) (*Dispatcher, *Registry) {
	t.Helper()
	registry := NewRegistry()
	drift := &fakeMarketClient{perpMinOrderSize: 1}
	logger := slog.New(slog.NewTextHandler(nil, nil))
	return NewDispatcher(registry, drift, launch, logger), registry
}

func TestOnAccountUpdateSkipsNonOpenAndOutOfWindowOrders(t *testing.T) {
	var launched int
	var mu sync.Mutex
	var d *Dispatcher
	d, registry := newTestDispatcher(t, func(ctx context.Context, taker driftmodel.UserAccountSnapshot, takerKey solana.PublicKey, order driftmodel.Order, orderSig string) {
		mu.Lock()
		launched++
		mu.Unlock()
		d.Release(orderSig)
	})
	registry.UpdatePerpParams(0, driftmodel.JitParams{Bid: 1_000_000, Ask: 1_010_000, MaxPosition: 2, MinPosition: 1})

	notOpen := openOrder(1, 0, 100)
	notOpen.Status = driftmodel.OrderStatusFilled
	outOfWindow := openOrder(2, 0, 100)
	outOfWindow.AuctionDuration = 10

	taker := solana.NewWallet().PublicKey()
	d.OnAccountUpdate(context.Background(), driftclient.AuctionEvent{
		Taker:    driftmodel.UserAccountSnapshot{Orders: []driftmodel.Order{notOpen}},
		TakerKey: taker,
		Slot:     100,
	})
	d.OnAccountUpdate(context.Background(), driftclient.AuctionEvent{
		Taker:    driftmodel.UserAccountSnapshot{Orders: []driftmodel.Order{outOfWindow}},
		TakerKey: taker,
		Slot:     200, // past the 10-slot window starting at 100
	})

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if launched != 0 {
		t.Fatalf("expected no fill task for non-open or out-of-window orders, got %d", launched)
	}
}

func TestOnAccountUpdateSkipsMarketsWithoutParams(t *testing.T) {
	var launched int
	var mu sync.Mutex
	var d *Dispatcher
	d, _ = newTestDispatcher(t, func(ctx context.Context, taker driftmodel.UserAccountSnapshot, takerKey solana.PublicKey, order driftmodel.Order, orderSig string) {
		mu.Lock()
		launched++
		mu.Unlock()
		d.Release(orderSig)
	})

	order := openOrder(1, 7, 100)
	taker := solana.NewWallet().PublicKey()
	d.OnAccountUpdate(context.Background(), driftclient.AuctionEvent{
		Taker:    driftmodel.UserAccountSnapshot{Orders: []driftmodel.Order{order}},
		TakerKey: taker,
		Slot:     100,
	})

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if launched != 0 {
		t.Fatalf("expected no fill task for a market with no registered params, got %d", launched)
	}
}

func TestOnAccountUpdateDuplicateSuppression(t *testing.T) {
	var launched int
	var mu sync.Mutex
	released := make(chan struct{})
	var d *Dispatcher
	d, registry := newTestDispatcher(t, func(ctx context.Context, taker driftmodel.UserAccountSnapshot, takerKey solana.PublicKey, order driftmodel.Order, orderSig string) {
		mu.Lock()
		launched++
		mu.Unlock()
		<-released
		d.Release(orderSig)
	})
	registry.UpdatePerpParams(0, driftmodel.JitParams{Bid: 1_000_000, Ask: 1_010_000, MaxPosition: 2, MinPosition: 1})

	order := openOrder(1, 0, 100)
	taker := solana.NewWallet().PublicKey()
	event := driftclient.AuctionEvent{
		Taker:    driftmodel.UserAccountSnapshot{Orders: []driftmodel.Order{order}},
		TakerKey: taker,
		Slot:     100,
	}

	d.OnAccountUpdate(context.Background(), event)
	d.OnAccountUpdate(context.Background(), event)
	time.Sleep(10 * time.Millisecond)
	close(released)
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if launched != 1 {
		t.Fatalf("expected exactly one fill task for a duplicate dispatch, got %d", launched)
	}
}

func TestOnAccountUpdateReleasesAfterFillTaskExits(t *testing.T) {
	var d *Dispatcher
	d, registry := newTestDispatcher(t, func(ctx context.Context, taker driftmodel.UserAccountSnapshot, takerKey solana.PublicKey, order driftmodel.Order, orderSig string) {
		d.Release(orderSig)
	})
	registry.UpdatePerpParams(0, driftmodel.JitParams{Bid: 1_000_000, Ask: 1_010_000, MaxPosition: 2, MinPosition: 1})

	order := openOrder(1, 0, 100)
	taker := solana.NewWallet().PublicKey()
	d.OnAccountUpdate(context.Background(), driftclient.AuctionEvent{
		Taker:    driftmodel.UserAccountSnapshot{Orders: []driftmodel.Order{order}},
		TakerKey: taker,
		Slot:     100,
	})

	orderSig := driftmodel.OrderSignature(taker, order.OrderID)
	deadline := time.Now().Add(200 * time.Millisecond)
	for d.isOngoing(orderSig) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if d.isOngoing(orderSig) {
		t.Fatal("expected order signature to be released after the fill task returned")
	}
}
