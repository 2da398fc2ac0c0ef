package catalog_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/geo"
	"github.com/noah-isme/toko-storefront/internal/session"
)

type gatedBackend struct {
	fakeBackend
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedBackend) GetProduct(ctx context.Context, sess session.Session, id string) (backend.Product, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
	case <-ctx.Done():
		return backend.Product{}, ctx.Err()
	}
	return g.fakeBackend.GetProduct(ctx, sess, id)
}

func TestGetProductCollapsesConcurrentMisses(t *testing.T) {
	gb := &gatedBackend{
		fakeBackend: fakeBackend{products: []backend.Product{{ID: "p-1", Name: "Kemeja", Price: 100_000}}},
		release:     make(chan struct{}),
	}
	svc, err := catalog.NewService(catalog.ServiceConfig{Backend: gb, Now: func() time.Time { return now }})
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]catalog.ProductView, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.GetProduct(context.Background(), session.Session{}, "p-1")
		}(i)
	}

	require.Eventually(t, func() bool { return gb.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(gb.release)
	wg.Wait()

	require.Equal(t, int32(1), gb.calls.Load())
	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, "p-1", results[i].ID)
	}
}

func TestCancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	gb := &gatedBackend{
		fakeBackend: fakeBackend{products: []backend.Product{{ID: "p-1", Name: "Kemeja", Price: 100_000}}},
		release:     make(chan struct{}),
	}
	svc, err := catalog.NewService(catalog.ServiceConfig{Backend: gb, Now: func() time.Time { return now }})
	require.NoError(t, err)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.GetProduct(first, session.Session{Token: "a"}, "p-1")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return gb.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		view catalog.ProductView
		err  error
	}
	second := make(chan result, 1)
	go func() {
		v, err := svc.GetProduct(context.Background(), session.Session{Token: "b"}, "p-1")
		second <- result{v, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller still waiting")
	}

	close(gb.release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		require.Equal(t, "p-1", res.view.ID)
	case <-time.After(time.Second):
		t.Fatal("second caller never returned")
	}
	require.Equal(t, int32(1), gb.calls.Load())
}

func TestNearestStoresDoesNotReorderSharedResult(t *testing.T) {
	fb := &fakeBackend{stores: []backend.Store{
		{ID: "nowhere", Name: "Online"},
		{ID: "jkt", Name: "Jakarta", Latitude: ptr(-6.2088), Longitude: ptr(106.8456)},
	}}
	svc, err := catalog.NewService(catalog.ServiceConfig{Backend: fb})
	require.NoError(t, err)

	out, err := svc.NearestStores(context.Background(), session.Session{}, geo.Point{Lat: -6.2, Lng: 106.8}, 0)
	require.NoError(t, err)
	require.Equal(t, "jkt", out[0].ID)
	require.Equal(t, "nowhere", fb.stores[0].ID)
}
