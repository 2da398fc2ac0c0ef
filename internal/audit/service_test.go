package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/tenant"
)

type stubStore struct {
	lastInsert Entry
	called     bool
	lastFilter ListFilter
	logs       []Log
}

func (s *stubStore) InsertAuditLog(_ context.Context, e Entry) error {
	s.called = true
	s.lastInsert = e
	return nil
}

func (s *stubStore) ListAuditLogs(_ context.Context, f ListFilter) ([]Log, error) {
	s.lastFilter = f
	return s.logs, nil
}

func TestServiceRecord(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true, SamplingRate: 1}

	req := httptest.NewRequest(http.MethodPost, "https://api.test/api/v1/vouchers/v-9/claim?source=banner", nil)
	req.Header.Set("User-Agent", "tester")
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	ctx := obs.WithRoutePattern(req.Context(), "/api/v1/vouchers/{id}/claim")
	ctx = tenant.WithStore(ctx, "store-a")
	req = req.WithContext(ctx)

	err := svc.Record(req.Context(), UserActor("user-7"), "", "", "v-9", req, http.StatusAccepted, nil)
	require.NoError(t, err)
	require.True(t, store.called)

	got := store.lastInsert
	require.Equal(t, ActorKindUser, got.Actor.Kind)
	require.Equal(t, "user-7", *got.Actor.UserID)
	require.Equal(t, "POST /api/v1/vouchers/{id}/claim", got.Action)
	require.Equal(t, "vouchers.{id}.claim", got.ResourceType)
	require.Equal(t, "v-9", *got.ResourceID)
	require.Equal(t, "store-a", *got.StoreID)
	require.Equal(t, "10.0.0.2", *got.IP)
	require.Equal(t, "req-123", *got.RequestID)
	require.Equal(t, http.StatusAccepted, got.Status)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(got.Metadata, &meta))
	require.Equal(t, "source=banner", meta["query"])
}

func TestServiceRecordDisabled(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: false}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, svc.Record(req.Context(), Actor{}, "", "", "", req, http.StatusOK, nil))
	require.NoError(t, svc.RecordEntry(context.Background(), Entry{Action: "payment.initiate"}))
	require.False(t, store.called)
}

func TestServiceRecordEntryNormalises(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true}

	blank := "  "
	err := svc.RecordEntry(context.Background(), Entry{
		Actor:      Actor{Kind: "robot", UserID: &blank},
		Action:     "payment.initiate",
		Method:     http.MethodPost,
		ResourceID: &blank,
	})
	require.NoError(t, err)
	got := store.lastInsert
	require.Equal(t, ActorKindAnonymous, got.Actor.Kind)
	require.Nil(t, got.Actor.UserID)
	require.Nil(t, got.ResourceID)
	require.Nil(t, got.StoreID)
	require.Equal(t, "payment.initiate", got.Action)
	require.Equal(t, "unknown", got.ResourceType)
	require.Equal(t, http.StatusOK, got.Status)
}

func TestServiceRecordRequiresStore(t *testing.T) {
	svc := Service{Enabled: true}
	require.Error(t, svc.RecordEntry(context.Background(), Entry{}))
}

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/app", migrateURL("postgres://u:p@db:5432/app"))
	require.Equal(t, "pgx5://db/app", migrateURL("postgresql://db/app"))
	require.Equal(t, "pgx5://db/app", migrateURL("pgx5://db/app"))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
