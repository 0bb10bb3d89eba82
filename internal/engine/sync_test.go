package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/weavesync/weavesync/internal/adapter"
	"github.com/weavesync/weavesync/internal/bso"
	"github.com/weavesync/weavesync/internal/crypto"
	"github.com/weavesync/weavesync/internal/interrupt"
	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/internal/mock"
	"github.com/weavesync/weavesync/internal/store"
	"github.com/weavesync/weavesync/models"
)

// fakeSyncServer is a minimal Sync 1.5 storage node: cleartext meta/global
// and crypto/keys singletons plus per-collection envelope maps. It does
// not implement the batch protocol, which exercises the queue's
// batch-unsupported path.
type fakeSyncServer struct {
	mu          sync.Mutex
	now         int64
	meta        *bso.Envelope
	keys        *bso.Envelope
	collections map[string]map[models.Guid]bso.Envelope
	colModified map[string]models.ServerTimestamp
}

func newFakeSyncServer() *fakeSyncServer {
	return &fakeSyncServer{
		now:         10_000,
		collections: map[string]map[models.Guid]bso.Envelope{},
		colModified: map[string]models.ServerTimestamp{},
	}
}

func (f *fakeSyncServer) tick() models.ServerTimestamp {
	f.now += 1000
	return models.ServerTimestamp(f.now)
}

func (f *fakeSyncServer) stamp(w http.ResponseWriter, ts models.ServerTimestamp) {
	w.Header().Set("X-Last-Modified", ts.String())
	w.Header().Set("X-Weave-Timestamp", ts.String())
}

func (f *fakeSyncServer) router() http.Handler {
	r := chi.NewRouter()

	r.Get("/info/collections", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.stamp(w, models.ServerTimestamp(f.now))
		_ = json.NewEncoder(w).Encode(f.colModified)
	})
	r.Get("/info/configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	singleton := func(get func() *bso.Envelope, set func(env bso.Envelope)) (http.HandlerFunc, http.HandlerFunc) {
		getter := func(w http.ResponseWriter, _ *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			env := get()
			if env == nil {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			f.stamp(w, env.Modified)
			_ = json.NewEncoder(w).Encode(env)
		}
		putter := func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			var env bso.Envelope
			_ = json.NewDecoder(r.Body).Decode(&env)
			env.Modified = f.tick()
			set(env)
			f.stamp(w, env.Modified)
		}
		return getter, putter
	}

	getMeta, putMeta := singleton(
		func() *bso.Envelope { return f.meta },
		func(env bso.Envelope) { f.meta = &env })
	r.Get("/storage/meta/global", getMeta)
	r.Put("/storage/meta/global", putMeta)

	getKeys, putKeys := singleton(
		func() *bso.Envelope { return f.keys },
		func(env bso.Envelope) { f.keys = &env })
	r.Get("/storage/crypto/keys", getKeys)
	r.Put("/storage/crypto/keys", putKeys)

	r.Delete("/storage", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.meta, f.keys = nil, nil
		f.collections = map[string]map[models.Guid]bso.Envelope{}
		f.colModified = map[string]models.ServerTimestamp{}
		f.stamp(w, models.ServerTimestamp(f.now))
	})

	r.Get("/storage/{collection}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		name := chi.URLParam(r, "collection")

		var newer models.ServerTimestamp
		if v := r.URL.Query().Get("newer"); v != "" {
			newer, _ = models.ParseServerTimestamp(v)
		}
		envelopes := make([]bso.Envelope, 0)
		for _, env := range f.collections[name] {
			if env.Modified > newer {
				envelopes = append(envelopes, env)
			}
		}
		f.stamp(w, f.colModified[name])
		_ = json.NewEncoder(w).Encode(envelopes)
	})

	r.Post("/storage/{collection}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		name := chi.URLParam(r, "collection")

		if v := r.Header.Get("X-If-Unmodified-Since"); v != "" {
			xius, _ := models.ParseServerTimestamp(v)
			if f.colModified[name] > xius {
				f.stamp(w, f.colModified[name])
				w.WriteHeader(http.StatusPreconditionFailed)
				return
			}
		}

		var envelopes []bso.Envelope
		_ = json.NewDecoder(r.Body).Decode(&envelopes)
		ts := f.tick()
		if f.collections[name] == nil {
			f.collections[name] = map[models.Guid]bso.Envelope{}
		}
		success := make([]models.Guid, 0, len(envelopes))
		for _, env := range envelopes {
			env.Modified = ts
			f.collections[name][env.ID] = env
			success = append(success, env.ID)
		}
		f.colModified[name] = ts

		f.stamp(w, ts)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": success,
			"failed":  map[string]string{},
		})
	})

	return r
}

func newSyncedPair(t *testing.T) (*SyncManager, []Syncer, *CollectionEngine[models.Password], ClientInit, *crypto.KeyBundle, store.Store) {
	t.Helper()
	server := httptest.NewServer(newFakeSyncServer().router())
	t.Cleanup(server.Close)

	st, err := store.NewStore(context.Background(), filepath.Join(t.TempDir(), "client.db"), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	eng := NewCollectionEngine[models.Password](st, DefaultRecordImpl[models.Password]{Name: "passwords"}, logger.Nop())
	root, err := crypto.NewRandomKeyBundle()
	require.NoError(t, err)

	init := ClientInit{BaseURL: server.URL, Authorization: "Bearer test-token"}
	return NewSyncManager(logger.Nop()), []Syncer{eng}, eng, init, root, st
}

func TestSyncAllFreshServerUploadsLocalRecords(t *testing.T) {
	ctx := context.Background()
	manager, engines, eng, init, root, _ := newSyncedPair(t)

	local := pwd("aaaaaaaaaaaa", "https://example.com", "alice", "hunter2")
	require.NoError(t, eng.UpsertLocal(ctx, local))

	result := manager.SyncAll(ctx, engines, init, root, nil)
	assert.Equal(t, StatusOK, result.ServiceStatus)
	require.NoError(t, result.EngineResults["passwords"])

	// the record is settled: a second sync finds nothing to do
	result = manager.SyncAll(ctx, engines, init, root, nil)
	assert.Equal(t, StatusOK, result.ServiceStatus)
	require.NoError(t, result.EngineResults["passwords"])
}

func TestSyncAllRoundTripsBetweenTwoDevices(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(newFakeSyncServer().router())
	t.Cleanup(server.Close)
	root, err := crypto.NewRandomKeyBundle()
	require.NoError(t, err)
	init := ClientInit{BaseURL: server.URL, Authorization: "Bearer test-token"}

	newDevice := func(name string) (*SyncManager, []Syncer, *CollectionEngine[models.Password], store.Store) {
		st, err := store.NewStore(ctx, filepath.Join(t.TempDir(), name+".db"), logger.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		eng := NewCollectionEngine[models.Password](st, DefaultRecordImpl[models.Password]{Name: "passwords"}, logger.Nop())
		return NewSyncManager(logger.Nop()), []Syncer{eng}, eng, st
	}

	managerA, enginesA, engA, _ := newDevice("a")
	managerB, enginesB, _, stB := newDevice("b")

	local := pwd("aaaaaaaaaaaa", "https://example.com", "alice", "hunter2")
	require.NoError(t, engA.UpsertLocal(ctx, local))
	result := managerA.SyncAll(ctx, enginesA, init, root, nil)
	require.Equal(t, StatusOK, result.ServiceStatus)
	require.NoError(t, result.EngineResults["passwords"])

	result = managerB.SyncAll(ctx, enginesB, init, root, nil)
	require.Equal(t, StatusOK, result.ServiceStatus)
	require.NoError(t, result.EngineResults["passwords"])

	row := getRecord(t, stB, "aaaaaaaaaaaa")
	require.NotNil(t, row)
	var synced models.Password
	require.NoError(t, json.Unmarshal(row.Payload, &synced))
	assert.Equal(t, "alice", synced.Username)
	assert.Equal(t, "hunter2", synced.Password)
}

func TestSyncAllWrongRootKeyIsAuthError(t *testing.T) {
	ctx := context.Background()
	manager, engines, _, init, root, _ := newSyncedPair(t)

	// first client initialises the server with the right key
	result := manager.SyncAll(ctx, engines, init, root, nil)
	require.Equal(t, StatusOK, result.ServiceStatus)

	wrongRoot, err := crypto.NewRandomKeyBundle()
	require.NoError(t, err)
	result = NewSyncManager(logger.Nop()).SyncAll(ctx, engines, init, wrongRoot, nil)
	assert.Equal(t, StatusAuthError, result.ServiceStatus)
	assert.Empty(t, result.EngineResults)
}

func TestSyncAllInterrupted(t *testing.T) {
	ctx := context.Background()
	manager, engines, _, init, root, _ := newSyncedPair(t)

	handle := interrupt.NewHandle()
	handle.Interrupt()
	result := manager.SyncAll(ctx, engines, init, root, handle)
	assert.Equal(t, StatusInterrupted, result.ServiceStatus)
}

func TestSyncAllUnreachableServerIsNetworkError(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mock.NewMockStorageClient(ctrl)
	client.EXPECT().FetchInfoConfiguration(gomock.Any()).Return(adapter.DefaultInfoConfiguration(), nil)
	netErr := &url.Error{Op: "Get", URL: "http://sync.example.com", Err: errors.New("connection refused")}
	client.EXPECT().FetchMetaGlobal(gomock.Any()).Return(adapter.MetaGlobalRecord{}, models.ServerTimestamp(0), netErr)
	client.EXPECT().BackoffUntil().Return(time.Time{}).AnyTimes()

	manager := NewSyncManager(logger.Nop())
	manager.newClient = func(ClientInit, *logger.Logger) (adapter.StorageClient, error) {
		return client, nil
	}

	root, err := crypto.NewRandomKeyBundle()
	require.NoError(t, err)
	result := manager.SyncAll(ctx, nil, ClientInit{BaseURL: "http://sync.example.com"}, root, nil)
	assert.Equal(t, StatusNetworkError, result.ServiceStatus)
}

func TestFreshStartFailureReportsMissingMetaGlobal(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// meta/global is missing and the fresh start dies on the wipe.
	client := mock.NewMockStorageClient(ctrl)
	client.EXPECT().FetchMetaGlobal(gomock.Any()).
		Return(adapter.MetaGlobalRecord{}, models.ServerTimestamp(0), adapter.ErrNotFound)
	wipeErr := &adapter.StorageError{Code: http.StatusServiceUnavailable, Route: "storage DELETE"}
	client.EXPECT().WipeServer(gomock.Any()).Return(wipeErr)

	manager := NewSyncManager(logger.Nop())
	root, err := crypto.NewRandomKeyBundle()
	require.NoError(t, err)

	info := &clientInfo{client: client, config: adapter.DefaultInfoConfiguration()}
	_, _, err = manager.setupGlobalState(ctx, info, nil, root, interrupt.NeverInterrupts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMetaGlobal)
	assert.ErrorIs(t, err, wipeErr)
}

// staticSyncer is a Syncer stub for orchestration tests that never reach
// the collection download and upload phases.
type staticSyncer struct{ name string }

func (s staticSyncer) Collection() string { return s.name }

func (s staticSyncer) LastSync(context.Context) (models.ServerTimestamp, error) { return 0, nil }

func (s staticSyncer) EnsureCurrentSyncID(context.Context, string, string) error { return nil }

func (s staticSyncer) Sync(context.Context, adapter.StorageClient, *crypto.KeyBundle, adapter.InfoConfiguration, models.ServerTimestamp, interrupt.Interruptee) error {
	return nil
}

func TestOutdatedEngineFormatWipesServerCollection(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	global := adapter.MetaGlobalRecord{
		SyncID:         "global-sync-1",
		StorageVersion: adapter.StorageVersion5,
		Engines: map[string]adapter.MetaGlobalEngine{
			"passwords": {Version: 0, SyncID: "stale-sync-id"},
		},
	}
	client := mock.NewMockStorageClient(ctrl)
	client.EXPECT().FetchMetaGlobal(gomock.Any()).
		Return(global, models.ServerTimestamp(1000), nil)
	client.EXPECT().DeleteCollection(gomock.Any(), "passwords").Return(nil)
	client.EXPECT().PutMetaGlobal(gomock.Any(), gomock.Any(), models.ServerTimestamp(1000)).
		DoAndReturn(func(_ context.Context, g adapter.MetaGlobalRecord, _ models.ServerTimestamp) (models.ServerTimestamp, error) {
			meta := g.Engines["passwords"]
			assert.Equal(t, 1, meta.Version)
			assert.NotEqual(t, "stale-sync-id", meta.SyncID)
			return models.ServerTimestamp(2000), nil
		})
	client.EXPECT().FetchCryptoKeys(gomock.Any()).
		Return(bso.Envelope{}, adapter.ErrNotFound)
	client.EXPECT().PutCryptoKeys(gomock.Any(), gomock.Any(), models.ServerTimestamp(0)).
		Return(models.ServerTimestamp(3000), nil)

	manager := NewSyncManager(logger.Nop())
	root, err := crypto.NewRandomKeyBundle()
	require.NoError(t, err)

	info := &clientInfo{client: client, config: adapter.DefaultInfoConfiguration()}
	engines := []Syncer{staticSyncer{name: "passwords"}}
	got, _, err := manager.setupGlobalState(ctx, info, engines, root, interrupt.NeverInterrupts)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Engines["passwords"].Version)
}

func TestCurrentEngineFormatLeavesServerAlone(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	global := adapter.MetaGlobalRecord{
		SyncID:         "global-sync-1",
		StorageVersion: adapter.StorageVersion5,
		Engines: map[string]adapter.MetaGlobalEngine{
			"passwords": {Version: 1, SyncID: "current-sync-id"},
		},
	}
	// no DeleteCollection and no PutMetaGlobal: the record is untouched
	client := mock.NewMockStorageClient(ctrl)
	client.EXPECT().FetchMetaGlobal(gomock.Any()).
		Return(global, models.ServerTimestamp(1000), nil)
	client.EXPECT().FetchCryptoKeys(gomock.Any()).
		Return(bso.Envelope{}, adapter.ErrNotFound)
	client.EXPECT().PutCryptoKeys(gomock.Any(), gomock.Any(), models.ServerTimestamp(0)).
		Return(models.ServerTimestamp(3000), nil)

	manager := NewSyncManager(logger.Nop())
	root, err := crypto.NewRandomKeyBundle()
	require.NoError(t, err)

	info := &clientInfo{client: client, config: adapter.DefaultInfoConfiguration()}
	engines := []Syncer{staticSyncer{name: "passwords"}}
	_, _, err = manager.setupGlobalState(ctx, info, engines, root, interrupt.NeverInterrupts)
	require.NoError(t, err)
}

func TestTokenProviderSelection(t *testing.T) {
	ctx := context.Background()

	// a full header value passes through untouched
	p := tokenProvider("Bearer already-a-header")
	got, err := p.Authorization(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer already-a-header", got)

	// a bare JWT gets the Bearer prefix and expiry tracking
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "12345",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := raw.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	p = tokenProvider(signed)
	got, err = p.Authorization(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+signed, got)
}

func TestOverallStatusPicksWorst(t *testing.T) {
	assert.Equal(t, StatusOK, overallStatus(map[string]error{"a": nil}))
	assert.Equal(t, StatusInterrupted, overallStatus(map[string]error{
		"a": nil,
		"b": interrupt.ErrInterrupted,
	}))
}
