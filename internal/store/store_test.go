package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/ada-portal/internal/cache"
	"github.com/Spok95/ada-portal/internal/connectivity"
	"github.com/Spok95/ada-portal/internal/models"
	"github.com/Spok95/ada-portal/internal/remote"
	"github.com/Spok95/ada-portal/internal/remote/memstore"
)

var master = models.Account{
	Email:        "root@ada.local",
	PasswordHash: "$2a$10$hash",
	DisplayName:  "Master Root",
	Role:         models.SuperAdmin,
}

type fixture struct {
	remote *memstore.Store
	cache  *cache.Memory
	conn   *connectivity.Resolver
	store  *Store
}

func readyResolver(t *testing.T) *connectivity.Resolver {
	t.Helper()
	r := connectivity.NewResolver(nil)
	st := r.Initialize(context.Background(), connectivity.Config{}, func(context.Context) error { return nil })
	require.True(t, st.Ready())
	return r
}

func newFixture(t *testing.T, rs *memstore.Store, c *cache.Memory, conn *connectivity.Resolver) *fixture {
	t.Helper()
	if rs == nil {
		rs = memstore.New()
	}
	if c == nil {
		c = cache.NewMemory()
	}
	if conn == nil {
		conn = readyResolver(t)
	}
	s := New(Config{
		Remote:   rs,
		Cache:    c,
		Resolver: conn,
		Master:   master,
		Timeouts: Timeouts{Accounts: 100 * time.Millisecond, Content: 100 * time.Millisecond, Progress: 60 * time.Millisecond, Write: 100 * time.Millisecond},
	})
	return &fixture{remote: rs, cache: c, conn: conn, store: s}
}

func offlineResolver(t *testing.T) *connectivity.Resolver {
	t.Helper()
	r := connectivity.NewResolver(nil)
	r.Initialize(context.Background(), connectivity.Config{}, func(context.Context) error {
		return errors.New("dial tcp: connection refused")
	})
	require.False(t, r.State().Ready())
	return r
}

func waitBG(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestAccounts_OfflineColdReturnsMaster(t *testing.T) {
	f := newFixture(t, nil, nil, offlineResolver(t))

	list, src := load(context.Background(), f.store, f.store.accounts())
	assert.Equal(t, DefaultFallback, src)
	require.Len(t, list, 1)
	assert.Equal(t, master.Email, list[0].Email)
	assert.True(t, list[0].IsPrivileged())
	assert.Zero(t, f.remote.Gets(KeyAccounts))
}

func TestAccounts_OfflineServesCache(t *testing.T) {
	f := newFixture(t, nil, nil, offlineResolver(t))
	ann := models.Account{Email: "ann@corp.com", DisplayName: "Ann", Role: models.Learner}

	err := f.store.SaveAccounts(context.Background(), []models.Account{master, ann})
	require.ErrorIs(t, err, ErrRemoteUnavailable)

	list, src := load(context.Background(), f.store, f.store.accounts())
	assert.Equal(t, CacheFallback, src)
	_, _, ok := models.FindAccount(list, "ann@corp.com")
	assert.True(t, ok)
}

func TestAccounts_FirstRunBootstrapsOnce(t *testing.T) {
	rs := memstore.New()
	f := newFixture(t, rs, nil, nil)

	list, src := load(context.Background(), f.store, f.store.accounts())
	assert.Equal(t, RemoteBootstrapped, src)
	require.Len(t, list, 1)
	assert.Equal(t, master.Email, list[0].Email)
	assert.Equal(t, 1, rs.Puts(KeyAccounts))

	raw, ok := rs.Raw(KeyAccounts)
	require.True(t, ok)
	var doc struct {
		List []models.Account `json:"list"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc.List, 1)

	// новая сессия: пустой кэш, тот же удалённый документ
	next := newFixture(t, rs, nil, nil)
	list, src = load(context.Background(), next.store, next.store.accounts())
	assert.Equal(t, RemoteFresh, src)
	require.Len(t, list, 1)
	assert.Equal(t, master.Email, list[0].Email)
	assert.Equal(t, 1, rs.Puts(KeyAccounts))
}

func TestAccounts_BootstrapFailureStillReturnsDefault(t *testing.T) {
	rs := memstore.New()
	rs.FailWith(func(op, _ string) error {
		if op == "put" {
			return connectivity.ErrPermission
		}
		return nil
	})
	f := newFixture(t, rs, nil, nil)

	list, src := load(context.Background(), f.store, f.store.accounts())
	assert.Equal(t, RemoteBootstrapped, src)
	require.Len(t, list, 1)
	assert.True(t, f.conn.State().Ready())
}

func TestAccounts_RemoteMissingMasterIsAdded(t *testing.T) {
	rs := memstore.New()
	f := newFixture(t, rs, nil, nil)
	ann := models.Account{Email: "ann@corp.com", Role: models.SuperAdmin}
	require.NoError(t, rs.Put(context.Background(), KeyAccounts, mustField(t, "list", []models.Account{ann}), false))

	list := f.store.Accounts(context.Background())
	require.Len(t, list, 2)
	assert.Equal(t, master.Email, list[0].Email)
	assert.Equal(t, models.Learner, list[1].Role)
}

func TestRead_TimeoutDowngradesToNetwork(t *testing.T) {
	rs := memstore.New()
	f := newFixture(t, rs, nil, nil)
	require.NoError(t, f.store.SaveContent(context.Background(), []models.Module{{ID: "m1", Title: "Intro"}}))

	rs.SetDelay(time.Second)
	start := time.Now()
	mods, src := load(context.Background(), f.store, f.store.content())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 600*time.Millisecond)
	assert.Equal(t, CacheFallback, src)
	require.Len(t, mods, 1)
	assert.Equal(t, "error(network)", f.conn.State().String())
}

func TestRead_ErrorFallsBackAndClassifies(t *testing.T) {
	rs := memstore.New()
	f := newFixture(t, rs, nil, nil)
	rs.FailWith(func(string, string) error {
		return errors.New("rpc error: Missing or insufficient permissions")
	})

	mods, src := load(context.Background(), f.store, f.store.content())
	assert.Equal(t, DefaultFallback, src)
	assert.Empty(t, mods)
	assert.Equal(t, connectivity.KindPermission, f.conn.ErrorKind())

	// после понижения в хранилище больше не ходим
	gets := rs.Gets(KeyContent)
	f.store.Content(context.Background())
	assert.Equal(t, gets, rs.Gets(KeyContent))
}

func TestRead_CallerCancelIsNotClassified(t *testing.T) {
	rs := memstore.New()
	rs.SetDelay(200 * time.Millisecond)
	f := newFixture(t, rs, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, src := load(ctx, f.store, f.store.content())
	assert.Equal(t, DefaultFallback, src)
	assert.True(t, f.conn.State().Ready())
}

func TestContent_ReadAfterWrite(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	mods := []models.Module{{ID: "m1", Title: "Intro", Classes: []models.ClassSession{{ID: "c1", Title: "Hello"}}}}

	require.NoError(t, f.store.SaveContent(context.Background(), mods))
	assert.Equal(t, mods, f.store.Content(context.Background()))

	// идемпотентность: повторная запись того же значения не меняет чтение
	require.NoError(t, f.store.SaveContent(context.Background(), mods))
	assert.Equal(t, mods, f.store.Content(context.Background()))
}

func TestAccounts_RemoteWriteFailureSurfaced(t *testing.T) {
	rs := memstore.New()
	f := newFixture(t, rs, nil, nil)
	rs.FailWith(func(op, _ string) error {
		if op == "put" {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	ann := models.Account{Email: "ann@corp.com", Role: models.Learner}

	err := f.store.SaveAccounts(context.Background(), []models.Account{master, ann})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteWriteFailed)
	assert.True(t, IsWriteFailure(err))

	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, connectivity.KindNetwork, we.Kind)

	// локальная запись не откатывается
	list := f.store.Accounts(context.Background())
	_, _, ok := models.FindAccount(list, "ann@corp.com")
	assert.True(t, ok)
}

func TestProgress_MergeRemoteWins(t *testing.T) {
	rs := memstore.New()
	c := cache.NewMemory()
	email := "ann.smith@corp.com"

	offline := newFixture(t, rs, c, offlineResolver(t))
	require.NoError(t, offline.store.SaveProgress(context.Background(), email, models.ProgressMap{"a": true, "b": false}))
	assert.Zero(t, rs.Puts(ProgressKey(email)))

	require.NoError(t, rs.Put(context.Background(), ProgressKey(email),
		mustField(t, "map", models.ProgressMap{"b": true, "c": true}), true))

	online := newFixture(t, rs, c, nil)
	got, src := load(context.Background(), online.store, online.store.progress(email))
	assert.Equal(t, RemoteFresh, src)
	assert.Equal(t, models.ProgressMap{"a": true, "b": true, "c": true}, got)
}

func TestProgress_AbsentRemoteKeepsLocal(t *testing.T) {
	rs := memstore.New()
	c := cache.NewMemory()
	email := "ann@corp.com"
	require.NoError(t, newFixture(t, rs, c, offlineResolver(t)).store.SaveProgress(context.Background(), email, models.ProgressMap{"a": true}))

	f := newFixture(t, rs, c, nil)
	got, src := load(context.Background(), f.store, f.store.progress(email))
	assert.Equal(t, RemoteBootstrapped, src)
	assert.Equal(t, models.ProgressMap{"a": true}, got)
}

func TestProgress_WriteIsFireAndForget(t *testing.T) {
	rs := memstore.New()
	f := newFixture(t, rs, nil, nil)
	rs.FailWith(func(op, _ string) error {
		if op == "put" {
			return errors.New("network unreachable")
		}
		return nil
	})

	err := f.store.SaveProgress(context.Background(), "ann@corp.com", models.ProgressMap{"c1": true})
	require.NoError(t, err)
	waitBG(t, f.store)

	assert.Equal(t, connectivity.KindNetwork, f.conn.ErrorKind())
	got := f.store.Progress(context.Background(), "ann@corp.com")
	assert.Equal(t, models.ProgressMap{"c1": true}, got)
}

func TestProgress_BackgroundWritesKeepLatest(t *testing.T) {
	rs := memstore.New()
	f := newFixture(t, rs, nil, nil)
	email := "ann@corp.com"

	for i := 0; i < 20; i++ {
		require.NoError(t, f.store.SaveProgress(context.Background(), email, models.ProgressMap{"c1": i%2 == 0}))
	}
	require.NoError(t, f.store.SaveProgress(context.Background(), email, models.ProgressMap{"c1": true, "c2": true}))
	waitBG(t, f.store)

	raw, ok := rs.Raw(ProgressKey(email))
	require.True(t, ok)
	var doc struct {
		Map models.ProgressMap `json:"map"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, models.ProgressMap{"c1": true, "c2": true}, doc.Map)
}

func remoteProgress(t *testing.T, rs *memstore.Store, email string) models.ProgressMap {
	t.Helper()
	raw, ok := rs.Raw(ProgressKey(email))
	require.True(t, ok)
	var doc struct {
		Map models.ProgressMap `json:"map"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc.Map
}

func slowPuts(rs *memstore.Store, d time.Duration) {
	rs.FailWith(func(op, _ string) error {
		if op == "put" {
			time.Sleep(d)
		}
		return nil
	})
}

func TestProgress_ReadSeesPendingWrite(t *testing.T) {
	rs := memstore.New()
	f := newFixture(t, rs, nil, nil)
	email := "ann@corp.com"
	ctx := context.Background()
	require.NoError(t, rs.Put(ctx, ProgressKey(email), mustField(t, "map", models.ProgressMap{"a": false}), false))
	slowPuts(rs, 40*time.Millisecond)

	require.NoError(t, f.store.SaveProgress(ctx, email, models.ProgressMap{"a": true}))
	assert.Equal(t, models.ProgressMap{"a": true}, f.store.Progress(ctx, email))

	waitBG(t, f.store)
	assert.Equal(t, models.ProgressMap{"a": true}, remoteProgress(t, rs, email))
	assert.Equal(t, models.ProgressMap{"a": true}, f.store.Progress(ctx, email))
}

func TestProgress_ToggleChainKeepsEveryMark(t *testing.T) {
	rs := memstore.New()
	f := newFixture(t, rs, nil, nil)
	email := "ann@corp.com"
	ctx := context.Background()
	require.NoError(t, rs.Put(ctx, ProgressKey(email), mustField(t, "map", models.ProgressMap{"a": false}), false))
	slowPuts(rs, 40*time.Millisecond)

	for _, id := range []string{"a", "b", "c"} {
		prog := f.store.Progress(ctx, email).Clone()
		prog[id] = true
		require.NoError(t, f.store.SaveProgress(ctx, email, prog))
	}
	waitBG(t, f.store)

	want := models.ProgressMap{"a": true, "b": true, "c": true}
	assert.Equal(t, want, remoteProgress(t, rs, email))
	assert.Equal(t, want, f.store.Progress(ctx, email))
}

func TestProgress_SettledWriteLetsRemoteWin(t *testing.T) {
	rs := memstore.New()
	f := newFixture(t, rs, nil, nil)
	email := "ann@corp.com"
	ctx := context.Background()

	require.NoError(t, f.store.SaveProgress(ctx, email, models.ProgressMap{"a": true}))
	waitBG(t, f.store)

	// другое устройство сняло отметку
	require.NoError(t, rs.Put(ctx, ProgressKey(email), mustField(t, "map", models.ProgressMap{"a": false}), true))
	assert.Equal(t, models.ProgressMap{"a": false}, f.store.Progress(ctx, email))
}

func TestProgress_QueuedWriteSkippedAfterDowngrade(t *testing.T) {
	rs := memstore.New()
	f := newFixture(t, rs, nil, nil)
	email := "ann@corp.com"
	ctx := context.Background()

	unlock := f.store.keys.Lock(ProgressKey(email))
	require.NoError(t, f.store.SaveProgress(ctx, email, models.ProgressMap{"a": true}))
	f.conn.Report(errors.New("dial tcp: connection refused"))
	unlock()
	waitBG(t, f.store)

	assert.Zero(t, rs.Puts(ProgressKey(email)))
	assert.Equal(t, models.ProgressMap{"a": true}, f.store.Progress(ctx, email))
}

func TestAccounts_PutTwiceIdempotent(t *testing.T) {
	rs := memstore.New()
	f := newFixture(t, rs, nil, nil)
	ctx := context.Background()
	ann := models.Account{Email: "ann@corp.com", DisplayName: "Ann", Role: models.Learner}
	// без привилегированного аккаунта и с чужой ролью Super Admin: нормализация срабатывает
	bob := models.Account{Email: "bob@corp.com", DisplayName: "Bob", Role: models.SuperAdmin}
	list := []models.Account{ann, bob}

	require.NoError(t, f.store.SaveAccounts(ctx, list))
	first := f.store.Accounts(ctx)
	firstRaw, ok := rs.Raw(KeyAccounts)
	require.True(t, ok)

	require.NoError(t, f.store.SaveAccounts(ctx, list))
	second := f.store.Accounts(ctx)
	secondRaw, ok := rs.Raw(KeyAccounts)
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.JSONEq(t, string(firstRaw), string(secondRaw))
	require.Len(t, second, 3)
	assert.Equal(t, master.Email, second[0].Email)
	_, _, ok = models.FindAccount(second, "bob@corp.com")
	assert.True(t, ok)
}

func TestRead_MalformedDocumentKeepsConnectivity(t *testing.T) {
	rs := memstore.New()
	f := newFixture(t, rs, nil, nil)
	ctx := context.Background()
	require.NoError(t, f.store.SaveContent(ctx, []models.Module{{ID: "m1", Title: "Intro"}}))
	require.NoError(t, rs.Put(ctx, KeyContent, remote.Document{"list": json.RawMessage(`"oops"`)}, false))

	mods, src := load(ctx, f.store, f.store.content())
	assert.Equal(t, CacheFallback, src)
	require.Len(t, mods, 1)
	assert.True(t, f.conn.State().Ready())

	// остальные коллекции по-прежнему читаются из хранилища
	_, src = load(ctx, f.store, f.store.accounts())
	assert.Equal(t, RemoteBootstrapped, src)
}

func TestSource_String(t *testing.T) {
	assert.Equal(t, "remote_fresh", RemoteFresh.String())
	assert.Equal(t, "remote_bootstrapped", RemoteBootstrapped.String())
	assert.Equal(t, "cache_fallback", CacheFallback.String())
	assert.Equal(t, "default_fallback", DefaultFallback.String())
}

func mustField(t *testing.T, name string, v any) remote.Document {
	t.Helper()
	doc, err := remote.Field(name, v)
	require.NoError(t, err)
	return doc
}
