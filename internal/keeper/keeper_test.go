package keeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-settlement/internal/engine"
	"github.com/radieske/parimutuel-settlement/internal/settlement"
	"github.com/radieske/parimutuel-settlement/internal/settlement/repo"
	"github.com/radieske/parimutuel-settlement/internal/shared/db"
	"github.com/radieske/parimutuel-settlement/internal/shared/lock"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

const (
	t0       int64 = 1_700_000_000
	end            = t0 + 600
	deadline       = end + 600
)

func pk(b byte) accounts.Pubkey {
	var k accounts.Pubkey
	k[0], k[1] = 0xEE, b
	return k
}

func newService(t *testing.T) *settlement.Service {
	t.Helper()
	conn, err := db.ConnectSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	store, err := repo.New(conn, repo.DriverSQLite)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	return settlement.NewService(zap.NewNop(), store, accounts.NewDeriver(accounts.DefaultProgramID), nil, nil, nil)
}

func newMarket(t *testing.T, svc *settlement.Service) accounts.Pubkey {
	t.Helper()
	res, err := svc.Initialize(context.Background(), settlement.InitializeInput{
		Creator: pk(1), Mint: pk(2), FeeBps: 100, EndTime: end, ResolveDeadline: deadline, Title: "keeper",
	}, t0)
	require.NoError(t, err)
	return res.Market
}

func at(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func status(t *testing.T, svc *settlement.Service, m accounts.Pubkey) accounts.Status {
	t.Helper()
	v, err := svc.Market(context.Background(), m)
	require.NoError(t, err)
	return v.Market.Status
}

func TestTickClosesThenCancels(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	a := newMarket(t, svc)
	b := newMarket(t, svc)

	k := NewKeeper(zap.NewNop(), svc, lock.NewLocal(), Config{AutoClose: true, AutoCancel: true, Batch: 10}, prometheus.NewRegistry())

	k.now = at(end - 1)
	st, err := k.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)

	k.now = at(end)
	st, err = k.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Closed)
	assert.Equal(t, accounts.StatusPendingResolve, status(t, svc, a))

	require.NoError(t, svc.Resolve(ctx, b, pk(1), accounts.SideA, deadline))

	k.now = at(deadline + 1)
	st, err = k.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Cancelled: 1}, st)
	assert.Equal(t, accounts.StatusCancelled, status(t, svc, a))
	assert.Equal(t, accounts.StatusResolved, status(t, svc, b))

	assert.Equal(t, 2.0, testutil.ToFloat64(k.metrics.WithLabelValues(OpClose, ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(k.metrics.WithLabelValues(OpCancel, ResultOK)))
}

func TestTickRespectsSwitches(t *testing.T) {
	svc := newService(t)
	m := newMarket(t, svc)

	k := NewKeeper(zap.NewNop(), svc, lock.NewLocal(), Config{AutoClose: false, AutoCancel: true, Batch: 10}, prometheus.NewRegistry())
	k.now = at(deadline + 1)
	st, err := k.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
	assert.Equal(t, accounts.StatusOpen, status(t, svc, m))
}

func TestTickSkipsLockedMarket(t *testing.T) {
	svc := newService(t)
	m := newMarket(t, svc)
	locker := lock.NewLocal()
	unlock, err := locker.Acquire(context.Background(), "market:"+m.String(), time.Minute)
	require.NoError(t, err)
	defer unlock()

	k := NewKeeper(zap.NewNop(), svc, locker, Config{AutoClose: true, Batch: 10}, prometheus.NewRegistry())
	k.now = at(end)
	st, err := k.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Skipped: 1}, st)
	assert.Equal(t, accounts.StatusOpen, status(t, svc, m))
}

type stubSettler struct {
	closable []accounts.Pubkey
	closeErr error
	listErr  error
}

func (s *stubSettler) DueMarkets(context.Context, int64, int) ([]accounts.Pubkey, []accounts.Pubkey, error) {
	return s.closable, nil, s.listErr
}

func (s *stubSettler) CloseBetting(context.Context, accounts.Pubkey, int64) error { return s.closeErr }

func (s *stubSettler) CancelExpired(context.Context, accounts.Pubkey, int64) error { return nil }

func TestTickClassifiesFailures(t *testing.T) {
	ctx := context.Background()
	stub := &stubSettler{closable: []accounts.Pubkey{pk(5)}}
	k := NewKeeper(zap.NewNop(), stub, lock.NewLocal(), Config{AutoClose: true}, prometheus.NewRegistry())

	stub.closeErr = engine.Fail(engine.CodeAlreadyClosed, engine.EntityMarket, "raced")
	st, err := k.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Skipped: 1}, st)

	stub.closeErr = errors.New("db down")
	st, err = k.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Failed: 1}, st)
	assert.Equal(t, 1.0, testutil.ToFloat64(k.metrics.WithLabelValues(OpClose, ResultError)))

	stub.listErr = errors.New("db down")
	_, err = k.Tick(ctx)
	assert.Error(t, err)
}

func TestRunStopsWithContext(t *testing.T) {
	stub := &stubSettler{}
	k := NewKeeper(zap.NewNop(), stub, lock.NewLocal(), Config{}, prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Run(ctx, "@every 1h") }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("keeper did not stop")
	}
}

func TestRunRejectsBadSchedule(t *testing.T) {
	k := NewKeeper(zap.NewNop(), &stubSettler{}, lock.NewLocal(), Config{}, prometheus.NewRegistry())
	assert.Error(t, k.Run(context.Background(), "not a schedule"))
}
