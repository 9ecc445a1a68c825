package repo

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/parimutuel-settlement/internal/engine"
	"github.com/radieske/parimutuel-settlement/internal/shared/db"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.ConnectSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	s, err := New(conn, DriverSQLite)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func pk(b byte) accounts.Pubkey {
	var k accounts.Pubkey
	k[0], k[31] = b, b
	return k
}

func testMarket(status accounts.Status, end int64) *accounts.Market {
	m := &accounts.Market{
		Creator:         pk(1),
		StakeMint:       pk(2),
		Vault:           pk(3),
		FeeBps:          500,
		EndTime:         end,
		ResolveDeadline: end + 100,
		Status:          status,
		Title:           "market",
	}
	if status == accounts.StatusResolved {
		m.Outcome = accounts.SomeOutcome(accounts.SideA)
	}
	return m
}

func TestRebind(t *testing.T) {
	pg := dialect{driver: DriverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	assert.Equal(t, " FOR UPDATE", pg.forUpdate())

	lite := dialect{driver: DriverSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
	assert.Empty(t, lite.forUpdate())

	_, err := New(nil, "mysql")
	assert.Error(t, err)
}

func TestNextMarketNonce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var got []uint64
	for i := 0; i < 3; i++ {
		require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
			n, err := tx.NextMarketNonce(ctx, pk(1))
			got = append(got, n)
			return err
		}))
	}
	assert.Equal(t, []uint64{0, 1, 2}, got)

	// outro criador começa do zero
	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		n, err := tx.NextMarketNonce(ctx, pk(9))
		assert.Zero(t, n)
		return err
	}))

	// rollback devolve o nonce
	_ = s.InTx(ctx, func(tx *Tx) error {
		_, err := tx.NextMarketNonce(ctx, pk(1))
		require.NoError(t, err)
		return errors.New("abort")
	})
	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		n, err := tx.NextMarketNonce(ctx, pk(1))
		assert.Equal(t, uint64(3), n)
		return err
	}))
}

func TestMarketRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addr := pk(10)

	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		_, err := tx.InsertMarket(ctx, addr, 0, testMarket(accounts.StatusOpen, 1000))
		return err
	}))

	row, err := s.GetMarket(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, int64(1), row.Version)
	assert.Equal(t, "market", row.Market.Title)

	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		row, err := tx.LockMarket(ctx, addr)
		require.NoError(t, err)
		row.Market.StakedA = 77
		row.Market.Status = accounts.StatusPendingResolve
		require.NoError(t, tx.UpdateMarket(ctx, row))
		assert.Equal(t, int64(2), row.Version)
		return nil
	}))

	row, err = s.GetMarket(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), row.Market.StakedA)
	assert.Equal(t, accounts.StatusPendingResolve, row.Market.Status)

	raw, err := s.RawAccount(ctx, addr)
	require.NoError(t, err)
	decoded, err := accounts.DecodeMarket(raw)
	require.NoError(t, err)
	assert.Equal(t, row.Market, decoded)
}

func TestUpdateMarketStaleVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addr := pk(10)

	var stale *MarketRow
	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		var err error
		stale, err = tx.InsertMarket(ctx, addr, 0, testMarket(accounts.StatusOpen, 1000))
		return err
	}))
	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		row, err := tx.LockMarket(ctx, addr)
		require.NoError(t, err)
		return tx.UpdateMarket(ctx, row)
	}))

	err := s.InTx(ctx, func(tx *Tx) error { return tx.UpdateMarket(ctx, stale) })
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMissingRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetMarket(ctx, pk(1))
	assert.ErrorIs(t, err, engine.ErrMarketNotFound)
	assert.Equal(t, engine.KindNotFound, engine.KindOf(err))

	_, err = s.GetPosition(ctx, pk(1))
	assert.ErrorIs(t, err, engine.ErrPositionNotFound)

	_, err = s.GetTokenAccount(ctx, pk(1))
	assert.ErrorIs(t, err, engine.ErrAccountNotFound)

	_, err = s.RawAccount(ctx, pk(1))
	assert.Equal(t, engine.KindNotFound, engine.KindOf(err))

	err = s.InTx(ctx, func(tx *Tx) error {
		_, err := tx.LockPosition(ctx, pk(1))
		return err
	})
	assert.ErrorIs(t, err, engine.ErrPositionNotFound)
}

func TestPositions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	market := pk(10)

	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.InsertMarket(ctx, market, 0, testMarket(accounts.StatusOpen, 1000)); err != nil {
			return err
		}
		_, err := tx.InsertPosition(ctx, pk(20), market, &accounts.Position{Owner: pk(5), Side: accounts.SideB, Amount: 10})
		return err
	}))

	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		row, err := tx.LockPosition(ctx, pk(20))
		require.NoError(t, err)
		row.Position.Amount += 5
		return tx.UpdatePosition(ctx, row)
	}))

	rows, err := s.ListPositions(ctx, market)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(15), rows[0].Position.Amount)
	assert.Equal(t, int64(2), rows[0].Version)
	assert.Equal(t, market, rows[0].Market)

	raw, err := s.RawAccount(ctx, pk(20))
	require.NoError(t, err)
	kind, err := accounts.Kind(raw)
	require.NoError(t, err)
	assert.Equal(t, "Position", kind)
}

func TestListDueMarkets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		for i, m := range []*accounts.Market{
			testMarket(accounts.StatusOpen, 100),
			testMarket(accounts.StatusOpen, 500),
			testMarket(accounts.StatusPendingResolve, 100),
			testMarket(accounts.StatusPendingResolve, 300),
			testMarket(accounts.StatusResolved, 50),
		} {
			if _, err := tx.InsertMarket(ctx, pk(byte(10+i)), uint64(i), m); err != nil {
				return err
			}
		}
		return nil
	}))

	closable, err := s.ListClosable(ctx, 100, 10)
	require.NoError(t, err)
	require.Len(t, closable, 1)
	assert.Equal(t, pk(10), closable[0].Address)

	// prazo 200 e 400: só o primeiro venceu em 250
	expired, err := s.ListExpired(ctx, 250, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, pk(12), expired[0].Address)

	expired, err = s.ListExpired(ctx, 200, 10)
	require.NoError(t, err)
	assert.Empty(t, expired)

	open := accounts.StatusOpen
	all, err := s.ListMarkets(ctx, MarketFilter{Status: &open})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	creator := pk(1)
	all, err = s.ListMarkets(ctx, MarketFilter{Creator: &creator, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTransfer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user, vault := pk(30), pk(31)

	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		require.NoError(t, tx.OpenTokenAccount(ctx, user, pk(5), pk(2)))
		require.NoError(t, tx.OpenTokenAccount(ctx, vault, pk(10), pk(2)))
		// abrir de novo não zera o saldo
		_, err := tx.Credit(ctx, user, 1000, "deposit:test")
		require.NoError(t, err)
		return tx.OpenTokenAccount(ctx, user, pk(5), pk(2))
	}))

	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		return tx.Transfer(ctx, user, vault, 400, "bet")
	}))

	u, err := s.GetTokenAccount(ctx, user)
	require.NoError(t, err)
	v, err := s.GetTokenAccount(ctx, vault)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), u.Balance)
	assert.Equal(t, uint64(400), v.Balance)
	assert.Equal(t, pk(5), u.Owner)

	err = s.InTx(ctx, func(tx *Tx) error {
		return tx.Transfer(ctx, user, vault, 601, "bet")
	})
	assert.ErrorIs(t, err, engine.ErrInsufficientFunds)

	u, err = s.GetTokenAccount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), u.Balance)

	err = s.InTx(ctx, func(tx *Tx) error {
		return tx.Transfer(ctx, user, pk(99), 1, "bet")
	})
	assert.ErrorIs(t, err, engine.ErrAccountNotFound)
}

func TestLargeBalances(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acct := pk(40)
	const big = uint64(1<<63 + 12345)

	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		require.NoError(t, tx.OpenTokenAccount(ctx, acct, pk(5), pk(2)))
		_, err := tx.Credit(ctx, acct, big, "deposit:big")
		return err
	}))
	ta, err := s.GetTokenAccount(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, big, ta.Balance)

	err = s.InTx(ctx, func(tx *Tx) error {
		_, err := tx.Credit(ctx, acct, big, "deposit:big")
		return err
	})
	assert.ErrorIs(t, err, engine.ErrOverflow)
}
