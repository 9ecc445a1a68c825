package repo

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/radieske/parimutuel-settlement/internal/engine"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

// MarketRow é um Market persistido com o endereço, o nonce de derivação e a versão da linha.
type MarketRow struct {
	Address accounts.Pubkey
	Nonce   uint64
	Version int64
	Market  *accounts.Market
}

const marketColumns = `address, nonce, version, data`

func scanMarket(sc interface{ Scan(...any) error }) (*MarketRow, error) {
	var (
		addr string
		row  MarketRow
		data []byte
	)
	if err := sc.Scan(&addr, &row.Nonce, &row.Version, &data); err != nil {
		return nil, err
	}
	pk, err := accounts.ParsePubkey(addr)
	if err != nil {
		return nil, errors.Wrap(err, "market address")
	}
	m, err := accounts.DecodeMarket(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode market %s", addr)
	}
	row.Address, row.Market = pk, m
	return &row, nil
}

func marketNotFound(addr accounts.Pubkey) error {
	return engine.Fail(engine.CodeMarketNotFound, engine.EntityMarket, "market %s does not exist", addr)
}

// NextMarketNonce reserva o próximo nonce do criador (0, 1, 2, ...).
func (t *Tx) NextMarketNonce(ctx context.Context, creator accounts.Pubkey) (uint64, error) {
	if _, err := t.exec(ctx,
		`INSERT INTO creator_nonces (creator, next_nonce) VALUES (?, 0) ON CONFLICT (creator) DO NOTHING`,
		creator.String()); err != nil {
		return 0, errors.Wrap(err, "insert creator nonce")
	}
	var nonce uint64
	if err := t.queryRow(ctx,
		`SELECT next_nonce FROM creator_nonces WHERE creator = ?`+t.d.forUpdate(),
		creator.String()).Scan(&nonce); err != nil {
		return 0, errors.Wrap(err, "select creator nonce")
	}
	if _, err := t.exec(ctx,
		`UPDATE creator_nonces SET next_nonce = next_nonce + 1 WHERE creator = ?`,
		creator.String()); err != nil {
		return 0, errors.Wrap(err, "bump creator nonce")
	}
	return nonce, nil
}

func (t *Tx) InsertMarket(ctx context.Context, addr accounts.Pubkey, nonce uint64, m *accounts.Market) (*MarketRow, error) {
	data, err := accounts.EncodeMarket(m)
	if err != nil {
		return nil, errors.Wrap(err, "encode market")
	}
	if _, err := t.exec(ctx, `
		INSERT INTO markets (address, creator, nonce, status, end_ts, resolve_deadline_ts, data, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
		addr.String(), m.Creator.String(), nonce, int(m.Status), m.EndTime, m.ResolveDeadline, data,
	); err != nil {
		return nil, errors.Wrapf(err, "insert market %s", addr)
	}
	return &MarketRow{Address: addr, Nonce: nonce, Version: 1, Market: m}, nil
}

// LockMarket lê o mercado com lock de linha até o fim da transação.
func (t *Tx) LockMarket(ctx context.Context, addr accounts.Pubkey) (*MarketRow, error) {
	row, err := scanMarket(t.queryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE address = ?`+t.d.forUpdate(), addr.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, marketNotFound(addr)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "lock market %s", addr)
	}
	return row, nil
}

// UpdateMarket regrava os bytes e as colunas indexadas, exigindo a versão lida.
func (t *Tx) UpdateMarket(ctx context.Context, row *MarketRow) error {
	data, err := accounts.EncodeMarket(row.Market)
	if err != nil {
		return errors.Wrap(err, "encode market")
	}
	res, err := t.exec(ctx, `
		UPDATE markets SET status = ?, data = ?, version = version + 1
		WHERE address = ? AND version = ?`,
		int(row.Market.Status), data, row.Address.String(), row.Version)
	if err != nil {
		return errors.Wrapf(err, "update market %s", row.Address)
	}
	if err := mustAffectOne(res, "update market"); err != nil {
		return err
	}
	row.Version++
	return nil
}

func (s *Store) GetMarket(ctx context.Context, addr accounts.Pubkey) (*MarketRow, error) {
	row, err := scanMarket(s.queryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE address = ?`, addr.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, marketNotFound(addr)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get market %s", addr)
	}
	return row, nil
}

// MarketFilter restringe ListMarkets. Campos nil não filtram.
type MarketFilter struct {
	Status  *accounts.Status
	Creator *accounts.Pubkey
	Limit   int
}

const defaultListLimit = 100

func (s *Store) ListMarkets(ctx context.Context, f MarketFilter) ([]MarketRow, error) {
	q := `SELECT ` + marketColumns + ` FROM markets WHERE 1 = 1`
	var args []any
	if f.Status != nil {
		q += ` AND status = ?`
		args = append(args, int(*f.Status))
	}
	if f.Creator != nil {
		q += ` AND creator = ?`
		args = append(args, f.Creator.String())
	}
	q += ` ORDER BY end_ts, address LIMIT ?`
	args = append(args, limitOrDefault(f.Limit))
	return s.listMarkets(ctx, q, args...)
}

// ListClosable devolve mercados Open com end_ts <= now.
func (s *Store) ListClosable(ctx context.Context, now int64, limit int) ([]MarketRow, error) {
	return s.listMarkets(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE status = ? AND end_ts <= ? ORDER BY end_ts, address LIMIT ?`,
		int(accounts.StatusOpen), now, limitOrDefault(limit))
}

// ListExpired devolve mercados PendingResolve com resolve_deadline_ts < now.
func (s *Store) ListExpired(ctx context.Context, now int64, limit int) ([]MarketRow, error) {
	return s.listMarkets(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE status = ? AND resolve_deadline_ts < ? ORDER BY resolve_deadline_ts, address LIMIT ?`,
		int(accounts.StatusPendingResolve), now, limitOrDefault(limit))
}

func (s *Store) listMarkets(ctx context.Context, q string, args ...any) ([]MarketRow, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list markets")
	}
	defer rows.Close()

	var out []MarketRow
	for rows.Next() {
		row, err := scanMarket(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan market")
		}
		out = append(out, *row)
	}
	return out, errors.Wrap(rows.Err(), "iterate markets")
}

func limitOrDefault(n int) int {
	if n <= 0 || n > 1000 {
		return defaultListLimit
	}
	return n
}
