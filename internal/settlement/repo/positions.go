package repo

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/radieske/parimutuel-settlement/internal/engine"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

type PositionRow struct {
	Address  accounts.Pubkey
	Market   accounts.Pubkey
	Version  int64
	Position *accounts.Position
}

const positionColumns = `address, market, version, data`

func scanPosition(sc interface{ Scan(...any) error }) (*PositionRow, error) {
	var (
		addr, market string
		row          PositionRow
		data         []byte
	)
	if err := sc.Scan(&addr, &market, &row.Version, &data); err != nil {
		return nil, err
	}
	var err error
	if row.Address, err = accounts.ParsePubkey(addr); err != nil {
		return nil, errors.Wrap(err, "position address")
	}
	if row.Market, err = accounts.ParsePubkey(market); err != nil {
		return nil, errors.Wrap(err, "position market")
	}
	if row.Position, err = accounts.DecodePosition(data); err != nil {
		return nil, errors.Wrapf(err, "decode position %s", addr)
	}
	return &row, nil
}

func positionNotFound(addr accounts.Pubkey) error {
	return engine.Fail(engine.CodePositionNotFound, engine.EntityPosition, "position %s does not exist", addr)
}

// LockPosition lê a posição com lock. Ausente devolve engine.ErrPositionNotFound.
func (t *Tx) LockPosition(ctx context.Context, addr accounts.Pubkey) (*PositionRow, error) {
	row, err := scanPosition(t.queryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE address = ?`+t.d.forUpdate(), addr.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, positionNotFound(addr)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "lock position %s", addr)
	}
	return row, nil
}

func (t *Tx) InsertPosition(ctx context.Context, addr, market accounts.Pubkey, p *accounts.Position) (*PositionRow, error) {
	data, err := accounts.EncodePosition(p)
	if err != nil {
		return nil, errors.Wrap(err, "encode position")
	}
	if _, err := t.exec(ctx,
		`INSERT INTO positions (address, market, owner, data, version) VALUES (?, ?, ?, ?, 1)`,
		addr.String(), market.String(), p.Owner.String(), data,
	); err != nil {
		return nil, errors.Wrapf(err, "insert position %s", addr)
	}
	return &PositionRow{Address: addr, Market: market, Version: 1, Position: p}, nil
}

func (t *Tx) UpdatePosition(ctx context.Context, row *PositionRow) error {
	data, err := accounts.EncodePosition(row.Position)
	if err != nil {
		return errors.Wrap(err, "encode position")
	}
	res, err := t.exec(ctx,
		`UPDATE positions SET data = ?, version = version + 1 WHERE address = ? AND version = ?`,
		data, row.Address.String(), row.Version)
	if err != nil {
		return errors.Wrapf(err, "update position %s", row.Address)
	}
	if err := mustAffectOne(res, "update position"); err != nil {
		return err
	}
	row.Version++
	return nil
}

func (s *Store) GetPosition(ctx context.Context, addr accounts.Pubkey) (*PositionRow, error) {
	row, err := scanPosition(s.queryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE address = ?`, addr.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, positionNotFound(addr)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get position %s", addr)
	}
	return row, nil
}

func (s *Store) ListPositions(ctx context.Context, market accounts.Pubkey) ([]PositionRow, error) {
	rows, err := s.query(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE market = ? ORDER BY address`, market.String())
	if err != nil {
		return nil, errors.Wrap(err, "list positions")
	}
	defer rows.Close()

	var out []PositionRow
	for rows.Next() {
		row, err := scanPosition(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan position")
		}
		out = append(out, *row)
	}
	return out, errors.Wrap(rows.Err(), "iterate positions")
}

// RawAccount devolve os bytes persistidos de um Market ou Position pelo endereço.
func (s *Store) RawAccount(ctx context.Context, addr accounts.Pubkey) ([]byte, error) {
	var data []byte
	err := s.queryRow(ctx, `
		SELECT data FROM markets WHERE address = ?
		UNION ALL
		SELECT data FROM positions WHERE address = ?`, addr.String(), addr.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.Fail(engine.CodeMarketNotFound, engine.EntityMarket, "no account at %s", addr)
	}
	return data, errors.Wrapf(err, "raw account %s", addr)
}
