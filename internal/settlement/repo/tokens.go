package repo

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/radieske/parimutuel-settlement/internal/engine"
	"github.com/radieske/parimutuel-settlement/internal/ledger"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

// TokenAccount é o saldo de um titular (usuário ou vault de mercado) em um mint.
type TokenAccount struct {
	Address accounts.Pubkey
	Owner   accounts.Pubkey
	Mint    accounts.Pubkey
	Balance uint64
	Version int64
}

// Operações gravadas no token_ledger
const (
	OpCredit = "CREDIT"
	OpDebit  = "DEBIT"
)

func scanTokenAccount(sc interface{ Scan(...any) error }) (*TokenAccount, error) {
	var (
		addr, owner, mint, balance string
		ta                         TokenAccount
	)
	if err := sc.Scan(&addr, &owner, &mint, &balance, &ta.Version); err != nil {
		return nil, err
	}
	var err error
	if ta.Address, err = accounts.ParsePubkey(addr); err != nil {
		return nil, errors.Wrap(err, "token account address")
	}
	if ta.Owner, err = accounts.ParsePubkey(owner); err != nil {
		return nil, errors.Wrap(err, "token account owner")
	}
	if ta.Mint, err = accounts.ParsePubkey(mint); err != nil {
		return nil, errors.Wrap(err, "token account mint")
	}
	if ta.Balance, err = parseAmount(balance); err != nil {
		return nil, err
	}
	return &ta, nil
}

const tokenColumns = `address, owner, mint, balance, version`

func accountNotFound(addr accounts.Pubkey) error {
	return engine.Fail(engine.CodeAccountNotFound, engine.EntityTokenAccount, "token account %s does not exist", addr)
}

// OpenTokenAccount cria a conta com saldo zero se ainda não existir.
func (t *Tx) OpenTokenAccount(ctx context.Context, addr, owner, mint accounts.Pubkey) error {
	_, err := t.exec(ctx, `
		INSERT INTO token_accounts (address, owner, mint, balance, version)
		VALUES (?, ?, ?, '0', 1)
		ON CONFLICT (address) DO NOTHING`,
		addr.String(), owner.String(), mint.String())
	return errors.Wrapf(err, "open token account %s", addr)
}

func (t *Tx) lockTokenAccount(ctx context.Context, addr accounts.Pubkey) (*TokenAccount, error) {
	ta, err := scanTokenAccount(t.queryRow(ctx,
		`SELECT `+tokenColumns+` FROM token_accounts WHERE address = ?`+t.d.forUpdate(), addr.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, accountNotFound(addr)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "lock token account %s", addr)
	}
	return ta, nil
}

func (t *Tx) setBalance(ctx context.Context, ta *TokenAccount, balance uint64, op string, amount uint64, description string) error {
	res, err := t.exec(ctx,
		`UPDATE token_accounts SET balance = ?, version = version + 1 WHERE address = ? AND version = ?`,
		formatAmount(balance), ta.Address.String(), ta.Version)
	if err != nil {
		return errors.Wrapf(err, "update token account %s", ta.Address)
	}
	if err := mustAffectOne(res, "update token account"); err != nil {
		return err
	}
	if _, err := t.exec(ctx,
		`INSERT INTO token_ledger (account, operation_type, amount, description) VALUES (?, ?, ?, ?)`,
		ta.Address.String(), op, formatAmount(amount), description); err != nil {
		return errors.Wrap(err, "insert token ledger")
	}
	ta.Balance = balance
	ta.Version++
	return nil
}

// Credit soma amount ao saldo e registra no ledger.
func (t *Tx) Credit(ctx context.Context, addr accounts.Pubkey, amount uint64, description string) (uint64, error) {
	ta, err := t.lockTokenAccount(ctx, addr)
	if err != nil {
		return 0, err
	}
	next, err := ledger.Add(ta.Balance, amount)
	if err != nil {
		return 0, engine.Fail(engine.CodeOverflow, engine.EntityTokenAccount, "credit %d to %s: %v", amount, addr, err)
	}
	if err := t.setBalance(ctx, ta, next, OpCredit, amount, description); err != nil {
		return 0, err
	}
	return next, nil
}

// Debit subtrai amount do saldo. Saldo insuficiente devolve engine.ErrInsufficientFunds.
func (t *Tx) Debit(ctx context.Context, addr accounts.Pubkey, amount uint64, description string) (uint64, error) {
	ta, err := t.lockTokenAccount(ctx, addr)
	if err != nil {
		return 0, err
	}
	if ta.Balance < amount {
		return 0, engine.Fail(engine.CodeInsufficientFunds, engine.EntityTokenAccount, "%s holds %d, needs %d", addr, ta.Balance, amount)
	}
	if err := t.setBalance(ctx, ta, ta.Balance-amount, OpDebit, amount, description); err != nil {
		return 0, err
	}
	return ta.Balance, nil
}

// Transfer move amount de from para to na mesma transação.
// Os locks são tomados em ordem de endereço para evitar deadlock entre transferências cruzadas.
func (t *Tx) Transfer(ctx context.Context, from, to accounts.Pubkey, amount uint64, description string) error {
	first, second := from, to
	if to.String() < from.String() {
		first, second = to, from
	}
	if _, err := t.lockTokenAccount(ctx, first); err != nil {
		return err
	}
	if _, err := t.lockTokenAccount(ctx, second); err != nil {
		return err
	}
	if _, err := t.Debit(ctx, from, amount, description); err != nil {
		return err
	}
	_, err := t.Credit(ctx, to, amount, description)
	return err
}

func (s *Store) GetTokenAccount(ctx context.Context, addr accounts.Pubkey) (*TokenAccount, error) {
	ta, err := scanTokenAccount(s.queryRow(ctx,
		`SELECT `+tokenColumns+` FROM token_accounts WHERE address = ?`, addr.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, accountNotFound(addr)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get token account %s", addr)
	}
	return ta, nil
}
