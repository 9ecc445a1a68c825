// Package repo persiste Market e Position como bytes do codec, com colunas indexadas
// para consulta, e mantém os saldos das token accounts no mesmo banco.
//
// Toda mutação acontece dentro de Store.InTx: linhas são lidas com lock
// (SELECT ... FOR UPDATE no Postgres) e gravadas com checagem de version.
package repo

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrConflict indica que a linha mudou entre a leitura e a escrita.
var ErrConflict = errors.New("repo: concurrent update conflict")

type dialect struct {
	driver string
}

// rebind troca os placeholders ? por $n no Postgres.
func (d dialect) rebind(q string) string {
	if d.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) forUpdate() string {
	if d.driver == DriverPostgres {
		return " FOR UPDATE"
	}
	// SQLite roda com uma única conexão: a transação já é exclusiva
	return ""
}

// Store implementa a persistência do motor de liquidação.
type Store struct {
	db *sql.DB
	d  dialect
}

func New(db *sql.DB, driver string) (*Store, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, errors.Errorf("repo: unsupported driver %q", driver)
	}
	return &Store{db: db, d: dialect{driver: driver}}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// InTx executa fn numa transação. Qualquer erro desfaz tudo, inclusive movimentação de saldo.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{tx: sqlTx, d: s.d}); err != nil {
		return err
	}
	return errors.Wrap(sqlTx.Commit(), "commit tx")
}

// Tx expõe as operações com lock usadas dentro de uma unidade de trabalho.
type Tx struct {
	tx *sql.Tx
	d  dialect
}

func (t *Tx) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.d.rebind(q), args...)
}

func (t *Tx) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.d.rebind(q), args...)
}

func (s *Store) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.d.rebind(q), args...)
}

func (s *Store) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.d.rebind(q), args...)
}

// mustAffectOne transforma zero linhas afetadas em ErrConflict.
func mustAffectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "%s rows affected", what)
	}
	if n != 1 {
		return errors.Wrapf(ErrConflict, "%s: %d rows updated", what, n)
	}
	return nil
}

func formatAmount(v uint64) string { return strconv.FormatUint(v, 10) }

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	return v, errors.Wrapf(err, "parse amount %q", s)
}
