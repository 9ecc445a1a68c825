package engine

import (
	"errors"

	"github.com/radieske/parimutuel-settlement/internal/ledger"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

// Pool resume o pool de um mercado: total, taxa do criador e o que sobra para distribuir.
// Vale fee + distributable == total.
type Pool struct {
	Total         uint64
	Fee           uint64
	Distributable uint64
}

// Fees é o único cálculo de taxa do sistema. Liquidação, saque da taxa e preview passam por aqui.
func Fees(m *accounts.Market) (Pool, error) {
	total, err := ledger.Add(m.StakedA, m.StakedB)
	if err != nil {
		return Pool{}, arithmetic(err, EntityMarket)
	}
	fee, err := ledger.Bps(total, m.FeeBps)
	if err != nil {
		return Pool{}, arithmetic(err, EntityMarket)
	}
	distributable, err := ledger.Sub(total, fee)
	if err != nil {
		return Pool{}, arithmetic(err, EntityMarket)
	}
	return Pool{Total: total, Fee: fee, Distributable: distributable}, nil
}

// Payout calcula quanto a posição recebe num mercado finalizado.
// Cancelado devolve o valor apostado integral; resolvido paga pro-rata do distribuível ao lado vencedor.
func Payout(m *accounts.Market, p *accounts.Position) (uint64, error) {
	switch m.Status {
	case accounts.StatusCancelled:
		return p.Amount, nil
	case accounts.StatusResolved:
	default:
		return 0, invalidState(m, "pay out")
	}
	if !m.Outcome.Valid || p.Side != m.Outcome.Side {
		return 0, nil
	}

	pool, err := Fees(m)
	if err != nil {
		return 0, err
	}
	winning := m.Staked(m.Outcome.Side)
	if winning == 0 {
		return 0, nil
	}
	payout, err := ledger.MulDiv(pool.Distributable, p.Amount, winning)
	if err != nil {
		return 0, arithmetic(err, EntityPosition)
	}
	return payout, nil
}

// WithdrawFee marca a taxa do criador como sacada e devolve o valor a transferir do vault.
// Mercado cancelado nunca acumula taxa.
func WithdrawFee(m *accounts.Market, caller accounts.Pubkey) (uint64, error) {
	if m.Status != accounts.StatusResolved {
		return 0, invalidState(m, "withdraw fee from")
	}
	if caller != m.Creator {
		return 0, Fail(CodeUnauthorized, EntityMarket, "%s is not the market creator", caller)
	}
	if m.CreatorFeeWithdrawn {
		return 0, Fail(CodeFeeAlreadyWithdrawn, EntityMarket, "creator fee already withdrawn")
	}
	pool, err := Fees(m)
	if err != nil {
		return 0, err
	}
	m.CreatorFeeWithdrawn = true
	return pool.Fee, nil
}

func arithmetic(err error, entity string) *Error {
	switch {
	case errors.Is(err, ledger.ErrUnderflow):
		return Fail(CodeUnderflow, entity, "%v", err)
	default:
		return Fail(CodeOverflow, entity, "%v", err)
	}
}
