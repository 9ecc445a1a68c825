package engine

import (
	"github.com/radieske/parimutuel-settlement/internal/ledger"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

// PlaceBet aplica uma aposta ao mercado e à posição do usuário.
//
// pos == nil indica a primeira aposta do usuário: a posição é criada com o lado informado.
// Uma posição existente só aceita apostas do mesmo lado. Tudo é validado antes de qualquer
// escrita; em erro nem o mercado nem a posição mudam. O bump da posição nova fica a cargo do host.
func PlaceBet(m *accounts.Market, pos *accounts.Position, user accounts.Pubkey, side accounts.Side, amount uint64, now int64) (*accounts.Position, error) {
	if m.Status != accounts.StatusOpen {
		return nil, invalidState(m, "bet on")
	}
	if now >= m.EndTime {
		return nil, Fail(CodeBettingClosed, EntityMarket, "betting ended at %d, now %d", m.EndTime, now)
	}
	if amount == 0 {
		return nil, Fail(CodeInvalidAmount, EntityPosition, "amount must be positive")
	}
	if !side.Valid() {
		return nil, Fail(CodeInvalidSide, EntityPosition, "unknown side %d", uint8(side))
	}

	next := accounts.Position{Owner: user, Side: side}
	if pos != nil {
		if pos.Owner != user {
			return nil, Fail(CodeUnauthorized, EntityPosition, "position belongs to %s", pos.Owner)
		}
		if pos.Side != side {
			return nil, Fail(CodeOpposingSide, EntityPosition, "position is on side %s, bet on %s", pos.Side, side)
		}
		next = *pos
	}

	var err error
	if next.Amount, err = ledger.Add(next.Amount, amount); err != nil {
		return nil, arithmetic(err, EntityPosition)
	}
	stakedA, stakedB := m.StakedA, m.StakedB
	if side == accounts.SideA {
		stakedA, err = ledger.Add(stakedA, amount)
	} else {
		stakedB, err = ledger.Add(stakedB, amount)
	}
	if err != nil {
		return nil, arithmetic(err, EntityMarket)
	}
	// o pool total também precisa caber em 64 bits para o cálculo de taxa
	if _, err = ledger.Add(stakedA, stakedB); err != nil {
		return nil, arithmetic(err, EntityMarket)
	}

	m.StakedA, m.StakedB = stakedA, stakedB
	return &next, nil
}
