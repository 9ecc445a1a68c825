package engine

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

// Odds é a cotação decimal de exibição de cada lado: distribuível / total do lado.
// Só para UI; valores monetários continuam inteiros.
type Odds struct {
	A decimal.Decimal `json:"a"`
	B decimal.Decimal `json:"b"`
	// ImpliedA é a fatia do pool apostada em A (0..1).
	ImpliedA decimal.Decimal `json:"implied_a"`
}

const oddsPlaces = 4

// PreviewOdds calcula as cotações atuais. Lado sem apostas tem cotação zero.
func PreviewOdds(m *accounts.Market) (Odds, error) {
	pool, err := Fees(m)
	if err != nil {
		return Odds{}, err
	}
	dist := dec(pool.Distributable)
	odds := Odds{A: decimal.Zero, B: decimal.Zero, ImpliedA: decimal.Zero}
	if m.StakedA > 0 {
		odds.A = dist.DivRound(dec(m.StakedA), oddsPlaces)
	}
	if m.StakedB > 0 {
		odds.B = dist.DivRound(dec(m.StakedB), oddsPlaces)
	}
	if pool.Total > 0 {
		odds.ImpliedA = dec(m.StakedA).DivRound(dec(pool.Total), oddsPlaces)
	}
	return odds, nil
}

// PreviewPayout estima o pagamento de uma aposta hipotética caso o lado dela vença,
// somando a aposta numa cópia do mercado e chamando o mesmo Payout da liquidação.
func PreviewPayout(m *accounts.Market, side accounts.Side, amount uint64) (uint64, error) {
	if !side.Valid() {
		return 0, Fail(CodeInvalidSide, EntityPosition, "unknown side %d", uint8(side))
	}
	if amount == 0 {
		return 0, Fail(CodeInvalidAmount, EntityPosition, "amount must be positive")
	}
	hypo := *m
	hypo.Status = accounts.StatusOpen
	hypo.Outcome = accounts.Outcome{}
	// sem relógio aqui: qualquer instante antes do fim serve
	pos, err := PlaceBet(&hypo, nil, accounts.Pubkey{}, side, amount, hypo.EndTime-1)
	if err != nil {
		return 0, err
	}
	hypo.Status = accounts.StatusResolved
	hypo.Outcome = accounts.SomeOutcome(side)
	return Payout(&hypo, pos)
}

func dec(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
