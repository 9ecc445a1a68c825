package dto

import (
	"github.com/radieske/parimutuel-settlement/internal/engine"
	"github.com/radieske/parimutuel-settlement/internal/settlement"
	"github.com/radieske/parimutuel-settlement/internal/settlement/repo"
)

// Valores monetários saem como string: u64 não cabe num number de JS.

type InitializeMarketResponse struct {
	Market string `json:"market"`
	Vault  string `json:"vault"`
	Nonce  uint64 `json:"nonce"`
}

type MarketResponse struct {
	Address             string      `json:"address"`
	Creator             string      `json:"creator"`
	Mint                string      `json:"mint"`
	Vault               string      `json:"vault"`
	Title               string      `json:"title"`
	FeeBps              uint16      `json:"fee_bps"`
	EndTs               int64       `json:"end_ts"`
	ResolveDeadlineTs   int64       `json:"resolve_deadline_ts"`
	StakedA             uint64      `json:"staked_a,string"`
	StakedB             uint64      `json:"staked_b,string"`
	Status              string      `json:"status"`
	Outcome             *string     `json:"outcome"`
	CreatorFeeWithdrawn bool        `json:"creator_fee_withdrawn"`
	Total               uint64      `json:"total,string"`
	Fee                 uint64      `json:"fee,string"`
	Distributable       uint64      `json:"distributable,string"`
	Odds                engine.Odds `json:"odds"`
}

func NewMarketResponse(v settlement.MarketView) MarketResponse {
	m := v.Market
	resp := MarketResponse{
		Address:             v.Address.String(),
		Creator:             m.Creator.String(),
		Mint:                m.StakeMint.String(),
		Vault:               m.Vault.String(),
		Title:               m.Title,
		FeeBps:              m.FeeBps,
		EndTs:               m.EndTime,
		ResolveDeadlineTs:   m.ResolveDeadline,
		StakedA:             m.StakedA,
		StakedB:             m.StakedB,
		Status:              m.Status.String(),
		CreatorFeeWithdrawn: m.CreatorFeeWithdrawn,
		Total:               v.Pool.Total,
		Fee:                 v.Pool.Fee,
		Distributable:       v.Pool.Distributable,
		Odds:                v.Odds,
	}
	if m.Outcome.Valid {
		side := m.Outcome.Side.String()
		resp.Outcome = &side
	}
	return resp
}

type PositionResponse struct {
	Address string `json:"address"`
	Market  string `json:"market"`
	Owner   string `json:"owner"`
	Side    string `json:"side"`
	Amount  uint64 `json:"amount,string"`
	Claimed bool   `json:"claimed"`
}

func NewPositionResponse(r repo.PositionRow) PositionResponse {
	return PositionResponse{
		Address: r.Address.String(),
		Market:  r.Market.String(),
		Owner:   r.Position.Owner.String(),
		Side:    r.Position.Side.String(),
		Amount:  r.Position.Amount,
		Claimed: r.Position.Claimed,
	}
}

type RawAccountResponse struct {
	Address string `json:"address"`
	Kind    string `json:"kind"`
	Data    []byte `json:"data"`
}

type AmountResponse struct {
	Market string `json:"market"`
	Amount uint64 `json:"amount,string"`
}

type PreviewResponse struct {
	Market string `json:"market"`
	Side   string `json:"side"`
	Stake  uint64 `json:"stake,string"`
	Payout uint64 `json:"payout,string"`
}

type BalanceResponse struct {
	Address string `json:"address"`
	Owner   string `json:"owner"`
	Mint    string `json:"mint"`
	Balance uint64 `json:"balance,string"`
}

func NewBalanceResponse(ta *repo.TokenAccount) BalanceResponse {
	return BalanceResponse{
		Address: ta.Address.String(),
		Owner:   ta.Owner.String(),
		Mint:    ta.Mint.String(),
		Balance: ta.Balance,
	}
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Kind   string `json:"kind"`
	Entity string `json:"entity,omitempty"`
}
