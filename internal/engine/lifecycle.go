package engine

import (
	"unicode/utf8"

	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

// MaxFeeBps limita a taxa do criador a 20%.
const MaxFeeBps uint16 = 2000

// InitParams são os dados de criação de um mercado. Os endereços e bumps já vêm derivados pelo host.
type InitParams struct {
	Creator         accounts.Pubkey
	StakeMint       accounts.Pubkey
	Vault           accounts.Pubkey
	FeeBps          uint16
	EndTime         int64
	ResolveDeadline int64
	Title           string
	Bump            uint8
	VaultBump       uint8
}

// Initialize cria um mercado Open. Nenhum estado existe se a validação falhar.
func Initialize(p InitParams, now int64) (*accounts.Market, error) {
	if p.FeeBps > MaxFeeBps {
		return nil, Fail(CodeFeeTooHigh, EntityMarket, "fee %d bps exceeds %d", p.FeeBps, MaxFeeBps)
	}
	if p.Title == "" {
		return nil, Fail(CodeTitleRequired, EntityMarket, "title is empty")
	}
	if len(p.Title) > accounts.MaxTitleLen {
		return nil, Fail(CodeTitleTooLong, EntityMarket, "title has %d bytes, max %d", len(p.Title), accounts.MaxTitleLen)
	}
	if !utf8.ValidString(p.Title) {
		return nil, Fail(CodeInvalidTitle, EntityMarket, "title is not valid utf-8")
	}
	if p.EndTime <= now {
		return nil, Fail(CodeEndTimeInPast, EntityMarket, "end time %d is not after %d", p.EndTime, now)
	}
	if p.ResolveDeadline <= p.EndTime {
		return nil, Fail(CodeInvalidDeadline, EntityMarket, "resolve deadline %d must be after end time %d", p.ResolveDeadline, p.EndTime)
	}

	return &accounts.Market{
		Creator:         p.Creator,
		StakeMint:       p.StakeMint,
		Vault:           p.Vault,
		FeeBps:          p.FeeBps,
		EndTime:         p.EndTime,
		ResolveDeadline: p.ResolveDeadline,
		Status:          accounts.StatusOpen,
		Bump:            p.Bump,
		VaultBump:       p.VaultBump,
		Title:           p.Title,
	}, nil
}

// CloseBetting leva Open → PendingResolve a partir de endTime. Qualquer um pode chamar.
func CloseBetting(m *accounts.Market, now int64) error {
	switch m.Status {
	case accounts.StatusOpen:
	case accounts.StatusPendingResolve:
		return Fail(CodeAlreadyClosed, EntityMarket, "betting already closed")
	default:
		return invalidState(m, "close betting")
	}
	if now < m.EndTime {
		return Fail(CodeBettingStillOpen, EntityMarket, "betting open until %d, now %d", m.EndTime, now)
	}
	m.Status = accounts.StatusPendingResolve
	return nil
}

// Resolve fixa o resultado. Só o criador, só em PendingResolve, até resolveDeadline inclusive.
func Resolve(m *accounts.Market, caller accounts.Pubkey, outcome accounts.Side, now int64) error {
	if m.Status != accounts.StatusPendingResolve {
		return invalidState(m, "resolve")
	}
	if caller != m.Creator {
		return Fail(CodeUnauthorized, EntityMarket, "%s is not the market creator", caller)
	}
	if !outcome.Valid() {
		return Fail(CodeInvalidSide, EntityMarket, "unknown outcome %d", uint8(outcome))
	}
	if now > m.ResolveDeadline {
		return Fail(CodeDeadlinePassed, EntityMarket, "resolve deadline %d passed, now %d", m.ResolveDeadline, now)
	}
	m.Status = accounts.StatusResolved
	m.Outcome = accounts.SomeOutcome(outcome)
	return nil
}

// CancelExpired cancela um mercado cujo criador não resolveu a tempo.
func CancelExpired(m *accounts.Market, now int64) error {
	if m.Status != accounts.StatusPendingResolve {
		return invalidState(m, "cancel")
	}
	if now <= m.ResolveDeadline {
		return Fail(CodeDeadlineNotReached, EntityMarket, "resolve deadline %d not reached, now %d", m.ResolveDeadline, now)
	}
	m.Status = accounts.StatusCancelled
	return nil
}

func invalidState(m *accounts.Market, op string) *Error {
	return Fail(CodeInvalidState, EntityMarket, "cannot %s a market in status %s", op, m.Status)
}

// Actionable informa quais transições do agendador cabem ao mercado em now.
func Actionable(m *accounts.Market, now int64) (closable, cancellable bool) {
	switch m.Status {
	case accounts.StatusOpen:
		return now >= m.EndTime, false
	case accounts.StatusPendingResolve:
		return false, now > m.ResolveDeadline
	default:
		return false, false
	}
}
