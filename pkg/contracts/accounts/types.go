// Package accounts define os registros persistidos (Market, Position), o layout binário
// deles e a derivação determinística de endereços usada por qualquer cliente.
package accounts

import (
	"fmt"
	"strings"
)

// MaxTitleLen é o limite do título em bytes.
const MaxTitleLen = 64

// Side é um dos dois resultados mutuamente exclusivos.
type Side uint8

const (
	SideA Side = 0
	SideB Side = 1
)

func (s Side) Valid() bool { return s == SideA || s == SideB }

func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	default:
		return fmt.Sprintf("Side(%d)", uint8(s))
	}
}

// ParseSide aceita "A"/"B" sem diferenciar maiúsculas.
func ParseSide(v string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "A":
		return SideA, nil
	case "B":
		return SideB, nil
	default:
		return 0, fmt.Errorf("accounts: unknown side %q", v)
	}
}

func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("accounts: invalid side %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Status é a fase do ciclo de vida do mercado.
type Status uint8

const (
	StatusOpen           Status = 0
	StatusPendingResolve Status = 1
	StatusResolved       Status = 2
	StatusCancelled      Status = 3
)

func (s Status) Valid() bool { return s <= StatusCancelled }

// Terminal indica Resolved ou Cancelled; nenhuma transição sai daí.
func (s Status) Terminal() bool { return s == StatusResolved || s == StatusCancelled }

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusPendingResolve:
		return "pending_resolve"
	case StatusResolved:
		return "resolved"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

func ParseStatus(v string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "open":
		return StatusOpen, nil
	case "pending_resolve", "pendingresolve":
		return StatusPendingResolve, nil
	case "resolved":
		return StatusResolved, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	default:
		return 0, fmt.Errorf("accounts: unknown status %q", v)
	}
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("accounts: invalid status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Outcome é o lado vencedor opcional; só existe com Status = Resolved.
type Outcome struct {
	Side  Side
	Valid bool
}

func SomeOutcome(s Side) Outcome { return Outcome{Side: s, Valid: true} }

func (o Outcome) String() string {
	if !o.Valid {
		return "none"
	}
	return o.Side.String()
}

// Market é um mercado de dois lados.
type Market struct {
	Creator             Pubkey
	StakeMint           Pubkey
	Vault               Pubkey
	FeeBps              uint16
	EndTime             int64
	ResolveDeadline     int64
	StakedA             uint64
	StakedB             uint64
	Status              Status
	Outcome             Outcome
	CreatorFeeWithdrawn bool
	Bump                uint8
	VaultBump           uint8
	Title               string
}

// Staked devolve o total do lado informado.
func (m *Market) Staked(s Side) uint64 {
	if s == SideA {
		return m.StakedA
	}
	return m.StakedB
}

// Position é a aposta agregada de um usuário em um mercado.
type Position struct {
	Owner   Pubkey
	Side    Side
	Amount  uint64
	Claimed bool
	Bump    uint8
}
