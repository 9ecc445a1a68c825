package engine

import "github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"

// Claim paga uma posição uma única vez.
// Devolve o valor a transferir do vault para o dono; a marcação de claimed e a transferência
// precisam ser gravadas juntas pelo host. Valor zero ainda marca a posição.
func Claim(m *accounts.Market, p *accounts.Position, caller accounts.Pubkey) (uint64, error) {
	if !m.Status.Terminal() {
		return 0, invalidState(m, "claim from")
	}
	if p.Claimed {
		return 0, Fail(CodeAlreadyClaimed, EntityPosition, "position of %s already claimed", p.Owner)
	}
	if caller != p.Owner {
		return 0, Fail(CodeUnauthorized, EntityPosition, "%s does not own the position", caller)
	}
	payout, err := Payout(m, p)
	if err != nil {
		return 0, err
	}
	p.Claimed = true
	return payout, nil
}
