package events

import "encoding/json"

// Type identifica o evento dentro do tópico market_events.
type Type string

const (
	TypeMarketInitialized   Type = "market_initialized"
	TypeBetPlaced           Type = "bet_placed"
	TypeBettingClosed       Type = "betting_closed"
	TypeResolved            Type = "resolved"
	TypeCancelled           Type = "cancelled"
	TypeClaimed             Type = "claimed"
	TypeCreatorFeeWithdrawn Type = "creator_fee_withdrawn"
)

// Header é comum a todos os eventos. Market é o endereço base58 e também a chave Kafka.
type Header struct {
	EventID  string `json:"event_id"`
	Type     Type   `json:"type"`
	Market   string `json:"market"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}

// Valores monetários vão como string para não perder precisão em clientes JSON.

type MarketInitialized struct {
	Header
	Creator           string `json:"creator"`
	Mint              string `json:"mint"`
	Vault             string `json:"vault"`
	Nonce             uint64 `json:"nonce"`
	Title             string `json:"title"`
	FeeBps            uint16 `json:"fee_bps"`
	EndTs             int64  `json:"end_ts"`
	ResolveDeadlineTs int64  `json:"resolve_deadline_ts"`
}

type BetPlaced struct {
	Header
	User    string `json:"user"`
	Side    string `json:"side"`
	Amount  uint64 `json:"amount,string"`
	StakedA uint64 `json:"staked_a,string"`
	StakedB uint64 `json:"staked_b,string"`
}

type BettingClosed struct {
	Header
}

// Resolved e Cancelled levam o snapshot codificado do Market para arquivamento.
type Resolved struct {
	Header
	Outcome  string `json:"outcome"`
	Snapshot []byte `json:"snapshot"`
}

type Cancelled struct {
	Header
	Snapshot []byte `json:"snapshot"`
}

type Claimed struct {
	Header
	User   string `json:"user"`
	Amount uint64 `json:"amount,string"`
	Refund bool   `json:"refund"`
}

type CreatorFeeWithdrawn struct {
	Header
	Creator string `json:"creator"`
	Amount  uint64 `json:"amount,string"`
}

// PeekHeader lê só o cabeçalho de uma mensagem.
func PeekHeader(b []byte) (Header, error) {
	var h Header
	err := json.Unmarshal(b, &h)
	return h, err
}
