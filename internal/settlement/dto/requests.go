package dto

// Chaves chegam em base58. Quem chama se identifica no corpo; autenticação fica fora do serviço.

type InitializeMarketRequest struct {
	Creator           string `json:"creator" validate:"required,base58key"`
	Mint              string `json:"mint" validate:"required,base58key"`
	FeeBps            uint16 `json:"fee_bps" validate:"lte=10000"`
	EndTs             int64  `json:"end_ts" validate:"required"`
	ResolveDeadlineTs int64  `json:"resolve_deadline_ts" validate:"required"`
	Title             string `json:"title"`
}

type PlaceBetRequest struct {
	User   string `json:"user" validate:"required,base58key"`
	Side   string `json:"side" validate:"required,oneof=A B a b"`
	Amount uint64 `json:"amount,string"`
}

type ResolveRequest struct {
	Caller  string `json:"caller" validate:"required,base58key"`
	Outcome string `json:"outcome" validate:"required,oneof=A B a b"`
}

// CallerRequest serve claim e withdraw-fee.
type CallerRequest struct {
	Caller string `json:"caller" validate:"required,base58key"`
}

type DepositRequest struct {
	Owner  string `json:"owner" validate:"required,base58key"`
	Mint   string `json:"mint" validate:"required,base58key"`
	Amount uint64 `json:"amount,string" validate:"required"`
	Ref    string `json:"ref" validate:"max=64"`
}
