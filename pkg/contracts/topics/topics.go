package topics

const (
	// Eventos de mercado, chaveados pelo endereço do mercado
	MarketEvents = "market_events"

	// DLQs
	MarketEventsDLQ = "market_events_dlq"
)
