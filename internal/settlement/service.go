// Package settlement é a unidade de trabalho em volta do motor: carrega os registros com lock,
// aplica a operação do engine, move saldo e regrava tudo numa única transação.
// Eventos e cache são efeitos pós-commit, best effort.
package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-settlement/internal/engine"
	"github.com/radieske/parimutuel-settlement/internal/settlement/repo"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/events"
)

// Publisher publica eventos de mercado. key é o endereço do mercado.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// MarketCache guarda os bytes codificados do Market.
type MarketCache interface {
	Get(ctx context.Context, addr accounts.Pubkey) ([]byte, bool, error)
	Put(ctx context.Context, addr accounts.Pubkey, data []byte) error
	Invalidate(ctx context.Context, addr accounts.Pubkey) error
}

type Service struct {
	log     *zap.Logger
	store   *repo.Store
	deriver accounts.Deriver
	pub     Publisher
	cache   MarketCache
	metrics *Metrics
}

// NewService monta o serviço. pub, cache e metrics podem ser nil.
func NewService(log *zap.Logger, store *repo.Store, deriver accounts.Deriver, pub Publisher, cache MarketCache, metrics *Metrics) *Service {
	return &Service{log: log, store: store, deriver: deriver, pub: pub, cache: cache, metrics: metrics}
}

func (s *Service) Deriver() accounts.Deriver { return s.deriver }

func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

// done registra métrica e log de uma operação encerrada.
func (s *Service) done(op string, err error, fields ...zap.Field) {
	s.metrics.observe(op, err)
	if err == nil {
		s.log.Info(op, fields...)
		return
	}
	fields = append(fields, zap.Error(err))
	if code := engine.CodeOf(err); code != "" {
		s.log.Info(op+" rejected", append(fields, zap.String("code", string(code)))...)
		return
	}
	s.log.Error(op+" failed", fields...)
}

func header(t events.Type, market accounts.Pubkey) events.Header {
	return events.Header{
		EventID:  uuid.NewString(),
		Type:     t,
		Market:   market.String(),
		TsUnixMs: time.Now().UnixMilli(),
	}
}

// afterCommit publica o evento e derruba o snapshot em cache.
// snapshot codifica o Market para o evento. Em falha o evento segue sem snapshot.
func (s *Service) snapshot(addr accounts.Pubkey, m *accounts.Market) []byte {
	data, err := accounts.EncodeMarket(m)
	if err != nil {
		s.log.Warn("market snapshot encode failed", zap.String("market", addr.String()), zap.Error(err))
		return nil
	}
	return data
}

func (s *Service) afterCommit(ctx context.Context, market accounts.Pubkey, event any, touchedMarket bool) {
	if touchedMarket && s.cache != nil {
		if err := s.cache.Invalidate(ctx, market); err != nil {
			s.log.Warn("market cache invalidate failed", zap.String("market", market.String()), zap.Error(err))
		}
	}
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, market.String(), event); err != nil {
		s.log.Warn("event publish failed", zap.String("market", market.String()), zap.Error(err))
	}
}
