package settlement

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/parimutuel-settlement/internal/engine"
	"github.com/radieske/parimutuel-settlement/internal/settlement/repo"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

// MarketView é o mercado com os números derivados do calculador.
type MarketView struct {
	Address accounts.Pubkey
	Market  *accounts.Market
	Pool    engine.Pool
	Odds    engine.Odds
}

func newView(addr accounts.Pubkey, m *accounts.Market) (*MarketView, error) {
	pool, err := engine.Fees(m)
	if err != nil {
		return nil, err
	}
	odds, err := engine.PreviewOdds(m)
	if err != nil {
		return nil, err
	}
	return &MarketView{Address: addr, Market: m, Pool: pool, Odds: odds}, nil
}

// Market lê pelo cache e cai para o banco em caso de miss.
func (s *Service) Market(ctx context.Context, addr accounts.Pubkey) (*MarketView, error) {
	if m := s.cachedMarket(ctx, addr); m != nil {
		return newView(addr, m)
	}
	row, err := s.store.GetMarket(ctx, addr)
	if err != nil {
		return nil, err
	}
	s.fillCache(ctx, row)
	return newView(addr, row.Market)
}

// fillCache grava o snapshot lido e confere a versão em seguida: se um commit entrou
// entre a leitura e o Put, a entrada sai do cache em vez de ficar velha até o TTL.
func (s *Service) fillCache(ctx context.Context, row *repo.MarketRow) {
	if s.cache == nil {
		return
	}
	data, err := accounts.EncodeMarket(row.Market)
	if err != nil {
		s.log.Warn("market snapshot encode failed", zap.String("market", row.Address.String()), zap.Error(err))
		return
	}
	if err := s.cache.Put(ctx, row.Address, data); err != nil {
		s.log.Warn("market cache put failed", zap.String("market", row.Address.String()), zap.Error(err))
		return
	}
	latest, err := s.store.GetMarket(ctx, row.Address)
	if err == nil && latest.Version == row.Version {
		return
	}
	if err := s.cache.Invalidate(ctx, row.Address); err != nil {
		s.log.Warn("market cache invalidate failed", zap.String("market", row.Address.String()), zap.Error(err))
	}
}

func (s *Service) cachedMarket(ctx context.Context, addr accounts.Pubkey) *accounts.Market {
	if s.cache == nil {
		return nil
	}
	data, ok, err := s.cache.Get(ctx, addr)
	if err != nil {
		s.log.Warn("market cache get failed", zap.String("market", addr.String()), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	m, err := accounts.DecodeMarket(data)
	if err != nil {
		s.log.Warn("market cache holds undecodable bytes", zap.String("market", addr.String()), zap.Error(err))
		return nil
	}
	return m
}

func (s *Service) Markets(ctx context.Context, f repo.MarketFilter) ([]MarketView, error) {
	rows, err := s.store.ListMarkets(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]MarketView, 0, len(rows))
	for _, r := range rows {
		v, err := newView(r.Address, r.Market)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// Position localiza a posição pelo par (mercado, dono), como qualquer cliente faria.
func (s *Service) Position(ctx context.Context, market, owner accounts.Pubkey) (*repo.PositionRow, error) {
	addr, _, err := s.deriver.Position(market, owner)
	if err != nil {
		return nil, err
	}
	return s.store.GetPosition(ctx, addr)
}

func (s *Service) Positions(ctx context.Context, market accounts.Pubkey) ([]repo.PositionRow, error) {
	return s.store.ListPositions(ctx, market)
}

func (s *Service) RawAccount(ctx context.Context, addr accounts.Pubkey) ([]byte, error) {
	return s.store.RawAccount(ctx, addr)
}

func (s *Service) Balance(ctx context.Context, owner, mint accounts.Pubkey) (*repo.TokenAccount, error) {
	addr, _, err := s.deriver.TokenAccount(owner, mint)
	if err != nil {
		return nil, err
	}
	return s.store.GetTokenAccount(ctx, addr)
}

// PreviewPayout estima o pagamento de uma aposta hipotética com o mesmo calculador da liquidação.
func (s *Service) PreviewPayout(ctx context.Context, market accounts.Pubkey, side accounts.Side, amount uint64) (uint64, error) {
	v, err := s.Market(ctx, market)
	if err != nil {
		return 0, err
	}
	return engine.PreviewPayout(v.Market, side, amount)
}

// ClaimPreview calcula quanto a posição receberia agora, sem gravar nada.
func (s *Service) ClaimPreview(ctx context.Context, market, owner accounts.Pubkey) (uint64, error) {
	v, err := s.Market(ctx, market)
	if err != nil {
		return 0, err
	}
	p, err := s.Position(ctx, market, owner)
	if err != nil {
		return 0, err
	}
	return engine.Payout(v.Market, p.Position)
}

// DueMarkets devolve os mercados que o agendador deve fechar e cancelar em now.
func (s *Service) DueMarkets(ctx context.Context, now int64, limit int) (closable, expired []accounts.Pubkey, err error) {
	open, err := s.store.ListClosable(ctx, now, limit)
	if err != nil {
		return nil, nil, err
	}
	pending, err := s.store.ListExpired(ctx, now, limit)
	if err != nil {
		return nil, nil, err
	}
	for _, r := range open {
		closable = append(closable, r.Address)
	}
	for _, r := range pending {
		expired = append(expired, r.Address)
	}
	return closable, expired, nil
}
