package settlement

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/parimutuel-settlement/internal/engine"
	"github.com/radieske/parimutuel-settlement/internal/settlement/repo"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/events"
)

// Nomes das operações em logs e métricas
const (
	OpInitialize  = "initialize"
	OpPlaceBet    = "place_bet"
	OpClose       = "close_betting"
	OpResolve     = "resolve"
	OpCancel      = "cancel_expired"
	OpClaim       = "claim"
	OpWithdrawFee = "withdraw_fee"
	OpDeposit     = "deposit"
)

type InitializeInput struct {
	Creator         accounts.Pubkey
	Mint            accounts.Pubkey
	FeeBps          uint16
	EndTime         int64
	ResolveDeadline int64
	Title           string
}

type InitializeResult struct {
	Market accounts.Pubkey
	Vault  accounts.Pubkey
	Nonce  uint64
}

// Initialize reserva o próximo nonce do criador, deriva mercado e vault e grava o Market Open.
func (s *Service) Initialize(ctx context.Context, in InitializeInput, now int64) (InitializeResult, error) {
	var (
		res InitializeResult
		m   *accounts.Market
	)
	err := s.store.InTx(ctx, func(tx *repo.Tx) error {
		nonce, err := tx.NextMarketNonce(ctx, in.Creator)
		if err != nil {
			return err
		}
		addr, bump, err := s.deriver.Market(in.Creator, nonce)
		if err != nil {
			return err
		}
		vault, vaultBump, err := s.deriver.Vault(addr)
		if err != nil {
			return err
		}
		m, err = engine.Initialize(engine.InitParams{
			Creator:         in.Creator,
			StakeMint:       in.Mint,
			Vault:           vault,
			FeeBps:          in.FeeBps,
			EndTime:         in.EndTime,
			ResolveDeadline: in.ResolveDeadline,
			Title:           in.Title,
			Bump:            bump,
			VaultBump:       vaultBump,
		}, now)
		if err != nil {
			return err
		}
		if _, err := tx.InsertMarket(ctx, addr, nonce, m); err != nil {
			return err
		}
		if err := tx.OpenTokenAccount(ctx, vault, addr, in.Mint); err != nil {
			return err
		}
		res = InitializeResult{Market: addr, Vault: vault, Nonce: nonce}
		return nil
	})
	s.done(OpInitialize, err, zap.String("creator", in.Creator.String()), zap.String("market", res.Market.String()))
	if err != nil {
		return InitializeResult{}, err
	}

	s.afterCommit(ctx, res.Market, events.MarketInitialized{
		Header:            header(events.TypeMarketInitialized, res.Market),
		Creator:           in.Creator.String(),
		Mint:              in.Mint.String(),
		Vault:             res.Vault.String(),
		Nonce:             res.Nonce,
		Title:             m.Title,
		FeeBps:            m.FeeBps,
		EndTs:             m.EndTime,
		ResolveDeadlineTs: m.ResolveDeadline,
	}, false)
	return res, nil
}

// PlaceBet debita o usuário, credita o vault e atualiza totais e posição na mesma transação.
func (s *Service) PlaceBet(ctx context.Context, market, user accounts.Pubkey, side accounts.Side, amount uint64, now int64) (*repo.PositionRow, error) {
	var (
		out      *repo.PositionRow
		snapshot accounts.Market
	)
	err := s.store.InTx(ctx, func(tx *repo.Tx) error {
		row, err := tx.LockMarket(ctx, market)
		if err != nil {
			return err
		}
		posAddr, bump, err := s.deriver.Position(market, user)
		if err != nil {
			return err
		}
		existing, err := tx.LockPosition(ctx, posAddr)
		if err != nil && !errors.Is(err, engine.ErrPositionNotFound) {
			return err
		}
		var current *accounts.Position
		if existing != nil {
			current = existing.Position
		}

		pos, err := engine.PlaceBet(row.Market, current, user, side, amount, now)
		if err != nil {
			return err
		}

		userAcct, _, err := s.deriver.TokenAccount(user, row.Market.StakeMint)
		if err != nil {
			return err
		}
		if err := tx.OpenTokenAccount(ctx, userAcct, user, row.Market.StakeMint); err != nil {
			return err
		}
		if err := tx.Transfer(ctx, userAcct, row.Market.Vault, amount, "bet:"+market.String()); err != nil {
			return err
		}
		if err := tx.UpdateMarket(ctx, row); err != nil {
			return err
		}

		if existing == nil {
			pos.Bump = bump
			out, err = tx.InsertPosition(ctx, posAddr, market, pos)
			if err != nil {
				return err
			}
		} else {
			existing.Position = pos
			if err := tx.UpdatePosition(ctx, existing); err != nil {
				return err
			}
			out = existing
		}
		snapshot = *row.Market
		return nil
	})
	s.done(OpPlaceBet, err,
		zap.String("market", market.String()),
		zap.String("user", user.String()),
		zap.Stringer("side", side),
		zap.Uint64("amount", amount),
	)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, market, events.BetPlaced{
		Header:  header(events.TypeBetPlaced, market),
		User:    user.String(),
		Side:    side.String(),
		Amount:  amount,
		StakedA: snapshot.StakedA,
		StakedB: snapshot.StakedB,
	}, true)
	return out, nil
}

// transition aplica uma transição de ciclo de vida sem movimentação de saldo.
func (s *Service) transition(ctx context.Context, market accounts.Pubkey, apply func(m *accounts.Market) error) (*accounts.Market, error) {
	var snapshot accounts.Market
	err := s.store.InTx(ctx, func(tx *repo.Tx) error {
		row, err := tx.LockMarket(ctx, market)
		if err != nil {
			return err
		}
		if err := apply(row.Market); err != nil {
			return err
		}
		if err := tx.UpdateMarket(ctx, row); err != nil {
			return err
		}
		snapshot = *row.Market
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *Service) CloseBetting(ctx context.Context, market accounts.Pubkey, now int64) error {
	_, err := s.transition(ctx, market, func(m *accounts.Market) error {
		return engine.CloseBetting(m, now)
	})
	s.done(OpClose, err, zap.String("market", market.String()))
	if err != nil {
		return err
	}
	s.afterCommit(ctx, market, events.BettingClosed{Header: header(events.TypeBettingClosed, market)}, true)
	return nil
}

func (s *Service) Resolve(ctx context.Context, market, caller accounts.Pubkey, outcome accounts.Side, now int64) error {
	m, err := s.transition(ctx, market, func(m *accounts.Market) error {
		return engine.Resolve(m, caller, outcome, now)
	})
	s.done(OpResolve, err, zap.String("market", market.String()), zap.Stringer("outcome", outcome))
	if err != nil {
		return err
	}
	s.afterCommit(ctx, market, events.Resolved{
		Header:   header(events.TypeResolved, market),
		Outcome:  outcome.String(),
		Snapshot: s.snapshot(market, m),
	}, true)
	return nil
}

func (s *Service) CancelExpired(ctx context.Context, market accounts.Pubkey, now int64) error {
	m, err := s.transition(ctx, market, func(m *accounts.Market) error {
		return engine.CancelExpired(m, now)
	})
	s.done(OpCancel, err, zap.String("market", market.String()))
	if err != nil {
		return err
	}
	s.afterCommit(ctx, market, events.Cancelled{
		Header:   header(events.TypeCancelled, market),
		Snapshot: s.snapshot(market, m),
	}, true)
	return nil
}

// Claim paga a posição do usuário. A marcação de claimed e a transferência do vault
// são gravadas na mesma transação; pagamento zero só marca.
func (s *Service) Claim(ctx context.Context, market, user accounts.Pubkey) (uint64, error) {
	var (
		payout uint64
		refund bool
	)
	err := s.store.InTx(ctx, func(tx *repo.Tx) error {
		row, err := tx.LockMarket(ctx, market)
		if err != nil {
			return err
		}
		posAddr, _, err := s.deriver.Position(market, user)
		if err != nil {
			return err
		}
		prow, err := tx.LockPosition(ctx, posAddr)
		if err != nil {
			return err
		}
		if payout, err = engine.Claim(row.Market, prow.Position, user); err != nil {
			return err
		}
		refund = row.Market.Status == accounts.StatusCancelled

		if payout > 0 {
			userAcct, _, err := s.deriver.TokenAccount(user, row.Market.StakeMint)
			if err != nil {
				return err
			}
			if err := tx.OpenTokenAccount(ctx, userAcct, user, row.Market.StakeMint); err != nil {
				return err
			}
			if err := tx.Transfer(ctx, row.Market.Vault, userAcct, payout, "claim:"+market.String()); err != nil {
				return err
			}
		}
		return tx.UpdatePosition(ctx, prow)
	})
	s.done(OpClaim, err,
		zap.String("market", market.String()),
		zap.String("user", user.String()),
		zap.Uint64("payout", payout),
	)
	if err != nil {
		return 0, err
	}

	kind := "payout"
	if refund {
		kind = "refund"
	}
	s.metrics.paid(kind, payout)
	s.afterCommit(ctx, market, events.Claimed{
		Header: header(events.TypeClaimed, market),
		User:   user.String(),
		Amount: payout,
		Refund: refund,
	}, false)
	return payout, nil
}

// WithdrawFee transfere a taxa do criador uma única vez, só em mercado resolvido.
func (s *Service) WithdrawFee(ctx context.Context, market, caller accounts.Pubkey) (uint64, error) {
	var fee uint64
	err := s.store.InTx(ctx, func(tx *repo.Tx) error {
		row, err := tx.LockMarket(ctx, market)
		if err != nil {
			return err
		}
		if fee, err = engine.WithdrawFee(row.Market, caller); err != nil {
			return err
		}
		if fee > 0 {
			creatorAcct, _, err := s.deriver.TokenAccount(row.Market.Creator, row.Market.StakeMint)
			if err != nil {
				return err
			}
			if err := tx.OpenTokenAccount(ctx, creatorAcct, row.Market.Creator, row.Market.StakeMint); err != nil {
				return err
			}
			if err := tx.Transfer(ctx, row.Market.Vault, creatorAcct, fee, "fee:"+market.String()); err != nil {
				return err
			}
		}
		return tx.UpdateMarket(ctx, row)
	})
	s.done(OpWithdrawFee, err, zap.String("market", market.String()), zap.Uint64("fee", fee))
	if err != nil {
		return 0, err
	}

	s.metrics.paid("fee", fee)
	s.afterCommit(ctx, market, events.CreatorFeeWithdrawn{
		Header:  header(events.TypeCreatorFeeWithdrawn, market),
		Creator: caller.String(),
		Amount:  fee,
	}, true)
	return fee, nil
}

// Deposit credita a token account do usuário. Faz o papel da carteira externa em dev e testes.
func (s *Service) Deposit(ctx context.Context, owner, mint accounts.Pubkey, amount uint64, ref string) (*repo.TokenAccount, error) {
	if amount == 0 {
		return nil, engine.Fail(engine.CodeInvalidAmount, engine.EntityTokenAccount, "deposit must be positive")
	}
	addr, _, err := s.deriver.TokenAccount(owner, mint)
	if err != nil {
		return nil, err
	}
	err = s.store.InTx(ctx, func(tx *repo.Tx) error {
		if err := tx.OpenTokenAccount(ctx, addr, owner, mint); err != nil {
			return err
		}
		_, err := tx.Credit(ctx, addr, amount, "deposit:"+ref)
		return err
	})
	s.done(OpDeposit, err, zap.String("owner", owner.String()), zap.Uint64("amount", amount))
	if err != nil {
		return nil, err
	}
	return s.store.GetTokenAccount(ctx, addr)
}
