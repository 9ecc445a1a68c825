package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radieske/parimutuel-settlement/internal/engine"
	"github.com/radieske/parimutuel-settlement/internal/settlement"
	"github.com/radieske/parimutuel-settlement/internal/settlement/dto"
	"github.com/radieske/parimutuel-settlement/internal/settlement/repo"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

type Server struct {
	log      *zap.Logger
	svc      *settlement.Service
	validate *validator.Validate
	limiter  *rate.Limiter
	now      func() int64
}

type Option func(*Server)

// WithClock troca o relógio que alimenta as operações com prazo.
func WithClock(now func() int64) Option { return func(s *Server) { s.now = now } }

// WithRateLimit limita as requisições do processo inteiro.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func NewServer(log *zap.Logger, svc *settlement.Service, opts ...Option) *Server {
	v := validator.New()
	_ = v.RegisterValidation("base58key", func(fl validator.FieldLevel) bool {
		_, err := accounts.ParsePubkey(fl.Field().String())
		return err == nil
	})
	s := &Server{
		log:      log,
		svc:      svc,
		validate: v,
		now:      func() int64 { return time.Now().Unix() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /markets", s.initialize)
	mux.HandleFunc("GET /markets", s.listMarkets)
	mux.HandleFunc("GET /markets/{market}", s.getMarket)
	mux.HandleFunc("GET /markets/{market}/raw", s.rawAccount)
	mux.HandleFunc("POST /markets/{market}/bets", s.placeBet)
	mux.HandleFunc("POST /markets/{market}/close", s.closeBetting)
	mux.HandleFunc("POST /markets/{market}/resolve", s.resolve)
	mux.HandleFunc("POST /markets/{market}/cancel", s.cancelExpired)
	mux.HandleFunc("POST /markets/{market}/claim", s.claim)
	mux.HandleFunc("POST /markets/{market}/withdraw-fee", s.withdrawFee)
	mux.HandleFunc("GET /markets/{market}/preview", s.preview)
	mux.HandleFunc("GET /markets/{market}/positions", s.listPositions)
	mux.HandleFunc("GET /markets/{market}/positions/{owner}", s.getPosition)
	mux.HandleFunc("GET /markets/{market}/positions/{owner}/claimable", s.claimable)
	mux.HandleFunc("GET /accounts/{address}", s.rawAccount)
	mux.HandleFunc("POST /wallets/deposit", s.deposit)
	mux.HandleFunc("GET /wallets/{owner}/{mint}", s.balance)
	return s.rateLimit(mux)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeStatus(w, http.StatusTooManyRequests, dto.ErrorResponse{
				Error: "rate limit exceeded", Code: "RateLimited", Kind: "transport",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// badRequest marca erros de entrada detectados antes do motor.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func (s *Server) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &badRequest{msg: "bad json: " + err.Error()}
	}
	if err := s.validate.Struct(dst); err != nil {
		return &badRequest{msg: err.Error()}
	}
	return nil
}

func pathKey(r *http.Request, name string) (accounts.Pubkey, error) {
	pk, err := accounts.ParsePubkey(r.PathValue(name))
	if err != nil {
		return accounts.Pubkey{}, &badRequest{msg: name + ": " + err.Error()}
	}
	return pk, nil
}

// parseKey só é chamado em campos já validados com base58key.
func parseKey(v string) accounts.Pubkey {
	pk, _ := accounts.ParsePubkey(v)
	return pk
}

func (s *Server) initialize(w http.ResponseWriter, r *http.Request) {
	var req dto.InitializeMarketRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	res, err := s.svc.Initialize(r.Context(), settlement.InitializeInput{
		Creator:         parseKey(req.Creator),
		Mint:            parseKey(req.Mint),
		FeeBps:          req.FeeBps,
		EndTime:         req.EndTs,
		ResolveDeadline: req.ResolveDeadlineTs,
		Title:           req.Title,
	}, s.now())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeStatus(w, http.StatusCreated, dto.InitializeMarketResponse{
		Market: res.Market.String(),
		Vault:  res.Vault.String(),
		Nonce:  res.Nonce,
	})
}

func (s *Server) listMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f repo.MarketFilter
	if v := q.Get("status"); v != "" {
		st, err := accounts.ParseStatus(v)
		if err != nil {
			s.fail(w, &badRequest{msg: err.Error()})
			return
		}
		f.Status = &st
	}
	if v := q.Get("creator"); v != "" {
		pk, err := accounts.ParsePubkey(v)
		if err != nil {
			s.fail(w, &badRequest{msg: "creator: " + err.Error()})
			return
		}
		f.Creator = &pk
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(w, &badRequest{msg: "limit must be a non-negative integer"})
			return
		}
		f.Limit = n
	}

	views, err := s.svc.Markets(r.Context(), f)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]dto.MarketResponse, 0, len(views))
	for _, v := range views {
		out = append(out, dto.NewMarketResponse(v))
	}
	writeJSON(w, out)
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	market, err := pathKey(r, "market")
	if err != nil {
		s.fail(w, err)
		return
	}
	v, err := s.svc.Market(r.Context(), market)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.NewMarketResponse(*v))
}

// rawAccount devolve os bytes codificados de um Market ou Position.
func (s *Server) rawAccount(w http.ResponseWriter, r *http.Request) {
	name := "address"
	if r.PathValue("market") != "" {
		name = "market"
	}
	addr, err := pathKey(r, name)
	if err != nil {
		s.fail(w, err)
		return
	}
	data, err := s.svc.RawAccount(r.Context(), addr)
	if err != nil {
		s.fail(w, err)
		return
	}
	kind, err := accounts.Kind(data)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.RawAccountResponse{Address: addr.String(), Kind: kind, Data: data})
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	market, err := pathKey(r, "market")
	if err != nil {
		s.fail(w, err)
		return
	}
	var req dto.PlaceBetRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	side, _ := accounts.ParseSide(req.Side)
	row, err := s.svc.PlaceBet(r.Context(), market, parseKey(req.User), side, req.Amount, s.now())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.NewPositionResponse(*row))
}

func (s *Server) closeBetting(w http.ResponseWriter, r *http.Request) {
	market, err := pathKey(r, "market")
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.svc.CloseBetting(r.Context(), market, s.now()); err != nil {
		s.fail(w, err)
		return
	}
	s.getMarket(w, r)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	market, err := pathKey(r, "market")
	if err != nil {
		s.fail(w, err)
		return
	}
	var req dto.ResolveRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	outcome, _ := accounts.ParseSide(req.Outcome)
	if err := s.svc.Resolve(r.Context(), market, parseKey(req.Caller), outcome, s.now()); err != nil {
		s.fail(w, err)
		return
	}
	s.getMarket(w, r)
}

func (s *Server) cancelExpired(w http.ResponseWriter, r *http.Request) {
	market, err := pathKey(r, "market")
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.svc.CancelExpired(r.Context(), market, s.now()); err != nil {
		s.fail(w, err)
		return
	}
	s.getMarket(w, r)
}

func (s *Server) claim(w http.ResponseWriter, r *http.Request) {
	market, err := pathKey(r, "market")
	if err != nil {
		s.fail(w, err)
		return
	}
	var req dto.CallerRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	amount, err := s.svc.Claim(r.Context(), market, parseKey(req.Caller))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.AmountResponse{Market: market.String(), Amount: amount})
}

func (s *Server) withdrawFee(w http.ResponseWriter, r *http.Request) {
	market, err := pathKey(r, "market")
	if err != nil {
		s.fail(w, err)
		return
	}
	var req dto.CallerRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	amount, err := s.svc.WithdrawFee(r.Context(), market, parseKey(req.Caller))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.AmountResponse{Market: market.String(), Amount: amount})
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	market, err := pathKey(r, "market")
	if err != nil {
		s.fail(w, err)
		return
	}
	q := r.URL.Query()
	side, err := accounts.ParseSide(q.Get("side"))
	if err != nil {
		s.fail(w, &badRequest{msg: err.Error()})
		return
	}
	stake, err := strconv.ParseUint(q.Get("amount"), 10, 64)
	if err != nil {
		s.fail(w, &badRequest{msg: "amount must be an unsigned integer"})
		return
	}
	payout, err := s.svc.PreviewPayout(r.Context(), market, side, stake)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.PreviewResponse{Market: market.String(), Side: side.String(), Stake: stake, Payout: payout})
}

func (s *Server) listPositions(w http.ResponseWriter, r *http.Request) {
	market, err := pathKey(r, "market")
	if err != nil {
		s.fail(w, err)
		return
	}
	rows, err := s.svc.Positions(r.Context(), market)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]dto.PositionResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.NewPositionResponse(row))
	}
	writeJSON(w, out)
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	market, err := pathKey(r, "market")
	if err != nil {
		s.fail(w, err)
		return
	}
	owner, err := pathKey(r, "owner")
	if err != nil {
		s.fail(w, err)
		return
	}
	row, err := s.svc.Position(r.Context(), market, owner)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.NewPositionResponse(*row))
}

func (s *Server) claimable(w http.ResponseWriter, r *http.Request) {
	market, err := pathKey(r, "market")
	if err != nil {
		s.fail(w, err)
		return
	}
	owner, err := pathKey(r, "owner")
	if err != nil {
		s.fail(w, err)
		return
	}
	amount, err := s.svc.ClaimPreview(r.Context(), market, owner)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.AmountResponse{Market: market.String(), Amount: amount})
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	ta, err := s.svc.Deposit(r.Context(), parseKey(req.Owner), parseKey(req.Mint), req.Amount, req.Ref)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.NewBalanceResponse(ta))
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	owner, err := pathKey(r, "owner")
	if err != nil {
		s.fail(w, err)
		return
	}
	mint, err := pathKey(r, "mint")
	if err != nil {
		s.fail(w, err)
		return
	}
	ta, err := s.svc.Balance(r.Context(), owner, mint)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.NewBalanceResponse(ta))
}

// fail traduz o erro para status HTTP pelo Kind do motor.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var (
		bad *badRequest
		ee  *engine.Error
	)
	switch {
	case errors.As(err, &bad):
		writeStatus(w, http.StatusBadRequest, dto.ErrorResponse{
			Error: bad.msg, Code: "InvalidRequest", Kind: string(engine.KindValidation),
		})
	case errors.As(err, &ee):
		writeStatus(w, statusFor(ee.Kind()), dto.ErrorResponse{
			Error: ee.Error(), Code: string(ee.Code), Kind: string(ee.Kind()), Entity: ee.Entity,
		})
	case errors.Is(err, repo.ErrConflict):
		writeStatus(w, http.StatusConflict, dto.ErrorResponse{
			Error: "concurrent update, retry", Code: "Conflict", Kind: string(engine.KindState),
		})
	default:
		s.log.Error("request failed", zap.Error(err))
		writeStatus(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error", Code: "Internal"})
	}
}

func statusFor(k engine.Kind) int {
	switch k {
	case engine.KindValidation:
		return http.StatusBadRequest
	case engine.KindAuthorization:
		return http.StatusForbidden
	case engine.KindNotFound:
		return http.StatusNotFound
	case engine.KindState, engine.KindConstraint:
		return http.StatusConflict
	case engine.KindArithmetic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	writeStatus(w, http.StatusOK, v)
}

func writeStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
