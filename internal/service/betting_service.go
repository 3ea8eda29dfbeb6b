package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/winzzers/internal/chain"
	"github.com/alanyoungcy/winzzers/internal/domain"
	"github.com/alanyoungcy/winzzers/internal/metadata"
	"github.com/alanyoungcy/winzzers/internal/metrics"
	"github.com/alanyoungcy/winzzers/internal/money"
	"github.com/alanyoungcy/winzzers/internal/odds"
)

const (
	MinOutcomes = 2
	MaxOutcomes = 20
	maxFeeBps   = 10_000

	defaultMetadataTimeout = 10 * time.Second
)

// Wallet is a LedgerWriter bound to one sending address. *chain.Writer
// implements it.
type Wallet interface {
	domain.LedgerWriter
	From() common.Address
}

// MarketSource is the part of MarketService bets are validated against.
type MarketSource interface {
	Fetch(ctx context.Context, id uint64) (domain.Market, error)
	Odds(ctx context.Context, id uint64) (domain.MarketOdds, error)
}

// BettingConfig holds the contract address and market creation defaults.
type BettingConfig struct {
	// Contract is the spender whose allowance bets draw on.
	Contract                          common.Address
	DefaultVirtualLiquidityPerOutcome money.Amount
	DefaultCreatorFeeBps              uint16
	MetadataTimeout                   time.Duration
}

// BettingService runs quotes and every ledger write.
type BettingService struct {
	reader  domain.LedgerReader
	markets MarketSource
	cfg     BettingConfig
	metrics *metrics.Metrics
	logger  *slog.Logger

	wallet   Wallet
	meta     domain.MetadataSink
	journal  domain.WriteJournal
	slippage uint32
}

// NewBettingService creates a read-only BettingService. Writes fail with
// domain.ErrNoWallet until WithWallet is called.
func NewBettingService(
	reader domain.LedgerReader,
	markets MarketSource,
	cfg BettingConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *BettingService {
	if cfg.DefaultVirtualLiquidityPerOutcome.IsZero() {
		cfg.DefaultVirtualLiquidityPerOutcome = money.MustParse("1000")
	}
	if cfg.DefaultCreatorFeeBps == 0 {
		cfg.DefaultCreatorFeeBps = 100
	}
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = defaultMetadataTimeout
	}
	return &BettingService{
		reader:   reader,
		markets:  markets,
		cfg:      cfg,
		metrics:  m,
		logger:   logger.With(slog.String("component", "betting_service")),
		slippage: odds.DefaultSlippageBps,
	}
}

// WithWallet enables writes.
func (s *BettingService) WithWallet(w Wallet) *BettingService {
	s.wallet = w
	return s
}

// WithMetadata syncs market metadata to sink after every created market.
func (s *BettingService) WithMetadata(sink domain.MetadataSink) *BettingService {
	s.meta = sink
	return s
}

// WithJournal records every write outcome.
func (s *BettingService) WithJournal(j domain.WriteJournal) *BettingService {
	s.journal = j
	return s
}

// WithSlippage overrides the slippage used to derive minimum odds.
func (s *BettingService) WithSlippage(bps uint32) *BettingService {
	s.slippage = bps
	return s
}

// Quote is the advisory result of staking on an outcome at given odds.
type Quote struct {
	Stake   money.Amount `json:"stake"`
	Odds    odds.Odds    `json:"odds"`
	Payout  money.Amount `json:"payout"`
	MinOdds odds.Odds    `json:"minOdds"`

	StakeDisplay  string `json:"stakeDisplay"`
	OddsDisplay   string `json:"oddsDisplay"`
	PayoutDisplay string `json:"payoutDisplay"`
}

// NewQuote prices stakeText at o. Unparseable stake text quotes as zero.
func (s *BettingService) NewQuote(stakeText string, o odds.Odds) Quote {
	stake := money.ParseOrZero(stakeText)
	payout := odds.Payout(stake, o)
	return Quote{
		Stake:         stake,
		Odds:          o,
		Payout:        payout,
		MinOdds:       odds.MinOddsWithSlippage(o, s.slippage),
		StakeDisplay:  money.FormatDisplay(stake),
		OddsDisplay:   odds.FormatMultiplier(o),
		PayoutDisplay: money.FormatDisplay(payout),
	}
}

// QuoteMarket prices stakeText on one outcome at the market's current odds.
func (s *BettingService) QuoteMarket(ctx context.Context, marketID uint64, outcome int, stakeText string) (Quote, error) {
	o, err := s.outcomeOdds(ctx, marketID, outcome)
	if err != nil {
		return Quote{}, err
	}
	return s.NewQuote(stakeText, o), nil
}

func (s *BettingService) outcomeOdds(ctx context.Context, marketID uint64, outcome int) (odds.Odds, error) {
	mo, err := s.markets.Odds(ctx, marketID)
	if err != nil {
		return odds.Odds{}, fmt.Errorf("betting_service: odds: %w", err)
	}
	if outcome < 0 || outcome >= len(mo.Odds) {
		return odds.Odds{}, fmt.Errorf("betting_service: market %d has %d outcomes, got %d: %w",
			marketID, len(mo.Odds), outcome, domain.ErrInvalidOutcome)
	}
	return mo.Odds[outcome], nil
}

// Funds is a wallet's collateral position against the betting contract.
type Funds struct {
	Owner     common.Address `json:"owner"`
	Balance   money.Amount   `json:"balance"`
	Allowance money.Amount   `json:"allowance"`
}

// Funds reads owner's collateral balance and the allowance granted to the
// betting contract.
func (s *BettingService) Funds(ctx context.Context, owner common.Address) (Funds, error) {
	bal, err := s.reader.BalanceOf(ctx, owner)
	if err != nil {
		return Funds{}, fmt.Errorf("betting_service: balance: %w", err)
	}
	allow, err := s.reader.Allowance(ctx, owner, s.cfg.Contract)
	if err != nil {
		return Funds{}, fmt.Errorf("betting_service: allowance: %w", err)
	}
	return Funds{Owner: owner, Balance: bal, Allowance: allow}, nil
}

// BetRequest describes a bet. A zero MinOdds is derived from the current odds
// of the outcome.
type BetRequest struct {
	MarketID uint64
	Outcome  int
	Stake    money.Amount
	MinOdds  odds.Odds
}

// BetResult is a confirmed bet.
type BetResult struct {
	TicketID    uint64       `json:"ticketId"`
	TicketKnown bool         `json:"ticketKnown"`
	TxHash      common.Hash  `json:"txHash"`
	Stake       money.Amount `json:"stake"`
	MinOdds     odds.Odds    `json:"minOdds"`
}

// PlaceBet validates req against the ledger and submits it.
func (s *BettingService) PlaceBet(ctx context.Context, req BetRequest) (BetResult, error) {
	if s.wallet == nil {
		return BetResult{}, domain.ErrNoWallet
	}
	if req.Stake.IsZero() {
		return BetResult{}, fmt.Errorf("betting_service: stake must be positive: %w", domain.ErrInvalidAmount)
	}

	m, err := s.markets.Fetch(ctx, req.MarketID)
	if err != nil {
		return BetResult{}, fmt.Errorf("betting_service: place bet: %w", err)
	}
	if m.State != domain.MarketStateOpen {
		return BetResult{}, fmt.Errorf("betting_service: market %d is %s: %w", m.ID, m.State, domain.ErrMarketNotOpen)
	}
	if req.Outcome < 0 || req.Outcome >= m.OutcomeCount || req.Outcome > 255 {
		return BetResult{}, fmt.Errorf("betting_service: market %d has %d outcomes, got %d: %w",
			m.ID, m.OutcomeCount, req.Outcome, domain.ErrInvalidOutcome)
	}

	funds, err := s.Funds(ctx, s.wallet.From())
	if err != nil {
		return BetResult{}, err
	}
	if funds.Balance.Cmp(req.Stake) < 0 {
		return BetResult{}, fmt.Errorf("betting_service: stake %s exceeds balance %s: %w",
			req.Stake, funds.Balance, domain.ErrInsufficientBalance)
	}
	if funds.Allowance.Cmp(req.Stake) < 0 {
		return BetResult{}, fmt.Errorf("betting_service: stake %s exceeds allowance %s: %w",
			req.Stake, funds.Allowance, domain.ErrNeedsApproval)
	}

	minOdds := req.MinOdds
	if minOdds.IsZero() {
		current, err := s.outcomeOdds(ctx, m.ID, req.Outcome)
		if err != nil {
			return BetResult{}, err
		}
		minOdds = odds.MinOddsWithSlippage(current, s.slippage)
	}

	receipt, err := s.wallet.PlaceBet(ctx, domain.PlaceBetParams{
		MarketID:  m.ID,
		OutcomeID: uint8(req.Outcome),
		Amount:    req.Stake,
		MinOdds:   minOdds,
	})
	s.record(ctx, "placeBet", receipt, err, map[string]any{
		"marketId": m.ID,
		"outcome":  req.Outcome,
		"amount":   money.Format(req.Stake),
		"minOdds":  odds.Format(minOdds),
	})
	if err != nil {
		return BetResult{}, fmt.Errorf("betting_service: place bet: %w", err)
	}

	res := BetResult{TxHash: receipt.TxHash, Stake: req.Stake, MinOdds: minOdds}
	res.TicketID, res.TicketKnown = chain.DecodeBetPlaced(receipt.Logs)
	return res, nil
}

// CreateMarketRequest describes a new market. Zero VirtualLiquidityPerOutcome
// and nil CreatorFeeBps take the configured defaults.
type CreateMarketRequest struct {
	Title                      string
	Description                string
	Tags                       []string
	Outcomes                   []string
	VirtualLiquidityPerOutcome money.Amount
	CreatorFeeBps              *uint16
}

// CreateMarketResult is a confirmed market creation.
type CreateMarketResult struct {
	MarketID       uint64      `json:"marketId"`
	MarketIDKnown  bool        `json:"marketIdKnown"`
	TxHash         common.Hash `json:"txHash"`
	MetadataSynced bool        `json:"metadataSynced"`
}

// normalizeCreate validates req and fills in defaults.
func (s *BettingService) normalizeCreate(req CreateMarketRequest) (CreateMarketRequest, error) {
	var problems []string

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" {
		problems = append(problems, "title is required")
	}
	if req.Description == "" {
		problems = append(problems, "description is required")
	}

	outcomes := make([]string, 0, len(req.Outcomes))
	for i, o := range req.Outcomes {
		o = strings.TrimSpace(o)
		if o == "" {
			problems = append(problems, fmt.Sprintf("outcome %d is empty", i+1))
			continue
		}
		outcomes = append(outcomes, o)
	}
	if n := len(req.Outcomes); n < MinOutcomes || n > MaxOutcomes {
		problems = append(problems, fmt.Sprintf("need %d to %d outcomes, got %d", MinOutcomes, MaxOutcomes, n))
	}
	req.Outcomes = outcomes

	if req.VirtualLiquidityPerOutcome.IsZero() {
		req.VirtualLiquidityPerOutcome = s.cfg.DefaultVirtualLiquidityPerOutcome
	}
	if req.CreatorFeeBps == nil {
		fee := s.cfg.DefaultCreatorFeeBps
		req.CreatorFeeBps = &fee
	} else if *req.CreatorFeeBps > maxFeeBps {
		problems = append(problems, fmt.Sprintf("creator fee %d bps exceeds %d", *req.CreatorFeeBps, maxFeeBps))
	}

	var tags []string
	for _, t := range req.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	req.Tags = tags

	if len(problems) > 0 {
		return req, fmt.Errorf("betting_service: %s: %w", strings.Join(problems, "; "), domain.ErrInvalidMarketParams)
	}
	return req, nil
}

// CreateMarket validates req, submits createMarket and then syncs the
// metadata. A metadata failure is logged and does not fail the call.
func (s *BettingService) CreateMarket(ctx context.Context, req CreateMarketRequest) (CreateMarketResult, error) {
	if s.wallet == nil {
		return CreateMarketResult{}, domain.ErrNoWallet
	}
	req, err := s.normalizeCreate(req)
	if err != nil {
		return CreateMarketResult{}, err
	}

	receipt, err := s.wallet.CreateMarket(ctx, domain.CreateMarketParams{
		OutcomeNames:               req.Outcomes,
		VirtualLiquidityPerOutcome: req.VirtualLiquidityPerOutcome,
		CreatorFeeBps:              *req.CreatorFeeBps,
	})
	s.record(ctx, "createMarket", receipt, err, map[string]any{
		"title":                      req.Title,
		"outcomes":                   req.Outcomes,
		"virtualLiquidityPerOutcome": money.Format(req.VirtualLiquidityPerOutcome),
		"creatorFeeBps":              *req.CreatorFeeBps,
	})
	if err != nil {
		return CreateMarketResult{}, fmt.Errorf("betting_service: create market: %w", err)
	}

	res := CreateMarketResult{TxHash: receipt.TxHash}
	res.MarketID, res.MarketIDKnown = chain.DecodeMarketCreated(receipt.Logs)
	if !res.MarketIDKnown {
		s.logger.WarnContext(ctx, "market created but id not found in receipt, skipping metadata",
			slog.String("tx", receipt.TxHash.Hex()),
		)
		return res, nil
	}
	s.logger.InfoContext(ctx, "market created",
		slog.Uint64("market_id", res.MarketID),
		slog.String("tx", receipt.TxHash.Hex()),
	)

	if s.meta != nil {
		err := metadata.Sync(ctx, s.meta, domain.MarketMetadata{
			MarketID:    res.MarketID,
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			CreatedAt:   time.Now().UnixMilli(),
		}, s.cfg.MetadataTimeout)
		s.metrics.ObserveMetadataSync(err)
		if err != nil {
			s.logger.WarnContext(ctx, "metadata sync failed",
				slog.Uint64("market_id", res.MarketID),
				slog.String("error", err.Error()),
			)
		} else {
			res.MetadataSynced = true
		}
	}
	return res, nil
}

// Approve lets the betting contract spend amount of the wallet's collateral.
// A zero amount would revoke the allowance and is rejected; use Revoke.
func (s *BettingService) Approve(ctx context.Context, amount money.Amount) (common.Hash, error) {
	if amount.IsZero() {
		return common.Hash{}, fmt.Errorf("betting_service: approve amount must be positive: %w", domain.ErrInvalidAmount)
	}
	return s.approve(ctx, "approve", amount)
}

// Revoke sets the betting contract's allowance back to zero.
func (s *BettingService) Revoke(ctx context.Context) (common.Hash, error) {
	return s.approve(ctx, "revoke", money.Zero)
}

func (s *BettingService) approve(ctx context.Context, method string, amount money.Amount) (common.Hash, error) {
	if s.wallet == nil {
		return common.Hash{}, domain.ErrNoWallet
	}
	receipt, err := s.wallet.Approve(ctx, s.cfg.Contract, amount)
	s.record(ctx, method, receipt, err, map[string]any{
		"spender": s.cfg.Contract.Hex(),
		"amount":  money.Format(amount),
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("betting_service: %s: %w", method, err)
	}
	return receipt.TxHash, nil
}

// Claim redeems a winning or refundable ticket.
func (s *BettingService) Claim(ctx context.Context, ticketID uint64) (common.Hash, error) {
	if s.wallet == nil {
		return common.Hash{}, domain.ErrNoWallet
	}
	receipt, err := s.wallet.Claim(ctx, ticketID)
	s.record(ctx, "claim", receipt, err, map[string]any{"ticketId": ticketID})
	if err != nil {
		return common.Hash{}, fmt.Errorf("betting_service: claim: %w", err)
	}
	return receipt.TxHash, nil
}

// record journals a write outcome. Journal failures are logged only.
func (s *BettingService) record(ctx context.Context, method string, receipt *types.Receipt, err error, detail map[string]any) {
	if s.journal == nil {
		return
	}
	rec := domain.WriteRecord{
		Method:    method,
		From:      s.wallet.From().Hex(),
		Status:    domain.WriteConfirmed,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if receipt != nil {
		rec.TxHash = receipt.TxHash.Hex()
	}
	if err != nil {
		rec.Status = domain.WriteFailed
		if errors.Is(err, domain.ErrWriteRejected) {
			rec.Status = domain.WriteRejected
		}
		rec.Error = err.Error()
	}
	if jerr := s.journal.Record(ctx, rec); jerr != nil {
		s.logger.WarnContext(ctx, "write journal failed",
			slog.String("method", method),
			slog.String("error", jerr.Error()),
		)
	}
}

// RecentWrites returns the newest journaled writes.
func (s *BettingService) RecentWrites(ctx context.Context, limit int) ([]domain.WriteRecord, error) {
	if s.journal == nil {
		return nil, nil
	}
	recs, err := s.journal.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("betting_service: recent writes: %w", err)
	}
	return recs, nil
}
