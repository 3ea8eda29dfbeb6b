package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/winzzers/internal/domain"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultMineTimeout  = 3 * time.Minute
	// gasHeadroomPct is added on top of the node's gas estimate.
	gasHeadroomPct = 20
)

// TxBackend is the subset of *ethclient.Client needed to sign, send and
// confirm a transaction.
type TxBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// SenderConfig controls receipt polling.
type SenderConfig struct {
	ChainID      *big.Int
	PollInterval time.Duration
	MineTimeout  time.Duration
}

// Sender signs transactions with a local key and waits until they are mined.
type Sender struct {
	backend TxBackend
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	poll    time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

// NewSender creates a Sender for the key given as hex (with or without 0x).
func NewSender(backend TxBackend, privateKeyHex string, cfg SenderConfig, logger *slog.Logger) (*Sender, error) {
	key, err := ethcrypto.HexToECDSA(trimHexPrefix(privateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("chain: %w: invalid private key: %v", domain.ErrSigningFailed, err)
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, errors.New("chain: chain id is required")
	}
	s := &Sender{
		backend: backend,
		key:     key,
		from:    ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).Set(cfg.ChainID),
		poll:    cfg.PollInterval,
		timeout: cfg.MineTimeout,
		logger:  logger.With(slog.String("component", "chain_sender")),
	}
	if s.poll <= 0 {
		s.poll = defaultPollInterval
	}
	if s.timeout <= 0 {
		s.timeout = defaultMineTimeout
	}
	return s, nil
}

// From returns the signing address.
func (s *Sender) From() common.Address { return s.from }

// Transact signs a call to `to` carrying data, submits it and blocks until a
// receipt is available. Reverted transactions return ErrWriteRejected along
// with the receipt.
func (s *Sender) Transact(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error) {
	nonce, err := s.backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, fmt.Errorf("chain: pending nonce: %w", err)
	}

	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{From: s.from, To: &to, Data: data})
	if err != nil {
		// A failed estimate almost always means the call would revert.
		return nil, fmt.Errorf("chain: estimate gas: %w: %w", domain.ErrWriteRejected, err)
	}
	gas += gas * gasHeadroomPct / 100

	tx, err := s.buildTx(ctx, nonce, gas, to, data)
	if err != nil {
		return nil, err
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("chain: %w: %v", domain.ErrSigningFailed, err)
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("chain: send transaction: %w: %w", domain.ErrWriteRejected, err)
	}

	s.logger.InfoContext(ctx, "transaction submitted",
		slog.String("tx_hash", signed.Hash().Hex()),
		slog.String("to", to.Hex()),
		slog.Uint64("nonce", nonce),
		slog.Uint64("gas", gas),
	)

	return s.waitMined(ctx, signed.Hash())
}

// buildTx prefers a dynamic-fee transaction and falls back to a legacy one on
// chains whose head carries no base fee.
func (s *Sender) buildTx(ctx context.Context, nonce, gas uint64, to common.Address, data []byte) (*types.Transaction, error) {
	head, err := s.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: latest header: %w", err)
	}

	if head.BaseFee == nil {
		price, err := s.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("chain: suggest gas price: %w", err)
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: price,
			Gas:      gas,
			To:       &to,
			Data:     data,
		}), nil
	}

	tip, err := s.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: suggest gas tip: %w", err)
	}
	feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Data:      data,
	}), nil
}

func (s *Sender) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		receipt, err := s.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("chain: tx %s reverted: %w", hash.Hex(), domain.ErrWriteRejected)
			}
			return receipt, nil
		case !errors.Is(err, ethereum.NotFound):
			s.logger.WarnContext(ctx, "receipt lookup failed",
				slog.String("tx_hash", hash.Hex()),
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("chain: waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
