package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/mintgen/service/metrics"
	"github.com/brojonat/mintgen/service/protocol"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrEmptyTransaction is returned when a transaction has no instructions.
	ErrEmptyTransaction = errors.New("transaction has no instructions")

	// ErrConfirmationTimeout is returned when a sent transaction was not
	// confirmed in time. The transaction may still land.
	ErrConfirmationTimeout = errors.New("timed out waiting for confirmation")
)

// Tx is an unsigned transaction: its instructions plus any signers besides
// the fee payer (for example freshly generated mint keypairs).
type Tx struct {
	Instructions []solana.Instruction
	Signers      []solana.PrivateKey
}

// SubmitterConfig configures a Submitter.
type SubmitterConfig struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Clock          clockwork.Clock
	Payer          solana.PrivateKey
	SkipPreflight  bool
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

func (cfg *SubmitterConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if len(cfg.Payer) == 0 {
		return errors.New("payer keypair is required")
	}
	if cfg.ConfirmTimeout <= 0 {
		return errors.New("confirm timeout must be greater than 0")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Submitter signs, sends and confirms transactions paid for by one wallet.
type Submitter struct {
	client *Client
	cfg    SubmitterConfig
}

func NewSubmitter(client *Client, cfg SubmitterConfig) (*Submitter, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Submitter{client: client, cfg: cfg}, nil
}

// Payer is the fee payer of every submitted transaction.
func (s *Submitter) Payer() solana.PublicKey {
	return s.cfg.Payer.PublicKey()
}

// Submit sends tx and waits until it is confirmed. Transient RPC errors are
// retried by the client; a transaction that fails on chain is never retried
// and its program error is decoded when known.
func (s *Submitter) Submit(ctx context.Context, tx *Tx) (solana.Signature, error) {
	if tx == nil || len(tx.Instructions) == 0 {
		return solana.Signature{}, ErrEmptyTransaction
	}

	blockhash, err := s.client.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get blockhash: %w", err)
	}

	txn, err := solana.NewTransaction(tx.Instructions, blockhash, solana.TransactionPayer(s.Payer()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build transaction: %w", err)
	}

	keys := map[solana.PublicKey]solana.PrivateKey{s.Payer(): s.cfg.Payer}
	for _, signer := range tx.Signers {
		keys[signer.PublicKey()] = signer
	}
	if _, err := txn.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if k, ok := keys[key]; ok {
			return &k
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := s.client.SendTransaction(ctx, txn, rpc.TransactionOpts{
		SkipPreflight:       s.cfg.SkipPreflight,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", sendError(err))
	}

	s.cfg.Logger.DebugContext(ctx, "sent transaction",
		"signature", sig.String(),
		"instructions", len(tx.Instructions),
	)
	return sig, s.confirm(ctx, sig)
}

func (s *Submitter) confirm(ctx context.Context, sig solana.Signature) error {
	start := s.cfg.Clock.Now()
	deadline := start.Add(s.cfg.ConfirmTimeout)
	record := func(status string) {
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordConfirmation(status, s.cfg.Clock.Since(start).Seconds())
		}
	}

	for {
		status, err := s.client.SignatureStatus(ctx, sig)
		if err != nil {
			s.cfg.Logger.WarnContext(ctx, "failed to get signature status",
				"signature", sig.String(),
				"error", err,
			)
		}
		if status != nil {
			if status.Err != nil {
				record("failed")
				return fmt.Errorf("transaction %s failed: %w", sig, protocol.DecodeTransactionError(status.Err))
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				record("confirmed")
				return nil
			}
		}

		if !s.cfg.Clock.Now().Before(deadline) {
			record("timeout")
			return fmt.Errorf("%w: %s", ErrConfirmationTimeout, sig)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.cfg.Clock.After(s.cfg.PollInterval):
		}
	}
}

// sendError surfaces the program error of a failed preflight simulation.
func sendError(err error) error {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return err
	}
	data, ok := rpcErr.Data.(map[string]interface{})
	if !ok || data["err"] == nil {
		return err
	}
	var perr *protocol.ProgramError
	if decoded := protocol.DecodeTransactionError(data["err"]); errors.As(decoded, &perr) {
		return fmt.Errorf("%w (%s)", perr, rpcErr.Message)
	}
	return err
}
