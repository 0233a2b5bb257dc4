package solana

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/mintgen/service/metrics"
	"github.com/brojonat/mintgen/service/protocol"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetTokenAccountsByOwner(
		ctx context.Context,
		owner solana.PublicKey,
		conf *rpc.GetTokenAccountsConfig,
		opts *rpc.GetTokenAccountsOpts,
	) (*rpc.GetTokenAccountsResult, error)

	GetMultipleAccounts(
		ctx context.Context,
		accounts ...solana.PublicKey,
	) (*rpc.GetMultipleAccountsResult, error)

	GetAccountInfo(
		ctx context.Context,
		account solana.PublicKey,
	) (*rpc.GetAccountInfoResult, error)

	GetProgramAccountsWithOpts(
		ctx context.Context,
		program solana.PublicKey,
		opts *rpc.GetProgramAccountsOpts,
	) (rpc.GetProgramAccountsResult, error)

	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	SendTransactionWithOpts(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)
}

// ErrAccountNotFound is returned when a fetched account does not exist.
var ErrAccountNotFound = errors.New("account not found")

// Client reads mint generator state from Solana and sends transactions.
// Every RPC call is rate limited, retried with exponential backoff on
// transient errors and recorded in metrics.
type Client struct {
	rpc         RPCClient
	logger      *slog.Logger
	metrics     *metrics.Metrics
	endpoint    string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet", rpc host)
	program     *protocol.Program
	limiter     *rate.Limiter
	clock       clockwork.Clock
	maxAttempts int
	backoff     func(attempt int, rateLimited bool) time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithProgram targets a program deployment other than the default.
func WithProgram(program *protocol.Program) Option {
	return func(c *Client) { c.program = program }
}

// WithRateLimit caps outgoing RPC requests per second. Zero disables limiting.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := max(1, int(requestsPerSecond))
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithClock replaces the clock used for backoff waits.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithRetry sets the attempt budget and backoff schedule of RPC calls.
func WithRetry(maxAttempts int, backoff func(attempt int, rateLimited bool) time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = max(1, maxAttempts)
		if backoff != nil {
			c.backoff = backoff
		}
	}
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet", "devnet", or RPC hostname).
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		rpc:         rpcClient,
		logger:      logger,
		metrics:     m,
		endpoint:    endpoint,
		program:     protocol.NewProgram(protocol.ProgramID),
		clock:       clockwork.NewRealClock(),
		maxAttempts: 3,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Program is the deployment this client reads from.
func (c *Client) Program() *protocol.Program {
	return c.program
}

// defaultBackoff waits 2s, 4s, 8s after rate limiting and 1s, 2s, 4s otherwise.
func defaultBackoff(attempt int, rateLimited bool) time.Duration {
	if rateLimited {
		return time.Duration(2<<uint(attempt)) * time.Second
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}

// withRetry runs one RPC method under the client's rate limit and retry policy.
func withRetry[T any](ctx context.Context, c *Client, method string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var err error
	for attempt := range c.maxAttempts {
		if c.limiter != nil {
			if werr := c.limiter.Wait(ctx); werr != nil {
				return zero, werr
			}
		}

		start := c.clock.Now()
		var out T
		out, err = fn(ctx)
		duration := c.clock.Since(start).Seconds()

		status := "success"
		if err != nil {
			status = "error"
		}
		if c.metrics != nil {
			c.metrics.RecordRPCCall(method, status, c.endpoint, duration)
		}
		if err == nil {
			return out, nil
		}
		if !isRetryable(err) || attempt == c.maxAttempts-1 {
			break
		}

		// Handle rate limiting (429 Too Many Requests) with longer backoff
		limited := isRateLimited(err)
		backoff := c.backoff(attempt, limited)
		reason := "timeout_or_error"
		if limited {
			reason = "rate_limit"
			if c.metrics != nil {
				c.metrics.RecordRateLimitHit(c.endpoint)
			}
		}
		if c.metrics != nil {
			c.metrics.RecordRPCRetry(method, reason)
		}
		c.logger.WarnContext(ctx, "rpc call failed, retrying",
			"method", method,
			"attempt", attempt+1,
			"reason", reason,
			"error", err,
			"backoff_seconds", backoff.Seconds(),
		)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-c.clock.After(backoff):
		}
	}
	return zero, err
}

func isRateLimited(err error) bool {
	return strings.Contains(err.Error(), "429")
}

// isRetryable reports whether another attempt could succeed. Node side
// rejections (JSON-RPC errors such as failed preflight) are final.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, rpc.ErrNotFound) {
		return false
	}
	if isRateLimited(err) {
		return true
	}
	var rpcErr *jsonrpc.RPCError
	return !errors.As(err, &rpcErr)
}

// LatestBlockhash returns a recent blockhash at confirmed commitment.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	res, err := withRetry(ctx, c, "GetLatestBlockhash", func(ctx context.Context) (*rpc.GetLatestBlockhashResult, error) {
		return c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	})
	if err != nil {
		return solana.Hash{}, err
	}
	if res == nil || res.Value == nil {
		return solana.Hash{}, errors.New("empty blockhash response")
	}
	return res.Value.Blockhash, nil
}

// SendTransaction sends a signed transaction and returns its signature.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	return withRetry(ctx, c, "SendTransaction", func(ctx context.Context) (solana.Signature, error) {
		return c.rpc.SendTransactionWithOpts(ctx, tx, opts)
	})
}

// SignatureStatus returns the status of one signature, or nil when the node
// has not seen it yet.
func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	res, err := withRetry(ctx, c, "GetSignatureStatuses", func(ctx context.Context) (*rpc.GetSignatureStatusesResult, error) {
		return c.rpc.GetSignatureStatuses(ctx, false, sig)
	})
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Value) == 0 {
		return nil, nil
	}
	return res.Value[0], nil
}
