package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"

	"github.com/brojonat/mintgen/service/assembler"
	"github.com/brojonat/mintgen/service/config"
	"github.com/brojonat/mintgen/service/db"
	"github.com/brojonat/mintgen/service/metrics"
	natspkg "github.com/brojonat/mintgen/service/nats"
	"github.com/brojonat/mintgen/service/protocol"
	solanasvc "github.com/brojonat/mintgen/service/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

// env carries everything a command needs to talk to the chain and report
// its outcomes. Sinks that are not configured stay nil or no-op.
type env struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	program   *protocol.Program
	client    *solanasvc.Client
	assembler *assembler.Assembler

	// Set only when the command signs.
	wallet    solana.PrivateKey
	submitter *solanasvc.Submitter

	store     *db.Store
	publisher natspkg.Publisher

	closers []func()
}

// newEnv loads configuration and connects everything a command uses.
// The returned env must be closed.
func newEnv(c *cli.Context, needWallet bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	e := &env{
		cfg:       cfg,
		logger:    newLogger(cfg.LogLevel, cfg.LogFormat),
		publisher: natspkg.NopPublisher{},
	}
	if err := e.init(c.Context, needWallet); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *env) init(ctx context.Context, needWallet bool) error {
	registry := prometheus.NewRegistry()
	e.metrics = metrics.NewMetrics(registry)

	e.program = protocol.NewProgram(protocol.ProgramID)
	if e.cfg.ProgramID != "" {
		id, err := solana.PublicKeyFromBase58(e.cfg.ProgramID)
		if err != nil {
			return fmt.Errorf("invalid program id %q: %w", e.cfg.ProgramID, err)
		}
		e.program = protocol.NewProgram(id)
	}

	e.client = solanasvc.NewClient(
		solanasvc.NewRPCClient(e.cfg.SolanaRPCURL),
		endpointLabel(e.cfg.SolanaRPCURL),
		e.metrics,
		e.logger.With("component", "solana"),
		solanasvc.WithProgram(e.program),
		solanasvc.WithRateLimit(e.cfg.RPCRequestsPerSecond),
	)
	e.assembler = assembler.New(e.program, e.cfg.ComputeUnitLimit)

	if needWallet {
		if err := e.cfg.RequireWallet(); err != nil {
			return err
		}
		wallet, err := solana.PrivateKeyFromSolanaKeygenFile(e.cfg.WalletPath)
		if err != nil {
			return fmt.Errorf("failed to load wallet %s: %w", e.cfg.WalletPath, err)
		}
		e.wallet = wallet
		e.submitter, err = solanasvc.NewSubmitter(e.client, solanasvc.SubmitterConfig{
			Logger:         e.logger.With("component", "submitter"),
			Metrics:        e.metrics,
			Payer:          wallet,
			SkipPreflight:  e.cfg.SkipPreflight,
			ConfirmTimeout: e.cfg.ConfirmTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create submitter: %w", err)
		}
	}

	if e.cfg.DatabaseURL != "" {
		store, err := db.Open(ctx, e.cfg.DatabaseURL, e.metrics)
		if err != nil {
			return err
		}
		e.store = store
		e.closers = append(e.closers, store.Close)
	}

	if e.cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(ctx, e.cfg.NATSURL, e.metrics, e.logger.With("component", "nats"))
		if err != nil {
			return err
		}
		e.publisher = publisher
		e.closers = append(e.closers, func() { _ = publisher.Close() })
	}

	if e.cfg.MetricsAddr != "" {
		listener, err := net.Listen("tcp", e.cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", e.cfg.MetricsAddr, err)
		}
		e.logger.Info("prometheus metrics server listening", "address", listener.Addr().String())
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.Serve(listener, mux); err != nil && !errors.Is(err, net.ErrClosed) {
				e.logger.Error("prometheus metrics server stopped", "error", err)
			}
		}()
		e.closers = append(e.closers, func() { _ = listener.Close() })
	}

	return nil
}

// Close releases connections in reverse order of creation.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// walletKey is the public key of the signing wallet.
func (e *env) walletKey() solana.PublicKey {
	return e.wallet.PublicKey()
}

// mintConfig resolves a config by name and fetches it.
func (e *env) mintConfig(ctx context.Context, name string) (solana.PublicKey, *protocol.MintConfig, []byte, error) {
	if name == "" {
		return solana.PublicKey{}, nil, nil, errors.New("config name is required")
	}
	id := e.program.PDA().MintConfigID(name)
	cfg, data, err := e.client.FetchMintConfig(ctx, id)
	if err != nil {
		return id, nil, nil, fmt.Errorf("failed to fetch mint config %q (%s): %w", name, id, err)
	}
	return id, cfg, data, nil
}

// batchSizes returns the chunk capacity and parallelism for a batch command.
// Explicit flags win over the environment, which wins over the command defaults.
func (e *env) batchSizes(c *cli.Context) (capacity, parallelism int) {
	capacity = c.Int("batch-size")
	if !c.IsSet("batch-size") && e.cfg.BatchSize > 0 {
		capacity = e.cfg.BatchSize
	}
	parallelism = c.Int("parallel")
	if !c.IsSet("parallel") && e.cfg.ParallelBatchSize > 0 {
		parallelism = e.cfg.ParallelBatchSize
	}
	return capacity, parallelism
}

// endpointLabel keeps API keys in RPC URLs out of metric labels.
func endpointLabel(rpcURL string) string {
	u, err := url.Parse(rpcURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// getStore opens the run ledger for commands that only read it.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}
	store, err := db.Open(c.Context, dbURL, nil)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}
