package app

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"heartx/internal/crypto"
	"heartx/internal/domain"
	"heartx/internal/platform/logging"
	"heartx/internal/protocol/heart"
	"heartx/internal/relay"
	"heartx/internal/services/directory"
	"heartx/internal/services/keyvault"
	"heartx/internal/services/late"
	"heartx/internal/services/match"
	"heartx/internal/services/recovery"
	"heartx/internal/services/slots"
	"heartx/internal/store"
	"heartx/internal/worker"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Config    Config
	Log       *log.Logger
	Relay     *relay.HTTP
	Local     *store.Local
	Codec     *heart.Codec
	Keys      *keyvault.Service
	Directory *directory.Service
	Slots     *slots.Service
	Match     *match.Service
	Late      *late.Service
	Recovery  *recovery.Service
	Worker    *worker.Worker
}

// NewWire constructs the dependency graph from cfg. logOut defaults to stderr.
func NewWire(cfg Config, logOut io.Writer, opts ...Option) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Identity == "" {
		return nil, errors.New("identity must be set (flag --identity or HEARTX_IDENTITY)")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Out: logOut})
	if err != nil {
		return nil, err
	}

	// Ensure an HTTP client is available for outbound calls
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Relay.Timeout}
	}
	rc := relay.NewHTTP(cfg.Relay.URL, httpClient, domain.Credentials{Identity: cfg.Identity, Token: cfg.Token})

	local := store.NewLocal(cfg.Home, cfg.Identity)
	codec := heart.New(crypto.SelfSealerByName(cfg.Heart.SelfSignature))

	keys := keyvault.New(rc, append([]keyvault.Option{keyvault.WithLogger(logger)}, o.keys...)...)
	dir := directory.New(rc, local, directory.Config{
		MaxEntries: cfg.Directory.MaxEntries,
		TTL:        cfg.Directory.TTL,
		MaxAge:     cfg.Directory.MaxAge,
	}, logger)
	slotSvc := slots.New(rc, dir, codec,
		slots.WithLogger(logger),
		slots.WithDraftStore(local),
		slots.WithAuxStore(local),
		slots.WithLateStore(local),
		slots.WithSenderTag(cfg.SenderTag),
	)
	matchSvc := match.New(rc, codec, match.WithLogger(logger), match.WithCursorStore(local))
	lateSvc := late.New(local, slotSvc, logger)
	recSvc := recovery.New(rc, local, append([]recovery.Option{recovery.WithLogger(logger)}, o.recovery...)...)

	return &Wire{
		Config:    cfg,
		Log:       logger,
		Relay:     rc,
		Local:     local,
		Codec:     codec,
		Keys:      keys,
		Directory: dir,
		Slots:     slotSvc,
		Match:     matchSvc,
		Late:      lateSvc,
		Recovery:  recSvc,
		Worker:    worker.New(keys, codec, matchSvc, recSvc, logger),
	}, nil
}

// Option tunes service construction, mostly for tests.
type Option func(*options)

type options struct {
	keys     []keyvault.Option
	recovery []recovery.Option
}

// WithKeyVaultOptions passes options through to the key vault.
func WithKeyVaultOptions(o ...keyvault.Option) Option {
	return func(opts *options) { opts.keys = append(opts.keys, o...) }
}

// WithRecoveryOptions passes options through to the recovery service.
func WithRecoveryOptions(o ...recovery.Option) Option {
	return func(opts *options) { opts.recovery = append(opts.recovery, o...) }
}

// Start runs the worker in the background; stop cancels it and waits.
func (w *Wire) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Worker.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}
