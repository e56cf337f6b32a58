package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"custodia/internal/domain"
	"custodia/internal/gate"
	"custodia/internal/lockout"
	"custodia/internal/logging"
	"custodia/internal/metrics"
	"custodia/internal/passcode"
	keysvc "custodia/internal/services/keys"
	provisionsvc "custodia/internal/services/provision"
	"custodia/internal/signer"
	"custodia/internal/store"
	"custodia/internal/walletapi"
)

// Options carries the process-level collaborators NewWire cannot build itself.
type Options struct {
	// Prompt reads the device passcode. Required for gated commands.
	Prompt passcode.PromptFunc
	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer
	// Now defaults to time.Now.
	Now func() time.Time
	// Observer follows provisioning progress.
	Observer provisionsvc.Observer
	// PasscodeCost and ScryptCost default to the interactive costs.
	PasscodeCost *passcode.Cost
	ScryptCost   *store.ScryptCost
}

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Config   Config
	Log      *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Records   domain.RecordStore
	Keys      *keysvc.Service
	Signer    *signer.Signer
	Lockout   *lockout.Policy
	Passcode  *passcode.Verifier
	Auth      gate.Authenticator
	Gate      *gate.MandatoryGate
	API       *walletapi.Client
	Provision *provisionsvc.Flow
	KYC       domain.LinkStateStore

	closers []io.Closer
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config, opts Options) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger, err := logging.New(out, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	w := &Wire{Config: cfg, Log: logger, Registry: prometheus.NewRegistry()}
	w.Metrics = metrics.New(w.Registry)

	records, err := w.openRecords(cfg, opts)
	if err != nil {
		w.Close()
		return nil, err
	}
	w.Records = records

	// Platform authentication
	cost := passcode.DefaultCost
	if opts.PasscodeCost != nil {
		cost = *opts.PasscodeCost
	}
	w.Passcode = passcode.NewVerifier(records, cost)
	prompt := opts.Prompt
	if prompt == nil {
		prompt = func(context.Context, string) (string, error) { return "", io.EOF }
	}
	w.Auth = passcode.NewAuthenticator(w.Passcode, prompt)

	// Custody core
	w.Keys = keysvc.New(records, rand.Reader, logger.With("component", "keys"))
	w.Signer = signer.New(rand.Reader, logger.With("component", "signer"), w.Metrics)
	w.Lockout = lockout.New(records, opts.Now, logger.With("component", "lockout"), w.Metrics)
	w.Gate = gate.NewMandatoryGate(w.Auth, w.Lockout, logger.With("component", "gate"), w.Metrics)
	w.KYC = store.NewLinkStore(records)

	// Remote
	w.API = walletapi.New(walletapi.Config{
		BaseURL:        cfg.API.BaseURL,
		Timeout:        cfg.API.Timeout,
		RateLimitRPS:   cfg.API.RateLimitRPS,
		RateLimitBurst: cfg.API.RateLimitBurst,
	}, tokenSource(cfg.API, opts.Now), logger.With("component", "walletapi"))
	if cfg.HTTP != nil {
		w.API.WithHTTPClient(cfg.HTTP)
	}
	w.Provision = provisionsvc.New(w.Keys, w.Signer, w.API,
		logger.With("component", "provision"), w.Metrics, opts.Observer)

	return w, nil
}

func (w *Wire) openRecords(cfg Config, opts Options) (domain.RecordStore, error) {
	var inner domain.RecordStore
	switch cfg.Storage.Backend {
	case BackendMemory:
		inner = store.NewMemoryStore()
		if cfg.Storage.Secret == "" {
			return inner, nil
		}
	case BackendFile:
		fs, err := store.NewFileStore(cfg.Home)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		inner = fs
	case BackendLevelDB:
		db, err := store.OpenLevelDBStore(cfg.Home)
		if err != nil {
			return nil, fmt.Errorf("open leveldb store: %w", err)
		}
		w.closers = append(w.closers, db)
		inner = db
	}

	cost := store.DefaultScryptCost
	if opts.ScryptCost != nil {
		cost = *opts.ScryptCost
	}
	return store.NewSealedStoreWithCost(inner, cfg.Storage.Secret, cost)
}

func tokenSource(cfg APIConfig, now func() time.Time) domain.TokenSource {
	switch {
	case cfg.Token != "":
		return walletapi.StaticToken(cfg.Token)
	case cfg.TokenFile != "":
		return walletapi.NewCachedToken(walletapi.FileToken(cfg.TokenFile), cfg.TokenTTL, now)
	default:
		return nil
	}
}

// Close releases open stores and writes the metrics textfile if configured.
func (w *Wire) Close() error {
	var errs []error
	if w.Config.Metrics.Textfile != "" && w.Registry != nil {
		if err := prometheus.WriteToTextfile(w.Config.Metrics.Textfile, w.Registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		}
	}
	for _, c := range w.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	w.closers = nil
	return errors.Join(errs...)
}
