package provision

import (
	"context"
	"fmt"
	"log/slog"

	"custodia/internal/domain"
	"custodia/internal/logging"
	"custodia/internal/metrics"
	"custodia/internal/signer"
)

// Stage is the resource being provisioned.
type Stage string

const (
	StageWallet  Stage = "wallet"
	StageAccount Stage = "account"
)

// Step is the position within a stage.
type Step string

const (
	StepPreparing  Step = "preparing"
	StepSigning    Step = "signing"
	StepSubmitting Step = "submitting"
	StepDone       Step = "done"
)

// Observer is told about every step a run enters.
type Observer func(Stage, Step)

// KeySource yields the stored signing keypair.
type KeySource interface {
	LoadKeyPair(ctx context.Context) (domain.KeyPair, error)
}

// PayloadSigner stamps a payload with a keypair.
type PayloadSigner interface {
	Sign(ctx context.Context, p signer.Params) (string, bool, error)
}

// StepError reports which step aborted a run.
type StepError struct {
	Stage Stage
	Step  Step
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Result holds the resources created by a successful run.
type Result struct {
	Wallet  domain.Wallet
	Account domain.WalletAccount
}

// Flow provisions one wallet and one account.
type Flow struct {
	keys     KeySource
	signer   PayloadSigner
	api      domain.WalletAPI
	log      *slog.Logger
	metrics  *metrics.Metrics
	observer Observer
}

// New constructs a Flow. observer may be nil.
func New(keys KeySource, s PayloadSigner, api domain.WalletAPI, logger *slog.Logger, m *metrics.Metrics, observer Observer) *Flow {
	return &Flow{
		keys:     keys,
		signer:   s,
		api:      api,
		log:      logging.OrDiscard(logger),
		metrics:  m,
		observer: observer,
	}
}

// Run provisions the wallet, then the account. It fails with
// domain.ErrKeyAbsent before any network call if the keypair is missing.
func (f *Flow) Run(ctx context.Context) (Result, error) {
	kp, err := f.keys.LoadKeyPair(ctx)
	if err != nil {
		return Result{}, err
	}

	wallet, err := runStage(ctx, f, StageWallet, kp, f.api.PrepareWallet, f.api.SubmitWallet)
	if err != nil {
		return Result{}, err
	}
	f.log.Info("wallet created", "wallet_id", wallet.ID)

	account, err := runStage(ctx, f, StageAccount, kp, f.api.PrepareAccount, f.api.SubmitAccount)
	if err != nil {
		return Result{Wallet: wallet}, err
	}
	f.log.Info("wallet account created", "wallet_id", account.WalletID, "account_id", account.ID)

	return Result{Wallet: wallet, Account: account}, nil
}

func runStage[T any](
	ctx context.Context,
	f *Flow,
	stage Stage,
	kp domain.KeyPair,
	prepare func(context.Context) (domain.PreparePayload, error),
	submit func(context.Context, domain.Submission) (T, error),
) (T, error) {
	var zero T

	f.enter(stage, StepPreparing)
	payload, err := prepare(ctx)
	if err != nil {
		return zero, f.abort(stage, StepPreparing, err)
	}
	f.step(stage, StepPreparing, "ok")

	f.enter(stage, StepSigning)
	stamp, ok, err := f.signer.Sign(ctx, signer.Params{
		Payload:    payload.PayloadToSign,
		PublicKey:  kp.PublicKey,
		PrivateKey: kp.PrivateKey,
	})
	if err != nil {
		return zero, f.abort(stage, StepSigning, err)
	}
	if !ok {
		return zero, f.abort(stage, StepSigning, domain.ErrSigningAborted)
	}
	f.step(stage, StepSigning, "ok")

	f.enter(stage, StepSubmitting)
	out, err := submit(ctx, domain.Submission{PayloadID: payload.PayloadID, Signature: stamp})
	if err != nil {
		return zero, f.abort(stage, StepSubmitting, err)
	}
	f.step(stage, StepSubmitting, "ok")

	f.enter(stage, StepDone)
	return out, nil
}

func (f *Flow) enter(stage Stage, step Step) {
	if f.observer != nil {
		f.observer(stage, step)
	}
}

func (f *Flow) step(stage Stage, step Step, result string) {
	f.metrics.ProvisionStep(string(stage), string(step), result)
}

func (f *Flow) abort(stage Stage, step Step, err error) error {
	f.step(stage, step, "error")
	f.log.Warn("provisioning aborted", "stage", string(stage), "step", string(step), "err", err)
	return &StepError{Stage: stage, Step: step, Err: err}
}
