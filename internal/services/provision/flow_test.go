package provision_test

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"custodia/internal/domain"
	"custodia/internal/services/keys"
	"custodia/internal/services/provision"
	"custodia/internal/signer"
	"custodia/internal/store"
)

type mockAPI struct {
	mu        sync.Mutex
	publicKey string
	calls     []string
	seq       int
	issued    map[domain.PayloadID]string
	submitted []domain.PayloadID

	prepareErr     error
	rejectWith     string
	emptyChallenge bool
}

func newMockAPI(pub string) *mockAPI {
	return &mockAPI{publicKey: pub, issued: map[domain.PayloadID]string{}}
}

func (m *mockAPI) prepare(op string) (domain.PreparePayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op)
	if m.prepareErr != nil {
		return domain.PreparePayload{}, m.prepareErr
	}
	m.seq++
	id := domain.PayloadID(fmt.Sprintf("payload-%d", m.seq))
	challenge := fmt.Sprintf(`{"type":"%s","nonce":%d}`, op, m.seq)
	if m.emptyChallenge {
		challenge = ""
	}
	m.issued[id] = challenge
	return domain.PreparePayload{PayloadID: id, PayloadToSign: challenge}, nil
}

func (m *mockAPI) submit(op string, sub domain.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op)
	m.submitted = append(m.submitted, sub.PayloadID)
	challenge, ok := m.issued[sub.PayloadID]
	if !ok {
		return &domain.RemoteRejectedError{Operation: op, Message: "Unknown payload"}
	}
	delete(m.issued, sub.PayloadID)
	if m.rejectWith != "" {
		return &domain.RemoteRejectedError{Operation: op, Message: m.rejectWith}
	}
	if err := signer.VerifyStamp(sub.Signature, challenge, m.publicKey); err != nil {
		return &domain.RemoteRejectedError{Operation: op, Message: "Invalid signature"}
	}
	return nil
}

func (m *mockAPI) PrepareWallet(context.Context) (domain.PreparePayload, error) {
	return m.prepare("wallet.prepare")
}

func (m *mockAPI) SubmitWallet(_ context.Context, sub domain.Submission) (domain.Wallet, error) {
	if err := m.submit("wallet.submit", sub); err != nil {
		return domain.Wallet{}, err
	}
	return domain.Wallet{ID: "w-" + string(sub.PayloadID), Name: "Primary"}, nil
}

func (m *mockAPI) PrepareAccount(context.Context) (domain.PreparePayload, error) {
	return m.prepare("account.prepare")
}

func (m *mockAPI) SubmitAccount(_ context.Context, sub domain.Submission) (domain.WalletAccount, error) {
	if err := m.submit("account.submit", sub); err != nil {
		return domain.WalletAccount{}, err
	}
	return domain.WalletAccount{ID: "a-" + string(sub.PayloadID), WalletID: "w-payload-1", Curve: "CURVE_SECP256K1"}, nil
}

func (m *mockAPI) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type fixture struct {
	records domain.RecordStore
	keys    *keys.Service
	api     *mockAPI
}

func newFixture(t *testing.T, withKeys bool) fixture {
	t.Helper()
	records := store.NewMemoryStore()
	ks := keys.New(records, rand.Reader, nil)
	pub := ""
	if withKeys {
		var err error
		if pub, err = ks.GenerateAndStoreKeys(context.Background()); err != nil {
			t.Fatalf("GenerateAndStoreKeys: %v", err)
		}
	}
	return fixture{records: records, keys: ks, api: newMockAPI(pub)}
}

func (fx fixture) flow(observer provision.Observer) *provision.Flow {
	return provision.New(fx.keys, signer.New(rand.Reader, nil, nil), fx.api, nil, nil, observer)
}

func TestRun_CreatesWalletThenAccount(t *testing.T) {
	fx := newFixture(t, true)

	type event struct {
		stage provision.Stage
		step  provision.Step
	}
	var events []event
	res, err := fx.flow(func(s provision.Stage, st provision.Step) {
		events = append(events, event{s, st})
	}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Wallet.ID != "w-payload-1" || res.Account.ID != "a-payload-2" {
		t.Fatalf("result = %+v", res)
	}

	wantCalls := []string{"wallet.prepare", "wallet.submit", "account.prepare", "account.submit"}
	if got := fx.api.callLog(); !reflect.DeepEqual(got, wantCalls) {
		t.Fatalf("calls = %v, want %v", got, wantCalls)
	}

	var wantEvents []event
	for _, s := range []provision.Stage{provision.StageWallet, provision.StageAccount} {
		for _, st := range []provision.Step{provision.StepPreparing, provision.StepSigning, provision.StepSubmitting, provision.StepDone} {
			wantEvents = append(wantEvents, event{s, st})
		}
	}
	if !reflect.DeepEqual(events, wantEvents) {
		t.Fatalf("events = %v", events)
	}
}

func TestRun_NoKeysFailsBeforeNetwork(t *testing.T) {
	fx := newFixture(t, false)
	_, err := fx.flow(nil).Run(context.Background())
	if !errors.Is(err, domain.ErrKeyAbsent) {
		t.Fatalf("want ErrKeyAbsent, got %v", err)
	}
	if calls := fx.api.callLog(); len(calls) != 0 {
		t.Fatalf("network calls made without keys: %v", calls)
	}
}

func TestRun_PrepareFailureAborts(t *testing.T) {
	fx := newFixture(t, true)
	fx.api.prepareErr = &domain.NetworkError{Operation: "wallet prepare", Err: errors.New("connection refused")}

	_, err := fx.flow(nil).Run(context.Background())
	var stepErr *provision.StepError
	if !errors.As(err, &stepErr) || stepErr.Stage != provision.StageWallet || stepErr.Step != provision.StepPreparing {
		t.Fatalf("err = %v", err)
	}
	if got := domain.UserMessage(err); got != "Network error. Please check your connection and try again." {
		t.Fatalf("user message = %q", got)
	}
	if calls := fx.api.callLog(); len(calls) != 1 {
		t.Fatalf("calls = %v", calls)
	}
}

func TestRun_RemoteRejectionSurfacesVerbatim(t *testing.T) {
	fx := newFixture(t, true)
	fx.api.rejectWith = "Wallet already exists for user"

	res, err := fx.flow(nil).Run(context.Background())
	if err == nil {
		t.Fatal("expected rejection")
	}
	if got := domain.UserMessage(err); got != "Wallet already exists for user" {
		t.Fatalf("user message = %q", got)
	}
	if res.Wallet.ID != "" {
		t.Fatalf("wallet returned on failure: %+v", res.Wallet)
	}
	for _, c := range fx.api.callLog() {
		if c == "account.prepare" {
			t.Fatal("account stage started after wallet failure")
		}
	}
}

func TestRun_SignerNoResultAbortsBeforeSubmit(t *testing.T) {
	fx := newFixture(t, true)
	fx.api.emptyChallenge = true

	_, err := fx.flow(nil).Run(context.Background())
	if !errors.Is(err, domain.ErrSigningAborted) {
		t.Fatalf("want ErrSigningAborted, got %v", err)
	}
	if got := fx.api.callLog(); !reflect.DeepEqual(got, []string{"wallet.prepare"}) {
		t.Fatalf("calls = %v", got)
	}
}

func TestRun_RetryUsesFreshPayloads(t *testing.T) {
	fx := newFixture(t, true)
	fx.api.rejectWith = "Temporarily unavailable"
	if _, err := fx.flow(nil).Run(context.Background()); err == nil {
		t.Fatal("expected failure")
	}

	fx.api.rejectWith = ""
	if _, err := fx.flow(nil).Run(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}

	seen := map[domain.PayloadID]bool{}
	for _, id := range fx.api.submitted {
		if seen[id] {
			t.Fatalf("payload %s submitted twice", id)
		}
		seen[id] = true
	}
}

func TestRun_ConcurrentInvocationsKeepKeys(t *testing.T) {
	fx := newFixture(t, true)
	before, err := fx.keys.LoadKeyPair(context.Background())
	if err != nil {
		t.Fatalf("LoadKeyPair: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.flow(nil).Run(context.Background())
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	after, err := fx.keys.LoadKeyPair(context.Background())
	if err != nil {
		t.Fatalf("LoadKeyPair: %v", err)
	}
	if after != before {
		t.Fatal("keypair changed across concurrent runs")
	}
	if len(fx.api.callLog()) != 8 {
		t.Fatalf("calls = %d, want 8", len(fx.api.callLog()))
	}
}
