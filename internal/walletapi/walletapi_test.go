package walletapi_test

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"custodia/internal/crypto"
	"custodia/internal/domain"
	"custodia/internal/metrics"
	"custodia/internal/services/keys"
	"custodia/internal/services/provision"
	"custodia/internal/signer"
	"custodia/internal/store"
	"custodia/internal/walletapi"
)

func newClient(url string, tokens domain.TokenSource) *walletapi.Client {
	return walletapi.New(walletapi.Config{BaseURL: url, Timeout: 5 * time.Second}, tokens, nil)
}

func startServer(t *testing.T, cfg walletapi.ServerConfig, m *metrics.Metrics) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(walletapi.NewServer(cfg, nil, m).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestProvisioningAgainstReferenceServer(t *testing.T) {
	ctx := context.Background()
	srv := startServer(t, walletapi.ServerConfig{Token: "secret"}, nil)
	client := newClient(srv.URL, walletapi.StaticToken("secret"))

	ks := keys.New(store.NewMemoryStore(), rand.Reader, nil)
	pub, created, err := ks.EnsureRegistered(ctx, client)
	if err != nil || !created {
		t.Fatalf("EnsureRegistered created=%v err=%v", created, err)
	}

	flow := provision.New(ks, signer.New(rand.Reader, nil, nil), client, nil, nil, nil)
	res, err := flow.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Wallet.ID == "" || res.Account.WalletID != res.Wallet.ID {
		t.Fatalf("result = %+v", res)
	}
	if !strings.HasPrefix(res.Account.Address, "0x") || len(res.Account.Address) != 42 {
		t.Fatalf("address = %q", res.Account.Address)
	}
	if pub == "" {
		t.Fatal("empty public key")
	}

	_, err = flow.Run(ctx)
	if got := domain.UserMessage(err); got != "Wallet already exists" {
		t.Fatalf("second run message = %q (err %v)", got, err)
	}
}

func TestServer_PayloadIsSingleUse(t *testing.T) {
	ctx := context.Background()
	srv := startServer(t, walletapi.ServerConfig{}, nil)
	client := newClient(srv.URL, nil)

	kp, err := crypto.GenerateP256(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateP256: %v", err)
	}
	if err := client.RegisterPublicKey(ctx, kp.PublicKey); err != nil {
		t.Fatalf("RegisterPublicKey: %v", err)
	}
	payload, err := client.PrepareWallet(ctx)
	if err != nil {
		t.Fatalf("PrepareWallet: %v", err)
	}
	if _, err := uuid.Parse(string(payload.PayloadID)); err != nil {
		t.Fatalf("payload id %q: %v", payload.PayloadID, err)
	}

	s := signer.New(rand.Reader, nil, nil)
	bad, _, _ := s.Sign(ctx, signer.Params{Payload: "something else", PublicKey: kp.PublicKey, PrivateKey: kp.PrivateKey})
	_, err = client.SubmitWallet(ctx, domain.Submission{PayloadID: payload.PayloadID, Signature: bad})
	var rejected *domain.RemoteRejectedError
	if !errors.As(err, &rejected) || rejected.Message != "Invalid signature" {
		t.Fatalf("bad stamp: %v", err)
	}

	good, _, _ := s.Sign(ctx, signer.Params{Payload: payload.PayloadToSign, PublicKey: kp.PublicKey, PrivateKey: kp.PrivateKey})
	_, err = client.SubmitWallet(ctx, domain.Submission{PayloadID: payload.PayloadID, Signature: good})
	if !errors.As(err, &rejected) || rejected.Message != "Unknown or expired payload" {
		t.Fatalf("reused payload: %v", err)
	}

	fresh, err := client.PrepareWallet(ctx)
	if err != nil {
		t.Fatalf("PrepareWallet: %v", err)
	}
	if fresh.PayloadID == payload.PayloadID {
		t.Fatal("payload id reissued")
	}
	good, _, _ = s.Sign(ctx, signer.Params{Payload: fresh.PayloadToSign, PublicKey: kp.PublicKey, PrivateKey: kp.PrivateKey})
	if _, err := client.SubmitWallet(ctx, domain.Submission{PayloadID: fresh.PayloadID, Signature: good}); err != nil {
		t.Fatalf("SubmitWallet: %v", err)
	}
}

func TestServer_PrepareRequiresRegisteredKey(t *testing.T) {
	ctx := context.Background()
	srv := startServer(t, walletapi.ServerConfig{}, nil)
	client := newClient(srv.URL, nil)

	if _, err := client.PrepareAccount(ctx); err == nil {
		t.Fatal("account prepare without a registered key should be rejected")
	}
	if _, err := client.PrepareWallet(ctx); domain.UserMessage(err) != "Public key not registered" {
		t.Fatalf("prepare without key: %v", err)
	}
}

func TestClient_SuccessFalseOnHTTP200IsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success":false,"message":"KYC not approved","data":null}`)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, nil).PrepareWallet(context.Background())
	var rejected *domain.RemoteRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("want RemoteRejectedError, got %v", err)
	}
	if domain.UserMessage(err) != "KYC not approved" {
		t.Fatalf("message = %q", domain.UserMessage(err))
	}
}

func TestClient_NonEnvelopeErrorStatusIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, nil).PrepareWallet(context.Background())
	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("want NetworkError, got %v", err)
	}
}

func TestClient_UnreachableIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newClient(url, nil).PrepareWallet(context.Background())
	if got := domain.UserMessage(err); got != "Network error. Please check your connection and try again." {
		t.Fatalf("message = %q (err %v)", got, err)
	}
}

func TestClient_SendsHeaders(t *testing.T) {
	var (
		mu      sync.Mutex
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = r.Header.Clone()
		mu.Unlock()
		io.WriteString(w, `{"success":true,"message":"ok","data":{"payloadId":"p1","payloadToSign":"abc"}}`)
	}))
	defer srv.Close()

	p, err := newClient(srv.URL, walletapi.StaticToken("tok")).PrepareWallet(context.Background())
	if err != nil {
		t.Fatalf("PrepareWallet: %v", err)
	}
	if p.PayloadID != "p1" || p.PayloadToSign != "abc" {
		t.Fatalf("payload = %+v", p)
	}
	mu.Lock()
	defer mu.Unlock()
	if headers.Get("Authorization") != "Bearer tok" {
		t.Fatalf("authorization = %q", headers.Get("Authorization"))
	}
	if _, err := uuid.Parse(headers.Get("X-Request-Id")); err != nil {
		t.Fatalf("request id %q: %v", headers.Get("X-Request-Id"), err)
	}
}

func TestServer_RejectsWrongToken(t *testing.T) {
	srv := startServer(t, walletapi.ServerConfig{Token: "right"}, nil)
	_, err := newClient(srv.URL, walletapi.StaticToken("wrong")).PrepareWallet(context.Background())
	if domain.UserMessage(err) != "Unauthorized" {
		t.Fatalf("err = %v", err)
	}
}

func TestCachedToken_ExpiresOnInjectedClock(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fetches := 0
	cached := walletapi.NewCachedToken(func(context.Context) (string, error) {
		fetches++
		return "tok", nil
	}, time.Minute, func() time.Time { return now })

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if tok, err := cached.Token(ctx); err != nil || tok != "tok" {
			t.Fatalf("Token = %q, %v", tok, err)
		}
	}
	if fetches != 1 {
		t.Fatalf("fetches = %d, want 1", fetches)
	}
	now = now.Add(time.Minute)
	cached.Token(ctx)
	if fetches != 2 {
		t.Fatalf("fetches after expiry = %d, want 2", fetches)
	}
	cached.Invalidate()
	cached.Token(ctx)
	if fetches != 3 {
		t.Fatalf("fetches after invalidate = %d, want 3", fetches)
	}
}

func TestCachedToken_EmptyIsError(t *testing.T) {
	cached := walletapi.NewCachedToken(func(context.Context) (string, error) { return "", nil }, time.Minute, nil)
	if _, err := cached.Token(context.Background()); !errors.Is(err, walletapi.ErrNoToken) {
		t.Fatalf("err = %v", err)
	}
}

func TestFileToken(t *testing.T) {
	path := t.TempDir() + "/token"
	if err := writeFile(path, "abc123\nignored\n"); err != nil {
		t.Fatal(err)
	}
	tok, err := walletapi.FileToken(path)(context.Background())
	if err != nil || tok != "abc123" {
		t.Fatalf("FileToken = %q, %v", tok, err)
	}
}

func TestClient_UnauthorizedInvalidatesCachedToken(t *testing.T) {
	srv := startServer(t, walletapi.ServerConfig{Token: "right"}, nil)
	fetches := 0
	cached := walletapi.NewCachedToken(func(context.Context) (string, error) {
		fetches++
		if fetches == 1 {
			return "stale", nil
		}
		return "right", nil
	}, time.Hour, nil)
	client := newClient(srv.URL, cached)

	if _, err := client.PrepareWallet(context.Background()); domain.UserMessage(err) != "Unauthorized" {
		t.Fatalf("first call: %v", err)
	}
	_, err := client.PrepareWallet(context.Background())
	if domain.UserMessage(err) != "Public key not registered" {
		t.Fatalf("second call should authenticate: %v", err)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	srv := startServer(t, walletapi.ServerConfig{Gatherer: reg}, m)
	client := newClient(srv.URL, nil)

	kp, _ := crypto.GenerateP256(rand.Reader)
	if err := client.RegisterPublicKey(context.Background(), kp.PublicKey); err != nil {
		t.Fatalf("RegisterPublicKey: %v", err)
	}
	_, _ = client.SubmitWallet(context.Background(), domain.Submission{PayloadID: "nope", Signature: "x"})

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `custodia_remote_submissions_total{resource="wallet",result="rejected"} 1`) {
		t.Fatalf("metrics output missing rejection counter:\n%s", body)
	}
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	srv := startServer(t, walletapi.ServerConfig{}, nil)
	client := walletapi.New(walletapi.Config{BaseURL: srv.URL, RateLimitRPS: 0.001, RateLimitBurst: 1}, nil, nil)

	_, _ = client.PrepareWallet(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.PrepareWallet(ctx)
	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("want NetworkError from limiter, got %v", err)
	}
}
