package walletapi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custodia/internal/crypto"
	"custodia/internal/domain"
	types "custodia/internal/domain/types"
	"custodia/internal/logging"
	"custodia/internal/metrics"
	"custodia/internal/signer"
)

const (
	activityCreateWallet  = "ACTIVITY_TYPE_CREATE_WALLET"
	activityCreateAccount = "ACTIVITY_TYPE_CREATE_WALLET_ACCOUNTS"

	defaultWalletName = "Default Wallet"
	defaultCurve      = "CURVE_SECP256K1"
	defaultPath       = "m/44'/60'/0'/0/0"
	maxRequestBytes   = 64 << 10
)

type pendingPayload struct {
	activity  string
	challenge string
}

// ServerConfig configures the reference server.
type ServerConfig struct {
	// Token, when set, must be presented as a bearer token.
	Token string
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Now      func() time.Time
}

// Server is an in-memory wallet API for one user. Payload IDs are single-use:
// a submission consumes its payload whether or not it verifies.
type Server struct {
	cfg     ServerConfig
	log     *slog.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	publicKey string
	pending   map[domain.PayloadID]pendingPayload
	wallet    *domain.Wallet
	account   *domain.WalletAccount
}

func NewServer(cfg ServerConfig, logger *slog.Logger, m *metrics.Metrics) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Server{
		cfg:     cfg,
		log:     logging.OrDiscard(logger),
		metrics: m,
		pending: make(map[domain.PayloadID]pendingPayload),
	}
}

// Handler returns the server's routes wrapped in auth and access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /keys/register", s.authorized(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /wallet/prepare", s.authorized(s.handlePrepare(activityCreateWallet)))
	mux.Handle("POST /wallet/submit", s.authorized(http.HandlerFunc(s.handleSubmitWallet)))
	mux.Handle("POST /wallet/accounts/prepare", s.authorized(s.handlePrepare(activityCreateAccount)))
	mux.Handle("POST /wallet/accounts/submit", s.authorized(http.HandlerFunc(s.handleSubmitAccount)))
	if s.cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return s.accessLog(mux)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PublicKey string `json:"publicKey"`
	}
	if err := decodeBody(w, r, &in); err != nil {
		reject(w, http.StatusBadRequest, "Malformed request")
		return
	}
	if _, err := crypto.ParsePublicKey(in.PublicKey); err != nil {
		reject(w, http.StatusOK, "Invalid public key")
		return
	}
	s.mu.Lock()
	s.publicKey = strings.ToLower(in.PublicKey)
	s.mu.Unlock()
	s.log.Info("public key registered", "public_key", in.PublicKey)
	respond(w, "Public key registered", in)
}

func (s *Server) handlePrepare(activity string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.publicKey == "" {
			reject(w, http.StatusOK, "Public key not registered")
			return
		}
		switch activity {
		case activityCreateWallet:
			if s.wallet != nil {
				reject(w, http.StatusOK, "Wallet already exists")
				return
			}
		case activityCreateAccount:
			if s.wallet == nil {
				reject(w, http.StatusOK, "Wallet not found")
				return
			}
			if s.account != nil {
				reject(w, http.StatusOK, "Wallet account already exists")
				return
			}
		}

		id := domain.PayloadID(uuid.NewString())
		challenge, err := json.Marshal(struct {
			Type        string `json:"type"`
			TimestampMs string `json:"timestampMs"`
			Nonce       string `json:"nonce"`
		}{
			Type:        activity,
			TimestampMs: strconv.FormatInt(s.cfg.Now().UnixMilli(), 10),
			Nonce:       uuid.NewString(),
		})
		if err != nil {
			reject(w, http.StatusInternalServerError, "Could not prepare payload")
			return
		}
		s.pending[id] = pendingPayload{activity: activity, challenge: string(challenge)}
		respond(w, "Payload prepared", domain.PreparePayload{PayloadID: id, PayloadToSign: string(challenge)})
	}
}

func (s *Server) handleSubmitWallet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.consume(w, r, activityCreateWallet, "wallet") {
		return
	}
	now := s.cfg.Now().UTC()
	s.wallet = &domain.Wallet{ID: uuid.NewString(), Name: defaultWalletName, CreatedAt: now}
	s.metrics.RemoteSubmission("wallet", "ok")
	s.log.Info("wallet created", "wallet_id", s.wallet.ID)
	respond(w, "Wallet created", *s.wallet)
}

func (s *Server) handleSubmitAccount(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.consume(w, r, activityCreateAccount, "account") {
		return
	}
	if s.wallet == nil {
		s.metrics.RemoteSubmission("account", "rejected")
		reject(w, http.StatusOK, "Wallet not found")
		return
	}
	now := s.cfg.Now().UTC()
	s.account = &domain.WalletAccount{
		ID:        uuid.NewString(),
		WalletID:  s.wallet.ID,
		Address:   deriveAddress(s.publicKey, s.wallet.ID),
		Curve:     defaultCurve,
		Path:      defaultPath,
		CreatedAt: now,
	}
	s.metrics.RemoteSubmission("account", "ok")
	s.log.Info("wallet account created", "wallet_id", s.wallet.ID, "account_id", s.account.ID)
	respond(w, "Wallet account created", *s.account)
}

// consume validates a submission against its pending payload and removes the
// payload. It writes the rejection itself and reports whether to continue.
// Callers hold s.mu.
func (s *Server) consume(w http.ResponseWriter, r *http.Request, activity, resource string) bool {
	var sub domain.Submission
	if err := decodeBody(w, r, &sub); err != nil {
		s.metrics.RemoteSubmission(resource, "rejected")
		reject(w, http.StatusBadRequest, "Malformed request")
		return false
	}
	p, ok := s.pending[sub.PayloadID]
	delete(s.pending, sub.PayloadID)
	if !ok || p.activity != activity {
		s.metrics.RemoteSubmission(resource, "rejected")
		reject(w, http.StatusOK, "Unknown or expired payload")
		return false
	}
	if err := signer.VerifyStamp(sub.Signature, p.challenge, s.publicKey); err != nil {
		s.metrics.RemoteSubmission(resource, "rejected")
		s.log.Warn("stamp rejected", "payload_id", sub.PayloadID.String(), "err", err)
		reject(w, http.StatusOK, "Invalid signature")
		return false
	}
	return true
}

func (s *Server) authorized(next http.Handler) http.Handler {
	if s.cfg.Token == "" {
		return next
	}
	want := []byte("Bearer " + s.cfg.Token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			reject(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", rec.status,
			"bytes", rec.bytes,
			"request_id", r.Header.Get("X-Request-Id"),
			"duration", time.Since(start))
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(out); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}

func respond[T any](w http.ResponseWriter, msg string, data T) {
	writeEnvelope(w, http.StatusOK, types.Response[T]{Success: true, Message: msg, Data: data})
}

func reject(w http.ResponseWriter, status int, msg string) {
	writeEnvelope(w, status, types.Response[any]{Success: false, Message: msg})
}

func writeEnvelope(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func deriveAddress(publicKey, walletID string) string {
	sum := sha256.Sum256([]byte(publicKey + ":" + walletID))
	return "0x" + hex.EncodeToString(sum[:20])
}
