package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bloomsocial/core"
	"bloomsocial/gateway/middleware"
	"bloomsocial/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32005
)

// ServerConfig tunes the HTTP surface of the node.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RateLimit         middleware.RateLimit
	CORS              middleware.CORSConfig
	Auth              middleware.AuthConfig
	LogRequests       bool
}

type Server struct {
	ledger   *core.Ledger
	cfg      ServerConfig
	logger   *slog.Logger
	auth     *middleware.Authenticator
	limiter  *middleware.RateLimiter
	obs      *middleware.Observability
	validate *validator.Validate

	serverMu   sync.Mutex
	httpServer *http.Server
}

func NewServer(ledger *core.Ledger, cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "rpc")
	limits := map[string]middleware.RateLimit{}
	if cfg.RateLimit.RatePerSecond > 0 {
		limits["rpc"] = cfg.RateLimit
		limits["ws"] = cfg.RateLimit
	}
	limiter := middleware.NewRateLimiter(limits, logger)
	limiter.SetRejectHandler(func(w http.ResponseWriter, _ *http.Request, retryAfter time.Duration) {
		w.Header().Set("Content-Type", "application/json")
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded",
			map[string]interface{}{"retryAfterMs": retryAfter.Milliseconds()})
	})
	return &Server{
		ledger:   ledger,
		cfg:      cfg,
		logger:   logger,
		auth:     middleware.NewAuthenticator(cfg.Auth, logger),
		limiter:  limiter,
		obs:      middleware.NewObservability(middleware.ObservabilityConfig{ServiceName: "bloomd", LogRequests: cfg.LogRequests}, logger),
		validate: validator.New(),
	}
}

// Handler returns the router serving JSON-RPC, the event stream, health and
// metrics endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(s.cfg.CORS))
	r.With(s.obs.Middleware("rpc"), s.limiter.Middleware("rpc"), s.auth.Middleware).Post("/", s.handle)
	r.With(s.limiter.Middleware("ws")).Get("/ws/events", s.handleEventsWS)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Serve accepts connections on the listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()
	s.logger.Info("JSON-RPC server listening", "addr", listener.Addr().String())
	return srv.Serve(listener)
}

// Start listens on addr and serves until Shutdown.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.Lock()
	srv := s.httpServer
	s.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	status int
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func invalidParams(message string, data interface{}) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: message, Data: data, status: http.StatusBadRequest}
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

type methodHandler func(r *http.Request, req *RPCRequest) (interface{}, *RPCError)

func (s *Server) methods() map[string]methodHandler {
	return map[string]methodHandler{
		"bloom_createContent":      s.handleBloomCreateContent,
		"bloom_like":               s.handleBloomLike,
		"bloom_claimAuthorReward":  s.handleBloomClaimAuthorReward,
		"bloom_claimLikerReward":   s.handleBloomClaimLikerReward,
		"bloom_follow":             s.handleBloomFollow,
		"bloom_unfollow":           s.handleBloomUnfollow,
		"bloom_getContent":         s.handleBloomGetContent,
		"bloom_contentCount":       s.handleBloomContentCount,
		"bloom_getLikeInfo":        s.handleBloomGetLikeInfo,
		"bloom_getEstimatedReward": s.handleBloomGetEstimatedReward,
		"bloom_isFollowing":        s.handleBloomIsFollowing,
		"bloom_getUser":            s.handleBloomGetUser,
		"token_info":               s.handleTokenInfo,
		"token_balanceOf":          s.handleTokenBalanceOf,
		"token_allowance":          s.handleTokenAllowance,
		"token_approve":            s.handleTokenApprove,
		"token_transfer":           s.handleTokenTransfer,
		"token_faucet":             s.handleTokenFaucet,
		"ledger_events":            s.handleLedgerEvents,
	}
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	module, method := splitMethod(req.Method)
	start := time.Now()
	result, rpcErr := handler(r, req)
	if rpcErr != nil {
		observability.ModuleMetrics().Observe(module, method, rpcErr.Code, time.Since(start))
		writeError(w, rpcErr.status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	observability.ModuleMetrics().Observe(module, method, 0, time.Since(start))
	writeResult(w, req.ID, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	head, err := s.ledger.EventHead()
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "eventHead": head})
}

// authorize requires the bearer subject to match the acting account when
// authentication is enabled.
func (s *Server) authorize(r *http.Request, caller string) *RPCError {
	if err := s.auth.Authorize(r.Context(), caller); err != nil {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: err.Error(), status: http.StatusUnauthorized}
	}
	return nil
}

func splitMethod(name string) (string, string) {
	module, method, ok := strings.Cut(name, "_")
	if !ok {
		return "unknown", name
	}
	return module, method
}
