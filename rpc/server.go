package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attestledger/native/access"
	"attestledger/native/attest"
	"attestledger/native/fees"
	"attestledger/native/ratelimit"
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
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the attestation engine over JSON-RPC. Reads are open;
// mutations require the bearer token from ATTEST_RPC_TOKEN.
type Server struct {
	engine    *attest.Engine
	authToken string
}

func NewServer(engine *attest.Engine) *Server {
	return &Server{
		engine:    engine,
		authToken: strings.TrimSpace(os.Getenv("ATTEST_RPC_TOKEN")),
	}
}

// SetAuthToken overrides the bearer token read from the environment.
func (s *Server) SetAuthToken(token string) {
	s.authToken = strings.TrimSpace(token)
}

// Handler returns the HTTP handler serving the RPC endpoint at / and the
// Prometheus scrape endpoint at /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Start(addr string) error {
	fmt.Printf("Starting JSON-RPC server on %s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
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

// writeEngineError maps ledger errors onto JSON-RPC error codes so clients
// can distinguish a rejected call from a malformed one.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, attest.ErrInvalidArgument),
		errors.Is(err, fees.ErrInvalidConfig),
		errors.Is(err, ratelimit.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	case errors.Is(err, access.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeUnauthorized, err.Error(), nil)
	default:
		writeError(w, http.StatusOK, id, codeServerError, err.Error(), nil)
	}
}

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

	switch req.Method {
	case "attest_get":
		s.handleGet(w, req)
	case "attest_verify":
		s.handleVerify(w, req)
	case "attest_revocation":
		s.handleRevocation(w, req)
	case "attest_metadata":
		s.handleMetadata(w, req)
	case "attest_proofHash":
		s.handleProofHash(w, req)
	case "attest_anomaly":
		s.handleAnomaly(w, req)
	case "attest_feeQuote":
		s.handleFeeQuote(w, req)
	case "attest_feeConfig":
		s.handleFeeConfig(w, req)
	case "attest_businessCount":
		s.handleBusinessCount(w, req)
	case "attest_getBusiness":
		s.handleGetBusiness(w, req)
	case "attest_peekNonce":
		s.handlePeekNonce(w, req)
	case "attest_rateLimitConfig":
		s.handleRateLimit(w, req)
	case "attest_windowCount":
		s.handleWindowCount(w, req)
	case "attest_isRevoked":
		s.handleIsRevoked(w, req)
	case "attest_isPaused":
		s.handleIsPaused(w, req)
	case "attest_roles":
		s.handleRoles(w, req)
	case "attest_submit":
		s.withAuth(w, r, req, s.handleSubmit)
	case "attest_submitBatch":
		s.withAuth(w, r, req, s.handleSubmitBatch)
	case "attest_revoke":
		s.withAuth(w, r, req, s.handleRevoke)
	case "attest_migrate":
		s.withAuth(w, r, req, s.handleMigrate)
	case "attest_flagAnomaly":
		s.withAuth(w, r, req, s.handleFlagAnomaly)
	case "attest_pause":
		s.withAuth(w, r, req, s.handlePause)
	case "attest_unpause":
		s.withAuth(w, r, req, s.handleUnpause)
	case "attest_grantRole":
		s.withAuth(w, r, req, s.handleGrantRole)
	case "attest_revokeRole":
		s.withAuth(w, r, req, s.handleRevokeRole)
	case "attest_configureFees":
		s.withAuth(w, r, req, s.handleConfigureFees)
	case "attest_configureRateLimit":
		s.withAuth(w, r, req, s.handleConfigureRateLimit)
	case "attest_registerBusiness":
		s.withAuth(w, r, req, s.handleRegisterBusiness)
	case "attest_approveBusiness":
		s.withAuth(w, r, req, s.handleApproveBusiness)
	case "attest_suspendBusiness":
		s.withAuth(w, r, req, s.handleSuspendBusiness)
	case "attest_reactivateBusiness":
		s.withAuth(w, r, req, s.handleReactivateBusiness)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %s not found", req.Method), nil)
	}
}

func (s *Server) withAuth(w http.ResponseWriter, r *http.Request, req *RPCRequest, next func(http.ResponseWriter, *RPCRequest)) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	next(w, req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}
