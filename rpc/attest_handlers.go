package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"attestledger/native/attest"
	"attestledger/native/fees"
	"attestledger/native/ratelimit"
	"attestledger/native/replay"
)

func firstParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return fmt.Errorf("params required")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(value string) ([20]byte, error) {
	var out [20]byte
	cleaned := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return out, fmt.Errorf("invalid address %q", value)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("address must be %d bytes", len(out))
	}
	copy(out[:], raw)
	return out, nil
}

func parseHash(value string) ([32]byte, error) {
	var out [32]byte
	cleaned := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return out, fmt.Errorf("invalid hash %q", value)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("hash must be %d bytes", len(out))
	}
	copy(out[:], raw)
	return out, nil
}

type pairParams struct {
	Submitter string `json:"submitter"`
	Period    string `json:"period"`
}

func (p pairParams) resolve() ([20]byte, string, error) {
	submitter, err := parseAddress(p.Submitter)
	if err != nil {
		return [20]byte{}, "", err
	}
	return submitter, p.Period, nil
}

type RecordResult struct {
	Submitter  string `json:"submitter"`
	Period     string `json:"period"`
	Commitment string `json:"commitment"`
	Timestamp  uint64 `json:"timestamp"`
	Version    uint32 `json:"version"`
	FeePaid    string `json:"feePaid"`
	Status     string `json:"status"`
}

func recordResult(submitter [20]byte, period string, record *attest.Record) RecordResult {
	fee := "0"
	if record.FeePaid != nil {
		fee = record.FeePaid.String()
	}
	return RecordResult{
		Submitter:  hex.EncodeToString(submitter[:]),
		Period:     period,
		Commitment: hex.EncodeToString(record.Commitment[:]),
		Timestamp:  record.Timestamp,
		Version:    record.Version,
		FeePaid:    fee,
		Status:     record.Status.String(),
	}
}

func (s *Server) handleGet(w http.ResponseWriter, req *RPCRequest) {
	var params pairParams
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	submitter, period, err := params.resolve()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, ok, err := s.engine.Get(submitter, period)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, recordResult(submitter, period, record))
}

func (s *Server) handleVerify(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		pairParams
		Commitment string `json:"commitment"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	submitter, period, err := params.resolve()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	commitment, err := parseHash(params.Commitment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	verified, err := s.engine.Verify(submitter, period, commitment)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"verified": verified})
}

func (s *Server) handleRevocation(w http.ResponseWriter, req *RPCRequest) {
	var params pairParams
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	submitter, period, err := params.resolve()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	note, ok, err := s.engine.RevocationInfo(submitter, period)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"revoker":   hex.EncodeToString(note.Revoker[:]),
		"revokedAt": note.RevokedAt,
		"reason":    note.Reason,
	})
}

func (s *Server) handleMetadata(w http.ResponseWriter, req *RPCRequest) {
	var params pairParams
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	submitter, period, err := params.resolve()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	meta, ok, err := s.engine.Metadata(submitter, period)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"currencyCode": meta.CurrencyCode,
		"isNet":        meta.IsNet,
	})
}

func (s *Server) handleProofHash(w http.ResponseWriter, req *RPCRequest) {
	var params pairParams
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	submitter, period, err := params.resolve()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	proof, ok, err := s.engine.ProofHash(submitter, period)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, map[string]string{"proofHash": hex.EncodeToString(proof[:])})
}

func (s *Server) handleAnomaly(w http.ResponseWriter, req *RPCRequest) {
	var params pairParams
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	submitter, period, err := params.resolve()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	anomaly, ok, err := s.engine.AnomalyInfo(submitter, period)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, map[string]uint32{
		"flags":     anomaly.Flags,
		"riskScore": anomaly.RiskScore,
	})
}

func (s *Server) handleFeeQuote(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Business string `json:"business"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	business, err := parseAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	quote, err := s.engine.FeeQuote(business)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"fee": quote.String()})
}

func (s *Server) handleFeeConfig(w http.ResponseWriter, req *RPCRequest) {
	cfg, ok, err := s.engine.FeeConfig()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"token":     hex.EncodeToString(cfg.Token[:]),
		"collector": hex.EncodeToString(cfg.Collector[:]),
		"baseFee":   cfg.BaseFee.String(),
		"enabled":   cfg.Enabled,
	})
}

func (s *Server) handleBusinessCount(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Business string `json:"business"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	business, err := parseAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	count, err := s.engine.BusinessCount(business)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	tier, err := s.engine.BusinessTier(business)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"count": count, "tier": tier})
}

func (s *Server) handleGetBusiness(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Business string `json:"business"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	business, err := parseAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, ok, err := s.engine.Business(business)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"owner":        hex.EncodeToString(record.Owner[:]),
		"nameHash":     hex.EncodeToString(record.NameHash[:]),
		"jurisdiction": record.Jurisdiction,
		"tags":         record.Tags,
		"status":       record.Status.String(),
		"registeredAt": record.RegisteredAt,
	})
}

func (s *Server) handlePeekNonce(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Actor   string  `json:"actor"`
		Channel *uint32 `json:"channel"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	actor, err := parseAddress(params.Actor)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	channel := replay.ChannelBusiness
	if params.Channel != nil {
		channel = *params.Channel
	}
	nonce, err := s.engine.PeekNonce(actor, channel)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"nonce": nonce})
}

func (s *Server) handleRateLimit(w http.ResponseWriter, req *RPCRequest) {
	cfg, ok, err := s.engine.RateLimitConfig()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"maxSubmissions": cfg.MaxSubmissions,
		"windowSeconds":  cfg.WindowSeconds,
		"enabled":        cfg.Enabled,
	})
}

func (s *Server) handleWindowCount(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Submitter string `json:"submitter"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	submitter, err := parseAddress(params.Submitter)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	count, err := s.engine.SubmissionWindowCount(submitter)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint32{"count": count})
}

func (s *Server) handleIsRevoked(w http.ResponseWriter, req *RPCRequest) {
	var params pairParams
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	submitter, period, err := params.resolve()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	revoked, err := s.engine.IsRevoked(submitter, period)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"revoked": revoked})
}

func (s *Server) handleIsPaused(w http.ResponseWriter, req *RPCRequest) {
	paused, err := s.engine.IsPaused()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": paused})
}

func (s *Server) handleRoles(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Account string `json:"account"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	roles, err := s.engine.Roles(account)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint32{"roles": roles})
}

type submitParams struct {
	Submitter  string  `json:"submitter"`
	Period     string  `json:"period"`
	Commitment string  `json:"commitment"`
	Timestamp  uint64  `json:"timestamp"`
	Version    uint32  `json:"version"`
	Nonce      uint64  `json:"nonce"`
	Expiry     uint64  `json:"expiry"`
	Currency   string  `json:"currencyCode"`
	IsNet      bool    `json:"isNet"`
	ProofHash  *string `json:"proofHash"`
}

func (p submitParams) submission() (attest.Submission, error) {
	submitter, err := parseAddress(p.Submitter)
	if err != nil {
		return attest.Submission{}, err
	}
	commitment, err := parseHash(p.Commitment)
	if err != nil {
		return attest.Submission{}, err
	}
	sub := attest.Submission{
		Submitter:  submitter,
		Period:     p.Period,
		Commitment: commitment,
		Timestamp:  p.Timestamp,
		Version:    p.Version,
		Nonce:      p.Nonce,
		Expiry:     p.Expiry,
	}
	if p.Currency != "" {
		sub.Metadata = &attest.Metadata{CurrencyCode: p.Currency, IsNet: p.IsNet}
	}
	if p.ProofHash != nil {
		proof, err := parseHash(*p.ProofHash)
		if err != nil {
			return attest.Submission{}, err
		}
		sub.ProofHash = &proof
	}
	return sub, nil
}

func (s *Server) handleSubmit(w http.ResponseWriter, req *RPCRequest) {
	var params submitParams
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	sub, err := params.submission()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, err := s.engine.Submit(sub)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, recordResult(sub.Submitter, sub.Period, record))
}

func (s *Server) handleSubmitBatch(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Items []struct {
			Submitter  string `json:"submitter"`
			Period     string `json:"period"`
			Commitment string `json:"commitment"`
			Timestamp  uint64 `json:"timestamp"`
			Version    uint32 `json:"version"`
		} `json:"items"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	items := make([]attest.BatchItem, 0, len(params.Items))
	for _, item := range params.Items {
		submitter, err := parseAddress(item.Submitter)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		commitment, err := parseHash(item.Commitment)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		items = append(items, attest.BatchItem{
			Submitter:  submitter,
			Period:     item.Period,
			Commitment: commitment,
			Timestamp:  item.Timestamp,
			Version:    item.Version,
		})
	}
	records, err := s.engine.SubmitBatch(items)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	results := make([]RecordResult, 0, len(records))
	for i, record := range records {
		results = append(results, recordResult(items[i].Submitter, items[i].Period, record))
	}
	writeResult(w, req.ID, results)
}

func (s *Server) handleRevoke(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller    string `json:"caller"`
		Submitter string `json:"submitter"`
		Period    string `json:"period"`
		Reason    string `json:"reason"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	submitter, err := parseAddress(params.Submitter)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.Revoke(caller, submitter, params.Period, params.Reason); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"revoked": true})
}

func (s *Server) handleMigrate(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller        string `json:"caller"`
		Submitter     string `json:"submitter"`
		Period        string `json:"period"`
		NewCommitment string `json:"newCommitment"`
		NewVersion    uint32 `json:"newVersion"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	submitter, err := parseAddress(params.Submitter)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	commitment, err := parseHash(params.NewCommitment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, err := s.engine.Migrate(caller, submitter, params.Period, commitment, params.NewVersion)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, recordResult(submitter, params.Period, record))
}

func (s *Server) handleFlagAnomaly(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller    string `json:"caller"`
		Submitter string `json:"submitter"`
		Period    string `json:"period"`
		Flags     uint32 `json:"flags"`
		RiskScore uint32 `json:"riskScore"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	submitter, err := parseAddress(params.Submitter)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.FlagAnomaly(caller, submitter, params.Period, params.Flags, params.RiskScore); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"flagged": true})
}

func (s *Server) handlePause(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.Pause(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": true})
}

func (s *Server) handleUnpause(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.Unpause(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": false})
}

type roleParams struct {
	Caller  string `json:"caller"`
	Account string `json:"account"`
	Role    uint32 `json:"role"`
}

func (p roleParams) resolve() ([20]byte, [20]byte, error) {
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return [20]byte{}, [20]byte{}, err
	}
	account, err := parseAddress(p.Account)
	if err != nil {
		return [20]byte{}, [20]byte{}, err
	}
	return caller, account, nil
}

func (s *Server) handleGrantRole(w http.ResponseWriter, req *RPCRequest) {
	var params roleParams
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, account, err := params.resolve()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.GrantRole(caller, account, params.Role); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"granted": true})
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, req *RPCRequest) {
	var params roleParams
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, account, err := params.resolve()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.RevokeRole(caller, account, params.Role); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"granted": false})
}

func (s *Server) handleConfigureFees(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller    string `json:"caller"`
		Token     string `json:"token"`
		Collector string `json:"collector"`
		BaseFee   string `json:"baseFee"`
		Enabled   bool   `json:"enabled"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	token, err := parseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	collector, err := parseAddress(params.Collector)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	baseFee, ok := new(big.Int).SetString(strings.TrimSpace(params.BaseFee), 10)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid baseFee", nil)
		return
	}
	cfg := fees.Config{Token: token, Collector: collector, BaseFee: baseFee, Enabled: params.Enabled}
	if err := s.engine.ConfigureFees(caller, cfg); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"configured": true})
}

func (s *Server) handleConfigureRateLimit(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller         string `json:"caller"`
		MaxSubmissions uint32 `json:"maxSubmissions"`
		WindowSeconds  uint64 `json:"windowSeconds"`
		Enabled        bool   `json:"enabled"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	cfg := ratelimit.Config{
		MaxSubmissions: params.MaxSubmissions,
		WindowSeconds:  params.WindowSeconds,
		Enabled:        params.Enabled,
	}
	if err := s.engine.ConfigureRateLimit(caller, cfg); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"configured": true})
}

func (s *Server) handleRegisterBusiness(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Business     string   `json:"business"`
		NameHash     string   `json:"nameHash"`
		Jurisdiction string   `json:"jurisdiction"`
		Tags         []string `json:"tags"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	business, err := parseAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	nameHash, err := parseHash(params.NameHash)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, err := s.engine.RegisterBusiness(business, nameHash, params.Jurisdiction, params.Tags)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": record.Status.String()})
}

func (s *Server) handleApproveBusiness(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller   string `json:"caller"`
		Business string `json:"business"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	business, err := parseAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.ApproveBusiness(caller, business); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "active"})
}

func (s *Server) handleSuspendBusiness(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller   string `json:"caller"`
		Business string `json:"business"`
		Reason   string `json:"reason"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	business, err := parseAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SuspendBusiness(caller, business, params.Reason); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "suspended"})
}

func (s *Server) handleReactivateBusiness(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Caller   string `json:"caller"`
		Business string `json:"business"`
	}
	if err := firstParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	business, err := parseAddress(params.Business)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.ReactivateBusiness(caller, business); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "active"})
}
