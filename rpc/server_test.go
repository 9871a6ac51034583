package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"

	"attestledger/native/attest"
)

type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = encoded
	return nil
}

func (m *memStore) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *memStore) KVGetList(key []byte, out interface{}) error {
	_, err := m.KVGet(key, out)
	return err
}

type openAuth struct{}

func (openAuth) Authorize([20]byte) error { return nil }

const testToken = "test-token"

func newTestServer(t *testing.T) (*httptest.Server, *attest.Engine) {
	t.Helper()
	engine := attest.NewEngine(newMemStore())
	engine.SetAuthorizer(openAuth{})
	var admin [20]byte
	admin[19] = 0xAD
	if err := engine.Initialize(admin); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	server := NewServer(engine)
	server.SetAuthToken(testToken)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, engine
}

func rpcCall(t *testing.T, ts *httptest.Server, token, method string, params interface{}) (*RPCResponse, int) {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, ts.URL, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	decoded := &RPCResponse{}
	if err := json.NewDecoder(resp.Body).Decode(decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return decoded, resp.StatusCode
}

var (
	submitterHex  = "0000000000000000000000000000000000000001"
	commitmentHex = "00000000000000000000000000000000000000000000000000000000000000cc"
)

func submitArgs(period string, nonce uint64) map[string]interface{} {
	return map[string]interface{}{
		"submitter":  submitterHex,
		"period":     period,
		"commitment": commitmentHex,
		"timestamp":  1_700_000_000,
		"version":    1,
		"nonce":      nonce,
	}
}

func TestSubmitRequiresBearerToken(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, status := rpcCall(t, ts, "", "attest_submit", submitArgs("2024-Q1", 0))
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", resp.Error)
	}

	resp, _ = rpcCall(t, ts, "wrong-token", "attest_submit", submitArgs("2024-Q1", 0))
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", resp.Error)
	}
}

func TestSubmitGetVerify(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, status := rpcCall(t, ts, testToken, "attest_submit", submitArgs("2024-Q1", 0))
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("submit failed: status=%d err=%+v", status, resp.Error)
	}

	resp, _ = rpcCall(t, ts, "", "attest_get", map[string]string{
		"submitter": submitterHex,
		"period":    "2024-Q1",
	})
	if resp.Error != nil {
		t.Fatalf("get failed: %+v", resp.Error)
	}
	record, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	if record["status"] != "active" || record["commitment"] != commitmentHex {
		t.Fatalf("unexpected record %v", record)
	}

	resp, _ = rpcCall(t, ts, "", "attest_verify", map[string]string{
		"submitter":  submitterHex,
		"period":     "2024-Q1",
		"commitment": commitmentHex,
	})
	if resp.Error != nil {
		t.Fatalf("verify failed: %+v", resp.Error)
	}
	verified := resp.Result.(map[string]interface{})
	if verified["verified"] != true {
		t.Fatalf("expected verified=true, got %v", verified)
	}
}

func TestGetAbsentRecordReturnsNull(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, status := rpcCall(t, ts, "", "attest_get", map[string]string{
		"submitter": submitterHex,
		"period":    "never",
	})
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("expected null result, got status=%d err=%+v", status, resp.Error)
	}
	if resp.Result != nil {
		t.Fatalf("expected nil result, got %v", resp.Result)
	}
}

func TestDuplicateSubmitReturnsServerError(t *testing.T) {
	ts, _ := newTestServer(t)
	if resp, _ := rpcCall(t, ts, testToken, "attest_submit", submitArgs("2024-Q1", 0)); resp.Error != nil {
		t.Fatalf("seed submit failed: %+v", resp.Error)
	}
	resp, _ := rpcCall(t, ts, testToken, "attest_submit", submitArgs("2024-Q1", 1))
	if resp.Error == nil || resp.Error.Code != codeServerError {
		t.Fatalf("expected server error for duplicate, got %+v", resp.Error)
	}
}

func TestInvalidParams(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, status := rpcCall(t, ts, "", "attest_get", map[string]string{
		"submitter": "not-hex",
		"period":    "2024-Q1",
	})
	if status != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got status=%d err=%+v", status, resp.Error)
	}

	resp, _ = rpcCall(t, ts, "", "attest_get", nil)
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params for missing params, got %+v", resp.Error)
	}
}

func TestMethodNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, status := rpcCall(t, ts, "", "attest_unknown", nil)
	if status != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got status=%d err=%+v", status, resp.Error)
	}
}

func TestNonceFlowOverRPC(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := rpcCall(t, ts, "", "attest_peekNonce", map[string]interface{}{"actor": submitterHex})
	if resp.Error != nil {
		t.Fatalf("peek nonce: %+v", resp.Error)
	}
	if nonce := resp.Result.(map[string]interface{})["nonce"]; nonce != float64(0) {
		t.Fatalf("expected nonce 0, got %v", nonce)
	}

	if resp, _ := rpcCall(t, ts, testToken, "attest_submit", submitArgs("2024-Q1", 0)); resp.Error != nil {
		t.Fatalf("submit: %+v", resp.Error)
	}

	resp, _ = rpcCall(t, ts, "", "attest_peekNonce", map[string]interface{}{"actor": submitterHex})
	if nonce := resp.Result.(map[string]interface{})["nonce"]; nonce != float64(1) {
		t.Fatalf("expected nonce 1, got %v", nonce)
	}
}

func TestBatchOverRPC(t *testing.T) {
	ts, _ := newTestServer(t)

	items := []map[string]interface{}{}
	for i := 1; i <= 2; i++ {
		items = append(items, map[string]interface{}{
			"submitter":  submitterHex,
			"period":     fmt.Sprintf("2024-Q%d", i),
			"commitment": commitmentHex,
			"timestamp":  1_700_000_000,
			"version":    1,
		})
	}
	resp, _ := rpcCall(t, ts, testToken, "attest_submitBatch", map[string]interface{}{"items": items})
	if resp.Error != nil {
		t.Fatalf("batch: %+v", resp.Error)
	}
	results, ok := resp.Result.([]interface{})
	if !ok || len(results) != 2 {
		t.Fatalf("expected 2 results, got %v", resp.Result)
	}
}
