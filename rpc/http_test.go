package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"bloomsocial/core"
	"bloomsocial/gateway/middleware"
	"bloomsocial/storage"
)

const testSecret = "rpc-test-secret"

var (
	custodyAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	feeAddr     = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	aliceAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bobAddr     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type testEnv struct {
	ledger *core.Ledger
	rpc    *Server
	server *httptest.Server
	auth   *middleware.Authenticator
	now    atomic.Int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ledger, err := core.NewLedger(storage.NewMemDB(), core.Options{
		Custody:              custodyAddr,
		ProtocolFeeRecipient: feeAddr,
		FaucetAmount:         big.NewInt(1_000),
		FaucetCooldown:       time.Hour,
	})
	require.NoError(t, err)
	env := &testEnv{ledger: ledger}
	env.now.Store(1_700_000_000)
	ledger.SetNowFunc(func() int64 { return env.now.Load() })

	authCfg := middleware.AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "bloomd", TokenTTL: time.Hour}
	env.rpc = NewServer(ledger, ServerConfig{Auth: authCfg}, nil)
	env.server = httptest.NewServer(env.rpc.Handler())
	env.auth = middleware.NewAuthenticator(authCfg, nil)
	t.Cleanup(func() {
		env.server.Close()
		ledger.Close()
	})
	return env
}

func (env *testEnv) token(t *testing.T, addr common.Address) string {
	t.Helper()
	tok, err := env.auth.Issue(addr.Hex())
	require.NoError(t, err)
	return tok
}

func (env *testEnv) call(t *testing.T, bearer, method string, params interface{}) (int, RPCResponse) {
	t.Helper()
	payload := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var out RPCResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

func (env *testEnv) mustCall(t *testing.T, bearer, method string, params interface{}) map[string]interface{} {
	t.Helper()
	status, resp := env.call(t, bearer, method, params)
	require.Nil(t, resp.Error, "%s failed: %+v", method, resp.Error)
	require.Equal(t, http.StatusOK, status)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok, "unexpected result %T", resp.Result)
	return result
}

func requireCode(t *testing.T, resp RPCResponse, code int) {
	t.Helper()
	require.NotNil(t, resp.Error, "expected error code %d", code)
	require.Equal(t, code, resp.Error.Code, "message: %s data: %v", resp.Error.Message, resp.Error.Data)
}

func TestContentLifecycleOverRPC(t *testing.T) {
	env := newTestEnv(t)
	alice := env.token(t, aliceAddr)
	bob := env.token(t, bobAddr)

	created := env.mustCall(t, alice, "bloom_createContent", map[string]interface{}{
		"caller":          aliceAddr.Hex(),
		"likeAmount":      "100",
		"durationSeconds": 3600,
		"contentUri":      "ipfs://post",
	})
	require.EqualValues(t, 0, created["contentId"])

	env.mustCall(t, bob, "token_faucet", map[string]interface{}{"caller": bobAddr.Hex()})
	env.mustCall(t, bob, "token_approve", map[string]interface{}{
		"caller":  bobAddr.Hex(),
		"spender": custodyAddr.Hex(),
		"amount":  "100",
	})
	liked := env.mustCall(t, bob, "bloom_like", map[string]interface{}{"caller": bobAddr.Hex(), "contentId": 0})
	require.Equal(t, "100", liked["amount"])

	_, resp := env.call(t, bob, "bloom_like", map[string]interface{}{"caller": bobAddr.Hex(), "contentId": 0})
	requireCode(t, resp, codeAlreadyLiked)

	content := env.mustCall(t, "", "bloom_getContent", map[string]interface{}{"contentId": 0})
	require.Equal(t, "70", content["authorPool"])
	require.Equal(t, "25", content["likerRewardPool"])
	require.Equal(t, "5", content["protocolFees"])
	require.EqualValues(t, 1, content["likeCount"])
	require.Equal(t, false, content["expired"])

	estimate := env.mustCall(t, "", "bloom_getEstimatedReward", map[string]interface{}{"contentId": 0, "liker": bobAddr.Hex()})
	require.Equal(t, "25", estimate["amount"])

	_, resp = env.call(t, alice, "bloom_claimAuthorReward", map[string]interface{}{"caller": aliceAddr.Hex(), "contentId": 0})
	requireCode(t, resp, codeContentNotExpired)

	env.now.Add(3600)
	claimed := env.mustCall(t, alice, "bloom_claimAuthorReward", map[string]interface{}{"caller": aliceAddr.Hex(), "contentId": 0})
	require.Equal(t, "70", claimed["amount"])
	_, resp = env.call(t, alice, "bloom_claimAuthorReward", map[string]interface{}{"caller": aliceAddr.Hex(), "contentId": 0})
	requireCode(t, resp, codeAlreadyClaimed)

	_, resp = env.call(t, bob, "bloom_claimAuthorReward", map[string]interface{}{"caller": bobAddr.Hex(), "contentId": 0})
	requireCode(t, resp, codeNotAuthorized)

	likerClaim := env.mustCall(t, bob, "bloom_claimLikerReward", map[string]interface{}{"caller": bobAddr.Hex(), "contentId": 0})
	require.Equal(t, "25", likerClaim["amount"])

	info := env.mustCall(t, "", "bloom_getLikeInfo", map[string]interface{}{"contentId": 0, "liker": bobAddr.Hex()})
	require.Equal(t, true, info["claimed"])
	require.EqualValues(t, 1, info["likeIndex"])

	balance := env.mustCall(t, "", "token_balanceOf", map[string]interface{}{"address": aliceAddr.Hex()})
	require.Equal(t, "70", balance["balance"])
	fees := env.mustCall(t, "", "token_balanceOf", map[string]interface{}{"address": feeAddr.Hex()})
	require.Equal(t, "5", fees["balance"])

	user := env.mustCall(t, "", "bloom_getUser", map[string]interface{}{"address": bobAddr.Hex()})
	require.Equal(t, "25", user["totalEarned"])
	require.EqualValues(t, 1, user["totalLiked"])
}

func TestMutationsRequireMatchingSubject(t *testing.T) {
	env := newTestEnv(t)
	params := map[string]interface{}{"caller": aliceAddr.Hex(), "target": bobAddr.Hex()}

	status, resp := env.call(t, "", "bloom_follow", params)
	require.Equal(t, http.StatusUnauthorized, status)
	requireCode(t, resp, codeUnauthorized)

	status, resp = env.call(t, env.token(t, bobAddr), "bloom_follow", params)
	require.Equal(t, http.StatusUnauthorized, status)
	requireCode(t, resp, codeUnauthorized)

	env.mustCall(t, env.token(t, aliceAddr), "bloom_follow", params)
	following := env.mustCall(t, "", "bloom_isFollowing", map[string]interface{}{"follower": aliceAddr.Hex(), "followee": bobAddr.Hex()})
	require.Equal(t, true, following["following"])

	_, resp = env.call(t, env.token(t, aliceAddr), "bloom_follow", params)
	requireCode(t, resp, codeAlreadyFollowing)

	self := map[string]interface{}{"caller": aliceAddr.Hex(), "target": aliceAddr.Hex()}
	_, resp = env.call(t, env.token(t, aliceAddr), "bloom_follow", self)
	requireCode(t, resp, codeCannotFollowSelf)

	env.mustCall(t, env.token(t, aliceAddr), "bloom_unfollow", params)
	// A second unfollow is a silent no-op.
	result := env.mustCall(t, env.token(t, aliceAddr), "bloom_unfollow", params)
	require.Empty(t, result["events"])
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.call(t, "", "bloom_getContent", map[string]interface{}{"contentId": 42})
	require.Equal(t, http.StatusNotFound, status)
	requireCode(t, resp, codeContentNotFound)

	_, resp = env.call(t, "", "bloom_getContent", map[string]interface{}{})
	requireCode(t, resp, codeInvalidParams)

	_, resp = env.call(t, "", "token_balanceOf", map[string]interface{}{"address": "not-an-address"})
	requireCode(t, resp, codeInvalidParams)

	_, resp = env.call(t, "", "token_balanceOf", map[string]interface{}{"address": aliceAddr.Hex(), "extra": true})
	requireCode(t, resp, codeInvalidParams)

	status, resp = env.call(t, "", "bloom_unknown", nil)
	require.Equal(t, http.StatusNotFound, status)
	requireCode(t, resp, codeMethodNotFound)

	alice := env.token(t, aliceAddr)
	_, resp = env.call(t, alice, "bloom_createContent", map[string]interface{}{
		"caller":          aliceAddr.Hex(),
		"likeAmount":      "0",
		"durationSeconds": 60,
		"contentUri":      "ipfs://zero",
	})
	requireCode(t, resp, codeInvalidLikeAmount)

	_, resp = env.call(t, alice, "bloom_createContent", map[string]interface{}{
		"caller":          aliceAddr.Hex(),
		"likeAmount":      "10",
		"durationSeconds": 0,
		"contentUri":      "ipfs://zero",
	})
	requireCode(t, resp, codeInvalidDuration)

	_, resp = env.call(t, alice, "token_transfer", map[string]interface{}{
		"caller": aliceAddr.Hex(),
		"to":     bobAddr.Hex(),
		"amount": "1",
	})
	requireCode(t, resp, codeInsufficientBalance)

	env.mustCall(t, alice, "token_faucet", map[string]interface{}{"caller": aliceAddr.Hex()})
	_, resp = env.call(t, alice, "token_faucet", map[string]interface{}{"caller": aliceAddr.Hex()})
	requireCode(t, resp, codeFaucetCooldown)
}

func TestLedgerEventsPaging(t *testing.T) {
	env := newTestEnv(t)
	alice := env.token(t, aliceAddr)
	env.mustCall(t, alice, "token_faucet", map[string]interface{}{"caller": aliceAddr.Hex()})
	env.mustCall(t, alice, "token_transfer", map[string]interface{}{"caller": aliceAddr.Hex(), "to": bobAddr.Hex(), "amount": "10"})

	all := env.mustCall(t, "", "ledger_events", nil)
	records := all["records"].([]interface{})
	require.Len(t, records, 2)
	require.EqualValues(t, 2, all["head"])
	first := records[0].(map[string]interface{})
	require.Equal(t, "token.transfer", first["type"])
	require.True(t, strings.HasPrefix(first["digest"].(string), "0x"))

	page := env.mustCall(t, "", "ledger_events", map[string]interface{}{"cursor": 1, "limit": 10})
	require.Len(t, page["records"], 1)
	require.EqualValues(t, 2, page["next"])
}

func TestRequestValidation(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.server.Client().Post(env.server.URL+"/", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	var resp RPCResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	requireCode(t, resp, codeParseError)

	oversized := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"token_info","params":["%s"]}`, strings.Repeat("a", maxRequestBytes))
	rec := httptest.NewRecorder()
	env.rpc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(oversized)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	res, err = env.server.Client().Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestServerShutdown(t *testing.T) {
	srv := NewServer(nil, ServerConfig{}, nil)
	require.NoError(t, srv.Shutdown(context.Background()))
}

func TestRateLimitedCallsGetJSONRPCError(t *testing.T) {
	ledger, err := core.NewLedger(storage.NewMemDB(), core.Options{Custody: custodyAddr, ProtocolFeeRecipient: feeAddr})
	require.NoError(t, err)
	defer ledger.Close()
	srv := NewServer(ledger, ServerConfig{RateLimit: middleware.RateLimit{RatePerSecond: 1, Burst: 1}}, nil)
	handler := srv.Handler()

	send := func() *httptest.ResponseRecorder {
		body := `{"jsonrpc":"2.0","id":1,"method":"token_info"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.RemoteAddr = "192.0.2.10:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}
	require.Equal(t, http.StatusOK, send().Code)

	rec := send()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
	var resp RPCResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	requireCode(t, resp, codeRateLimited)
}

func TestNonPositiveLikeAmountMapsToLedgerCode(t *testing.T) {
	env := newTestEnv(t)
	alice := env.token(t, aliceAddr)
	for _, amount := range []string{"-5", "0"} {
		_, resp := env.call(t, alice, "bloom_createContent", map[string]interface{}{
			"caller":          aliceAddr.Hex(),
			"likeAmount":      amount,
			"durationSeconds": 60,
			"contentUri":      "ipfs://post",
		})
		requireCode(t, resp, codeInvalidLikeAmount)
	}
	_, resp := env.call(t, alice, "bloom_createContent", map[string]interface{}{
		"caller":          aliceAddr.Hex(),
		"likeAmount":      "1.5",
		"durationSeconds": 60,
	})
	requireCode(t, resp, codeInvalidParams)
}

func TestContentURIIsOpaqueOverRPC(t *testing.T) {
	env := newTestEnv(t)
	alice := env.token(t, aliceAddr)
	for i, uri := range []string{"", " spaced uri \t"} {
		created := env.mustCall(t, alice, "bloom_createContent", map[string]interface{}{
			"caller":          aliceAddr.Hex(),
			"likeAmount":      "10",
			"durationSeconds": 60,
			"contentUri":      uri,
		})
		require.EqualValues(t, i, created["contentId"])
		content := env.mustCall(t, "", "bloom_getContent", map[string]interface{}{"contentId": i})
		require.Equal(t, uri, content["contentUri"])
	}
}

func TestCustodyCallerRejected(t *testing.T) {
	env := newTestEnv(t)
	custody := env.token(t, custodyAddr)
	_, resp := env.call(t, custody, "token_transfer", map[string]interface{}{
		"caller": custodyAddr.Hex(),
		"to":     bobAddr.Hex(),
		"amount": "1",
	})
	requireCode(t, resp, codeReservedAccount)

	alice := env.token(t, aliceAddr)
	env.mustCall(t, alice, "token_faucet", map[string]interface{}{"caller": aliceAddr.Hex()})
	_, resp = env.call(t, alice, "token_transfer", map[string]interface{}{
		"caller": aliceAddr.Hex(),
		"to":     custodyAddr.Hex(),
		"amount": "1",
	})
	requireCode(t, resp, codeReservedAccount)
}
