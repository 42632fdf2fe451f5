package httpapi

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"

	"github.com/goex/swaprelayer/internal/bus"
	"github.com/goex/swaprelayer/internal/domain"
	"github.com/goex/swaprelayer/internal/gateway/memgateway"
	"github.com/goex/swaprelayer/internal/lifecycle"
	"github.com/goex/swaprelayer/internal/lock"
	"github.com/goex/swaprelayer/internal/oracle"
	"github.com/goex/swaprelayer/internal/resolverauth"
	"github.com/goex/swaprelayer/internal/signing"
	"github.com/goex/swaprelayer/internal/store/memstore"
	"github.com/goex/swaprelayer/libs/resolverkey"
)

const (
	testSrcChain uint64 = 84532
	testDstChain uint64 = 421614
	testSrcToken        = "0x000000000000000000000000000000000000000a"
	testDstToken        = "0x000000000000000000000000000000000000000b"
	testFactory         = "0x00000000000000000000000000000000000f00"
)

const testResolverAddr = "0x0000000000000000000000000000000000000d"

func newTestRouter(t *testing.T) (router *gin.Engine, gw *memgateway.Gateway, makerKey *ecdsa.PrivateKey, resolverKey string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	makerKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	st := memstore.New()
	gw = memgateway.New()
	memBus := bus.NewMemBus()
	priceSet := oracle.NewStaticCache(nil)
	priceSet.Set(testSrcChain, testSrcToken, testDstChain, testDstToken, big.NewInt(1_000_000))

	verifier := signing.NewVerifier(func(srcChain uint64) (common.Address, error) {
		return common.HexToAddress(testFactory), nil
	})
	escrowFactory := func(srcChain uint64) (string, error) { return testFactory, nil }

	ctrl := lifecycle.NewController(st, gw, memBus, verifier, priceSet, lock.NewKeyedLocker(), escrowFactory, lifecycle.Config{}, nil)

	registry := resolverauth.NewMemRegistry()
	fullKey, prefix, hash, err := resolverkey.Generate("test")
	if err != nil {
		t.Fatalf("resolverkey.Generate: %v", err)
	}
	registry.Add(prefix, resolverkey.Record{Resolver: testResolverAddr, KeyHash: hash})

	router = gin.New()
	h := New(ctrl, nil)
	h.Register(router, registry)

	return router, gw, makerKey, fullKey
}

func signedIntent(t *testing.T, makerKey *ecdsa.PrivateKey, preimage [32]byte) (domain.Intent, []byte) {
	t.Helper()
	hash := crypto.Keccak256Hash(preimage[:])
	var secretHash [32]byte
	copy(secretHash[:], hash[:])

	intent := domain.Intent{
		Maker:              crypto.PubkeyToAddress(makerKey.PublicKey).Hex(),
		SrcChain:           testSrcChain,
		SrcToken:           testSrcToken,
		SrcAmount:          big.NewInt(1_000_000),
		DstChain:           testDstChain,
		DstToken:           testDstToken,
		SecretHash:         secretHash,
		MinAcceptablePrice: big.NewInt(900_000),
		OrderDuration:      300 * time.Second,
		Nonce:              1,
		Deadline:           time.Now().Add(time.Hour),
	}

	verifier := signing.NewVerifier(func(srcChain uint64) (common.Address, error) {
		return common.HexToAddress(testFactory), nil
	})
	structHash, err := verifier.StructuralHash(intent)
	if err != nil {
		t.Fatalf("StructuralHash: %v", err)
	}
	sig, err := crypto.Sign(structHash[:], makerKey)
	if err != nil {
		t.Fatalf("crypto.Sign: %v", err)
	}
	return intent, sig
}

func doRequest(router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createSwapBody(intent domain.Intent, sig []byte, preimage [32]byte) createSwapRequest {
	return createSwapRequest{
		Intent: intentDTO{
			Maker:              intent.Maker,
			SrcChain:           intent.SrcChain,
			SrcToken:           intent.SrcToken,
			SrcAmount:          intent.SrcAmount.String(),
			DstChain:           intent.DstChain,
			DstToken:           intent.DstToken,
			SecretHash:         hex.EncodeToString(intent.SecretHash[:]),
			MinAcceptablePrice: intent.MinAcceptablePrice.String(),
			OrderDurationSecs:  300,
			Nonce:              1,
			DeadlineUnix:       intent.Deadline.Unix(),
		},
		Signature: hex.EncodeToString(sig),
		Preimage:  hex.EncodeToString(preimage[:]),
	}
}

func TestCreateSwapHappyPath(t *testing.T) {
	router, gw, makerKey, _ := newTestRouter(t)
	preimage := [32]byte{1}
	intent, sig := signedIntent(t, makerKey, preimage)

	gw.SetAllowance(testSrcChain, testSrcToken, intent.Maker, testFactory, big.NewInt(1_000_000))

	rec := doRequest(router, http.MethodPost, "/orders", createSwapBody(intent, sig, preimage), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp createSwapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.OrderID == "" {
		t.Fatal("expected non-empty order_id")
	}

	statusRec := doRequest(router, http.MethodGet, "/orders/"+resp.OrderID, nil, nil)
	if statusRec.Code != http.StatusOK {
		t.Fatalf("order status = %d, body = %s", statusRec.Code, statusRec.Body.String())
	}
}

func TestCreateSwapRejectsBadSignature(t *testing.T) {
	router, gw, makerKey, _ := newTestRouter(t)
	preimage := [32]byte{2}
	intent, _ := signedIntent(t, makerKey, preimage)
	otherKey, _ := crypto.GenerateKey()
	_, wrongSig := signedIntent(t, otherKey, preimage)

	gw.SetAllowance(testSrcChain, testSrcToken, intent.Maker, testFactory, big.NewInt(1_000_000))

	rec := doRequest(router, http.MethodPost, "/orders", createSwapBody(intent, wrongSig, preimage), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCreateSwapRejectsInsufficientAllowance(t *testing.T) {
	router, gw, makerKey, _ := newTestRouter(t)
	preimage := [32]byte{3}
	intent, sig := signedIntent(t, makerKey, preimage)

	gw.SetAllowance(testSrcChain, testSrcToken, intent.Maker, testFactory, big.NewInt(500_000))

	rec := doRequest(router, http.MethodPost, "/orders", createSwapBody(intent, sig, preimage), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCommitResolverRequiresApiKey(t *testing.T) {
	router, _, _, _ := newTestRouter(t)
	rec := doRequest(router, http.MethodPost, "/orders/"+hex.EncodeToString(make([]byte, 32))+"/commit", commitResolverRequest{AcceptedPrice: "1"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCommitResolverHappyPath(t *testing.T) {
	router, gw, makerKey, resolverKey := newTestRouter(t)
	preimage := [32]byte{3}
	intent, sig := signedIntent(t, makerKey, preimage)
	gw.SetAllowance(testSrcChain, testSrcToken, intent.Maker, testFactory, big.NewInt(1_000_000))

	createRec := doRequest(router, http.MethodPost, "/orders", createSwapBody(intent, sig, preimage), nil)
	if createRec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body = %s", createRec.Code, createRec.Body.String())
	}
	var created createSwapResponse
	if err := json.Unmarshal(createRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	headers := map[string]string{"Authorization": "ApiKey " + resolverKey}
	commitRec := doRequest(router, http.MethodPost, "/orders/"+created.OrderID+"/commit", commitResolverRequest{AcceptedPrice: created.MarketPrice}, headers)
	if commitRec.Code != http.StatusOK {
		t.Fatalf("commit status = %d, body = %s", commitRec.Code, commitRec.Body.String())
	}

	var commitResp commitResolverResponse
	if err := json.Unmarshal(commitRec.Body.Bytes(), &commitResp); err != nil {
		t.Fatalf("unmarshal commit response: %v", err)
	}
	if !commitResp.Success {
		t.Fatal("expected success=true")
	}

	secondRec := doRequest(router, http.MethodPost, "/orders/"+created.OrderID+"/commit", commitResolverRequest{AcceptedPrice: created.MarketPrice}, headers)
	if secondRec.Code != http.StatusConflict {
		t.Fatalf("second commit status = %d, want 409, body = %s", secondRec.Code, secondRec.Body.String())
	}
}
