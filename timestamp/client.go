// Package timestamp defines the external timestamping-service abstraction
// spec.md §1 carves out of scope ("we consume the 'stamp'/'verify'
// abstraction only") and a bounded-rate HTTP implementation of it. The
// wire protocol of any specific timestamping backend is deliberately not
// modelled here.
package timestamp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/forgepolicy/gatekeeper/gaterr"
)

// VerificationResultKind discriminates the outcome of verifying a stamp.
type VerificationResultKind int

const (
	// Pending means the timestamp has been submitted but not yet
	// confirmed by the external service.
	Pending VerificationResultKind = iota
	// Confirmed means the timestamp is confirmed, at BlockHeight.
	Confirmed
)

// VerificationResult is the outcome of Service.Verify.
type VerificationResult struct {
	Kind        VerificationResultKind
	BlockHeight uint64
}

// Service is the narrow capability the Merkle anchorer (C11) depends on:
// submit bytes for timestamping, and later verify a proof against the
// bytes it covers. spec.md §4.11.
type Service interface {
	// Stamp submits data (a Merkle root) for timestamping and returns the
	// opaque proof bytes to persist verbatim.
	Stamp(ctx context.Context, data []byte) ([]byte, error)
	// Verify checks proof against data, returning a format error for
	// malformed proof bytes rather than folding it into Pending.
	Verify(ctx context.Context, data []byte, proof []byte) (VerificationResult, error)
}

// ErrProofFormat marks proof bytes that are not a well-formed response from
// the configured timestamping backend.
var ErrProofFormat = gaterr.New(gaterr.KindInputFormat, "malformed timestamp proof")

// HTTPService is an HTTP-based Service implementation, rate-limited per
// spec.md §5 ("external clients are accessed via bounded connection
// pools; the evaluator must never hold an internal lock while awaiting an
// external response").
type HTTPService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPService constructs an HTTPService against baseURL, allowing at
// most ratePerSecond requests per second with a burst of burst.
func NewHTTPService(baseURL string, ratePerSecond float64, burst int) *HTTPService {
	if ratePerSecond <= 0 {
		ratePerSecond = 2
	}
	if burst <= 0 {
		burst = 4
	}
	return &HTTPService{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

type stampRequest struct {
	DataHex string `json:"data_hex"`
}

type stampResponse struct {
	ProofHex string `json:"proof_hex"`
}

// Stamp submits data's hex encoding to the timestamping service's /stamp
// endpoint and returns the decoded proof bytes.
func (s *HTTPService) Stamp(ctx context.Context, data []byte) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(stampRequest{DataHex: fmt.Sprintf("%x", data)})
	if err != nil {
		return nil, gaterr.Wrap(gaterr.KindInvariant, "encode stamp request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/stamp", bytes.NewReader(body))
	if err != nil {
		return nil, gaterr.Wrap(gaterr.KindTransient, "build stamp request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, gaterr.Wrap(gaterr.KindTransient, "call timestamping service", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gaterr.Wrap(gaterr.KindTransient, "read stamp response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, gaterr.New(gaterr.KindTransient, fmt.Sprintf("timestamping service returned %d: %s", resp.StatusCode, raw))
	}

	var parsed stampResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, gaterr.Wrap(gaterr.KindInputFormat, "decode stamp response", err)
	}
	var proof []byte
	if _, err := fmt.Sscanf(parsed.ProofHex, "%x", &proof); err != nil {
		return nil, fmt.Errorf("%w: proof_hex is not valid hex", ErrProofFormat)
	}
	return proof, nil
}

type verifyRequest struct {
	DataHex  string `json:"data_hex"`
	ProofHex string `json:"proof_hex"`
}

type verifyResponse struct {
	Status      string `json:"status"`
	BlockHeight uint64 `json:"block_height"`
}

// Verify calls the timestamping service's /verify endpoint.
func (s *HTTPService) Verify(ctx context.Context, data []byte, proof []byte) (VerificationResult, error) {
	if len(proof) == 0 {
		return VerificationResult{}, fmt.Errorf("%w: empty proof", ErrProofFormat)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return VerificationResult{}, err
	}

	body, err := json.Marshal(verifyRequest{DataHex: fmt.Sprintf("%x", data), ProofHex: fmt.Sprintf("%x", proof)})
	if err != nil {
		return VerificationResult{}, gaterr.Wrap(gaterr.KindInvariant, "encode verify request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return VerificationResult{}, gaterr.Wrap(gaterr.KindTransient, "build verify request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return VerificationResult{}, gaterr.Wrap(gaterr.KindTransient, "call timestamping service", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return VerificationResult{}, gaterr.Wrap(gaterr.KindTransient, "read verify response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return VerificationResult{}, gaterr.New(gaterr.KindTransient, fmt.Sprintf("timestamping service returned %d: %s", resp.StatusCode, raw))
	}

	var parsed verifyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return VerificationResult{}, gaterr.Wrap(gaterr.KindInputFormat, "decode verify response", err)
	}
	switch parsed.Status {
	case "pending":
		return VerificationResult{Kind: Pending}, nil
	case "confirmed":
		return VerificationResult{Kind: Confirmed, BlockHeight: parsed.BlockHeight}, nil
	default:
		return VerificationResult{}, fmt.Errorf("%w: unrecognised status %q", ErrProofFormat, parsed.Status)
	}
}
