package changerequest

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/forgepolicy/gatekeeper/crypto"
	"github.com/forgepolicy/gatekeeper/gaterr"
	"github.com/forgepolicy/gatekeeper/store"
)

// MaintainerLookup resolves a signer identity to its maintainer record. The
// change-request store depends on this narrow interface rather than naming
// a concrete registry type, so tests can substitute an in-memory fake.
type MaintainerLookup interface {
	Lookup(identity string) (Maintainer, bool)
}

// Store persists ChangeRequest and Signature records. It is the exclusive
// owner of both: no other component writes to them directly.
type Store struct {
	db         store.Database
	maintainer MaintainerLookup

	keyMu sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a Store over db, resolving signer identities through
// maintainers.
func New(db store.Database, maintainers MaintainerLookup) *Store {
	return &Store{
		db:         db,
		maintainer: maintainers,
		locks:      make(map[string]*sync.Mutex),
	}
}

func key(repo string, number int64) string {
	return fmt.Sprintf("cr/%s/%d", repo, number)
}

// lockFor returns the per-(repo, number) mutex, linearizing operations on a
// single change request without taking a lock that spans other requests.
func (s *Store) lockFor(repo string, number int64) *sync.Mutex {
	k := key(repo, number)
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	mu, ok := s.locks[k]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[k] = mu
	}
	return mu
}

func (s *Store) load(repo string, number int64) (ChangeRequest, bool, error) {
	raw, err := s.db.Get([]byte(key(repo, number)))
	if err == store.ErrNotFound {
		return ChangeRequest{}, false, nil
	}
	if err != nil {
		return ChangeRequest{}, false, gaterr.Wrap(gaterr.KindTransient, "load change request", err)
	}
	var cr ChangeRequest
	if err := json.Unmarshal(raw, &cr); err != nil {
		return ChangeRequest{}, false, gaterr.Wrap(gaterr.KindInvariant, "decode stored change request", err)
	}
	return cr, true, nil
}

func (s *Store) save(cr ChangeRequest) error {
	raw, err := json.Marshal(cr)
	if err != nil {
		return gaterr.Wrap(gaterr.KindInvariant, "encode change request", err)
	}
	if err := s.db.Put([]byte(key(cr.Repository, cr.Number)), raw); err != nil {
		return gaterr.Wrap(gaterr.KindTransient, "persist change request", err)
	}
	return nil
}

// Upsert creates the change request on first observation or updates its head
// commit and layer on a later push event. It is idempotent: calling it again
// with identical inputs leaves the stored record unchanged.
func (s *Store) Upsert(repo string, number int64, headCommit string, layer int, openedAt time.Time) (ChangeRequest, error) {
	mu := s.lockFor(repo, number)
	mu.Lock()
	defer mu.Unlock()

	existing, found, err := s.load(repo, number)
	if err != nil {
		return ChangeRequest{}, err
	}
	if !found {
		cr := ChangeRequest{
			Repository:       repo,
			Number:           number,
			HeadCommit:       headCommit,
			OpenedAt:         openedAt,
			Layer:            layer,
			GovernanceStatus: StatusPending,
			Signatures:       map[string]Signature{},
		}
		if err := s.save(cr); err != nil {
			return ChangeRequest{}, err
		}
		return cr.clone(), nil
	}

	if existing.HeadCommit == headCommit && existing.Layer == layer {
		return existing.clone(), nil
	}
	existing.HeadCommit = headCommit
	existing.Layer = layer
	if err := s.save(existing); err != nil {
		return ChangeRequest{}, err
	}
	return existing.clone(), nil
}

// RecordSignature appends a verified signature to the change request. It
// appends if and only if the signer is a known, active maintainer eligible
// for the request's layer, the signature verifies against the maintainer's
// public key, and the signer has no prior verified signature on this
// request. Re-submitting the identical signature by the same signer is a
// no-op, never an error.
func (s *Store) RecordSignature(repo string, number int64, signer string, signatureHex string, now time.Time) (ChangeRequest, error) {
	mu := s.lockFor(repo, number)
	mu.Lock()
	defer mu.Unlock()

	cr, found, err := s.load(repo, number)
	if err != nil {
		return ChangeRequest{}, err
	}
	if !found {
		return ChangeRequest{}, gaterr.New(gaterr.KindAuthorization, "change request not known to the store")
	}

	maintainer, ok := s.maintainer.Lookup(signer)
	if !ok || !maintainer.Active {
		return ChangeRequest{}, gaterr.New(gaterr.KindAuthorization, "signer is not a known, active maintainer")
	}
	if maintainer.Layer != cr.Layer {
		return ChangeRequest{}, gaterr.New(gaterr.KindAuthorization, "signer is not eligible for this repository's layer")
	}

	if existing, ok := cr.Signatures[signer]; ok {
		if existing.Signature == signatureHex {
			return cr.clone(), nil
		}
		return ChangeRequest{}, gaterr.New(gaterr.KindAuthorization, "signer already has a verified signature on this request")
	}

	message := crypto.GovernanceSignatureMessage(signer)
	valid, err := crypto.Verify(message, signatureHex, maintainer.PublicKey)
	if err != nil {
		return ChangeRequest{}, gaterr.Wrap(gaterr.KindInputFormat, "malformed signature or public key", err)
	}
	if !valid {
		return ChangeRequest{}, gaterr.New(gaterr.KindAuthorization, "signature does not verify against the signer's public key")
	}

	cr.Signatures[signer] = Signature{Signer: signer, Signature: signatureHex, Timestamp: now}
	if err := s.save(cr); err != nil {
		return ChangeRequest{}, err
	}
	return cr.clone(), nil
}

// SetTier applies a manual, authoritative tier override. The store only
// records that it took effect and that auto-classification must no longer
// update Tier; callers are responsible for auditing the override itself
// (see gatekeeper.Service.OverrideTier, which calls this and then appends
// the authoritative audit entry through evaluator.ActivateTierOverride).
func (s *Store) SetTier(repo string, number int64, tier int) (ChangeRequest, error) {
	mu := s.lockFor(repo, number)
	mu.Lock()
	defer mu.Unlock()

	cr, found, err := s.load(repo, number)
	if err != nil {
		return ChangeRequest{}, err
	}
	if !found {
		return ChangeRequest{}, gaterr.New(gaterr.KindAuthorization, "change request not known to the store")
	}
	cr.Tier = tier
	cr.TierOverridden = true
	cr.TierLowConfidence = false
	if err := s.save(cr); err != nil {
		return ChangeRequest{}, err
	}
	return cr.clone(), nil
}

// SetClassifiedTier applies an auto-classified tier. It is a no-op if the
// request already carries a manual override.
func (s *Store) SetClassifiedTier(repo string, number int64, tier int, lowConfidence bool) (ChangeRequest, error) {
	mu := s.lockFor(repo, number)
	mu.Lock()
	defer mu.Unlock()

	cr, found, err := s.load(repo, number)
	if err != nil {
		return ChangeRequest{}, err
	}
	if !found {
		return ChangeRequest{}, gaterr.New(gaterr.KindAuthorization, "change request not known to the store")
	}
	if cr.TierOverridden {
		return cr.clone(), nil
	}
	cr.Tier = tier
	cr.TierLowConfidence = lowConfidence
	if err := s.save(cr); err != nil {
		return ChangeRequest{}, err
	}
	return cr.clone(), nil
}

// SetEmergencyMode flips the emergency-mode flag. Entering emergency mode is
// itself a governance event; the caller is responsible for auditing it with
// the activating identity and rationale.
func (s *Store) SetEmergencyMode(repo string, number int64, emergency bool) (ChangeRequest, error) {
	mu := s.lockFor(repo, number)
	mu.Lock()
	defer mu.Unlock()

	cr, found, err := s.load(repo, number)
	if err != nil {
		return ChangeRequest{}, err
	}
	if !found {
		return ChangeRequest{}, gaterr.New(gaterr.KindAuthorization, "change request not known to the store")
	}
	cr.EmergencyMode = emergency
	if err := s.save(cr); err != nil {
		return ChangeRequest{}, err
	}
	return cr.clone(), nil
}

// SetGovernanceStatus persists the evaluator's latest verdict.
func (s *Store) SetGovernanceStatus(repo string, number int64, status GovernanceStatus) (ChangeRequest, error) {
	mu := s.lockFor(repo, number)
	mu.Lock()
	defer mu.Unlock()

	cr, found, err := s.load(repo, number)
	if err != nil {
		return ChangeRequest{}, err
	}
	if !found {
		return ChangeRequest{}, gaterr.New(gaterr.KindAuthorization, "change request not known to the store")
	}
	cr.GovernanceStatus = status
	if err := s.save(cr); err != nil {
		return ChangeRequest{}, err
	}
	return cr.clone(), nil
}

// Load returns the request with its signatures.
func (s *Store) Load(repo string, number int64) (ChangeRequest, error) {
	mu := s.lockFor(repo, number)
	mu.Lock()
	defer mu.Unlock()

	cr, found, err := s.load(repo, number)
	if err != nil {
		return ChangeRequest{}, err
	}
	if !found {
		return ChangeRequest{}, gaterr.New(gaterr.KindAuthorization, "change request not known to the store")
	}
	return cr.clone(), nil
}
