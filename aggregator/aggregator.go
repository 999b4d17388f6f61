// Package aggregator implements the signature threshold check (C5): given a
// change request's recorded signatures, it re-verifies each against the
// signer's current public key and counts distinct valid signers who belong
// to the layer's maintainer set toward the resolved threshold.
//
// The change-request store (C2) already rejects invalid signatures at
// submission time, but a maintainer's key or active/layer eligibility can
// change after a signature was recorded; the aggregator is the point that
// re-derives "how many of these still count" against current state, rather
// than trusting the store's historical acceptance forever.
package aggregator

import (
	"github.com/forgepolicy/gatekeeper/changerequest"
	"github.com/forgepolicy/gatekeeper/crypto"
)

// MaintainerLookup resolves a signer identity to its current maintainer
// record.
type MaintainerLookup interface {
	Lookup(identity string) (changerequest.Maintainer, bool)
}

// Aggregator re-verifies recorded signatures against current maintainer
// state.
type Aggregator struct {
	maintainers MaintainerLookup
	cache       *pubKeyCache
}

// New constructs an Aggregator backed by maintainers, with an internal
// pubkey cache sized cacheBytes (0 selects a default size).
func New(maintainers MaintainerLookup, cacheBytes int) *Aggregator {
	return &Aggregator{maintainers: maintainers, cache: newPubKeyCache(cacheBytes)}
}

// Result is the outcome of tallying a change request's signatures.
type Result struct {
	// ValidSigners are the distinct signer identities whose signature
	// currently verifies and who belong to the layer's maintainer set.
	ValidSigners []string
	// ThresholdMet reports whether len(ValidSigners) >= required.
	ThresholdMet bool
}

// Tally computes the set of currently-valid signers for cr and reports
// whether it meets required.
func (a *Aggregator) Tally(cr changerequest.ChangeRequest, required int) Result {
	valid := make([]string, 0, len(cr.Signatures))
	for signer, sig := range cr.Signatures {
		if a.verify(signer, sig, cr.Layer) {
			valid = append(valid, signer)
		}
	}
	return Result{ValidSigners: valid, ThresholdMet: len(valid) >= required}
}

func (a *Aggregator) verify(signer string, sig changerequest.Signature, layer int) bool {
	publicKey, ok := a.lookupPublicKey(signer, layer)
	if !ok {
		return false
	}
	message := crypto.GovernanceSignatureMessage(signer)
	valid, err := crypto.Verify(message, sig.Signature, publicKey)
	if err != nil {
		return false
	}
	return valid
}

func (a *Aggregator) lookupPublicKey(signer string, layer int) (string, bool) {
	if cached, ok := a.cache.get(signer); ok {
		if m, ok := a.maintainers.Lookup(signer); ok && m.Active && m.Layer == layer && m.PublicKey == cached {
			return cached, true
		}
		a.cache.invalidate(signer)
	}

	m, ok := a.maintainers.Lookup(signer)
	if !ok || !m.Active || m.Layer != layer {
		return "", false
	}
	a.cache.put(signer, m.PublicKey)
	return m.PublicKey, true
}
