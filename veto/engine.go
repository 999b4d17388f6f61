package veto

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgepolicy/gatekeeper/crypto"
	"github.com/forgepolicy/gatekeeper/gaterr"
	"github.com/forgepolicy/gatekeeper/store"
)

// Node is the narrow view of an economic node the veto engine needs. It is
// a local struct rather than a dependency on econnode.EconomicNode, so
// the veto engine never names the registry's own type.
type Node struct {
	ID         uint64
	NodeType   string
	EntityName string
	PublicKey  string
	Weight     float64
	Active     bool
}

// NodeLookup resolves an economic node by id for signal admission.
type NodeLookup interface {
	Get(nodeID uint64) (Node, bool)
}

// Engine admits veto signals and tallies them per change request.
type Engine struct {
	db    store.Database
	nodes NodeLookup
	mu    sync.Mutex
}

// New constructs an Engine backed by db, resolving nodes through lookup.
func New(db store.Database, lookup NodeLookup) *Engine {
	return &Engine{db: db, nodes: lookup}
}

func signalKey(repo string, number int64, nodeID uint64) []byte {
	return []byte(fmt.Sprintf("veto/%s/%d/%d", repo, number, nodeID))
}

func indexPrefix(repo string, number int64) []byte {
	return []byte(fmt.Sprintf("veto/%s/%d/", repo, number))
}

// Admit accepts a signed veto signal. It is admitted only when the
// contributor is an Active economic node, its signature over the canonical
// veto message verifies against its registered public key, and it has no
// prior signal for this change request.
func (e *Engine) Admit(repo string, number int64, nodeID uint64, signalType SignalType, signatureHex, rationale string, now time.Time) (Signal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	node, ok := e.nodes.Get(nodeID)
	if !ok || !node.Active {
		return Signal{}, gaterr.New(gaterr.KindAuthorization, "economic node is not active")
	}

	has, err := e.db.Has(signalKey(repo, number, nodeID))
	if err != nil {
		return Signal{}, gaterr.Wrap(gaterr.KindTransient, "check prior veto signal", err)
	}
	if has {
		return Signal{}, gaterr.New(gaterr.KindAuthorization, "node already submitted a signal for this change request")
	}

	message := crypto.VetoSignalMessage(number, node.EntityName)
	valid, err := crypto.Verify(message, signatureHex, node.PublicKey)
	if err != nil {
		return Signal{}, gaterr.Wrap(gaterr.KindInputFormat, "malformed veto signature", err)
	}
	if !valid {
		return Signal{}, gaterr.New(gaterr.KindAuthorization, "veto signature does not verify")
	}

	signal := Signal{
		ID:         uuid.NewString(),
		Repository: repo,
		Number:     number,
		NodeID:     nodeID,
		EntityName: node.EntityName,
		NodeType:   node.NodeType,
		SignalType: signalType,
		Weight:     node.Weight,
		Signature:  signatureHex,
		Rationale:  rationale,
		Timestamp:  now,
		Verified:   true,
	}

	raw, err := json.Marshal(signal)
	if err != nil {
		return Signal{}, gaterr.Wrap(gaterr.KindInvariant, "encode veto signal", err)
	}
	if err := e.db.Put(signalKey(repo, number, nodeID), raw); err != nil {
		return Signal{}, gaterr.Wrap(gaterr.KindTransient, "persist veto signal", err)
	}
	return signal, nil
}

// Signals returns every admitted signal for a change request.
func (e *Engine) Signals(repo string, number int64) ([]Signal, error) {
	var signals []Signal
	err := e.db.Iterate(indexPrefix(repo, number), func(_, value []byte) error {
		var s Signal
		if err := json.Unmarshal(value, &s); err != nil {
			return err
		}
		signals = append(signals, s)
		return nil
	})
	if err != nil {
		return nil, gaterr.Wrap(gaterr.KindTransient, "list veto signals", err)
	}
	return signals, nil
}

// Tally computes the participation-weighted mining and other-economic veto
// percentages for a change request and whether veto is active. A cohort
// with zero participation contributes a 0% tally, never a threshold met by
// that cohort alone.
func (e *Engine) Tally(repo string, number int64) (Threshold, error) {
	signals, err := e.Signals(repo, number)
	if err != nil {
		return Threshold{}, err
	}

	var miningVeto, miningTotal, otherVeto, otherTotal float64
	for _, s := range signals {
		if s.NodeType == "MiningPool" {
			miningTotal += s.Weight
			if s.SignalType == SignalVeto {
				miningVeto += s.Weight
			}
			continue
		}
		otherTotal += s.Weight
		if s.SignalType == SignalVeto {
			otherVeto += s.Weight
		}
	}

	miningPercent := percentOf(miningVeto, miningTotal)
	otherPercent := percentOf(otherVeto, otherTotal)

	return Threshold{
		MiningVetoPercent:   miningPercent,
		EconomicVetoPercent: otherPercent,
		Active:              miningPercent >= 30 || otherPercent >= 40,
	}, nil
}

func percentOf(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * part / total
}
