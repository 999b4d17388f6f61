package econnode

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/forgepolicy/gatekeeper/gaterr"
)

// Registry persists EconomicNode records in a relational store, using
// Serializable-isolation transactions for registration and re-verification
// per the concurrency model's shared-read/exclusive-write policy for
// registries.
type Registry struct {
	db *gorm.DB
}

// Open constructs a Registry over a gorm.DB, running the schema migration.
func Open(db *gorm.DB) (*Registry, error) {
	if err := db.AutoMigrate(&EconomicNode{}); err != nil {
		return nil, gaterr.Wrap(gaterr.KindConfiguration, "migrate economic node schema", err)
	}
	return &Registry{db: db}, nil
}

func (r *Registry) withSerializableTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// Register verifies qualification_proof against node_type's minima, computes
// the initial weight, and inserts a Pending node. Registration fails with a
// qualification-below-threshold error and writes no row if any mandated
// component is missing or below minimum.
func (r *Registry) Register(ctx context.Context, nodeType NodeType, entityName, publicKey string, proof QualificationProof, now time.Time) (EconomicNode, error) {
	if err := verifyQualification(nodeType, proof); err != nil {
		return EconomicNode{}, err
	}
	weight, err := calculateWeight(nodeType, proof)
	if err != nil {
		return EconomicNode{}, err
	}

	node := EconomicNode{
		NodeType:     nodeType,
		EntityName:   entityName,
		PublicKey:    publicKey,
		Weight:       weight,
		Status:       StatusPending,
		RegisteredAt: now,
	}
	if err := node.SetProof(proof); err != nil {
		return EconomicNode{}, gaterr.Wrap(gaterr.KindInvariant, "encode qualification proof", err)
	}

	err = r.withSerializableTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&node).Error
	})
	if err != nil {
		return EconomicNode{}, gaterr.Wrap(gaterr.KindTransient, "insert economic node", err)
	}
	return node, nil
}

// Activate transitions a Pending node to Active after successful
// qualification re-verification.
func (r *Registry) Activate(ctx context.Context, id uint64, now time.Time) (EconomicNode, error) {
	var node EconomicNode
	err := r.withSerializableTx(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&node, "id = ?", id).Error; err != nil {
			return err
		}
		node.Status = StatusActive
		node.LastVerifiedAt = &now
		return tx.Save(&node).Error
	})
	if err != nil {
		return EconomicNode{}, translateNotFound(err)
	}
	return node, nil
}

// SetStatus administratively transitions a node to Inactive or Compromised.
// Nodes are never deleted; the record is retained for audit.
func (r *Registry) SetStatus(ctx context.Context, id uint64, status Status) (EconomicNode, error) {
	var node EconomicNode
	err := r.withSerializableTx(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&node, "id = ?", id).Error; err != nil {
			return err
		}
		node.Status = status
		return tx.Save(&node).Error
	})
	if err != nil {
		return EconomicNode{}, translateNotFound(err)
	}
	return node, nil
}

// Reverify refreshes a node's qualification proof, recomputes its weight
// from the new evidence, and updates LastVerifiedAt. Fails with the same
// qualification-below-threshold error as Register if the refreshed evidence
// no longer meets the node type's minima.
func (r *Registry) Reverify(ctx context.Context, id uint64, proof QualificationProof, now time.Time) (EconomicNode, error) {
	var node EconomicNode
	err := r.withSerializableTx(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&node, "id = ?", id).Error; err != nil {
			return err
		}
		if err := verifyQualification(node.NodeType, proof); err != nil {
			return err
		}
		weight, err := calculateWeight(node.NodeType, proof)
		if err != nil {
			return err
		}
		if err := node.SetProof(proof); err != nil {
			return err
		}
		node.Weight = weight
		node.LastVerifiedAt = &now
		return tx.Save(&node).Error
	})
	if err != nil {
		if gerr, ok := err.(*gaterr.Error); ok {
			return EconomicNode{}, gerr
		}
		return EconomicNode{}, translateNotFound(err)
	}
	return node, nil
}

// RecalculateAll recomputes weight for every Active node from its currently
// stored qualification proof, for periodic administrative refresh.
func (r *Registry) RecalculateAll(ctx context.Context) (int, error) {
	updated := 0
	err := r.withSerializableTx(ctx, func(tx *gorm.DB) error {
		var nodes []EconomicNode
		if err := tx.Where("status = ?", StatusActive).Find(&nodes).Error; err != nil {
			return err
		}
		for _, node := range nodes {
			proof, err := node.Proof()
			if err != nil {
				return err
			}
			weight, err := calculateWeight(node.NodeType, proof)
			if err != nil {
				return err
			}
			if err := tx.Model(&EconomicNode{}).Where("id = ?", node.ID).Update("weight", weight).Error; err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, gaterr.Wrap(gaterr.KindTransient, "recalculate economic node weights", err)
	}
	return updated, nil
}

// ActiveNodes returns every Active node, ordered by descending weight.
func (r *Registry) ActiveNodes(ctx context.Context) ([]EconomicNode, error) {
	var nodes []EconomicNode
	err := r.db.WithContext(ctx).Where("status = ?", StatusActive).Order("weight DESC").Find(&nodes).Error
	if err != nil {
		return nil, gaterr.Wrap(gaterr.KindTransient, "list active economic nodes", err)
	}
	return nodes, nil
}

// Get returns a single node by id.
func (r *Registry) Get(ctx context.Context, id uint64) (EconomicNode, error) {
	var node EconomicNode
	err := r.db.WithContext(ctx).First(&node, "id = ?", id).Error
	if err != nil {
		return EconomicNode{}, translateNotFound(err)
	}
	return node, nil
}

func translateNotFound(err error) error {
	if err == gorm.ErrRecordNotFound {
		return gaterr.New(gaterr.KindAuthorization, "economic node not found")
	}
	return gaterr.Wrap(gaterr.KindTransient, "economic node registry operation", err)
}
