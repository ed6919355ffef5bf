package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/dtrandev/marketloop-backend/pkg/errors"
)

// ReservationRequest asks for qty units of a variant to be held for an order.
type ReservationRequest struct {
	VariantID uuid.UUID
	Qty       int
}

// ReservationResult reports the outcome per requested variant.
type ReservationResult struct {
	VariantID uuid.UUID
	Reserved  bool
	Reason    string
}

// Reserver holds stock for order lines inside the caller's transaction.
type Reserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) ([]ReservationResult, error)
}

// Releaser returns previously reserved stock inside the caller's transaction.
type Releaser interface {
	Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
}

// Committer burns reserved stock once it physically leaves the warehouse.
type Committer interface {
	Commit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
}

// Restocker puts committed stock back on the shelf, bypassing the reserve ledger.
type Restocker interface {
	Restock(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
}

// Reserve holds stock for each request with a conditional decrement. A request
// whose variant has insufficient stock is reported, not errored, so the caller
// can surface all shortages at once. Requires an enclosing transaction.
func Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) ([]ReservationResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory reservation")
	}
	for _, req := range requests {
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive")
		}
	}

	results := make([]ReservationResult, 0, len(requests))
	for _, req := range requests {
		res := tx.WithContext(ctx).Exec(`
			UPDATE inventory_items
			SET available_qty = available_qty - ?,
				reserved_qty = reserved_qty + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE variant_id = ? AND available_qty >= ?
		`, req.Qty, req.Qty, req.VariantID, req.Qty)
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
		}

		result := ReservationResult{VariantID: req.VariantID, Reserved: res.RowsAffected > 0}
		if !result.Reserved {
			result.Reason = "insufficient stock"
		}
		results = append(results, result)
	}
	return results, nil
}

type reserverImpl struct{}

// NewReserver exposes the default inventory reservation implementation.
func NewReserver() Reserver {
	return reserverImpl{}
}

func (reserverImpl) Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) ([]ReservationResult, error) {
	return Reserve(ctx, tx, requests)
}

type releaserImpl struct{}

// NewReleaser exposes the default inventory release implementation.
func NewReleaser() Releaser {
	return releaserImpl{}
}

func (releaserImpl) Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET available_qty = available_qty + ?,
			reserved_qty = reserved_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE variant_id = ? AND reserved_qty >= ?
	`, qty, qty, variantID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release inventory")
	}
	return nil
}

type committerImpl struct{}

// NewCommitter exposes the default reserved-stock commit implementation.
func NewCommitter() Committer {
	return committerImpl{}
}

func (committerImpl) Commit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory commit")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET reserved_qty = reserved_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE variant_id = ? AND reserved_qty >= ?
	`, qty, variantID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "commit reserved inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reserved inventory does not cover commit")
	}
	return nil
}

type restockerImpl struct{}

// NewRestocker exposes the default committed-stock restock implementation.
func NewRestocker() Restocker {
	return restockerImpl{}
}

func (restockerImpl) Restock(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory restock")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET available_qty = available_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE variant_id = ?
	`, qty, variantID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restock inventory")
	}
	return nil
}
