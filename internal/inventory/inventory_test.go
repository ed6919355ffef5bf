package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dtrandev/marketloop-backend/pkg/db/models"
	pkgerrors "github.com/dtrandev/marketloop-backend/pkg/errors"
)

func TestReserve(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	variantA := uuid.New()
	variantB := uuid.New()

	for _, item := range []models.InventoryItem{
		{VariantID: variantA, AvailableQty: 5},
		{VariantID: variantB, AvailableQty: 1},
	} {
		if err := db.Create(&item).Error; err != nil {
			t.Fatalf("seed inventory: %v", err)
		}
	}

	requests := []ReservationRequest{
		{VariantID: variantA, Qty: 3},
		{VariantID: variantA, Qty: 4},
		{VariantID: variantB, Qty: 1},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		results, terr := Reserve(ctx, tx, requests)
		if terr != nil {
			return terr
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		if !results[0].Reserved || results[0].Reason != "" {
			t.Fatalf("expected first reservation to succeed")
		}
		if results[1].Reserved || results[1].Reason == "" {
			t.Fatalf("expected second reservation to fail with reason")
		}
		if !results[2].Reserved {
			t.Fatalf("expected third reservation to succeed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reserve transaction: %v", err)
	}

	var invA, invB models.InventoryItem
	if err := db.First(&invA, "variant_id = ?", variantA).Error; err != nil {
		t.Fatalf("load inventory a: %v", err)
	}
	if err := db.First(&invB, "variant_id = ?", variantB).Error; err != nil {
		t.Fatalf("load inventory b: %v", err)
	}
	if invA.AvailableQty != 2 || invA.ReservedQty != 3 {
		t.Fatalf("unexpected inventory a state: %+v", invA)
	}
	if invB.AvailableQty != 0 || invB.ReservedQty != 1 {
		t.Fatalf("unexpected inventory b state: %+v", invB)
	}
}

func TestReserveInvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	variant := uuid.New()
	if err := db.Create(&models.InventoryItem{VariantID: variant, AvailableQty: 5}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	_, err := Reserve(ctx, db, []ReservationRequest{{VariantID: variant, Qty: 0}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReserveRequiresTx(t *testing.T) {
	t.Parallel()

	_, err := Reserve(context.Background(), nil, []ReservationRequest{{VariantID: uuid.New(), Qty: 1}})
	if err == nil {
		t.Fatal("expected error without transaction")
	}
}

func TestReleaseRestoresStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	variant := uuid.New()
	if err := db.Create(&models.InventoryItem{VariantID: variant, AvailableQty: 2, ReservedQty: 3}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	releaser := NewReleaser()
	err := db.Transaction(func(tx *gorm.DB) error {
		return releaser.Release(ctx, tx, variant, 3)
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}

	var inv models.InventoryItem
	if err := db.First(&inv, "variant_id = ?", variant).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableQty != 5 || inv.ReservedQty != 0 {
		t.Fatalf("unexpected inventory state: %+v", inv)
	}
}

func TestCommitBurnsReserved(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	variant := uuid.New()
	if err := db.Create(&models.InventoryItem{VariantID: variant, AvailableQty: 2, ReservedQty: 3}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	committer := NewCommitter()
	err := db.Transaction(func(tx *gorm.DB) error {
		return committer.Commit(ctx, tx, variant, 3)
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	var inv models.InventoryItem
	if err := db.First(&inv, "variant_id = ?", variant).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableQty != 2 || inv.ReservedQty != 0 {
		t.Fatalf("unexpected inventory state: %+v", inv)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		return committer.Commit(ctx, tx, variant, 1)
	})
	if err == nil {
		t.Fatal("expected commit past reserved to fail")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRestockAddsBackCommittedStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	variant := uuid.New()
	if err := db.Create(&models.InventoryItem{VariantID: variant, AvailableQty: 1, ReservedQty: 0}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	restocker := NewRestocker()
	err := db.Transaction(func(tx *gorm.DB) error {
		return restocker.Restock(ctx, tx, variant, 4)
	})
	if err != nil {
		t.Fatalf("restock: %v", err)
	}

	var inv models.InventoryItem
	if err := db.First(&inv, "variant_id = ?", variant).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableQty != 5 || inv.ReservedQty != 0 {
		t.Fatalf("unexpected inventory state: %+v", inv)
	}
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db handle: %v", err)
	}
	// Serialize on one connection so sqlite does not return busy errors while
	// the conditional update still decides every winner.
	sqlDB.SetMaxOpenConns(1)

	ctx := context.Background()
	variant := uuid.New()
	if err := db.Create(&models.InventoryItem{VariantID: variant, AvailableQty: 10}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	reservedCount := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, rerr := Reserve(ctx, db, []ReservationRequest{{VariantID: variant, Qty: 1}})
			if rerr != nil {
				t.Errorf("reserve: %v", rerr)
				return
			}
			if results[0].Reserved {
				mu.Lock()
				reservedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if reservedCount != 10 {
		t.Fatalf("expected exactly 10 reservations to win, got %d", reservedCount)
	}

	var inv models.InventoryItem
	if err := db.First(&inv, "variant_id = ?", variant).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableQty != 0 || inv.ReservedQty != 10 {
		t.Fatalf("unexpected inventory state: %+v", inv)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.InventoryItem{}); err != nil {
		t.Fatalf("migrate inventory: %v", err)
	}
	return db
}
