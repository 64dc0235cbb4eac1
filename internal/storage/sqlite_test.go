package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testOrders(ids ...int) []RepairOrder {
	orders := make([]RepairOrder, 0, len(ids))
	for _, id := range ids {
		orders = append(orders, RepairOrder{
			OrderID:    id,
			Timestamp:  time.Date(2023, 8, 11, 12, 0, 0, 0, time.UTC),
			Status:     "Completed",
			Cost:       110,
			Technician: fmt.Sprintf("Tech %d", id),
		})
	}
	return orders
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repair.db")

	s1, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	// Repeated calls against a live store must be no-ops.
	for i := 0; i < 3; i++ {
		if err := s1.EnsureSchema(); err != nil {
			t.Fatalf("EnsureSchema call %d failed: %v", i+1, err)
		}
	}
	s1.Close()

	s2, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	for _, table := range []string{"repair_order", "repair_order_detail"} {
		var count int
		err := s2.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %q appears %d times in sqlite_master, want 1", table, count)
		}
	}
}

func TestLoadAndCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	orders := testOrders(104, 105)
	details := []RepairOrderDetail{
		{OrderID: 104, PartName: "Tire", Quantity: 2},
		{OrderID: 104, PartName: "Brake Fluid", Quantity: 1},
		{OrderID: 105, PartName: "Oil Filter", Quantity: 1},
	}

	if err := s.Load(ctx, orders, details); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	gotOrders, gotDetails, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if gotOrders != 2 || gotDetails != 3 {
		t.Errorf("Counts = (%d, %d), want (2, 3)", gotOrders, gotDetails)
	}
}

func TestLoadRoundTripsRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	in := RepairOrder{
		OrderID:    104,
		Timestamp:  time.Date(2023, 8, 12, 9, 0, 0, 0, time.UTC),
		Status:     "Reopened",
		Cost:       110.50,
		Technician: "Robert White",
	}
	if err := s.Load(ctx, []RepairOrder{in}, []RepairOrderDetail{{OrderID: 104, PartName: "Tire", Quantity: 1}}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	orders, err := s.Orders(ctx)
	if err != nil {
		t.Fatalf("Orders failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(orders))
	}
	got := orders[0]
	if got.OrderID != in.OrderID || !got.Timestamp.Equal(in.Timestamp) ||
		got.Status != in.Status || got.Cost != in.Cost || got.Technician != in.Technician {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, in)
	}

	details, err := s.Details(ctx)
	if err != nil {
		t.Fatalf("Details failed: %v", err)
	}
	if len(details) != 1 || details[0] != (RepairOrderDetail{OrderID: 104, PartName: "Tire", Quantity: 1}) {
		t.Errorf("details = %+v", details)
	}
}

// Load is a full reload: a second load replaces everything from the first.
func TestLoadReplacesPreviousContents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Load(ctx, testOrders(1, 2, 3), []RepairOrderDetail{
		{OrderID: 1, PartName: "Tire", Quantity: 1},
		{OrderID: 2, PartName: "Oil", Quantity: 2},
	}); err != nil {
		t.Fatalf("first Load failed: %v", err)
	}

	if err := s.Load(ctx, testOrders(9), []RepairOrderDetail{
		{OrderID: 9, PartName: "Wiper", Quantity: 2},
	}); err != nil {
		t.Fatalf("second Load failed: %v", err)
	}

	orders, details, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if orders != 1 || details != 1 {
		t.Errorf("Counts = (%d, %d), want (1, 1)", orders, details)
	}
	got, err := s.Orders(ctx)
	if err != nil {
		t.Fatalf("Orders failed: %v", err)
	}
	if got[0].OrderID != 9 {
		t.Errorf("surviving order = %d, want 9", got[0].OrderID)
	}
}

// A failed load must leave the previous contents untouched: reset and both
// inserts share one transaction.
func TestLoadFailureKeepsPreviousContents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Load(ctx, testOrders(1), []RepairOrderDetail{
		{OrderID: 1, PartName: "Tire", Quantity: 1},
	}); err != nil {
		t.Fatalf("first Load failed: %v", err)
	}

	// Detail row referencing a missing order violates the foreign key.
	err := s.Load(ctx, testOrders(2), []RepairOrderDetail{
		{OrderID: 99, PartName: "Ghost", Quantity: 1},
	})
	if err == nil {
		t.Fatal("Load succeeded despite foreign key violation")
	}

	orders, err2 := s.Orders(ctx)
	if err2 != nil {
		t.Fatalf("Orders failed: %v", err2)
	}
	if len(orders) != 1 || orders[0].OrderID != 1 {
		t.Errorf("previous contents not preserved: %+v", orders)
	}
	details, err2 := s.Details(ctx)
	if err2 != nil {
		t.Fatalf("Details failed: %v", err2)
	}
	if len(details) != 1 || details[0].OrderID != 1 {
		t.Errorf("previous details not preserved: %+v", details)
	}
}

func TestResetEmptiesBothTables(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Load(ctx, testOrders(1, 2), []RepairOrderDetail{
		{OrderID: 1, PartName: "Tire", Quantity: 1},
		{OrderID: 2, PartName: "Oil", Quantity: 2},
	}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Foreign keys are enforced, so this passing also shows the delete
	// order never violates the parent/child constraint.
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	orders, details, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if orders != 0 || details != 0 {
		t.Errorf("Counts after Reset = (%d, %d), want (0, 0)", orders, details)
	}

	// Resetting an already-empty store is fine.
	if err := s.Reset(ctx); err != nil {
		t.Errorf("Reset on empty store failed: %v", err)
	}
}

func TestLoadManyRowsCrossesChunkBoundary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n := insertChunk*2 + 17
	ids := make([]int, n)
	details := make([]RepairOrderDetail, n)
	for i := range ids {
		ids[i] = i + 1
		details[i] = RepairOrderDetail{OrderID: i + 1, PartName: "Tire", Quantity: 1}
	}

	if err := s.Load(ctx, testOrders(ids...), details); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	orders, gotDetails, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if orders != n || gotDetails != n {
		t.Errorf("Counts = (%d, %d), want (%d, %d)", orders, gotDetails, n, n)
	}
}
