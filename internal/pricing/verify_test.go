package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/addismarket/backend/internal/catalog"
)

func TestTotal(t *testing.T) {
	snaps := []*catalog.Snapshot{
		{ID: "p1", Price: 25.0},
		{ID: "k1", Price: 120.0},
	}
	if got := Total(snaps, []int{2, 1}); got != 170.0 {
		t.Fatalf("Total = %v, want 170.0", got)
	}
}

func TestVerifyExactMatch(t *testing.T) {
	if err := Verify(50.0, 50.0); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
}

func TestVerifyWithinTolerance(t *testing.T) {
	if err := Verify(50.0, 50.009); err != nil {
		t.Fatalf("expected drift within tolerance to pass, got %v", err)
	}
	if err := Verify(50.0, 49.991); err != nil {
		t.Fatalf("expected drift within tolerance to pass, got %v", err)
	}
}

func TestVerifyMismatch(t *testing.T) {
	err := Verify(50.0, 52.0)
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected MismatchError, got %v", err)
	}
	if mismatch.Expected != 50.0 || mismatch.Received != 52.0 {
		t.Fatalf("unexpected fields: %+v", mismatch)
	}
	if math.Abs(mismatch.Delta()-2.0) > 1e-9 {
		t.Fatalf("Delta = %v, want 2.0", mismatch.Delta())
	}
	want := "price verification failed. Expected: 50.00, Received: 52.00"
	if mismatch.Error() != want {
		t.Fatalf("Error() = %q, want %q", mismatch.Error(), want)
	}
}

func TestVerifyJustOutsideTolerance(t *testing.T) {
	if err := Verify(50.0, 50.02); err == nil {
		t.Fatal("expected mismatch just outside the tolerance")
	}
}
