package memory

import (
	"context"
	"testing"

	"budgetform/internal/core"
)

func TestAppendAndList(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Append(ctx, core.Row{1}); err == nil {
		t.Fatal("expected width error")
	}

	for i := 1; i <= 3; i++ {
		row := core.Row{float64(i), 0, 0, 0, 0, 0, 0, 0}
		ref, err := s.Append(ctx, row)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if want := "mem:" + string(rune('0'+i)); ref != want {
			t.Fatalf("ref = %q, want %q", ref, want)
		}
	}

	all, _ := s.ListRows(ctx, 0)
	if len(all) != 3 || s.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", len(all))
	}
	last, _ := s.ListRows(ctx, 2)
	if len(last) != 2 || last[0].Row[0] != 2 || last[1].Row[0] != 3 {
		t.Fatalf("unexpected tail: %+v", last)
	}
	if last[1].RecordedAt.IsZero() {
		t.Fatal("RecordedAt not set")
	}
}

func TestAppendCopiesRow(t *testing.T) {
	s := New()
	row := core.Row{1, 2, 3, 4, 5, 6, 7, 8}
	if _, err := s.Append(context.Background(), row); err != nil {
		t.Fatal(err)
	}
	row[0] = 99
	got, _ := s.ListRows(context.Background(), 0)
	if got[0].Row[0] != 1 {
		t.Fatal("stored row aliases caller slice")
	}
}
