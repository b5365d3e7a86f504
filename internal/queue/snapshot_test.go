// SPDX-License-Identifier: MIT

package queue

import "testing"

func TestSnapshotRoundTrip(t *testing.T) {
	q := New()
	q.PushValue(1, CategoryFundamental)
	q.PushValue("two", CategorySerializedData)
	q.PushNested("dropped-on-snapshot-but-kept-as-placeholder")
	q.PushValue(3, CategoryFundamental)

	wantSummary := q.TypeSummary()

	buf, err := q.SerializeSnapshot()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	restored, err := DeserializeSnapshot(buf, nil)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	if restored.NestedCount() != 1 {
		t.Fatalf("expected one nested placeholder, got %d", restored.NestedCount())
	}
	if restored.ValueCount() != 3 {
		t.Fatalf("expected 3 values, got %d", restored.ValueCount())
	}

	gotSummary := restored.TypeSummary()
	if len(gotSummary) != len(wantSummary) {
		t.Fatalf("type summary length mismatch: got %d want %d", len(gotSummary), len(wantSummary))
	}
	for i := range wantSummary {
		if gotSummary[i].Type.String() != wantSummary[i].Type.String() {
			t.Fatalf("type summary[%d] mismatch: got %v want %v", i, gotSummary[i], wantSummary[i])
		}
	}

	v1, err := restored.DeserializePop(intMeta())
	if err != nil || v1.(int) != 1 {
		t.Fatalf("value order not preserved: %v %v", v1, err)
	}
}

func TestDeserializeSnapshotRejectsBadVersion(t *testing.T) {
	bad := []byte{0, 0, 0, 99}
	if _, err := DeserializeSnapshot(bad, nil); err != ErrMalformedInput {
		t.Fatalf("got %v, want ErrMalformedInput", err)
	}
}

func TestDeserializeSnapshotRejectsTruncated(t *testing.T) {
	q := New()
	q.PushValue(1, CategoryFundamental)
	buf, err := q.SerializeSnapshot()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	truncated := buf[:len(buf)-2]
	if _, err := DeserializeSnapshot(truncated, nil); err != ErrMalformedInput {
		t.Fatalf("got %v, want ErrMalformedInput", err)
	}
}

func TestEmplaceNestedAtReEnablesBorrowTake(t *testing.T) {
	q := New()
	idx := q.PushNested("live")
	buf, err := q.SerializeSnapshot()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	restored, err := DeserializeSnapshot(buf, nil)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if _, _, ok := restored.BorrowNestedShared(idx); ok {
		t.Fatal("expected placeholder slot to reject borrow")
	}
	if !restored.EmplaceNestedAt(idx, "new-live-space") {
		t.Fatal("emplace should succeed on placeholder slot")
	}
	v, ok := restored.TakeNestedAt(idx)
	if !ok || v != "new-live-space" {
		t.Fatalf("expected re-emplaced nested value, got %v %v", v, ok)
	}
}
