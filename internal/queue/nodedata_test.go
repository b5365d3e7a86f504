// SPDX-License-Identifier: MIT

package queue

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

func intMeta() Meta { return Meta{Type: reflect.TypeOf(0), Category: CategoryFundamental} }

func TestPushAndDeserializePopOrder(t *testing.T) {
	q := New()
	q.PushValue(1, CategoryFundamental)
	q.PushValue(2, CategoryFundamental)
	q.PushValue(3, CategoryFundamental)

	for _, want := range []int{1, 2, 3} {
		got, err := q.DeserializePop(intMeta())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.(int) != want {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if !q.Empty() {
		t.Fatal("expected queue to be empty")
	}
}

func TestDeserializeNonDestructive(t *testing.T) {
	q := New()
	q.PushValue(42, CategoryFundamental)
	v1, err := q.Deserialize(intMeta())
	if err != nil || v1.(int) != 42 {
		t.Fatalf("unexpected: %v %v", v1, err)
	}
	v2, err := q.Deserialize(intMeta())
	if err != nil || v2.(int) != 42 {
		t.Fatalf("peek should be repeatable: %v %v", v2, err)
	}
}

func TestDeserializeEmptyIsNoObjectFound(t *testing.T) {
	q := New()
	_, err := q.Deserialize(intMeta())
	if err != ErrNoObjectFound {
		t.Fatalf("got %v, want ErrNoObjectFound", err)
	}
}

func TestDeserializeTypeMismatchIsInvalidType(t *testing.T) {
	q := New()
	q.PushValue("a string", CategoryFundamental)
	_, err := q.Deserialize(intMeta())
	if err != ErrInvalidType {
		t.Fatalf("got %v, want ErrInvalidType", err)
	}
}

func TestCloneDropsNestedKeepsValues(t *testing.T) {
	q := New()
	q.PushValue(7, CategoryFundamental)
	q.PushNested("nested-placeholder-value")
	q.PushValue(8, CategoryFundamental)

	cp := q.Clone()
	if cp.NestedCount() != 0 {
		t.Fatalf("expected nested slots dropped on clone, got %d", cp.NestedCount())
	}
	if cp.ValueCount() != 2 {
		t.Fatalf("expected 2 values preserved, got %d", cp.ValueCount())
	}
}

func TestBorrowBlocksTake(t *testing.T) {
	q := New()
	idx := q.PushNested("nested-space")

	_, release, ok := q.BorrowNestedShared(idx)
	if !ok {
		t.Fatal("expected successful borrow")
	}

	done := make(chan any, 1)
	go func() {
		v, _ := q.TakeNestedAt(idx)
		done <- v
	}()

	select {
	case <-done:
		t.Fatal("take should still be blocked while borrow is outstanding")
	case <-time.After(20 * time.Millisecond):
	}

	release()

	select {
	case v := <-done:
		if v != "nested-space" {
			t.Fatalf("got %v", v)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("take did not unblock after release")
	}
}

func TestMultipleBorrowsAllMustRelease(t *testing.T) {
	q := New()
	idx := q.PushNested("x")

	_, r1, _ := q.BorrowNestedShared(idx)
	_, r2, _ := q.BorrowNestedShared(idx)

	var wg sync.WaitGroup
	wg.Add(1)
	doneCh := make(chan struct{})
	go func() {
		defer wg.Done()
		q.TakeNestedAt(idx)
		close(doneCh)
	}()

	r1()
	select {
	case <-doneCh:
		t.Fatal("should still be blocked with one borrow outstanding")
	case <-time.After(20 * time.Millisecond):
	}
	r2()
	wg.Wait()
}
