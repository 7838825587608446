package btree

import (
	"errors"
	"testing"
)

func TestCursorUnpositioned(t *testing.T) {
	tr := newTestTree(t, 0)
	cur := tr.Cursor()
	if cur.Valid() {
		t.Error("fresh cursor reports Valid")
	}
	if _, err := cur.Key(); !errors.Is(err, ErrCursorInvalid) {
		t.Errorf("Key on unpositioned cursor: error = %v, want ErrCursorInvalid", err)
	}
	if _, err := cur.Payload(); !errors.Is(err, ErrCursorInvalid) {
		t.Errorf("Payload on unpositioned cursor: error = %v, want ErrCursorInvalid", err)
	}
}

func TestCursorSingleLeaf(t *testing.T) {
	tr := newTestTree(t, 0)
	mustInsert(t, tr, 2, 1, 3)

	cur := tr.Cursor()
	ok, err := cur.Rewind()
	if err != nil || !ok {
		t.Fatalf("Rewind = %v, %v", ok, err)
	}
	for want := int64(1); want <= 3; want++ {
		k, err := cur.Key()
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		if k != want {
			t.Errorf("Key = %d, want %d", k, want)
		}
		payload, err := cur.Payload()
		if err != nil {
			t.Fatalf("Payload: %v", err)
		}
		if len(payload) == 0 {
			t.Error("empty payload")
		}
		if ok, err = cur.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
		if want < 3 && !ok {
			t.Fatalf("Next after key %d = false, want true", want)
		}
	}
	if ok || cur.Valid() {
		t.Error("cursor still valid past the last row")
	}
	if more, _ := cur.Next(); more {
		t.Error("Next after exhaustion = true")
	}
}

func TestCursorMultiLevel(t *testing.T) {
	tr := newTestTree(t, 3)
	for k := int64(1); k <= 100; k++ {
		mustInsert(t, tr, k)
	}
	got := scanKeys(t, tr)
	if len(got) != 100 {
		t.Fatalf("scan returned %d keys, want 100", len(got))
	}
	for i, k := range got {
		if k != int64(i+1) {
			t.Fatalf("scan[%d] = %d, want %d", i, k, i+1)
		}
	}
}

func TestCursorSeek(t *testing.T) {
	tr := newTestTree(t, 3)
	for k := int64(2); k <= 60; k += 2 {
		mustInsert(t, tr, k)
	}

	cur := tr.Cursor()
	for _, k := range []int64{2, 30, 60} {
		ok, err := cur.Seek(k)
		if err != nil {
			t.Fatalf("Seek(%d): %v", k, err)
		}
		if !ok {
			t.Fatalf("Seek(%d) = false, want true", k)
		}
		got, err := cur.Key()
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		if got != k {
			t.Errorf("Seek(%d) positioned on key %d", k, got)
		}
	}

	for _, k := range []int64{1, 31, 99} {
		ok, err := cur.Seek(k)
		if err != nil {
			t.Fatalf("Seek(%d): %v", k, err)
		}
		if ok || cur.Valid() {
			t.Errorf("Seek(%d) on absent key left the cursor valid", k)
		}
	}
}

func TestCursorSeekThenNext(t *testing.T) {
	tr := newTestTree(t, 3)
	for k := int64(1); k <= 40; k++ {
		mustInsert(t, tr, k)
	}
	cur := tr.Cursor()
	if ok, err := cur.Seek(25); err != nil || !ok {
		t.Fatalf("Seek(25) = %v, %v", ok, err)
	}
	for want := int64(26); want <= 40; want++ {
		ok, err := cur.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			t.Fatalf("Next stopped before key %d", want)
		}
		k, _ := cur.Key()
		if k != want {
			t.Fatalf("Key = %d, want %d", k, want)
		}
	}
	if ok, _ := cur.Next(); ok {
		t.Error("Next past last key = true")
	}
}

func TestCursorObservesWritesAfterRewind(t *testing.T) {
	tr := newTestTree(t, 0)
	mustInsert(t, tr, 1)

	cur := tr.Cursor()
	if ok, err := cur.Rewind(); err != nil || !ok {
		t.Fatalf("Rewind = %v, %v", ok, err)
	}
	mustInsert(t, tr, 2)
	if ok, err := cur.Rewind(); err != nil || !ok {
		t.Fatalf("second Rewind = %v, %v", ok, err)
	}
	count := 1
	for {
		ok, err := cur.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Errorf("scan after rewind saw %d rows, want 2", count)
	}
}
