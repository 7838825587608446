package pager

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func newTestPager(t *testing.T) *Pager {
	t.Helper()
	p, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestOpenNewFile(t *testing.T) {
	p := newTestPager(t)
	if got := p.PageCount(); got != 0 {
		t.Errorf("PageCount = %d, want 0", got)
	}
	if got := p.PageSize(); got != DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", got, DefaultPageSize)
	}
}

func TestOpenInvalidPageSize(t *testing.T) {
	for _, size := range []int{0, 100, 511, 1000, 131072} {
		_, err := OpenWithPageSize(filepath.Join(t.TempDir(), "x.db"), size)
		if !errors.Is(err, ErrInvalidPageSize) {
			t.Errorf("OpenWithPageSize(%d) error = %v, want ErrInvalidPageSize", size, err)
		}
	}
}

func TestAllocateSequential(t *testing.T) {
	p := newTestPager(t)
	for want := 0; want < 5; want++ {
		got, err := p.Allocate()
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		if got != want {
			t.Errorf("Allocate = page %d, want %d", got, want)
		}
	}
	if got := p.PageCount(); got != 5 {
		t.Errorf("PageCount = %d, want 5", got)
	}
}

func TestAllocateReturnsZeroedPage(t *testing.T) {
	p := newTestPager(t)
	pgno, err := p.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	data, err := p.Read(pgno)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(data, make([]byte, p.PageSize())) {
		t.Error("fresh page is not zeroed")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	p := newTestPager(t)
	pgno, err := p.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	data := make([]byte, p.PageSize())
	copy(data, []byte("hello pager"))
	data[p.PageSize()-1] = 0xff

	if err := p.Write(pgno, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := p.Read(pgno)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Read returned different bytes than written")
	}
}

func TestReadOutOfRange(t *testing.T) {
	p := newTestPager(t)
	if _, err := p.Read(0); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("Read(0) on empty file: error = %v, want ErrPageNotFound", err)
	}
	if _, err := p.Read(-1); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("Read(-1): error = %v, want ErrPageNotFound", err)
	}
}

func TestWriteWrongSize(t *testing.T) {
	p := newTestPager(t)
	pgno, err := p.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := p.Write(pgno, []byte("short")); !errors.Is(err, ErrPageSizeMismatch) {
		t.Errorf("Write short buffer: error = %v, want ErrPageSizeMismatch", err)
	}
}

func TestWriteUnallocated(t *testing.T) {
	p := newTestPager(t)
	if err := p.Write(3, make([]byte, p.PageSize())); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("Write(3) on empty file: error = %v, want ErrPageNotFound", err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")

	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	pgno, err := p.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	data := make([]byte, p.PageSize())
	copy(data, []byte("persisted"))
	if err := p.Write(pgno, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p2.Close()
	if got := p2.PageCount(); got != 1 {
		t.Fatalf("PageCount after reopen = %d, want 1", got)
	}
	got, err := p2.Read(pgno)
	if err != nil {
		t.Fatalf("Read after reopen: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("page contents changed across reopen")
	}
}

func TestClosedPager(t *testing.T) {
	p := newTestPager(t)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := p.Allocate(); !errors.Is(err, ErrClosed) {
		t.Errorf("Allocate after Close: error = %v, want ErrClosed", err)
	}
	if _, err := p.Read(0); !errors.Is(err, ErrClosed) {
		t.Errorf("Read after Close: error = %v, want ErrClosed", err)
	}
}
