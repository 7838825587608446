// Package pager implements the storage manager: a single database file
// divided into fixed-size pages, addressed by 0-based page number. The
// pager is the only component that touches the file; everything above it
// deals in whole pages.
package pager

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultPageSize is the page size for new databases.
const DefaultPageSize = 4096

var (
	// ErrPageNotFound is returned when reading or writing a page number
	// at or beyond the current end of the file.
	ErrPageNotFound = errors.New("pager: page not found")

	// ErrInvalidPageSize is returned for page sizes outside [512, 65536]
	// or not a power of two.
	ErrInvalidPageSize = errors.New("pager: invalid page size")

	// ErrPageSizeMismatch is returned when a page buffer of the wrong
	// length is written.
	ErrPageSizeMismatch = errors.New("pager: page size mismatch")

	// ErrClosed is returned for operations on a closed pager.
	ErrClosed = errors.New("pager: closed")
)

// Pager manages page-granular I/O on one database file.
type Pager struct {
	file      *os.File
	filename  string
	pageSize  int
	pageCount int
	closed    bool
}

// Open opens (creating if necessary) the database file at filename with
// the default page size.
func Open(filename string) (*Pager, error) {
	return OpenWithPageSize(filename, DefaultPageSize)
}

// OpenWithPageSize opens the database file with an explicit page size.
// An existing file must be a whole number of pages.
func OpenWithPageSize(filename string, pageSize int) (*Pager, error) {
	if pageSize < 512 || pageSize > 65536 || pageSize&(pageSize-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageSize, pageSize)
	}

	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", filename, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("pager: stat %s: %w", filename, err)
	}
	if info.Size()%int64(pageSize) != 0 {
		file.Close()
		return nil, fmt.Errorf("pager: %s: file size %d is not a multiple of page size %d",
			filename, info.Size(), pageSize)
	}

	return &Pager{
		file:      file,
		filename:  filename,
		pageSize:  pageSize,
		pageCount: int(info.Size() / int64(pageSize)),
	}, nil
}

// PageSize returns the page size in bytes.
func (p *Pager) PageSize() int { return p.pageSize }

// PageCount returns the number of pages currently in the file.
func (p *Pager) PageCount() int { return p.pageCount }

// Allocate extends the file by one zeroed page and returns its page number.
func (p *Pager) Allocate() (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	pgno := p.pageCount
	zero := make([]byte, p.pageSize)
	if _, err := p.file.WriteAt(zero, int64(pgno)*int64(p.pageSize)); err != nil {
		return 0, fmt.Errorf("pager: allocate page %d: %w", pgno, err)
	}
	p.pageCount++
	return pgno, nil
}

// Read returns the contents of page pgno in a fresh buffer.
func (p *Pager) Read(pgno int) ([]byte, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if pgno < 0 || pgno >= p.pageCount {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageNotFound, pgno, p.pageCount)
	}
	buf := make([]byte, p.pageSize)
	if _, err := p.file.ReadAt(buf, int64(pgno)*int64(p.pageSize)); err != nil && err != io.EOF {
		return nil, fmt.Errorf("pager: read page %d: %w", pgno, err)
	}
	return buf, nil
}

// Write replaces the contents of page pgno. The page must already exist
// and data must be exactly one page long.
func (p *Pager) Write(pgno int, data []byte) error {
	if p.closed {
		return ErrClosed
	}
	if pgno < 0 || pgno >= p.pageCount {
		return fmt.Errorf("%w: page %d of %d", ErrPageNotFound, pgno, p.pageCount)
	}
	if len(data) != p.pageSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrPageSizeMismatch, len(data), p.pageSize)
	}
	if _, err := p.file.WriteAt(data, int64(pgno)*int64(p.pageSize)); err != nil {
		return fmt.Errorf("pager: write page %d: %w", pgno, err)
	}
	return nil
}

// Sync flushes file contents to stable storage.
func (p *Pager) Sync() error {
	if p.closed {
		return ErrClosed
	}
	return p.file.Sync()
}

// Close syncs and closes the underlying file.
func (p *Pager) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.file.Sync(); err != nil {
		p.file.Close()
		return fmt.Errorf("pager: sync %s: %w", p.filename, err)
	}
	return p.file.Close()
}
