package pager

import (
	"encoding/binary"
	"os"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/ristretto/v2"
)

const (
	PageSize    = 4096 // 4 KB, the OS page size
	InvalidPage = ^uint64(0)
)

// Page is a raw 4 KB block read from or written to disk.
type Page [PageSize]byte

// Stats reports page cache effectiveness.
type Stats struct {
	Hits      uint64
	Misses    uint64
	DiskReads uint64
}

// Pager manages a file of fixed-size pages and caches recently used ones.
type Pager struct {
	file      *os.File
	cache     *ristretto.Cache[uint64, *Page]
	pageCount uint64 // total number of pages ever allocated
	diskReads atomic.Uint64
}

// Open opens (or creates) a pager backed by the given file.
// cacheSize is the number of pages to hold in the cache.
func Open(path string, cacheSize int) (*Pager, error) {
	if cacheSize < 1 {
		cacheSize = 1
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "pager: open")
	}

	cache, err := ristretto.NewCache(&ristretto.Config[uint64, *Page]{
		NumCounters:        int64(cacheSize) * 10,
		MaxCost:            int64(cacheSize),
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "pager: cache")
	}

	p := &Pager{
		file:  f,
		cache: cache,
	}

	// Page 0 holds the page count. A brand new file starts at 1.
	info, err := f.Stat()
	if err != nil {
		p.Close()
		return nil, errors.Wrap(err, "pager: stat")
	}
	if info.Size() == 0 {
		p.pageCount = 1
		if err := p.writePageCount(); err != nil {
			p.Close()
			return nil, err
		}
	} else {
		pg, err := p.readPageFromDisk(0)
		if err != nil {
			p.Close()
			return nil, errors.Wrap(err, "pager: read header")
		}
		p.pageCount = binary.LittleEndian.Uint64(pg[:8])
	}

	log.Debugf("opened %s: %d pages, cache %d pages", path, p.pageCount, cacheSize)
	return p, nil
}

// Allocate reserves a new page on disk and returns its page ID.
func (p *Pager) Allocate() (uint64, error) {
	id := p.pageCount
	p.pageCount++

	var blank Page
	if err := p.writePageToDisk(id, &blank); err != nil {
		return 0, err
	}
	if err := p.writePageCount(); err != nil {
		return 0, err
	}
	return id, nil
}

// Read returns a private copy of the page with the given ID, from cache or
// disk. The caller may modify it and hand it back through Write.
func (p *Pager) Read(id uint64) (*Page, error) {
	if id >= p.pageCount {
		return nil, errors.Newf("pager: read page %d: beyond page count %d", id, p.pageCount)
	}
	if pg, ok := p.cache.Get(id); ok {
		cp := *pg
		return &cp, nil
	}
	pg, err := p.readPageFromDisk(id)
	if err != nil {
		return nil, err
	}
	cp := *pg
	p.cache.Set(id, &cp, 1)
	return pg, nil
}

// Write writes a page through to disk and refreshes the cached copy.
func (p *Pager) Write(id uint64, pg *Page) error {
	if err := p.writePageToDisk(id, pg); err != nil {
		return err
	}
	cp := *pg
	p.cache.Del(id)
	p.cache.Set(id, &cp, 1)
	p.cache.Wait()
	return nil
}

// Close flushes and closes the underlying file.
func (p *Pager) Close() error {
	p.cache.Close()
	return p.file.Close()
}

// PageCount returns the total number of allocated pages.
func (p *Pager) PageCount() uint64 {
	return p.pageCount
}

func (p *Pager) Stats() Stats {
	m := p.cache.Metrics
	return Stats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		DiskReads: p.diskReads.Load(),
	}
}

// --- internal helpers ---

func (p *Pager) offset(id uint64) int64 {
	return int64(id) * PageSize
}

func (p *Pager) readPageFromDisk(id uint64) (*Page, error) {
	pg := new(Page)
	_, err := p.file.ReadAt(pg[:], p.offset(id))
	if err != nil {
		return nil, errors.Wrapf(err, "pager: read page %d", id)
	}
	p.diskReads.Add(1)
	log.Tracef("read page %d from disk", id)
	return pg, nil
}

func (p *Pager) writePageToDisk(id uint64, pg *Page) error {
	_, err := p.file.WriteAt(pg[:], p.offset(id))
	if err != nil {
		return errors.Wrapf(err, "pager: write page %d", id)
	}
	return nil
}

// writePageCount stores the page count in the first 8 bytes of page 0,
// preserving the rest of the header.
func (p *Pager) writePageCount() error {
	var hdr Page
	if p.pageCount > 1 {
		if existing, err := p.readPageFromDisk(0); err == nil {
			hdr = *existing
		}
	}
	binary.LittleEndian.PutUint64(hdr[:8], p.pageCount)
	return p.writePageToDisk(0, &hdr)
}
