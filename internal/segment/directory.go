package segment

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/rishav/floxcore/internal/types"
)

// Discover finds every ".floxlog" file in dir, opens each as a Reader, and
// returns them sorted by first-event timestamp, matching spec §4.9's
// reader contract.
func Discover(dir string) ([]*Reader, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.floxlog"))
	if err != nil {
		return nil, fmt.Errorf("segment: glob %s: %w", dir, err)
	}
	readers := make([]*Reader, 0, len(paths))
	for _, p := range paths {
		r, err := OpenReader(p)
		if err != nil {
			return nil, err
		}
		readers = append(readers, r)
	}
	sort.Slice(readers, func(i, j int) bool {
		return readers[i].Header.FirstEventNs < readers[j].Header.FirstEventNs
	})
	return readers, nil
}

// DirectorySummary is what InspectDir returns: segment counts and time bounds
// without decoding any payload.
type DirectorySummary struct {
	SegmentCount int
	EventCount   uint64
	FirstEventNs int64
	LastEventNs  int64
	Segments     []string
}

// InspectDir summarizes every segment in dir without decoding payloads.
func InspectDir(dir string) (DirectorySummary, error) {
	readers, err := Discover(dir)
	if err != nil {
		return DirectorySummary{}, err
	}
	var summary DirectorySummary
	for i, r := range readers {
		summary.SegmentCount++
		summary.EventCount += r.Header.EventCount
		summary.Segments = append(summary.Segments, r.path)
		if i == 0 || r.Header.FirstEventNs < summary.FirstEventNs {
			summary.FirstEventNs = r.Header.FirstEventNs
		}
		if i == 0 || r.Header.LastEventNs > summary.LastEventNs {
			summary.LastEventNs = r.Header.LastEventNs
		}
	}
	return summary, nil
}

// DirReader iterates every segment in a directory, in timestamp order,
// as a single logical stream.
type DirReader struct {
	readers []*Reader
}

// OpenDir discovers and opens every segment under dir.
func OpenDir(dir string) (*DirReader, error) {
	readers, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	return &DirReader{readers: readers}, nil
}

// ForEach iterates every event across every segment, in segment order
// (which is first-event-timestamp order); cb returning false aborts the
// whole directory scan, not just the current segment.
func (d *DirReader) ForEach(opts ForEachOpts, cb func(Event) bool) error {
	for _, r := range d.readers {
		aborted := false
		err := r.ForEach(opts, func(ev Event) bool {
			if !cb(ev) {
				aborted = true
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
		if aborted {
			return nil
		}
	}
	return nil
}

// ForEachFrom iterates every event at or after fromNs across every segment
// whose time range could contain it, skipping segments that end before
// fromNs entirely.
func (d *DirReader) ForEachFrom(fromNs int64, opts ForEachOpts, cb func(Event) bool) error {
	for _, r := range d.readers {
		if r.Header.LastEventNs < fromNs {
			continue
		}
		aborted := false
		err := r.ForEachFrom(fromNs, opts, func(ev Event) bool {
			if !cb(ev) {
				aborted = true
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
		if aborted {
			return nil
		}
	}
	return nil
}

// Readers exposes the underlying per-segment readers, e.g. for ParallelRead.
func (d *DirReader) Readers() []*Reader { return d.readers }

// AvailableSymbols returns the distinct symbols observed while decoding
// every event in the directory, used by callers that want to validate an
// extractSymbols request against what a dataset actually contains.
func AvailableSymbols(d *DirReader) ([]types.SymbolId, error) {
	seen := make(map[types.SymbolId]struct{})
	err := d.ForEach(DefaultForEachOpts(), func(ev Event) bool {
		seen[ev.Symbol()] = struct{}{}
		return true
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.SymbolId, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
