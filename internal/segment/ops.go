// ops.go implements the offline segment transforms of spec §4.10: merge,
// split, export, recompress, filter, extractSymbols, extractTimeRange. Every
// transform preserves the invariant that its output segments are
// internally timestamp-sorted, since every transform both reads input in
// timestamp order and writes output via a single Writer in the order
// events are handed to it.
package segment

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/rishav/floxcore/internal/types"
)

// Merge k-way merges every segment under srcDir into a single timestamp-
// sorted output dataset under dstDir.
func Merge(srcDir, dstDir string, cfg WriterConfig) error {
	dr, err := OpenDir(srcDir)
	if err != nil {
		return err
	}
	cfg.Dir = dstDir
	w, err := NewWriter(cfg)
	if err != nil {
		return err
	}

	merged, err := mergeToSlice(dr.Readers())
	if err != nil {
		w.Close()
		return err
	}
	for _, ev := range merged {
		if err := w.Append(ev); err != nil {
			w.Close()
			return fmt.Errorf("segment: merge append: %w", err)
		}
	}
	return w.Close()
}

func mergeToSlice(readers []*Reader) ([]Event, error) {
	var out []Event
	err := parallelMerged(readers, DefaultForEachOpts(), DefaultParallelBuffer, func(ev Event) bool {
		out = append(out, ev)
		return true
	})
	return out, err
}

// SplitPolicy selects how Split partitions a dataset into multiple output
// segments beyond the writer's own MaxSegmentBytes rotation.
type SplitPolicy struct {
	MaxEventsPerSegment int
	BySymbol            bool
}

// Split reads every segment under srcDir and writes separate output
// segments under dstDir, partitioned by policy.
func Split(srcDir, dstDir string, policy SplitPolicy, cfg WriterConfig) error {
	dr, err := OpenDir(srcDir)
	if err != nil {
		return err
	}

	if policy.BySymbol {
		return splitBySymbol(dr, dstDir, cfg)
	}
	return splitByCount(dr, dstDir, policy.MaxEventsPerSegment, cfg)
}

func splitByCount(dr *DirReader, dstDir string, maxEvents int, cfg WriterConfig) error {
	if maxEvents <= 0 {
		maxEvents = DefaultIndexInterval
	}
	cfg.Dir = dstDir
	w, err := NewWriter(cfg)
	if err != nil {
		return err
	}
	count := 0
	appendErr := error(nil)
	err = dr.ForEach(DefaultForEachOpts(), func(ev Event) bool {
		if count >= maxEvents {
			if closeErr := w.Close(); closeErr != nil {
				appendErr = closeErr
				return false
			}
			w, err = NewWriter(cfg)
			if err != nil {
				appendErr = err
				return false
			}
			count = 0
		}
		if err := w.Append(ev); err != nil {
			appendErr = err
			return false
		}
		count++
		return true
	})
	if err != nil {
		return err
	}
	if appendErr != nil {
		return appendErr
	}
	return w.Close()
}

func splitBySymbol(dr *DirReader, dstDir string, cfg WriterConfig) error {
	writers := make(map[types.SymbolId]*Writer)
	defer func() {
		for _, w := range writers {
			w.Close()
		}
	}()

	var appendErr error
	err := dr.ForEach(DefaultForEachOpts(), func(ev Event) bool {
		sym := ev.Symbol()
		w, ok := writers[sym]
		if !ok {
			symCfg := cfg
			symCfg.Dir = fmt.Sprintf("%s/symbol-%d", dstDir, sym)
			var err error
			w, err = NewWriter(symCfg)
			if err != nil {
				appendErr = err
				return false
			}
			writers[sym] = w
		}
		if err := w.Append(ev); err != nil {
			appendErr = err
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return appendErr
}

// ExportFormat selects Export's output encoding.
type ExportFormat int

const (
	ExportCSV ExportFormat = iota
	ExportJSON
	ExportJSONLines
	ExportBinary
)

// Export writes every event in dr (post opts filtering) in the requested
// format. CSV and JSON exports write the file dstPath. ExportBinary treats
// dstPath as a directory and reuses the segment Writer to write
// dstPath/export.floxlog, itself a valid ".floxlog" file.
func Export(dr *DirReader, opts ForEachOpts, dstPath string, format ExportFormat) error {
	switch format {
	case ExportBinary:
		return exportBinary(dr, opts, dstPath)
	case ExportCSV:
		return exportCSV(dr, opts, dstPath)
	case ExportJSON:
		return exportJSON(dr, opts, dstPath, false)
	case ExportJSONLines:
		return exportJSON(dr, opts, dstPath, true)
	default:
		return fmt.Errorf("segment: unknown export format %d", format)
	}
}

func exportBinary(dr *DirReader, opts ForEachOpts, dstPath string) error {
	cfg := DefaultWriterConfig(dstPath)
	cfg.NameFunc = func(int) string { return "export.floxlog" }
	w, err := NewWriter(cfg)
	if err != nil {
		return err
	}
	var appendErr error
	err = dr.ForEach(opts, func(ev Event) bool {
		if err := w.Append(ev); err != nil {
			appendErr = err
			return false
		}
		return true
	})
	if err != nil {
		w.Close()
		return err
	}
	if appendErr != nil {
		w.Close()
		return appendErr
	}
	return w.Close()
}

func exportCSV(dr *DirReader, opts ForEachOpts, dstPath string) error {
	f, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("segment: create %s: %w", dstPath, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"kind", "symbol", "timestamp_ns", "price", "quantity", "is_buy"}); err != nil {
		return err
	}

	var writeErr error
	err = dr.ForEach(opts, func(ev Event) bool {
		row := csvRow(ev)
		if err := cw.Write(row); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(ev Event) []string {
	if ev.Kind == FrameTypeTrade {
		t := ev.Trade
		return []string{
			"trade",
			strconv.FormatUint(uint64(t.Symbol), 10),
			strconv.FormatInt(t.ExchangeTsNs, 10),
			strconv.FormatInt(int64(t.Price), 10),
			strconv.FormatInt(int64(t.Quantity), 10),
			strconv.FormatBool(t.IsBuy),
		}
	}
	b := ev.Book
	return []string{
		"book",
		strconv.FormatUint(uint64(b.Symbol), 10),
		strconv.FormatInt(b.ExchangeTsNs, 10),
		"", "", "",
	}
}

func exportJSON(dr *DirReader, opts ForEachOpts, dstPath string, lines bool) error {
	f, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("segment: create %s: %w", dstPath, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if !lines {
		if _, err := f.WriteString("[\n"); err != nil {
			return err
		}
	}
	first := true
	var writeErr error
	err = dr.ForEach(opts, func(ev Event) bool {
		if !lines && !first {
			if _, err := f.WriteString(","); err != nil {
				writeErr = err
				return false
			}
		}
		first = false
		if err := enc.Encode(ev); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}
	if !lines {
		if _, err := f.WriteString("]\n"); err != nil {
			return err
		}
	}
	return nil
}

// Recompress rewrites every segment under srcDir into dstDir using the
// compression scheme in cfg, preserving event order.
func Recompress(srcDir, dstDir string, cfg WriterConfig) error {
	dr, err := OpenDir(srcDir)
	if err != nil {
		return err
	}
	cfg.Dir = dstDir
	w, err := NewWriter(cfg)
	if err != nil {
		return err
	}
	var appendErr error
	err = dr.ForEach(DefaultForEachOpts(), func(ev Event) bool {
		if err := w.Append(ev); err != nil {
			appendErr = err
			return false
		}
		return true
	})
	if err != nil {
		w.Close()
		return err
	}
	if appendErr != nil {
		w.Close()
		return appendErr
	}
	return w.Close()
}

// Filter writes every event in srcDir passing predicate to dstDir.
func Filter(srcDir, dstDir string, predicate func(Event) bool, cfg WriterConfig) error {
	dr, err := OpenDir(srcDir)
	if err != nil {
		return err
	}
	cfg.Dir = dstDir
	w, err := NewWriter(cfg)
	if err != nil {
		return err
	}
	var appendErr error
	err = dr.ForEach(DefaultForEachOpts(), func(ev Event) bool {
		if !predicate(ev) {
			return true
		}
		if err := w.Append(ev); err != nil {
			appendErr = err
			return false
		}
		return true
	})
	if err != nil {
		w.Close()
		return err
	}
	if appendErr != nil {
		w.Close()
		return appendErr
	}
	return w.Close()
}

// ExtractSymbols writes only the events for the given symbols to dstDir.
func ExtractSymbols(srcDir, dstDir string, symbols []types.SymbolId, cfg WriterConfig) error {
	set := newSymbolSet(symbols)
	return Filter(srcDir, dstDir, func(ev Event) bool { return set.allows(ev.Symbol()) }, cfg)
}

// ExtractTimeRange writes only events with fromNs <= ts <= toNs (toNs==0
// means no upper bound) to dstDir.
func ExtractTimeRange(srcDir, dstDir string, fromNs, toNs int64, cfg WriterConfig) error {
	return Filter(srcDir, dstDir, func(ev Event) bool {
		ts := ev.TimestampNs()
		if ts < fromNs {
			return false
		}
		if toNs != 0 && ts > toNs {
			return false
		}
		return true
	}, cfg)
}
