package segment

import (
	"bufio"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/pierrec/lz4/v4"
)

// WriterConfig configures a Writer, following the teacher's EventLogConfig
// plain-struct-with-DefaultXxx pattern.
type WriterConfig struct {
	Dir             string
	ExchangeId      uint32
	MaxSegmentBytes int64
	SyncMode        bool // fsync after every frame/block, like the teacher's EventLogConfig.SyncMode
	Compression     Compression
	EnableIndex     bool
	IndexInterval   int
	NameFunc        func(seq int) string // optional; default is "seg-%05d.floxlog"

	// Block compression limits.
	MaxBlockEvents int
	MaxBlockBytes  int
}

// DefaultWriterConfig returns sane defaults: 64MiB segments, no compression,
// index every 1000 events, 256-event/1MiB compression blocks.
func DefaultWriterConfig(dir string) WriterConfig {
	return WriterConfig{
		Dir:             dir,
		MaxSegmentBytes: 64 << 20,
		Compression:     CompressionNone,
		EnableIndex:     true,
		IndexInterval:   DefaultIndexInterval,
		MaxBlockEvents:  256,
		MaxBlockBytes:   1 << 20,
	}
}

// WriterStats are monotonic counters across the Writer's lifetime,
// matching the teacher's preference for plain counters over histograms.
type WriterStats struct {
	BytesWritten       atomic.Int64
	EventsWritten      atomic.Int64
	SegmentsClosed     atomic.Int64
	CompressedBytes    atomic.Int64
	UncompressedBytes  atomic.Int64
}

// Writer appends events to a rotating sequence of ".floxlog" segment files.
// Append, Flush and Close serialize on an internal mutex, so concurrent
// callers do not interleave records; the order of their events in the
// segment is the order in which they acquire the lock.
type Writer struct {
	cfg  WriterConfig
	mu   sync.Mutex
	Stats WriterStats

	seq  int
	file *os.File
	bw   *bufio.Writer

	header       SegmentHeader
	bytesWritten int64
	index        []IndexEntry
	sinceIndex   int

	block       []Event
	blockBytes  int
}

// NewWriter opens (and creates if needed) cfg.Dir and starts the first
// segment.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.IndexInterval <= 0 {
		cfg.IndexInterval = DefaultIndexInterval
	}
	if cfg.MaxBlockEvents <= 0 {
		cfg.MaxBlockEvents = 256
	}
	if cfg.MaxBlockBytes <= 0 {
		cfg.MaxBlockBytes = 1 << 20
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("segment: mkdir %s: %w", cfg.Dir, err)
	}
	w := &Writer{cfg: cfg}
	if err := w.rotate(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) segmentName() string {
	if w.cfg.NameFunc != nil {
		return w.cfg.NameFunc(w.seq)
	}
	return fmt.Sprintf("seg-%05d.floxlog", w.seq)
}

func (w *Writer) rotate() error {
	if w.file != nil {
		if err := w.closeCurrent(); err != nil {
			return err
		}
	}
	w.seq++
	path := filepath.Join(w.cfg.Dir, w.segmentName())
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("segment: create %s: %w", path, err)
	}
	w.file = f
	w.bw = bufio.NewWriter(f)
	w.header = SegmentHeader{
		Magic:       SegmentMagic,
		Version:     1,
		ExchangeId:  w.cfg.ExchangeId,
		Compression: w.cfg.Compression,
	}
	if w.cfg.EnableIndex {
		w.header.Flags |= FlagHasIndex
	}
	if w.cfg.Compression != CompressionNone {
		w.header.Flags |= FlagCompressed
	}

	placeholder := make([]byte, SegmentHeaderSize)
	if _, err := w.bw.Write(placeholder); err != nil {
		return fmt.Errorf("segment: write header placeholder: %w", err)
	}
	w.bytesWritten = SegmentHeaderSize
	w.index = w.index[:0]
	w.sinceIndex = 0
	w.block = w.block[:0]
	w.blockBytes = 0
	return nil
}

// Append writes one event, rotating to a new segment first if doing so
// would exceed cfg.MaxSegmentBytes.
func (w *Writer) Append(ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cfg.MaxSegmentBytes > 0 && w.bytesWritten >= w.cfg.MaxSegmentBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	ts := ev.TimestampNs()
	if w.header.EventCount == 0 {
		w.header.FirstEventNs = ts
	}
	w.header.LastEventNs = ts
	w.header.EventCount++

	if w.cfg.Compression == CompressionLZ4 {
		return w.appendCompressed(ev)
	}
	return w.appendFrame(ev)
}

func (w *Writer) appendFrame(ev Event) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	fh := FrameHeader{
		Type:        ev.Kind,
		Size:        uint32(len(payload)),
		Crc32:       crc32.ChecksumIEEE(payload),
		TimestampNs: ev.TimestampNs(),
	}
	hbuf := make([]byte, FrameHeaderSize)
	putFrameHeader(hbuf, fh)

	if err := w.maybeIndex(1); err != nil {
		return err
	}
	if _, err := w.bw.Write(hbuf); err != nil {
		return fmt.Errorf("segment: write frame header: %w", err)
	}
	if _, err := w.bw.Write(payload); err != nil {
		return fmt.Errorf("segment: write frame payload: %w", err)
	}
	n := int64(len(hbuf) + len(payload))
	w.bytesWritten += n
	w.Stats.BytesWritten.Add(n)
	w.Stats.UncompressedBytes.Add(n)
	w.Stats.EventsWritten.Add(1)

	if w.cfg.SyncMode {
		if err := w.flushAndSync(); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) appendCompressed(ev Event) error {
	w.block = append(w.block, ev)
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	w.blockBytes += len(payload) + FrameHeaderSize

	if len(w.block) >= w.cfg.MaxBlockEvents || w.blockBytes >= w.cfg.MaxBlockBytes {
		return w.flushBlock()
	}
	return nil
}

func (w *Writer) flushBlock() error {
	if len(w.block) == 0 {
		return nil
	}
	if err := w.maybeIndex(len(w.block)); err != nil {
		return err
	}

	var raw []byte
	for _, ev := range w.block {
		payload, err := encodeEvent(ev)
		if err != nil {
			return err
		}
		fh := FrameHeader{
			Type:        ev.Kind,
			Size:        uint32(len(payload)),
			Crc32:       crc32.ChecksumIEEE(payload),
			TimestampNs: ev.TimestampNs(),
		}
		hbuf := make([]byte, FrameHeaderSize)
		putFrameHeader(hbuf, fh)
		raw = append(raw, hbuf...)
		raw = append(raw, payload...)
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))
	var compressor lz4.Compressor
	n, err := compressor.CompressBlock(raw, compressed)
	if err != nil {
		return fmt.Errorf("segment: lz4 compress: %w", err)
	}
	if n == 0 {
		// Incompressible input; lz4 returns n==0 in that case. Store raw.
		compressed = raw
		n = len(raw)
	} else {
		compressed = compressed[:n]
	}

	bh := CompressedBlockHeader{
		Magic:          CompressedBlockMagic,
		CompressedSize: uint32(n),
		OriginalSize:   uint32(len(raw)),
		EventCount:     uint32(len(w.block)),
		Crc32:          crc32.ChecksumIEEE(compressed),
	}
	hbuf := make([]byte, CompressedBlockHeaderSize)
	putCompressedBlockHeader(hbuf, bh)

	if _, err := w.bw.Write(hbuf); err != nil {
		return fmt.Errorf("segment: write block header: %w", err)
	}
	if _, err := w.bw.Write(compressed); err != nil {
		return fmt.Errorf("segment: write block payload: %w", err)
	}

	written := int64(len(hbuf) + len(compressed))
	w.bytesWritten += written
	w.Stats.BytesWritten.Add(written)
	w.Stats.CompressedBytes.Add(int64(n))
	w.Stats.UncompressedBytes.Add(int64(len(raw)))
	w.Stats.EventsWritten.Add(int64(len(w.block)))

	w.block = w.block[:0]
	w.blockBytes = 0

	if w.cfg.SyncMode {
		return w.flushAndSync()
	}
	return nil
}

// maybeIndex is called before writing a frame or a compressed block, with
// eventCount the number of events that record carries (1 for a frame, the
// block's event count for a compressed block), so IndexInterval counts
// events rather than records — without this, compressed mode would only
// ever advance the counter once per block regardless of how many events
// the block holds.
func (w *Writer) maybeIndex(eventCount int) error {
	if !w.cfg.EnableIndex {
		return nil
	}
	w.sinceIndex += eventCount
	if w.sinceIndex < w.cfg.IndexInterval {
		return nil
	}
	w.sinceIndex = 0
	w.index = append(w.index, IndexEntry{TimestampNs: w.header.LastEventNs, FileOffset: uint64(w.bytesWritten)})
	return nil
}

func (w *Writer) flushAndSync() error {
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("segment: flush: %w", err)
	}
	return w.file.Sync()
}

// Flush flushes buffered bytes (and any pending compression block) to disk
// without rotating or closing the segment.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cfg.Compression == CompressionLZ4 {
		if err := w.flushBlock(); err != nil {
			return err
		}
	}
	return w.bw.Flush()
}

func (w *Writer) closeCurrent() error {
	if w.cfg.Compression == CompressionLZ4 {
		if err := w.flushBlock(); err != nil {
			return err
		}
	}

	if w.cfg.EnableIndex && len(w.index) > 0 {
		indexOffset := w.bytesWritten
		if err := w.writeIndex(); err != nil {
			return err
		}
		w.header.IndexOffset = uint64(indexOffset)
	}

	w.header.SymbolCount = 0 // symbols are not counted; the field is always written as zero

	hbuf := make([]byte, SegmentHeaderSize)
	putSegmentHeader(hbuf, w.header)

	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("segment: flush before header rewrite: %w", err)
	}
	if _, err := w.file.WriteAt(hbuf, 0); err != nil {
		return fmt.Errorf("segment: rewrite header: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("segment: sync on close: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("segment: close: %w", err)
	}
	w.Stats.SegmentsClosed.Add(1)
	return nil
}

func (w *Writer) writeIndex() error {
	entryBuf := make([]byte, IndexEntrySize*len(w.index))
	for i, e := range w.index {
		off := i * IndexEntrySize
		putIndexEntry(entryBuf[off:off+IndexEntrySize], e)
	}
	ih := SegmentIndexHeader{
		Magic:      IndexMagic,
		Version:    1,
		Interval:   uint32(w.cfg.IndexInterval),
		EntryCount: uint32(len(w.index)),
		Crc32:      crc32.ChecksumIEEE(entryBuf),
		FirstTs:    w.header.FirstEventNs,
		LastTs:     w.header.LastEventNs,
	}
	ihbuf := make([]byte, SegmentIndexHeaderSize)
	putSegmentIndexHeader(ihbuf, ih)

	if _, err := w.bw.Write(ihbuf); err != nil {
		return fmt.Errorf("segment: write index header: %w", err)
	}
	if _, err := w.bw.Write(entryBuf); err != nil {
		return fmt.Errorf("segment: write index entries: %w", err)
	}
	return nil
}

// Close flushes and finalizes the current segment.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeCurrent()
}
