// Package registry implements the SymbolRegistry collaborator (spec §6): a
// SymbolId -> SymbolInfo lookup with a bit-exact little-endian binary
// serialization format, magic "SREG".
//
// Design Decisions (following the teacher's internal/events binary-format
// conventions):
//
//  1. Fixed binary layout: header (magic, version, count) followed by
//     fixed-width per-symbol records, written with encoding/binary rather
//     than gob, because the format must be readable by the version number
//     alone with no Go-specific decoding.
//  2. Two on-disk versions: version 1 predates tickSize; version 2 adds it.
//     A version-1 file loads with every tickSize defaulting to zero, which
//     callers must treat as "unknown" (SymbolInfo.TickSize == 0).
package registry

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/rishav/floxcore/internal/decimal"
	"github.com/rishav/floxcore/internal/types"
)

// Magic is the 4-byte file signature, "SREG" read little-endian.
const Magic uint32 = 0x47455253

const (
	versionWithoutTickSize uint32 = 1
	versionWithTickSize    uint32 = 2
	currentVersion                = versionWithTickSize
)

// SymbolInfo is the registry's resolved record for one SymbolId.
type SymbolInfo struct {
	SymbolId      types.SymbolId
	ExchangeId    uint32
	Symbol        string
	TickSize      decimal.Price
	Instrument    string
	BaseDecimals  uint8
	QuoteDecimals uint8
}

// Registry resolves SymbolId -> SymbolInfo. It is built once (via New or
// Load) and treated as read-only by consumers; Register/Remove exist for
// building a registry before serializing it out.
type Registry struct {
	byID map[types.SymbolId]SymbolInfo
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{byID: make(map[types.SymbolId]SymbolInfo)}
}

// Register adds or replaces info for info.SymbolId.
func (r *Registry) Register(info SymbolInfo) {
	r.byID[info.SymbolId] = info
}

// Remove deletes a symbol's entry, if present.
func (r *Registry) Remove(id types.SymbolId) {
	delete(r.byID, id)
}

// Lookup resolves a SymbolId to its SymbolInfo.
func (r *Registry) Lookup(id types.SymbolId) (SymbolInfo, bool) {
	info, ok := r.byID[id]
	return info, ok
}

// Len returns the number of registered symbols.
func (r *Registry) Len() int { return len(r.byID) }

// ForEach iterates every registered symbol in unspecified order.
func (r *Registry) ForEach(fn func(SymbolInfo)) {
	for _, info := range r.byID {
		fn(info)
	}
}

// WriteTo serializes the registry in the current (version 2) "SREG" format:
// magic, version, count, then per-symbol records each laid out as
//
//	symbolID(4) exchangeID(4) tickSize(8) baseDecimals(1) quoteDecimals(1)
//	symbolLen(2) symbol[symbolLen] instrumentLen(2) instrument[instrumentLen]
func (r *Registry) WriteTo(w io.Writer) error {
	bw := bufio.NewWriter(w)

	var header [12]byte
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], currentVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(r.byID)))
	if _, err := bw.Write(header[:]); err != nil {
		return fmt.Errorf("registry: write header: %w", err)
	}

	for _, info := range r.byID {
		if err := writeRecord(bw, info); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeRecord(bw *bufio.Writer, info SymbolInfo) error {
	var fixed [18]byte
	binary.LittleEndian.PutUint32(fixed[0:4], uint32(info.SymbolId))
	binary.LittleEndian.PutUint32(fixed[4:8], info.ExchangeId)
	binary.LittleEndian.PutUint64(fixed[8:16], uint64(info.TickSize))
	fixed[16] = info.BaseDecimals
	fixed[17] = info.QuoteDecimals
	if _, err := bw.Write(fixed[:]); err != nil {
		return fmt.Errorf("registry: write record: %w", err)
	}
	if err := writeString(bw, info.Symbol); err != nil {
		return err
	}
	return writeString(bw, info.Instrument)
}

func writeString(bw *bufio.Writer, s string) error {
	if len(s) > 0xFFFF {
		return fmt.Errorf("registry: string %q exceeds max length", s)
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(s)))
	if _, err := bw.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("registry: write string length: %w", err)
	}
	if _, err := bw.WriteString(s); err != nil {
		return fmt.Errorf("registry: write string: %w", err)
	}
	return nil
}

// Load reads a "SREG" registry file of either version 1 or 2, returning an
// error for a bad magic, an unsupported version, or a truncated record.
func Load(r io.Reader) (*Registry, error) {
	br := bufio.NewReader(r)

	var header [12]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, fmt.Errorf("registry: read header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != Magic {
		return nil, fmt.Errorf("registry: bad magic %#x, want %#x", magic, Magic)
	}
	version := binary.LittleEndian.Uint32(header[4:8])
	if version != versionWithoutTickSize && version != versionWithTickSize {
		return nil, fmt.Errorf("registry: unsupported version %d", version)
	}
	count := binary.LittleEndian.Uint32(header[8:12])

	reg := New()
	for i := uint32(0); i < count; i++ {
		info, err := readRecord(br, version)
		if err != nil {
			return nil, fmt.Errorf("registry: record %d: %w", i, err)
		}
		reg.Register(info)
	}
	return reg, nil
}

func readRecord(br *bufio.Reader, version uint32) (SymbolInfo, error) {
	var info SymbolInfo
	if version == versionWithTickSize {
		var fixed [18]byte
		if _, err := io.ReadFull(br, fixed[:]); err != nil {
			return info, fmt.Errorf("read fixed fields: %w", err)
		}
		info.SymbolId = types.SymbolId(binary.LittleEndian.Uint32(fixed[0:4]))
		info.ExchangeId = binary.LittleEndian.Uint32(fixed[4:8])
		info.TickSize = decimal.Price(binary.LittleEndian.Uint64(fixed[8:16]))
		info.BaseDecimals = fixed[16]
		info.QuoteDecimals = fixed[17]
	} else {
		var fixed [10]byte
		if _, err := io.ReadFull(br, fixed[:]); err != nil {
			return info, fmt.Errorf("read fixed fields: %w", err)
		}
		info.SymbolId = types.SymbolId(binary.LittleEndian.Uint32(fixed[0:4]))
		info.ExchangeId = binary.LittleEndian.Uint32(fixed[4:8])
		info.BaseDecimals = fixed[8]
		info.QuoteDecimals = fixed[9]
	}

	symbol, err := readString(br)
	if err != nil {
		return info, fmt.Errorf("read symbol: %w", err)
	}
	info.Symbol = symbol

	instrument, err := readString(br)
	if err != nil {
		return info, fmt.Errorf("read instrument: %w", err)
	}
	info.Instrument = instrument

	return info, nil
}

func readString(br *bufio.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint16(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// LoadFile opens path and loads a registry from it.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("registry: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// WriteFile serializes the registry to path, creating or truncating it.
func (r *Registry) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("registry: create %s: %w", path, err)
	}
	defer f.Close()
	if err := r.WriteTo(f); err != nil {
		return err
	}
	return f.Sync()
}
