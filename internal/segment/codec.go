package segment

import (
	"encoding/binary"
	"fmt"

	"github.com/rishav/floxcore/internal/decimal"
	"github.com/rishav/floxcore/internal/types"
)

// Event is the unified payload a Frame carries: exactly one of Trade or
// Book is populated, selected by Kind.
type Event struct {
	Kind  FrameType
	Trade types.Trade
	Book  types.BookUpdate
}

// TimestampNs returns the event's exchange timestamp, used for ordering.
func (e Event) TimestampNs() int64 {
	if e.Kind == FrameTypeTrade {
		return e.Trade.ExchangeTsNs
	}
	return e.Book.ExchangeTsNs
}

// Symbol returns the event's symbol, used for filtering.
func (e Event) Symbol() types.SymbolId {
	if e.Kind == FrameTypeTrade {
		return e.Trade.Symbol
	}
	return e.Book.Symbol
}

func encodeEvent(ev Event) ([]byte, error) {
	switch ev.Kind {
	case FrameTypeTrade:
		return encodeTrade(ev.Trade), nil
	case FrameTypeBookUpdate:
		return encodeBookUpdate(ev.Book), nil
	default:
		return nil, fmt.Errorf("segment: unknown frame type %d", ev.Kind)
	}
}

func decodeEvent(kind FrameType, buf []byte) (Event, error) {
	switch kind {
	case FrameTypeTrade:
		t, err := decodeTrade(buf)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: FrameTypeTrade, Trade: t}, nil
	case FrameTypeBookUpdate:
		b, err := decodeBookUpdate(buf)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: FrameTypeBookUpdate, Book: b}, nil
	default:
		return Event{}, fmt.Errorf("segment: unknown frame type %d", kind)
	}
}

func encodeTrade(t types.Trade) []byte {
	buf := make([]byte, TradeRecordSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(t.Symbol))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(t.Price))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(t.Quantity))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(t.ExchangeTsNs))
	if t.IsBuy {
		buf[32] = 1
	}
	return buf
}

func decodeTrade(buf []byte) (types.Trade, error) {
	if len(buf) < TradeRecordSize {
		return types.Trade{}, fmt.Errorf("segment: trade record too short: %d bytes", len(buf))
	}
	return types.Trade{
		Symbol:       types.SymbolId(binary.LittleEndian.Uint32(buf[0:4])),
		Price:        decimal.Price(binary.LittleEndian.Uint64(buf[8:16])),
		Quantity:     decimal.Quantity(binary.LittleEndian.Uint64(buf[16:24])),
		ExchangeTsNs: int64(binary.LittleEndian.Uint64(buf[24:32])),
		IsBuy:        buf[32] != 0,
	}, nil
}

func encodeBookUpdate(b types.BookUpdate) []byte {
	buf := make([]byte, BookRecordHeaderSize+len(b.Bids)*BookLevelRecordSize+len(b.Asks)*BookLevelRecordSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(b.Symbol))
	buf[4] = uint8(b.Kind)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(b.Bids)))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(b.Asks)))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(b.ExchangeTsNs))

	off := BookRecordHeaderSize
	for _, lvl := range b.Bids {
		encodeLevel(buf[off:off+BookLevelRecordSize], lvl)
		off += BookLevelRecordSize
	}
	for _, lvl := range b.Asks {
		encodeLevel(buf[off:off+BookLevelRecordSize], lvl)
		off += BookLevelRecordSize
	}
	return buf
}

func encodeLevel(buf []byte, lvl types.BookLevel) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(lvl.Price))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(lvl.Quantity))
}

func decodeBookUpdate(buf []byte) (types.BookUpdate, error) {
	if len(buf) < BookRecordHeaderSize {
		return types.BookUpdate{}, fmt.Errorf("segment: book record header too short: %d bytes", len(buf))
	}
	symbol := types.SymbolId(binary.LittleEndian.Uint32(buf[0:4]))
	kind := types.BookUpdateKind(buf[4])
	bidCount := binary.LittleEndian.Uint32(buf[8:12])
	askCount := binary.LittleEndian.Uint32(buf[12:16])
	ts := int64(binary.LittleEndian.Uint64(buf[16:24]))

	want := BookRecordHeaderSize + int(bidCount)*BookLevelRecordSize + int(askCount)*BookLevelRecordSize
	if len(buf) < want {
		return types.BookUpdate{}, fmt.Errorf("segment: book record truncated: have %d want %d", len(buf), want)
	}

	off := BookRecordHeaderSize
	bids := make([]types.BookLevel, bidCount)
	for i := range bids {
		bids[i] = decodeLevel(buf[off : off+BookLevelRecordSize])
		off += BookLevelRecordSize
	}
	asks := make([]types.BookLevel, askCount)
	for i := range asks {
		asks[i] = decodeLevel(buf[off : off+BookLevelRecordSize])
		off += BookLevelRecordSize
	}

	return types.BookUpdate{
		Symbol:       symbol,
		Kind:         kind,
		Bids:         bids,
		Asks:         asks,
		ExchangeTsNs: ts,
	}, nil
}

func decodeLevel(buf []byte) types.BookLevel {
	return types.BookLevel{
		Price:    decimal.Price(binary.LittleEndian.Uint64(buf[0:8])),
		Quantity: decimal.Quantity(binary.LittleEndian.Uint64(buf[8:16])),
	}
}

func putSegmentHeader(buf []byte, h SegmentHeader) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.Flags))
	binary.LittleEndian.PutUint32(buf[12:16], h.ExchangeId)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.CreatedNs))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.FirstEventNs))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.LastEventNs))
	binary.LittleEndian.PutUint64(buf[40:48], h.EventCount)
	binary.LittleEndian.PutUint32(buf[48:52], h.SymbolCount)
	binary.LittleEndian.PutUint64(buf[52:60], h.IndexOffset)
	binary.LittleEndian.PutUint32(buf[60:64], uint32(h.Compression))
}

func getSegmentHeader(buf []byte) SegmentHeader {
	return SegmentHeader{
		Magic:        binary.LittleEndian.Uint32(buf[0:4]),
		Version:      binary.LittleEndian.Uint32(buf[4:8]),
		Flags:        SegmentFlags(binary.LittleEndian.Uint32(buf[8:12])),
		ExchangeId:   binary.LittleEndian.Uint32(buf[12:16]),
		CreatedNs:    int64(binary.LittleEndian.Uint64(buf[16:24])),
		FirstEventNs: int64(binary.LittleEndian.Uint64(buf[24:32])),
		LastEventNs:  int64(binary.LittleEndian.Uint64(buf[32:40])),
		EventCount:   binary.LittleEndian.Uint64(buf[40:48]),
		SymbolCount:  binary.LittleEndian.Uint32(buf[48:52]),
		IndexOffset:  binary.LittleEndian.Uint64(buf[52:60]),
		Compression:  Compression(binary.LittleEndian.Uint32(buf[60:64])),
	}
}

func putFrameHeader(buf []byte, h FrameHeader) {
	buf[0] = uint8(h.Type)
	binary.LittleEndian.PutUint32(buf[4:8], h.Size)
	binary.LittleEndian.PutUint32(buf[8:12], h.Crc32)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.TimestampNs))
}

func getFrameHeader(buf []byte) FrameHeader {
	return FrameHeader{
		Type:        FrameType(buf[0]),
		Size:        binary.LittleEndian.Uint32(buf[4:8]),
		Crc32:       binary.LittleEndian.Uint32(buf[8:12]),
		TimestampNs: int64(binary.LittleEndian.Uint64(buf[16:24])),
	}
}

func putCompressedBlockHeader(buf []byte, h CompressedBlockHeader) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.CompressedSize)
	binary.LittleEndian.PutUint32(buf[8:12], h.OriginalSize)
	binary.LittleEndian.PutUint32(buf[12:16], h.EventCount)
	binary.LittleEndian.PutUint32(buf[16:20], h.Flags)
	binary.LittleEndian.PutUint32(buf[20:24], h.Crc32)
}

func getCompressedBlockHeader(buf []byte) CompressedBlockHeader {
	return CompressedBlockHeader{
		Magic:          binary.LittleEndian.Uint32(buf[0:4]),
		CompressedSize: binary.LittleEndian.Uint32(buf[4:8]),
		OriginalSize:   binary.LittleEndian.Uint32(buf[8:12]),
		EventCount:     binary.LittleEndian.Uint32(buf[12:16]),
		Flags:          binary.LittleEndian.Uint32(buf[16:20]),
		Crc32:          binary.LittleEndian.Uint32(buf[20:24]),
	}
}

func putSegmentIndexHeader(buf []byte, h SegmentIndexHeader) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.Interval)
	binary.LittleEndian.PutUint32(buf[12:16], h.EntryCount)
	binary.LittleEndian.PutUint32(buf[16:20], h.Crc32)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.FirstTs))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.LastTs))
}

func getSegmentIndexHeader(buf []byte) SegmentIndexHeader {
	return SegmentIndexHeader{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		Version:    binary.LittleEndian.Uint32(buf[4:8]),
		Interval:   binary.LittleEndian.Uint32(buf[8:12]),
		EntryCount: binary.LittleEndian.Uint32(buf[12:16]),
		Crc32:      binary.LittleEndian.Uint32(buf[16:20]),
		FirstTs:    int64(binary.LittleEndian.Uint64(buf[24:32])),
		LastTs:     int64(binary.LittleEndian.Uint64(buf[32:40])),
	}
}

func putIndexEntry(buf []byte, e IndexEntry) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.TimestampNs))
	binary.LittleEndian.PutUint64(buf[8:16], e.FileOffset)
}

func getIndexEntry(buf []byte) IndexEntry {
	return IndexEntry{
		TimestampNs: int64(binary.LittleEndian.Uint64(buf[0:8])),
		FileOffset:  binary.LittleEndian.Uint64(buf[8:16]),
	}
}
