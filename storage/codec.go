package storage

import (
	"encoding/binary"
	"errors"
	"math"

	"partstats/stats"
)

// Record encoding: a version byte, the kind, the column name, the two
// optional bounds, the counters, and the raw sketch bytes. Bounds are
// rendered per kind (varint for longs, IEEE bits for doubles, text for
// decimals, raw bytes otherwise) so decoding can rebuild a typed value.

const codecVersion = 1

var ErrBadRecord = errors.New("storage: undecodable stats record")

func EncodeColumnStats(cs *stats.ColumnStats) []byte {
	buf := make([]byte, 0, 64+len(cs.Sketch))
	buf = append(buf, codecVersion, byte(cs.Kind))
	buf = appendString(buf, cs.Column)
	buf = appendValue(buf, cs.Kind, cs.Low)
	buf = appendValue(buf, cs.Kind, cs.High)
	buf = binary.AppendVarint(buf, cs.NullCount)
	buf = binary.AppendVarint(buf, cs.NDV)
	buf = binary.AppendUvarint(buf, uint64(len(cs.Sketch)))
	buf = append(buf, cs.Sketch...)
	return buf
}

func DecodeColumnStats(buf []byte) (*stats.ColumnStats, error) {
	if len(buf) < 2 || buf[0] != codecVersion {
		return nil, ErrBadRecord
	}
	kind := stats.Kind(buf[1])
	rest := buf[2:]

	column, rest := readString(rest)
	if rest == nil {
		return nil, ErrBadRecord
	}
	low, rest, err := readValue(rest, kind)
	if err != nil {
		return nil, err
	}
	high, rest, err := readValue(rest, kind)
	if err != nil {
		return nil, err
	}
	nulls, n := binary.Varint(rest)
	if n <= 0 {
		return nil, ErrBadRecord
	}
	rest = rest[n:]
	ndv, n := binary.Varint(rest)
	if n <= 0 {
		return nil, ErrBadRecord
	}
	rest = rest[n:]
	sketchLen, n := binary.Uvarint(rest)
	if n <= 0 || int(sketchLen) > len(rest)-n {
		return nil, ErrBadRecord
	}
	var sketchBytes []byte
	if sketchLen > 0 {
		sketchBytes = append([]byte(nil), rest[n:n+int(sketchLen)]...)
	}

	return &stats.ColumnStats{
		Column:    column,
		Kind:      kind,
		Low:       low,
		High:      high,
		NullCount: nulls,
		NDV:       ndv,
		Sketch:    sketchBytes,
	}, nil
}

func appendValue(buf []byte, kind stats.Kind, v stats.Value) []byte {
	if v == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	switch kind {
	case stats.Long:
		return binary.AppendVarint(buf, int64(v.(stats.LongValue)))
	case stats.Double:
		var scratch [8]byte
		binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(float64(v.(stats.DoubleValue))))
		return append(buf, scratch[:]...)
	case stats.Decimal:
		return appendString(buf, v.(stats.DecimalValue).Dec.String())
	case stats.String:
		return appendString(buf, string(v.(stats.StringValue)))
	default:
		return appendString(buf, string(v.(stats.BinaryValue)))
	}
}

func readValue(buf []byte, kind stats.Kind) (stats.Value, []byte, error) {
	if len(buf) == 0 {
		return nil, nil, ErrBadRecord
	}
	present := buf[0] == 1
	rest := buf[1:]
	if !present {
		return nil, rest, nil
	}
	switch kind {
	case stats.Long:
		value, n := binary.Varint(rest)
		if n <= 0 {
			return nil, nil, ErrBadRecord
		}
		return stats.LongValue(value), rest[n:], nil
	case stats.Double:
		if len(rest) < 8 {
			return nil, nil, ErrBadRecord
		}
		value := math.Float64frombits(binary.LittleEndian.Uint64(rest[:8]))
		return stats.DoubleValue(value), rest[8:], nil
	case stats.Decimal:
		text, remaining := readString(rest)
		if remaining == nil {
			return nil, nil, ErrBadRecord
		}
		return stats.NewDecimalValue(text), remaining, nil
	case stats.String:
		text, remaining := readString(rest)
		if remaining == nil {
			return nil, nil, ErrBadRecord
		}
		return stats.StringValue(text), remaining, nil
	default:
		raw, remaining := readString(rest)
		if remaining == nil {
			return nil, nil, ErrBadRecord
		}
		return stats.BinaryValue(raw), remaining, nil
	}
}
