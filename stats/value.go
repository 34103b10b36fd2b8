package stats

import (
	"bytes"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

type Kind int

const (
	Unknown Kind = iota
	Long
	Double
	Decimal
	String
	Binary
)

func (k Kind) String() string {
	switch k {
	case Long:
		return "long"
	case Double:
		return "double"
	case Decimal:
		return "decimal"
	case String:
		return "string"
	case Binary:
		return "binary"
	}
	return "unknown"
}

// Value is a single scalar in a column's value domain. Compare orders two
// values of the same kind; Float projects the value onto the number line
// used for density math and positional interpolation.
type Value interface {
	Kind() Kind
	Compare(other Value) int
	Float() float64
}

type LongValue int64

func (v LongValue) Kind() Kind { return Long }

func (v LongValue) Compare(other Value) int {
	o := other.(LongValue)
	if v < o {
		return -1
	}
	if v > o {
		return 1
	}
	return 0
}

func (v LongValue) Float() float64 { return float64(v) }

type DoubleValue float64

func (v DoubleValue) Kind() Kind { return Double }

func (v DoubleValue) Compare(other Value) int {
	o := other.(DoubleValue)
	if v < o {
		return -1
	}
	if v > o {
		return 1
	}
	return 0
}

func (v DoubleValue) Float() float64 { return float64(v) }

type DecimalValue struct {
	Dec decimal.Decimal
}

func NewDecimalValue(s string) DecimalValue {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return DecimalValue{}
	}
	return DecimalValue{Dec: d}
}

func (v DecimalValue) Kind() Kind { return Decimal }

func (v DecimalValue) Compare(other Value) int {
	return v.Dec.Cmp(other.(DecimalValue).Dec)
}

func (v DecimalValue) Float() float64 { return v.Dec.InexactFloat64() }

type StringValue string

func (v StringValue) Kind() Kind { return String }

func (v StringValue) Compare(other Value) int {
	return strings.Compare(string(v), string(other.(StringValue)))
}

func (v StringValue) Float() float64 { return prefixFloat([]byte(v)) }

type BinaryValue []byte

func (v BinaryValue) Kind() Kind { return Binary }

func (v BinaryValue) Compare(other Value) int {
	return bytes.Compare(v, other.(BinaryValue))
}

func (v BinaryValue) Float() float64 { return prefixFloat(v) }

// FromFloat maps a point on the projection line back into the value domain
// of the given kind. For string/binary kinds this reconstructs the byte
// prefix the projection was derived from.
func FromFloat(k Kind, f float64) Value {
	switch k {
	case Long:
		return LongValue(int64(f))
	case Double:
		return DoubleValue(f)
	case Decimal:
		return DecimalValue{Dec: decimal.NewFromFloat(f)}
	case String:
		return StringValue(prefixBytes(f))
	case Binary:
		return BinaryValue(prefixBytes(f))
	}
	return nil
}

const prefixLen = 8

// prefixFloat projects the first eight bytes base-256 into [0, 1). The
// projection is order-preserving on the prefix, which is all the linear
// interpolation needs.
func prefixFloat(b []byte) float64 {
	f := 0.0
	scale := 1.0
	for i := 0; i < prefixLen; i++ {
		scale /= 256.0
		if i < len(b) {
			f += float64(b[i]) * scale
		}
	}
	return f
}

func prefixBytes(f float64) []byte {
	if f <= 0 {
		return nil
	}
	if f >= 1 {
		f = math.Nextafter(1, 0)
	}
	buf := make([]byte, 0, prefixLen)
	for i := 0; i < prefixLen; i++ {
		f *= 256.0
		d := int(f)
		if d > 255 {
			d = 255
		}
		f -= float64(d)
		buf = append(buf, byte(d))
	}
	for len(buf) > 0 && buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return buf
}
