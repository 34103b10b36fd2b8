package sketch

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"
)

const (
	// DefaultNumVectors is the bitvector count used when callers have no
	// reason to pick another sketch resolution.
	DefaultNumVectors = 16

	// phi is the Flajolet-Martin correction constant.
	phi = 0.77351

	maxBitIndex = 63

	magicByte = 0xfa
)

// FMSketch estimates the number of distinct values added to it using the
// Flajolet-Martin construction: each of numVectors bitvectors records, per
// value, the position of the lowest set bit of an independently seeded
// hash. Two sketches merge iff they carry the same number of bitvectors.
type FMSketch struct {
	vectors []*roaring.Bitmap
}

func New(numVectors int) *FMSketch {
	if numVectors <= 0 {
		numVectors = DefaultNumVectors
	}
	vectors := make([]*roaring.Bitmap, numVectors)
	for i := range vectors {
		vectors[i] = roaring.New()
	}
	return &FMSketch{vectors: vectors}
}

func (s *FMSketch) NumVectors() int {
	return len(s.vectors)
}

func (s *FMSketch) Add(value []byte) {
	var seed [8]byte
	for i, vector := range s.vectors {
		binary.LittleEndian.PutUint64(seed[:], uint64(i))
		digest := xxhash.New()
		_, _ = digest.Write(seed[:])
		_, _ = digest.Write(value)
		index := bits.TrailingZeros64(digest.Sum64())
		if index > maxBitIndex {
			index = maxBitIndex
		}
		vector.Add(uint32(index))
	}
}

func (s *FMSketch) AddString(value string) {
	s.Add([]byte(value))
}

func (s *FMSketch) CanMerge(other Mergeable) bool {
	o, ok := other.(*FMSketch)
	return ok && len(o.vectors) == len(s.vectors)
}

func (s *FMSketch) Merge(other Mergeable) error {
	o, ok := other.(*FMSketch)
	if !ok || len(o.vectors) != len(s.vectors) {
		return ErrIncompatible
	}
	for i, vector := range s.vectors {
		vector.Or(o.vectors[i])
	}
	return nil
}

// Estimate averages, over all bitvectors, the position of the lowest unset
// bit and returns 2^avg scaled by the FM correction constant.
func (s *FMSketch) Estimate() int64 {
	if len(s.vectors) == 0 {
		return 0
	}
	total := 0
	empty := true
	for _, vector := range s.vectors {
		if !vector.IsEmpty() {
			empty = false
		}
		index := 0
		for index <= maxBitIndex && vector.Contains(uint32(index)) {
			index++
		}
		total += index
	}
	if empty {
		return 0
	}
	avg := float64(total) / float64(len(s.vectors))
	return int64(math.Pow(2, avg) / phi)
}

func (s *FMSketch) Empty() Mergeable {
	return New(len(s.vectors))
}

// MarshalBinary encodes the sketch as a magic byte, the vector count, and
// one length-prefixed roaring serialization per bitvector.
func (s *FMSketch) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(magicByte)
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], uint32(len(s.vectors)))
	buf.Write(scratch[:])
	for _, vector := range s.vectors {
		vectorBytes, err := vector.ToBytes()
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(scratch[:], uint32(len(vectorBytes)))
		buf.Write(scratch[:])
		buf.Write(vectorBytes)
	}
	return buf.Bytes(), nil
}

// Decode parses a sketch produced by MarshalBinary.
func Decode(buf []byte) (*FMSketch, error) {
	if len(buf) < 5 || buf[0] != magicByte {
		return nil, ErrCorrupt
	}
	numVectors := int(binary.LittleEndian.Uint32(buf[1:5]))
	if numVectors <= 0 || numVectors > 1<<16 {
		return nil, ErrCorrupt
	}
	rest := buf[5:]
	vectors := make([]*roaring.Bitmap, numVectors)
	for i := 0; i < numVectors; i++ {
		if len(rest) < 4 {
			return nil, ErrCorrupt
		}
		vectorLen := int(binary.LittleEndian.Uint32(rest[:4]))
		rest = rest[4:]
		if len(rest) < vectorLen {
			return nil, ErrCorrupt
		}
		vector := roaring.New()
		if _, err := vector.ReadFrom(bytes.NewReader(rest[:vectorLen])); err != nil {
			return nil, ErrCorrupt
		}
		vectors[i] = vector
		rest = rest[vectorLen:]
	}
	return &FMSketch{vectors: vectors}, nil
}
