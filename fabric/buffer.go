package fabric

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Writer is the primitive writer generated (de)serialization glue targets,
// per the scalar mapping in spec §6. Composite kinds (option, list, map) are
// expressed in terms of these primitives by generated code: option<T> as a
// bool presence flag followed by a conditional T, list<T> as a uint32 count
// followed by that many T, map<K,V> as a uint32 count followed by that many
// (K, V) pairs.
type Writer interface {
	WriteBool(v bool)
	WriteUint32(v uint32)
	WriteUint64(v uint64)
	WriteInt32(v int32)
	WriteInt64(v int64)
	WriteFloat32(v float32)
	WriteFloat64(v float64)
	WriteString(v string)
	WriteBytes(v []byte)
	WriteEntityID(v EntityID)
}

// Reader is the primitive reader counterpart to Writer.
type Reader interface {
	ReadBool() bool
	ReadUint32() uint32
	ReadUint64() uint64
	ReadInt32() int32
	ReadInt64() int64
	ReadFloat32() float32
	ReadFloat64() float64
	ReadString() string
	ReadBytes() []byte
	ReadEntityID() EntityID
	// Err returns the first error encountered while reading, if any. Readers
	// are designed so callers can chain several Read calls and check Err
	// once at the end rather than after every field.
	Err() error
}

// BufferWriter is the reference Writer implementation: a growable []byte
// using little-endian fixed-width encoding for numerics and a uint32-length
// prefix for strings and byte slices.
type BufferWriter struct {
	buf []byte
}

// NewBufferWriter returns an empty BufferWriter.
func NewBufferWriter() *BufferWriter { return &BufferWriter{} }

// Bytes returns the accumulated buffer.
func (w *BufferWriter) Bytes() []byte { return w.buf }

func (w *BufferWriter) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *BufferWriter) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *BufferWriter) WriteUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *BufferWriter) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }
func (w *BufferWriter) WriteInt64(v int64) { w.WriteUint64(uint64(v)) }

func (w *BufferWriter) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

func (w *BufferWriter) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

func (w *BufferWriter) WriteString(v string) {
	w.WriteUint32(uint32(len(v)))
	w.buf = append(w.buf, v...)
}

func (w *BufferWriter) WriteBytes(v []byte) {
	w.WriteUint32(uint32(len(v)))
	w.buf = append(w.buf, v...)
}

func (w *BufferWriter) WriteEntityID(v EntityID) { w.WriteInt64(int64(v)) }

// BufferReader is the reference Reader implementation, reading back exactly
// what BufferWriter produces.
type BufferReader struct {
	buf []byte
	pos int
	err error
}

// NewBufferReader wraps buf for sequential reads.
func NewBufferReader(buf []byte) *BufferReader {
	return &BufferReader{buf: buf}
}

func (r *BufferReader) Err() error { return r.err }

func (r *BufferReader) need(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("fabric: buffer underrun: need %d bytes at offset %d, have %d", n, r.pos, len(r.buf))
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *BufferReader) ReadBool() bool {
	b := r.need(1)
	if b == nil {
		return false
	}
	return b[0] != 0
}

func (r *BufferReader) ReadUint32() uint32 {
	b := r.need(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *BufferReader) ReadUint64() uint64 {
	b := r.need(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *BufferReader) ReadInt32() int32 { return int32(r.ReadUint32()) }
func (r *BufferReader) ReadInt64() int64 { return int64(r.ReadUint64()) }

func (r *BufferReader) ReadFloat32() float32 { return math.Float32frombits(r.ReadUint32()) }
func (r *BufferReader) ReadFloat64() float64 { return math.Float64frombits(r.ReadUint64()) }

func (r *BufferReader) ReadString() string {
	n := r.ReadUint32()
	b := r.need(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

func (r *BufferReader) ReadBytes() []byte {
	n := r.ReadUint32()
	b := r.need(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (r *BufferReader) ReadEntityID() EntityID { return EntityID(r.ReadInt64()) }
