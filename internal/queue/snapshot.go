// SPDX-License-Identifier: MIT

package queue

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"hash/fnv"
	"reflect"
)

// snapshotVersion is the current wire-format version; deserialize
// rejects any other value. Grounded on spec.md §4.3: the format is
// explicitly versioned and readers must reject unknown versions.
const snapshotVersion uint32 = 2

// Register makes a payload type snapshot-able, the same way
// encoding/gob requires interface values to be registered before they
// can cross the wire. Snapshots are process-addressed (spec.md §9), so
// this registration is process-local and never persisted.
func Register(value any) { gob.Register(value) }

func init() {
	for _, v := range []any{
		int(0), int8(0), int16(0), int32(0), int64(0),
		uint(0), uint8(0), uint16(0), uint32(0), uint64(0),
		float32(0), float64(0), "", false, []byte(nil),
	} {
		gob.Register(v)
	}
}

// ErrMalformedInput is returned by DeserializeSnapshot when
// the byte buffer is truncated or internally inconsistent (oversized
// recorded lengths, bad front offset, unknown version). No recovery is
// attempted — spec.md §9 is explicit that malformed snapshots are a
// hard error, not best-effort recoverable.
var ErrMalformedInput = errors.New("pathspace: malformed snapshot")

type typeHeader struct {
	Category Category
	TypeID   uint64
}

// SerializeSnapshot produces the byte buffer described in spec.md §4.3:
// a version header, a type table (one entry per value entry, in queue
// order), an element count, per-value recorded lengths, the
// concatenated raw value bytes, and a front offset. Nested
// slots are recorded as zero-length placeholders that preserve queue
// order without carrying the subspace itself — see DeserializeSnapshot.
func (q *NodeData) SerializeSnapshot() ([]byte, error) {
	var rawBuf bytes.Buffer
	var lengths []uint32
	var headers []typeHeader

	elementCount := uint32(0)
	for _, e := range q.entries {
		elementCount++
		switch e.kind {
		case kindValue:
			var payload bytes.Buffer
			enc := gob.NewEncoder(&payload)
			if err := enc.Encode(&e.value); err != nil {
				return nil, fmt.Errorf("pathspace: encode value entry: %w", err)
			}
			b := payload.Bytes()
			lengths = append(lengths, uint32(len(b)))
			rawBuf.Write(b)
			headers = append(headers, typeHeader{Category: e.category, TypeID: typeID(e.typ)})
		case kindNested, kindExecution:
			// Placeholder: zero recorded length, no raw bytes, no type entry.
			lengths = append(lengths, 0)
		}
	}

	var out bytes.Buffer
	writeU32(&out, snapshotVersion)
	writeU32(&out, uint32(len(headers)))
	for _, h := range headers {
		out.WriteByte(byte(h.Category))
		out.Write(make([]byte, 3)) // u24 padding
		writeU64(&out, h.TypeID)
	}
	writeU32(&out, elementCount)
	writeU32(&out, uint32(len(lengths)))
	for _, l := range lengths {
		writeU32(&out, l)
	}
	raw := rawBuf.Bytes()
	writeU32(&out, uint32(len(raw)))
	out.Write(raw)
	writeU32(&out, 0) // front_offset: snapshots are always dense/compacted on write
	return out.Bytes(), nil
}

// DeserializeSnapshot restores a NodeData from a buffer produced by
// SerializeSnapshot, preserving entry order. Nested slots become
// placeholders (see EmplaceNestedAt to re-populate one with a live
// subspace). Truncated buffers or oversized recorded lengths return
// ErrMalformedInput.
func DeserializeSnapshot(buf []byte, typeOf func(id uint64) reflect.Type) (*NodeData, error) {
	r := bytes.NewReader(buf)

	version, err := readU32(r)
	if err != nil || version != snapshotVersion {
		return nil, ErrMalformedInput
	}

	typeCount, err := readU32(r)
	if err != nil {
		return nil, ErrMalformedInput
	}
	headers := make([]typeHeader, 0, typeCount)
	for i := uint32(0); i < typeCount; i++ {
		cat, err := readBytes(r, 1)
		if err != nil {
			return nil, ErrMalformedInput
		}
		if _, err := readBytes(r, 3); err != nil {
			return nil, ErrMalformedInput
		}
		id, err := readU64(r)
		if err != nil {
			return nil, ErrMalformedInput
		}
		headers = append(headers, typeHeader{Category: Category(cat[0]), TypeID: id})
	}

	elementCount, err := readU32(r)
	if err != nil {
		return nil, ErrMalformedInput
	}

	lengthsCount, err := readU32(r)
	if err != nil {
		return nil, ErrMalformedInput
	}
	lengths := make([]uint32, 0, lengthsCount)
	for i := uint32(0); i < lengthsCount; i++ {
		l, err := readU32(r)
		if err != nil {
			return nil, ErrMalformedInput
		}
		lengths = append(lengths, l)
	}

	rawSize, err := readU32(r)
	if err != nil {
		return nil, ErrMalformedInput
	}
	raw, err := readBytes(r, int(rawSize))
	if err != nil {
		return nil, ErrMalformedInput
	}

	frontOffset, err := readU32(r)
	if err != nil {
		return nil, ErrMalformedInput
	}
	if uint64(frontOffset) > uint64(len(raw)) {
		return nil, ErrMalformedInput
	}

	if uint64(len(lengths)) != uint64(elementCount) {
		return nil, ErrMalformedInput
	}

	q := &NodeData{entries: make([]*entry, 0, elementCount)}
	pos := int(frontOffset)
	headerAt := 0
	for _, l := range lengths {
		if l == 0 {
			q.entries = append(q.entries, &entry{kind: kindNested, nestedPlaceholder: true})
			continue
		}
		if pos+int(l) > len(raw) {
			return nil, ErrMalformedInput
		}
		chunk := raw[pos : pos+int(l)]
		pos += int(l)

		var value any
		dec := gob.NewDecoder(bytes.NewReader(chunk))
		if err := dec.Decode(&value); err != nil {
			return nil, ErrMalformedInput
		}

		if headerAt >= len(headers) {
			return nil, ErrMalformedInput
		}
		h := headers[headerAt]
		headerAt++

		var typ reflect.Type
		if typeOf != nil {
			typ = typeOf(h.TypeID)
		}
		if typ == nil {
			typ = reflect.TypeOf(value)
		}
		q.entries = append(q.entries, &entry{kind: kindValue, typ: typ, category: h.Category, value: value})
	}
	return q, nil
}

func typeID(t reflect.Type) uint64 {
	if t == nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(t.String()))
	return h.Sum64()
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readBytes(r *bytes.Reader, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := readFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	n, err := r.Read(b)
	if err != nil {
		return n, err
	}
	if n != len(b) {
		return n, fmt.Errorf("pathspace: short read")
	}
	return n, nil
}
