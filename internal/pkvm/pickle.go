// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"github.com/pkvm-dev/pkvm/internal/rtvalue"
)

// Wire tags for the pickle format. The format is opaque-but-stable within
// one build, per spec.md §6.3: these tag values are an implementation
// detail, not a documented interchange format, and may be renumbered
// between builds.
const (
	tagNone byte = iota
	tagFalse
	tagTrue
	tagInt
	tagFloat
	tagStr
	tagList
	tagTuple
	tagDict
	tagRef // a back-reference to an already-encoded object, for cycles
)

// pickleEncoder walks a Value graph, assigning each heap object a
// sequence id the first time it's seen so later occurrences (including
// cycles) encode as a short back-reference instead of being re-emitted.
type pickleEncoder struct {
	vm   *VM
	buf  []byte
	seen map[rtvalue.HeapRef]int
}

// Dumps serializes v into pkvm's stable-within-a-build binary wire
// format, following reachable heap references and handling cycles via
// back-references.
func (vm *VM) Dumps(v rtvalue.Value) ([]byte, error) {
	e := &pickleEncoder{vm: vm, seen: make(map[rtvalue.HeapRef]int)}
	if err := e.encode(v); err != nil {
		return nil, err
	}
	return e.buf, nil
}

func (e *pickleEncoder) putUvarint(n uint64) {
	var tmp [binary.MaxVarintLen64]byte
	written := binary.PutUvarint(tmp[:], n)
	e.buf = append(e.buf, tmp[:written]...)
}

func (e *pickleEncoder) encode(v rtvalue.Value) error {
	switch v.Kind() {
	case rtvalue.KindNone:
		e.buf = append(e.buf, tagNone)
		return nil
	case rtvalue.KindBool:
		if v.AsBool() {
			e.buf = append(e.buf, tagTrue)
		} else {
			e.buf = append(e.buf, tagFalse)
		}
		return nil
	case rtvalue.KindInt:
		e.buf = append(e.buf, tagInt)
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v.AsInt()))
		e.buf = append(e.buf, tmp[:]...)
		return nil
	case rtvalue.KindFloat:
		e.buf = append(e.buf, tagFloat)
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v.AsFloat()))
		e.buf = append(e.buf, tmp[:]...)
		return nil
	case rtvalue.KindObj:
		return e.encodeRef(v.AsRef())
	}
	return errors.New("pkvm: Dumps: invalid Value")
}

func (e *pickleEncoder) encodeRef(ref rtvalue.HeapRef) error {
	if id, ok := e.seen[ref]; ok {
		e.buf = append(e.buf, tagRef)
		e.putUvarint(uint64(id))
		return nil
	}
	id := len(e.seen)
	e.seen[ref] = id

	obj := e.vm.heap.Get(ref)
	switch p := obj.payload.(type) {
	case *strBox:
		e.buf = append(e.buf, tagStr)
		e.putUvarint(uint64(len(p.s)))
		e.buf = append(e.buf, p.s...)
	case *listBox:
		tag := byte(tagList)
		if obj.typeID == TypeTuple {
			tag = tagTuple
		}
		e.buf = append(e.buf, tag)
		e.putUvarint(uint64(len(p.items)))
		for _, item := range p.items {
			if err := e.encode(item); err != nil {
				return err
			}
		}
	case *dictBox:
		e.buf = append(e.buf, tagDict)
		e.putUvarint(uint64(len(p.keys)))
		for i := range p.keys {
			if err := e.encode(p.keys[i]); err != nil {
				return err
			}
			if err := e.encode(p.values[i]); err != nil {
				return err
			}
		}
	default:
		return errors.Errorf("pkvm: Dumps: type %q is not picklable", e.vm.types.Get(obj.typeID).Name.Text())
	}
	return nil
}

type pickleDecoder struct {
	vm   *VM
	buf  []byte
	pos  int
	refs []rtvalue.Value
}

// Loads deserializes data produced by Dumps within the same build. Data
// from a different build is explicitly not guaranteed to decode
// correctly, per spec.md §6.3.
func (vm *VM) Loads(data []byte) (rtvalue.Value, error) {
	d := &pickleDecoder{vm: vm, buf: data}
	return d.decode()
}

func (d *pickleDecoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, errors.New("pkvm: Loads: unexpected end of input")
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *pickleDecoder) readUvarint() (uint64, error) {
	v, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		return 0, errors.New("pkvm: Loads: malformed varint")
	}
	d.pos += n
	return v, nil
}

func (d *pickleDecoder) readN(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, errors.New("pkvm: Loads: unexpected end of input")
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *pickleDecoder) decode() (rtvalue.Value, error) {
	tag, err := d.readByte()
	if err != nil {
		return rtvalue.None, err
	}
	switch tag {
	case tagNone:
		return rtvalue.None, nil
	case tagTrue:
		return rtvalue.True, nil
	case tagFalse:
		return rtvalue.False, nil
	case tagInt:
		b, err := d.readN(8)
		if err != nil {
			return rtvalue.None, err
		}
		return rtvalue.Int(int64(binary.LittleEndian.Uint64(b))), nil
	case tagFloat:
		b, err := d.readN(8)
		if err != nil {
			return rtvalue.None, err
		}
		return rtvalue.Float(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil
	case tagStr:
		n, err := d.readUvarint()
		if err != nil {
			return rtvalue.None, err
		}
		b, err := d.readN(int(n))
		if err != nil {
			return rtvalue.None, err
		}
		v := d.vm.newString(string(b))
		d.refs = append(d.refs, v) // the encoder gives strings a sequence id too
		return v, nil
	case tagList, tagTuple:
		n, err := d.readUvarint()
		if err != nil {
			return rtvalue.None, err
		}
		typeID := TypeList
		if tag == tagTuple {
			typeID = TypeTuple
		}
		// Allocate the (empty) box and register its Value before
		// decoding children, so a self-referential list's inner
		// back-reference resolves to the correct ref even though the
		// payload isn't filled in until after the recursive decode
		// returns.
		lb := &listBox{}
		ref := d.vm.heap.Alloc(&HeapObject{typeID: typeID, payload: lb}, 16+4*int(n))
		v := rtvalue.Obj(ref)
		d.refs = append(d.refs, v)

		items := make([]rtvalue.Value, n)
		for i := range items {
			item, err := d.decode()
			if err != nil {
				return rtvalue.None, err
			}
			items[i] = item
		}
		lb.items = items
		return v, nil
	case tagDict:
		n, err := d.readUvarint()
		if err != nil {
			return rtvalue.None, err
		}
		db := &dictBox{}
		ref := d.vm.heap.Alloc(&HeapObject{typeID: TypeDict, payload: db}, 24+16*int(n))
		v := rtvalue.Obj(ref)
		d.refs = append(d.refs, v)

		keys := make([]rtvalue.Value, n)
		values := make([]rtvalue.Value, n)
		for i := range keys {
			k, err := d.decode()
			if err != nil {
				return rtvalue.None, err
			}
			val, err := d.decode()
			if err != nil {
				return rtvalue.None, err
			}
			keys[i], values[i] = k, val
		}
		db.keys, db.values = keys, values
		d.vm.reindexDict(db)
		return v, nil
	case tagRef:
		id, err := d.readUvarint()
		if err != nil {
			return rtvalue.None, err
		}
		if int(id) >= len(d.refs) {
			return rtvalue.None, errors.New("pkvm: Loads: invalid back-reference")
		}
		return d.refs[id], nil
	}
	return rtvalue.None, errors.Errorf("pkvm: Loads: unknown tag %d", tag)
}
