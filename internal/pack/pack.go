// Package pack compresses serialized payloads for storage and transport and
// groups several of them into bundles.
//
// A packed payload is a "Helio2::" binary document compressed with zstd. A
// bundle is a header ("HPCK", version, count), one length-prefixed entry per
// object and a blake3 trailer over everything before it.
package pack

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/javanhut/helio-vcs/internal/cas"
	"github.com/javanhut/helio-vcs/internal/serial"
)

var (
	magicBundle          = []byte{'H', 'P', 'C', 'K'}
	bundleVersion uint32 = 1
)

// ErrCorrupt is returned for bundles that fail validation.
var ErrCorrupt = errors.New("pack: corrupt bundle")

// Object type codes stored in the entry header nibble.
const (
	ObjRevision = iota + 1
	ObjListing
)

// maxObjectSize bounds entry sizes read from untrusted bundles.
const maxObjectSize = 256 << 20

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxObjectSize))
)

// Encode writes n as a binary document and compresses it.
func Encode(n *serial.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := serial.WriteDocument(&buf, n); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}
	return encoder.EncodeAll(buf.Bytes(), nil), nil
}

// Decode reverses Encode.
func Decode(data []byte) (*serial.Node, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return serial.ReadDocument(bytes.NewReader(raw))
}

// Object is one bundle entry. Data is an Encode result.
type Object struct {
	Type int
	ID   string
	Data []byte
}

// writeObjHeader writes the varint header: low bits = size; type in bits 4..6; MSB is continuation.
func writeObjHeader(w io.Writer, objType int, size uint64) error {
	if objType < 0 || objType > 7 {
		return fmt.Errorf("invalid objType %d", objType)
	}
	b := byte((objType&7)<<4) | byte(size&0x0F)
	size >>= 4
	if size != 0 {
		b |= 0x80
	}
	if _, err := w.Write([]byte{b}); err != nil {
		return err
	}
	for size != 0 {
		c := byte(size & 0x7F)
		size >>= 7
		if size != 0 {
			c |= 0x80
		}
		if _, err := w.Write([]byte{c}); err != nil {
			return err
		}
	}
	return nil
}

func readObjHeader(r io.ByteReader) (objType int, size uint64, err error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	objType = int(b>>4) & 7
	size = uint64(b & 0x0F)
	shift := uint(4)
	for b&0x80 != 0 {
		if shift > 63 {
			return 0, 0, fmt.Errorf("%w: header overflow", ErrCorrupt)
		}
		if b, err = r.ReadByte(); err != nil {
			return 0, 0, err
		}
		size |= uint64(b&0x7F) << shift
		shift += 7
	}
	return objType, size, nil
}

func writeEntry(body *bytes.Buffer, o Object) error {
	if err := writeObjHeader(body, o.Type, uint64(len(o.Data))); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := binary.Write(body, binary.BigEndian, uint16(len(o.ID))); err != nil {
		return err
	}
	body.WriteString(o.ID)
	body.Write(o.Data)
	return nil
}

// WriteBundle concatenates already encoded objects.
func WriteBundle(objs []Object) ([]byte, error) {
	var body bytes.Buffer
	body.Write(magicBundle)
	if err := binary.Write(&body, binary.BigEndian, bundleVersion); err != nil {
		return nil, err
	}
	if err := binary.Write(&body, binary.BigEndian, uint32(len(objs))); err != nil {
		return nil, err
	}
	for _, o := range objs {
		if len(o.ID) > 0xFFFF {
			return nil, fmt.Errorf("object id too long: %d bytes", len(o.ID))
		}
		if err := writeEntry(&body, o); err != nil {
			return nil, err
		}
	}
	sum := cas.SumB3(body.Bytes())
	body.Write(sum[:])
	return body.Bytes(), nil
}

// ReadBundle parses and verifies a bundle. Entries stay encoded.
func ReadBundle(data []byte) ([]Object, error) {
	if len(data) < len(magicBundle)+8+32 {
		return nil, fmt.Errorf("%w: too short", ErrCorrupt)
	}
	body, trailer := data[:len(data)-32], data[len(data)-32:]
	if sum := cas.SumB3(body); !bytes.Equal(sum[:], trailer) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	if !bytes.Equal(body[:4], magicBundle) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if v := binary.BigEndian.Uint32(body[4:8]); v != bundleVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	count := binary.BigEndian.Uint32(body[8:12])
	r := bytes.NewReader(body[12:])

	objs := make([]Object, 0, min(int(count), 1024))
	for i := uint32(0); i < count; i++ {
		typ, size, err := readObjHeader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrCorrupt, i, err)
		}
		if size > maxObjectSize {
			return nil, fmt.Errorf("%w: entry %d too large", ErrCorrupt, i)
		}
		var idLen uint16
		if err := binary.Read(r, binary.BigEndian, &idLen); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrCorrupt, i, err)
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrCorrupt, i, err)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrCorrupt, i, err)
		}
		objs = append(objs, Object{Type: typ, ID: string(id), Data: payload})
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, r.Len())
	}
	return objs, nil
}
