package serial

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

var (
	// ErrBadMagic means the stream does not start with the document header.
	ErrBadMagic = errors.New("serial: unsupported or corrupt file (bad magic header)")
	// ErrCorrupt means the tree could not be decoded.
	ErrCorrupt = errors.New("serial: corrupt or truncated stream")
	// ErrUnencodable means the tree holds an empty node type or a name with
	// a NUL byte, which the format cannot carry.
	ErrUnencodable = errors.New("serial: tree cannot be encoded")
)

// Magic is the document header, the bytes "Helio2::" read as a little-endian int64.
var Magic = binary.LittleEndian.Uint64([]byte("Helio2::"))

// MaxDepth bounds the nesting accepted by the decoder.
const MaxDepth = 512

const maxValueSize = 64 << 20

// Value markers of the tagged stream format.
const (
	markerInt       byte = 1
	markerBoolTrue  byte = 2
	markerBoolFalse byte = 3
	markerDouble    byte = 4
	markerString    byte = 5
	markerInt64     byte = 6
	markerBlob      byte = 8
)

// WriteTo writes the tree rooted at n in the tagged binary format.
func (n *Node) WriteTo(w io.Writer) (int64, error) {
	bw := &countingWriter{w: w}
	n.write(bw)
	return bw.n, bw.err
}

// MarshalBinary returns the binary encoding of the tree.
func (n *Node) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := n.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Bytes returns the binary encoding of the tree, or nil when the tree
// cannot be encoded.
func (n *Node) Bytes() []byte {
	b, err := n.MarshalBinary()
	if err != nil {
		return nil
	}
	return b
}

func (n *Node) write(w *countingWriter) {
	if n.typ == "" {
		w.fail("%w: empty node type", ErrUnencodable)
		return
	}
	w.writeString(n.typ)
	names := n.PropertyNames()
	w.writeCompressedInt(int64(len(names)))
	for _, name := range names {
		w.writeString(name)
		w.writeValue(n.properties[name])
	}
	w.writeCompressedInt(int64(len(n.children)))
	for _, c := range n.children {
		c.write(w)
	}
}

// WriteDocument writes the magic header followed by the tree.
func WriteDocument(w io.Writer, n *Node) error {
	var hdr [8]byte
	binary.LittleEndian.PutUint64(hdr[:], Magic)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := n.WriteTo(w); err != nil {
		return fmt.Errorf("write tree: %w", err)
	}
	return nil
}

// ReadDocument verifies the magic header and reads the tree after it.
// On failure the returned node is invalid (nil).
func ReadDocument(r io.Reader) (*Node, error) {
	br := asByteReader(r)
	var hdr [8]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, ErrBadMagic
	}
	if binary.LittleEndian.Uint64(hdr[:]) != Magic {
		return nil, ErrBadMagic
	}
	return ReadFrom(br)
}

// ReadFrom decodes one tree. Corrupt or truncated input yields (nil, ErrCorrupt).
func ReadFrom(r io.Reader) (*Node, error) {
	d := &decoder{r: asByteReader(r)}
	n := d.readNode(0)
	if d.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, d.err)
	}
	return n, nil
}

// FromBytes decodes a tree from a byte slice.
func FromBytes(data []byte) (*Node, error) {
	return ReadFrom(bytes.NewReader(data))
}

type byteReader interface {
	io.Reader
	io.ByteReader
}

func asByteReader(r io.Reader) byteReader {
	if br, ok := r.(byteReader); ok {
		return br
	}
	return bufio.NewReader(r)
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) write(p []byte) {
	if c.err != nil {
		return
	}
	m, err := c.w.Write(p)
	c.n += int64(m)
	c.err = err
}

func (c *countingWriter) fail(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf(format, args...)
	}
}

// writeString writes a null-terminated name.
func (c *countingWriter) writeString(s string) {
	if strings.IndexByte(s, 0) >= 0 {
		c.fail("%w: name %q contains a NUL byte", ErrUnencodable, s)
		return
	}
	c.write(append([]byte(s), 0))
}

// writeCompressedInt stores the magnitude in as few little-endian bytes as
// needed, prefixed by a byte holding that count and the sign in its high bit.
func (c *countingWriter) writeCompressedInt(v int64) {
	c.write(compressedInt(v))
}

func compressedInt(v int64) []byte {
	neg := v < 0
	mag := uint64(v)
	if neg {
		mag = uint64(-v)
	}
	buf := make([]byte, 1, 9)
	for mag > 0 {
		buf = append(buf, byte(mag))
		mag >>= 8
	}
	buf[0] = byte(len(buf) - 1)
	if neg {
		buf[0] |= 0x80
	}
	return buf
}

func (c *countingWriter) writeValue(v Value) {
	var body []byte
	switch v.kind {
	case KindInt:
		if v.i >= math.MinInt32 && v.i <= math.MaxInt32 {
			body = make([]byte, 5)
			body[0] = markerInt
			binary.LittleEndian.PutUint32(body[1:], uint32(int32(v.i)))
		} else {
			body = make([]byte, 9)
			body[0] = markerInt64
			binary.LittleEndian.PutUint64(body[1:], uint64(v.i))
		}
	case KindFloat:
		body = make([]byte, 9)
		body[0] = markerDouble
		binary.LittleEndian.PutUint64(body[1:], math.Float64bits(v.f))
	case KindString:
		body = make([]byte, 0, len(v.s)+2)
		body = append(body, markerString)
		body = append(body, v.s...)
		body = append(body, 0)
	case KindBool:
		if v.i != 0 {
			body = []byte{markerBoolTrue}
		} else {
			body = []byte{markerBoolFalse}
		}
	case KindBlob:
		body = make([]byte, 0, len(v.b)+1)
		body = append(body, markerBlob)
		body = append(body, v.b...)
	default:
		c.err = fmt.Errorf("serial: cannot write value of kind %s", v.kind)
		return
	}
	c.writeCompressedInt(int64(len(body)))
	c.write(body)
}

type decoder struct {
	r   byteReader
	err error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf(format, args...)
	}
}

func (d *decoder) readNode(depth int) *Node {
	if depth > MaxDepth {
		d.fail("nesting deeper than %d", MaxDepth)
		return nil
	}
	typ := d.readString()
	if d.err != nil {
		return nil
	}
	if typ == "" {
		d.fail("empty node type")
		return nil
	}
	n := New(typ)
	numProps := d.readCompressedInt()
	if numProps < 0 {
		d.fail("negative property count")
	}
	for i := int64(0); i < numProps && d.err == nil; i++ {
		name := d.readString()
		v := d.readValue()
		if d.err == nil {
			n.properties[name] = v
		}
	}
	numChildren := d.readCompressedInt()
	if numChildren < 0 {
		d.fail("negative child count")
	}
	for i := int64(0); i < numChildren && d.err == nil; i++ {
		c := d.readNode(depth + 1)
		if d.err == nil {
			c.parent = n
			n.children = append(n.children, c)
		}
	}
	if d.err != nil {
		return nil
	}
	return n
}

func (d *decoder) readString() string {
	if d.err != nil {
		return ""
	}
	var buf []byte
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			d.fail("read string: %v", err)
			return ""
		}
		if b == 0 {
			return string(buf)
		}
		buf = append(buf, b)
	}
}

func (d *decoder) readCompressedInt() int64 {
	if d.err != nil {
		return 0
	}
	size, err := d.r.ReadByte()
	if err != nil {
		d.fail("read int size: %v", err)
		return 0
	}
	n := int(size & 0x7f)
	if n > 8 {
		d.fail("compressed int of %d bytes", n)
		return 0
	}
	var mag uint64
	for i := 0; i < n; i++ {
		b, err := d.r.ReadByte()
		if err != nil {
			d.fail("read int byte: %v", err)
			return 0
		}
		mag |= uint64(b) << (8 * i)
	}
	if size&0x80 != 0 {
		return -int64(mag)
	}
	return int64(mag)
}

func (d *decoder) readValue() Value {
	size := d.readCompressedInt()
	if d.err != nil {
		return Value{}
	}
	if size <= 0 || size > maxValueSize {
		d.fail("bad value size %d", size)
		return Value{}
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(d.r, body); err != nil {
		d.fail("read value: %v", err)
		return Value{}
	}
	payload := body[1:]
	switch body[0] {
	case markerInt:
		if len(payload) != 4 {
			break
		}
		return IntValue(int64(int32(binary.LittleEndian.Uint32(payload))))
	case markerInt64:
		if len(payload) != 8 {
			break
		}
		return IntValue(int64(binary.LittleEndian.Uint64(payload)))
	case markerDouble:
		if len(payload) != 8 {
			break
		}
		return FloatValue(math.Float64frombits(binary.LittleEndian.Uint64(payload)))
	case markerString:
		if len(payload) == 0 || payload[len(payload)-1] != 0 {
			break
		}
		return StringValue(string(payload[:len(payload)-1]))
	case markerBoolTrue:
		return BoolValue(true)
	case markerBoolFalse:
		return BoolValue(false)
	case markerBlob:
		return Value{kind: KindBlob, b: payload}
	}
	d.fail("bad value marker %d (size %d)", body[0], size)
	return Value{}
}
