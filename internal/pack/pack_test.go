package pack

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/javanhut/helio-vcs/internal/serial"
)

func sampleNode(i int) *serial.Node {
	n := serial.New("revision").SetString("id", fmt.Sprintf("rev-%d", i)).SetInt("timestamp", int64(i))
	for j := 0; j < 20; j++ {
		n.MustAppend(serial.New("note")).SetInt("key", int64(60+j)).SetFloat("beat", float64(j)/2)
	}
	return n
}

func TestEncodeDecode(t *testing.T) {
	n := sampleNode(1)
	data, err := Encode(n)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.IsEquivalentTo(n) {
		t.Fatalf("decoded node differs:\n%s\nwant\n%s", got.ToXML(), n.ToXML())
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte("not zstd at all")); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestObjHeaderRoundTrip(t *testing.T) {
	sizes := []uint64{0, 1, 15, 16, 127, 128, 1 << 20, 1<<40 + 3}
	for _, size := range sizes {
		for _, typ := range []int{ObjRevision, ObjListing, 7} {
			var buf bytes.Buffer
			if err := writeObjHeader(&buf, typ, size); err != nil {
				t.Fatalf("writeObjHeader(%d, %d): %v", typ, size, err)
			}
			gotType, gotSize, err := readObjHeader(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("readObjHeader: %v", err)
			}
			if gotType != typ || gotSize != size {
				t.Errorf("got (%d, %d), want (%d, %d)", gotType, gotSize, typ, size)
			}
		}
	}
	if err := writeObjHeader(&bytes.Buffer{}, 8, 1); err == nil {
		t.Error("expected error for type 8")
	}
}

func TestBundleRoundTrip(t *testing.T) {
	var objs []Object
	for i := 0; i < 5; i++ {
		data, err := Encode(sampleNode(i))
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		objs = append(objs, Object{Type: ObjRevision, ID: fmt.Sprintf("rev-%d", i), Data: data})
	}
	bundle, err := WriteBundle(objs)
	if err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}
	got, err := ReadBundle(bundle)
	if err != nil {
		t.Fatalf("ReadBundle: %v", err)
	}
	if len(got) != len(objs) {
		t.Fatalf("got %d objects, want %d", len(got), len(objs))
	}
	for i := range objs {
		if got[i].ID != objs[i].ID || got[i].Type != objs[i].Type || !bytes.Equal(got[i].Data, objs[i].Data) {
			t.Errorf("object %d mismatch", i)
		}
	}
}

func TestEmptyBundle(t *testing.T) {
	bundle, err := WriteBundle(nil)
	if err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}
	got, err := ReadBundle(bundle)
	if err != nil {
		t.Fatalf("ReadBundle: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d objects from empty bundle", len(got))
	}
}

func TestBundleCorruption(t *testing.T) {
	data, _ := Encode(sampleNode(0))
	bundle, err := WriteBundle([]Object{{Type: ObjRevision, ID: "a", Data: data}})
	if err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", bundle[:10]},
		{"flipped payload bit", flip(bundle, 20)},
		{"flipped trailer bit", flip(bundle, len(bundle)-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadBundle(tt.data)
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func flip(b []byte, i int) []byte {
	out := append([]byte(nil), b...)
	out[i] ^= 0x01
	return out
}

func TestWriteBundleConcurrentKeepsOrder(t *testing.T) {
	var jobs []Job
	for i := 0; i < 50; i++ {
		jobs = append(jobs, Job{Type: ObjRevision, ID: fmt.Sprintf("rev-%d", i), Node: sampleNode(i)})
	}
	bundle, err := WriteBundleConcurrent(jobs, 4)
	if err != nil {
		t.Fatalf("WriteBundleConcurrent: %v", err)
	}
	objs, err := ReadBundle(bundle)
	if err != nil {
		t.Fatalf("ReadBundle: %v", err)
	}
	for i, o := range objs {
		if o.ID != jobs[i].ID {
			t.Fatalf("object %d has id %s, want %s", i, o.ID, jobs[i].ID)
		}
		n, err := Decode(o.Data)
		if err != nil {
			t.Fatalf("Decode %s: %v", o.ID, err)
		}
		if !n.IsEquivalentTo(jobs[i].Node) {
			t.Fatalf("object %s decoded to a different node", o.ID)
		}
	}
}
