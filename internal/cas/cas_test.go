package cas

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestSumB3(t *testing.T) {
	payload := []byte("revision payload")
	if SumB3(payload) != SumB3(payload) {
		t.Error("Same payload should produce same hash")
	}
	if SumB3(payload) == SumB3([]byte("revision payload!")) {
		t.Error("Different payloads should produce different hashes")
	}
}

func TestParseHash(t *testing.T) {
	h := SumB3([]byte("abc"))
	parsed, err := ParseHash(h.String())
	if err != nil {
		t.Fatalf("ParseHash failed: %v", err)
	}
	if parsed != h {
		t.Error("Parsed hash should match original")
	}
	if len(h.Short()) != 8 {
		t.Errorf("Short hash should have 8 chars, got %q", h.Short())
	}
	if _, err := ParseHash("abcd"); err == nil {
		t.Error("ParseHash should reject short input")
	}
	if _, err := ParseHash("zz"); err == nil {
		t.Error("ParseHash should reject non-hex input")
	}
}

func testCAS(t *testing.T, store CAS) {
	data := []byte("packed revision")
	hash := SumB3(data)

	has, err := store.Has(hash)
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if has {
		t.Error("Empty CAS should not have any data")
	}

	if _, err := store.Get(hash); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get on missing hash should return ErrNotFound, got %v", err)
	}

	stored, err := Store(store, data)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if stored != hash {
		t.Error("Store should return the content hash")
	}

	retrieved, err := store.Get(hash)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(data, retrieved) {
		t.Error("Retrieved data should match original")
	}

	if err := store.Put(SumB3([]byte("other")), data); err == nil {
		t.Error("Put should fail with mismatched hash")
	}

	// Idempotent re-put.
	if err := store.Put(hash, data); err != nil {
		t.Errorf("Second Put failed: %v", err)
	}
}

func TestMemoryCAS(t *testing.T) {
	store := NewMemoryCAS()
	testCAS(t, store)
	if store.Len() != 1 {
		t.Errorf("Expected 1 object, got %d", store.Len())
	}
	if len(store.Hashes()) != 1 {
		t.Errorf("Expected 1 hash, got %d", len(store.Hashes()))
	}
	store.Delete(SumB3([]byte("packed revision")))
	if store.Len() != 0 {
		t.Error("Delete should remove the payload")
	}
}

func TestFileCAS(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileCAS(filepath.Join(dir, "objects"))
	if err != nil {
		t.Fatalf("NewFileCAS failed: %v", err)
	}
	testCAS(t, store)

	// Corrupt the object on disk: Get must refuse it.
	hash := SumB3([]byte("packed revision"))
	if err := os.WriteFile(store.path(hash), []byte("tampered"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := store.Get(hash); err == nil {
		t.Error("Get should detect corrupted payloads")
	}
}

func TestMemoryCASConcurrency(t *testing.T) {
	store := NewMemoryCAS()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := []byte{byte(i)}
			if _, err := Store(store, data); err != nil {
				t.Errorf("Concurrent Store failed: %v", err)
			}
			if _, err := store.Get(SumB3(data)); err != nil {
				t.Errorf("Concurrent Get failed: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if store.Len() != 8 {
		t.Errorf("Expected 8 objects, got %d", store.Len())
	}
}

func BenchmarkSumB3(b *testing.B) {
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i % 256)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = SumB3(data)
	}
}
