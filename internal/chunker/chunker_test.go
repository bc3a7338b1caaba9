package chunker

import (
	"bytes"
	"math/rand"
	"testing"
)

func randomBytes(seed int64, n int) []byte {
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, n)
	r.Read(b)
	return b
}

func chunkAll(cfg Config, data []byte, feed int) [][]byte {
	c := New(cfg)
	var chunks [][]byte
	for i := 0; i < len(data); i += feed {
		end := i + feed
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, c.Write(data[i:end])...)
	}
	if tail := c.Finish(); tail != nil {
		chunks = append(chunks, tail)
	}
	return chunks
}

func TestChunkerDeterministic(t *testing.T) {
	data := randomBytes(0xA5A5, 4*1024*1024+200)
	cfg := Config{Bits: 12}

	a := chunkAll(cfg, data, 4096)
	b := chunkAll(cfg, data, 997) // different feed size must not change boundaries

	if len(a) != len(b) {
		t.Fatalf("chunk count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			t.Fatalf("chunk %d differs between feed sizes", i)
		}
	}
}

func TestChunkerReassemblesInput(t *testing.T) {
	data := randomBytes(1, 1<<20)
	chunks := chunkAll(Config{Bits: 14}, data, 8192)

	var out bytes.Buffer
	for _, c := range chunks {
		out.Write(c)
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Fatalf("reassembled data does not match input")
	}
}

func TestChunkerRespectsMinMax(t *testing.T) {
	cfg := Config{Bits: 10, MinSize: 512, MaxSize: 2048}
	data := randomBytes(7, 200*1024)
	chunks := chunkAll(cfg, data, 4096)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > cfg.MaxSize {
			t.Fatalf("chunk %d exceeds MaxSize: %d > %d", i, len(c), cfg.MaxSize)
		}
		// The final chunk may be short; interior chunks must meet MinSize.
		if i != len(chunks)-1 && len(c) < cfg.MinSize {
			t.Fatalf("interior chunk %d below MinSize: %d < %d", i, len(c), cfg.MinSize)
		}
	}
}

func TestChunkerEmptyInput(t *testing.T) {
	c := New(Config{Bits: 12})
	if got := c.Write(nil); got != nil {
		t.Fatalf("expected no chunks from empty write, got %v", got)
	}
	if got := c.Finish(); got != nil {
		t.Fatalf("expected nil tail from empty stream, got %v", got)
	}
}
