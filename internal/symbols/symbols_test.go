package symbols

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestBatch_Sizes(t *testing.T) {
	tests := []struct {
		n         int
		batchSize int
		batches   int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{200, 200, 1},
		{201, 200, 2},
		{1000, 10, 100},
		{7, 3, 3},
	}

	for _, tt := range tests {
		syms := make([]string, tt.n)
		for i := range syms {
			syms[i] = fmt.Sprintf("SYM%d", i)
		}

		got := Batch(syms, tt.batchSize)
		if len(got) != tt.batches {
			t.Errorf("Batch(n=%d, size=%d) = %d batches, want %d", tt.n, tt.batchSize, len(got), tt.batches)
			continue
		}

		// Every batch within bound, concatenation reconstructs the input.
		var flat []string
		for i, b := range got {
			if len(b) == 0 || len(b) > tt.batchSize {
				t.Errorf("Batch(n=%d, size=%d): batch %d has %d items", tt.n, tt.batchSize, i, len(b))
			}
			flat = append(flat, b...)
		}
		if tt.n > 0 && !reflect.DeepEqual(flat, syms) {
			t.Errorf("Batch(n=%d, size=%d): concatenation does not reconstruct input", tt.n, tt.batchSize)
		}
	}
}

func TestBatch_PanicsOnBadSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Batch(size=%d) did not panic", size)
				}
			}()
			Batch([]string{"BTCUSDT"}, size)
		}()
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.txt")
	content := "BTC-USDT\n\n# comment\nETH-USDT\n  SOL-USDT  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	want := []string{"BTC-USDT", "ETH-USDT", "SOL-USDT"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadFile() = %v, want %v", got, want)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("LoadFile() on missing file succeeded, want error")
	}
}
