// Package symbols loads instrument lists produced by the discovery scripts
// and splits them into subscription batches.
package symbols

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Batch splits symbols in input order into contiguous chunks of at most
// maxPerBatch. The last chunk may be shorter; empty input yields nil.
// maxPerBatch <= 0 is a programming error and panics.
func Batch(symbols []string, maxPerBatch int) [][]string {
	if maxPerBatch <= 0 {
		panic(fmt.Sprintf("symbols: invalid batch size %d", maxPerBatch))
	}
	if len(symbols) == 0 {
		return nil
	}

	batches := make([][]string, 0, (len(symbols)+maxPerBatch-1)/maxPerBatch)
	for i := 0; i < len(symbols); i += maxPerBatch {
		end := i + maxPerBatch
		if end > len(symbols) {
			end = len(symbols)
		}
		batches = append(batches, symbols[i:end])
	}
	return batches
}

// LoadFile reads a symbol list, one instrument per line in the exchange's
// native spelling. Blank lines and lines starting with # are skipped.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open symbol list: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read symbol list: %w", err)
	}
	return out, nil
}
