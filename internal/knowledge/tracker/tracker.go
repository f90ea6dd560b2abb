package tracker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge"
)

// Fingerprint streams a sha256 over the file's bytes. Content hashing is
// deliberate: modification times false-positive across copies, clock skew
// and touch-without-edit.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Classify buckets the current corpus listing against the persisted ledger.
// It is a pure function of (paths, state, checksums): no time heuristics.
// force treats every present file as modified; deletions are still reported
// so removed sources get cleaned up even on a forced rebuild.
func Classify(paths []string, state knowledge.IndexState, force bool) knowledge.Classification {
	var out knowledge.Classification

	present := make(map[string]bool, len(paths))
	for _, p := range paths {
		present[p] = true
	}
	for p := range state {
		if !present[p] {
			out.Deleted = append(out.Deleted, p)
		}
	}
	sort.Strings(out.Deleted)

	for _, p := range paths {
		if force {
			out.Modified = append(out.Modified, p)
			continue
		}
		rec, tracked := state[p]
		if !tracked {
			out.New = append(out.New, p)
			continue
		}
		sum, err := Fingerprint(p)
		if err != nil {
			// Unreadable files take the rebuild path so the failure surfaces
			// as a per-file error in the cycle summary instead of aborting
			// classification for the rest of the corpus.
			out.Modified = append(out.Modified, p)
			continue
		}
		if sum != rec.Checksum {
			out.Modified = append(out.Modified, p)
		} else {
			out.Unchanged = append(out.Unchanged, p)
		}
	}
	return out
}
