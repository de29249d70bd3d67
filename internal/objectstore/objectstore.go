// Package objectstore keeps uploaded images such as payment proofs. Objects
// are addressed by a reference (the object key) that callers persist.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
	URL(ref string) string
}

func proofPrefix(orderID string) string {
	return "payment_proof_" + orderID + "_"
}

// ProofKey names a payment proof object after its order and upload time.
func ProofKey(orderID, filename string, now time.Time) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("%s%d.%s", proofPrefix(orderID), now.UnixMilli(), ext)
}

// IsProofFor reports whether ref is a key ProofKey could have produced for
// orderID. Refs naming another order's proof, or any other object, are not.
func IsProofFor(orderID, ref string) bool {
	if orderID == "" || validKey(ref) != nil || strings.Contains(ref, "/") {
		return false
	}
	rest, ok := strings.CutPrefix(ref, proofPrefix(orderID))
	if !ok {
		return false
	}
	stamp, ext, ok := strings.Cut(rest, ".")
	if !ok || stamp == "" || ext == "" {
		return false
	}
	for _, r := range stamp {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validKey(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid object key %q", key)
	}
	return nil
}
