package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProofKey(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	tests := []struct {
		filename string
		want     string
	}{
		{"receipt.PNG", "payment_proof_o1_1700000000123.png"},
		{"scan.jpeg", "payment_proof_o1_1700000000123.jpeg"},
		{"noext", "payment_proof_o1_1700000000123.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, ProofKey("o1", tt.filename, now))
		})
	}
}

func TestLocal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLocal(dir, "http://cdn.test/uploads/")
	require.NoError(t, err)

	t.Run("put then delete", func(t *testing.T) {
		ref, err := store.Put(ctx, "proofs/a.png", strings.NewReader("img"), 3, "image/png")
		require.NoError(t, err)
		assert.Equal(t, "proofs/a.png", ref)

		data, err := os.ReadFile(filepath.Join(dir, "proofs", "a.png"))
		require.NoError(t, err)
		assert.Equal(t, "img", string(data))
		assert.Equal(t, "http://cdn.test/uploads/proofs/a.png", store.URL(ref))

		require.NoError(t, store.Delete(ctx, ref))
		_, err = os.Stat(filepath.Join(dir, "proofs", "a.png"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("delete missing object", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "missing.png"))
	})

	t.Run("rejects path traversal", func(t *testing.T) {
		_, err := store.Put(ctx, "../escape.png", strings.NewReader("x"), 1, "image/png")
		assert.Error(t, err)
	})
}

func TestIsProofFor(t *testing.T) {
	key := ProofKey("o1", "receipt.png", time.UnixMilli(1700000000123))

	tests := []struct {
		name    string
		orderID string
		ref     string
		want    bool
	}{
		{"own proof", "o1", key, true},
		{"other order", "o2", key, false},
		{"order id prefix of another", "o", "payment_proof_o1_1700000000123.png", false},
		{"arbitrary object", "o1", "catalog/cover.png", false},
		{"nested under prefix", "o1", "payment_proof_o1_1/../../x.png", false},
		{"missing timestamp", "o1", "payment_proof_o1_.png", false},
		{"non numeric timestamp", "o1", "payment_proof_o1_abc.png", false},
		{"missing extension", "o1", "payment_proof_o1_123", false},
		{"empty ref", "o1", "", false},
		{"empty order", "", key, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsProofFor(tt.orderID, tt.ref))
		})
	}
}

func TestS3DeleteValidatesKey(t *testing.T) {
	store := &S3{bucket: "proofs"}

	for _, ref := range []string{"", "../escape.png", "/abs.png"} {
		assert.Error(t, store.Delete(context.Background(), ref), "ref %q", ref)
	}
}
