package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/flowengine/flowengine/internal/core/graph"
)

// Fingerprint returns the stable hash of an arbitrary normalized payload.
// encoding/json writes map keys in sorted order, so equal payloads always
// produce equal bytes regardless of insertion order.
func Fingerprint(normalized interface{}) (string, error) {
	data, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("canonicalizing payload: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// VertexFingerprint hashes the structural identity of a vertex: its own
// normalized form plus its entire upstream subgraph. Cosmetic editor state
// never reaches the normalized form, so moving or selecting nodes cannot
// invalidate cache entries.
func VertexFingerprint(f *graph.Flow, vertexID string) (string, error) {
	sig, err := f.Signature(vertexID)
	if err != nil {
		return "", err
	}
	return Fingerprint(sig)
}

// FlowFingerprint hashes the whole normalized flow for run-level caching.
func FlowFingerprint(f *graph.Flow) (string, error) {
	normalized, err := f.Normalize()
	if err != nil {
		return "", err
	}
	return Fingerprint(normalized)
}
