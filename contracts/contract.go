// Package contracts implements the inter-stage data contracts
// (ManuscriptCoreOutput, LayoutIntentPackage) and the Contract Validator
// (C11). Checksum computation is grounded byte-for-byte on
// core/contracts/base.py's ContractMetadata.calculate_checksum: canonical
// JSON (sorted keys, unicode preserved) over the payload with the
// "checksum" field elided from both the top level and any nested
// "metadata" map, hashed with SHA-256 and truncated to 16 hex chars.
package contracts

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Metadata carries the envelope described in spec §6.
type Metadata struct {
	Version     string `json:"version"`
	CreatedAt   string `json:"created_at"`
	SourceAgent string `json:"source_agent"`
	TargetAgent string `json:"target_agent"`
	Checksum    string `json:"checksum"`
}

// NewMetadata stamps CreatedAt as ISO-8601 UTC, matching §6.
func NewMetadata(version, sourceAgent, targetAgent string) Metadata {
	return Metadata{
		Version:     version,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		SourceAgent: sourceAgent,
		TargetAgent: targetAgent,
	}
}

// Contract is any checksum-bearing, JSON-serializable inter-stage payload.
type Contract interface {
	// ToDict returns the canonical map representation used for hashing
	// and JSON round-tripping.
	ToDict() map[string]any
	// Validate returns structural validation errors, empty if valid.
	Validate() []string
	// GetMetadata exposes the envelope for checksum verification.
	GetMetadata() Metadata
}

// CalculateChecksum computes the first 16 hex chars of SHA-256 over the
// canonical JSON of data with "checksum" elided from the top level and
// from any nested "metadata" map.
func CalculateChecksum(data map[string]any) string {
	clone := cloneWithoutChecksum(data)
	canonical, err := canonicalJSON(clone)
	if err != nil {
		// Never raises in the original; degrade to a hash of the error text
		// so callers always get a deterministic, if wrong, value to compare.
		canonical = []byte(err.Error())
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16]
}

func cloneWithoutChecksum(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if k == "checksum" {
			continue
		}
		if k == "metadata" {
			if nested, ok := v.(map[string]any); ok {
				out[k] = cloneWithoutChecksumShallow(nested)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func cloneWithoutChecksumShallow(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if k == "checksum" {
			continue
		}
		out[k] = v
	}
	return out
}

// canonicalJSON marshals with sorted map keys (Go's encoding/json already
// sorts map[string]any keys) and without HTML escaping, matching Python's
// json.dumps(sort_keys=True, ensure_ascii=False).
func canonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("canonicalJSON: %w", err)
	}
	// Encoder.Encode appends a trailing newline; trim it to match
	// json.dumps (no trailing newline).
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Stamp computes and sets the checksum on a contract's metadata from its
// ToDict() representation; call after populating all other fields.
func Stamp(c Contract, setChecksum func(string)) {
	setChecksum(CalculateChecksum(c.ToDict()))
}

// VerifyChecksum recomputes the checksum from ToDict() and compares
// against the stored value (P7).
func VerifyChecksum(c Contract) bool {
	return CalculateChecksum(c.ToDict()) == c.GetMetadata().Checksum
}
