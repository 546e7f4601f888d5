package identity

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gowebpki/jcs"
)

// Domain prefixes for content-addressed identity. Version suffix enables
// future algorithm migration. Keeping fragment and policy digests in
// separate domains means the two kinds of identity can never collide
// textually.
const (
	DomainFragment        = "fleetstate/fragment/v1"
	DomainPolicySignature = "fleetstate/policy/v1"
	DomainPlanPayload     = "fleetstate/plan/v1"
)

// Digest computes a SHA-256 hex digest with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte separator prevents
// domain/data boundary ambiguity.
func Digest(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DigestJSON canonicalizes a JSON document per RFC 8785 (JCS) and digests
// the canonical form. Two serializations of the same value (key order,
// whitespace, number formatting) always yield the same digest.
func DigestJSON(domain string, document []byte) (string, error) {
	canonical, err := jcs.Transform(document)
	if err != nil {
		return "", err
	}
	return Digest(domain, canonical), nil
}
