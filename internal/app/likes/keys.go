package likes

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ridersalliance/petition-likes/internal/domain"
)

// HashClientToken digests the self-asserted client token. Only the digest
// is ever persisted, so a storage compromise leaks no raw identities.
func HashClientToken(token string) domain.ClientHash {
	sum := sha256.Sum256([]byte(token))
	return domain.ClientHash(hex.EncodeToString(sum[:]))
}

// RateKeyFor hashes the (slug, ip, token) triple into the rate-window
// key. Raw IPs and tokens stay out of the rate_windows table as well.
func RateKeyFor(slug domain.Slug, ip, token string) domain.RateKey {
	base := fmt.Sprintf("%s:%s:%s", slug, ip, token)
	sum := sha256.Sum256([]byte(base))
	return domain.RateKey(hex.EncodeToString(sum[:]))
}
