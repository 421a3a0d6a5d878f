package securedraw

import (
	"fmt"
	"sync"
	"time"

	"github.com/ReneKroon/ttlcache/v2"
	"github.com/cockroachdb/errors"
	"github.com/libp2p/go-libp2p/core/peer"
)

const (
	CallerHeader    = "X-Securedraw-Caller"
	SignatureHeader = "X-Securedraw-Signature"
	SlotHeader      = "X-Securedraw-Slot"
	NonceHeader     = "X-Securedraw-Nonce"

	// DefaultRequestWindow is how many slots a signed request stays acceptable.
	DefaultRequestWindow uint64 = 150

	maxNonceLength = 128
)

// RequestPayload is the byte string a caller signs to authenticate an HTTP request.
// slot is the clock slot the request was signed at; nonce is chosen by the caller and
// may not repeat within the request window.
func RequestPayload(method, path string, slot uint64, nonce string, body []byte) []byte {
	return fmt.Appendf(nil, "%s %s\n%d\n%s\n%s", method, path, slot, nonce, body)
}

// VerifySignature checks that sig is signer's signature over payload. The public key
// is recovered from the peer ID itself, so only IDs that inline their key can sign.
func VerifySignature(signer peer.ID, payload, sig []byte) error {
	pub, err := signer.ExtractPublicKey()
	if err != nil {
		return errors.Wrapf(ErrUnauthorized, "no public key in %s: %v", signer, err)
	}
	ok, err := pub.Verify(payload, sig)
	if err != nil {
		return errors.Wrapf(ErrUnauthorized, "verifying signature of %s: %v", signer, err)
	}
	if !ok {
		return errors.Wrapf(ErrUnauthorized, "invalid signature from %s", signer)
	}
	return nil
}

// checkRequestSlot accepts request slots from now back to window slots ago.
func checkRequestSlot(slot, now, window uint64) error {
	if slot > now || now-slot > window {
		return errors.Wrapf(ErrStaleRequest, "signed at slot %d, clock is at %d", slot, now)
	}
	return nil
}

// replayGuard remembers the nonces callers used for as long as their requests can
// still pass checkRequestSlot.
type replayGuard struct {
	mu   sync.Mutex
	seen *ttlcache.Cache
}

func newReplayGuard(ttl time.Duration) (*replayGuard, error) {
	seen := ttlcache.NewCache()
	if err := seen.SetTTL(ttl); err != nil {
		return nil, errors.WithStack(err)
	}
	seen.SkipTTLExtensionOnHit(true)
	return &replayGuard{seen: seen}, nil
}

// claim records nonce as used by caller and fails if it already was.
func (g *replayGuard) claim(caller peer.ID, nonce string) error {
	key := caller.String() + "/" + nonce
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.seen.Get(key)
	switch {
	case err == nil:
		return errors.Wrapf(ErrReplayedRequest, "nonce %q from %s", nonce, caller)
	case !errors.Is(err, ttlcache.ErrNotFound):
		return errors.WithStack(err)
	}
	return errors.WithStack(g.seen.Set(key, struct{}{}))
}

func (g *replayGuard) Close() error {
	return g.seen.Close()
}
