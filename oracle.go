package securedraw

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/sign/bdn"
	"go.dedis.ch/kyber/v3/util/random"
)

// Oracle is a verifiable randomness service. Each request, identified by ref, is first
// committed at a seed slot and later revealed.
type Oracle interface {
	// SeedSlot returns the slot at which the randomness for ref was committed.
	SeedSlot(ctx context.Context, ref peer.ID) (uint64, error)
	// Resolve returns the revealed value for ref, or ErrNotResolved while the oracle
	// has yet to reveal it.
	Resolve(ctx context.Context, ref peer.ID) ([]byte, error)
}

var (
	_ Oracle = (*BeaconOracle)(nil)

	suite = bn256.NewSuite()
)

type beaconRequest struct {
	seedSlot  uint64
	signature []byte
}

// BeaconOracle reveals randomness as BDN signatures over (ref, seed slot). The value
// handed out is derived from a signature only after it verifies against the oracle's
// public key, so a consumer can check every value it is given.
//
// A request is sealed for the slot it was made in and the one after, which is the
// only slot a commitment can bind it in. Reveal opens after that.
type BeaconOracle struct {
	clock Clock
	priv  kyber.Scalar
	pub   kyber.Point

	mutex    sync.RWMutex
	requests map[peer.ID]*beaconRequest
}

// NewBeaconOracle generates a fresh key pair from entropy and seeds requests at the
// slots of clock. A nil entropy source uses the system's secure random source.
func NewBeaconOracle(clock Clock, entropy io.Reader) *BeaconOracle {
	var stream = random.New()
	if entropy != nil {
		stream = random.New(entropy)
	}
	priv, pub := bdn.NewKeyPair(suite, stream)
	return &BeaconOracle{
		clock:    clock,
		priv:     priv,
		pub:      pub,
		requests: make(map[peer.ID]*beaconRequest),
	}
}

// PublicKey returns the marshalled key beacons verify against.
func (o *BeaconOracle) PublicKey() ([]byte, error) {
	return o.pub.MarshalBinary()
}

// Request commits the oracle to reveal randomness for ref, seeded at the current slot,
// and returns that slot. A ref can only be requested once.
func (o *BeaconOracle) Request(ctx context.Context, ref peer.ID) (uint64, error) {
	if err := checkID(ref); err != nil {
		return 0, errors.Wrapf(ErrInvalidReference, "%q: %v", ref, err)
	}
	slot, err := o.clock.Slot(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "reading clock")
	}
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if _, ok := o.requests[ref]; ok {
		return 0, errors.Wrapf(ErrRequestExists, "%s", ref)
	}
	o.requests[ref] = &beaconRequest{seedSlot: slot}
	return slot, nil
}

// Reveal signs the request for ref and returns the beacon signature. It fails with
// ErrNotResolved until the clock is past the slot after the seed slot.
func (o *BeaconOracle) Reveal(ctx context.Context, ref peer.ID) ([]byte, error) {
	now, err := o.clock.Slot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading clock")
	}
	o.mutex.Lock()
	defer o.mutex.Unlock()
	req, ok := o.requests[ref]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownRandomness, "%s", ref)
	}
	if req.signature != nil {
		return req.signature, nil
	}
	if now <= req.seedSlot+1 {
		return nil, errors.Wrapf(ErrNotResolved, "%s opens for reveal at slot %d", ref, req.seedSlot+2)
	}
	sig, err := bdn.Sign(suite, o.priv, beaconMessage(ref, req.seedSlot))
	if err != nil {
		return nil, errors.Wrap(err, "signing beacon")
	}
	req.signature = sig
	return sig, nil
}

func (o *BeaconOracle) SeedSlot(_ context.Context, ref peer.ID) (uint64, error) {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	req, ok := o.requests[ref]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownRandomness, "%s", ref)
	}
	return req.seedSlot, nil
}

func (o *BeaconOracle) Resolve(_ context.Context, ref peer.ID) ([]byte, error) {
	o.mutex.RLock()
	req, ok := o.requests[ref]
	var slot uint64
	var sig []byte
	if ok {
		slot, sig = req.seedSlot, req.signature
	}
	o.mutex.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrUnknownRandomness, "%s", ref)
	}
	if sig == nil {
		return nil, errors.Wrapf(ErrNotResolved, "%s awaiting reveal", ref)
	}
	if err := verifyBeacon(o.pub, ref, slot, sig); err != nil {
		return nil, err
	}
	return BeaconValue(sig), nil
}

// VerifyBeacon checks that sig is the beacon for ref at slot under the marshalled
// oracle public key.
func VerifyBeacon(publicKey []byte, ref peer.ID, slot uint64, sig []byte) error {
	pub := suite.G2().Point()
	if err := pub.UnmarshalBinary(publicKey); err != nil {
		return errors.Wrap(err, "invalid beacon public key")
	}
	return verifyBeacon(pub, ref, slot, sig)
}

func verifyBeacon(pub kyber.Point, ref peer.ID, slot uint64, sig []byte) error {
	if err := bdn.Verify(suite, pub, beaconMessage(ref, slot), sig); err != nil {
		return errors.Wrapf(err, "beacon for %s at slot %d does not verify", ref, slot)
	}
	return nil
}

func beaconMessage(ref peer.ID, slot uint64) []byte {
	msg := make([]byte, 0, len(ref)+8)
	msg = append(msg, []byte(ref)...)
	return binary.BigEndian.AppendUint64(msg, slot)
}
