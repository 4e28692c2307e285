package sync

import (
	"encoding/binary"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring over stripe indices.
type ring struct {
	hashRing *treemap.Map

	// minStripe caches the stripe of the smallest hash, which is where keys
	// hashing past the last entry wrap to.
	minStripe int
}

// newRing places replicationFactor virtual nodes for each of stripes on the
// ring.
func newRing(stripes, replicationFactor uint) *ring {
	hashRing := treemap.NewWith(utils.Int64Comparator)
	for stripe := uint(0); stripe < stripes; stripe++ {
		var stripeBytes [8]byte
		binary.LittleEndian.PutUint64(stripeBytes[:], uint64(stripe))
		stripeHash, _ := murmur3.Sum128(stripeBytes[:])

		var seed [12]byte
		binary.LittleEndian.PutUint64(seed[:8], stripeHash)
		for i := uint(0); i < replicationFactor; i++ {
			binary.LittleEndian.PutUint32(seed[8:], uint32(i))
			hash, _ := murmur3.Sum128(seed[:])
			hashRing.Put(int64(hash), int(stripe))
		}
	}

	r := &ring{hashRing: hashRing}
	if _, minStripe := hashRing.Min(); minStripe != nil {
		r.minStripe = minStripe.(int)
	}
	return r
}

// shard returns the stripe owning key.
func (r *ring) shard(key []byte) int {
	raw, _ := murmur3.Sum128(key)
	if _, stripe := r.hashRing.Ceiling(int64(raw)); stripe != nil {
		return stripe.(int)
	}
	return r.minStripe
}
