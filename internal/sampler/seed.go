package sampler

import (
	"crypto/sha256"
	"fmt"
	"strconv"
)

// DeriveJobSeed maps a master seed and a job index to an independent
// per-shard seed. Adjacent job indexes produce unrelated seeds because the
// mixing string round-trips through SHA-256; the result is truncated to nine
// decimal digits so it stays comfortably inside every PRNG's seed range.
func DeriveJobSeed(masterSeed int64, jobIndex int) int64 {
	mixed := fmt.Sprintf("xx_%d_yy_%d_zz_%d", jobIndex, masterSeed, jobIndex)
	digest := sha256.Sum256([]byte(mixed))

	hex := fmt.Sprintf("%x", digest)
	wide, err := strconv.ParseUint(hex[:16], 16, 64)
	if err != nil {
		// Sixteen hex digits always parse; this cannot happen.
		panic(err)
	}

	decimal := strconv.FormatUint(wide, 10)
	if len(decimal) > 9 {
		decimal = decimal[:9]
	}
	seed, err := strconv.ParseInt(decimal, 10, 64)
	if err != nil {
		panic(err)
	}
	return seed
}
