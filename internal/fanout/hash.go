package fanout

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/windmix/fanbench/internal/worker"
)

// HashFunc maps a thread identity to its contribution.
type HashFunc func(identity uint64) uint64

// HashIdentity is the 32-bit FNV-1a hash of the identity's little-endian
// bytes, widened to uint64 so that summing N of them cannot wrap for any
// realistic N.
func HashIdentity(identity uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], identity)
	h := fnv.New32a()
	_, _ = h.Write(buf[:])
	return uint64(h.Sum32())
}

// FoldExitStatus maps a process identity to the contribution its exit status
// can carry. Only the low 8 bits of an exit code survive wait(2), so a child
// exits with its pid modulo 256 and the parent recovers exactly that value.
func FoldExitStatus(identity uint64) uint64 {
	return identity % worker.ExitStatusRange
}
