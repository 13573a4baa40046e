package telemetry

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/lixenwraith/rollback/physics"
)

// StateHash is FNV-1a over every body's id and state in id order
// Equal worlds hash equal on every platform; the tick number is not included
func StateHash(bodies []physics.BodyState) uint64 {
	h := fnv.New64a()
	var buf [4 + 6*8]byte
	for i := range bodies {
		b := &bodies[i]
		binary.LittleEndian.PutUint32(buf[0:], uint32(b.ID))
		binary.LittleEndian.PutUint64(buf[4:], uint64(b.Position.X))
		binary.LittleEndian.PutUint64(buf[12:], uint64(b.Position.Y))
		binary.LittleEndian.PutUint64(buf[20:], uint64(b.Velocity.X))
		binary.LittleEndian.PutUint64(buf[28:], uint64(b.Velocity.Y))
		binary.LittleEndian.PutUint64(buf[36:], uint64(b.Angle))
		binary.LittleEndian.PutUint64(buf[44:], uint64(b.AngularVelocity))
		h.Write(buf[:])
	}
	return h.Sum64()
}
