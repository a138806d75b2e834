package service

import (
	"encoding/binary"

	"github.com/CloneITai/CloneITLocalAis/segment"
	"github.com/cespare/xxhash/v2"
)

// SelectMask 选出面积最大的候选。并列时按占用网格的 xxhash64 取较小者，
// 因此结果与候选的输入顺序无关；网格完全相同时保留先出现的那个。
func SelectMask(candidates []segment.Mask) (segment.Mask, error) {
	if len(candidates) == 0 {
		return segment.Mask{}, ErrNoCandidates
	}

	best := 0
	var bestHash uint64
	hashed := false

	for i := 1; i < len(candidates); i++ {
		c := candidates[i]
		switch {
		case c.Area > candidates[best].Area:
			best = i
			hashed = false
		case c.Area == candidates[best].Area:
			if !hashed {
				bestHash = occupancyHash(candidates[best])
				hashed = true
			}
			if h := occupancyHash(c); h < bestHash {
				best = i
				bestHash = h
			}
		}
	}

	return candidates[best], nil
}

// occupancyHash 对尺寸与按位打包的占用网格求哈希
func occupancyHash(m segment.Mask) uint64 {
	buf := make([]byte, 16+(len(m.Occupancy)+7)/8)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(m.Width))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(m.Height))
	bits := buf[16:]
	for i, v := range m.Occupancy {
		if v {
			bits[i/8] |= 1 << (i % 8)
		}
	}
	return xxhash.Sum64(buf)
}
