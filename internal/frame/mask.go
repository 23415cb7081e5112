package frame

import "encoding/binary"

// unmask XORs p with key in place. pos is the offset of p[0] in the whole
// payload, so a payload unmasked in several chunks gets the same result as
// one unmasked at once.
func unmask(p []byte, key [4]byte, pos int) {
	var k [4]byte
	for i := range k {
		k[i] = key[(pos+i)%4]
	}

	if len(p) >= 8 {
		key32 := binary.LittleEndian.Uint32(k[:])
		key64 := uint64(key32)<<32 | uint64(key32)

		for len(p) >= 32 {
			v := binary.LittleEndian.Uint64(p)
			binary.LittleEndian.PutUint64(p, v^key64)
			v = binary.LittleEndian.Uint64(p[8:16])
			binary.LittleEndian.PutUint64(p[8:16], v^key64)
			v = binary.LittleEndian.Uint64(p[16:24])
			binary.LittleEndian.PutUint64(p[16:24], v^key64)
			v = binary.LittleEndian.Uint64(p[24:32])
			binary.LittleEndian.PutUint64(p[24:32], v^key64)
			p = p[32:]
		}

		for len(p) >= 8 {
			v := binary.LittleEndian.Uint64(p)
			binary.LittleEndian.PutUint64(p, v^key64)
			p = p[8:]
		}
	}

	// 8 is a multiple of 4, k still lines up with p[0].
	for i := range p {
		p[i] ^= k[i%4]
	}
}
