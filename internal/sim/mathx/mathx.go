package mathx

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Max3Abs returns the largest absolute value of a, b and c.
func Max3Abs(a, b, c int) int {
	return MaxInt(AbsInt(a), MaxInt(AbsInt(b), AbsInt(c)))
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Hash2 mixes a seed with a 2D lattice coordinate (splitmix64 finaliser).
func Hash2(seed int64, q, r int) uint64 {
	uq := uint64(uint32(int32(q)))
	ur := uint64(uint32(int32(r)))
	v := uint64(seed) ^ (uq * 0x9e3779b97f4a7c15) ^ (ur * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// DeriveSeed turns a world seed and a chunk coordinate into the seed of that
// chunk's pseudorandom stream.
func DeriveSeed(worldSeed int64, q, r int) int64 {
	return int64(Hash2(worldSeed, q, r) >> 1)
}
