package oram

// Choice is a single-bit condition, 0 or 1, used to drive constant-time
// selection. Choices combine with the usual bit operators: c1 & c2, c1 | c2,
// and 1 ^ c for negation.
type Choice uint64

// ctEq64 returns 1 if x == y and 0 otherwise, without branching.
func ctEq64(x, y uint64) Choice {
	v := x ^ y
	return Choice(1 ^ ((v | -v) >> 63))
}

// ctLess64 returns 1 if x < y and 0 otherwise, without branching.
func ctLess64(x, y uint64) Choice {
	return Choice((((^x) & y) | (((^x) | y) & (x - y))) >> 63)
}

// ctSelect64 returns a if choice is 0 and b if choice is 1, without
// branching.
func ctSelect64(a, b uint64, choice Choice) uint64 {
	mask := -uint64(choice)
	return a ^ (mask & (a ^ b))
}

// ctSwap64 exchanges *x and *y if choice is 1, without branching.
func ctSwap64(x, y *uint64, choice Choice) {
	mask := -uint64(choice)
	t := mask & (*x ^ *y)
	*x ^= t
	*y ^= t
}
