package noise

import "github.com/iti/rngstream"

// Source produces uniform variates in [0, 1).
type Source interface {
	RandU01() float64
}

// NewStream returns an independent random stream for the named consumer,
// normally a node or a link direction.
func NewStream(name string) Source {
	return rngstream.New(name)
}

// Intn returns a uniform integer in [0, n).
func Intn(src Source, n int) int {
	if n <= 1 {
		return 0
	}
	i := int(src.RandU01() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
