package slice

// Map returns a new slice holding fn applied to every element of s.
func Map[In, Out any](s []In, fn func(In) Out) []Out {
	out := make([]Out, len(s))
	for i, v := range s {
		out[i] = fn(v)
	}
	return out
}

// Filter returns the elements of s for which fn reports true.
func Filter[S ~[]E, E any](s S, fn func(E) bool) S {
	out := make(S, 0, len(s))
	for _, v := range s {
		if fn(v) {
			out = append(out, v)
		}
	}
	return out
}

// NoZero removes zero values from s.
func NoZero[S ~[]E, E comparable](s S) S {
	var zero E
	return Filter(s, func(v E) bool { return v != zero })
}

// Unique removes duplicates from s, keeping the first occurrence of each value.
func Unique[S ~[]E, E comparable](s S) S {
	seen := make(map[E]struct{}, len(s))
	out := make(S, 0, len(s))
	for _, v := range s {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
