package utils

func Contains[T comparable](arr []T, item T) bool {
	for _, i := range arr {
		if i == item {
			return true
		}
	}

	return false
}

// SameElements reports whether a and b hold the same set of items, ignoring order and duplicates.
func SameElements[T comparable](a, b []T) bool {
	seen := make(map[T]struct{}, len(a))
	for _, i := range a {
		seen[i] = struct{}{}
	}

	other := make(map[T]struct{}, len(b))
	for _, i := range b {
		if _, ok := seen[i]; !ok {
			return false
		}
		other[i] = struct{}{}
	}

	return len(seen) == len(other)
}
