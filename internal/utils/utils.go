package utils

// Dedup returns the distinct, non-zero elements of slice in their first-seen order
func Dedup[T comparable](slice []T) []T {
	var zero T
	seen := make(map[T]struct{}, len(slice))
	result := make([]T, 0, len(slice))
	for _, elem := range slice {
		if elem == zero {
			continue
		}
		if _, ok := seen[elem]; ok {
			continue
		}
		seen[elem] = struct{}{}
		result = append(result, elem)
	}
	return result
}
