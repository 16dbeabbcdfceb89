package utils

// Value dereferences v, returning the zero value for a nil pointer. Used
// for the optional fields on API records.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

// Ptr returns a pointer to v, for populating optional request fields.
func Ptr[T any](v T) *T {
	return &v
}
