package utils

import "fmt"

// ToStringSlice renders every element of slice as a string. Nil elements are
// skipped.
func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0, len(slice))
	for _, v := range slice {
		switch v := v.(type) {
		case nil:
		case string:
			stringSlice = append(stringSlice, v)
		default:
			stringSlice = append(stringSlice, fmt.Sprint(v))
		}
	}
	return stringSlice
}
