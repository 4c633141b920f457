package model

import "slices"

// Move relocates the element at from to index to, shifting the ones in
// between. Out of range indices leave the list untouched.
func Move[T any](list []T, from, to int) []T {
	if from < 0 || from >= len(list) || to < 0 || to >= len(list) || from == to {
		return list
	}
	v := list[from]
	list = slices.Delete(list, from, from+1)
	return slices.Insert(list, to, v)
}
