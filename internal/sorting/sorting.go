// Package sorting implements the ordering algorithms offered by the sortArray
// command. Every function returns a new slice and leaves its input untouched.
package sorting

import (
	"cmp"
	"slices"
)

// Quick sorts with a middle pivot and a three-way partition. Elements equal
// to the pivot are collected in their own bucket, so runs of duplicates never
// recurse.
func Quick[T cmp.Ordered](s []T) []T {
	if len(s) <= 1 {
		return slices.Clone(s)
	}

	pivot := s[len(s)/2]
	var less, equal, greater []T
	for _, v := range s {
		switch {
		case v < pivot:
			less = append(less, v)
		case v > pivot:
			greater = append(greater, v)
		default:
			equal = append(equal, v)
		}
	}

	out := make([]T, 0, len(s))
	out = append(out, Quick(less)...)
	out = append(out, equal...)
	out = append(out, Quick(greater)...)
	return out
}

// Merge is a top-down merge sort. On ties the element from the left half is
// taken first, which keeps equal keys in their original order.
func Merge[T cmp.Ordered](s []T) []T {
	if len(s) <= 1 {
		return slices.Clone(s)
	}

	mid := len(s) / 2
	return merge(Merge(s[:mid]), Merge(s[mid:]))
}

func merge[T cmp.Ordered](left, right []T) []T {
	out := make([]T, 0, len(left)+len(right))
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		if left[i] <= right[j] {
			out = append(out, left[i])
			i++
		} else {
			out = append(out, right[j])
			j++
		}
	}
	out = append(out, left[i:]...)
	return append(out, right[j:]...)
}

// Bubble performs n-1 passes of adjacent swaps over a copy of s.
func Bubble[T cmp.Ordered](s []T) []T {
	out := slices.Clone(s)
	n := len(out)
	for i := 0; i < n-1; i++ {
		for j := 0; j < n-i-1; j++ {
			if out[j] > out[j+1] {
				out[j], out[j+1] = out[j+1], out[j]
			}
		}
	}
	return out
}

// Native sorts a copy of s with the standard library.
func Native[T cmp.Ordered](s []T) []T {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}
