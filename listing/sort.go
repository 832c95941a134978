package listing

import (
	"strings"
	"time"
)

// SortKey orders a list by one comparison. Keys compose: the first key
// that distinguishes two rows decides their order.
type SortKey[T any] struct {
	Compare func(a, b T) int
	Desc    bool
}

// Descending returns a copy of the key with the direction flipped.
func (k SortKey[T]) Descending() SortKey[T] {
	k.Desc = true
	return k
}

// ByString orders rows by a string field, case-insensitively.
func ByString[T any](field func(T) string) SortKey[T] {
	return SortKey[T]{Compare: func(a, b T) int {
		return strings.Compare(strings.ToLower(field(a)), strings.ToLower(field(b)))
	}}
}

// ByInt orders rows by an integer field.
func ByInt[T any](field func(T) int64) SortKey[T] {
	return SortKey[T]{Compare: func(a, b T) int {
		av, bv := field(a), field(b)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	}}
}

// ByTime orders rows by a timestamp field, oldest first.
func ByTime[T any](field func(T) time.Time) SortKey[T] {
	return SortKey[T]{Compare: func(a, b T) int {
		av, bv := field(a), field(b)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		default:
			return 0
		}
	}}
}

func compareKeys[T any](keys []SortKey[T], a, b T) int {
	for _, key := range keys {
		if key.Compare == nil {
			continue
		}
		c := key.Compare(a, b)
		if c == 0 {
			continue
		}
		if key.Desc {
			return -c
		}
		return c
	}
	return 0
}
