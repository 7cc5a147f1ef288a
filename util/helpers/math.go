package helpers

import "golang.org/x/exp/constraints"

type number interface {
	constraints.Integer | constraints.Float
}

func Min[T constraints.Ordered](numbers ...T) T {
	var min T = numbers[0]
	for _, n := range numbers {
		if n < min {
			min = n
		}
	}
	return min
}

func Max[T constraints.Ordered](numbers ...T) T {
	var max T = numbers[0]
	for _, n := range numbers {
		if n > max {
			max = n
		}
	}
	return max
}

// Mean returns the arithmetic mean of numbers, or 0 for an empty list.
func Mean[T number](numbers ...T) float64 {
	if len(numbers) == 0 {
		return 0
	}
	var total float64
	for _, n := range numbers {
		total += float64(n)
	}
	return total / float64(len(numbers))
}
