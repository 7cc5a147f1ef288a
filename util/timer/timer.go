package timer

import "time"

// Measure runs f and returns how long it took.
func Measure(f func()) time.Duration {
	start := time.Now()
	f()
	return time.Since(start)
}

// Repeat runs f n times and returns each run's duration. It stops at the
// first error.
func Repeat(n int, f func() error) ([]time.Duration, error) {
	durations := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		var err error
		d := Measure(func() { err = f() })
		if err != nil {
			return durations, err
		}
		durations = append(durations, d)
	}
	return durations, nil
}
