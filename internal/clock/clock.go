package clock

import "time"

// Clock abstracts time.Now so deadline logic can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// Real is a Clock backed by the system clock.
type Real struct{}

func (Real) Now() time.Time {
	return time.Now()
}

// Fake is a Clock pinned to a fixed instant, for tests.
type Fake struct {
	Time time.Time
}

func (f *Fake) Now() time.Time {
	return f.Time
}

// Advance moves the fake clock forward.
func (f *Fake) Advance(d time.Duration) {
	f.Time = f.Time.Add(d)
}
