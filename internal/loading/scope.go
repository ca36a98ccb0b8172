package loading

import "sync"

// Acquire shows message and returns a release func that hides it exactly once,
// however many times it is called.
func (s *Signal) Acquire(message string) (release func()) {
	s.Show(message)
	var once sync.Once
	return func() {
		once.Do(s.Hide)
	}
}

// Track runs fn while holding the signal. The signal is released on every exit
// path, including a panic inside fn.
func Track(s *Signal, message string, fn func() error) error {
	release := s.Acquire(message)
	defer release()
	return fn()
}

// TrackValue is Track for functions returning a value.
func TrackValue[T any](s *Signal, message string, fn func() (T, error)) (T, error) {
	release := s.Acquire(message)
	defer release()
	return fn()
}
