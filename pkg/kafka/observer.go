package kafka

import "errors"

// Observer receives publish and handle outcomes. Result is "ok", "error" or,
// for handled messages only, "dead_letter".
type Observer interface {
	ObserveKafkaPublish(topic, result string, bytes int, seconds float64)
	ObserveKafkaHandle(topic, result string, seconds float64)
}

type nopObserver struct{}

func (nopObserver) ObserveKafkaPublish(string, string, int, float64) {}
func (nopObserver) ObserveKafkaHandle(string, string, float64)       {}

// PermanentError marks a handler failure that no retry can fix, such as a
// payload that does not decode.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the consumer skips its retry loop.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func isPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
