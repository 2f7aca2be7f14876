package segment

// SetRetryHook installs fn to run before every open attempt Reopen makes
// after detecting a rotation.
func SetRetryHook(s *Segment, fn func(attempt int)) {
	s.retryHook = fn
}
