package textgen

import "context"

// Static returns canned responses in order, then repeats the last one.
// Used in tests and in the dev profile when no backend is configured.
type Static struct {
	Responses []string
	Err       error

	calls int
}

func (s *Static) Model() string {
	return "static"
}

func (s *Static) Generate(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Err != nil {
		s.calls++
		return "", s.Err
	}
	if len(s.Responses) == 0 {
		return "", nil
	}
	idx := s.calls
	if idx >= len(s.Responses) {
		idx = len(s.Responses) - 1
	}
	s.calls++
	return s.Responses[idx], nil
}

// Calls reports how many times Generate was invoked.
func (s *Static) Calls() int {
	return s.calls
}
