package platform

import "context"

// Call records one invocation made against a MockRunner.
type Call struct {
	Stdin string
	Name  string
	Args  []string
}

// MockRunner is a hand-rolled recording Runner for unit tests. Results are
// served in FIFO order from Results; once exhausted, an empty Result with a
// nil error is returned.
type MockRunner struct {
	Calls   []Call
	Results []Result
	Errs    []error
}

// Run records the call and returns the next canned Result.
func (m *MockRunner) Run(_ context.Context, name string, args ...string) (Result, error) {
	return m.next(Call{Name: name, Args: args})
}

// RunStdin records the call (including stdin) and returns the next canned Result.
func (m *MockRunner) RunStdin(_ context.Context, input string, name string, args ...string) (Result, error) {
	return m.next(Call{Stdin: input, Name: name, Args: args})
}

func (m *MockRunner) next(call Call) (Result, error) {
	m.Calls = append(m.Calls, call)

	idx := len(m.Calls) - 1
	var result Result
	var err error
	if idx < len(m.Results) {
		result = m.Results[idx]
	}
	if idx < len(m.Errs) {
		err = m.Errs[idx]
	}
	return result, err
}
