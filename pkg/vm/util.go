package vm

import "github.com/kristofer/ember/pkg/object"

// popArgs drains exactly n values off host's stack and returns them in
// original call order (host.PopValue pops last-pushed-first).
func popArgs(host object.Host, n int) ([]object.Value, error) {
	args := make([]object.Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := host.PopValue()
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}
