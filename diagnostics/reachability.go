package diagnostics

import (
	"fmt"
	"sort"

	"tweers/twee"
)

// Reachable performs a breadth-first traversal of the link graph starting
// at start, returning the set of reached passage names and the sorted list
// of passages that were never reached — adapted from the teacher's
// PathSimulator.GetSuggestedPaths traversal, simplified to plain
// reachability since the core pipeline has no Harlowe variable-state model
// to simulate against.
func Reachable(passages map[string]twee.Passage, start string) (reached map[string]bool, unreachable []string) {
	reached = map[string]bool{}
	if _, ok := passages[start]; !ok {
		for name := range passages {
			unreachable = append(unreachable, name)
		}
		sort.Strings(unreachable)
		return reached, unreachable
	}

	queue := []string{start}
	reached[start] = true
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		p, ok := passages[name]
		if !ok {
			continue
		}
		for _, target := range ExtractLinks(p.Content) {
			if !reached[target] {
				reached[target] = true
				queue = append(queue, target)
			}
		}
	}

	for name := range passages {
		if !reached[name] {
			unreachable = append(unreachable, name)
		}
	}
	sort.Strings(unreachable)
	return reached, unreachable
}

// Trace is the result of simulating a single path through the link graph.
type Trace struct {
	Path           []string
	AvailableLinks map[string][]string // passage name -> links found in its content
}

// Simulate validates that each consecutive pair in path is connected by a
// direct link, per the teacher's PathSimulator.ValidatePath, and returns a
// Trace of the links available at each step. It returns one error per
// missing passage or missing link, matching the teacher's accumulate-all-
// errors behavior rather than stopping at the first problem.
func Simulate(passages map[string]twee.Passage, path []string) (*Trace, []error) {
	var errs []error
	trace := &Trace{Path: path, AvailableLinks: map[string][]string{}}

	for i, name := range path {
		p, ok := passages[name]
		if !ok {
			errs = append(errs, fmt.Errorf("step %d: passage %q does not exist", i+1, name))
			continue
		}
		links := ExtractLinks(p.Content)
		trace.AvailableLinks[name] = links

		if i+1 < len(path) {
			next := path[i+1]
			if !contains(links, next) {
				errs = append(errs, fmt.Errorf("step %d→%d: %q has no direct link to %q (available: %v)", i+1, i+2, name, next, links))
			}
		}
	}
	return trace, errs
}

func contains(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
