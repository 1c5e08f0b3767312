// Package trace parses the git-log-replay edit trace the supervisor
// drives and implements the supervisor itself: bootstrap a peer per
// distinct author, replay the trace sequentially, snapshot convergence,
// tear down. Per the design, this is intentionally thin test-scaffolding,
// not algorithmic — the trace format itself is an external collaborator's
// concern and is treated here as opaque except for the fields the
// supervisor needs to drive peers.
package trace

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Op is the kind of edit a commit applies.
type Op string

const (
	OpInsert Op = "insert"
	OpDelete Op = "delete"
)

// Edit is one line-level change within a commit.
type Edit struct {
	Op      Op     `yaml:"op"`
	Content string `yaml:"content,omitempty"`
	Index   int    `yaml:"index"`
}

// Commit is one record of the trace: an author's batch of edits.
type Commit struct {
	Hash   string `yaml:"hash"`
	Author string `yaml:"author"`
	Edits  []Edit `yaml:"edits"`
}

// Trace is an ordered sequence of commits, as replayed by the supervisor.
type Trace struct {
	Commits []Commit `yaml:"commits"`
}

// Parse decodes a YAML-encoded trace. The wire format is intentionally
// simple — this mirrors the source system's reliance on an external
// git-log replay harness, reduced here to the fields the supervisor
// actually consumes (author, op, content, index).
func Parse(data []byte) (Trace, error) {
	var t Trace
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Trace{}, fmt.Errorf("trace: parse: %w", err)
	}
	for i, c := range t.Commits {
		if c.Author == "" {
			return Trace{}, fmt.Errorf("trace: commit %d (%s): missing author", i, c.Hash)
		}
		for j, e := range c.Edits {
			if e.Op != OpInsert && e.Op != OpDelete {
				return Trace{}, fmt.Errorf("trace: commit %d (%s) edit %d: unknown op %q", i, c.Hash, j, e.Op)
			}
		}
	}
	return t, nil
}

// Authors returns the distinct authors appearing in the trace, in first-
// appearance order — the supervisor spins up exactly one peer per author.
func (t Trace) Authors() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range t.Commits {
		if _, ok := seen[c.Author]; !ok {
			seen[c.Author] = struct{}{}
			out = append(out, c.Author)
		}
	}
	return out
}
