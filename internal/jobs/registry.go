package jobs

import (
	"maps"

	"github.com/kiranshivaraju/analysisctl/pkg/models"
)

// EventKind says why a job is being shown to the user.
type EventKind int

const (
	// EventDiscovered fires the first time a job id appears in the agent's list.
	EventDiscovered EventKind = iota + 1
	// EventCompleted fires once per job when it is first seen completed.
	EventCompleted
	// EventFailed fires once per job when it is first seen failed.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventDiscovered:
		return "discovered"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	}
	return "unknown"
}

// Event is one thing a monitor tick found. Job is the detailed record for
// EventCompleted and EventFailed and nil for EventDiscovered.
type Event struct {
	Kind    EventKind
	Summary models.JobSummary
	Job     *models.Job
}

// Registry is client-local bookkeeping of which jobs a monitoring session has
// seen and which it has already presented. It is a value: Tick takes one and
// returns an updated copy, leaving its argument untouched. Entries are never
// removed.
type Registry struct {
	known     map[string]struct{}
	presented map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() Registry {
	return Registry{
		known:     make(map[string]struct{}),
		presented: make(map[string]struct{}),
	}
}

func (r Registry) Known(id string) bool {
	_, ok := r.known[id]
	return ok
}

func (r Registry) Presented(id string) bool {
	_, ok := r.presented[id]
	return ok
}

func (r Registry) KnownCount() int     { return len(r.known) }
func (r Registry) PresentedCount() int { return len(r.presented) }

func (r Registry) clone() Registry {
	out := Registry{known: maps.Clone(r.known), presented: maps.Clone(r.presented)}
	if out.known == nil {
		out.known = make(map[string]struct{})
	}
	if out.presented == nil {
		out.presented = make(map[string]struct{})
	}
	return out
}

func (r Registry) markKnown(id string)     { r.known[id] = struct{}{} }
func (r Registry) markPresented(id string) { r.presented[id] = struct{}{} }
