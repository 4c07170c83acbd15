package dom6

import (
	"fmt"
	"ironfly/internal/gamestate"
)

type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	// the status page does not exist (HTTP 404)
	OutcomeNotFound
	// network failure, timeout or any other HTTP error
	OutcomeTransient
	// the page was fetched but held no readable status table
	OutcomeParseFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not found"
	case OutcomeTransient:
		return "transient"
	case OutcomeParseFailure:
		return "parse failure"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the result of fetching one status page. Snapshot is only set
// for OutcomeOK, Err carries the reason for every other kind.
type Outcome struct {
	Kind     OutcomeKind
	Snapshot gamestate.Snapshot
	Err      error
}

func ok(snapshot gamestate.Snapshot) Outcome {
	return Outcome{Kind: OutcomeOK, Snapshot: snapshot}
}

func failed(kind OutcomeKind, err error) Outcome {
	return Outcome{Kind: kind, Err: err}
}
