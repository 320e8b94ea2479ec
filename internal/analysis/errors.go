package analysis

import "github.com/cockroachdb/errors"

var (
	// ErrEmptyQuery is returned when the query is blank after trimming.
	ErrEmptyQuery = errors.New("analysis: empty query")
	// ErrNoData marks replies with no text or text that is not valid JSON.
	ErrNoData = errors.New("analysis: no data found")
	// ErrService marks failures of the generative service call itself.
	ErrService = errors.New("analysis: service call failed")
	// ErrGeneratorNil is returned by NewClient when no generator is supplied.
	ErrGeneratorNil = errors.New("analysis: generator is nil")
)
