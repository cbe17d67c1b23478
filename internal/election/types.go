package election

import (
	"net/http"
	"time"
)

// FixedColumns lists the per-precinct fields that precede party columns in the output.
var FixedColumns = []string{"code", "location", "registered", "envelopes", "valid"}

// PartyVote is one party's vote count within a precinct.
type PartyVote struct {
	Name  string `json:"name"`
	Votes string `json:"votes"`
}

// PartyVotes keeps party results in ballot order.
type PartyVotes []PartyVote

// Names returns the party names in ballot order.
func (p PartyVotes) Names() []string {
	out := make([]string, 0, len(p))
	for _, v := range p {
		out = append(out, v.Name)
	}
	return out
}

// Get returns the vote count for name.
func (p PartyVotes) Get(name string) (string, bool) {
	for _, v := range p {
		if v.Name == name {
			return v.Votes, true
		}
	}
	return "", false
}

// PrecinctResult is the normalized record extracted from one precinct page.
// Counts are kept as decimal-digit strings.
type PrecinctResult struct {
	Code       string     `json:"code"`
	Location   string     `json:"location"`
	Registered string     `json:"registered"`
	Envelopes  string     `json:"envelopes"`
	Valid      string     `json:"valid"`
	Parties    PartyVotes `json:"parties"`
	SourceURL  string     `json:"source_url"`
}

// Page is the raw response returned by a Fetcher.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentLength reports the number of body bytes.
func (p Page) ContentLength() int {
	return len(p.Body)
}

// DiscoveryMode selects which listing variant URL discovery understands.
type DiscoveryMode string

// Supported listing variants.
const (
	DiscoveryDomestic DiscoveryMode = "domestic"
	DiscoveryAbroad   DiscoveryMode = "abroad"
)

// FailureMode decides what the dispatcher does when a precinct fails.
type FailureMode string

// Supported failure policies.
const (
	// ModeStrict aborts the whole run on the first failure.
	ModeStrict FailureMode = "strict"
	// ModePartial keeps going and reports failures next to the results.
	ModePartial FailureMode = "partial"
)

// ParseFailureMode converts a config value into a FailureMode.
func ParseFailureMode(raw string) (FailureMode, bool) {
	switch FailureMode(raw) {
	case ModeStrict, "":
		return ModeStrict, true
	case ModePartial:
		return ModePartial, true
	default:
		return "", false
	}
}

// Failure records a precinct URL that could not be turned into a result.
type Failure struct {
	Index int
	URL   string
	Err   error
}

// Outcome is what a dispatcher run produces.
type Outcome struct {
	Results  []PrecinctResult
	Failures []Failure
}
