// Package extract parses a precinct results page into an election.PrecinctResult.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/elections-scraper/internal/election"
)

const (
	codeParam         = "xobec"
	locationSelector  = "#publikace h3"
	partyNameSelector = "td.overflow_name"
	placeholderCell   = "-"

	// DefaultVotePattern matches the header reference of party vote cells.
	DefaultVotePattern = `^t\d+sa2 t\d+sb3$`
)

// summaryFields maps output fields to the header reference of their cell.
var summaryFields = []struct {
	field   string
	headers string
}{
	{field: "registered", headers: "sa2"},
	{field: "envelopes", headers: "sa3"},
	{field: "valid", headers: "sa6"},
}

// Extractor reads the fixed table layout of a precinct page.
type Extractor struct {
	votePattern *regexp.Regexp
}

// New builds an Extractor. An empty votePattern selects DefaultVotePattern.
func New(votePattern string) (*Extractor, error) {
	if votePattern == "" {
		votePattern = DefaultVotePattern
	}
	re, err := regexp.Compile(votePattern)
	if err != nil {
		return nil, fmt.Errorf("compile vote pattern: %w", err)
	}
	return &Extractor{votePattern: re}, nil
}

// Extract builds a record from doc. pageURL is the URL the page was fetched
// from; it is the preferred source of the precinct code.
func (e *Extractor) Extract(doc *goquery.Document, pageURL string) (election.PrecinctResult, error) {
	code, err := e.code(doc, pageURL)
	if err != nil {
		return election.PrecinctResult{}, err
	}
	location, err := e.location(doc, pageURL)
	if err != nil {
		return election.PrecinctResult{}, err
	}
	counts := make(map[string]string, len(summaryFields))
	for _, sf := range summaryFields {
		value, err := e.summaryCount(doc, pageURL, sf.field, sf.headers)
		if err != nil {
			return election.PrecinctResult{}, err
		}
		counts[sf.field] = value
	}
	parties, err := e.parties(doc, pageURL)
	if err != nil {
		return election.PrecinctResult{}, err
	}
	return election.PrecinctResult{
		Code:       code,
		Location:   location,
		Registered: counts["registered"],
		Envelopes:  counts["envelopes"],
		Valid:      counts["valid"],
		Parties:    parties,
		SourceURL:  pageURL,
	}, nil
}

func (e *Extractor) code(doc *goquery.Document, pageURL string) (string, error) {
	if code, ok := election.QueryParam(pageURL, codeParam); ok && code != "" {
		return validateCode(pageURL, code)
	}
	var code string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if v, ok := election.QueryParam(href, codeParam); ok && v != "" {
			code = v
			return false
		}
		return true
	})
	if code == "" {
		return "", &election.ParseError{URL: pageURL, Field: "code", Reason: "no xobec parameter in page url or links"}
	}
	return validateCode(pageURL, code)
}

func validateCode(pageURL, code string) (string, error) {
	code = strings.TrimSpace(code)
	if !isDigits(code) {
		return "", &election.ParseError{URL: pageURL, Field: "code", Reason: fmt.Sprintf("malformed code %q", code)}
	}
	return code, nil
}

func (e *Extractor) location(doc *goquery.Document, pageURL string) (string, error) {
	headings := doc.Find(locationSelector)
	if headings.Length() == 0 {
		return "", &election.ParseError{URL: pageURL, Field: "location", Reason: "heading not found"}
	}
	text := strings.TrimSpace(headings.Last().Text())
	cut := strings.IndexFunc(text, unicode.IsSpace)
	if cut < 0 {
		return "", &election.ParseError{URL: pageURL, Field: "location", Reason: fmt.Sprintf("heading %q has no label token", text)}
	}
	name := strings.TrimSpace(text[cut:])
	if name == "" {
		return "", &election.ParseError{URL: pageURL, Field: "location", Reason: fmt.Sprintf("heading %q has no name", text)}
	}
	return name, nil
}

func (e *Extractor) summaryCount(doc *goquery.Document, pageURL, field, headers string) (string, error) {
	cell := doc.Find(fmt.Sprintf(`td[headers=%q]`, headers)).First()
	if cell.Length() == 0 {
		return "", &election.ParseError{URL: pageURL, Field: field, Reason: fmt.Sprintf("cell %q not found", headers)}
	}
	value, ok := NormalizeCount(cell.Text())
	if !ok {
		return "", &election.ParseError{URL: pageURL, Field: field, Reason: fmt.Sprintf("non-numeric value %q", cell.Text())}
	}
	return value, nil
}

// parties pairs each party name with the vote cell of the same table row.
func (e *Extractor) parties(doc *goquery.Document, pageURL string) (election.PartyVotes, error) {
	var (
		out      election.PartyVotes
		seen     = make(map[string]struct{})
		firstErr error
	)
	doc.Find("tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		names := row.ChildrenFiltered(partyNameSelector)
		votes := row.ChildrenFiltered("td[headers]").FilterFunction(func(_ int, cell *goquery.Selection) bool {
			headers, _ := cell.Attr("headers")
			return e.votePattern.MatchString(strings.TrimSpace(headers))
		})
		if names.Length() == 0 && votes.Length() == 0 {
			return true
		}
		if names.Length() == 1 && strings.TrimSpace(names.Text()) == placeholderCell {
			return true
		}
		if names.Length() != 1 || votes.Length() != 1 {
			firstErr = &election.ParseError{
				URL:    pageURL,
				Field:  "parties",
				Reason: fmt.Sprintf("row %d has %d name cells and %d vote cells", i, names.Length(), votes.Length()),
			}
			return false
		}
		name := strings.TrimSpace(names.Text())
		count, ok := NormalizeCount(votes.Text())
		if !ok {
			firstErr = &election.ParseError{
				URL:    pageURL,
				Field:  "parties",
				Reason: fmt.Sprintf("party %q has non-numeric votes %q", name, votes.Text()),
			}
			return false
		}
		if _, dup := seen[name]; dup {
			firstErr = &election.ParseError{URL: pageURL, Field: "parties", Reason: fmt.Sprintf("party %q listed twice", name)}
			return false
		}
		seen[name] = struct{}{}
		out = append(out, election.PartyVote{Name: name, Votes: count})
		return true
	})
	if firstErr != nil {
		return nil, firstErr
	}
	if len(out) == 0 {
		return nil, &election.ParseError{URL: pageURL, Field: "parties", Reason: "no party rows found"}
	}
	return out, nil
}

// NormalizeCount strips grouping whitespace (including non-breaking spaces)
// and reports whether what remains is a plain decimal number.
func NormalizeCount(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if !isDigits(out) {
		return "", false
	}
	return out, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
