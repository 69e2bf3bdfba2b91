// Package model defines the shared types for price lookups: work items,
// per-source results, and the accumulated result record for a run.
package model

// Status classifies a single source's answer about one product. The four
// "located or not" outcomes are distinct on purpose: a product that exists
// but is discontinued is not the same as one the source never heard of, and
// a price available only on request is neither.
type Status string

const (
	// StatusAvailable means the source lists the product with a price > 0.
	StatusAvailable Status = "available"
	// StatusOnRequest means the product is listed but priced on request.
	StatusOnRequest Status = "on_request"
	// StatusDiscontinued means the product is listed without a price
	// because it is no longer produced.
	StatusDiscontinued Status = "discontinued"
	// StatusNotFound means the source has no matching product.
	StatusNotFound Status = "not_found"
	// StatusError means the lookup itself failed (network, bad response).
	StatusError Status = "error"
)

// Located reports whether the source identified a concrete product page,
// so Name and URL are meaningful.
func (s Status) Located() bool {
	switch s {
	case StatusAvailable, StatusOnRequest, StatusDiscontinued:
		return true
	default:
		return false
	}
}

// StatusForPrice maps the sentinel prices used by the storefronts' markup
// conventions (0 = not listed, -1 = discontinued, -2 = on request) to a
// Status. Positive prices mean available.
func StatusForPrice(price float64) Status {
	switch {
	case price > 0:
		return StatusAvailable
	case price == -1:
		return StatusDiscontinued
	case price == -2:
		return StatusOnRequest
	default:
		return StatusNotFound
	}
}

// WorkItem is one unit of input work: a product name and its position in
// the input list. Keys are not guaranteed unique by the caller.
type WorkItem struct {
	Index int    `json:"index"`
	Key   string `json:"key"`
}

// SourceResult is one source's answer for one product. Name and URL are
// set only when the source located a candidate (Status.Located()).
type SourceResult struct {
	Status Status  `json:"status"`
	Price  float64 `json:"price,omitempty"`
	Name   string  `json:"name,omitempty"`
	URL    string  `json:"url,omitempty"`
}

// ErrorResult is the recorded outcome for a source whose lookup failed.
func ErrorResult() SourceResult {
	return SourceResult{Status: StatusError}
}

// NotFoundResult is the recorded outcome when a source has no match.
func NotFoundResult() SourceResult {
	return SourceResult{Status: StatusNotFound}
}

// Record is the accumulated result map for a run: product key to the
// per-source outcomes for that product. In single-source runs the inner
// map holds exactly one entry. A source missing from the inner map has
// not completed for that key. Only the engine's collector mutates a
// Record while a run is live.
type Record map[string]map[string]SourceResult

// Set records one source's result under key, replacing any earlier value
// for the same key/source pair (last write wins on duplicate input keys).
func (r Record) Set(key, source string, res SourceResult) {
	m, ok := r[key]
	if !ok {
		m = make(map[string]SourceResult, 1)
		r[key] = m
	}
	m[source] = res
}

// Clone returns a deep copy of the record, safe to hand to a checkpoint
// writer while the original keeps mutating.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for key, m := range r {
		cm := make(map[string]SourceResult, len(m))
		for src, res := range m {
			cm[src] = res
		}
		out[key] = cm
	}
	return out
}

// RunStatus distinguishes a run that processed every item from one cut
// short by an interrupt signal.
type RunStatus string

const (
	RunCompleted   RunStatus = "completed"
	RunInterrupted RunStatus = "interrupted"
)

// Summary aggregates per-status counts for one source across a record.
type Summary struct {
	Total        int `json:"total"`
	Found        int `json:"found"`
	OnRequest    int `json:"on_request"`
	Discontinued int `json:"discontinued"`
	NotFound     int `json:"not_found"`
	Errors       int `json:"errors"`
}

// Add merges another summary into s.
func (s *Summary) Add(o Summary) {
	s.Total += o.Total
	s.Found += o.Found
	s.OnRequest += o.OnRequest
	s.Discontinued += o.Discontinued
	s.NotFound += o.NotFound
	s.Errors += o.Errors
}

// Summarize counts outcomes per source. A source with no entry for a key
// contributes nothing for that key.
func Summarize(rec Record, sources []string) map[string]Summary {
	out := make(map[string]Summary, len(sources))
	for _, src := range sources {
		var s Summary
		for _, m := range rec {
			res, ok := m[src]
			if !ok {
				continue
			}
			s.Total++
			switch res.Status {
			case StatusAvailable:
				s.Found++
			case StatusOnRequest:
				s.OnRequest++
			case StatusDiscontinued:
				s.Discontinued++
			case StatusNotFound:
				s.NotFound++
			case StatusError:
				s.Errors++
			}
		}
		out[src] = s
	}
	return out
}
