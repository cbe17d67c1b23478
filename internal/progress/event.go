package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageDiscoveryDone Stage = "DISCOVERY_DONE"
	StageFetchDone     Stage = "FETCH_DONE"
	StagePrecinctDone  Stage = "PRECINCT_DONE"
	StagePrecinctError Stage = "PRECINCT_ERROR"
	StageRunDone       Stage = "RUN_DONE"
	StageRunError      Stage = "RUN_ERROR"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single milestone of a scrape run.
type Event struct {
	// RunID ties every event to one invocation.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Index is the precinct's position in discovery order, -1 for run-level events.
	Index int
	URL   string
	// Code is the precinct code once extracted.
	Code string
	// Count carries the number of precincts for DISCOVERY_DONE and RUN_DONE.
	Count       int
	Bytes       int64
	StatusClass StatusClass
	// Attempt is the 1-based fetch attempt for FETCH_DONE.
	Attempt int
	Dur     time.Duration
	// ErrKind is election.KindOf for error stages.
	ErrKind string
	Note    string
}

// New stamps an event for runID with the current UTC time.
func New(runID uuid.UUID, stage Stage) Event {
	return Event{RunID: runID, TS: time.Now().UTC(), Stage: stage, Index: -1}
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageDiscoveryDone, StageRunDone:
	case StageRunError:
		if e.ErrKind == "" {
			return errors.New("run error requires error kind")
		}
	case StageFetchDone:
		if e.URL == "" {
			return errors.New("fetch done requires url")
		}
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	case StagePrecinctDone:
		if e.Code == "" {
			return errors.New("precinct done requires code")
		}
	case StagePrecinctError:
		if e.ErrKind == "" {
			return errors.New("precinct error requires error kind")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
