package timerstat

import (
	"encoding/gob"

	"github.com/ceetaro/suitkaise/errorkinds"
)

func init() {
	gob.Register(Snapshot{})
}

// Set bundles one Timer per lifecycle section plus the full_run aggregate
// timer.
type Set struct {
	bySection map[errorkinds.Section]Timer
	FullRun   Timer
}

// NewSet returns a Set with a fresh Timer for every known section.
func NewSet() *Set {
	s := &Set{
		bySection: make(map[errorkinds.Section]Timer, 6),
		FullRun:   New(),
	}
	for _, sec := range []errorkinds.Section{
		errorkinds.SectionPreRun,
		errorkinds.SectionRun,
		errorkinds.SectionPostRun,
		errorkinds.SectionOnFinish,
		errorkinds.SectionOnResult,
		errorkinds.SectionOnError,
	} {
		s.bySection[sec] = New()
	}
	return s
}

// For returns the Timer for the given section.
func (s *Set) For(section errorkinds.Section) Timer {
	return s.bySection[section]
}

// RecordFullRun appends the most-recent-sample sum of prerun+run+postrun to
// the full_run timer. Called by the engine after every successful postrun.
func (s *Set) RecordFullRun() {
	sum := s.For(errorkinds.SectionPreRun).Last() +
		s.For(errorkinds.SectionRun).Last() +
		s.For(errorkinds.SectionPostRun).Last()
	s.FullRun.AddTime(sum)
}

// Snapshot is a gob-encodable summary of an entire Set, used as the
// `timers` field of the result/error envelope sent across a Pipe's
// result_queue.
type Snapshot struct {
	BySection map[errorkinds.Section]Stats
	FullRun   Stats
}

// Snapshot renders the current state of every timer in the set.
func (s *Set) Snapshot() Snapshot {
	out := Snapshot{BySection: make(map[errorkinds.Section]Stats, len(s.bySection))}
	for sec, t := range s.bySection {
		out.BySection[sec] = t.Snapshot()
	}
	out.FullRun = s.FullRun.Snapshot()
	return out
}
