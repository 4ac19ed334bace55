// Package timing provides a named-event stopwatch and the UnzipSummary
// aggregate the extraction engine returns to its caller.
package timing

import (
	"fmt"
	"sync"
	"time"
)

// Stopwatch records start and stop instants for any number of named
// events. It is safe for concurrent use; each worker owns a private
// Stopwatch and the engine owns its own for engine-wide events.
type Stopwatch struct {
	mu     sync.Mutex
	starts map[string]time.Time
	ends   map[string]time.Time
}

// NewStopwatch creates an empty Stopwatch.
func NewStopwatch() *Stopwatch {
	return &Stopwatch{
		starts: make(map[string]time.Time),
		ends:   make(map[string]time.Time),
	}
}

// Start records now as the start of name, overwriting any prior start and
// clearing any prior end recorded for that name.
func (s *Stopwatch) Start(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts[name] = time.Now()
	delete(s.ends, name)
}

// Stop records now as the end of name. It fails if name was never started.
func (s *Stopwatch) Stop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.starts[name]; !ok {
		return fmt.Errorf("timing: stop %q: never started", name)
	}
	s.ends[name] = time.Now()
	return nil
}

// Run starts name, calls f, stops name once f has returned (whether or not
// f returned an error), and returns f's error. If f panics, name is not
// stopped.
func (s *Stopwatch) Run(name string, f func() error) error {
	s.Start(name)
	err := f()
	if stopErr := s.Stop(name); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}

func (s *Stopwatch) duration(name string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start, ok := s.starts[name]
	if !ok {
		return 0, fmt.Errorf("timing: %q was never started", name)
	}
	end, ok := s.ends[name]
	if !ok {
		return 0, fmt.Errorf("timing: %q has not completed", name)
	}
	return end.Sub(start), nil
}

// Milliseconds returns the elapsed time of a completed event in
// milliseconds. It fails if the event is not complete.
func (s *Stopwatch) Milliseconds(name string) (int64, error) {
	d, err := s.duration(name)
	if err != nil {
		return 0, err
	}
	return d.Milliseconds(), nil
}

// Seconds returns the elapsed time of a completed event in seconds.
func (s *Stopwatch) Seconds(name string) (float64, error) {
	d, err := s.duration(name)
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}

// Minutes returns the elapsed time of a completed event in minutes.
func (s *Stopwatch) Minutes(name string) (float64, error) {
	d, err := s.duration(name)
	if err != nil {
		return 0, err
	}
	return d.Minutes(), nil
}

// Human formats the elapsed time of a completed event as "NmSs" once it
// has run a full minute or longer, "S.sssS" ("Ss" once it reaches 10
// seconds) once it has run a full second or longer, and otherwise "Nms".
// The representation switches exactly at the minute and 10-second
// boundaries.
func (s *Stopwatch) Human(name string) (string, error) {
	d, err := s.duration(name)
	if err != nil {
		return "", err
	}
	return humanDuration(d), nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		m := d / time.Minute
		rem := d - m*time.Minute
		return fmt.Sprintf("%dm%ds", m, int(rem.Seconds()))
	case d >= 10*time.Second:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d >= time.Second:
		return fmt.Sprintf("%.3fs", d.Seconds())
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

// UnzipSummary is the aggregate counters and named timings the extraction
// engine returns on success.
type UnzipSummary struct {
	Filename       string
	JobsUsed       int
	StrategyUsed   string
	ChunkSizeUsed  uint64
	Files          int
	Folders        int
	NumTempNames   int
	Bytes          uint64
	FilesPerWorker []int
	BytesPerWorker []uint64
	Watch          *Stopwatch
	Watches        []*Stopwatch
}

// NewUnzipSummary allocates a summary sized for jobs workers.
func NewUnzipSummary(jobs int) *UnzipSummary {
	watches := make([]*Stopwatch, jobs)
	for i := range watches {
		watches[i] = NewStopwatch()
	}
	return &UnzipSummary{
		JobsUsed:       jobs,
		FilesPerWorker: make([]int, jobs),
		BytesPerWorker: make([]uint64, jobs),
		Watch:          NewStopwatch(),
		Watches:        watches,
	}
}

// String renders a multi-line diagnostic summary, the shape the CLI's -g
// flag prints to stderr.
func (u *UnzipSummary) String() string {
	total, _ := u.Watch.Human("total")
	out := fmt.Sprintf(
		"file: %s\njobs: %d\nstrategy: %s\nchunk_size: %d\nfiles: %d\nfolders: %d\ntemp_names: %d\nbytes: %d\ntotal_time: %s\n",
		u.Filename, u.JobsUsed, u.StrategyUsed, u.ChunkSizeUsed, u.Files, u.Folders, u.NumTempNames, u.Bytes, total,
	)
	for i := 0; i < u.JobsUsed; i++ {
		workerTime, _ := u.Watches[i].Human("unzip")
		out += fmt.Sprintf("  worker %d: files=%d bytes=%d time=%s\n", i, u.FilesPerWorker[i], u.BytesPerWorker[i], workerTime)
	}
	return out
}
