package extract

// Unstaged names the implicit window covering lines before the first stage
// marker.
const Unstaged = "unstaged"

// StageWindow is the contiguous range of lines attributed to one pipeline
// stage. Start and End are 0-based and inclusive.
type StageWindow struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// stageTracker assigns the currently open stage to each line as the input
// is scanned. Windows never overlap and are ordered by Start.
type stageTracker struct {
	rules   *ruleTable
	windows []StageWindow
}

// observe records line idx and reports whether it opened a new stage.
func (s *stageTracker) observe(idx int, line string) bool {
	name, boundary := s.rules.stageName(line)
	switch {
	case boundary:
		s.close(idx - 1)
		s.windows = append(s.windows, StageWindow{Name: name, Start: idx, End: idx})
	case len(s.windows) == 0:
		s.windows = append(s.windows, StageWindow{Name: Unstaged, Start: idx, End: idx})
	}
	return boundary
}

// current returns the name of the open stage.
func (s *stageTracker) current() string {
	if len(s.windows) == 0 {
		return Unstaged
	}
	return s.windows[len(s.windows)-1].Name
}

// close ends the open window at line last.
func (s *stageTracker) close(last int) {
	if len(s.windows) == 0 {
		return
	}
	w := &s.windows[len(s.windows)-1]
	if last >= w.Start {
		w.End = last
	}
}

// finish closes the open window at the final input line and returns all
// windows.
func (s *stageTracker) finish(total int) []StageWindow {
	if total > 0 {
		s.close(total - 1)
	}
	return s.windows
}
