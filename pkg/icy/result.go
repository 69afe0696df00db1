package icy

// Result is what GetSongTitle reports to callers. It holds a title, or the
// zero Result when nothing was found, or, when errors are shown, a message
// describing why the lookup failed.
type Result struct {
	Title string
	OK    bool
	Error string
}

// NewResult formats the outcome of a lookup. Every failure collapses into the
// zero Result unless showErrors is set.
func NewResult(title string, err error, showErrors bool) Result {
	switch {
	case err == nil:
		return Result{Title: title, OK: true}
	case showErrors:
		return Result{Error: err.Error()}
	default:
		return Result{}
	}
}

// String returns the title, the error message, or "".
func (r Result) String() string {
	if r.OK {
		return r.Title
	}
	return r.Error
}
