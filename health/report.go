package health

import (
	"fmt"
	"io"
)

// Entry is one named result in a Report.
type Entry struct {
	Name   string
	Result Result
}

// Report is the outcome of Aggregator.Run.
type Report struct {
	Entries []Entry
	Status  Status
}

// Result returns the result for name.
func (r Report) Result(name string) (Result, bool) {
	for _, e := range r.Entries {
		if e.Name == name {
			return e.Result, true
		}
	}
	return Result{}, false
}

// Hints returns the remediation hints of entries that did not pass, in order.
func (r Report) Hints() []string {
	var hints []string
	for _, e := range r.Entries {
		if e.Result.Status != StatusOK && e.Result.Hint != "" {
			hints = append(hints, e.Result.Hint)
		}
	}
	return hints
}

// WriteTo prints one line per entry followed by the hints.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	for _, e := range r.Entries {
		msg := e.Result.Message
		if e.Result.Error != nil && e.Result.Status != StatusOK {
			msg = fmt.Sprintf("%s (%v)", msg, e.Result.Error)
		}
		fmt.Fprintf(cw, "%s %s: %s\n", e.Result.Status.Symbol(), e.Name, msg)
	}
	if hints := r.Hints(); len(hints) > 0 {
		fmt.Fprintln(cw, "\nTips:")
		for _, h := range hints {
			fmt.Fprintf(cw, "  - %s\n", h)
		}
	}
	return cw.n, cw.err
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}
