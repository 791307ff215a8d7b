package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/v0xg/lockstep/internal/device"
	"github.com/v0xg/lockstep/internal/executor"
)

type reportView struct {
	BatchID   string         `json:"batch_id"`
	Ticks     int            `json:"ticks"`
	Sequences []sequenceView `json:"sequences"`
}

type sequenceView struct {
	ID        string        `json:"id"`
	Length    int           `json:"length"`
	Steps     int           `json:"steps"`
	Skipped   int           `json:"skipped,omitempty"`
	Completed bool          `json:"completed"`
	Error     string        `json:"error,omitempty"`
	ErrIndex  *int          `json:"error_index,omitempty"`
	Failures  []failureView `json:"failures,omitempty"`
}

type failureView struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

func newReportView(r *executor.Report) reportView {
	v := reportView{BatchID: r.BatchID, Ticks: r.Ticks, Sequences: []sequenceView{}}
	for _, s := range r.Sequences {
		sv := sequenceView{
			ID:        s.ID,
			Length:    s.Length,
			Steps:     s.Steps,
			Skipped:   s.Skipped,
			Completed: s.Completed,
		}
		if s.Err != nil {
			idx := s.ErrIndex
			sv.Error = s.Err.Error()
			sv.ErrIndex = &idx
		}
		for _, f := range s.Failures {
			sv.Failures = append(sv.Failures, failureView{Index: f.Index, Error: f.Err.Error()})
		}
		v.Sequences = append(v.Sequences, sv)
	}
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReport(w io.Writer, format string, r *executor.Report) error {
	v := newReportView(r)
	if format == "json" {
		return writeJSON(w, v)
	}

	fmt.Fprintf(w, "batch %s: %d ticks, %d sequences\n", v.BatchID, v.Ticks, len(v.Sequences))
	for _, s := range v.Sequences {
		fmt.Fprintf(w, "  %-12s %d/%d steps", s.ID, s.Steps, s.Length)
		if s.Skipped > 0 {
			fmt.Fprintf(w, ", %d skipped", s.Skipped)
		}
		if s.Error != "" {
			fmt.Fprintf(w, ", stopped at step %d: %s", *s.ErrIndex, s.Error)
		}
		fmt.Fprintln(w)
		for _, f := range s.Failures {
			fmt.Fprintf(w, "    step %d failed: %s\n", f.Index, f.Error)
		}
	}
	return nil
}

func writeCalls(w io.Writer, calls []device.Call) {
	for _, c := range calls {
		switch c.Op {
		case device.OpMove:
			fmt.Fprintf(w, "%s %s %d,%d %s\n", c.Device, c.Op, c.X, c.Y, c.Duration)
		case device.OpKeyDown, device.OpKeyUp:
			fmt.Fprintf(w, "%s %s %q\n", c.Device, c.Op, c.Key)
		default:
			fmt.Fprintf(w, "%s %s\n", c.Device, c.Op)
		}
	}
}

type deviceView struct {
	device.Device
	Default bool `json:"default"`
}

func writeDevices(w io.Writer, format string, reg device.Registry) error {
	def, err := reg.Default()
	hasDefault := err == nil

	views := []deviceView{}
	for _, d := range reg.Devices() {
		views = append(views, deviceView{Device: d, Default: hasDefault && d.ID == def.ID})
	}
	if format == "json" {
		return writeJSON(w, views)
	}
	if len(views) == 0 {
		fmt.Fprintln(w, "no devices")
		return nil
	}
	for _, v := range views {
		mark := ""
		if v.Default {
			mark = " (default)"
		}
		fmt.Fprintf(w, "%s\t%dx%d%s\n", v.ID, v.Bounds.Width, v.Bounds.Height, mark)
	}
	return nil
}
