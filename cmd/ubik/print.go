package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/apk/ubik/pkg/lib/job"
)

// printJobTable prints the declared jobs. services, when given, holds the
// health service name of each job.
func printJobTable(w io.Writer, jobs []*job.Job, services []string) {
	header := []string{"NAME", "KIND", "PAUSE", "PERIOD", "USER", "DIR", "COMMAND"}
	if services != nil {
		header = append(header, "SERVICE")
	}
	rows := [][]string{header}
	for i, j := range jobs {
		spec := j.Spec()
		kind := "critical"
		pause, period := "-", "-"
		if j.IsTask() {
			kind = "task"
			pause = j.Pause().String()
			period = j.Period().String()
		}
		row := []string{
			j.Name(), kind, pause, period,
			orDash(spec.User), orDash(spec.Dir),
			j.Command().String(),
		}
		if services != nil {
			row = append(row, services[i])
		}
		rows = append(rows, row)
	}

	widths := make([]int, len(header))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	sep := "+"
	for _, n := range widths {
		sep += strings.Repeat("-", n+2) + "+"
	}
	fmt.Fprintln(w, sep)
	for i, row := range rows {
		line := "|"
		for c, cell := range row {
			line += " " + pad(cell, widths[c]) + " |"
		}
		fmt.Fprintln(w, line)
		if i == 0 {
			fmt.Fprintln(w, sep)
		}
	}
	fmt.Fprintln(w, sep)
}

func pad(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
