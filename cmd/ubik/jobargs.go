package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/apk/ubik/pkg/lib/job"
)

// separator starts the next job's option block.
const separator = "---"

// durationValue accepts Go durations ("1m30s") and bare integer seconds.
type durationValue struct {
	d *time.Duration
}

func (v durationValue) String() string {
	if v.d == nil {
		return "0s"
	}
	return v.d.String()
}

func (v durationValue) Set(s string) error {
	d, err := parseDuration(s)
	if err != nil {
		return err
	}
	*v.d = d
	return nil
}

func (v durationValue) Type() string { return "duration" }

func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

type block struct {
	opened bool
	pause  time.Duration
	tokens []string
}

// splitBlocks cuts args at separators. "---N" opens a block with a pause
// of N seconds; a token starting with "----" is an argument with one dash
// removed.
func splitBlocks(args []string) ([]block, error) {
	var blocks []block
	cur := block{}
	started := false
	for _, a := range args {
		switch {
		case strings.HasPrefix(a, "----"):
			cur.tokens = append(cur.tokens, a[1:])
		case strings.HasPrefix(a, separator):
			if started || len(cur.tokens) > 0 {
				blocks = append(blocks, cur)
			}
			cur = block{opened: true}
			if rest := a[len(separator):]; rest != "" {
				d, err := parseDuration(rest)
				if err != nil {
					return nil, fmt.Errorf("separator %q: %w", a, err)
				}
				cur.pause = d
			}
		default:
			cur.tokens = append(cur.tokens, a)
		}
		started = true
	}
	if started {
		blocks = append(blocks, cur)
	}
	return blocks, nil
}

func newJobFlagSet(spec *job.Spec) *pflag.FlagSet {
	fs := pflag.NewFlagSet("job", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.Usage = func() {}
	fs.StringVarP(&spec.Name, "name", "n", "", "display name of the job")
	fs.StringVarP(&spec.User, "user", "u", "", "run the job as this user")
	fs.StringVarP(&spec.Dir, "dir", "d", "", "working directory of the job")
	fs.VarP(durationValue{&spec.Pause}, "pause", "p", "minimum time between an exit and the next start")
	fs.VarP(durationValue{&spec.Period}, "period", "P", "minimum time between two starts")
	return fs
}

// parseJobs turns the positional arguments into job declarations, in
// order.
func parseJobs(args []string) ([]job.Spec, error) {
	blocks, err := splitBlocks(args)
	if err != nil {
		return nil, err
	}

	specs := make([]job.Spec, 0, len(blocks))
	for i, b := range blocks {
		spec := job.Spec{Pause: b.pause}
		command := b.tokens
		if b.opened {
			fs := newJobFlagSet(&spec)
			if err := fs.Parse(b.tokens); err != nil {
				return nil, fmt.Errorf("job %d: %w", i+1, err)
			}
			command = fs.Args()
		}
		spec.Command = append([]string(nil), command...)
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
