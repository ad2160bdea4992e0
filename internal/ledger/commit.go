package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CommitMode selects when pending writes are committed.
type CommitMode int

const (
	// ModeManual commits only on explicit Commit and at run or session
	// boundaries.
	ModeManual CommitMode = iota

	// ModeEveryWrite commits after every mutating call. Slow on large logs.
	ModeEveryWrite

	// ModeInterval commits from Log once the interval has elapsed since the
	// last commit.
	ModeInterval
)

// CommitPolicy decides when the ledger commits. The zero value is manual.
type CommitPolicy struct {
	mode     CommitMode
	interval time.Duration
}

// ManualCommit returns a policy that never commits on its own.
func ManualCommit() CommitPolicy {
	return CommitPolicy{mode: ModeManual}
}

// CommitEveryWrite returns a policy that commits after every write.
func CommitEveryWrite() CommitPolicy {
	return CommitPolicy{mode: ModeEveryWrite}
}

// CommitInterval returns a policy that commits from Log when more than d has
// passed since the last commit.
func CommitInterval(d time.Duration) CommitPolicy {
	return CommitPolicy{mode: ModeInterval, interval: d}
}

// ParseCommitPolicy parses the textual form used by configuration:
//
//	""|"none"|"manual"   ManualCommit
//	"every-write"        CommitEveryWrite
//	"30s", "1m30s"       CommitInterval(duration)
//	"10", "2.5"          CommitInterval(seconds)
func ParseCommitPolicy(s string) (CommitPolicy, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", "none", "manual":
		return ManualCommit(), nil
	case "every-write":
		return CommitEveryWrite(), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		secs, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return CommitPolicy{}, fmt.Errorf("invalid commit policy %q: want none, every-write, a duration or seconds", s)
		}
		d = time.Duration(secs * float64(time.Second))
	}
	if d < 0 {
		return CommitPolicy{}, fmt.Errorf("invalid commit policy %q: interval must not be negative", s)
	}
	return CommitInterval(d), nil
}

// Mode returns the commit mode.
func (p CommitPolicy) Mode() CommitMode {
	return p.mode
}

// Interval returns the commit interval of ModeInterval policies.
func (p CommitPolicy) Interval() time.Duration {
	return p.interval
}

// String renders the policy in the form ParseCommitPolicy accepts.
func (p CommitPolicy) String() string {
	switch p.mode {
	case ModeEveryWrite:
		return "every-write"
	case ModeInterval:
		return p.interval.String()
	default:
		return "none"
	}
}

// due reports whether an interval commit is owed at now.
func (p CommitPolicy) due(last, now time.Time) bool {
	return p.mode == ModeInterval && now.Sub(last) > p.interval
}
