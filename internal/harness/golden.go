package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/explog/internal/codec"
	"github.com/roach88/explog/internal/store"
)

// Snapshot renders a result as indented canonical JSON: the trace, the
// stage and every ledger table. Payload columns are embedded as JSON values,
// times as RFC 3339 UTC strings and blobs as base64.
func Snapshot(name string, result *Result) ([]byte, error) {
	if result.Dump == nil {
		return nil, fmt.Errorf("snapshot %s: result has no dump", name)
	}
	m, err := snapshotMap(name, result)
	if err != nil {
		return nil, err
	}
	text, err := codec.Encode(m)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(text), "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// snapshotMap converts a result into plain maps and slices for canonical
// JSON serialization.
func snapshotMap(name string, result *Result) (map[string]any, error) {
	d := result.Dump

	trace := make([]any, len(result.Trace))
	for i, e := range result.Trace {
		event := map[string]any{"seq": e.Seq, "op": e.Op}
		if e.ID != 0 {
			event["id"] = e.ID
		}
		if e.Name != "" {
			event["name"] = e.Name
		}
		if e.Error != "" {
			event["error"] = e.Error
		}
		trace[i] = event
	}

	var err error
	payload := func(text string) any {
		v, derr := codec.Decode(text)
		if derr != nil && err == nil {
			err = derr
		}
		return v
	}

	meta := make([]any, len(d.Meta))
	for i, e := range d.Meta {
		meta[i] = map[string]any{
			"id":          int64(e.ID),
			"mtype":       string(e.MType),
			"name":        e.Name,
			"type":        e.Type,
			"description": e.Description,
			"payload":     payload(e.JSON),
		}
	}

	runs := make([]any, len(d.Runs))
	for i, r := range d.Runs {
		runs[i] = map[string]any{
			"id":           int64(r.ID),
			"start":        formatTime(r.StartTime),
			"end":          formatTimePtr(r.EndTime),
			"experimenter": r.Experimenter,
			"clean_exit":   r.CleanExit,
			"config":       payload(r.JSON),
		}
	}

	sessions := make([]any, len(d.Sessions))
	for i, s := range d.Sessions {
		var seed any
		if s.RandomSeed != nil {
			seed = *s.RandomSeed
		}
		sessions[i] = map[string]any{
			"id":        int64(s.ID),
			"parent":    idOrNil(s.Parent),
			"path":      int64(s.Path),
			"prototype": idOrNil(s.Prototype),
			"start":     formatTime(s.StartTime),
			"end":       formatTimePtr(s.EndTime),
			"last":      formatTime(s.LastTime),
			"valid":     s.Valid,
			"complete":  s.Complete,
			"test_run":  s.TestRun,
			"seed":      seed,
			"notes":     s.Description,
			"config":    payload(s.JSON),
		}
	}

	runSessions := make([]any, len(d.RunSessions))
	for i, rs := range d.RunSessions {
		runSessions[i] = map[string]any{"run": int64(rs.Run), "session": int64(rs.Session)}
	}

	children := make([]any, len(d.Children))
	for i, c := range d.Children {
		children[i] = map[string]any{"parent": int64(c.Parent), "child": int64(c.Child)}
	}

	userSessions := make([]any, len(d.UserSessions))
	for i, us := range d.UserSessions {
		userSessions[i] = map[string]any{
			"session": int64(us.Session),
			"user":    int64(us.User),
			"role":    us.Role,
			"payload": payload(us.JSON),
		}
	}

	logs := make([]any, len(d.Logs))
	for i, e := range d.Logs {
		logs[i] = map[string]any{
			"id":      int64(e.ID),
			"session": int64(e.Session),
			"stream":  int64(e.Stream),
			"time":    formatTime(e.Time),
			"tag":     e.Tag,
			"valid":   e.Valid,
			"data":    payload(e.JSON),
		}
	}

	blobs := make([]any, len(d.Blobs))
	for i, b := range d.Blobs {
		blobs[i] = map[string]any{
			"id":   int64(b.ID),
			"log":  int64(b.Log),
			"type": idOrNil(b.Meta),
			"data": b.Data,
		}
	}

	return map[string]any{
		"name":          name,
		"stage":         result.Stage,
		"trace":         trace,
		"meta":          meta,
		"runs":          runs,
		"sessions":      sessions,
		"run_sessions":  runSessions,
		"children":      children,
		"user_sessions": userSessions,
		"logs":          logs,
		"blobs":         blobs,
	}, err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func idOrNil(id *store.ID) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}

// RunWithGolden executes a script and compares its snapshot against a golden
// file stored in testdata/golden/{script.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if script execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, script *Script) (*Result, error) {
	t.Helper()

	result, err := Run(script)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, script.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the script.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)
	return nil
}
