package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/explog/internal/ledger"
	"github.com/roach88/explog/internal/store"
	"github.com/roach88/explog/internal/testutil"
)

// Advancer is a clock that scripts can move forward.
type Advancer interface {
	Advance(d time.Duration)
}

// Harness executes script steps against one ledger.
type Harness struct {
	ledger  *ledger.Ledger
	clock   Advancer // nil when the ledger runs on the wall clock
	logger  *slog.Logger
	lastLog store.ID
}

// New returns a harness driving l. clock may be nil, in which case advance
// steps fail.
func New(l *ledger.Ledger, clock Advancer, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harness{ledger: l, clock: clock, logger: logger}
}

// Run executes a script and returns the result.
//
// Each script runs in a fresh in-memory database for isolation, on a frozen
// clock starting at testutil.DefaultEpoch and with the script's pseudonyms.
func Run(script *Script) (*Result, error) {
	policy, err := ledger.ParseCommitPolicy(script.Autocommit)
	if err != nil {
		return nil, err
	}

	clock := testutil.NewStepClock(testutil.DefaultEpoch, 0)
	l, err := ledger.Open(":memory:", ledger.Options{
		Commit: policy,
		Clock:  clock,
		Names:  testutil.NewFixedNames(script.Pseudonyms...),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory ledger: %w", err)
	}
	defer l.Close()

	return New(l, clock, nil).Execute(context.Background(), script)
}

// Execute runs the script's setup, steps and assertions, then captures the
// final tables into the result.
//
// Setup failures are returned as errors. Step and assertion failures are
// recorded in the result; the first unexpected step failure stops the steps.
func (h *Harness) Execute(ctx context.Context, script *Script) (*Result, error) {
	if err := h.executeSetup(ctx, script.Setup); err != nil {
		return nil, err
	}

	result := NewResult()
	h.executeSteps(ctx, script.Steps, result)

	for _, msg := range EvaluateAssertions(result, script.Assertions, &AssertionContext{Store: h.ledger.Store(), Ctx: ctx}) {
		result.AddError(msg)
	}

	stage, err := h.ledger.Stage(ctx)
	if err != nil {
		return nil, err
	}
	result.Stage = stage
	if result.Dump, err = h.ledger.Store().Dump(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// executeSetup registers the setup entities. Failures abort the script.
func (h *Harness) executeSetup(ctx context.Context, setup []Registration) error {
	for i, r := range setup {
		if _, _, err := h.register(ctx, r); err != nil {
			return fmt.Errorf("setup[%d] register %s %q: %w", i, r.Register, r.Name, err)
		}
	}
	return nil
}

func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) {
	for i, step := range steps {
		event := TraceEvent{Seq: i + 1, Op: step.Op}
		id, name, err := h.execute(ctx, step)

		switch {
		case err == nil && step.ExpectError != "":
			result.Trace = append(result.Trace, event)
			result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got success", i, step.Op, step.ExpectError))
		case err == nil:
			event.ID = int64(id)
			event.Name = name
			result.Trace = append(result.Trace, event)
		case step.ExpectError == "":
			event.Error = ledger.ErrorCode(err)
			result.Trace = append(result.Trace, event)
			result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Op, err))
			return
		default:
			event.Error = ledger.ErrorCode(err)
			result.Trace = append(result.Trace, event)
			if event.Error != step.ExpectError {
				result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got %v", i, step.Op, step.ExpectError, err))
			}
		}
		h.logger.Debug("step", "seq", event.Seq, "op", event.Op, "id", event.ID, "error", event.Error)
	}
}

// execute performs one step and returns the id (or user name) it produced.
func (h *Harness) execute(ctx context.Context, step Step) (store.ID, string, error) {
	a := args(step.Args)
	l := h.ledger

	switch step.Op {
	case OpStartRun:
		id, err := l.StartRun(ctx, a.str("experimenter"), a.value("config"))
		return id, "", err
	case OpEndRun:
		return 0, "", l.EndRun(ctx)
	case OpRegister:
		return h.register(ctx, Registration{
			Register:    a.str("kind"),
			Name:        a.str("name"),
			Type:        a.str("type"),
			Description: a.str("description"),
			Payload:     a.value("payload"),
			Force:       a.flag("force"),
		})
	case OpAddUser:
		return 0, "", l.AddActiveUser(ctx, a.str("name"), a.str("role"), a.value("payload"))
	case OpRemoveUser:
		return 0, "", l.RemoveActiveUser(a.str("name"))
	case OpClearUsers:
		l.ClearActiveUsers()
		return 0, "", nil
	case OpEnter:
		id, err := l.EnterSession(ctx, a.str("prototype"), ledger.SessionOptions{
			Config:  a.value("config"),
			TestRun: a.flag("test_run"),
			Notes:   a.str("notes"),
		})
		return id, "", err
	case OpLeave:
		return 0, "", l.LeaveSession(ctx, ledger.LeaveOptions{
			Incomplete: a.flag("incomplete"),
			Invalid:    a.flag("invalid"),
		})
	case OpLog:
		return h.log(ctx, a)
	case OpAttachBlob:
		logID, err := h.logRef(a)
		if err != nil {
			return 0, "", err
		}
		id, err := l.AttachBlob(ctx, logID, []byte(a.str("data")), a.str("type"))
		return id, "", err
	case OpAttachArrays:
		logID, err := h.logRef(a)
		if err != nil {
			return 0, "", err
		}
		arrays, err := a.arrays("arrays")
		if err != nil {
			return 0, "", err
		}
		id, err := l.AttachArrays(ctx, logID, arrays, a.str("type"))
		return id, "", err
	case OpSetStage:
		return 0, "", l.SetStage(ctx, a.str("name"))
	case OpCommit:
		return 0, "", l.Commit()
	case OpAdvance:
		if h.clock == nil {
			return 0, "", fmt.Errorf("advance: ledger clock cannot be advanced")
		}
		d, err := time.ParseDuration(a.str("by"))
		if err != nil {
			return 0, "", fmt.Errorf("advance: %w", err)
		}
		h.clock.Advance(d)
		return 0, "", nil
	default:
		return 0, "", fmt.Errorf("unknown op %q", step.Op)
	}
}

func (h *Harness) register(ctx context.Context, r Registration) (store.ID, string, error) {
	def := ledger.Definition{Type: r.Type, Description: r.Description, Payload: r.Payload}
	l := h.ledger
	switch r.Register {
	case "stream":
		id, err := l.RegisterStream(ctx, r.Name, def, r.Force)
		return id, "", err
	case "session":
		id, err := l.RegisterSession(ctx, r.Name, def, r.Force)
		return id, "", err
	case "blob":
		id, err := l.RegisterBlob(ctx, r.Name, def, r.Force)
		return id, "", err
	case "user":
		name, err := l.RegisterUser(ctx, r.Name, r.Payload, r.Force)
		return 0, name, err
	default:
		return 0, "", fmt.Errorf("unknown kind %q", r.Register)
	}
}

func (h *Harness) log(ctx context.Context, a args) (store.ID, string, error) {
	var opts []ledger.LogOption
	if tag := a.str("tag"); tag != "" {
		opts = append(opts, ledger.Tag(tag))
	}
	if a.flag("invalid") {
		opts = append(opts, ledger.Invalid())
	}
	if at := a.str("at"); at != "" {
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return 0, "", fmt.Errorf("log: at: %w", err)
		}
		opts = append(opts, ledger.At(t))
	}

	id, err := h.ledger.Log(ctx, a.str("stream"), a.value("data"), opts...)
	if err != nil {
		return 0, "", err
	}
	h.lastLog = id
	return id, "", nil
}

// logRef resolves the log argument, defaulting to the last logged entry.
func (h *Harness) logRef(a args) (store.ID, error) {
	if _, ok := a["log"]; !ok {
		if h.lastLog == 0 {
			return 0, fmt.Errorf("no log entry to attach to")
		}
		return h.lastLog, nil
	}
	n, err := a.integer("log")
	return store.ID(n), err
}
