package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/explog/internal/ledger"
)

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	Type        string
	Description string
	Payload     string // JSON text
	Force       bool
}

// RegisterResult is the registered entity.
type RegisterResult struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	ID   int64  `json:"id,omitempty"`
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register <stream|session|blob|user> [name]",
		Short: "Register a stream, session prototype, blob type or user",
		Long: `Register a named entity in the metadata catalog.

The name may be omitted for users, who then receive a pseudonym.
Registering an existing name fails unless --force is given, which
replaces its type, description and payload.

Examples:
  explog register stream reaction_time --payload '{"type":"object"}' --type jsonschema
  explog register session Block --description "one block of trials"
  explog register user alice --payload '{"age":30}'
  explog register user`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			return runRegister(opts, args[0], name, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "entity type tag (jsonschema makes a stream payload a schema)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "free-text description")
	cmd.Flags().StringVar(&opts.Payload, "payload", "", "JSON payload")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "update an existing entity")

	return cmd
}

func runRegister(opts *RegisterOptions, kind, name string, cmd *cobra.Command) error {
	var payload any
	if opts.Payload != "" {
		if !json.Valid([]byte(opts.Payload)) {
			return NewExitError(ExitCommandError, "--payload is not valid JSON")
		}
		payload = json.RawMessage(opts.Payload)
	}
	if name == "" && kind != "user" {
		return NewExitError(ExitCommandError, fmt.Sprintf("a name is required to register a %s", kind))
	}

	e, err := setup(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := cmd.Context()
	def := ledger.Definition{Type: opts.Type, Description: opts.Description, Payload: payload}
	result := RegisterResult{Kind: kind, Name: name}

	var id int64
	switch kind {
	case "stream":
		sid, rerr := e.ledger.RegisterStream(ctx, name, def, opts.Force)
		id, err = int64(sid), rerr
	case "session":
		sid, rerr := e.ledger.RegisterSession(ctx, name, def, opts.Force)
		id, err = int64(sid), rerr
	case "blob":
		sid, rerr := e.ledger.RegisterBlob(ctx, name, def, opts.Force)
		id, err = int64(sid), rerr
	case "user":
		result.Name, err = e.ledger.RegisterUser(ctx, name, payload, opts.Force)
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown kind %q: must be stream, session, blob or user", kind))
	}

	f := newFormatter(opts.RootOptions, cmd)
	if err != nil {
		return f.Fail("register failed", err)
	}
	result.ID = id

	return f.Emit(result, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Registered %s %q\n", result.Kind, result.Name)
		return err
	})
}
