package ledger

import (
	"context"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/explog/internal/codec"
	"github.com/roach88/explog/internal/store"
)

// ActiveUser is a pending roster entry, attached to every session opened
// while it stays on the roster.
type ActiveUser struct {
	Name string
	ID   store.ID
	Role string
	JSON string
}

// RegisterUser registers a participant and returns the registered name. An
// empty name registers a fresh pseudonym from the NameGenerator.
func (l *Ledger) RegisterUser(ctx context.Context, name string, payload any, force bool) (string, error) {
	if name == "" {
		generated, err := l.pseudonym(ctx)
		if err != nil {
			return "", err
		}
		name = generated
		l.logger.Debug("creating new pseudonym", "name", name)
	}
	name = norm.NFC.String(name)

	if _, err := l.registry.Register(ctx, Definition{Payload: payload}.entry(store.MetaUser, name), force); err != nil {
		return "", err
	}
	return name, l.wrote()
}

func (l *Ledger) pseudonym(ctx context.Context) (string, error) {
	for i := 0; i < maxPseudonymAttempts; i++ {
		name := l.names.Generate()
		if name == "" {
			continue
		}
		_, taken, err := l.registry.Lookup(ctx, store.MetaUser, name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
	}
	return "", fmt.Errorf("register user: no free pseudonym after %d attempts", maxPseudonymAttempts)
}

// AddActiveUser puts a registered user on the roster for the next session,
// replacing the role and payload if the user is already on it. Roster changes
// are persisted only when a session opens.
func (l *Ledger) AddActiveUser(ctx context.Context, name, role string, payload any) error {
	name = norm.NFC.String(name)
	id, err := l.registry.Resolve(ctx, store.MetaUser, name)
	if err != nil {
		return err
	}
	data, err := codec.Encode(payload)
	if err != nil {
		return err
	}

	u := ActiveUser{Name: name, ID: id, Role: role, JSON: data}
	if i := l.rosterIndex(name); i >= 0 {
		l.roster[i] = u
	} else {
		l.roster = append(l.roster, u)
	}
	l.usersChanged = true
	l.logger.Debug("added user to active list", "user", name, "role", role)
	return nil
}

// RemoveActiveUser takes a user off the roster.
func (l *Ledger) RemoveActiveUser(name string) error {
	name = norm.NFC.String(name)
	i := l.rosterIndex(name)
	if i < 0 {
		return stateError(CodeInvalidState, "remove active user", "user %q is not on the active list", name)
	}
	l.roster = append(l.roster[:i], l.roster[i+1:]...)
	l.usersChanged = true
	l.logger.Debug("removed user from active list", "user", name)
	return nil
}

// ClearActiveUsers empties the roster.
func (l *Ledger) ClearActiveUsers() {
	l.roster = nil
	l.usersChanged = true
	l.logger.Debug("all users cleared from active list")
}

// ActiveUsers returns the roster in the order users were added.
func (l *Ledger) ActiveUsers() []ActiveUser {
	return append([]ActiveUser(nil), l.roster...)
}

// UsersChanged reports whether the roster changed since the last session was
// opened. The flag is informational; nothing in the ledger acts on it.
func (l *Ledger) UsersChanged() bool {
	return l.usersChanged
}

func (l *Ledger) rosterIndex(name string) int {
	for i, u := range l.roster {
		if u.Name == name {
			return i
		}
	}
	return -1
}

func (l *Ledger) activeNames() []string {
	names := make([]string, len(l.roster))
	for i, u := range l.roster {
		names[i] = u.Name
	}
	return names
}
