// Package admincmd parses the admin command surface into typed variants.
// Free-text admin input is validated here, before anything is dispatched,
// so handlers receive structured arguments instead of string fragments.
package admincmd

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is a parsed admin verb with its typed arguments.
type Command interface{ isCommand() }

// Panel shows the admin panel.
type Panel struct{}

// Stats requests the aggregate counters.
type Stats struct{}

// Grant adds a signed bonus delta to a user's allowance.
type Grant struct {
	UserID int64
	Delta  int
}

// UserLog dumps a user's most recent dispatches.
type UserLog struct {
	UserID int64
}

// Backup exports the persisted store.
type Backup struct{}

func (Panel) isCommand()   {}
func (Stats) isCommand()   {}
func (Grant) isCommand()   {}
func (UserLog) isCommand() {}
func (Backup) isCommand()  {}

// ParseError reports what was wrong and the expected shape.
type ParseError struct {
	Verb  string
	Usage string
	Cause string
}

func (e *ParseError) Error() string {
	if e.Usage == "" {
		return e.Cause
	}
	return fmt.Sprintf("%s (usage: %s)", e.Cause, e.Usage)
}

const (
	usageGrant   = "/grant <user_id> <delta>"
	usageUserLog = "/usersms <user_id>"
)

// Parse recognizes an admin command line. A nil Command with a nil error
// means the text is not an admin verb at all.
func Parse(text string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil, nil
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "/admin":
		return Panel{}, nil
	case "/stats":
		return Stats{}, nil
	case "/backup":
		return Backup{}, nil
	case "/grant", "/setlimit":
		if len(args) != 2 {
			return nil, &ParseError{Verb: verb, Usage: usageGrant, Cause: "expected 2 arguments"}
		}
		uid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || uid <= 0 {
			return nil, &ParseError{Verb: verb, Usage: usageGrant, Cause: "user_id must be a positive integer"}
		}
		delta, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, &ParseError{Verb: verb, Usage: usageGrant, Cause: "delta must be an integer"}
		}
		return Grant{UserID: uid, Delta: delta}, nil
	case "/usersms":
		if len(args) != 1 {
			return nil, &ParseError{Verb: verb, Usage: usageUserLog, Cause: "expected 1 argument"}
		}
		uid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || uid <= 0 {
			return nil, &ParseError{Verb: verb, Usage: usageUserLog, Cause: "user_id must be a positive integer"}
		}
		return UserLog{UserID: uid}, nil
	}
	return nil, nil
}

// ParseArgs validates the argument tail of a button-initiated flow, where
// the verb came from the pending action instead of the message text.
func ParseArgs(verb, args string) (Command, error) {
	switch verb {
	case "grant_bonus":
		return Parse("/grant " + args)
	case "user_log":
		return Parse("/usersms " + args)
	}
	return nil, &ParseError{Verb: verb, Cause: "unknown pending action"}
}
