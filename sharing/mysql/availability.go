package mysql

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type tristate int

const (
	unknown tristate = iota
	no
	yes
)

func of(b bool) tristate {
	if b {
		return yes
	}
	return no
}

func (t tristate) not() tristate {
	switch t {
	case yes:
		return no
	case no:
		return yes
	}
	return unknown
}

// restriction is a node of the availability tree stored as JSON in the
// availability column of sections and modules. A node is either a
// condition (Type is set) or a subtree combining its children with Op.
type restriction struct {
	Op       string        `json:"op"`
	Children []restriction `json:"c"`

	Type string `json:"type"`

	// date
	Direction string `json:"d"`
	Timestamp int64  `json:"t"`

	// group
	ID *int `json:"id"`
}

func parseRestriction(availability string) (*restriction, error) {
	availability = strings.TrimSpace(availability)
	if availability == "" || availability == "null" {
		return nil, nil
	}

	var r restriction
	if err := json.Unmarshal([]byte(availability), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// facts are what a restriction is evaluated against. When user is false,
// the conditions depending on the user are unknown.
type facts struct {
	now    time.Time
	user   bool
	groups map[int]bool
}

func (r *restriction) eval(f facts) (tristate, error) {
	if r == nil {
		return yes, nil
	}

	if r.Type != "" {
		return r.condition(f)
	}

	if len(r.Children) == 0 {
		return yes, nil
	}

	var and bool
	switch r.Op {
	case "&", "!&":
		and = true
	case "|", "!|":
		and = false
	default:
		return unknown, fmt.Errorf("unknown operator %q", r.Op)
	}

	res := of(and)
	for i := range r.Children {
		v, err := r.Children[i].eval(f)
		if err != nil {
			return unknown, err
		}

		switch {
		case and && v == no:
			res = no
		case !and && v == yes:
			res = yes
		case v == unknown && res != of(!and):
			res = unknown
		}
	}

	if strings.HasPrefix(r.Op, "!") {
		return res.not(), nil
	}
	return res, nil
}

func (r *restriction) condition(f facts) (tristate, error) {
	switch r.Type {
	case "date":
		t := time.Unix(r.Timestamp, 0)
		switch r.Direction {
		case ">=":
			return of(!f.now.Before(t)), nil
		case "<":
			return of(f.now.Before(t)), nil
		}
		return unknown, fmt.Errorf("unknown date direction %q", r.Direction)
	case "group":
		if !f.user {
			return unknown, nil
		}
		if r.ID == nil {
			return of(len(f.groups) > 0), nil
		}
		return of(f.groups[*r.ID]), nil
	}

	if !f.user {
		return unknown, nil
	}
	return unknown, fmt.Errorf("unsupported restriction %q", r.Type)
}

// available tells whether a restriction can be met by anyone at t. Only a
// restriction that fails whatever the user is makes it unavailable.
func available(availability string, t time.Time) bool {
	r, err := parseRestriction(availability)
	if err != nil {
		return false
	}

	v, err := r.eval(facts{now: t})
	return err == nil && v != no
}

// allows evaluates a restriction for a user member of groups.
func allows(availability string, t time.Time, groups map[int]bool) (bool, error) {
	r, err := parseRestriction(availability)
	if err != nil {
		return false, err
	}

	v, err := r.eval(facts{now: t, user: true, groups: groups})
	if err != nil {
		return false, err
	}
	return v == yes, nil
}
