package sharing

import (
	"context"
)

// RolePolicy decides which Drive role a user gets on the documents of a
// course they can see.
type RolePolicy interface {
	Role(ctx context.Context, userID, courseID int) (Role, error)
}

// ReaderPolicy grants reader to everyone.
type ReaderPolicy struct{}

func (ReaderPolicy) Role(context.Context, int, int) (Role, error) { return RoleReader, nil }

// CapabilityChecker answers whether a user holds an LMS capability in the
// context of a course.
type CapabilityChecker interface {
	HasCapability(ctx context.Context, userID, courseID int, capability string) (bool, error)
}

// CapabilityPolicy maps an LMS capability to the writer role, everyone else
// reads.
type CapabilityPolicy struct {
	Checker          CapabilityChecker
	WriterCapability string
}

func (p CapabilityPolicy) Role(ctx context.Context, userID, courseID int) (Role, error) {
	if p.WriterCapability == "" {
		return RoleReader, nil
	}

	ok, err := p.Checker.HasCapability(ctx, userID, courseID, p.WriterCapability)
	if err != nil {
		return RoleReader, err
	} else if ok {
		return RoleWriter, nil
	}
	return RoleReader, nil
}
