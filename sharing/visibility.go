package sharing

import (
	"context"
)

// IsVisible tells whether userID can currently see the module. The checks run
// from the most global to the most specific and stop at the first failure,
// so the evaluator is only reached when every flag allows it. Orphaned
// modules, a missing evaluator and evaluation errors resolve to false.
func IsVisible(ctx context.Context, mc ModuleContext, userID int, evaluator AccessEvaluator) bool {
	if !mc.Category.Visible {
		return false
	}

	if !mc.Course.Visible {
		return false
	}

	if mc.Section == nil || !mc.Section.Visible || !mc.Section.Available {
		return false
	}

	if !mc.Module.Visible {
		return false
	}

	if evaluator == nil {
		return false
	}

	ok, err := evaluator.UserCanSee(ctx, mc, userID)
	if err != nil {
		return false
	}
	return ok
}

// AllowAll is the evaluator to use when the LMS has no per-user restriction.
type AllowAll struct{}

func (AllowAll) UserCanSee(context.Context, ModuleContext, int) (bool, error) { return true, nil }
