package visual

import (
	"errors"
	"fmt"
	diffimage "visual-regression/internal/diff/image"
)

var ErrMissingBaseline = errors.New("missing baseline")

// SkipError asks the runner to skip the test instead of failing it.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skipped: %s", e.Reason)
}

// RegressionError is returned when the screenshot does not match its
// baseline closely enough.
type RegressionError struct {
	BaselineKey string
	Report      *diffimage.Report
}

func (e *RegressionError) Error() string {
	return fmt.Sprintf("failed visual regression against %s: %d of %d pixels differ (%.2f%% matching)",
		e.BaselineKey, e.Report.NumDifferences, e.Report.Width*e.Report.Height, 100*e.Report.PercentMatching())
}
