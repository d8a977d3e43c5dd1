package image

import (
	"time"
)

type ImageMetadata struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Report struct {
	Baseline       ImageMetadata `json:"baseline"`
	Actual         ImageMetadata `json:"actual"`
	Differences    []int         `json:"differences"`
	NumDifferences int           `json:"numDifferences"`
	HasDifferences bool          `json:"hasDifferences"`
	Width          int           `json:"width"`
	Height         int           `json:"height"`
	IsPassing      bool          `json:"isPassing"`
}

// PercentMatching is the matching fraction of the full pixel grid. An empty
// grid has nothing that can differ and matches completely.
func (r *Report) PercentMatching() float64 {
	return percentMatching(r.Width*r.Height, r.NumDifferences)
}

func percentMatching(numPixels int, numDifferences int) float64 {
	if numPixels <= 0 {
		return 1.0
	}
	return float64(numPixels-numDifferences) / float64(numPixels)
}

// Comparison accumulates the outcome of one scan. It is owned by the
// comparison that created it and must not be shared between goroutines.
type Comparison struct {
	baseline   ImageMetadata
	actual     ImageMetadata
	matchRatio float64

	differences []int
	log         []string
	err         error

	start       time.Time
	runningTime time.Duration
}

func NewComparison(baseline ImageMetadata, actual ImageMetadata, matchRatio float64) *Comparison {
	return &Comparison{
		baseline:   baseline,
		actual:     actual,
		matchRatio: matchRatio,
	}
}

func (c *Comparison) MatchRatio() float64 {
	return c.matchRatio
}

func (c *Comparison) RecordStart() {
	c.start = time.Now()
}

func (c *Comparison) RecordEnd() {
	c.runningTime = time.Since(c.start)
}

func (c *Comparison) RunningTime() time.Duration {
	return c.runningTime
}

// RecordPixelDifference appends a pixel index. Callers record indices once
// each, in ascending scan order.
func (c *Comparison) RecordPixelDifference(index int) {
	c.differences = append(c.differences, index)
}

func (c *Comparison) RecordLog(item string) {
	c.log = append(c.log, item)
}

func (c *Comparison) RecordError(err error) {
	if err == nil {
		return
	}
	c.RecordLog(err.Error())
	c.err = err
}

func (c *Comparison) Log() []string {
	return append([]string{}, c.log...)
}

func (c *Comparison) Err() error {
	return c.err
}

// Report computes the verdict from the differences recorded so far. Each
// call returns a fresh value that does not alias the accumulator.
func (c *Comparison) Report() *Report {
	width := c.baseline.Width
	height := c.baseline.Height
	numDifferences := len(c.differences)

	return &Report{
		Baseline:       c.baseline,
		Actual:         c.actual,
		Differences:    append([]int{}, c.differences...),
		NumDifferences: numDifferences,
		HasDifferences: numDifferences > 0,
		Width:          width,
		Height:         height,
		IsPassing:      percentMatching(width*height, numDifferences) >= c.matchRatio,
	}
}
