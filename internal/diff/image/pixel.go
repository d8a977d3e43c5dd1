package image

import (
	"runtime"
	"sync"
	"time"
	"visual-regression/internal/raster"
)

// Scans with fewer samples than this run on the calling goroutine.
const parallelSampleThreshold = 1 << 16

type ScanResult struct {
	Width       int
	Height      int
	Differences []int
	Elapsed     time.Duration
}

// PixelComparator holds only immutable configuration, so a single value may
// be shared by concurrent comparisons.
type PixelComparator struct {
	tolerance  Tolerance
	pixelSkip  int
	matchRatio float64
}

func NewPixelComparator(o Options) (*PixelComparator, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &PixelComparator{
		tolerance:  o.Tolerance,
		pixelSkip:  o.PixelSkip,
		matchRatio: o.MatchRatio,
	}, nil
}


// Scan returns the indices of sampled pixels whose red, green or blue
// channel differs by more than the tolerance, in ascending order.
func (p *PixelComparator) Scan(baseline *raster.Image, actual *raster.Image) (*ScanResult, error) {
	if err := validatePair(baseline, actual); err != nil {
		return nil, err
	}

	start := time.Now()
	differences := p.scan(baseline.Pix, actual.Pix, baseline.PixelCount())

	return &ScanResult{
		Width:       baseline.Width,
		Height:      baseline.Height,
		Differences: differences,
		Elapsed:     time.Since(start),
	}, nil
}

// Compare scans the pair and accumulates the result into a Comparison whose
// Report carries the verdict.
func (p *PixelComparator) Compare(baseline *raster.Image, actual *raster.Image) (*Comparison, error) {
	if err := validatePair(baseline, actual); err != nil {
		return nil, err
	}

	comparison := NewComparison(metadataOf(baseline), metadataOf(actual), p.matchRatio)
	comparison.RecordStart()
	for _, index := range p.scan(baseline.Pix, actual.Pix, baseline.PixelCount()) {
		comparison.RecordPixelDifference(index)
	}
	comparison.RecordEnd()

	return comparison, nil
}

func (p *PixelComparator) scan(left []byte, right []byte, pixelCount int) []int {
	samples := (pixelCount + p.pixelSkip - 1) / p.pixelSkip

	// Use GOMAXPROCS instead of runtime.NumCPU() to consider cgroup.
	numWorkers := runtime.GOMAXPROCS(0)
	if samples < parallelSampleThreshold || numWorkers < 2 {
		return p.scanRange(left, right, 0, samples)
	}

	samplesPerWorker := samples / numWorkers
	chunks := make([][]int, numWorkers)

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		from := i * samplesPerWorker
		to := from + samplesPerWorker
		if i == numWorkers-1 {
			to = samples
		}

		go func(i int, from int, to int) {
			defer wg.Done()
			chunks[i] = p.scanRange(left, right, from, to)
		}(i, from, to)
	}
	wg.Wait()

	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	differences := make([]int, 0, total)
	for _, chunk := range chunks {
		differences = append(differences, chunk...)
	}
	return differences
}

// scanRange inspects samples [from, to); sample k is pixel k*pixelSkip.
func (p *PixelComparator) scanRange(left []byte, right []byte, from int, to int) []int {
	var differences []int

	redTolerance := int(p.tolerance.Red)
	greenTolerance := int(p.tolerance.Green)
	blueTolerance := int(p.tolerance.Blue)

	for k := from; k < to; k++ {
		index := k * p.pixelSkip
		offset := index << 2
		if absDiff(left[offset], right[offset]) > redTolerance ||
			absDiff(left[offset+1], right[offset+1]) > greenTolerance ||
			absDiff(left[offset+2], right[offset+2]) > blueTolerance {
			differences = append(differences, index)
		}
	}

	return differences
}

func absDiff(a uint8, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func validatePair(baseline *raster.Image, actual *raster.Image) error {
	if baseline == nil || actual == nil {
		return ErrNullImage
	}
	if baseline.Width != actual.Width || baseline.Height != actual.Height {
		return &DimensionMismatchError{
			Baseline: metadataOf(baseline),
			Actual:   metadataOf(actual),
		}
	}
	if baseline.Width < 0 || baseline.Height < 0 ||
		len(baseline.Pix) != baseline.PixelCount()*4 || len(actual.Pix) != actual.PixelCount()*4 {
		return ErrMalformedImage
	}
	return nil
}

func metadataOf(i *raster.Image) ImageMetadata {
	return ImageMetadata{
		Width:  i.Width,
		Height: i.Height,
	}
}
