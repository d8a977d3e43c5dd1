package routes

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"visual-regression/internal/config"
	diffimage "visual-regression/internal/diff/image"
	"visual-regression/internal/myhttp"
	"visual-regression/internal/raster"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type CompareResponse struct {
	Report          *diffimage.Report `json:"report"`
	PercentMatching float64           `json:"percentMatching"`
	DiffData        string            `json:"diffData"`
	Log             []string          `json:"log,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Compare handles multipart uploads of a "baseline" and an "actual" image.
// Form values pixelSkip, pixelTolerance, matchRatio, errorColor,
// backgroundColor, fillSkipped and format override the defaults for one
// request.
func Compare(defaults config.Comparator, maxUploadBytes int64, comparisons metric.Int64Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := myhttp.Logger(r.Context())

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var maxBytesError *http.MaxBytesError
			if errors.As(err, &maxBytesError) {
				writeError(w, http.StatusRequestEntityTooLarge, err)
				return
			}
			writeError(w, http.StatusBadRequest, err)
			return
		}

		c, err := comparatorFromForm(defaults, r.MultipartForm)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		differ, err := c.Differ()
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		baseline, err := formImage(r, "baseline", c.Decoder())
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		actual, err := formImage(r, "actual", c.Decoder())
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}

		result, err := differ.Calculate(baseline, actual)
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}

		comparisons.Add(r.Context(), 1, metric.WithAttributes(
			attribute.Key("format").String(c.Format),
			attribute.Key("passing").Bool(result.Report.IsPassing),
		))

		data, err := result.Image.PNG()
		if err != nil {
			logger.Error("failed to encode difference image", "error", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		logger.Debug("compared images",
			"width", result.Report.Width,
			"height", result.Report.Height,
			"differences", result.Report.NumDifferences,
			"elapsed", result.Comparison.RunningTime())

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(CompareResponse{
			Report:          result.Report,
			PercentMatching: result.Report.PercentMatching(),
			DiffData:        base64.StdEncoding.EncodeToString(data),
			Log:             result.Comparison.Log(),
		}); err != nil {
			logger.Error("failed to encode response", "error", err)
		}
	}
}

func comparatorFromForm(defaults config.Comparator, form *multipart.Form) (config.Comparator, error) {
	c := defaults
	value := func(key string) (string, bool) {
		values := form.Value[key]
		if len(values) == 0 || values[0] == "" {
			return "", false
		}
		return values[0], true
	}

	if v, ok := value("pixelSkip"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("%w: pixelSkip: %w", diffimage.ErrInvalidOptions, err)
		}
		c.PixelSkip = n
	}
	if v, ok := value("pixelTolerance"); ok {
		c.PixelTolerance = v
	}
	if v, ok := value("matchRatio"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c, fmt.Errorf("%w: matchRatio: %w", diffimage.ErrInvalidOptions, err)
		}
		c.MatchRatio = f
	}
	if v, ok := value("errorColor"); ok {
		c.ErrorColor = v
	}
	if v, ok := value("backgroundColor"); ok {
		c.Background = v
	}
	if v, ok := value("fillSkipped"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("%w: fillSkipped: %w", diffimage.ErrInvalidOptions, err)
		}
		c.FillSkipped = n
	}
	if v, ok := value("format"); ok {
		c.Format = v
	}
	return c, nil
}

func formImage(r *http.Request, field string, decoder raster.Decoder) (*raster.Image, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%w: missing %s image", diffimage.ErrNullImage, field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s image: %w", field, err)
	}

	img, err := decoder.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return img, nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, diffimage.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, diffimage.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, diffimage.ErrNullImage),
		errors.Is(err, diffimage.ErrDecode),
		errors.Is(err, diffimage.ErrMalformedImage),
		errors.Is(err, diffimage.ErrInvalidOptions):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
}
