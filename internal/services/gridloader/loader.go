// Package gridloader registers forecast model grids. A grid source exposes 2-D
// latitude and longitude arrays and a 1-D time axis; its perimeter is traced
// into a border polygon, written as a GeoJSON artifact and stored as a
// ModelGrid together with the names of the variables the source provides.
package gridloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"

	"github.com/bbernstein/weathervis-go/internal/database/models"
	"github.com/bbernstein/weathervis-go/internal/database/repositories"
	"github.com/bbernstein/weathervis-go/internal/observability"
	"github.com/bbernstein/weathervis-go/internal/services/pubsub"
	"github.com/bbernstein/weathervis-go/pkg/geo"
)

// Coordinate variable names.
const (
	LatitudeVariable  = "latitude"
	LongitudeVariable = "longitude"
)

// Request describes one grid to ingest. ValidEnd and LeadTimeHours are optional.
type Request struct {
	Name          string
	Source        string
	ValidStart    string
	ValidEnd      string
	LeadTimeHours *float64
}

// Result describes an ingested grid.
type Result struct {
	Grid      *models.ModelGrid
	Outcome   repositories.Outcome
	Variables int
	GeoJSON   string
}

// Ingested is published on pubsub.TopicGridIngested.
type Ingested struct {
	Name       string    `json:"name"`
	ValidStart time.Time `json:"validStart"`
	Outcome    string    `json:"outcome"`
}

// Loader ingests grid sources.
type Loader struct {
	grids      *repositories.ModelGridRepository
	opener     Opener
	geojsonDir string

	metrics *observability.Metrics
	bus     *pubsub.PubSub
	logger  *slog.Logger
	clock   clockwork.Clock
}

// Option configures a Loader.
type Option func(*Loader)

// WithMetrics records ingestion counters and durations.
func WithMetrics(m *observability.Metrics) Option { return func(l *Loader) { l.metrics = m } }

// WithPubSub publishes an Ingested message after each grid.
func WithPubSub(ps *pubsub.PubSub) Option { return func(l *Loader) { l.bus = ps } }

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option { return func(l *Loader) { l.logger = logger } }

// WithClock sets the clock used to time ingestions.
func WithClock(c clockwork.Clock) Option { return func(l *Loader) { l.clock = c } }

// NewLoader creates a Loader writing border artifacts to geojsonDir.
func NewLoader(grids *repositories.ModelGridRepository, opener Opener, geojsonDir string, opts ...Option) *Loader {
	l := &Loader{
		grids:      grids,
		opener:     opener,
		geojsonDir: geojsonDir,
		logger:     slog.Default(),
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IngestGrid traces the border of req.Source and stores the grid and its
// variables. Re-ingesting an existing (name, validity start) is not an error:
// the stored grid is returned with Outcome Existing.
func (l *Loader) IngestGrid(ctx context.Context, req Request) (*Result, error) {
	start := l.clock.Now()
	res, err := l.ingest(ctx, req)

	if l.metrics != nil {
		outcome := "error"
		if err == nil {
			outcome = res.Outcome.String()
		}
		l.metrics.GridIngests.WithLabelValues(outcome).Inc()
		l.metrics.GridIngestDuration.Observe(l.clock.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}

	if l.bus != nil {
		l.bus.Publish(pubsub.TopicGridIngested, res.Grid.Name, Ingested{
			Name:       res.Grid.Name,
			ValidStart: res.Grid.DateValidStart,
			Outcome:    res.Outcome.String(),
		})
	}
	return res, nil
}

func (l *Loader) ingest(ctx context.Context, req Request) (*Result, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ArgumentError{Argument: "name_", Value: req.Name}
	}

	validStart, err := parseDate(req.ValidStart)
	if err != nil {
		return nil, err
	}
	// an omitted end is stored as the Unix epoch
	validEnd := time.Unix(0, 0).UTC()
	if strings.TrimSpace(req.ValidEnd) != "" {
		if validEnd, err = parseDate(req.ValidEnd); err != nil {
			return nil, err
		}
	}

	ds, err := l.opener.Open(ctx, req.Source)
	if err != nil {
		var srcErr *SourceError
		if errors.As(err, &srcErr) {
			return nil, err
		}
		return nil, &SourceError{Source: req.Source, Err: err}
	}
	defer func() { _ = ds.Close() }()

	border, err := traceBorder(ds, req.Source)
	if err != nil {
		return nil, err
	}

	leadTime, err := resolveLeadTime(ds, req)
	if err != nil {
		return nil, err
	}

	path, err := writeBorder(l.geojsonDir, name, border)
	if err != nil {
		return nil, err
	}
	stored, err := readBorder(path, name)
	if err != nil {
		return nil, err
	}

	grid := &models.ModelGrid{
		Name:           name,
		Border:         stored,
		DateValidStart: validStart,
		DateValidEnd:   &validEnd,
		LeadTime:       &leadTime,
	}
	upsert, err := l.grids.GetOrCreate(ctx, grid)
	if err != nil {
		return nil, err
	}
	if !upsert.Created() {
		l.logger.Warn("model grid already registered",
			"name", name, "date_valid_start", validStart.Format(time.RFC3339))
	}

	names := ds.Variables()
	for _, v := range names {
		if _, _, err := l.grids.GetOrCreateVariable(ctx, grid.ID, v); err != nil {
			return nil, err
		}
	}

	l.logger.Info("model grid ingested",
		"name", name,
		"outcome", upsert.Outcome.String(),
		"border_points", len(border),
		"variables", len(names))

	return &Result{Grid: grid, Outcome: upsert.Outcome, Variables: len(names), GeoJSON: path}, nil
}

// traceBorder checks the coordinate variables and traces their perimeter.
func traceBorder(ds Dataset, source string) (geo.Polygon, error) {
	coords := make(map[string]Variable, 2)
	for _, name := range []string{LatitudeVariable, LongitudeVariable} {
		v, ok := ds.Variable(name)
		if !ok {
			return nil, &geo.VariableError{Variable: name, Source: source}
		}
		if len(v.Shape) != 2 {
			return nil, &geo.DimensionError{Variable: name, Shape: v.Shape}
		}
		coords[name] = v
	}
	ring, err := geo.TraceGridBorder(coords[LatitudeVariable].Array(), coords[LongitudeVariable].Array())
	if err != nil {
		return nil, err
	}
	return ring.Closed(), nil
}

// resolveLeadTime converts explicit hours, or derives the span of the time axis.
func resolveLeadTime(ds Dataset, req Request) (time.Duration, error) {
	axis, err := readTimeAxis(ds, req.Source)
	if err != nil {
		return 0, err
	}
	if req.LeadTimeHours != nil {
		return time.Duration(*req.LeadTimeHours * float64(time.Hour)), nil
	}
	return axis.Span(), nil
}

// ParamFile is the batch ingestion descriptor.
type ParamFile struct {
	Data map[string]ParamEntry `yaml:"data"`
}

// ParamEntry is one grid of a parameter file.
type ParamEntry struct {
	URL            string   `yaml:"url"`
	DateValidStart string   `yaml:"date_valid_start"`
	DateValidEnd   string   `yaml:"date_valid_end"`
	LeadTime       *float64 `yaml:"leadtime"`
}

// IngestAll validates every entry of paramFile before ingesting any of them.
// Validation failures are joined and nothing is ingested. Ingestion stops at
// the first failing grid.
func (l *Loader) IngestAll(ctx context.Context, paramFile string) ([]*Result, error) {
	params, err := LoadParamFile(paramFile)
	if err != nil {
		return nil, fmt.Errorf("Something goes wrong when uploading extra parameters file -%s-. %w", paramFile, err)
	}

	names := make([]string, 0, len(params.Data))
	for name := range params.Data {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]*Result, 0, len(names))
	for _, name := range names {
		entry := params.Data[name]
		res, err := l.IngestGrid(ctx, Request{
			Name:          name,
			Source:        entry.URL,
			ValidStart:    entry.DateValidStart,
			ValidEnd:      entry.DateValidEnd,
			LeadTimeHours: entry.LeadTime,
		})
		if err != nil {
			return results, fmt.Errorf("failed to ingest model grid %s: %w", name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// LoadParamFile reads and validates a parameter file.
func LoadParamFile(path string) (*ParamFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if err := checkParams(raw, path); err != nil {
		return nil, err
	}

	var params ParamFile
	if err := yaml.Unmarshal(data, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// checkParams validates the decoded parameter file and reports every invalid
// entry at once.
func checkParams(raw map[string]interface{}, file string) error {
	data, ok := raw["data"]
	if !ok {
		return fmt.Errorf("No key 'data' in %s.", file)
	}
	entries, ok := data.(map[string]interface{})
	if !ok {
		return fmt.Errorf("Value of key 'data' in %s must be a dictionnary.", file)
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		entry, ok := entries[k].(map[string]interface{})
		if !ok {
			errs = append(errs, &ParamError{File: file,
				Message: fmt.Sprintf("Value of 'data[%s]' must be a dictionnary.", k)})
			continue
		}

		url, _ := entry["url"].(string)
		if !IsURL(url) && !isFile(url) {
			errs = append(errs, &ParamError{File: file,
				Message: fmt.Sprintf("Invalid URL for model grid '%s': '%s' must be an url or an existing file.", k, url)})
		}

		for _, field := range []string{"date_valid_start", "date_valid_end"} {
			value, present := entry[field]
			if !present && field == "date_valid_end" {
				continue
			}
			if err := checkDate(value); err != nil {
				errs = append(errs, &ParamError{File: file,
					Message: fmt.Sprintf("Invalid datetime format for 'data[%s][%s]': %v", k, field, value)})
			}
		}

		if lt, present := entry["leadtime"]; present {
			switch lt.(type) {
			case int, float64:
			default:
				errs = append(errs, &ParamError{File: file,
					Message: fmt.Sprintf("Invalid leadtime for model grid '%s': %v must be a number of hours.", k, lt)})
			}
		}
	}
	return errors.Join(errs...)
}

// checkDate accepts strings parseable as dates and YAML timestamps.
func checkDate(value interface{}) error {
	switch v := value.(type) {
	case time.Time:
		return nil
	case string:
		_, err := parseDate(v)
		return err
	}
	return fmt.Errorf("not a date: %v", value)
}

func isFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
