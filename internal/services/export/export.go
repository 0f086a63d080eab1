// Package export writes the configuration artifacts consumed by the plotting
// and dispersion pipeline: stations.yaml, releases.csv, domains.yaml and
// plots.yaml. Every artifact reflects the active subset of the database and is
// byte-for-byte reproducible for a fixed database state.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"

	"github.com/bbernstein/weathervis-go/internal/database/models"
	"github.com/bbernstein/weathervis-go/internal/database/repositories"
	"github.com/bbernstein/weathervis-go/internal/observability"
	"github.com/bbernstein/weathervis-go/internal/services/hooks"
	"github.com/bbernstein/weathervis-go/internal/services/pubsub"
)

// Artifact names.
const (
	ArtifactStations = "stations.yaml"
	ArtifactReleases = "releases.csv"
	ArtifactDomains  = "domains.yaml"
	ArtifactPlots    = "plots.yaml"
)

const stationsHeader = `
# <location name>:
#   lat: <location latitude (degree_north)>
#   lon: <location longitude (degree_east)>
#   height: <location height ()>
#   stationId: <station identifier>
#   WMOID:     <WMO identifier>
#   description: >
#     <description could be write on multilines>
#   margin: <create box around location to display>
#     north:  <adds X degree(s) north of location (degree)>
#     east:   <adds X degree(s) east of location (degree)>
#     south:  <substracts X degree(s) south of location (degree)>
#     west:   <substracts X degree(s) west of location (degree)>
#   plots: list of plots selected fot this station
`

const domainsHeader = `
#
# Domains from campaign "%s"
# ------
# <domain name>:
#   north: <domain latitude north (degree_north)>
#   south: <domain latitude south (degree_north)>
#   west: <domain longitude west (degree_east)>
#   east: <domain longitude east (degree_east)>
#   height: <domain height (m)>
#   description: >
#     <description could be write on multilines>
#   plots: list of plots selected fot this domain
`

const plotsHeader = `
# <plot name>:
#   command: <plot's command>
#   options: <plot's command options>
#   description: >
#     <description could be write on multilines>
`

const releasesHeader = "rel_begin_YYYYMMDD; rel_begin_HHMMSS; rel_end_YYYYMMDD; rel_end_HHMMSS; " +
	"rel_min_1; rel_min_2; rel_max_1; rel_max_2; rel_ZTYPE; rel_ZPOINT_1; rel_ZPOINT_2; " +
	"rel_NUMB_PART; rel_XMASS; rel_domain_name; rel_lon; rel_lat; number_grid"

// Paths holds the target file of each artifact.
type Paths struct {
	Stations string
	Releases string
	Domains  string
	Plots    string
}

// DefaultPaths lays the artifacts out under dataDir.
func DefaultPaths(dataDir string) Paths {
	return Paths{
		Stations: filepath.Join(dataDir, "stations", ArtifactStations),
		Releases: filepath.Join(dataDir, "stations", ArtifactReleases),
		Domains:  filepath.Join(dataDir, "domains", ArtifactDomains),
		Plots:    filepath.Join(dataDir, "plots", ArtifactPlots),
	}
}

// Completed is published on pubsub.TopicExportCompleted after each artifact is written.
type Completed struct {
	Artifact string    `json:"artifact"`
	Path     string    `json:"path"`
	Entries  int       `json:"entries"`
	At       time.Time `json:"at"`
}

// Service handles config artifact export operations.
type Service struct {
	stationRepo  *repositories.StationRepository
	domainRepo   *repositories.DomainRepository
	plotRepo     *repositories.PlotRepository
	campaignRepo *repositories.CampaignRepository

	paths   Paths
	metrics *observability.Metrics
	bus     *pubsub.PubSub
	logger  *slog.Logger
	clock   clockwork.Clock
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records export counters and durations.
func WithMetrics(m *observability.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithPubSub publishes a Completed message after each export.
func WithPubSub(ps *pubsub.PubSub) Option { return func(s *Service) { s.bus = ps } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithClock sets the clock used for timestamps and durations.
func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }

// NewService creates a new export service.
func NewService(
	stationRepo *repositories.StationRepository,
	domainRepo *repositories.DomainRepository,
	plotRepo *repositories.PlotRepository,
	campaignRepo *repositories.CampaignRepository,
	paths Paths,
	opts ...Option,
) *Service {
	s := &Service{
		stationRepo:  stationRepo,
		domainRepo:   domainRepo,
		plotRepo:     plotRepo,
		campaignRepo: campaignRepo,
		paths:        paths,
		logger:       slog.Default(),
		clock:        clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Paths returns the artifact locations.
func (s *Service) Paths() Paths { return s.paths }

// AfterCommit regenerates the artifacts affected by a committed mutation.
func (s *Service) AfterCommit(ctx context.Context, e hooks.Event) error {
	switch e.Entity {
	case hooks.EntityStation:
		if err := s.ExportStations(ctx, s.paths.Stations); err != nil {
			return err
		}
		return s.ExportReleaseParameters(ctx, s.paths.Releases)
	case hooks.EntityDomain:
		return s.ExportDomains(ctx, s.paths.Domains)
	case hooks.EntityStationPlot:
		if err := s.ExportPlots(ctx, s.paths.Plots); err != nil {
			return err
		}
		return s.ExportStations(ctx, s.paths.Stations)
	case hooks.EntityDomainPlot:
		if err := s.ExportPlots(ctx, s.paths.Plots); err != nil {
			return err
		}
		return s.ExportDomains(ctx, s.paths.Domains)
	}
	return nil
}

// ExportAll writes every artifact. Bulk scope changes call this explicitly.
func (s *Service) ExportAll(ctx context.Context) error {
	if err := s.ExportStations(ctx, s.paths.Stations); err != nil {
		return err
	}
	if err := s.ExportReleaseParameters(ctx, s.paths.Releases); err != nil {
		return err
	}
	if err := s.ExportDomains(ctx, s.paths.Domains); err != nil {
		return err
	}
	return s.ExportPlots(ctx, s.paths.Plots)
}

// ExportStations writes the active stations to target.
func (s *Service) ExportStations(ctx context.Context, target string) error {
	return s.run(ArtifactStations, target, func() ([]byte, int, error) {
		stations, err := s.stationRepo.FindActive(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load stations: %w", err)
		}
		entries := make([]entry, 0, len(stations))
		for i := range stations {
			entries = append(entries, entry{key: stations[i].Name, value: stationNode(&stations[i])})
		}
		body, err := encodeEntries(entries)
		if err != nil {
			return nil, 0, err
		}
		return withHeader(stationsHeader, body), len(entries), nil
	})
}

func stationNode(st *models.Station) *yaml.Node {
	var margin models.Margin
	if st.Margin != nil {
		margin = *st.Margin
	}
	plots := make([]string, 0, len(st.Plots))
	for _, p := range st.Plots {
		plots = append(plots, p.Name)
	}
	return mappingNode(
		"lat", floatNode(st.Latitude),
		"lon", floatNode(st.Longitude),
		"height", floatNode(st.Altitude),
		"stationID", optStrNode(st.StationCode),
		"WMOID", optStrNode(st.WMOID),
		"description", strNode(st.Description),
		"margin", mappingNode(
			"west", floatNode(margin.West.InexactFloat64()),
			"east", floatNode(margin.East.InexactFloat64()),
			"north", floatNode(margin.North.InexactFloat64()),
			"south", floatNode(margin.South.InexactFloat64()),
		),
		"plots", listNode(plots),
	)
}

// ExportReleaseParameters writes one row per station using a release model.
func (s *Service) ExportReleaseParameters(ctx context.Context, target string) error {
	return s.run(ArtifactReleases, target, func() ([]byte, int, error) {
		stations, err := s.stationRepo.FindReleases(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load release stations: %w", err)
		}
		var buf bytes.Buffer
		buf.WriteString(releasesHeader)
		buf.WriteByte('\n')
		for i := range stations {
			buf.WriteString(releaseRow(&stations[i]))
			buf.WriteByte('\n')
		}
		return buf.Bytes(), len(stations), nil
	})
}

func releaseRow(st *models.Station) string {
	ymd1, hms1 := splitDate(st.StartDatetime)
	ymd2, hms2 := splitDate(st.EndDatetime)
	fields := []string{
		ymd1, hms1, ymd2, hms2,
		"NaN", "NaN", "NaN", "NaN",
		fmt.Sprint(int(st.AltUnit)),
		st.AltLower.String(),
		st.AltUpper.String(),
		fmt.Sprint(st.NumbPart),
		fmt.Sprint(st.XMass),
		st.Name,
		formatFloat(st.Longitude),
		formatFloat(st.Latitude),
		fmt.Sprint(st.NumberGrid),
	}
	return strings.Join(fields, "; ")
}

func splitDate(t *time.Time) (string, string) {
	if t == nil {
		return "NaN", "NaN"
	}
	u := t.UTC()
	return u.Format("20060102"), u.Format("150405")
}

// ExportDomains writes the active domains to target.
func (s *Service) ExportDomains(ctx context.Context, target string) error {
	return s.run(ArtifactDomains, target, func() ([]byte, int, error) {
		campaign, err := s.activeCampaignName(ctx)
		if err != nil {
			return nil, 0, err
		}
		domains, err := s.domainRepo.FindActive(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load domains: %w", err)
		}
		entries := make([]entry, 0, len(domains))
		for i := range domains {
			entries = append(entries, entry{key: domains[i].Name, value: domainNode(&domains[i])})
		}
		body, err := encodeEntries(entries)
		if err != nil {
			return nil, 0, err
		}
		return withHeader(fmt.Sprintf(domainsHeader, campaign), body), len(entries), nil
	})
}

func domainNode(d *models.Domain) *yaml.Node {
	plots := make([]string, 0, len(d.Plots))
	for _, p := range d.Plots {
		plots = append(plots, p.Name)
	}
	return mappingNode(
		"west", floatNode(d.West()),
		"north", floatNode(d.North()),
		"east", floatNode(d.East()),
		"south", floatNode(d.South()),
		"height", floatNode(d.Height()),
		"description", strNode(d.Description),
		"plots", listNode(plots),
	)
}

// activeCampaignName names the campaign recorded on the first domain, or
// "any or none".
func (s *Service) activeCampaignName(ctx context.Context) (string, error) {
	first, err := s.domainRepo.First(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to load first domain: %w", err)
	}
	if first == nil || first.ActiveCampaign == nil {
		return "any or none", nil
	}
	campaign, err := s.campaignRepo.FindByID(ctx, *first.ActiveCampaign)
	if err != nil {
		return "", fmt.Errorf("failed to load active campaign: %w", err)
	}
	if campaign == nil {
		return "any or none", nil
	}
	return campaign.Name, nil
}

// ExportPlots writes the station and domain plot catalogs to target.
// A domain plot shadows a station plot of the same name.
func (s *Service) ExportPlots(ctx context.Context, target string) error {
	return s.run(ArtifactPlots, target, func() ([]byte, int, error) {
		stationPlots, err := s.plotRepo.FindStationPlots(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load station plots: %w", err)
		}
		domainPlots, err := s.plotRepo.FindDomainPlots(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load domain plots: %w", err)
		}

		var entries []entry
		index := map[string]int{}
		add := func(name string, node *yaml.Node) {
			if i, ok := index[name]; ok {
				entries[i].value = node
				return
			}
			index[name] = len(entries)
			entries = append(entries, entry{key: name, value: node})
		}
		for _, p := range stationPlots {
			add(p.Name, plotNode(p.Command, p.Options, p.Description))
		}
		for _, p := range domainPlots {
			add(p.Name, plotNode(p.Command, p.Options, p.Description))
		}

		body, err := encodeEntries(entries)
		if err != nil {
			return nil, 0, err
		}
		return withHeader(plotsHeader, body), len(entries), nil
	})
}

func plotNode(command, options, description string) *yaml.Node {
	return mappingNode(
		"command", strNode(command),
		"options", strNode(options),
		"description", strNode(description),
	)
}

func withHeader(header string, body []byte) []byte {
	out := make([]byte, 0, len(header)+1+len(body))
	out = append(out, header...)
	out = append(out, '\n')
	return append(out, body...)
}

// run renders an artifact, writes it and records metrics and events.
func (s *Service) run(artifact, target string, render func() ([]byte, int, error)) error {
	start := s.clock.Now()
	data, n, err := render()
	if err == nil {
		err = writeFile(target, data)
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	if s.metrics != nil {
		s.metrics.ConfigExports.WithLabelValues(artifact, outcome).Inc()
		s.metrics.ConfigExportDuration.WithLabelValues(artifact).Observe(s.clock.Since(start).Seconds())
	}
	if err != nil {
		s.logger.Error("config export failed", "artifact", artifact, "path", target, "error", err)
		return fmt.Errorf("failed to export %s: %w", artifact, err)
	}

	s.logger.Debug("config exported", "artifact", artifact, "path", target, "entries", n)
	if s.bus != nil {
		s.bus.Publish(pubsub.TopicExportCompleted, artifact, Completed{
			Artifact: artifact,
			Path:     target,
			Entries:  n,
			At:       s.clock.Now().UTC(),
		})
	}
	return nil
}

// writeFile replaces target atomically, creating parent directories.
func writeFile(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to chmod: %w", err)
	}
	return os.Rename(tmp.Name(), target)
}
