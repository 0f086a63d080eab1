// Package importservice uploads stations and domains from YAML parameter
// files. A file maps record names to dictionaries of attributes; the
// optional "default" entry supplies values missing from the others.
package importservice

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/bbernstein/weathervis-go/internal/database/models"
	"github.com/bbernstein/weathervis-go/internal/database/repositories"
	"github.com/bbernstein/weathervis-go/pkg/geo"
)

const defaultKey = "default"

// Stats counts the records of an upload.
type Stats struct {
	Created  int
	Existing int
}

// Service handles station and domain uploads.
type Service struct {
	stationRepo *repositories.StationRepository
	domainRepo  *repositories.DomainRepository
	marginRepo  *repositories.MarginRepository
	logger      *slog.Logger
}

// NewService creates a new import service.
func NewService(
	stationRepo *repositories.StationRepository,
	domainRepo *repositories.DomainRepository,
	marginRepo *repositories.MarginRepository,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		stationRepo: stationRepo,
		domainRepo:  domainRepo,
		marginRepo:  marginRepo,
		logger:      logger,
	}
}

// block is one named entry of a parameter file.
type block struct {
	name   string
	values map[string]interface{}
}

// lookup returns the value of key in b, falling back to def.
func (b block) lookup(def map[string]interface{}, key string) (interface{}, bool) {
	if v, ok := b.values[key]; ok {
		return v, true
	}
	v, ok := def[key]
	return v, ok
}

// UploadStations creates the stations of a parameter file that do not exist
// yet, sharing margins with identical offsets.
func (s *Service) UploadStations(ctx context.Context, path string) (*Stats, error) {
	blocks, def, err := readParamFile(path, true)
	if err != nil {
		return nil, uploadError(path, err)
	}
	defMargin, _ := def["margin"].(map[string]interface{})

	stats := &Stats{}
	for _, b := range blocks {
		existing, err := s.stationRepo.FindByName(ctx, b.name)
		if err != nil {
			return stats, fmt.Errorf("failed to look up station %s: %w", b.name, err)
		}
		if existing != nil {
			stats.Existing++
			continue
		}

		margin, err := marginOf(b, defMargin)
		if err != nil {
			return stats, uploadError(path, fmt.Errorf("station '%s': %w", b.name, err))
		}
		stored, _, err := s.marginRepo.GetOrCreate(ctx, margin)
		if err != nil {
			return stats, err
		}

		st := &models.Station{Name: b.name, MarginID: stored.ID, Margin: stored, IsActive: true}
		if st.Longitude, err = floatOf(b, def, "lon"); err == nil {
			if st.Latitude, err = floatOf(b, def, "lat"); err == nil {
				st.Altitude, err = floatOf(b, def, "height")
			}
		}
		if err != nil {
			return stats, uploadError(path, fmt.Errorf("station '%s': %w", b.name, err))
		}
		st.StationCode = optString(b, def, "stationID")
		st.WMOID = optString(b, def, "WMOID")
		if d := optString(b, def, "description"); d != nil {
			st.Description = *d
		}
		st.MarginGeom = geo.MarginToPolygon(st.Longitude, st.Latitude, st.Altitude, stored.Offsets())
		st.ApplyReleaseDefaults()

		if err := s.stationRepo.Create(ctx, st); err != nil {
			return stats, err
		}
		stats.Created++
	}

	s.logger.Info("stations uploaded", "file", path, "created", stats.Created, "existing", stats.Existing)
	return stats, nil
}

// UploadDomains creates the domains of a parameter file that do not exist yet.
func (s *Service) UploadDomains(ctx context.Context, path string) (*Stats, error) {
	blocks, def, err := readParamFile(path, false)
	if err != nil {
		return nil, uploadError(path, err)
	}

	stats := &Stats{}
	for _, b := range blocks {
		existing, err := s.domainRepo.FindByName(ctx, b.name)
		if err != nil {
			return stats, fmt.Errorf("failed to look up domain %s: %w", b.name, err)
		}
		if existing != nil {
			stats.Existing++
			continue
		}

		var bounds [5]float64
		for i, key := range []string{"west", "east", "north", "south", "height"} {
			if bounds[i], err = floatOf(b, def, key); err != nil {
				return stats, uploadError(path, fmt.Errorf("domain '%s': %w", b.name, err))
			}
		}
		d := &models.Domain{
			Name:     b.name,
			Geom:     geo.Rectangle(bounds[0], bounds[1], bounds[2], bounds[3], bounds[4]),
			IsActive: true,
		}
		if desc := optString(b, def, "description"); desc != nil {
			d.Description = *desc
		}

		if err := s.domainRepo.Create(ctx, d); err != nil {
			return stats, err
		}
		stats.Created++
	}

	s.logger.Info("domains uploaded", "file", path, "created", stats.Created, "existing", stats.Existing)
	return stats, nil
}

func uploadError(path string, err error) error {
	return fmt.Errorf("Something goes wrong when uploading extra parameters file -%s-. %w", path, err)
}

// readParamFile returns the non-default blocks in file order and the default
// block. Every block must be a dictionary, and so must a margin when checkMargin is set.
func readParamFile(path string, checkMargin bool) ([]block, map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, err
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("%s must be a dictionnary.", path)
	}

	root := doc.Content[0]
	var blocks []block
	def := map[string]interface{}{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		if value.Kind != yaml.MappingNode {
			return nil, nil, fmt.Errorf("Value of key '%s' must be a dictionnary. See %s.", key, path)
		}
		values := map[string]interface{}{}
		if err := value.Decode(&values); err != nil {
			return nil, nil, err
		}
		if m, ok := values["margin"]; ok && checkMargin {
			if _, ok := m.(map[string]interface{}); !ok {
				return nil, nil, fmt.Errorf("Value of '%s['margin']' must be a dictionnary. See %s.", key, path)
			}
		}
		if key == defaultKey {
			def = values
			continue
		}
		blocks = append(blocks, block{name: key, values: values})
	}
	return blocks, def, nil
}

// marginOf merges the block margin over the default margin. Missing offsets
// fall back to the default margin of the model.
func marginOf(b block, defMargin map[string]interface{}) (models.Margin, error) {
	own, _ := b.values["margin"].(map[string]interface{})
	m := models.DefaultMargin()
	targets := map[string]*decimal.Decimal{"west": &m.West, "east": &m.East, "north": &m.North, "south": &m.South}
	for _, key := range []string{"west", "east", "north", "south"} {
		v, ok := own[key]
		if !ok {
			v, ok = defMargin[key]
		}
		if !ok {
			continue
		}
		d, err := toDecimal(v)
		if err != nil {
			return models.Margin{}, fmt.Errorf("margin %s: %w", key, err)
		}
		if d.IsNegative() {
			return models.Margin{}, fmt.Errorf("margin %s must not be negative", key)
		}
		*targets[key] = d
	}
	return m, nil
}

func floatOf(b block, def map[string]interface{}, key string) (float64, error) {
	v, ok := b.lookup(def, key)
	if !ok || v == nil {
		return 0, nil
	}
	d, err := toDecimal(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d.InexactFloat64(), nil
}

func optString(b block, def map[string]interface{}, key string) *string {
	v, ok := b.lookup(def, key)
	if !ok || v == nil {
		return nil
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case int:
		s = strconv.Itoa(x)
	default:
		s = fmt.Sprint(x)
	}
	return &s
}

func toDecimal(v interface{}) (decimal.Decimal, error) {
	switch x := v.(type) {
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case string:
		return decimal.NewFromString(x)
	}
	return decimal.Decimal{}, fmt.Errorf("invalid number %v", v)
}
