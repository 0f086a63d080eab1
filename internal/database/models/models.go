// Package models contains the database model definitions.
// These models map directly to the SQLite database tables.
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bbernstein/weathervis-go/pkg/geo"
)

// Organisation groups users.
// Table: organisations
type Organisation struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name"`
	NameKey   string    `gorm:"column:name_key;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Organisation) TableName() string { return "organisations" }

func (o *Organisation) BeforeSave(*gorm.DB) error {
	o.NameKey = NameKey(o.Name)
	return nil
}

// Campaign groups stations and domains for a measurement period.
// Table: campaigns
type Campaign struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Name        string    `gorm:"column:name"`
	NameKey     string    `gorm:"column:name_key;uniqueIndex"`
	Description string    `gorm:"column:description"`
	CreatedBy   *string   `gorm:"column:created_by"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Campaign) TableName() string { return "campaigns" }

func (c *Campaign) BeforeSave(*gorm.DB) error {
	c.NameKey = NameKey(c.Name)
	return nil
}

// Margin holds the degree offsets drawn around a station.
// Table: margins
type Margin struct {
	ID    string          `gorm:"column:id;primaryKey"`
	West  decimal.Decimal `gorm:"column:west;type:numeric;uniqueIndex:unique_margin"`
	East  decimal.Decimal `gorm:"column:east;type:numeric;uniqueIndex:unique_margin"`
	North decimal.Decimal `gorm:"column:north;type:numeric;uniqueIndex:unique_margin"`
	South decimal.Decimal `gorm:"column:south;type:numeric;uniqueIndex:unique_margin"`
}

func (Margin) TableName() string { return "margins" }

// Offsets converts the margin for geometry computations.
func (m Margin) Offsets() geo.Margin {
	return geo.Margin{West: m.West, East: m.East, North: m.North, South: m.South}
}

// DefaultMargin is the 0.2 degree box used when nothing else is given.
func DefaultMargin() Margin {
	d := decimal.RequireFromString("0.2")
	return Margin{West: d, East: d, North: d, South: d}
}

// AltitudeUnit is the vertical coordinate of a release.
type AltitudeUnit int

const (
	AltitudeMetersAboveGround AltitudeUnit = 1
	AltitudeMetersAboveSea    AltitudeUnit = 2
	AltitudeHectopascal       AltitudeUnit = 3
)

// Label returns the form label of the unit.
func (u AltitudeUnit) Label() string {
	switch u {
	case AltitudeMetersAboveGround:
		return "m (a.g.l)"
	case AltitudeMetersAboveSea:
		return "m (a.s.l)"
	case AltitudeHectopascal:
		return "hPa"
	}
	return "unknown"
}

// Valid reports whether u is a known unit.
func (u AltitudeUnit) Valid() bool {
	return u >= AltitudeMetersAboveGround && u <= AltitudeHectopascal
}

// Station is an observation site.
// Table: stations
type Station struct {
	ID          string      `gorm:"column:id;primaryKey"`
	Name        string      `gorm:"column:name"`
	NameKey     string      `gorm:"column:name_key;uniqueIndex"`
	Slug        string      `gorm:"column:slug;uniqueIndex"`
	Longitude   float64     `gorm:"column:longitude"`
	Latitude    float64     `gorm:"column:latitude"`
	Altitude    float64     `gorm:"column:altitude"`
	StationCode *string     `gorm:"column:station_code;uniqueIndex"` // Station identifier
	WMOID       *string     `gorm:"column:wmo_id;uniqueIndex"`
	Description string      `gorm:"column:description"`
	MarginID    string      `gorm:"column:margin_id;index"`
	MarginGeom  geo.Polygon `gorm:"column:margin_geom;serializer:json"`
	IsActive    bool        `gorm:"column:is_active"`
	CreatedBy   *string     `gorm:"column:created_by"`
	CreatedAt   time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time   `gorm:"column:updated_at;autoUpdateTime"`

	// Campaign currently selected for this record (denormalized).
	ActiveCampaign *string `gorm:"column:active_campaign"`

	// Release (particle dispersion) parameters
	UsesRelease   bool            `gorm:"column:uses_release"`
	StartDatetime *time.Time      `gorm:"column:start_datetime"`
	EndDatetime   *time.Time      `gorm:"column:end_datetime"`
	AltLower      decimal.Decimal `gorm:"column:alt_lower;type:numeric"`
	AltUpper      decimal.Decimal `gorm:"column:alt_upper;type:numeric"`
	AltUnit       AltitudeUnit    `gorm:"column:alt_unit"`
	NumbPart      int             `gorm:"column:numb_part"`
	XMass         int             `gorm:"column:xmass"`
	NumberGrid    int             `gorm:"column:number_grid"`

	// Relations
	Margin    *Margin        `gorm:"foreignKey:MarginID;constraint:OnDelete:RESTRICT"`
	Plots     []StationsPlot `gorm:"many2many:station_plots"`
	Campaigns []Campaign     `gorm:"many2many:station_campaigns"`
}

func (Station) TableName() string { return "stations" }

func (s *Station) BeforeSave(*gorm.DB) error {
	s.NameKey = NameKey(s.Name)
	s.Slug = Slugify(s.Name)
	return nil
}

// Release parameter defaults.
const (
	DefaultNumbPart   = 5000
	DefaultXMass      = 100
	DefaultNumberGrid = 200
)

// ApplyReleaseDefaults fills unset release parameters.
func (s *Station) ApplyReleaseDefaults() {
	if s.AltUnit == 0 {
		s.AltUnit = AltitudeMetersAboveGround
	}
	if s.NumbPart == 0 {
		s.NumbPart = DefaultNumbPart
	}
	if s.XMass == 0 {
		s.XMass = DefaultXMass
	}
	if s.NumberGrid == 0 {
		s.NumberGrid = DefaultNumberGrid
	}
}

// Point returns the station location.
func (s *Station) Point() geo.Point {
	return geo.Point{Lon: s.Longitude, Lat: s.Latitude, Alt: s.Altitude}
}

// Domain is a rectangular area of interest.
// Table: domains
type Domain struct {
	ID          string      `gorm:"column:id;primaryKey"`
	Name        string      `gorm:"column:name"`
	NameKey     string      `gorm:"column:name_key;uniqueIndex"`
	Slug        string      `gorm:"column:slug;uniqueIndex"`
	Geom        geo.Polygon `gorm:"column:geom;serializer:json"`
	Description string      `gorm:"column:description"`
	IsActive    bool        `gorm:"column:is_active"`
	CreatedBy   *string     `gorm:"column:created_by"`
	CreatedAt   time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time   `gorm:"column:updated_at;autoUpdateTime"`

	ActiveCampaign *string `gorm:"column:active_campaign"`

	// Relations
	Plots     []DomainsPlot `gorm:"many2many:domain_plots"`
	Campaigns []Campaign    `gorm:"many2many:domain_campaigns"`
}

func (Domain) TableName() string { return "domains" }

func (d *Domain) BeforeSave(*gorm.DB) error {
	d.NameKey = NameKey(d.Name)
	d.Slug = Slugify(d.Name)
	return nil
}

// West returns the western edge of the domain envelope.
func (d *Domain) West() float64 { w, _, _, _ := d.Geom.Envelope(); return w }

// South returns the southern edge of the domain envelope.
func (d *Domain) South() float64 { _, s, _, _ := d.Geom.Envelope(); return s }

// East returns the eastern edge of the domain envelope.
func (d *Domain) East() float64 { _, _, e, _ := d.Geom.Envelope(); return e }

// North returns the northern edge of the domain envelope.
func (d *Domain) North() float64 { _, _, _, n := d.Geom.Envelope(); return n }

// Height returns the altitude of the first polygon vertex.
func (d *Domain) Height() float64 { return d.Geom.Height() }

// ModelGrid is the coverage of a forecast model for a validity window.
// Table: model_grids
type ModelGrid struct {
	ID             string         `gorm:"column:id;primaryKey"`
	Name           string         `gorm:"column:name;uniqueIndex:unique_model_grid"`
	Slug           string         `gorm:"column:slug;index"`
	Border         geo.Polygon    `gorm:"column:border;serializer:json"`
	DateValidStart time.Time      `gorm:"column:date_valid_start;uniqueIndex:unique_model_grid"`
	DateValidEnd   *time.Time     `gorm:"column:date_valid_end"`
	LeadTime       *time.Duration `gorm:"column:leadtime"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`

	// Relations
	Variables []ModelVariable `gorm:"foreignKey:ModelGridID;constraint:OnDelete:CASCADE"`
}

func (ModelGrid) TableName() string { return "model_grids" }

func (g *ModelGrid) BeforeSave(*gorm.DB) error {
	g.Slug = Slugify(g.Name + " " + g.DateValidStart.UTC().Format("20060102T150405"))
	return nil
}

// ModelVariable is a variable available in a model grid source.
// Table: model_variables
type ModelVariable struct {
	ID          string `gorm:"column:id;primaryKey"`
	Name        string `gorm:"column:name;uniqueIndex:unique_variable"`
	Slug        string `gorm:"column:slug"`
	ModelGridID string `gorm:"column:model_grid_id;uniqueIndex:unique_variable"`
}

func (ModelVariable) TableName() string { return "model_variables" }

func (v *ModelVariable) BeforeSave(*gorm.DB) error {
	v.Slug = Slugify(v.Name)
	return nil
}

// StationsPlot is a plot type available for stations.
// Table: stations_plots
type StationsPlot struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Name        string    `gorm:"column:name"`
	NameKey     string    `gorm:"column:name_key;uniqueIndex"`
	Command     string    `gorm:"column:command"`
	Options     string    `gorm:"column:options"`
	Description string    `gorm:"column:description"`
	CreatedBy   *string   `gorm:"column:created_by"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (StationsPlot) TableName() string { return "stations_plots" }

func (p *StationsPlot) BeforeSave(*gorm.DB) error {
	p.NameKey = NameKey(p.Name)
	return nil
}

// DomainsPlot is a plot type available for domains.
// Table: domains_plots
type DomainsPlot struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Name        string    `gorm:"column:name"`
	NameKey     string    `gorm:"column:name_key;uniqueIndex"`
	Command     string    `gorm:"column:command"`
	Options     string    `gorm:"column:options"`
	Description string    `gorm:"column:description"`
	CreatedBy   *string   `gorm:"column:created_by"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (DomainsPlot) TableName() string { return "domains_plots" }

func (p *DomainsPlot) BeforeSave(*gorm.DB) error {
	p.NameKey = NameKey(p.Name)
	return nil
}

// WeatherForecastBorder is the legacy coverage record of a forecast model.
// Table: weather_forecast_borders
type WeatherForecastBorder struct {
	ID        string           `gorm:"column:id;primaryKey"`
	Name      string           `gorm:"column:name;index"`
	Border    geo.MultiPolygon `gorm:"column:border;serializer:json"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (WeatherForecastBorder) TableName() string { return "weather_forecast_borders" }

// All lists every model in migration order.
func All() []interface{} {
	return []interface{}{
		&Organisation{},
		&Campaign{},
		&Margin{},
		&StationsPlot{},
		&DomainsPlot{},
		&Station{},
		&Domain{},
		&ModelGrid{},
		&ModelVariable{},
		&WeatherForecastBorder{},
	}
}
