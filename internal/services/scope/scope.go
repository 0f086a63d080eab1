// Package scope manages which stations and domains are "in view": the
// campaign selected by a user and the active flags of the records.
//
// The selected campaign travels with each request as a Scope value. Selecting
// a campaign, and enabling or disabling records in bulk, update every station
// and domain row without running the per-record hooks, so the controller
// re-exports the configuration itself afterwards.
package scope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bbernstein/weathervis-go/internal/database/repositories"
	"github.com/bbernstein/weathervis-go/internal/services/pubsub"
)

// ErrCampaignNotFound is returned when selecting an unknown campaign.
var ErrCampaignNotFound = errors.New("campaign not found")

// Scope is the campaign selected for a session. The zero value selects none.
type Scope struct {
	CampaignID *string
}

// ForCampaign returns the scope of a campaign; an empty id selects none.
func ForCampaign(id string) Scope {
	if id == "" {
		return Scope{}
	}
	return Scope{CampaignID: &id}
}

// Active reports whether a campaign is selected.
func (s Scope) Active() bool { return s.CampaignID != nil }

// ID returns the selected campaign, or "".
func (s Scope) ID() string {
	if s.CampaignID == nil {
		return ""
	}
	return *s.CampaignID
}

func (s Scope) String() string {
	if s.CampaignID == nil {
		return "any"
	}
	return *s.CampaignID
}

// Kind selects stations or domains.
type Kind string

const (
	Stations Kind = "stations"
	Domains  Kind = "domains"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k == Stations || k == Domains }

// Exporter regenerates every configuration artifact.
type Exporter interface {
	ExportAll(ctx context.Context) error
}

// Changed is published on pubsub.TopicScopeChanged.
type Changed struct {
	Kind       string `json:"kind"`
	CampaignID string `json:"campaignId,omitempty"`
	Rows       int64  `json:"rows"`
}

// Controller applies scope operations.
type Controller struct {
	stations  *repositories.StationRepository
	domains   *repositories.DomainRepository
	campaigns *repositories.CampaignRepository
	exporter  Exporter
	bus       *pubsub.PubSub
	logger    *slog.Logger
}

// NewController creates a Controller. bus may be nil.
func NewController(
	stations *repositories.StationRepository,
	domains *repositories.DomainRepository,
	campaigns *repositories.CampaignRepository,
	exporter Exporter,
	bus *pubsub.PubSub,
	logger *slog.Logger,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		stations:  stations,
		domains:   domains,
		campaigns: campaigns,
		exporter:  exporter,
		bus:       bus,
		logger:    logger,
	}
}

// SelectCampaign records id (or none when nil) as the active campaign of
// every station and domain and returns the new session scope.
func (c *Controller) SelectCampaign(ctx context.Context, id *string) (Scope, error) {
	if id != nil {
		campaign, err := c.campaigns.FindByID(ctx, *id)
		if err != nil {
			return Scope{}, fmt.Errorf("failed to load campaign: %w", err)
		}
		if campaign == nil {
			return Scope{}, fmt.Errorf("%w: %s", ErrCampaignNotFound, *id)
		}
	}

	rows, err := c.stations.SetActiveCampaign(ctx, id)
	if err != nil {
		return Scope{}, fmt.Errorf("failed to update stations: %w", err)
	}
	n, err := c.domains.SetActiveCampaign(ctx, id)
	if err != nil {
		return Scope{}, fmt.Errorf("failed to update domains: %w", err)
	}
	rows += n

	s := Scope{CampaignID: id}
	if err := c.afterBulk(ctx, "campaign", s, rows); err != nil {
		return Scope{}, err
	}
	return s, nil
}

// EnableAll activates the stations or domains of the scope's campaign, or
// all of them when no campaign is selected.
func (c *Controller) EnableAll(ctx context.Context, kind Kind, s Scope) (int64, error) {
	return c.setActive(ctx, kind, s, true)
}

// DisableAll deactivates the stations or domains of the scope's campaign, or
// all of them when no campaign is selected.
func (c *Controller) DisableAll(ctx context.Context, kind Kind, s Scope) (int64, error) {
	return c.setActive(ctx, kind, s, false)
}

func (c *Controller) setActive(ctx context.Context, kind Kind, s Scope, active bool) (int64, error) {
	var (
		rows int64
		err  error
	)
	switch kind {
	case Stations:
		rows, err = c.stations.SetActive(ctx, active, s.CampaignID)
	case Domains:
		rows, err = c.domains.SetActive(ctx, active, s.CampaignID)
	default:
		return 0, fmt.Errorf("unknown kind %q", kind)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", kind, err)
	}
	if err := c.afterBulk(ctx, string(kind), s, rows); err != nil {
		return 0, err
	}
	return rows, nil
}

// afterBulk re-exports and announces a bulk change.
func (c *Controller) afterBulk(ctx context.Context, kind string, s Scope, rows int64) error {
	if c.exporter != nil {
		if err := c.exporter.ExportAll(ctx); err != nil {
			return err
		}
	}
	c.logger.Info("scope changed", "kind", kind, "campaign", s.String(), "rows", rows)
	if c.bus != nil {
		c.bus.PublishAll(pubsub.TopicScopeChanged, Changed{Kind: kind, CampaignID: s.ID(), Rows: rows})
	}
	return nil
}

// Target is where a user lands after a scope change.
type Target struct {
	Kind       Kind
	Slug       string
	CampaignID string
}

// Create reports whether no record matched and the creation form is the target.
func (t Target) Create() bool { return t.Slug == "" }

// Path returns the URL path of the target.
func (t Target) Path() string {
	switch {
	case t.Create():
		return fmt.Sprintf("/%s/create", t.Kind)
	case t.CampaignID != "":
		return fmt.Sprintf("/%s/campaigns/%s/%s", t.Kind, t.CampaignID, t.Slug)
	default:
		return fmt.Sprintf("/%s/%s", t.Kind, t.Slug)
	}
}

// RedirectTarget resolves the alphabetically first station or domain in scope.
func (c *Controller) RedirectTarget(ctx context.Context, kind Kind, s Scope) (Target, error) {
	t := Target{Kind: kind, CampaignID: s.ID()}
	switch kind {
	case Stations:
		st, err := c.stations.First(ctx, s.CampaignID)
		if err != nil {
			return Target{}, fmt.Errorf("failed to resolve station: %w", err)
		}
		if st != nil {
			t.Slug = st.Slug
		}
	case Domains:
		d, err := c.domains.First(ctx, s.CampaignID)
		if err != nil {
			return Target{}, fmt.Errorf("failed to resolve domain: %w", err)
		}
		if d != nil {
			t.Slug = d.Slug
		}
	default:
		return Target{}, fmt.Errorf("unknown kind %q", kind)
	}
	if t.Create() {
		t.CampaignID = ""
	}
	return t, nil
}
