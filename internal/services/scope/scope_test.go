package scope

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/weathervis-go/internal/database/models"
	"github.com/bbernstein/weathervis-go/internal/observability"
	"github.com/bbernstein/weathervis-go/internal/services/pubsub"
	svctest "github.com/bbernstein/weathervis-go/internal/services/testutil"
	"github.com/bbernstein/weathervis-go/pkg/geo"
)

type countingExporter struct {
	calls int
	err   error
}

func (e *countingExporter) ExportAll(context.Context) error {
	e.calls++
	return e.err
}

type fixture struct {
	db       *svctest.TestDB
	ctrl     *Controller
	exporter *countingExporter
	bus      *pubsub.PubSub
}

func setup(t *testing.T) *fixture {
	t.Helper()
	testDB, cleanup := svctest.SetupTestDB(t)
	t.Cleanup(cleanup)
	exp := &countingExporter{}
	bus := pubsub.New()
	return &fixture{
		db:       testDB,
		ctrl:     NewController(testDB.StationRepo, testDB.DomainRepo, testDB.CampaignRepo, exp, bus, observability.Discard()),
		exporter: exp,
		bus:      bus,
	}
}

func (f *fixture) station(t *testing.T, name string, campaigns ...*models.Campaign) *models.Station {
	t.Helper()
	m := models.DefaultMargin()
	st := &models.Station{
		Name:       name,
		Longitude:  16,
		Latitude:   69,
		IsActive:   true,
		Margin:     &m,
		MarginGeom: geo.MarginToPolygon(16, 69, 0, m.Offsets()),
	}
	for _, c := range campaigns {
		st.Campaigns = append(st.Campaigns, models.Campaign{ID: c.ID})
	}
	require.NoError(t, f.db.StationRepo.Create(context.Background(), st))
	return st
}

func (f *fixture) domain(t *testing.T, name string, campaigns ...*models.Campaign) *models.Domain {
	t.Helper()
	d := &models.Domain{Name: name, Geom: geo.Rectangle(0, 10, 70, 60, 0), IsActive: true}
	for _, c := range campaigns {
		d.Campaigns = append(d.Campaigns, models.Campaign{ID: c.ID})
	}
	require.NoError(t, f.db.DomainRepo.Create(context.Background(), d))
	return d
}

func (f *fixture) campaign(t *testing.T, name string) *models.Campaign {
	t.Helper()
	c := &models.Campaign{Name: name}
	require.NoError(t, f.db.CampaignRepo.Create(context.Background(), c))
	return c
}

func TestScope(t *testing.T) {
	assert.False(t, Scope{}.Active())
	assert.Equal(t, "any", Scope{}.String())
	assert.False(t, ForCampaign("").Active())

	s := ForCampaign("c1")
	assert.True(t, s.Active())
	assert.Equal(t, "c1", s.ID())
}

func TestSelectCampaign(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	campaign := f.campaign(t, "ISLAS")
	f.station(t, "Andenes", campaign)
	f.station(t, "Kiruna")
	f.domain(t, "Arctic")

	sub := f.bus.Subscribe(pubsub.TopicScopeChanged, "", 1)
	defer f.bus.Unsubscribe(sub)

	s, err := f.ctrl.SelectCampaign(ctx, &campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign.ID, s.ID())
	assert.Equal(t, 1, f.exporter.calls)

	stations, err := f.db.StationRepo.FindAll(ctx)
	require.NoError(t, err)
	for _, st := range stations {
		require.NotNil(t, st.ActiveCampaign, st.Name)
		assert.Equal(t, campaign.ID, *st.ActiveCampaign)
	}
	d, err := f.db.DomainRepo.FindByName(ctx, "Arctic")
	require.NoError(t, err)
	require.NotNil(t, d.ActiveCampaign)

	msg := (<-sub.Channel).(Changed)
	assert.Equal(t, int64(3), msg.Rows)

	s, err = f.ctrl.SelectCampaign(ctx, nil)
	require.NoError(t, err)
	assert.False(t, s.Active())
	stations, err = f.db.StationRepo.FindAll(ctx)
	require.NoError(t, err)
	for _, st := range stations {
		assert.Nil(t, st.ActiveCampaign)
	}
}

func TestSelectCampaign_Unknown(t *testing.T) {
	f := setup(t)
	missing := "does-not-exist"
	_, err := f.ctrl.SelectCampaign(context.Background(), &missing)
	assert.True(t, errors.Is(err, ErrCampaignNotFound))
	assert.Equal(t, 0, f.exporter.calls)
}

func TestDisableAndEnableAll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	campaign := f.campaign(t, "ISLAS")
	f.station(t, "Andenes", campaign)
	f.station(t, "Kiruna", campaign)
	f.station(t, "Longyearbyen")

	n, err := f.ctrl.DisableAll(ctx, Stations, ForCampaign(campaign.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, f.exporter.calls)

	active, err := f.db.StationRepo.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Longyearbyen", active[0].Name)

	n, err = f.ctrl.DisableAll(ctx, Stations, Scope{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = f.ctrl.EnableAll(ctx, Stations, Scope{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	active, err = f.db.StationRepo.FindActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 3)
	assert.Equal(t, 3, f.exporter.calls)
}

func TestDisableAll_Domains(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.domain(t, "Arctic")

	_, err := f.ctrl.DisableAll(ctx, Domains, Scope{})
	require.NoError(t, err)
	active, err := f.db.DomainRepo.FindActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSetActive_ExportFailurePropagates(t *testing.T) {
	f := setup(t)
	f.exporter.err = errors.New("disk full")
	_, err := f.ctrl.EnableAll(context.Background(), Stations, Scope{})
	assert.EqualError(t, err, "disk full")

	_, err = f.ctrl.EnableAll(context.Background(), Kind("plots"), Scope{})
	assert.Error(t, err)
}

func TestRedirectTarget(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	campaign := f.campaign(t, "ISLAS")
	empty := f.campaign(t, "Empty")

	target, err := f.ctrl.RedirectTarget(ctx, Stations, Scope{})
	require.NoError(t, err)
	assert.True(t, target.Create())
	assert.Equal(t, "/stations/create", target.Path())

	f.station(t, "Tromsø")
	f.station(t, "Kiruna", campaign)
	f.station(t, "Andenes")

	target, err = f.ctrl.RedirectTarget(ctx, Stations, Scope{})
	require.NoError(t, err)
	assert.Equal(t, "/stations/andenes", target.Path())

	target, err = f.ctrl.RedirectTarget(ctx, Stations, ForCampaign(campaign.ID))
	require.NoError(t, err)
	assert.Equal(t, "/stations/campaigns/"+campaign.ID+"/kiruna", target.Path())

	target, err = f.ctrl.RedirectTarget(ctx, Stations, ForCampaign(empty.ID))
	require.NoError(t, err)
	assert.Equal(t, "/stations/create", target.Path())

	f.domain(t, "Nordic Seas")
	target, err = f.ctrl.RedirectTarget(ctx, Domains, Scope{})
	require.NoError(t, err)
	assert.Equal(t, "/domains/nordic-seas", target.Path())
}
