package planner

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trajet/trajet/internal/geolocation"
	"github.com/trajet/trajet/internal/incident"
	"github.com/trajet/trajet/internal/routing"
)

var (
	paris = routing.Coordinate{Lat: 48.8566, Lon: 2.3522}
	lyon  = routing.Coordinate{Lat: 45.7578, Lon: 4.8357}
)

func TestApplyGeolocation_Success(t *testing.T) {
	pos := routing.Coordinate{Lat: 43.2965, Lon: 5.3698}
	s := ApplyGeolocation(New(), pos, nil, geolocation.FallbackPosition)

	require.NotNil(t, s.UserPosition)
	require.NotNil(t, s.Start)
	assert.Equal(t, pos, *s.UserPosition)
	assert.Equal(t, pos, *s.Start)
	assert.Equal(t, LocationLabel, s.StartLabel)
	assert.Empty(t, s.GeolocationError)

	// Start is a distinct value, not an alias of the user position
	s.Start.Lat = 0
	assert.Equal(t, pos.Lat, s.UserPosition.Lat)
}

func TestApplyGeolocation_Failure(t *testing.T) {
	s := ApplyGeolocation(New(), routing.Coordinate{}, geolocation.ErrUnavailable, geolocation.FallbackPosition)

	require.NotNil(t, s.UserPosition)
	assert.Equal(t, routing.Coordinate{Lat: 48.8566, Lon: 2.3522}, *s.UserPosition)
	assert.Nil(t, s.Start, "start stays unset when the fix fails")
	assert.Equal(t, geolocation.ErrUnavailable.Error(), s.GeolocationError)
}

func TestApplyGeolocation_OnlyFirstReportCounts(t *testing.T) {
	marseille := routing.Coordinate{Lat: 43.2965, Lon: 5.3698}
	nice := routing.Coordinate{Lat: 43.7102, Lon: 7.262}

	t.Run("later fix keeps the chosen start", func(t *testing.T) {
		s := ApplyGeolocation(New(), marseille, nil, geolocation.FallbackPosition)
		s, token := BeginStartResolve(s)
		s, err := ApplyStartResolved(s, token, routing.Place{Label: "Lyon", Position: routing.Coordinate{Lat: 45.764, Lon: 4.8357}})
		require.NoError(t, err)

		s = ApplyGeolocation(s, nice, nil, geolocation.FallbackPosition)

		assert.Equal(t, marseille, *s.UserPosition)
		assert.Equal(t, "Lyon", s.StartLabel)
		assert.Equal(t, 45.764, s.Start.Lat)
	})

	t.Run("failure is not retried", func(t *testing.T) {
		s := ApplyGeolocation(New(), routing.Coordinate{}, geolocation.ErrUnavailable, geolocation.FallbackPosition)
		s = ApplyGeolocation(s, nice, nil, geolocation.FallbackPosition)

		assert.Equal(t, geolocation.FallbackPosition, *s.UserPosition)
		assert.Nil(t, s.Start)
		assert.NotEmpty(t, s.GeolocationError)
	})
}

func TestSetInput_ShortTextClearsWithoutLookup(t *testing.T) {
	s := New()
	s.DestinationSuggestions = []routing.Suggestion{{Label: "Lyon", Key: "1"}}

	next, token, lookup := SetInput(s, FieldDestination, "Ly")

	assert.False(t, lookup)
	assert.Equal(t, uint64(1), token)
	assert.Equal(t, "Ly", next.DestinationInput)
	assert.NotNil(t, next.DestinationSuggestions)
	assert.Empty(t, next.DestinationSuggestions)
	assert.Len(t, s.DestinationSuggestions, 1, "input state is not modified")
}

func TestSetInput_CountsCharactersNotBytes(t *testing.T) {
	_, _, lookup := SetInput(New(), FieldStart, "Év")
	assert.False(t, lookup)

	_, _, lookup = SetInput(New(), FieldStart, "Évr")
	assert.True(t, lookup)
}

func TestApplySuggestions_StaleTokenDropped(t *testing.T) {
	s := New()
	s, first, _ := SetInput(s, FieldStart, "Lyo")
	s, second, _ := SetInput(s, FieldStart, "Lyon")

	stale := []routing.Suggestion{{Label: "Lyons-la-Forêt", Key: "a"}}
	fresh := []routing.Suggestion{{Label: "Lyon, France", Key: "b"}}

	s, err := ApplySuggestions(s, FieldStart, second, fresh)
	require.NoError(t, err)

	after, err := ApplySuggestions(s, FieldStart, first, stale)
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.Equal(t, fresh, after.StartSuggestions)
}

func TestApplySuggestions_ShortInputSupersedesPendingLookup(t *testing.T) {
	s := New()
	s, token, lookup := SetInput(s, FieldDestination, "Lyon")
	require.True(t, lookup)

	// User deletes text while the lookup is in flight
	s, _, _ = SetInput(s, FieldDestination, "L")

	s, err := ApplySuggestions(s, FieldDestination, token, []routing.Suggestion{{Label: "Lyon", Key: "1"}})
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.Empty(t, s.DestinationSuggestions)
}

func TestApplySuggestions_FieldsAreIndependent(t *testing.T) {
	s := New()
	s, startToken, _ := SetInput(s, FieldStart, "Par")
	s, _, _ = SetInput(s, FieldDestination, "Lyo")

	s, err := ApplySuggestions(s, FieldStart, startToken, []routing.Suggestion{{Label: "Paris", Key: "p"}})
	require.NoError(t, err)
	assert.Len(t, s.StartSuggestions, 1)
	assert.Empty(t, s.DestinationSuggestions)
}

func TestStartOptions(t *testing.T) {
	s := New()
	s.StartSuggestions = []routing.Suggestion{{Label: "Paris", Key: "p"}}

	opts := s.StartOptions()
	require.Len(t, opts, 2)
	assert.Equal(t, LocationOption, opts[0])
	assert.True(t, opts[0].IsLocation)
	assert.Equal(t, "Ma localisation", opts[0].Label)
}

func TestUseMyLocation(t *testing.T) {
	_, err := UseMyLocation(New())
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	s := ApplyGeolocation(New(), routing.Coordinate{}, errors.New("denied"), geolocation.FallbackPosition)
	s, token := BeginStartResolve(s)

	s, err = UseMyLocation(s)
	require.NoError(t, err)
	assert.Equal(t, paris, *s.Start)

	// The pending address resolution no longer applies
	_, err = ApplyStartResolved(s, token, routing.Place{Label: "Lyon", Position: lyon})
	assert.ErrorIs(t, err, ErrSuperseded)
}

func TestApplyStartResolved(t *testing.T) {
	s, token := BeginStartResolve(New())

	s, err := ApplyStartResolved(s, token, routing.Place{Label: "Lyon, France", Position: lyon})
	require.NoError(t, err)
	assert.Equal(t, lyon, *s.Start)
	assert.Equal(t, "Lyon, France", s.StartLabel)
}

func TestSelectDestination(t *testing.T) {
	_, err := SelectDestination(New(), "   ")
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	s, err := SelectDestination(New(), " Lyon ")
	require.NoError(t, err)
	assert.Equal(t, "Lyon", s.DestinationText)
	assert.Nil(t, s.Destination, "destination is resolved when the route is computed")
}

func TestBeginRoute_Preconditions(t *testing.T) {
	_, _, err := BeginRoute(New())
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	s := ApplyGeolocation(New(), paris, nil, geolocation.FallbackPosition)
	_, _, err = BeginRoute(s)
	assert.ErrorIs(t, err, ErrPreconditionFailed, "destination text is required")

	s, _ = SelectDestination(s, "Lyon")
	s = SetAvoidTolls(s, true)
	next, req, err := BeginRoute(s)
	require.NoError(t, err)
	assert.Equal(t, paris, req.Origin)
	assert.Equal(t, "Lyon", req.DestinationText)
	assert.True(t, req.AvoidTolls)
	assert.Equal(t, uint64(1), req.Token)
	assert.Equal(t, uint64(1), next.Seq.Route)
}

func TestApplyRoute(t *testing.T) {
	s := ApplyGeolocation(New(), paris, nil, geolocation.FallbackPosition)
	s, _ = SelectDestination(s, "Lyon")
	s, req, err := BeginRoute(s)
	require.NoError(t, err)

	route := &routing.Route{
		Geometry: []routing.Coordinate{paris, lyon},
		Summary:  routing.RouteSummary{DistanceMeters: 465200, DurationSeconds: 16320},
	}

	next, err := ApplyRoute(s, req.Token, lyon, route)
	require.NoError(t, err)
	assert.Equal(t, lyon, *next.Destination)
	assert.Equal(t, route.Geometry, next.Route)
	assert.Equal(t, route.Summary, *next.Summary)

	// Geometry is copied
	route.Geometry[0] = routing.Coordinate{}
	assert.Equal(t, paris, next.Route[0])
}

func TestApplyRoute_SupersededLeavesStateUntouched(t *testing.T) {
	s := ApplyGeolocation(New(), paris, nil, geolocation.FallbackPosition)
	s, _ = SelectDestination(s, "Lyon")
	s, first, _ := BeginRoute(s)
	s, _, _ = BeginRoute(s)

	next, err := ApplyRoute(s, first.Token, lyon, &routing.Route{Geometry: []routing.Coordinate{paris, lyon}})
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.Nil(t, next.Destination)
	assert.Nil(t, next.Route)
	assert.Nil(t, next.Summary)
}

func TestIncidentDialog(t *testing.T) {
	s := OpenIncidentDialog(New())
	assert.True(t, s.IncidentDialogOpen)

	s, err := SelectIncidentCategory(s, incident.CategoryTraffic)
	require.NoError(t, err)

	s = CloseIncidentDialog(s)
	assert.False(t, s.IncidentDialogOpen)
	assert.Equal(t, incident.CategoryTraffic, s.SelectedCategory)

	_, err = SelectIncidentCategory(s, "roadworks")
	assert.ErrorIs(t, err, incident.ErrUnknownCategory)
}

func TestReportIncident_NoCategoryIsNoop(t *testing.T) {
	s := ApplyGeolocation(New(), paris, nil, geolocation.FallbackPosition)
	s = OpenIncidentDialog(s)

	next, inc, err := ReportIncident(s, time.Now())
	assert.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Nil(t, inc)
	assert.Empty(t, next.Incidents)
	assert.True(t, next.IncidentDialogOpen, "dialog is left as is")
}

func TestReportIncident_NoUserPositionIsNoop(t *testing.T) {
	s, _ := SelectIncidentCategory(OpenIncidentDialog(New()), incident.CategoryAccident)

	next, _, err := ReportIncident(s, time.Now())
	assert.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Empty(t, next.Incidents)
	assert.Equal(t, incident.CategoryAccident, next.SelectedCategory)
}

func TestReportIncident_AppendsExactlyOne(t *testing.T) {
	s := ApplyGeolocation(New(), paris, nil, geolocation.FallbackPosition)
	s = OpenIncidentDialog(s)
	s, _ = SelectIncidentCategory(s, incident.CategoryPolice)
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

	next, inc, err := ReportIncident(s, now)
	require.NoError(t, err)

	require.Len(t, next.Incidents, 1)
	assert.Equal(t, incident.CategoryPolice, next.Incidents[0].Category)
	assert.Equal(t, paris, next.Incidents[0].Position)
	assert.Equal(t, now, next.Incidents[0].ReportedAt)
	assert.Equal(t, *inc, next.Incidents[0])
	assert.False(t, next.IncidentDialogOpen)
	assert.Empty(t, next.SelectedCategory)
	assert.Empty(t, s.Incidents, "previous state keeps its list")
}

func TestClone_IsDeep(t *testing.T) {
	s := ApplyGeolocation(New(), paris, nil, geolocation.FallbackPosition)
	s.Incidents = append(s.Incidents, incident.New(incident.CategoryClosure, paris, time.Now()))
	s.Summary = &routing.RouteSummary{DistanceMeters: 1}

	c := s.Clone()
	c.UserPosition.Lat = 0
	c.Summary.DistanceMeters = 2
	c.Incidents[0].Category = incident.CategoryAccident

	assert.Equal(t, paris.Lat, s.UserPosition.Lat)
	assert.Equal(t, 1.0, s.Summary.DistanceMeters)
	assert.Equal(t, incident.CategoryClosure, s.Incidents[0].Category)
}

func TestParseField(t *testing.T) {
	f, err := ParseField("start")
	require.NoError(t, err)
	assert.Equal(t, FieldStart, f)

	_, err = ParseField("via")
	assert.ErrorIs(t, err, ErrPreconditionFailed)
}
