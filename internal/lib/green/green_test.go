package green

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/greenwalk/internal/lib/errs"
	"github.com/dpup/greenwalk/internal/lib/filter"
	"github.com/dpup/greenwalk/internal/lib/geo"
)

// ~2.2m of arc at the equator
const step = 0.00002

func at(lat, lng float64) geo.Sample {
	return geo.Sample{Point: geo.Point{Latitude: lat, Longitude: lng}, HorizontalAccuracy: 2}
}

func newMapper() Mapper {
	return NewMapper(filter.New(0.5), DefaultClosure())
}

func feed(t *testing.T, m Mapper, s Session, samples ...geo.Sample) (Session, Outcome) {
	t.Helper()
	var out Outcome
	for _, sample := range samples {
		s, out = m.AcceptSample(s, sample)
	}
	return s, out
}

// squareWalk walks an ~11m square anticlockwise and stops two meters short of
// the start
func squareWalk() []geo.Sample {
	var walk []geo.Sample
	for i := 1; i <= 5; i++ {
		walk = append(walk, at(0, float64(i)*step))
	}
	for i := 1; i <= 5; i++ {
		walk = append(walk, at(float64(i)*step, 5*step))
	}
	for i := 4; i >= 0; i-- {
		walk = append(walk, at(5*step, float64(i)*step))
	}
	for i := 4; i >= 1; i-- {
		walk = append(walk, at(float64(i)*step, 0))
	}
	return walk
}

func TestMapper_AutoClose(t *testing.T) {
	m := newMapper()
	s := Start(at(0, 0))

	s, out := feed(t, m, s, squareWalk()...)
	require.Equal(t, Appended, out)
	require.Equal(t, Active, s.State())

	s, out = m.AcceptSample(s, at(step/4, 0))
	assert.Equal(t, AutoClosed, out)
	assert.True(t, s.IsClosed())
	assert.Equal(t, 21, s.Len())

	// closed sessions ignore further samples
	after, out := m.AcceptSample(s, at(step, step))
	assert.Equal(t, Ignored, out)
	assert.Equal(t, 21, after.Len())
}

func TestMapper_NoCloseOnJitterNearStart(t *testing.T) {
	m := newMapper()
	s := Start(at(0, 0))
	a := at(0, 0.000006)
	b := at(0.000006, 0)

	// every fix is within the closure radius and beyond the filter, but the
	// walked perimeter is still under the minimum
	s, out := feed(t, m, s, a, b, a, b, a)
	assert.Equal(t, Appended, out)
	assert.Equal(t, Active, s.State())
	assert.Equal(t, 6, s.Len())

	s, out = m.AcceptSample(s, b)
	assert.Equal(t, AutoClosed, out)
}

func TestMapper_ClosureThresholdsInjectable(t *testing.T) {
	m := NewMapper(filter.New(0.5), Closure{MinVertexCount: 50, MinPerimeter: 5, Radius: 1})
	s, _ := feed(t, m, Start(at(0, 0)), squareWalk()...)
	s, out := m.AcceptSample(s, at(step/4, 0))

	assert.Equal(t, Appended, out)
	assert.Equal(t, Active, s.State())
}

func TestMapper_RejectsBelowThreshold(t *testing.T) {
	m := newMapper()
	s := Start(at(0, 0))
	s, out := m.AcceptSample(s, at(0, step))
	require.Equal(t, Appended, out)

	// 0.2m east of the last vertex
	next, out := m.AcceptSample(s, at(0, step+0.0000018))
	assert.Equal(t, Rejected, out)
	assert.Equal(t, 2, next.Len())
}

func TestSession_ForceClose(t *testing.T) {
	m := newMapper()
	s, _ := feed(t, m, Start(at(0, 0)), at(0, step))

	same, err := s.ForceClose()
	assert.ErrorIs(t, err, errs.ErrInsufficientVertices)
	assert.Equal(t, Active, same.State())

	s, _ = feed(t, m, s, at(step, step))
	closed, err := s.ForceClose()
	require.NoError(t, err)
	assert.Equal(t, Closed, closed.State())

	again, err := closed.ForceClose()
	require.NoError(t, err)
	assert.Equal(t, Closed, again.State())
}

func TestSession_BunkerTagging(t *testing.T) {
	m := newMapper()
	s, _ := feed(t, m, Start(at(0, 0)), at(0, step))

	s, err := s.SetBunkerActive(true)
	require.NoError(t, err)
	s, _ = feed(t, m, s, at(0, 2*step), at(0, 3*step))

	s, err = s.SetBunkerActive(false)
	require.NoError(t, err)
	s, _ = feed(t, m, s, at(0, 4*step))

	var tags []geo.Tag
	for _, v := range s.Vertices() {
		tags = append(tags, v.Tag)
	}
	assert.Equal(t, []geo.Tag{geo.Green, geo.Green, geo.Bunker, geo.Bunker, geo.Green}, tags)
}

func TestSession_StartTagsGreen(t *testing.T) {
	s := Start(at(0, 0))
	require.Equal(t, 1, s.Len())
	assert.Equal(t, geo.Green, s.Vertices()[0].Tag)
	assert.False(t, s.BunkerActive())
}

func TestSession_ResetAndIdle(t *testing.T) {
	m := newMapper()
	s, _ := feed(t, m, Start(at(0, 0)), at(0, step), at(step, step))
	s, _ = s.ForceClose()

	idle := s.Reset()
	assert.Equal(t, Idle, idle.State())
	assert.Equal(t, 0, idle.Len())

	_, err := idle.SetBunkerActive(true)
	assert.ErrorIs(t, err, errs.ErrSessionNotActive)
	_, err = idle.ForceClose()
	assert.ErrorIs(t, err, errs.ErrSessionNotActive)

	_, out := m.AcceptSample(idle, at(0, 0))
	assert.Equal(t, Ignored, out)
}

func TestSession_VerticesAreCopies(t *testing.T) {
	s := Start(at(0, 0))
	vs := s.Vertices()
	vs[0].Tag = geo.Bunker

	assert.Equal(t, geo.Green, s.Vertices()[0].Tag)
}
