package territory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/territory-mapper/internal/models"
)

func TestParseBoundaryMode(t *testing.T) {
	tests := []struct {
		in      string
		want    BoundaryMode
		wantErr bool
	}{
		{in: "counties", want: BoundaryCounties},
		{in: " ZIPS ", want: BoundaryZips},
		{in: "both", want: BoundaryBoth},
		{in: "states", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBoundaryMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBoundaryMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoundaryModeShows(t *testing.T) {
	assert.True(t, BoundaryCounties.Shows(models.KindCounty))
	assert.False(t, BoundaryCounties.Shows(models.KindZip))
	assert.True(t, BoundaryZips.Shows(models.KindZip))
	assert.False(t, BoundaryZips.Shows(models.KindCounty))
	assert.True(t, BoundaryBoth.Shows(models.KindCounty))
	assert.True(t, BoundaryBoth.Shows(models.KindZip))
}

func TestComputeStyle(t *testing.T) {
	const color = "#ec4899"

	t.Run("unowned county", func(t *testing.T) {
		s := computeStyle(models.KindCounty, BoundaryCounties, "", false)
		assert.Equal(t, "#8a9bb1", s.Color)
		assert.Equal(t, 1.2, s.Weight)
		assert.Equal(t, "#e2e8f0", s.FillColor)
		assert.Equal(t, 0.4, s.FillOpacity)
		assert.True(t, s.Interactive)
	})

	t.Run("unowned zip", func(t *testing.T) {
		s := computeStyle(models.KindZip, BoundaryZips, "", false)
		assert.Equal(t, "#4b5563", s.Color)
		assert.Equal(t, 0.8, s.Weight)
		assert.Equal(t, 0.5, s.Opacity)
		assert.Equal(t, 0.15, s.FillOpacity)
	})

	t.Run("owned county", func(t *testing.T) {
		s := computeStyle(models.KindCounty, BoundaryBoth, color, false)
		assert.Equal(t, color, s.Color)
		assert.Equal(t, color, s.FillColor)
		assert.Equal(t, 2.0, s.Weight)
		assert.Equal(t, 0.5, s.FillOpacity)
	})

	t.Run("active county", func(t *testing.T) {
		s := computeStyle(models.KindCounty, BoundaryCounties, color, true)
		assert.Equal(t, 4.0, s.Weight)
		assert.Equal(t, 0.7, s.FillOpacity)
	})

	t.Run("active zip", func(t *testing.T) {
		s := computeStyle(models.KindZip, BoundaryZips, color, true)
		assert.Equal(t, 4.0, s.Weight)
		assert.Equal(t, 0.6, s.FillOpacity)
	})

	t.Run("hidden layer", func(t *testing.T) {
		s := computeStyle(models.KindZip, BoundaryCounties, color, true)
		assert.True(t, s.Hidden)
		assert.False(t, s.Interactive)
		assert.Zero(t, s.FillOpacity)
	})
}

func TestModelStyles(t *testing.T) {
	m := newTestModel(newFakeStats())
	t1 := m.Create()
	toggle(t, m, losAngeles)
	t2 := m.Create()
	toggle(t, m, orange)

	// t2 is active after creation.
	assert.Equal(t, t1.Color, m.StyleFor(losAngeles).Color)
	assert.Equal(t, 2.0, m.StyleFor(losAngeles).Weight)
	assert.Equal(t, t2.Color, m.StyleFor(orange).Color)
	assert.Equal(t, 4.0, m.StyleFor(orange).Weight)

	_, err := m.SetActive(t1.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, m.StyleFor(losAngeles).Weight)
	assert.Equal(t, 2.0, m.StyleFor(orange).Weight)

	sheet := m.Styles()
	assert.Equal(t, BoundaryCounties, sheet.BoundaryMode)
	assert.Len(t, sheet.Units, 2)
	assert.Equal(t, t1.ID, sheet.Owners[losAngeles.Key()])
	assert.Equal(t, t2.ID, sheet.Owners[orange.Key()])
	assert.True(t, sheet.Defaults[models.KindZip].Hidden)
	assert.False(t, sheet.Defaults[models.KindCounty].Hidden)

	// Unowned units fall back to the layer default.
	assert.Equal(t, sheet.Defaults[models.KindZip], m.StyleFor(beverly))
}

func TestSetBoundaryMode(t *testing.T) {
	m := newTestModel(newFakeStats())
	v := m.Session().Version

	session, err := m.SetBoundaryMode(BoundaryBoth)
	require.NoError(t, err)
	assert.Equal(t, BoundaryBoth, session.BoundaryMode)
	assert.Greater(t, session.Version, v)

	sheet := m.Styles()
	assert.False(t, sheet.Defaults[models.KindZip].Hidden)

	_, err = m.SetBoundaryMode("states")
	assert.ErrorIs(t, err, ErrInvalidBoundaryMode)
	assert.Equal(t, BoundaryBoth, m.Session().BoundaryMode)
}

func TestStylesReleasedOnDelete(t *testing.T) {
	m := newTestModel(newFakeStats())
	t1 := m.Create()
	toggle(t, m, losAngeles)
	require.True(t, m.Delete(t1.ID))

	sheet := m.Styles()
	assert.Empty(t, sheet.Units)
	assert.Equal(t, sheet.Defaults[models.KindCounty], m.StyleFor(losAngeles))
}
