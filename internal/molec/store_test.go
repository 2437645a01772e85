package molec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBoxer struct {
	inserted []*Molecule
	removed  []*Molecule
}

func (r *recordingBoxer) Insert(m *Molecule) {
	m.Box = 0
	r.inserted = append(r.inserted, m)
}

func (r *recordingBoxer) Remove(m *Molecule) { r.removed = append(r.removed, m) }

func newTestStore(t *testing.T, capacity int) (*Store, Ident, Ident) {
	t.Helper()
	s := NewStore(2, capacity)
	a, err := s.AddSpecies("A")
	require.NoError(t, err)
	b, err := s.AddSpecies("B")
	require.NoError(t, err)
	return s, a, b
}

func TestStore_AddSpecies(t *testing.T) {
	s, a, _ := newTestStore(t, 10)
	assert.Equal(t, Ident(1), a)
	assert.Equal(t, 3, s.SpeciesCount())

	_, err := s.AddSpecies("A")
	assert.Error(t, err)
	_, err = s.AddSpecies("")
	assert.Error(t, err)

	id, ok := s.Lookup("B")
	assert.True(t, ok)
	assert.Equal(t, "B", s.SpeciesName(id))
}

func TestStore_AllocCommitsOnSort(t *testing.T) {
	s, a, _ := newTestStore(t, 10)
	m, err := s.Insert(a, Soln, []float64{0.1, 0.2}, nil)
	require.NoError(t, err)

	assert.Empty(t, s.Live(0))
	assert.Equal(t, 0, s.Count(a, All))
	assert.Len(t, s.Pending(), 1)

	bx := &recordingBoxer{}
	s.Sort(bx)
	assert.Equal(t, []*Molecule{m}, s.Live(0))
	assert.Equal(t, 0, m.List)
	assert.Len(t, bx.inserted, 1)
	assert.Equal(t, 1, s.Count(a, Soln))
	assert.Empty(t, s.Pending())
}

func TestStore_KillRetiresOnSort(t *testing.T) {
	s, a, b := newTestStore(t, 10)
	m1, _ := s.Insert(a, Soln, []float64{0, 0}, nil)
	m2, _ := s.Insert(b, Soln, []float64{1, 1}, nil)
	bx := &recordingBoxer{}
	s.Sort(bx)

	s.Kill(m1)
	assert.Len(t, s.Live(0), 2, "killed molecules stay listed until sort")
	assert.Equal(t, 1, s.Count(Void, All))

	s.Sort(bx)
	assert.Equal(t, []*Molecule{m2}, s.Live(0))
	assert.Equal(t, []*Molecule{m1}, bx.removed)
	assert.Equal(t, 1, s.InUse())
}

func TestStore_CapacityAndReuse(t *testing.T) {
	s, a, _ := newTestStore(t, 2)
	m1, err := s.Insert(a, Soln, []float64{0, 0}, nil)
	require.NoError(t, err)
	_, err = s.Insert(a, Soln, []float64{0, 0}, nil)
	require.NoError(t, err)
	_, err = s.Alloc()
	assert.ErrorIs(t, err, ErrStoreFull)

	s.Sort(nil)
	s.Kill(m1)
	s.Sort(nil)
	m3, err := s.Alloc()
	require.NoError(t, err)
	assert.Same(t, m1, m3)
	assert.Greater(t, m3.Serial, uint64(2))
}

func TestStore_Lists(t *testing.T) {
	s, a, b := newTestStore(t, 10)
	ll := s.AddList("fast")
	require.NoError(t, s.SetList(b, All, ll))
	assert.Equal(t, ll, s.ListLookup(b, Bsoln))
	assert.Equal(t, 0, s.ListLookup(a, Front))
	assert.Error(t, s.SetList(b, All, 7))

	mb, _ := s.Insert(b, Soln, []float64{0, 0}, nil)
	s.Sort(nil)
	assert.Equal(t, []*Molecule{mb}, s.Live(ll))

	require.NoError(t, s.SetList(b, All, 0))
	s.Relist(nil)
	assert.Empty(t, s.Live(ll))
	assert.Equal(t, 0, mb.List)
}

func TestStore_Difc(t *testing.T) {
	s, a, _ := newTestStore(t, 10)
	require.NoError(t, s.SetDifc(a, Soln, 2))
	require.NoError(t, s.SetDifc(a, Front, 0.5))
	require.NoError(t, s.SetSurfaceDifc(a, Front, 1, 0.1))

	assert.Equal(t, 2.0, s.Difc(a, Bsoln, 0))
	assert.Equal(t, 0.5, s.Difc(a, Front, 0))
	assert.Equal(t, 0.1, s.Difc(a, Front, 1))
	assert.Equal(t, 0.5, s.Difc(a, Front, 2))

	assert.Error(t, s.SetDifc(a, Soln, -1))
	assert.Error(t, s.SetSurfaceDifc(a, Soln, 0, 1))
}

func TestStore_InsertValidation(t *testing.T) {
	s, a, _ := newTestStore(t, 10)
	_, err := s.Insert(Void, Soln, []float64{0, 0}, nil)
	assert.Error(t, err)
	_, err = s.Insert(a, Front, []float64{0, 0}, nil)
	assert.Error(t, err)
	_, err = s.Insert(a, Soln, []float64{0}, nil)
	assert.Error(t, err)
	_, err = s.Insert(a, Bsoln, []float64{0, 0}, nil)
	assert.Error(t, err)
}

func TestParseState(t *testing.T) {
	tests := []struct {
		in   string
		want State
		err  bool
	}{
		{"soln", Soln, false},
		{"FSOLN", Soln, false},
		{"", Soln, false},
		{"bsoln", Bsoln, false},
		{"up", Up, false},
		{"all", All, false},
		{"sideways", None, true},
	}
	for _, tt := range tests {
		got, err := ParseState(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, Soln, Bsoln.Solution())
	assert.True(t, Down.Bound())
	assert.False(t, Bsoln.Bound())
}

func TestStore_Reserve(t *testing.T) {
	s, a, _ := newTestStore(t, 2)
	require.NoError(t, s.Reserve(2))
	assert.ErrorIs(t, s.Reserve(3), ErrStoreFull)
	assert.Equal(t, 2, s.Capacity())

	var grown []int
	s.SetGrowth(func(n int) { grown = append(grown, n) })
	require.NoError(t, s.Reserve(5))
	assert.Equal(t, 8, s.Capacity())

	for range 9 {
		_, err := s.Insert(a, Soln, []float64{0, 0}, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 16, s.Capacity())
	assert.Equal(t, []int{8, 16}, grown)

	s.SetGrowth(nil)
	for range 7 {
		_, err := s.Alloc()
		require.NoError(t, err)
	}
	_, err := s.Alloc()
	assert.ErrorIs(t, err, ErrStoreFull)
}
