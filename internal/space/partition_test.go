package space

import (
	"math/rand/v2"
	"testing"

	"github.com/daniacca/rxdyn/internal/geometry"
	"github.com/daniacca/rxdyn/internal/molec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDomain(t *testing.T, high []float64, periodic []bool) *geometry.Domain {
	t.Helper()
	d, err := geometry.NewDomain(make([]float64, len(high)), high, periodic)
	require.NoError(t, err)
	return d
}

func TestBuild_Sizing(t *testing.T) {
	tests := []struct {
		name     string
		high     []float64
		cfg      Config
		molCount int
		want     []int
	}{
		{"box size", []float64{10, 5}, Config{BoxSize: 2}, 0, []int{5, 3}},
		{"density", []float64{10, 10, 10}, Config{MolPerBox: 8}, 900, []int{5, 5, 5}},
		{"default density", []float64{10, 10}, Config{}, 500, []int{10, 10}},
		{"no molecules", []float64{10, 10}, Config{}, 0, []int{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Build(newDomain(t, tt.high, nil), tt.cfg, tt.molCount, 1, nil)
			require.NoError(t, err)
			for d, want := range tt.want {
				assert.Equal(t, want, p.Side(d), "dimension %d", d)
				assert.InDelta(t, tt.high[d]/float64(want), p.Size(d), 1e-12)
			}
			assert.Equal(t, CondReady, p.Condition())
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(&geometry.Domain{}, Config{}, 0, 1, nil)
	assert.ErrorIs(t, err, geometry.ErrNoDomain)

	_, err = Build(newDomain(t, []float64{1}, nil), Config{BoxSize: -1}, 0, 1, nil)
	assert.Error(t, err)
}

func TestLocate_Clamps(t *testing.T) {
	p, err := Build(newDomain(t, []float64{4, 4}, nil), Config{BoxSize: 1}, 0, 1, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, p.Locate([]float64{0.5, 0.5}))
	assert.Equal(t, 1*4+2, p.Locate([]float64{1.5, 2.5}))
	assert.Equal(t, 0, p.Locate([]float64{-3, -1}))
	assert.Equal(t, 15, p.Locate([]float64{9, 4}))
	assert.Equal(t, []int{3, 0}, p.Box(p.Locate([]float64{5, -5})).Index)
}

func TestNeighbors_HalfSetCoversEachPairOnce(t *testing.T) {
	for _, periodic := range []bool{false, true} {
		p, err := Build(newDomain(t, []float64{3, 4}, []bool{periodic, periodic}), Config{BoxSize: 1}, 0, 1, nil)
		require.NoError(t, err)

		type key struct {
			a, b int
			wrap uint32
		}
		pairs := map[key]int{}
		for b := range p.NumBoxes() {
			bx := p.Box(b)
			full := 8
			if !periodic {
				full = len(bx.Neighbors)
			}
			assert.Len(t, bx.Neighbors, full)
			for i := range bx.MidNeigh {
				n := bx.Neighbors[i]
				assert.LessOrEqual(t, n, b)
				var w uint32
				if bx.Wrap != nil {
					w = bx.Wrap[i]
				}
				pairs[key{b, n, w}]++
			}
			for i := bx.MidNeigh; i < len(bx.Neighbors); i++ {
				assert.Greater(t, bx.Neighbors[i], b)
			}
		}
		total := 0
		for b := range p.NumBoxes() {
			total += len(p.Box(b).Neighbors)
		}
		assert.Equal(t, total, 2*len(pairs), "periodic=%v", periodic)
		for k, n := range pairs {
			assert.Equal(t, 1, n, "pair %v", k)
		}
	}
}

func TestNeighbors_WrapCodes(t *testing.T) {
	p, err := Build(newDomain(t, []float64{3}, []bool{true}), Config{BoxSize: 1}, 0, 1, nil)
	require.NoError(t, err)

	b0 := p.Box(0)
	require.Len(t, b0.Neighbors, 2)
	require.NotNil(t, b0.Wrap)
	assert.Equal(t, []int{1, 2}, b0.Neighbors)
	assert.Equal(t, uint32(WrapNone), b0.Wrap[0])
	assert.Equal(t, uint32(WrapLow), WrapCode(b0.Wrap[1], 0))
	assert.Equal(t, 3.0, p.Period(b0.Wrap[1], 0))

	b1 := p.Box(1)
	assert.Nil(t, b1.Wrap)

	b2 := p.Box(2)
	assert.Equal(t, 2, b2.MidNeigh)
	assert.Equal(t, uint32(WrapHigh), WrapCode(b2.Wrap[0], 0))
	assert.Equal(t, -3.0, p.Period(b2.Wrap[0], 0))
}

func TestNeighbors_SingleBoxPeriodic(t *testing.T) {
	p, err := Build(newDomain(t, []float64{1}, []bool{true}), Config{}, 0, 1, nil)
	require.NoError(t, err)
	bx := p.Box(0)
	assert.Equal(t, []int{0, 0}, bx.Neighbors)
	assert.Equal(t, 1, bx.MidNeigh)
	assert.Equal(t, uint32(WrapLow), bx.Wrap[0])
}

func TestBuild_WallsAndPanels(t *testing.T) {
	d := newDomain(t, []float64{2, 2}, nil)
	scene := geometry.NewScene(d)
	srf, err := scene.AddSurface("wall")
	require.NoError(t, err)
	pnl, err := geometry.NewPanel("w", 0, 1.5, []float64{0, 0}, []float64{0, 2}, 1)
	require.NoError(t, err)
	srf.AddPanel(pnl)

	p, err := Build(d, Config{BoxSize: 1}, 0, 1, scene)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, p.Box(0).Walls)
	assert.Empty(t, p.Box(0).Panels)
	assert.Len(t, p.Box(2).Panels, 1)
	assert.Len(t, p.Box(3).Panels, 1)
	assert.Empty(t, p.CheckParams())
}

func TestMembership_InvariantUnderRandomOperations(t *testing.T) {
	d := newDomain(t, []float64{5, 5}, []bool{true, false})
	store := molec.NewStore(2, 500)
	a, err := store.AddSpecies("A")
	require.NoError(t, err)
	bID, err := store.AddSpecies("B")
	require.NoError(t, err)
	ll := store.AddList("B")
	require.NoError(t, store.SetList(bID, molec.All, ll))

	p, err := Build(d, Config{BoxSize: 1}, 0, store.NumLists(), nil)
	require.NoError(t, err)

	r := rand.New(rand.NewPCG(1, 2))
	point := func() []float64 { return []float64{r.Float64()*7 - 1, r.Float64() * 5} }
	for range 50 {
		_, err := store.Insert(a, molec.Soln, point(), nil)
		require.NoError(t, err)
	}
	store.Sort(p)
	require.NoError(t, p.Verify(store))

	for range 2000 {
		switch r.IntN(4) {
		case 0:
			id := a
			if r.IntN(2) == 0 {
				id = bID
			}
			if _, err := store.Insert(id, molec.Soln, point(), nil); err != nil {
				require.ErrorIs(t, err, molec.ErrStoreFull)
			}
		case 1:
			list := store.Live(r.IntN(store.NumLists()))
			if len(list) > 0 {
				store.Kill(list[r.IntN(len(list))])
			}
		case 2:
			list := store.Live(r.IntN(store.NumLists()))
			if len(list) > 0 {
				m := list[r.IntN(len(list))]
				copy(m.Pos, point())
				p.Reassign(m)
			}
		case 3:
			store.Sort(p)
			require.NoError(t, p.Verify(store))
		}
	}
	store.Sort(p)
	require.NoError(t, p.Verify(store))

	for _, m := range store.Live(0) {
		copy(m.Pos, point())
	}
	p.ReassignAll(store)
	require.NoError(t, p.Verify(store))

	p.Populate(store)
	require.NoError(t, p.Verify(store))
}

func TestRemove_PanicsWhenMissing(t *testing.T) {
	p, err := Build(newDomain(t, []float64{1}, nil), Config{}, 0, 1, nil)
	require.NoError(t, err)
	m := &molec.Molecule{Ident: 1, Pos: []float64{0.5}, Box: 0, List: 0}
	assert.Panics(t, func() { p.Remove(m) })
}

func TestGrow(t *testing.T) {
	p, err := Build(newDomain(t, []float64{1}, nil), Config{}, 0, 1, nil)
	require.NoError(t, err)
	ms := make([]*molec.Molecule, 4)
	for i := range ms {
		ms[i] = &molec.Molecule{Ident: 1, Pos: []float64{0.5}, List: 0}
		p.Insert(ms[i])
	}
	assert.Equal(t, 0, p.Grow(0, 0, 10))
	assert.GreaterOrEqual(t, cap(p.Box(0).Mols[0]), 14)

	c := cap(p.Box(0).Mols[0])
	dropped := p.Grow(0, 0, -(c - 2))
	assert.Equal(t, 2, dropped)
	assert.Len(t, p.Box(0).Mols[0], 2)
	assert.Equal(t, -1, ms[3].Box)
}

func TestNextBoxAlong(t *testing.T) {
	p, err := Build(newDomain(t, []float64{3, 3}, nil), Config{BoxSize: 1}, 0, 1, nil)
	require.NoError(t, err)
	addr := func(i, j int) int { return i*3 + j }

	tests := []struct {
		name   string
		p1, p2 []float64
		cur    int
		want   int
		ok     bool
	}{
		{"same box", []float64{0.2, 0.2}, []float64{0.8, 0.7}, addr(0, 0), 0, false},
		{"along x", []float64{0.5, 0.5}, []float64{2.5, 0.5}, addr(0, 0), addr(1, 0), true},
		{"first crossing wins", []float64{0.5, 0.9}, []float64{1.5, 1.4}, addr(0, 0), addr(0, 1), true},
		{"backward", []float64{2.5, 2.5}, []float64{0.5, 2.5}, addr(2, 2), addr(1, 2), true},
		{"corner high", []float64{0.5, 0.5}, []float64{1.5, 1.5}, addr(0, 0), addr(1, 1), true},
		{"corner low", []float64{1.5, 1.5}, []float64{0.5, 0.5}, addr(1, 1), addr(0, 0), true},
		{"corner mixed", []float64{1.5, 0.5}, []float64{0.5, 1.5}, addr(1, 0), addr(1, 1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.NextBoxAlong(tt.p1, tt.p2, tt.cur)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}

	// Walking a segment visits boxes until the one containing its end.
	p1, p2 := []float64{0.1, 0.2}, []float64{2.9, 2.3}
	cur := p.Locate(p1)
	for range 10 {
		next, ok := p.NextBoxAlong(p1, p2, cur)
		if !ok {
			break
		}
		cur = next
	}
	assert.Equal(t, p.Locate(p2), cur)
}

func TestBounds(t *testing.T) {
	p, err := Build(newDomain(t, []float64{4, 2}, nil), Config{BoxSize: 1}, 0, 1, nil)
	require.NoError(t, err)
	b := p.Locate([]float64{2.5, 1.5})
	lo, hi := p.Bounds(b)
	assert.Equal(t, []float64{2, 1}, lo)
	assert.Equal(t, []float64{3, 2}, hi)
	assert.Equal(t, 1.0, p.MinBoxSize())
}

func TestUpdate_NewLists(t *testing.T) {
	d := newDomain(t, []float64{4, 4}, nil)
	store := molec.NewStore(2, 100)
	a, err := store.AddSpecies("A")
	require.NoError(t, err)
	p, err := Build(d, Config{BoxSize: 1}, 0, store.NumLists(), nil)
	require.NoError(t, err)
	for i := range 8 {
		_, err := store.Insert(a, molec.Soln, []float64{float64(i%4) + 0.5, float64(i/4) + 0.5}, nil)
		require.NoError(t, err)
	}
	store.Sort(p)

	p.SetNumLists(1)
	assert.Equal(t, CondReady, p.Condition())

	ll := store.AddList("slow")
	require.NoError(t, store.SetList(a, molec.All, ll))
	store.Relist(p)
	p.SetNumLists(store.NumLists())
	assert.Equal(t, CondLists, p.Condition())
	assert.Contains(t, p.CheckParams(), "box structure lists built")

	p.Update(store)
	assert.Equal(t, CondReady, p.Condition())
	assert.Equal(t, 2, p.NumLists())
	for b := range p.NumBoxes() {
		assert.Len(t, p.Box(b).Mols, 2)
	}
	require.NoError(t, p.Verify(store))
	assert.Empty(t, p.CheckParams())
}

func TestCondition_Apply(t *testing.T) {
	assert.Equal(t, CondLists, CondReady.Apply(CondLists, Downgrade))
	assert.Equal(t, CondLists, CondLists.Apply(CondReady, Downgrade))
	assert.Equal(t, CondReady, CondLists.Apply(CondReady, Upgrade))
	assert.Equal(t, CondReady, CondReady.Apply(CondParams, Upgrade))
	assert.Equal(t, CondInit, CondReady.Apply(CondInit, Force))
	assert.Equal(t, "ready", CondReady.String())
}
