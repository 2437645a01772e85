package rxn

import (
	"github.com/daniacca/rxdyn/internal/random"
	"golang.org/x/sync/errgroup"
)

// split cuts n items into at most workers contiguous ranges.
func split(n, workers int) [][2]int {
	if workers > n {
		workers = n
	}
	if workers < 1 {
		return nil
	}
	out := make([][2]int, 0, workers)
	for w := range workers {
		out = append(out, [2]int{w * n / workers, (w + 1) * n / workers})
	}
	return out
}

// forks derives one random source per worker from the engine source.
func (e *Engine) forks(n int) []*random.Source {
	out := make([]*random.Source, n)
	for i := range out {
		out[i] = e.rng.Fork()
	}
	return out
}

// parallelUnimolecular is Unimolecular with the coin flips spread across
// workers. Accepted reactions are executed afterwards in worker order.
func (e *Engine) parallelUnimolecular() error {
	cat := e.cats[1]
	if cat.Len() == 0 {
		return nil
	}
	for ll := range e.store.NumLists() {
		if !cat.Reactive(ll) {
			continue
		}
		mols := e.store.Live(ll)
		ranges := split(len(mols), e.workers)
		rngs := e.forks(len(ranges))
		found := make([][]proposal, len(ranges))

		var g errgroup.Group
		for w, rg := range ranges {
			g.Go(func() error {
				for _, m := range mols[rg[0]:rg[1]] {
					if r := e.pickUnimolecular(rngs[w], m); r != nil {
						found[w] = append(found[w], proposal{r: r, et: Rxn1, a: m})
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for _, list := range found {
			for _, p := range list {
				if !p.a.Alive() {
					continue
				}
				if err := e.execute(p.r, Rxn1, p.a, nil, nil, nil); err != nil {
					return err
				}
				e.counts[Rxn1]++
			}
		}
	}
	return nil
}

// parallelBimolecular is Bimolecular with candidate search spread across
// workers. A molecule may appear in proposals of several workers; proposals
// whose reactants were consumed by an earlier one are dropped.
func (e *Engine) parallelBimolecular(neigh bool) error {
	cat := e.cats[2]
	if cat.Len() == 0 {
		return nil
	}
	nlist := e.store.NumLists()
	for ll1 := range nlist {
		for ll2 := ll1; ll2 < nlist; ll2++ {
			if !cat.Reactive(ll1, ll2) {
				continue
			}
			if err := e.parallelScan(ll1, ll2, neigh); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) parallelScan(ll1, ll2 int, neigh bool) error {
	mols := e.store.Live(ll1)
	ranges := split(len(mols), e.workers)
	rngs := e.forks(len(ranges))
	found := make([][]proposal, len(ranges))

	var g errgroup.Group
	for w, rg := range ranges {
		g.Go(func() error {
			emit := func(p proposal) (bool, error) {
				found[w] = append(found[w], p)
				return true, nil
			}
			return e.scanPairs(rngs[w], ll1, ll2, neigh, mols[rg[0]:rg[1]], emit)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, list := range found {
		for _, p := range list {
			if err := e.commitPair(p); err != nil {
				return err
			}
		}
	}
	return nil
}

