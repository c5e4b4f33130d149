package scheduler

import (
	"container/heap"
)

// depGraph holds the derived adjacency indices of one request. Edges only
// connect tasks present in the request; prerequisites outside it are kept in
// external.
type depGraph struct {
	ids             []TaskID // ascending
	prerequisitesOf map[TaskID][]TaskID
	dependentsOf    map[TaskID][]TaskID
	external        map[TaskID][]TaskID
}

func newDepGraph(tasks []Task) *depGraph {
	g := &depGraph{
		ids:             make([]TaskID, 0, len(tasks)),
		prerequisitesOf: make(map[TaskID][]TaskID, len(tasks)),
		dependentsOf:    make(map[TaskID][]TaskID, len(tasks)),
		external:        make(map[TaskID][]TaskID),
	}
	present := make(map[TaskID]bool, len(tasks))
	for _, t := range tasks {
		present[t.ID] = true
		g.ids = append(g.ids, t.ID)
	}
	sortIDs(g.ids)

	for _, t := range tasks {
		seen := make(map[TaskID]bool, len(t.Dependencies))
		for _, dep := range t.Dependencies {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			if !present[dep] {
				g.external[t.ID] = append(g.external[t.ID], dep)
				continue
			}
			g.prerequisitesOf[t.ID] = append(g.prerequisitesOf[t.ID], dep)
			g.dependentsOf[dep] = append(g.dependentsOf[dep], t.ID)
		}
	}
	for _, m := range []map[TaskID][]TaskID{g.prerequisitesOf, g.dependentsOf, g.external} {
		for _, v := range m {
			sortIDs(v)
		}
	}
	return g
}

type readyQueue struct {
	ids   []TaskID
	score map[TaskID]int
}

func (q readyQueue) Len() int { return len(q.ids) }
func (q readyQueue) Less(i, j int) bool {
	si, sj := q.score[q.ids[i]], q.score[q.ids[j]]
	if si != sj {
		return si < sj
	}
	return q.ids[i] < q.ids[j]
}
func (q readyQueue) Swap(i, j int) { q.ids[i], q.ids[j] = q.ids[j], q.ids[i] }
func (q *readyQueue) Push(x any)   { q.ids = append(q.ids, x.(TaskID)) }
func (q *readyQueue) Pop() any {
	old := q.ids
	n := len(old)
	x := old[n-1]
	q.ids = old[:n-1]
	return x
}

// order returns a topological order of every task, prerequisites first.
// Among tasks that are ready at the same time the lower priority score wins,
// then the lower id.
func (g *depGraph) order(score map[TaskID]int) ([]TaskID, error) {
	indeg := make(map[TaskID]int, len(g.ids))
	for _, id := range g.ids {
		indeg[id] = len(g.prerequisitesOf[id])
	}

	ready := &readyQueue{score: score}
	for _, id := range g.ids {
		if indeg[id] == 0 {
			ready.ids = append(ready.ids, id)
		}
	}
	heap.Init(ready)

	out := make([]TaskID, 0, len(g.ids))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(TaskID)
		out = append(out, id)
		for _, dep := range g.dependentsOf[id] {
			indeg[dep]--
			if indeg[dep] == 0 {
				heap.Push(ready, dep)
			}
		}
	}
	if len(out) == len(g.ids) {
		return out, nil
	}

	path := g.findCycle()
	members := make([]TaskID, 0, len(path))
	seen := make(map[TaskID]bool, len(path))
	for _, id := range path {
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	sortIDs(members)
	return nil, &CyclicDependencyError{TaskIDs: members, Path: path}
}

// findCycle walks prerequisite edges depth-first in ascending id order and
// returns one cycle, closed on its first task. Deterministic for a fixed
// graph.
func (g *depGraph) findCycle() []TaskID {
	const (
		white = iota
		gray
		black
	)
	color := make(map[TaskID]int, len(g.ids))
	parent := make(map[TaskID]TaskID, len(g.ids))

	var cycle []TaskID
	var dfs func(u TaskID) bool
	dfs = func(u TaskID) bool {
		color[u] = gray
		for _, v := range g.prerequisitesOf[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				// back edge u -> v closes v -> ... -> u -> v
				rev := []TaskID{v, u}
				for cur := u; cur != v; {
					cur = parent[cur]
					rev = append(rev, cur)
				}
				cycle = make([]TaskID, len(rev))
				for i := range rev {
					cycle[i] = rev[len(rev)-1-i]
				}
				return true
			}
		}
		color[u] = black
		return false
	}

	for _, id := range g.ids {
		if color[id] == white && dfs(id) {
			break
		}
	}
	return cycle
}
