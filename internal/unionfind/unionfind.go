// Package unionfind implements a generic disjoint-set structure with path compression and
// union by rank.
package unionfind

// UnionFind partitions values of T into disjoint sets. It is not safe for concurrent use.
//
// Find compresses paths as a side effect, so even read-only looking callers mutate the
// structure.
type UnionFind[T comparable] struct {
	parent  map[T]T
	rank    map[T]int
	members map[T]map[T]struct{}
}

// New returns an empty UnionFind.
func New[T comparable]() *UnionFind[T] {
	return &UnionFind[T]{
		parent:  map[T]T{},
		rank:    map[T]int{},
		members: map[T]map[T]struct{}{},
	}
}

// MakeSet creates the singleton partition {x} unless x is already known.
func (u *UnionFind[T]) MakeSet(x T) {
	if _, ok := u.parent[x]; ok {
		return
	}
	u.parent[x] = x
	u.rank[x] = 0
	u.members[x] = map[T]struct{}{x: {}}
}

// Contains reports whether x belongs to some partition.
func (u *UnionFind[T]) Contains(x T) bool {
	_, ok := u.parent[x]
	return ok
}

// Find returns the representative of the partition holding x.
func (u *UnionFind[T]) Find(x T) (T, bool) {
	p, ok := u.parent[x]
	if !ok {
		var zero T
		return zero, false
	}
	if p == x {
		return x, true
	}

	root := p
	for {
		next := u.parent[root]
		if next == root {
			break
		}
		root = next
	}
	for x != root {
		next := u.parent[x]
		u.parent[x] = root
		x = next
	}
	return root, true
}

// Union merges the partitions of x and y and returns the surviving representative. The
// root of lower rank is attached below the other one; on a tie the root of y's partition is
// attached below x's root and the survivor's rank grows by one. Unknown values are ignored
// and the zero value is returned if neither is known.
func (u *UnionFind[T]) Union(x, y T) T {
	rx, okx := u.Find(x)
	ry, oky := u.Find(y)
	switch {
	case !okx && !oky:
		var zero T
		return zero
	case !okx:
		return ry
	case !oky:
		return rx
	case rx == ry:
		return rx
	}

	if u.rank[rx] < u.rank[ry] {
		rx, ry = ry, rx
	} else if u.rank[rx] == u.rank[ry] {
		u.rank[rx]++
	}

	u.parent[ry] = rx
	for m := range u.members[ry] {
		u.members[rx][m] = struct{}{}
	}
	delete(u.members, ry)
	delete(u.rank, ry)
	return rx
}

// UnionAll merges the partitions of every value in xs and returns the representative.
func (u *UnionFind[T]) UnionAll(xs ...T) T {
	var root T
	if len(xs) == 0 {
		return root
	}
	root = xs[0]
	for _, x := range xs[1:] {
		root = u.Union(root, x)
	}
	root, _ = u.Find(root)
	return root
}

// DeleteSet removes the whole partition represented by root together with the lookup
// entries of its members. It is a no-op if root is not a representative.
func (u *UnionFind[T]) DeleteSet(root T) {
	members, ok := u.members[root]
	if !ok {
		return
	}
	for m := range members {
		delete(u.parent, m)
		delete(u.rank, m)
	}
	delete(u.members, root)
}

// IsSameUnion reports whether every value of xs is known and all of them share one
// partition.
func (u *UnionFind[T]) IsSameUnion(xs ...T) bool {
	if len(xs) == 0 {
		return true
	}
	first, ok := u.Find(xs[0])
	if !ok {
		return false
	}
	for _, x := range xs[1:] {
		r, ok := u.Find(x)
		if !ok || r != first {
			return false
		}
	}
	return true
}

// Members returns the member set of the partition represented by root. The returned map
// is owned by the UnionFind and must not be modified.
func (u *UnionFind[T]) Members(root T) map[T]struct{} {
	return u.members[root]
}

// Rank returns the rank of a representative.
func (u *UnionFind[T]) Rank(root T) int {
	return u.rank[root]
}

// Roots calls fn for every representative until fn returns false.
func (u *UnionFind[T]) Roots(fn func(root T) bool) {
	for r := range u.members {
		if !fn(r) {
			return
		}
	}
}

// Len returns the number of partitions.
func (u *UnionFind[T]) Len() int {
	return len(u.members)
}
