package authz

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/suleymanmyradov/authcore/shared/models"
)

const (
	wildcardUser     = "*"
	relationHasRole  = "has_role"
	relationMember   = "member"
	rolePrefix       = "role:"
	groupPrefix      = "group:"
	defaultMaxDepth  = 10
)

// TupleStore is the subset of relationship.Store the checker depends
// on, kept narrow so this package never imports internal/relationship
// directly (spec §9's "model as explicit services" note).
type TupleStore interface {
	Check(ctx context.Context, user, relation, object string) (bool, error)
	GetValidRelationships(ctx context.Context, user string) ([]models.Relationship, error)
	GetValidRelationshipsByOrg(ctx context.Context, user string, orgID uuid.UUID) ([]models.Relationship, error)
}

// Checker answers check(user, relation, object[, org]) with the
// resolution order from spec §4.6: wildcard → direct → role
// inheritance → group membership → group→role chain. It is a direct
// port of original_source's PermissionChecker, reimplemented with
// explicit context and error returns instead of trait objects.
type Checker struct {
	store    TupleStore
	graph    *Cache
	useGraph bool
	maxDepth int
}

func NewChecker(store TupleStore) *Checker {
	return &Checker{store: store, maxDepth: defaultMaxDepth}
}

// WithGraphCache enables the graph-mode fast path for Check; both
// modes must yield identical results (spec §4.6), the graph is purely
// an optimization.
func (c *Checker) WithGraphCache(cache *Cache) *Checker {
	c.graph = cache
	c.useGraph = true
	return c
}

func (c *Checker) MaxDepth() int { return c.maxDepth }

// Check implements the DB-linear resolution order. org, if non-nil,
// scopes steps 2-5 to that organization (or global/null-org tuples);
// the wildcard check at step 1 is never org-filtered.
func (c *Checker) Check(ctx context.Context, user, relation, object string, org *uuid.UUID) (bool, error) {
	// 1. Wildcard bypass — absolute precedence, evaluated first.
	wildcard, err := c.store.Check(ctx, user, wildcardUser, wildcardUser)
	if err != nil {
		return false, err
	}
	if wildcard {
		return true, nil
	}

	// The graph carries no organization filter, so org-scoped checks
	// always take the linear path.
	if c.useGraph && c.graph != nil && org == nil {
		if g := c.graph.GetCached(); g != nil {
			return c.checkGraph(g, user, relation, object), nil
		}
	}

	return c.checkLinear(ctx, user, relation, object, org)
}

func (c *Checker) checkLinear(ctx context.Context, user, relation, object string, org *uuid.UUID) (bool, error) {
	// 2. Direct.
	direct, err := c.checkScoped(ctx, user, relation, object, org)
	if err != nil {
		return false, err
	}
	if direct {
		return true, nil
	}

	userRels, err := c.validRelationships(ctx, user, org)
	if err != nil {
		return false, err
	}

	// 3. Role inheritance: U#has_role@role:X → check role:X#relation@object.
	for _, rel := range userRels {
		if rel.Relation != relationHasRole || !strings.HasPrefix(rel.Object, rolePrefix) {
			continue
		}
		ok, err := c.checkScoped(ctx, rel.Object, relation, object, org)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}

	// 4/5. Group membership (direct + group→role chain).
	for _, rel := range userRels {
		if rel.Relation != relationMember || !strings.HasPrefix(rel.Object, groupPrefix) {
			continue
		}
		group := rel.Object

		ok, err := c.checkScoped(ctx, group, relation, object, org)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		groupRels, err := c.store.GetValidRelationships(ctx, group)
		if err != nil {
			return false, err
		}
		for _, gr := range groupRels {
			if gr.Relation != relationHasRole || !strings.HasPrefix(gr.Object, rolePrefix) {
				continue
			}
			if org != nil && gr.OrganizationID != nil && *gr.OrganizationID != *org {
				continue
			}
			ok, err := c.checkScoped(ctx, gr.Object, relation, object, org)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}

	return false, nil
}

func (c *Checker) checkScoped(ctx context.Context, user, relation, object string, org *uuid.UUID) (bool, error) {
	if org == nil {
		return c.store.Check(ctx, user, relation, object)
	}
	rels, err := c.store.GetValidRelationshipsByOrg(ctx, user, *org)
	if err != nil {
		return false, err
	}
	for _, r := range rels {
		if r.Relation == relation && r.Object == object {
			return true, nil
		}
	}
	// org-scoped lookup also admits globally-scoped (null org) tuples.
	global, err := c.store.GetValidRelationships(ctx, user)
	if err != nil {
		return false, err
	}
	for _, r := range global {
		if r.OrganizationID == nil && r.Relation == relation && r.Object == object {
			return true, nil
		}
	}
	return false, nil
}

func (c *Checker) validRelationships(ctx context.Context, user string, org *uuid.UUID) ([]models.Relationship, error) {
	if org == nil {
		return c.store.GetValidRelationships(ctx, user)
	}
	scoped, err := c.store.GetValidRelationshipsByOrg(ctx, user, *org)
	if err != nil {
		return nil, err
	}
	// org-scoped lookup also admits globally-scoped (null org) tuples.
	global, err := c.store.GetValidRelationships(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, r := range global {
		if r.OrganizationID == nil {
			scoped = append(scoped, r)
		}
	}
	return scoped, nil
}

// checkGraph is the graph-mode fast path: DFS from user bounded by
// MAX_DEPTH, visited-set cycle suppression, following has_role/member
// edges the same way checkLinear does, considering only edges whose
// validity predicate holds at traversal time.
func (c *Checker) checkGraph(g *Graph, user, relation, object string) bool {
	if !g.HasNode(user) {
		return false
	}
	visited := make(map[string]bool)
	return c.dfs(g, user, relation, object, visited, 0)
}

func (c *Checker) dfs(g *Graph, subject, relation, object string, visited map[string]bool, depth int) bool {
	if depth > c.maxDepth || visited[subject] {
		return false
	}
	visited[subject] = true

	now := timeNow()
	for _, e := range g.Edges(subject) {
		if !e.isValid(now) {
			continue
		}
		if e.Relation == relation && e.Target == object {
			return true
		}
		if e.Relation == relationHasRole && strings.HasPrefix(e.Target, rolePrefix) {
			if c.dfs(g, e.Target, relation, object, visited, depth+1) {
				return true
			}
		}
		if e.Relation == relationMember && strings.HasPrefix(e.Target, groupPrefix) {
			if c.dfs(g, e.Target, relation, object, visited, depth+1) {
				return true
			}
		}
	}
	return false
}

// CheckBatch evaluates each (user, relation, object) triple in order,
// preserving input order in the result slice.
func (c *Checker) CheckBatch(ctx context.Context, checks [][3]string, org *uuid.UUID) ([]bool, error) {
	results := make([]bool, len(checks))
	for i, chk := range checks {
		ok, err := c.Check(ctx, chk[0], chk[1], chk[2], org)
		if err != nil {
			return nil, err
		}
		results[i] = ok
	}
	return results, nil
}

// GetAllPermissions returns the union of (relation, object) pairs
// reachable from user via steps 2-5 of the resolution order.
func (c *Checker) GetAllPermissions(ctx context.Context, user string) (map[[2]string]struct{}, error) {
	permissions := make(map[[2]string]struct{})

	userRels, err := c.store.GetValidRelationships(ctx, user)
	if err != nil {
		return nil, err
	}

	for _, rel := range userRels {
		if rel.Relation != relationMember && rel.Relation != relationHasRole {
			permissions[[2]string{rel.Relation, rel.Object}] = struct{}{}
		}
	}

	for _, rel := range userRels {
		if rel.Relation == relationHasRole {
			roleRels, err := c.store.GetValidRelationships(ctx, rel.Object)
			if err != nil {
				return nil, err
			}
			for _, rr := range roleRels {
				permissions[[2]string{rr.Relation, rr.Object}] = struct{}{}
			}
		}
	}

	for _, rel := range userRels {
		if rel.Relation != relationMember {
			continue
		}
		groupRels, err := c.store.GetValidRelationships(ctx, rel.Object)
		if err != nil {
			return nil, err
		}
		for _, gr := range groupRels {
			if gr.Relation != relationHasRole {
				permissions[[2]string{gr.Relation, gr.Object}] = struct{}{}
			}
		}
		for _, gr := range groupRels {
			if gr.Relation != relationHasRole {
				continue
			}
			roleRels, err := c.store.GetValidRelationships(ctx, gr.Object)
			if err != nil {
				return nil, err
			}
			for _, rr := range roleRels {
				permissions[[2]string{rr.Relation, rr.Object}] = struct{}{}
			}
		}
	}

	return permissions, nil
}

// FindAccessibleEntities returns every object O such that
// check(user, relation, O) would be true, computed by forward BFS
// over the cached graph (spec §4.6).
func (c *Checker) FindAccessibleEntities(ctx context.Context, user, relation string) ([]string, error) {
	var g *Graph
	if c.graph != nil {
		built, err := c.graph.GetOrBuild(ctx)
		if err != nil {
			return nil, err
		}
		g = built
	}
	if g == nil {
		return nil, nil
	}

	visited := map[string]bool{user: true}
	queue := []string{user}
	var found []string
	depth := 0

	for len(queue) > 0 && depth <= c.maxDepth {
		next := make([]string, 0)
		for _, subject := range queue {
			now := timeNow()
			for _, e := range g.Edges(subject) {
				if !e.isValid(now) {
					continue
				}
				if e.Relation == relation {
					found = append(found, e.Target)
				}
				if (e.Relation == relationHasRole || e.Relation == relationMember) && !visited[e.Target] {
					visited[e.Target] = true
					next = append(next, e.Target)
				}
			}
		}
		queue = next
		depth++
	}
	return found, nil
}

// ShortestPath returns the shortest sequence of subjects from user to
// object via edges tagged relation (or the has_role/member chain
// leading to it), breadth-first, ties broken by edge insertion order.
// Returns nil if no path of length <= MaxDepth exists.
func (c *Checker) ShortestPath(ctx context.Context, user, relation, object string) ([]string, error) {
	if c.graph == nil {
		return nil, nil
	}
	g, err := c.graph.GetOrBuild(ctx)
	if err != nil {
		return nil, err
	}
	if !g.HasNode(user) {
		return nil, nil
	}

	type pathEntry struct {
		subject string
		path    []string
	}
	visited := map[string]bool{user: true}
	queue := []pathEntry{{subject: user, path: []string{user}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.path)-1 >= c.maxDepth {
			continue
		}
		now := timeNow()
		for _, e := range g.Edges(cur.subject) {
			if !e.isValid(now) {
				continue
			}
			if e.Relation == relation && e.Target == object {
				return append(append([]string{}, cur.path...), e.Target), nil
			}
			if (e.Relation == relationHasRole || e.Relation == relationMember) && !visited[e.Target] {
				visited[e.Target] = true
				queue = append(queue, pathEntry{subject: e.Target, path: append(append([]string{}, cur.path...), e.Target)})
			}
		}
	}
	return nil, nil
}
