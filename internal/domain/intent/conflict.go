package intent

// compat is the predicate compatibility matrix. compat[p][q] is true when
// two intents carrying p and q may coexist on the same resource.
//
// MUTATES, DELETES and RENAMES are destructive and exclude everything,
// themselves included. PROVIDES excludes another PROVIDES (two creators of
// the same artifact). CONSUMES and DEPENDS_ON form a read-only cluster.
// The matrix is symmetric.
var compat = [NumPredicates][NumPredicates]bool{
	Provides:  {Provides: false, Consumes: true, Mutates: false, Deletes: false, DependsOn: true, Renames: false},
	Consumes:  {Provides: true, Consumes: true, Mutates: false, Deletes: false, DependsOn: true, Renames: false},
	Mutates:   {Provides: false, Consumes: false, Mutates: false, Deletes: false, DependsOn: false, Renames: false},
	Deletes:   {Provides: false, Consumes: false, Mutates: false, Deletes: false, DependsOn: false, Renames: false},
	DependsOn: {Provides: true, Consumes: true, Mutates: false, Deletes: false, DependsOn: true, Renames: false},
	Renames:   {Provides: false, Consumes: false, Mutates: false, Deletes: false, DependsOn: false, Renames: false},
}

// Compatible reports whether two predicates may coexist on one resource.
// Constant time; invalid predicates are never compatible.
func Compatible(p, q Predicate) bool {
	if !p.Valid() || !q.Valid() {
		return false
	}
	return compat[p][q]
}

// ActiveIntent is a granted intent currently held against a resource,
// as seen by the conflict sweep.
type ActiveIntent struct {
	AgentID   string
	SessionID string
	Triple    Triple
}

// FirstConflict returns the first active intent incompatible with the
// requester's triple, or nil when all holders may coexist with it.
//
// Holders sharing the requester's (agent, session) pair are reentrant and
// skipped before the matrix lookup. Callers are expected to pre-filter
// active to the triple's canonical resource key; entries on other keys are
// ignored here as well.
func FirstConflict(req Triple, sessionID string, active []ActiveIntent) *ActiveIntent {
	key := req.Object.Key()
	for i := range active {
		holder := &active[i]
		if holder.Triple.Object.Key() != key {
			continue
		}
		if holder.AgentID == req.Subject && holder.SessionID == sessionID {
			continue
		}
		if !Compatible(req.Predicate, holder.Triple.Predicate) {
			return holder
		}
	}
	return nil
}
