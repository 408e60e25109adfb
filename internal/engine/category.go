package engine

import (
	"sort"

	"tally/internal/core"
)

// Resolver answers category identity and hierarchy questions for budgets and
// reports. References resolve by id first, then by display name
// (case-sensitive): legacy imported rows carry names where newer rows carry
// ids, and both must land on the same category.
type Resolver struct {
	byID   map[string]*core.Category
	byName map[string]*core.Category
}

// NewResolver indexes the category list. Later duplicates of a display name
// do not displace earlier ones.
func NewResolver(categories []core.Category) *Resolver {
	r := &Resolver{
		byID:   make(map[string]*core.Category, len(categories)),
		byName: make(map[string]*core.Category, len(categories)),
	}
	for i := range categories {
		c := &categories[i]
		if _, ok := r.byID[c.ID]; !ok {
			r.byID[c.ID] = c
		}
		if _, ok := r.byName[c.Name]; !ok {
			r.byName[c.Name] = c
		}
	}
	return r
}

// Resolve looks a reference up by id, falling back to display name.
// Returns nil for an empty or unknown reference.
func (r *Resolver) Resolve(ref string) *core.Category {
	if ref == "" {
		return nil
	}
	if c, ok := r.byID[ref]; ok {
		return c
	}
	if c, ok := r.byName[ref]; ok {
		return c
	}
	return nil
}

// Matches reports whether a transaction's category reference falls under a
// budget's category reference.
//
// A match is the same category (same id or same display name, treated as
// equivalent identities) or a direct child of the budget category. Exactly
// one level of nesting counts: a grandchild never matches its grandparent,
// any deeper chain is flattened to the immediate parent. If either side
// fails to resolve the answer is false, so an unmatched budget never
// swallows unrelated spending.
func (r *Resolver) Matches(txRef, budgetRef string) bool {
	txCat := r.Resolve(txRef)
	budgetCat := r.Resolve(budgetRef)
	if txCat == nil || budgetCat == nil {
		return false
	}
	if txCat.ID == budgetCat.ID || txCat.Name == budgetCat.Name {
		return true
	}
	return txCat.ParentID != "" && txCat.ParentID == budgetCat.ID
}

// IDsForBudget returns the budget category's own id plus the ids of its
// direct children, for callers that need an explicit filter set instead of
// the Matches predicate. Unresolvable references yield nil.
func (r *Resolver) IDsForBudget(ref string) []string {
	budgetCat := r.Resolve(ref)
	if budgetCat == nil {
		return nil
	}
	var children []string
	for _, c := range r.byID {
		if c.ParentID == budgetCat.ID && c.ID != budgetCat.ID {
			children = append(children, c.ID)
		}
	}
	sort.Strings(children)
	return append([]string{budgetCat.ID}, children...)
}
