package history

// Plan is the set of store mutations a reconciliation must apply.
type Plan struct {
	// ToAdd holds ids that are used but not yet stored.
	ToAdd Index
	// ToRemove holds ids that are stored but no longer used.
	ToRemove Index
}

// Empty reports whether the plan changes no records.
func (p Plan) Empty() bool {
	return p.ToAdd.Len() == 0 && p.ToRemove.Len() == 0
}

// Classify compares the ids known to be stored (prior) with the ids currently
// referenced (used). Ids present in both, or in neither, need no action.
func Classify(prior, used Index) Plan {
	plan := Plan{ToAdd: NewIndex(), ToRemove: NewIndex()}
	for id := range used.Union(prior) {
		inUse, stored := used.Has(id), prior.Has(id)
		switch {
		case inUse && !stored:
			plan.ToAdd.Add(id)
		case stored && !inUse:
			plan.ToRemove.Add(id)
		}
	}
	return plan
}
