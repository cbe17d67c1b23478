package election

// PartyUnion returns every party name seen across results, in first-seen order.
func PartyUnion(results []PrecinctResult) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range results {
		for _, p := range r.Parties {
			if _, ok := seen[p.Name]; ok {
				continue
			}
			seen[p.Name] = struct{}{}
			out = append(out, p.Name)
		}
	}
	return out
}

// SchemaDivergence lists the codes of precincts whose party set differs from
// the union. An empty result means every precinct carries the same parties.
func SchemaDivergence(results []PrecinctResult) []string {
	union := PartyUnion(results)
	var diverging []string
	for _, r := range results {
		if len(r.Parties) != len(union) {
			diverging = append(diverging, r.Code)
			continue
		}
		for _, name := range union {
			if _, ok := r.Parties.Get(name); !ok {
				diverging = append(diverging, r.Code)
				break
			}
		}
	}
	return diverging
}
