package clientsync

type ignoreKey struct {
	field  Field
	source string
	target string
}

// FilterIgnored drops every mismatch that has a rule with the same field and
// exactly the same two values. Values are not trimmed or case folded here, so
// a rule stops applying as soon as either side is re-typed.
func FilterIgnored(mismatches []Mismatch, rules []IgnoreRule) []Mismatch {
	if len(rules) == 0 {
		return mismatches
	}
	ignored := make(map[ignoreKey]struct{}, len(rules))
	for _, r := range rules {
		ignored[ignoreKey{r.FieldName, r.SourceValue, r.TargetValue}] = struct{}{}
	}
	out := make([]Mismatch, 0, len(mismatches))
	for _, m := range mismatches {
		if _, ok := ignored[ignoreKey{m.FieldName, m.ValueFromClient, m.ValueFromWP}]; ok {
			continue
		}
		out = append(out, m)
	}
	return out
}
