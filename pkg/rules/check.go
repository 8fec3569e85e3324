package rules

// Check loads the rule set at path like LoadRuleSet and lists every
// problem instead of stopping at the first broken module. The manifest
// selector and omitter are compiled too. The rule set is nil when any
// problem was found.
func Check(path string, res Resolver) (*RuleSet, []error) {
	rs, err := LoadRuleSet(path, res)
	if err != nil {
		return nil, flatten(err)
	}

	var problems []error

	if _, err := rs.Selector(""); err != nil {
		problems = append(problems, err)
	}

	if _, err := rs.Omitter(""); err != nil {
		problems = append(problems, err)
	}

	if len(problems) > 0 {
		return nil, problems
	}

	return rs, nil
}

// flatten splits joined errors into their parts.
func flatten(err error) []error {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []error{err}
	}

	var out []error
	for _, e := range joined.Unwrap() {
		out = append(out, flatten(e)...)
	}

	return out
}
