package pms

// Matches reports whether a candidate version satisfies `op constraint`
// per PMS section 8.3.2.
//
//	<    strictly less than
//	<=   less than or equal
//	=    exactly equal, revision included
//	>=   greater than or equal
//	>    strictly greater than
//	~    same version ignoring revision
//	=*   numeric components start with the constraint's as a prefix
func Matches(candidate Version, op Operator, constraint Version) bool {
	switch op {
	case OpLess:
		return candidate.Compare(constraint) < 0
	case OpLessOrEqual:
		return candidate.Compare(constraint) <= 0
	case OpEqual:
		return candidate.Compare(constraint) == 0
	case OpGreaterOrEqual:
		return candidate.Compare(constraint) >= 0
	case OpGreater:
		return candidate.Compare(constraint) > 0
	case OpApproximate:
		return candidate.WithoutRevision().Compare(constraint.WithoutRevision()) == 0
	case OpEqualGlob:
		return globMatches(candidate, constraint)
	}
	return false
}

// globMatches implements `=*`: the constraint's numeric components must be
// a component-wise prefix of the candidate's, and when the constraint names
// a letter the candidate must carry the same one.
func globMatches(candidate, constraint Version) bool {
	if len(candidate.Numbers) < len(constraint.Numbers) {
		return false
	}
	for i, comp := range constraint.Numbers {
		if !componentEqual(candidate.Numbers[i], comp) {
			return false
		}
	}
	if constraint.Letter != 0 && candidate.Letter != constraint.Letter {
		return false
	}
	return true
}
