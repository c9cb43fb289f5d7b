// Package kernel reads the running kernel version once and answers
// feature-gate questions against it.
package kernel

type Version struct {
	Major  int
	Minor  int
	Patch  int
	Flavor string

	invalid bool
}

func (v Version) Invalid() bool {
	return v.invalid
}

func Compare(a, b Version) int {
	if a.Major != b.Major {
		if a.Major > b.Major {
			return 1
		}
		return -1
	}
	if a.Minor != b.Minor {
		if a.Minor > b.Minor {
			return 1
		}
		return -1
	}
	if a.Patch != b.Patch {
		if a.Patch > b.Patch {
			return 1
		}
		return -1
	}
	return 0
}

// Enable reports whether the running kernel is at least major.minor.patch.
// An unreadable or unparsable version disables the gated feature.
func Enable(major int, minor int, patch int) bool {
	v := Get()
	if v.invalid {
		return false
	}
	return Compare(v, Version{Major: major, Minor: minor, Patch: patch}) >= 0
}
