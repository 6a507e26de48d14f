package types

import (
	"strconv"
	"strings"
)

// Version is a full package version split into its components.
type Version struct {
	Epoch  string
	Pkgver string
	Pkgrel string
}

// ParseVersion splits [epoch:]pkgver[-pkgrel].  A missing epoch is
// reported as "0".
func ParseVersion(s string) Version {
	v := Version{Epoch: "0"}
	if i := strings.IndexByte(s, ':'); i >= 0 && isDigits(s[:i]) {
		if i > 0 {
			v.Epoch = s[:i]
		}
		s = s[i+1:]
	}
	if i := strings.LastIndexByte(s, '-'); i >= 0 {
		v.Pkgrel = s[i+1:]
		s = s[:i]
	}
	v.Pkgver = s
	return v
}

// String renders the version in the canonical full form.
func (v Version) String() string {
	epoch := v.Epoch
	if epoch == "0" {
		epoch = ""
	}
	return FullVersion(epoch, v.Pkgver, v.Pkgrel)
}

// FullVersion assembles a version string from its parts.  The epoch
// is omitted when empty.
func FullVersion(epoch, pkgver, pkgrel string) string {
	var b strings.Builder
	if epoch != "" {
		b.WriteString(epoch)
		b.WriteByte(':')
	}
	b.WriteString(pkgver)
	if pkgrel != "" {
		b.WriteByte('-')
		b.WriteString(pkgrel)
	}
	return b.String()
}

// NextRelease returns the release that forces a rebuild of an
// otherwise identical version: "1" becomes "1.1" and "1.1" becomes
// "1.2".
func NextRelease(pkgrel string) string {
	major, minor, found := strings.Cut(pkgrel, ".")
	if !found {
		return pkgrel + ".1"
	}
	n, err := strconv.Atoi(minor)
	if err != nil {
		return pkgrel + ".1"
	}
	return major + "." + strconv.Itoa(n+1)
}

// VerCmp compares two full versions the way pacman does.  It returns
// -1, 0 or 1 when a is older than, equal to or newer than b.  The
// epoch always wins, then pkgver, and the pkgrel is only consulted
// when both sides carry one.
func VerCmp(a, b string) int {
	if a == b {
		return 0
	}
	va, vb := ParseVersion(a), ParseVersion(b)
	if ret := segmentCmp(va.Epoch, vb.Epoch); ret != 0 {
		return ret
	}
	if ret := segmentCmp(va.Pkgver, vb.Pkgver); ret != 0 {
		return ret
	}
	if va.Pkgrel != "" && vb.Pkgrel != "" {
		return segmentCmp(va.Pkgrel, vb.Pkgrel)
	}
	return 0
}

// segmentCmp walks both strings in alternating runs of digits and
// letters.  Numeric runs compare numerically and are always newer
// than alpha runs.
func segmentCmp(a, b string) int {
	if a == b {
		return 0
	}
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		si, sj := i, j
		for i < len(a) && !isAlnum(a[i]) {
			i++
		}
		for j < len(b) && !isAlnum(b[j]) {
			j++
		}
		if i >= len(a) || j >= len(b) {
			break
		}
		if i-si != j-sj {
			if i-si < j-sj {
				return -1
			}
			return 1
		}

		ei, ej := i, j
		numeric := isDigit(a[i])
		if numeric {
			for ei < len(a) && isDigit(a[ei]) {
				ei++
			}
			for ej < len(b) && isDigit(b[ej]) {
				ej++
			}
		} else {
			for ei < len(a) && isAlpha(a[ei]) {
				ei++
			}
			for ej < len(b) && isAlpha(b[ej]) {
				ej++
			}
		}

		segA, segB := a[i:ei], b[j:ej]
		if segB == "" {
			if numeric {
				return 1
			}
			return -1
		}
		if numeric {
			segA = strings.TrimLeft(segA, "0")
			segB = strings.TrimLeft(segB, "0")
			if len(segA) != len(segB) {
				if len(segA) > len(segB) {
					return 1
				}
				return -1
			}
		}
		if c := strings.Compare(segA, segB); c != 0 {
			return c
		}
		i, j = ei, ej
	}

	switch {
	case i >= len(a) && j >= len(b):
		return 0
	case (i >= len(a) && !isAlpha(b[j])) || (i < len(a) && isAlpha(a[i])):
		// a trailing alpha never beats an empty string
		return -1
	default:
		return 1
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isAlnum(c byte) bool { return isDigit(c) || isAlpha(c) }
