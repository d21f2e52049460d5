package rules

import (
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// minLoaderVersion is the dotted-fragment tuple neti requires, compared
// lexically rather than numerically - see compareVersionLexical.
var minLoaderVersion = []string{"1", "2", "10"}

var versionPattern = regexp.MustCompile(`v?(\d+(?:\.\d+)+)`)

// probeVersion invokes the loader binary's -V flag and extracts its
// dotted version fragments, e.g. "iptables v1.8.7 (legacy)" -> ["1","8","7"].
func probeVersion(binaryPath string) ([]string, error) {
	out, err := exec.Command(binaryPath, "-V").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("invoking %s -V: %w", binaryPath, err)
	}
	m := versionPattern.FindStringSubmatch(string(out))
	if m == nil {
		return nil, fmt.Errorf("could not parse version from %q", string(out))
	}
	return strings.Split(m[1], "."), nil
}

// compareVersionLexical compares two dotted-fragment version tuples
// fragment-by-fragment as strings, not as integers. This reproduces the
// original implementation's quirk of misranking e.g. "1.10" below "1.2"
// (string "10" < string "2"), preserved deliberately per an open
// question in the distilled spec rather than silently fixed.
func compareVersionLexical(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] == b[i] {
			continue
		}
		if a[i] < b[i] {
			return -1
		}
		return 1
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// checkMinVersion fetches binaryPath's reported version and compares it
// against minLoaderVersion, returning ErrInvalidPacketFilterVersion if
// it ranks below the minimum.
func checkMinVersion(binaryPath string) error {
	got, err := probeVersion(binaryPath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPacketFilterVersion, err)
	}
	if compareVersionLexical(got, minLoaderVersion) < 0 {
		return fmt.Errorf("%w: found %s, require >= %s",
			ErrInvalidPacketFilterVersion, strings.Join(got, "."), strings.Join(minLoaderVersion, "."))
	}
	return nil
}

// parseVersionInt converts dotted version fragments to integers. It is
// used only by tests, since the production comparison is deliberately
// lexical.
func parseVersionInt(fragments []string) ([]int, error) {
	out := make([]int, len(fragments))
	for i, f := range fragments {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
