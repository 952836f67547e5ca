package ddnsd

import (
	"strings"

	"github.com/pkg/errors"
)

// Apex is the prefix used for records at the zone root.
const Apex = "@"

// SplitDomain splits a fully qualified name into the prefix managed by
// this tool and the registrable root (the last two labels). Names that
// are exactly the root yield the apex prefix "@".
func SplitDomain(name string) (prefix, root string, err error) {
	name = strings.TrimSuffix(strings.ToLower(name), ".")
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return "", "", errors.Errorf("illegal dns name %q", name)
	}
	for _, l := range labels {
		if l == "" {
			return "", "", errors.Errorf("illegal dns name %q", name)
		}
	}
	root = strings.Join(labels[len(labels)-2:], ".")
	if len(labels) == 2 {
		return Apex, root, nil
	}
	return strings.Join(labels[:len(labels)-2], "."), root, nil
}

// JoinDomain is the inverse of SplitDomain: it builds the fully
// qualified record name for a prefix within root.
func JoinDomain(prefix, root string) string {
	if prefix == Apex || prefix == "" {
		return root
	}
	return prefix + "." + root
}
