package address

import "sort"

// Address is the network address of a node in host:port form.
type Address string

func (a Address) String() string { return string(a) }

// Sort orders addrs lexicographically in place. Host addresses sort the
// same way their string forms do, which keeps iteration order stable
// across nodes.
func Sort(addrs []Address) {
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
}

// Remove returns addrs without any occurrence of target. The original
// slice is not modified.
func Remove(addrs []Address, target Address) []Address {
	filtered := make([]Address, 0, len(addrs))
	for _, a := range addrs {
		if a != target {
			filtered = append(filtered, a)
		}
	}
	return filtered
}
