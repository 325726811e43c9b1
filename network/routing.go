package network

// Table is a routing table that can find the next-hop node according to the
// final destination.
type Table interface {
	FindNextHop(dst string) string
	DefineRoute(finalDst, nextHop string)
}

// NewTable creates a new Table.
func NewTable() Table {
	t := &table{}
	t.t = make(map[string]string)

	return t
}

type table struct {
	t map[string]string
}

// FindNextHop returns an empty name when dst is unreachable.
func (t table) FindNextHop(dst string) string {
	return t.t[dst]
}

func (t *table) DefineRoute(finalDst, nextHop string) {
	t.t[finalDst] = nextHop
}
