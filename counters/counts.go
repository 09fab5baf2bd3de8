package counters

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Count is the share count of one network.
type Count struct {
	Network string `json:"network"`
	Count   int    `json:"count"`
}

// Counts is a set of counts sorted by network. It marshals to a JSON object
// whose keys keep that order.
type Counts []Count

// Get returns the count for network.
func (cs Counts) Get(network string) (int, bool) {
	for _, c := range cs {
		if c.Network == network {
			return c.Count, true
		}
	}
	return 0, false
}

func (cs Counts) Map() map[string]int {
	m := make(map[string]int, len(cs))
	for _, c := range cs {
		m[c.Network] = c.Count
	}
	return m
}

// Networks returns the network names in order.
func (cs Counts) Networks() []string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Network
	}
	return names
}

func (cs Counts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range cs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c.Network)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(c.Count)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of counts. Keys are sorted on the way in.
func (cs *Counts) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	out := make(Counts, 0, len(m))
	for network, n := range m {
		out = append(out, Count{Network: network, Count: n})
	}
	out.sort()
	*cs = out
	return nil
}

func (cs Counts) sort() {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Network < cs[j].Network })
}
