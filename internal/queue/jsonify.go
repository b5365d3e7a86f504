// SPDX-License-Identifier: MIT

package queue

import jsoniter "github.com/json-iterator/go"

// EntrySummary is one row of a DebugJSON dump: a non-normative
// projection of a queue entry's shape, independent of the binary
// snapshot wire format (SPEC_FULL.md §4 item 7).
type EntrySummary struct {
	Kind     string `json:"kind"`
	Type     string `json:"type,omitempty"`
	Category string `json:"category,omitempty"`
}

func (c Category) String() string {
	switch c {
	case CategoryFundamental:
		return "fundamental"
	case CategorySerializedData:
		return "serialized"
	case CategoryPodPreferred:
		return "pod"
	default:
		return "unknown"
	}
}

// DebugJSON renders the queue's entries, in order, as a JSON array —
// grounded on the teacher's MarshalJSON dump style (jsonify.go), using
// github.com/json-iterator/go instead of encoding/json per the domain
// stack wiring (SPEC_FULL.md §2).
func (q *NodeData) DebugJSON() ([]byte, error) {
	rows := make([]EntrySummary, 0, len(q.entries))
	for _, e := range q.entries {
		switch e.kind {
		case kindValue:
			typ := ""
			if e.typ != nil {
				typ = e.typ.String()
			}
			rows = append(rows, EntrySummary{Kind: "value", Type: typ, Category: e.category.String()})
		case kindNested:
			rows = append(rows, EntrySummary{Kind: "nested"})
		case kindExecution:
			rows = append(rows, EntrySummary{Kind: "execution"})
		}
	}
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(rows)
}
