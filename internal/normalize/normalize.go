// Package normalize flattens upstream payloads into ordered record lists.
//
// GraphQL payloads go through an ordered list of connection matchers; the
// first matcher that recognizes the payload decides the result. Generic JSON
// payloads go through a fixed fallback chain. Both walk the raw bytes with
// gjson so that "first key" means first in the document, not first in a
// randomized map iteration.
package normalize

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/onronder/p-958660-sub000/internal/models"
)

// Matcher recognizes one response shape in a GraphQL data object.
type Matcher struct {
	Name string
	// Match returns ok=false when the shape is absent. A matched shape with
	// no elements returns an empty, non-nil slice.
	Match func(data gjson.Result) (records []models.Record, ok bool)
}

// GraphQLMatchers is the priority order used by Records.
var GraphQLMatchers = []Matcher{
	{Name: "connection_edges", Match: MatchEdges},
	{Name: "connection_nodes", Match: MatchNodes},
}

// Records extracts the first connection in a GraphQL data object.
// It returns an empty slice when nothing matches or the input is not an object.
func Records(data []byte) []models.Record {
	return RecordsWith(GraphQLMatchers, data)
}

// RecordsWith runs matchers in order over data.
func RecordsWith(matchers []Matcher, data []byte) []models.Record {
	if !gjson.ValidBytes(data) {
		return []models.Record{}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return []models.Record{}
	}
	for _, m := range matchers {
		if records, ok := m.Match(root); ok {
			return records
		}
	}
	return []models.Record{}
}

// MatchEdges finds the first top-level field shaped { edges: [ { node } ] }
// and returns the nodes.
func MatchEdges(data gjson.Result) ([]models.Record, bool) {
	return firstConnection(data, "edges", func(e gjson.Result) gjson.Result { return e.Get("node") })
}

// MatchNodes finds the first top-level field shaped { nodes: [ ... ] }.
func MatchNodes(data gjson.Result) ([]models.Record, bool) {
	return firstConnection(data, "nodes", func(n gjson.Result) gjson.Result { return n })
}

func firstConnection(data gjson.Result, field string, pick func(gjson.Result) gjson.Result) ([]models.Record, bool) {
	var (
		records []models.Record
		found   bool
	)
	data.ForEach(func(_, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		list := value.Get(field)
		if !list.IsArray() {
			return true
		}
		found = true
		records = make([]models.Record, 0, len(list.Array()))
		for _, item := range list.Array() {
			if rec, ok := toRecord(pick(item)); ok {
				records = append(records, rec)
			}
		}
		return false
	})
	return records, found
}

var arrayFields = []string{"data", "results", "items", "records"}

// Payload normalizes a non-GraphQL JSON body. Checked in order: the payload
// is itself an array; an "orders" field; a data/results/items/records array;
// otherwise the object is wrapped as a single record.
func Payload(body []byte) []models.Record {
	if !gjson.ValidBytes(body) {
		return []models.Record{}
	}
	root := gjson.ParseBytes(body)

	if root.IsArray() {
		return elements(root)
	}
	if !root.IsObject() {
		return []models.Record{}
	}
	if orders := root.Get("orders"); orders.Exists() {
		if orders.IsArray() {
			return elements(orders)
		}
		return single(orders)
	}
	for _, field := range arrayFields {
		if v := root.Get(field); v.IsArray() {
			return elements(v)
		}
	}
	return single(root)
}

func elements(arr gjson.Result) []models.Record {
	items := arr.Array()
	out := make([]models.Record, 0, len(items))
	for _, item := range items {
		if rec, ok := toRecord(item); ok {
			out = append(out, rec)
		} else if item.Exists() && item.Type != gjson.Null {
			out = append(out, models.Record{"value": item.Value()})
		}
	}
	return out
}

func single(v gjson.Result) []models.Record {
	if rec, ok := toRecord(v); ok {
		return []models.Record{rec}
	}
	return []models.Record{}
}

func toRecord(v gjson.Result) (models.Record, bool) {
	if !v.IsObject() {
		return nil, false
	}
	var rec models.Record
	if err := json.Unmarshal([]byte(v.Raw), &rec); err != nil {
		return nil, false
	}
	return rec, true
}

// AtPath returns the objects found at a gjson path such as
// "customer.orders.edges.#.node". Anything that is not an array of objects
// yields an empty slice.
func AtPath(data []byte, path string) []models.Record {
	if !gjson.ValidBytes(data) {
		return []models.Record{}
	}
	res := gjson.GetBytes(data, path)
	if !res.IsArray() {
		return []models.Record{}
	}
	items := res.Array()
	out := make([]models.Record, 0, len(items))
	for _, item := range items {
		if rec, ok := toRecord(item); ok {
			out = append(out, rec)
		}
	}
	return out
}
