package cmd

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"sigs.k8s.io/yaml"

	"github.com/tupleflow/tupleflow/pkg/reachability"
	"github.com/tupleflow/tupleflow/pkg/testutils"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// Facts is the edge workload of a facts file: every edge is inserted in order, then every
// retraction is applied in order.
//
//	edges:
//	  - [1, 2]
//	  - {source: 2, target: 3}
//	retract:
//	  - [1, 2]
type Facts struct {
	Edges   []reachability.Pair
	Retract []reachability.Pair
}

// Ops returns the facts as a sequence of edge operations.
func (f *Facts) Ops() []testutils.EdgeOp {
	ops := make([]testutils.EdgeOp, 0, len(f.Edges)+len(f.Retract))
	for _, p := range f.Edges {
		ops = append(ops, testutils.EdgeOp{Direction: tuple.Insert, Source: p.Source, Target: p.Target})
	}
	for _, p := range f.Retract {
		ops = append(ops, testutils.EdgeOp{Direction: tuple.Retract, Source: p.Source, Target: p.Target})
	}
	return ops
}

// LoadFacts reads and parses the YAML or JSON facts file at path.
func LoadFacts(path string) (*Facts, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read facts file: %w", err)
	}
	return ParseFacts(raw)
}

// ParseFacts parses a facts document. JSON is valid YAML, so both are accepted.
func ParseFacts(raw []byte) (*Facts, error) {
	doc, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse facts: %w", err)
	}
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("failed to parse facts: invalid document")
	}
	root := gjson.ParseBytes(doc)
	if root.Type != gjson.Null && !root.IsObject() {
		return nil, fmt.Errorf("facts must be a mapping with 'edges' and 'retract' keys")
	}

	facts := &Facts{}
	if facts.Edges, err = parsePairs(root.Get("edges"), "edges"); err != nil {
		return nil, err
	}
	if facts.Retract, err = parsePairs(root.Get("retract"), "retract"); err != nil {
		return nil, err
	}
	return facts, nil
}

func parsePairs(list gjson.Result, key string) ([]reachability.Pair, error) {
	if !list.Exists() || list.Type == gjson.Null {
		return nil, nil
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("'%s' must be a list of edges", key)
	}

	var (
		pairs []reachability.Pair
		err   error
	)
	list.ForEach(func(i, entry gjson.Result) bool {
		var s, t gjson.Result
		switch {
		case entry.IsArray():
			items := entry.Array()
			if len(items) != 2 {
				err = fmt.Errorf("'%s[%d]' must hold exactly two nodes", key, i.Int())
				return false
			}
			s, t = items[0], items[1]
		case entry.IsObject():
			s, t = entry.Get("source"), entry.Get("target")
		default:
			err = fmt.Errorf("'%s[%d]' must be a [source, target] pair or a mapping", key, i.Int())
			return false
		}

		var p reachability.Pair
		if p.Source, err = parseNode(s, key, i.Int(), "source"); err != nil {
			return false
		}
		if p.Target, err = parseNode(t, key, i.Int(), "target"); err != nil {
			return false
		}
		pairs = append(pairs, p)
		return true
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

func parseNode(v gjson.Result, key string, i int64, field string) (int64, error) {
	if v.Type != gjson.Number || float64(v.Int()) != v.Num || v.Int() < 0 {
		return 0, fmt.Errorf("'%s[%d]' %s must be a non-negative integer, got %q", key, i, field, v.Raw)
	}
	return v.Int(), nil
}
