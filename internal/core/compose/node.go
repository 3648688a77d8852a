package compose

import "gopkg.in/yaml.v3"

// =============================================================================
// YAML Node Helpers
// =============================================================================
//
// Thin accessors over the yaml.v3 node tree. All of them resolve alias nodes
// first so anchored service definitions behave like inline ones.

// resolve follows alias nodes to their anchor target.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// mapValue returns the value node for key in a mapping node, or nil.
func mapValue(m *yaml.Node, key string) *yaml.Node {
	m = resolve(m)
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// setMapValue replaces the value for key in a mapping node, appending the
// pair if the key is absent. Document order of existing keys is preserved.
func setMapValue(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, strNode(key), value)
}

// strNode builds a scalar string node.
func strNode(val string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: val}
}

// newMapNode builds an empty mapping node.
func newMapNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// newSeqNode builds an empty sequence node.
func newSeqNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
}

// seqContains reports whether a sequence node has a scalar entry equal to val.
func seqContains(seq *yaml.Node, val string) bool {
	for _, item := range seq.Content {
		if resolve(item).Value == val {
			return true
		}
	}
	return false
}
