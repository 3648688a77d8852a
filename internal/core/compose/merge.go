package compose

import (
	"sort"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Routing Merge
// =============================================================================

// MergeRouting attaches routing labels to the main service and wires the
// whole document onto the shared proxy network. The edit preserves the
// author's notation: mapping labels stay a mapping, list labels stay a list,
// and existing keys keep their document position.
//
// Top-level the network is declared external so compose attaches to it
// instead of creating a project-scoped one.
func MergeRouting(p *Project, serviceName string, labels map[string]string, networkName string) error {
	svc, err := p.Service(serviceName)
	if err != nil {
		return err
	}

	mergeLabels(svc.Node, labels)
	mergeServiceNetwork(svc.Node, networkName)
	ensureExternalNetwork(p.root, networkName)

	return nil
}

// sortedKeys gives merges a deterministic label order; map iteration would
// shuffle the derived file between runs.
func sortedKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mergeLabels(svc *yaml.Node, labels map[string]string) {
	existing := resolve(mapValue(svc, "labels"))

	switch {
	case existing != nil && existing.Kind == yaml.MappingNode:
		for _, k := range sortedKeys(labels) {
			setMapValue(existing, k, strNode(labels[k]))
		}
	case existing != nil && existing.Kind == yaml.SequenceNode:
		for _, k := range sortedKeys(labels) {
			existing.Content = append(existing.Content, strNode(k+"="+labels[k]))
		}
	default:
		m := newMapNode()
		for _, k := range sortedKeys(labels) {
			setMapValue(m, k, strNode(labels[k]))
		}
		setMapValue(svc, "labels", m)
	}
}

func mergeServiceNetwork(svc *yaml.Node, networkName string) {
	existing := resolve(mapValue(svc, "networks"))

	switch {
	case existing != nil && existing.Kind == yaml.SequenceNode:
		if !seqContains(existing, networkName) {
			existing.Content = append(existing.Content, strNode(networkName))
		}
	case existing != nil && existing.Kind == yaml.MappingNode:
		if mapValue(existing, networkName) == nil {
			setMapValue(existing, networkName, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"})
		}
	default:
		seq := newSeqNode()
		seq.Content = append(seq.Content, strNode(networkName))
		setMapValue(svc, "networks", seq)
	}
}

func ensureExternalNetwork(root *yaml.Node, networkName string) {
	networks := resolve(mapValue(root, "networks"))
	if networks == nil || networks.Kind != yaml.MappingNode {
		networks = newMapNode()
		setMapValue(root, "networks", networks)
	}

	decl := newMapNode()
	setMapValue(decl, "external", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"})
	setMapValue(networks, networkName, decl)
}
