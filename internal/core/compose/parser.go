package compose

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"
)

// MainServiceLabel marks a service as the routing target in multi-service
// stacks. Value must be the string "true", in either mapping or list label
// notation.
const MainServiceLabel = "milkcrate.main_service"

// =============================================================================
// Project
// =============================================================================

// Project is a parsed compose document. It wraps the yaml node tree so that
// edits preserve the original structure when the document is marshalled back.
type Project struct {
	doc  *yaml.Node // document node, kept for marshalling
	root *yaml.Node // top-level mapping
}

// ServiceRef is a named service definition in document order.
type ServiceRef struct {
	Name string
	Node *yaml.Node
}

// Parse parses compose YAML and validates its basic structure: a top-level
// mapping with a non-empty services section whose entries are mappings.
func Parse(data []byte) (*Project, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyInput
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, NewParseError("", err.Error(), ErrInvalidYAML)
	}
	if len(doc.Content) == 0 {
		return nil, ErrEmptyInput
	}

	root := resolve(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}

	services := mapValue(root, "services")
	if services == nil {
		return nil, ErrNoServicesSection
	}
	services = resolve(services)
	if services.Kind != yaml.MappingNode || len(services.Content) == 0 {
		return nil, ErrNoServices
	}
	for i := 0; i+1 < len(services.Content); i += 2 {
		name := services.Content[i].Value
		if resolve(services.Content[i+1]).Kind != yaml.MappingNode {
			return nil, NewParseError("services."+name, "service must be a mapping", ErrServiceNotMapping)
		}
	}

	return &Project{doc: &doc, root: root}, nil
}

// Services returns the service definitions in document order.
func (p *Project) Services() []ServiceRef {
	services := resolve(mapValue(p.root, "services"))
	refs := make([]ServiceRef, 0, len(services.Content)/2)
	for i := 0; i+1 < len(services.Content); i += 2 {
		refs = append(refs, ServiceRef{
			Name: services.Content[i].Value,
			Node: resolve(services.Content[i+1]),
		})
	}
	return refs
}

// Service returns the named service definition.
func (p *Project) Service(name string) (ServiceRef, error) {
	for _, ref := range p.Services() {
		if ref.Name == name {
			return ref, nil
		}
	}
	return ServiceRef{}, NewParseError("services."+name, "service not found", ErrServiceNotFound)
}

// MainService selects the service Traefik should route to.
//
// Priority order:
//  1. Service labelled milkcrate.main_service=true (mapping or list notation)
//  2. First service in document order
func (p *Project) MainService() ServiceRef {
	services := p.Services()
	for _, ref := range services {
		if hasMainServiceLabel(ref.Node) {
			return ref
		}
	}
	return services[0]
}

func hasMainServiceLabel(svc *yaml.Node) bool {
	labels := resolve(mapValue(svc, "labels"))
	if labels == nil {
		return false
	}
	switch labels.Kind {
	case yaml.MappingNode:
		v := mapValue(labels, MainServiceLabel)
		return v != nil && resolve(v).Value == "true"
	case yaml.SequenceNode:
		return seqContains(labels, MainServiceLabel+"=true")
	}
	return false
}

// Marshal serializes the document with two-space indentation.
func (p *Project) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p.doc.Content[0]); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ServiceNames returns all service names in document order.
func (p *Project) ServiceNames() []string {
	services := p.Services()
	names := make([]string, 0, len(services))
	for _, ref := range services {
		names = append(names, ref.Name)
	}
	return names
}

// String implements fmt.Stringer for logging.
func (p *Project) String() string {
	return "compose project [" + strings.Join(p.ServiceNames(), ", ") + "]"
}
