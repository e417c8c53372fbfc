package model

import (
	"fmt"
	"sync"
)

// LogicalNode groups a set of SVCBs under a named IEC 61850 logical node
// (e.g. "MMXU1" for a measurement unit, "PTOC1" for overcurrent
// protection). Logical nodes exist purely for addressing/organization;
// no behavior is attached to the node itself. SVCBs are held in an
// ordered, append-only slice with a name index for O(1) lookup, so
// iteration always reflects registration order.
type LogicalNode struct {
	mu    sync.RWMutex
	name  string
	svcbs []*SVCB
	index map[string]int
}

func newLogicalNode(name string) *LogicalNode {
	return &LogicalNode{name: name, index: make(map[string]int)}
}

// Name returns the logical node's name.
func (n *LogicalNode) Name() string {
	return n.name
}

// AddSVCB registers a new control block under this node. It returns an
// error if a control block with the same name is already registered.
func (n *LogicalNode) AddSVCB(name string) (*SVCB, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.index[name]; exists {
		return nil, fmt.Errorf("model: SVCB %q already exists on node %q", name, n.name)
	}
	s := NewSVCB(name)
	n.index[name] = len(n.svcbs)
	n.svcbs = append(n.svcbs, s)
	return s, nil
}

// SVCB looks up a control block by name.
func (n *LogicalNode) SVCB(name string) (*SVCB, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	i, ok := n.index[name]
	if !ok {
		return nil, false
	}
	return n.svcbs[i], true
}

// SVCBs returns every control block registered on this node, in the
// order they were added.
func (n *LogicalNode) SVCBs() []*SVCB {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*SVCB, len(n.svcbs))
	copy(out, n.svcbs)
	return out
}

// IedModel is the root of an Intelligent Electronic Device's
// configuration tree: an ordered set of named logical nodes, each
// holding an ordered set of SVCBs. The tree is append-only: it offers no
// way to remove a logical node or control block. IedServer.Start
// validates the tree but takes no snapshot of it, so control blocks
// added after Start are still accepted.
type IedModel struct {
	mu    sync.RWMutex
	name  string
	lns   []*LogicalNode
	index map[string]int
}

// NewIedModel creates an empty IED model identified by name (its IED
// name, e.g. "IED1").
func NewIedModel(name string) *IedModel {
	return &IedModel{name: name, index: make(map[string]int)}
}

// Name returns the IED's name.
func (m *IedModel) Name() string {
	return m.name
}

// AddLogicalNode creates and registers a new logical node. It returns an
// error if a node with the same name already exists.
func (m *IedModel) AddLogicalNode(name string) (*LogicalNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.index[name]; exists {
		return nil, fmt.Errorf("model: logical node %q already exists on IED %q", name, m.name)
	}
	n := newLogicalNode(name)
	m.index[name] = len(m.lns)
	m.lns = append(m.lns, n)
	return n, nil
}

// LogicalNode looks up a logical node by name.
func (m *IedModel) LogicalNode(name string) (*LogicalNode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[name]
	if !ok {
		return nil, false
	}
	return m.lns[i], true
}

// LogicalNodes returns every logical node registered on this IED, in
// the order they were added.
func (m *IedModel) LogicalNodes() []*LogicalNode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*LogicalNode, len(m.lns))
	copy(out, m.lns)
	return out
}

// AllSVCBs walks every logical node in registration order and returns
// the full flat set of control blocks configured on this IED, in the
// same stable order.
func (m *IedModel) AllSVCBs() []*SVCB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*SVCB
	for _, n := range m.lns {
		out = append(out, n.SVCBs()...)
	}
	return out
}

// Validate checks every control block in the tree and returns the first
// error encountered, wrapped with the owning logical node's name.
func (m *IedModel) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.lns {
		for _, s := range n.SVCBs() {
			if err := s.Validate(); err != nil {
				return fmt.Errorf("model: logical node %q: %w", n.name, err)
			}
		}
	}
	return nil
}
