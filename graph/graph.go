package graph

import (
	"context"
	"fmt"
)

// NodeType represents the type of a node in the graph
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeEnd       NodeType = "end"
	NodeTypeCondition NodeType = "condition"
	NodeTypeCustom    NodeType = "custom"
)

// NodeFunc is the function executed by a node
type NodeFunc[S any] func(context.Context, S) (S, error)

// ConditionFunc evaluates a condition and returns a key into the node's NextMap.
type ConditionFunc[S any] func(context.Context, S) (string, error)

// Node represents a node in the execution graph
type Node[S any] struct {
	Name      string
	Type      NodeType
	Execute   NodeFunc[S]
	Condition ConditionFunc[S]  // Only for condition nodes
	Next      string            // Successor of non-condition nodes
	NextMap   map[string]string // For condition nodes: condition result -> next node
}

// Observer is notified before each node runs. Used for tracing.
type Observer func(ctx context.Context, node string, visit int)

// Graph is a single-cursor state machine over a typed state S.
type Graph[S any] struct {
	nodes     map[string]*Node[S]
	startNode string
	endNode   string
	maxVisits int
	observer  Observer
}

// NewGraph creates a new graph
func NewGraph[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:     make(map[string]*Node[S]),
		maxVisits: 10,
	}
}

func (g *Graph[S]) validateNode(node *Node[S]) {
	if node.Name == "" {
		panic("node name cannot be empty")
	}
	if node.Type == NodeTypeCondition && node.Condition == nil {
		panic(fmt.Sprintf("condition node %s must have non-nil Condition function", node.Name))
	}
}

// AddNode adds a node to the graph
func (g *Graph[S]) AddNode(node *Node[S]) {
	if _, exists := g.nodes[node.Name]; exists {
		panic(fmt.Sprintf("node %s already exists", node.Name))
	}

	g.validateNode(node)
	g.nodes[node.Name] = node

	if node.Type == NodeTypeStart {
		g.startNode = node.Name
	}
	if node.Type == NodeTypeEnd {
		g.endNode = node.Name
	}
}

// SetStartNode sets the start node
func (g *Graph[S]) SetStartNode(name string) {
	if _, exists := g.nodes[name]; !exists {
		panic(fmt.Sprintf("node %s not found", name))
	}
	g.startNode = name
}

// SetEndNode sets the end node
func (g *Graph[S]) SetEndNode(name string) {
	if _, exists := g.nodes[name]; !exists {
		panic(fmt.Sprintf("node %s not found", name))
	}
	g.endNode = name
}

// SetMaxVisits bounds how often any single node may run.
func (g *Graph[S]) SetMaxVisits(maxVisits int) {
	g.maxVisits = maxVisits
}

// SetObserver installs a hook that runs before every node.
func (g *Graph[S]) SetObserver(o Observer) {
	g.observer = o
}

// GetNode returns a node by name
func (g *Graph[S]) GetNode(name string) (*Node[S], error) {
	node, exists := g.nodes[name]
	if !exists {
		return nil, fmt.Errorf("node %s not found", name)
	}
	return node, nil
}

// Execute runs the graph from the start node until an end node returns or a
// node has no successor. The context is checked between nodes; a node that
// runs more than maxVisits times aborts execution.
func (g *Graph[S]) Execute(ctx context.Context, state S) (S, error) {
	if g.startNode == "" {
		return state, fmt.Errorf("start node not set")
	}

	visited := make(map[string]int)
	current := g.startNode
	for {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		node, exists := g.nodes[current]
		if !exists {
			return state, fmt.Errorf("node %s not found", current)
		}

		visited[current]++
		if visited[current] > g.maxVisits {
			return state, fmt.Errorf("infinite loop detected at node %s", current)
		}
		if g.observer != nil {
			g.observer(ctx, current, visited[current])
		}

		if node.Type == NodeTypeEnd {
			if node.Execute == nil {
				return state, nil
			}
			return node.Execute(ctx, state)
		}

		next, newState, err := g.step(ctx, node, state)
		if err != nil {
			return newState, err
		}
		state = newState
		if next == "" {
			return state, nil
		}
		current = next
	}
}

func (g *Graph[S]) step(ctx context.Context, node *Node[S], state S) (string, S, error) {
	if node.Type == NodeTypeCondition {
		result, err := node.Condition(ctx, state)
		if err != nil {
			return "", state, fmt.Errorf("error evaluating condition at node %s: %w", node.Name, err)
		}
		next := node.NextMap[result]
		if next == "" {
			return "", state, fmt.Errorf("no next node for result %q at node %s", result, node.Name)
		}
		return next, state, nil
	}

	if node.Execute != nil {
		newState, err := node.Execute(ctx, state)
		if err != nil {
			return "", newState, fmt.Errorf("error executing node %s: %w", node.Name, err)
		}
		state = newState
	}
	if node.Next == "" && node.Name != g.endNode {
		return "", state, fmt.Errorf("no next node specified for node %s", node.Name)
	}
	return node.Next, state, nil
}

// Builder helps build graphs fluently
type Builder[S any] struct {
	graph *Graph[S]
}

// NewBuilder creates a new graph builder
func NewBuilder[S any]() *Builder[S] {
	return &Builder[S]{graph: NewGraph[S]()}
}

// AddNode adds a node to the graph
func (b *Builder[S]) AddNode(name string, nodeType NodeType, execute NodeFunc[S]) *Builder[S] {
	b.graph.AddNode(&Node[S]{
		Name:    name,
		Type:    nodeType,
		Execute: execute,
	})
	return b
}

// AddConditionNode adds a condition node
func (b *Builder[S]) AddConditionNode(name string, condition ConditionFunc[S], nextMap map[string]string) *Builder[S] {
	b.graph.AddNode(&Node[S]{
		Name:      name,
		Type:      NodeTypeCondition,
		Condition: condition,
		NextMap:   nextMap,
	})
	return b
}

// AddEdge connects two nodes
func (b *Builder[S]) AddEdge(from, to string) *Builder[S] {
	node, exists := b.graph.nodes[from]
	if !exists {
		panic(fmt.Sprintf("node %s not found", from))
	}
	node.Next = to
	return b
}

// SetStart sets the start node
func (b *Builder[S]) SetStart(name string) *Builder[S] {
	b.graph.SetStartNode(name)
	return b
}

// SetEnd sets the end node
func (b *Builder[S]) SetEnd(name string) *Builder[S] {
	b.graph.SetEndNode(name)
	return b
}

// SetMaxVisits sets the maximum number of visits to a node
func (b *Builder[S]) SetMaxVisits(maxVisits int) *Builder[S] {
	b.graph.SetMaxVisits(maxVisits)
	return b
}

// SetObserver installs a per-node hook.
func (b *Builder[S]) SetObserver(o Observer) *Builder[S] {
	b.graph.SetObserver(o)
	return b
}

// Build returns the constructed graph
func (b *Builder[S]) Build() *Graph[S] {
	return b.graph
}
