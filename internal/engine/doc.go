// Package engine implements a directed acyclic graph of computation
// nodes that jointly evaluate a molecular potential energy and, by
// reverse-mode differentiation, its gradient with respect to every
// atomic position.
//
// Nodes come in two kinds. Coordinate nodes produce a (width, n_elem)
// block of derived coordinates and own a slot machine that ledgers
// which downstream consumers depend on which elements. Potential nodes
// produce a scalar energy term. A forward pass runs nodes in ascending
// dependency level; the reverse pass runs in the mirrored order,
// draining sensitivities deposited into slot-machine accumulators back
// onto each node's inputs until the position node's sens buffer holds
// the full gradient.
//
// Concrete node kinds register themselves with the process-wide
// creation registry (see RegisterNode) and are instantiated by name
// prefix from configuration groups.
package engine
