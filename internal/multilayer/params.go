package multilayer

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Params returns the 1×N parameter vector. It aliases the arena: writes to
// it are visible through every layer view and vice versa.
func (n *Network) Params() *mat.Dense {
	if !n.initialized {
		return nil
	}
	return n.store.Params()
}

// SetParams overwrites every parameter from m in canonical order.
// SetParams(Params()) leaves the network unchanged.
func (n *Network) SetParams(m mat.Matrix) error {
	if err := n.requireInit("set params"); err != nil {
		return err
	}
	if err := n.store.SetParams(m); err != nil {
		return fmt.Errorf("multilayer: %w", err)
	}
	return nil
}

// Param returns the view of the parameter with composite key "<layer>_<name>".
func (n *Network) Param(key string) (*mat.Dense, error) {
	if err := n.requireInit("param"); err != nil {
		return nil, err
	}
	p, err := n.store.Param(key)
	if err != nil {
		return nil, fmt.Errorf("multilayer: %w", err)
	}
	return p, nil
}

// SetParam copies m into the parameter with composite key "<layer>_<name>".
func (n *Network) SetParam(key string, m mat.Matrix) error {
	if err := n.requireInit("set param"); err != nil {
		return err
	}
	if err := n.store.SetParam(key, m); err != nil {
		return fmt.Errorf("multilayer: %w", err)
	}
	return nil
}

// ParamTable returns every parameter view keyed by composite key.
func (n *Network) ParamTable() map[string]*mat.Dense {
	if !n.initialized {
		return nil
	}
	keys := n.store.Keys()
	table := make(map[string]*mat.Dense, len(keys))
	for _, k := range keys {
		table[k], _ = n.store.Param(k)
	}
	return table
}

// ParamKeys returns the composite keys in canonical order.
func (n *Network) ParamKeys() []string {
	if !n.initialized {
		return nil
	}
	return n.store.Keys()
}

// NumParams counts every parameter, pretrain-only ones included.
func (n *Network) NumParams() int {
	total := 0
	for _, l := range n.layers {
		for _, sp := range l.ParamSpecs() {
			total += sp.Size()
		}
	}
	return total
}
