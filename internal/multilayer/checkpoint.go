package multilayer

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/conf"
	"github.com/born-ml/multilayer/internal/layers"
	"github.com/born-ml/multilayer/internal/serialization"
)

// Checkpoint captures the network for serialization: configuration,
// parameters, batch normalization statistics, pretraining progress, the
// iteration counter and, with saveUpdater, the updater accumulators.
func (n *Network) Checkpoint(saveUpdater bool) (*serialization.Checkpoint, error) {
	if err := n.requireInit("checkpoint"); err != nil {
		return nil, err
	}
	cfgJSON, err := json.Marshal(n.cfg)
	if err != nil {
		return nil, fmt.Errorf("multilayer: encode config: %w", err)
	}

	c := &serialization.Checkpoint{
		ModelType: ModelType,
		ModelID:   n.modelID,
		Iteration: n.iteration,
		Config:    cfgJSON,
	}
	for _, key := range n.store.Keys() {
		v, _ := n.store.Lookup(key)
		c.Params = append(c.Params, serialization.Tensor{
			Name:  key,
			Shape: []int{v.Spec.Rows, v.Spec.Cols},
			Data:  append([]float64(nil), v.Param.RawMatrix().Data...),
		})
	}
	for i, l := range n.layers {
		if l.Config().Pretrain && !l.PretrainActive() {
			c.PretrainDone = append(c.PretrainDone, i)
		}
		if s, ok := l.(layers.Stateful); ok {
			c.State = append(c.State, tensors(i, s.State())...)
		}
		if saveUpdater {
			c.Updater = append(c.Updater, tensors(i, n.updaters[i].StateDict())...)
		}
	}
	return c, nil
}

// tensors converts a state map into tensors named "<layer>.<key>" in key order.
func tensors(layer int, state map[string][]float64) []serialization.Tensor {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]serialization.Tensor, len(keys))
	for i, k := range keys {
		out[i] = serialization.Tensor{
			Name:  strconv.Itoa(layer) + "." + k,
			Shape: []int{len(state[k])},
			Data:  state[k],
		}
	}
	return out
}

// groupByLayer splits "<layer>.<key>" tensors into per-layer state maps.
func groupByLayer(ts []serialization.Tensor, numLayers int) (map[int]map[string][]float64, error) {
	out := make(map[int]map[string][]float64)
	for _, t := range ts {
		idx, key, ok := strings.Cut(t.Name, ".")
		layer, err := strconv.Atoi(idx)
		if !ok || err != nil || layer < 0 || layer >= numLayers {
			return nil, fmt.Errorf("multilayer: restore: malformed state tensor %q", t.Name)
		}
		if out[layer] == nil {
			out[layer] = make(map[string][]float64)
		}
		out[layer][key] = t.Data
	}
	return out, nil
}

// FromCheckpoint rebuilds a network saved with Checkpoint.
func FromCheckpoint(c *serialization.Checkpoint, opts ...Option) (*Network, error) {
	if c.ModelType != ModelType {
		return nil, fmt.Errorf("multilayer: restore: %w: model type %q", ErrUnsupported, c.ModelType)
	}
	var cfg conf.NetworkConfig
	if err := json.Unmarshal(c.Config, &cfg); err != nil {
		return nil, fmt.Errorf("multilayer: decode config: %w", err)
	}
	n, err := New(&cfg, append([]Option{WithModelID(c.ModelID)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := n.Init(); err != nil {
		return nil, err
	}

	if len(c.Params) != len(n.store.Keys()) {
		return nil, &ShapeError{
			Op:   "multilayer: restore",
			Want: fmt.Sprintf("%d parameter tensors", len(n.store.Keys())),
			Got:  fmt.Sprintf("%d parameter tensors", len(c.Params)),
		}
	}
	for _, t := range c.Params {
		if len(t.Shape) != 2 {
			return nil, fmt.Errorf("multilayer: restore %s: %w: shape %v", t.Name, ErrShapeMismatch, t.Shape)
		}
		if err := n.store.SetParam(t.Name, mat.NewDense(t.Shape[0], t.Shape[1], t.Data)); err != nil {
			return nil, fmt.Errorf("multilayer: restore: %w", err)
		}
	}

	for _, i := range c.PretrainDone {
		if i < 0 || i >= len(n.layers) {
			return nil, fmt.Errorf("multilayer: restore: %w: pretrained layer %d", ErrLayerIndex, i)
		}
		if p, ok := n.layers[i].(layers.Pretrainer); ok {
			p.DonePretrain()
		}
	}

	state, err := groupByLayer(c.State, len(n.layers))
	if err != nil {
		return nil, err
	}
	for i, s := range state {
		st, ok := n.layers[i].(layers.Stateful)
		if !ok {
			return nil, fmt.Errorf("multilayer: restore: layer %d (%s) has no state: %w", i, n.layers[i].Type(), ErrUnsupported)
		}
		if err := st.LoadState(s); err != nil {
			return nil, fmt.Errorf("multilayer: restore: %w", err)
		}
	}

	upd, err := groupByLayer(c.Updater, len(n.layers))
	if err != nil {
		return nil, err
	}
	for i, s := range upd {
		if err := n.updaters[i].LoadStateDict(s); err != nil {
			return nil, fmt.Errorf("multilayer: restore layer %d updater: %w", i, err)
		}
	}

	n.iteration = c.Iteration
	n.log().WithField("iteration", n.iteration).Debug("network restored")
	return n, nil
}

// Save writes the network to w in .born format.
func (n *Network) Save(w io.Writer, saveUpdater bool) error {
	c, err := n.Checkpoint(saveUpdater)
	if err != nil {
		return err
	}
	if err := serialization.Write(w, c); err != nil {
		return fmt.Errorf("multilayer: save: %w", err)
	}
	return nil
}

// SaveFile writes the network to path in .born format.
func (n *Network) SaveFile(path string, saveUpdater bool) error {
	c, err := n.Checkpoint(saveUpdater)
	if err != nil {
		return err
	}
	if err := serialization.SaveFile(path, c); err != nil {
		return fmt.Errorf("multilayer: save: %w", err)
	}
	return nil
}

// Load reads a network written by Save.
func Load(r io.Reader, opts ...Option) (*Network, error) {
	c, err := serialization.Read(r)
	if err != nil {
		return nil, fmt.Errorf("multilayer: load: %w", err)
	}
	return FromCheckpoint(c, opts...)
}

// LoadFile reads a network written by SaveFile.
func LoadFile(path string, opts ...Option) (*Network, error) {
	c, err := serialization.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("multilayer: load: %w", err)
	}
	return FromCheckpoint(c, opts...)
}
