package layers

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/multilayer/internal/conf"
	"github.com/born-ml/multilayer/internal/gradient"
	"github.com/born-ml/multilayer/internal/nnerr"
	"github.com/born-ml/multilayer/internal/parallel"
	"github.com/born-ml/multilayer/internal/params"
)

// convExamplesPerWorker is the fewest examples one goroutine convolves.
const convExamplesPerWorker = 4

// ConvolutionLayer is a 2-D convolution over flattened channel-major rows.
//
// An input row holds nIn channels of h×w pixels, column (c*h+y)*w+x. The
// output row holds nOut channels of outH×outW pixels in the same layout.
// Filters are stored as W [nOut, nIn*kh*kw].
type ConvolutionLayer struct {
	base

	inH, inW   int
	outH, outW int
	kh, kw     int
	sh, sw     int
	ph, pw     int

	cols []*mat.Dense // im2col matrices of the last forward pass, one per example
	par  parallel.Config
}

func newConvolution(b base) (Layer, error) {
	c := b.cfg
	if c.InputHeight <= 0 || c.InputWidth <= 0 {
		return nil, fmt.Errorf("%w: layer %d: convolution needs a convolutional input type", nnerr.ErrInvalidConfig, b.index)
	}
	l := &ConvolutionLayer{
		base: b,
		inH:  c.InputHeight,
		inW:  c.InputWidth,
		kh:   c.KernelSize[0],
		kw:   c.KernelSize[1],
		sh:   c.Stride[0],
		sw:   c.Stride[1],
		ph:   c.Padding[0],
		pw:   c.Padding[1],
		par:  parallel.DefaultConfig(convExamplesPerWorker),
	}
	var err error
	if l.outH, err = conf.ConvOutputSize(l.inH, l.kh, l.sh, l.ph); err != nil {
		return nil, fmt.Errorf("layer %d: %w", b.index, err)
	}
	if l.outW, err = conf.ConvOutputSize(l.inW, l.kw, l.sw, l.pw); err != nil {
		return nil, fmt.Errorf("layer %d: %w", b.index, err)
	}
	return l, nil
}

// OutputShape returns the spatial output size.
func (l *ConvolutionLayer) OutputShape() (height, width int) {
	return l.outH, l.outW
}

func (l *ConvolutionLayer) patch() int {
	return l.cfg.NIn * l.kh * l.kw
}

// ParamSpecs returns W [nOut, nIn*kh*kw] and b [1, nOut].
func (l *ConvolutionLayer) ParamSpecs() []params.Spec {
	return []params.Spec{
		{Name: "W", Rows: l.cfg.NOut, Cols: l.patch()},
		{Name: "b", Rows: 1, Cols: l.cfg.NOut, Bias: true},
	}
}

// InitParams initializes the filters with fan-in nIn*kh*kw and fan-out nOut*kh*kw.
func (l *ConvolutionLayer) InitParams(rng *rand.Rand) error {
	return l.initParams(rng, l.patch(), l.cfg.NOut*l.kh*l.kw)
}

// im2col unrolls one input row into a [outH*outW, nIn*kh*kw] matrix.
func (l *ConvolutionLayer) im2col(row []float64) *mat.Dense {
	col := mat.NewDense(l.outH*l.outW, l.patch(), nil)
	for oy := 0; oy < l.outH; oy++ {
		for ox := 0; ox < l.outW; ox++ {
			dst := col.RawRowView(oy*l.outW + ox)
			k := 0
			for c := 0; c < l.cfg.NIn; c++ {
				for ky := 0; ky < l.kh; ky++ {
					y := oy*l.sh + ky - l.ph
					for kx := 0; kx < l.kw; kx++ {
						x := ox*l.sw + kx - l.pw
						if y >= 0 && y < l.inH && x >= 0 && x < l.inW {
							dst[k] = row[(c*l.inH+y)*l.inW+x]
						}
						k++
					}
				}
			}
		}
	}
	return col
}

// col2im scatters a [outH*outW, nIn*kh*kw] gradient back into an input row.
func (l *ConvolutionLayer) col2im(dcol *mat.Dense, row []float64) {
	for oy := 0; oy < l.outH; oy++ {
		for ox := 0; ox < l.outW; ox++ {
			src := dcol.RawRowView(oy*l.outW + ox)
			k := 0
			for c := 0; c < l.cfg.NIn; c++ {
				for ky := 0; ky < l.kh; ky++ {
					y := oy*l.sh + ky - l.ph
					for kx := 0; kx < l.kw; kx++ {
						x := ox*l.sw + kx - l.pw
						if y >= 0 && y < l.inH && x >= 0 && x < l.inW {
							row[(c*l.inH+y)*l.inW+x] += src[k]
						}
						k++
					}
				}
			}
		}
	}
}

// Activate convolves every example and applies the activation.
func (l *ConvolutionLayer) Activate(input *mat.Dense, _ bool) (*mat.Dense, error) {
	if err := l.checkColumns(input, l.cfg.NIn*l.inH*l.inW); err != nil {
		return nil, err
	}
	rows, _ := input.Dims()
	pixels := l.outH * l.outW
	w, b := l.params["W"], l.params["b"]
	bias := b.RawRowView(0)

	pre := mat.NewDense(rows, l.cfg.NOut*pixels, nil)
	l.cols = make([]*mat.Dense, rows)
	parallel.For(rows, func(i int) {
		col := l.im2col(input.RawRowView(i))
		l.cols[i] = col
		var resp mat.Dense
		resp.Mul(col, w.T()) // [pixels, nOut]
		dst := pre.RawRowView(i)
		for p := 0; p < pixels; p++ {
			r := resp.RawRowView(p)
			for o, v := range r {
				dst[o*pixels+p] = v + bias[o]
			}
		}
	}, l.par)
	l.input = input
	l.preOut = pre
	l.output = l.act.Forward(pre)
	return l.output, nil
}

// Backprop returns the filter and bias gradients and dL/dInput.
func (l *ConvolutionLayer) Backprop(epsilon *mat.Dense) (*gradient.Gradient, *mat.Dense, error) {
	if err := l.requireForward(); err != nil {
		return nil, nil, err
	}
	rows, cols := l.output.Dims()
	if er, ec := epsilon.Dims(); er != rows || ec != cols {
		return nil, nil, shapeErr(l.index, "backprop", rows, cols, er, ec)
	}
	delta := l.act.Backprop(l.preOut, l.output, epsilon)
	pixels := l.outH * l.outW
	w := l.params["W"]
	gw, gb := l.grads["W"], l.grads["b"]
	gw.Zero()
	gb.Zero()
	gbias := gb.RawRowView(0)

	// Input gradients are independent per example; the filter gradient is
	// accumulated afterwards in example order so sums stay deterministic.
	epsOut := mat.NewDense(rows, l.cfg.NIn*l.inH*l.inW, nil)
	ds := make([]*mat.Dense, rows)
	parallel.For(rows, func(i int) {
		src := delta.RawRowView(i)
		d := mat.NewDense(pixels, l.cfg.NOut, nil)
		for p := 0; p < pixels; p++ {
			r := d.RawRowView(p)
			for o := range r {
				r[o] = src[o*pixels+p]
			}
		}
		ds[i] = d
		var dcol mat.Dense
		dcol.Mul(d, w)
		l.col2im(&dcol, epsOut.RawRowView(i))
	}, l.par)
	for i, d := range ds {
		for p := 0; p < pixels; p++ {
			for o, v := range d.RawRowView(p) {
				gbias[o] += v
			}
		}
		addMul(gw, d.T(), l.cols[i])
	}
	return l.layerGradient("W", "b"), epsOut, nil
}

// Clear drops the cached activations and im2col buffers.
func (l *ConvolutionLayer) Clear() {
	l.base.Clear()
	l.cols = nil
}
