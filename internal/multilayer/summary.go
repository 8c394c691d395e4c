package multilayer

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// Summary renders a table of the layers with their widths, activation,
// parameter shapes and counts.
func (n *Network) Summary() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tName\tType\tnIn\tnOut\tActivation\tParams\tShapes")
	fmt.Fprintln(w, "-\t----\t----\t---\t----\t----------\t------\t------")
	total := 0
	for i, l := range n.layers {
		lc := l.Config()
		specs := l.ParamSpecs()
		count := 0
		shapes := make([]string, len(specs))
		for k, sp := range specs {
			count += sp.Size()
			shapes[k] = fmt.Sprintf("%s[%d,%d]", sp.Name, sp.Rows, sp.Cols)
		}
		total += count
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%d\t%s\n",
			i, layerName(i, lc), lc.Type, lc.NIn, lc.NOut, lc.Activation, count, strings.Join(shapes, " "))
	}
	_ = w.Flush()
	fmt.Fprintf(&sb, "Total parameters: %d (backprop: %d)\n", total, n.backpropParams())
	fmt.Fprintf(&sb, "Iterations: %d\n", n.iteration)
	return sb.String()
}

func (n *Network) backpropParams() int {
	total := 0
	for _, l := range n.layers {
		for _, sp := range l.ParamSpecs() {
			if !sp.PretrainOnly {
				total += sp.Size()
			}
		}
	}
	return total
}
