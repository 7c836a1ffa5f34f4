// Package nn implements a small fully connected classifier whose weights are
// installed from outside rather than trained by gradients.
package nn

import (
	"fmt"
	"math"

	"github.com/cwbudde/geneticweights/internal/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// minProb clips predicted probabilities before taking the log.
const minProb = 1e-12

// Activation is applied element-wise after every layer.
type Activation string

const (
	ReLU Activation = "relu"
	// Step outputs 1 for positive input and 0 otherwise. It has no useful gradient.
	Step Activation = "step"
)

// ParseActivation converts a flag value to an Activation.
func ParseActivation(s string) (Activation, error) {
	switch Activation(s) {
	case ReLU, "":
		return ReLU, nil
	case Step:
		return Step, nil
	default:
		return "", fmt.Errorf("unknown activation: %q", s)
	}
}

func (a Activation) apply(v float64) float64 {
	if a == Step {
		if v > 0 {
			return 1
		}
		return 0
	}
	return math.Max(0, v)
}

// Network is a fully connected feed-forward classifier followed by softmax.
type Network struct {
	shape      []int
	activation Activation
	layout     model.Layout
	weights    []*mat.Dense
	biases     [][]float64
}

var _ model.Model = (*Network)(nil)

// New builds a network for the given layer sizes: input, at least one hidden
// layer, and output. All parameters start at zero.
func New(shape []int, activation Activation) (*Network, error) {
	if len(shape) < 3 {
		return nil, fmt.Errorf("network shape needs input, hidden and output sizes, got %v", shape)
	}
	for i, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("layer %d has non-positive size %d", i, d)
		}
	}
	if _, err := ParseActivation(string(activation)); err != nil {
		return nil, err
	}

	n := &Network{
		shape:      append([]int(nil), shape...),
		activation: activation,
	}
	for i := 1; i < len(shape); i++ {
		n.weights = append(n.weights, mat.NewDense(shape[i-1], shape[i], nil))
		n.biases = append(n.biases, make([]float64, shape[i]))
	}
	return n, nil
}

// Shape returns the layer sizes.
func (n *Network) Shape() []int {
	return append([]int(nil), n.shape...)
}

// Layout lists, for every layer, its weight matrix (in x out) then its bias vector.
func (n *Network) Layout() model.Layout {
	if n.layout != nil {
		return n.layout
	}
	layout := make(model.Layout, 0, 2*(len(n.shape)-1))
	for i := 1; i < len(n.shape); i++ {
		layout = append(layout, model.NewGroup(n.shape[i-1], n.shape[i]), model.NewGroup(n.shape[i]))
	}
	n.layout = layout
	return layout
}

// UpdateParameters installs new weights and biases in layout order.
func (n *Network) UpdateParameters(params []model.Tensor) error {
	if err := n.Layout().Check(params); err != nil {
		return err
	}
	for i := 1; i < len(n.shape); i++ {
		w := params[2*(i-1)]
		b := params[2*(i-1)+1]
		n.weights[i-1] = mat.NewDense(n.shape[i-1], n.shape[i], append([]float64(nil), w.Data...))
		n.biases[i-1] = append([]float64(nil), b.Data...)
	}
	return nil
}

// Parameters returns a copy of the installed parameters in layout order.
func (n *Network) Parameters() []model.Tensor {
	params := make([]model.Tensor, 0, 2*len(n.weights))
	for i, w := range n.weights {
		r, c := w.Dims()
		data := make([]float64, 0, r*c)
		for row := 0; row < r; row++ {
			data = append(data, w.RawRowView(row)...)
		}
		params = append(params,
			model.Tensor{Shape: []int{r, c}, Data: data},
			model.Tensor{Shape: []int{c}, Data: append([]float64(nil), n.biases[i]...)},
		)
	}
	return params
}

// Predict returns the softmax class probabilities, one row per example.
func (n *Network) Predict(examples *mat.Dense) (*mat.Dense, error) {
	if examples == nil {
		return nil, fmt.Errorf("examples cannot be nil")
	}
	_, cols := examples.Dims()
	if cols != n.shape[0] {
		return nil, fmt.Errorf("examples have %d features, network expects %d", cols, n.shape[0])
	}

	var h mat.Matrix = examples
	for i, w := range n.weights {
		bias := n.biases[i]
		var z mat.Dense
		z.Mul(h, w)
		z.Apply(func(_, j int, v float64) float64 {
			return n.activation.apply(v + bias[j])
		}, &z)
		h = &z
	}

	out := mat.DenseCopyOf(h)
	softmaxRows(out)
	return out, nil
}

// Score returns the fraction of examples whose most probable class equals the label.
func (n *Network) Score(examples *mat.Dense, labels []int) (float64, error) {
	probs, err := n.checkedPredict(examples, labels)
	if err != nil {
		return 0, err
	}
	correct := 0
	for r, label := range labels {
		if argmax(probs.RawRowView(r)) == label {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}

// Loss returns the mean cross-entropy of the predicted distribution.
func (n *Network) Loss(examples *mat.Dense, labels []int) (float64, error) {
	probs, err := n.checkedPredict(examples, labels)
	if err != nil {
		return 0, err
	}
	losses := make([]float64, len(labels))
	for r, label := range labels {
		losses[r] = -math.Log(math.Max(probs.At(r, label), minProb))
	}
	return stat.Mean(losses, nil), nil
}

func (n *Network) checkedPredict(examples *mat.Dense, labels []int) (*mat.Dense, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("batch is empty")
	}
	if examples == nil {
		return nil, fmt.Errorf("examples cannot be nil")
	}
	rows, _ := examples.Dims()
	if rows != len(labels) {
		return nil, fmt.Errorf("example count %d does not match label count %d", rows, len(labels))
	}
	classes := n.shape[len(n.shape)-1]
	for i, label := range labels {
		if label < 0 || label >= classes {
			return nil, fmt.Errorf("label %d at row %d outside [0, %d)", label, i, classes)
		}
	}
	return n.Predict(examples)
}

func softmaxRows(m *mat.Dense) {
	rows, _ := m.Dims()
	for r := 0; r < rows; r++ {
		row := m.RawRowView(r)
		peak := row[argmax(row)]
		var sum float64
		for j, v := range row {
			row[j] = math.Exp(v - peak)
			sum += row[j]
		}
		for j := range row {
			row[j] /= sum
		}
	}
}

func argmax(row []float64) int {
	best := 0
	for j, v := range row {
		if v > row[best] {
			best = j
		}
	}
	return best
}
