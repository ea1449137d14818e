package nn

import (
	"fmt"

	"github.com/born-ml/resize/internal/tensor"
)

// Net runs a chain of layers, owning one output blob per layer.
//
// Each layer's top becomes the next layer's bottom:
//
//	net := nn.NewNet[float32](resize, scale)
//	out, err := net.Forward(input)
//	// fill out.MutableDiff() with d(loss)/d(out)
//	err = net.Backward(input)
//	// input.Diff() now holds d(loss)/d(input)
//
// Forward reshapes every layer before running it, so input shapes may change
// between iterations.
type Net[T tensor.Float] struct {
	layers []Layer[T]
	tops   []*tensor.Blob[T]
}

// NewNet creates a Net from the given layers.
func NewNet[T tensor.Float](layers ...Layer[T]) *Net[T] {
	n := &Net[T]{}
	for _, l := range layers {
		n.Add(l)
	}
	return n
}

// Add appends a layer to the chain.
func (n *Net[T]) Add(layer Layer[T]) {
	n.layers = append(n.layers, layer)
	n.tops = append(n.tops, &tensor.Blob[T]{})
}

// Len returns the number of layers.
func (n *Net[T]) Len() int {
	return len(n.layers)
}

// Layer returns the layer at the given index.
//
// Panics if index is out of bounds.
func (n *Net[T]) Layer(index int) Layer[T] {
	if index < 0 || index >= len(n.layers) {
		panic("Net.Layer: index out of bounds")
	}
	return n.layers[index]
}

// Top returns the output blob of the layer at index.
//
// Panics if index is out of bounds.
func (n *Net[T]) Top(index int) *tensor.Blob[T] {
	if index < 0 || index >= len(n.tops) {
		panic("Net.Top: index out of bounds")
	}
	return n.tops[index]
}

// Output returns the last layer's output blob, or nil for an empty net.
func (n *Net[T]) Output() *tensor.Blob[T] {
	if len(n.tops) == 0 {
		return nil
	}
	return n.tops[len(n.tops)-1]
}

// Reshape propagates shapes from input through every layer.
func (n *Net[T]) Reshape(input *tensor.Blob[T]) error {
	bottom := input
	for i, layer := range n.layers {
		if err := layer.Reshape(bottom, n.tops[i]); err != nil {
			return fmt.Errorf("layer %d (%s): %w", i, layer.Type(), err)
		}
		bottom = n.tops[i]
	}
	return nil
}

// Forward reshapes and runs every layer, returning the final output.
func (n *Net[T]) Forward(input *tensor.Blob[T]) (*tensor.Blob[T], error) {
	if len(n.layers) == 0 {
		return nil, fmt.Errorf("net: no layers")
	}

	bottom := input
	for i, layer := range n.layers {
		if err := layer.Reshape(bottom, n.tops[i]); err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, layer.Type(), err)
		}
		if err := layer.Forward(bottom, n.tops[i]); err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, layer.Type(), err)
		}
		bottom = n.tops[i]
	}
	return n.Output(), nil
}

// Backward runs every layer's Backward in reverse order, starting from the
// diff the caller placed in Output(). input must be the blob passed to the
// preceding Forward; its diff receives the final gradient.
func (n *Net[T]) Backward(input *tensor.Blob[T]) error {
	for i := len(n.layers) - 1; i >= 0; i-- {
		bottom := input
		if i > 0 {
			bottom = n.tops[i-1]
		}
		if err := n.layers[i].Backward(n.tops[i], []bool{true}, bottom); err != nil {
			return fmt.Errorf("layer %d (%s): %w", i, n.layers[i].Type(), err)
		}
	}
	return nil
}
