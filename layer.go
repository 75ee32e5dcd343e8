package unistor

// Layer transforms an Accessor into another Accessor with augmented
// behavior. Layers compose by ordered wrapping: the last layer applied is
// the outermost and sees user calls first. The chain is fixed when the
// Operator is built; changing it requires building a new Operator.
//
// A layer must stay transparent to capability queries. It may narrow or
// annotate the inner capability but must never report support the inner
// accessor does not have.
type Layer interface {
	Apply(Accessor) Accessor
}

// LayerFunc adapts a plain function to the Layer interface.
type LayerFunc func(Accessor) Accessor

// Apply implements Layer.
func (f LayerFunc) Apply(a Accessor) Accessor { return f(a) }

func applyLayers(a Accessor, layers []Layer) Accessor {
	for _, l := range layers {
		a = l.Apply(a)
	}
	return a
}
