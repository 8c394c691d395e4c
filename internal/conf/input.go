package conf

import "fmt"

// InputKind tags the layout of activations flowing between layers.
type InputKind string

// Supported input kinds.
//
// Every activation is a 2-D matrix. Recurrent data is laid out time-major:
// row t*miniBatch+i holds example i at time step t. Convolutional data is
// flattened channel-major per row: column (c*h+y)*w+x.
const (
	InputFeedForward       InputKind = "feed_forward"
	InputRecurrent         InputKind = "recurrent"
	InputConvolutional     InputKind = "convolutional"
	InputConvolutionalFlat InputKind = "convolutional_flat"
)

// InputType describes the shape of the activations entering a layer.
type InputType struct {
	Kind      InputKind `yaml:"kind" json:"kind"`
	Size      int       `yaml:"size,omitempty" json:"size,omitempty"`
	TimeSteps int       `yaml:"time_steps,omitempty" json:"time_steps,omitempty"`
	Height    int       `yaml:"height,omitempty" json:"height,omitempty"`
	Width     int       `yaml:"width,omitempty" json:"width,omitempty"`
	Depth     int       `yaml:"depth,omitempty" json:"depth,omitempty"`
}

// FeedForward returns a feed-forward input type of the given width.
func FeedForward(size int) *InputType {
	return &InputType{Kind: InputFeedForward, Size: size}
}

// Recurrent returns a recurrent input type with a fixed sequence length.
func Recurrent(size, timeSteps int) *InputType {
	return &InputType{Kind: InputRecurrent, Size: size, TimeSteps: timeSteps}
}

// Convolutional returns an image input type.
func Convolutional(height, width, depth int) *InputType {
	return &InputType{Kind: InputConvolutional, Height: height, Width: width, Depth: depth}
}

// ConvolutionalFlat returns an image input type supplied as flattened rows.
func ConvolutionalFlat(height, width, depth int) *InputType {
	return &InputType{Kind: InputConvolutionalFlat, Height: height, Width: width, Depth: depth}
}

// IsConvolutional reports whether t carries image geometry.
func (t InputType) IsConvolutional() bool {
	return t.Kind == InputConvolutional || t.Kind == InputConvolutionalFlat
}

// FlatSize returns the number of columns of one row of this input type.
func (t InputType) FlatSize() int {
	if t.IsConvolutional() {
		return t.Height * t.Width * t.Depth
	}
	return t.Size
}

// String returns a compact description, e.g. "convolutional(28x28x1)".
func (t InputType) String() string {
	switch t.Kind {
	case InputRecurrent:
		return fmt.Sprintf("recurrent(%d, t=%d)", t.Size, t.TimeSteps)
	case InputConvolutional, InputConvolutionalFlat:
		return fmt.Sprintf("%s(%dx%dx%d)", t.Kind, t.Height, t.Width, t.Depth)
	default:
		return fmt.Sprintf("%s(%d)", t.Kind, t.Size)
	}
}

func (t InputType) validate() error {
	switch t.Kind {
	case InputFeedForward:
		if t.Size <= 0 {
			return fmt.Errorf("%w: feed_forward input size must be positive", ErrInvalid)
		}
	case InputRecurrent:
		if t.Size <= 0 || t.TimeSteps <= 0 {
			return fmt.Errorf("%w: recurrent input needs positive size and time_steps", ErrInvalid)
		}
	case InputConvolutional, InputConvolutionalFlat:
		if t.Height <= 0 || t.Width <= 0 || t.Depth <= 0 {
			return fmt.Errorf("%w: convolutional input needs positive height, width and depth", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown input kind %q", ErrInvalid, t.Kind)
	}
	return nil
}
