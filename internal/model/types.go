package model

// Layout is the memory order of the input tensor.
type Layout string

const (
	LayoutNHWC Layout = "nhwc"
	LayoutNCHW Layout = "nchw"
)

type Metadata struct {
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
	Layout      Layout  `json:"layout"`
}

// ImageSize returns the square spatial size of the input tensor.
func (m Metadata) ImageSize() int {
	if len(m.InputShape) != 4 {
		return 0
	}
	if m.Layout == LayoutNCHW {
		return int(m.InputShape[2])
	}
	return int(m.InputShape[1])
}

// InputLen is the number of float32 values the input tensor holds.
func (m Metadata) InputLen() int {
	n := 1
	for _, dim := range m.InputShape {
		n *= int(dim)
	}
	return n
}

// OutputWidth is the number of per-class scores produced for one image.
func (m Metadata) OutputWidth() int {
	if len(m.OutputShape) == 0 {
		return 0
	}
	return int(m.OutputShape[len(m.OutputShape)-1])
}
