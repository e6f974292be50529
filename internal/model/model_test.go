package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadLabels(t *testing.T) {
	path := writeFile(t, "labels.txt", "0 cataract  \n1 glaucoma\r\n2 Normal Eye\n3 diabetic retinopathy\n\n")

	labels, err := LoadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, LabelSet{"0 cataract", "1 glaucoma", "2 Normal Eye", "3 diabetic retinopathy"}, labels)
}

func TestLoadLabelsErrors(t *testing.T) {
	_, err := LoadLabels(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	_, err = LoadLabels(writeFile(t, "empty.txt", "\n\n"))
	assert.Error(t, err)

	_, err = LoadLabels(writeFile(t, "gap.txt", "a\n\nb\n"))
	assert.Error(t, err)
}

func TestLoadMetadataDefaults(t *testing.T) {
	path := writeFile(t, "meta.json", `{"input_shape":[1,224,224,3],"output_shape":[1,4]}`)

	meta, err := LoadMetadata(path, LabelSet{"a", "b", "c", "d"}, 224)
	require.NoError(t, err)
	assert.Equal(t, "input", meta.InputName)
	assert.Equal(t, "output", meta.OutputName)
	assert.Equal(t, LayoutNHWC, meta.Layout)
	assert.Equal(t, 224, meta.ImageSize())
	assert.Equal(t, 224*224*3, meta.InputLen())
	assert.Equal(t, 4, meta.OutputWidth())
}

func TestLoadMetadataMalformed(t *testing.T) {
	_, err := LoadMetadata(writeFile(t, "meta.json", `{"input_shape":`), LabelSet{"a"}, 224)
	assert.Error(t, err)

	_, err = LoadMetadata(filepath.Join(t.TempDir(), "missing.json"), LabelSet{"a"}, 224)
	assert.Error(t, err)
}

func TestMetadataValidate(t *testing.T) {
	tests := []struct {
		name    string
		meta    Metadata
		labels  int
		size    int
		wantErr error
	}{
		{
			name:   "nhwc ok",
			meta:   Metadata{InputShape: []int64{1, 224, 224, 3}, OutputShape: []int64{1, 4}, Layout: LayoutNHWC},
			labels: 4, size: 224,
		},
		{
			name:   "nchw ok",
			meta:   Metadata{InputShape: []int64{1, 3, 224, 224}, OutputShape: []int64{1, 4}, Layout: LayoutNCHW},
			labels: 4, size: 224,
		},
		{
			name:    "label mismatch",
			meta:    Metadata{InputShape: []int64{1, 224, 224, 3}, OutputShape: []int64{1, 4}, Layout: LayoutNHWC},
			labels:  3, size: 224,
			wantErr: ErrLabelMismatch,
		},
		{
			name:    "size mismatch",
			meta:    Metadata{InputShape: []int64{1, 256, 256, 3}, OutputShape: []int64{1, 4}, Layout: LayoutNHWC},
			labels:  4, size: 224,
			wantErr: ErrInputShape,
		},
		{
			name:    "batch of two",
			meta:    Metadata{InputShape: []int64{2, 224, 224, 3}, OutputShape: []int64{2, 4}, Layout: LayoutNHWC},
			labels:  4, size: 224,
			wantErr: ErrInputShape,
		},
		{
			name:    "grayscale",
			meta:    Metadata{InputShape: []int64{1, 224, 224, 1}, OutputShape: []int64{1, 4}, Layout: LayoutNHWC},
			labels:  4, size: 224,
			wantErr: ErrInputShape,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate(tt.labels, tt.size)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	err := Metadata{InputShape: []int64{1, 224, 224, 3}, OutputShape: []int64{1, 4}, Layout: "hwc"}.Validate(4, 224)
	assert.Error(t, err)
}

func TestNewServerFailsOnLabelMismatch(t *testing.T) {
	labels := writeFile(t, "labels.txt", "0 a\n1 b\n")
	meta := writeFile(t, "meta.json", `{"input_shape":[1,224,224,3],"output_shape":[1,4]}`)

	_, err := NewServer(Options{
		ModelPath:    filepath.Join(t.TempDir(), "model.onnx"),
		MetadataPath: meta,
		LabelsPath:   labels,
		ImageSize:    224,
	})
	assert.ErrorIs(t, err, ErrLabelMismatch)
}

func TestNewServerFailsOnMissingModel(t *testing.T) {
	labels := writeFile(t, "labels.txt", "0 a\n1 b\n2 c\n3 d\n")
	meta := writeFile(t, "meta.json", `{"input_shape":[1,224,224,3],"output_shape":[1,4]}`)

	_, err := NewServer(Options{
		ModelPath:    filepath.Join(t.TempDir(), "model.onnx"),
		MetadataPath: meta,
		LabelsPath:   labels,
		ImageSize:    224,
	})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
