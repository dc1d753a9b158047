package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelTable_Name(t *testing.T) {
	assert.Len(t, YOLOClasses, 80)

	tests := []struct {
		idx  int
		want string
	}{
		{0, "person"},
		{39, "bottle"},
		{73, "book"},
		{79, "toothbrush"},
		{80, "Class 80"},
		{1000, "Class 1000"},
		{-1, "Class -1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, YOLOClasses.Name(tt.idx))
	}

	var empty LabelTable
	assert.Equal(t, "Class 0", empty.Name(0))
}

func TestLabelTable_Index(t *testing.T) {
	assert.Equal(t, 67, YOLOClasses.Index("cell phone"))
	assert.Equal(t, -1, YOLOClasses.Index("unicorn"))
}

func TestClassWhitelist(t *testing.T) {
	w := NewClassWhitelist(DefaultAllowedClasses...)
	assert.Len(t, w, 12)
	assert.True(t, w.Contains(0))
	assert.True(t, w.Contains(73))
	assert.False(t, w.Contains(2))
	assert.Equal(t, DefaultAllowedClasses, w.IDs())

	dup := NewClassWhitelist(3, 3, 1)
	assert.Equal(t, []int{1, 3}, dup.IDs())

	assert.False(t, NewClassWhitelist().Contains(0))
}

func TestDefaultAllowedClassesNames(t *testing.T) {
	want := []string{
		"person", "bottle", "cup", "bowl", "chair", "dining table",
		"laptop", "mouse", "remote", "keyboard", "cell phone", "book",
	}
	for i, id := range DefaultAllowedClasses {
		assert.Equal(t, want[i], YOLOClasses.Name(id))
	}
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coco.names")
	require.NoError(t, os.WriteFile(path, []byte("person\r\nbicycle \n\ncar\n"), 0o644))

	labels, err := LoadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, LabelTable{"person", "bicycle", "", "car"}, labels)
	assert.Equal(t, "Class 4", labels.Name(4))

	_, err = LoadLabels(filepath.Join(t.TempDir(), "missing.names"))
	assert.Error(t, err)
}
