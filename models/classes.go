// Package models - Class tables mapping model output indices to labels.
package models

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrIndexOutOfRange is returned when a class index does not exist in the table.
	// It signals a mismatch between the model and its class table.
	ErrIndexOutOfRange = errors.New("class index out of range")
	// ErrInvalidClassTable is returned when a class table source cannot be used.
	ErrInvalidClassTable = errors.New("invalid class table")
)

// ClassTable is an immutable index -> name mapping. It is built once at startup
// and is safe for concurrent reads.
type ClassTable struct {
	names []string
}

// NewClassTable builds a table where the position of each name is its class index.
//
// Arguments:
//   - names: The ordered class names.
//
// Returns:
//   - *ClassTable: The table.
//   - error: ErrInvalidClassTable if names is empty, has blank or duplicate entries.
func NewClassTable(names []string) (*ClassTable, error) {
	if len(names) == 0 {
		return nil, errors.Wrap(ErrInvalidClassTable, "no class names")
	}

	t := &ClassTable{names: make([]string, len(names))}
	seen := make(map[string]int, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.Wrapf(ErrInvalidClassTable, "class %d has an empty name", i)
		}
		if prev, ok := seen[name]; ok {
			return nil, errors.Wrapf(ErrInvalidClassTable, "class %q listed at %d and %d", name, prev, i)
		}
		t.names[i] = name
		seen[name] = i
	}
	return t, nil
}

// LoadClassTable reads a class table from disk.
//
// A ".json" file must hold an array of strings. Any other file is read as one
// class name per line; blank lines and lines starting with '#' are skipped.
// The names "coco" and "yolo" select the built-in 80 class COCO table.
//
// Arguments:
//   - path: The class table file or built-in name.
//
// Returns:
//   - *ClassTable: The loaded table.
//   - error: An error if the file cannot be read or parsed.
func LoadClassTable(path string) (*ClassTable, error) {
	switch strings.ToLower(path) {
	case "coco", "yolo":
		return NewClassTable(YOLOClasses)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading class table %s", path)
	}

	var names []string
	if strings.EqualFold(filepath.Ext(path), ".json") {
		names, err = parseJSONNames(data)
	} else {
		names, err = parseTextNames(data)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing class table %s", path)
	}
	return NewClassTable(names)
}

func parseJSONNames(data []byte) ([]string, error) {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, errors.Wrap(ErrInvalidClassTable, err.Error())
	}
	return names, nil
}

func parseTextNames(data []byte) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// Len returns the number of classes C.
func (t *ClassTable) Len() int {
	return len(t.names)
}

// Name returns the class name for an index.
func (t *ClassTable) Name(idx int) (string, error) {
	if idx < 0 || idx >= len(t.names) {
		return "", errors.Wrapf(ErrIndexOutOfRange, "index %d, table has %d classes", idx, len(t.names))
	}
	return t.names[idx], nil
}

// Names maps class indices to names, preserving order.
//
// Arguments:
//   - ids: The class indices.
//
// Returns:
//   - []string: The names, never nil.
//   - error: ErrIndexOutOfRange on the first index outside the table.
func (t *ClassTable) Names(ids []int) ([]string, error) {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		name, err := t.Name(id)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// YOLOClasses are the 80 COCO classes in the order used by YOLO family exports
// (no background class).
var YOLOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie",
	"suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut",
	"cake", "chair", "couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}
