package gc

import (
	"encoding/json"

	"github.com/tidwall/jsonc"
)

// Canvas node types that can reference files.
const (
	NodeFile = "file"
	NodeText = "text"
)

// Canvas is the part of a canvas document the collector reads.
type Canvas struct {
	Nodes []CanvasNode `json:"nodes"`
}

// CanvasNode ...
type CanvasNode struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	File string `json:"file"`
	Text string `json:"text"`
}

// ParseCanvas decodes a canvas document. Comments and trailing commas are tolerated.
func ParseCanvas(file string, data []byte) (Canvas, error) {
	var canvas Canvas
	if err := json.Unmarshal(jsonc.ToJSON(data), &canvas); err != nil {
		return Canvas{}, &ParseError{File: file, Err: err}
	}
	return canvas, nil
}
