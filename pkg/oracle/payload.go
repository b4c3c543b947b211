package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnsupportedPayload is returned when an edit tool's input does not match
// any known shape. The decode is an explicit tagged union keyed on the tool
// name, not a runtime property probe: an unrecognized shape fails loudly
// instead of silently missing an edit.
var ErrUnsupportedPayload = errors.New("unsupported tool payload shape")

// editTools maps file-modifying tool names to their input shape. Read-only
// tools are absent on purpose; their payloads never reach the gate.
var editTools = map[string]bool{
	"write_file":  true,
	"edit_file":   true,
	"create_file": true,
	"str_replace": true,
	"multi_edit":  true,
}

// isEditTool reports whether a tool call can modify a file.
func isEditTool(name string) bool {
	return editTools[name]
}

// filePathFromToolInput extracts the edited file's path from an edit tool's
// raw input.
func filePathFromToolInput(tool string, input json.RawMessage) (string, error) {
	switch tool {
	case "write_file", "create_file":
		var payload struct {
			Path    string `json:"path"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(input, &payload); err != nil || payload.Path == "" {
			return "", decodeFailure(tool, err)
		}
		return payload.Path, nil
	case "edit_file", "str_replace", "multi_edit":
		var payload struct {
			FilePath string `json:"file_path"`
		}
		if err := json.Unmarshal(input, &payload); err != nil || payload.FilePath == "" {
			return "", decodeFailure(tool, err)
		}
		return payload.FilePath, nil
	default:
		return "", fmt.Errorf("%w: unknown edit tool %q", ErrUnsupportedPayload, tool)
	}
}

func decodeFailure(tool string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: tool %q: %v", ErrUnsupportedPayload, tool, err)
	}
	return fmt.Errorf("%w: tool %q: missing file path", ErrUnsupportedPayload, tool)
}
