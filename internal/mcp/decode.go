package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/martruns/martruns/internal/errors"
)

// validator is implemented by request types with required fields.
type validator interface {
	validate() error
}

// decode unmarshals tool arguments into T and validates the result. Every
// failure is an INVALID_REQUEST MarketError, ready for errorResult.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewInvalidRequest(fmt.Sprintf("marshal args: %v", err))
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, errors.NewInvalidRequest(fmt.Sprintf("unmarshal args: %v", err))
	}
	if v, ok := any(&result).(validator); ok {
		if err := v.validate(); err != nil {
			return result, err
		}
	}
	return result, nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewInvalidRequest(name + " is required")
	}
	return nil
}

func (r *VoiceCommandRequest) validate() error { return required("text", r.Text) }
func (r *VoiceParseRequest) validate() error   { return required("text", r.Text) }
func (r *RunIDRequest) validate() error        { return required("id", r.ID) }
func (r *RunUpdateRequest) validate() error    { return required("id", r.ID) }
func (r *RunDuplicateRequest) validate() error { return required("id", r.ID) }
func (r *RunImportRequest) validate() error    { return required("path", r.Path) }

func (r *RunListRequest) validate() error {
	if r.Limit < 0 || r.Offset < 0 {
		return errors.NewInvalidRequest("limit and offset must not be negative")
	}
	return nil
}
