// Package wire interprets JSON wire protocol responses from a WebDriver
// server and turns failures into typed errors.
//
// A response is a JSON object with an integer "status" and a "value". Status
// 0 is success. Any other status is a failure whose value is either a bare
// string or an object carrying "message", "screen", "stackTrace" and, for
// unexpected alerts, "alert". Missing or malformed detail fields degrade to
// defaults; they never mask the failure itself.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// ErrMalformedResponse is returned by Parse when the payload is not a wire
// response at all.
var ErrMalformedResponse = errors.New("malformed wire response")

// Response is one decoded wire-protocol response.
type Response struct {
	SessionID string          `json:"sessionId,omitempty"`
	Status    int             `json:"status"`
	Value     json.RawMessage `json:"value"`
}

// Parse decodes a raw response body. A missing or non-integer status is an
// ErrMalformedResponse; a missing value is left empty.
func Parse(data []byte) (Response, error) {
	if !gjson.ValidBytes(data) {
		return Response{}, fmt.Errorf("%w: invalid JSON", ErrMalformedResponse)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Response{}, fmt.Errorf("%w: not a JSON object", ErrMalformedResponse)
	}

	status := root.Get("status")
	if status.Type != gjson.Number || status.Num != math.Trunc(status.Num) {
		return Response{}, fmt.Errorf("%w: status must be an integer, got %s", ErrMalformedResponse, orMissing(status))
	}

	resp := Response{
		SessionID: root.Get("sessionId").String(),
		Status:    int(status.Int()),
	}
	if v := root.Get("value"); v.Exists() {
		resp.Value = json.RawMessage(v.Raw)
	}
	return resp, nil
}

// Check parses data and runs CheckResponse on it.
func Check(data []byte) error {
	resp, err := Parse(data)
	if err != nil {
		return err
	}
	return CheckResponse(resp)
}

// CheckResponse returns nil for a successful response. For a failed one it
// returns a *ResponseError when the value is a bare string, otherwise an
// *Error whose Kind is looked up from the status code.
func CheckResponse(resp Response) error {
	if resp.Status == StatusSuccess {
		return nil
	}

	value := gjson.ParseBytes(resp.Value)
	if value.Type == gjson.String {
		return &ResponseError{Response: resp, Message: value.Str}
	}

	e := &Error{
		Kind:   KindForStatus(resp.Status),
		Status: resp.Status,
	}
	// null, numbers and arrays carry no detail fields.
	if !value.IsObject() {
		return e
	}

	e.Message = value.Get("message").String()
	if screen := optionalString(value.Get("screen")); screen != nil {
		e.Screen = *screen
	}
	e.StackTrace = renderStackTrace(value.Get("stackTrace"))

	if e.Kind == KindUnexpectedAlertOpen {
		if alert := value.Get("alert"); alert.IsObject() {
			e.Alert = &Alert{Text: alert.Get("text").String()}
		}
	}
	return e
}

func orMissing(r gjson.Result) string {
	if !r.Exists() {
		return "nothing"
	}
	return r.Raw
}
