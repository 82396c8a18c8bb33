package wire

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failed wire-protocol response.
type Kind int

const (
	// KindWebDriver is the default for status codes missing from the table.
	KindWebDriver Kind = iota
	KindNoSuchElement
	KindNoSuchFrame
	KindUnknownCommand
	KindStaleElementReference
	KindElementNotVisible
	KindInvalidElementState
	KindUnknownError
	KindElementNotSelectable
	KindJavaScriptError
	KindInvalidSelector
	KindTimeout
	KindNoSuchWindow
	KindInvalidCookieDomain
	KindUnableToSetCookie
	KindUnexpectedAlertOpen
	KindNoAlertOpen
	KindScriptTimeout
	KindInvalidElementCoordinates
	KindIMENotAvailable
	KindIMEEngineActivationFailed
	KindSessionNotCreated
	KindMoveTargetOutOfBounds
	KindMethodNotAllowed
)

// StatusSuccess is the only status that does not produce an error.
const StatusSuccess = 0

// statusKinds is the JSON wire protocol error-code table.
var statusKinds = map[int]Kind{
	7:   KindNoSuchElement,
	8:   KindNoSuchFrame,
	9:   KindUnknownCommand,
	10:  KindStaleElementReference,
	11:  KindElementNotVisible,
	12:  KindInvalidElementState,
	13:  KindUnknownError,
	15:  KindElementNotSelectable,
	17:  KindJavaScriptError,
	19:  KindInvalidSelector, // xpath lookup error
	21:  KindTimeout,
	23:  KindNoSuchWindow,
	24:  KindInvalidCookieDomain,
	25:  KindUnableToSetCookie,
	26:  KindUnexpectedAlertOpen,
	27:  KindNoAlertOpen,
	28:  KindScriptTimeout,
	29:  KindInvalidElementCoordinates,
	30:  KindIMENotAvailable,
	31:  KindIMEEngineActivationFailed,
	32:  KindInvalidSelector,
	33:  KindSessionNotCreated,
	34:  KindMoveTargetOutOfBounds,
	51:  KindInvalidSelector, // invalid xpath selector
	52:  KindInvalidSelector, // invalid xpath selector return type
	405: KindMethodNotAllowed,
}

var kindNames = [...]string{
	KindWebDriver:                 "webdriver error",
	KindNoSuchElement:             "no such element",
	KindNoSuchFrame:               "no such frame",
	KindUnknownCommand:            "unknown command",
	KindStaleElementReference:     "stale element reference",
	KindElementNotVisible:         "element not visible",
	KindInvalidElementState:       "invalid element state",
	KindUnknownError:              "unknown error",
	KindElementNotSelectable:      "element not selectable",
	KindJavaScriptError:           "javascript error",
	KindInvalidSelector:           "invalid selector",
	KindTimeout:                   "timeout",
	KindNoSuchWindow:              "no such window",
	KindInvalidCookieDomain:       "invalid cookie domain",
	KindUnableToSetCookie:         "unable to set cookie",
	KindUnexpectedAlertOpen:       "unexpected alert open",
	KindNoAlertOpen:               "no alert open",
	KindScriptTimeout:             "script timeout",
	KindInvalidElementCoordinates: "invalid element coordinates",
	KindIMENotAvailable:           "ime not available",
	KindIMEEngineActivationFailed: "ime engine activation failed",
	KindSessionNotCreated:         "session not created",
	KindMoveTargetOutOfBounds:     "move target out of bounds",
	KindMethodNotAllowed:          "method not allowed",
}

// String returns the protocol name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// KindForStatus maps a non-success status code to its error kind.
// Unrecognized codes map to KindWebDriver.
func KindForStatus(status int) Kind {
	if k, ok := statusKinds[status]; ok {
		return k
	}
	return KindWebDriver
}

// Alert is the open dialog reported alongside an unexpected-alert failure.
type Alert struct {
	Text string
}

// Error is a failure reported by the driver with a structured value.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// Screen is the screenshot payload (usually base64 PNG), empty when absent.
	Screen string
	// StackTrace holds rendered remote frames, nil when absent.
	StackTrace []string
	// Alert is only set for KindUnexpectedAlertOpen.
	Alert *Alert
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Alert != nil && e.Alert.Text != "" {
		fmt.Fprintf(&b, " (alert text: %q)", e.Alert.Text)
	}
	return b.String()
}

// ResponseError is returned when a failed response carries a bare string
// value instead of a structured one. Response is the whole decoded payload.
type ResponseError struct {
	Response Response
	Message  string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("error in response (status %d): %s", e.Response.Status, e.Message)
}

// IsKind reports whether err wraps a driver error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
