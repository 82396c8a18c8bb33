package wire

import "github.com/tidwall/gjson"

const anonymous = "<anonymous>"

// StackFrame is one remote frame as reported in a failure's stackTrace.
// Nil fields were absent from the payload.
type StackFrame struct {
	MethodName *string
	FileName   *string
	ClassName  *string
	LineNumber *string
}

// String renders the frame as "    at Class.method (file:line)", filling
// absent names with "<anonymous>".
func (f StackFrame) String() string {
	file := valueOr(f.FileName, anonymous)
	if line := valueOr(f.LineNumber, ""); line != "" {
		file += ":" + line
	}
	method := valueOr(f.MethodName, anonymous)
	if f.ClassName != nil {
		method = *f.ClassName + "." + method
	}
	return "    at " + method + " (" + file + ")"
}

func valueOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

// ParseStackFrame extracts a frame from one stackTrace entry. It reports
// false when the entry is not an object.
func ParseStackFrame(r gjson.Result) (StackFrame, bool) {
	if !r.IsObject() {
		return StackFrame{}, false
	}
	return StackFrame{
		MethodName: optionalString(r.Get("methodName")),
		FileName:   optionalString(r.Get("fileName")),
		ClassName:  optionalString(r.Get("className")),
		LineNumber: lineNumber(r.Get("lineNumber")),
	}, true
}

// renderStackTrace returns nil unless at least one frame could be read.
func renderStackTrace(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	var lines []string
	r.ForEach(func(_, entry gjson.Result) bool {
		if frame, ok := ParseStackFrame(entry); ok {
			lines = append(lines, frame.String())
		}
		return true
	})
	return lines
}

func optionalString(r gjson.Result) *string {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	s := r.String()
	return &s
}

// lineNumber drops zero and empty values; a frame without a usable line
// renders just the file name.
func lineNumber(r gjson.Result) *string {
	switch r.Type {
	case gjson.Number:
		if r.Num == 0 {
			return nil
		}
	case gjson.String:
		if r.Str == "" {
			return nil
		}
	case gjson.Null, gjson.False:
		return nil
	}
	return optionalString(r)
}
