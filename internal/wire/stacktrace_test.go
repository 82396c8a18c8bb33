package wire

import (
	"testing"

	"github.com/tidwall/gjson"
)

func strp(s string) *string { return &s }

func TestStackFrameString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		frame StackFrame
		want  string
	}{
		{"empty", StackFrame{}, "    at <anonymous> (<anonymous>)"},
		{"file only", StackFrame{FileName: strp("a.js")}, "    at <anonymous> (a.js)"},
		{"file and line", StackFrame{FileName: strp("a.js"), LineNumber: strp("3")}, "    at <anonymous> (a.js:3)"},
		{"line without file", StackFrame{LineNumber: strp("3")}, "    at <anonymous> (<anonymous>:3)"},
		{"class without method", StackFrame{ClassName: strp("Page")}, "    at Page.<anonymous> (<anonymous>)"},
		{"full", StackFrame{MethodName: strp("go"), FileName: strp("b.js"), ClassName: strp("Nav"), LineNumber: strp("9")}, "    at Nav.go (b.js:9)"},
	}
	for _, tt := range tests {
		if got := tt.frame.String(); got != tt.want {
			t.Errorf("%s: String() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseStackFrame(t *testing.T) {
	t.Parallel()
	f, ok := ParseStackFrame(gjson.Parse(`{"fileName":null,"lineNumber":false,"methodName":7}`))
	if !ok {
		t.Fatal("expected object frame to parse")
	}
	if f.FileName != nil {
		t.Errorf("null fileName should be absent, got %q", *f.FileName)
	}
	if f.LineNumber != nil {
		t.Errorf("false lineNumber should be absent, got %q", *f.LineNumber)
	}
	if f.MethodName == nil || *f.MethodName != "7" {
		t.Errorf("methodName = %v, want \"7\"", f.MethodName)
	}

	if _, ok := ParseStackFrame(gjson.Parse(`"frame"`)); ok {
		t.Error("string entry should not parse as a frame")
	}
}
