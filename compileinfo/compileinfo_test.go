package compileinfo

import (
	"strings"
	"testing"
)

func TestStringMentionsModified(t *testing.T) {
	c := CompileInfo{Package: "ctlesion", GoVersion: "go1.24", Commit: "abc123", Modified: true}

	s := c.String()
	if !strings.Contains(s, "abc123") || !strings.Contains(s, "modified") {
		t.Errorf("got %q", s)
	}

	f := c.Fields()
	if f["commit"] != "abc123" || f["modified"] != true {
		t.Errorf("got %v", f)
	}
}
