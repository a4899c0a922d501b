package tools

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func numberedLines(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i+1)
	}
	return strings.Join(lines, "\n") + "\n"
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		maxLines  int
		offset    int
		header    string
		firstLine string
		lineCount int
	}{
		{"fits", numberedLines(3), 0, 0, "", "line 1", 3},
		{"default limit", numberedLines(250), 0, 0, "[Showing lines 1-200 of 250 lines.", "line 1", 201},
		{"custom limit", numberedLines(50), 10, 0, "[Showing lines 1-10 of 50 lines.", "line 1", 11},
		{"offset", numberedLines(50), 10, 45, "[Showing lines 46-50 of 50 lines.", "line 46", 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Paginate(tt.output, tt.maxLines, tt.offset)
			lines := strings.Split(got, "\n")

			if tt.header == "" {
				if lines[0] != tt.firstLine {
					t.Errorf("expected first line %q, got %q", tt.firstLine, lines[0])
				}
			} else {
				if !strings.HasPrefix(lines[0], tt.header) {
					t.Errorf("expected header %q, got %q", tt.header, lines[0])
				}
				if lines[1] != tt.firstLine {
					t.Errorf("expected first line %q, got %q", tt.firstLine, lines[1])
				}
			}
			if len(lines) != tt.lineCount {
				t.Errorf("expected %d lines, got %d", tt.lineCount, len(lines))
			}
		})
	}
}

func TestPaginate_OffsetBeyondEnd(t *testing.T) {
	got := Paginate(numberedLines(5), 10, 10)
	if !strings.Contains(got, "beyond the end") {
		t.Errorf("unexpected output %q", got)
	}
}

func TestTextResult(t *testing.T) {
	result := TextResult("stdout", "", "stderr")
	if result.IsError {
		t.Error("expected success result")
	}
	if ResultText(result) != "stdout\nstderr" {
		t.Errorf("unexpected text %q", ResultText(result))
	}

	empty := TextResult()
	if len(empty.Content) != 1 {
		t.Errorf("expected one empty text block, got %d", len(empty.Content))
	}
}

func TestErrorResult(t *testing.T) {
	result := ErrorResult(errors.New("boom"))
	if !result.IsError {
		t.Error("expected IsError")
	}
	if text, ok := result.Content[0].(*mcp.TextContent); !ok || text.Text != "boom" {
		t.Errorf("unexpected content %#v", result.Content[0])
	}
}
