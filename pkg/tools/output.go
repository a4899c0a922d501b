package tools

import (
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tb0hdan/reptor-mcp/pkg/types"
)

// Paginate returns a window of output lines. A header is prepended when the window does
// not cover the whole output.
func Paginate(output string, maxLines, offset int) string {
	if maxLines <= 0 {
		maxLines = types.MaxDefaultLines
	}
	if maxLines > types.MaxAllowedLines {
		maxLines = types.MaxAllowedLines
	}
	if offset < 0 {
		offset = 0
	}

	output = strings.TrimRight(output, "\n")
	lines := strings.Split(output, "\n")
	totalLines := len(lines)

	if offset >= totalLines && offset > 0 {
		return fmt.Sprintf("[Offset %d is beyond the end of the output (%d lines).]", offset, totalLines)
	}

	end := totalLines
	if offset+maxLines < totalLines {
		end = offset + maxLines
	}
	window := lines[offset:end]

	if offset == 0 && end == totalLines {
		return output
	}

	header := fmt.Sprintf("[Showing lines %d-%d of %d lines. Use the %s parameter to view more.]\n",
		offset+1, offset+len(window), totalLines, types.ParamOffset)
	return header + strings.Join(window, "\n")
}

// TextResult builds a successful result with one text block per non-empty text.
func TextResult(texts ...string) *mcp.CallToolResult {
	result := &mcp.CallToolResult{}
	for _, text := range texts {
		if text == "" {
			continue
		}
		result.Content = append(result.Content, &mcp.TextContent{Text: text})
	}
	if len(result.Content) == 0 {
		result.Content = []mcp.Content{&mcp.TextContent{Text: ""}}
	}
	return result
}

// ErrorResult builds a tool-level error result.
func ErrorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
