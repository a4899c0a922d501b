package specialcase

import "github.com/tb0hdan/reptor-mcp/pkg/signature"

const findingExample = `Finding JSON passed to the plugin on standard input. Example:
{
  "status": "in-progress",
  "data": {
    "title": "Sample Finding Title",
    "cvss": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:N/A:N",
    "summary": "A brief summary of the finding.",
    "description": "A detailed description of the vulnerability.",
    "recommendation": "Steps to mitigate or fix the vulnerability.",
    "affected_components": ["component1.example.com/path"],
    "references": ["https://cwe.mitre.org/data/definitions/79.html"]
  }
}
Use list_findings or get_finding_details to inspect the structure used by the target project.`

// Default returns the built-in table.
func Default() Table {
	return Table{
		"note": {
			Stdin: &Stdin{
				Required: true,
				Help:     "Note body passed to the plugin on standard input.",
			},
			GlobalFlags: []GlobalFlag{
				{Param: "title", Flag: "--notetitle", Help: "Title of the note to create or append to."},
			},
		},
		"finding": {
			Stdin: &Stdin{
				Required: true,
				Help:     findingExample,
			},
		},
		"file": {
			Coerce: map[string]signature.Type{
				"file": signature.TypeList,
			},
			InlineFiles: []InlineFile{
				{
					Param:  "file_content",
					Target: "file",
					Help:   "Inline file contents. Each entry is written to a temporary file that is uploaded and removed afterwards.",
				},
			},
		},
	}
}
