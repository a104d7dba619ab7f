package instructions

import "fmt"

// BuildPageContext produces an XML-formatted page context string describing
// the tab at url/title. Nothing in this module injects it into a session:
// cmd/wasmagent and cmd/agentcli pass only the tab URL, through the
// developer instructions.
func BuildPageContext(url, title string) string {
	if title == "" {
		title = "(untitled)"
	}

	return fmt.Sprintf(`<page_context>
  <url>%s</url>
  <title>%s</title>
</page_context>`, url, title)
}
