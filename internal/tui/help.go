package tui

import "webtodo-cli/internal/docs"

func helpMarkdown() string {
	if body, ok := docs.Get("keys"); ok {
		return body
	}
	return "# Keys\n\nPress **q** to quit."
}
