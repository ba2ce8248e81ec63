package server

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/KevTale/hakai/internal/types"
)

// Shell renders the HTML document serving a compiled page. The page script
// is not inlined: the live reload client runs it once the socket delivers
// the first update.
func Shell(page types.CompiledPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return writeDocument(w, page.Style, page.Content, true)
	})
}

// ErrorShell renders a document showing a compile or resolution error.
// The live reload client still connects, so fixing the source replaces
// the error with the page.
func ErrorShell(message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		body := `<pre id="hakai-error-overlay">` + templ.EscapeString(message) + `</pre>`
		return writeDocument(w, "", body, true)
	})
}

// Document renders a standalone page with its script inlined and no live
// reload client, as written by the build command.
func Document(page types.CompiledPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		body := page.Content
		if page.Script != "" {
			body += "\n<script>\n" + page.Script + "\n</script>"
		}
		return writeDocument(w, page.Style, body, false)
	})
}

func writeDocument(w io.Writer, style, body string, client bool) error {
	parts := []string{
		"<!DOCTYPE html>\n<html>\n<head>\n",
		`<meta charset="UTF-8">` + "\n",
		`<meta name="viewport" content="width=device-width, initial-scale=1.0">` + "\n",
		`<link rel="icon" type="image/x-icon" href="/favicon.ico">` + "\n",
	}
	if client {
		parts = append(parts, `<script src="`+ClientScriptPath+`" defer></script>`+"\n")
	}
	if style != "" {
		parts = append(parts, "<style data-hakai>\n"+style+"\n</style>\n")
	}
	parts = append(parts, "</head>\n<body>\n", body, "\n</body>\n</html>\n")

	for _, part := range parts {
		if _, err := io.WriteString(w, part); err != nil {
			return err
		}
	}
	return nil
}
