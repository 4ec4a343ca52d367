package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = map[string]*template.Template{
	"login": parsePage("login.html"),
	"chat":  parsePage("chat.html"),
}

func parsePage(name string) *template.Template {
	return template.Must(template.New("base.html").ParseFS(templateFS, "templates/base.html", "templates/"+name))
}

// Linkify stays off so rendered answers cannot regain links.
var (
	markdownOnce   sync.Once
	markdownEngine goldmark.Markdown
	answerPolicy   *bluemonday.Policy
)

func markdown() (goldmark.Markdown, *bluemonday.Policy) {
	markdownOnce.Do(func() {
		markdownEngine = goldmark.New(
			goldmark.WithExtensions(
				extension.Table,
				extension.Strikethrough,
				extension.TaskList,
			),
		)
		answerPolicy = bluemonday.UGCPolicy()
	})
	return markdownEngine, answerPolicy
}

// renderAnswer turns a sanitized answer into safe HTML.
func renderAnswer(answer string) template.HTML {
	if answer == "" {
		return ""
	}
	md, policy := markdown()

	var buf bytes.Buffer
	if err := md.Convert([]byte(answer), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(answer) + "</p>")
	}
	return template.HTML(policy.SanitizeBytes(buf.Bytes()))
}

func (h *Handler) render(w http.ResponseWriter, status int, page string, data *pageData) {
	var buf bytes.Buffer
	if err := pages[page].Execute(&buf, data); err != nil {
		h.logger.Error("failed to render page", zap.String("page", page), zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
