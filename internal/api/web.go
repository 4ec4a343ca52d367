package api

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gwi.com/analyst-assistant/internal/auth"
	"gwi.com/analyst-assistant/internal/core"
)

const themeCookie = "theme"

// notices are the flash messages a redirect can ask for by key.
var notices = map[string]string{
	"created":   "✅ Account created! Please log in.",
	"feedback":  "Thanks for the feedback!",
	"cleared":   "🗑️ Chat history cleared.",
	"loggedout": "You have been logged out.",
}

type exchangeView struct {
	Question string
	Answer   template.HTML
	Raw      string
}

type pageData struct {
	Title  string
	Path   string
	Dark   bool
	Notice string
	Error  string

	// Login page
	Tab string

	// Chat page; Email is also the prefilled login field.
	Email   string
	Latest  *exchangeView
	History []exchangeView
	Count   int
	View    string
	Query   string
}

func newPageData(r *http.Request, title string) *pageData {
	data := &pageData{
		Title:  title,
		Path:   r.URL.RequestURI(),
		Notice: notices[r.URL.Query().Get("notice")],
	}
	if c, err := r.Cookie(themeCookie); err == nil && c.Value == "dark" {
		data.Dark = true
	}
	return data
}

func (h *Handler) IndexPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := sessionFrom(r.Context()).Member(); ok {
		http.Redirect(w, r, "/chat", http.StatusSeeOther)
		return
	}
	data := newPageData(r, "Login")
	data.Tab = r.URL.Query().Get("tab")
	h.render(w, http.StatusOK, "login", data)
}

func (h *Handler) SignupForm(w http.ResponseWriter, r *http.Request) {
	email, password := r.PostFormValue("email"), r.PostFormValue("password")

	if err := sessionFrom(r.Context()).SignUp(r.Context(), email, password); err != nil {
		if authStatus(err) >= http.StatusInternalServerError {
			h.logger.Error("sign up failed", zap.Error(err))
		}
		data := newPageData(r, "Sign Up")
		data.Tab = "signup"
		data.Email = email
		data.Error = authMessage(err)
		h.render(w, authStatus(err), "login", data)
		return
	}
	http.Redirect(w, r, "/?tab=login&notice=created", http.StatusSeeOther)
}

func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	email, password := r.PostFormValue("email"), r.PostFormValue("password")

	tr, err := sessionFrom(r.Context()).Login(r.Context(), email, password)
	if err != nil {
		if authStatus(err) >= http.StatusInternalServerError {
			h.logger.Error("login failed", zap.Error(err))
		}
		data := newPageData(r, "Login")
		data.Email = email
		data.Error = authMessage(err)
		h.render(w, authStatus(err), "login", data)
		return
	}
	if tr.Changed() {
		h.logger.Debug("session authenticated", zap.String("from", tr.From.String()))
	}
	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

func (h *Handler) LogoutForm(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).Logout()
	http.Redirect(w, r, "/?notice=loggedout", http.StatusSeeOther)
}

func (h *Handler) ChatPage(w http.ResponseWriter, r *http.Request) {
	h.renderChat(w, r, http.StatusOK, newPageData(r, "Chat"))
}

func (h *Handler) renderChat(w http.ResponseWriter, r *http.Request, status int, data *pageData) {
	member := memberFrom(r.Context())
	log := member.History()

	data.Email = member.Identity()
	data.View = r.URL.Query().Get("view")
	data.Query = r.URL.Query().Get("q")
	data.Count = log.Len()

	if latest, ok := log.Latest(); ok {
		data.Latest = &exchangeView{
			Question: latest.Question,
			Answer:   renderAnswer(latest.Answer),
			Raw:      latest.Answer,
		}
	}

	if data.View == "search" {
		for ex := range log.Search(data.Query) {
			data.History = append(data.History, exchangeView{Question: ex.Question})
		}
	} else {
		for ex := range log.All() {
			data.History = append(data.History, exchangeView{
				Question: ex.Question,
				Answer:   renderAnswer(ex.Answer),
			})
		}
	}

	h.render(w, status, "chat", data)
}

// AskForm submits a question. An answered question redirects back to the
// chat page; notices and errors are rendered in place.
func (h *Handler) AskForm(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.pipeline.Submit(r.Context(), memberFrom(r.Context()), r.PostFormValue("question"))
	if err != nil {
		if errors.Is(err, auth.ErrSessionEnded) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		data := newPageData(r, "Chat")
		data.Error = core.DescribeError(err)
		h.renderChat(w, r, http.StatusBadGateway, data)
		return
	}

	if outcome.Refresh {
		http.Redirect(w, r, "/chat", http.StatusSeeOther)
		return
	}
	data := newPageData(r, "Chat")
	data.Notice = outcome.Notice
	h.renderChat(w, r, http.StatusOK, data)
}

func (h *Handler) FeedbackForm(w http.ResponseWriter, r *http.Request) {
	var helpful bool
	switch r.PostFormValue("verdict") {
	case "helpful":
		helpful = true
	case "not_helpful":
	default:
		http.Error(w, "Unknown verdict", http.StatusBadRequest)
		return
	}

	if err := h.mark(r, helpful); err != nil {
		data := newPageData(r, "Chat")
		data.Error = "There is no answer to rate yet."
		h.renderChat(w, r, http.StatusConflict, data)
		return
	}
	http.Redirect(w, r, "/chat?notice=feedback", http.StatusSeeOther)
}

func (h *Handler) ClearHistoryForm(w http.ResponseWriter, r *http.Request) {
	h.pipeline.ClearHistory(memberFrom(r.Context()))
	http.Redirect(w, r, "/chat?notice=cleared", http.StatusSeeOther)
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.writeExport(w, r)
}

// ThemeToggle flips the dark mode cookie and returns to the posted path.
func (h *Handler) ThemeToggle(w http.ResponseWriter, r *http.Request) {
	next := "dark"
	if c, err := r.Cookie(themeCookie); err == nil && c.Value == "dark" {
		next = "light"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     themeCookie,
		Value:    next,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	target := r.PostFormValue("return")
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
