package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/neuroplatform/simforms/pkg/apiclient"
	"github.com/neuroplatform/simforms/pkg/blocks"
	"github.com/neuroplatform/simforms/pkg/form"
	"github.com/neuroplatform/simforms/pkg/orchestrator"
	"github.com/neuroplatform/simforms/pkg/preview"
	"github.com/neuroplatform/simforms/pkg/render"
	"github.com/neuroplatform/simforms/pkg/renderers/vanilla"
	"github.com/neuroplatform/simforms/pkg/renderers/vanilla/components"
	"github.com/neuroplatform/simforms/pkg/schema"
)

// confirmFieldName marks a generate post that should be sent even though the
// payload failed schema validation.
const confirmFieldName = "_confirm"

const (
	msgStaleBlock  = "The form was posted for a block that is no longer selected. Values were not saved."
	msgInvalidSend = "The payload does not match the request schema. Press Generate again to send it anyway."
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.PublicSettings())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(preview.Render(r.URL.Query().Get("text"))))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AuthURL == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	session := s.sessions.Get(w, r)
	query := r.URL.Query()
	state, silent := session.beginLogin(query.Get("next"), query.Get("prompt") == "login")

	target, err := url.Parse(s.cfg.AuthURL)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, fmt.Errorf("server: auth url: %w", err))
		return
	}
	params := target.Query()
	params.Set("redirect_uri", callbackURL(r))
	params.Set("state", state)
	if silent {
		params.Set("prompt", "none")
	}
	target.RawQuery = params.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

// handleCallback receives the identity provider redirect. A refused silent
// login falls back to an interactive one.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessions.Lookup(r)
	if !ok {
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}
	query := r.URL.Query()
	if reason := query.Get("error"); reason != "" {
		if session.abortLogin(query.Get("state")) {
			s.logger.Debug("silent login refused", "error", reason)
			http.Redirect(w, r, "/login?prompt=login", http.StatusFound)
			return
		}
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}
	next, ok := session.completeLogin(query.Get("state"), query.Get("access_token"), s.now())
	if !ok {
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, next, http.StatusFound)
}

func callbackURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: r.Host, Path: "/auth/callback"}).String()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := sessionFrom(ctx)
	ctx = apiclient.ContextWithToken(ctx, session.Token())

	index := vanilla.IndexPage{Title: s.cfg.AppName}
	status := http.StatusOK
	catalog, err := s.catalog(ctx, true)
	if err != nil {
		s.logger.Warn("fetch api document", "error", err)
		index.Errors = append(index.Errors, err.Error())
		status = http.StatusBadGateway
	} else {
		index.Forms = catalog.Links("")
		if advertised, err := s.client.Forms(ctx); err != nil {
			s.logger.Debug("list forms", "error", err)
		} else {
			index.Forms = filterLinks(index.Forms, advertised)
		}
	}

	theme, err := s.orch.ThemeConfig(s.cfg.ThemeName, s.variant(r))
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	out, err := s.pages.RenderIndex(ctx, index, render.RenderOptions{Theme: theme})
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", s.pages.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(out)
}

// filterLinks keeps the links the API advertises. An empty listing keeps
// every link.
func filterLinks(links []render.FormLink, advertised []string) []render.FormLink {
	if len(advertised) == 0 {
		return links
	}
	allowed := make(map[string]bool, len(advertised))
	for _, path := range advertised {
		allowed[orchestrator.NormalizePath(path)] = true
	}
	out := make([]render.FormLink, 0, len(links))
	for _, link := range links {
		if allowed[link.Path] {
			out = append(out, link)
		}
	}
	return out
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := sessionFrom(ctx)
	path := orchestrator.NormalizePath(r.PathValue("path"))

	catalog, err := s.catalog(apiclient.ContextWithToken(ctx, session.Token()), false)
	if err != nil {
		s.fail(w, r, http.StatusBadGateway, err)
		return
	}
	ws, err := s.workspace(session, catalog, path)
	if err != nil {
		s.fail(w, r, statusFor(err), err)
		return
	}
	renderer, err := s.orch.Registry().Negotiate(r.Header.Get("Accept"))
	if err != nil {
		s.fail(w, r, http.StatusNotAcceptable, err)
		return
	}

	pending, _ := session.takeFlash(path)
	hidden := []render.HiddenField{render.CSRFToken(session.CSRF)}
	if pending.confirm {
		hidden = append(hidden, render.Hidden(confirmFieldName, "1"))
	}
	doc := catalog.Document()
	out, err := s.orch.Generate(ctx, orchestrator.Request{
		Document:  &doc,
		Path:      path,
		Workspace: ws,
		Renderer:  renderer.Name(),
		Page: render.PageOptions{
			FieldErrors: pending.fieldErrors,
			FormErrors:  pending.formErrors,
			Result:      pending.result,
		},
		ThemeName:    s.cfg.ThemeName,
		ThemeVariant: s.variant(r),
		RenderOptions: render.RenderOptions{
			Hidden:   render.MergeHiddenFields(nil, hidden...),
			Fragment: r.URL.Query().Get("fragment") == "1",
		},
	})
	if err != nil {
		s.fail(w, r, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", renderer.ContentType())
	_, _ = w.Write(out)
}

func (s *Server) variant(r *http.Request) string {
	if variant := strings.TrimSpace(r.URL.Query().Get("variant")); variant != "" {
		return variant
	}
	return s.cfg.ThemeVariant
}

// submission is a validated workspace post.
type submission struct {
	session *Session
	catalog *orchestrator.Catalog
	ws      *blocks.Workspace
	path    string
	form    url.Values
}

// begin parses and authorises a workspace post. It writes the error response
// and returns false when the post cannot be handled.
func (s *Server) begin(w http.ResponseWriter, r *http.Request) (*submission, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form payload", http.StatusBadRequest)
		return nil, false
	}
	session := sessionFrom(r.Context())
	token := r.PostForm.Get(render.CSRFFieldName)
	if subtle.ConstantTimeCompare([]byte(token), []byte(session.CSRF)) != 1 {
		http.Error(w, "invalid csrf token", http.StatusForbidden)
		return nil, false
	}

	path := orchestrator.NormalizePath(r.PathValue("path"))
	catalog, err := s.catalog(apiclient.ContextWithToken(r.Context(), session.Token()), false)
	if err != nil {
		s.fail(w, r, http.StatusBadGateway, err)
		return nil, false
	}
	ws, err := s.workspace(session, catalog, path)
	if err != nil {
		s.fail(w, r, statusFor(err), err)
		return nil, false
	}
	return &submission{session: session, catalog: catalog, ws: ws, path: path, form: r.PostForm}, true
}

// finish stores the outcome and redirects back to the workspace page.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, sub *submission, outcome flash) {
	if outcome.fieldErrors != nil || outcome.formErrors != nil || outcome.result != nil || outcome.confirm {
		sub.session.setFlash(sub.path, outcome)
	}
	http.Redirect(w, r, "/forms"+sub.path, http.StatusSeeOther)
}

// saveValues stores the posted control values on the active block, leaving
// out the names in skip. Posts made for another block are rejected so stale
// tabs cannot overwrite values.
func saveValues(sub *submission, skip ...string) (flash, bool) {
	if sub.form.Get(render.BlockFieldName) != sub.ws.Active().ID {
		return flash{formErrors: []string{msgStaleBlock}}, false
	}
	values := controlValues(sub.form)
	for _, name := range skip {
		delete(values, name)
	}
	if err := sub.ws.UpdateValues(values); err != nil {
		if byPath := form.FieldErrors(err); len(byPath) > 0 {
			return flash{fieldErrors: byPath}, false
		}
		return flash{formErrors: []string{err.Error()}}, false
	}
	return flash{}, true
}

// controlValues keeps the last posted value of every control. Checkboxes post
// a hidden "false" before their "true".
func controlValues(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for name, posted := range values {
		if strings.HasPrefix(name, "_") || len(posted) == 0 {
			continue
		}
		out[name] = posted[len(posted)-1]
	}
	return out
}

func (s *Server) handleValues(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.begin(w, r)
	if !ok {
		return
	}
	outcome, _ := saveValues(sub)
	s.finish(w, r, sub, outcome)
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.begin(w, r)
	if !ok {
		return
	}
	outcome, saved := saveValues(sub)
	if !saved && outcome.fieldErrors == nil {
		s.finish(w, r, sub, outcome)
		return
	}
	if err := applyRowAction(sub.ws, sub.form.Get(components.RowParam)); err != nil {
		outcome.formErrors = render.MergeFormErrors(outcome.formErrors, err.Error())
	}
	s.finish(w, r, sub, outcome)
}

// blockActionFields are the inputs of explicit block action posts. They are
// not field values of the active block.
var blockActionFields = []string{"section", "id", "type", "name"}

// blockTarget reads the section and block a sidebar action applies to, either
// from the button posted with the panel form or from explicit fields.
func blockTarget(values url.Values) (section, id string) {
	if target := values.Get(render.TargetFieldName); target != "" {
		return render.ParseBlockTarget(target)
	}
	return values.Get("section"), values.Get("id")
}

// applyRowAction runs "add:<path>" or "remove:<path>:<index>".
func applyRowAction(ws *blocks.Workspace, action string) error {
	verb, rest, ok := strings.Cut(action, ":")
	if !ok || rest == "" {
		return fmt.Errorf("unknown row action %q", action)
	}
	switch verb {
	case "add":
		ws.AddRow(rest)
		return nil
	case "remove":
		idx := strings.LastIndex(rest, ":")
		if idx <= 0 {
			return fmt.Errorf("unknown row action %q", action)
		}
		index, err := strconv.Atoi(rest[idx+1:])
		if err != nil {
			return fmt.Errorf("invalid row index in %q", action)
		}
		return ws.RemoveRow(rest[:idx], index)
	}
	return fmt.Errorf("unknown row action %q", action)
}

func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.begin(w, r)
	if !ok {
		return
	}
	section, id := blockTarget(sub.form)
	action := r.PathValue("action")

	// Add and select change the active block, so the values posted for the
	// current one are saved first.
	if action == "add" || action == "select" {
		var skip []string
		if sub.form.Get(render.TargetFieldName) == "" {
			skip = blockActionFields
		}
		if outcome, saved := saveValues(sub, skip...); !saved {
			s.finish(w, r, sub, outcome)
			return
		}
	}

	var err error
	switch action {
	case "add":
		typeName := sub.form.Get("type")
		if typeName == "" {
			typeName = sub.form.Get(render.BlockTypeFieldPrefix + section)
		}
		_, err = sub.ws.AddBlock(section, typeName)
	case "rename":
		_, err = sub.ws.RenameBlock(section, id, sub.form.Get("name"))
	case "delete":
		err = sub.ws.DeleteBlock(section, id)
	case "select":
		_, err = sub.ws.SelectBlock(section, id)
	default:
		http.NotFound(w, r)
		return
	}

	var outcome flash
	if err != nil {
		outcome.formErrors = []string{err.Error()}
	}
	s.finish(w, r, sub, outcome)
}

// handleGenerate saves the posted values, validates the assembled payload
// and sends it to the endpoint. A payload that fails validation is only sent
// once the user confirms.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.begin(w, r)
	if !ok {
		return
	}
	if outcome, saved := saveValues(sub); !saved {
		s.finish(w, r, sub, outcome)
		return
	}

	op, err := sub.catalog.Operation(sub.path)
	if err != nil {
		s.fail(w, r, statusFor(err), err)
		return
	}
	active := sub.ws.Active()
	prefix := sub.ws.PayloadPath(active)
	activeForm, _, err := sub.ws.ActiveForm()
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	payload := sub.ws.Generate("")
	if sub.form.Get(confirmFieldName) != "1" {
		result, err := sub.catalog.Validate(sub.path, rootTagged(payload, sub.ws.Layout().RootType))
		if err != nil {
			s.fail(w, r, http.StatusInternalServerError, err)
			return
		}
		if !result.Valid {
			mapping := render.MapErrorPayload(activeForm, result.ForPrefix(""), prefix)
			s.finish(w, r, sub, flash{
				fieldErrors: mapping.Fields,
				formErrors:  render.MergeFormErrors(mapping.Form, msgInvalidSend),
				confirm:     true,
			})
			return
		}
	}

	ctx := apiclient.ContextWithToken(r.Context(), sub.session.Token())
	result := s.client.Invoke(ctx, op.Method, op.Path, payload)
	s.logger.Info("generate", "path", op.Path, "status", result.Status, "block", active.Name)

	outcome := flash{result: &render.Result{Status: result.Status, OK: result.OK, Body: indentJSON(result.Data)}}
	if !result.OK {
		mapping := render.MapErrorPayload(activeForm, result.FieldErrors(), prefix)
		outcome.fieldErrors = mapping.Fields
		outcome.formErrors = mapping.Form
		if len(mapping.Fields) == 0 && len(mapping.Form) == 0 {
			if detail := result.Detail(); detail != "" {
				outcome.formErrors = []string{detail}
			}
		}
	}
	s.finish(w, r, sub, outcome)
}

// rootTagged returns a shallow copy of payload carrying the root schema type.
// The request schema pins the top-level tag to the root form while the sent
// payload names the active block.
func rootTagged(payload map[string]any, rootType string) map[string]any {
	if rootType == "" {
		return payload
	}
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		out[key] = value
	}
	out[schema.DiscriminatorKey] = rootType
	return out
}

func indentJSON(data any) string {
	if data == nil {
		return ""
	}
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprint(data)
	}
	return string(encoded)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func statusFor(err error) int {
	if errors.Is(err, orchestrator.ErrUnknownPath) {
		return http.StatusNotFound
	}
	var fetchErr *apiclient.FetchError
	if errors.As(err, &fetchErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	http.Error(w, err.Error(), status)
}
