package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spok95/ada-portal/internal/auth"
	"github.com/Spok95/ada-portal/internal/ctxutil"
	"github.com/Spok95/ada-portal/internal/export"
	"github.com/Spok95/ada-portal/internal/logging"
	"github.com/Spok95/ada-portal/internal/metrics"
	"github.com/Spok95/ada-portal/internal/models"
	"github.com/Spok95/ada-portal/internal/observability"
	"github.com/Spok95/ada-portal/internal/portal"
	"github.com/Spok95/ada-portal/internal/store"
)

const maxBody = 1 << 20

type API struct {
	svc *portal.Service
	log *zap.Logger
	mux *http.ServeMux
}

func NewAPI(svc *portal.Service, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	a := &API{svc: svc, log: log.Named("http"), mux: http.NewServeMux()}
	a.routes()
	return a
}

func (a *API) Handler() http.Handler { return a.mux }

type accountHandler func(w http.ResponseWriter, r *http.Request, acc models.Account)

func (a *API) routes() {
	a.handle("GET /healthz", a.healthz)
	a.mux.Handle("GET /metrics", metrics.Handler())
	a.handle("GET /api/diagnostics", a.diagnostics)

	a.handle("POST /api/login", a.login)
	a.handle("GET /api/session", a.authed(a.session))

	a.handle("GET /api/catalog", a.authed(a.catalog))
	a.handle("GET /api/progress", a.authed(a.progress))
	a.handle("PUT /api/progress/{classID}", a.authed(a.setProgress))
	a.handle("GET /api/ideas", a.authed(a.ideas))
	a.handle("POST /api/ideas", a.authed(a.addIdea))
	a.handle("POST /api/tutor", a.authed(a.tutor))
	a.handle("GET /api/report", a.authed(a.report))

	a.handle("GET /api/admin/accounts", a.admin(a.listAccounts))
	a.handle("POST /api/admin/accounts", a.admin(a.createAccount))
	a.handle("PATCH /api/admin/accounts/{email}", a.admin(a.updateAccount))
	a.handle("DELETE /api/admin/accounts/{email}", a.admin(a.deleteAccount))

	a.handle("GET /api/admin/modules", a.admin(a.listModules))
	a.handle("PUT /api/admin/modules", a.admin(a.replaceModules))
	a.handle("POST /api/admin/modules", a.admin(a.addModule))
	a.handle("PATCH /api/admin/modules/{id}", a.admin(a.updateModule))
	a.handle("DELETE /api/admin/modules/{id}", a.admin(a.deleteModule))
	a.handle("POST /api/admin/modules/{id}/classes", a.admin(a.addClass))
	a.handle("PATCH /api/admin/modules/{id}/classes/{classID}", a.admin(a.updateClass))
	a.handle("DELETE /api/admin/modules/{id}/classes/{classID}", a.admin(a.deleteClass))

	a.handle("GET /api/admin/export.xlsx", a.admin(a.exportXLSX))
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

// handle регистрирует маршрут с метриками и request id.
func (a *API) handle(pattern string, h http.HandlerFunc) {
	a.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		ctx := ctxutil.WithOp(ctxutil.WithRequestID(r.Context(), rid), pattern)

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h(rec, r.WithContext(ctx))

		metrics.HTTPRequests.WithLabelValues(pattern, fmt.Sprint(rec.code)).Inc()
		a.log.Debug("запрос",
			zap.String("route", pattern), zap.Int("code", rec.code),
			zap.String("request_id", rid), zap.Duration("took", time.Since(start)))
	})
}

func bearer(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (a *API) authed(h accountHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token", nil)
			return
		}
		acc, err := a.svc.Session(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session", nil)
			return
		}
		h(w, r.WithContext(ctxutil.WithEmail(r.Context(), acc.Email)), acc)
	}
}

func (a *API) admin(h accountHandler) http.HandlerFunc {
	return a.authed(func(w http.ResponseWriter, r *http.Request, acc models.Account) {
		if !acc.IsPrivileged() {
			writeError(w, http.StatusForbidden, "admin only", nil)
			return
		}
		h(w, r, acc)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

func writeError(w http.ResponseWriter, code int, msg string, we *store.WriteError) {
	body := errorBody{Error: msg}
	if we != nil {
		body.Kind = string(we.Kind)
		body.Hint = we.Kind.Hint()
	}
	writeJSON(w, code, body)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", portal.ErrInvalidInput, err)
	}
	return nil
}

// fail переводит ошибку сервиса в HTTP-ответ.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	var we *store.WriteError
	switch {
	case errors.As(err, &we):
		writeError(w, http.StatusBadGateway, "changes were saved locally but not in the remote store", we)
	case errors.Is(err, auth.ErrUnknownAccount), errors.Is(err, auth.ErrBadCredentials):
		writeError(w, http.StatusUnauthorized, "invalid email or password", nil)
	case errors.Is(err, auth.ErrInvalidSession):
		writeError(w, http.StatusUnauthorized, "invalid session", nil)
	case errors.Is(err, portal.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, portal.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, portal.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, portal.ErrPrivilegedAccount):
		writeError(w, http.StatusForbidden, err.Error(), nil)
	default:
		logging.FromContext(r.Context(), a.log).Error("запрос завершился ошибкой", zap.Error(err))
		observability.CaptureRequest(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	d := a.svc.Diagnostics()
	if !d.Ready {
		writeJSON(w, http.StatusServiceUnavailable, d)
		return
	}
	_, _ = w.Write([]byte("ok"))
}

func (a *API) diagnostics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Diagnostics())
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) session(w http.ResponseWriter, _ *http.Request, acc models.Account) {
	writeJSON(w, http.StatusOK, acc)
}

func (a *API) catalog(w http.ResponseWriter, r *http.Request, acc models.Account) {
	writeJSON(w, http.StatusOK, a.svc.Catalog(r.Context(), acc.Email))
}

func (a *API) progress(w http.ResponseWriter, r *http.Request, acc models.Account) {
	prog, sum := a.svc.Progress(r.Context(), acc.Email)
	writeJSON(w, http.StatusOK, map[string]any{"progress": prog, "stats": sum})
}

func (a *API) setProgress(w http.ResponseWriter, r *http.Request, acc models.Account) {
	var in struct {
		Completed bool `json:"completed"`
	}
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	sum, err := a.svc.SetCompleted(r.Context(), acc.Email, r.PathValue("classID"), in.Completed)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": sum})
}

func (a *API) ideas(w http.ResponseWriter, _ *http.Request, acc models.Account) {
	writeJSON(w, http.StatusOK, a.svc.Ideas(acc.Email))
}

func (a *API) addIdea(w http.ResponseWriter, r *http.Request, acc models.Account) {
	var in portal.IdeaInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	idea, err := a.svc.AddIdea(acc.Email, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, idea)
}

func (a *API) tutor(w http.ResponseWriter, r *http.Request, _ models.Account) {
	var in portal.TutorInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	answer, err := a.svc.Ask(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (a *API) report(w http.ResponseWriter, r *http.Request, acc models.Account) {
	writeJSON(w, http.StatusOK, map[string]string{"report": a.svc.Report(r.Context(), acc)})
}

func (a *API) listAccounts(w http.ResponseWriter, r *http.Request, _ models.Account) {
	writeJSON(w, http.StatusOK, a.svc.ListAccounts(r.Context()))
}

func (a *API) createAccount(w http.ResponseWriter, r *http.Request, by models.Account) {
	var in portal.NewAccount
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.svc.CreateAccount(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.log.Info("аккаунт создан администратором", logging.Email(by.Email))
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) updateAccount(w http.ResponseWriter, r *http.Request, _ models.Account) {
	var in portal.AccountPatch
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	acc, err := a.svc.UpdateAccount(r.Context(), r.PathValue("email"), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (a *API) deleteAccount(w http.ResponseWriter, r *http.Request, _ models.Account) {
	if err := a.svc.DeleteAccount(r.Context(), r.PathValue("email")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listModules(w http.ResponseWriter, r *http.Request, _ models.Account) {
	writeJSON(w, http.StatusOK, a.svc.Modules(r.Context()))
}

func (a *API) replaceModules(w http.ResponseWriter, r *http.Request, _ models.Account) {
	var in []models.Module
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	out, err := a.svc.ReplaceModules(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) addModule(w http.ResponseWriter, r *http.Request, _ models.Account) {
	var in portal.ModuleInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	m, err := a.svc.AddModule(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) updateModule(w http.ResponseWriter, r *http.Request, _ models.Account) {
	var in portal.ModuleInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	m, err := a.svc.UpdateModule(r.Context(), r.PathValue("id"), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) deleteModule(w http.ResponseWriter, r *http.Request, _ models.Account) {
	if err := a.svc.DeleteModule(r.Context(), r.PathValue("id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) addClass(w http.ResponseWriter, r *http.Request, _ models.Account) {
	var in portal.ClassInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	c, err := a.svc.AddClass(r.Context(), r.PathValue("id"), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) updateClass(w http.ResponseWriter, r *http.Request, _ models.Account) {
	var in portal.ClassInput
	if err := decode(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	c, err := a.svc.UpdateClass(r.Context(), r.PathValue("id"), r.PathValue("classID"), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) deleteClass(w http.ResponseWriter, r *http.Request, _ models.Account) {
	if err := a.svc.DeleteClass(r.Context(), r.PathValue("id"), r.PathValue("classID")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) exportXLSX(w http.ResponseWriter, r *http.Request, _ models.Account) {
	wb, err := a.svc.Export(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer func() { _ = wb.Close() }()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(time.Now())))
	if _, err := wb.WriteTo(w); err != nil {
		a.log.Warn("не удалось отдать выгрузку", zap.Error(err))
	}
}
