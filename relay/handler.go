package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pure-golang/orderbrowser/httpserver/middleware"
)

const (
	SendMailPath = "/send-mail"
	HealthPath   = "/healthz"

	SuccessMessage = "Email sent successfully."
	FailurePrefix  = "Failed to send email: "
)

// MailSender is what the handler needs from Service.
type MailSender interface {
	Send(ctx context.Context, req MailRequest) (string, error)
}

var _ MailSender = (*Service)(nil)

type Handler struct {
	svc          MailSender
	maxBodyBytes int64
}

func NewHandler(svc MailSender, cfg Config) *Handler {
	return &Handler{svc: svc, maxBodyBytes: cfg.MaxBodyBytes}
}

// Routes registers the relay endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post(SendMailPath, h.sendMail)
	r.Get(HealthPath, h.healthz)
}

// NewRouter returns the relay router with monitoring and panic recovery.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Monitoring, middleware.RecoveryText(FailurePrefix+"internal error"))
	h.Routes(r)
	return r
}

func (h *Handler) sendMail(w http.ResponseWriter, r *http.Request) {
	body := io.Reader(r.Body)
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	var req MailRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, FailurePrefix+"invalid request body: "+err.Error())
		return
	}

	if _, err := h.svc.Send(r.Context(), req); err != nil {
		writeText(w, http.StatusInternalServerError, FailurePrefix+err.Error())
		return
	}

	writeText(w, http.StatusOK, SuccessMessage)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
