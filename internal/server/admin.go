package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/settings"
)

// secretMask replaces the secret key in admin responses. Submitting it back
// keeps the stored secret.
const secretMask = "********"

type settingsView struct {
	FormID     int                 `json:"form_id"`
	Settings   settings.Settings   `json:"settings"`
	Attributes settings.Attributes `json:"attributes"`
}

func (h *Handler) listForms(w http.ResponseWriter, r *http.Request) {
	forms, err := settings.Forms(r.Context(), h.store)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	version, err := settings.InstalledVersion(r.Context(), h.store)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	// The main form always exists; Forms lists the others.
	forms = append([]int{settings.MainForm}, forms...)
	h.writeJSON(w, http.StatusOK, map[string]any{"forms": forms, "version": version})
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	formID := formIDFromRoute(r)
	s, err := settings.Load(r.Context(), h.store, formID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	attrs, err := settings.LoadAttributes(r.Context(), h.store, formID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if s.SecretKey != "" {
		s.SecretKey = secretMask
	}
	h.writeJSON(w, http.StatusOK, settingsView{FormID: formID, Settings: s, Attributes: attrs})
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var s settings.Settings
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&s); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		return
	}
	variant, err := settings.ParseVariant(string(s.Variant))
	if err != nil {
		h.writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION", err.Error())
		return
	}
	s.Variant = variant
	h.save(w, r, s)
}

func (h *Handler) postSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "invalid form body")
		return
	}
	_, s := settings.ParseForm(r.PostForm)
	h.save(w, r, s)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, s settings.Settings) {
	formID := formIDFromRoute(r)
	if s.SecretKey == secretMask {
		current, err := settings.Load(r.Context(), h.store, settings.MainForm)
		if err != nil {
			h.storeError(w, r, err)
			return
		}
		s.SecretKey = current.SecretKey
	}

	saved, err := settings.Save(r.Context(), h.store, formID, s)
	if errors.Is(err, settings.ErrValidation) {
		h.writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION", err.Error())
		return
	}
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.logger.Info("settings saved", "form_id", formID, "variant", saved.Variant, "enabled", saved.Enabled,
		"correlationId", correlationIDFrom(r.Context()))

	if saved.SecretKey != "" {
		saved.SecretKey = secretMask
	}
	attrs, err := settings.LoadAttributes(r.Context(), h.store, formID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, settingsView{FormID: formID, Settings: saved, Attributes: attrs})
}

func (h *Handler) putAttributes(w http.ResponseWriter, r *http.Request) {
	formID := formIDFromRoute(r)
	var attrs settings.Attributes
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&attrs); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		return
	}
	err := settings.SaveAttributes(r.Context(), h.store, formID, attrs)
	if errors.Is(err, settings.ErrValidation) {
		h.writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION", err.Error())
		return
	}
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"form_id": formID, "attributes": attrs})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	doc, err := settings.Export(r.Context(), h.store)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	w.Header().Set(headerContentType, "application/yaml")
	_, _ = w.Write(out)
}

func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("settings store failed", "path", r.URL.Path, "error", err, "correlationId", correlationIDFrom(r.Context()))
	h.writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error")
}
