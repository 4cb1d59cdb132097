package recaptcha

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/options"
	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/settings"
)

func protectedStore(t *testing.T, s settings.Settings) options.Store {
	t.Helper()
	ctx := context.Background()
	store := options.NewMemory()
	_, err := settings.Save(ctx, store, settings.MainForm, s)
	require.NoError(t, err)
	require.NoError(t, settings.SaveAttributes(ctx, store, settings.MainForm, settings.Attributes{CaptchaType: settings.CaptchaRecaptcha}))
	return store
}

func guarded(t *testing.T, store options.Store, stub *siteverifyStub) (http.Handler, *bool) {
	t.Helper()
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		_, ok := DecisionFromContext(r.Context())
		assert.True(t, ok)
		w.WriteHeader(http.StatusNoContent)
	})
	mw := Middleware(settings.StoreProvider{Store: store}, WithEngine(engineFor(stub)), WithMiddlewareLogger(quietLogger))
	return mw(next), &reached
}

func postForm(h http.Handler, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "203.0.113.7:4312"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeFailure(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestMiddleware_PassesUnprotectedForms(t *testing.T) {
	stub := newSiteverifyStub(t, http.StatusOK, `{"success":false}`)
	h, reached := guarded(t, options.NewMemory(), stub)

	rec := postForm(h, url.Values{})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, *reached)
	assert.Zero(t, stub.calls.Load())
}

func TestMiddleware_CheckboxMissingToken(t *testing.T) {
	stub := newSiteverifyStub(t, http.StatusOK, `{"success":true}`)
	h, reached := guarded(t, protectedStore(t, cfgFor(settings.VariantCheckbox, 0)), stub)

	rec := postForm(h, url.Values{FormIDField: {"1"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, *reached)
	assert.Zero(t, stub.calls.Load())

	body := decodeFailure(t, rec)
	assert.Equal(t, "unverified", body["reason"])
	assert.Equal(t, settings.DefaultMessages().Unverified, body["notice"])
	assert.Equal(t, "unverified_recaptcha", body["error_class"])
}

func TestMiddleware_ExpiredMarkerShortCircuits(t *testing.T) {
	stub := newSiteverifyStub(t, http.StatusOK, `{"success":true}`)
	h, reached := guarded(t, protectedStore(t, cfgFor(settings.VariantCheckbox, 0)), stub)

	rec := postForm(h, url.Values{
		TokenField:     {"stale-token"},
		MarkerField(1): {ExpiredValue},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, *reached)
	assert.Zero(t, stub.calls.Load())
	assert.Equal(t, "expired", decodeFailure(t, rec)["reason"])
}

func TestMiddleware_MarkerIgnoredForOtherVariants(t *testing.T) {
	stub := newSiteverifyStub(t, http.StatusOK, `{"success":true}`)
	h, reached := guarded(t, protectedStore(t, cfgFor(settings.VariantInvisible, 0)), stub)

	rec := postForm(h, url.Values{TokenField: {"tok"}, MarkerField(1): {ExpiredValue}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, *reached)
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestMiddleware_ForwardsTokenAndIP(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = w.Write([]byte(`{"success":true,"action":"submit_form","score":0.9}`))
	}))
	defer srv.Close()

	store := protectedStore(t, cfgFor(settings.VariantV3, 0.5))
	mw := Middleware(settings.StoreProvider{Store: store},
		WithEngine(NewEngine(WithGoogle(srv.URL, nil), WithLogger(quietLogger))),
		WithMiddlewareLogger(quietLogger),
	)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	rec := postForm(h, url.Values{TokenField: {"tok-123"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-123", got.Get("response"))
	assert.Equal(t, "203.0.113.7", got.Get("remoteip"))
	assert.Equal(t, "secret", got.Get("secret"))
}

func TestMiddleware_InvalidScore(t *testing.T) {
	stub := newSiteverifyStub(t, http.StatusOK, `{"success":true,"action":"submit_form","score":0.4}`)
	h, reached := guarded(t, protectedStore(t, cfgFor(settings.VariantV3, 0.5)), stub)

	rec := postForm(h, url.Values{TokenField: {"tok"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, *reached)
	assert.Equal(t, settings.DefaultMessages().Invalid, decodeFailure(t, rec)["notice"])
}

func TestMiddleware_FailOpen(t *testing.T) {
	stub := newSiteverifyStub(t, http.StatusBadGateway, ``)
	h, reached := guarded(t, protectedStore(t, cfgFor(settings.VariantV3, 0.5)), stub)

	rec := postForm(h, url.Values{TokenField: {"tok"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, *reached)
}

func TestMiddleware_JSONBodyToken(t *testing.T) {
	stub := newSiteverifyStub(t, http.StatusOK, `{"success":true}`)
	store := protectedStore(t, cfgFor(settings.VariantCheckbox, 0))

	var body string
	mw := Middleware(settings.StoreProvider{Store: store}, WithEngine(engineFor(stub)), WithMiddlewareLogger(quietLogger))
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := new(strings.Builder)
		_, _ = io.Copy(b, r.Body)
		body = b.String()
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{"token":"json-tok","name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), stub.calls.Load())
	assert.Equal(t, `{"token":"json-tok","name":"x"}`, body, "body is restored for the next handler")
}

func TestMiddleware_PerFormSettings(t *testing.T) {
	ctx := context.Background()
	stub := newSiteverifyStub(t, http.StatusOK, `{"success":true}`)
	store := protectedStore(t, cfgFor(settings.VariantCheckbox, 0))
	require.NoError(t, settings.SaveAttributes(ctx, store, 2, settings.Attributes{CaptchaType: settings.CaptchaMath}))

	h, reached := guarded(t, store, stub)
	rec := postForm(h, url.Values{FormIDField: {"2"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, *reached)
}

type brokenProvider struct{}

func (brokenProvider) ForForm(context.Context, int) (settings.Settings, settings.Attributes, error) {
	return settings.Settings{}, settings.Attributes{}, assert.AnError
}

func TestMiddleware_SettingsUnavailable(t *testing.T) {
	h := Middleware(brokenProvider{}, WithMiddlewareLogger(quietLogger))(http.NotFoundHandler())
	rec := postForm(h, url.Values{})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFormIDFromRequest(t *testing.T) {
	tests := map[string]int{"": 1, "3": 3, "abc": 1, "0": 1, " 12 ": 12}
	for raw, want := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(url.Values{FormIDField: {raw}}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		assert.Equal(t, want, FormIDFromRequest(req), "form_id=%q", raw)
	}
}
