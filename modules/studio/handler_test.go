package studio

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"influencia-studio-server/modules/common/apperr"
)

const testMaxUpload = 1 << 20

func setupRouter(t *testing.T, gen Generator) (*mux.Router, *Manager) {
	t.Helper()
	m := newTestManager(gen, nil)
	r := mux.NewRouter()
	NewHandler(m, testMaxUpload, zerolog.Nop()).RegisterRoutes(r)
	return r, m
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) Snapshot {
	t.Helper()
	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func multipartUpload(t *testing.T, r http.Handler, path, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="upload"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func jpegFixture(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func createSession(t *testing.T, r http.Handler) Snapshot {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/api/studio/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeSnapshot(t, rec)
}

func sessionPath(id, suffix string) string {
	return "/api/studio/sessions/" + id + suffix
}

func TestHandler_CreateAndGetSession(t *testing.T) {
	r, _ := setupRouter(t, &fakeGenerator{})

	created := createSession(t, r)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, StateIdle, created.State)
	assert.Equal(t, SourceGenerate, created.InfluencerSource)
	assert.Equal(t, AspectPortrait, created.AspectRatio)

	rec := doJSON(t, r, http.MethodGet, sessionPath(created.ID, ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeSnapshot(t, rec).ID)

	rec = doJSON(t, r, http.MethodGet, sessionPath("missing", ""), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, kindNotFound, decodeError(t, rec).Kind)
}

func TestHandler_DeleteSession(t *testing.T) {
	r, m := setupRouter(t, &fakeGenerator{})
	created := createSession(t, r)

	rec := doJSON(t, r, http.MethodDelete, sessionPath(created.ID, ""), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, m.Count())
}

func TestHandler_UpdateInputs(t *testing.T) {
	r, _ := setupRouter(t, &fakeGenerator{})
	created := createSession(t, r)

	rec := doJSON(t, r, http.MethodPatch, sessionPath(created.ID, "/inputs"), map[string]any{
		"aspectRatio":    "1:1",
		"changeScenario": true,
		"scenarioPrompt": "na praia",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeSnapshot(t, rec)
	assert.Equal(t, AspectSquare, snap.AspectRatio)
	assert.True(t, snap.ChangeScenario)
	assert.Equal(t, "na praia", snap.ScenarioPrompt)
	assert.Equal(t, DefaultActionPrompt, snap.ActionPrompt)

	rec = doJSON(t, r, http.MethodPatch, sessionPath(created.ID, "/inputs"), map[string]any{"aspectRatio": "4:3"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperr.KindValidation), decodeError(t, rec).Kind)
}

func TestHandler_SetSource(t *testing.T) {
	r, _ := setupRouter(t, &fakeGenerator{})
	created := createSession(t, r)
	require.Equal(t, http.StatusOK, doJSON(t, r, http.MethodPost, sessionPath(created.ID, "/influencer"), map[string]string{"image": uploadHandle}).Code)

	rec := doJSON(t, r, http.MethodPut, sessionPath(created.ID, "/source"), map[string]string{"source": "upload"})
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeSnapshot(t, rec)
	assert.Equal(t, SourceUpload, snap.InfluencerSource)
	assert.Empty(t, snap.InfluencerImage)

	rec = doJSON(t, r, http.MethodPut, sessionPath(created.ID, "/source"), map[string]string{"source": "camera"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_UploadInfluencer(t *testing.T) {
	t.Run("multipart jpeg", func(t *testing.T) {
		r, _ := setupRouter(t, &fakeGenerator{})
		created := createSession(t, r)

		rec := multipartUpload(t, r, sessionPath(created.ID, "/influencer"), "image/jpeg", jpegBytes)
		require.Equal(t, http.StatusOK, rec.Code)
		snap := decodeSnapshot(t, rec)
		assert.Equal(t, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(jpegBytes), snap.InfluencerImage)
	})

	t.Run("multipart octet-stream is sniffed", func(t *testing.T) {
		r, _ := setupRouter(t, &fakeGenerator{})
		created := createSession(t, r)

		rec := multipartUpload(t, r, sessionPath(created.ID, "/influencer"), "application/octet-stream", pngBytes)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.HasPrefix(decodeSnapshot(t, rec).InfluencerImage, "data:image/png;base64,"))
	})

	t.Run("unsupported multipart type", func(t *testing.T) {
		r, _ := setupRouter(t, &fakeGenerator{})
		created := createSession(t, r)

		rec := multipartUpload(t, r, sessionPath(created.ID, "/influencer"), "image/gif", []byte("GIF89a"))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Equal(t, kindUnsupportedMedia, decodeError(t, rec).Kind)
	})

	t.Run("octet-stream gif is rejected", func(t *testing.T) {
		r, _ := setupRouter(t, &fakeGenerator{})
		created := createSession(t, r)

		rec := multipartUpload(t, r, sessionPath(created.ID, "/influencer"), "application/octet-stream", []byte("GIF89a\x01\x00\x01\x00"))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Equal(t, kindUnsupportedMedia, decodeError(t, rec).Kind)

		rec = doJSON(t, r, http.MethodGet, sessionPath(created.ID, ""), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decodeSnapshot(t, rec).InfluencerImage)
	})

	t.Run("octet-stream text is rejected", func(t *testing.T) {
		r, _ := setupRouter(t, &fakeGenerator{})
		created := createSession(t, r)

		rec := multipartUpload(t, r, sessionPath(created.ID, "/product"), "application/octet-stream", []byte("hello, not an image"))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("raw base64 gif is rejected", func(t *testing.T) {
		r, _ := setupRouter(t, &fakeGenerator{})
		created := createSession(t, r)

		rec := doJSON(t, r, http.MethodPost, sessionPath(created.ID, "/influencer"), map[string]string{
			"image": base64.StdEncoding.EncodeToString([]byte("GIF89a\x01\x00\x01\x00")),
		})
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("raw base64 jpeg is sniffed", func(t *testing.T) {
		r, _ := setupRouter(t, &fakeGenerator{})
		created := createSession(t, r)

		rec := doJSON(t, r, http.MethodPost, sessionPath(created.ID, "/influencer"), map[string]string{
			"image": base64.StdEncoding.EncodeToString(jpegBytes),
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(jpegBytes), decodeSnapshot(t, rec).InfluencerImage)
	})

	t.Run("unsupported data url", func(t *testing.T) {
		r, _ := setupRouter(t, &fakeGenerator{})
		created := createSession(t, r)

		rec := doJSON(t, r, http.MethodPost, sessionPath(created.ID, "/influencer"), map[string]string{
			"image": "data:image/gif;base64," + base64.StdEncoding.EncodeToString([]byte("GIF89a")),
		})
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("broken base64", func(t *testing.T) {
		r, _ := setupRouter(t, &fakeGenerator{})
		created := createSession(t, r)

		rec := doJSON(t, r, http.MethodPost, sessionPath(created.ID, "/influencer"), map[string]string{"image": "data:image/png;base64,@@@"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, string(apperr.KindIO), decodeError(t, rec).Kind)
	})
}

func TestHandler_GenerateFlow(t *testing.T) {
	gen := &fakeGenerator{}
	r, _ := setupRouter(t, gen)
	created := createSession(t, r)

	rec := doJSON(t, r, http.MethodPost, sessionPath(created.ID, "/approve"), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, r, http.MethodPost, sessionPath(created.ID, "/generate"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeSnapshot(t, rec)
	assert.True(t, snap.AwaitingApproval)
	assert.Equal(t, StatePortraitPendingApproval, snap.State)

	rec = doJSON(t, r, http.MethodPost, sessionPath(created.ID, "/generate"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeSnapshot(t, rec).AwaitingApproval)
	assert.Equal(t, 2, gen.portraitCount())

	rec = doJSON(t, r, http.MethodPost, sessionPath(created.ID, "/approve"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, portraitHandle, decodeSnapshot(t, rec).InfluencerImage)

	rec = doJSON(t, r, http.MethodPost, sessionPath(created.ID, "/generate"), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, MsgProductImageRequired, body.Error)
	require.NotNil(t, body.Session)
	assert.Equal(t, MsgProductImageRequired, body.Session.LastError)

	require.Equal(t, http.StatusOK, doJSON(t, r, http.MethodPost, sessionPath(created.ID, "/product"), map[string]string{"image": productHandle}).Code)

	rec = doJSON(t, r, http.MethodPost, sessionPath(created.ID, "/generate"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sceneHandle, decodeSnapshot(t, rec).ResultImage)

	rec = doJSON(t, r, http.MethodPost, sessionPath(created.ID, "/edit"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sceneHandle, decodeSnapshot(t, rec).InfluencerImage)

	rec = doJSON(t, r, http.MethodPost, sessionPath(created.ID, "/reset"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StateIdle, decodeSnapshot(t, rec).State)
}

func TestHandler_GenerationErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"service failure", apperr.Service("Falha ao gerar o influencer com a API.", errors.New("500")), http.StatusBadGateway},
		{"empty result", apperr.EmptyResult("Nenhum influencer foi gerado. Tente um prompt diferente."), http.StatusUnprocessableEntity},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{
				generatePortraitFunc: func(ctx context.Context, prompt, aspectRatio, negativePrompt string) (string, error) {
					return "", tt.err
				},
			}
			r, _ := setupRouter(t, gen)
			created := createSession(t, r)

			rec := doJSON(t, r, http.MethodPost, sessionPath(created.ID, "/generate"), nil)

			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, apperr.UserMessage(tt.err), body.Error)
			require.NotNil(t, body.Session)
			assert.Equal(t, body.Error, body.Session.LastError)
		})
	}
}

func TestHandler_Translate(t *testing.T) {
	r, _ := setupRouter(t, &fakeGenerator{})
	created := createSession(t, r)

	rec := doJSON(t, r, http.MethodPost, sessionPath(created.ID, "/translate"), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "en: "+DefaultActionPrompt, decodeSnapshot(t, rec).ActionPrompt)
}

func TestHandler_Download(t *testing.T) {
	r, _ := setupRouter(t, &fakeGenerator{})
	created := createSession(t, r)

	rec := doJSON(t, r, http.MethodGet, sessionPath(created.ID, "/download"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = multipartUpload(t, r, sessionPath(created.ID, "/influencer"), "image/jpeg", jpegFixture(t))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, sessionPath(created.ID, "/download"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="influencia-studio-image.png"`, rec.Header().Get("Content-Disposition"))

	img, format, err := image.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 4, img.Bounds().Dx())
}

func TestHandler_UploadTooLarge(t *testing.T) {
	r, _ := setupRouter(t, &fakeGenerator{})
	created := createSession(t, r)

	big := bytes.Repeat([]byte{0xFF}, testMaxUpload+1)
	rec := multipartUpload(t, r, sessionPath(created.ID, "/product"), "image/png", big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
