package studio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"influencia-studio-server/modules/common/apperr"
	"influencia-studio-server/modules/common/imagecodec"
	"influencia-studio-server/modules/common/logger"
)

const (
	kindConflict         = "conflict"
	kindNotFound         = "not_found"
	kindUnsupportedMedia = "unsupported_media"

	msgSessionNotFound  = "Sessão não encontrada."
	msgUnsupportedMedia = "Formato de imagem não suportado. Use PNG, JPEG ou WEBP."
	msgInvalidBody      = "Requisição inválida."
	msgInvalidSource    = "Origem do influencer inválida."
	msgInvalidAspect    = "Proporção inválida."
	msgNoImage          = "Nenhuma imagem disponível para download."
	msgMissingFile      = "Nenhum arquivo enviado."
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler - 스튜디오 HTTP/WebSocket 엔드포인트
type Handler struct {
	manager        *Manager
	maxUploadBytes int64
	log            zerolog.Logger
}

func NewHandler(manager *Manager, maxUploadBytes int64, l zerolog.Logger) *Handler {
	return &Handler{
		manager:        manager,
		maxUploadBytes: maxUploadBytes,
		log:            logger.Component(l, "studio-http"),
	}
}

// RegisterRoutes - /ws 와 /api/studio 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws", h.handleWebSocket)

	api := r.PathPrefix("/api/studio/sessions").Subrouter()
	api.HandleFunc("", h.createSession).Methods(http.MethodPost)
	api.HandleFunc("/{id}", h.getSession).Methods(http.MethodGet)
	api.HandleFunc("/{id}", h.deleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/{id}/inputs", h.updateInputs).Methods(http.MethodPatch)
	api.HandleFunc("/{id}/source", h.setSource).Methods(http.MethodPut)
	api.HandleFunc("/{id}/influencer", h.uploadInfluencer).Methods(http.MethodPost)
	api.HandleFunc("/{id}/influencer", h.resetInfluencer).Methods(http.MethodDelete)
	api.HandleFunc("/{id}/product", h.uploadProduct).Methods(http.MethodPost)
	api.HandleFunc("/{id}/generate", h.generate).Methods(http.MethodPost)
	api.HandleFunc("/{id}/approve", h.approve).Methods(http.MethodPost)
	api.HandleFunc("/{id}/regenerate", h.regenerate).Methods(http.MethodPost)
	api.HandleFunc("/{id}/edit", h.edit).Methods(http.MethodPost)
	api.HandleFunc("/{id}/reset", h.reset).Methods(http.MethodPost)
	api.HandleFunc("/{id}/translate", h.translate).Methods(http.MethodPost)
	api.HandleFunc("/{id}/download", h.download).Methods(http.MethodGet)
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	wf := h.manager.Create()
	writeJSON(w, http.StatusCreated, wf.Snapshot())
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	h.withWorkflow(w, r, func(wf *Workflow) error { return nil })
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateInputs(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UpdateInputs
		AspectRatio *string `json:"aspectRatio,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperr.Validation(msgInvalidBody))
		return
	}
	patch := body.UpdateInputs
	if body.AspectRatio != nil {
		ratio, ok := ParseAspectRatio(*body.AspectRatio)
		if !ok {
			h.writeError(w, apperr.Validation(msgInvalidAspect))
			return
		}
		patch.AspectRatio = &ratio
	}

	h.withWorkflow(w, r, func(wf *Workflow) error { return wf.UpdateInputs(patch) })
}

func (h *Handler) setSource(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperr.Validation(msgInvalidBody))
		return
	}
	source, ok := ParseInfluencerSource(body.Source)
	if !ok {
		h.writeError(w, apperr.Validation(msgInvalidSource))
		return
	}

	h.withWorkflow(w, r, func(wf *Workflow) error { return wf.SetInfluencerSource(source) })
}

func (h *Handler) uploadInfluencer(w http.ResponseWriter, r *http.Request) {
	handle, err := h.readImage(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.withWorkflow(w, r, func(wf *Workflow) error { return wf.UploadInfluencer(handle) })
}

func (h *Handler) resetInfluencer(w http.ResponseWriter, r *http.Request) {
	h.withWorkflow(w, r, func(wf *Workflow) error { return wf.ResetInfluencer() })
}

func (h *Handler) uploadProduct(w http.ResponseWriter, r *http.Request) {
	handle, err := h.readImage(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.withWorkflow(w, r, func(wf *Workflow) error { return wf.UploadProduct(handle) })
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	h.withWorkflow(w, r, func(wf *Workflow) error { return wf.Generate(r.Context()) })
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.withWorkflow(w, r, func(wf *Workflow) error { return wf.Approve() })
}

func (h *Handler) regenerate(w http.ResponseWriter, r *http.Request) {
	h.withWorkflow(w, r, func(wf *Workflow) error { return wf.Regenerate(r.Context()) })
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	h.withWorkflow(w, r, func(wf *Workflow) error { return wf.Edit() })
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	h.withWorkflow(w, r, func(wf *Workflow) error { return wf.Reset() })
}

func (h *Handler) translate(w http.ResponseWriter, r *http.Request) {
	h.withWorkflow(w, r, func(wf *Workflow) error { return wf.Translate(r.Context()) })
}

// download - 현재 표시 이미지를 PNG 로 변환해 첨부파일로 응답
func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	wf, err := h.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	image := wf.Snapshot().DisplayImage()
	if image == "" {
		writeJSON(w, http.StatusNotFound, errorBody{Error: msgNoImage, Kind: kindNotFound})
		return
	}

	data, err := imagecodec.ToPNG(image)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", imagecodec.MIMETypePNG)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", DownloadFilename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleWebSocket - /ws?session=<id> 구독
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	hub, err := h.manager.Hub(sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	clientID := r.URL.Query().Get("userId")
	if clientID == "" {
		clientID = uuid.NewString()
	}
	h.log.Info().Msgf("🔍 New WebSocket connection - Session: %s, Client: %s", sessionID, clientID)
	hub.Serve(clientID, conn)
}

// withWorkflow - 세션 조회 후 fn 실행, 실패 응답에도 최신 스냅샷 포함
func (h *Handler) withWorkflow(w http.ResponseWriter, r *http.Request, fn func(*Workflow) error) {
	wf, err := h.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := fn(wf); err != nil {
		status, body := errorResponse(err)
		snap := wf.Snapshot()
		body.Session = &snap
		h.logFailure(status, err)
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

// readImage - multipart "file" 또는 JSON {"image": "<data URL>"}
func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				return "", err
			}
			return "", apperr.Validation(msgMissingFile)
		}
		defer file.Close()

		declared := header.Header.Get("Content-Type")
		if declared == "application/octet-stream" {
			declared = ""
		}
		if declared != "" && !imagecodec.IsSupported(declared) {
			return "", errUnsupportedMedia
		}
		data, err := io.ReadAll(file)
		if err != nil {
			return "", apperr.IO(imagecodec.LoadFailedMessage, fmt.Errorf("read upload: %w", err))
		}
		// 타입 선언이 없으면 실제 시그니처로 판별 (GIF, 텍스트 등은 거절)
		if declared == "" && len(data) > 0 {
			detected, ok := imagecodec.DetectMIME(data)
			if !ok {
				return "", errUnsupportedMedia
			}
			declared = detected
		}
		return imagecodec.EncodeFile(bytes.NewReader(data), declared)
	}

	var body struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return "", err
		}
		return "", apperr.Validation(msgInvalidBody)
	}
	if strings.TrimSpace(body.Image) == "" {
		return "", apperr.Validation(MsgInfluencerImageRequired)
	}
	mimeType, data, err := imagecodec.DecodeBytes(body.Image)
	if err != nil {
		return "", err
	}
	if !imagecodec.IsSupported(mimeType) {
		return "", errUnsupportedMedia
	}
	// mime 헤더 없는 raw base64 는 시그니처가 확인돼야 함
	if !strings.HasPrefix(strings.TrimSpace(body.Image), "data:image/") {
		if _, ok := imagecodec.DetectMIME(data); !ok {
			return "", errUnsupportedMedia
		}
	}
	return imagecodec.EncodeBytes(data, mimeType), nil
}

var errUnsupportedMedia = errors.New("studio: unsupported media type")

type errorBody struct {
	Error   string    `json:"error"`
	Kind    string    `json:"kind"`
	Session *Snapshot `json:"session,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, body := errorResponse(err)
	h.logFailure(status, err)
	writeJSON(w, status, body)
}

func (h *Handler) logFailure(status int, err error) {
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msgf("❌ Request failed (%d)", status)
		return
	}
	h.log.Debug().Err(err).Msgf("Request rejected (%d)", status)
}

// errorResponse - 에러를 HTTP 상태와 응답 본문으로 변환
func errorResponse(err error) (int, errorBody) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, errorBody{Error: msgSessionNotFound, Kind: kindNotFound}
	case errors.Is(err, errUnsupportedMedia):
		return http.StatusUnsupportedMediaType, errorBody{Error: msgUnsupportedMedia, Kind: kindUnsupportedMedia}
	case errors.Is(err, ErrBusy), errors.Is(err, ErrNotAwaitingApproval), errors.Is(err, ErrNoResult):
		return http.StatusConflict, errorBody{Error: err.Error(), Kind: kindConflict}
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge, errorBody{Error: imagecodec.LoadFailedMessage, Kind: string(apperr.KindIO)}
	}

	kind := apperr.KindOf(err)
	body := errorBody{Error: apperr.UserMessage(err), Kind: string(kind)}
	switch kind {
	case apperr.KindValidation, apperr.KindIO:
		return http.StatusBadRequest, body
	case apperr.KindEmptyResult:
		return http.StatusUnprocessableEntity, body
	case apperr.KindService, apperr.KindTranslation:
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, body
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
