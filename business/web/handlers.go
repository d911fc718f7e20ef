package web

import (
	"errors"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/streamersales/goCollectionAgent/business/session"
	"github.com/streamersales/goCollectionAgent/foundation/catalog"
	"github.com/streamersales/goCollectionAgent/foundation/pubsub"
	"github.com/streamersales/goCollectionAgent/foundation/state"
)

// payment promise quick replies offered on the chat sidebar.
var quickReplies = []string{
	"我今天就还款。",
	"我明天一定还。",
	"我下周发工资就还。",
	"我这周末处理。",
	"我马上转账。",
	"我今晚就还。",
	"我下午去银行还。",
	"我立即处理这笔款项。",
	"我现在就转账。",
	"我今天内解决。",
}

type handlers struct {
	s Settings
}

func (h *handlers) health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (h *handlers) listProducts(c echo.Context) error {
	items, err := h.s.Catalog.Load()
	if err != nil {
		h.s.Logger.Errorw("web: listProducts", "ERROR", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "catalog unavailable"})
	}

	out := make([]productResponse, 0, len(items))
	for _, item := range items {
		out = append(out, productResponse{
			Name:            item.Name,
			ID:              item.ID,
			Highlights:      item.Highlights,
			Image:           item.Image,
			Instruction:     item.Instruction,
			DeparturePlace:  item.DeparturePlace,
			DeliveryCompany: item.DeliveryCompany,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handlers) addProduct(c echo.Context) error {
	if h.s.DisableUpload {
		return c.JSON(http.StatusForbidden, errorResponse{Error: "upload is disabled on this deployment"})
	}

	name := strings.TrimSpace(c.FormValue("name"))
	highlights := strings.TrimSpace(c.FormValue("highlights"))
	if name == "" || highlights == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "name and highlights must not be empty"})
	}

	imageFile, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "image file is required"})
	}
	instructionFile, err := c.FormFile("instruction")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "instruction file is required"})
	}

	saveTag := time.Now().Format("2006-01-02-15-04-05")

	imagePath, err := saveUpload(imageFile, h.s.ImageDirectory, saveTag)
	if err != nil {
		h.s.Logger.Errorw("web: addProduct: saving image", "ERROR", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "saving image failed"})
	}
	instructionPath, err := saveUpload(instructionFile, h.s.InstructionDirectory, saveTag)
	if err != nil {
		h.s.Logger.Errorw("web: addProduct: saving instruction", "ERROR", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "saving instruction failed"})
	}

	id, err := h.s.Catalog.Append(catalog.Item{
		Name:        name,
		Highlights:  strings.Split(highlights, "、"),
		Image:       imagePath,
		Instruction: instructionPath,
	})
	if err != nil {
		if errors.Is(err, catalog.ErrDuplicate) {
			return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		}
		h.s.Logger.Errorw("web: addProduct", "ERROR", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "updating catalog failed"})
	}

	h.s.Broker.Publish(pubsub.CatalogUpdatedTopic, name)
	h.s.Logger.Infow("web: addProduct: item added", "name", name, "id", id)

	return c.JSON(http.StatusCreated, map[string]any{"name": name, "id": id})
}

func (h *handlers) listQuickReplies(c echo.Context) error {
	return c.JSON(http.StatusOK, quickReplies)
}

func (h *handlers) createSession(c echo.Context) error {
	toggles := state.NewToggles(h.s.EnableTts, h.s.EnableDigitalHuman, h.s.EnableAgent, h.s.EnableRag)
	sess := h.s.Sessions.Create(h.s.SystemPrompt, toggles)

	h.s.Logger.Infow("web: createSession", "sessionID", sess.ID)
	return c.JSON(http.StatusCreated, sessionResponse{SessionID: sess.ID, Page: sess.CurrentPage()})
}

func (h *handlers) deleteSession(c echo.Context) error {
	h.s.Sessions.Delete(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) session(c echo.Context) (*session.Session, error) {
	sess, exists := h.s.Sessions.Get(c.Param("id"))
	if !exists {
		return nil, c.JSON(http.StatusNotFound, errorResponse{Error: "unknown session"})
	}
	return sess, nil
}

func (h *handlers) selectItem(c echo.Context) error {
	sess, err := h.session(c)
	if sess == nil {
		return err
	}

	var req selectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	items, err := h.s.Catalog.Load()
	if err != nil {
		h.s.Logger.Errorw("web: selectItem", "ERROR", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "catalog unavailable"})
	}

	for _, item := range items {
		if item.Name == req.Name {
			sess.SelectItem(item, strings.Join(item.Highlights, "、"), h.s.Conversation)
			page, _ := sess.Advance()
			return c.JSON(http.StatusOK, sessionResponse{SessionID: sess.ID, Page: page})
		}
	}

	return c.JSON(http.StatusNotFound, errorResponse{Error: "unknown item"})
}

func (h *handlers) resetConversation(c echo.Context) error {
	sess, err := h.session(c)
	if sess == nil {
		return err
	}
	sess.ResetConversation()
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) backToProducts(c echo.Context) error {
	sess, err := h.session(c)
	if sess == nil {
		return err
	}
	sess.Go(session.PageProducts)
	page, _ := sess.Advance()
	return c.JSON(http.StatusOK, sessionResponse{SessionID: sess.ID, Page: page})
}

func (h *handlers) queueQuickReply(c echo.Context) error {
	sess, err := h.session(c)
	if sess == nil {
		return err
	}

	var req quickReplyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = quickReplies[rand.Intn(len(quickReplies))]
	}

	sess.QueueQuickReply(text)
	return c.JSON(http.StatusOK, map[string]string{"queued": text})
}

func (h *handlers) setToggle(c echo.Context) error {
	sess, err := h.session(c)
	if sess == nil {
		return err
	}

	var req toggleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	var feature state.Feature
	switch req.Feature {
	case "tts":
		feature = state.Tts
	case "digital_human":
		feature = state.DigitalHuman
	case "agent":
		feature = state.Agent
	case "rag":
		feature = state.Rag
	default:
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown feature"})
	}

	sess.Toggles.Set(feature, req.Enabled)
	return c.NoContent(http.StatusNoContent)
}

// transcribe accepts a recorded wav, stores it under the ASR recordings
// directory and returns the transcript. No speech detected comes back as
// an empty text, which the chat multiplexer treats as no input.
func (h *handlers) transcribe(c echo.Context) error {
	if _, err := h.session(c); err != nil {
		return err
	}
	if h.s.Asr == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "speech recognition is disabled"})
	}

	audioFile, err := c.FormFile("audio")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "audio file is required"})
	}

	saveTag := time.Now().Format("2006-01-02-15-04-05") + ".wav"
	wavPath, err := saveUpload(audioFile, h.s.AsrDirectory, saveTag)
	if err != nil {
		h.s.Logger.Errorw("web: transcribe: saving recording", "ERROR", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "saving recording failed"})
	}

	text, err := h.s.Asr.Transcribe(c.Request().Context(), wavPath)
	if err != nil {
		h.s.Logger.Errorw("web: transcribe", "ERROR", err)
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "transcription failed"})
	}

	return c.JSON(http.StatusOK, map[string]string{"text": text})
}

func (h *handlers) transcript(c echo.Context) error {
	sess, err := h.session(c)
	if sess == nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.Transcript())
}

// =====================================================================================================================

func saveUpload(file *multipart.FileHeader, directory string, saveTag string) (string, error) {
	if err := os.MkdirAll(directory, os.ModePerm); err != nil {
		return "", err
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := saveTag
	if ext := filepath.Ext(file.Filename); ext != "" && !strings.HasSuffix(saveTag, ext) {
		name = saveTag + ext
	}
	path := filepath.Join(directory, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", err
	}

	return path, nil
}
