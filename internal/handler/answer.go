package handler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavelanni/icapexam/internal/format"
	appI18n "github.com/pavelanni/icapexam/internal/i18n"
	"github.com/pavelanni/icapexam/internal/model"
	"github.com/pavelanni/icapexam/internal/ocr"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	maxErrorLen     = 100
)

type checkAnswerRequest struct {
	Answer  string           `json:"answer"`
	Image   string           `json:"image"`
	Chapter model.ChapterRef `json:"chapter"`
}

type checkAnswerResponse struct {
	Result    string           `json:"result"`
	Status    string           `json:"status"`
	Chapter   model.ChapterRef `json:"chapter"`
	Timestamp string           `json:"timestamp"`
	Verdict   model.Verdict    `json:"verdict"`
}

type pendingResponse struct {
	Result string `json:"result"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// handleCheckAnswer never reports failure to the student: any error or panic
// produces a "processing" payload with status 200.
func (h *Handler) handleCheckAnswer(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.writePending(w, r, fmt.Errorf("panic: %v", rec))
		}
	}()

	resp, err := h.checkAnswer(w, r)
	if err != nil {
		h.writePending(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) checkAnswer(w http.ResponseWriter, r *http.Request) (*checkAnswerResponse, error) {
	var req checkAnswerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, err
	}
	if req.Chapter == "" {
		req.Chapter = "1"
	}
	chapterNum, ok := req.Chapter.Number()
	if !ok {
		chapterNum = 1
	}

	sub := model.Submission{
		Answer:  req.Answer,
		OCRText: h.extractImageText(r.Context(), req.Image),
		Chapter: chapterNum,
	}
	slog.Info("evaluating answer", "chapter", chapterNum, "chars", len(req.Answer), "ocr_chars", len(sub.OCRText))

	v := h.eval.Evaluate(r.Context(), sub)
	now := h.now()
	return &checkAnswerResponse{
		Result:    format.Render(v, reportLabels(r.Context(), chapterNum), now),
		Status:    "success",
		Chapter:   req.Chapter,
		Timestamp: now.Format(timestampLayout),
		Verdict:   v,
	}, nil
}

// extractImageText runs OCR on a data-URL image. Failures are logged and
// yield no text.
func (h *Handler) extractImageText(ctx context.Context, image string) string {
	if h.ocr == nil || !strings.HasPrefix(image, "data:image") {
		return ""
	}
	_, data, err := ocr.DecodeDataURL(image)
	if err != nil {
		slog.Warn("image decode failed", "error", err)
		return ""
	}
	text, err := h.ocr.Extract(ctx, bytes.NewReader(data))
	if err != nil {
		slog.Warn("image OCR failed", "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

func (h *Handler) writePending(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("check answer failed", "error", err)
	msg := err.Error()
	if runes := []rune(msg); len(runes) > maxErrorLen {
		msg = string(runes[:maxErrorLen])
	}
	writeJSON(w, http.StatusOK, pendingResponse{
		Result: appI18n.T(r.Context(), "PendingAnalysis"),
		Status: "processing",
		Error:  msg,
	})
}

func reportLabels(ctx context.Context, chapter int) format.Labels {
	if !appI18n.Loaded() {
		return format.DefaultLabels(chapter)
	}
	return format.Labels{
		Header:      appI18n.Td(ctx, "ReportHeader", map[string]any{"Chapter": chapter}),
		Score:       appI18n.T(ctx, "LabelScore"),
		Relevance:   appI18n.T(ctx, "LabelRelevance"),
		Strengths:   appI18n.T(ctx, "LabelStrengths"),
		Weaknesses:  appI18n.T(ctx, "LabelWeaknesses"),
		Feedback:    appI18n.T(ctx, "LabelFeedback"),
		ModelAnswer: appI18n.T(ctx, "LabelModelAnswer"),
		Footer:      appI18n.T(ctx, "ReportFooter"),
	}
}
