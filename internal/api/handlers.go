package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"dailycraft/internal/diary"
	"dailycraft/internal/logging"
	"dailycraft/internal/services"
	"dailycraft/internal/storage"
)

const (
	maxBodyBytes  = 4 << 20
	healthTimeout = 2 * time.Second
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", OCR: "disabled", Database: "unavailable"}
	if s.deps.Generator != nil {
		resp.Generating = s.deps.Generator.IsRunning()
	}
	if s.deps.Extractor != nil {
		resp.OCR = string(s.deps.Extractor.State())
	}
	if s.deps.Events != nil {
		resp.LastEvent = s.deps.Events.LastSequence()
	}
	if s.deps.Diaries != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.deps.Diaries.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "error: " + err.Error()
		} else {
			resp.Database = "ok"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerationStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generator == nil {
		s.writeError(w, r, errGenerationDisabled)
		return
	}
	writeJSON(w, http.StatusOK, s.generationSnapshot())
}

func (s *Server) handleGenerationStart(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generator == nil {
		s.writeError(w, r, errGenerationDisabled)
		return
	}
	input, ok := s.decodeGeneration(w, r)
	if !ok {
		return
	}
	if err := s.deps.Generator.Start(input); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.generationSnapshot())
}

func (s *Server) handleGenerationSync(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generator == nil {
		s.writeError(w, r, errGenerationDisabled)
		return
	}
	input, ok := s.decodeGeneration(w, r)
	if !ok {
		return
	}
	content, err := s.deps.Generator.Generate(r.Context(), input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ContentResponse{Content: content})
}

func (s *Server) generationSnapshot() GenerationResponse {
	return GenerationResponse{
		Job:     s.deps.Generator.Status(),
		Running: s.deps.Generator.IsRunning(),
	}
}

func (s *Server) decodeGeneration(w http.ResponseWriter, r *http.Request) (diary.Input, bool) {
	var req GenerationRequest
	if !s.decodeBody(w, r, &req) {
		return diary.Input{}, false
	}
	input, ok := req.Input()
	if !ok {
		s.badRequest(w, "activities_json is required")
		return diary.Input{}, false
	}
	return input, true
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if s.deps.Extractor == nil {
		s.writeError(w, r, errExtractionDisabled)
		return
	}
	var req ExtractRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ImagePath) == "" {
		s.badRequest(w, "image_path is required")
		return
	}
	text, err := s.deps.Extractor.Extract(r.Context(), req.ImagePath)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := ExtractResponse{Text: text}
	if s.deps.Records != nil && strings.TrimSpace(text) != "" {
		rec, err := s.deps.Records.SaveOCRRecord(r.Context(), storage.OCRRecord{
			Timestamp: time.Now(),
			ImagePath: req.ImagePath,
			Text:      text,
			AppName:   strings.TrimSpace(req.AppName),
		})
		if err != nil {
			// The text is still returned; losing the record only thins the day's history.
			s.logger.Warn("ocr record save failed",
				logging.String("image_path", req.ImagePath),
				logging.Error(err),
			)
		} else {
			resp.RecordID = rec.ID
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOCRRecords(w http.ResponseWriter, r *http.Request) {
	if s.deps.Records == nil {
		s.writeError(w, r, errRecordsDisabled)
		return
	}
	date := chi.URLParam(r, "date")
	items, err := s.deps.Records.ListOCRRecords(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OCRRecordListResponse{Date: date, Items: items})
}

func (s *Server) handleDiaryList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Diaries == nil {
		s.writeError(w, r, errStorageDisabled)
		return
	}
	items, err := s.deps.Diaries.ListDiaries(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DiaryListResponse{Items: items})
}

func (s *Server) handleDiaryGet(w http.ResponseWriter, r *http.Request) {
	if s.deps.Diaries == nil {
		s.writeError(w, r, errStorageDisabled)
		return
	}
	entry, err := s.deps.Diaries.GetDiary(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDiaryPut(w http.ResponseWriter, r *http.Request) {
	if s.deps.Diaries == nil {
		s.writeError(w, r, errStorageDisabled)
		return
	}
	var req DiaryUpdateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	entry, err := s.deps.Diaries.SaveDiary(r.Context(), chi.URLParam(r, "key"), req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			s.badRequest(w, "request body is empty")
		} else {
			s.badRequest(w, "invalid JSON body: "+err.Error())
		}
		return false
	}
	return true
}

var (
	errGenerationDisabled = services.Wrap(services.ErrConfiguration, "api", "generation", "generation is not available", nil)
	errExtractionDisabled = services.Wrap(services.ErrConfiguration, "api", "extract", "text extraction is disabled (ocr.enabled = false)", nil)
	errStorageDisabled    = services.Wrap(services.ErrConfiguration, "api", "diaries", "diary storage is not available", nil)
	errRecordsDisabled    = services.Wrap(services.ErrConfiguration, "api", "ocr_records", "ocr record storage is not available", nil)
)
