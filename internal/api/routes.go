package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge-server/internal/export"
	"github.com/clipforge/clipforge-server/internal/ffmpeg"
	"github.com/clipforge/clipforge-server/internal/giphy"
	"github.com/clipforge/clipforge-server/internal/project"
	"github.com/clipforge/clipforge-server/internal/render"
	"github.com/clipforge/clipforge-server/internal/session"
	"github.com/clipforge/clipforge-server/internal/silence"
	"github.com/clipforge/clipforge-server/internal/transcribe"
)

// maxUploadBytes bounds uploads; this is a local backend, but a runaway
// client should not fill the disk through a single request.
const maxUploadBytes = 4 << 30

func NewRouter(cfg ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Route("/session", func(r chi.Router) {
		r.Post("/create", createSessionHandler(cfg))
		r.Post("/upload", uploadHandler(cfg))

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", deleteSessionHandler(cfg))
			r.Get("/info", infoHandler(cfg))
			r.Get("/stream", streamHandler(cfg))
			r.Post("/process", processHandler(cfg))
			r.Post("/edit", editHandler(cfg))
			r.Post("/remove-dead-air", removeDeadAirHandler(cfg))
			r.Post("/render", renderHandler(cfg))
			r.Get("/renders/{name}", rendersHandler(cfg))
			r.Post("/create-gif", createGIFHandler(cfg))
			r.Post("/transcribe-and-extract", transcribeHandler(cfg))
			r.Get("/jobs", jobsHandler(cfg))
			r.Get("/export/edl", edlHandler(cfg))

			r.Get("/project", getProjectHandler(cfg))
			r.Put("/project", updateProjectHandler(cfg))

			r.Route("/assets", func(r chi.Router) {
				r.Post("/", uploadAssetHandler(cfg))
				r.Get("/", listAssetsHandler(cfg))
				r.Delete("/{assetID}", deleteAssetHandler(cfg))
				r.Get("/{assetID}/stream", assetStreamHandler(cfg))
				r.Get("/{assetID}/thumbnail", assetThumbnailHandler(cfg))
			})
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  int64(time.Since(cfg.StartTime).Seconds()),
			Sessions: cfg.Manager.Count(),
			FFmpeg:   cfg.Capabilities.HasFFmpeg,
			FFprobe:  cfg.Capabilities.HasFFprobe,
		})
	}
}

func createSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := cfg.Manager.Create(r.Context())
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, CreateSessionResponse{SessionID: s.ID})
	}
}

func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, err := r.FormFile("video")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "missing video file", "VALIDATION_ERROR")
			return
		}
		defer file.Close()

		s, err := cfg.Manager.CreateFromUpload(r.Context(), file, header.Filename)
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}

		info, err := cfg.Manager.Info(r.Context(), s.ID)
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, UploadResponse{
			SessionID: s.ID,
			Duration:  info.Duration,
			Size:      info.Size,
			Name:      info.Name,
		})
	}
}

func deleteSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		if _, err := cfg.Manager.Get(id); err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		if err := cfg.Manager.Destroy(id); err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
	}
}

func infoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := cfg.Manager.Info(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, InfoResponse{
			SessionID: info.SessionID,
			Duration:  info.Duration,
			Size:      info.Size,
			Name:      info.Name,
			EditCount: info.EditCount,
			CreatedAt: info.CreatedAt.Format(time.RFC3339),
		})
	}
}

func streamHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := cfg.Manager.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}

		// Snapshot the path under the session lock. Edits replace the
		// working file by rename, so a stream started on the old path
		// keeps a consistent file.
		s.Lock()
		path := s.CurrentFile
		s.Unlock()
		if path == "" {
			writeOperationError(w, cfg.Logger, session.ErrNoWorkingFile)
			return
		}

		if err := cfg.Playback.ServeFile(w, r, path); err != nil {
			cfg.Logger.Error("stream failed", "error", err)
		}
	}
}

func processHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProcessRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		result, err := cfg.Manager.ProcessCommand(r.Context(), chi.URLParam(r, "sessionID"), req.Command)
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProcessResponse{
			Duration:  result.Duration,
			Size:      result.Size,
			EditCount: result.EditCount,
		})
	}
}

func editHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req session.EditRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		result, err := cfg.Manager.ApplyEdit(r.Context(), chi.URLParam(r, "sessionID"), req)
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProcessResponse{
			Duration:  result.Duration,
			Size:      result.Size,
			EditCount: result.EditCount,
		})
	}
}

func removeDeadAirHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DeadAirRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		opts := silence.Options{
			ThresholdDB: req.SilenceThreshold,
			MinSilence:  req.MinSilenceDuration,
		}
		result, err := cfg.Manager.RemoveDeadAir(r.Context(), chi.URLParam(r, "sessionID"), opts)
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, DeadAirResponse{
			Duration:         result.NewDuration,
			OriginalDuration: result.OriginalDuration,
			RemovedDuration:  result.RemovedDuration,
			PercentRemoved:   result.PercentRemoved,
			SegmentCount:     result.SegmentCount,
			Size:             result.Size,
			EditCount:        result.EditCount,
		})
	}
}

func renderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RenderRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "sessionID")
		result, err := cfg.Manager.Render(r.Context(), id, req.Preview)
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, RenderResponse{
			Size:        result.Size,
			Duration:    result.Duration,
			DownloadURL: "/session/" + id + "/renders/" + renderKind(result.Name),
		})
	}
}

func rendersHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if name != "preview" && name != "export" {
			WriteError(w, http.StatusBadRequest, "unknown render name", "VALIDATION_ERROR")
			return
		}
		s, err := cfg.Manager.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}

		path := filepath.Join(s.RendersDir(), name+".mp4")
		if err := cfg.Playback.ServeDownload(w, r, path, name+".mp4"); err != nil {
			cfg.Logger.Error("render download failed", "error", err)
		}
	}
}

func createGIFHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req session.GIFRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "sessionID")
		asset, err := cfg.Manager.CreateGIF(r.Context(), id, req)
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, AssetEnvelope{Asset: AssetToResponse(id, asset)})
	}
}

func transcribeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		result, err := cfg.Manager.TranscribeAndExtract(r.Context(), id)
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}

		resp := ExtractResponse{
			Transcript: result.Transcript,
			Keywords:   result.Keywords,
			GIFAssets:  make([]AssetResponse, 0, len(result.GIFAssets)),
		}
		for _, a := range result.GIFAssets {
			resp.GIFAssets = append(resp.GIFAssets, AssetToResponse(id, a))
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func jobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		jobs, err := cfg.Manager.Jobs(r.Context(), chi.URLParam(r, "sessionID"), limit)
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
		for _, j := range jobs {
			resp.Jobs = append(resp.Jobs, JobToResponse(j))
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func edlHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		s, err := cfg.Manager.Get(id)
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}

		p, err := cfg.Manager.GetProject(id)
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		assets, err := cfg.Manager.ListAssets(id)
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}

		byID := make(map[string]*project.Asset, len(assets))
		for _, a := range assets {
			byID[a.ID] = a
		}

		s.Lock()
		title := s.OriginalName
		s.Unlock()
		result := export.FromProject(p, byID, export.SanitizeTitle(title, 64))
		WriteJSON(w, http.StatusOK, EDLResponse{
			EDL:        result.EDL,
			EventCount: result.EventCount,
			Unresolved: result.Unresolved,
		})
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Manager.GetProject(chi.URLParam(r, "sessionID"))
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, p)
	}
}

func updateProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p project.Project
		if !decodeJSON(w, r, &p) {
			return
		}
		stored, err := cfg.Manager.UpdateProject(r.Context(), chi.URLParam(r, "sessionID"), &p)
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, stored)
	}
}

func uploadAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "missing asset file", "VALIDATION_ERROR")
			return
		}
		defer file.Close()

		id := chi.URLParam(r, "sessionID")
		declared := project.AssetType(r.FormValue("type"))
		asset, err := cfg.Manager.UploadAsset(r.Context(), id, file, header.Filename, declared)
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, AssetEnvelope{Asset: AssetToResponse(id, asset)})
	}
}

func listAssetsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		assets, err := cfg.Manager.ListAssets(id)
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}

		resp := AssetsResponse{Assets: make([]AssetResponse, 0, len(assets))}
		for _, a := range assets {
			resp.Assets = append(resp.Assets, AssetToResponse(id, a))
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func deleteAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		assetID := chi.URLParam(r, "assetID")
		if err := cfg.Manager.DeleteAsset(r.Context(), id, assetID); err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
	}
}

func assetStreamHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := cfg.Manager.GetAsset(chi.URLParam(r, "sessionID"), chi.URLParam(r, "assetID"))
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		if err := cfg.Playback.ServeFile(w, r, asset.Path); err != nil {
			cfg.Logger.Error("asset stream failed", "error", err)
		}
	}
}

func assetThumbnailHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := cfg.Manager.GetAsset(chi.URLParam(r, "sessionID"), chi.URLParam(r, "assetID"))
		if err != nil {
			writeOperationError(w, cfg.Logger, err)
			return
		}
		if asset.ThumbnailPath == "" {
			WriteError(w, http.StatusNotFound, "asset has no thumbnail", "NOT_FOUND")
			return
		}
		if err := cfg.Playback.ServeFile(w, r, asset.ThumbnailPath); err != nil {
			cfg.Logger.Error("thumbnail stream failed", "error", err)
		}
	}
}

func renderKind(outputName string) string {
	if outputName == render.OutputName(render.QualityExport) {
		return "export"
	}
	return "preview"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "VALIDATION_ERROR")
		return false
	}
	return true
}

// writeOperationError maps domain errors onto the HTTP surface. Anything
// unrecognized is a 500 with a generic body; details stay in the log.
func writeOperationError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var toolErr *ffmpeg.ToolError
	var searchErr *giphy.SearchError
	var upstreamErr *transcribe.TranscribeError

	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		WriteError(w, http.StatusNotFound, "session not found", "NOT_FOUND")
	case errors.Is(err, project.ErrAssetNotFound):
		WriteError(w, http.StatusNotFound, "asset not found", "NOT_FOUND")
	case errors.Is(err, project.ErrClipNotFound), errors.Is(err, project.ErrTrackNotFound):
		WriteError(w, http.StatusNotFound, "timeline element not found", "NOT_FOUND")
	case errors.Is(err, session.ErrNoWorkingFile):
		WriteError(w, http.StatusBadRequest, err.Error(), "NO_WORKING_FILE")
	case errors.Is(err, session.ErrInvalidRequest):
		WriteError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, render.ErrEmptyTimeline):
		WriteError(w, http.StatusBadRequest, err.Error(), "EMPTY_TIMELINE")
	case errors.Is(err, silence.ErrAllSilent):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "ALL_SILENT")
	case errors.Is(err, transcribe.ErrPollTimeout):
		WriteError(w, http.StatusGatewayTimeout, err.Error(), "UPSTREAM_TIMEOUT")
	case errors.Is(err, giphy.ErrNotConfigured), errors.Is(err, transcribe.ErrNotConfigured):
		WriteError(w, http.StatusNotImplemented, err.Error(), "NOT_CONFIGURED")
	case errors.As(err, &searchErr), errors.As(err, &upstreamErr):
		logger.Error("upstream provider failed", "error", err)
		WriteError(w, http.StatusBadGateway, "upstream provider failed", "UPSTREAM_ERROR")
	case errors.As(err, &toolErr):
		logger.Error("encoder failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "media tool failed", "TOOL_FAILURE")
	default:
		logger.Error("operation failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
