package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/chat"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/message"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/storage"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/auth/jwt"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/errs"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/req"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/resp"
)

// PresignedURLDuration is the lifetime of presigned upload and download URLs.
const PresignedURLDuration = 10 * time.Minute

// PresignUploadInput is the request body for generating an upload URL.
type PresignUploadInput struct {
	RoomID   string `json:"roomId"`
	Kind     string `json:"kind"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
}

// HandlePresignUpload issues a time-limited upload URL for an image or file
// message, keyed under the room so download access checks stay cheap.
func HandlePresignUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input PresignUploadInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		kind := message.Kind(input.Kind)
		if kind != message.KindImage && kind != message.KindFile {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageKindInvalid))
			return
		}

		if !requireRoomAccess(w, r, deps, input.RoomID, identity.ID) {
			return
		}

		if customErr := chat.ValidateFileSize(input.FileSize); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if customErr := chat.ValidateFileName(kind, input.FileName); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		fileKey := storage.ObjectKey(input.RoomID, input.FileName)

		url, err := deps.Storage.PresignUpload(r.Context(), fileKey, input.MimeType, input.FileSize, PresignedURLDuration)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"presignedUrl": url,
			"fileKey":      fileKey,
			"fileName":     input.FileName,
		})
	}
}

// HandlePresignDownload redirects to a time-limited download URL for a file
// key. The key's room prefix must be a room the caller can read.
func HandlePresignDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		fileKey := r.URL.Query().Get("k")
		if fileKey == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		roomID, _, found := strings.Cut(fileKey, "/")
		if !found || roomID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}
		if !requireRoomAccess(w, r, deps, roomID, identity.ID) {
			return
		}

		if _, err := deps.Storage.ObjectMetadata(r.Context(), fileKey); err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrFileNotFound))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		url, err := deps.Storage.PresignDownload(r.Context(), fileKey, PresignedURLDuration)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}

// DeleteFileInput is the request body for removing an uploaded object.
type DeleteFileInput struct {
	FileKey string `json:"fileKey"`
}

// HandleDeleteFile removes an uploaded object, for clients discarding an
// attachment before the message referencing it is sent.
func HandleDeleteFile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input DeleteFileInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		roomID, _, found := strings.Cut(input.FileKey, "/")
		if !found || roomID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}
		if !requireRoomAccess(w, r, deps, roomID, identity.ID) {
			return
		}

		if err := deps.Storage.Delete(r.Context(), input.FileKey); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}
