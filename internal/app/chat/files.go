package chat

import (
	"path/filepath"
	"strings"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/message"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/errs"
)

const (
	// MaxAttachmentSizeMB is the upload size cap in megabytes.
	MaxAttachmentSizeMB = 5

	// MaxAttachmentSize is the upload size cap in bytes.
	MaxAttachmentSize = MaxAttachmentSizeMB * 1024 * 1024
)

// imageExts are the extensions accepted for image messages.
var imageExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}, ".gif": {},
}

// fileExts are the extensions accepted for file messages.
var fileExts = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".txt": {}, ".zip": {},
}

// ValidateFileSize checks an upload size against the cap.
func ValidateFileSize(fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}
	if fileSize > MaxAttachmentSize {
		return errs.NewError(errs.ErrFileSizeTooLarge)
	}
	return nil
}

// ValidateFileName checks the file name attached to an image or file
// message. Other kinds carry no file name and pass through.
func ValidateFileName(kind message.Kind, fileName string) *errs.CustomError {
	var allowed map[string]struct{}

	switch kind {
	case message.KindImage:
		allowed = imageExts
	case message.KindFile:
		allowed = fileExts
	default:
		return nil
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if len(ext) < 2 {
		return errs.NewError(errs.ErrFileTypeInvalid)
	}
	if _, ok := allowed[ext]; !ok {
		return errs.NewError(errs.ErrFileTypeInvalid)
	}
	return nil
}
