package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/treechat-backend/internal/clients/objstore"
	"github.com/yungbote/treechat-backend/internal/data/repos"
	types "github.com/yungbote/treechat-backend/internal/domain"
	"github.com/yungbote/treechat-backend/internal/pkg/apierr"
	"github.com/yungbote/treechat-backend/internal/pkg/ctxutil"
	"github.com/yungbote/treechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/treechat-backend/internal/pkg/logger"
)

// FileLimits bounds the attachment coordinator. Zero values are replaced by
// DefaultFileLimits at construction.
type FileLimits struct {
	MaxFileSize              int64
	MaxFilesPerUser          int64
	MaxTotalBytesPerUser     int64
	MaxAttachmentsPerMessage int
	ThumbnailMaxDim          int
	UploadURLTTL             time.Duration
	DownloadURLTTL           time.Duration
}

func DefaultFileLimits() FileLimits {
	return FileLimits{
		MaxFileSize:              25 << 20,
		MaxFilesPerUser:          200,
		MaxTotalBytesPerUser:     1 << 30,
		MaxAttachmentsPerMessage: 5,
		ThumbnailMaxDim:          512,
		UploadURLTTL:             300 * time.Second,
		DownloadURLTTL:           300 * time.Second,
	}
}

var deniedExtensions = map[string]bool{
	".exe": true,
	".js":  true,
	".bat": true,
	".cmd": true,
	".sh":  true,
	".dll": true,
	".com": true,
}

var allowedContentTypePrefixes = []string{
	"image/",
	"application/pdf",
	"application/msword",
	"application/vnd",
	"application/zip",
	"application/x-zip",
	"application/x-zip-compressed",
	"application/x-tar",
	"application/json",
	"text/plain",
	"text/csv",
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SanitizeFilename collapses unsafe characters to underscores and bounds the
// result to 200 characters.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}

type UploadRequest struct {
	Filename    string
	ContentType string
	Size        int64
	TreeID      *uuid.UUID
}

// AuthorizedUpload pairs the pending record with its time-boxed write URL.
type AuthorizedUpload struct {
	Attachment *types.Attachment
	UploadURL  string
}

type FileService interface {
	AuthorizeUpload(dbc dbctx.Context, uploaderID string, req UploadRequest) (*AuthorizedUpload, error)
	ConfirmUpload(dbc dbctx.Context, id uuid.UUID, uploaderID, checksum string) (*types.Attachment, error)
	GetFile(dbc dbctx.Context, id uuid.UUID, uploaderID string) (*types.Attachment, error)
	ListFiles(dbc dbctx.Context, uploaderID string, limit int) ([]*types.Attachment, error)
	DeleteFiles(dbc dbctx.Context, uploaderID string, ids []uuid.UUID) (int64, error)

	// RequireAttachments resolves ids in caller order and fails naming every
	// id that is missing, foreign, or deleted.
	RequireAttachments(dbc dbctx.Context, ids []uuid.UUID, uploaderID string) ([]*types.Attachment, error)

	// MarkAttached links ready records to a message. Requires dbc.Tx; the
	// whole batch validates before any row mutates.
	MarkAttached(dbc dbctx.Context, records []*types.Attachment, treeID, messageID uuid.UUID) error

	// Cascade deletes soft-delete the records and return the blob keys to
	// remove from storage after the surrounding transaction commits.
	CascadeDeleteForMessages(dbc dbctx.Context, messageIDs []uuid.UUID) ([]string, error)
	CascadeDeleteForTree(dbc dbctx.Context, treeID uuid.UUID) ([]string, error)
	DeleteBlobs(ctx context.Context, keys []string)

	DownloadURL(ctx context.Context, att *types.Attachment) (string, error)
	ThumbnailURL(ctx context.Context, att *types.Attachment) (string, error)
	Serialize(ctx context.Context, att *types.Attachment) map[string]any

	Limits() FileLimits
}

type fileService struct {
	log            *logger.Logger
	attachmentRepo repos.AttachmentRepo
	store          objstore.ObjectStore
	limits         FileLimits
}

func NewFileService(
	baseLog *logger.Logger,
	attachmentRepo repos.AttachmentRepo,
	store objstore.ObjectStore,
	limits FileLimits,
) FileService {
	def := DefaultFileLimits()
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = def.MaxFileSize
	}
	if limits.MaxFilesPerUser <= 0 {
		limits.MaxFilesPerUser = def.MaxFilesPerUser
	}
	if limits.MaxTotalBytesPerUser <= 0 {
		limits.MaxTotalBytesPerUser = def.MaxTotalBytesPerUser
	}
	if limits.MaxAttachmentsPerMessage <= 0 {
		limits.MaxAttachmentsPerMessage = def.MaxAttachmentsPerMessage
	}
	if limits.ThumbnailMaxDim <= 0 {
		limits.ThumbnailMaxDim = def.ThumbnailMaxDim
	}
	if limits.UploadURLTTL <= 0 {
		limits.UploadURLTTL = def.UploadURLTTL
	}
	if limits.DownloadURLTTL <= 0 {
		limits.DownloadURLTTL = def.DownloadURLTTL
	}
	return &fileService{
		log:            baseLog.With("service", "FileService"),
		attachmentRepo: attachmentRepo,
		store:          store,
		limits:         limits,
	}
}

func (fs *fileService) Limits() FileLimits { return fs.limits }

func contentTypeAllowed(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	for _, prefix := range allowedContentTypePrefixes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

func (fs *fileService) AuthorizeUpload(dbc dbctx.Context, uploaderID string, req UploadRequest) (*AuthorizedUpload, error) {
	if req.Size <= 0 {
		return nil, apierr.Validation("invalid_size", "declared size must be positive")
	}
	if req.Size > fs.limits.MaxFileSize {
		return nil, apierr.Validation("file_too_large", "file exceeds %d bytes", fs.limits.MaxFileSize)
	}
	ext := strings.ToLower(filepath.Ext(req.Filename))
	if deniedExtensions[ext] {
		return nil, apierr.Validation("extension_denied", "file extension %s is not allowed", ext)
	}
	if !contentTypeAllowed(req.ContentType) {
		return nil, apierr.Validation("content_type_denied", "content type %s is not allowed", req.ContentType)
	}

	count, err := fs.attachmentRepo.CountActiveByUploader(dbc, uploaderID)
	if err != nil {
		return nil, err
	}
	if count >= fs.limits.MaxFilesPerUser {
		return nil, apierr.Validation("quota_files_exceeded", "file count quota of %d reached", fs.limits.MaxFilesPerUser)
	}
	used, err := fs.attachmentRepo.SumActiveBytesByUploader(dbc, uploaderID)
	if err != nil {
		return nil, err
	}
	if used+req.Size > fs.limits.MaxTotalBytesPerUser {
		return nil, apierr.Validation("quota_bytes_exceeded", "storage quota of %d bytes reached", fs.limits.MaxTotalBytesPerUser)
	}

	id := uuid.New()
	filename := SanitizeFilename(req.Filename)
	key := fmt.Sprintf("uploads/%s/%s/%s", uploaderID, id.String(), filename)

	ctx := ctxutil.Default(dbc.Ctx)
	uploadURL, err := fs.store.PresignUpload(ctx, key, req.ContentType, fs.limits.UploadURLTTL)
	if err != nil {
		return nil, apierr.StorageUnavailable(fmt.Errorf("presign upload: %w", err))
	}

	now := time.Now().UTC()
	expires := now.Add(fs.limits.UploadURLTTL)
	att := &types.Attachment{
		ID:              id,
		TreeID:          req.TreeID,
		UploaderID:      uploaderID,
		Filename:        filename,
		ContentType:     req.ContentType,
		Size:            req.Size,
		StorageKey:      key,
		Status:          types.FileStatusPending,
		UploadExpiresAt: &expires,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := fs.attachmentRepo.Create(dbc, []*types.Attachment{att}); err != nil {
		return nil, err
	}

	fs.log.Info("Upload authorized",
		"file_id", att.ID,
		"uploader_id", uploaderID,
		"size", req.Size,
	)
	return &AuthorizedUpload{Attachment: att, UploadURL: uploadURL}, nil
}

func (fs *fileService) ConfirmUpload(dbc dbctx.Context, id uuid.UUID, uploaderID, checksum string) (*types.Attachment, error) {
	att, err := fs.GetFile(dbc, id, uploaderID)
	if err != nil {
		return nil, err
	}
	switch att.Status {
	case types.FileStatusPending, types.FileStatusUploading:
	case types.FileStatusReady, types.FileStatusAttached:
		return nil, apierr.Conflict("already_finalized", "file %s is already finalized", id)
	default:
		return nil, apierr.Validation("invalid_status", "file %s is %s", id, att.Status)
	}

	ctx := ctxutil.Default(dbc.Ctx)
	info, err := fs.store.Head(ctx, att.StorageKey)
	if err != nil {
		// Absence means the client never finished the PUT; anything else is
		// a storage outage, not the caller's fault.
		if errors.Is(err, objstore.ErrObjectNotFound) {
			return nil, apierr.Validation("upload_incomplete", "object for file %s not found in storage", id)
		}
		return nil, apierr.StorageUnavailable(fmt.Errorf("head object: %w", err))
	}
	if info.Size != att.Size {
		return nil, apierr.Validation("size_mismatch", "declared %d bytes but stored %d", att.Size, info.Size)
	}

	updates := map[string]interface{}{
		"status": types.FileStatusReady,
	}
	if checksum != "" {
		updates["checksum"] = checksum
	}

	// Image previews are best-effort: a failure leaves the attachment
	// without a thumbnail, never fails the confirm.
	if strings.HasPrefix(strings.ToLower(att.ContentType), "image/") {
		if thumbKey, err := fs.generateThumbnail(ctx, att); err != nil {
			fs.log.Warn("Thumbnail generation failed", "file_id", id, "error", err)
		} else {
			updates["thumbnail_key"] = thumbKey
		}
	}

	if err := fs.attachmentRepo.UpdateFields(dbc, id, updates); err != nil {
		return nil, err
	}

	att.Status = types.FileStatusReady
	if checksum != "" {
		att.Checksum = checksum
	}
	if tk, ok := updates["thumbnail_key"].(string); ok {
		att.ThumbnailKey = tk
	}

	fs.log.Info("Upload confirmed", "file_id", id, "uploader_id", uploaderID)
	return att, nil
}

func (fs *fileService) generateThumbnail(ctx context.Context, att *types.Attachment) (string, error) {
	rc, err := fs.store.Fetch(ctx, att.StorageKey)
	if err != nil {
		return "", fmt.Errorf("fetch original: %w", err)
	}
	defer rc.Close()

	data, err := MakeThumbnail(rc, fs.limits.ThumbnailMaxDim)
	if err != nil {
		return "", err
	}

	thumbKey := att.StorageKey + ".thumbnail.jpg"
	if err := fs.store.Put(ctx, thumbKey, bytes.NewReader(data), int64(len(data)), "image/jpeg"); err != nil {
		return "", fmt.Errorf("put thumbnail: %w", err)
	}
	return thumbKey, nil
}

func (fs *fileService) GetFile(dbc dbctx.Context, id uuid.UUID, uploaderID string) (*types.Attachment, error) {
	rows, err := fs.attachmentRepo.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0].UploaderID != uploaderID || rows[0].DeletedAt != nil {
		return nil, apierr.NotFound("file_not_found", "file %s not found", id)
	}
	return rows[0], nil
}

func (fs *fileService) ListFiles(dbc dbctx.Context, uploaderID string, limit int) ([]*types.Attachment, error) {
	return fs.attachmentRepo.ListByUploader(dbc, uploaderID, limit)
}

// DeleteFiles removes the caller's files among ids, skipping ids that are
// missing, foreign, or already deleted. Targeting only unavailable ids is
// NotFound: the caller named entities that do not exist for them.
func (fs *fileService) DeleteFiles(dbc dbctx.Context, uploaderID string, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	rows, err := fs.attachmentRepo.GetByIDs(dbc, ids)
	if err != nil {
		return 0, err
	}
	var records []*types.Attachment
	for _, r := range rows {
		if r.UploaderID == uploaderID && r.DeletedAt == nil {
			records = append(records, r)
		}
	}
	if len(records) == 0 {
		return 0, apierr.NotFound("file_not_found", "no matching files to delete")
	}

	delIDs := make([]uuid.UUID, 0, len(records))
	for _, r := range records {
		delIDs = append(delIDs, r.ID)
	}
	keys := blobKeys(records)
	affected, err := fs.attachmentRepo.SoftDeleteByIDs(dbc, delIDs)
	if err != nil {
		return 0, err
	}
	fs.DeleteBlobs(ctxutil.Default(dbc.Ctx), keys)
	return affected, nil
}

func (fs *fileService) RequireAttachments(dbc dbctx.Context, ids []uuid.UUID, uploaderID string) ([]*types.Attachment, error) {
	if len(ids) == 0 {
		return []*types.Attachment{}, nil
	}
	rows, err := fs.attachmentRepo.GetByIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.Attachment, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	out := make([]*types.Attachment, 0, len(ids))
	var missing []string
	for _, id := range ids {
		r, ok := byID[id]
		if !ok || r.UploaderID != uploaderID || r.DeletedAt != nil {
			missing = append(missing, id.String())
			continue
		}
		out = append(out, r)
	}
	if len(missing) > 0 {
		return nil, apierr.Validation("files_unavailable", "files unavailable: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func (fs *fileService) MarkAttached(dbc dbctx.Context, records []*types.Attachment, treeID, messageID uuid.UUID) error {
	if len(records) == 0 {
		return nil
	}
	if dbc.Tx == nil {
		return fmt.Errorf("MarkAttached requires non-nil transaction")
	}

	// Validate the whole batch before mutating any row.
	for _, r := range records {
		if r.MessageID != nil && *r.MessageID != messageID {
			return apierr.Conflict("already_attached", "file %s is already attached to another message", r.ID)
		}
		if !r.Attachable() {
			return apierr.Validation("file_not_ready", "file %s is %s, not ready", r.ID, r.Status)
		}
	}

	now := time.Now().UTC()
	for _, r := range records {
		updates := map[string]interface{}{
			"message_id":  messageID,
			"status":      types.FileStatusAttached,
			"attached_at": now,
		}
		if r.TreeID == nil {
			updates["tree_id"] = treeID
		}
		if err := fs.attachmentRepo.UpdateFields(dbc, r.ID, updates); err != nil {
			return err
		}
		r.MessageID = &messageID
		r.Status = types.FileStatusAttached
		r.AttachedAt = &now
		if r.TreeID == nil {
			tid := treeID
			r.TreeID = &tid
		}
	}
	return nil
}

func (fs *fileService) CascadeDeleteForMessages(dbc dbctx.Context, messageIDs []uuid.UUID) ([]string, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	records, err := fs.attachmentRepo.ListByMessageIDs(dbc, messageIDs)
	if err != nil {
		return nil, err
	}
	return fs.cascadeDelete(dbc, records)
}

func (fs *fileService) CascadeDeleteForTree(dbc dbctx.Context, treeID uuid.UUID) ([]string, error) {
	records, err := fs.attachmentRepo.ListByTree(dbc, treeID)
	if err != nil {
		return nil, err
	}
	return fs.cascadeDelete(dbc, records)
}

func (fs *fileService) cascadeDelete(dbc dbctx.Context, records []*types.Attachment) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	if _, err := fs.attachmentRepo.SoftDeleteByIDs(dbc, ids); err != nil {
		return nil, err
	}
	return blobKeys(records), nil
}

// DeleteBlobs removes stored objects best-effort and concurrently; failures
// are logged and never surfaced.
func (fs *fileService) DeleteBlobs(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctxutil.Default(ctx))
	g.SetLimit(8)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			if err := fs.store.Delete(gctx, []string{key}); err != nil {
				fs.log.Warn("Blob delete failed", "key", key, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func blobKeys(records []*types.Attachment) []string {
	var keys []string
	for _, r := range records {
		if r.StorageKey != "" {
			keys = append(keys, r.StorageKey)
		}
		if r.ThumbnailKey != "" {
			keys = append(keys, r.ThumbnailKey)
		}
	}
	return keys
}

func (fs *fileService) DownloadURL(ctx context.Context, att *types.Attachment) (string, error) {
	if att.Status != types.FileStatusReady && att.Status != types.FileStatusAttached {
		return "", apierr.Validation("file_not_ready", "file %s is not ready for download", att.ID)
	}
	url, err := fs.store.PresignDownload(ctxutil.Default(ctx), att.StorageKey, att.Filename, fs.limits.DownloadURLTTL)
	if err != nil {
		return "", apierr.StorageUnavailable(fmt.Errorf("presign download: %w", err))
	}
	return url, nil
}

func (fs *fileService) ThumbnailURL(ctx context.Context, att *types.Attachment) (string, error) {
	if att.ThumbnailKey == "" {
		return "", apierr.NotFound("thumbnail_not_found", "file %s has no thumbnail", att.ID)
	}
	url, err := fs.store.PresignDownload(ctxutil.Default(ctx), att.ThumbnailKey, "", fs.limits.DownloadURLTTL)
	if err != nil {
		return "", apierr.StorageUnavailable(fmt.Errorf("presign thumbnail: %w", err))
	}
	return url, nil
}

// Serialize renders an attachment for API responses, with presigned URLs for
// ready/attached records. URL failures degrade to a record without URLs.
func (fs *fileService) Serialize(ctx context.Context, att *types.Attachment) map[string]any {
	out := map[string]any{
		"id":           att.ID,
		"filename":     att.Filename,
		"content_type": att.ContentType,
		"size":         att.Size,
		"status":       att.Status,
		"created_at":   att.CreatedAt,
	}
	if att.TreeID != nil {
		out["tree_id"] = *att.TreeID
	}
	if att.MessageID != nil {
		out["message_id"] = *att.MessageID
	}
	if att.Status == types.FileStatusReady || att.Status == types.FileStatusAttached {
		if url, err := fs.DownloadURL(ctx, att); err == nil {
			out["download_url"] = url
		}
		if att.ThumbnailKey != "" {
			if url, err := fs.ThumbnailURL(ctx, att); err == nil {
				out["thumbnail_url"] = url
			}
		}
	}
	return out
}
