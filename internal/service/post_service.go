package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/postflow/internal/content"
	"github.com/maheshrc27/postflow/internal/events"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

// MaxMediaSize bounds a single uploaded file.
const MaxMediaSize = 8 << 20

var allowedMediaTypes = map[string]struct{}{
	"jpg": {}, "png": {},
}

type PostService interface {
	Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	PostInfo(ctx context.Context, userID, postID int64) (*models.Post, error)
	Update(ctx context.Context, userID, postID int64, pu *transfer.PostUpdate) (*models.Post, error)
	Reorder(ctx context.Context, userID int64, pr *transfer.PostReorder) error
	Remove(ctx context.Context, userID, postID int64) error
	AttachMedia(ctx context.Context, userID, postID int64, files []*multipart.FileHeader) ([]*models.MediaAsset, error)
	ListMedia(ctx context.Context, userID, postID int64) ([]*models.MediaAsset, error)
	ClearMedia(ctx context.Context, userID, postID int64) error
	Logs(ctx context.Context, userID, postID int64) ([]*models.PostLog, error)
}

type postService struct {
	db        *sql.DB
	pr        repository.PostRepository
	sr        repository.ScheduleRepository
	ma        repository.MediaAssetRepository
	pm        repository.PostMediaRepository
	lr        repository.PostLogRepository
	storage   MediaStorage
	queue     queue.Publisher
	validator *content.Validator
	events    events.Publisher
	now       func() time.Time
}

func NewPostService(
	db *sql.DB,
	pr repository.PostRepository,
	sr repository.ScheduleRepository,
	ma repository.MediaAssetRepository,
	pm repository.PostMediaRepository,
	lr repository.PostLogRepository,
	storage MediaStorage,
	publisher queue.Publisher,
	validator *content.Validator,
	bus events.Publisher) PostService {
	if validator == nil {
		validator = content.NewValidator(content.DefaultMaxLength)
	}
	if bus == nil {
		bus = events.Discard{}
	}
	return &postService{
		db:        db,
		pr:        pr,
		sr:        sr,
		ma:        ma,
		pm:        pm,
		lr:        lr,
		storage:   storage,
		queue:     publisher,
		validator: validator,
		events:    bus,
		now:       time.Now,
	}
}

func (s *postService) Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, error) {
	if err := s.checkContent(pc.Content); err != nil {
		return nil, err
	}

	var platforms []string
	if len(pc.Platforms) > 0 {
		var err error
		if platforms, err = parsePlatforms(pc.Platforms); err != nil {
			return nil, err
		}
	}

	post := &models.Post{
		UserID:    userID,
		Content:   pc.Content,
		Platforms: platforms,
		Status:    models.PostStatusDraft,
	}
	if _, err := s.pr.Create(ctx, nil, post); err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}

	s.publish(events.EventUpsert, post)
	return post, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	posts, err := s.pr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *postService) PostInfo(ctx context.Context, userID, postID int64) (*models.Post, error) {
	return ownedPost(ctx, s.pr, userID, postID)
}

func (s *postService) Update(ctx context.Context, userID, postID int64, pu *transfer.PostUpdate) (*models.Post, error) {
	post, err := ownedPost(ctx, s.pr, userID, postID)
	if err != nil {
		return nil, err
	}
	if !post.Editable() {
		return nil, invalid("post", "a %s post cannot be edited", post.Status)
	}

	if pu.Content != nil {
		if err := s.checkContent(*pu.Content); err != nil {
			return nil, err
		}
		post.Content = *pu.Content
	}
	if pu.Platforms != nil {
		platforms, err := parsePlatforms(pu.Platforms)
		if err != nil {
			return nil, err
		}
		post.Platforms = platforms
	}

	if err := s.pr.Update(ctx, post); err != nil {
		return nil, fmt.Errorf("error updating post: %w", err)
	}

	s.publish(events.EventUpdate, post)
	return post, nil
}

func (s *postService) Reorder(ctx context.Context, userID int64, req *transfer.PostReorder) error {
	if err := s.pr.Reorder(ctx, userID, req.PostIDs); err != nil {
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return fmt.Errorf("reorder includes a post the user does not own: %w", ErrNotFound)
		}
		return fmt.Errorf("error reordering posts: %w", err)
	}

	s.events.Publish(events.PostEvent{Type: events.EventRefetch, UserID: userID, Time: s.now()})
	return nil
}

// Remove cancels pending schedules before deleting. Messages that cannot be
// retracted hit a missing post on delivery and end as not found.
func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	post, err := ownedPost(ctx, s.pr, userID, postID)
	if err != nil {
		return err
	}
	if post.Status == models.PostStatusPosting {
		return invalid("post", "post %d is being published", post.ID)
	}

	cancelled, err := s.sr.CancelActive(ctx, post.ID, "")
	if err != nil {
		return fmt.Errorf("error cancelling schedules: %w", err)
	}
	retract(ctx, s.queue, cancelled)

	if err := s.pr.Remove(ctx, post.ID); err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}

	s.publish(events.EventDelete, post)
	return nil
}

func (s *postService) AttachMedia(ctx context.Context, userID, postID int64, files []*multipart.FileHeader) (assets []*models.MediaAsset, err error) {
	post, err := ownedPost(ctx, s.pr, userID, postID)
	if err != nil {
		return nil, err
	}
	if !post.Editable() {
		return nil, invalid("post", "a %s post cannot be edited", post.Status)
	}
	if len(files) == 0 {
		return nil, invalid("files", "no files provided")
	}
	if s.storage == nil {
		return nil, errors.New("media storage is not configured")
	}

	order, err := s.pm.NextDisplayOrder(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("error reading media order: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	for i, file := range files {
		asset, err := s.saveFile(ctx, tx, userID, file)
		if err != nil {
			return nil, err
		}

		pm := &models.PostMedia{PostID: post.ID, AssetID: asset.ID, DisplayOrder: order + i}
		if err := s.pm.Create(ctx, tx, pm); err != nil {
			return nil, fmt.Errorf("error saving media file: %w", err)
		}
		assets = append(assets, asset)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.publish(events.EventUpdate, post)
	return assets, nil
}

func (s *postService) saveFile(ctx context.Context, tx *sql.Tx, userID int64, file *multipart.FileHeader) (*models.MediaAsset, error) {
	if file.Size > MaxMediaSize {
		return nil, invalid("files", "%s is larger than %d bytes", file.Filename, MaxMediaSize)
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxMediaSize+1))
	if err != nil {
		return nil, fmt.Errorf("error reading file content: %w", err)
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == types.Unknown {
		return nil, invalid("files", "%s has an unsupported file type", file.Filename)
	}
	if _, ok := allowedMediaTypes[kind.Extension]; !ok {
		return nil, invalid("files", "file type %s is not allowed", kind.Extension)
	}

	key, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("error generating media key: %w", err)
	}
	key = key + "." + kind.Extension

	url, err := s.storage.Upload(ctx, key, data, kind.MIME.Value)
	if err != nil {
		return nil, fmt.Errorf("error uploading file: %w", err)
	}

	asset := &models.MediaAsset{
		UserID:   userID,
		FileName: key,
		FileType: kind.MIME.Value,
		FileSize: int64(len(data)),
		FileURL:  url,
	}
	asset.ID, err = s.ma.Create(ctx, tx, asset)
	if err != nil {
		return nil, fmt.Errorf("error saving media asset: %w", err)
	}
	return asset, nil
}

func (s *postService) ListMedia(ctx context.Context, userID, postID int64) ([]*models.MediaAsset, error) {
	if _, err := ownedPost(ctx, s.pr, userID, postID); err != nil {
		return nil, err
	}
	assets, err := s.ma.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error listing media: %w", err)
	}
	return assets, nil
}

func (s *postService) ClearMedia(ctx context.Context, userID, postID int64) error {
	post, err := ownedPost(ctx, s.pr, userID, postID)
	if err != nil {
		return err
	}
	if !post.Editable() {
		return invalid("post", "a %s post cannot be edited", post.Status)
	}
	if err := s.pm.RemoveByPostID(ctx, nil, post.ID); err != nil {
		return fmt.Errorf("error removing media: %w", err)
	}
	s.publish(events.EventUpdate, post)
	return nil
}

func (s *postService) Logs(ctx context.Context, userID, postID int64) ([]*models.PostLog, error) {
	if _, err := ownedPost(ctx, s.pr, userID, postID); err != nil {
		return nil, err
	}
	logs, err := s.lr.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error listing post logs: %w", err)
	}
	return logs, nil
}

func (s *postService) checkContent(raw string) error {
	if err := s.validator.Validate(raw); err != nil {
		return invalid("content", "%s", err.Error())
	}
	return nil
}

func (s *postService) publish(t events.EventType, post *models.Post) {
	s.events.Publish(events.PostEvent{Type: t, UserID: post.UserID, PostID: post.ID, Status: post.Status, Time: s.now()})
}

func ownedPost(ctx context.Context, pr repository.PostRepository, userID, postID int64) (*models.Post, error) {
	if postID <= 0 {
		return nil, invalid("post_id", "is not valid")
	}
	post, err := pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post: %w", err)
	}
	if post == nil || post.UserID != userID {
		log.Debug().Int64("post_id", postID).Int64("user_id", userID).Msg("post not found for user")
		return nil, fmt.Errorf("post %d: %w", postID, ErrNotFound)
	}
	return post, nil
}
