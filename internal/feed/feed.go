// Package feed implements the Navegantes community feed.
package feed

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"

	"github.com/navis-app/navis-api/internal/model"
	"github.com/navis-app/navis-api/internal/store"
)

// MaxContentLength is the longest post body accepted, in characters.
const MaxContentLength = 2000

var (
	ErrEmptyContent   = eris.New("Escreva algo para publicar")
	ErrContentTooLong = eris.New("A publicação pode ter no máximo 2000 caracteres")
	ErrEmptyComment   = eris.New("O comentário não pode ficar vazio")
	ErrNotOwner       = eris.New("Só o autor pode excluir!")
	ErrPinNotOwner    = eris.New("Só o autor pode fixar!")
	ErrPostNotFound   = eris.New("Publicação não encontrada")
)

// Author identifies who is acting on the feed.
type Author struct {
	UserID string
	Name   string
	Avatar string
}

// Service manages posts, likes, pins and comments.
type Service struct {
	store store.Store
	clock clockwork.Clock
}

// NewService creates a feed Service.
func NewService(st store.Store, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{store: st, clock: clock}
}

// Publish creates a post.
func (s *Service) Publish(ctx context.Context, author Author, content string) (*model.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, ErrContentTooLong
	}

	p := &model.Post{
		ID:        uuid.NewString(),
		Author:    author.Name,
		Avatar:    author.Avatar,
		Content:   content,
		LikedBy:   []string{},
		Comments:  []model.Comment{},
		Owner:     author.UserID,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.store.CreatePost(ctx, p); err != nil {
		return nil, eris.Wrap(err, "feed: publish")
	}
	return p, nil
}

// List returns pinned posts first, then newest first.
func (s *Service) List(ctx context.Context) ([]model.Post, error) {
	posts, err := s.store.ListPosts(ctx)
	return posts, eris.Wrap(err, "feed: list")
}

// ToggleLike adds or removes the author's user id from the post's likes.
func (s *Service) ToggleLike(ctx context.Context, postID string, author Author) (*model.Post, error) {
	if author.UserID == "" {
		return nil, eris.New("feed: like without user id")
	}
	p, err := s.get(ctx, postID)
	if err != nil {
		return nil, err
	}

	liked := false
	kept := make([]string, 0, len(p.LikedBy)+1)
	for _, id := range p.LikedBy {
		if id == author.UserID {
			liked = true
			continue
		}
		kept = append(kept, id)
	}
	if !liked {
		kept = append(kept, author.UserID)
	}
	p.LikedBy = kept

	if err := s.store.UpdatePost(ctx, p); err != nil {
		return nil, eris.Wrap(err, "feed: like")
	}
	return p, nil
}

// Delete removes a post. Only its owner may do so.
func (s *Service) Delete(ctx context.Context, postID string, author Author) error {
	p, err := s.get(ctx, postID)
	if err != nil {
		return err
	}
	if p.Owner != author.UserID {
		return ErrNotOwner
	}
	return eris.Wrap(s.store.DeletePost(ctx, postID), "feed: delete")
}

// TogglePin pins a post and unpins all others. Pinning the pinned post
// unpins it. Only the post's owner may pin or unpin it.
func (s *Service) TogglePin(ctx context.Context, postID string, author Author) (*model.Post, error) {
	p, err := s.get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.Owner != author.UserID {
		return nil, ErrPinNotOwner
	}
	target := postID
	if p.Pinned {
		target = ""
	}
	if err := s.store.SetPinned(ctx, target); err != nil {
		return nil, eris.Wrap(err, "feed: pin")
	}
	p.Pinned = target != ""
	return p, nil
}

// Comment appends a comment to a post.
func (s *Service) Comment(ctx context.Context, postID string, author Author, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	if utf8.RuneCountInString(text) > MaxContentLength {
		return nil, ErrContentTooLong
	}
	p, err := s.get(ctx, postID)
	if err != nil {
		return nil, err
	}

	c := model.Comment{
		ID:        uuid.NewString(),
		Author:    author.Name,
		Owner:     author.UserID,
		Text:      text,
		CreatedAt: s.clock.Now().UTC(),
	}
	p.Comments = append(p.Comments, c)
	if err := s.store.UpdatePost(ctx, p); err != nil {
		return nil, eris.Wrap(err, "feed: comment")
	}
	return &c, nil
}

// DeleteComment removes a comment. Only the comment's owner may do so.
func (s *Service) DeleteComment(ctx context.Context, postID, commentID string, author Author) error {
	p, err := s.get(ctx, postID)
	if err != nil {
		return err
	}

	idx := -1
	for i, c := range p.Comments {
		if c.ID == commentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrPostNotFound
	}
	if p.Comments[idx].Owner != author.UserID {
		return ErrNotOwner
	}
	p.Comments = append(p.Comments[:idx], p.Comments[idx+1:]...)
	return eris.Wrap(s.store.UpdatePost(ctx, p), "feed: delete comment")
}

func (s *Service) get(ctx context.Context, postID string) (*model.Post, error) {
	p, err := s.store.GetPost(ctx, postID)
	if eris.Is(err, store.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "feed: load post")
	}
	return p, nil
}
