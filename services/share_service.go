package services

import (
	"cloudnest/models"
	"cloudnest/repository"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	shareTokenBytes     = 32
	shareTokenLength    = shareTokenBytes * 2
	maxTokenGenAttempts = 3
)

// ShareOptions constrain a newly issued link. Both limits are optional.
type ShareOptions struct {
	ExpiresIn *time.Duration
	MaxAccess *int64
}

// ResolvedShare is what an anonymous visitor sees behind a token. Exactly
// one of Folder and File is set.
type ResolvedShare struct {
	Link   *models.ShareLink  `json:"link"`
	Owner  models.PublicOwner `json:"owner"`
	Folder *models.FolderView `json:"folder,omitempty"`
	File   *models.FileView   `json:"file,omitempty"`
}

// SharedItem is one of the owner's links together with the name of what it
// points at.
type SharedItem struct {
	models.ShareLink
	TargetName string `json:"target_name"`
	Usable     bool   `json:"usable"`
}

type ShareService struct {
	shares  repository.ShareRepository
	folders repository.FolderRepository
	files   repository.FileRepository
	users   repository.UserRepository
	now     func() time.Time
}

func NewShareService(store *repository.Store) *ShareService {
	return &ShareService{
		shares:  store.Shares,
		folders: store.Folders,
		files:   store.Files,
		users:   store.Users,
		now:     time.Now,
	}
}

func generateShareToken() (string, error) {
	buf := make([]byte, shareTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *ShareService) ensureOwned(ctx context.Context, ownerID string, targetType models.TargetType, targetID string) error {
	var err error
	switch targetType {
	case models.TargetFolder:
		_, err = s.folders.FindByID(ctx, ownerID, targetID)
	case models.TargetFile:
		_, err = s.files.FindByID(ctx, ownerID, targetID)
	default:
		return BadRequest(fmt.Sprintf("invalid share target type: %s", targetType))
	}

	if errors.Is(err, repository.ErrNotFound) {
		return NotFound(fmt.Sprintf("%s not found", targetType))
	} else if err != nil {
		return Internal("failed to load share target", err)
	}
	return nil
}

// Issue returns the target's share link, creating one if needed. Repeated
// calls return the same token. A link that has expired or run out of
// accesses is replaced by a fresh one carrying opts.
func (s *ShareService) Issue(ctx context.Context, ownerID string, targetType models.TargetType, targetID string, opts ShareOptions) (*models.ShareLink, error) {
	if err := s.ensureOwned(ctx, ownerID, targetType, targetID); err != nil {
		return nil, err
	}
	if opts.ExpiresIn != nil && *opts.ExpiresIn <= 0 {
		return nil, BadRequest("expiry must be in the future")
	}
	if opts.MaxAccess != nil && *opts.MaxAccess < 1 {
		return nil, BadRequest("max access count must be at least 1")
	}

	existing, err := s.shares.FindByTarget(ctx, targetType, targetID)
	switch {
	case err == nil:
		if existing.Usable(s.now()) {
			return existing, nil
		}
		if err := s.shares.DeleteByTarget(ctx, targetType, targetID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, Internal("failed to replace stale share link", err)
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, Internal("failed to look up share link", err)
	}

	now := s.now()
	link := &models.ShareLink{
		OwnerID:    ownerID,
		TargetType: targetType,
		TargetID:   targetID,
		MaxAccess:  opts.MaxAccess,
		CreatedAt:  now,
	}
	if opts.ExpiresIn != nil {
		expiresAt := now.Add(*opts.ExpiresIn)
		link.ExpiresAt = &expiresAt
	}

	for attempt := 0; attempt < maxTokenGenAttempts; attempt++ {
		token, err := generateShareToken()
		if err != nil {
			return nil, Internal("failed to generate share token", err)
		}
		link.Token = token

		err = s.shares.Create(ctx, link)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, Internal("failed to create share link", err)
		}

		// A concurrent Issue for the same target may have won the race.
		if winner, findErr := s.shares.FindByTarget(ctx, targetType, targetID); findErr == nil {
			return winner, nil
		}
		log.Warn().Int("attempt", attempt+1).Msg("Share token collision, regenerating")
	}
	return nil, Conflict("could not allocate a unique share token")
}

// Resolve grants one access through token. The access counter is bumped by
// a conditional update, so concurrent visitors cannot exceed MaxAccess.
func (s *ShareService) Resolve(ctx context.Context, token string) (*ResolvedShare, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if len(token) != shareTokenLength {
		return nil, NotFound("share link not found")
	}

	link, err := s.shares.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("share link not found")
		}
		return nil, Internal("failed to load share link", err)
	}

	now := s.now()
	if err := classifyUnusable(link, now); err != nil {
		return nil, err
	}

	// a link whose target is gone must not spend an access
	resolved, err := s.loadTarget(ctx, link)
	if err != nil {
		return nil, err
	}

	consumed, err := s.shares.ConsumeAccess(ctx, token, now)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, Internal("failed to record share access", err)
		}
		// Lost a race: find out why the link is no longer usable.
		latest, findErr := s.shares.FindByToken(ctx, token)
		if findErr != nil {
			return nil, NotFound("share link not found")
		}
		if err := classifyUnusable(latest, now); err != nil {
			return nil, err
		}
		return nil, LimitReached("share link access limit reached")
	}

	resolved.Link = consumed
	return resolved, nil
}

func classifyUnusable(link *models.ShareLink, now time.Time) error {
	if link.Expired(now) {
		return Gone("share link has expired")
	}
	if link.LimitReached() {
		return LimitReached("share link access limit reached")
	}
	return nil
}

func (s *ShareService) loadTarget(ctx context.Context, link *models.ShareLink) (*ResolvedShare, error) {
	resolved := &ResolvedShare{Link: link}

	owner, err := s.users.FindByID(ctx, link.OwnerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, Internal("failed to load share owner", err)
	}
	if owner != nil {
		resolved.Owner = models.PublicOwner{Name: owner.Name}
	}

	switch link.TargetType {
	case models.TargetFolder:
		folder, err := s.folders.FindByID(ctx, link.OwnerID, link.TargetID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, NotFound("shared folder no longer exists")
			}
			return nil, Internal("failed to load shared folder", err)
		}
		view := models.NewFolderView(folder)
		view.ShareToken = link.Token
		resolved.Folder = &view
	case models.TargetFile:
		file, err := s.files.FindByID(ctx, link.OwnerID, link.TargetID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, NotFound("shared file no longer exists")
			}
			return nil, Internal("failed to load shared file", err)
		}
		view := models.NewFileView(file)
		view.ShareToken = link.Token
		resolved.File = &view
	default:
		return nil, Internal("share link has unknown target type", fmt.Errorf("target type %q", link.TargetType))
	}
	return resolved, nil
}

// ListOwned returns the owner's share links, newest first, optionally only
// those of one target type. Links whose target no longer exists are skipped.
func (s *ShareService) ListOwned(ctx context.Context, ownerID string, targetType models.TargetType) ([]SharedItem, error) {
	if targetType != "" && !targetType.Valid() {
		return nil, BadRequest(fmt.Sprintf("invalid share target type: %s", targetType))
	}

	links, err := s.shares.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, Internal("failed to list share links", err)
	}

	now := s.now()
	items := make([]SharedItem, 0, len(links))
	for _, link := range links {
		if targetType != "" && link.TargetType != targetType {
			continue
		}
		name, err := s.targetName(ctx, ownerID, link.TargetType, link.TargetID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, Internal("failed to load share target", err)
		}
		items = append(items, SharedItem{ShareLink: link, TargetName: name, Usable: link.Usable(now)})
	}
	return items, nil
}

func (s *ShareService) targetName(ctx context.Context, ownerID string, targetType models.TargetType, targetID string) (string, error) {
	switch targetType {
	case models.TargetFolder:
		folder, err := s.folders.FindByID(ctx, ownerID, targetID)
		if err != nil {
			return "", err
		}
		return folder.Name, nil
	case models.TargetFile:
		file, err := s.files.FindByID(ctx, ownerID, targetID)
		if err != nil {
			return "", err
		}
		return file.OriginalName, nil
	default:
		return "", repository.ErrNotFound
	}
}

func (s *ShareService) Revoke(ctx context.Context, ownerID string, targetType models.TargetType, targetID string) error {
	if err := s.ensureOwned(ctx, ownerID, targetType, targetID); err != nil {
		return err
	}
	if err := s.shares.DeleteByTarget(ctx, targetType, targetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NotFound(fmt.Sprintf("%s is not shared", targetType))
		}
		return Internal("failed to revoke share link", err)
	}
	return nil
}

// TokensFor maps target ids to their share tokens. Targets without a link
// are absent from the map.
func (s *ShareService) TokensFor(ctx context.Context, targetType models.TargetType, targetIDs []string) (map[string]string, error) {
	tokens, err := s.shares.TokensFor(ctx, targetType, targetIDs)
	if err != nil {
		return nil, Internal("failed to load share tokens", err)
	}
	return tokens, nil
}

// TokenFor returns the target's token or "" when it is not shared.
func (s *ShareService) TokenFor(ctx context.Context, targetType models.TargetType, targetID string) (string, error) {
	tokens, err := s.TokensFor(ctx, targetType, []string{targetID})
	if err != nil {
		return "", err
	}
	return tokens[targetID], nil
}

// forget drops the link of a deleted target. Failures only leave a dangling
// link that resolves to NotFound, so they are logged, not returned.
func (s *ShareService) forget(ctx context.Context, targetType models.TargetType, targetID string) {
	err := s.shares.DeleteByTarget(ctx, targetType, targetID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Warn().Err(err).
			Str("target_type", string(targetType)).
			Str("target_id", targetID).
			Msg("Failed to remove share link of deleted item")
	}
}

func (s *ShareService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.shares.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired share links: %w", err)
	}
	return n, nil
}
