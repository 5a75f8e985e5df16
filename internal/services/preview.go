package services

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPreviewNotFound = errors.New("preview not found or expired")
	ErrPreviewNotOwned = errors.New("preview belongs to another user")
)

// ImportPreview is a parsed-but-unconfirmed upload, held only between the
// upload request and the confirm (or discard) request. Nothing touches the
// database until the owner confirms.
type ImportPreview struct {
	Token     string          `json:"token"`
	OwnerID   uint            `json:"-"`
	SchoolID  uint            `json:"school_id"`
	Filename  string          `json:"filename"`
	Parse     *ParseResult    `json:"parse"`
	Matches   []StudentMatch  `json:"matches"`
	CreatedAt time.Time       `json:"created_at"`
	expiresAt time.Time
}

// StudentMatch pairs one parsed row with its roster resolution.
type StudentMatch struct {
	Row       ParsedResult `json:"row"`
	StudentID *uint        `json:"student_id,omitempty"`
	FullName  string       `json:"full_name,omitempty"`
	Grade     string       `json:"grade,omitempty"`
}

// PreviewStore keeps pending previews in memory, keyed by an opaque token.
// Entries expire after the configured TTL; a successful confirm or an
// explicit discard removes them immediately.
type PreviewStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	previews map[string]*ImportPreview
}

func NewPreviewStore(ttl time.Duration) *PreviewStore {
	return &PreviewStore{
		ttl:      ttl,
		previews: make(map[string]*ImportPreview),
	}
}

// Put registers a preview and returns its token.
func (p *PreviewStore) Put(preview *ImportPreview) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.evictExpiredLocked(time.Now())
	preview.Token = uuid.NewString()
	preview.CreatedAt = time.Now()
	preview.expiresAt = preview.CreatedAt.Add(p.ttl)
	p.previews[preview.Token] = preview
	return preview.Token
}

// Get returns the preview for a token if it exists, has not expired, and
// belongs to the requesting user.
func (p *PreviewStore) Get(token string, ownerID uint) (*ImportPreview, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	preview, ok := p.previews[token]
	if !ok || time.Now().After(preview.expiresAt) {
		delete(p.previews, token)
		return nil, ErrPreviewNotFound
	}
	if preview.OwnerID != ownerID {
		return nil, ErrPreviewNotOwned
	}
	return preview, nil
}

// Discard drops a preview. Missing tokens are not an error; discard is
// idempotent.
func (p *PreviewStore) Discard(token string, ownerID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if preview, ok := p.previews[token]; ok && preview.OwnerID == ownerID {
		delete(p.previews, token)
	}
}

func (p *PreviewStore) evictExpiredLocked(now time.Time) {
	for token, preview := range p.previews {
		if now.After(preview.expiresAt) {
			delete(p.previews, token)
		}
	}
}
