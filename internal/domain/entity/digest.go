package entity

import "time"

// DigestMode selects the framing of a digest.
type DigestMode string

const (
	ModeWelcome            DigestMode = "welcome"
	ModePreferencesUpdated DigestMode = "preferences_updated"
	ModeRegular            DigestMode = "regular"
)

// Valid reports whether m is a known mode.
func (m DigestMode) Valid() bool {
	switch m {
	case ModeWelcome, ModePreferencesUpdated, ModeRegular:
		return true
	}
	return false
}

// Digest is a persisted record of one successful pipeline run.
// Articles are value snapshots taken at assembly time; later changes to the
// article store do not affect them.
type Digest struct {
	ID        int64
	UserID    string
	Mode      DigestMode
	Summary   string
	Articles  []Article
	CreatedAt time.Time
}

// NewDigest builds a digest whose articles are deep copies of the input.
func NewDigest(userID string, mode DigestMode, summary string, articles []*Article, createdAt time.Time) *Digest {
	snapshot := make([]Article, 0, len(articles))
	for _, a := range articles {
		if a == nil {
			continue
		}
		snapshot = append(snapshot, *a.Clone())
	}
	return &Digest{
		UserID:    userID,
		Mode:      mode,
		Summary:   summary,
		Articles:  snapshot,
		CreatedAt: createdAt,
	}
}
