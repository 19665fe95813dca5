package domain

import "time"

// ContentKind distinguishes the two content tables sharing the digest keyspace.
type ContentKind string

const (
	KindVideo   ContentKind = "video"
	KindArticle ContentKind = "article"
)

// DigestKey is the composite identity of a digest: the content kind plus the
// referenced record's own identity (video id or article URL). It is an
// explicit pair, not a concatenated string, so ids from different kinds can
// never collide; String is for logging and storage indexing only.
type DigestKey struct {
	Kind ContentKind
	ID   string
}

func (k DigestKey) String() string {
	return string(k.Kind) + ":" + k.ID
}

// DigestRecord is a write-once AI summary bound to exactly one content item.
// At most one DigestRecord per DigestKey ever exists.
type DigestRecord struct {
	Key         DigestKey
	URL         string
	Title       string
	Summary     string
	EffectiveAt time.Time
	CreatedAt   time.Time
}

// PendingItem carries the minimal fields the digest generator needs for one
// not-yet-summarized content record.
type PendingItem struct {
	Key         DigestKey
	Title       string
	URL         string
	Content     string
	PublishedAt time.Time
}
