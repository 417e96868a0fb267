package bitmap

import "fmt"

// Kind selects between a full decode and a bounded thumbnail.
// A zero maxSize means full resolution.
type Kind struct {
	maxSize int
}

// KindFull requests the image at full resolution.
var KindFull = Kind{}

// ThumbnailKind requests a thumbnail whose long side is at most maxSize.
// Non-positive sizes mean full resolution.
func ThumbnailKind(maxSize int) Kind {
	if maxSize <= 0 {
		return KindFull
	}
	return Kind{maxSize: maxSize}
}

// IsThumbnail reports whether the kind is bounded.
func (k Kind) IsThumbnail() bool {
	return k.maxSize > 0
}

// MaxSize returns the long side bound, 0 for full images.
func (k Kind) MaxSize() int {
	return k.maxSize
}

func (k Kind) String() string {
	if k.IsThumbnail() {
		return fmt.Sprintf("thumbnail(%d)", k.maxSize)
	}
	return "full"
}

// Key addresses cache and queue entries.
type Key struct {
	ID   Identity
	Kind Kind
}

// FullKey returns the key of the full-resolution image of id.
func FullKey(id Identity) Key {
	return Key{ID: id, Kind: KindFull}
}

// ThumbnailKey returns the key of the thumbnail of id bounded by maxSize.
func ThumbnailKey(id Identity, maxSize int) Key {
	return Key{ID: id, Kind: ThumbnailKind(maxSize)}
}

func (k Key) String() string {
	return fmt.Sprintf("%s[%s]", k.ID.Short(), k.Kind)
}

// Priority orders load requests. Lower values are served first.
type Priority int

const (
	PriorityHigh   Priority = 1
	PriorityNormal Priority = 2
	PriorityLow    Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Request is a single preload request.
type Request struct {
	Key      Key
	Priority Priority
}
