// Package repository contains the tag index abstraction.
// Implementations live in subpackages (jsonfile, postgres).
package repository

import "context"

// TagRepository maps tag names to the public ids carrying them.
// Lists it returns are de-duplicated and sorted ascending.
type TagRepository interface {
	// Add attaches tags to publicID. Blank tags are ignored.
	Add(ctx context.Context, publicID string, tags []string) error

	// Tagged lists the public ids carrying tag.
	Tagged(ctx context.Context, tag string) ([]string, error)

	// TagsFor lists the tags attached to publicID.
	TagsFor(ctx context.Context, publicID string) ([]string, error)

	// Remove detaches publicID from every tag. Tags left empty are dropped.
	Remove(ctx context.Context, publicID string) error

	// Rename moves every tag of from onto to.
	Rename(ctx context.Context, from, to string) error

	// Clear drops the whole index.
	Clear(ctx context.Context) error
}
