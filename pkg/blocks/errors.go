package blocks

import "errors"

var (
	// ErrUnknownSection reports a section name absent from the layout.
	ErrUnknownSection = errors.New("blocks: unknown section")
	// ErrUnknownBlock reports a block id absent from its section.
	ErrUnknownBlock = errors.New("blocks: unknown block")
	// ErrUnknownVariant reports a block type the section does not accept.
	ErrUnknownVariant = errors.New("blocks: unknown block type")
	// ErrImmutableBlock reports an attempt to rename or delete the implicit
	// initialize block.
	ErrImmutableBlock = errors.New("blocks: the initialize block cannot be renamed or deleted")
	// ErrSingleSection reports an attempt to add blocks to a single-block
	// section.
	ErrSingleSection = errors.New("blocks: section holds a single implicit block")
	// ErrEmptyName reports a blank block name.
	ErrEmptyName = errors.New("blocks: block name is required")
)
