package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/notionhugo/internal/models"
)

// ChildLister returns one page of a block's (or document's) children.
type ChildLister interface {
	ListChildren(ctx context.Context, parentID, cursor string) (models.BlockPage, error)
}

// Walker renders a whole block tree.
type Walker struct {
	source   ChildLister
	renderer *Renderer
}

// NewWalker creates a Walker reading children from source.
func NewWalker(source ChildLister, renderer *Renderer) *Walker {
	return &Walker{source: source, renderer: renderer}
}

// Walk renders every block below documentID, depth-first, in source order.
func (w *Walker) Walk(ctx context.Context, documentID string) (string, error) {
	var buf strings.Builder
	if err := w.children(ctx, &buf, documentID, State{}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// children renders all pages of parentID's children. The header flag only
// applies to the first child.
func (w *Walker) children(ctx context.Context, buf *strings.Builder, parentID string, st State) error {
	cursor := ""
	for {
		page, err := w.source.ListChildren(ctx, parentID, cursor)
		if err != nil {
			return fmt.Errorf("render: list children of %s: %w", parentID, err)
		}
		for _, b := range page.Results {
			if err := w.block(ctx, buf, b, st); err != nil {
				return err
			}
			st.TableHeader = false
		}
		if !page.HasMore || page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
}

// block writes b, its separator, then its subtree one level deeper.
func (w *Walker) block(ctx context.Context, buf *strings.Builder, b models.Block, st State) error {
	content, err := w.renderer.Block(ctx, b, st)
	if err != nil {
		return err
	}
	if content != "" {
		buf.WriteString(content)
		buf.WriteString("\n")
	}
	// Rows of one table stay on consecutive lines.
	if b.Kind != models.KindTableRow {
		buf.WriteString("\n")
	}

	if !b.HasChildren {
		return nil
	}
	child := State{Depth: st.Depth + 1}
	if b.Kind == models.KindTable && b.Table != nil {
		child.TableHeader = b.Table.HasColumnHeader
	}
	if err := w.children(ctx, buf, b.ID, child); err != nil {
		return err
	}
	if b.Kind == models.KindTable {
		buf.WriteString("\n")
	}
	return nil
}
