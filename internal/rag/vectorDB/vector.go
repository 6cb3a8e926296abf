// Package vectorDB mirrors indexed chunks into an external vector store.
// Retrieval does not read from it; the mirror exists for downstream consumers.
package vectorDB

import (
	"context"

	"github.com/akolanti/docchat/internal/domain/docModel"
)

type IndexSink interface {
	// Publish writes every chunk of an indexed document with its vector.
	Publish(ctx context.Context, doc docModel.Document) error
	// Remove drops all points of a document. Unknown ids are not an error.
	Remove(ctx context.Context, documentID int64) error
}
