package archive

import (
	"context"

	"github.com/aspenlund/kbharvest/pkg/data"
)

// Archive resolves a manifest identifier into the binary assets it
// references. An empty result means "no assets", whatever the reason;
// resolution never surfaces an error to the caller.
type Archive interface {
	Resolve(ctx context.Context, manifestID string) []data.AssetRef
}
