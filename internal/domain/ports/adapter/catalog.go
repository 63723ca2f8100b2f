package adapter

import "context"

// ContentCatalog supplies the ordered module ids of a track.
type ContentCatalog interface {
	ModuleIDs(ctx context.Context, trackID string) ([]string, error)
}
