package platform

import (
	"context"

	"go.opentelemetry.io/otel"

	"github.com/roadrallyhq/rally-api/internal/types"
)

var tracer = otel.Tracer("github.com/roadrallyhq/rally-api/internal/platform")

// A clickable control on a review artifact. CustomID round-trips through the
// relay so a click can be dispatched back to the right submission without any
// per-artifact state on this side.
type Control struct {
	Kind     types.Decision
	Label    string
	CustomID string
}

type ModerationPost struct {
	Content  string
	ImageURL string
	VideoURL string
	Controls []Control
}

type ArtifactUpdate struct {
	Content         *string
	DisableControls bool
}

// Chat platform delivery. Everything here is best-effort from the ledger's
// point of view: callers log failures and move on, a lost message never rolls
// back a committed decision.
type Gateway interface {
	// Direct message to a single user by platform identifier
	NotifyUser(ctx context.Context, platformUserID string, text string) error
	// Posts evidence and controls to the moderation channel, returning the
	// artifact reference used for later edits
	PostToModerationChannel(ctx context.Context, post ModerationPost) (string, error)
	// Edits a previously posted artifact; used to disable stale controls
	UpdateArtifact(ctx context.Context, artifactRef string, update ArtifactUpdate) error
}
