package platform

import "context"

// Ensure NoopGateway implements Gateway interface.
var _ Gateway = (*NoopGateway)(nil)

// Gateway that drops everything. Used when no platform is configured and in
// tests that only care about ledger state.
type NoopGateway struct{}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{}
}

func (g *NoopGateway) NotifyUser(_ context.Context, _ string, _ string) error {
	return nil
}

func (g *NoopGateway) PostToModerationChannel(_ context.Context, _ ModerationPost) (string, error) {
	return "", nil
}

func (g *NoopGateway) UpdateArtifact(_ context.Context, _ string, _ ArtifactUpdate) error {
	return nil
}
