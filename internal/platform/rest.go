package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Ensure RESTGateway implements Gateway interface.
var _ Gateway = (*RESTGateway)(nil)

// Gateway backed by the chat platform's REST API.
type RESTGateway struct {
	client              *http.Client
	apiURL              string
	botToken            string
	moderationChannelID string
}

func NewRESTGateway(apiURL, botToken, moderationChannelID string) *RESTGateway {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	return &RESTGateway{
		client:              retryClient.StandardClient(),
		apiURL:              strings.TrimSuffix(apiURL, "/"),
		botToken:            botToken,
		moderationChannelID: moderationChannelID,
	}
}

type restMessage struct {
	Content    string          `json:"content"`
	Embeds     []restEmbed     `json:"embeds,omitempty"`
	Components []restComponent `json:"components,omitempty"`
}

type restEmbed struct {
	Image *restEmbedMedia `json:"image,omitempty"`
}

type restEmbedMedia struct {
	URL string `json:"url"`
}

type restComponent struct {
	CustomID string `json:"custom_id"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

type restMessageRef struct {
	ID string `json:"id"`
}

func (g *RESTGateway) do(
	ctx context.Context,
	method, path string,
	payload any,
	out any,
) error {
	ctx, span := tracer.Start(ctx, "RESTGateway.do", trace.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
	))
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize payload")
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, g.apiURL+path, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to construct request")
		return err
	}
	req.Header.Set("Authorization", "Bot "+g.botToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "platform request failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("platform returned status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "platform returned non-2xx")
		return err
	}

	if out != nil {
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to decode platform response")
			return err
		}
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "platform request succeeded")
	return nil
}

func (g *RESTGateway) NotifyUser(ctx context.Context, platformUserID string, text string) error {
	ctx, span := tracer.Start(ctx, "RESTGateway.NotifyUser", trace.WithAttributes(
		attribute.String("user.id", platformUserID),
	))
	defer span.End()

	err := g.do(
		ctx,
		http.MethodPost,
		fmt.Sprintf("/users/%s/messages", platformUserID),
		restMessage{Content: text},
		nil,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to notify user")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "notified user")
	return nil
}

func (g *RESTGateway) PostToModerationChannel(
	ctx context.Context,
	post ModerationPost,
) (string, error) {
	ctx, span := tracer.Start(ctx, "RESTGateway.PostToModerationChannel")
	defer span.End()

	msg := restMessage{Content: post.Content}
	if post.ImageURL != "" {
		msg.Embeds = append(msg.Embeds, restEmbed{Image: &restEmbedMedia{URL: post.ImageURL}})
	}
	if post.VideoURL != "" {
		// video attachments render from a bare link, not an embed
		msg.Content = msg.Content + "\n" + post.VideoURL
	}
	for _, control := range post.Controls {
		msg.Components = append(msg.Components, restComponent{
			CustomID: control.CustomID,
			Label:    control.Label,
		})
	}

	var ref restMessageRef
	err := g.do(
		ctx,
		http.MethodPost,
		fmt.Sprintf("/channels/%s/messages", g.moderationChannelID),
		msg,
		&ref,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post to moderation channel")
		return "", err
	}

	artifactRef := g.moderationChannelID + "/" + ref.ID
	span.SetAttributes(attribute.String("artifact.ref", artifactRef))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "posted to moderation channel")
	return artifactRef, nil
}

func (g *RESTGateway) UpdateArtifact(
	ctx context.Context,
	artifactRef string,
	update ArtifactUpdate,
) error {
	ctx, span := tracer.Start(ctx, "RESTGateway.UpdateArtifact", trace.WithAttributes(
		attribute.String("artifact.ref", artifactRef),
		attribute.Bool("disable_controls", update.DisableControls),
	))
	defer span.End()

	channelID, messageID, ok := strings.Cut(artifactRef, "/")
	if !ok {
		err := fmt.Errorf("malformed artifact ref %q", artifactRef)
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed artifact ref")
		return err
	}

	patch := map[string]any{}
	if update.Content != nil {
		patch["content"] = *update.Content
	}
	if update.DisableControls {
		patch["components"] = []restComponent{}
	}

	err := g.do(
		ctx,
		http.MethodPatch,
		fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID),
		patch,
		nil,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update artifact")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "updated artifact")
	return nil
}
