package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/apresai/podcaster-async/internal/artifacts"
	"github.com/apresai/podcaster-async/internal/cleanup"
	"github.com/apresai/podcaster-async/internal/store"
)

// registerResources wires up MCP resource templates for read-only access to
// task and podcast state, as an alternative to polling get_podcast for
// clients that prefer resource reads over tool calls.
func registerResources(mcpServer *server.MCPServer, taskStore store.Store, artifactStore artifacts.Store, cleanupMgr *cleanup.Manager) {
	jobResource := mcp.NewResourceTemplate(
		"jobs/{task_id}/{aspect}",
		"Podcast generation job state",
		mcp.WithTemplateDescription("Read a task's status, logs, or warnings: jobs/<task_id>/status, jobs/<task_id>/logs, jobs/<task_id>/warnings"),
		mcp.WithTemplateMIMEType("application/json"),
	)
	mcpServer.AddResourceTemplate(jobResource, jobResourceHandler(taskStore))

	podcastResource := mcp.NewResourceTemplate(
		"podcast/{task_id}/{aspect}",
		"Completed podcast artifacts",
		mcp.WithTemplateDescription("Read a completed podcast's outline, transcript, audio reference, or metadata: podcast/<task_id>/{outline,transcript,audio,metadata}"),
		mcp.WithTemplateMIMEType("application/json"),
	)
	mcpServer.AddResourceTemplate(podcastResource, podcastResourceHandler(taskStore, artifactStore))

	cleanupResource := mcp.NewResourceTemplate(
		"cleanup/{aspect}",
		"Cleanup policy state",
		mcp.WithTemplateDescription("Read cleanup/status (same as configure_cleanup_policy with no arguments) or cleanup/config"),
		mcp.WithTemplateMIMEType("application/json"),
	)
	mcpServer.AddResourceTemplate(cleanupResource, cleanupResourceHandler(cleanupMgr))
}

func jsonContents(uri, mimeType string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal resource body: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: mimeType,
			Text:     string(data),
		},
	}, nil
}

// parseResourcePath splits a URI like "jobs/abc123/status" into its
// path segments, ignoring any leading scheme ("resource://jobs/abc123/status").
func parseResourcePath(uri string) []string {
	trimmed := strings.TrimPrefix(uri, "resource://")
	if idx := strings.Index(trimmed, "://"); idx >= 0 {
		trimmed = trimmed[idx+3:]
	}
	return strings.Split(strings.Trim(trimmed, "/"), "/")
}

func jobResourceHandler(taskStore store.Store) server.ResourceTemplateHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		parts := parseResourcePath(req.Params.URI)
		if len(parts) < 3 || parts[0] != "jobs" {
			return nil, fmt.Errorf("malformed jobs resource URI: %s", req.Params.URI)
		}
		taskID, aspect := parts[1], parts[2]

		rec, err := taskStore.Get(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("get task %s: %w", taskID, err)
		}
		if rec == nil {
			return nil, fmt.Errorf("task %s not found", taskID)
		}

		switch aspect {
		case "status":
			return jsonContents(req.Params.URI, "application/json", taskRecordToResult(rec))
		case "logs":
			return jsonContents(req.Params.URI, "application/json", map[string]any{"task_id": taskID, "logs": rec.Logs})
		case "warnings":
			warnings := []string{}
			for _, line := range rec.Logs {
				if strings.Contains(strings.ToLower(line), "degraded") || strings.Contains(strings.ToLower(line), "warn") {
					warnings = append(warnings, line)
				}
			}
			return jsonContents(req.Params.URI, "application/json", map[string]any{"task_id": taskID, "warnings": warnings})
		default:
			return nil, fmt.Errorf("unknown job resource aspect %q", aspect)
		}
	}
}

func podcastResourceHandler(taskStore store.Store, artifactStore artifacts.Store) server.ResourceTemplateHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		parts := parseResourcePath(req.Params.URI)
		if len(parts) < 3 || parts[0] != "podcast" {
			return nil, fmt.Errorf("malformed podcast resource URI: %s", req.Params.URI)
		}
		taskID, aspect := parts[1], parts[2]

		rec, err := taskStore.Get(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("get task %s: %w", taskID, err)
		}
		if rec == nil {
			return nil, fmt.Errorf("task %s not found", taskID)
		}

		switch aspect {
		case "metadata":
			return jsonContents(req.Params.URI, "application/json", taskRecordToResult(rec))
		case "audio":
			if rec.ResultEpisode == nil {
				return nil, fmt.Errorf("task %s has no audio yet", taskID)
			}
			return jsonContents(req.Params.URI, "application/json", map[string]any{
				"audio_url":    rec.ResultEpisode.AudioURL,
				"duration_sec": rec.ResultEpisode.DurationSec,
			})
		case "transcript":
			if !rec.Artifacts.HasTranscript {
				return nil, fmt.Errorf("task %s has no stored transcript", taskID)
			}
			text, err := artifactStore.GetText(ctx, "tasks/"+taskID+"/transcript/transcript.json")
			if err != nil {
				return nil, fmt.Errorf("fetch transcript: %w", err)
			}
			return []mcp.ResourceContents{mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: text}}, nil
		case "outline":
			if rec.ResultEpisode == nil {
				return nil, fmt.Errorf("task %s has no outline yet", taskID)
			}
			return jsonContents(req.Params.URI, "application/json", map[string]any{"title": rec.ResultEpisode.Title, "segment_count": rec.ResultEpisode.SegmentCount})
		default:
			return nil, fmt.Errorf("unknown podcast resource aspect %q", aspect)
		}
	}
}

func cleanupResourceHandler(cleanupMgr *cleanup.Manager) server.ResourceTemplateHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		parts := parseResourcePath(req.Params.URI)
		if len(parts) < 2 || parts[0] != "cleanup" {
			return nil, fmt.Errorf("malformed cleanup resource URI: %s", req.Params.URI)
		}
		switch parts[1] {
		case "status", "config":
			return jsonContents(req.Params.URI, "application/json", cleanupMgr.Config())
		default:
			return nil, fmt.Errorf("unknown cleanup resource aspect %q", parts[1])
		}
	}
}
