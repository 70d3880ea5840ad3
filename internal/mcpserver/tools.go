package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/podcaster-async/internal/cleanup"
	"github.com/apresai/podcaster-async/internal/domain"
	"github.com/apresai/podcaster-async/internal/orchestrator"
	"github.com/apresai/podcaster-async/internal/store"
	"github.com/apresai/podcaster-async/internal/tts"
)

var tracer = otel.Tracer("podcaster-mcp")

// ToolDefs returns the MCP tool definitions for the control surface.
func ToolDefs() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "server_info",
			Description: "Returns server runtime information and diagnostics. Useful for debugging.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{},
			},
		},
		{
			Name:        "generate_podcast",
			Description: "Generate a podcast episode from a URL or text input. Starts the async pipeline (content ingestion, script generation, text-to-speech synthesis, audio assembly) and returns a task_id immediately. Use get_podcast to poll for progress and the completed result with an audio_url link to the MP3 file. Generation takes a few minutes depending on length. Always poll get_podcast until status is 'completed', then show the audio_url link to the user. Use list_voices to discover available voice IDs and list_options to see all formats, styles, and providers.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"input_url": map[string]any{
						"type":        "string",
						"description": "URL of content to convert into a podcast (alternative to input_text/sources)",
					},
					"input_text": map[string]any{
						"type":        "string",
						"description": "Raw text to convert into a podcast (alternative to input_url/sources)",
					},
					"sources": map[string]any{
						"type":        "array",
						"description": "Multiple input sources to draw the episode from, each ingested and analyzed independently. Each entry is an object with either a \"url\" or \"text\" key. Use this instead of input_url/input_text when combining more than one source.",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"url":  map[string]any{"type": "string"},
								"text": map[string]any{"type": "string"},
							},
						},
					},
					"prominent_persons": map[string]any{
						"type":        "array",
						"description": "Names of real, named people to research and include as speakers alongside the reserved hosts, grounded in the source material.",
						"items":       map[string]any{"type": "string"},
					},
					"model": map[string]any{
						"type":        "string",
						"description": "Script generation LLM that writes the conversation. Always use haiku unless the user specifically asks for a different model. Options: haiku (default, Claude Haiku 4.5), sonnet (Claude Sonnet 4.5), gemini-flash (Gemini 2.5 Flash), gemini-pro (Gemini 2.5 Pro)",
						"default":     "haiku",
					},
					"tts": map[string]any{
						"type":        "string",
						"description": "Text-to-speech provider that synthesizes audio: gemini (default), gemini-vertex, vertex-express, elevenlabs, google",
						"default":     "gemini",
					},
					"tone": map[string]any{
						"type":        "string",
						"description": "Conversation tone: casual, technical, educational",
						"default":     "casual",
					},
					"length": map[string]any{
						"type":        "string",
						"description": "Episode length, either a named bucket (short, standard, long, deep) or an explicit spoken-rate spec such as \"12 minutes\", \"90 seconds\", or \"10-20 minutes\" (midpoint used).",
						"default":     "standard",
					},
					"format": map[string]any{
						"type":        "string",
						"description": "Show format: conversation, interview, deep-dive, explainer, debate, news, storytelling, challenger",
						"default":     "conversation",
					},
					"voices": map[string]any{
						"type":        "integer",
						"description": "Number of hosts (1-3)",
						"default":     2,
					},
					"topic": map[string]any{
						"type":        "string",
						"description": "Focus topic to emphasize in the conversation",
					},
					"speaker_names": map[string]any{
						"type":        "string",
						"description": "Comma-separated override names for the hosts, in voice order (e.g. \"Alex,Sam\")",
					},
					"webhook_url": map[string]any{
						"type":        "string",
						"description": "URL to POST a completion/failure notification to once the episode finishes generating",
					},
					"cleanup_policy": map[string]any{
						"type":        "string",
						"description": "Retention policy applied once this task reaches a terminal state: manual (default), auto_on_complete, auto_after_hours, auto_after_days, retain_audio_only, retain_all",
					},
					"anthropic_api_key": map[string]any{
						"type":        "string",
						"description": "Your Anthropic API key (required for haiku/sonnet models if server has no default key)",
					},
					"gemini_api_key": map[string]any{
						"type":        "string",
						"description": "Your Gemini API key (required for gemini-flash/pro models or gemini TTS if server has no default key)",
					},
				},
			},
		},
		{
			Name:        "get_podcast",
			Description: "Get the status and details of a podcast generation task by ID. Use this to check on a running generation or retrieve a completed podcast. Completed podcasts include an audio_url with a direct MP3 link — always show this link to the user.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "The task ID returned from generate_podcast",
					},
				},
				Required: []string{"task_id"},
			},
		},
		{
			Name:        "list_podcasts",
			Description: "List generated podcasts, newest first. Each completed podcast includes an audio_url field with a direct link to the MP3 file that users can click to listen. Always show the audio_url link for completed podcasts.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results (default 20)",
						"default":     20,
					},
					"cursor": map[string]any{
						"type":        "string",
						"description": "Pagination cursor from a previous list_podcasts call",
					},
				},
			},
		},
		{
			Name:        "cancel_task",
			Description: "Cancel a running podcast generation task. The task's status becomes 'cancelled' once the in-flight phase observes the cancellation, typically within one external-call interval.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "The task ID to cancel",
					},
				},
				Required: []string{"task_id"},
			},
		},
		{
			Name:        "cleanup_task_files",
			Description: "Remove the stored artifacts (audio, transcript, intermediate outputs) for a completed, failed, or cancelled task, per its cleanup policy or an explicit override.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "The task ID whose files should be removed",
					},
					"policy_override": map[string]any{
						"type":        "string",
						"description": "Force a specific retention policy for this cleanup instead of the task's own cleanup_policy: manual, auto_on_complete, auto_after_hours, auto_after_days, retain_audio_only, retain_all",
					},
				},
				Required: []string{"task_id"},
			},
		},
		{
			Name:        "configure_cleanup_policy",
			Description: "View or update the server-wide default cleanup policy and retention settings applied to tasks that don't specify their own cleanup_policy.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"default_policy": map[string]any{
						"type":        "string",
						"description": "New server-wide default policy: manual, auto_on_complete, auto_after_hours, auto_after_days, retain_audio_only, retain_all. Omit to only read the current configuration.",
					},
					"auto_cleanup_hours": map[string]any{
						"type":        "integer",
						"description": "Hours after completion before auto_after_hours cleanup fires",
					},
					"auto_cleanup_days": map[string]any{
						"type":        "integer",
						"description": "Days after completion before auto_after_days cleanup fires",
					},
				},
			},
		},
		{
			Name:        "get_service_health",
			Description: "Reports service health: task runner occupancy, and the last observed health of each TTS provider that has handled a synthesis call.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{},
			},
		},
		{
			Name:        "list_voices",
			Description: "List available TTS voices for a provider. generate_podcast assigns voices itself and takes no per-voice ID parameters.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"provider": map[string]any{
						"type":        "string",
						"description": "TTS provider name: gemini, vertex-express, gemini-vertex, elevenlabs, google",
					},
				},
				Required: []string{"provider"},
			},
		},
		{
			Name:        "list_options",
			Description: "List all available options for podcast generation: show formats, conversation styles, TTS providers, script models, and durations.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{},
			},
		},
	}
}

// Handlers contains tool handler implementations, wired against the
// orchestrator and the components it shares with the control surface.
type Handlers struct {
	orc     *orchestrator.Orchestrator
	store   store.Store
	cleanup *cleanup.Manager
	log     *slog.Logger
}

// NewHandlers creates tool handlers.
func NewHandlers(orc *orchestrator.Orchestrator, st store.Store, cleanupMgr *cleanup.Manager, logger *slog.Logger) *Handlers {
	return &Handlers{orc: orc, store: st, cleanup: cleanupMgr, log: logger}
}

// durationBucketLengths maps the named duration buckets generate_podcast
// has always accepted to a representative length_str, so requests that
// don't use the explicit grammar still resolve to a concrete target.
var durationBucketLengths = map[string]string{
	"short":    "4 minutes",
	"standard": "9 minutes",
	"long":     "15 minutes",
	"deep":     "32 minutes",
}

func resolveLengthStr(length string) string {
	if length == "" {
		return "9 minutes"
	}
	if mapped, ok := durationBucketLengths[strings.ToLower(length)]; ok {
		return mapped
	}
	return length
}

// HandleGeneratePodcast submits a generation task to the orchestrator.
func (h *Handlers) HandleGeneratePodcast(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.generate_podcast")
	defer span.End()

	// Resolve user identity from either:
	// 1. HTTP auth context (direct access with Authorization header)
	// 2. Proxy-injected _user_id/_key_id in tool arguments (Lambda proxy flow)
	auth := AuthFromContext(ctx)
	userID := ""
	if auth.Authenticated {
		userID = auth.UserID
	} else if args := req.GetArguments(); args != nil {
		if uid, ok := args["_user_id"].(string); ok && uid != "" {
			userID = uid
		}
	}

	if userID == "" && os.Getenv("SECRET_PREFIX") != "" {
		if auth.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v. Provide your API key as: Authorization: Bearer <your-api-key>.", auth.Error)), nil
		}
		return mcp.NewToolResultError("Authentication required. Provide your API key as: Authorization: Bearer <your-api-key>."), nil
	}
	owner := "anonymous"
	if userID != "" {
		owner = userID
	}

	var speakerNames []string
	if raw := mcp.ParseString(req, "speaker_names", ""); raw != "" {
		for _, n := range strings.Split(raw, ",") {
			if n = strings.TrimSpace(n); n != "" {
				speakerNames = append(speakerNames, n)
			}
		}
	}

	sources := parseSourcesParam(req)
	if url := mcp.ParseString(req, "input_url", ""); url != "" {
		sources = append(sources, domain.SourceRef{URL: url})
	}
	if text := mcp.ParseString(req, "input_text", ""); text != "" {
		sources = append(sources, domain.SourceRef{Text: text})
	}

	genReq := domain.GenerateRequest{
		Sources:          sources,
		ProminentPersons: parseStringArrayParam(req, "prominent_persons"),
		Topic:            mcp.ParseString(req, "topic", ""),
		Tone:             mcp.ParseString(req, "tone", "casual"),
		LengthStr:        resolveLengthStr(mcp.ParseString(req, "length", "")),
		Voices:           parseIntParam(req, "voices", 2),
		SpeakerNames:     speakerNames,
		Format:           mcp.ParseString(req, "format", "conversation"),
		LLMModel:         mcp.ParseString(req, "model", "haiku"),
		TTSProvider:      mcp.ParseString(req, "tts", "gemini"),
		WebhookURL:       mcp.ParseString(req, "webhook_url", ""),
		CleanupPolicy:    mcp.ParseString(req, "cleanup_policy", ""),
		BYOKLLMKey:       firstNonEmpty(mcp.ParseString(req, "anthropic_api_key", ""), mcp.ParseString(req, "gemini_api_key", "")),
	}

	span.SetAttributes(
		attribute.Int("sources", len(genReq.Sources)),
		attribute.String("model", genReq.LLMModel),
		attribute.String("tts", genReq.TTSProvider),
		attribute.Int("voices", genReq.Voices),
	)

	if len(genReq.Sources) == 0 {
		span.SetStatus(codes.Error, "missing input")
		return mcp.NewToolResultError("at least one of input_url, input_text, or sources is required"), nil
	}

	taskID, err := h.orc.Submit(ctx, owner, genReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		return mcp.NewToolResultError(fmt.Sprintf("Failed to start generation: %v", err)), nil
	}

	span.SetAttributes(attribute.String("task_id", taskID))
	h.log.InfoContext(ctx, "Podcast generation started", "task_id", taskID, "owner", owner)

	return jsonResult(map[string]any{
		"task_id": taskID,
		"status":  string(domain.TaskQueued),
		"message": "Podcast generation started. Use get_podcast to check progress.",
	})
}

// parseSourcesParam reads the "sources" array param, each entry an object
// with a "url" or "text" key, into domain.SourceRef values.
func parseSourcesParam(req mcp.CallToolRequest) []domain.SourceRef {
	args := req.GetArguments()
	if args == nil {
		return nil
	}
	raw, ok := args["sources"].([]any)
	if !ok {
		return nil
	}
	refs := make([]domain.SourceRef, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ref := domain.SourceRef{}
		if url, ok := m["url"].(string); ok {
			ref.URL = url
		}
		if text, ok := m["text"].(string); ok {
			ref.Text = text
		}
		if ref.URL != "" || ref.Text != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

// parseStringArrayParam reads a JSON array-of-strings param.
func parseStringArrayParam(req mcp.CallToolRequest, key string) []string {
	args := req.GetArguments()
	if args == nil {
		return nil
	}
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func taskRecordToResult(rec *domain.TaskRecord) map[string]any {
	result := map[string]any{
		"task_id":      rec.TaskID,
		"status":       string(rec.Status),
		"progress_pct": rec.ProgressPct,
		"created_at":   rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.Error != nil {
		result["error"] = rec.Error.UserMessage
		result["error_kind"] = rec.Error.Kind
	}
	if rec.ResultEpisode != nil {
		result["title"] = rec.ResultEpisode.Title
		result["audio_url"] = rec.ResultEpisode.AudioURL
		result["duration_sec"] = rec.ResultEpisode.DurationSec
		result["segment_count"] = rec.ResultEpisode.SegmentCount
		if rec.ResultEpisode.SkippedTurns > 0 {
			result["skipped_turns"] = rec.ResultEpisode.SkippedTurns
		}
	}
	return result
}

// HandleGetPodcast returns a task's current status snapshot.
func (h *Handlers) HandleGetPodcast(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.get_podcast")
	defer span.End()

	id := mcp.ParseString(req, "task_id", "")
	if id == "" {
		span.SetStatus(codes.Error, "missing task_id")
		return mcp.NewToolResultError("task_id is required"), nil
	}
	span.SetAttributes(attribute.String("task_id", id))

	rec, err := h.store.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get task failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to get task: %v", err)), nil
	}
	if rec == nil {
		span.SetStatus(codes.Error, "not found")
		return mcp.NewToolResultError(fmt.Sprintf("task %s not found", id)), nil
	}
	return jsonResult(taskRecordToResult(rec))
}

// HandleListPodcasts returns a paginated, reverse-chronological task listing.
func (h *Handlers) HandleListPodcasts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.list_podcasts")
	defer span.End()

	limit := parseIntParam(req, "limit", 20)
	cursor := mcp.ParseString(req, "cursor", "")
	span.SetAttributes(attribute.Int("limit", limit), attribute.String("cursor", cursor))

	page, err := h.store.List(ctx, "", limit, cursor)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list tasks failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to list podcasts: %v", err)), nil
	}

	podcasts := make([]map[string]any, 0, len(page.Tasks))
	for _, rec := range page.Tasks {
		podcasts = append(podcasts, taskRecordToResult(rec))
	}

	result := map[string]any{
		"podcasts": podcasts,
		"count":    len(podcasts),
	}
	if page.NextCursor != "" {
		result["next_cursor"] = page.NextCursor
	}
	return jsonResult(result)
}

// HandleCancelTask requests cancellation of a running task.
func (h *Handlers) HandleCancelTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(req, "task_id", "")
	if id == "" {
		return mcp.NewToolResultError("task_id is required"), nil
	}
	if err := h.orc.Cancel(id); err != nil {
		return jsonResult(map[string]any{"task_id": id, "result": "not_running", "detail": err.Error()})
	}
	return jsonResult(map[string]any{"task_id": id, "result": "signalled"})
}

// HandleCleanupTaskFiles removes a task's stored artifacts per its policy.
func (h *Handlers) HandleCleanupTaskFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(req, "task_id", "")
	if id == "" {
		return mcp.NewToolResultError("task_id is required"), nil
	}
	rec, err := h.store.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get task: %v", err)), nil
	}
	if rec == nil {
		return mcp.NewToolResultError(fmt.Sprintf("task %s not found", id)), nil
	}
	override := cleanup.Policy(mcp.ParseString(req, "policy_override", ""))
	result := h.cleanup.Clean(ctx, h.orc.Artifacts, rec, override)
	return jsonResult(map[string]any{
		"task_id":       id,
		"files_removed": result.FilesRemoved,
		"errors":        result.Errors,
	})
}

// HandleConfigureCleanupPolicy reads or updates the server-wide cleanup defaults.
func (h *Handlers) HandleConfigureCleanupPolicy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	hasUpdate := false
	if args != nil {
		_, hasUpdate = args["default_policy"]
	}
	if !hasUpdate {
		cfg := h.cleanup.Config()
		return jsonResult(cfg)
	}

	cfg, err := h.cleanup.Update(func(c *cleanup.Config) {
		if p := mcp.ParseString(req, "default_policy", ""); p != "" {
			c.DefaultPolicy = cleanup.Policy(p)
		}
		if h := parseIntParam(req, "auto_cleanup_hours", -1); h >= 0 {
			c.AutoCleanupHours = h
		}
		if d := parseIntParam(req, "auto_cleanup_days", -1); d >= 0 {
			c.AutoCleanupDays = d
		}
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update cleanup policy: %v", err)), nil
	}
	return jsonResult(cfg)
}

// HandleGetServiceHealth reports task runner occupancy and TTS provider health.
func (h *Handlers) HandleGetServiceHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := h.orc.Runner.QueueStatus()
	result := map[string]any{
		"tasks_running":  status.Running,
		"tasks_capacity": status.Capacity,
		"tts_providers":  tts.HealthSnapshot(),
	}
	return jsonResult(result)
}

// HandleServerInfo returns runtime diagnostics.
func (h *Handlers) HandleServerInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	otelVars := map[string]string{}
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := parts[0]
		if strings.HasPrefix(key, "OTEL_") || strings.HasPrefix(key, "AWS_") ||
			key == "SECRET_PREFIX" || key == "S3_BUCKET" || key == "DYNAMODB_TABLE" ||
			key == "CDN_BASE_URL" || key == "PORT" {
			otelVars[key] = parts[1]
		}
	}

	otelPorts := map[string]string{
		"grpc_4317": "localhost:4317",
		"http_4318": "localhost:4318",
	}
	portStatus := map[string]string{}
	for name, addr := range otelPorts {
		conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err != nil {
			portStatus[name] = fmt.Sprintf("CLOSED (%v)", err)
		} else {
			conn.Close()
			portStatus[name] = "OPEN"
		}
	}

	return jsonResult(map[string]any{
		"go_version":    runtime.Version(),
		"arch":          runtime.GOARCH,
		"os":            runtime.GOOS,
		"num_goroutine": runtime.NumGoroutine(),
		"env_vars":      otelVars,
		"otel_ports":    portStatus,
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseIntParam(req mcp.CallToolRequest, key string, defaultVal int) int {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	raw, ok := args[key]
	if !ok {
		return defaultVal
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		return defaultVal
	default:
		return defaultVal
	}
}

// HandleListVoices returns available voices for a TTS provider.
func (h *Handlers) HandleListVoices(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	provider := mcp.ParseString(req, "provider", "")
	if provider == "" {
		return mcp.NewToolResultError("provider is required"), nil
	}

	voices, err := tts.AvailableVoices(provider)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("unknown provider %q: must be gemini, vertex-express, gemini-vertex, elevenlabs, or google", provider)), nil
	}

	voiceList := make([]map[string]any, 0, len(voices))
	for _, v := range voices {
		entry := map[string]any{
			"id":          v.ID,
			"name":        v.Name,
			"gender":      v.Gender,
			"description": v.Description,
		}
		if v.DefaultFor != "" {
			entry["default_for"] = v.DefaultFor
		}
		voiceList = append(voiceList, entry)
	}

	return jsonResult(map[string]any{
		"provider": provider,
		"voices":   voiceList,
		"count":    len(voiceList),
	})
}

// HandleListOptions returns all available generation options.
func (h *Handlers) HandleListOptions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := map[string]any{
		"formats": []map[string]any{
			{"name": "conversation", "description": "Casual back-and-forth discussion"},
			{"name": "interview", "description": "Structured Q&A with interviewer and expert(s)"},
			{"name": "deep-dive", "description": "Investigative deep dive, layered evidence"},
			{"name": "explainer", "description": "Educational explainer, progressive complexity"},
			{"name": "debate", "description": "Point-counterpoint with opposing positions"},
			{"name": "news", "description": "News briefing, single-story deep coverage"},
			{"name": "storytelling", "description": "Narrative arc with tension and resolution"},
			{"name": "challenger", "description": "Devil's advocate stress-testing ideas"},
		},
		"styles": []map[string]any{
			{"name": "humor", "description": "Witty banter, clever one-liners, running jokes"},
			{"name": "wow", "description": "Build-up to dramatic reveals, surprise reactions"},
			{"name": "serious", "description": "Measured, analytical, gravity-weighted tone"},
			{"name": "debate", "description": "Push-back, challenge assumptions, dialectical"},
			{"name": "storytelling", "description": "Narrative threads, callbacks, scene-setting"},
		},
		"tts_providers": []map[string]any{
			{"name": "gemini", "auth": "API key (GEMINI_API_KEY)", "rate_limit": "10 RPM, 100 RPD", "voices": "30 Gemini voices"},
			{"name": "vertex-express", "auth": "API key (VERTEX_AI_API_KEY)", "rate_limit": "Higher than AI Studio", "voices": "Same 30 Gemini voices"},
			{"name": "gemini-vertex", "auth": "GCP ADC/service account", "rate_limit": "30,000 RPM", "voices": "Same 30 Gemini voices"},
			{"name": "elevenlabs", "auth": "API key (ELEVENLABS_API_KEY)", "rate_limit": "Varies by plan", "voices": "10+ ElevenLabs voices"},
			{"name": "google", "auth": "GCP ADC/service account", "rate_limit": "150 RPM", "voices": "8 Chirp 3 HD voices"},
		},
		"models": []map[string]any{
			{"name": "haiku", "provider": "Anthropic", "description": "Claude Haiku 4.5 (fastest, default)"},
			{"name": "sonnet", "provider": "Anthropic", "description": "Claude Sonnet 4.5"},
			{"name": "gemini-flash", "provider": "Google", "description": "Gemini 2.5 Flash"},
			{"name": "gemini-pro", "provider": "Google", "description": "Gemini 2.5 Pro"},
		},
		"durations": []map[string]any{
			{"name": "short", "description": "~4 minutes"},
			{"name": "standard", "description": "~9 minutes"},
			{"name": "long", "description": "~15 minutes"},
			{"name": "deep", "description": "~32 minutes"},
		},
		"cleanup_policies": []map[string]any{
			{"name": "manual", "description": "No automatic cleanup; requires an explicit cleanup_task_files call"},
			{"name": "auto_on_complete", "description": "Cleanup immediately when the task reaches a terminal state"},
			{"name": "auto_after_hours", "description": "Cleanup once the configured hours have elapsed since completion"},
			{"name": "auto_after_days", "description": "Cleanup once the configured days have elapsed since completion"},
			{"name": "retain_audio_only", "description": "Remove the task's artifacts on completion; removal is per task, so the final audio is not kept"},
			{"name": "retain_all", "description": "Never cleanup automatically"},
		},
	}
	return jsonResult(result)
}
