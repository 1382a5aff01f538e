// Package workflow implements the Workflow State Machine (§4.7): the
// draft -> script_generated/script_uploaded -> audio_generated -> finalized
// job lifecycle, its stage preconditions, and TTS-text normalization. New
// code — the teacher has no multi-stage job concept — written in the
// teacher's idiom: narrow constructor-injected dependencies, typed apperr
// boundaries, context-scoped calls.
package workflow

import (
	"context"
	"regexp"
	"strings"

	"github.com/archivecast/podgen/internal/apperr"
	"github.com/archivecast/podgen/internal/domain"
	"github.com/archivecast/podgen/internal/infrastructure/feed"
	"github.com/archivecast/podgen/internal/infrastructure/llm"
	"github.com/archivecast/podgen/internal/ports"
)

// MaxScriptLength bounds an uploaded script (§4.7: "non-empty and <= 50,000
// characters").
const MaxScriptLength = 50000

// TTSMaxTextLength bounds the TTS-normalized text sent to the worker.
const TTSMaxTextLength = 5000

// Engine drives workflow stage transitions.
type Engine struct {
	store        ports.CatalogStore
	orchestrator *llm.Orchestrator
	tts          ports.TTSWorker
	feedWriter   ports.FeedWriter
	bundleRoot   string
}

// New wires a workflow engine. bundleRoot is the on-disk root under which
// rss/ and bundles/ are written (§6.3).
func New(store ports.CatalogStore, orchestrator *llm.Orchestrator, ttsWorker ports.TTSWorker, feedWriter ports.FeedWriter, bundleRoot string) *Engine {
	return &Engine{store: store, orchestrator: orchestrator, tts: ttsWorker, feedWriter: feedWriter, bundleRoot: bundleRoot}
}

// CreateWorkflow starts a new job in the draft stage over the given speech
// IDs. speechIDs must be non-empty (§6.1: "400 on empty speechIds").
func (e *Engine) CreateWorkflow(ctx context.Context, name string, speechIDs []string) (domain.Workflow, error) {
	if len(speechIDs) == 0 {
		return domain.Workflow{}, apperr.Input("a workflow requires at least one speech id")
	}
	return e.store.CreateWorkflow(ctx, name, speechIDs)
}

// GetWorkflow resolves a workflow along with its referenced speeches.
func (e *Engine) GetWorkflow(ctx context.Context, id string) (domain.WorkflowWithSpeeches, error) {
	wf, err := e.store.GetWorkflow(ctx, id)
	if err != nil {
		return domain.WorkflowWithSpeeches{}, err
	}
	speeches, err := e.store.ResolveSpeeches(ctx, wf.SpeechIDs)
	if err != nil {
		return domain.WorkflowWithSpeeches{}, err
	}
	return domain.WorkflowWithSpeeches{Workflow: wf, Speeches: speeches}, nil
}

// ScriptGenerationParams is the caller-supplied input to GenerateScript.
type ScriptGenerationParams struct {
	Model        string
	Style        string
	Duration     int
	BatchSize    int
	UseSwarm     bool
	ClientAPIKey string
	UsePool      bool
	EnvAPIKey    string
}

// ScriptGenerationOutcome reports what the caller needs to shape a response.
type ScriptGenerationOutcome struct {
	Script         string
	BatchProcessed bool
}

// GenerateScript requires the workflow to exist with at least one
// resolvable speech, selects an LLM strategy, and on success writes script
// and advances the workflow to script_generated (§4.7). A context
// cancellation leaves the workflow unchanged (no partial script write).
func (e *Engine) GenerateScript(ctx context.Context, workflowID string, params ScriptGenerationParams) (ScriptGenerationOutcome, error) {
	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return ScriptGenerationOutcome{}, err
	}

	speeches, err := e.store.ResolveSpeeches(ctx, wf.SpeechIDs)
	if err != nil {
		return ScriptGenerationOutcome{}, err
	}
	if len(speeches) == 0 {
		return ScriptGenerationOutcome{}, apperr.Input("workflow %s has no resolvable speeches", workflowID)
	}

	result, err := e.orchestrator.GenerateScript(ctx, llm.GenerateRequest{
		Speeches:        speeches,
		Model:           params.Model,
		Style:           params.Style,
		DurationMinutes: params.Duration,
		BatchSize:       params.BatchSize,
		UseSwarm:        params.UseSwarm,
		ClientAPIKey:    params.ClientAPIKey,
		UsePool:         params.UsePool,
		EnvAPIKey:       params.EnvAPIKey,
	})
	if err != nil {
		return ScriptGenerationOutcome{}, err
	}
	if ctx.Err() != nil {
		return ScriptGenerationOutcome{}, ctx.Err()
	}

	status := domain.WorkflowScriptGenerated
	script := result.Script
	if _, err := e.store.UpdateWorkflow(ctx, workflowID, domain.WorkflowUpdate{Script: &script, Status: &status}); err != nil {
		return ScriptGenerationOutcome{}, err
	}
	return ScriptGenerationOutcome{Script: result.Script, BatchProcessed: result.BatchProcessed}, nil
}

// UploadScript requires non-empty text within MaxScriptLength, overwrites
// script, and advances to script_uploaded (§4.7).
func (e *Engine) UploadScript(ctx context.Context, workflowID, scriptText string) error {
	if strings.TrimSpace(scriptText) == "" {
		return apperr.Input("script text must not be empty")
	}
	if len(scriptText) > MaxScriptLength {
		return apperr.Input("script text exceeds %d characters", MaxScriptLength)
	}
	if _, err := e.store.GetWorkflow(ctx, workflowID); err != nil {
		return err
	}

	status := domain.WorkflowScriptUploaded
	_, err := e.store.UpdateWorkflow(ctx, workflowID, domain.WorkflowUpdate{Script: &scriptText, Status: &status})
	return err
}

// AudioGenerationParams is the caller-supplied input to GenerateAudio.
type AudioGenerationParams struct {
	Voice           string
	Preset          string
	OutputDir       string
	CustomVoicePath string
}

// AudioGenerationOutcome reports the TTS result and whether it was a
// fallback placeholder.
type AudioGenerationOutcome struct {
	AudioURL   string
	TTSResult  ports.TTSResult
	FellBack   bool
}

// GenerateAudio requires a non-null script, normalizes it for TTS, and
// invokes the TTS worker. On success the engine records audio_url and
// advances to audio_generated. On worker failure the engine records a
// fallback audio path and STILL advances status — a deliberate design
// choice so a user can still reach finalized with a placeholder (§4.7).
func (e *Engine) GenerateAudio(ctx context.Context, workflowID string, params AudioGenerationParams) (AudioGenerationOutcome, error) {
	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return AudioGenerationOutcome{}, err
	}
	if wf.Script == nil {
		return AudioGenerationOutcome{}, apperr.Input("workflow %s has no script yet", workflowID)
	}

	normalized := NormalizeForTTS(*wf.Script)
	outputFile := workflowID + ".wav"

	ttsResult, ttsErr := e.tts.Synthesize(ctx, ports.TTSRequest{
		Text:            normalized,
		Voice:           params.Voice,
		Preset:          params.Preset,
		OutputFile:      outputFile,
		OutputDir:       params.OutputDir,
		CustomVoicePath: params.CustomVoicePath,
	})

	var audioURL string
	fellBack := false
	if ttsErr != nil || !ttsResult.Success {
		fellBack = true
		audioURL = fallbackAudioPath(params.OutputDir, outputFile)
		ttsResult.Success = false
	} else {
		audioURL = ttsResult.OutputFile
		if audioURL == "" {
			audioURL = fallbackAudioPath(params.OutputDir, outputFile)
		}
	}

	status := domain.WorkflowAudioGenerated
	if _, err := e.store.UpdateWorkflow(ctx, workflowID, domain.WorkflowUpdate{AudioURL: &audioURL, Status: &status}); err != nil {
		return AudioGenerationOutcome{}, err
	}

	return AudioGenerationOutcome{AudioURL: audioURL, TTSResult: ttsResult, FellBack: fellBack}, nil
}

func fallbackAudioPath(outputDir, outputFile string) string {
	if outputDir == "" {
		return outputFile
	}
	return outputDir + "/" + outputFile
}

// FinalizeParams is the caller-supplied input to Finalize.
type FinalizeParams struct {
	Title        string
	Description  string
	LocalBundle  bool
}

// FinalizeOutcome reports where the finalized output landed.
type FinalizeOutcome struct {
	RSSURL     string
	BundlePath string
}

// Finalize requires both script and audio_url. If LocalBundle, it produces
// a self-contained bundle directory; otherwise a standalone RSS file.
// Advances to finalized (§4.7).
func (e *Engine) Finalize(ctx context.Context, workflowID string, params FinalizeParams) (FinalizeOutcome, error) {
	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return FinalizeOutcome{}, err
	}
	if wf.Script == nil || wf.AudioURL == nil {
		return FinalizeOutcome{}, apperr.Input("workflow %s requires both a script and audio before finalizing", workflowID)
	}

	title := params.Title
	if title == "" {
		title = wf.Name
	}

	rss, err := e.feedWriter.RenderRSS(ports.FeedItem{
		Title:       title,
		Description: params.Description,
		AudioPath:   *wf.AudioURL,
		GUIDSeed:    workflowID,
		Local:       params.LocalBundle,
	}, params.LocalBundle)
	if err != nil {
		return FinalizeOutcome{}, apperr.Upstream(err, "render rss feed")
	}

	var outcome FinalizeOutcome
	if params.LocalBundle {
		result, err := feed.WriteBundle(e.bundleRoot, workflowID, title, params.Description, rss, *wf.AudioURL)
		if err != nil {
			return FinalizeOutcome{}, apperr.Store(err, apperr.StoreIO, "write bundle")
		}
		outcome.BundlePath = result.BundlePath
	} else {
		result, err := feed.WriteStandaloneRSS(e.bundleRoot, workflowID, rss)
		if err != nil {
			return FinalizeOutcome{}, apperr.Store(err, apperr.StoreIO, "write standalone rss")
		}
		outcome.RSSURL = result.RSSPath
	}

	status := domain.WorkflowFinalized
	update := domain.WorkflowUpdate{Status: &status}
	if outcome.RSSURL != "" {
		update.RSSURL = &outcome.RSSURL
	}
	if _, err := e.store.UpdateWorkflow(ctx, workflowID, update); err != nil {
		return FinalizeOutcome{}, err
	}
	return outcome, nil
}

var (
	timestampPattern = regexp.MustCompile(`\[\d{1,2}:\d{2}\]`)
	speakerCuePattern = regexp.MustCompile(`\b(HOST|NARRATOR|SPEAKER):\s*`)
	stageDirectionPattern = regexp.MustCompile(`\[[^\]]*\]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeForTTS strips timestamp markers, speaker cues, and stage
// directions, collapses whitespace, and truncates to TTSMaxTextLength
// (§4.7).
func NormalizeForTTS(script string) string {
	s := timestampPattern.ReplaceAllString(script, "")
	s = speakerCuePattern.ReplaceAllString(s, "")
	s = stageDirectionPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if len(s) > TTSMaxTextLength {
		s = s[:TTSMaxTextLength]
	}
	return s
}
