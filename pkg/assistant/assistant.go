// Package assistant is the request pipeline: session resolution, intent
// processing, the deep-thinking chain, follow-up suggestions, and history
// persistence. The API layer calls into this package only.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/deepthink-ai/deepthink/pkg/bus"
	"github.com/deepthink-ai/deepthink/pkg/intent"
	"github.com/deepthink-ai/deepthink/pkg/llm"
	"github.com/deepthink-ai/deepthink/pkg/memory"
	"github.com/deepthink-ai/deepthink/pkg/models"
	"github.com/deepthink-ai/deepthink/pkg/narrative"
	"github.com/deepthink-ai/deepthink/pkg/orchestrator"
	"github.com/deepthink-ai/deepthink/pkg/ports"
	"github.com/deepthink-ai/deepthink/pkg/session"
	"github.com/deepthink-ai/deepthink/pkg/store"
)

const recentContextTurns = 5

// Request is one user turn.
type Request struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	ThreadID  string `json:"thread_id,omitempty"`
	Message   string `json:"message"`
}

// Response is the assistant's answer to one turn.
type Response struct {
	SessionID  string        `json:"session_id"`
	ThreadID   string        `json:"thread_id,omitempty"`
	Intent     models.Intent `json:"intent"`
	Reply      string        `json:"reply"`
	Suggestion string        `json:"suggestion,omitempty"`
	HistoryID  int64         `json:"history_id,omitempty"`
}

// pendingSuggestion is a one-turn offer: the step to execute and the input
// context to execute it against.
type pendingSuggestion struct {
	step  string
	input models.ProcessedInput
}

// Assistant wires the pipeline.
type Assistant struct {
	intent    *intent.Processor
	orch      *orchestrator.Orchestrator
	advisor   *narrative.Advisor
	memory    *memory.Service
	sessions  *session.Manager
	histories store.HistoryStore
	documents store.DocumentStore
	dataLoop  ports.DataLoop
	bus       *bus.Bus
	llm       llm.Invoker

	// pending follow-up suggestions, keyed by session. Process-local: a
	// suggestion only survives until the session's next turn anyway.
	mu          sync.Mutex
	suggestions map[string]pendingSuggestion
}

// Deps bundles the assistant's collaborators.
type Deps struct {
	Intent    *intent.Processor
	Orch      *orchestrator.Orchestrator
	Advisor   *narrative.Advisor
	Memory    *memory.Service
	Sessions  *session.Manager
	Histories store.HistoryStore
	Documents store.DocumentStore
	DataLoop  ports.DataLoop
	Bus       *bus.Bus
	LLM       llm.Invoker
}

// New builds the assistant.
func New(deps Deps) *Assistant {
	return &Assistant{
		intent:      deps.Intent,
		orch:        deps.Orch,
		advisor:     deps.Advisor,
		memory:      deps.Memory,
		sessions:    deps.Sessions,
		histories:   deps.Histories,
		documents:   deps.Documents,
		dataLoop:    deps.DataLoop,
		bus:         deps.Bus,
		llm:         deps.LLM,
		suggestions: make(map[string]pendingSuggestion),
	}
}

// Handle processes one user turn end to end.
func (a *Assistant) Handle(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("user_id required")
	}

	rec, err := a.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}
	sessionID := rec.SessionID

	a.bus.Publish(models.NewPluginEvent(models.EventUserQuery, "assistant", map[string]any{
		"user_id": req.UserID, "session_id": sessionID, "query": req.Message,
	}))

	// 上一轮的建议只对紧随其后的这一轮有效
	pending, hadPending := a.takeSuggestion(sessionID)
	if hadPending && narrative.IsAffirmative(req.Message) {
		return a.executeSuggestion(ctx, rec, pending)
	}

	input := a.intent.Process(ctx, req.Message, sessionID, req.UserID, a.recentContext(ctx, req.UserID, sessionID))
	a.bus.Publish(models.NewPluginEvent(models.EventIntentRecognized, "assistant", map[string]any{
		"user_id": req.UserID, "session_id": sessionID, "intent": string(input.Intent),
	}))

	a.persistSelfIntro(ctx, input)

	switch input.Intent {
	case models.IntentCommand:
		return a.handleCommand(ctx, rec, input)
	case models.IntentCasualChat:
		reply := a.casualReply(ctx, input)
		return &Response{
			SessionID: sessionID,
			ThreadID:  rec.ThreadID,
			Intent:    input.Intent,
			Reply:     reply,
			HistoryID: a.appendHistory(ctx, input, reply),
		}, nil
	}

	return a.runChain(ctx, rec, input, true)
}

// runChain executes the full deep-thinking chain. advise controls whether a
// follow-up suggestion may be offered; an accepted suggestion's own run never
// chains another one.
func (a *Assistant) runChain(ctx context.Context, rec *models.SessionRecord, input models.ProcessedInput, advise bool) (*Response, error) {
	state, err := a.orch.Run(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("chain execution failed: %w", err)
	}

	a.bus.Publish(models.NewPluginEvent(models.EventAnalysisCompleted, "orchestrator", map[string]any{
		"user_id": input.UserID, "session_id": input.SessionID, "analysis": state.Analysis,
	}))
	a.bus.Publish(models.NewPluginEvent(models.EventReportGenerated, "orchestrator", map[string]any{
		"user_id": input.UserID, "session_id": input.SessionID, "length": len([]rune(state.Content)),
	}))

	reply := state.Content
	var suggestionText string
	if advise {
		suggestion := a.advisor.Advise(ctx, state, input)
		if suggestion.Text != "" {
			suggestionText = suggestion.Text
			reply = reply + "\n\n" + suggestion.Text
		}
		if suggestion.Step != "" {
			a.setSuggestion(input.SessionID, pendingSuggestion{step: suggestion.Step, input: input})
		}
	}

	return &Response{
		SessionID:  rec.SessionID,
		ThreadID:   rec.ThreadID,
		Intent:     input.Intent,
		Reply:      reply,
		Suggestion: suggestionText,
		HistoryID:  a.appendHistory(ctx, input, reply),
	}, nil
}

// executeSuggestion runs the offered step once against the offering turn's
// input context.
func (a *Assistant) executeSuggestion(ctx context.Context, rec *models.SessionRecord, pending pendingSuggestion) (*Response, error) {
	input := pending.input
	if pending.step == models.StepGenerate {
		input.ExplicitContentRequest = true
	}
	slog.Info("Executing accepted follow-up suggestion",
		"session_id", rec.SessionID, "step", pending.step)
	return a.runChain(ctx, rec, input, false)
}

// resolveSession loads the request's session or starts a fresh one. An
// expired session ID degrades to a new session rather than an error.
func (a *Assistant) resolveSession(ctx context.Context, req Request) (*models.SessionRecord, error) {
	if req.SessionID != "" {
		rec, err := a.sessions.Get(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
		slog.Info("Session expired or unknown, starting a new one", "session_id", req.SessionID)
	}
	return a.sessions.Start(ctx, req.UserID, req.ThreadID, nil)
}

func (a *Assistant) handleCommand(ctx context.Context, rec *models.SessionRecord, input models.ProcessedInput) (*Response, error) {
	resp := &Response{SessionID: rec.SessionID, ThreadID: rec.ThreadID, Intent: input.Intent}
	switch input.Command {
	case "new_chat":
		if err := a.sessions.End(ctx, rec.SessionID); err != nil {
			slog.Warn("Failed to end session", "session_id", rec.SessionID, "error", err)
		}
		fresh, err := a.sessions.Start(ctx, input.UserID, rec.ThreadID, nil)
		if err != nil {
			return nil, err
		}
		resp.SessionID = fresh.SessionID
		resp.ThreadID = fresh.ThreadID
		resp.Reply = "已开启新会话。"
	case "end_chat":
		if err := a.sessions.End(ctx, rec.SessionID); err != nil {
			slog.Warn("Failed to end session", "session_id", rec.SessionID, "error", err)
		}
		resp.Reply = "会话已结束，随时欢迎回来。"
	default:
		resp.Reply = fmt.Sprintf("未知命令：/%s", input.Command)
	}
	return resp, nil
}

const casualPrompt = `你是一位亲切的营销助手。用 1 到 2 句自然的中文回应用户的寒暄，不要提及任何内部流程。`

// casualReply answers small talk with one cheap model call; failures degrade
// to a canned greeting.
func (a *Assistant) casualReply(ctx context.Context, input models.ProcessedInput) string {
	var sb strings.Builder
	if summary := a.memory.GetUserSummary(ctx, input.UserID); summary != "" {
		sb.WriteString("用户背景：" + summary + "\n")
	}
	sb.WriteString("用户说：" + input.RawQuery)

	reply, err := a.llm.Invoke(ctx, []llm.Message{
		llm.System(casualPrompt),
		llm.User(sb.String()),
	}, llm.TaskChatReply, llm.ComplexityLow)
	if err != nil {
		slog.Warn("Casual reply failed, using canned greeting", "error", err)
		return "你好呀，有什么营销上的想法想聊聊吗？"
	}
	return strings.TrimSpace(reply)
}

// recentContext returns the normalized transcript lines for intent
// classification. Transcript only — documents and links never enter here.
func (a *Assistant) recentContext(ctx context.Context, userID, sessionID string) []string {
	text, err := a.memory.GetRecentConversationText(ctx, userID, sessionID, recentContextTurns)
	if err != nil || text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// persistSelfIntro stores a detected self-introduction as a brand fact.
func (a *Assistant) persistSelfIntro(ctx context.Context, input models.ProcessedInput) {
	intro := input.StructuredData.SelfIntro
	if intro == "" {
		return
	}
	err := a.memory.AddBrandFact(ctx, input.UserID, models.BrandFact{
		Fact:     intro,
		Category: "self_intro",
	})
	if err != nil {
		slog.Warn("Failed to persist self introduction", "user_id", input.UserID, "error", err)
		return
	}
	slog.Info("Self introduction stored", "user_id", input.UserID)
}

// appendHistory records the turn; persistence failures log and return 0, the
// turn itself is not failed.
func (a *Assistant) appendHistory(ctx context.Context, input models.ProcessedInput, reply string) int64 {
	serialized, err := json.Marshal(input)
	if err != nil {
		slog.Warn("Failed to serialize input for history", "error", err)
		return 0
	}
	id, err := a.histories.Append(ctx, &models.InteractionRecord{
		UserID:    input.UserID,
		SessionID: input.SessionID,
		UserInput: string(serialized),
		AIOutput:  reply,
	})
	if err != nil {
		slog.Warn("Failed to append interaction history", "error", err)
		return 0
	}
	return id
}

// UploadDocument binds a parsed document to a session and announces it on
// the bus.
func (a *Assistant) UploadDocument(ctx context.Context, sessionID, filename, parsedText string) (int64, error) {
	if strings.TrimSpace(parsedText) == "" {
		return 0, fmt.Errorf("document text required")
	}
	id, err := a.documents.Add(ctx, &models.SessionDocument{
		SessionID:        sessionID,
		OriginalFilename: filename,
		ParsedText:       parsedText,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store document: %w", err)
	}
	a.bus.Publish(models.NewPluginEvent(models.EventDocumentUploaded, "assistant", map[string]any{
		"session_id": sessionID, "filename": filename,
	}))
	return id, nil
}

// RecordFeedback rates a past turn and feeds the rating into the data loop.
func (a *Assistant) RecordFeedback(ctx context.Context, userID, sessionID string, historyID int64, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5")
	}
	if err := a.histories.Rate(ctx, historyID, rating, comment); err != nil {
		return err
	}
	if err := a.dataLoop.RecordFeedback(ctx, ports.Feedback{
		UserID:    userID,
		SessionID: sessionID,
		Rating:    rating,
		Comment:   comment,
	}); err != nil {
		slog.Warn("Failed to record feedback in data loop", "error", err)
	}
	return nil
}

func (a *Assistant) takeSuggestion(sessionID string) (pendingSuggestion, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pending, ok := a.suggestions[sessionID]
	if ok {
		delete(a.suggestions, sessionID)
	}
	return pending, ok
}

func (a *Assistant) setSuggestion(sessionID string, pending pendingSuggestion) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.suggestions[sessionID] = pending
}
