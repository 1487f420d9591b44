// Package agent owns the per-turn request pipeline: cache lookup, intent
// classification, RAG-or-direct dispatch, cache population, history append.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agentgw/internal/cache"
	"agentgw/internal/history"
	"agentgw/internal/llm"
	"agentgw/internal/llm/embedder"
	"agentgw/internal/logging"
	"agentgw/internal/prompts"
	"agentgw/internal/rag"
	"agentgw/internal/thinkdemux"
)

// ErrIntentNotFound is returned when the classified intent has no entry in
// the active PromptConfig's intent table.
var ErrIntentNotFound = errors.New("agent: intent not found")

// ErrAction is returned when an intent's action names an unknown dispatch
// target. Unknown actions are fatal for the turn, never a fallback.
var ErrAction = errors.New("agent: unknown action")

// Agent orchestrates the prompt store, cache, RAG engine, and chat backend
// per conversation turn.
type Agent struct {
	Prompts      *prompts.Store
	Cache        *cache.Cache
	History      history.Store
	Chat         llm.Provider
	Embedder     embedder.Embedder
	RAG          *rag.Engine
	RecentLength int
}

// ProcessMessage runs the non-streaming pipeline and returns the final
// user-visible reply.
func (a *Agent) ProcessMessage(ctx context.Context, conversationID, message string) (string, error) {
	log := logging.Component("agent")
	normalized := normalize(message)

	if _, err := a.Prompts.ReloadIfLocalChanged(); err != nil {
		log.Warn().Err(err).Msg("prompt_reload_failed")
	}
	if a.RAG != nil {
		if _, err := a.RAG.ReloadSchemasIfChanged(); err != nil {
			log.Warn().Err(err).Msg("schema_reload_failed")
		}
	}

	hit, ok := a.Cache.Check(ctx, normalized, a.Embedder.Embed)
	if ok {
		a.appendTurn(ctx, conversationID, message, hit.Response)
		return hit.Response, nil
	}

	snap := a.Prompts.Snapshot()
	raw, err := a.dispatch(ctx, snap, conversationID, message)
	if err != nil {
		return "", err
	}
	reply, _ := thinkdemux.SplitFinal(raw)

	if reply != "" {
		embedding := hit.Embedding
		if len(embedding) == 0 {
			embedding, err = a.Embedder.Embed(ctx, normalized)
		}
		if err != nil {
			log.Warn().Err(err).Msg("post_turn_embed_failed")
		} else {
			a.Cache.Update(ctx, normalized, reply, embedding)
		}
	}
	a.appendTurn(ctx, conversationID, message, reply)
	return reply, nil
}

// StreamFragment is one chunk of a streaming turn, plus the final assembled
// reply delivered once the stream completes (Done==true).
type StreamFragment struct {
	Content string
	Err     error
	Done    bool
	Final   string
	// Replay marks a fragment that is already the complete, cleaned
	// user-visible text of a cache hit, delivered as a single chunk rather
	// than raw model output that still needs <think> demultiplexing.
	Replay bool
}

// ProcessMessageStream runs the streaming pipeline. On a cache hit the
// cached response is delivered as a single fragment. Otherwise the selected
// downstream call is streamed and fragments are forwarded verbatim; the
// transport is responsible for <think> demultiplexing. Cache write and
// history append happen only after the stream ends, using the concatenated
// response.
func (a *Agent) ProcessMessageStream(ctx context.Context, conversationID, message string) (<-chan StreamFragment, error) {
	log := logging.Component("agent")
	normalized := normalize(message)

	if _, err := a.Prompts.ReloadIfLocalChanged(); err != nil {
		log.Warn().Err(err).Msg("prompt_reload_failed")
	}
	if a.RAG != nil {
		if _, err := a.RAG.ReloadSchemasIfChanged(); err != nil {
			log.Warn().Err(err).Msg("schema_reload_failed")
		}
	}

	out := make(chan StreamFragment, 4)

	hit, ok := a.Cache.Check(ctx, normalized, a.Embedder.Embed)
	if ok {
		go func() {
			defer close(out)
			out <- StreamFragment{Content: hit.Response, Replay: true}
			a.appendTurn(ctx, conversationID, message, hit.Response)
			out <- StreamFragment{Done: true, Final: hit.Response}
		}()
		return out, nil
	}

	snap := a.Prompts.Snapshot()
	action, err := a.classifyIntent(ctx, snap, message)
	if err != nil {
		return nil, err
	}

	var upstream <-chan llm.Fragment
	switch action {
	case "call_rag_tool":
		upstream, err = a.RAG.QueryAndAnswerStream(ctx, message, message, 0)
	case "general_llm_call":
		upstream, err = a.Chat.StreamCompletion(ctx, a.historyBlock(ctx, conversationID)+"\n\nUser: "+message)
	default:
		err = fmt.Errorf("%w: %q", ErrAction, action)
	}
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(out)
		var full strings.Builder
		for frag := range upstream {
			if frag.Err != nil {
				out <- StreamFragment{Err: frag.Err}
				return
			}
			full.WriteString(frag.Content)
			out <- StreamFragment{Content: frag.Content}
		}
		reply, _ := thinkdemux.SplitFinal(full.String())
		if reply != "" {
			embedding := hit.Embedding
			var embedErr error
			if len(embedding) == 0 {
				embedding, embedErr = a.Embedder.Embed(ctx, normalized)
			}
			if embedErr != nil {
				log.Warn().Err(embedErr).Msg("post_turn_embed_failed")
			} else {
				a.Cache.Update(ctx, normalized, reply, embedding)
			}
		}
		a.appendTurn(ctx, conversationID, message, reply)
		out <- StreamFragment{Done: true, Final: reply}
	}()
	return out, nil
}

// classifyIntent renders the intent_classification template, completes it,
// and resolves the action bound to the resulting intent name.
func (a *Agent) classifyIntent(ctx context.Context, snap *prompts.PromptConfig, message string) (string, error) {
	template, err := snap.QueryTemplate("intent_classification")
	if err != nil {
		return "", err
	}
	prompt := strings.NewReplacer(
		"{intent_descriptions}", snap.IntentDescriptions(),
		"{message}", message,
	).Replace(template)

	raw, err := a.Chat.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("agent: intent classification failed: %w", err)
	}
	intentName := strings.TrimSpace(raw)

	def, ok := snap.Intents[intentName]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrIntentNotFound, intentName)
	}
	return def.Action, nil
}

func (a *Agent) dispatch(ctx context.Context, snap *prompts.PromptConfig, conversationID, message string) (string, error) {
	action, err := a.classifyIntent(ctx, snap, message)
	if err != nil {
		return "", err
	}
	switch action {
	case "call_rag_tool":
		return a.RAG.QueryAndAnswer(ctx, message, message, 0)
	case "general_llm_call":
		return a.Chat.Complete(ctx, a.historyBlock(ctx, conversationID)+"\n\nUser: "+message)
	default:
		return "", fmt.Errorf("%w: %q", ErrAction, action)
	}
}

func (a *Agent) historyBlock(ctx context.Context, conversationID string) string {
	log := logging.Component("agent")
	n := a.RecentLength
	if n <= 0 {
		n = 6
	}
	conv, err := a.History.GetConversation(ctx, conversationID, n)
	if err != nil {
		log.Warn().Err(err).Msg("history_fetch_failed")
		return ""
	}
	return history.FormatHistoryForPrompt(conv)
}

func (a *Agent) appendTurn(ctx context.Context, conversationID, userMessage, assistantReply string) {
	log := logging.Component("agent")
	now := time.Now().Unix()
	if err := a.History.Append(ctx, history.Message{ConversationID: conversationID, Role: "user", Content: userMessage, Timestamp: now}); err != nil {
		log.Warn().Err(err).Msg("history_append_user_failed")
	}
	if err := a.History.Append(ctx, history.Message{ConversationID: conversationID, Role: "assistant", Content: assistantReply, Timestamp: now}); err != nil {
		log.Warn().Err(err).Msg("history_append_assistant_failed")
	}
}

func normalize(message string) string {
	return strings.ToLower(strings.TrimSpace(message))
}
