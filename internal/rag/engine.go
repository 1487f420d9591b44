package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xrash/smetrics"

	"agentgw/internal/llm"
	"agentgw/internal/llm/embedder"
	"agentgw/internal/logging"
	"agentgw/internal/prompts"
	"agentgw/internal/vectordb"
)

// ErrTopicUnresolved is returned when neither the primary topic-inference
// pass nor the fallback resolver could name a known index.
var ErrTopicUnresolved = errors.New("rag: could not determine the correct data category for your question after multiple attempts")

var countKeywords = []string{"count", "total", "how many", "how much"}
var recencyKeywords = []string{"latest", "recent", "newest", "current"}
var recencyTopics = map[string]bool{"experience": true, "education": true, "portfolio": true}
var fieldVerbs = map[string]bool{"list": true, "show": true, "give": true, "tell": true, "what": true, "find": true}
var elidedFields = map[string]bool{"vector": true, "pdf": true, "describe_pdf_data": true, "portfolio_detail_pdf_data": true}

// Engine answers a user question via topic inference, optional field
// selection, vector similarity search, and answer synthesis.
type Engine struct {
	Store          *vectordb.Store
	Chat           llm.Provider
	Embedder       embedder.Embedder
	Prompts        *prompts.Store
	DefaultLimit   int
	UseLLMFieldSel bool

	// SchemaPath, when non-empty, is stat'd on ReloadSchemasIfChanged the
	// same way prompts.Store watches its local file: a newer mtime than the
	// last load triggers a re-read and atomic swap.
	SchemaPath string

	schemaMu   sync.RWMutex
	schemas    []IndexSchema
	lastSchema time.Time
}

// NewEngine constructs an Engine with its initial schema set already loaded.
func NewEngine(schemas []IndexSchema, schemaPath string) *Engine {
	return &Engine{schemas: schemas, SchemaPath: schemaPath, lastSchema: time.Now()}
}

// Schemas returns the currently active schema set.
func (e *Engine) Schemas() []IndexSchema {
	e.schemaMu.RLock()
	defer e.schemaMu.RUnlock()
	return e.schemas
}

// ReloadSchemasIfChanged stats SchemaPath; if its mtime is newer than the
// last load, the file is re-read and swapped in atomically. Mirrors
// prompts.Store.ReloadIfLocalChanged so the Agent can call both opportunistically
// per turn. A no-op (false, nil) when SchemaPath is empty.
func (e *Engine) ReloadSchemasIfChanged() (bool, error) {
	if e.SchemaPath == "" {
		return false, nil
	}
	info, err := os.Stat(e.SchemaPath)
	if err != nil {
		return false, fmt.Errorf("rag: stat %s: %w", e.SchemaPath, err)
	}
	e.schemaMu.RLock()
	last := e.lastSchema
	e.schemaMu.RUnlock()
	if !info.ModTime().After(last) {
		return false, nil
	}
	fresh, err := LoadSchemas(e.SchemaPath)
	if err != nil {
		return false, err
	}
	e.schemaMu.Lock()
	e.schemas = fresh
	e.lastSchema = time.Now()
	e.schemaMu.Unlock()
	return true, nil
}

// QueryAndAnswer runs the full 7-step pipeline for userQuestion against
// query (the vector leg's search text; usually identical to userQuestion).
func (e *Engine) QueryAndAnswer(ctx context.Context, query, userQuestion string, limit int) (string, error) {
	prompt, shortcut, err := e.prepare(ctx, query, userQuestion, limit)
	if err != nil {
		return "", err
	}
	if shortcut != "" {
		return shortcut, nil
	}
	answer, err := e.Chat.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("rag: final completion failed: %w", err)
	}
	return answer, nil
}

// QueryAndAnswerStream is QueryAndAnswer with the final synthesis step
// streamed; the count shortcut (no LLM call) is delivered as a single
// synthetic fragment.
func (e *Engine) QueryAndAnswerStream(ctx context.Context, query, userQuestion string, limit int) (<-chan llm.Fragment, error) {
	prompt, shortcut, err := e.prepare(ctx, query, userQuestion, limit)
	if err != nil {
		return nil, err
	}
	if shortcut != "" {
		ch := make(chan llm.Fragment, 1)
		ch <- llm.Fragment{Content: shortcut}
		close(ch)
		return ch, nil
	}
	return e.Chat.StreamCompletion(ctx, prompt)
}

// prepare runs steps 1-6 and renders the final-answer prompt. When the
// count shortcut applies, shortcut holds the final answer and prompt is
// empty.
func (e *Engine) prepare(ctx context.Context, query, userQuestion string, limit int) (prompt string, shortcut string, err error) {
	log := logging.Component("rag")
	snap := e.Prompts.Snapshot()

	topic, err := e.resolveTopic(ctx, snap, userQuestion)
	if err != nil {
		return "", "", err
	}

	lowerQ := strings.ToLower(userQuestion)
	if topic != "" && containsAny(lowerQ, countKeywords) {
		count, err := e.Store.Count(ctx, topic, nil)
		if err != nil {
			return "", "", fmt.Errorf("rag: count failed: %w", err)
		}
		return "", strconv.FormatUint(count, 10), nil
	}

	embedding, err := e.Embedder.Embed(ctx, query)
	if err != nil {
		return "", "", fmt.Errorf("rag: embedding failed: %w", err)
	}

	schema := FindSchema(e.Schemas(), topic)
	var availableFields []string
	if schema != nil {
		availableFields = schema.Fields
	}

	selectedFields := availableFields
	if e.UseLLMFieldSel {
		if resolved, ok := resolveDynamicFields(userQuestion, availableFields); ok {
			selectedFields = resolved
		} else {
			log.Debug().Msg("rag_field_resolution_fallback_all_fields")
		}
	}

	if limit <= 0 {
		limit = e.DefaultLimit
	}
	hits, err := e.hybridSearch(ctx, topic, embedding, limit, selectedFields)
	if err != nil {
		return "", "", err
	}

	if recencyTopics[topic] && containsAny(lowerQ, recencyKeywords) {
		vectordb.SortPointsByField(hits, "end_date")
		if len(hits) > 1 {
			hits = hits[:1]
		}
	}

	docsText := formatDocumentsForPrompt(hits)
	retrievedTopic := topic
	if len(hits) == 0 {
		retrievedTopic = "none"
	}

	schemaJSON, err := marshalSchemasPretty(e.Schemas())
	if err != nil {
		return "", "", fmt.Errorf("rag: schema json for answer: %w", err)
	}
	finalTemplate, err := snap.ResponseTemplate("rag_final_answer")
	if err != nil {
		return "", "", err
	}
	prompt = render(finalTemplate, map[string]string{
		"schema":        schemaJSON,
		"topic":         retrievedTopic,
		"documents":     docsText,
		"user_question": userQuestion,
	})
	return prompt, "", nil
}

// resolveTopic runs topic inference, retrying once via the fallback
// resolver when the primary pass fails to name a known schema.
func (e *Engine) resolveTopic(ctx context.Context, snap *prompts.PromptConfig, userQuestion string) (string, error) {
	schemaJSON, err := marshalSchemas(e.Schemas())
	if err != nil {
		return "", fmt.Errorf("rag: schema json for inference: %w", err)
	}
	topicTemplate, err := snap.QueryTemplate("rag_topic_inference")
	if err != nil {
		return "", err
	}
	topicPrompt := render(topicTemplate, map[string]string{
		"schema_json":   schemaJSON,
		"user_question": userQuestion,
	})
	topicResp, err := e.Chat.Complete(ctx, topicPrompt)
	if err != nil {
		return "", fmt.Errorf("rag: topic inference failed: %w", err)
	}
	topic := normalizeTopic(topicResp)
	if e.isKnownTopic(topic) {
		return topic, nil
	}

	var summary strings.Builder
	for i, s := range e.Schemas() {
		if i > 0 {
			summary.WriteString("\n")
		}
		summary.WriteString(fmt.Sprintf("- %s: fields=%s", s.Name, strings.Join(s.Fields, ", ")))
	}
	fallbackTemplate, err := snap.QueryTemplate("fallback_topic_resolver")
	if err != nil {
		return "", err
	}
	fallbackPrompt := render(fallbackTemplate, map[string]string{
		"schema_summary": summary.String(),
		"user_question":  userQuestion,
	})
	fallbackResp, err := e.Chat.Complete(ctx, fallbackPrompt)
	if err != nil {
		return "", fmt.Errorf("rag: fallback topic resolution failed: %w", err)
	}
	fallbackTopic := normalizeTopic(fallbackResp)
	if !e.isKnownTopic(fallbackTopic) {
		return "", ErrTopicUnresolved
	}
	return fallbackTopic, nil
}

func (e *Engine) isKnownTopic(topic string) bool {
	if topic == "" || topic == "none" {
		return false
	}
	return FindSchema(e.Schemas(), topic) != nil
}

func normalizeTopic(raw string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(raw), `"`))
}

// hybridSearch runs a dense-vector similarity search over the topic's
// collection, projected to fields. Only the query embedding is used; no
// lexical match on the query text is applied.
func (e *Engine) hybridSearch(ctx context.Context, topic string, embedding []float32, limit int, fields []string) ([]vectordb.Point, error) {
	return e.Store.SearchProjected(ctx, topic, embedding, limit, fields)
}

// resolveDynamicFields applies the field-selection heuristic: strip
// trailing punctuation, truncate at " from ", drop a leading verb, take the
// last word as the search term, then match exactly or via Jaro-Winkler
// (threshold 0.85) against available fields.
func resolveDynamicFields(userQuestion string, availableFields []string) ([]string, bool) {
	q := strings.ToLower(strings.TrimRightFunc(userQuestion, isPunct))
	if idx := strings.Index(q, " from "); idx >= 0 {
		q = q[:idx]
	}
	words := strings.Fields(q)
	if len(words) > 0 && fieldVerbs[words[0]] {
		words = words[1:]
	}
	if len(words) == 0 {
		return nil, false
	}
	term := words[len(words)-1]
	normTerm := stripSeparators(term)

	for _, f := range availableFields {
		if stripSeparators(strings.ToLower(f)) == normTerm {
			return []string{f}, true
		}
	}

	var best string
	var bestScore float64
	for _, f := range availableFields {
		candidate := stripSeparators(strings.ToLower(f))
		score := smetrics.JaroWinkler(normTerm, candidate, 0.7, 4)
		if score > bestScore {
			bestScore = score
			best = f
		}
	}
	if bestScore >= 0.85 {
		return []string{best}, true
	}
	return nil, false
}

func isPunct(r rune) bool {
	return strings.ContainsRune(".,!?;:", r)
}

func stripSeparators(s string) string {
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// formatDocumentsForPrompt emits "Document ID: <id> (Score: <4dp>)" followed
// by one "  - key: value" line per non-elided field.
func formatDocumentsForPrompt(hits []vectordb.Point) string {
	if len(hits) == 0 {
		return "No relevant documents found."
	}
	var b strings.Builder
	for _, hit := range hits {
		fmt.Fprintf(&b, "Document ID: %s (Score: %.4f)\n", hit.ID, hit.Score)
		if len(hit.Payload) == 0 {
			b.WriteString("  - (No fields retrieved for this document)\n")
		} else {
			keys := make([]string, 0, len(hit.Payload))
			for k := range hit.Payload {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if elidedFields[k] {
					continue
				}
				b.WriteString("  - ")
				b.WriteString(k)
				b.WriteString(": ")
				b.WriteString(valueString(hit.Payload[k]))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func valueString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// render substitutes "{key}" placeholders in template with vars.
func render(template string, vars map[string]string) string {
	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
