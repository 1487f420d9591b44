// Package vectordb is the shared low-level Qdrant wrapper used by the
// semantic cache tier, the vector history backing, and the RAG engine's
// vector search. Qdrant only allows UUIDs and positive integers as point
// IDs, so callers may pass an arbitrary string id; non-UUID ids are mapped
// through a deterministic UUID and the original id is preserved in the
// payload under PayloadIDField.
package vectordb

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// PayloadIDField holds the caller-supplied id when it had to be mapped to a
// deterministic UUID for storage.
const PayloadIDField = "_original_id"

// Point is one hit returned from Search or Scroll.
type Point struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Store wraps a Qdrant client and is safe for concurrent use across
// collections.
type Store struct {
	client *qdrant.Client
}

// Open dials the Qdrant gRPC endpoint described by dsn (default port 6334).
// An API key may be supplied as the "api_key" query parameter.
func Open(dsn string) (*Store, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("vectordb: parse dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("vectordb: invalid port: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vectordb: create client: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Close() error { return s.client.Close() }

func distanceFor(metric string) qdrant.Distance {
	switch strings.ToLower(strings.TrimSpace(metric)) {
	case "l2", "euclidean", "euclid":
		return qdrant.Distance_Euclid
	case "ip", "dot":
		return qdrant.Distance_Dot
	case "manhattan":
		return qdrant.Distance_Manhattan
	default:
		return qdrant.Distance_Cosine
	}
}

// EnsureCollection creates the collection with the given dimension/metric
// if it does not already exist.
func (s *Store) EnsureCollection(ctx context.Context, collection string, dimension int, metric string) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("vectordb: check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if dimension <= 0 {
		return fmt.Errorf("vectordb: dimension must be > 0")
	}
	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: distanceFor(metric),
		}),
	})
}

// FieldType names the two index kinds used by the history collection.
type FieldType int

const (
	FieldInteger FieldType = iota
	FieldKeyword
)

// CreateFieldIndex builds a payload field index, used for the history
// collection's timestamp (Integer) and conversation_id (Keyword) filters.
func (s *Store) CreateFieldIndex(ctx context.Context, collection, field string, kind FieldType) error {
	var qt qdrant.FieldType
	switch kind {
	case FieldInteger:
		qt = qdrant.FieldType_FieldTypeInteger
	default:
		qt = qdrant.FieldType_FieldTypeKeyword
	}
	_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: collection,
		FieldName:      field,
		FieldType:      &qt,
	})
	return err
}

func pointID(id string) (qdrant.PointId, string) {
	if _, err := uuid.Parse(id); err == nil {
		return *qdrant.NewIDUUID(id), ""
	}
	mapped := uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
	return *qdrant.NewIDUUID(mapped), id
}

// Upsert writes one point. If id is not itself a UUID, a deterministic UUID
// is derived and the original id is preserved in the payload.
func (s *Store) Upsert(ctx context.Context, collection, id string, vector []float32, payload map[string]any) error {
	pid, original := pointID(id)
	merged := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		merged[k] = v
	}
	if original != "" {
		merged[PayloadIDField] = original
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: []*qdrant.PointStruct{{
			Id:      &pid,
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(merged),
		}},
	})
	return err
}

func matchFilter(filter map[string]any, excludeIDs []string) *qdrant.Filter {
	if len(filter) == 0 && len(excludeIDs) == 0 {
		return nil
	}
	f := &qdrant.Filter{}
	for k, v := range filter {
		switch val := v.(type) {
		case string:
			f.Must = append(f.Must, qdrant.NewMatch(k, val))
		case int:
			f.Must = append(f.Must, qdrant.NewMatchInt(k, int64(val)))
		case int64:
			f.Must = append(f.Must, qdrant.NewMatchInt(k, val))
		}
	}
	if len(excludeIDs) > 0 {
		ids := make([]*qdrant.PointId, 0, len(excludeIDs))
		for _, id := range excludeIDs {
			pid, _ := pointID(id)
			ids = append(ids, &pid)
		}
		f.MustNot = append(f.MustNot, qdrant.NewHasID(ids...))
	}
	return f
}

func payloadToMap(raw map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = qdrantValueToAny(v)
	}
	return out
}

// qdrantValueToAny converts one payload value to its natural Go
// representation by switching on the value's actual oneof kind, not its
// zero-ness: a zero integer, false bool, or empty string is a legitimate
// payload value and must round-trip, not collapse to "". Lists and structs
// recurse so formatDocumentsForPrompt's valueString can JSON-marshal them.
func qdrantValueToAny(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		list := make([]any, len(items))
		for i, item := range items {
			list[i] = qdrantValueToAny(item)
		}
		return list
	case *qdrant.Value_StructValue:
		fields := kind.StructValue.GetFields()
		obj := make(map[string]any, len(fields))
		for fk, fv := range fields {
			obj[fk] = qdrantValueToAny(fv)
		}
		return obj
	default:
		return nil
	}
}

func hitID(raw *qdrant.PointId, payload map[string]any) string {
	if original, ok := payload[PayloadIDField].(string); ok && original != "" {
		return original
	}
	if raw == nil {
		return ""
	}
	if uuidStr := raw.GetUuid(); uuidStr != "" {
		return uuidStr
	}
	return fmt.Sprintf("%d", raw.GetNum())
}

// Search runs a top-k similarity search. When scoreThreshold is non-nil,
// hits below the threshold are excluded server-side.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold *float32, filter map[string]any) ([]Point, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	l := uint64(limit)
	q := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &l,
		Filter:         matchFilter(filter, nil),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: scoreThreshold,
	}
	hits, err := s.client.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("vectordb: search: %w", err)
	}
	out := make([]Point, 0, len(hits))
	for _, hit := range hits {
		payload := payloadToMap(hit.Payload)
		out = append(out, Point{ID: hitID(hit.Id, payload), Score: float64(hit.Score), Payload: payload})
	}
	return out, nil
}

// SearchProjected is Search restricted to returning only the named payload
// fields (an empty list returns the full payload, matching Search), used by
// the RAG engine's vector search after field selection.
func (s *Store) SearchProjected(ctx context.Context, collection string, vector []float32, limit int, fields []string) ([]Point, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	l := uint64(limit)
	withPayload := qdrant.NewWithPayload(true)
	if len(fields) > 0 {
		withPayload = qdrant.NewWithPayloadInclude(fields...)
	}
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &l,
		WithPayload:    withPayload,
	})
	if err != nil {
		return nil, fmt.Errorf("vectordb: search projected: %w", err)
	}
	out := make([]Point, 0, len(hits))
	for _, hit := range hits {
		payload := payloadToMap(hit.Payload)
		out = append(out, Point{ID: hitID(hit.Id, payload), Score: float64(hit.Score), Payload: payload})
	}
	return out, nil
}

// SearchExcluding is Search plus an exclusion list of already-retrieved ids,
// used by the history store's semantic scroll to avoid duplicating points
// already returned by the recency scroll.
func (s *Store) SearchExcluding(ctx context.Context, collection string, vector []float32, limit int, filter map[string]any, excludeIDs []string) ([]Point, error) {
	if limit <= 0 {
		return nil, nil
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	l := uint64(limit)
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &l,
		Filter:         matchFilter(filter, excludeIDs),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectordb: search excluding: %w", err)
	}
	out := make([]Point, 0, len(hits))
	for _, hit := range hits {
		payload := payloadToMap(hit.Payload)
		out = append(out, Point{ID: hitID(hit.Id, payload), Score: float64(hit.Score), Payload: payload})
	}
	return out, nil
}

// ScrollRecent returns up to limit points matching filter, ordered by
// orderByField descending — used for the history store's recency scroll.
func (s *Store) ScrollRecent(ctx context.Context, collection, orderByField string, filter map[string]any, limit int) ([]Point, error) {
	if limit <= 0 {
		return nil, nil
	}
	l := uint32(limit)
	desc := qdrant.Direction_Desc
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         matchFilter(filter, nil),
		Limit:          &l,
		WithPayload:    qdrant.NewWithPayload(true),
		OrderBy: &qdrant.OrderBy{
			Key:       orderByField,
			Direction: &desc,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vectordb: scroll: %w", err)
	}
	out := make([]Point, 0, len(points))
	for _, p := range points {
		payload := payloadToMap(p.Payload)
		out = append(out, Point{ID: hitID(p.Id, payload), Payload: payload})
	}
	return out, nil
}

// Count returns the number of points in collection matching filter (or all
// points if filter is empty), used by the RAG engine's count shortcut.
func (s *Store) Count(ctx context.Context, collection string, filter map[string]any) (uint64, error) {
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         matchFilter(filter, nil),
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("vectordb: count: %w", err)
	}
	return n, nil
}

// SortPointsByField sorts points descending by a string-encoded date field,
// treating missing values as the sentinel "0000-00-00" — used by the RAG
// engine's recency filter over experience/education/portfolio hits.
func SortPointsByField(points []Point, field string) {
	sort.SliceStable(points, func(i, j int) bool {
		return dateOf(points[i], field) > dateOf(points[j], field)
	})
}

func dateOf(p Point, field string) string {
	if v, ok := p.Payload[field].(string); ok && v != "" {
		return v
	}
	return "0000-00-00"
}
