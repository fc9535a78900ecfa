package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/furkankasim16/knowledge-bot/internal/generate"
	"github.com/furkankasim16/knowledge-bot/internal/llm"
	"github.com/furkankasim16/knowledge-bot/internal/model"
	"github.com/furkankasim16/knowledge-bot/internal/store"
	"github.com/furkankasim16/knowledge-bot/internal/vector"
)

type fakeIndexer struct {
	chunks  int
	err     error
	deleted []string
	resets  int
}

func (f *fakeIndexer) IndexDocument(_ context.Context, filename string, raw []byte, topic string) (int, error) {
	return f.chunks, f.err
}

func (f *fakeIndexer) DeleteDocument(_ context.Context, docID string) error {
	f.deleted = append(f.deleted, docID)
	return f.err
}

func (f *fakeIndexer) Reset(context.Context) error {
	f.resets++
	return f.err
}

type fakeSearcher struct {
	passages []vector.Passage
	counts   map[string]int
	err      error
}

func (f *fakeSearcher) Query(_ context.Context, text string, k int, topic string) ([]vector.Passage, error) {
	return f.passages, f.err
}

func (f *fakeSearcher) TopicCounts(context.Context) (map[string]int, error) {
	return f.counts, f.err
}

type fakePipeline struct {
	outcome *generate.Outcome
	err     error
	topic   string
	level   model.Level
	qtype   model.QuestionType
}

func (f *fakePipeline) GenerateQuestion(_ context.Context, topic string, level model.Level, qtype model.QuestionType) (*generate.Outcome, error) {
	f.topic, f.level, f.qtype = topic, level, qtype
	return f.outcome, f.err
}

type fakeChatter struct {
	answer  string
	message string
	topic   string
}

func (f *fakeChatter) Answer(_ context.Context, message, topic string) string {
	f.message, f.topic = message, topic
	return f.answer
}

type testEnv struct {
	indexer  *fakeIndexer
	search   *fakeSearcher
	pipeline *fakePipeline
	chat     *fakeChatter
	store    *store.Store
	server   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	env := &testEnv{
		indexer:  &fakeIndexer{chunks: 3},
		search:   &fakeSearcher{counts: map[string]int{}},
		pipeline: &fakePipeline{},
		chat:     &fakeChatter{answer: "a short answer"},
		store:    st,
	}
	r := chi.NewRouter()
	New(env.indexer, env.search, env.pipeline, env.chat, st, nil).Routes(r)
	env.server = httptest.NewServer(r)
	t.Cleanup(env.server.Close)
	return env
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := doJSON(t, http.MethodGet, env.server.URL+"/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if string(body["status"]) != `"ok"` {
		t.Errorf("status field = %s", body["status"])
	}
}

func TestIndexDocument(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "handbook.txt")
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprint(fw, "some document text")
	if err := mw.WriteField("topic", "support_flow"); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/index", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		DocID  string `json:"doc_id"`
		Chunks int    `json:"chunks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.DocID != "handbook.txt" || body.Chunks != 3 {
		t.Errorf("body = %+v", body)
	}
}

func TestIndexDocumentMissingTopic(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "handbook.txt")
	fmt.Fprint(fw, "text")
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/index", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	env.search.passages = []vector.Passage{{Text: "found it", DocID: "doc.txt", Score: 0.9}}

	resp, body := doJSON(t, http.MethodGet, env.server.URL+"/search?q=refund", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var results []vector.Passage
	if err := json.Unmarshal(body["results"], &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Text != "found it" {
		t.Errorf("results = %+v", results)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := doJSON(t, http.MethodGet, env.server.URL+"/search", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateQuestion(t *testing.T) {
	env := newTestEnv(t)
	env.pipeline.outcome = &generate.Outcome{
		Question: &model.Question{
			Type: model.TypeMCQ, Topic: "security_policy", Level: model.LevelBeginner,
			Stem: "Which port?", Choices: []string{"A", "B"}, AnswerIndex: 1,
		},
		Result: store.SavedNew,
	}

	resp, body := doJSON(t, http.MethodPost,
		env.server.URL+"/questions/generate?topic=security_policy&level=beginner&type=mcq", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if string(body["stem"]) != `"Which port?"` {
		t.Errorf("stem = %s", body["stem"])
	}
	if env.pipeline.topic != "security_policy" || env.pipeline.level != model.LevelBeginner || env.pipeline.qtype != model.TypeMCQ {
		t.Errorf("pipeline called with %s/%s/%s", env.pipeline.topic, env.pipeline.level, env.pipeline.qtype)
	}
}

func TestGenerateQuestionRejectsUnknownType(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := doJSON(t, http.MethodPost, env.server.URL+"/questions/generate?type=essay", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateQuestionUpstreamFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"model declined", &generate.Failure{Stage: generate.StageParse,
			Err: &llm.ParseError{Reason: "declined", Declined: true}}, http.StatusBadGateway},
		{"unparseable output", &generate.Failure{Stage: generate.StageParse,
			Err: &llm.ParseError{Reason: "no JSON"}}, http.StatusBadGateway},
		{"backend down", &generate.Failure{Stage: generate.StageGenerate,
			Err: errors.New("503")}, http.StatusBadGateway},
		{"save broken", &generate.Failure{Stage: generate.StageSave,
			Err: errors.New("disk full")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.pipeline.err = tt.err
			resp, body := doJSON(t, http.MethodPost, env.server.URL+"/questions/generate", nil, nil)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if len(body["error"]) == 0 {
				t.Error("error body should have an error field")
			}
		})
	}
}

func TestGenerateRandomDrawsParameters(t *testing.T) {
	env := newTestEnv(t)
	env.pipeline.outcome = &generate.Outcome{Question: &model.Question{Stem: "x"}}

	resp, _ := doJSON(t, http.MethodPost, env.server.URL+"/questions/random", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if env.pipeline.topic == "" || env.pipeline.level == "" || env.pipeline.qtype == "" {
		t.Errorf("random draw left a blank parameter: %s/%s/%s",
			env.pipeline.topic, env.pipeline.level, env.pipeline.qtype)
	}
}

func TestStoredRandomQuestion(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := doJSON(t, http.MethodGet, env.server.URL+"/questions/random", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("empty store status = %d, want 404", resp.StatusCode)
	}

	q := &model.Question{
		Type: model.TypeTrueFalse, Topic: "support_flow", Level: model.LevelBeginner,
		Stem: "Stored?",
	}
	if _, err := env.store.SaveQuestion(q); err != nil {
		t.Fatal(err)
	}

	resp, body := doJSON(t, http.MethodGet, env.server.URL+"/questions/random?topic=support_flow", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if string(body["stem"]) != `"Stored?"` {
		t.Errorf("stem = %s", body["stem"])
	}
}

func TestListAndDeleteQuestions(t *testing.T) {
	env := newTestEnv(t)
	q := &model.Question{Type: model.TypeShortAnswer, Topic: "t", Level: model.LevelBeginner, Stem: "keep me"}
	if _, err := env.store.SaveQuestion(q); err != nil {
		t.Fatal(err)
	}

	resp, body := doJSON(t, http.MethodGet, env.server.URL+"/questions?limit=10", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if string(body["count"]) != "1" {
		t.Errorf("count = %s", body["count"])
	}

	resp, _ = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/questions/%d", env.server.URL, q.ID), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, env.server.URL+"/questions/9999", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing delete status = %d, want 404", resp.StatusCode)
	}
}

func TestDocumentDeleteAndReset(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := doJSON(t, http.MethodDelete, env.server.URL+"/documents/handbook.txt", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(env.indexer.deleted) != 1 || env.indexer.deleted[0] != "handbook.txt" {
		t.Errorf("deleted = %v", env.indexer.deleted)
	}

	resp, _ = doJSON(t, http.MethodDelete, env.server.URL+"/documents", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d", resp.StatusCode)
	}
	if env.indexer.resets != 1 {
		t.Errorf("resets = %d", env.indexer.resets)
	}
}

func TestAttempts(t *testing.T) {
	env := newTestEnv(t)
	records := `[{"question_id":1,"given":"B","correct":true},{"question_id":2,"given":"A","correct":false}]`
	attempt := map[string]any{
		"topic": "security_policy", "difficulty": "beginner",
		"total_questions": 4, "correct_answers": 3,
		"questions_attempted": json.RawMessage(records),
	}

	resp, _ := doJSON(t, http.MethodPost, env.server.URL+"/attempts", attempt, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("no identity status = %d, want 400", resp.StatusCode)
	}

	headers := map[string]string{"X-User-ID": "user-42"}
	resp, body := doJSON(t, http.MethodPost, env.server.URL+"/attempts", attempt, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if string(body["score"]) != "75" {
		t.Errorf("score = %s, want 75", body["score"])
	}
	if string(body["questions_attempted"]) != records {
		t.Errorf("questions_attempted = %s, want it echoed back", body["questions_attempted"])
	}

	resp, body = doJSON(t, http.MethodGet, env.server.URL+"/attempts", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	if string(body["count"]) != "1" {
		t.Fatalf("count = %s, want 1", body["count"])
	}
	var listed []model.QuizAttempt
	if err := json.Unmarshal(body["attempts"], &listed); err != nil {
		t.Fatal(err)
	}
	if string(listed[0].QuestionsAttempted) != records {
		t.Errorf("stored questions_attempted = %s", listed[0].QuestionsAttempted)
	}

	resp, body = doJSON(t, http.MethodGet, env.server.URL+"/attempts/stats", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d", resp.StatusCode)
	}
	if string(body["total_quizzes"]) != "1" {
		t.Errorf("total_quizzes = %s", body["total_quizzes"])
	}
}

func TestListAttemptsRequiresIdentity(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := doJSON(t, http.MethodGet, env.server.URL+"/attempts", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSaveAttemptErrorStatus(t *testing.T) {
	headers := map[string]string{"X-User-ID": "user-42"}

	t.Run("zero questions is the caller's fault", func(t *testing.T) {
		env := newTestEnv(t)
		attempt := map[string]any{"topic": "t", "difficulty": "beginner"}
		resp, _ := doJSON(t, http.MethodPost, env.server.URL+"/attempts", attempt, headers)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("storage failure is not", func(t *testing.T) {
		env := newTestEnv(t)
		env.store.Close()
		attempt := map[string]any{
			"topic": "t", "difficulty": "beginner",
			"total_questions": 2, "correct_answers": 1,
		}
		resp, _ := doJSON(t, http.MethodPost, env.server.URL+"/attempts", attempt, headers)
		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", resp.StatusCode)
		}
	})
}

func TestChat(t *testing.T) {
	env := newTestEnv(t)

	resp, body := doJSON(t, http.MethodPost, env.server.URL+"/chat",
		map[string]string{"message": "How do refunds work?", "context": "support_flow"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if string(body["response"]) != `"a short answer"` {
		t.Errorf("response = %s", body["response"])
	}
	if env.chat.message != "How do refunds work?" || env.chat.topic != "support_flow" {
		t.Errorf("chat called with %q/%q", env.chat.message, env.chat.topic)
	}
}

func TestChatRequiresMessage(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := doJSON(t, http.MethodPost, env.server.URL+"/chat", map[string]string{}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTopics(t *testing.T) {
	env := newTestEnv(t)
	env.search.counts = map[string]int{"support_flow": 12}

	resp, body := doJSON(t, http.MethodGet, env.server.URL+"/topics", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body["topics"]), `"support_flow":12`) {
		t.Errorf("topics = %s", body["topics"])
	}
}
