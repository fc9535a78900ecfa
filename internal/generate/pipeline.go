// Package generate drives question generation end to end: retrieve
// context, prompt the model, parse and validate the output, persist the
// result.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/furkankasim16/knowledge-bot/internal/llm"
	"github.com/furkankasim16/knowledge-bot/internal/model"
	"github.com/furkankasim16/knowledge-bot/internal/store"
)

const (
	DefaultContextChunks   = 3
	DefaultMaxContextChars = 4000
	DefaultModelRatio      = 0.7
)

// Retriever supplies reference passages for a topic.
type Retriever interface {
	Retrieve(ctx context.Context, topic string, chunks, maxChars int) (string, error)
}

// Generator produces raw model output for a prompt.
type Generator interface {
	Generate(ctx context.Context, modelID, prompt string) (string, error)
	GenerateStream(ctx context.Context, modelID, prompt string) (string, error)
}

// Saver persists a validated question.
type Saver interface {
	SaveQuestion(q *model.Question) (store.SaveResult, error)
}

// Stage names the pipeline step a failure happened in.
type Stage string

const (
	StageRetrieve Stage = "retrieve"
	StageGenerate Stage = "generate"
	StageParse    Stage = "parse"
	StageValidate Stage = "validate"
	StageSave     Stage = "save"
)

// Failure wraps a pipeline error with the stage it came from, so callers
// can log and report where generation broke without string matching.
type Failure struct {
	Stage Stage
	Err   error
}

func (f *Failure) Error() string { return fmt.Sprintf("%s: %v", f.Stage, f.Err) }
func (f *Failure) Unwrap() error { return f.Err }

// Config holds generation tunables. Zero values select the defaults.
type Config struct {
	Model           string
	AltModel        string
	ModelRatio      float64
	ContextChunks   int
	MaxContextChars int
	Language        string
	Stream          bool
}

type Pipeline struct {
	retriever Retriever
	generator Generator
	saver     Saver
	cfg       Config
}

func NewPipeline(r Retriever, g Generator, s Saver, cfg Config) *Pipeline {
	if cfg.ContextChunks <= 0 {
		cfg.ContextChunks = DefaultContextChunks
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = DefaultMaxContextChars
	}
	if cfg.ModelRatio <= 0 || cfg.ModelRatio > 1 {
		cfg.ModelRatio = DefaultModelRatio
	}
	return &Pipeline{retriever: r, generator: g, saver: s, cfg: cfg}
}

// Outcome is the result of one successful generation. A duplicate skip is
// still a success: the question exists, it just was not inserted again.
type Outcome struct {
	Question *model.Question
	Result   store.SaveResult
	Model    string
}

// GenerateQuestion runs the full pipeline for one question.
func (p *Pipeline) GenerateQuestion(ctx context.Context, topic string, level model.Level, qtype model.QuestionType) (*Outcome, error) {
	passages, err := p.retriever.Retrieve(ctx, topic, p.cfg.ContextChunks, p.cfg.MaxContextChars)
	if err != nil {
		return nil, &Failure{Stage: StageRetrieve, Err: err}
	}

	prompt := llm.BuildPrompt(topic, level, qtype, passages, p.cfg.Language)
	modelID := p.pickModel()

	var raw string
	if p.cfg.Stream {
		raw, err = p.generator.GenerateStream(ctx, modelID, prompt)
	} else {
		raw, err = p.generator.Generate(ctx, modelID, prompt)
	}
	if err != nil {
		return nil, &Failure{Stage: StageGenerate, Err: err}
	}

	q, err := llm.ParseQuestion(raw, llm.Fallback{Type: qtype, Topic: topic, Level: level})
	if err != nil {
		return nil, &Failure{Stage: StageParse, Err: err}
	}
	q.SourceModel = modelID

	if err := q.Validate(); err != nil {
		return nil, &Failure{Stage: StageValidate, Err: err}
	}

	res, err := p.saver.SaveQuestion(q)
	if err != nil {
		return nil, &Failure{Stage: StageSave, Err: err}
	}
	slog.Info("question generated",
		"topic", topic, "level", level, "type", qtype,
		"model", modelID, "duplicate", res == store.SkippedDuplicate)
	return &Outcome{Question: q, Result: res, Model: modelID}, nil
}

// pickModel chooses between the primary and alternate model. ModelRatio
// is the probability of the primary.
func (p *Pipeline) pickModel() string {
	if p.cfg.AltModel == "" {
		return p.cfg.Model
	}
	if rand.Float64() < p.cfg.ModelRatio {
		return p.cfg.Model
	}
	return p.cfg.AltModel
}
