// Package tutor is the serving-time orchestrator: transcribe attachments,
// retrieve curriculum context, assemble the prompt and call the answer model.
package tutor

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mathai-labs/tutor-core/internal/ocr"
	"github.com/mathai-labs/tutor-core/internal/prompt"
	"github.com/mathai-labs/tutor-core/internal/retriever"
)

// ServiceUnavailable is returned when no answer model is configured at all.
const ServiceUnavailable = "[service indisponible] Le service de génération de réponses " +
	"n'est pas configuré. Veuillez réessayer plus tard."

// Question is one student request.
type Question struct {
	Text        string
	Attachments []prompt.Attachment
	History     string
}

// Answer is the complete response package handed to the serving layer.
type Answer struct {
	Content  string
	Sources  []retriever.Source
	Decision prompt.Decision
}

// Searcher is the retrieval step; failures surface as empty context.
type Searcher interface {
	Search(ctx context.Context, query string) (string, []retriever.Source)
}

// Engine wires retrieval, prompt assembly and the answer model. It holds no
// per-request mutable state and is safe for concurrent use.
type Engine struct {
	searcher  Searcher
	assembler *prompt.Assembler
	chat      ChatClient       // nil: answers degrade to ServiceUnavailable
	vision    ocr.VisionClient // nil: image attachments are ignored
	log       zerolog.Logger
}

// NewEngine creates an Engine. chat and vision may be nil; the engine then
// degrades rather than failing.
func NewEngine(searcher Searcher, assembler *prompt.Assembler, chat ChatClient, vision ocr.VisionClient, log zerolog.Logger) *Engine {
	return &Engine{
		searcher:  searcher,
		assembler: assembler,
		chat:      chat,
		vision:    vision,
		log:       log,
	}
}

// Ask answers one question. Model-call failures are surfaced as the answer
// text rather than as errors; the serving layer always gets something to
// show.
func (e *Engine) Ask(ctx context.Context, q Question) Answer {
	assembled, sources := e.prepare(ctx, q)
	if !assembled.NeedModel {
		return Answer{Content: assembled.Canned, Decision: assembled.Decision}
	}
	if e.chat == nil {
		return Answer{Content: ServiceUnavailable, Sources: sources, Decision: assembled.Decision}
	}

	content, err := e.chat.Complete(ctx, assembled.System, assembled.User)
	if err != nil {
		e.log.Error().Err(err).Msg("answer model call failed")
		return Answer{
			Content:  "Erreur lors de l'appel au modèle: " + err.Error(),
			Sources:  sources,
			Decision: assembled.Decision,
		}
	}
	return Answer{Content: content, Sources: sources, Decision: assembled.Decision}
}

// AskStream is the streaming variant of Ask. The canned refusal and the
// service-unavailable notice are delivered through fn as a single token.
func (e *Engine) AskStream(ctx context.Context, q Question, fn func(token string) error) (Answer, error) {
	assembled, sources := e.prepare(ctx, q)
	answer := Answer{Sources: sources, Decision: assembled.Decision}

	if !assembled.NeedModel {
		answer.Content = assembled.Canned
		answer.Sources = nil
		return answer, fn(assembled.Canned)
	}
	if e.chat == nil {
		answer.Content = ServiceUnavailable
		return answer, fn(ServiceUnavailable)
	}

	var full strings.Builder
	err := e.chat.Stream(ctx, assembled.System, assembled.User, func(token string) error {
		full.WriteString(token)
		return fn(token)
	})
	answer.Content = full.String()
	return answer, err
}

// prepare resolves attachments, retrieves context and assembles the prompt:
// everything before the answer model runs.
func (e *Engine) prepare(ctx context.Context, q Question) (prompt.Assembled, []retriever.Source) {
	sections := e.resolveAttachments(ctx, q.Attachments)

	// Attachment text joins the retrieval query so search reflects what
	// the student actually attached, not just the typed question.
	query := q.Text
	if sections.ImageText != "" {
		query += "\n" + sections.ImageText
	}
	if sections.DocumentText != "" {
		query += "\n" + sections.DocumentText
	}

	contextText, sources := e.searcher.Search(ctx, query)
	assembled := e.assembler.Assemble(prompt.Request{
		Question:    q.Text,
		Context:     contextText,
		Attachments: sections,
		History:     q.History,
	})
	e.log.Debug().Stringer("decision", assembled.Decision).
		Int("sources", len(sources)).Msg("prompt assembled")
	return assembled, sources
}

// resolveAttachments turns tagged attachments into prompt sections. A failed
// image transcription is logged and skipped; the question still gets
// answered from whatever else is available.
func (e *Engine) resolveAttachments(ctx context.Context, attachments []prompt.Attachment) prompt.Sections {
	var sections prompt.Sections
	for _, att := range attachments {
		switch a := att.(type) {
		case prompt.Image:
			if e.vision == nil {
				e.log.Warn().Msg("image attachment ignored: no vision model configured")
				continue
			}
			text, err := e.vision.Transcribe(ctx, a.MIME, a.Data)
			if err != nil {
				e.log.Warn().Err(err).Msg("attachment transcription failed, skipping")
				continue
			}
			if sections.ImageText != "" {
				sections.ImageText += "\n"
			}
			sections.ImageText += text
		case prompt.Document:
			if sections.DocumentText != "" {
				sections.DocumentText += "\n"
			}
			sections.DocumentText += a.Text
		}
	}
	return sections
}
