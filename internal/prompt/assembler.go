// Package prompt turns a question, its retrieval outcome and any attachment
// text into a model-ready instruction. Assembly is pure: all I/O (retrieval,
// transcription) happens upstream.
package prompt

import "strings"

// Request is everything the assembler needs, gathered upstream.
type Request struct {
	Question    string
	Context     string // formatted retrieval blocks, empty on a miss
	Attachments Sections
	History     string // prior turns as plain text, not structurally parsed
}

// Assembled is the model-facing instruction pair plus the policy that
// produced it. When NeedModel is false the caller must return Canned verbatim
// without any model call.
type Assembled struct {
	System    string
	User      string
	Decision  Decision
	NeedModel bool
	Canned    string
}

// Assembler builds prompts from one configurable template. Concise switches
// the response-format instructions, not the code path.
type Assembler struct {
	scope   *Scope
	refusal string
	concise bool
}

// New creates an Assembler with the given curriculum scope and refusal
// message.
func New(scope *Scope, refusal string, concise bool) *Assembler {
	return &Assembler{scope: scope, refusal: refusal, concise: concise}
}

// Decide evaluates the response policy once per request. Attachment text
// counts toward scope: a photographed derivative exercise is in scope even
// when the typed question is just "aide-moi".
func (a *Assembler) Decide(req Request) Decision {
	if strings.TrimSpace(req.Context) != "" {
		return ContextHit
	}
	probe := req.Question + " " + req.Attachments.ImageText + " " + req.Attachments.DocumentText
	if a.scope.Contains(probe) {
		return MissInScope
	}
	return OutOfScope
}

// Assemble builds the final instruction for the decided branch.
func (a *Assembler) Assemble(req Request) Assembled {
	decision := a.Decide(req)
	if decision == OutOfScope {
		return Assembled{
			Decision:  decision,
			NeedModel: false,
			Canned:    a.refusal,
		}
	}
	return Assembled{
		System:    a.systemPrompt(req, decision),
		User:      a.userPrompt(req),
		Decision:  decision,
		NeedModel: true,
	}
}

const rolePreamble = `Tu es un assistant pédagogique expert en mathématiques pour le lycée.
Ton objectif est d'expliquer les concepts clairement en français, en respectant
strictement le programme officiel.

### INSTRUCTIONS:
- N'explique pas seulement le résultat: détaille le raisonnement et les définitions d'abord.
- Décompose la logique en étapes claires et progressives.
- Utilise LaTeX pour toutes les formules ($ pour l'inline, $$ pour les blocs).
- Mets en gras les termes clés.`

const contextAdherence = `- Réponds UNIQUEMENT à partir des extraits du programme fournis ci-dessous.
- Cite la source et la page de chaque extrait utilisé.`

const missDisclosure = `- Aucun passage exact du programme officiel n'a été trouvé pour cette question.
- Tu peux répondre à partir de tes connaissances générales du domaine, mais tu dois
  signaler explicitement au début de ta réponse qu'aucun extrait du programme ne la couvre.`

const structuredFormat = `### FORMAT DE RÉPONSE:
PARTIE: [titre de la partie du cours]
ÉNONCÉ: [reformulation du problème]
ÉTAPE 1: Analyse [analyse de l'énoncé]
ÉTAPE 2: Résolution [résolution détaillée]
ÉTAPE 3: Conclusion [résultat]
CONSOLIDATION: [ce qu'il faut retenir]`

const conciseFormat = `### FORMAT DE RÉPONSE:
Réponds de façon concise: l'analyse, la résolution, puis la conclusion,
en quelques phrases chacune.`

const restateInstruction = `Avant de résoudre, recopie l'énoncé extrait de l'image ci-dessus et confirme
que c'est bien ce qui est demandé.`

func (a *Assembler) systemPrompt(req Request, decision Decision) string {
	var b strings.Builder
	b.WriteString(rolePreamble)
	b.WriteString("\n\n")

	switch decision {
	case ContextHit:
		b.WriteString(contextAdherence)
		b.WriteString("\n\n### EXTRAITS DU PROGRAMME:\n")
		b.WriteString(req.Context)
	case MissInScope:
		b.WriteString(missDisclosure)
	}

	b.WriteString("\n\n")
	if a.concise {
		b.WriteString(conciseFormat)
	} else {
		b.WriteString(structuredFormat)
	}
	return b.String()
}

func (a *Assembler) userPrompt(req Request) string {
	var b strings.Builder

	if h := strings.TrimSpace(req.History); h != "" {
		b.WriteString("### ÉCHANGES PRÉCÉDENTS:\n")
		b.WriteString(h)
		b.WriteString("\n\n")
	}
	if img := strings.TrimSpace(req.Attachments.ImageText); img != "" {
		b.WriteString("### CONTENU EXTRAIT DE L'IMAGE:\n")
		b.WriteString(img)
		b.WriteString("\n")
		b.WriteString(restateInstruction)
		b.WriteString("\n\n")
	}
	if doc := strings.TrimSpace(req.Attachments.DocumentText); doc != "" {
		b.WriteString("### CONTENU DU DOCUMENT JOINT:\n")
		b.WriteString(doc)
		b.WriteString("\n\n")
	}

	b.WriteString("### QUESTION:\n")
	b.WriteString(req.Question)
	return b.String()
}
