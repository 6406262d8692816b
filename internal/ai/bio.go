package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"

	"resumify/internal/metrics"
)

// Completer is the subset of Client used by BioWriter.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// minEnhanceChars is the shortest job description worth rewriting.
const minEnhanceChars = 20

const bioSystem = `You are an experienced resume writer and career coach.
Your summaries sound natural and human, use active voice and strong verbs,
stay specific and avoid buzzwords. Keep them short and authentic.`

const enhanceSystem = `You are a resume optimisation expert.
You rewrite job descriptions to highlight achievements over duties,
use strong action verbs, stay measurable and never invent facts.`

// BioWriter drafts resume prose and never fails: when the provider is unavailable it falls back.
type BioWriter struct {
	completer Completer
	logger    *slog.Logger
}

// NewBioWriter wraps a Completer. A nil logger falls back to slog.Default.
func NewBioWriter(completer Completer, logger *slog.Logger) *BioWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BioWriter{completer: completer, logger: logger}
}

// Bio drafts a first-person summary of two or three sentences.
func (w *BioWriter) Bio(ctx context.Context, name, profession string, skills []string) string {
	prompt := fmt.Sprintf(`Write a professional summary for a resume.

Name: %s
Role: %s
Key skills: %s

Rules:
- first person ("I" or "I'm")
- two or three sentences
- mention concrete technical skills
- confident, not arrogant; no filler phrases

Summary for %s:`, name, profession, strings.Join(skills, ", "), name)

	text, err := w.completer.Complete(ctx, Request{
		System:      bioSystem,
		Prompt:      prompt,
		Temperature: 0.8,
		MaxTokens:   150,
	})
	if err != nil {
		w.logger.Info("using fallback bio", slog.Any("error", err))
		metrics.ObserveAIFallback("bio")
		return FallbackBio(name, profession, skills)
	}
	return stripQuotes(text)
}

// EnhanceJobDescription rewrites desc to be more achievement focused.
// Short descriptions and provider failures return desc unchanged.
func (w *BioWriter) EnhanceJobDescription(ctx context.Context, title, company, desc string) string {
	if len([]rune(desc)) < minEnhanceChars {
		return desc
	}
	prompt := fmt.Sprintf(`Make this job description more impactful.

Job title: %s
Company: %s
Original: %s

Rules:
- two or three sentences or bullet points
- start with action verbs, quantify where the original allows
- keep every original fact

Improved version:`, title, company, desc)

	text, err := w.completer.Complete(ctx, Request{
		System:      enhanceSystem,
		Prompt:      prompt,
		Temperature: 0.7,
		MaxTokens:   200,
	})
	if err != nil {
		w.logger.Info("keeping original job description", slog.Any("error", err))
		metrics.ObserveAIFallback("job_description")
		return desc
	}
	return text
}

var fallbackBios = []string{
	"I'm %[1]s, a %[2]s with expertise in %[3]s. I'm passionate about creating impactful solutions and continuously learning new technologies.",
	"I'm %[1]s, a %[2]s specializing in %[3]s. I combine technical expertise with creative problem-solving to deliver high-quality results.",
	"I'm %[1]s. As a %[2]s, I leverage %[3]s to build innovative solutions. I'm committed to writing clean code and collaborating effectively with teams.",
}

// FallbackBio builds a templated summary. The template is chosen by a hash
// of name and profession so the same person always gets the same text.
func FallbackBio(name, profession string, skills []string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + "\x00" + profession))
	tmpl := fallbackBios[h.Sum32()%uint32(len(fallbackBios))]
	return fmt.Sprintf(tmpl, name, profession, skillPhrase(skills))
}

func skillPhrase(skills []string) string {
	var top []string
	for _, s := range skills {
		if s = strings.TrimSpace(s); s != "" {
			top = append(top, s)
		}
		if len(top) == 3 {
			break
		}
	}
	switch len(top) {
	case 0:
		return "various technologies"
	case 1:
		return top[0]
	case 2:
		return top[0] + " and " + top[1]
	default:
		return top[0] + ", " + top[1] + ", and " + top[2]
	}
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"`, `'`} {
		if len(s) >= 2 && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
