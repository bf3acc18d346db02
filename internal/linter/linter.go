package linter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/profiler"
)

// Config controls which lint rules apply to a prompt template.
type Config struct {
	ExpectedVariables     []string `yaml:"expected_variables"`
	EnforceXMLTags        bool     `yaml:"enforce_xml_tags"`
	RequireFallbackPhrase bool     `yaml:"require_fallback_phrase"`
	// Max share of the prompt's tokens allowed to be static (non-variable)
	// text before an optimization warning fires.
	MaxStaticTokenRatio float64 `yaml:"max_static_token_ratio"`
}

var (
	danglingOpen  = regexp.MustCompile(`\{[^{}]*$`)
	danglingClose = regexp.MustCompile(`^[^{}]*\}`)
	xmlTagPair    = regexp.MustCompile(`(?s)<[a-zA-Z0-9]+>.*?</[a-zA-Z0-9]+>`)
)

var fallbackKeywords = []string{"if you don't know", "fallback", "i'm sorry", "cannot answer"}

// Linter statically analyzes prompt templates. It is a standalone tool and is
// never part of the runtime guard failure path.
type Linter struct {
	cfg      Config
	profiler *profiler.TokenProfiler
}

func New(cfg Config, p *profiler.TokenProfiler) *Linter {
	if cfg.MaxStaticTokenRatio <= 0 {
		cfg.MaxStaticTokenRatio = 0.5
	}

	return &Linter{
		cfg:      cfg,
		profiler: p,
	}
}

// Lint reports structural errors and best-practice warnings for a prompt
// template. Errors fail the lint; warnings do not.
func (l *Linter) Lint(prompt string, variables map[string]string) models.LintResult {
	var errs []string
	var warnings []string

	// Structural: broken placeholders like "{var" or "var}".
	if danglingOpen.MatchString(prompt) || danglingClose.MatchString(prompt) {
		errs = append(errs, "structural error: potential broken placeholders detected")
	}

	for _, v := range l.cfg.ExpectedVariables {
		if !strings.Contains(prompt, "{"+v+"}") {
			errs = append(errs, fmt.Sprintf("structural error: expected variable '{%s}' not found in prompt", v))
		}
	}

	if l.cfg.EnforceXMLTags && !xmlTagPair.MatchString(prompt) {
		warnings = append(warnings, "best practice: no XML tags detected despite 'enforce_xml_tags' being enabled")
	}

	if l.cfg.RequireFallbackPhrase && !containsFallbackPhrase(prompt) {
		warnings = append(warnings, "best practice: no fallback instructions (e.g. 'if you don't know') detected")
	}

	if warning, ok := l.staticRatioWarning(prompt, variables); ok {
		warnings = append(warnings, warning)
	}

	return models.LintResult{
		Passed:   len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

func containsFallbackPhrase(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, kw := range fallbackKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// staticRatioWarning estimates the static token budget by stripping variable
// placeholders from the prompt.
func (l *Linter) staticRatioWarning(prompt string, variables map[string]string) (string, bool) {
	staticPrompt := prompt
	for k := range variables {
		staticPrompt = strings.ReplaceAll(staticPrompt, "{"+k+"}", "")
	}

	totalTokens := l.profiler.CountTokens(prompt)
	if totalTokens == 0 {
		return "", false
	}

	staticRatio := float64(l.profiler.CountTokens(staticPrompt)) / float64(totalTokens)
	if staticRatio <= l.cfg.MaxStaticTokenRatio {
		return "", false
	}

	return fmt.Sprintf(
		"optimization: static parts consume %.1f%% of the prompt tokens, exceeding the limit of %.1f%%",
		staticRatio*100, l.cfg.MaxStaticTokenRatio*100,
	), true
}
