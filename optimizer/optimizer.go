package optimizer

import (
	"fmt"
	"maps"
	"math"
	"regexp"
	"sync"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru"

	"github.com/freeseek/freeseek-go/logger"
	"github.com/freeseek/freeseek-go/util"
)

// Prompt categories.
const (
	CategoryCoding   = "coding"
	CategoryCreative = "creative"
	CategoryGeneral  = "general"
)

// analyzeThreshold is the history length above which AnalyzeHistory reports.
const analyzeThreshold = 10

var (
	codingPattern   = regexp.MustCompile(`(?i)code|script|function`)
	creativePattern = regexp.MustCompile(`(?i)write|story|poem`)
)

// QuotaSource reports the remaining request quota.
type QuotaSource interface {
	Remaining() int
}

// Decision is the outcome of optimizing one request. Data is a fresh copy
// of the caller's payload with Prompt written to "prompt".
type Decision struct {
	Model    string
	Prompt   string
	Data     map[string]any
	Category string
	Cached   bool
	// Skipped is set when the payload has no string prompt; Model and Data
	// are then the caller's own.
	Skipped bool
}

// choice is what the cache remembers for a prompt.
type choice struct {
	model, prompt, category string
}

// Optimizer is safe for concurrent use.
type Optimizer struct {
	cfg   Config
	quota QuotaSource
	log   *logger.Logger

	mu      sync.Mutex
	cache   *lru.Cache
	history []string
	next    int
	filled  bool
}

// New creates an Optimizer. quota may be nil, meaning unlimited.
func New(cfg Config, quota QuotaSource, log *logger.Logger) (*Optimizer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("optimizer: %w", err)
	}
	return &Optimizer{
		cfg:     cfg,
		quota:   quota,
		log:     logger.OrNop(log).WithComponent("optimizer"),
		cache:   cache,
		history: make([]string, cfg.HistorySize),
	}, nil
}

// Process returns the model and payload to send in place of model and data.
// The caller's model is replaced by the selected tier.
func (o *Optimizer) Process(model string, data map[string]any) (string, map[string]any) {
	d := o.Optimize(model, data)
	return d.Model, d.Data
}

// Optimize is Process with the full decision.
func (o *Optimizer) Optimize(model string, data map[string]any) Decision {
	prompt, ok := data["prompt"].(string)
	if !ok {
		o.log.Debug("no prompt to optimize", logger.Fields(logger.FieldModel, model))
		return Decision{Model: model, Data: data, Skipped: true}
	}

	var c choice
	cached, hit := o.cache.Get(prompt)
	if hit {
		c = cached.(choice)
		o.log.Debug("returning cached optimization", logger.Fields(logger.FieldModel, c.model))
	} else {
		o.record(prompt)
		o.AnalyzeHistory()
		c = choice{
			model:    o.SelectModel(prompt),
			prompt:   o.OptimizePrompt(prompt),
			category: o.Classify(prompt),
		}
		o.log.Info("optimized request", logger.Fields(
			"requested_model", model,
			logger.FieldModel, c.model,
			"category", c.category,
			"prompt_length", utf8.RuneCountInString(prompt),
		))
		o.cache.Add(prompt, c)
	}

	out := maps.Clone(data)
	out["prompt"] = c.prompt
	return Decision{
		Model:    c.model,
		Prompt:   c.prompt,
		Data:     out,
		Category: c.category,
		Cached:   hit,
	}
}

// SelectModel picks the model tier for prompt.
func (o *Optimizer) SelectModel(prompt string) string {
	if o.remaining() < o.cfg.LowQuotaThreshold {
		return ModelLight
	}
	switch n := utf8.RuneCountInString(prompt); {
	case n < o.cfg.ShortPrompt:
		return ModelLight
	case n < o.cfg.LongPrompt:
		return ModelStandard
	default:
		return ModelPro
	}
}

// OptimizePrompt rewrites prompt for the configured priority.
func (o *Optimizer) OptimizePrompt(prompt string) string {
	switch o.cfg.Priority {
	case PrioritySpeed:
		return util.Truncate(prompt, o.cfg.TruncateLength)
	case PriorityAccuracy:
		return prompt + AccuracySuffix
	default:
		return prompt
	}
}

// Classify returns the coarse category of prompt.
func (o *Optimizer) Classify(prompt string) string {
	switch {
	case codingPattern.MatchString(prompt):
		return CategoryCoding
	case creativePattern.MatchString(prompt):
		return CategoryCreative
	default:
		return CategoryGeneral
	}
}

// AnalyzeHistory logs and returns the average prompt length once more than
// ten prompts have been recorded.
func (o *Optimizer) AnalyzeHistory() (float64, bool) {
	prompts := o.History()
	if len(prompts) <= analyzeThreshold {
		return 0, false
	}
	total := 0
	for _, p := range prompts {
		total += utf8.RuneCountInString(p)
	}
	avg := float64(total) / float64(len(prompts))
	o.log.Info("prompt history", logger.Fields("average_length", avg, "samples", len(prompts)))
	return avg, true
}

// History returns the recorded prompts, oldest first.
func (o *Optimizer) History() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.filled {
		return append([]string(nil), o.history[:o.next]...)
	}
	out := make([]string, 0, len(o.history))
	out = append(out, o.history[o.next:]...)
	return append(out, o.history[:o.next]...)
}

// CacheLen returns the number of memoized prompts.
func (o *Optimizer) CacheLen() int { return o.cache.Len() }

func (o *Optimizer) record(prompt string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history[o.next] = prompt
	o.next = (o.next + 1) % len(o.history)
	if o.next == 0 {
		o.filled = true
	}
}

func (o *Optimizer) remaining() int {
	if o.quota == nil {
		return math.MaxInt
	}
	return o.quota.Remaining()
}
