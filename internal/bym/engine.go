package bym

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edgard/bymbot/internal/config"
	"github.com/edgard/bymbot/internal/llm"
)

// Model call parameters.
const (
	modelTemperature     = 1
	modelMaxOutputTokens = 500
)

// State is a step of the per-message response cycle.
type State uint8

const (
	StateIdle State = iota
	StatePolicyResolved
	StateTriggerEvaluated
	StateSuppressed
	StateContextAssembled
	StatePromptGuarded
	StateModelInvoked
	StateSegmentsDispatched
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolicyResolved:
		return "policy_resolved"
	case StateTriggerEvaluated:
		return "trigger_evaluated"
	case StateSuppressed:
		return "suppressed"
	case StateContextAssembled:
		return "context_assembled"
	case StatePromptGuarded:
		return "prompt_guarded"
	case StateModelInvoked:
		return "model_invoked"
	case StateSegmentsDispatched:
		return "segments_dispatched"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// Deps are the collaborators of an Engine. History, Replier and Model are
// required; everything else has a usable default.
type Deps struct {
	History    History
	Replier    Replier
	Model      llm.Model
	Members    MemberDirectory
	Images     ImageFetcher
	Tools      ToolCatalog
	ImageNamer ImageNamerFactory
	// Strikes may be shared between engines; nil creates a private registry.
	Strikes *StrikeRegistry
	Logger  *slog.Logger

	// Rand returns a uniform integer in [0,n).
	Rand  func(n int) int
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Engine runs the ambient response cycle for group messages.
type Engine struct {
	cfg        *config.EngineConfig
	policy     *PolicyResolver
	trigger    TriggerPolicy
	assembler  *Assembler
	guard      *Guard
	dispatcher *Dispatcher
	model      llm.Model
	tools      ToolCatalog
	namer      ImageNamerFactory
	strikes    *StrikeRegistry
	rand       func(n int) int
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	log        *slog.Logger
}

// NewEngine wires an engine from cfg and deps.
func NewEngine(cfg *config.EngineConfig, deps Deps) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine config is nil")
	}
	if deps.History == nil {
		return nil, errors.New("history is required")
	}
	if deps.Replier == nil {
		return nil, errors.New("replier is required")
	}
	if deps.Model == nil {
		return nil, errors.New("model is required")
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "bym")
	if deps.Strikes == nil {
		deps.Strikes = NewStrikeRegistry()
	}
	if deps.Rand == nil {
		deps.Rand = rand.IntN
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
	}

	return &Engine{
		cfg:       cfg,
		policy:    NewPolicyResolver(cfg.Groups, cfg.Users),
		trigger:   TriggerPolicy{Labels: cfg.Labels, QuestionBoost: cfg.QuestionBoost},
		assembler: NewAssembler(cfg, deps.History, deps.Images, log),
		guard:     NewGuard(cfg, deps.Strikes, log),
		dispatcher: &Dispatcher{
			replier: deps.Replier,
			members: deps.Members,
			rand:    deps.Rand,
			sleep:   deps.Sleep,
			log:     log,
		},
		model:   deps.Model,
		tools:   deps.Tools,
		namer:   deps.ImageNamer,
		strikes: deps.Strikes,
		rand:    deps.Rand,
		now:     deps.Now,
		sleep:   deps.Sleep,
		log:     log,
	}, nil
}

// Strikes returns the registry the engine records role-override strikes in.
func (e *Engine) Strikes() *StrikeRegistry {
	return e.strikes
}

// Handle runs one response cycle and logs any failure instead of returning
// it, so a failed reply never affects other messages.
func (e *Engine) Handle(ctx context.Context, msg *Message) {
	cycleID := uuid.NewString()
	log := e.log.With("cycle_id", cycleID, "chat_id", msg.GroupID, "user_id", msg.SenderID)
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "Panic in response cycle", "panic", r)
		}
	}()

	state, err := e.Process(ctx, msg)
	if err != nil {
		log.ErrorContext(ctx, "Response cycle failed", "error", err, "state", state.String())
		return
	}
	log.DebugContext(ctx, "Response cycle finished", "state", state.String())
}

// Process runs the response cycle for msg and returns the last state reached.
// A model or history failure is returned with the state it happened in.
func (e *Engine) Process(ctx context.Context, msg *Message) (State, error) {
	if !e.eligible(msg) {
		return StateSuppressed, nil
	}

	eff := e.policy.Resolve(msg.GroupID, msg.SenderID)
	if eff == nil {
		return StateSuppressed, nil
	}

	if !e.trigger.Decide(eff, msg.Text, msg.AtMe, e.rand(100)) {
		return StateSuppressed, nil
	}
	e.log.InfoContext(ctx, "Random chat hit", "chat_id", msg.GroupID, "user_id", msg.SenderID,
		"probability", eff.Probability, "at_bot", eff.IsAtBot)

	assembled, outcome, err := e.assembler.Assemble(ctx, msg, eff)
	if err != nil {
		return StateTriggerEvaluated, err
	}
	switch outcome {
	case assembleEmpty:
		return StateSuppressed, nil
	case assembleReenter:
		return e.reenter(ctx, msg)
	}

	now := e.now()
	prompt := e.guard.Build(ctx, msg, eff, assembled, now)

	tools := e.tools.Build(msg)
	var namer ImageNamer
	if e.cfg.AutoImageDescription && e.namer != nil {
		if namer = e.namer(msg); namer != nil {
			tools = append(tools, namer)
			if frag := namer.PromptFragment(ctx, msg); frag != "" {
				prompt.System += "\n" + frag
			}
		}
	}

	resp, err := e.model.Generate(ctx, &llm.Request{
		System:          prompt.System,
		Text:            prompt.UserText,
		Image:           assembled.Image,
		Temperature:     modelTemperature,
		MaxOutputTokens: modelMaxOutputTokens,
		Tools:           tools,
	})
	if err != nil {
		return StatePromptGuarded, fmt.Errorf("model invocation failed: %w", err)
	}

	text := ""
	if resp != nil {
		text = strings.TrimSpace(resp.Text)
	}
	sent, err := e.dispatcher.Dispatch(ctx, msg, text, prompt.Recall, namer)
	if err != nil {
		return StateModelInvoked, fmt.Errorf("dispatch interrupted after %d segments: %w", sent, err)
	}
	return StateSegmentsDispatched, nil
}

func (e *Engine) eligible(msg *Message) bool {
	if !e.cfg.Enabled || msg.GroupID == 0 {
		return false
	}
	if e.cfg.CommandPrefix != "" && strings.HasPrefix(strings.TrimSpace(msg.Text), e.cfg.CommandPrefix) {
		return false
	}
	return !e.cfg.IsBlacklisted(msg.SenderID)
}

// reenter waits briefly and processes a synthetic copy of an empty mention.
// The copy is marked so it can never re-enter again.
func (e *Engine) reenter(ctx context.Context, msg *Message) (State, error) {
	if err := e.sleep(ctx, e.cfg.EmptyMentionDelay); err != nil {
		return StateSuppressed, err
	}
	synthetic := *msg
	synthetic.Text = e.cfg.EmptyMentionPrompt
	synthetic.reentered = true
	return e.Process(ctx, &synthetic)
}
