package bot

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xintai6660707/ore-refined/internal/jito"
	"github.com/xintai6660707/ore-refined/internal/ore"
)

// minRefineRate is the floor for any acceptance bound; below spot parity
// plus margin the round is never worth deploying into.
const minRefineRate = 1.1

// Config is read once at startup and immutable for the run.
type Config struct {
	AmountLamports uint64
	MinSquares     int
	PickSquares    int
	Window         uint64

	PolicyKind string // threshold | optimized
	Threshold  float64
	MaxRate    float64

	Tick       time.Duration
	StaleAfter time.Duration

	RetryDelay  time.Duration
	MaxAttempts int

	EnableDeploy bool
	DisableJito  bool

	OutFile        string
	CheckpointFile string

	PriceURL     string
	TipStreamURL string
	TipMin       uint64
	UnitPrice    uint64

	EmissionPerSquare uint64
}

// ParseConfig reads flags with env-var defaults (flag wins) and validates.
func ParseConfig(argv []string) (Config, error) {
	fs := flag.NewFlagSet("deploy", flag.ContinueOnError)

	amountDefault := strings.TrimSpace(os.Getenv("DEPLOY_AMOUNT_SOL"))

	minSquaresDefault, err := envInt("DEPLOY_MIN_SQUARES", 12)
	if err != nil {
		return Config{}, err
	}
	pickSquaresDefault, err := envInt("DEPLOY_PICK_SQUARES", 5)
	if err != nil {
		return Config{}, err
	}
	windowDefault, err := envInt("DEPLOY_REMAINING_SLOTS", 15)
	if err != nil {
		return Config{}, err
	}

	policyDefault := strings.TrimSpace(firstNonEmpty(os.Getenv("DEPLOY_POLICY"), "threshold"))
	thresholdDefault, err := envFloat("DEPLOY_REFINE_RATE", 1.3)
	if err != nil {
		return Config{}, err
	}
	maxRateDefault, err := envFloat("DEPLOY_MAX_RATE", 2.0)
	if err != nil {
		return Config{}, err
	}

	tickDefault, err := envDuration("DEPLOY_TICK", 40*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	staleAfterDefault, err := envDuration("DEPLOY_STALE_AFTER", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	retryDelayDefault, err := envDuration("DEPLOY_RETRY_DELAY", 200*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	maxAttemptsDefault, err := envInt("DEPLOY_MAX_ATTEMPTS", 5)
	if err != nil {
		return Config{}, err
	}

	enableDefault, err := envBool("ENABLE_DEPLOY", false)
	if err != nil {
		return Config{}, err
	}
	disableJitoDefault, err := envBool("DISABLE_JITO", false)
	if err != nil {
		return Config{}, err
	}

	tipMinDefault, err := envInt("JITO_TIP_MIN", 5000)
	if err != nil {
		return Config{}, err
	}
	unitPriceDefault, err := envInt("DEPLOY_UNIT_PRICE", 20_000)
	if err != nil {
		return Config{}, err
	}
	emissionDefault, err := envInt("ORE_EMISSION_PER_SQUARE", int(ore.OneOre))
	if err != nil {
		return Config{}, err
	}

	var (
		amountFlag      string
		minSquaresFlag  int
		pickSquaresFlag int
		windowFlag      int
		policyFlag      string
		thresholdFlag   float64
		maxRateFlag     float64
		tickFlag        time.Duration
		staleAfterFlag  time.Duration
		retryDelayFlag  time.Duration
		maxAttemptsFlag int
		enableFlag      bool
		disableJitoFlag bool
		outFlag         string
		checkpointFlag  string
		priceURLFlag    string
		tipStreamFlag   string
		tipMinFlag      int
		unitPriceFlag   int
		emissionFlag    int
	)

	fs.StringVar(&amountFlag, "amount-sol", amountDefault, "SOL to deploy per round, e.g. 0.05 (DEPLOY_AMOUNT_SOL env)")
	fs.IntVar(&minSquaresFlag, "min-squares", minSquaresDefault, "Minimum eligible squares required to act (DEPLOY_MIN_SQUARES env)")
	fs.IntVar(&pickSquaresFlag, "pick-squares", pickSquaresDefault, "Squares to deploy into per round (DEPLOY_PICK_SQUARES env)")
	fs.IntVar(&windowFlag, "remaining-slots", windowDefault, "Act only when this many slots or fewer remain (DEPLOY_REMAINING_SLOTS env)")
	fs.StringVar(&policyFlag, "policy", policyDefault, "Acceptance policy: threshold or optimized (DEPLOY_POLICY env)")
	fs.Float64Var(&thresholdFlag, "refine-rate", thresholdDefault, "Max blended refine rate for the threshold policy (DEPLOY_REFINE_RATE env)")
	fs.Float64Var(&maxRateFlag, "max-rate", maxRateDefault, "Saturation bound: squares above this rate are ineligible (DEPLOY_MAX_RATE env)")
	fs.DurationVar(&tickFlag, "tick", tickDefault, "Scheduler tick interval (DEPLOY_TICK env)")
	fs.DurationVar(&staleAfterFlag, "stale-after", staleAfterDefault, "Suspend action when slot data is older than this (DEPLOY_STALE_AFTER env)")
	fs.DurationVar(&retryDelayFlag, "retry-delay", retryDelayDefault, "Delay between submission retries (DEPLOY_RETRY_DELAY env)")
	fs.IntVar(&maxAttemptsFlag, "max-attempts", maxAttemptsDefault, "Max submission attempts per round (DEPLOY_MAX_ATTEMPTS env)")
	fs.BoolVar(&enableFlag, "enable-deploy", enableDefault, "Actually submit deployments (default is dry-run) (ENABLE_DEPLOY env)")
	fs.BoolVar(&disableJitoFlag, "disable-jito", disableJitoDefault, "Skip the Jito bundle path, RPC only (DISABLE_JITO env)")
	fs.StringVar(&outFlag, "out", os.Getenv("DEPLOY_OUT_FILE"), "Optional JSONL event log path (DEPLOY_OUT_FILE env)")
	fs.StringVar(&checkpointFlag, "checkpoint", os.Getenv("DEPLOY_CHECKPOINT_FILE"), "Optional round checkpoint file (DEPLOY_CHECKPOINT_FILE env)")
	fs.StringVar(&priceURLFlag, "price-url", os.Getenv("PRICE_API_URL"), "Price API base URL (PRICE_API_URL env)")
	fs.StringVar(&tipStreamFlag, "tip-stream", firstNonEmpty(os.Getenv("JITO_TIP_STREAM_URL"), jito.DefaultTipStreamURL), "Jito tip stream URL (JITO_TIP_STREAM_URL env)")
	fs.IntVar(&tipMinFlag, "tip-min", tipMinDefault, "Minimum Jito tip in lamports (JITO_TIP_MIN env)")
	fs.IntVar(&unitPriceFlag, "unit-price", unitPriceDefault, "Compute unit price in micro-lamports (DEPLOY_UNIT_PRICE env)")
	fs.IntVar(&emissionFlag, "emission", emissionDefault, "Atomic ORE emission per winning square (ORE_EMISSION_PER_SQUARE env)")

	if err := fs.Parse(argv); err != nil {
		return Config{}, err
	}

	amountLamports, err := parseSolAmount(amountFlag)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AmountLamports:    amountLamports,
		MinSquares:        minSquaresFlag,
		PickSquares:       pickSquaresFlag,
		Window:            uint64(windowFlag),
		PolicyKind:        strings.ToLower(strings.TrimSpace(policyFlag)),
		Threshold:         thresholdFlag,
		MaxRate:           maxRateFlag,
		Tick:              tickFlag,
		StaleAfter:        staleAfterFlag,
		RetryDelay:        retryDelayFlag,
		MaxAttempts:       maxAttemptsFlag,
		EnableDeploy:      enableFlag,
		DisableJito:       disableJitoFlag,
		OutFile:           strings.TrimSpace(outFlag),
		CheckpointFile:    strings.TrimSpace(checkpointFlag),
		PriceURL:          strings.TrimSpace(priceURLFlag),
		TipStreamURL:      strings.TrimSpace(tipStreamFlag),
		TipMin:            uint64(tipMinFlag),
		UnitPrice:         uint64(unitPriceFlag),
		EmissionPerSquare: uint64(emissionFlag),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.AmountLamports == 0 {
		return fmt.Errorf("deploy amount required: set --amount-sol or DEPLOY_AMOUNT_SOL")
	}
	if c.MinSquares <= 0 {
		return fmt.Errorf("min-squares must be > 0, got %d", c.MinSquares)
	}
	if c.PickSquares <= 0 {
		return fmt.Errorf("pick-squares must be > 0, got %d", c.PickSquares)
	}
	if c.MinSquares > ore.BoardSquares {
		return fmt.Errorf("min-squares %d exceeds board size %d", c.MinSquares, ore.BoardSquares)
	}
	switch c.PolicyKind {
	case "threshold":
		if c.Threshold < minRefineRate {
			return fmt.Errorf("refine-rate must be >= %.1f, got %v", minRefineRate, c.Threshold)
		}
		if c.MaxRate < c.Threshold {
			return fmt.Errorf("max-rate %v below refine-rate %v", c.MaxRate, c.Threshold)
		}
	case "optimized":
		if c.MaxRate < minRefineRate {
			return fmt.Errorf("max-rate must be >= %.1f, got %v", minRefineRate, c.MaxRate)
		}
	default:
		return fmt.Errorf("invalid policy %q: want threshold or optimized", c.PolicyKind)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be > 0, got %s", c.Tick)
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("stale-after must be > 0, got %s", c.StaleAfter)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max-attempts must be > 0, got %d", c.MaxAttempts)
	}
	if c.EmissionPerSquare == 0 {
		return fmt.Errorf("emission must be > 0")
	}
	return nil
}

// NewPolicy builds the configured acceptance policy.
func NewPolicy(c Config) (Policy, error) {
	params := PolicyParams{
		Amount:      c.AmountLamports,
		MinSquares:  c.MinSquares,
		PickSquares: c.PickSquares,
	}
	switch c.PolicyKind {
	case "threshold":
		return ThresholdPolicy{Params: params, Threshold: c.Threshold}, nil
	case "optimized":
		return OptimizedPolicy{Params: params, MinBound: minRefineRate}, nil
	default:
		return nil, fmt.Errorf("invalid policy %q", c.PolicyKind)
	}
}

func parseSolAmount(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid deploy amount %q: %w", raw, err)
	}
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("deploy amount must be > 0, got %q", raw)
	}
	return uint64(math.Round(v * float64(ore.LamportsPerSol))), nil
}

func envInt(name string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return v, nil
}

func envFloat(name string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return v, nil
}

func envBool(name string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return v, nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return v, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
