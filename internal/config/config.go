package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"gopkg.in/yaml.v3"

	"github.com/coldbell/jitter/internal/driftmodel"
)

type LogConfig struct {
	Level    string
	Format   string
	Output   string
	FilePath string
}

// JitterConfig is everything one running jitter process needs: which
// chain endpoint to talk to, which wallet to sign with, which strategy to
// run, and the per-market quote/inventory bounds that strategy trades
// within.
type JitterConfig struct {
	RPCURL      string
	WSURL       string
	Commitment  rpc.CommitmentType
	KeypairPath string

	JitProxyProgramID solana.PublicKey
	DriftProgramID    solana.PublicKey

	Strategy     string
	SubAccountID *uint16

	PerpParams map[uint16]driftmodel.JitParams
	SpotParams map[uint16]driftmodel.JitParams

	// Market data this process doesn't decode a full on-chain layout for
	// (no generated account definitions are available for this venue) is
	// supplied by the operator, keyed by market index, the same way the
	// teacher keeper falls back to operator-supplied oracle config.
	PerpMinOrderSize         map[uint16]uint64
	SpotMinOrderSize         map[uint16]uint64
	SpotVaultByMarket        map[uint16]solana.PublicKey
	QuoteSpotVault           solana.PublicKey
	PerpOracleAccountByMarket map[uint16]solana.PublicKey
	SpotOracleAccountByMarket map[uint16]solana.PublicKey

	ShotgunAttempts        int
	ShotgunSuccessCooldown time.Duration
	ShotgunFailCooldown    time.Duration

	SniperRetries          int
	SniperRetryGap         time.Duration
	SniperSuccessCooldown  time.Duration
	SniperPollInterval     time.Duration

	ComputeUnitLimit              uint32
	ComputeUnitPriceMicroLamports uint64

	Log LogConfig
}

var (
	defaultJitProxyProgramID = solana.MustPublicKeyFromBase58("J1TnP8zvVxbtF5KFp5xRmWuvG9McnhzmBd9XGfCyuxFP")
	defaultDriftProgramID    = solana.MustPublicKeyFromBase58("dRiftyHA39MWEi3m9aunc5MzRF1JYuBsbn6VPcn33UH")
)

// LoadJitterConfig reads process env (and, beneath it, a flattened YAML
// file: CONFIG_FILE, or config/config-<CONFIG_PHASE>.yaml with the phase
// defaulting to local, skipped if that default file is absent) into a
// JitterConfig. Env always wins over the config file per envOrDefault's
// lookup order.
func LoadJitterConfig() (JitterConfig, error) {
	if err := ensureRuntimeConfigLoaded(); err != nil {
		return JitterConfig{}, err
	}

	keypairPath := envOrDefault("JITTER_KEYPAIR_PATH", envOrDefault("SOLANA_KEYPAIR_PATH", "~/.config/solana/id.json"))
	expandedKeypair, err := expandHomePath(keypairPath)
	if err != nil {
		return JitterConfig{}, fmt.Errorf("expand keypair path: %w", err)
	}

	commitment, err := envCommitment("SOLANA_COMMITMENT", rpc.CommitmentConfirmed)
	if err != nil {
		return JitterConfig{}, err
	}

	jitProxyProgramID, err := envPubkey("JIT_PROXY_PROGRAM_ID", defaultJitProxyProgramID)
	if err != nil {
		return JitterConfig{}, err
	}
	driftProgramID, err := envPubkey("DRIFT_PROGRAM_ID", defaultDriftProgramID)
	if err != nil {
		return JitterConfig{}, err
	}

	strategy := strings.ToLower(strings.TrimSpace(envOrDefault("JITTER_STRATEGY", "shotgun")))
	if strategy != "shotgun" && strategy != "sniper" {
		return JitterConfig{}, fmt.Errorf("invalid JITTER_STRATEGY %q: expected shotgun|sniper", strategy)
	}

	subAccountID, err := envOptionalUint16("JITTER_SUB_ACCOUNT_ID")
	if err != nil {
		return JitterConfig{}, err
	}

	perpParams, err := parseJitParamsMap(envOrDefault("JITTER_PERP_PARAMS_JSON", ""))
	if err != nil {
		return JitterConfig{}, fmt.Errorf("parse JITTER_PERP_PARAMS_JSON: %w", err)
	}
	spotParams, err := parseJitParamsMap(envOrDefault("JITTER_SPOT_PARAMS_JSON", ""))
	if err != nil {
		return JitterConfig{}, fmt.Errorf("parse JITTER_SPOT_PARAMS_JSON: %w", err)
	}

	perpMinOrderSize, err := parseUint64Map(envOrDefault("JITTER_PERP_MIN_ORDER_SIZE_JSON", ""))
	if err != nil {
		return JitterConfig{}, fmt.Errorf("parse JITTER_PERP_MIN_ORDER_SIZE_JSON: %w", err)
	}
	spotMinOrderSize, err := parseUint64Map(envOrDefault("JITTER_SPOT_MIN_ORDER_SIZE_JSON", ""))
	if err != nil {
		return JitterConfig{}, fmt.Errorf("parse JITTER_SPOT_MIN_ORDER_SIZE_JSON: %w", err)
	}
	spotVaultByMarket, err := parsePubkeyMap(envOrDefault("JITTER_SPOT_VAULT_ACCOUNTS_JSON", ""))
	if err != nil {
		return JitterConfig{}, fmt.Errorf("parse JITTER_SPOT_VAULT_ACCOUNTS_JSON: %w", err)
	}
	perpOracleByMarket, err := parsePubkeyMap(envOrDefault("JITTER_PERP_ORACLE_ACCOUNTS_JSON", ""))
	if err != nil {
		return JitterConfig{}, fmt.Errorf("parse JITTER_PERP_ORACLE_ACCOUNTS_JSON: %w", err)
	}
	spotOracleByMarket, err := parsePubkeyMap(envOrDefault("JITTER_SPOT_ORACLE_ACCOUNTS_JSON", ""))
	if err != nil {
		return JitterConfig{}, fmt.Errorf("parse JITTER_SPOT_ORACLE_ACCOUNTS_JSON: %w", err)
	}
	quoteSpotVault, err := envPubkey("JITTER_QUOTE_SPOT_VAULT", solana.PublicKey{})
	if err != nil {
		return JitterConfig{}, err
	}

	shotgunAttempts, err := envInt("JITTER_SHOTGUN_ATTEMPTS", 10)
	if err != nil {
		return JitterConfig{}, err
	}
	shotgunSuccessCooldown, err := envDuration("JITTER_SHOTGUN_SUCCESS_COOLDOWN", 10*time.Second)
	if err != nil {
		return JitterConfig{}, err
	}
	shotgunFailCooldown, err := envDuration("JITTER_SHOTGUN_FAIL_COOLDOWN", 10*time.Second)
	if err != nil {
		return JitterConfig{}, err
	}

	sniperRetries, err := envInt("JITTER_SNIPER_RETRIES", 3)
	if err != nil {
		return JitterConfig{}, err
	}
	sniperRetryGap, err := envDuration("JITTER_SNIPER_RETRY_GAP", 50*time.Millisecond)
	if err != nil {
		return JitterConfig{}, err
	}
	sniperSuccessCooldown, err := envDuration("JITTER_SNIPER_SUCCESS_COOLDOWN", 3*time.Second)
	if err != nil {
		return JitterConfig{}, err
	}
	sniperPollInterval, err := envDuration("JITTER_SNIPER_POLL_INTERVAL", 50*time.Millisecond)
	if err != nil {
		return JitterConfig{}, err
	}

	cuLimit, err := envUint32("JITTER_COMPUTE_UNIT_LIMIT", 400_000)
	if err != nil {
		return JitterConfig{}, err
	}
	cuPrice, err := envUint64("JITTER_COMPUTE_UNIT_PRICE_MICRO_LAMPORTS", 0)
	if err != nil {
		return JitterConfig{}, err
	}

	rpcURL := envOrDefault("RPC_URL", envOrDefault("SOLANA_RPC_URL", "http://127.0.0.1:8899"))

	return JitterConfig{
		RPCURL:      rpcURL,
		WSURL:       envOrDefault("SOLANA_WS_URL", deriveWSURL(rpcURL)),
		Commitment:  commitment,
		KeypairPath: expandedKeypair,

		JitProxyProgramID: jitProxyProgramID,
		DriftProgramID:    driftProgramID,

		Strategy:     strategy,
		SubAccountID: subAccountID,

		PerpParams: perpParams,
		SpotParams: spotParams,

		PerpMinOrderSize:          perpMinOrderSize,
		SpotMinOrderSize:          spotMinOrderSize,
		SpotVaultByMarket:         spotVaultByMarket,
		QuoteSpotVault:            quoteSpotVault,
		PerpOracleAccountByMarket: perpOracleByMarket,
		SpotOracleAccountByMarket: spotOracleByMarket,

		ShotgunAttempts:        shotgunAttempts,
		ShotgunSuccessCooldown: shotgunSuccessCooldown,
		ShotgunFailCooldown:    shotgunFailCooldown,

		SniperRetries:         sniperRetries,
		SniperRetryGap:        sniperRetryGap,
		SniperSuccessCooldown: sniperSuccessCooldown,
		SniperPollInterval:    sniperPollInterval,

		ComputeUnitLimit:              cuLimit,
		ComputeUnitPriceMicroLamports: cuPrice,

		Log: buildLogConfig("JITTER", "jitter"),
	}, nil
}

type ConfigSource struct {
	Phase  string
	Path   string
	Loaded bool
}

func CurrentConfigSource() (ConfigSource, error) {
	if err := ensureRuntimeConfigLoaded(); err != nil {
		return ConfigSource{}, err
	}
	return ConfigSource{
		Phase:  runtimeConfigPhase,
		Path:   runtimeConfigPath,
		Loaded: runtimeConfigLoaded,
	}, nil
}

// jitParamsWire is the JSON shape operators write JITTER_PERP_PARAMS_JSON /
// JITTER_SPOT_PARAMS_JSON in: a market-index-keyed object of per-market
// quote and inventory bounds.
type jitParamsWire struct {
	Bid          int64  `json:"bid"`
	Ask          int64  `json:"ask"`
	MinPosition  int64  `json:"min_position"`
	MaxPosition  int64  `json:"max_position"`
	PriceType    string `json:"price_type"`
	SubAccountID *uint16 `json:"sub_account_id,omitempty"`
}

func parseJitParamsMap(raw string) (map[uint16]driftmodel.JitParams, error) {
	out := make(map[uint16]driftmodel.JitParams)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}

	var temp map[string]jitParamsWire
	if err := json.Unmarshal([]byte(raw), &temp); err != nil {
		return nil, err
	}

	for key, value := range temp {
		marketIndex, err := strconv.ParseUint(key, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid market index %q: %w", key, err)
		}

		priceType, err := parsePriceType(value.PriceType)
		if err != nil {
			return nil, fmt.Errorf("market %d: %w", marketIndex, err)
		}

		out[uint16(marketIndex)] = driftmodel.JitParams{
			Bid:          value.Bid,
			Ask:          value.Ask,
			MinPosition:  value.MinPosition,
			MaxPosition:  value.MaxPosition,
			PriceType:    priceType,
			SubAccountID: value.SubAccountID,
		}
	}

	return out, nil
}

func parsePubkeyMap(raw string) (map[uint16]solana.PublicKey, error) {
	out := make(map[uint16]solana.PublicKey)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	var temp map[string]string
	if err := json.Unmarshal([]byte(raw), &temp); err != nil {
		return nil, err
	}
	for key, value := range temp {
		marketIndex, err := strconv.ParseUint(key, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid market index %q: %w", key, err)
		}
		pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid pubkey for market %d: %w", marketIndex, err)
		}
		out[uint16(marketIndex)] = pk
	}
	return out, nil
}

func parseUint64Map(raw string) (map[uint16]uint64, error) {
	out := make(map[uint16]uint64)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	var temp map[string]uint64
	if err := json.Unmarshal([]byte(raw), &temp); err != nil {
		return nil, err
	}
	for key, value := range temp {
		marketIndex, err := strconv.ParseUint(key, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid market index %q: %w", key, err)
		}
		out[uint16(marketIndex)] = value
	}
	return out, nil
}

func parsePriceType(raw string) (driftmodel.PriceType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "limit":
		return driftmodel.PriceTypeLimit, nil
	case "oracle":
		return driftmodel.PriceTypeOracle, nil
	default:
		return 0, fmt.Errorf("invalid price_type %q: expected limit|oracle", raw)
	}
}

func deriveWSURL(rpcURL string) string {
	switch {
	case strings.HasPrefix(rpcURL, "https://"):
		return "wss://" + strings.TrimPrefix(rpcURL, "https://")
	case strings.HasPrefix(rpcURL, "http://"):
		return "ws://" + strings.TrimPrefix(rpcURL, "http://")
	default:
		return rpcURL
	}
}

func buildLogConfig(prefix string, serviceName string) LogConfig {
	level := envOrDefault(prefix+"_LOG_LEVEL", envOrDefault("LOG_LEVEL", "info"))
	format := envOrDefault(prefix+"_LOG_FORMAT", envOrDefault("LOG_FORMAT", "text"))
	output := envOrDefault(prefix+"_LOG_OUTPUT", envOrDefault("LOG_OUTPUT", "console"))
	filePath := envOrDefault(prefix+"_LOG_FILE", envOrDefault("LOG_FILE", filepath.Join(".docker", serviceName, serviceName+".log")))

	return LogConfig{
		Level:    level,
		Format:   format,
		Output:   output,
		FilePath: filePath,
	}
}

func envPubkey(key string, fallback solana.PublicKey) (solana.PublicKey, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return pk, nil
}

func envCommitment(key string, fallback rpc.CommitmentType) (rpc.CommitmentType, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	switch strings.ToLower(raw) {
	case string(rpc.CommitmentProcessed):
		return rpc.CommitmentProcessed, nil
	case string(rpc.CommitmentConfirmed):
		return rpc.CommitmentConfirmed, nil
	case string(rpc.CommitmentFinalized):
		return rpc.CommitmentFinalized, nil
	default:
		return "", fmt.Errorf("invalid %s: %q (expected processed|confirmed|finalized)", key, raw)
	}
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be > 0", key)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be > 0", key)
	}
	return v, nil
}

func envUint64(key string, fallback uint64) (uint64, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envUint32(key string, fallback uint32) (uint32, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return uint32(v), nil
}

func envOptionalUint16(key string) (*uint16, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	out := uint16(v)
	return &out, nil
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(valueForKey(key)); value != "" {
		return value
	}
	return fallback
}

func expandHomePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return homeDir, nil
		}
		return filepath.Join(homeDir, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}

var (
	runtimeConfigOnce   sync.Once
	runtimeConfigErr    error
	runtimeConfigValues map[string]string
	runtimeConfigLoaded bool
	runtimeConfigPath   string
	runtimeConfigPhase  string
)

func ensureRuntimeConfigLoaded() error {
	runtimeConfigOnce.Do(func() {
		runtimeConfigValues = make(map[string]string)

		phase := strings.TrimSpace(os.Getenv("CONFIG_PHASE"))
		if phase == "" {
			phase = "local"
		}
		runtimeConfigPhase = phase

		configPath := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
		explicitPath := configPath != ""
		if configPath == "" {
			configPath = filepath.Join("config", "config-"+phase+".yaml")
		}

		body, err := os.ReadFile(configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && !explicitPath {
				return
			}
			runtimeConfigErr = fmt.Errorf("read config file %q: %w", configPath, err)
			return
		}

		raw := make(map[string]any)
		if err := yaml.Unmarshal(body, &raw); err != nil {
			runtimeConfigErr = fmt.Errorf("parse config file %q: %w", configPath, err)
			return
		}

		flattened, err := flattenConfig(raw)
		if err != nil {
			runtimeConfigErr = fmt.Errorf("flatten config file %q: %w", configPath, err)
			return
		}

		runtimeConfigValues = flattened
		runtimeConfigLoaded = true
		if absPath, err := filepath.Abs(configPath); err == nil {
			runtimeConfigPath = absPath
		} else {
			runtimeConfigPath = configPath
		}
	})
	return runtimeConfigErr
}

func flattenConfig(raw map[string]any) (map[string]string, error) {
	out := make(map[string]string)
	for key, value := range raw {
		segment := normalizeKeySegment(key)
		if segment == "" {
			continue
		}
		if err := flattenConfigValue(segment, value, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func flattenConfigValue(prefix string, value any, out map[string]string) error {
	switch typed := value.(type) {
	case map[string]any:
		for key, child := range typed {
			segment := normalizeKeySegment(key)
			if segment == "" {
				continue
			}
			if err := flattenConfigValue(prefix+"_"+segment, child, out); err != nil {
				return err
			}
		}
		return nil
	case map[any]any:
		for keyAny, child := range typed {
			keyText, ok := keyAny.(string)
			if !ok {
				return fmt.Errorf("unsupported map key type %T under %q", keyAny, prefix)
			}
			segment := normalizeKeySegment(keyText)
			if segment == "" {
				continue
			}
			if err := flattenConfigValue(prefix+"_"+segment, child, out); err != nil {
				return err
			}
		}
		return nil
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			switch scalar := item.(type) {
			case string:
				if strings.TrimSpace(scalar) == "" {
					continue
				}
				parts = append(parts, strings.TrimSpace(scalar))
			case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
				parts = append(parts, fmt.Sprint(scalar))
			default:
				return fmt.Errorf("unsupported list item type %T under %q", item, prefix)
			}
		}
		out[prefix] = strings.Join(parts, ",")
		return nil
	case nil:
		return nil
	default:
		out[prefix] = fmt.Sprint(typed)
		return nil
	}
}

func normalizeKeySegment(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))
	lastUnderscore := false

	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}

func valueForKey(key string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}

	if err := ensureRuntimeConfigLoaded(); err != nil {
		return ""
	}

	if value := strings.TrimSpace(runtimeConfigValues[key]); value != "" {
		return value
	}
	return ""
}
