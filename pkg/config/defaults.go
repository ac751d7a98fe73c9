package config

const (
	defaultListen          = ":8000"
	defaultUpstream        = "https://api.deepinfra.com/v1/openai"
	defaultUpstreamTimeout = "5m"
	defaultSource          = "web-page"
	defaultReferer         = "https://deepinfra.com/chat"

	defaultAuthKey = "sk-yourkey"

	defaultModel   = "deepseek-ai/DeepSeek-V3-0324-Turbo"
	defaultOwnedBy = "deepinfra"

	defaultEventStreamProvider = EventStreamNop
	defaultEventStreamTopic    = "deepbridge.completions"
)

// Event stream providers.
const (
	EventStreamNop   = "nop"
	EventStreamKafka = "kafka"
)

var eventStreamProviders = []string{EventStreamNop, EventStreamKafka}

func isEventStreamProvider(name string) bool {
	for _, p := range eventStreamProviders {
		if p == name {
			return true
		}
	}
	return false
}

// defaultModels returns the models served out of the box.
func defaultModels() []string {
	return []string{
		"Qwen/Qwen3-235B-A22B",
		"Qwen/Qwen3-14B",
		"meta-llama/Llama-4-Maverick-17B-128E-Instruct-Turbo",
		"meta-llama/Llama-4-Maverick-17B-128E-Instruct-FP8",
		"deepseek-ai/DeepSeek-V3-0324-Turbo",
		"deepseek-ai/DeepSeek-R1-0528-Turbo",
		"deepseek-ai/DeepSeek-R1-Distill-Llama-70B",
		"google/gemma-3-27b-it",
		"google/gemma-3-4b-it",
		"microsoft/phi-4-reasoning-plus",
		"microsoft/phi-4",
	}
}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Proxy: ProxyConfig{
			Listen:          defaultListen,
			Upstream:        defaultUpstream,
			UpstreamTimeout: defaultUpstreamTimeout,
			Source:          defaultSource,
			Referer:         defaultReferer,
		},
		Auth: AuthConfig{
			Key: defaultAuthKey,
		},
		Models: ModelsConfig{
			Default: defaultModel,
			Allowed: defaultModels(),
			OwnedBy: defaultOwnedBy,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
