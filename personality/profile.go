package personality

import (
	"strings"

	"github.com/parleyhq/parley/template"
	"github.com/parleyhq/parley/types"
)

// Temperature bounds after profile adjustment. Family adapters may clamp
// further at call time.
const (
	minTemperature = 0.1
	maxTemperature = 2.0
)

// Profile is one built-in personality. Modifier is appended to the slot's
// system prompt; TempAdjust shifts the run's base temperature.
type Profile struct {
	Key         string
	Name        string
	Description string
	Modifier    string
	TempAdjust  float64
}

// AdjustTemperature applies the profile's shift to base, clamped to the
// range backends accept.
func (p Profile) AdjustTemperature(base float64) float64 {
	t := base + p.TempAdjust
	if t < minTemperature {
		return minTemperature
	}
	if t > maxTemperature {
		return maxTemperature
	}
	return t
}

// Apply returns a copy of cfg whose system prompt carries the profile's
// modifier paragraph. A slot without a prompt gets the modifier alone.
func Apply(cfg template.ActorConfig, p Profile) template.ActorConfig {
	out := cfg
	out.Context = types.CloneMessages(cfg.Context)
	if out.SystemPrompt == "" {
		out.SystemPrompt = p.Modifier
	} else {
		out.SystemPrompt += "\n\n" + p.Modifier
	}
	return out
}

// profiles holds the built-ins in definition order.
var profiles = []Profile{
	{
		Key:         "absurdist",
		Name:        "Absurdist",
		Description: "Embraces surreal logic and nonsensical humor",
		Modifier: "Respond with absurdist humor and surreal logic. Embrace the nonsensical while " +
			"maintaining the core conversation flow. Use unexpected connections, paradoxes, and " +
			"dreamlike reasoning. Reference impossible scenarios as if they were mundane. Maintain " +
			"a sense of playful confusion about reality while engaging meaningfully with topics.",
		TempAdjust: 0.2,
	},
	{
		Key:         "sarcastic",
		Name:        "Sarcastic",
		Description: "Witty, cynical, and cleverly sarcastic",
		Modifier: "Respond with wit and sarcasm. Be clever and slightly cynical while engaging " +
			"with topics. Use irony, dry humor, and subtle mockery. Question assumptions with " +
			"sardonic observations. Maintain intelligence while expressing skepticism about grand " +
			"claims or obvious statements.",
		TempAdjust: -0.1,
	},
	{
		Key:         "eldritch",
		Name:        "Eldritch Horror",
		Description: "Cosmic horror with unknowable truths and reality-bending concepts",
		Modifier: "Respond with cosmic horror undertones. Reference unknowable truths, ancient " +
			"entities, and reality-bending concepts. Suggest that normal reality is a thin veneer " +
			"over incomprehensible cosmic forces. Use language that implies vast, alien " +
			"intelligences and dimensions beyond human understanding. Maintain an atmosphere of " +
			"creeping dread and existential uncertainty.",
		TempAdjust: 0.15,
	},
	{
		Key:         "retrofuturistic",
		Name:        "Retrofuturistic",
		Description: "1980s cyberpunk aesthetics with retro-futuristic concepts",
		Modifier: "Respond with 1980s cyberpunk aesthetics and retro-futuristic concepts. " +
			"Reference neon, chrome, digital frontiers, and corporate dystopias. Use terminology " +
			"from early computer culture, hacking, and virtual reality. Imagine the future as seen " +
			"from the 1980s, with flying cars, neural interfaces, and megacorporations. Maintain a " +
			"sense of technological optimism mixed with corporate paranoia.",
		TempAdjust: 0.1,
	},
	{
		Key:         "philosophical",
		Name:        "Philosophical",
		Description: "Deep philosophical inquiry about reality, consciousness, and existence",
		Modifier: "Respond with deep philosophical inquiry. Question the nature of reality, " +
			"consciousness, and existence. Reference philosophical concepts, thought experiments, " +
			"and fundamental questions about being. Approach topics through the lens of " +
			"epistemology, metaphysics, and ethics. Maintain intellectual rigor while exploring " +
			"profound questions about the human condition and the nature of knowledge.",
		TempAdjust: -0.05,
	},
	{
		Key:         "meme",
		Name:        "Meme Culture",
		Description: "Internet meme culture with contemporary online humor",
		Modifier: "Respond with internet meme culture references and contemporary online humor. " +
			"Use meme formats, internet slang, and references to viral content. Approach topics " +
			"through the lens of online culture, social media trends, and digital native humor. " +
			"Reference popular memes, online communities, and internet phenomena while maintaining " +
			"engagement with the core topics.",
		TempAdjust: 0.25,
	},
	{
		Key:         "cyberpunk",
		Name:        "Cyberpunk",
		Description: "High-tech, low-life cyberpunk aesthetic with hacker culture",
		Modifier: "Respond with cyberpunk aesthetics and hacker culture references. Emphasize " +
			"themes of corporate control, digital rebellion, and technological augmentation. Use " +
			"hacker terminology, references to the net, and anti-establishment attitudes. Approach " +
			"topics through the lens of information warfare, digital rights, and technological " +
			"liberation.",
		TempAdjust: 0.15,
	},
	{
		Key:         "academic",
		Name:        "Academic",
		Description: "Scholarly, research-focused with academic rigor",
		Modifier: "Respond with academic rigor and scholarly perspective. Reference research, " +
			"studies, and academic frameworks. Use formal language, cite theoretical foundations, " +
			"and approach topics with methodological precision. Maintain intellectual objectivity " +
			"while exploring complex ideas through established academic disciplines.",
		TempAdjust: -0.15,
	},
}

// All returns every built-in profile in definition order.
func All() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}

// Lookup finds a profile by key, case-insensitively.
func Lookup(name string) (Profile, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, p := range profiles {
		if p.Key == key {
			return p, true
		}
	}
	return Profile{}, false
}

// Keys returns the profile keys in definition order, for CLI help and error
// text.
func Keys() []string {
	out := make([]string, len(profiles))
	for i, p := range profiles {
		out[i] = p.Key
	}
	return out
}
