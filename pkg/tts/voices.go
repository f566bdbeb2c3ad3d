package tts

import "slices"

// OpenAI voices. Nova and shimmer carry best over traffic noise.
const (
	VoiceAlloy   = "alloy"
	VoiceEcho    = "echo"
	VoiceFable   = "fable"
	VoiceOnyx    = "onyx"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"
	VoiceCoral   = "coral"
	VoiceSage    = "sage"
)

var openAIVoices = []string{
	VoiceAlloy, VoiceEcho, VoiceFable, VoiceOnyx,
	VoiceNova, VoiceShimmer, VoiceCoral, VoiceSage,
}

// IsOpenAIVoice reports whether name is a voice the OpenAI speech
// endpoint accepts.
func IsOpenAIVoice(name string) bool {
	return slices.Contains(openAIVoices, name)
}

// ElevenLabsVoices maps preset names to ElevenLabs voice IDs. The presets
// are calm, evenly paced voices suited to short spoken directions.
var ElevenLabsVoices = map[string]string{
	"rachel":    "21m00Tcm4TlvDq8ikWAM",
	"sarah":     "EXAVITQu4vr4xnSDxMaL",
	"charlotte": "XB0fDUnXU5powFXDhCwa",
	"aria":      "9BWtsMINqrJLrRacOk9x",
	"adam":      "pNInz6obpgDQGcFmaJgB",
	"josh":      "TxGEqnHWrfWFTfGW9XjX",
}

// DefaultElevenLabsVoice is used when no voice is configured.
const DefaultElevenLabsVoice = "rachel"

// ResolveElevenLabsVoice maps a preset name to its voice ID. Anything else
// is assumed to be an ID already.
func ResolveElevenLabsVoice(name string) string {
	if id, ok := ElevenLabsVoices[name]; ok {
		return id
	}
	return name
}
