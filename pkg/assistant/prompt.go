package assistant

import (
	"fmt"
	"strings"
)

// NoSceneText stands in for an empty scene in the system prompt.
const NoSceneText = "No objects detected yet"

// GuideInstructions is the system prompt for answering questions about the
// user's surroundings. %s is replaced with the scene context.
const GuideInstructions = `You are a helpful visual guide assistant for a visually impaired person.
The user is wearing a phone on their shoulder with camera facing forward.

Current scene: %s

Respond to the user's question about what they can see. Be concise, specific, and helpful.
Use directional language like "on your left", "on your right", "in front of you", "about 2 meters ahead".
The user may speak in Hindi, English, or a mix (Hinglish). Respond in the same language they use.

If asked about location of an object, describe its position clearly.
If the object is not visible, say so politely and suggest looking around.`

// DescribePrompt asks a vision model for a short spoken scene description.
const DescribePrompt = "Describe this scene briefly. List any objects, hazards, or obstacles. " +
	"Mention their approximate positions (left, right, center, near, far)."

// SystemPrompt renders instructions with the scene, substituting
// NoSceneText for an empty scene.
func SystemPrompt(instructions, scene string) string {
	scene = strings.TrimSpace(scene)
	if scene == "" {
		scene = NoSceneText
	}
	if !strings.Contains(instructions, "%s") {
		return instructions + "\n\nCurrent scene: " + scene
	}
	return fmt.Sprintf(instructions, scene)
}
