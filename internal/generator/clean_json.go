package generator

import "bytes"

// cleanJSON strips markdown code fences and leading/trailing whitespace
// from LLM responses. Models often wrap JSON in ```json ... ``` blocks.
// This handles: ```json\n{...}\n```, ```\n{...}\n```, ```json{...}```
// with no newline after the marker, and bare JSON.
func cleanJSON(data []byte) []byte {
	s := bytes.TrimSpace(data)
	if len(s) == 0 {
		return s
	}

	if bytes.HasPrefix(s, []byte("```")) {
		s = bytes.TrimPrefix(s, []byte("```"))
		s = bytes.TrimPrefix(s, []byte("json"))
		s = bytes.TrimSpace(s)
		if bytes.HasSuffix(s, []byte("```")) {
			s = bytes.TrimSpace(s[:len(s)-3])
		}
	}

	return s
}
