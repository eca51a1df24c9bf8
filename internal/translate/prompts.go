package translate

import (
	"fmt"
	"strings"
)

func translateSystemPrompt(srcLang, tgtLang string) string {
	return fmt.Sprintf(`You are an expert proficient in language translation.
Your task is to help translate %s text to %s, ensuring the translation reflects a high level of human expertise.`, srcLang, tgtLang)
}

func translateUserPrompt(srcLang, tgtLang, jsonPayload string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the following %s text, extracted from a part of a single page, ", srcLang)
	fmt.Fprintf(&sb, "from a JSON format into %s. ", tgtLang)
	sb.WriteString("Keep function/command names (i.e. text in Snakecase, Pascalcase or Camelcase, and any text that does not form a typical sentence) unchanged. ")
	sb.WriteString("Respond with a JSON object using the same keys.\n")
	sb.WriteString(jsonPayload)
	return sb.String()
}

const restructSystemPrompt = `You are an expert proficient in translation. Your task is to split a translation into parts and fit each part into the fields of a JSON object.`

func restructUserPrompt(translated, original, shredsJSON string) string {
	var sb strings.Builder
	sb.WriteString("The translation:\ntranslation: \"\"\"\n")
	sb.WriteString(translated)
	sb.WriteString("\n\"\"\"\nis translated from original text:\ntext: \"\"\"\n")
	sb.WriteString(original)
	sb.WriteString("\n\"\"\"\nwhich is split into segments:\nJSON: \"\"\"\n")
	sb.WriteString(shredsJSON)
	sb.WriteString("\n\"\"\"\nFit the translation into these segments, keyed by the same indices, ensuring no characters of the translation are dropped.")
	return sb.String()
}
