// Package prebuilt ships ready-made vertex builders for common flow
// building blocks: constants, string templates, merges, routing, delays.
// RegisterAll installs the whole set into a builder registry; provider
// integrations (such as the OpenAI chat builder) live in subpackages.
package prebuilt
