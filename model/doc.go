// Package model defines the provider-agnostic abstractions railflow uses to
// talk to generative text / vision models.
//
// Core goals:
//   - Keep request/response shapes minimal and transport independent
//   - Carry per-call generation options (model id, temperature, ...) next to
//     the contents instead of baking them into provider clients
//   - Represent images inline (ImagePart) so vision prompts need no side channel
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement the Model interface from this
// package so the engine stays decoupled from vendor SDKs.
package model
