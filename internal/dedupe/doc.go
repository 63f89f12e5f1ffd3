// ABOUTME: Package documentation for the submission guard
// ABOUTME: Explains how repeated form posts are detected

// Package dedupe detects repeated form submissions.
//
// Every message form the chat page renders carries a random token. The first
// post of a token is claimed; a second post of the same token inside the
// window is reported as a duplicate so the handler can skip it and redirect.
package dedupe
