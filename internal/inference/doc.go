// Package inference talks to the external model that evaluates concepts,
// writes council narratives and generates phase artifacts.
//
// The model is reached through a [Completer]: a single prompt in, raw text
// out. [CommandCompleter] runs a configured CLI (claude --print by default)
// with the prompt on stdin. [Provider] layers prompts and response parsing on
// top: every structured call asks the model to wrap a JSON payload in a named
// tag (<evaluation>, <synthesis>, <panel>) and parses the tagged block, falling
// back to the first well-formed JSON value in the output.
//
// Provider methods are safe for concurrent use as long as the Completer is.
package inference
