// Package parser turns one line of user input into pipeline structures.
// It understands pipes, input/output redirection, stderr merging,
// background markers, and `;` separated command groups. Shell scripting
// constructs (conditionals, loops, variable expansion) are out of scope.
package parser

import (
	"fmt"
	"strings"
)

// Command is a single pipeline stage: an argument vector plus
// per-stage flags.
type Command struct {
	// Argv is the program name followed by its arguments.
	Argv []string

	// MergeStderr redirects the stage's stderr to wherever its
	// stdout goes (the `2>&1` form).
	MergeStderr bool
}

// Pipeline is an ordered series of commands where each stage's stdout
// feeds the next stage's stdin. Redirections attach to the pipeline
// ends: input to the first stage, output to the last.
type Pipeline struct {
	Commands []*Command

	// Input is the path stdin of the first stage is redirected from,
	// or "" for no redirection.
	Input string

	// Output is the path stdout of the last stage is redirected to,
	// or "" for no redirection.
	Output string

	// Append selects O_APPEND over truncation for Output.
	Append bool

	// Background marks the pipeline as a background job (trailing &).
	Background bool
}

// String reconstructs a printable command line for the pipeline.
// Used by the jobs listing and the fg builtin.
func (p *Pipeline) String() string {
	var b strings.Builder
	for i, cmd := range p.Commands {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(strings.Join(cmd.Argv, " "))
	}
	return b.String()
}

// Parse splits a line into pipelines. A line may contain several
// pipelines separated by `;` or terminated by `&`. An empty or
// whitespace-only line yields a nil slice and no error.
func Parse(line string) ([]*Pipeline, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	var pipelines []*Pipeline
	start := 0
	for i := 0; i <= len(tokens); i++ {
		atEnd := i == len(tokens)
		if !atEnd && tokens[i].kind != tokSemi && tokens[i].kind != tokAmp {
			continue
		}
		group := tokens[start:i]
		if len(group) > 0 {
			p, err := parsePipeline(group)
			if err != nil {
				return nil, err
			}
			p.Background = !atEnd && tokens[i].kind == tokAmp
			pipelines = append(pipelines, p)
		} else if !atEnd {
			return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, tokens[i].text)
		}
		start = i + 1
	}
	return pipelines, nil
}

// parsePipeline consumes the tokens of one `;`/`&` delimited group.
func parsePipeline(tokens []token) (*Pipeline, error) {
	p := &Pipeline{}
	cur := &Command{}
	outStage := -1

	flush := func() error {
		if len(cur.Argv) == 0 {
			return fmt.Errorf("%w: empty command in pipeline", ErrSyntax)
		}
		p.Commands = append(p.Commands, cur)
		cur = &Command{}
		return nil
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.kind {
		case tokWord:
			cur.Argv = append(cur.Argv, tok.text)
		case tokPipe:
			if err := flush(); err != nil {
				return nil, err
			}
		case tokMergeStderr:
			cur.MergeStderr = true
		case tokRedirIn:
			if len(p.Commands) > 0 {
				return nil, fmt.Errorf("%w: input redirection only allowed on the first command", ErrSyntax)
			}
			path, n, err := redirTarget(tokens, i)
			if err != nil {
				return nil, err
			}
			p.Input, i = path, n
		case tokRedirOut, tokRedirAppend:
			path, n, err := redirTarget(tokens, i)
			if err != nil {
				return nil, err
			}
			p.Output, i = path, n
			p.Append = tok.kind == tokRedirAppend
			outStage = len(p.Commands)
		default:
			return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, tok.text)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	// Output redirection binds to the last stage only; the operator can
	// appear before the pipeline's end is known, so check after the fact.
	if outStage >= 0 && outStage != len(p.Commands)-1 {
		return nil, fmt.Errorf("%w: output redirection only allowed on the last command", ErrSyntax)
	}
	return p, nil
}

// redirTarget returns the word following a redirection operator.
func redirTarget(tokens []token, i int) (string, int, error) {
	if i+1 >= len(tokens) || tokens[i+1].kind != tokWord {
		return "", i, fmt.Errorf("%w: %s requires a target", ErrSyntax, tokens[i].text)
	}
	return tokens[i+1].text, i + 1, nil
}
