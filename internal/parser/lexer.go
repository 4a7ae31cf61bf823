package parser

import "fmt"

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPipe
	tokSemi
	tokAmp
	tokRedirIn
	tokRedirOut
	tokRedirAppend
	tokMergeStderr
)

type token struct {
	kind tokenKind
	text string
}

// tokenize splits a line into words and operators. Single and double
// quotes group characters into one word; there is no escape processing
// inside single quotes and only \" and \\ inside double quotes.
func tokenize(line string) ([]token, error) {
	var tokens []token
	var word []rune
	haveWord := false

	emit := func() {
		if haveWord {
			tokens = append(tokens, token{kind: tokWord, text: string(word)})
			word = word[:0]
			haveWord = false
		}
	}

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == ' ' || c == '\t':
			emit()
		case c == '|':
			emit()
			tokens = append(tokens, token{kind: tokPipe, text: "|"})
		case c == ';':
			emit()
			tokens = append(tokens, token{kind: tokSemi, text: ";"})
		case c == '&':
			emit()
			tokens = append(tokens, token{kind: tokAmp, text: "&"})
		case c == '<':
			emit()
			tokens = append(tokens, token{kind: tokRedirIn, text: "<"})
		case c == '>':
			emit()
			if i+1 < len(runes) && runes[i+1] == '>' {
				tokens = append(tokens, token{kind: tokRedirAppend, text: ">>"})
				i++
			} else {
				tokens = append(tokens, token{kind: tokRedirOut, text: ">"})
			}
		case c == '2' && !haveWord && hasPrefixAt(runes, i, "2>&1"):
			tokens = append(tokens, token{kind: tokMergeStderr, text: "2>&1"})
			i += 3
		case c == '\'':
			end := indexFrom(runes, i+1, '\'')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated quote", ErrSyntax)
			}
			word = append(word, runes[i+1:end]...)
			haveWord = true
			i = end
		case c == '"':
			j := i + 1
			for ; j < len(runes) && runes[j] != '"'; j++ {
				if runes[j] == '\\' && j+1 < len(runes) && (runes[j+1] == '"' || runes[j+1] == '\\') {
					j++
				}
				word = append(word, runes[j])
			}
			if j == len(runes) {
				return nil, fmt.Errorf("%w: unterminated quote", ErrSyntax)
			}
			haveWord = true
			i = j
		default:
			word = append(word, c)
			haveWord = true
		}
	}
	emit()
	return tokens, nil
}

func hasPrefixAt(runes []rune, i int, s string) bool {
	for _, c := range s {
		if i >= len(runes) || runes[i] != c {
			return false
		}
		i++
	}
	return true
}

func indexFrom(runes []rune, start int, c rune) int {
	for i := start; i < len(runes); i++ {
		if runes[i] == c {
			return i
		}
	}
	return -1
}
