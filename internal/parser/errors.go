package parser

import "errors"

// ErrSyntax indicates the input line could not be parsed. The wrapped
// message carries the offending construct.
var ErrSyntax = errors.New("syntax error")
