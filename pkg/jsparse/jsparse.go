// SPDX-License-Identifier: MPL-2.0

// Package jsparse parses JavaScript modules into the ast package's tree using
// the tree-sitter JavaScript grammar.
//
// The parser is safe for concurrent use: every Parse call owns its own
// tree-sitter parser instance.
package jsparse

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"pickup-cli/pkg/ast"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// DefaultMaxFileSize bounds the size of a single module source.
const DefaultMaxFileSize = 10 * 1024 * 1024

var (
	// ErrFileTooLarge is returned for sources above Options.MaxFileSize.
	ErrFileTooLarge = errors.New("source exceeds maximum size")
	// ErrInvalidContent is returned for sources that are not valid UTF-8.
	ErrInvalidContent = errors.New("source is not valid UTF-8")
)

type (
	// Options configures a Parse call.
	Options struct {
		// Filename is reported in syntax errors.
		Filename string
		// MaxFileSize defaults to DefaultMaxFileSize when zero.
		MaxFileSize int
	}

	// SyntaxError reports the first malformed region of a source.
	SyntaxError struct {
		Filename string
		Line     int
		Column   int
		Near     string
	}
)

func (e *SyntaxError) Error() string {
	name := e.Filename
	if name == "" {
		name = "<input>"
	}
	if e.Near != "" {
		return fmt.Sprintf("%s:%d:%d: syntax error near %q", name, e.Line, e.Column, e.Near)
	}
	return fmt.Sprintf("%s:%d:%d: syntax error", name, e.Line, e.Column)
}

// Parse parses code as an ES module.
func Parse(ctx context.Context, code string, opts Options) (*ast.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled: %w", err)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if len(code) > maxSize {
		return nil, fmt.Errorf("%s: %w", opts.Filename, ErrFileTooLarge)
	}
	if !utf8.ValidString(code) {
		return nil, fmt.Errorf("%s: %w", opts.Filename, ErrInvalidContent)
	}

	src := []byte(code)
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(root, src, opts.Filename)
	}

	c := &converter{src: src}
	return c.convert(root), nil
}

// syntaxError locates the first error or missing node below n.
func syntaxError(n *sitter.Node, src []byte, filename string) error {
	bad := firstError(n)
	if bad == nil {
		bad = n
	}
	p := bad.StartPoint()
	near := string(src[bad.StartByte():bad.EndByte()])
	if len(near) > 24 {
		near = near[:24]
	}
	return &SyntaxError{
		Filename: filename,
		Line:     int(p.Row) + 1,
		Column:   int(p.Column) + 1,
		Near:     near,
	}
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsMissing() || n.Type() == "ERROR" {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstError(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}
